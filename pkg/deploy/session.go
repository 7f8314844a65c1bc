// pkg/deploy/session.go - terminal services install mode handling.

package deploy

import (
	"fmt"
	"os/exec"

	"github.com/MSUDenverSystemsEngineering/AutoCAD2020/pkg/logging"
)

// Session toggles per-session system state around the Main phase. On RDS
// hosts the machine must be in install mode while installers run and must be
// returned to execute mode afterwards, even when the run fails.
type Session interface {
	EnableInstallMode() error
	DisableInstallMode() error
}

// ChangeUserSession drives the terminal services mode via change.exe.
type ChangeUserSession struct{}

// NewSession returns the real terminal services session handler.
func NewSession() *ChangeUserSession { return &ChangeUserSession{} }

func (s *ChangeUserSession) EnableInstallMode() error {
	return s.run("/install")
}

func (s *ChangeUserSession) DisableInstallMode() error {
	return s.run("/execute")
}

func (s *ChangeUserSession) run(mode string) error {
	cmd := exec.Command("change.exe", "user", mode)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("change user %s failed: %w, output: %s", mode, err, string(output))
	}
	logging.Info("Switched terminal services mode", "mode", mode)
	return nil
}

// noopSession is used when terminal server mode is not requested.
type noopSession struct{}

func (noopSession) EnableInstallMode() error  { return nil }
func (noopSession) DisableInstallMode() error { return nil }
