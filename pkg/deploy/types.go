// pkg/deploy/types.go - request and outcome types for a deployment run.

package deploy

import (
	"fmt"
	"strings"
)

// DeploymentType selects whether this run installs or removes the product.
type DeploymentType int

const (
	Install DeploymentType = iota
	Uninstall
)

func (t DeploymentType) String() string {
	switch t {
	case Install:
		return "Install"
	case Uninstall:
		return "Uninstall"
	default:
		return "Unknown"
	}
}

// ParseDeploymentType parses a deployment type name, case-insensitively.
func ParseDeploymentType(s string) (DeploymentType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "install":
		return Install, nil
	case "uninstall":
		return Uninstall, nil
	default:
		return Install, fmt.Errorf("unknown deployment type: %q", s)
	}
}

// DeployMode is the degree of user interaction permitted during the run.
type DeployMode int

const (
	Interactive DeployMode = iota
	Silent
	NonInteractive
)

func (m DeployMode) String() string {
	switch m {
	case Interactive:
		return "Interactive"
	case Silent:
		return "Silent"
	case NonInteractive:
		return "NonInteractive"
	default:
		return "Unknown"
	}
}

// ParseDeployMode parses a deploy mode name, case-insensitively.
func ParseDeployMode(s string) (DeployMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "interactive":
		return Interactive, nil
	case "silent":
		return Silent, nil
	case "noninteractive":
		return NonInteractive, nil
	default:
		return Interactive, fmt.Errorf("unknown deploy mode: %q", s)
	}
}

// Request captures everything decided at process entry. It is immutable for
// the lifetime of one run.
type Request struct {
	Type                DeploymentType
	Mode                DeployMode
	AllowRebootPassThru bool
	TerminalServerMode  bool
	DisableLogging      bool
}

// State carries the mutable pieces of a run - the pending exit code and the
// phase name used for log context - threaded explicitly through each phase
// instead of living in globals.
type State struct {
	ExitCode int
	Phase    string
}

// Outcome is produced exactly once, at process end.
type Outcome struct {
	ExitCode int
	Phase    string
}

// Phase names, used for log context and failure reporting.
const (
	PhaseInit          = "Initialization"
	PhasePreInstall    = "Pre-Installation"
	PhaseInstall       = "Installation"
	PhasePostInstall   = "Post-Installation"
	PhasePreUninstall  = "Pre-Uninstallation"
	PhaseUninstall     = "Uninstallation"
	PhasePostUninstall = "Post-Uninstallation"
	PhaseFinalize      = "Finalization"
)
