// pkg/invoker/invoker.go - installer and uninstaller process execution.

package invoker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/MSUDenverSystemsEngineering/AutoCAD2020/pkg/config"
	"github.com/MSUDenverSystemsEngineering/AutoCAD2020/pkg/logging"
	"github.com/MSUDenverSystemsEngineering/AutoCAD2020/pkg/plan"
)

var commandMsi = filepath.Join(os.Getenv("WINDIR"), "system32", "msiexec.exe")

// Invoker executes a single uninstall-by-product-code or install-by-package
// operation and reports the process exit code. A non-nil error means the
// process could not be run or timed out; installer failures come back as
// their exit code with a nil error.
type Invoker interface {
	Uninstall(ctx context.Context, productCode string) (int, error)
	Install(ctx context.Context, op plan.InstallOperation) (int, error)
}

// Exec is the real Invoker backed by msiexec and the vendor setup executable.
type Exec struct {
	cfg *config.Configuration
}

// New creates an Invoker using the configured source path and timeouts.
func New(cfg *config.Configuration) *Exec {
	return &Exec{cfg: cfg}
}

// Uninstall removes one installed package by MSI product code.
func (e *Exec) Uninstall(ctx context.Context, productCode string) (int, error) {
	args := []string{"/x", productCode, "/qn", "/norestart"}
	logging.Info("Invoking MSI uninstall", "product_code", productCode)
	return e.runCMD(ctx, commandMsi, args, false)
}

// Install runs one install operation. MSI packages go through msiexec with
// optional transform and patch arguments; everything else is treated as a
// setup executable invoked with the operation's own silent arguments.
func (e *Exec) Install(ctx context.Context, op plan.InstallOperation) (int, error) {
	pkgPath := op.PackagePath
	if !filepath.IsAbs(pkgPath) {
		pkgPath = filepath.Join(e.cfg.SourcePath, pkgPath)
	}

	if strings.EqualFold(filepath.Ext(pkgPath), ".msi") {
		args := []string{"/i", pkgPath, "/qn", "/norestart"}
		if op.Transform != "" {
			args = append(args, "TRANSFORMS="+op.Transform)
		}
		if len(op.Patches) > 0 {
			args = append(args, "PATCH="+strings.Join(op.Patches, ";"))
		}
		args = append(args, op.Args...)
		logging.Info("Invoking MSI install", "package", pkgPath)
		return e.runCMD(ctx, commandMsi, args, op.Visible)
	}

	logging.Info("Invoking setup executable", "package", pkgPath, "args", strings.Join(op.Args, " "))
	return e.runCMD(ctx, pkgPath, op.Args, op.Visible)
}

// runCMD executes a command, capturing combined output, and returns the
// process exit code.
func (e *Exec) runCMD(ctx context.Context, command string, arguments []string, visible bool) (int, error) {
	timeout := time.Duration(e.cfg.InstallerTimeoutMinutes) * time.Minute
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, command, arguments...)

	// Hide window on Windows unless the operation wants visible UI
	if runtime.GOOS == "windows" && !visible {
		cmd.SysProcAttr = &syscall.SysProcAttr{
			HideWindow: true,
		}
	}

	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if runCtx.Err() == context.DeadlineExceeded {
		logging.Error("Installer timed out", "command", command, "timeout_minutes", e.cfg.InstallerTimeoutMinutes)
		return -1, fmt.Errorf("command timed out after %d minutes", e.cfg.InstallerTimeoutMinutes)
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code := exitErr.ExitCode()
			logging.Warn("Installer returned non-zero exit code",
				"command", command, "exit_code", code, "stderr", stderr.String(), "duration", elapsed.String())
			return code, nil
		}
		return -1, fmt.Errorf("command execution failed: %w | stderr: %s", err, stderr.String())
	}

	logging.Debug("Installer completed", "command", command, "duration", elapsed.String())
	return 0, nil
}
