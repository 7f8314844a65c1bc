// pkg/env/env.go - environment preparation before the Main deployment phase.
//
// Preparation closes blocking application processes and verifies free disk
// space. Install runs prompt the user before force-closing; uninstall runs
// give processes a bounded countdown to exit on their own instead.

package env

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/yusufpapurcu/wmi"

	"github.com/MSUDenverSystemsEngineering/AutoCAD2020/pkg/logging"
	"github.com/MSUDenverSystemsEngineering/AutoCAD2020/pkg/notify"
	"github.com/MSUDenverSystemsEngineering/AutoCAD2020/pkg/retry"
)

// Sentinel failures the sequencer maps onto specific exit codes.
var (
	ErrUserDeclined = errors.New("user declined to close blocking applications")
	ErrDiskSpace    = errors.New("insufficient free disk space")
)

// Options controls one preparation pass.
type Options struct {
	CloseProcesses []string
	// CountdownSeconds > 0 waits that long for processes to exit before
	// force-closing them. 0 means prompt-then-close (install behavior).
	CountdownSeconds int
	Interactive      bool
	CheckDiskSpace   bool
	RequiredFreeMB   int
}

// Preparer closes blocking processes and checks host readiness. The process
// and disk collaborators are swappable for tests.
type Preparer struct {
	Notifier notify.Notifier

	ListProcesses func() ([]string, error)
	KillProcess   func(name string) error
	FreeSpaceMB   func(drive string) (uint64, error)
}

// New returns a Preparer bound to the live system.
func New(notifier notify.Notifier) *Preparer {
	return &Preparer{
		Notifier:      notifier,
		ListProcesses: listProcessNames,
		KillProcess:   killProcessByName,
		FreeSpaceMB:   queryFreeSpaceMB,
	}
}

// Prepare runs the environment checks and blocking-process handling. A nil
// return means the Main phase may proceed.
func (p *Preparer) Prepare(ctx context.Context, opts Options) error {
	if opts.CheckDiskSpace {
		if err := p.checkDiskSpace(opts.RequiredFreeMB); err != nil {
			return err
		}
	}

	running, err := p.runningBlockers(opts.CloseProcesses)
	if err != nil {
		logging.Warn("Failed to enumerate processes, continuing without close-apps handling", "error", err)
		return nil
	}
	if len(running) == 0 {
		logging.Debug("No blocking applications running")
		return nil
	}

	logging.Info("Blocking applications are running", "apps", strings.Join(running, ", "))

	if opts.CountdownSeconds > 0 {
		p.waitForExit(ctx, opts)
	} else if opts.Interactive {
		message := fmt.Sprintf(
			"The following applications must be closed before setup can continue:\n\n%s\n\nClose them now?",
			strings.Join(running, "\n"))
		if !p.Notifier.Ask("Close applications", message) {
			return ErrUserDeclined
		}
	}

	return p.forceClose(opts.CloseProcesses)
}

func (p *Preparer) checkDiskSpace(requiredMB int) error {
	if requiredMB <= 0 {
		return nil
	}
	drive := os.Getenv("SystemDrive")
	if drive == "" {
		drive = "C:"
	}
	freeMB, err := p.FreeSpaceMB(drive)
	if err != nil {
		logging.Warn("Free space query failed, skipping disk space check", "drive", drive, "error", err)
		return nil
	}
	if freeMB < uint64(requiredMB) {
		logging.Error("Insufficient disk space", "drive", drive, "free_mb", freeMB, "required_mb", requiredMB)
		return fmt.Errorf("%w: %d MB free on %s, %d MB required", ErrDiskSpace, freeMB, drive, requiredMB)
	}
	logging.Debug("Disk space check passed", "drive", drive, "free_mb", freeMB, "required_mb", requiredMB)
	return nil
}

// waitForExit gives blocking processes a bounded countdown to exit on their
// own, rechecking every few seconds. Whatever survives the countdown gets
// force-closed by the caller.
func (p *Preparer) waitForExit(ctx context.Context, opts Options) {
	const interval = 5 * time.Second
	attempts := opts.CountdownSeconds / int(interval.Seconds())
	if attempts < 1 {
		attempts = 1
	}

	logging.Info("Waiting for blocking applications to exit",
		"countdown_seconds", opts.CountdownSeconds)

	_ = retry.Retry(retry.RetryConfig{
		MaxRetries:      attempts,
		InitialInterval: interval,
		Multiplier:      1.0,
	}, func() error {
		if ctx.Err() != nil {
			return nil
		}
		still, err := p.runningBlockers(opts.CloseProcesses)
		if err != nil || len(still) == 0 {
			return nil
		}
		return fmt.Errorf("still running: %s", strings.Join(still, ", "))
	})
}

// runningBlockers reports which of the configured process names are running.
func (p *Preparer) runningBlockers(names []string) ([]string, error) {
	procs, err := p.ListProcesses()
	if err != nil {
		return nil, err
	}

	runningSet := make(map[string]bool, len(procs))
	for _, name := range procs {
		runningSet[normalizeName(name)] = true
	}

	var running []string
	for _, name := range names {
		if runningSet[normalizeName(name)] {
			running = append(running, name)
		}
	}
	return running, nil
}

func (p *Preparer) forceClose(names []string) error {
	running, err := p.runningBlockers(names)
	if err != nil {
		return nil
	}
	for _, name := range running {
		if err := p.KillProcess(name); err != nil {
			logging.Warn("Failed to close blocking application", "process", name, "error", err)
		} else {
			logging.Info("Closed blocking application", "process", name)
		}
	}
	return nil
}

func normalizeName(name string) string {
	return strings.TrimSuffix(strings.ToLower(name), ".exe")
}

// listProcessNames enumerates running process names.
func listProcessNames() ([]string, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(procs))
	for _, proc := range procs {
		name, err := proc.Name()
		if err != nil {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// killProcessByName terminates every process matching the given name.
func killProcessByName(target string) error {
	procs, err := process.Processes()
	if err != nil {
		return err
	}
	var lastErr error
	for _, proc := range procs {
		name, err := proc.Name()
		if err != nil {
			continue
		}
		if normalizeName(name) == normalizeName(target) {
			if err := proc.Kill(); err != nil {
				lastErr = err
			}
		}
	}
	return lastErr
}

// win32LogicalDisk maps the WMI class used for the free-space query.
type win32LogicalDisk struct {
	DeviceID  string
	FreeSpace uint64
}

// queryFreeSpaceMB returns the free space on the given drive in megabytes.
func queryFreeSpaceMB(drive string) (uint64, error) {
	var disks []win32LogicalDisk
	query := fmt.Sprintf("SELECT DeviceID, FreeSpace FROM Win32_LogicalDisk WHERE DeviceID = '%s'", drive)
	if err := wmi.Query(query, &disks); err != nil {
		return 0, err
	}
	if len(disks) == 0 {
		return 0, fmt.Errorf("drive %s not found", drive)
	}
	return disks[0].FreeSpace / (1024 * 1024), nil
}
