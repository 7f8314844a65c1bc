// pkg/deploy/sequencer.go - the deployment sequencer.
//
// The sequencer walks a fixed phase pipeline for the requested deployment
// type: Pre -> Main -> Post -> Finalize, with an error edge from every phase
// to a single failure handler. Removal steps are best-effort cleanup and
// never transactional; a failed entry is logged and the sequence continues.

package deploy

import (
	"context"
	"errors"
	"fmt"

	"github.com/MSUDenverSystemsEngineering/AutoCAD2020/pkg/config"
	"github.com/MSUDenverSystemsEngineering/AutoCAD2020/pkg/env"
	"github.com/MSUDenverSystemsEngineering/AutoCAD2020/pkg/exitcode"
	"github.com/MSUDenverSystemsEngineering/AutoCAD2020/pkg/invoker"
	"github.com/MSUDenverSystemsEngineering/AutoCAD2020/pkg/logging"
	"github.com/MSUDenverSystemsEngineering/AutoCAD2020/pkg/notify"
	"github.com/MSUDenverSystemsEngineering/AutoCAD2020/pkg/plan"
	"github.com/MSUDenverSystemsEngineering/AutoCAD2020/pkg/status"
)

// Environment prepares the host before the Main phase runs.
type Environment interface {
	Prepare(ctx context.Context, opts env.Options) error
}

// Detector reports which legacy product-year buckets are present.
type Detector interface {
	Detect() []plan.BucketID
}

// Sequencer coordinates one deployment run across its collaborators.
type Sequencer struct {
	cfg      *config.Configuration
	env      Environment
	invoker  invoker.Invoker
	detector Detector
	reporter status.Reporter
	notifier notify.Notifier
	session  Session
}

// New wires a Sequencer from its collaborators. A nil session disables
// terminal services handling.
func New(cfg *config.Configuration, environment Environment, inv invoker.Invoker,
	det Detector, rep status.Reporter, not notify.Notifier, ses Session) *Sequencer {
	if ses == nil {
		ses = noopSession{}
	}
	return &Sequencer{
		cfg:      cfg,
		env:      environment,
		invoker:  inv,
		detector: det,
		reporter: rep,
		notifier: not,
		session:  ses,
	}
}

// Run executes the full deployment pipeline and returns the process outcome.
// It never panics across phase boundaries; every failure is reduced to an
// exit code here.
func (s *Sequencer) Run(ctx context.Context, req Request) Outcome {
	state := &State{ExitCode: exitcode.Success, Phase: PhaseInit}
	logging.SetPhase(state.Phase)
	logging.Info("Starting deployment",
		"deployment_type", req.Type.String(), "deploy_mode", req.Mode.String())

	if req.TerminalServerMode {
		if err := s.session.EnableInstallMode(); err != nil {
			logging.Warn("Failed to enable terminal services install mode", "error", err)
		}
	}

	var err error
	switch req.Type {
	case Uninstall:
		err = s.runUninstall(ctx, req, state)
	default:
		err = s.runInstall(ctx, req, state)
	}

	if err != nil {
		s.handleFailure(req, state, err)
	}

	return s.finalize(req, state)
}

// runInstall executes Pre-Installation, Installation, and Post-Installation.
func (s *Sequencer) runInstall(ctx context.Context, req Request, state *State) error {
	app := plan.Application()

	s.enterPhase(state, PhasePreInstall)
	if err := s.env.Prepare(ctx, env.Options{
		CloseProcesses: s.cfg.CloseProcesses,
		Interactive:    req.Mode == Interactive,
		CheckDiskSpace: true,
		RequiredFreeMB: s.cfg.MinimumFreeSpaceMB,
	}); err != nil {
		state.ExitCode = prepFailureCode(err)
		return fmt.Errorf("environment preparation failed: %w", err)
	}
	s.reporter.Message(fmt.Sprintf("Preparing to install %s %s...", app.Name, app.Version))

	// Remove detected legacy versions ahead of the new install. Each entry
	// is independent; one failed uninstall never blocks the rest, and a
	// failed legacy removal never fails an otherwise successful install.
	// Only a reboot requirement carries over into the final exit code.
	removalCodes := []int{}
	for _, id := range s.detector.Detect() {
		bucket, ok := plan.BucketByID(id)
		if !ok {
			continue
		}
		s.reporter.Detail(fmt.Sprintf("Removing previous installation (%s)...", bucket.ID))
		for _, code := range s.runRemovals(ctx, bucket) {
			if exitcode.Classify(code) == exitcode.SeverityReboot {
				removalCodes = append(removalCodes, code)
			}
		}
	}

	s.enterPhase(state, PhaseInstall)
	op, ok := plan.ActiveInstall()
	if !ok {
		state.ExitCode = exitcode.GenericFailure
		return errors.New("no enabled install operation in the deployment plan")
	}
	s.reporter.Message(fmt.Sprintf("Installing %s...", op.Name))
	code, err := s.invoker.Install(ctx, op)
	if err != nil {
		state.ExitCode = exitcode.GenericFailure
		return fmt.Errorf("install invocation failed: %w", err)
	}
	if !exitcode.IsSuccess(code) {
		state.ExitCode = code
		return fmt.Errorf("installer for %s returned exit code %d", op.Name, code)
	}
	state.ExitCode = exitcode.Worst(append(removalCodes, code)...)

	s.enterPhase(state, PhasePostInstall)
	if !op.ZeroConfig && req.Mode == Interactive {
		s.notifier.Info(app.Name,
			fmt.Sprintf("%s %s %s (%s, rev %s) was installed successfully.",
				app.Vendor, app.Name, app.Version, app.Architecture, app.Revision))
	}
	s.reporter.Message("Installation complete.")
	return nil
}

// runUninstall executes Pre-Uninstallation, Uninstallation, and the
// (currently empty) Post-Uninstallation phase.
func (s *Sequencer) runUninstall(ctx context.Context, req Request, state *State) error {
	app := plan.Application()

	s.enterPhase(state, PhasePreUninstall)
	if err := s.env.Prepare(ctx, env.Options{
		CloseProcesses:   s.cfg.CloseProcesses,
		CountdownSeconds: s.cfg.CountdownSeconds,
		Interactive:      req.Mode == Interactive,
	}); err != nil {
		state.ExitCode = prepFailureCode(err)
		return fmt.Errorf("environment preparation failed: %w", err)
	}
	s.reporter.Message(fmt.Sprintf("Preparing to remove %s...", app.Name))

	s.enterPhase(state, PhaseUninstall)
	s.reporter.Message(fmt.Sprintf("Removing %s components...", app.Name))
	codes := s.runRemovals(ctx, plan.CurrentRemovals())
	state.ExitCode = exitcode.Worst(codes...)

	// Placeholder phase; nothing to clean up today.
	s.enterPhase(state, PhasePostUninstall)
	s.reporter.Message("Removal complete.")
	return nil
}

// runRemovals executes one bucket's removal entries in declared order,
// skipping disabled entries. Failures are recorded and execution continues.
func (s *Sequencer) runRemovals(ctx context.Context, bucket plan.Bucket) []int {
	entries := bucket.ActiveEntries()
	codes := make([]int, 0, len(entries))
	for _, entry := range entries {
		s.reporter.Detail(fmt.Sprintf("Removing %s...", entry.DisplayName))
		code, err := s.invoker.Uninstall(ctx, entry.ProductCode)
		if err != nil {
			logging.Warn("Uninstall invocation failed",
				"display_name", entry.DisplayName, "product_code", entry.ProductCode, "error", err)
			codes = append(codes, exitcode.GenericFailure)
			continue
		}
		code = exitcode.NormalizeUninstall(code)
		if !exitcode.IsSuccess(code) {
			logging.Warn("Uninstall returned failure exit code",
				"display_name", entry.DisplayName, "product_code", entry.ProductCode, "exit_code", code)
		} else {
			logging.Info("Removed package", "display_name", entry.DisplayName, "exit_code", code)
		}
		codes = append(codes, code)
	}
	return codes
}

// handleFailure is the single top-level failure handler. It assigns the
// generic failure code when no more specific one is already set and surfaces
// the failure to the user in interactive runs.
func (s *Sequencer) handleFailure(req Request, state *State, err error) {
	if exitcode.IsSuccess(state.ExitCode) {
		state.ExitCode = exitcode.GenericFailure
	}
	logging.Error("Deployment failed",
		"phase", state.Phase, "exit_code", state.ExitCode, "error", err)
	s.reporter.Error(err)

	if req.Mode == Interactive {
		app := plan.Application()
		s.notifier.Failure(app.Name,
			fmt.Sprintf("%s deployment failed during %s.\n\n%v\n\nExit code: %d",
				app.Name, state.Phase, err, state.ExitCode))
	}
}

// finalize restores session state and produces the one Outcome for this run.
// 3010 passes through verbatim only when the caller asked for it; otherwise
// the reboot requirement is swallowed and the run reports plain success.
func (s *Sequencer) finalize(req Request, state *State) Outcome {
	failedPhase := state.Phase
	s.enterPhase(state, PhaseFinalize)

	if req.TerminalServerMode {
		if err := s.session.DisableInstallMode(); err != nil {
			logging.Warn("Failed to restore terminal services execute mode", "error", err)
		}
	}

	if exitcode.Classify(state.ExitCode) == exitcode.SeverityReboot && !req.AllowRebootPassThru {
		logging.Info("Suppressing reboot-required exit code", "exit_code", state.ExitCode)
		state.ExitCode = exitcode.Success
	}

	logging.Info("Deployment finished", "exit_code", state.ExitCode)
	s.reporter.Stop()
	return Outcome{ExitCode: state.ExitCode, Phase: failedPhase}
}

func (s *Sequencer) enterPhase(state *State, phase string) {
	state.Phase = phase
	logging.SetPhase(phase)
	logging.Info("Entering phase")
}

// prepFailureCode maps environment-preparation failures onto their reserved
// exit codes.
func prepFailureCode(err error) int {
	switch {
	case errors.Is(err, env.ErrUserDeclined):
		return exitcode.CloseAppsDeclined
	case errors.Is(err, env.ErrDiskSpace):
		return exitcode.DiskSpaceFailure
	default:
		return exitcode.GenericFailure
	}
}
