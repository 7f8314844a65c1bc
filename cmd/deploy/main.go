// cmd/deploy/main.go

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/sys/windows"
	"gopkg.in/yaml.v3"

	"github.com/MSUDenverSystemsEngineering/AutoCAD2020/pkg/config"
	"github.com/MSUDenverSystemsEngineering/AutoCAD2020/pkg/deploy"
	"github.com/MSUDenverSystemsEngineering/AutoCAD2020/pkg/detect"
	"github.com/MSUDenverSystemsEngineering/AutoCAD2020/pkg/env"
	"github.com/MSUDenverSystemsEngineering/AutoCAD2020/pkg/exitcode"
	"github.com/MSUDenverSystemsEngineering/AutoCAD2020/pkg/invoker"
	"github.com/MSUDenverSystemsEngineering/AutoCAD2020/pkg/logging"
	"github.com/MSUDenverSystemsEngineering/AutoCAD2020/pkg/notify"
	"github.com/MSUDenverSystemsEngineering/AutoCAD2020/pkg/plan"
	"github.com/MSUDenverSystemsEngineering/AutoCAD2020/pkg/status"
	"github.com/MSUDenverSystemsEngineering/AutoCAD2020/pkg/version"
)

var logger *logging.Logger

// enableANSIConsole enables ANSI colors in the console.
func enableANSIConsole() {
	for _, stream := range []*os.File{os.Stdout, os.Stderr} {
		handle := windows.Handle(stream.Fd())
		var mode uint32
		if err := windows.GetConsoleMode(handle, &mode); err == nil {
			mode |= windows.ENABLE_VIRTUAL_TERMINAL_PROCESSING
			_ = windows.SetConsoleMode(handle, mode)
		}
	}
}

func main() {
	enableANSIConsole()
	// Define command-line flags.
	deploymentType := pflag.String("deployment-type", "Install", "Deployment type: Install or Uninstall.")
	deployMode := pflag.String("deploy-mode", "Interactive", "Deploy mode: Interactive, Silent, or NonInteractive.")
	allowRebootPassThru := pflag.Bool("allow-reboot-passthru", false, "Pass the 3010 reboot-required exit code through to the caller.")
	terminalServerMode := pflag.Bool("terminal-server-mode", false, "Toggle terminal services install mode around the deployment.")
	disableLogging := pflag.Bool("disable-logging", false, "Disable file logging for this run.")
	showConfig := pflag.Bool("show-config", false, "Display the current configuration and exit.")
	versionFlag := pflag.Bool("version", false, "Print the version and exit.")

	// Count the number of -v flags.
	var verbosity int
	pflag.CountVarP(&verbosity, "verbose", "v", "Increase verbosity (e.g. -v, -vv, -vvv)")
	pflag.Parse()

	// Handle --version flag.
	if *versionFlag {
		version.Print()
		os.Exit(0)
	}

	logger = logging.New(verbosity > 0)

	req, err := buildRequest(*deploymentType, *deployMode, *allowRebootPassThru, *terminalServerMode, *disableLogging)
	if err != nil {
		logger.Error("Invalid arguments: %v", err)
		pflag.Usage()
		os.Exit(exitcode.GenericFailure)
	}

	// Load configuration (only once)
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(exitcode.ModuleLoadFailure)
	}
	cfg.DisableLogging = req.DisableLogging

	// Dynamically override LogLevel based on the number of -v flags.
	switch verbosity {
	case 0:
		// keep configured level
	case 1:
		cfg.LogLevel = "INFO"
	default:
		cfg.LogLevel = "DEBUG"
		cfg.Debug = true
	}
	if verbosity > 0 {
		cfg.Verbose = true
	}

	// Initialize the file logger.
	if err := logging.Init(cfg); err != nil {
		logger.Fatal("Error initializing logger: %v", err)
	}
	defer logging.CloseLogger()

	// Show configuration if requested.
	if *showConfig {
		if cfgYaml, err := yaml.Marshal(cfg); err == nil {
			logger.Printf("Current configuration:\n%s", string(cfgYaml))
		}
		os.Exit(0)
	}

	app := plan.Application()
	logger.Printf("%s %s %s (%s) - %s deployment, %s mode",
		app.Vendor, app.Name, app.Version, app.Architecture,
		req.Type.String(), req.Mode.String())

	// Check administrative privileges.
	admin, adminErr := adminCheck()
	if adminErr != nil || !admin {
		logger.Error("Administrative access required. Error: %v, Admin: %v", adminErr, admin)
		logging.CloseLogger()
		os.Exit(exitcode.GenericFailure)
	}

	// The deployment payload is this tool's external module; an install run
	// cannot begin without it.
	if req.Type == deploy.Install {
		if _, err := os.Stat(cfg.SourcePath); err != nil {
			logger.Error("Deployment payload not found at %s: %v", cfg.SourcePath, err)
			logging.CloseLogger()
			os.Exit(exitcode.ModuleLoadFailure)
		}
	}

	// Handle system signals for graceful shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-signalChan
		logger.Warning("Signal received, cancelling deployment: %s", sig.String())
		cancel()
	}()

	// Progress and notification surfaces depend on the deploy mode.
	var reporter status.Reporter
	var notifier notify.Notifier
	if req.Mode == deploy.Interactive {
		reporter = status.NewConsoleReporter()
		notifier = notify.NewDialog()
	} else {
		reporter = status.NewNoOpReporter()
		notifier = notify.NewNoOp()
	}
	if err := reporter.Start(ctx); err != nil {
		logger.Warning("Failed to start progress reporter: %v", err)
		reporter = status.NewNoOpReporter()
	}

	var session deploy.Session
	if req.TerminalServerMode {
		session = deploy.NewSession()
	}

	sequencer := deploy.New(cfg,
		env.New(notifier),
		invoker.New(cfg),
		detect.New(),
		reporter,
		notifier,
		session,
	)

	outcome := sequencer.Run(ctx, req)

	if exitcode.IsSuccess(outcome.ExitCode) {
		logger.Success("%s %s completed with exit code %d", req.Type.String(), app.Name, outcome.ExitCode)
	} else {
		logger.Error("%s %s failed in phase %s with exit code %d",
			req.Type.String(), app.Name, outcome.Phase, outcome.ExitCode)
	}

	logging.CloseLogger()
	os.Exit(outcome.ExitCode)
}

// buildRequest validates and assembles the immutable deployment request.
func buildRequest(deploymentType, deployMode string, allowReboot, terminalServer, disableLogging bool) (deploy.Request, error) {
	dt, err := deploy.ParseDeploymentType(deploymentType)
	if err != nil {
		return deploy.Request{}, err
	}
	dm, err := deploy.ParseDeployMode(deployMode)
	if err != nil {
		return deploy.Request{}, err
	}
	return deploy.Request{
		Type:                dt,
		Mode:                dm,
		AllowRebootPassThru: allowReboot,
		TerminalServerMode:  terminalServer,
		DisableLogging:      disableLogging,
	}, nil
}

// adminCheck verifies whether the current process has administrative privileges.
func adminCheck() (bool, error) {
	var adminSid *windows.SID
	err := windows.AllocateAndInitializeSid(
		&windows.SECURITY_NT_AUTHORITY,
		2,
		windows.SECURITY_BUILTIN_DOMAIN_RID,
		windows.DOMAIN_ALIAS_RID_ADMINS,
		0, 0, 0, 0, 0, 0,
		&adminSid)
	if err != nil {
		return false, err
	}
	defer windows.FreeSid(adminSid)
	token := windows.Token(0)
	isMember, err := token.IsMember(adminSid)
	return isMember, err
}
