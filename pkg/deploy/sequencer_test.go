package deploy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MSUDenverSystemsEngineering/AutoCAD2020/pkg/config"
	"github.com/MSUDenverSystemsEngineering/AutoCAD2020/pkg/env"
	"github.com/MSUDenverSystemsEngineering/AutoCAD2020/pkg/exitcode"
	"github.com/MSUDenverSystemsEngineering/AutoCAD2020/pkg/logging"
	"github.com/MSUDenverSystemsEngineering/AutoCAD2020/pkg/plan"
)

func TestMain(m *testing.M) {
	cfg := config.GetDefaultConfig()
	cfg.DisableLogging = true
	_ = logging.Init(cfg)
	os.Exit(m.Run())
}

// recorder collects the ordered collaborator calls made during a run.
type recorder struct {
	calls []string
}

func (r *recorder) add(call string) {
	r.calls = append(r.calls, call)
}

func (r *recorder) filtered(prefix string) []string {
	var out []string
	for _, c := range r.calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			out = append(out, c)
		}
	}
	return out
}

func (r *recorder) indexOf(call string) int {
	for i, c := range r.calls {
		if c == call {
			return i
		}
	}
	return -1
}

type fakeEnv struct {
	rec *recorder
	err error
}

func (f *fakeEnv) Prepare(_ context.Context, opts env.Options) error {
	f.rec.add(fmt.Sprintf("PrepareEnvironment(countdown=%d,disk=%t)", opts.CountdownSeconds, opts.CheckDiskSpace))
	return f.err
}

type fakeInvoker struct {
	rec            *recorder
	uninstallCodes map[string]int
	uninstallErrs  map[string]error
	installCode    int
	installErr     error
}

func (f *fakeInvoker) Uninstall(_ context.Context, productCode string) (int, error) {
	f.rec.add("InvokeUninstall(" + productCode + ")")
	if err := f.uninstallErrs[productCode]; err != nil {
		return -1, err
	}
	return f.uninstallCodes[productCode], nil
}

func (f *fakeInvoker) Install(_ context.Context, op plan.InstallOperation) (int, error) {
	f.rec.add("InvokeInstall(" + op.Name + ")")
	return f.installCode, f.installErr
}

type fakeDetector struct {
	rec     *recorder
	buckets []plan.BucketID
}

func (f *fakeDetector) Detect() []plan.BucketID {
	f.rec.add("Detect")
	return f.buckets
}

type fakeReporter struct {
	rec *recorder
}

func (f *fakeReporter) Start(context.Context) error { return nil }
func (f *fakeReporter) Message(txt string)          { f.rec.add("ShowProgress") }
func (f *fakeReporter) Detail(txt string)           {}
func (f *fakeReporter) Percent(pct int)             {}
func (f *fakeReporter) Error(err error)             {}
func (f *fakeReporter) Stop()                       { f.rec.add("Stop") }

type fakeNotifier struct {
	rec       *recorder
	askAnswer bool
}

func (f *fakeNotifier) Info(title, message string)    { f.rec.add("Notify") }
func (f *fakeNotifier) Failure(title, message string) { f.rec.add("NotifyFailure") }
func (f *fakeNotifier) Ask(title, message string) bool {
	f.rec.add("Ask")
	return f.askAnswer
}

type fakeSession struct {
	rec *recorder
}

func (f *fakeSession) EnableInstallMode() error  { f.rec.add("EnableInstallMode"); return nil }
func (f *fakeSession) DisableInstallMode() error { f.rec.add("DisableInstallMode"); return nil }

type fixture struct {
	rec      *recorder
	env      *fakeEnv
	invoker  *fakeInvoker
	detector *fakeDetector
	reporter *fakeReporter
	notifier *fakeNotifier
	session  *fakeSession
	seq      *Sequencer
}

func newFixture() *fixture {
	rec := &recorder{}
	f := &fixture{
		rec:      rec,
		env:      &fakeEnv{rec: rec},
		invoker:  &fakeInvoker{rec: rec, uninstallCodes: map[string]int{}, uninstallErrs: map[string]error{}},
		detector: &fakeDetector{rec: rec},
		reporter: &fakeReporter{rec: rec},
		notifier: &fakeNotifier{rec: rec, askAnswer: true},
		session:  &fakeSession{rec: rec},
	}
	f.seq = New(config.GetDefaultConfig(), f.env, f.invoker, f.detector, f.reporter, f.notifier, f.session)
	return f
}

func uninstallCalls(codes []string) []string {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		out = append(out, "InvokeUninstall("+c+")")
	}
	return out
}

func activeCodes(b plan.Bucket) []string {
	var out []string
	for _, e := range b.ActiveEntries() {
		out = append(out, e.ProductCode)
	}
	return out
}

func TestInstallNoLegacyVersions(t *testing.T) {
	f := newFixture()

	outcome := f.seq.Run(context.Background(), Request{Type: Install, Mode: Silent})

	assert.Equal(t, exitcode.Success, outcome.ExitCode)
	assert.Empty(t, f.rec.filtered("InvokeUninstall"))
	require.Len(t, f.rec.filtered("InvokeInstall"), 1)

	// PrepareEnvironment -> ShowProgress -> InvokeInstall -> Stop
	prep := f.rec.indexOf("PrepareEnvironment(countdown=0,disk=true)")
	install := f.rec.indexOf("InvokeInstall(AutoCAD 2020)")
	stop := f.rec.indexOf("Stop")
	require.GreaterOrEqual(t, prep, 0)
	assert.Less(t, prep, install)
	assert.Less(t, install, stop)

	progress := f.rec.filtered("ShowProgress")
	assert.NotEmpty(t, progress)
}

func TestInstallRemovesDetectedLegacyBucketInDeclaredOrder(t *testing.T) {
	f := newFixture()
	f.detector.buckets = []plan.BucketID{plan.Bucket2019}

	outcome := f.seq.Run(context.Background(), Request{Type: Install, Mode: Silent})
	assert.Equal(t, exitcode.Success, outcome.ExitCode)

	bucket, _ := plan.BucketByID(plan.Bucket2019)
	assert.Equal(t, uninstallCalls(activeCodes(bucket)), f.rec.filtered("InvokeUninstall"))

	// Every removal happens before the install.
	install := f.rec.indexOf("InvokeInstall(AutoCAD 2020)")
	for _, call := range f.rec.filtered("InvokeUninstall") {
		assert.Less(t, f.rec.indexOf(call), install)
	}
}

func TestInstallRemovesBothLegacyBuckets(t *testing.T) {
	f := newFixture()
	f.detector.buckets = []plan.BucketID{plan.Bucket2019, plan.Bucket2018}

	f.seq.Run(context.Background(), Request{Type: Install, Mode: Silent})

	b2019, _ := plan.BucketByID(plan.Bucket2019)
	b2018, _ := plan.BucketByID(plan.Bucket2018)
	expected := uninstallCalls(append(activeCodes(b2019), activeCodes(b2018)...))
	assert.Equal(t, expected, f.rec.filtered("InvokeUninstall"))
}

func TestUninstallNeverRunsDetectionOrInstall(t *testing.T) {
	f := newFixture()
	f.detector.buckets = []plan.BucketID{plan.Bucket2019}

	outcome := f.seq.Run(context.Background(), Request{Type: Uninstall, Mode: Silent})

	assert.Equal(t, exitcode.Success, outcome.ExitCode)
	assert.Equal(t, -1, f.rec.indexOf("Detect"))
	assert.Empty(t, f.rec.filtered("InvokeInstall"))

	// The uninstall run prepares with the bounded 60s countdown and no disk check.
	assert.GreaterOrEqual(t, f.rec.indexOf("PrepareEnvironment(countdown=60,disk=false)"), 0)

	// All ten current-version codes run in declared order.
	assert.Equal(t, uninstallCalls(activeCodes(plan.CurrentRemovals())), f.rec.filtered("InvokeUninstall"))
}

func TestUninstallFireAndContinueReportsWorstCode(t *testing.T) {
	f := newFixture()
	current := activeCodes(plan.CurrentRemovals())
	f.invoker.uninstallCodes[current[1]] = 1603
	f.invoker.uninstallCodes[current[4]] = exitcode.SuccessRebootNeeded

	outcome := f.seq.Run(context.Background(), Request{Type: Uninstall, Mode: Silent})

	// Every entry still executes despite the mid-sequence failure.
	assert.Len(t, f.rec.filtered("InvokeUninstall"), len(current))
	assert.Equal(t, 1603, outcome.ExitCode)
}

func TestUninstallProductNotInstalledIsNotAFailure(t *testing.T) {
	f := newFixture()
	current := activeCodes(plan.CurrentRemovals())
	f.invoker.uninstallCodes[current[0]] = exitcode.ProductNotInstalled

	outcome := f.seq.Run(context.Background(), Request{Type: Uninstall, Mode: Silent})
	assert.Equal(t, exitcode.Success, outcome.ExitCode)
}

func TestUninstallInvocationErrorContinues(t *testing.T) {
	f := newFixture()
	current := activeCodes(plan.CurrentRemovals())
	f.invoker.uninstallErrs[current[2]] = errors.New("msiexec could not be started")

	outcome := f.seq.Run(context.Background(), Request{Type: Uninstall, Mode: Silent})

	assert.Len(t, f.rec.filtered("InvokeUninstall"), len(current))
	assert.Equal(t, exitcode.GenericFailure, outcome.ExitCode)
}

func TestEnvironmentPreparationFailureAbortsMainPhase(t *testing.T) {
	tests := []struct {
		name     string
		prepErr  error
		expected int
	}{
		{
			name:     "disk space",
			prepErr:  fmt.Errorf("checking host: %w", env.ErrDiskSpace),
			expected: exitcode.DiskSpaceFailure,
		},
		{
			name:     "user declined",
			prepErr:  env.ErrUserDeclined,
			expected: exitcode.CloseAppsDeclined,
		},
		{
			name:     "unexpected",
			prepErr:  errors.New("wmi unavailable"),
			expected: exitcode.GenericFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.env.err = tt.prepErr

			outcome := f.seq.Run(context.Background(), Request{Type: Install, Mode: Silent})

			assert.Equal(t, tt.expected, outcome.ExitCode)
			assert.Equal(t, PhasePreInstall, outcome.Phase)
			assert.Empty(t, f.rec.filtered("InvokeUninstall"))
			assert.Empty(t, f.rec.filtered("InvokeInstall"))
		})
	}
}

func TestInstallFailureSetsCodeAndPhase(t *testing.T) {
	f := newFixture()
	f.invoker.installCode = 1603

	outcome := f.seq.Run(context.Background(), Request{Type: Install, Mode: Silent})

	assert.Equal(t, 1603, outcome.ExitCode)
	assert.Equal(t, PhaseInstall, outcome.Phase)
	// Silent mode never raises a dialog.
	assert.Empty(t, f.rec.filtered("NotifyFailure"))
}

func TestInstallFailureShowsDialogInInteractiveMode(t *testing.T) {
	f := newFixture()
	f.invoker.installErr = errors.New("setup.exe missing")

	outcome := f.seq.Run(context.Background(), Request{Type: Install, Mode: Interactive})

	assert.Equal(t, exitcode.GenericFailure, outcome.ExitCode)
	assert.NotEmpty(t, f.rec.filtered("NotifyFailure"))
}

func TestInstallCompletionNoticeOnlyInInteractiveMode(t *testing.T) {
	interactive := newFixture()
	interactive.seq.Run(context.Background(), Request{Type: Install, Mode: Interactive})
	assert.NotEmpty(t, interactive.rec.filtered("Notify"))

	silent := newFixture()
	silent.seq.Run(context.Background(), Request{Type: Install, Mode: Silent})
	assert.Empty(t, silent.rec.filtered("Notify"))
}

func TestRebootRequiredPassThru(t *testing.T) {
	passThru := newFixture()
	passThru.invoker.installCode = exitcode.SuccessRebootNeeded
	outcome := passThru.seq.Run(context.Background(),
		Request{Type: Install, Mode: Silent, AllowRebootPassThru: true})
	assert.Equal(t, exitcode.SuccessRebootNeeded, outcome.ExitCode)

	suppressed := newFixture()
	suppressed.invoker.installCode = exitcode.SuccessRebootNeeded
	outcome = suppressed.seq.Run(context.Background(), Request{Type: Install, Mode: Silent})
	assert.Equal(t, exitcode.Success, outcome.ExitCode)
}

func TestLegacyRemovalFailureDoesNotFailInstall(t *testing.T) {
	f := newFixture()
	f.detector.buckets = []plan.BucketID{plan.Bucket2019}
	bucket, _ := plan.BucketByID(plan.Bucket2019)
	f.invoker.uninstallCodes[bucket.ActiveEntries()[0].ProductCode] = 1603

	outcome := f.seq.Run(context.Background(), Request{Type: Install, Mode: Silent})

	assert.Equal(t, exitcode.Success, outcome.ExitCode)
	require.Len(t, f.rec.filtered("InvokeInstall"), 1)
}

func TestLegacyRemovalRebootRequirementCarriesOver(t *testing.T) {
	f := newFixture()
	f.detector.buckets = []plan.BucketID{plan.Bucket2019}
	bucket, _ := plan.BucketByID(plan.Bucket2019)
	f.invoker.uninstallCodes[bucket.ActiveEntries()[0].ProductCode] = exitcode.SuccessRebootNeeded

	outcome := f.seq.Run(context.Background(),
		Request{Type: Install, Mode: Silent, AllowRebootPassThru: true})

	assert.Equal(t, exitcode.SuccessRebootNeeded, outcome.ExitCode)
}

func TestTerminalServerModeTogglesSessionEvenOnFailure(t *testing.T) {
	f := newFixture()
	f.env.err = env.ErrUserDeclined

	f.seq.Run(context.Background(),
		Request{Type: Install, Mode: Silent, TerminalServerMode: true})

	assert.GreaterOrEqual(t, f.rec.indexOf("EnableInstallMode"), 0)
	assert.GreaterOrEqual(t, f.rec.indexOf("DisableInstallMode"), 0)
}

func TestParseDeploymentType(t *testing.T) {
	dt, err := ParseDeploymentType("uninstall")
	require.NoError(t, err)
	assert.Equal(t, Uninstall, dt)

	dt, err = ParseDeploymentType("")
	require.NoError(t, err)
	assert.Equal(t, Install, dt)

	_, err = ParseDeploymentType("repair")
	assert.Error(t, err)
}

func TestParseDeployMode(t *testing.T) {
	dm, err := ParseDeployMode("SILENT")
	require.NoError(t, err)
	assert.Equal(t, Silent, dm)

	dm, err = ParseDeployMode("noninteractive")
	require.NoError(t, err)
	assert.Equal(t, NonInteractive, dm)

	_, err = ParseDeployMode("kiosk")
	assert.Error(t, err)
}
