package env

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MSUDenverSystemsEngineering/AutoCAD2020/pkg/config"
	"github.com/MSUDenverSystemsEngineering/AutoCAD2020/pkg/logging"
)

func TestMain(m *testing.M) {
	cfg := config.GetDefaultConfig()
	cfg.DisableLogging = true
	_ = logging.Init(cfg)
	os.Exit(m.Run())
}

type fakeNotifier struct {
	asked     bool
	askAnswer bool
}

func (f *fakeNotifier) Info(title, message string)    {}
func (f *fakeNotifier) Failure(title, message string) {}
func (f *fakeNotifier) Ask(title, message string) bool {
	f.asked = true
	return f.askAnswer
}

// newTestPreparer returns a Preparer whose system collaborators are fakes.
// The returned kill slice records every close request in order.
func newTestPreparer(notifier *fakeNotifier, processes []string) (*Preparer, *[]string) {
	killed := &[]string{}
	p := &Preparer{
		Notifier: notifier,
		ListProcesses: func() ([]string, error) {
			return processes, nil
		},
		KillProcess: func(name string) error {
			*killed = append(*killed, name)
			return nil
		},
		FreeSpaceMB: func(drive string) (uint64, error) {
			return 1 << 20, nil
		},
	}
	return p, killed
}

func TestPrepareNoBlockersRunning(t *testing.T) {
	notifier := &fakeNotifier{}
	p, killed := newTestPreparer(notifier, []string{"explorer.exe", "svchost.exe"})

	err := p.Prepare(context.Background(), Options{
		CloseProcesses: []string{"acad", "AdAppMgr"},
		Interactive:    true,
	})

	require.NoError(t, err)
	assert.False(t, notifier.asked)
	assert.Empty(t, *killed)
}

func TestPrepareInsufficientDiskSpace(t *testing.T) {
	p, _ := newTestPreparer(&fakeNotifier{}, nil)
	p.FreeSpaceMB = func(drive string) (uint64, error) {
		return 1024, nil
	}

	err := p.Prepare(context.Background(), Options{
		CheckDiskSpace: true,
		RequiredFreeMB: 40960,
	})

	assert.ErrorIs(t, err, ErrDiskSpace)
}

func TestPrepareDiskQueryFailureSkipsCheck(t *testing.T) {
	p, _ := newTestPreparer(&fakeNotifier{}, nil)
	p.FreeSpaceMB = func(drive string) (uint64, error) {
		return 0, errors.New("wmi query timed out")
	}

	err := p.Prepare(context.Background(), Options{
		CheckDiskSpace: true,
		RequiredFreeMB: 40960,
	})

	assert.NoError(t, err)
}

func TestPrepareInteractiveDecline(t *testing.T) {
	notifier := &fakeNotifier{askAnswer: false}
	p, killed := newTestPreparer(notifier, []string{"acad.exe"})

	err := p.Prepare(context.Background(), Options{
		CloseProcesses: []string{"acad"},
		Interactive:    true,
	})

	assert.ErrorIs(t, err, ErrUserDeclined)
	assert.True(t, notifier.asked)
	assert.Empty(t, *killed)
}

func TestPrepareInteractiveAcceptForceCloses(t *testing.T) {
	notifier := &fakeNotifier{askAnswer: true}
	p, killed := newTestPreparer(notifier, []string{"acad.exe", "AdAppMgr.exe", "notepad.exe"})

	err := p.Prepare(context.Background(), Options{
		CloseProcesses: []string{"acad", "AdAppMgr", "AcEventSync"},
		Interactive:    true,
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"acad", "AdAppMgr"}, *killed)
}

func TestPrepareSilentClosesWithoutPrompting(t *testing.T) {
	notifier := &fakeNotifier{}
	p, killed := newTestPreparer(notifier, []string{"acad.exe"})

	err := p.Prepare(context.Background(), Options{
		CloseProcesses: []string{"acad"},
	})

	require.NoError(t, err)
	assert.False(t, notifier.asked)
	assert.Equal(t, []string{"acad"}, *killed)
}

func TestPrepareMatchesNamesCaseInsensitively(t *testing.T) {
	p, killed := newTestPreparer(&fakeNotifier{}, []string{"ACAD.EXE"})

	err := p.Prepare(context.Background(), Options{
		CloseProcesses: []string{"acad"},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"acad"}, *killed)
}

func TestPrepareCountdownLetsProcessesExitOnTheirOwn(t *testing.T) {
	p, killed := newTestPreparer(&fakeNotifier{}, nil)

	// Blocker is running at the initial check and gone by the first recheck.
	calls := 0
	p.ListProcesses = func() ([]string, error) {
		calls++
		if calls == 1 {
			return []string{"acad.exe"}, nil
		}
		return nil, nil
	}

	err := p.Prepare(context.Background(), Options{
		CloseProcesses:   []string{"acad"},
		CountdownSeconds: 60,
	})

	require.NoError(t, err)
	assert.Empty(t, *killed)
}

func TestPrepareProcessEnumerationFailureContinues(t *testing.T) {
	p, killed := newTestPreparer(&fakeNotifier{}, nil)
	p.ListProcesses = func() ([]string, error) {
		return nil, errors.New("access denied")
	}

	err := p.Prepare(context.Background(), Options{
		CloseProcesses: []string{"acad"},
	})

	assert.NoError(t, err)
	assert.Empty(t, *killed)
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "acad", normalizeName("ACAD.EXE"))
	assert.Equal(t, "acad", normalizeName("acad"))
	assert.Equal(t, "adappmgr", normalizeName("AdAppMgr.exe"))
}
