// pkg/status/reporter.go - progress reporting for deployment runs.

package status

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/MSUDenverSystemsEngineering/AutoCAD2020/pkg/logging"
)

// Reporter interface abstracts the progress reporting surface. Silent and
// non-interactive runs get the no-op implementation.
type Reporter interface {
	Start(ctx context.Context) error
	Message(txt string)
	Detail(txt string)
	Percent(pct int) // -1 = indeterminate
	Error(err error)
	Stop()
}

// ConsoleReporter implements Reporter by writing progress lines to the console.
type ConsoleReporter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsoleReporter creates a console-backed status reporter.
func NewConsoleReporter() *ConsoleReporter {
	return &ConsoleReporter{out: os.Stdout}
}

// Start is a no-op for the console reporter; it exists so callers can treat
// all reporters uniformly.
func (r *ConsoleReporter) Start(ctx context.Context) error {
	return nil
}

func (r *ConsoleReporter) write(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, line)
}

func (r *ConsoleReporter) Message(txt string) {
	logging.Info("Progress message", "text", txt)
	r.write("==> " + txt)
}

func (r *ConsoleReporter) Detail(txt string) {
	logging.Debug("Progress detail", "text", txt)
	r.write("    " + txt)
}

func (r *ConsoleReporter) Percent(pct int) {
	if pct < 0 {
		return
	}
	r.write(fmt.Sprintf("    %d%%", pct))
}

func (r *ConsoleReporter) Error(err error) {
	logging.Error("Progress error", "error", err)
	r.write("!!  " + err.Error())
}

func (r *ConsoleReporter) Stop() {}

// NoOpReporter discards all progress updates.
type NoOpReporter struct{}

// NewNoOpReporter creates a reporter that does nothing.
func NewNoOpReporter() *NoOpReporter { return &NoOpReporter{} }

func (r *NoOpReporter) Start(ctx context.Context) error { return nil }
func (r *NoOpReporter) Message(txt string)              {}
func (r *NoOpReporter) Detail(txt string)               {}
func (r *NoOpReporter) Percent(pct int)                 {}
func (r *NoOpReporter) Error(err error)                 {}
func (r *NoOpReporter) Stop()                           {}
