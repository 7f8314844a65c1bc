// pkg/notify/notify.go - user-facing dialog notifications.

package notify

import (
	"github.com/gonutz/w32"

	"github.com/MSUDenverSystemsEngineering/AutoCAD2020/pkg/logging"
)

// Notifier shows blocking, user-facing dialogs. Non-interactive deploy modes
// get the no-op implementation so nothing ever waits on a desktop that has no
// user at it.
type Notifier interface {
	Info(title, message string)
	Failure(title, message string)
	// Ask poses a yes/no question. Implementations without UI answer yes so
	// unattended runs never stall.
	Ask(title, message string) bool
}

// mbSetForeground is the Win32 MB_SETFOREGROUND flag, which gonutz/w32 does
// not export.
const mbSetForeground = 0x00010000

// Dialog shows native message boxes.
type Dialog struct{}

// NewDialog creates a message-box backed notifier.
func NewDialog() *Dialog { return &Dialog{} }

// Info shows an informational dialog and waits for the user to dismiss it.
func (d *Dialog) Info(title, message string) {
	logging.Info("Showing notification dialog", "title", title)
	w32.MessageBox(0, message, title, w32.MB_OK|w32.MB_ICONINFORMATION|mbSetForeground|w32.MB_TOPMOST)
}

// Failure shows an error dialog and waits for the user to dismiss it.
func (d *Dialog) Failure(title, message string) {
	logging.Info("Showing failure dialog", "title", title)
	w32.MessageBox(0, message, title, w32.MB_OK|w32.MB_ICONERROR|mbSetForeground|w32.MB_TOPMOST)
}

// Ask shows a yes/no dialog and reports whether the user accepted.
func (d *Dialog) Ask(title, message string) bool {
	logging.Info("Showing prompt dialog", "title", title)
	result := w32.MessageBox(0, message, title, w32.MB_YESNO|w32.MB_ICONQUESTION|mbSetForeground|w32.MB_TOPMOST)
	return result == w32.IDYES
}

// NoOp suppresses all dialogs.
type NoOp struct{}

// NewNoOp creates a notifier that never shows UI.
func NewNoOp() *NoOp { return &NoOp{} }

func (n *NoOp) Info(title, message string)    {}
func (n *NoOp) Failure(title, message string) {}
func (n *NoOp) Ask(title, message string) bool { return true }
