// pkg/detect/detect.go - legacy AutoCAD version detection.

package detect

import (
	"os"
	"path/filepath"

	"github.com/MSUDenverSystemsEngineering/AutoCAD2020/pkg/logging"
	"github.com/MSUDenverSystemsEngineering/AutoCAD2020/pkg/plan"
)

// Detector finds previously-installed product-year lines by checking for
// their executables at fixed, versioned install paths. This is a pure
// presence test: a relocated or renamed install is not found, matching the
// vendor's own detection behavior.
type Detector struct {
	// ProgramFilesRoot is where versioned installs live. Empty means the
	// 64-bit Program Files directory.
	ProgramFilesRoot string

	// Stat is swappable for tests.
	Stat func(string) (os.FileInfo, error)
}

// New returns a Detector bound to the live filesystem.
func New() *Detector {
	return &Detector{Stat: os.Stat}
}

func (d *Detector) root() string {
	if d.ProgramFilesRoot != "" {
		return d.ProgramFilesRoot
	}
	// ProgramW6432 forces the 64-bit Program Files path from a 32-bit host process.
	if pf := os.Getenv("ProgramW6432"); pf != "" {
		return pf
	}
	return `C:\Program Files`
}

// Detect returns the IDs of every legacy bucket whose marker executable is
// present, preserving the bucket order from the plan tables. Re-running
// detection yields the same set.
func (d *Detector) Detect() []plan.BucketID {
	stat := d.Stat
	if stat == nil {
		stat = os.Stat
	}

	var found []plan.BucketID
	for _, bucket := range plan.LegacyBuckets() {
		marker := filepath.Join(d.root(), bucket.MarkerPath)
		if _, err := stat(marker); err == nil {
			logging.Info("Detected legacy installation", "bucket", string(bucket.ID), "marker", marker)
			found = append(found, bucket.ID)
		} else {
			logging.Debug("Legacy marker not present", "bucket", string(bucket.ID), "marker", marker)
		}
	}
	return found
}
