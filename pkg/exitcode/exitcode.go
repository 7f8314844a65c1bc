// pkg/exitcode/exitcode.go - process exit codes produced by the deployment sequencer.

package exitcode

// Standard Windows Installer exit codes that pass through this tool unchanged.
// 3010 in particular must reach the calling orchestration system verbatim so
// it can schedule a reboot.
const (
	Success              = 0
	UserCancelled        = 1602
	ProductNotInstalled  = 1605
	InstallAlreadyActive = 1618
	SuccessRebootFlagged = 1641
	SuccessRebootNeeded  = 3010
)

// Sequencer-reserved codes. 60000-68999 belongs to the deployment tooling
// itself; 69000-69999 is left open for site-defined success/failure codes.
const (
	GenericFailure    = 60001
	DiskSpaceFailure  = 60004
	ModuleLoadFailure = 60008
	CloseAppsDeclined = 60012
	SiteReservedLow   = 69000
	SiteReservedHigh  = 69999
)

// Severity buckets used to pick the worst outcome across a phase.
type Severity int

const (
	SeverityOK Severity = iota
	SeverityReboot
	SeverityFailure
)

// Classify maps an exit code onto its severity bucket.
func Classify(code int) Severity {
	switch code {
	case Success:
		return SeverityOK
	case SuccessRebootNeeded, SuccessRebootFlagged:
		return SeverityReboot
	default:
		return SeverityFailure
	}
}

// IsSuccess reports whether a code represents a successful operation,
// including the reboot-required variants.
func IsSuccess(code int) bool {
	return Classify(code) != SeverityFailure
}

// NormalizeUninstall treats "product not installed" as success for removal
// steps. Cleanup of a package that was never present is not a failure.
func NormalizeUninstall(code int) int {
	if code == ProductNotInstalled {
		return Success
	}
	return code
}

// Worst returns the most severe code from the given set. Ties keep the first
// code observed so a phase reports its earliest failure. An empty set is
// success.
func Worst(codes ...int) int {
	worst := Success
	worstSev := SeverityOK
	for _, code := range codes {
		if sev := Classify(code); sev > worstSev {
			worst = code
			worstSev = sev
		}
	}
	return worst
}
