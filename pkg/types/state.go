package types

// ScanState is the externally visible state of the scan engine.
type ScanState string

// Scan engine states
const (
	StateIdle         ScanState = "idle"          // Nothing loaded yet
	StateModelLoading ScanState = "model_loading" // Model, dataset and metadata loading
	StateReady        ScanState = "ready"         // Model available, camera not acquired
	StateScanning     ScanState = "scanning"      // Camera active, sampling frames
	StateMatched      ScanState = "matched"       // A stable match is being shown
	StateStopped      ScanState = "stopped"       // Session ended, camera released
	StateFailed       ScanState = "failed"        // Model failed to load, terminal
)

// ValidScanStates contains all scan states.
var ValidScanStates = []ScanState{
	StateIdle,
	StateModelLoading,
	StateReady,
	StateScanning,
	StateMatched,
	StateStopped,
	StateFailed,
}

// IsValid reports whether s is a known scan state.
func (s ScanState) IsValid() bool {
	for _, valid := range ValidScanStates {
		if s == valid {
			return true
		}
	}
	return false
}

// IsScanning reports whether a scan session currently owns the camera.
func (s ScanState) IsScanning() bool {
	return s == StateScanning || s == StateMatched
}

// IsValidScanTransition validates scan engine transitions.
//
// Valid transitions:
//
//	idle -> model_loading
//	model_loading -> ready | failed | stopped
//	ready -> scanning | stopped
//	scanning -> matched | stopped
//	matched -> scanning | stopped
//	stopped -> scanning
//	failed -> (terminal, no transitions out)
func IsValidScanTransition(current, next ScanState) bool {
	switch current {
	case StateIdle:
		return next == StateModelLoading

	case StateModelLoading:
		return next == StateReady || next == StateFailed || next == StateStopped

	case StateReady:
		return next == StateScanning || next == StateStopped

	case StateScanning:
		return next == StateMatched || next == StateStopped

	case StateMatched:
		return next == StateScanning || next == StateStopped

	case StateStopped:
		return next == StateScanning

	case StateFailed:
		return false

	default:
		return false
	}
}
