package domain

// Extended-property keys stamped on every event the core writes to the
// target calendar. They form the authorship marker: the gateway must
// never touch an event lacking a matching SyncProfileID.
const (
	ExtPropProfileID   = "syncProfileId"
	ExtPropFingerprint = "syncademicFingerprint"
)

// TargetEventHandle is a reference to an event previously written to the
// target calendar, as reported by the gateway's list operation.
type TargetEventHandle struct {
	// ID is the target calendar's own event identifier.
	ID string
	// SyncProfileID is the recorded authorship marker.
	SyncProfileID string
	// Fingerprint is the recorded SyncedEventKey.
	Fingerprint string
}
