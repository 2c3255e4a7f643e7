package monitoring

import "time"

// Record is one sampled instant from a test rig. Sensor names are channel
// labels resolved upstream; values are keyed dynamically, not by fixed fields.
// Records are immutable once created and consumed read-only by the engine.
type Record struct {
	Timestamp     time.Time          `json:"ts"`
	WorkstationID string             `json:"workstation_id"`
	Values        map[string]float64 `json:"values"`
	// FilePos is the byte offset of the record in its source .dat file,
	// -1 when the record did not come from a file.
	FilePos int64 `json:"file_pos,omitempty"`
}

// Value returns the sample for a sensor and whether it is present.
func (r Record) Value(sensor string) (float64, bool) {
	v, ok := r.Values[sensor]
	return v, ok
}
