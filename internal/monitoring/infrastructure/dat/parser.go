// Package dat parses SigmaData .dat rig captures: fixed 232-byte big-endian
// records carrying analog channels, digital bitmaps and the sample clock.
package dat

import (
	"encoding/binary"
	"math"
	"strconv"
	"time"

	monitoring "coldrig-monitor/internal/monitoring/domain"
)

// RecordBytes is the fixed on-disk size of one sample.
const RecordBytes = 232

// datEpoch is the zero point of the record clock (seconds since 1899-12-30,
// the historical spreadsheet epoch the rig firmware uses).
var datEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

type analogField struct {
	name   string
	offset int
}

// float32 channels, in on-disk order.
var analogFields = []analogField{
	{"T1", 0}, {"T2", 4}, {"T3", 8}, {"T4", 12}, {"T5", 16},
	{"T6", 20}, {"T7", 24}, {"T8", 28}, {"T9", 32}, {"T10", 36},
	{"T11", 40}, {"V1", 44}, {"V2", 48}, {"U", 52}, {"P", 56},
	{"I", 60}, {"X1", 64}, {"AT", 68}, {"AH", 72},
	{"TE1", 78}, {"TE2", 82}, {"TE3", 86}, {"TE4", 90},
	{"TE5", 94}, {"TE6", 98}, {"TE7", 102},
	{"PH1", 106}, {"PH2", 110}, {"PH3", 114}, {"PH4", 118},
	{"TE8", 127}, {"TE9", 131}, {"TE10", 135}, {"TE11", 139},
	{"TE12", 143}, {"TE13", 147}, {"TE14", 151},
	{"T12", 156}, {"T13", 160}, {"T14", 164}, {"T15", 168},
	{"T16", 172}, {"T17", 176}, {"T18", 180}, {"T19", 184},
	{"T20", 188}, {"T21", 192}, {"T22", 196},
	{"Frequency", 208},
	{"Res1", 212}, {"Res2", 216}, {"Res3", 220},
}

type digitalField struct {
	offset int
	names  [8]string
}

// Digital IO bitmaps, bit 0 first. Names marked unused are padding bits and
// are not emitted.
var digitalFields = []digitalField{
	{76, [8]string{"DI1", "DI2", "DI3", "DI4", "DO1", "DO2", "DO3", "DO4"}},
	{77, [8]string{"DO5", "DO6", "DO7", "DO8", "DO9", "DO10", "DO11", ""}},
	{122, [8]string{"DE1", "DE2", "DE3", "DE4", "DE5", "DE6", "DE7", "DE8"}},
	{155, [8]string{"DE9", "DE10", "DE11", "DE12", "DE13", "DE14", "DE15", ""}},
}

const (
	timeOffset   = 123 // uint32, seconds since datEpoch
	energyOffset = 200 // float64
)

// ParseRecord decodes one 232-byte sample. buf must hold exactly RecordBytes;
// filePos is the record's byte offset in its source file.
func ParseRecord(buf []byte, workstationID string, filePos int64) (monitoring.Record, error) {
	if len(buf) != RecordBytes {
		return monitoring.Record{}, &ParseError{Pos: filePos, Reason: "short record"}
	}

	values := make(map[string]float64, len(analogFields)+len(digitalFields)*8+1)
	for _, field := range analogFields {
		bits := binary.BigEndian.Uint32(buf[field.offset:])
		values[field.name] = float64(math.Float32frombits(bits))
	}
	for _, field := range digitalFields {
		raw := buf[field.offset]
		for bit, name := range field.names {
			if name == "" {
				continue
			}
			values[name] = float64((raw >> uint(bit)) & 1)
		}
	}
	values["Energy"] = math.Float64frombits(binary.BigEndian.Uint64(buf[energyOffset:]))

	seconds := binary.BigEndian.Uint32(buf[timeOffset:])
	ts := datEpoch.Add(time.Duration(seconds) * time.Second)

	return monitoring.Record{
		Timestamp:     ts,
		WorkstationID: workstationID,
		Values:        values,
		FilePos:       filePos,
	}, nil
}

// ParseError reports a corrupted record in a .dat stream. Unrecoverable: a
// session hitting one transitions to error.
type ParseError struct {
	Pos    int64
	Reason string
}

func (e *ParseError) Error() string {
	if e == nil {
		return "dat: nil parse error"
	}
	return "dat: record at offset " + strconv.FormatInt(e.Pos, 10) + ": " + e.Reason
}
