// Package jobs holds the authoritative job state: snapshots, the status
// state machine, and the registry that serializes writes and fans out
// ordered events to watchers.
package jobs

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// Status is the lifecycle state of a job.
type Status string

const (
	// StatusQueued means the job has been accepted but not yet started.
	StatusQueued Status = "queued"
	// StatusRunning means the executor has started producing progress.
	StatusRunning Status = "running"
	// StatusDone means the job finished successfully.
	StatusDone Status = "done"
	// StatusError means the job finished with a failure.
	StatusError Status = "error"
	// StatusCancelled means the job was cancelled before completion.
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusDone, StatusError, StatusCancelled:
		return true
	default:
		return false
	}
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusRunning, StatusDone, StatusError, StatusCancelled:
		return true
	default:
		return false
	}
}

// MetaValue is a closed union over the primitive value types allowed in a
// job's meta mapping: string, number, or boolean.
type MetaValue struct {
	kind metaKind
	str  string
	num  float64
	b    bool
}

type metaKind uint8

const (
	metaString metaKind = iota
	metaNumber
	metaBool
)

// MetaString wraps a string value.
func MetaString(v string) MetaValue { return MetaValue{kind: metaString, str: v} }

// MetaNumber wraps a numeric value.
func MetaNumber(v float64) MetaValue { return MetaValue{kind: metaNumber, num: v} }

// MetaBool wraps a boolean value.
func MetaBool(v bool) MetaValue { return MetaValue{kind: metaBool, b: v} }

// String returns the string value and whether the variant holds one.
func (v MetaValue) String() (string, bool) { return v.str, v.kind == metaString }

// Number returns the numeric value and whether the variant holds one.
func (v MetaValue) Number() (float64, bool) { return v.num, v.kind == metaNumber }

// Bool returns the boolean value and whether the variant holds one.
func (v MetaValue) Bool() (bool, bool) { return v.b, v.kind == metaBool }

// MarshalJSON encodes the wrapped primitive directly.
func (v MetaValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case metaNumber:
		return json.Marshal(v.num)
	case metaBool:
		return json.Marshal(v.b)
	default:
		return json.Marshal(v.str)
	}
}

// UnmarshalJSON decodes a primitive into the matching variant. Non-primitive
// values (objects, arrays, null) are rejected.
func (v *MetaValue) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case string:
		*v = MetaString(t)
	case float64:
		*v = MetaNumber(t)
	case bool:
		*v = MetaBool(t)
	default:
		return fmt.Errorf("meta value must be string, number, or boolean, got %T", raw)
	}
	return nil
}

// Meta is the auxiliary fact mapping attached to a job. Updates overwrite
// per key; values are never deep-merged.
type Meta map[string]MetaValue

// Merge overwrites m with every key from other and returns m. A nil
// receiver yields a fresh map.
func (m Meta) Merge(other Meta) Meta {
	if m == nil {
		m = Meta{}
	}
	for k, v := range other {
		m[k] = v
	}
	return m
}

// Clone returns a shallow copy of the mapping.
func (m Meta) Clone() Meta {
	if m == nil {
		return nil
	}
	out := make(Meta, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Scan implements sql.Scanner so Meta round-trips through a JSONB column.
func (m *Meta) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return errors.New("unsupported type for Meta")
	}

	if len(data) == 0 {
		*m = Meta{}
		return nil
	}

	return json.Unmarshal(data, m)
}

// Value implements driver.Valuer for JSONB storage.
func (m Meta) Value() (driver.Value, error) {
	if len(m) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Snapshot is the complete state of a job at a point in time. Every stream
// event carries a full snapshot, so any single event suffices to
// reconstruct the observed state.
type Snapshot struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Status Status `json:"status"`
	Total  int    `json:"total"`
	Done   int    `json:"done"`
	OK     int    `json:"ok"`
	Err    int    `json:"err"`
	Note   string `json:"note"`
	Meta   Meta   `json:"meta"`
}

// Clone returns a copy of the snapshot with its own meta map.
func (s Snapshot) Clone() Snapshot {
	s.Meta = s.Meta.Clone()
	return s
}
