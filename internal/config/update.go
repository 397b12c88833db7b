package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Update is a partial settings change. A nil field leaves the current value.
type Update struct {
	SignalVelocity *int
	ObjectVelocity *int
}

// updatePayload accepts both the current field names and the legacy
// satVelocity/objVelocity names still posted by older settings forms.
type updatePayload struct {
	SignalVelocity json.RawMessage `json:"signalVelocity"`
	ObjectVelocity json.RawMessage `json:"objectVelocity"`
	SatVelocity    json.RawMessage `json:"satVelocity"`
	ObjVelocity    json.RawMessage `json:"objVelocity"`
}

// ErrNotObject is returned for a settings body that is not a single JSON
// object.
var ErrNotObject = errors.New("settings must be a single JSON object")

// ParseUpdate decodes a settings payload. Only a body that is not exactly one
// JSON object is an error; fields that are missing or do not parse to a
// positive integer are left nil so the existing value is kept.
func ParseUpdate(body []byte) (Update, error) {
	if bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
		return Update{}, ErrNotObject
	}

	var p updatePayload
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&p); err != nil {
		return Update{}, fmt.Errorf("decode settings: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return Update{}, fmt.Errorf("decode settings: %w", ErrNotObject)
	}

	return Update{
		SignalVelocity: firstInt(p.SignalVelocity, p.SatVelocity),
		ObjectVelocity: firstInt(p.ObjectVelocity, p.ObjVelocity),
	}, nil
}

func firstInt(raws ...json.RawMessage) *int {
	for _, raw := range raws {
		if v, ok := parseInt(raw); ok {
			return &v
		}
	}
	return nil
}

// parseInt reads a JSON number or numeric string the way the settings form
// does: fractions are truncated, and zero or negative values are rejected.
func parseInt(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		f, err = strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, false
		}
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	f = math.Trunc(f)
	if f <= 0 || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

// Apply stores the fields present in u and returns the resulting settings.
func (r *Runtime) Apply(u Update) Settings {
	if u.SignalVelocity != nil {
		r.SetSignalVelocity(float64(*u.SignalVelocity))
	}
	if u.ObjectVelocity != nil {
		r.SetObjectVelocity(float64(*u.ObjectVelocity))
	}
	return r.Snapshot()
}

// Empty reports whether u changes nothing.
func (u Update) Empty() bool {
	return u.SignalVelocity == nil && u.ObjectVelocity == nil
}
