package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"beacon-trilateration/internal/common"
	"beacon-trilateration/internal/estimator"
	"beacon-trilateration/internal/observation"
)

// DecodeReading parses a reading message. Only a payload that is not a JSON
// object is an error. Missing or non-numeric fields become NaN and are left
// for the solver to propagate. Numeric strings are accepted.
func DecodeReading(data []byte) (observation.Reading, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return observation.Reading{}, fmt.Errorf("decode reading: %w", err)
	}
	if fields == nil {
		return observation.Reading{}, fmt.Errorf("decode reading: not an object")
	}

	return observation.Reading{
		X:            number(fields["x"]),
		Y:            number(fields["y"]),
		SentTime:     number(fields["sentTime"]),
		ReceivedTime: number(fields["receivedTime"]),
	}, nil
}

func number(raw json.RawMessage) float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return math.NaN()
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f
		}
	}
	return math.NaN()
}

// EncodeReading marshals a reading. Readings carrying NaN or Inf cannot be
// represented in JSON and fail.
func EncodeReading(r observation.Reading) ([]byte, error) {
	return json.Marshal(r)
}

// Coordinate is a JSON number that is null when not finite.
type Coordinate struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

func coordinate(p common.Point) Coordinate {
	return Coordinate{X: finite(p.X), Y: finite(p.Y)}
}

// EstimateMessage is the wire form of an estimate sent to renderers.
// JSON has no NaN or Inf; non-finite coordinates are null and Finite is
// false so clients can tell an unusable estimate apart.
type EstimateMessage struct {
	Type         string       `json:"type"`
	Seq          uint64       `json:"seq"`
	Object       Coordinate   `json:"object"`
	Beacons      []Coordinate `json:"beacons"`
	Residual     *float64     `json:"residual"`
	LeastSquares Coordinate   `json:"leastSquares"`
	Finite       bool         `json:"finite"`
}

// NewEstimateMessage converts an estimate to its wire form.
func NewEstimateMessage(est estimator.Estimate) EstimateMessage {
	beacons := make([]Coordinate, len(est.Beacons))
	for i, b := range est.Beacons {
		beacons[i] = coordinate(b)
	}
	return EstimateMessage{
		Type:         "estimate",
		Seq:          est.Seq,
		Object:       coordinate(est.Position),
		Beacons:      beacons,
		Residual:     finite(est.Residual),
		LeastSquares: coordinate(est.LeastSquares),
		Finite:       est.Finite(),
	}
}

// Point returns the coordinate as a point, NaN for null values.
func (c Coordinate) Point() common.Point {
	p := common.Point{X: math.NaN(), Y: math.NaN()}
	if c.X != nil {
		p.X = *c.X
	}
	if c.Y != nil {
		p.Y = *c.Y
	}
	return p
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
