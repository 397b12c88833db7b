// Package chart renders the latest position estimate as a 2D scatter page:
// the object in green and the three beacons in orange on fixed axes.
package chart

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"beacon-trilateration/internal/common"
	"beacon-trilateration/internal/estimator"
)

// AxisLimit is the half-width of both axes.
const AxisLimit = 300.0

const (
	objectColor = "green"
	beaconColor = "orange"
)

// Latest holds the most recent estimate for rendering. It is an
// estimator.Sink. Only one estimate is kept.
type Latest struct {
	mu  sync.RWMutex
	est *estimator.Estimate
}

// NewLatest returns an empty holder.
func NewLatest() *Latest {
	return &Latest{}
}

func (l *Latest) Publish(_ context.Context, est estimator.Estimate) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.est = &est
	return nil
}

// Get returns the latest estimate, if any.
func (l *Latest) Get() (estimator.Estimate, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.est == nil {
		return estimator.Estimate{}, false
	}
	return *l.est, true
}

// Render writes the scatter page for est, or an empty plot when ok is false.
func Render(w io.Writer, est estimator.Estimate, ok bool) error {
	subtitle := "waiting for the first complete batch"
	objectData := []opts.ScatterData{}
	beaconData := []opts.ScatterData{}

	if ok {
		subtitle = fmt.Sprintf("estimate #%d at %s", est.Seq, est.Position)
		if est.Finite() {
			objectData = append(objectData, scatterPoint(est.Position))
		} else {
			subtitle = fmt.Sprintf("estimate #%d is not finite: %s", est.Seq, est.Position)
		}
		for _, b := range est.Beacons {
			if b.IsFinite() {
				beaconData = append(beaconData, scatterPoint(b))
			}
		}
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Position estimate", Width: "700px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{Title: "Trilateration", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10"}),
		charts.WithXAxisOpts(opts.XAxis{Min: -AxisLimit, Max: AxisLimit, Name: "X Coordinate", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -AxisLimit, Max: AxisLimit, Name: "Y Coordinate", NameLocation: "middle", NameGap: 35}),
	)
	scatter.AddSeries("Object", objectData,
		charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 12}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: objectColor}),
	)
	scatter.AddSeries("Beacon", beaconData,
		charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 10}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: beaconColor}),
	)

	return scatter.Render(w)
}

func scatterPoint(p common.Point) opts.ScatterData {
	return opts.ScatterData{Value: []interface{}{p.X, p.Y}}
}

// Handler serves the scatter page for the latest estimate.
func (l *Latest) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		est, ok := l.Get()

		var buf bytes.Buffer
		if err := Render(&buf, est, ok); err != nil {
			http.Error(w, fmt.Sprintf("failed to render chart: %v", err), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(buf.Bytes())
	}
}
