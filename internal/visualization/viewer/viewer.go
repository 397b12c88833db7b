// Package viewer draws the live estimate stream in an ebiten window.
package viewer

import (
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"beacon-trilateration/internal/chart"
	"beacon-trilateration/internal/common"
	"beacon-trilateration/internal/visualization"
)

const (
	objectRadius = 6.0
	beaconRadius = 5.0
	padding      = 40.0
)

var (
	background  = color.RGBA{245, 245, 245, 255}
	axisColor   = color.RGBA{180, 180, 180, 255}
	borderColor = color.RGBA{120, 120, 120, 255}
	objectColor = color.RGBA{0, 160, 0, 255}
	beaconColor = color.RGBA{255, 165, 0, 255}
)

// Renderer implements ebiten.Game for a visualization.Scene.
type Renderer struct {
	scene *visualization.Scene

	screenWidth  int
	screenHeight int
	transform    visualization.Transform
}

// NewRenderer creates a new ebiten renderer for scene.
func NewRenderer(scene *visualization.Scene) *Renderer {
	return &Renderer{scene: scene}
}

// Update is called every tick. The scene is fed by the stream goroutine.
func (r *Renderer) Update() error {
	r.transform = visualization.FitAxes(r.screenWidth, r.screenHeight, chart.AxisLimit, padding)
	return nil
}

// Draw is called every frame to render the scene.
func (r *Renderer) Draw(screen *ebiten.Image) {
	screen.Fill(background)
	r.drawAxes(screen)

	frame := r.scene.Frame()
	for _, b := range frame.Beacons {
		if !visualization.Visible(b, chart.AxisLimit) {
			continue
		}
		x, y := r.transform.ToScreen(b)
		vector.DrawFilledCircle(screen, x, y, beaconRadius, beaconColor, true)
	}
	if frame.Finite && visualization.Visible(frame.Object, chart.AxisLimit) {
		x, y := r.transform.ToScreen(frame.Object)
		vector.DrawFilledCircle(screen, x, y, objectRadius, objectColor, true)
	}

	ebitenutil.DebugPrint(screen, frame.Status())
}

func (r *Renderer) drawAxes(screen *ebiten.Image) {
	l := chart.AxisLimit
	x0, y0 := r.transform.ToScreen(common.Point{X: -l, Y: l})
	x1, y1 := r.transform.ToScreen(common.Point{X: l, Y: -l})
	vector.StrokeRect(screen, x0, y0, x1-x0, y1-y0, 1, borderColor, false)

	cx, cy := r.transform.ToScreen(common.Point{})
	vector.StrokeLine(screen, x0, cy, x1, cy, 1, axisColor, false)
	vector.StrokeLine(screen, cx, y0, cx, y1, 1, axisColor, false)
}

// Layout is called when the window size changes.
func (r *Renderer) Layout(outsideWidth, outsideHeight int) (int, int) {
	r.screenWidth = outsideWidth
	r.screenHeight = outsideHeight
	return r.screenWidth, r.screenHeight
}
