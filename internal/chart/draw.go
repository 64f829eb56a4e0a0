package chart

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"time"

	gochart "github.com/wcharczuk/go-chart/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Default image size in pixels.
const (
	DefaultWidth  = 1024
	DefaultHeight = 400
)

const noDataCaption = "No Data."

// Draw renders c as a PNG image.
func Draw(c Chart, theme Theme, width, height int) ([]byte, error) {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	if c.NoData || !hasPoints(c.Traces) {
		return placeholder(theme, width, height, noDataCaption)
	}

	series := make([]gochart.Series, 0, len(c.Traces))
	for i, tr := range c.Traces {
		xs, ys := widen(tr.X, tr.Y)
		series = append(series, gochart.TimeSeries{
			Name:    tr.Name,
			XValues: xs,
			YValues: ys,
			Style: gochart.Style{
				StrokeColor: gochart.GetDefaultColor(i),
				StrokeWidth: 2,
			},
		})
	}

	axisStyle := gochart.Style{FontColor: theme.Text, FontSize: 10}
	ch := gochart.Chart{
		Width:  width,
		Height: height,
		Background: gochart.Style{
			FillColor: theme.Paper,
			Padding:   gochart.Box{Top: 20, Left: 50, Right: 20, Bottom: 50},
		},
		Canvas: gochart.Style{FillColor: theme.Plot},
		XAxis: gochart.XAxis{
			Style:          axisStyle,
			ValueFormatter: gochart.TimeValueFormatterWithFormat("15:04:05"),
		},
		YAxis: gochart.YAxis{
			Name:      c.YAxisTitle,
			NameStyle: axisStyle,
			Style:     axisStyle,
			Range:     &gochart.ContinuousRange{Min: c.YMin, Max: c.YMax},
		},
		Series: series,
	}
	ch.Elements = []gochart.Renderable{gochart.Legend(&ch)}

	var buf bytes.Buffer
	if err := ch.Render(gochart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render %s chart: %w", c.Kind, err)
	}
	return buf.Bytes(), nil
}

func hasPoints(traces []Trace) bool {
	for _, tr := range traces {
		if len(tr.X) > 0 {
			return true
		}
	}
	return false
}

// widen gives single-instant series a drawable x range; go-chart refuses a
// zero-width domain.
func widen(x []time.Time, y []float64) ([]time.Time, []float64) {
	if len(x) == 0 || !x[0].Equal(x[len(x)-1]) {
		return x, y
	}
	xs := append(append([]time.Time{}, x...), x[len(x)-1].Add(time.Second))
	ys := append(append([]float64{}, y...), y[len(y)-1])
	return xs, ys
}

// placeholder draws a blank plot area with a centred caption.
func placeholder(theme Theme, width, height int, caption string) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(theme.Paper), image.Point{}, draw.Src)

	face := basicfont.Face7x13
	dr := &font.Drawer{Dst: img, Src: image.NewUniform(theme.Text), Face: face}
	tw := dr.MeasureString(caption).Ceil()
	dr.Dot = fixed.Point26_6{
		X: fixed.I((width - tw) / 2),
		Y: fixed.I((height + face.Metrics().Ascent.Ceil()) / 2),
	}
	dr.DrawString(caption)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode placeholder: %w", err)
	}
	return buf.Bytes(), nil
}
