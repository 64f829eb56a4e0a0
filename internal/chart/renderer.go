package chart

import (
	"time"

	"thermal_dashboard/internal/logger"
	"thermal_dashboard/internal/models"
)

// Frame is what a display shows for one chart.
type Frame struct {
	Kind       Kind      `json:"kind"`
	Chart      Chart     `json:"chart"`
	Image      []byte    `json:"-"`
	RenderedAt time.Time `json:"rendered_at"`
}

// Display receives a freshly rendered frame that replaces the previous one.
type Display interface {
	Replace(Frame)
}

// Displays fans a frame out to several displays in order.
type Displays []Display

func (d Displays) Replace(f Frame) {
	for _, x := range d {
		x.Replace(f)
	}
}

// Options configure a Renderer.
type Options struct {
	Theme  Theme
	Width  int
	Height int
}

// Renderer is a snapshot subscriber that redraws one chart in full on every
// snapshot.
type Renderer struct {
	kind    Kind
	opts    Options
	display Display
	log     *logger.Logger
	now     func() time.Time
}

func NewRenderer(kind Kind, opts Options, display Display, log *logger.Logger) *Renderer {
	return &Renderer{kind: kind, opts: opts, display: display, log: log, now: time.Now}
}

// OnSnapshot rebuilds the chart and replaces the displayed frame. When the
// image cannot be drawn the chart model is still published, without image.
func (r *Renderer) OnSnapshot(s models.StateSnapshot) {
	c := Build(r.kind, s)
	img, err := Draw(c, r.opts.Theme, r.opts.Width, r.opts.Height)
	if err != nil && r.log != nil {
		r.log.Warnw("chart_draw_failed", "kind", r.kind, "err", err)
	}
	r.display.Replace(Frame{Kind: r.kind, Chart: c, Image: img, RenderedAt: r.now().UTC()})
}
