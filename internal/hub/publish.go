package hub

import (
	"thermal_dashboard/internal/chart"
	"thermal_dashboard/internal/models"
	"thermal_dashboard/internal/settings"
)

// StatusView is the data of a status envelope.
type StatusView struct {
	Visible bool   `json:"visible"`
	Message string `json:"message,omitempty"`
	Scroll  bool   `json:"scroll,omitempty"`
}

// LoadingView is the data of a loading envelope.
type LoadingView struct {
	Control string `json:"control"`
	Visible bool   `json:"visible"`
}

// OnSnapshot makes the hub a stream subscriber.
func (h *Hub) OnSnapshot(s models.StateSnapshot) {
	h.Publish(TypeSnapshot, TypeSnapshot, s)
}

// Replace makes the hub a chart display.
func (h *Hub) Replace(f chart.Frame) {
	h.Publish(TypeChart, TypeChart+":"+string(f.Kind), f)
}

// Display, Hide and ScrollIntoView make the hub a status surface.
func (h *Hub) Display(msg string) {
	h.statusMu.Lock()
	h.statusMsg, h.statusOn = msg, true
	h.statusMu.Unlock()
	h.Publish(TypeStatus, TypeStatus, StatusView{Visible: true, Message: msg})
}

func (h *Hub) Hide() {
	h.statusMu.Lock()
	h.statusMsg, h.statusOn = "", false
	h.statusMu.Unlock()
	h.Publish(TypeStatus, TypeStatus, StatusView{})
}

func (h *Hub) ScrollIntoView() {
	h.statusMu.Lock()
	v := StatusView{Visible: h.statusOn, Message: h.statusMsg, Scroll: true}
	h.statusMu.Unlock()
	h.Publish(TypeStatus, "", v)
}

// indicator shows per-control loading state through the hub.
type indicator struct{ h *Hub }

// Indicator returns the loading indicator backed by this hub.
func (h *Hub) Indicator() settings.Indicator { return indicator{h} }

func (i indicator) Show(control string) {
	i.h.Publish(TypeLoading, TypeLoading+":"+control, LoadingView{Control: control, Visible: true})
}

func (i indicator) Hide(control string) {
	i.h.Publish(TypeLoading, TypeLoading+":"+control, LoadingView{Control: control})
}

// OnOutcome makes the hub a settings observer.
func (h *Hub) OnOutcome(out settings.Outcome) {
	h.PublishControls(out.Controls)
	if out.Result != settings.ResultApplied {
		h.send("", Envelope{Type: TypeControls, Error: out.Message})
	}
}

// PublishControls replaces the controls state shown to browsers.
func (h *Hub) PublishControls(c settings.Controls) {
	h.Publish(TypeControls, TypeControls, c)
}

// Bye tells every browser the session is over.
func (h *Hub) Bye(reason string) {
	h.Publish(TypeBye, "", reason)
}
