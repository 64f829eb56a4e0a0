package service

import "thermal_dashboard/internal/settings"

const (
	desyncPrefix = "State stream desynchronized: "
	desyncOwner  = "stream"
)

// DesyncStatus surfaces dropped frames in the shared status slot and clears
// its own message once the stream reconnects.
type DesyncStatus struct {
	slot settings.StatusSlot
}

func NewDesyncStatus(slot settings.StatusSlot) *DesyncStatus {
	return &DesyncStatus{slot: slot}
}

func (d *DesyncStatus) OnOpen() {
	d.slot.Release(desyncOwner)
}

func (d *DesyncStatus) OnFrameDropped(err error) {
	d.slot.Raise(desyncOwner, desyncPrefix+err.Error())
}

func (d *DesyncStatus) OnError(error) {}
