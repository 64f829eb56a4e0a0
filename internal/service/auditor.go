package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"thermal_dashboard/internal/logger"
	"thermal_dashboard/internal/models"
	"thermal_dashboard/internal/repository"
	"thermal_dashboard/internal/settings"
)

const auditTimeout = 2 * time.Second

// Auditor records stream lifecycle and settings outcomes in the audit log.
// Repeated identical stream errors are recorded once until the stream opens
// again.
type Auditor struct {
	events repository.EventRepo
	log    *logger.Logger

	mu      sync.Mutex
	lastErr string
}

func NewAuditor(events repository.EventRepo, log *logger.Logger) *Auditor {
	return &Auditor{events: events, log: log}
}

func (a *Auditor) OnOpen() {
	a.mu.Lock()
	a.lastErr = ""
	a.mu.Unlock()
	a.append(models.EventStreamOpen, "State stream connected", nil)
}

func (a *Auditor) OnFrameDropped(err error) {
	a.append(models.EventFrameDropped, "Malformed state frame dropped", map[string]any{"err": err.Error()})
}

func (a *Auditor) OnError(err error) {
	msg := err.Error()
	a.mu.Lock()
	repeated := msg == a.lastErr
	a.lastErr = msg
	a.mu.Unlock()
	if repeated {
		return
	}
	a.append(models.EventStreamError, "State stream failed", map[string]any{"err": msg})
}

func (a *Auditor) OnOutcome(out settings.Outcome) {
	meta := map[string]any{"control": out.Control, "requested": out.Requested}
	var typ, desc string
	switch out.Result {
	case settings.ResultApplied:
		typ = models.EventSettingsApplied
		desc = fmt.Sprintf("%s applied", out.Control)
		meta["confirmed"] = out.Confirmed
	case settings.ResultRejected:
		typ = models.EventSettingsRejected
		desc = fmt.Sprintf("%s rejected: %s", out.Control, out.Message)
	default:
		typ = models.EventTransportError
		desc = fmt.Sprintf("%s failed: %s", out.Control, out.Message)
	}
	a.append(typ, desc, meta)
}

func (a *Auditor) append(typ, desc string, meta any) {
	if a.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()
	err := a.events.Append(ctx, models.DashboardEvent{
		OccurredAt:  time.Now().UTC(),
		Type:        typ,
		Description: desc,
		Metadata:    meta,
	})
	if err != nil && a.log != nil {
		a.log.Warnw("audit_append_failed", "type", typ, "err", err)
	}
}
