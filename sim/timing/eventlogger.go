package timing

import (
	"reflect"

	"github.com/go-logr/logr"

	"github.com/sarchlab/hwconform/sim/hooking"
)

// EventLogger is a hook that logs every event before it is handled.
type EventLogger struct {
	log logr.Logger
}

// NewEventLogger returns a new EventLogger which writes into the logger.
func NewEventLogger(log logr.Logger) *EventLogger {
	return &EventLogger{log: log}
}

// Func writes the event information into the logger
func (h *EventLogger) Func(ctx hooking.HookCtx) {
	if ctx.Pos != HookPosBeforeEvent {
		return
	}

	evt, ok := ctx.Item.(Event)
	if !ok {
		return
	}

	kind := "primary"
	if evt.IsSecondary() {
		kind = "secondary"
	}

	h.log.Info("event",
		"time", FormatTime(evt.Time()),
		"kind", kind,
		"event", reflect.TypeOf(evt).String(),
		"handler", reflect.TypeOf(evt.Handler()).String())
}
