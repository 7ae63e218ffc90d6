package worker

import (
	"github.com/spec-kit/helpdesk-core/internal/events"
	"github.com/spec-kit/helpdesk-core/internal/service"
)

// StartFanoutWorker subscribes the fanout to lifecycle events.
func StartFanoutWorker(fanout *service.Fanout, dispatcher events.Dispatcher) {
	if fanout == nil {
		return
	}
	fanout.RegisterHandlers(dispatcher)
}
