package audit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Async hands events to a background worker over a bounded channel so the
// request path never waits on the trail. A full inbox drops the event with a
// warning; the trail is best-effort, domain state is not.
type Async struct {
	inbox chan<- Event
	log   *zap.Logger
}

func NewAsync(inbox chan<- Event, log *zap.Logger) *Async {
	if log == nil {
		log = zap.NewNop()
	}
	return &Async{inbox: inbox, log: log}
}

func (a *Async) Emit(_ context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case a.inbox <- event:
	default:
		a.log.Warn("audit inbox full, dropping event", zap.String("action", event.Action))
	}
	return nil
}
