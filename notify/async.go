package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/warp/meeting-engine/logging"
	"github.com/warp/meeting-engine/meeting"
)

const DefaultSendTimeout = 15 * time.Second

// Async delivers in the background. Notify never blocks on the channels and
// never returns their errors.
type Async struct {
	next    meeting.Notifier
	log     logging.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewAsync(next meeting.Notifier, log logging.Logger, timeout time.Duration) *Async {
	if log == nil {
		log = logging.Nop()
	}
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	return &Async{next: next, log: log, timeout: timeout}
}

func (a *Async) Notify(ctx context.Context, n meeting.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	// The request that triggered the notification is about to finish.
	ctx = context.WithoutCancel(ctx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()

		log := a.log.WithContext(ctx).With(
			logging.F("notification_id", n.ID),
			logging.F("meeting_id", n.MeetingID),
		)
		if err := a.next.Notify(ctx, n); err != nil {
			log.Warn("notification delivery failed", logging.Err(err))
			return
		}
		log.Debug("notification delivered")
	}()
	return nil
}

// Wait blocks until in-flight deliveries finish. Called on shutdown.
func (a *Async) Wait() {
	a.wg.Wait()
}

var _ meeting.Notifier = (*Async)(nil)
