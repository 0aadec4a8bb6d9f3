package push

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/dukerupert/invitely/internal/model"
)

// SubscriptionStore is the persistence the notifier needs.
type SubscriptionStore interface {
	ListByUser(userID int64) ([]model.PushSubscription, error)
	DeleteByEndpoint(endpoint string) error
}

type sender interface {
	Send(sub *model.PushSubscription, payload Payload) error
}

type job struct {
	userID  int64
	payload Payload
}

// Notifier delivers notifications to every device a user subscribed, off the
// request path. Jobs are dropped when the queue is full.
type Notifier struct {
	mu      sync.RWMutex
	service sender
	subs    SubscriptionStore
	logger  *slog.Logger
	queue   chan job
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewNotifier(svc *Service, subs SubscriptionStore, logger *slog.Logger) *Notifier {
	return newNotifier(svc, subs, logger)
}

func newNotifier(svc sender, subs SubscriptionStore, logger *slog.Logger) *Notifier {
	return &Notifier{
		service: svc,
		subs:    subs,
		logger:  logger.With("component", "push"),
		queue:   make(chan job, 64),
	}
}

// Start begins the delivery loop.
func (n *Notifier) Start(ctx context.Context) {
	n.mu.Lock()
	ctx, n.cancel = context.WithCancel(ctx)
	n.done = make(chan struct{})
	n.mu.Unlock()

	go func() {
		defer close(n.done)
		for {
			select {
			case <-ctx.Done():
				return
			case j := <-n.queue:
				n.deliver(j.userID, j.payload)
			}
		}
	}()
}

// Stop gracefully stops the delivery loop. Queued jobs are discarded.
func (n *Notifier) Stop() {
	n.mu.RLock()
	cancel := n.cancel
	done := n.done
	n.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Notify queues payload for all of userID's subscriptions.
func (n *Notifier) Notify(userID int64, payload Payload) {
	select {
	case n.queue <- job{userID: userID, payload: payload}:
	default:
		n.logger.Warn("push queue full, dropping notification", "user_id", userID, "tag", payload.Tag)
	}
}

func (n *Notifier) deliver(userID int64, payload Payload) {
	subs, err := n.subs.ListByUser(userID)
	if err != nil {
		n.logger.Error("list subscriptions", "user_id", userID, "error", err)
		return
	}

	for i := range subs {
		sub := &subs[i]
		err := n.service.Send(sub, payload)
		switch {
		case errors.Is(err, ErrExpired):
			if err := n.subs.DeleteByEndpoint(sub.Endpoint); err != nil {
				n.logger.Error("remove expired subscription", "id", sub.ID, "error", err)
			} else {
				n.logger.Info("removed expired subscription", "id", sub.ID)
			}
		case err != nil:
			n.logger.Warn("push send failed", "id", sub.ID, "error", err)
		}
	}
}
