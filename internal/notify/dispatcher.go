package notify

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ricirt/feedhub/internal/domain"
)

// Presence resolves a user to their live connection.
type Presence interface {
	Lookup(userID string) (string, bool)
}

// Sender writes an event to a connection without waiting for delivery.
type Sender interface {
	Send(connID, event string, payload any)
}

// Payload is the body of a notification event as seen by clients.
type Payload struct {
	Kind      domain.NotificationKind `json:"kind"`
	Message   string                  `json:"message"`
	ActorID   string                  `json:"actorId,omitempty"`
	CreatedAt time.Time               `json:"createdAt"`
}

// Hooks carries the metric callbacks injected by main.
type Hooks struct {
	OnDelivered func(kind domain.NotificationKind)
	OnDropped   func(kind domain.NotificationKind)
}

// Dispatcher routes notifications to recipients that are online. Delivery is
// best effort: an offline recipient's notification is dropped, and transport
// failures are never reported back to the caller.
type Dispatcher struct {
	presence    Presence
	sender      Sender
	concurrency int
	logger      *zap.Logger

	onDelivered func(domain.NotificationKind)
	onDropped   func(domain.NotificationKind)
}

// NewDispatcher builds a dispatcher. concurrency bounds FanOut.
func NewDispatcher(presence Presence, sender Sender, concurrency int, logger *zap.Logger, hooks Hooks) *Dispatcher {
	if concurrency < 1 {
		concurrency = 1
	}
	if hooks.OnDelivered == nil {
		hooks.OnDelivered = func(domain.NotificationKind) {}
	}
	if hooks.OnDropped == nil {
		hooks.OnDropped = func(domain.NotificationKind) {}
	}
	return &Dispatcher{
		presence:    presence,
		sender:      sender,
		concurrency: concurrency,
		logger:      logger,
		onDelivered: hooks.OnDelivered,
		onDropped:   hooks.OnDropped,
	}
}

// Dispatch sends n to its recipient if they are connected and reports
// whether it was handed to the transport. A miss is not an error.
func (d *Dispatcher) Dispatch(_ context.Context, n domain.Notification) bool {
	connID, ok := d.presence.Lookup(n.RecipientID)
	if !ok {
		d.onDropped(n.Kind)
		d.logger.Debug("recipient offline, notification dropped",
			zap.String("recipient_id", n.RecipientID),
			zap.String("kind", string(n.Kind)),
		)
		return false
	}

	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	d.sender.Send(connID, domain.NotificationEvent, Payload{
		Kind:      n.Kind,
		Message:   n.Message,
		ActorID:   n.ActorID,
		CreatedAt: n.CreatedAt,
	})
	d.onDelivered(n.Kind)
	return true
}

// FanOutResult reports how far a fan-out got.
type FanOutResult struct {
	// Delivered counts recipients that were online and handed to the transport.
	Delivered int
	// Unattempted lists recipients never looked up because the fan-out was
	// abandoned first. It is empty when FanOut returns a nil error.
	Unattempted []string
}

// FanOut dispatches the same notification to every recipient with at most
// the configured number in flight. If ctx ends part way it returns ctx's
// error along with the recipients it never reached.
func (d *Dispatcher) FanOut(ctx context.Context, recipients []string, template domain.Notification) (FanOutResult, error) {
	if template.CreatedAt.IsZero() {
		template.CreatedAt = time.Now().UTC()
	}

	attempted := make([]bool, len(recipients))
	delivered := make([]bool, len(recipients))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)

	for i, recipient := range recipients {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			attempted[i] = true
			n := template
			n.RecipientID = recipient
			delivered[i] = d.Dispatch(gctx, n)
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	var res FanOutResult
	for i, r := range recipients {
		switch {
		case delivered[i]:
			res.Delivered++
		case !attempted[i]:
			res.Unattempted = append(res.Unattempted, r)
		}
	}
	return res, err
}
