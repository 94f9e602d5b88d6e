package bulls

import (
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"gofalre.io/bulls/notify"
)

// CartChangedSubject carries the zero-payload cart-changed signal between
// instances.
const CartChangedSubject = "bulls.cart.changed"

// natsConnection is the part of *nats.Conn the event manager needs.
type natsConnection interface {
	Publish(subj string, data []byte) error
	Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error)
}

var _ natsConnection = (*nats.Conn)(nil)

var _ notify.Notifier = (*EventManager)(nil)

// EventManager bridges local cart-changed signals to NATS and back.
type EventManager struct {
	natsConn natsConnection
	local    notify.Notifier
	sub      *nats.Subscription
	logger   *zap.Logger
}

func NewEventManager(natsConn natsConnection, local notify.Notifier, logger *zap.Logger) *EventManager {
	return &EventManager{
		natsConn: natsConn,
		local:    local,
		logger:   logger,
	}
}

// Publish tells other instances that a cart changed.
func (em *EventManager) Publish() {
	if err := em.natsConn.Publish(CartChangedSubject, nil); err != nil {
		em.logger.Warn("Failed to publish cart change", zap.Error(err))
	}
}

// SubscribeToEvents relays cart changes announced by other instances to the
// local subscribers through the worker pool.
func (em *EventManager) SubscribeToEvents(wp *WorkerPool) error {
	sub, err := em.natsConn.Subscribe(CartChangedSubject, func(*nats.Msg) {
		wp.Submit(em.local.Publish)
	})
	if err != nil {
		return err
	}
	em.sub = sub
	return nil
}

func (em *EventManager) Close() {
	if em.sub == nil {
		return
	}
	if err := em.sub.Unsubscribe(); err != nil {
		em.logger.Warn("Failed to unsubscribe from cart changes", zap.Error(err))
	}
	em.sub = nil
}
