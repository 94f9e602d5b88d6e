package cart

import (
	"hash/fnv"
	"sync"

	"go.uber.org/zap"

	"gofalre.io/bulls/metrics"
	"gofalre.io/bulls/notify"
)

const lockStripes = 64

// Carts hands out the Store of each session. Sessions share a fixed set of
// striped locks so mutations of one session never interleave.
type Carts struct {
	backend  Backend
	locks    [lockStripes]sync.Mutex
	notifier notify.Notifier
	metrics  *metrics.Registry
	logger   *zap.Logger
}

func NewCarts(backend Backend, notifier notify.Notifier, metrics *metrics.Registry, logger *zap.Logger) *Carts {
	return &Carts{
		backend:  backend,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
	}
}

func (c *Carts) For(session string) *Store {
	h := fnv.New32a()
	_, _ = h.Write([]byte(session))
	mu := &c.locks[h.Sum32()%lockStripes]
	return newStore(mu, c.backend.Storage(session), c.notifier, c.metrics, c.logger.With(zap.String("cart_session", session)))
}
