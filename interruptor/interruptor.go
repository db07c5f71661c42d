package interruptor

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/squareup/pqstream/errors"
)

// CheckInterval is how many rows long running loops process between cancellation checks.
const CheckInterval = 1000

// Interruptor lets one goroutine (e.g. a signal handler) cancel the statement another goroutine is running.
type Interruptor struct {
	lock   sync.Mutex
	cancel context.CancelFunc
	ctx    context.Context
}

// New returns an Interruptor and the context that is cancelled when Interrupt is called.
func New(parent context.Context) (*Interruptor, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	return &Interruptor{ctx: ctx, cancel: cancel}, ctx
}

func (i *Interruptor) Interrupt() {
	i.lock.Lock()
	defer i.lock.Unlock()
	if i.cancel != nil {
		log.Debug("interrupting statement")
		i.cancel()
	}
}

func (i *Interruptor) Interrupted() bool {
	return i.ctx.Err() != nil
}

// Release frees the context resources. The Interruptor is not usable afterwards.
func (i *Interruptor) Release() {
	i.lock.Lock()
	defer i.lock.Unlock()
	if i.cancel != nil {
		i.cancel()
		i.cancel = nil
	}
}

// MaybeInterrupt is called on every iteration of a long running loop. Only every CheckInterval iterations is the
// context actually checked, so cancellation is coarse.
func MaybeInterrupt(ctx context.Context, iteration int) error {
	if iteration%CheckInterval != 0 {
		return nil
	}
	if ctx.Err() != nil {
		return errors.NewInterruptedError()
	}
	return nil
}
