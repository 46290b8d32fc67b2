package messaging

import (
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/AgentMint/internal/models"
)

// emitter owns the receipt and response channels shared by every transport.
type emitter struct {
	name      string
	receipts  chan models.Receipt
	responses chan models.Response
	mu        sync.RWMutex
	stopped   bool
}

func newEmitter(name string) emitter {
	return emitter{
		name:      name,
		receipts:  make(chan models.Receipt, DefaultChannelBufferSize),
		responses: make(chan models.Response, DefaultChannelBufferSize),
	}
}

func (e *emitter) isStopped() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stopped
}

// stop marks the emitter stopped and closes its channels. Emits hold the
// read lock while sending, so no send can race the close. It reports false
// if already stopped.
func (e *emitter) stop() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return false
	}
	e.stopped = true
	close(e.receipts)
	close(e.responses)
	return true
}

func (e *emitter) safeEmitReceipt(receipt models.Receipt) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.stopped {
		return
	}
	select {
	case e.receipts <- receipt:
	case <-time.After(DefaultChannelTimeout):
		slog.Warn(e.name+" receipts channel blocked, dropping receipt", "to", receipt.To)
	}
}

func (e *emitter) safeEmitResponse(response models.Response) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.stopped {
		slog.Warn(e.name+" dropping inbound response (service stopped)", "from", response.From)
		return
	}
	select {
	case e.responses <- response:
		slog.Debug(e.name+" emitted inbound response", "from", response.From, "message_id", response.MessageID)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn(e.name+" responses channel blocked, dropping message", "from", response.From)
	}
}

// Receipts returns the channel for sent message receipts
func (e *emitter) Receipts() <-chan models.Receipt {
	return e.receipts
}

// Responses returns the channel for incoming messages
func (e *emitter) Responses() <-chan models.Response {
	return e.responses
}
