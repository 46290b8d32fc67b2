// Package messaging provides response handling functionality for the agent wizard.
package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/AgentMint/internal/models"
	"github.com/BTreeMap/AgentMint/internal/store"
)

const (
	// DefaultParticipantQueueSize bounds pending messages per participant.
	DefaultParticipantQueueSize = 16
	// DefaultQueueIdleTimeout is how long an idle participant worker lingers.
	DefaultQueueIdleTimeout = 30 * time.Second

	// StartCommand is the bot command that (re)starts the wizard.
	StartCommand = "start"
)

// ConversationHandler is implemented by the agent wizard flow.
type ConversationHandler interface {
	// Start resets the participant's session and sends the greeting.
	Start(ctx context.Context, participantID string) error
	// HandleMessage routes one inbound text message through the wizard.
	HandleMessage(ctx context.Context, participantID, text string) error
}

// responseRecorder persists inbound messages for auditing.
type responseRecorder interface {
	AddResponse(r models.Response) error
}

// ResponseHandler consumes inbound messages from a Service and hands them to
// the conversation flow. Messages from one participant are processed in
// arrival order by a dedicated worker; different participants run in parallel.
type ResponseHandler struct {
	msgService   Service
	conversation ConversationHandler
	dedup        store.DedupRepo
	recorder     responseRecorder
	errorMessage string
	idleTimeout  time.Duration
	queueSize    int

	mu       sync.Mutex
	queues   map[string]chan models.Response
	closed   bool
	started  bool
	wg       sync.WaitGroup
	quit     chan struct{}
	quitOnce sync.Once
	loopDone chan struct{}
}

// NewResponseHandler creates a new ResponseHandler. dedup and recorder may be nil.
func NewResponseHandler(msgService Service, conversation ConversationHandler, dedup store.DedupRepo, recorder responseRecorder) *ResponseHandler {
	return &ResponseHandler{
		msgService:   msgService,
		conversation: conversation,
		dedup:        dedup,
		recorder:     recorder,
		errorMessage: "⚠️ We encountered an issue processing your message. Please try again.",
		idleTimeout:  DefaultQueueIdleTimeout,
		queueSize:    DefaultParticipantQueueSize,
		queues:       make(map[string]chan models.Response),
		quit:         make(chan struct{}),
		loopDone:     make(chan struct{}),
	}
}

// ProcessResponse handles a single inbound message synchronously.
func (rh *ResponseHandler) ProcessResponse(ctx context.Context, response models.Response) error {
	canonicalFrom, err := rh.msgService.ValidateAndCanonicalizeRecipient(response.From)
	if err != nil {
		slog.Error("ResponseHandler ProcessResponse validation failed", "error", err, "from", response.From)
		return fmt.Errorf("invalid sender: %w", err)
	}
	response.From = canonicalFrom

	if response.MessageID != "" && rh.dedup != nil {
		fresh, err := rh.dedup.RecordInbound(response.MessageID, canonicalFrom)
		if err != nil {
			// A failed lookup must not drop the message.
			slog.Warn("ResponseHandler dedup check failed, processing anyway", "error", err, "message_id", response.MessageID)
		} else if !fresh {
			slog.Info("ResponseHandler skipping duplicate message", "from", canonicalFrom, "message_id", response.MessageID)
			return nil
		}
	}

	if rh.recorder != nil {
		if err := rh.recorder.AddResponse(response); err != nil {
			slog.Warn("ResponseHandler failed to record response", "error", err, "from", canonicalFrom)
		}
	}

	slog.Debug("ResponseHandler processing response", "from", canonicalFrom, "body_length", len(response.Body), "command", response.Command)

	if response.IsCommand(StartCommand) {
		err = rh.conversation.Start(ctx, canonicalFrom)
	} else {
		err = rh.conversation.HandleMessage(ctx, canonicalFrom, response.Body)
	}
	if err != nil {
		slog.Error("ResponseHandler conversation handling failed", "error", err, "from", canonicalFrom)
		if sendErr := rh.msgService.SendMessage(ctx, canonicalFrom, rh.errorMessage); sendErr != nil {
			slog.Error("ResponseHandler failed to send error message", "error", sendErr, "from", canonicalFrom)
		}
		return fmt.Errorf("conversation handling failed: %w", err)
	}

	if response.MessageID != "" && rh.dedup != nil {
		if err := rh.dedup.MarkProcessed(response.MessageID); err != nil {
			slog.Warn("ResponseHandler failed to mark message processed", "error", err, "message_id", response.MessageID)
		}
	}
	return nil
}

// Start begins processing responses from the messaging service.
// This should be called once to start the response processing loop.
func (rh *ResponseHandler) Start(ctx context.Context) {
	slog.Info("ResponseHandler starting response processing")
	rh.mu.Lock()
	rh.started = true
	rh.mu.Unlock()

	go func() {
		defer close(rh.loopDone)
		defer slog.Info("ResponseHandler stopped response processing")

		for {
			select {
			case response, ok := <-rh.msgService.Responses():
				if !ok {
					slog.Debug("ResponseHandler responses channel closed")
					rh.closeQueues()
					return
				}
				rh.enqueue(ctx, response)

			case <-rh.quit:
				rh.enqueuePending(ctx)
				rh.closeQueues()
				return

			case <-ctx.Done():
				slog.Debug("ResponseHandler stopping due to context cancellation")
				return
			}
		}
	}()
}

// Stop stops intake, lets every participant worker finish the messages
// already queued, and waits for them until ctx is done.
func (rh *ResponseHandler) Stop(ctx context.Context) error {
	rh.quitOnce.Do(func() { close(rh.quit) })

	rh.mu.Lock()
	started := rh.started
	rh.mu.Unlock()
	if started {
		select {
		case <-rh.loopDone:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	done := make(chan struct{})
	go func() {
		rh.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		slog.Warn("ResponseHandler stop timed out with workers still running", "active", rh.ActiveParticipants())
		return ctx.Err()
	}
}

// enqueuePending moves responses already buffered by the service onto
// participant queues without waiting for more.
func (rh *ResponseHandler) enqueuePending(ctx context.Context) {
	for {
		select {
		case response, ok := <-rh.msgService.Responses():
			if !ok {
				return
			}
			rh.enqueue(ctx, response)
		default:
			return
		}
	}
}

// closeQueues closes every participant queue so workers exit once drained.
func (rh *ResponseHandler) closeQueues() {
	rh.mu.Lock()
	defer rh.mu.Unlock()
	rh.closed = true
	for key, q := range rh.queues {
		close(q)
		delete(rh.queues, key)
	}
}

// enqueue appends the response to its participant's queue, starting a worker
// if none is running. A full queue drops the message so one busy participant
// cannot hold up dispatch for the others.
func (rh *ResponseHandler) enqueue(ctx context.Context, response models.Response) {
	key := response.From
	if canonical, err := rh.msgService.ValidateAndCanonicalizeRecipient(response.From); err == nil {
		key = canonical
	}

	rh.mu.Lock()
	defer rh.mu.Unlock()
	if rh.closed {
		slog.Warn("ResponseHandler dropping message after stop", "from", key, "message_id", response.MessageID)
		return
	}

	q, ok := rh.queues[key]
	if !ok {
		q = make(chan models.Response, rh.queueSize)
		rh.queues[key] = q
		rh.wg.Add(1)
		go rh.drain(ctx, key, q)
	}
	select {
	case q <- response:
	default:
		slog.Warn("ResponseHandler participant queue full, dropping message", "from", key, "message_id", response.MessageID, "queue_size", rh.queueSize)
	}
}

func (rh *ResponseHandler) drain(ctx context.Context, key string, q chan models.Response) {
	defer rh.wg.Done()
	idle := time.NewTimer(rh.idleTimeout)
	defer idle.Stop()

	for {
		select {
		case response, ok := <-q:
			if !ok {
				return
			}
			if err := rh.ProcessResponse(ctx, response); err != nil {
				slog.Error("ResponseHandler failed to process response", "error", err, "from", response.From)
			}
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(rh.idleTimeout)

		case <-idle.C:
			rh.mu.Lock()
			if len(q) == 0 && rh.queues[key] == q {
				delete(rh.queues, key)
				rh.mu.Unlock()
				return
			}
			rh.mu.Unlock()
			idle.Reset(rh.idleTimeout)

		case <-ctx.Done():
			return
		}
	}
}

// ActiveParticipants returns the number of participants with a running worker.
func (rh *ResponseHandler) ActiveParticipants() int {
	rh.mu.Lock()
	defer rh.mu.Unlock()
	return len(rh.queues)
}
