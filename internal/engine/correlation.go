package engine

import (
	"sync"

	"github.com/hstp/node/internal/hstp"
	"github.com/hstp/node/internal/metrics"
)

// correlationTable matches outbound expect-response sends with their
// eventual reply by the original message's id (§4.6's "correlation table
// for outbound expect-response messages"). Insert/lookup/complete use short
// critical sections only, per §5's concurrency model.
type correlationTable struct {
	mu      sync.Mutex
	waiters map[string]chan *hstp.Message
}

func newCorrelationTable() *correlationTable {
	return &correlationTable{waiters: make(map[string]chan *hstp.Message)}
}

// register creates a waiter channel for messageID, to be read by the caller
// awaiting the reply. Buffered by one so complete never blocks on a caller
// that already gave up.
func (t *correlationTable) register(messageID string) <-chan *hstp.Message {
	ch := make(chan *hstp.Message, 1)
	t.mu.Lock()
	t.waiters[messageID] = ch
	n := len(t.waiters)
	t.mu.Unlock()
	metrics.SetCorrelationPending(n)
	return ch
}

// cancel removes a waiter without completing it, for use by a caller that
// stops waiting (timeout, context cancellation).
func (t *correlationTable) cancel(messageID string) {
	t.mu.Lock()
	delete(t.waiters, messageID)
	n := len(t.waiters)
	t.mu.Unlock()
	metrics.SetCorrelationPending(n)
}

// complete delivers reply to the waiter registered for inReplyTo, if any,
// reporting whether a waiter existed. A reply with no matching waiter is
// not an error (§4.7: "otherwise log and drop").
func (t *correlationTable) complete(inReplyTo string, reply *hstp.Message) bool {
	t.mu.Lock()
	ch, ok := t.waiters[inReplyTo]
	if ok {
		delete(t.waiters, inReplyTo)
	}
	n := len(t.waiters)
	t.mu.Unlock()

	if !ok {
		return false
	}
	metrics.SetCorrelationPending(n)
	ch <- reply
	return true
}
