package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Continuation receives the answer to a request and must not call Process.
// Engine answers, timeouts and cancellations run it on the session loop
// goroutine. When the engine rejects the request outright, or Shutdown
// fails it, it runs on the calling goroutine before that call returns.
type Continuation func(result any, err error)

// Request is an outstanding engine request awaiting its answer.
type Request struct {
	// ID is the correlation ID sent to the engine as the cookie.
	ID string
	// Op names the request.
	Op string

	then     Continuation
	done     chan struct{}
	result   any
	err      error
	timer    *time.Timer
	stopWait func() bool
}

// Done is closed when the request completes, after its continuation ran.
func (r *Request) Done() <-chan struct{} {
	return r.done
}

// Result returns the answer. It is only meaningful after Done is closed.
func (r *Request) Result() (any, error) {
	return r.result, r.err
}

// Wait blocks until the request completes or ctx is done.
func (r *Request) Wait(ctx context.Context) (any, error) {
	select {
	case <-r.done:
		return r.result, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// pendingTable maps correlation IDs to outstanding requests.
type pendingTable struct {
	mu       sync.Mutex
	requests map[string]*Request
	timeout  time.Duration
	post     func(loopMsg)
}

func newPendingTable(timeout time.Duration, post func(loopMsg)) *pendingTable {
	return &pendingTable{
		requests: make(map[string]*Request),
		timeout:  timeout,
		post:     post,
	}
}

// register creates a request. Its timeout and the cancellation of ctx are
// delivered through the loop.
func (p *pendingTable) register(ctx context.Context, op string, then Continuation) *Request {
	r := &Request{
		ID:   uuid.NewString(),
		Op:   op,
		then: then,
		done: make(chan struct{}),
	}
	id := r.ID

	r.timer = time.AfterFunc(p.timeout, func() {
		p.post(loopMsg{kind: msgTimeout, id: id})
	})
	if ctx.Done() != nil {
		r.stopWait = context.AfterFunc(ctx, func() {
			p.post(loopMsg{kind: msgCancel, id: id, err: ctx.Err()})
		})
	}

	p.mu.Lock()
	p.requests[id] = r
	p.mu.Unlock()
	return r
}

// complete finishes the request registered under id. It reports false when
// id is unknown or already completed.
func (p *pendingTable) complete(id string, result any, err error) bool {
	if id == "" {
		return false
	}
	p.mu.Lock()
	r, ok := p.requests[id]
	delete(p.requests, id)
	p.mu.Unlock()
	if !ok {
		return false
	}
	finish(r, result, err)
	return true
}

// failAll completes every outstanding request with err.
func (p *pendingTable) failAll(err error) {
	p.mu.Lock()
	reqs := p.requests
	p.requests = make(map[string]*Request)
	p.mu.Unlock()
	for _, r := range reqs {
		finish(r, nil, err)
	}
}

func (p *pendingTable) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

func finish(r *Request, result any, err error) {
	if r.timer != nil {
		r.timer.Stop()
	}
	if r.stopWait != nil {
		r.stopWait()
	}
	r.result, r.err = result, err
	if r.then != nil {
		r.then(result, err)
	}
	close(r.done)
}
