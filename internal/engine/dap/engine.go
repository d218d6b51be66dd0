package dap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/go-dap"
	"github.com/smallnest/chanx"

	"github.com/dshills/dbgcore/internal/engine"
)

// Options configures an Engine.
type Options struct {
	Log logr.Logger

	// Preset names the adapter preset. Empty means "generic".
	Preset string

	// Command and Args override the preset's adapter command line.
	Command string
	Args    []string

	// Address connects to an adapter that is already listening instead of
	// spawning one.
	Address string

	// ConnectTimeout bounds connection retries to a socket adapter.
	ConnectTimeout time.Duration

	// StopOnEntry asks the adapter to stop at the program entry point.
	StopOnEntry bool
}

type pendingReply struct {
	command string
	reply   func(dap.ResponseMessage)
}

// Engine is an engine.Debugger speaking DAP to one adapter.
type Engine struct {
	log         logr.Logger
	t           Transport
	preset      Preset
	stopOnEntry bool

	events     *chanx.UnboundedChan[engine.Event]
	readerDone chan struct{}

	seq atomic.Int64

	mu           sync.Mutex
	pending      map[int]pendingReply
	caps         dap.Capabilities
	initialized  bool
	configured   bool
	runWanted    bool
	deferred     []func()
	exited       bool
	threadID     int
	frameID      int
	bps          *breakpoints
	closed       bool
	eventsClosed bool
}

var _ engine.Debugger = (*Engine)(nil)

// Start connects to the adapter described by opts, runs the initialize
// handshake and returns the ready engine.
func Start(ctx context.Context, opts Options) (*Engine, error) {
	preset, err := LookupPreset(presetName(opts.Preset))
	if err != nil {
		return nil, err
	}

	var t Transport
	switch {
	case opts.Address != "":
		t, err = Dial(ctx, opts.Address, opts.ConnectTimeout)
	case preset.Connection == ConnectSocket:
		t, err = spawnSocket(ctx, preset, opts)
	default:
		t, err = spawnStdio(preset, opts)
	}
	if err != nil {
		return nil, err
	}

	e, err := New(t, opts)
	if err != nil {
		_ = t.Close()
		return nil, err
	}
	if err := e.Initialize(ctx); err != nil {
		_ = e.Close()
		return nil, err
	}
	return e, nil
}

func presetName(name string) string {
	if name == "" {
		return "generic"
	}
	return name
}

func spawnStdio(preset Preset, opts Options) (Transport, error) {
	cmd, err := preset.command(opts.Command, opts.Args, "")
	if err != nil {
		return nil, err
	}
	p, err := startProcess(cmd)
	if err != nil {
		return nil, err
	}
	opts.Log.Info("adapter started", "preset", preset.Name, "command", cmd.Path, "pid", cmd.Process.Pid)
	return p.transport(), nil
}

func spawnSocket(ctx context.Context, preset Preset, opts Options) (Transport, error) {
	addr, err := freeAddress()
	if err != nil {
		return nil, err
	}
	cmd, err := preset.command(opts.Command, opts.Args, addr)
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start adapter %s: %w", cmd.Path, err)
	}
	proc := &process{cmd: cmd}
	opts.Log.Info("adapter started", "preset", preset.Name, "command", cmd.Path, "pid", cmd.Process.Pid, "address", addr)

	t, err := Dial(ctx, addr, opts.ConnectTimeout)
	if err != nil {
		_ = proc.Close()
		return nil, err
	}
	return &ownedTransport{Transport: t, owned: proc}, nil
}

// ownedTransport also closes the adapter process it talks to.
type ownedTransport struct {
	Transport
	owned io.Closer
}

func (t *ownedTransport) Close() error {
	return errors.Join(t.Transport.Close(), t.owned.Close())
}

// New creates an engine over an established transport and starts reading.
// Call Initialize before any request.
func New(t Transport, opts Options) (*Engine, error) {
	preset, err := LookupPreset(presetName(opts.Preset))
	if err != nil {
		return nil, err
	}
	e := &Engine{
		log:         opts.Log.WithName("dap"),
		t:           t,
		preset:      preset,
		stopOnEntry: opts.StopOnEntry,
		events:      chanx.NewUnboundedChan[engine.Event](context.Background(), 16),
		readerDone:  make(chan struct{}),
		pending:     make(map[int]pendingReply),
		bps:         newBreakpoints(),
	}
	go e.readLoop()
	return e, nil
}

// Initialize runs the initialize handshake and records the adapter's
// capabilities.
func (e *Engine) Initialize(ctx context.Context) error {
	req := &dap.InitializeRequest{
		Request: request("initialize"),
		Arguments: dap.InitializeRequestArguments{
			ClientID:                 "dbgcore",
			ClientName:               "dbgcore",
			AdapterID:                e.preset.AdapterID,
			Locale:                   "en-US",
			LinesStartAt1:            true,
			ColumnsStartAt1:          true,
			PathFormat:               "path",
			SupportsVariableType:     true,
			SupportsMemoryReferences: true,
		},
	}
	resp, err := e.call(ctx, req)
	if err != nil {
		return fmt.Errorf("initialize adapter: %w", err)
	}
	ir, ok := resp.(*dap.InitializeResponse)
	if !ok {
		return fmt.Errorf("initialize adapter: unexpected %T", resp)
	}
	e.mu.Lock()
	e.caps = ir.Body
	e.mu.Unlock()
	e.log.Info("adapter initialized", "preset", e.preset.Name,
		"configurationDone", ir.Body.SupportsConfigurationDoneRequest,
		"disassemble", ir.Body.SupportsDisassembleRequest,
		"dataBreakpoints", ir.Body.SupportsDataBreakpoints)
	return nil
}

// Capabilities returns what the adapter declared during Initialize.
func (e *Engine) Capabilities() dap.Capabilities {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.caps
}

// Events implements engine.Debugger.
func (e *Engine) Events() <-chan engine.Event {
	return e.events.Out
}

// Close implements engine.Debugger. It closes the transport, which also
// stops a spawned adapter, and then the event channel.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.pending = make(map[int]pendingReply)
	e.deferred = nil
	e.mu.Unlock()

	err := e.t.Close()
	<-e.readerDone
	e.closeEvents()
	return err
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

func (e *Engine) closeEvents() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.eventsClosed {
		return
	}
	e.eventsClosed = true
	close(e.events.In)
}

// emit queues ev for the consumer. Events after the stream closed are
// dropped.
func (e *Engine) emit(ev engine.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.eventsClosed {
		return
	}
	e.events.In <- ev
}

func request(command string) dap.Request {
	return dap.Request{
		ProtocolMessage: dap.ProtocolMessage{Type: "request"},
		Command:         command,
	}
}

// send writes req with a fresh sequence number. reply, if non-nil, runs on
// the reader goroutine when the matching response arrives.
func (e *Engine) send(req dap.RequestMessage, reply func(dap.ResponseMessage)) error {
	r := req.GetRequest()
	r.Seq = int(e.seq.Add(1))

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if reply != nil {
		e.pending[r.Seq] = pendingReply{command: r.Command, reply: reply}
	}
	e.mu.Unlock()

	e.log.V(1).Info("request", "command", r.Command, "seq", r.Seq)
	if err := e.t.WriteMessage(req); err != nil {
		e.mu.Lock()
		delete(e.pending, r.Seq)
		e.mu.Unlock()
		return fmt.Errorf("send %s: %w", r.Command, err)
	}
	return nil
}

// call sends req and waits for its response. The response is returned only
// when it reports success.
func (e *Engine) call(ctx context.Context, req dap.RequestMessage) (dap.ResponseMessage, error) {
	done := make(chan dap.ResponseMessage, 1)
	if err := e.send(req, func(resp dap.ResponseMessage) { done <- resp }); err != nil {
		return nil, err
	}
	select {
	case resp := <-done:
		if err := responseError(resp); err != nil {
			return nil, err
		}
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// responseError converts a failed response into an error.
func responseError(resp dap.ResponseMessage) error {
	r := resp.GetResponse()
	if r.Success {
		return nil
	}
	msg := r.Message
	if msg == "" {
		msg = "request failed"
	}
	return fmt.Errorf("%s: %s", r.Command, msg)
}

// failed builds the response the engine hands to pending callbacks when the
// adapter will never answer.
func failed(command string, err error) dap.ResponseMessage {
	return &dap.ErrorResponse{Response: dap.Response{
		ProtocolMessage: dap.ProtocolMessage{Type: "response"},
		Command:         command,
		Success:         false,
		Message:         err.Error(),
	}}
}

func (e *Engine) readLoop() {
	defer close(e.readerDone)
	for {
		msg, err := e.t.ReadMessage()
		if err != nil {
			var fieldErr *dap.DecodeProtocolMessageFieldError
			if errors.As(err, &fieldErr) {
				e.log.V(1).Info("skipping undecodable message", "error", err.Error())
				continue
			}
			if e.isClosed() {
				return
			}
			e.adapterLost(err)
			return
		}
		e.dispatch(msg)
	}
}

// adapterLost fails every pending request, reports the engine dead and
// closes the event stream.
func (e *Engine) adapterLost(err error) {
	e.log.Error(err, "adapter connection lost")
	e.mu.Lock()
	pending := e.pending
	e.pending = make(map[int]pendingReply)
	e.mu.Unlock()

	cause := fmt.Errorf("%w: %v", ErrAdapterGone, err)
	for _, p := range pending {
		p.reply(failed(p.command, cause))
	}
	e.emit(&engine.EngineDiedEvent{Err: cause})
	e.closeEvents()
}

func (e *Engine) dispatch(msg dap.Message) {
	switch m := msg.(type) {
	case dap.ResponseMessage:
		r := m.GetResponse()
		e.mu.Lock()
		p, ok := e.pending[r.RequestSeq]
		delete(e.pending, r.RequestSeq)
		e.mu.Unlock()
		if !ok {
			e.log.V(1).Info("unmatched response", "command", r.Command, "requestSeq", r.RequestSeq)
			return
		}
		p.reply(m)
	case dap.EventMessage:
		e.handleEvent(m)
	case dap.RequestMessage:
		e.refuse(m)
	default:
		e.log.V(1).Info("ignoring message", "type", fmt.Sprintf("%T", msg))
	}
}

// refuse answers a reverse request, which the engine never advertises
// support for.
func (e *Engine) refuse(m dap.RequestMessage) {
	r := m.GetRequest()
	e.log.Info("refusing adapter request", "command", r.Command)
	resp := &dap.ErrorResponse{Response: dap.Response{
		ProtocolMessage: dap.ProtocolMessage{Seq: int(e.seq.Add(1)), Type: "response"},
		RequestSeq:      r.Seq,
		Command:         r.Command,
		Success:         false,
		Message:         "not supported",
	}}
	if err := e.t.WriteMessage(resp); err != nil {
		e.log.Error(err, "cannot refuse adapter request", "command", r.Command)
	}
}
