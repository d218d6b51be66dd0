package dap

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os/exec"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/go-dap"
)

// ErrTransportClosed is returned by a transport used after Close.
var ErrTransportClosed = errors.New("transport closed")

// Transport carries DAP messages to and from a debug adapter.
type Transport interface {
	// ReadMessage blocks until the next message arrives.
	ReadMessage() (dap.Message, error)
	// WriteMessage sends one message. It is safe for concurrent use.
	WriteMessage(msg dap.Message) error
	// Close releases the transport. Blocked reads return an error.
	Close() error
}

// streamTransport frames messages over a reader and a writer.
type streamTransport struct {
	reader *bufio.Reader
	writer *bufio.Writer
	closer io.Closer

	writeMu sync.Mutex

	mu     sync.Mutex
	closed bool
}

// NewStreamTransport creates a transport reading from r and writing to w.
// Close closes c, which should unblock r.
func NewStreamTransport(r io.Reader, w io.Writer, c io.Closer) Transport {
	return &streamTransport{
		reader: bufio.NewReader(r),
		writer: bufio.NewWriter(w),
		closer: c,
	}
}

// NewConnTransport creates a transport over a network connection.
func NewConnTransport(conn net.Conn) Transport {
	return NewStreamTransport(conn, conn, conn)
}

func (t *streamTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *streamTransport) ReadMessage() (dap.Message, error) {
	if t.isClosed() {
		return nil, ErrTransportClosed
	}
	msg, err := dap.ReadProtocolMessage(t.reader)
	if err != nil {
		return nil, fmt.Errorf("read DAP message: %w", err)
	}
	return msg, nil
}

func (t *streamTransport) WriteMessage(msg dap.Message) error {
	if t.isClosed() {
		return ErrTransportClosed
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := dap.WriteProtocolMessage(t.writer, msg); err != nil {
		return fmt.Errorf("write DAP message: %w", err)
	}
	if err := t.writer.Flush(); err != nil {
		return fmt.Errorf("flush DAP message: %w", err)
	}
	return nil
}

func (t *streamTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if t.closer == nil {
		return nil
	}
	return t.closer.Close()
}

// Dial connects to an adapter listening on address, retrying with
// exponential backoff until timeout elapses or ctx is done.
func Dial(ctx context.Context, address string, timeout time.Duration) (Transport, error) {
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(50*time.Millisecond),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(0.1),
		backoff.WithMaxInterval(time.Second),
		backoff.WithMaxElapsedTime(timeout),
	)

	var d net.Dialer
	conn, err := backoff.RetryWithData(func() (net.Conn, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		c, dialErr := d.DialContext(attemptCtx, "tcp", address)
		if dialErr != nil && ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return c, dialErr
	}, backoff.WithContext(b, ctx))
	if err != nil {
		return nil, fmt.Errorf("dial adapter at %s: %w", address, err)
	}
	return NewConnTransport(conn), nil
}

// process is a spawned adapter whose stdio carries the protocol.
type process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	once sync.Once
	err  error
}

// startProcess runs cmd with its stdin and stdout as the protocol stream.
func startProcess(cmd *exec.Cmd) (*process, error) {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("adapter stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = stdin.Close()
		return nil, fmt.Errorf("adapter stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		_ = stdout.Close()
		return nil, fmt.Errorf("start adapter %s: %w", cmd.Path, err)
	}
	return &process{cmd: cmd, stdin: stdin, stdout: stdout}, nil
}

// Close closes the pipes and kills the adapter if it is still running.
func (p *process) Close() error {
	p.once.Do(func() {
		if p.stdin != nil {
			_ = p.stdin.Close()
		}
		if p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
		}
		err := p.cmd.Wait()
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			err = nil
		}
		p.err = err
	})
	return p.err
}

// transport returns the protocol stream over the adapter's stdio.
func (p *process) transport() Transport {
	return NewStreamTransport(p.stdout, p.stdin, p)
}
