package main

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/dshills/dbgcore/internal/location"
)

// terminal owns stdin. Lines go to the command shell unless the source
// resolver is waiting for a path, in which case the next line answers it.
type terminal struct {
	lines   chan string
	asks    chan struct{}
	answers *io.PipeWriter
	prompt  *location.LinePrompter
}

func newTerminal(in io.Reader, out io.Writer) *terminal {
	pr, pw := io.Pipe()
	t := &terminal{
		lines:   make(chan string),
		asks:    make(chan struct{}),
		answers: pw,
		prompt:  location.NewLinePrompter(pr, out),
	}
	go t.read(in)
	return t
}

func (t *terminal) read(in io.Reader) {
	defer close(t.lines)
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		t.lines <- sc.Text()
	}
}

// Locate implements location.Prompter. It blocks until the shell hands it
// the next input line.
func (t *terminal) Locate(ctx context.Context, name string) (location.Answer, error) {
	select {
	case t.asks <- struct{}{}:
	case <-ctx.Done():
		return location.Answer{}, ctx.Err()
	}
	return t.prompt.Locate(ctx, name)
}

// next returns the next line meant for the shell. ok is false at end of
// input or when ctx is done.
func (t *terminal) next(ctx context.Context) (string, bool) {
	for {
		select {
		case <-ctx.Done():
			return "", false
		case <-t.asks:
			line, ok := <-t.lines
			if !ok {
				_ = t.answers.Close()
				return "", false
			}
			if _, err := fmt.Fprintln(t.answers, line); err != nil {
				return "", false
			}
		case line, ok := <-t.lines:
			return line, ok
		}
	}
}

func (t *terminal) Close() error {
	return t.answers.Close()
}
