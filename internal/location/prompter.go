package location

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Answer is a reply to a request for a missing source file.
type Answer struct {
	// Path is the file the user pointed at. Empty means no answer.
	Path string
	// Ignore asks never to prompt for this file again in the session.
	Ignore bool
}

// Prompter asks the user where a missing source file lives.
type Prompter interface {
	Locate(ctx context.Context, name string) (Answer, error)
}

// PrompterFunc adapts a function to the Prompter interface.
type PrompterFunc func(ctx context.Context, name string) (Answer, error)

// Locate calls f.
func (f PrompterFunc) Locate(ctx context.Context, name string) (Answer, error) {
	return f(ctx, name)
}

// IgnoreReply is the line a LinePrompter user types to stop being asked.
const IgnoreReply = "-"

// LinePrompter prompts on a writer and reads one line per question.
type LinePrompter struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

// NewLinePrompter returns a prompter reading answers from in and writing
// questions to out.
func NewLinePrompter(in io.Reader, out io.Writer) *LinePrompter {
	return &LinePrompter{in: bufio.NewReader(in), out: out}
}

// Locate asks for name. An empty line is no answer and IgnoreReply ignores
// the file. End of input is treated as no answer.
func (p *LinePrompter) Locate(ctx context.Context, name string) (Answer, error) {
	if err := ctx.Err(); err != nil {
		return Answer{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := fmt.Fprintf(p.out, "cannot find source file %q\nenter its path (%q to stop asking): ", name, IgnoreReply); err != nil {
		return Answer{}, fmt.Errorf("prompt: %w", err)
	}
	line, err := p.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return Answer{}, fmt.Errorf("prompt: %w", err)
	}
	line = strings.TrimSpace(line)
	switch line {
	case "":
		return Answer{}, nil
	case IgnoreReply:
		return Answer{Ignore: true}, nil
	default:
		return Answer{Path: line}, nil
	}
}
