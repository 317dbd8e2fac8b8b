package executor

import (
	"bytes"
	"errors"
	"io"
	"os/exec"
	"strings"
	"sync"
)

// streamResult captures stdout/stderr emitted by a streaming command run.
type streamResult struct {
	Stdout string
	Stderr string
}

// primaryOutput returns stderr if present, otherwise stdout.
func (r streamResult) primaryOutput() string {
	if r.Stderr != "" {
		return r.Stderr
	}
	return r.Stdout
}

// runStreaming copies the command's output to the configured writers while
// collecting it. A non-zero exit is reported as an exit code, not an error.
func runStreaming(cmd *exec.Cmd) (int, streamResult, error) {
	var stdoutBuf, stderrBuf bytes.Buffer

	if cmd.Stdout != nil {
		cmd.Stdout = io.MultiWriter(cmd.Stdout, &stdoutBuf)
	} else {
		cmd.Stdout = &stdoutBuf
	}
	if cmd.Stderr != nil {
		cmd.Stderr = io.MultiWriter(cmd.Stderr, &stderrBuf)
	} else {
		cmd.Stderr = &stderrBuf
	}

	err := cmd.Run()
	res := streamResult{
		Stdout: strings.TrimSpace(stdoutBuf.String()),
		Stderr: strings.TrimSpace(stderrBuf.String()),
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), res, nil
	}
	if err != nil {
		return -1, res, err
	}
	return 0, res, nil
}

// Output serializes the lines written by concurrently running scripts and
// prefixes each one with the node it came from.
type Output struct {
	mu sync.Mutex
	w  io.Writer
}

// NewOutput wraps w. A nil writer discards output.
func NewOutput(w io.Writer) *Output {
	if w == nil {
		w = io.Discard
	}
	return &Output{w: w}
}

// For returns a writer prefixing every line with the node identifier.
func (o *Output) For(nodeID string) io.Writer {
	if o == nil {
		return nil
	}
	return &prefixWriter{out: o, prefix: "[" + nodeID + "] "}
}

type prefixWriter struct {
	out     *Output
	prefix  string
	pending []byte
}

func (p *prefixWriter) Write(b []byte) (int, error) {
	p.pending = append(p.pending, b...)
	for {
		i := bytes.IndexByte(p.pending, '\n')
		if i < 0 {
			break
		}
		if err := p.emit(p.pending[:i+1]); err != nil {
			return 0, err
		}
		p.pending = p.pending[i+1:]
	}
	return len(b), nil
}

// Flush writes a trailing partial line.
func (p *prefixWriter) Flush() error {
	if len(p.pending) == 0 {
		return nil
	}
	line := append(p.pending, '\n')
	p.pending = nil
	return p.emit(line)
}

func (p *prefixWriter) emit(line []byte) error {
	p.out.mu.Lock()
	defer p.out.mu.Unlock()
	_, err := io.WriteString(p.out.w, p.prefix+string(line))
	return err
}

type flusher interface {
	Flush() error
}

func flush(w io.Writer) {
	if f, ok := w.(flusher); ok {
		_ = f.Flush()
	}
}
