package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/grayridge/acphost/internal/common/apperr"
	"github.com/grayridge/acphost/internal/common/logger"
)

// Transport owns a spawned agent subprocess: its stdin writer, its framed
// stdout line channel, and a drained stderr log. Grounded on the
// process-management split in agentctl's interactive_lifecycle.go
// (spawn/PTY/readOutput/wait goroutines).
type Transport struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	lines  chan []byte
	framer *Framer
	log    *logger.Logger

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// Spawn starts the agent's command and begins draining its stdout into a
// buffered line channel and its stderr into the logger. The returned
// Transport must be closed with Terminate.
func Spawn(ctx context.Context, name string, args []string, env []string, dir string, log *logger.Logger) (*Transport, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	cmd.Dir = dir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, apperr.Wrap(apperr.ConnectionFailed, "failed to open stdin pipe", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, apperr.Wrap(apperr.ConnectionFailed, "failed to open stdout pipe", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, apperr.Wrap(apperr.ConnectionFailed, "failed to open stderr pipe", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, apperr.Wrap(apperr.ConnectionFailed, fmt.Sprintf("failed to spawn agent process %q", name), err)
	}

	t := &Transport{
		cmd:    cmd,
		stdin:  stdin,
		lines:  make(chan []byte, 256),
		framer: NewFramer(stdout, log),
		log:    log.WithFields(zap.String("component", "transport"), zap.String("agent_cmd", name)),
		done:   make(chan struct{}),
	}

	go t.readLoop()
	go t.drainStderr(stderr)

	return t, nil
}

func (t *Transport) readLoop() {
	defer close(t.lines)
	for {
		line, ok := t.framer.Next()
		if !ok {
			if err := t.framer.Err(); err != nil {
				t.log.Error("stdout read loop error", zap.Error(err))
			}
			return
		}
		select {
		case t.lines <- line:
		case <-t.done:
			return
		}
	}
}

func (t *Transport) drainStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		t.log.Warn("agent stderr", zap.String("line", scanner.Text()))
	}
}

// Send writes a single framed line (json + newline) to the agent's stdin.
func (t *Transport) Send(line []byte) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return apperr.New(apperr.ConnectionFailed, "transport closed")
	}
	t.mu.Unlock()

	if len(line) == 0 || line[len(line)-1] != '\n' {
		line = append(line, '\n')
	}
	if _, err := t.stdin.Write(line); err != nil {
		return apperr.Wrap(apperr.ConnectionFailed, "failed to write to agent stdin", err)
	}
	return nil
}

// RecvLine blocks until a line is available, the context is cancelled, or
// the transport is closed.
func (t *Transport) RecvLine(ctx context.Context) ([]byte, error) {
	select {
	case line, ok := <-t.lines:
		if !ok {
			return nil, apperr.New(apperr.ConnectionFailed, "agent stdout closed")
		}
		return line, nil
	case <-ctx.Done():
		return nil, apperr.Wrap(apperr.Timeout, "timed out waiting for agent message", ctx.Err())
	case <-t.done:
		return nil, apperr.New(apperr.ConnectionFailed, "transport closed")
	}
}

// RecvLineTimeout is RecvLine with a relative deadline.
func (t *Transport) RecvLineTimeout(d time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return t.RecvLine(ctx)
}

// Terminate closes stdin, signals the agent process to exit, and waits
// up to grace before killing it.
func (t *Transport) Terminate(grace time.Duration) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	close(t.done)
	t.mu.Unlock()

	_ = t.stdin.Close()

	waitCh := make(chan error, 1)
	go func() { waitCh <- t.cmd.Wait() }()

	select {
	case <-waitCh:
		return nil
	case <-time.After(grace):
		if t.cmd.Process != nil {
			_ = t.cmd.Process.Kill()
		}
		<-waitCh
		return nil
	}
}

// Pid returns the agent subprocess's PID, or 0 if it hasn't started.
func (t *Transport) Pid() int {
	if t.cmd.Process == nil {
		return 0
	}
	return t.cmd.Process.Pid
}
