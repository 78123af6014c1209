package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/mcp-client-go/logging"
	"github.com/felixgeelhaar/mcp-client-go/protocol"
)

// Default stdio settings.
const (
	DefaultRequestTimeout  = 30 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
	DefaultMaxLineSize     = 10 << 20
)

// QuietEnv is appended to the child environment by WithQuiet. It asks
// common logging frameworks to stay silent so stdout carries protocol
// traffic only.
var QuietEnv = []string{
	"RUST_LOG=off",
	"LOG_LEVEL=OFF",
	"MCP_LOG_LEVEL=OFF",
	"SILENT=1",
	"QUIET=1",
}

type stdioState int

const (
	stdioUnstarted stdioState = iota
	stdioRunning
	stdioClosed
)

// Stdio implements MCP transport over the stdin and stdout of a spawned
// server process. Each message is one line of JSON.
type Stdio struct {
	command string
	args    []string
	env     []string
	dir     string
	quiet   bool
	stderr  io.Writer
	logger  logging.Logger

	requestTimeout  time.Duration
	shutdownTimeout time.Duration
	maxLineSize     int

	onNotification NotificationHandler
	onUnmatched    UnmatchedHandler

	mu         sync.Mutex
	state      stdioState
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	stdout     *os.File
	readerDone chan struct{}
	exited     chan struct{}

	writeMu   sync.Mutex
	pending   *pendingTable
	connected atomic.Bool
}

// StdioOption configures a Stdio transport.
type StdioOption func(*Stdio)

// WithEnv adds KEY=VALUE entries to the child environment, which
// otherwise inherits the current process environment.
func WithEnv(env ...string) StdioOption {
	return func(s *Stdio) {
		s.env = append(s.env, env...)
	}
}

// WithDir sets the child's working directory.
func WithDir(dir string) StdioOption {
	return func(s *Stdio) {
		s.dir = dir
	}
}

// WithQuiet appends QuietEnv to the child environment.
func WithQuiet() StdioOption {
	return func(s *Stdio) {
		s.quiet = true
	}
}

// WithStderr sends the child's stderr to w. By default stderr is drained
// into the logger at debug level.
func WithStderr(w io.Writer) StdioOption {
	return func(s *Stdio) {
		s.stderr = w
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) StdioOption {
	return func(s *Stdio) {
		s.logger = logging.OrNop(l)
	}
}

// WithRequestTimeout bounds how long SendRequest waits for a response.
// Zero disables the bound and leaves only the caller's context.
func WithRequestTimeout(d time.Duration) StdioOption {
	return func(s *Stdio) {
		s.requestTimeout = d
	}
}

// WithShutdownTimeout sets how long Close waits for the child to exit
// before killing it.
func WithShutdownTimeout(d time.Duration) StdioOption {
	return func(s *Stdio) {
		s.shutdownTimeout = d
	}
}

// WithMaxLineSize sets the longest line accepted from the child. Longer
// lines are dropped.
func WithMaxLineSize(n int) StdioOption {
	return func(s *Stdio) {
		s.maxLineSize = n
	}
}

// WithNotificationHandler sets the sink for server notifications.
func WithNotificationHandler(h NotificationHandler) StdioOption {
	return func(s *Stdio) {
		s.onNotification = h
	}
}

// WithUnmatchedHandler sets the sink for responses with unknown ids.
func WithUnmatchedHandler(h UnmatchedHandler) StdioOption {
	return func(s *Stdio) {
		s.onUnmatched = h
	}
}

// NewStdio creates a transport that will run command with args on Start.
func NewStdio(command string, args []string, opts ...StdioOption) *Stdio {
	s := &Stdio{
		command:         command,
		args:            args,
		logger:          logging.Nop(),
		requestTimeout:  DefaultRequestTimeout,
		shutdownTimeout: DefaultShutdownTimeout,
		maxLineSize:     DefaultMaxLineSize,
		pending:         newPendingTable(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Addr returns the transport address.
func (s *Stdio) Addr() string {
	return "stdio:" + s.command
}

// Start spawns the server process and begins reading its output.
// Calling Start on a running transport is a no-op. Once the server has
// exited the transport is spent and Start returns ErrConnectionClosed.
func (s *Stdio) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case stdioRunning:
		if !s.connected.Load() {
			return ErrConnectionClosed
		}
		return nil
	case stdioClosed:
		return ErrConnectionClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	cmd := exec.Command(s.command, s.args...)
	cmd.Dir = s.dir
	if len(s.env) > 0 || s.quiet {
		cmd.Env = append(os.Environ(), s.env...)
		if s.quiet {
			cmd.Env = append(cmd.Env, QuietEnv...)
		}
	}
	if s.stderr != nil {
		cmd.Stderr = s.stderr
	} else {
		cmd.Stderr = &stderrLogger{logger: s.logger}
	}
	cmd.WaitDelay = s.shutdownTimeout

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return &SpawnError{Command: s.command, Err: fmt.Errorf("stdin pipe: %w", err)}
	}

	// A plain pipe instead of StdoutPipe: Wait must not close the read end
	// while the reader still drains buffered output.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		_ = stdin.Close()
		return &SpawnError{Command: s.command, Err: fmt.Errorf("stdout pipe: %w", err)}
	}
	cmd.Stdout = stdoutW

	if err := cmd.Start(); err != nil {
		_ = stdoutR.Close()
		_ = stdoutW.Close()
		return &SpawnError{Command: s.command, Err: err}
	}
	_ = stdoutW.Close()

	s.cmd = cmd
	s.stdin = stdin
	s.stdout = stdoutR
	s.readerDone = make(chan struct{})
	s.exited = make(chan struct{})
	s.state = stdioRunning
	s.connected.Store(true)

	d := &dispatcher{
		pending:        s.pending,
		logger:         s.logger,
		onNotification: s.onNotification,
		onUnmatched:    s.onUnmatched,
		reply:          s.writeLine,
	}
	go s.readLoop(stdoutR, d)
	go s.waitLoop(cmd)

	s.logger.Info("stdio transport started",
		logging.F("command", s.command),
		logging.F("pid", cmd.Process.Pid),
	)
	return nil
}

// SendRequest writes req and waits for the matching response.
func (s *Stdio) SendRequest(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	if !s.connected.Load() {
		return nil, ErrConnectionClosed
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	ch, err := s.pending.add(req.ID)
	if err != nil {
		return nil, err
	}

	if err := s.writeLine(data); err != nil {
		s.pending.remove(req.ID)
		return nil, fmt.Errorf("%w: write request: %w", ErrConnectionClosed, err)
	}

	return s.pending.wait(ctx, req.ID, ch, s.requestTimeout)
}

// SendNotification writes n to the child's stdin.
func (s *Stdio) SendNotification(ctx context.Context, n *protocol.Notification) error {
	if !s.connected.Load() {
		return ErrConnectionClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := s.writeLine(data); err != nil {
		return fmt.Errorf("%w: write notification: %w", ErrConnectionClosed, err)
	}
	return nil
}

// IsConnected reports whether the child is running and its output open.
func (s *Stdio) IsConnected() bool {
	return s.connected.Load()
}

// Close stops the child: stdin is closed, the child gets the shutdown
// timeout to exit and is killed after that. Pending requests fail with
// ErrConnectionClosed.
func (s *Stdio) Close() error {
	s.mu.Lock()
	prev := s.state
	s.state = stdioClosed
	s.mu.Unlock()

	if prev == stdioClosed {
		return nil
	}
	s.connected.Store(false)

	if prev == stdioRunning {
		_ = s.stdin.Close()

		timer := time.NewTimer(s.shutdownTimeout)
		select {
		case <-s.exited:
		case <-timer.C:
			s.logger.Warn("server did not exit in time, killing",
				logging.F("command", s.command),
				logging.F("timeout", s.shutdownTimeout),
			)
			_ = s.cmd.Process.Kill()
			<-s.exited
		}
		timer.Stop()

		// Descendants may still hold the pipe open.
		select {
		case <-s.readerDone:
		case <-time.After(s.shutdownTimeout):
			_ = s.stdout.Close()
			<-s.readerDone
		}
	}

	s.pending.closeAll(ErrConnectionClosed)
	s.logger.Info("stdio transport closed", logging.F("command", s.command))
	return nil
}

func (s *Stdio) writeLine(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	stdin := s.stdin
	s.mu.Unlock()
	if stdin == nil {
		return ErrConnectionClosed
	}

	_, err := stdin.Write(append(data, '\n'))
	return err
}

func (s *Stdio) readLoop(r *os.File, d *dispatcher) {
	defer close(s.readerDone)
	defer r.Close()

	err := readLines(r, s.maxLineSize, d.handle, func(size int) {
		s.logger.Warn("dropping oversized line",
			logging.F("size", size),
			logging.F("max", s.maxLineSize),
		)
	})
	if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
		s.logger.Error("read from server failed", logging.F("error", err))
	}

	s.connected.Store(false)
	s.pending.closeAll(ErrConnectionClosed)
	s.logger.Debug("server output closed", logging.F("command", s.command))
}

// readLines calls handle for every line of r that fits in limit bytes,
// newline included. Longer lines are discarded while they stream past and
// reported to oversized with their full size, so no more than limit bytes
// are buffered. It returns the error that ended the stream.
func readLines(r io.Reader, limit int, handle func([]byte), oversized func(size int)) error {
	br := bufio.NewReaderSize(r, 64*1024)

	var (
		line []byte
		size int
	)
	for {
		chunk, err := br.ReadSlice('\n')
		size += len(chunk)
		if size <= limit {
			line = append(line, chunk...)
		} else {
			line = nil
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}

		switch {
		case size > limit:
			oversized(size)
		case len(line) > 0:
			handle(line)
		}
		line, size = nil, 0

		if err != nil {
			return err
		}
	}
}

func (s *Stdio) waitLoop(cmd *exec.Cmd) {
	defer close(s.exited)

	if err := cmd.Wait(); err != nil {
		s.logger.Debug("server exited", logging.F("error", err))
	}
}

// stderrLineLimit caps how much of one stderr line is kept.
const stderrLineLimit = 64 << 10

// stderrLogger forwards each line written to it to the logger. Lines
// longer than stderrLineLimit are logged truncated and the rest dropped.
type stderrLogger struct {
	logger   logging.Logger
	buf      []byte
	skipping bool
}

func (w *stderrLogger) Write(p []byte) (int, error) {
	n := len(p)
	if w.skipping {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			return n, nil
		}
		p = p[i+1:]
		w.skipping = false
	}

	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		if line := bytes.TrimSpace(w.buf[:i]); len(line) > 0 {
			w.logger.Debug("server stderr", logging.F("line", string(line)))
		}
		w.buf = w.buf[i+1:]
	}

	if len(w.buf) > stderrLineLimit {
		w.logger.Debug("server stderr",
			logging.F("line", string(w.buf[:stderrLineLimit])),
			logging.F("truncated", true),
		)
		w.buf = nil
		w.skipping = true
	}
	return n, nil
}
