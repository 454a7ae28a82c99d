package ping

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/doridoridoriand/latencybar/internal/log"
)

const (
	DefaultBinary        = "/sbin/ping"
	DefaultProbeDeadline = 1000 * time.Millisecond
	DefaultHardTimeout   = 3 * time.Second
	DefaultGracePeriod   = 500 * time.Millisecond
	DefaultDrainWindow   = 100 * time.Millisecond

	readChunkSize  = 4096
	maxOutputBytes = 64 * 1024
)

var timePattern = regexp.MustCompile(`time=([0-9]+(?:\.[0-9]+)?)\s*ms`)

var errInvalidUTF8 = errors.New("probe output is not valid UTF-8")

// RunnerOptions configures how a Runner launches and bounds the probe process.
type RunnerOptions struct {
	// Binary is the probe executable, invoked as <Binary> -c 1 -W <deadline> <host>.
	Binary string
	// ProbeDeadline is passed to the probe utility as its own reply deadline.
	ProbeDeadline time.Duration
	// HardTimeout bounds the whole attempt. A process still running after it
	// is terminated, then killed once GracePeriod has passed.
	HardTimeout time.Duration
	GracePeriod time.Duration
	// DrainWindow bounds how long output is drained after the process exits.
	DrainWindow time.Duration
}

// DefaultRunnerOptions returns the options used when none are configured.
func DefaultRunnerOptions() RunnerOptions {
	return RunnerOptions{
		Binary:        DefaultBinary,
		ProbeDeadline: DefaultProbeDeadline,
		HardTimeout:   DefaultHardTimeout,
		GracePeriod:   DefaultGracePeriod,
		DrainWindow:   DefaultDrainWindow,
	}
}

func (o RunnerOptions) withDefaults() RunnerOptions {
	def := DefaultRunnerOptions()
	if o.Binary == "" {
		o.Binary = def.Binary
	}
	if o.ProbeDeadline <= 0 {
		o.ProbeDeadline = def.ProbeDeadline
	}
	if o.HardTimeout <= 0 {
		o.HardTimeout = def.HardTimeout
	}
	if o.GracePeriod <= 0 {
		o.GracePeriod = def.GracePeriod
	}
	if o.DrainWindow <= 0 {
		o.DrainWindow = def.DrainWindow
	}
	return o
}

// Runner invokes the system ping utility once per Probe call.
type Runner struct {
	opts   RunnerOptions
	guard  *Guard
	logger *log.Logger
}

// NewRunner returns a Runner registering its attempts with guard.
func NewRunner(opts RunnerOptions, guard *Guard, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Discard()
	}
	if guard == nil {
		guard = NewGuard(DefaultHighWaterMark, logger)
	}
	return &Runner{opts: opts.withDefaults(), guard: guard, logger: logger}
}

// Binary returns the executable this runner launches.
func (r *Runner) Binary() string {
	return r.opts.Binary
}

// Probe runs one attempt against host. It returns within
// HardTimeout+GracePeriod plus the drain window, whatever the child does.
func (r *Runner) Probe(ctx context.Context, host string) (Sample, error) {
	tok := r.guard.Enter(host)
	defer r.guard.Exit(tok)

	start := time.Now()
	out, exitCode, err := r.run(ctx, host)
	if err != nil {
		r.logger.LogProbeResult(host, false, 0, time.Since(start), err)
		return Lost(), err
	}

	if exitCode != 0 {
		r.logger.Warn("probe process exited with non-zero status", map[string]interface{}{
			"host":      host,
			"exit_code": exitCode,
		})
	}
	if r.logger.Enabled(log.LevelDebug) {
		r.logger.Debug("probe output", map[string]interface{}{
			"host":   host,
			"output": strings.TrimSpace(string(out)),
		})
	}

	ms, ok, perr := parseLatency(out)
	if !ok {
		kind := KindParse
		if exitCode != 0 && perr == nil {
			kind = KindTransient
		}
		err := &ProbeError{Kind: kind, Host: host, ExitCode: exitCode, Err: perr}
		r.logger.LogProbeResult(host, false, 0, time.Since(start), err)
		return Lost(), err
	}

	r.logger.LogProbeResult(host, true, ms, time.Since(start), nil)
	return Latency(ms), nil
}

func (r *Runner) run(ctx context.Context, host string) ([]byte, int, error) {
	cmd := exec.Command(r.opts.Binary, probeArgs(host, r.opts.ProbeDeadline)...)
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, -1, &ProbeError{Kind: KindLaunch, Host: host, Err: err}
	}
	cmd.Stdout = pw
	cmd.Stderr = pw
	configureProcess(cmd)

	if err := cmd.Start(); err != nil {
		pw.Close()
		pr.Close()
		return nil, -1, &ProbeError{Kind: KindLaunch, Host: host, Err: err}
	}
	// The child holds its own copy of the write end.
	pw.Close()
	r.logger.Debug("probe process started", map[string]interface{}{
		"host": host,
		"pid":  cmd.Process.Pid,
	})

	out := &outputBuffer{}
	drained := make(chan struct{})
	go drain(pr, out, drained)

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
	}()

	timer := time.NewTimer(r.opts.HardTimeout)
	defer timer.Stop()

	var cause error
	select {
	case <-waitErr:
	case <-timer.C:
		cause = fmt.Errorf("no exit after %v", r.opts.HardTimeout)
		r.stop(cmd, waitErr, host)
	case <-ctx.Done():
		cause = ctx.Err()
		r.stop(cmd, waitErr, host)
	}

	r.finishDrain(pr, drained)
	if cause != nil {
		return out.bytes(), -1, &ProbeError{Kind: KindTimeout, Host: host, ExitCode: -1, Err: cause}
	}
	return out.bytes(), cmd.ProcessState.ExitCode(), nil
}

// stop asks the process to exit, then kills it if it is still around after
// the grace period. It gives up waiting after a second grace period so a
// process stuck in the kernel cannot hold the caller.
func (r *Runner) stop(cmd *exec.Cmd, waitErr <-chan error, host string) {
	pid := cmd.Process.Pid
	r.logger.Error("probe process timed out, terminating", map[string]interface{}{
		"host":    host,
		"pid":     pid,
		"timeout": r.opts.HardTimeout.String(),
	})
	if err := terminate(cmd); err != nil {
		r.logger.Debug("terminate signal failed", map[string]interface{}{"pid": pid, "error": err.Error()})
	}

	grace := time.NewTimer(r.opts.GracePeriod)
	defer grace.Stop()
	select {
	case <-waitErr:
		return
	case <-grace.C:
	}

	r.logger.Error("force killing hung probe process", map[string]interface{}{
		"host": host,
		"pid":  pid,
	})
	if err := kill(cmd); err != nil {
		r.logger.Debug("kill signal failed", map[string]interface{}{"pid": pid, "error": err.Error()})
	}

	grace.Reset(r.opts.GracePeriod)
	select {
	case <-waitErr:
	case <-grace.C:
		r.logger.Error("probe process did not exit after kill", map[string]interface{}{
			"host": host,
			"pid":  pid,
		})
	}
}

// finishDrain waits for the reader to hit EOF. A descendant of the probe can
// keep the pipe open past the parent's exit, so the read is cut off after the
// drain window.
func (r *Runner) finishDrain(pr *os.File, drained <-chan struct{}) {
	defer pr.Close()

	timer := time.NewTimer(r.opts.DrainWindow)
	defer timer.Stop()
	select {
	case <-drained:
		return
	case <-timer.C:
	}

	if err := pr.SetReadDeadline(time.Now()); err != nil {
		pr.Close()
	}
	timer.Reset(r.opts.DrainWindow)
	select {
	case <-drained:
	case <-timer.C:
		r.logger.Warn("probe output drain abandoned", nil)
	}
}

type outputBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *outputBuffer) write(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := maxOutputBytes - b.buf.Len(); room > 0 {
		if len(p) > room {
			p = p[:room]
		}
		b.buf.Write(p)
	}
}

func (b *outputBuffer) bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

func drain(r io.Reader, out *outputBuffer, done chan<- struct{}) {
	defer close(done)
	chunk := make([]byte, readChunkSize)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			out.write(chunk[:n])
		}
		if err != nil {
			return
		}
	}
}

func probeArgs(host string, deadline time.Duration) []string {
	switch runtime.GOOS {
	case "darwin", "freebsd", "netbsd", "openbsd", "dragonfly":
		deadlineMs := maxInt(100, int(deadline.Milliseconds()))
		return []string{"-c", "1", "-W", strconv.Itoa(deadlineMs), host}
	default:
		deadlineSec := maxInt(1, int(deadline.Seconds()+0.5))
		return []string{"-c", "1", "-W", strconv.Itoa(deadlineSec), host}
	}
}

// parseLatency returns the first time=<n> ms reading in output.
func parseLatency(output []byte) (float64, bool, error) {
	if !utf8.Valid(output) {
		return 0, false, errInvalidUTF8
	}
	matches := timePattern.FindSubmatch(output)
	if len(matches) < 2 {
		return 0, false, nil
	}
	value, err := strconv.ParseFloat(string(matches[1]), 64)
	if err != nil || value < 0 {
		return 0, false, err
	}
	return value, true, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
