package ping

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"
)

// writeProbeScript creates an executable shell script standing in for ping.
func writeProbeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("probe scripts need a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "fakeping")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write probe script: %v", err)
	}
	return path
}

func newTestRunner(binary string, hard, grace time.Duration) (*Runner, *Guard) {
	guard := NewGuard(DefaultHighWaterMark, nil)
	runner := NewRunner(RunnerOptions{
		Binary:        binary,
		ProbeDeadline: 100 * time.Millisecond,
		HardTimeout:   hard,
		GracePeriod:   grace,
		DrainWindow:   50 * time.Millisecond,
	}, guard, nil)
	return runner, guard
}

func TestRunnerParsesSuccessfulReply(t *testing.T) {
	bin := writeProbeScript(t, `echo "PING 1.1.1.1 (1.1.1.1): 56 data bytes"
echo "64 bytes from 1.1.1.1: icmp_seq=0 ttl=56 time=23.4 ms"`)
	runner, guard := newTestRunner(bin, time.Second, 100*time.Millisecond)

	sample, err := runner.Probe(context.Background(), "1.1.1.1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sample.OK || sample.Millis != 23.4 {
		t.Fatalf("expected 23.4ms sample, got %v", sample)
	}
	if guard.Active() != 0 {
		t.Fatalf("expected guard to be empty, got %d", guard.Active())
	}
}

func TestRunnerPassesArguments(t *testing.T) {
	bin := writeProbeScript(t, `echo "args=$*"
echo "time=1.0 ms"`)
	runner, _ := newTestRunner(bin, time.Second, 100*time.Millisecond)

	out, code, err := runner.run(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	want := "args=-c 1 -W " + probeArgs("example.com", 100*time.Millisecond)[3] + " example.com"
	if got := string(out); len(got) < len(want) || got[:len(want)] != want {
		t.Fatalf("expected output to start with %q, got %q", want, got)
	}
}

func TestRunnerNonZeroExitWithReadingStillParses(t *testing.T) {
	bin := writeProbeScript(t, `echo "64 bytes from 10.0.0.1: icmp_seq=0 ttl=64 time=9.5 ms"
exit 2`)
	runner, _ := newTestRunner(bin, time.Second, 100*time.Millisecond)

	sample, err := runner.Probe(context.Background(), "10.0.0.1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sample.OK || sample.Millis != 9.5 {
		t.Fatalf("expected 9.5ms sample, got %v", sample)
	}
}

func TestRunnerNonZeroExitWithoutReadingIsTransient(t *testing.T) {
	bin := writeProbeScript(t, `echo "Request timeout for icmp_seq 0"
exit 2`)
	runner, _ := newTestRunner(bin, time.Second, 100*time.Millisecond)

	sample, err := runner.Probe(context.Background(), "192.0.2.1")
	if sample.OK {
		t.Fatalf("expected lost sample, got %v", sample)
	}
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	var pe *ProbeError
	if !errors.As(err, &pe) || pe.ExitCode != 2 {
		t.Fatalf("expected exit code 2 in error, got %v", err)
	}
}

func TestRunnerCleanExitWithoutReadingIsParseFailure(t *testing.T) {
	bin := writeProbeScript(t, `echo "nothing useful"`)
	runner, _ := newTestRunner(bin, time.Second, 100*time.Millisecond)

	sample, err := runner.Probe(context.Background(), "192.0.2.1")
	if sample.OK {
		t.Fatalf("expected lost sample, got %v", sample)
	}
	if !errors.Is(err, ErrParse) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestRunnerRejectsUndecodableOutput(t *testing.T) {
	bin := writeProbeScript(t, `printf '\377\376 time=1.0 ms\n'`)
	runner, _ := newTestRunner(bin, time.Second, 100*time.Millisecond)

	sample, err := runner.Probe(context.Background(), "192.0.2.1")
	if sample.OK {
		t.Fatalf("expected lost sample, got %v", sample)
	}
	if !errors.Is(err, ErrParse) || !errors.Is(err, errInvalidUTF8) {
		t.Fatalf("expected utf-8 parse error, got %v", err)
	}
}

func TestRunnerLaunchFailure(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "does-not-exist")
	runner, guard := newTestRunner(missing, time.Second, 100*time.Millisecond)

	sample, err := runner.Probe(context.Background(), "1.1.1.1")
	if sample.OK {
		t.Fatalf("expected lost sample, got %v", sample)
	}
	if !errors.Is(err, ErrLaunch) {
		t.Fatalf("expected launch error, got %v", err)
	}
	if guard.Active() != 0 {
		t.Fatalf("expected guard to be released after launch failure, got %d", guard.Active())
	}
}

func TestRunnerTerminatesOnHardTimeout(t *testing.T) {
	bin := writeProbeScript(t, `exec sleep 10`)
	hard, grace := 200*time.Millisecond, 200*time.Millisecond
	runner, guard := newTestRunner(bin, hard, grace)

	start := time.Now()
	sample, err := runner.Probe(context.Background(), "192.0.2.1")
	elapsed := time.Since(start)

	if sample.OK {
		t.Fatalf("expected lost sample, got %v", sample)
	}
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if elapsed > hard+grace+time.Second {
		t.Fatalf("probe took too long: %v", elapsed)
	}
	if guard.Active() != 0 {
		t.Fatalf("expected guard to be released after timeout, got %d", guard.Active())
	}
}

func TestRunnerKillsProcessIgnoringTerminate(t *testing.T) {
	bin := writeProbeScript(t, `trap '' TERM
exec sleep 10`)
	hard, grace := 200*time.Millisecond, 200*time.Millisecond
	runner, guard := newTestRunner(bin, hard, grace)

	start := time.Now()
	_, err := runner.Probe(context.Background(), "192.0.2.1")
	elapsed := time.Since(start)

	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if elapsed < hard+grace {
		t.Fatalf("expected to wait out the grace period, took %v", elapsed)
	}
	if elapsed > hard+grace+time.Second {
		t.Fatalf("probe took too long: %v", elapsed)
	}
	if guard.Active() != 0 {
		t.Fatalf("expected guard to be released after kill, got %d", guard.Active())
	}
}

func TestRunnerDoesNotHangOnInheritedPipe(t *testing.T) {
	bin := writeProbeScript(t, `echo "64 bytes from 1.1.1.1: icmp_seq=0 ttl=56 time=5.0 ms"
sleep 5 &
exit 0`)
	runner, _ := newTestRunner(bin, 2*time.Second, 100*time.Millisecond)

	start := time.Now()
	sample, err := runner.Probe(context.Background(), "1.1.1.1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sample.OK || sample.Millis != 5.0 {
		t.Fatalf("expected 5ms sample, got %v", sample)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("drain was not bounded: %v", elapsed)
	}
}

func TestRunnerContextCancellation(t *testing.T) {
	bin := writeProbeScript(t, `exec sleep 10`)
	runner, _ := newTestRunner(bin, 5*time.Second, 100*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := runner.Probe(ctx, "192.0.2.1")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline in error chain, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("cancellation was not prompt: %v", elapsed)
	}
}

func TestRunnerTracksConcurrentAttempts(t *testing.T) {
	bin := writeProbeScript(t, `sleep 1
echo "time=1.0 ms"`)
	runner, guard := newTestRunner(bin, 5*time.Second, 100*time.Millisecond)

	const attempts = 5
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := runner.Probe(context.Background(), "1.1.1.1"); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if guard.Active() != 0 {
		t.Fatalf("expected no active attempts, got %d", guard.Active())
	}
	if guard.Peak() != attempts {
		t.Fatalf("expected peak %d, got %d", attempts, guard.Peak())
	}
}
