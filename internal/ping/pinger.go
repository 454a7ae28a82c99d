package ping

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// Sample is the latency of one probe attempt in milliseconds. OK is false
// when the attempt failed or timed out.
type Sample struct {
	Millis float64
	OK     bool
}

// Latency returns a successful sample.
func Latency(ms float64) Sample {
	return Sample{Millis: ms, OK: true}
}

// Lost returns a failed sample.
func Lost() Sample {
	return Sample{}
}

func (s Sample) String() string {
	if !s.OK {
		return "lost"
	}
	return strconv.FormatFloat(s.Millis, 'f', -1, 64) + "ms"
}

// Prober runs a single probe attempt against host.
type Prober interface {
	Probe(ctx context.Context, host string) (Sample, error)
}

// Kind classifies probe failures.
type Kind int

const (
	KindLaunch Kind = iota + 1
	KindTimeout
	KindParse
	KindTransient
)

var (
	ErrLaunch    = errors.New("probe launch failed")
	ErrTimeout   = errors.New("probe timed out")
	ErrParse     = errors.New("no latency in probe output")
	ErrTransient = errors.New("probe exited without a reading")
)

func (k Kind) sentinel() error {
	switch k {
	case KindLaunch:
		return ErrLaunch
	case KindTimeout:
		return ErrTimeout
	case KindParse:
		return ErrParse
	case KindTransient:
		return ErrTransient
	}
	return nil
}

func (k Kind) String() string {
	switch k {
	case KindLaunch:
		return "launch"
	case KindTimeout:
		return "timeout"
	case KindParse:
		return "parse"
	case KindTransient:
		return "transient"
	}
	return "unknown"
}

// ProbeError describes why an attempt produced no sample. It matches the
// Err* sentinels with errors.Is.
type ProbeError struct {
	Kind     Kind
	Host     string
	ExitCode int
	Err      error
}

func (e *ProbeError) Error() string {
	msg := fmt.Sprintf("probe %s: %v", e.Host, e.Kind.sentinel())
	if e.Kind == KindTransient {
		msg += fmt.Sprintf(" (exit %d)", e.ExitCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProbeError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}
	return []error{e.Kind.sentinel(), e.Err}
}

// KindOf returns the failure kind of err, or 0 when err is not a ProbeError.
func KindOf(err error) Kind {
	var pe *ProbeError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}
