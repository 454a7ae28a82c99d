package scheduler

import (
	"time"

	"github.com/doridoridoriand/latencybar/internal/log"
	"github.com/doridoridoriand/latencybar/internal/ping"
	"github.com/doridoridoriand/latencybar/internal/state"
)

// Update is what a renderer receives after each applied sample or reset.
type Update struct {
	Stats         state.StatsSnapshot
	History       []ping.Sample
	HasConnection bool
	Host          string
	Interval      time.Duration
}

// Renderer displays scheduler updates. Render is never called concurrently.
type Renderer interface {
	Render(Update)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(Update)

func (f RendererFunc) Render(u Update) { f(u) }

// MultiRenderer fans an update out to several renderers in order.
type MultiRenderer []Renderer

func (m MultiRenderer) Render(u Update) {
	for _, r := range m {
		r.Render(u)
	}
}

// LogRenderer writes every update as a structured log line. Used when the
// terminal UI is disabled.
type LogRenderer struct {
	Logger *log.Logger
}

func (r LogRenderer) Render(u Update) {
	if r.Logger == nil {
		return
	}
	fields := map[string]interface{}{
		"host":      u.Host,
		"connected": u.HasConnection,
		"samples":   u.Stats.Count,
		"history":   len(u.History),
	}
	if u.Stats.Current.OK {
		fields["current_ms"] = u.Stats.Current.Millis
	}
	if u.Stats.Average != nil {
		fields["avg_ms"] = *u.Stats.Average
		fields["min_ms"] = *u.Stats.Minimum
		fields["max_ms"] = *u.Stats.Maximum
	}
	r.Logger.Info("latency", fields)
}
