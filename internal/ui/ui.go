package ui

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/doridoridoriand/latencybar/internal/config"
	"github.com/doridoridoriand/latencybar/internal/log"
	"github.com/doridoridoriand/latencybar/internal/ping"
	"github.com/doridoridoriand/latencybar/internal/scheduler"
	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
)

const (
	uiRefreshInterval = 500 * time.Millisecond

	greenBelowMs  = 30.0
	yellowUpToMs  = 100.0
	minScaleMaxMs = 100.0
	gapMarker     = '·'
)

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// Controller is the part of the scheduler driven by keybindings.
type Controller interface {
	Settings() config.Settings
	Reconfigure(settings config.Settings)
	Reset()
}

// UI renders scheduler updates in the terminal.
type UI struct {
	ctrl   Controller
	kv     config.KV
	logger *log.Logger

	mu     sync.Mutex
	latest scheduler.Update
	redraw chan struct{}
}

// New returns a UI instance. Target and interval changes are persisted to kv
// when it is non-nil.
func New(ctrl Controller, kv config.KV, logger *log.Logger) *UI {
	if logger == nil {
		logger = log.Discard()
	}
	settings := ctrl.Settings()
	return &UI{
		ctrl:   ctrl,
		kv:     kv,
		logger: logger,
		latest: scheduler.Update{HasConnection: true, Host: settings.Host, Interval: settings.Interval},
		redraw: make(chan struct{}, 1),
	}
}

// Render stores u and schedules a redraw.
func (u *UI) Render(update scheduler.Update) {
	u.mu.Lock()
	u.latest = update
	u.mu.Unlock()

	select {
	case u.redraw <- struct{}{}:
	default:
	}
}

func (u *UI) snapshot() scheduler.Update {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.latest
}

// Run blocks until the context is cancelled or the user quits.
func (u *UI) Run(ctx context.Context) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	return u.run(ctx, screen)
}

func (u *UI) run(ctx context.Context, screen tcell.Screen) error {
	screen.HideCursor()
	defer screen.Fini()

	eventCh := make(chan tcell.Event, 1)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case eventCh <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(uiRefreshInterval)
	defer ticker.Stop()

	u.draw(screen, u.snapshot())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-eventCh:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if u.handleKey(ev.Key(), ev.Rune()) {
					return context.Canceled
				}
			case *tcell.EventResize:
				screen.Sync()
				u.draw(screen, u.snapshot())
			}
		case <-u.redraw:
			u.draw(screen, u.snapshot())
		case <-ticker.C:
			u.draw(screen, u.snapshot())
		}
	}
}

// handleKey applies a keybinding and reports whether the user asked to quit.
func (u *UI) handleKey(key tcell.Key, r rune) bool {
	if key == tcell.KeyCtrlC {
		return true
	}
	switch r {
	case 'q':
		return true
	case 'r':
		u.logger.Info("statistics reset requested", nil)
		u.ctrl.Reset()
	case 't':
		s := u.ctrl.Settings()
		s.Host = nextHost(s.Host)
		u.apply(s)
	case 'i':
		s := u.ctrl.Settings()
		s.Interval = nextInterval(s.Interval)
		u.apply(s)
	}
	return false
}

func (u *UI) apply(s config.Settings) {
	u.ctrl.Reconfigure(s)
	if u.kv == nil {
		return
	}
	if err := config.SaveSettings(u.kv, s); err != nil {
		u.logger.LogError("ui", err, map[string]interface{}{"action": "persist settings"})
	}
}

func nextHost(current string) string {
	for i, h := range config.PresetHosts {
		if h == current {
			return config.PresetHosts[(i+1)%len(config.PresetHosts)]
		}
	}
	return config.PresetHosts[0]
}

func nextInterval(current time.Duration) time.Duration {
	for i, d := range config.PresetIntervals {
		if d == current {
			return config.PresetIntervals[(i+1)%len(config.PresetIntervals)]
		}
	}
	return config.PresetIntervals[0]
}

func (u *UI) draw(screen tcell.Screen, update scheduler.Update) {
	screen.Clear()
	width, height := screen.Size()
	if width < 20 || height < 8 {
		screen.Show()
		return
	}

	now := time.Now().Format("2006-01-02 15:04:05")
	header := fmt.Sprintf(" latencybar  %s  (q quit, r reset, t target, i interval)", now)
	drawText(screen, 0, 0, width, header, tcell.StyleDefault.Bold(true))
	drawText(screen, 0, 1, width, formatSettingsInfo(update), tcell.StyleDefault.Foreground(tcell.ColorGray))

	y := 3
	if update.HasConnection {
		current := "---"
		style := tcell.StyleDefault
		if update.Stats.Current.OK {
			current = fmt.Sprintf("%.0f ms", update.Stats.Current.Millis)
			style = style.Foreground(latencyColor(update.Stats.Current.Millis)).Bold(true)
		}
		drawStyledText(screen, 1, y, width-1, []styledRune{
			{r: []rune("Latency  "), style: tcell.StyleDefault},
			{r: []rune(current), style: style},
		})
	} else {
		banner := padOrTrim(" CONNECTION LOST", width-2)
		drawText(screen, 1, y, width-2, banner,
			tcell.StyleDefault.Background(tcell.ColorRed).Foreground(tcell.ColorWhite).Bold(true))
	}

	lines := statsLines(update)
	for i, line := range lines {
		drawText(screen, 1, y+2+i, width-1, line, tcell.StyleDefault)
	}

	boxY := y + 2 + len(lines) + 1
	if height-boxY < 3 {
		screen.Show()
		return
	}
	drawBox(screen, 0, boxY, width, 3)
	title := fmt.Sprintf(" last %d ", len(update.History))
	drawText(screen, 2, boxY, len([]rune(title)), title, tcell.StyleDefault.Bold(true))
	lineStyle := tcell.StyleDefault.Foreground(tcell.ColorGray)
	if !update.HasConnection {
		lineStyle = tcell.StyleDefault.Foreground(tcell.ColorRed)
	}
	drawText(screen, 1, boxY+1, width-2, sparkline(update.History, width-2), lineStyle)

	screen.Show()
}

func statsLines(update scheduler.Update) []string {
	stats := update.Stats
	current := "---"
	if stats.Current.OK {
		current = fmt.Sprintf("%.1f ms", stats.Current.Millis)
	}
	return []string{
		"Current: " + current,
		"Average: " + formatMillis(stats.Average),
		"Min:     " + formatMillis(stats.Minimum),
		"Max:     " + formatMillis(stats.Maximum),
		"Samples: " + humanize.Comma(int64(stats.Count)),
	}
}

func formatMillis(v *float64) string {
	if v == nil {
		return "---"
	}
	return fmt.Sprintf("%.1f ms", *v)
}

// latencyColor maps a latency to green, yellow or red.
func latencyColor(ms float64) tcell.Color {
	switch {
	case ms < greenBelowMs:
		return tcell.ColorGreen
	case ms <= yellowUpToMs:
		return tcell.ColorYellow
	default:
		return tcell.ColorRed
	}
}

// sparkline draws the last width entries of history. Failed samples become
// gap markers. The scale runs from the lowest successful sample to at least
// 100 ms. Fewer than two entries, or no successes, draws nothing.
func sparkline(history []ping.Sample, width int) string {
	if width <= 0 || len(history) < 2 {
		return ""
	}
	if len(history) > width {
		history = history[len(history)-width:]
	}

	lo, hi := math.Inf(1), minScaleMaxMs
	valid := 0
	for _, s := range history {
		if !s.OK {
			continue
		}
		valid++
		lo = math.Min(lo, s.Millis)
		hi = math.Max(hi, s.Millis)
	}
	if valid == 0 {
		return ""
	}

	top := len(sparkLevels) - 1
	var b strings.Builder
	for _, s := range history {
		if !s.OK {
			b.WriteRune(gapMarker)
			continue
		}
		level := 0
		if hi > lo {
			level = int(math.Round((s.Millis - lo) / (hi - lo) * float64(top)))
		}
		if level < 0 {
			level = 0
		}
		if level > top {
			level = top
		}
		b.WriteRune(sparkLevels[level])
	}
	return b.String()
}

func formatSettingsInfo(update scheduler.Update) string {
	return fmt.Sprintf(" target=%s  interval=%s", update.Host, formatDuration(update.Interval))
}

func drawBox(screen tcell.Screen, x, y, width, height int) {
	if width < 2 || height < 2 {
		return
	}
	right := x + width - 1
	bottom := y + height - 1

	setCell(screen, x, y, '+', tcell.StyleDefault)
	setCell(screen, right, y, '+', tcell.StyleDefault)
	setCell(screen, x, bottom, '+', tcell.StyleDefault)
	setCell(screen, right, bottom, '+', tcell.StyleDefault)

	for col := x + 1; col < right; col++ {
		setCell(screen, col, y, '-', tcell.StyleDefault)
		setCell(screen, col, bottom, '-', tcell.StyleDefault)
	}
	for row := y + 1; row < bottom; row++ {
		setCell(screen, x, row, '|', tcell.StyleDefault)
		setCell(screen, right, row, '|', tcell.StyleDefault)
	}
}

func drawText(screen tcell.Screen, x, y, width int, text string, style tcell.Style) {
	drawStyledText(screen, x, y, width, []styledRune{{r: []rune(text), style: style}})
}

type styledRune struct {
	r     []rune
	style tcell.Style
}

func drawStyledText(screen tcell.Screen, x, y, width int, parts []styledRune) {
	if width <= 0 {
		return
	}
	col := x
	for _, part := range parts {
		for _, r := range part.r {
			if col >= x+width {
				return
			}
			setCell(screen, col, y, r, part.style)
			col++
		}
	}
	for col < x+width {
		setCell(screen, col, y, ' ', tcell.StyleDefault)
		col++
	}
}

func setCell(screen tcell.Screen, x, y int, r rune, style tcell.Style) {
	screen.SetContent(x, y, r, nil, style)
}

func padOrTrim(value string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(value)
	if len(runes) > width {
		return string(runes[:width])
	}
	if len(runes) < width {
		return value + strings.Repeat(" ", width-len(runes))
	}
	return value
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dus", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fm", d.Minutes())
}
