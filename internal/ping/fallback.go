package ping

import (
	"context"
)

// FallbackProber delegates to primary, then secondary when primary could not
// launch its probe process at all.
type FallbackProber struct {
	primary   Prober
	secondary Prober
}

// NewFallbackProber wraps primary with a secondary fallback.
func NewFallbackProber(primary, secondary Prober) *FallbackProber {
	return &FallbackProber{primary: primary, secondary: secondary}
}

// Probe uses the primary prober and falls back on launch failures.
func (p *FallbackProber) Probe(ctx context.Context, host string) (Sample, error) {
	sample, err := p.primary.Probe(ctx, host)
	if err == nil || !isLaunchError(err) {
		return sample, err
	}
	return p.secondary.Probe(ctx, host)
}

func isLaunchError(err error) bool {
	return KindOf(err) == KindLaunch
}
