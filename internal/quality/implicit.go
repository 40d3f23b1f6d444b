package quality

import (
	"context"
	"math"
	"time"

	"github.com/memvault/memvault/pkg/types"
)

// Implicit is the default quality provider (spec §6.3, SPEC_FULL.md §E.4):
// derives a score purely from signals already on the memory, with no
// network call. Three components, equally weighted:
//
//   - access: log-scaled access_count, since a 10th access matters less
//     than a 2nd.
//   - connectivity: graph connection count, scaled against a soft cap.
//   - recency: exponential decay of time since last access, half-life 30d.
//
// Grounded on the teacher's internal/engine/decay.go access-boost-with-cap
// idiom, adapted into a standalone scorer rather than a decay multiplier.
type Implicit struct {
	// AccessSoftCap is the access_count at which the access component
	// saturates near 1.0.
	AccessSoftCap int
	// ConnectionSoftCap is the connection count at which the connectivity
	// component saturates near 1.0.
	ConnectionSoftCap int
	// RecencyHalfLifeDays controls how fast the recency component decays.
	RecencyHalfLifeDays float64
}

// NewImplicit returns an Implicit provider with spec-documented defaults.
func NewImplicit() *Implicit {
	return &Implicit{
		AccessSoftCap:       20,
		ConnectionSoftCap:   10,
		RecencyHalfLifeDays: 30,
	}
}

func (p *Implicit) Name() string { return "implicit" }

func (p *Implicit) Score(_ context.Context, mem *types.Memory, connectionCount int) (*Result, error) {
	access := AccessCountOf(mem)
	accessComponent := math.Log1p(float64(access)) / math.Log1p(float64(p.AccessSoftCap))
	accessComponent = clamp01(accessComponent)

	connComponent := clamp01(float64(connectionCount) / float64(p.ConnectionSoftCap))

	days := time.Since(LastAccessedOf(mem)).Hours() / 24
	if days < 0 {
		days = 0
	}
	halfLife := p.RecencyHalfLifeDays
	if halfLife <= 0 {
		halfLife = 30
	}
	recencyComponent := math.Exp(-math.Ln2 * days / halfLife)

	score := (accessComponent + connComponent + recencyComponent) / 3.0
	return &Result{
		Score:        clamp01(score),
		Confidence:   0.6,
		Provider:     p.Name(),
		CalculatedAt: time.Now().UTC(),
	}, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
