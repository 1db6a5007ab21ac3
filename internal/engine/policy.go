package engine

import "github.com/luizprojeto1143/museus-frontend-sub000/pkg/types"

// Decision is the outcome of feeding one cycle to a Policy.
type Decision int

const (
	// DecisionHold leaves the visible match state unchanged.
	DecisionHold Decision = iota

	// DecisionAccept promotes the candidate to a stable match.
	DecisionAccept

	// DecisionRelease clears the stable match.
	DecisionRelease
)

// Policy debounces per-cycle candidates into match and release decisions.
//
// While nothing is shown, the same label must reach Accept confidence on H
// consecutive cycles. While a label is shown, H consecutive cycles that fall
// below Release or name another label (or no label) release it.
// A Policy is owned by one loop goroutine and is not safe for concurrent use.
type Policy struct {
	Accept  float64
	Release float64
	H       int

	matched    bool
	label      string
	acceptRun  int
	releaseRun int
}

// NewPolicy creates a policy from cfg.
func NewPolicy(cfg Config) *Policy {
	h := cfg.Hysteresis
	if h < 1 {
		h = 1
	}
	return &Policy{Accept: cfg.AcceptThreshold, Release: cfg.ReleaseThreshold, H: h}
}

// Observe feeds one cycle's candidate. On DecisionAccept the returned
// candidate is the one to publish.
func (p *Policy) Observe(c types.MatchCandidate) (Decision, types.MatchCandidate) {
	if !p.matched {
		if !c.IsMatch() || c.Confidence < p.Accept {
			p.acceptRun = 0
			p.label = ""
			return DecisionHold, types.NoMatch()
		}
		if c.Label != p.label {
			p.label = c.Label
			p.acceptRun = 0
		}
		p.acceptRun++
		if p.acceptRun < p.H {
			return DecisionHold, types.NoMatch()
		}
		p.matched = true
		p.acceptRun = 0
		p.releaseRun = 0
		return DecisionAccept, c
	}

	supports := c.IsMatch() && c.Label == p.label && c.Confidence >= p.Release
	if supports {
		p.releaseRun = 0
		return DecisionHold, types.NoMatch()
	}
	p.releaseRun++
	if p.releaseRun < p.H {
		return DecisionHold, types.NoMatch()
	}
	p.Reset()
	return DecisionRelease, types.NoMatch()
}

// Matched reports whether a label is currently shown.
func (p *Policy) Matched() bool {
	return p.matched
}

// Reset returns the policy to the nothing-shown state.
func (p *Policy) Reset() {
	p.matched = false
	p.label = ""
	p.acceptRun = 0
	p.releaseRun = 0
}
