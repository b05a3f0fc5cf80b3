package guard

import (
	"context"
	"path/filepath"

	"fsguard/internal/safety"
)

// CleanupRequest asks for the empty directories from Start upward to be
// removed, stopping below Boundary. An empty Boundary means the parent of
// Start.
type CleanupRequest struct {
	Start    string `json:"start"`
	Boundary string `json:"boundary"`
}

// Cleanup runs a bounded cleanup walk. Start must pass the policy, and
// every directory is re-validated before it is removed.
func (g *Guard) Cleanup(ctx context.Context, req CleanupRequest) (*Outcome, error) {
	p, err := g.policy()
	if err != nil {
		return nil, err
	}

	c := g.begin(ctx, OpCleanup, req.Start)
	res := p.ValidateDeletion(req.Start)
	c.out.Checks = res.Checks
	if !res.Safe {
		return c.rejectResult(res, string(KindDirectory))
	}
	c.out.Path = res.Path

	boundary := filepath.Dir(res.Path)
	if req.Boundary != "" {
		b, err := p.Canonical(req.Boundary)
		if err != nil {
			return c.reject(safety.ReasonInvalidPath, "invalid boundary "+req.Boundary, string(KindDirectory))
		}
		boundary = b
	}
	result := c.runCleanup(p, res.Path, boundary)
	c.out.Cleanup = &result
	c.out.Removed = result.Removed
	return c.done()
}
