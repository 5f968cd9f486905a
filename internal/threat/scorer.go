// Package threat aggregates the per-IP abuse signals into a single score and
// block decision. Scoring is a pure read: it never mutates a counter or a
// block entry, so two calls inside the same counting window with no new
// events return identical scores.
package threat

import (
	"context"
	"errors"
	"fmt"

	"github.com/urkovsemen39-cell/smartprice-sub001/internal/abuse"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/config"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/reputation"
)

// Score is the ephemeral result of one evaluation. It is recomputed on
// demand from the counters and never persisted.
type Score struct {
	IP      string   `json:"ip"`
	Value   int      `json:"score"`
	Reasons []string `json:"reasons"`
	Blocked bool     `json:"blocked"`
}

// Scorer combines blacklist membership with the recent intrusion,
// failed-auth and rate-limit-violation counts. All weights and minimum
// counts come from configuration.
type Scorer struct {
	counters *abuse.Counters
	rep      *reputation.Store
	cfg      config.Config
}

// New returns a scorer over the given signal sources.
func New(counters *abuse.Counters, rep *reputation.Store, cfg config.Config) *Scorer {
	return &Scorer{counters: counters, rep: rep, cfg: cfg}
}

// Evaluate computes the threat score for ip. Signals whose backing store
// errors are skipped (fail open) and the error is returned alongside the
// partial score for logging; the caller applies policy on Blocked, this
// method never blocks anything itself.
func (s *Scorer) Evaluate(ctx context.Context, ip string) (Score, error) {
	score := Score{IP: ip, Reasons: []string{}}
	var errs []error

	listed, err := s.rep.IsBlacklisted(ctx, ip)
	if err != nil {
		errs = append(errs, err)
	} else if listed {
		score.Value += s.cfg.BlacklistWeight
		score.Reasons = append(score.Reasons, "permanently_blacklisted")
	}

	if n, err := s.counters.Intrusions(ctx, ip); err != nil {
		errs = append(errs, err)
	} else if n > 0 {
		score.Value += int(n) * s.cfg.IntrusionWeight
		score.Reasons = append(score.Reasons, fmt.Sprintf("intrusion_attempts:%d", n))
	}

	if n, err := s.counters.FailedAuth(ctx, ip); err != nil {
		errs = append(errs, err)
	} else if n > s.cfg.FailedAuthMinCount {
		score.Value += int(n) * s.cfg.FailedAuthWeight
		score.Reasons = append(score.Reasons, fmt.Sprintf("failed_auth:%d", n))
	}

	if n, err := s.counters.Violations(ctx, ip); err != nil {
		errs = append(errs, err)
	} else if n > s.cfg.ViolationMinCount {
		score.Value += int(n) * s.cfg.ViolationWeight
		score.Reasons = append(score.Reasons, fmt.Sprintf("rate_limit_violations:%d", n))
	}

	score.Blocked = score.Value >= s.cfg.ThreatScoreThreshold
	return score, errors.Join(errs...)
}
