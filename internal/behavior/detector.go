// Package behavior scores login/session events against each account's
// rolling baseline of known IPs, user agents and session cadence.
package behavior

import (
	"context"
	"time"

	"github.com/urkovsemen39-cell/smartprice-sub001/internal/config"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/models"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/reputation"
)

// Deviation flag names recorded with each detection.
const (
	FlagNewIP        = "new_ip"
	FlagNewUserAgent = "new_user_agent"
	FlagRapidSession = "rapid_session"
)

const flagWeight = 30

// Assessment is the outcome of scoring one authentication event.
type Assessment struct {
	AccountID string
	SourceIP  string
	Score     int
	Flags     []string
	Risk      models.Severity
}

// Detector scores deviation from the account's behavior profile. It only
// reads profiles; the profile service owns all writes.
type Detector struct {
	profiles *ProfileService
	rep      *reputation.Store
	cfg      config.Config
}

// NewDetector returns an anomaly detector over the given profile source.
func NewDetector(profiles *ProfileService, rep *reputation.Store, cfg config.Config) *Detector {
	return &Detector{profiles: profiles, rep: rep, cfg: cfg}
}

// Score evaluates a login/session event. An account without a profile yet
// produces no flags: a first login is not an anomaly. The rapid-session
// signal only counts when combined with another flag, which keeps a user
// who just refreshed a tab from tripping it alone.
func (d *Detector) Score(ctx context.Context, accountID, ip, userAgent string) (Assessment, error) {
	a := Assessment{AccountID: accountID, SourceIP: ip, Risk: models.SeverityLow}

	profile, err := d.profiles.Get(ctx, accountID)
	if err != nil {
		return a, err
	}
	if profile == nil {
		return a, nil
	}

	if known := profile.KnownIPSet(); len(known) > 0 {
		if _, ok := known[ip]; !ok {
			a.Flags = append(a.Flags, FlagNewIP)
		}
	}
	if known := profile.KnownUserAgentSet(); len(known) > 0 && userAgent != "" {
		if _, ok := known[userAgent]; !ok {
			a.Flags = append(a.Flags, FlagNewUserAgent)
		}
	}
	if len(a.Flags) > 0 && !profile.LastSeenAt.IsZero() {
		if time.Since(profile.LastSeenAt) < d.cfg.RapidSessionFloor {
			a.Flags = append(a.Flags, FlagRapidSession)
		}
	}

	a.Score = flagWeight * len(a.Flags)

	blacklisted := false
	if len(a.Flags) > 0 {
		// Blacklist lookup failures are non-fatal here: the admission gate
		// already enforces its own policy before this detector runs.
		blacklisted, _ = d.rep.IsBlacklisted(ctx, ip)
	}

	switch {
	case len(a.Flags) >= 3 || (len(a.Flags) > 0 && blacklisted):
		a.Risk = models.SeverityCritical
	case len(a.Flags) == 2:
		a.Risk = models.SeverityHigh
	case len(a.Flags) == 1:
		a.Risk = models.SeverityMedium
	}
	if blacklisted {
		a.Score += d.cfg.BlacklistWeight
	}

	return a, nil
}
