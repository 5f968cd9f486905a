// Package ddos implements the abuse-rate guard, the cheapest and first check
// on the request path. It is driven entirely by the shared fixed-window
// counters; the guard's only own state is the emergency-mode deadline, a
// single atomic value visible to every concurrent request handler.
package ddos

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/urkovsemen39-cell/smartprice-sub001/internal/abuse"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/config"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/logger"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/metrics"
)

// State classifies a source after a rate check.
type State string

const (
	StateNormal     State = "normal"
	StateSuspicious State = "suspicious"
	StateBlocked    State = "blocked"
)

// Decision is the guard's answer for one request. When State is blocked the
// pipeline, as the single writer, applies the actual transient block.
type Decision struct {
	Allow      bool
	RetryAfter bool // caller should answer retry-later (429)
	State      State
	Emergency  bool
	Reason     string
}

// Guard enforces per-source and global request-rate ceilings.
type Guard struct {
	counters *abuse.Counters
	cfg      config.Config

	// emergencyUntil holds a unix-nano deadline; zero means normal mode.
	// Readers may see a stale value for one evaluation, which is accepted;
	// the deadline guarantees the mode always expires.
	emergencyUntil atomic.Int64
}

// New returns a guard over the shared counters.
func New(counters *abuse.Counters, cfg config.Config) *Guard {
	return &Guard{counters: counters, cfg: cfg}
}

// EmergencyActive reports whether the tightened system-wide limits apply.
func (g *Guard) EmergencyActive() bool {
	until := g.emergencyUntil.Load()
	if until == 0 {
		return false
	}
	if time.Now().UnixNano() >= until {
		// Cool-down elapsed; lazily drop back to normal mode.
		if g.emergencyUntil.CompareAndSwap(until, 0) {
			metrics.SetEmergencyMode(false)
			logger.Log().Info("emergency mode cleared")
		}
		return false
	}
	return true
}

func (g *Guard) enterEmergency() {
	deadline := time.Now().Add(g.cfg.EmergencyCooldown).UnixNano()
	prev := g.emergencyUntil.Swap(deadline)
	if prev == 0 {
		metrics.SetEmergencyMode(true)
		logger.WithFields(map[string]interface{}{
			"cooldown": g.cfg.EmergencyCooldown.String(),
		}).Warn("global request rate exceeded, entering emergency mode")
	}
}

// perIPLimit returns the effective per-source ceiling, tightened by the
// configured factor while emergency mode is active.
func (g *Guard) perIPLimit(emergency bool) int64 {
	limit := g.cfg.PerIPRequestLimit
	if emergency {
		limit = int64(float64(limit) * g.cfg.EmergencyFactor)
		if limit < 1 {
			limit = 1
		}
	}
	return limit
}

// Check records the request against the per-IP and global counters and
// classifies the source. essential marks endpoints that must keep answering
// even in emergency mode; non-essential endpoints get retry-later while the
// mode is active. A counter-store failure fails open.
func (g *Guard) Check(ctx context.Context, ip string, essential bool) Decision {
	perIP, global, err := g.counters.RecordRequest(ctx, ip)
	if err != nil {
		logger.WithFields(map[string]interface{}{"ip": ip, "error": err.Error()}).
			Warn("abuse counters unavailable, rate guard failing open")
		return Decision{Allow: true, State: StateNormal}
	}

	if global > g.cfg.GlobalRequestLimit {
		g.enterEmergency()
	}
	emergency := g.EmergencyActive()

	if emergency && !essential {
		return Decision{RetryAfter: true, State: StateNormal, Emergency: true, Reason: "emergency_mode"}
	}

	limit := g.perIPLimit(emergency)
	switch {
	case perIP > 2*limit:
		// Still hammering well past the ceiling: escalate to a block.
		return Decision{State: StateBlocked, Emergency: emergency, Reason: "request_rate_exceeded"}
	case perIP > limit:
		return Decision{RetryAfter: true, State: StateSuspicious, Emergency: emergency, Reason: "request_rate_suspicious"}
	default:
		return Decision{Allow: true, State: StateNormal, Emergency: emergency}
	}
}
