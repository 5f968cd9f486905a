// Package pipeline orchestrates the detectors into a single verdict per
// request. It is the engine's single writer: only this package mutates the
// reputation store or raises incidents, so two concurrently running
// detectors can never double-apply a block. Detectors hand findings back;
// the pipeline decides.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/urkovsemen39-cell/smartprice-sub001/internal/abuse"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/alert"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/behavior"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/config"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/ddos"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/detect"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/logger"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/metrics"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/models"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/reputation"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/threat"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/util"
)

const pipelineActor = "pipeline"

// Engine runs the evaluation order mandated by cost: admission gate, rate
// guard, signature detector, then the auth-sensitive scorers. Verdicts are
// monotonic; the first block short-circuits everything after it.
type Engine struct {
	detector *detect.Detector
	guard    *ddos.Guard
	scorer   *threat.Scorer
	anomaly  *behavior.Detector
	rep      *reputation.Store
	counters *abuse.Counters
	recorder *Recorder
	notifier *alert.Notifier
	cfg      config.Config
}

// NewEngine wires the detectors into a pipeline.
func NewEngine(
	detector *detect.Detector,
	guard *ddos.Guard,
	scorer *threat.Scorer,
	anomaly *behavior.Detector,
	rep *reputation.Store,
	counters *abuse.Counters,
	recorder *Recorder,
	notifier *alert.Notifier,
	cfg config.Config,
) *Engine {
	return &Engine{
		detector: detector,
		guard:    guard,
		scorer:   scorer,
		anomaly:  anomaly,
		rep:      rep,
		counters: counters,
		recorder: recorder,
		notifier: notifier,
		cfg:      cfg,
	}
}

// Evaluate produces the verdict for one request or event.
func (e *Engine) Evaluate(ctx context.Context, req Request) Outcome {
	out := e.evaluate(ctx, req)
	metrics.IncEvaluation(string(out.Verdict))
	return out
}

func (e *Engine) evaluate(ctx context.Context, req Request) Outcome {
	// Admission gate: a non-expired block entry rejects the request before
	// any other detector runs. Only the application of a block is audited,
	// not every rejected request it causes, to keep the audit log bounded
	// under a sustained flood from an already-blocked source.
	blocked, err := e.rep.IsBlocked(ctx, req.SourceIP)
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"ip":    req.SourceIP,
			"error": err.Error(),
		}).Warn("reputation lookup degraded")
	}
	if blocked {
		return blockOutcome(403, "ip_blocked")
	}

	// Rate guard: cheapest check, highest rejection rate.
	decision := e.guard.Check(ctx, req.SourceIP, req.Essential)
	switch {
	case decision.State == ddos.StateBlocked:
		e.applyBlock(ctx, blockRequest{
			IP:       req.SourceIP,
			Reason:   decision.Reason,
			Duration: e.cfg.GuardBlockDuration,
			Severity: models.SeverityHigh,
			Detail:   fmt.Sprintf("request rate ceiling exceeded on %s", req.Endpoint),
		})
		return retryOutcome(decision.Reason)
	case decision.RetryAfter:
		// A rate-limit violation is a per-source signal: it feeds the threat
		// score, so only sources the guard itself classified as suspicious
		// accrue one. Emergency-mode retries hit sources that never exceeded
		// their own limit and must not poison their score.
		if decision.State == ddos.StateSuspicious {
			if _, err := e.counters.RecordViolation(ctx, req.SourceIP); err != nil {
				logger.Log().WithField("ip", req.SourceIP).Debug("violation counter unavailable")
			}
		}
		e.audit(req.SourceIP, "throttle", decision.Reason, req.Endpoint)
		return retryOutcome(decision.Reason)
	}

	// Signature detector over every untrusted input field.
	if out, done := e.inspectInputs(ctx, req); done {
		return out
	}

	verdict := allowOutcome()

	if req.AuthSensitive {
		if out, done := e.scoreThreat(ctx, req); done {
			return out
		}
	}

	if req.LoginEvent && req.AccountID != "" {
		out, done := e.scoreBehavior(ctx, req)
		if done {
			return out
		}
		if out.Verdict == VerdictChallenge {
			verdict = out
		}
	}

	if verdict.Verdict == VerdictAllow && req.LoginEvent && req.AccountID != "" {
		e.recorder.SaveSession(req.AccountID, req.SourceIP, req.UserAgent)
	}

	return verdict
}

// inspectInputs runs the signature detector across the request's untrusted
// fields. The boolean result reports whether evaluation is finished.
func (e *Engine) inspectInputs(ctx context.Context, req Request) (Outcome, bool) {
	for field, value := range req.Inputs {
		match := e.detector.Inspect(value)
		if !match.Matched {
			continue
		}

		metrics.IncIntrusion(string(match.Family))
		if _, err := e.counters.RecordIntrusion(ctx, req.SourceIP); err != nil {
			logger.Log().WithField("ip", req.SourceIP).Debug("intrusion counter unavailable")
		}
		e.recorder.SaveIntrusion(models.IntrusionAttempt{
			UUID:      uuid.NewString(),
			SourceIP:  req.SourceIP,
			AccountID: req.AccountID,
			Type:      match.Family,
			Severity:  match.Severity,
			Evidence:  evidence(field, value, match.Pattern),
			CreatedAt: time.Now(),
		})

		if match.Severity == models.SeverityCritical {
			e.applyBlock(ctx, blockRequest{
				IP:        req.SourceIP,
				AccountID: req.AccountID,
				Reason:    "intrusion_" + string(match.Family),
				Duration:  e.cfg.BaseBlockDuration * time.Duration(e.cfg.CriticalBlockMultiplier),
				Severity:  models.SeverityCritical,
				Detail:    fmt.Sprintf("%s signature match in field %q on %s", match.Family, field, req.Endpoint),
			})
			return blockOutcome(403, "signature_"+string(match.Family)), true
		}

		// High-severity families get a challenge rather than an outright
		// block; scanning stops at the first match to bound latency.
		e.audit(req.SourceIP, "challenge", "signature_"+string(match.Family), req.Endpoint)
		return challengeOutcome("signature_" + string(match.Family)), true
	}
	return Outcome{}, false
}

func (e *Engine) scoreThreat(ctx context.Context, req Request) (Outcome, bool) {
	score, err := e.scorer.Evaluate(ctx, req.SourceIP)
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"ip":    req.SourceIP,
			"error": err.Error(),
		}).Warn("threat score computed from partial signals")
	}
	if !score.Blocked {
		return Outcome{}, false
	}

	duration := e.cfg.BaseBlockDuration
	if prior, err := e.counters.Offenses(ctx, req.SourceIP); err == nil && prior > 0 {
		duration *= 2
	}
	if _, err := e.counters.RecordOffense(ctx, req.SourceIP); err != nil {
		logger.Log().WithField("ip", req.SourceIP).Debug("offense counter unavailable")
	}

	reasons, _ := json.Marshal(score.Reasons)
	e.applyBlock(ctx, blockRequest{
		IP:        req.SourceIP,
		AccountID: req.AccountID,
		Reason:    "high_threat_score",
		Duration:  duration,
		Severity:  models.SeverityHigh,
		Detail:    fmt.Sprintf("threat score %d: %s", score.Value, reasons),
	})
	return blockOutcome(403, append([]string{"high_threat_score"}, score.Reasons...)...), true
}

func (e *Engine) scoreBehavior(ctx context.Context, req Request) (Outcome, bool) {
	assessment, err := e.anomaly.Score(ctx, req.AccountID, req.SourceIP, req.UserAgent)
	if err != nil {
		// A missing or unreadable profile degrades detection, never blocks.
		logger.WithFields(map[string]interface{}{
			"account_id": req.AccountID,
			"error":      err.Error(),
		}).Warn("behavior profile unavailable, anomaly scoring skipped")
		return Outcome{}, false
	}
	if len(assessment.Flags) == 0 {
		return Outcome{}, false
	}

	metrics.IncAnomaly(string(assessment.Risk))
	e.recorder.SaveAnomaly(models.AnomalyDetection{
		UUID:       uuid.NewString(),
		AccountID:  req.AccountID,
		SourceIP:   req.SourceIP,
		Score:      assessment.Score,
		Anomalies:  models.EncodeSet(assessment.Flags),
		Risk:       assessment.Risk,
		DetectedAt: time.Now(),
	})

	switch assessment.Risk {
	case models.SeverityCritical:
		// Same blocking path as a critical signature match.
		e.applyBlock(ctx, blockRequest{
			IP:        req.SourceIP,
			AccountID: req.AccountID,
			Reason:    "behavior_anomaly",
			Duration:  e.cfg.BaseBlockDuration * time.Duration(e.cfg.CriticalBlockMultiplier),
			Severity:  models.SeverityCritical,
			Detail:    fmt.Sprintf("anomaly flags %v for account %s", assessment.Flags, req.AccountID),
		})
		return blockOutcome(403, assessment.Flags...), true
	case models.SeverityHigh:
		e.audit(req.SourceIP, "challenge", "behavior_anomaly", req.Endpoint)
		return challengeOutcome(assessment.Flags...), false
	default:
		return Outcome{}, false
	}
}

// ReportFailedAuth is called by the host application when an authentication
// attempt fails; it feeds the failed-auth and credential-stuffing signals.
func (e *Engine) ReportFailedAuth(ctx context.Context, ip string) {
	if _, err := e.counters.RecordFailedAuth(ctx, ip); err != nil {
		logger.Log().WithField("ip", ip).Debug("failed-auth counter unavailable")
	}
	if _, err := e.counters.RecordCredentialStuffing(ctx, ip); err != nil {
		logger.Log().WithField("ip", ip).Debug("credential-stuffing counter unavailable")
	}
}

// blockRequest carries everything applyBlock needs to mutate state once.
type blockRequest struct {
	IP        string
	AccountID string
	Reason    string
	Duration  time.Duration
	Severity  models.Severity
	Detail    string
}

// applyBlock is the one place block entries and incidents are written.
func (e *Engine) applyBlock(ctx context.Context, br blockRequest) {
	if err := e.rep.Block(ctx, br.IP, br.Reason, br.Duration); err != nil {
		logger.WithFields(map[string]interface{}{
			"ip":    br.IP,
			"error": err.Error(),
		}).Error("failed to apply block entry")
	}
	metrics.IncBlock(br.Reason)

	e.audit(br.IP, "block", br.Reason, br.Detail)

	if br.Severity.AtLeast(models.Severity(e.cfg.AlertMinSeverity)) {
		identifiers := []string{br.IP}
		if br.AccountID != "" {
			identifiers = append(identifiers, br.AccountID)
		}
		incident := models.SecurityIncident{
			UUID:                uuid.NewString(),
			Type:                br.Reason,
			Severity:            br.Severity,
			Description:         br.Detail,
			AffectedIdentifiers: models.EncodeSet(identifiers),
			Status:              models.IncidentOpen,
			CreatedAt:           time.Now(),
		}
		e.recorder.SaveIncident(incident)
		e.notifier.IncidentRaised(incident)
	}
}

func (e *Engine) audit(ip, action, reason, details string) {
	e.recorder.SaveAudit(models.AuditEntry{
		UUID:      uuid.NewString(),
		Actor:     pipelineActor,
		Action:    action,
		SourceIP:  ip,
		Reason:    reason,
		Details:   util.SanitizeForLog(details),
		CreatedAt: time.Now(),
	})
}

// ManualBlock applies an operator-initiated block through the same writer
// path the detectors use. A zero duration blacklists permanently.
func (e *Engine) ManualBlock(ctx context.Context, actor, ip, reason string, duration time.Duration) error {
	if err := e.rep.Block(ctx, ip, reason, duration); err != nil {
		return err
	}
	metrics.IncBlock("manual")
	e.recorder.SaveAudit(models.AuditEntry{
		UUID:      uuid.NewString(),
		Actor:     actor,
		Action:    "block",
		SourceIP:  ip,
		Reason:    reason,
		Details:   fmt.Sprintf("manual block for %s", duration),
		CreatedAt: time.Now(),
	})
	return nil
}

// ManualUnblock lifts both transient and permanent blocks for ip.
func (e *Engine) ManualUnblock(ctx context.Context, actor, ip string) error {
	if err := e.rep.Unblock(ctx, ip); err != nil {
		return err
	}
	e.recorder.SaveAudit(models.AuditEntry{
		UUID:      uuid.NewString(),
		Actor:     actor,
		Action:    "unblock",
		SourceIP:  ip,
		Reason:    "manual",
		CreatedAt: time.Now(),
	})
	return nil
}

// evidence builds the sanitized free-form payload stored with an intrusion
// attempt. Input excerpts are truncated so a hostile payload cannot bloat
// the store.
func evidence(field, value, pattern string) string {
	excerpt := util.SanitizeForLog(value)
	if len(excerpt) > 256 {
		cut := 256
		// Back up to a rune start so the cut never leaves a mangled
		// partial rune at the end of the excerpt.
		for cut > 0 && !utf8.RuneStart(excerpt[cut]) {
			cut--
		}
		excerpt = excerpt[:cut]
	}
	payload := map[string]string{"field": field, "pattern": pattern, "excerpt": excerpt}
	b, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	return string(b)
}
