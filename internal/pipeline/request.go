package pipeline

// Verdict is the engine's final decision for one request or event.
type Verdict string

const (
	VerdictAllow     Verdict = "allow"
	VerdictChallenge Verdict = "challenge"
	VerdictBlock     Verdict = "block"
)

// Request is the normalized inbound record every evaluation receives. Inputs
// holds the untrusted fields (body, query, headers) relevant to the endpoint,
// keyed by field name.
type Request struct {
	SourceIP      string
	AccountID     string
	UserAgent     string
	Endpoint      string
	Essential     bool // keeps answering in emergency mode (health, login)
	AuthSensitive bool // threat scorer runs for these endpoints
	LoginEvent    bool // anomaly detector runs for login/session creation
	Inputs        map[string]string
}

// Outcome is what the caller renders. Reason is generic by design: no
// signature, pattern or threshold detail ever leaves the engine.
type Outcome struct {
	Verdict    Verdict  `json:"verdict"`
	Reason     string   `json:"reason,omitempty"`
	StatusHint int      `json:"status_hint,omitempty"`
	Findings   []string `json:"-"` // internal finding tags, for audit only
}

func allowOutcome() Outcome {
	return Outcome{Verdict: VerdictAllow}
}

func blockOutcome(status int, findings ...string) Outcome {
	return Outcome{Verdict: VerdictBlock, Reason: "access denied", StatusHint: status, Findings: findings}
}

func retryOutcome(findings ...string) Outcome {
	return Outcome{Verdict: VerdictBlock, Reason: "too many requests, retry later", StatusHint: 429, Findings: findings}
}

func challengeOutcome(findings ...string) Outcome {
	return Outcome{Verdict: VerdictChallenge, Reason: "additional verification required", StatusHint: 403, Findings: findings}
}
