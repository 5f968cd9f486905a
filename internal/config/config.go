package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config captures runtime configuration sourced from environment variables.
// Every detection threshold, weight and window lives here rather than in the
// detectors themselves; the literal defaults are policy, not invariants.
type Config struct {
	Environment  string
	HTTPPort     string
	DatabasePath string
	RedisURL     string

	// Ops API authentication
	JWTSecret    string
	OpsTokenHash string // bcrypt hash of the ops token; empty disables the ops login
	JWTTTL       time.Duration

	// Per-operation deadline against the key-value store. Nothing on the
	// request path is allowed to wait longer than this.
	KVTimeout time.Duration

	// Signature detector / blocking policy
	BaseBlockDuration       time.Duration // transient block on a threat-score breach
	CriticalBlockMultiplier int           // critical signature matches block for Base * this

	// Threat scorer weights (see Scorer for the aggregation rules)
	BlacklistWeight      int
	IntrusionWeight      int
	FailedAuthWeight     int
	FailedAuthMinCount   int64
	ViolationWeight      int
	ViolationMinCount    int64
	ThreatScoreThreshold int

	// Fixed-window counter durations
	CredentialStuffingWindow time.Duration
	FailedAuthWindow         time.Duration
	ViolationWindow          time.Duration
	IntrusionWindow          time.Duration
	RequestRateWindow        time.Duration
	RepeatOffenderWindow     time.Duration

	// Abuse-rate guard
	PerIPRequestLimit  int64
	GlobalRequestLimit int64
	EmergencyFactor    float64 // per-IP limits are multiplied by this in emergency mode
	EmergencyCooldown  time.Duration
	GuardBlockDuration time.Duration

	// Behavior anomaly detector
	RapidSessionFloor time.Duration
	ProfileWindowDays int
	RetentionDays     int
	RecomputeSpec     string // cron spec for the profile recompute batch
	PurgeSpec         string // cron spec for the retention purge

	// Store failure policy. Abuse/rate signals fail open so a counter outage
	// cannot take down all traffic; the permanent blacklist fails closed when
	// it is reachable so a slow counter store never masks a known-bad IP.
	FailOpenCounters  bool
	FailOpenBlacklist bool

	// Alerting
	AlertURL         string // shoutrrr URL; empty disables external alerts
	AlertMinSeverity string
}

// Load reads env vars and falls back to defaults so the engine can boot with zero configuration.
func Load() (Config, error) {
	cfg := Config{
		Environment:  getEnv("SENTINEL_ENV", "development"),
		HTTPPort:     getEnv("SENTINEL_HTTP_PORT", "8090"),
		DatabasePath: getEnv("SENTINEL_DB_PATH", filepath.Join("data", "sentinel.db")),
		RedisURL:     getEnv("SENTINEL_REDIS_URL", ""),

		JWTSecret:    getEnv("SENTINEL_JWT_SECRET", ""),
		OpsTokenHash: getEnv("SENTINEL_OPS_TOKEN_HASH", ""),
		JWTTTL:       getEnvDuration("SENTINEL_JWT_TTL", time.Hour),

		KVTimeout: getEnvDuration("SENTINEL_KV_TIMEOUT", 250*time.Millisecond),

		BaseBlockDuration:       getEnvDuration("SENTINEL_BASE_BLOCK_DURATION", time.Hour),
		CriticalBlockMultiplier: getEnvInt("SENTINEL_CRITICAL_BLOCK_MULTIPLIER", 2),

		BlacklistWeight:      getEnvInt("SENTINEL_WEIGHT_BLACKLIST", 100),
		IntrusionWeight:      getEnvInt("SENTINEL_WEIGHT_INTRUSION", 20),
		FailedAuthWeight:     getEnvInt("SENTINEL_WEIGHT_FAILED_AUTH", 5),
		FailedAuthMinCount:   int64(getEnvInt("SENTINEL_FAILED_AUTH_MIN", 5)),
		ViolationWeight:      getEnvInt("SENTINEL_WEIGHT_VIOLATION", 2),
		ViolationMinCount:    int64(getEnvInt("SENTINEL_VIOLATION_MIN", 10)),
		ThreatScoreThreshold: getEnvInt("SENTINEL_THREAT_THRESHOLD", 100),

		CredentialStuffingWindow: getEnvDuration("SENTINEL_CRED_STUFFING_WINDOW", 5*time.Minute),
		FailedAuthWindow:         getEnvDuration("SENTINEL_FAILED_AUTH_WINDOW", time.Hour),
		ViolationWindow:          getEnvDuration("SENTINEL_VIOLATION_WINDOW", time.Hour),
		IntrusionWindow:          getEnvDuration("SENTINEL_INTRUSION_WINDOW", time.Hour),
		RequestRateWindow:        getEnvDuration("SENTINEL_REQUEST_RATE_WINDOW", time.Minute),
		RepeatOffenderWindow:     getEnvDuration("SENTINEL_REPEAT_OFFENDER_WINDOW", 24*time.Hour),

		PerIPRequestLimit:  int64(getEnvInt("SENTINEL_PER_IP_LIMIT", 300)),
		GlobalRequestLimit: int64(getEnvInt("SENTINEL_GLOBAL_LIMIT", 10000)),
		EmergencyFactor:    getEnvFloat("SENTINEL_EMERGENCY_FACTOR", 0.5),
		EmergencyCooldown:  getEnvDuration("SENTINEL_EMERGENCY_COOLDOWN", 5*time.Minute),
		GuardBlockDuration: getEnvDuration("SENTINEL_GUARD_BLOCK_DURATION", 10*time.Minute),

		RapidSessionFloor: getEnvDuration("SENTINEL_RAPID_SESSION_FLOOR", 60*time.Second),
		ProfileWindowDays: getEnvInt("SENTINEL_PROFILE_WINDOW_DAYS", 90),
		RetentionDays:     getEnvInt("SENTINEL_RETENTION_DAYS", 90),
		RecomputeSpec:     getEnv("SENTINEL_RECOMPUTE_SPEC", "@every 15m"),
		PurgeSpec:         getEnv("SENTINEL_PURGE_SPEC", "@daily"),

		FailOpenCounters:  getEnvBool("SENTINEL_FAIL_OPEN_COUNTERS", true),
		FailOpenBlacklist: getEnvBool("SENTINEL_FAIL_OPEN_BLACKLIST", false),

		AlertURL:         getEnv("SENTINEL_ALERT_URL", ""),
		AlertMinSeverity: getEnv("SENTINEL_ALERT_MIN_SEVERITY", "high"),
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		return Config{}, fmt.Errorf("ensure data directory: %w", err)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
