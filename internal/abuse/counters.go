// Package abuse maintains the fixed-window counter families every detector
// reads its rate and velocity signals from. Counters live in the shared kv
// store so concurrent request workers, and other engine instances, see one
// consistent count per source.
package abuse

import (
	"context"
	"fmt"
	"time"

	"github.com/urkovsemen39-cell/smartprice-sub001/internal/config"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/kv"
)

// Counter purposes. One logical counter family per detection signal.
const (
	PurposeRequestRate        = "reqrate"
	PurposeGlobalRate         = "globalrate"
	PurposeFailedAuth         = "failedauth"
	PurposeViolation          = "violation"
	PurposeIntrusion          = "intrusion"
	PurposeCredentialStuffing = "credstuff"
	PurposeRepeatOffense      = "offense"
)

// globalKey is the single shared key for the system-wide request rate.
const globalKey = "abuse:globalrate:all"

// Counters wraps the kv store with one typed helper per counter family.
// Increments are atomic increment-and-check operations; callers decide the
// fail-open/fail-closed policy when the store errors.
type Counters struct {
	store kv.Store
	cfg   config.Config
}

// New returns a counter set over the given store and window configuration.
func New(store kv.Store, cfg config.Config) *Counters {
	return &Counters{store: store, cfg: cfg}
}

func key(purpose, source string) string {
	return fmt.Sprintf("abuse:%s:%s", purpose, source)
}

func (c *Counters) incr(ctx context.Context, purpose, source string, window time.Duration) (int64, error) {
	return c.store.IncrWindow(ctx, key(purpose, source), window)
}

func (c *Counters) get(ctx context.Context, purpose, source string) (int64, error) {
	return c.store.GetCount(ctx, key(purpose, source))
}

// RecordRequest bumps both the per-IP and the global request-rate counters
// and returns the new values. The global bump still happens when the per-IP
// one fails; the first error is reported.
func (c *Counters) RecordRequest(ctx context.Context, ip string) (perIP, global int64, err error) {
	perIP, err = c.incr(ctx, PurposeRequestRate, ip, c.cfg.RequestRateWindow)
	global, gerr := c.store.IncrWindow(ctx, globalKey, c.cfg.RequestRateWindow)
	if err == nil {
		err = gerr
	}
	return perIP, global, err
}

// GlobalRate returns the current system-wide request count in the window.
func (c *Counters) GlobalRate(ctx context.Context) (int64, error) {
	return c.store.GetCount(ctx, globalKey)
}

// RecordFailedAuth bumps the failed-authentication counter for ip.
func (c *Counters) RecordFailedAuth(ctx context.Context, ip string) (int64, error) {
	return c.incr(ctx, PurposeFailedAuth, ip, c.cfg.FailedAuthWindow)
}

// FailedAuth returns the failed-authentication count for ip.
func (c *Counters) FailedAuth(ctx context.Context, ip string) (int64, error) {
	return c.get(ctx, PurposeFailedAuth, ip)
}

// RecordViolation bumps the rate-limit-violation counter for ip.
func (c *Counters) RecordViolation(ctx context.Context, ip string) (int64, error) {
	return c.incr(ctx, PurposeViolation, ip, c.cfg.ViolationWindow)
}

// Violations returns the rate-limit-violation count for ip.
func (c *Counters) Violations(ctx context.Context, ip string) (int64, error) {
	return c.get(ctx, PurposeViolation, ip)
}

// RecordIntrusion bumps the intrusion-attempt counter for ip.
func (c *Counters) RecordIntrusion(ctx context.Context, ip string) (int64, error) {
	return c.incr(ctx, PurposeIntrusion, ip, c.cfg.IntrusionWindow)
}

// Intrusions returns the intrusion-attempt count for ip.
func (c *Counters) Intrusions(ctx context.Context, ip string) (int64, error) {
	return c.get(ctx, PurposeIntrusion, ip)
}

// RecordCredentialStuffing bumps the credential-stuffing counter for ip.
func (c *Counters) RecordCredentialStuffing(ctx context.Context, ip string) (int64, error) {
	return c.incr(ctx, PurposeCredentialStuffing, ip, c.cfg.CredentialStuffingWindow)
}

// RecordOffense bumps the repeat-offender counter for ip; the pipeline uses
// it to double block durations for sources blocked more than once a day.
func (c *Counters) RecordOffense(ctx context.Context, ip string) (int64, error) {
	return c.incr(ctx, PurposeRepeatOffense, ip, c.cfg.RepeatOffenderWindow)
}

// Offenses returns the repeat-offender count for ip.
func (c *Counters) Offenses(ctx context.Context, ip string) (int64, error) {
	return c.get(ctx, PurposeRepeatOffense, ip)
}

// Reset clears one counter for one source.
func (c *Counters) Reset(ctx context.Context, purpose, source string) error {
	return c.store.Del(ctx, key(purpose, source))
}
