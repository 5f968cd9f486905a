package behavior

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/urkovsemen39-cell/smartprice-sub001/internal/config"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/logger"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/models"
)

// ProfileService owns the per-account behavior baselines. The request path
// only ever reads profiles; all mutation happens either lazily on a first
// successful authentication or in the periodic batch recompute, and updates
// replace the whole row so a concurrent reader never observes a
// half-written profile.
type ProfileService struct {
	db  *gorm.DB
	cfg config.Config
}

// NewProfileService returns a profile service over the given DB.
func NewProfileService(db *gorm.DB, cfg config.Config) *ProfileService {
	return &ProfileService{db: db, cfg: cfg}
}

// Get returns the account's profile, or nil when none exists yet.
func (s *ProfileService) Get(ctx context.Context, accountID string) (*models.BehaviorProfile, error) {
	var profile models.BehaviorProfile
	if err := s.db.WithContext(ctx).Where("account_id = ?", accountID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return &profile, nil
}

// RecordSession appends a session event and refreshes the profile's
// last-seen timestamp, creating the profile on an account's first
// successful authentication. Called off the request path by the pipeline's
// async writer.
func (s *ProfileService) RecordSession(ctx context.Context, accountID, ip, userAgent string) error {
	event := models.SessionEvent{
		AccountID: accountID,
		SourceIP:  ip,
		UserAgent: userAgent,
		CreatedAt: time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&event).Error; err != nil {
		return fmt.Errorf("record session: %w", err)
	}

	existing, err := s.Get(ctx, accountID)
	if err != nil {
		return err
	}
	if existing == nil {
		profile := models.BehaviorProfile{
			AccountID:       accountID,
			KnownIPs:        models.EncodeSet([]string{ip}),
			KnownUserAgents: models.EncodeSet([]string{userAgent}),
			LastSeenAt:      event.CreatedAt,
			UpdatedAt:       event.CreatedAt,
		}
		return s.db.WithContext(ctx).Create(&profile).Error
	}

	return s.db.WithContext(ctx).Model(&models.BehaviorProfile{}).
		Where("account_id = ?", accountID).
		Update("last_seen_at", event.CreatedAt).Error
}

// Recompute rebuilds every profile from the session events inside the
// recency window. Runs as an out-of-band batch, fully decoupled from
// request latency; a stale profile degrades detection but never blocks on
// its own.
func (s *ProfileService) Recompute(ctx context.Context) error {
	cutoff := time.Now().AddDate(0, 0, -s.cfg.ProfileWindowDays)

	var accountIDs []string
	if err := s.db.WithContext(ctx).Model(&models.SessionEvent{}).
		Where("created_at >= ?", cutoff).
		Distinct("account_id").
		Pluck("account_id", &accountIDs).Error; err != nil {
		return fmt.Errorf("list active accounts: %w", err)
	}

	for _, accountID := range accountIDs {
		if err := s.recomputeAccount(ctx, accountID, cutoff); err != nil {
			logger.WithFields(map[string]interface{}{
				"account_id": accountID,
				"error":      err.Error(),
			}).Warn("profile recompute failed for account")
		}
	}

	logger.WithFields(map[string]interface{}{"accounts": len(accountIDs)}).
		Debug("behavior profile recompute finished")
	return nil
}

func (s *ProfileService) recomputeAccount(ctx context.Context, accountID string, cutoff time.Time) error {
	var events []models.SessionEvent
	if err := s.db.WithContext(ctx).
		Where("account_id = ? AND created_at >= ?", accountID, cutoff).
		Order("created_at asc").
		Find(&events).Error; err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	ips := distinct(events, func(e models.SessionEvent) string { return e.SourceIP })
	agents := distinct(events, func(e models.SessionEvent) string { return e.UserAgent })

	profile := models.BehaviorProfile{
		AccountID:         accountID,
		KnownIPs:          models.EncodeSet(ips),
		KnownUserAgents:   models.EncodeSet(agents),
		TypicalIntervalMs: typicalIntervalMs(events),
		LastSeenAt:        events[len(events)-1].CreatedAt,
		UpdatedAt:         time.Now(),
	}

	// Replace the whole row in one statement so readers see either the old
	// or the new profile, never a mix.
	existing, err := s.Get(ctx, accountID)
	if err != nil {
		return err
	}
	if existing == nil {
		return s.db.WithContext(ctx).Create(&profile).Error
	}
	profile.ID = existing.ID
	return s.db.WithContext(ctx).Save(&profile).Error
}

// typicalIntervalMs returns the median gap between consecutive sessions.
func typicalIntervalMs(events []models.SessionEvent) int64 {
	if len(events) < 2 {
		return 0
	}
	gaps := make([]int64, 0, len(events)-1)
	for i := 1; i < len(events); i++ {
		gaps = append(gaps, events[i].CreatedAt.Sub(events[i-1].CreatedAt).Milliseconds())
	}
	sort.Slice(gaps, func(i, j int) bool { return gaps[i] < gaps[j] })
	return gaps[len(gaps)/2]
}

func distinct(events []models.SessionEvent, pick func(models.SessionEvent) string) []string {
	seen := make(map[string]struct{}, len(events))
	out := make([]string, 0, len(events))
	for _, e := range events {
		v := pick(e)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
