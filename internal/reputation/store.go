// Package reputation is the engine's IP admission gate: a durable permanent
// blacklist in the relational store plus transient, TTL-bound blocks in the
// shared kv store. Only the decision pipeline writes here; detectors report
// findings and never self-apply blocks.
package reputation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/urkovsemen39-cell/smartprice-sub001/internal/config"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/kv"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/models"
)

var ErrBlacklistUnavailable = errors.New("reputation: blacklist store unavailable")

// BlockEntry is the payload stored with a transient block. ExpiresAt is nil
// for permanent entries (those live in the blacklist table instead).
type BlockEntry struct {
	IP        string     `json:"ip"`
	Reason    string     `json:"reason"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Store combines the permanent blacklist with the transient block list.
type Store struct {
	db  *gorm.DB
	kvs kv.Store
	cfg config.Config
}

// New returns a reputation store over the given backends.
func New(db *gorm.DB, kvs kv.Store, cfg config.Config) *Store {
	return &Store{db: db, kvs: kvs, cfg: cfg}
}

func blockKey(ip string) string {
	return "block:ip:" + ip
}

// Block applies a transient block for duration, or a permanent blacklist
// entry when duration is zero or negative.
func (s *Store) Block(ctx context.Context, ip, reason string, duration time.Duration) error {
	if duration <= 0 {
		return s.Blacklist(ctx, ip, reason)
	}

	now := time.Now()
	exp := now.Add(duration)
	entry := BlockEntry{IP: ip, Reason: reason, CreatedAt: now, ExpiresAt: &exp}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal block entry: %w", err)
	}
	return s.kvs.SetTTL(ctx, blockKey(ip), string(payload), duration)
}

// Blacklist adds ip to the permanent blacklist. Re-blacklisting an IP
// refreshes the reason without error.
func (s *Store) Blacklist(ctx context.Context, ip, reason string) error {
	entry := models.BlacklistEntry{
		UUID:      uuid.NewString(),
		IP:        ip,
		Reason:    reason,
		CreatedAt: time.Now(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ip"}},
		DoUpdates: clause.AssignmentColumns([]string{"reason"}),
	}).Create(&entry).Error
}

// Unblock lifts both the transient block and any permanent blacklist entry.
func (s *Store) Unblock(ctx context.Context, ip string) error {
	kvErr := s.kvs.Del(ctx, blockKey(ip))
	dbErr := s.db.WithContext(ctx).Where("ip = ?", ip).Delete(&models.BlacklistEntry{}).Error
	if dbErr != nil {
		return dbErr
	}
	return kvErr
}

// IsBlacklisted reports whether ip has a permanent blacklist entry.
func (s *Store) IsBlacklisted(ctx context.Context, ip string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.BlacklistEntry{}).Where("ip = ?", ip).Count(&count).Error; err != nil {
		return false, fmt.Errorf("%w: %v", ErrBlacklistUnavailable, err)
	}
	return count > 0, nil
}

// IsBlocked is the union admission gate: true when either a transient block
// or a permanent blacklist entry exists. Store failures follow the
// configured policy: an unreachable blacklist denies unless
// FailOpenBlacklist is set, while a failing kv store only loses the
// transient signal (fail open) so a counter-store outage cannot take all
// traffic down. The returned error is for logging; the bool is the verdict.
func (s *Store) IsBlocked(ctx context.Context, ip string) (bool, error) {
	listed, err := s.IsBlacklisted(ctx, ip)
	if err != nil {
		if !s.cfg.FailOpenBlacklist {
			return true, err
		}
	} else if listed {
		return true, nil
	}

	present, kvErr := s.kvs.Exists(ctx, blockKey(ip))
	if kvErr != nil {
		return false, errors.Join(err, kvErr)
	}
	return present, err
}

// TransientEntry returns the decoded transient block for ip, nil when none
// exists.
func (s *Store) TransientEntry(ctx context.Context, ip string) (*BlockEntry, error) {
	raw, err := s.kvs.Get(ctx, blockKey(ip))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var entry BlockEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, fmt.Errorf("decode block entry: %w", err)
	}
	return &entry, nil
}

// ListBlacklist returns all permanent entries, newest first.
func (s *Store) ListBlacklist(ctx context.Context) ([]models.BlacklistEntry, error) {
	var entries []models.BlacklistEntry
	if err := s.db.WithContext(ctx).Order("created_at desc").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
