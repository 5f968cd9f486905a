package pipeline

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/urkovsemen39-cell/smartprice-sub001/internal/behavior"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/logger"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/metrics"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/models"
)

const (
	recorderQueueSize = 1024
	recorderAttempts  = 3
	recorderBackoff   = 200 * time.Millisecond
	recorderTimeout   = 5 * time.Second
)

type writeJob struct {
	name string
	fn   func(ctx context.Context) error
}

// Recorder persists the pipeline's records off the request path. A failed
// write is retried with backoff on the worker goroutine and never alters a
// verdict that was already computed; when the queue is full the write is
// dropped and counted rather than blocking a request.
type Recorder struct {
	db       *gorm.DB
	profiles *behavior.ProfileService
	jobs     chan writeJob
	done     chan struct{}
}

// NewRecorder starts the background write worker.
func NewRecorder(db *gorm.DB, profiles *behavior.ProfileService) *Recorder {
	r := &Recorder{
		db:       db,
		profiles: profiles,
		jobs:     make(chan writeJob, recorderQueueSize),
		done:     make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Recorder) run() {
	defer close(r.done)
	for job := range r.jobs {
		r.execute(job)
	}
}

func (r *Recorder) execute(job writeJob) {
	var err error
	for attempt := 1; attempt <= recorderAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), recorderTimeout)
		err = job.fn(ctx)
		cancel()
		if err == nil {
			return
		}
		time.Sleep(recorderBackoff * time.Duration(attempt))
	}
	metrics.IncDroppedWrite()
	logger.WithFields(map[string]interface{}{
		"record": job.name,
		"error":  err.Error(),
	}).Error("record write abandoned after retries")
}

func (r *Recorder) enqueue(name string, fn func(ctx context.Context) error) {
	select {
	case r.jobs <- writeJob{name: name, fn: fn}:
	default:
		metrics.IncDroppedWrite()
		logger.WithFields(map[string]interface{}{"record": name}).
			Warn("record queue full, write dropped")
	}
}

// Close stops the worker after draining queued writes.
func (r *Recorder) Close() {
	close(r.jobs)
	<-r.done
}

// SaveIntrusion queues an intrusion-attempt record.
func (r *Recorder) SaveIntrusion(attempt models.IntrusionAttempt) {
	r.enqueue("intrusion_attempt", func(ctx context.Context) error {
		return r.db.WithContext(ctx).Create(&attempt).Error
	})
}

// SaveAnomaly queues an anomaly-detection record.
func (r *Recorder) SaveAnomaly(det models.AnomalyDetection) {
	r.enqueue("anomaly_detection", func(ctx context.Context) error {
		return r.db.WithContext(ctx).Create(&det).Error
	})
}

// SaveIncident queues a security-incident record.
func (r *Recorder) SaveIncident(incident models.SecurityIncident) {
	r.enqueue("security_incident", func(ctx context.Context) error {
		return r.db.WithContext(ctx).Create(&incident).Error
	})
}

// SaveAudit queues an audit entry.
func (r *Recorder) SaveAudit(entry models.AuditEntry) {
	r.enqueue("audit_entry", func(ctx context.Context) error {
		return r.db.WithContext(ctx).Create(&entry).Error
	})
}

// SaveSession queues the successful-authentication bookkeeping: the session
// event plus the lazy profile create / last-seen refresh.
func (r *Recorder) SaveSession(accountID, ip, userAgent string) {
	r.enqueue("session_event", func(ctx context.Context) error {
		return r.profiles.RecordSession(ctx, accountID, ip, userAgent)
	})
}

// PurgeExpired deletes records past the retention window. Runs from the
// scheduled purge job, not the request path.
func (r *Recorder) PurgeExpired(ctx context.Context, retentionDays int) error {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	for _, target := range []interface{}{
		&models.IntrusionAttempt{},
		&models.SessionEvent{},
		&models.AuditEntry{},
	} {
		if err := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(target).Error; err != nil {
			return err
		}
	}
	return r.db.WithContext(ctx).Where("detected_at < ?", cutoff).Delete(&models.AnomalyDetection{}).Error
}
