package queue

import (
	"context"
	"time"

	"github.com/shashiranjanraj/checkout/pkg/logger"
)

// FailedJobRecord is a job that exhausted its retries. The table is created
// by the failed_jobs migration.
type FailedJobRecord struct {
	ID       uint      `gorm:"primaryKey;autoIncrement"`
	JobType  string    `gorm:"size:255;not null;index"`
	Payload  string    `gorm:"type:text;not null"`
	Error    string    `gorm:"type:text"`
	Attempts int       `gorm:"not null;default:0"`
	FailedAt time.Time `gorm:"autoCreateTime"`
}

func (FailedJobRecord) TableName() string { return "failed_jobs" }

func (m *Manager) persistFailed(ctx context.Context, env envelope, lastErr error, attempts int) {
	now := time.Now()
	msg := ""
	if lastErr != nil {
		msg = lastErr.Error()
	}

	m.mu.Lock()
	m.failed = append(m.failed, FailedJob{
		Type: env.Type, Payload: env.Payload, Err: lastErr, FailedAt: now, Attempts: attempts,
	})
	m.mu.Unlock()

	if m.failedDB == nil {
		return
	}

	record := FailedJobRecord{
		JobType:  env.Type,
		Payload:  string(env.Payload),
		Error:    msg,
		Attempts: attempts,
		FailedAt: now,
	}

	// The worker ctx may already be cancelled at shutdown; the record still matters.
	if err := m.failedDB.WithContext(context.WithoutCancel(ctx)).Create(&record).Error; err != nil {
		logger.Error("queue: persist failed job", "type", env.Type, "error", err)
	}
}
