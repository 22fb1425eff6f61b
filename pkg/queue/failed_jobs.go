package queue

import (
	"context"
	"time"

	"github.com/shashiranjanraj/ferremas/pkg/logger"
	"gorm.io/gorm"
)

// FailedJobRecord is the persisted form of a FailedJob.
type FailedJobRecord struct {
	ID       uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	JobType  string    `gorm:"size:255;not null;index" json:"job_type"`
	Payload  string    `gorm:"type:text;not null" json:"payload"`
	Error    string    `gorm:"type:text" json:"error"`
	Attempts int       `gorm:"not null;default:0" json:"attempts"`
	FailedAt time.Time `gorm:"autoCreateTime" json:"failed_at"`
}

func (FailedJobRecord) TableName() string { return "ferremas_failed_jobs" }

// UseDB persists failed jobs to db in addition to the in-memory log.
// The table itself is created by the migrations.
func (m *Manager) UseDB(db *gorm.DB) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.db = db
}

// UseDB configures the default manager.
func UseDB(db *gorm.DB) { Default.UseDB(db) }

func (m *Manager) persistFailed(ctx context.Context, env envelope, lastErr error, attempts int) {
	errText := ""
	if lastErr != nil {
		errText = lastErr.Error()
	}

	m.mu.Lock()
	m.failed = append(m.failed, FailedJob{
		Type: env.Type, Payload: env.Payload, Err: lastErr, FailedAt: time.Now(), Attempts: attempts,
	})
	db := m.db
	m.mu.Unlock()

	if db == nil {
		return
	}

	record := FailedJobRecord{
		JobType:  env.Type,
		Payload:  string(env.Payload),
		Error:    errText,
		Attempts: attempts,
	}
	if err := db.WithContext(context.WithoutCancel(ctx)).Create(&record).Error; err != nil {
		logger.Error("queue: persist failed job", "type", env.Type, "error", err)
	}
}
