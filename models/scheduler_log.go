package models

import "time"

type SchedulerLogStatus string

const (
	SchedulerLogSuccess SchedulerLogStatus = "success"
	SchedulerLogFailed  SchedulerLogStatus = "failed"
)

// SchedulerLog is the append-only audit trail of phase runs. Rows are never
// updated; cleanup prunes old ones.
type SchedulerLog struct {
	ID       string             `gorm:"primaryKey;type:uuid" json:"id"`
	TaskName string             `gorm:"type:varchar(32);not null;index" json:"task_name"`
	Status   SchedulerLogStatus `gorm:"type:varchar(8);not null" json:"status"`
	Message  string             `gorm:"type:text" json:"message,omitempty"`
	Error    *string            `gorm:"type:text" json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime;index"`
}
