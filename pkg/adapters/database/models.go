package database

import (
	"time"
)

type FunctionSizingRow struct {
	ID               uint      `gorm:"column:id;primaryKey;autoIncrement"`
	FunctionID       string    `gorm:"column:function_id;uniqueIndex"`
	ProvisionedMemMB int       `gorm:"column:provisioned_mem_mb"`
	FunctionMemMB    int       `gorm:"column:function_mem_mb"`
	CallerMemMB      int       `gorm:"column:caller_mem_mb"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (FunctionSizingRow) TableName() string {
	return "function_sizings"
}

type ScalingStateRow struct {
	ID           uint      `gorm:"column:id;primaryKey;autoIncrement"`
	FunctionID   string    `gorm:"column:function_id;uniqueIndex"`
	Activity     float64   `gorm:"column:activity"`
	Waiting      float64   `gorm:"column:waiting"`
	CurrentScale int       `gorm:"column:current_scale"`
	LastRescale  time.Time `gorm:"column:last_rescale"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime;index"`
}

func (ScalingStateRow) TableName() string {
	return "scaling_states"
}

type SampleRow struct {
	ID           uint      `gorm:"column:id;primaryKey;autoIncrement"`
	FunctionID   string    `gorm:"column:function_id;index:idx_samples_fn_observed"`
	DurationSecs float64   `gorm:"column:duration_secs"`
	ObservedAt   time.Time `gorm:"column:observed_at;index:idx_samples_fn_observed"`
}

func (SampleRow) TableName() string {
	return "samples"
}

type LeaseRow struct {
	Key       string    `gorm:"column:key;primaryKey"`
	Owner     string    `gorm:"column:owner"`
	ExpiresAt time.Time `gorm:"column:expires_at;index"`
}

func (LeaseRow) TableName() string {
	return "leases"
}
