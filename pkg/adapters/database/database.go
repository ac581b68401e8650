package database

import (
	"errors"
	"fmt"
	"time"

	"github.com/flexscale/flexscale/pkg/adapters/database/clients"
	"github.com/flexscale/flexscale/pkg/ports"
	"github.com/flexscale/flexscale/pkg/types"
	"gorm.io/gorm"
)

// DatabaseConfig holds configuration for database connections
type DatabaseConfig struct {
	Type     string `yaml:"type" json:"type"`         // "sqlite" or "postgres"
	Host     string `yaml:"host" json:"host"`         // For postgres
	Port     int    `yaml:"port" json:"port"`         // For postgres
	Database string `yaml:"database" json:"database"` // Database name or file path
	Username string `yaml:"username" json:"username"` // For postgres
	Password string `yaml:"password" json:"password"` // For postgres
	SSLMode  string `yaml:"sslmode" json:"sslmode"`   // For postgres
}

// NewDatabase creates a new storage instance based on the configuration
func NewDatabase(config DatabaseConfig) (ports.Database, error) {
	clientFactory, err := clients.CreateClientFactory(clients.FactoryConfig{
		Type:     config.Type,
		Host:     config.Host,
		Port:     config.Port,
		Database: config.Database,
		Username: config.Username,
		Password: config.Password,
		SSLMode:  config.SSLMode,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client factory: %w", err)
	}

	db, err := clientFactory.CreateClient()
	if err != nil {
		return nil, fmt.Errorf("failed to create database client: %w", err)
	}

	return NewGormDB(db)
}

// GormDB implements ports.Database using GORM. It works with any
// GORM-supported database; sqlite and postgres are wired in clients.
type GormDB struct {
	db *gorm.DB
}

func NewGormDB(db *gorm.DB) (*GormDB, error) {
	gormDB := &GormDB{db: db}

	if err := gormDB.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return gormDB, nil
}

func (s *GormDB) createTables() error {
	if err := s.db.AutoMigrate(&FunctionSizingRow{}, &ScalingStateRow{}, &SampleRow{}, &LeaseRow{}); err != nil {
		return fmt.Errorf("failed to auto-migrate: %w", err)
	}
	return nil
}

func (s *GormDB) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}

	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}
	return nil
}

func (s *GormDB) UpsertSizing(functionID string, sizing types.FunctionSizing) error {
	row := FunctionSizingRow{
		FunctionID:       functionID,
		ProvisionedMemMB: sizing.ProvisionedMemMB,
		FunctionMemMB:    sizing.FunctionMemMB,
		CallerMemMB:      sizing.CallerMemMB,
	}

	result := s.db.Where(&FunctionSizingRow{FunctionID: functionID}).
		Assign(FunctionSizingRow{
			ProvisionedMemMB: sizing.ProvisionedMemMB,
			FunctionMemMB:    sizing.FunctionMemMB,
			CallerMemMB:      sizing.CallerMemMB,
		}).
		FirstOrCreate(&row)
	if result.Error != nil {
		return fmt.Errorf("failed to upsert sizing: %w", result.Error)
	}

	return nil
}

func (s *GormDB) GetSizing(functionID string) (*types.FunctionSizing, error) {
	var row FunctionSizingRow
	result := s.db.Where("function_id = ?", functionID).First(&row)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get sizing: %w", result.Error)
	}

	return &types.FunctionSizing{
		ProvisionedMemMB: row.ProvisionedMemMB,
		FunctionMemMB:    row.FunctionMemMB,
		CallerMemMB:      row.CallerMemMB,
	}, nil
}

func (s *GormDB) ListFunctionIDs() ([]string, error) {
	var ids []string
	result := s.db.Model(&FunctionSizingRow{}).Order("function_id").Pluck("function_id", &ids)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list functions: %w", result.Error)
	}
	return ids, nil
}

func (s *GormDB) DeleteSizing(functionID string) error {
	result := s.db.Where("function_id = ?", functionID).Delete(&FunctionSizingRow{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete sizing: %w", result.Error)
	}
	return nil
}

func (s *GormDB) GetState(functionID string) (*ports.StateRecord, error) {
	var row ScalingStateRow
	result := s.db.Where("function_id = ?", functionID).First(&row)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get scaling state: %w", result.Error)
	}

	return &ports.StateRecord{
		FunctionID:   row.FunctionID,
		State:        types.ScalingState{Activity: row.Activity, Waiting: row.Waiting},
		CurrentScale: row.CurrentScale,
		LastRescale:  row.LastRescale,
	}, nil
}

func (s *GormDB) UpsertState(record ports.StateRecord) error {
	row := ScalingStateRow{
		FunctionID:   record.FunctionID,
		Activity:     record.State.Activity,
		Waiting:      record.State.Waiting,
		CurrentScale: record.CurrentScale,
		LastRescale:  record.LastRescale,
	}

	result := s.db.Where(&ScalingStateRow{FunctionID: record.FunctionID}).
		Assign(map[string]interface{}{
			"activity":      record.State.Activity,
			"waiting":       record.State.Waiting,
			"current_scale": record.CurrentScale,
			"last_rescale":  record.LastRescale,
		}).
		FirstOrCreate(&row)
	if result.Error != nil {
		return fmt.Errorf("failed to upsert scaling state: %w", result.Error)
	}

	return nil
}

func (s *GormDB) InsertSamples(functionID string, durationsSecs []float64, observedAt time.Time) error {
	if len(durationsSecs) == 0 {
		return nil
	}

	rows := make([]SampleRow, 0, len(durationsSecs))
	for _, d := range durationsSecs {
		rows = append(rows, SampleRow{
			FunctionID:   functionID,
			DurationSecs: d,
			ObservedAt:   observedAt,
		})
	}

	if result := s.db.CreateInBatches(rows, 500); result.Error != nil {
		return fmt.Errorf("failed to insert samples: %w", result.Error)
	}
	return nil
}

func (s *GormDB) DrainSamples(functionID string, cutoff time.Time) ([]float64, error) {
	var durations []float64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var rows []SampleRow
		if result := tx.Where("function_id = ? AND observed_at < ?", functionID, cutoff).
			Find(&rows); result.Error != nil {
			return result.Error
		}
		if len(rows) == 0 {
			return nil
		}

		ids := make([]uint, 0, len(rows))
		for _, row := range rows {
			durations = append(durations, row.DurationSecs)
			ids = append(ids, row.ID)
		}

		if result := tx.Where("id IN ?", ids).Delete(&SampleRow{}); result.Error != nil {
			return result.Error
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to drain samples: %w", err)
	}
	return durations, nil
}

func (s *GormDB) CountPendingSamples(functionID string) (int, error) {
	var count int64
	result := s.db.Model(&SampleRow{}).Where("function_id = ?", functionID).Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count samples: %w", result.Error)
	}
	return int(count), nil
}

func (s *GormDB) DeleteSamplesBefore(cutoff time.Time) (int64, error) {
	result := s.db.Where("observed_at < ?", cutoff).Delete(&SampleRow{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge samples: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *GormDB) AcquireLease(key, owner string, ttl time.Duration, now time.Time) (bool, error) {
	acquired := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var row LeaseRow
		result := tx.Where("key = ?", key).First(&row)
		if result.Error != nil {
			if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return result.Error
			}
			row = LeaseRow{Key: key, Owner: owner, ExpiresAt: now.Add(ttl)}
			if result := tx.Create(&row); result.Error != nil {
				return result.Error
			}
			acquired = true
			return nil
		}

		// A live lease held by someone else blocks the cycle.
		if row.Owner != owner && row.ExpiresAt.After(now) {
			return nil
		}

		result = tx.Model(&LeaseRow{}).Where("key = ?", key).
			Updates(map[string]interface{}{"owner": owner, "expires_at": now.Add(ttl)})
		if result.Error != nil {
			return result.Error
		}
		acquired = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to acquire lease %s: %w", key, err)
	}
	return acquired, nil
}

func (s *GormDB) ReleaseLease(key, owner string) error {
	result := s.db.Where("key = ? AND owner = ?", key, owner).Delete(&LeaseRow{})
	if result.Error != nil {
		return fmt.Errorf("failed to release lease %s: %w", key, result.Error)
	}
	return nil
}

func (s *GormDB) DeleteExpiredLeases(now time.Time) (int64, error) {
	result := s.db.Where("expires_at <= ?", now).Delete(&LeaseRow{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete expired leases: %w", result.Error)
	}
	return result.RowsAffected, nil
}
