package clients

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PostgreSQLClientFactory creates PostgreSQL database clients
type PostgreSQLClientFactory struct {
	config FactoryConfig
}

// NewPostgreSQLClientFactory creates a new PostgreSQL client factory
func NewPostgreSQLClientFactory(config FactoryConfig) *PostgreSQLClientFactory {
	return &PostgreSQLClientFactory{config: config}
}

func (f *PostgreSQLClientFactory) CreateClient() (*gorm.DB, error) {
	sslMode := f.config.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		f.config.Host, f.config.Port, f.config.Username, f.config.Password, f.config.Database, sslMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL database: %w", err)
	}

	return db, nil
}
