package config

import (
	"fmt"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/farellandr/spoticket-checkin/internal/backoff"
	"github.com/farellandr/spoticket-checkin/internal/models"
)

type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
}

func LoadConfig() (*Config, error) {
	return &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     os.Getenv("DB_PORT"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
	}, nil
}

// CheckInConfig holds the check-in subsystem's tuning knobs. Every value has
// an explicit default and an env override; nothing is inferred at runtime.
type CheckInConfig struct {
	// SnapshotMaxAge is the staleness bound on a station's offline snapshot.
	// Older snapshots are not trusted for provisional accepts.
	SnapshotMaxAge time.Duration
	// OutboxMaxRetries caps reconciliation attempts per outbox entry before
	// it is flagged for manual review.
	OutboxMaxRetries int
	// ResultDismissAfter is the station's auto-dismiss timeout for a
	// displayed scan result.
	ResultDismissAfter time.Duration
	// EventWindowSlack is the margin around an event's start/end outside of
	// which check-ins are flagged.
	EventWindowSlack time.Duration
	// Retry governs transient-failure retries in the validation service and
	// the sync reconciler alike.
	Retry backoff.Policy
}

func LoadCheckInConfig() *CheckInConfig {
	return &CheckInConfig{
		SnapshotMaxAge:     getDuration("SNAPSHOT_MAX_AGE", 15*time.Minute),
		OutboxMaxRetries:   getInt("OUTBOX_MAX_RETRIES", 5),
		ResultDismissAfter: getDuration("RESULT_DISMISS_AFTER", 4*time.Second),
		EventWindowSlack:   getDuration("EVENT_WINDOW_SLACK", 2*time.Hour),
		Retry: backoff.Policy{
			MaxAttempts: getInt("RETRY_MAX_ATTEMPTS", backoff.Default.MaxAttempts),
			BaseDelay:   getDuration("RETRY_BASE_DELAY", backoff.Default.BaseDelay),
			MaxDelay:    getDuration("RETRY_MAX_DELAY", backoff.Default.MaxDelay),
		},
	}
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return fallback
}

func enableUUIDExtension(db *gorm.DB) error {
	return db.Exec("CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\"").Error
}

func InitDatabase(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	if err := enableUUIDExtension(db); err != nil {
		return nil, err
	}

	err = db.AutoMigrate(
		&models.Role{},
		&models.User{},
		&models.Event{},
		&models.Ticket{},
		&models.Verification{},
		&models.Alert{},
	)
	if err != nil {
		return nil, err
	}

	seedRoles(db)

	return db, nil
}

func seedRoles(db *gorm.DB) {
	roles := []models.Role{
		{Name: "staff"},
		{Name: "operator"},
	}

	for _, role := range roles {
		var existingRole models.Role
		result := db.Where("name = ?", role.Name).First(&existingRole)
		if result.Error != nil {
			db.Create(&role)
		}
	}
}
