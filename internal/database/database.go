package database

import (
	"fmt"
	"os"
	"time"

	"github.com/meruscrap/pimapos/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB holds the database connection
var DB *gorm.DB

// Initialize creates and configures the database connection.
// DB_DRIVER=sqlite runs against a local file so a terminal can operate
// without a Postgres server; the default is postgres.
func Initialize() error {
	if os.Getenv("DB_DRIVER") == "sqlite" {
		return initializeSQLite()
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		// Fallback to individual components
		host := getEnvOrDefault("DB_HOST", "localhost")
		port := getEnvOrDefault("DB_PORT", "5432")
		user := getEnvOrDefault("DB_USER", "postgres")
		password := getEnvOrDefault("DB_PASSWORD", "")
		dbname := getEnvOrDefault("DB_NAME", "pimapos")
		sslmode := getEnvOrDefault("DB_SSLMODE", "disable")

		databaseURL = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			host, port, user, password, dbname, sslmode)
	}

	gormLogger := logger.Default
	if os.Getenv("ENVIRONMENT") == "development" {
		gormLogger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	DB = db
	return nil
}

func initializeSQLite() error {
	path := getEnvOrDefault("SQLITE_PATH", "pimapos.db")

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	// sqlite serializes writes; a single connection avoids lock contention.
	sqlDB.SetMaxOpenConns(1)

	DB = db
	return nil
}

// Migrate runs auto-migration for the relations this service owns. The
// transaction and photo relations are owned by the POS screens; we migrate
// them here too so a fresh install works standalone.
func Migrate() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	if DB.Dialector.Name() == "postgres" {
		err := DB.Exec("CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\"").Error
		if err != nil {
			// Not fatal: gen_random_uuid ships with Postgres 13+.
			fmt.Fprintf(os.Stderr, "warning: could not create uuid-ossp extension: %v\n", err)
		}
	}

	err := DB.AutoMigrate(
		&models.NotificationRecord{},
		&models.UserSession{},
		&models.PurchaseTransaction{},
		&models.SaleTransaction{},
		&models.TransactionPhoto{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := createIndexes(); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// createIndexes creates performance indexes
func createIndexes() error {
	// Pending-notification scan: the hot query is "not handled, not dismissed,
	// ordered by created_at".
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_notification_states_load ON notification_states (is_handled, is_dismissed, created_at) WHERE deleted_at IS NULL")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_notification_states_expires ON notification_states (expires_at)")

	// Session heartbeat sweep
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_user_sessions_active_seen ON user_sessions (is_active, last_seen_at)")

	// Photo lookup by transaction, ordered
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_transaction_photos_tx_order ON transaction_photos (transaction_id, sort_order)")

	return nil
}

// Close closes the database connection
func Close() error {
	if DB == nil {
		return nil
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

// Health checks database connectivity
func Health() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Ping()
}

// getEnvOrDefault returns environment variable or default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
