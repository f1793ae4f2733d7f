package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

const (
	DraftDBDriverSQLite = "sqlite"
	DraftDBDriverMySQL  = "mysql"
)

// DraftDBDriver selects the SQL driver for the sql draft store.
func DraftDBDriver() string {
	return strings.ToLower(stringFromEnv("DRAFT_DB_DRIVER", DraftDBDriverSQLite))
}

// DraftDBDSN defaults to a sqlite file next to the draft json file.
func DraftDBDSN() string {
	if v := strings.TrimSpace(os.Getenv("DRAFT_DB_DSN")); v != "" {
		return v
	}
	return filepath.Join(filepath.Dir(DraftFile()), "draft.db")
}

// ConnectDatabase opens the draft database.
func ConnectDatabase(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case DraftDBDriverMySQL:
		dialector = mysql.Open(dsn)
	case DraftDBDriverSQLite, "":
		if dir := filepath.Dir(dsn); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported draft db driver %q", driver)
	}

	conn, err := gorm.Open(dialector, initConfig())
	if err != nil {
		return nil, err
	}
	if pluginErr := conn.Use(otelgorm.NewPlugin()); pluginErr != nil {
		log.Printf("db connected but failed to install otelgorm plugin: %v", pluginErr)
	}
	if driver == DraftDBDriverMySQL {
		if sqlDB, derr := conn.DB(); derr == nil && sqlDB != nil {
			sqlDB.SetMaxOpenConns(intFromEnv("DB_MAX_OPEN_CONNS", 5))
			sqlDB.SetConnMaxLifetime(time.Duration(intFromEnv("DB_CONN_MAX_LIFETIME_SECONDS", 300)) * time.Second)
		}
	}
	return conn, nil
}

// InitConfig Initialize Config
func initConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         initLog(),
		NamingStrategy: initNamingStrategy(),
	}
}

// InitLog Connection Log Configuration
func initLog() logger.Interface {
	newLogger := logger.New(
		log.New(os.Stderr, "\r\n", log.LstdFlags),
		logger.Config{
			Colorful:                  false,
			LogLevel:                  logger.Error,
			SlowThreshold:             time.Second,
			IgnoreRecordNotFoundError: true,
		},
	)
	return newLogger
}

// InitNamingStrategy Init NamingStrategy
func initNamingStrategy() *schema.NamingStrategy {
	return &schema.NamingStrategy{
		SingularTable: false,
		TablePrefix:   "",
	}
}
