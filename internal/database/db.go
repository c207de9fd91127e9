// Package database stores the radio identity records used to enrich decoded
// messages with operator callsigns. It uses the pure Go SQLite driver so the
// decoder builds without cgo.
package database

import (
	"database/sql"
	"log"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// Config holds database configuration.
type Config struct {
	Path string // path to the SQLite database file
}

// DB wraps the GORM database instance.
type DB struct {
	db *gorm.DB
}

// NewDB opens (creating if needed) the radio identity database.
func NewDB(config Config, logg *log.Logger) (*DB, error) {
	var gormLog logger.Interface
	if logg != nil {
		gormLog = logger.New(
			logg,
			logger.Config{
				LogLevel:                  logger.Warn,
				IgnoreRecordNotFoundError: true,
				Colorful:                  false,
			},
		)
	} else {
		gormLog = logger.Default.LogMode(logger.Silent)
	}

	dialector := sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        config.Path,
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := configureSQLite(sqlDB); err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&RadioUser{}); err != nil {
		return nil, err
	}

	if logg != nil {
		logg.Printf("Radio identity database initialized: %s", config.Path)
	}

	return &DB{db: db}, nil
}

// configureSQLite applies SQLite settings suited to a mostly-read workload.
func configureSQLite(sqlDB *sql.DB) error {
	pragmaSettings := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA cache_size=10000",
		"PRAGMA temp_store=memory",
	}

	for _, pragma := range pragmaSettings {
		if _, err := sqlDB.Exec(pragma); err != nil {
			return err
		}
	}
	return nil
}

// GetDB returns the underlying GORM database instance.
func (db *DB) GetDB() *gorm.DB {
	return db.db
}

// Close closes the database connection.
func (db *DB) Close() error {
	sqlDB, err := db.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health checks if the database connection is healthy.
func (db *DB) Health() error {
	sqlDB, err := db.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
