package db

import (
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	slowQueryThreshold = 200 * time.Millisecond
)

// Options controls how the database connection is initialised.
type Options struct {
	Driver       string
	Path         string
	DSN          string
	Logger       logger.Interface
	BusyTimeout  time.Duration
	MaxOpenConns int
	MaxIdleConns int
	ConnMaxIdle  time.Duration
	ConnMaxLife  time.Duration
}

// Open establishes a Gorm connection against SQLite (default) or PostgreSQL.
func Open(opts Options) (*gorm.DB, error) {
	if opts.Driver == "" {
		opts.Driver = DriverSQLite
	}

	gormLogger := opts.Logger
	if gormLogger == nil {
		gormLogger = newGormLogger(os.Stdout)
	}

	gormConfig := &gorm.Config{Logger: gormLogger, TranslateError: true}

	switch opts.Driver {
	case DriverSQLite:
		return openSQLite(opts, gormConfig)
	case DriverPostgres:
		return openPostgres(opts, gormConfig)
	default:
		return nil, eris.Errorf("unsupported database driver: %s", opts.Driver)
	}
}

// newGormLogger logs slow queries and failures. Lookups that find no row are expected
// on hot paths like slug checks and are not logged.
func newGormLogger(w io.Writer) logger.Interface {
	return logger.New(log.New(w, "\r\n", log.LstdFlags), logger.Config{
		SlowThreshold:             slowQueryThreshold,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

func openSQLite(opts Options, gormConfig *gorm.Config) (*gorm.DB, error) {
	if opts.Path == "" {
		return nil, eris.New("database path is required")
	}

	if opts.BusyTimeout == 0 {
		opts.BusyTimeout = 5 * time.Second
	}

	busyTimeout := opts.BusyTimeout
	busyTimeoutMillis := busyTimeout / time.Millisecond
	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=1&_journal_mode=WAL", opts.Path, busyTimeoutMillis)

	db, err := gorm.Open(sqlite.Open(dsn), gormConfig)
	if err != nil {
		return nil, eris.Wrap(err, "opening sqlite database")
	}

	// A single writer keeps counter updates from tripping SQLITE_BUSY under load.
	if opts.MaxOpenConns == 0 {
		opts.MaxOpenConns = 1
	}

	if err := applyConnectionSettings(db, opts); err != nil {
		return nil, err
	}

	if err := enforcePragmas(db, busyTimeout); err != nil {
		return nil, err
	}

	return db, nil
}

func openPostgres(opts Options, gormConfig *gorm.Config) (*gorm.DB, error) {
	if opts.DSN == "" {
		return nil, eris.New("database DSN is required")
	}

	db, err := gorm.Open(postgres.Open(opts.DSN), gormConfig)
	if err != nil {
		return nil, eris.Wrap(err, "opening postgres database")
	}

	if err := applyConnectionSettings(db, opts); err != nil {
		return nil, err
	}

	return db, nil
}

func applyConnectionSettings(db *gorm.DB, opts Options) error {
	sqlDB, err := db.DB()
	if err != nil {
		return eris.Wrap(err, "retrieving sql.DB from gorm")
	}

	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}

	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}

	if opts.ConnMaxIdle > 0 {
		sqlDB.SetConnMaxIdleTime(opts.ConnMaxIdle)
	}

	if opts.ConnMaxLife > 0 {
		sqlDB.SetConnMaxLifetime(opts.ConnMaxLife)
	}

	return nil
}

func enforcePragmas(db *gorm.DB, busyTimeout time.Duration) error {
	timeoutMillis := int(busyTimeout / time.Millisecond)

	if err := db.Exec("PRAGMA foreign_keys = ON;").Error; err != nil {
		return eris.Wrap(err, "enabling foreign keys pragma")
	}

	if err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d;", timeoutMillis)).Error; err != nil {
		return eris.Wrap(err, "configuring busy timeout pragma")
	}

	if err := db.Exec("PRAGMA journal_mode = WAL;").Error; err != nil {
		return eris.Wrap(err, "setting journal mode to WAL")
	}

	return nil
}

// Close releases the underlying database resources.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return eris.Wrap(err, "retrieving sql.DB for close")
	}

	if err := sqlDB.Close(); err != nil {
		return eris.Wrap(err, "closing database connection")
	}

	return nil
}

// SQLDB exposes the underlying *sql.DB for health checks.
func SQLDB(db *gorm.DB) (*sql.DB, error) {
	if db == nil {
		return nil, eris.New("gorm.DB is nil")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, eris.Wrap(err, "retrieving sql.DB")
	}

	return sqlDB, nil
}
