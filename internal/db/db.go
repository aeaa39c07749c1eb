package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tradesetup/internal/config"
)

type DB struct {
	Gorm *gorm.DB
	SQL  *sql.DB
}

func Dialector(cfg config.DBConfig) (gorm.Dialector, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "mysql":
		return mysql.Open(cfg.DSN), nil
	case "postgres", "postgresql":
		return postgres.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.Driver)
	}
}

func Open(cfg config.DBConfig) (*DB, error) {
	dialector, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}
	d, err := OpenDialector(dialector)
	if err != nil {
		return nil, err
	}

	d.SQL.SetMaxOpenConns(cfg.MaxOpenConns)
	d.SQL.SetMaxIdleConns(cfg.MaxIdleConns)
	d.SQL.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	d.SQL.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return d, nil
}

// OpenDialector opens gorm with duplicate-key errors translated to
// gorm.ErrDuplicatedKey, which the freeze paths rely on.
func OpenDialector(dialector gorm.Dialector) (*DB, error) {
	gcfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        NowUTC,
	}

	gdb, err := gorm.Open(dialector, gcfg)
	if err != nil {
		return nil, err
	}

	sqldb, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	return &DB{Gorm: gdb, SQL: sqldb}, nil
}

func Close(db *DB) error {
	if db == nil || db.SQL == nil {
		return nil
	}
	return db.SQL.Close()
}

func Ping(db *DB) error {
	if db == nil || db.SQL == nil {
		return nil
	}
	return db.SQL.Ping()
}

func SetTimezone(db *DB, tz string) error {
	if db == nil || db.Gorm == nil || tz == "" {
		return nil
	}
	switch db.Gorm.Dialector.Name() {
	case "mysql":
		return db.Gorm.Exec("SET time_zone = ?", mysqlOffset(tz)).Error
	case "postgres":
		_, err := db.SQL.Exec("SET TIME ZONE '" + strings.ReplaceAll(tz, "'", "") + "'")
		return err
	}
	return nil
}

// mysqlOffset converts a zone name to a fixed "+hh:mm" offset; named zones
// need the server's time zone tables loaded.
func mysqlOffset(tz string) string {
	if strings.EqualFold(tz, "UTC") {
		return "+00:00"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return "+00:00"
	}
	_, offset := time.Now().In(loc).Zone()
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	return fmt.Sprintf("%s%02d:%02d", sign, offset/3600, (offset%3600)/60)
}

func NowUTC() time.Time {
	return time.Now().UTC()
}
