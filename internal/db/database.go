// Package db provides the Postgres-backed persistence sink for the scanner.
// It upserts servers by (ip, port), records status snapshots, associates
// mods and player samples, and stores favicon bytes once per distinct
// content hash.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/pingcrafty/mcscan/internal/errors"
)

// sanitizeDBError converts raw database errors into safe, sanitized errors
// that don't expose internal SQL details or credentials to callers. The
// original error is preserved in Cause for internal logging.
func sanitizeDBError(operation string, err error) error {
	if err == nil {
		return nil
	}

	if err == sql.ErrNoRows {
		return errors.NewDatabaseError(errors.CodeNotFound, "resource not found")
	}

	if pqErr, ok := err.(*pq.Error); ok {
		var dbErr *errors.DatabaseError
		switch pqErr.Code {
		case "23505": // unique_violation
			dbErr = errors.NewDatabaseError(errors.CodeConflict, "resource already exists")
		case "23503": // foreign_key_violation
			dbErr = errors.NewDatabaseError(errors.CodeValidation, "referenced resource does not exist")
		case "23502": // not_null_violation
			dbErr = errors.NewDatabaseError(errors.CodeValidation, "required field is missing")
		case "57014": // query_canceled
			dbErr = errors.NewDatabaseError(errors.CodeCanceled, "database operation was canceled")
		case "08000", "08003", "08006":
			dbErr = errors.NewDatabaseError(errors.CodeDatabaseConnection, "database connection error")
		default:
			dbErr = errors.NewDatabaseError(errors.CodeDatabaseQuery, fmt.Sprintf("database operation failed: %s", operation))
		}
		dbErr.Operation = operation
		dbErr.Cause = err
		return dbErr
	}

	dbErr := errors.NewDatabaseError(errors.CodeDatabaseQuery, fmt.Sprintf("database operation failed: %s", operation))
	dbErr.Operation = operation
	dbErr.Cause = err
	return dbErr
}

const (
	defaultPostgresPort    = 5432
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5 * time.Minute
	defaultConnMaxIdleTime = 5 * time.Minute
)

// DB wraps sqlx.DB with the scanner's repositories.
type DB struct {
	*sqlx.DB
}

// Config holds database connection settings.
type Config struct {
	Host            string        `yaml:"host" json:"host"`
	Port            int           `yaml:"port" json:"port"`
	Database        string        `yaml:"database" json:"database"`
	Username        string        `yaml:"username" json:"username"`
	Password        string        `yaml:"password" json:"password"`
	SSLMode         string        `yaml:"ssl_mode" json:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`
	// Required marks the sink as mandatory; when true, a connection failure
	// aborts startup instead of skipping the persist hook with a warning.
	Required bool `yaml:"required" json:"required"`
}

// DefaultConfig returns the default database configuration. Database name,
// username, and password must still be explicitly configured.
func DefaultConfig() Config {
	return Config{
		Host:            "localhost",
		Port:            defaultPostgresPort,
		SSLMode:         "disable",
		MaxOpenConns:    defaultMaxOpenConns,
		MaxIdleConns:    defaultMaxIdleConns,
		ConnMaxLifetime: defaultConnMaxLifetime,
		ConnMaxIdleTime: defaultConnMaxIdleTime,
		Required:        false,
	}
}

// Connect establishes a connection pool to PostgreSQL and runs migrations.
func Connect(ctx context.Context, config *Config) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		config.Host, config.Port, config.Database,
		config.Username, config.Password, config.SSLMode,
	)

	conn, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, errors.ErrDatabaseConnection(err)
	}

	conn.SetMaxOpenConns(config.MaxOpenConns)
	conn.SetMaxIdleConns(config.MaxIdleConns)
	conn.SetConnMaxLifetime(config.ConnMaxLifetime)
	conn.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := conn.PingContext(ctx); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			log.Printf("failed to close database connection after ping failure: %v", closeErr)
		}
		return nil, errors.WrapDatabaseError(errors.CodeDatabaseConnection, "failed to verify database connection", err)
	}

	db := &DB{DB: conn}
	if err := db.migrate(ctx); err != nil {
		return nil, errors.WrapDatabaseError(errors.CodeDatabaseMigration, "failed to run migrations", err)
	}

	log.Printf("connected to database at %s:%d/%s", config.Host, config.Port, config.Database)
	return db, nil
}

// migrate creates the schema if it does not already exist. The scanner owns
// a small, fixed schema (servers/status/players/mods/favicons/dead_letters)
// rather than an injected migration framework.
func (db *DB) migrate(ctx context.Context) error {
	_, err := db.ExecContext(ctx, schemaDDL)
	return err
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS servers (
	ip              inet NOT NULL,
	port            integer NOT NULL,
	first_seen      timestamptz NOT NULL DEFAULT now(),
	last_seen       timestamptz NOT NULL DEFAULT now(),
	software        text NOT NULL DEFAULT 'unknown',
	version_string  text,
	protocol_id     integer,
	PRIMARY KEY (ip, port)
);

CREATE TABLE IF NOT EXISTS status_snapshots (
	id                 bigserial PRIMARY KEY,
	ip                 inet NOT NULL,
	port               integer NOT NULL,
	observed_at        timestamptz NOT NULL,
	players_online     integer NOT NULL,
	players_max        integer NOT NULL,
	motd_plain         text,
	latency_ms         integer,
	online_mode_guess  text,
	favicon_hash       text,
	country            text,
	city               text,
	raw_document       jsonb
);
CREATE INDEX IF NOT EXISTS idx_status_snapshots_server ON status_snapshots (ip, port, observed_at DESC);

CREATE TABLE IF NOT EXISTS players (
	uuid        uuid PRIMARY KEY,
	name        text NOT NULL,
	first_seen  timestamptz NOT NULL DEFAULT now(),
	last_seen   timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS player_servers (
	player_uuid uuid NOT NULL REFERENCES players (uuid),
	ip          inet NOT NULL,
	port        integer NOT NULL,
	last_seen   timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (player_uuid, ip, port)
);

CREATE TABLE IF NOT EXISTS mods (
	mod_id          text PRIMARY KEY,
	canonical_name  text NOT NULL,
	first_seen      timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS server_mods (
	ip       inet NOT NULL,
	port     integer NOT NULL,
	mod_id   text NOT NULL REFERENCES mods (mod_id),
	version  text NOT NULL,
	PRIMARY KEY (ip, port, mod_id)
);

CREATE TABLE IF NOT EXISTS favicons (
	hash   text PRIMARY KEY,
	bytes  bytea NOT NULL
);

CREATE TABLE IF NOT EXISTS dead_letters (
	id              uuid PRIMARY KEY,
	scan_result     jsonb NOT NULL,
	failed_hook     text NOT NULL,
	failure_reason  text NOT NULL,
	recorded_at     timestamptz NOT NULL DEFAULT now(),
	replayed_at     timestamptz
);
`
