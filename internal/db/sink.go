package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/pingcrafty/mcscan/internal/errors"
	"github.com/pingcrafty/mcscan/internal/protocol"
)

// Sink is the persistence-sink contract exposed by the scan core to its
// embedder. The Postgres-backed implementation below is one collaborator;
// an embedded single-file store could implement the same interface.
type Sink interface {
	Init(ctx context.Context) error
	UpsertServer(ctx context.Context, result protocol.ScanResult) error
	RecordStatus(ctx context.Context, result protocol.ScanResult) error
	UpsertPlayer(ctx context.Context, player protocol.Player, seenAt time.Time, ip string, port uint16) error
	UpsertMod(ctx context.Context, mod protocol.Mod, ip string, port uint16, version string) error
	UpsertFavicon(ctx context.Context, hash string, bytes []byte) error
	RecordDeadLetter(ctx context.Context, result protocol.ScanResult, failedHook, reason string) error
	Close() error
}

// PostgresSink implements Sink against the DB connection's fixed schema.
type PostgresSink struct {
	db *DB
}

// NewPostgresSink wraps an already-connected DB as a Sink.
func NewPostgresSink(db *DB) *PostgresSink {
	return &PostgresSink{db: db}
}

// Init pings the database. Connect has already run migrations, so Init does
// no schema work; it gives the Sink interface a lifecycle hook that runs
// before the first write.
func (s *PostgresSink) Init(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresSink) UpsertServer(ctx context.Context, result protocol.ScanResult) error {
	const query = `
		INSERT INTO servers (ip, port, first_seen, last_seen, software, version_string, protocol_id)
		VALUES (:ip, :port, :now, :now, :software, :version_string, :protocol_id)
		ON CONFLICT (ip, port) DO UPDATE SET
			last_seen = :now,
			software = :software,
			version_string = :version_string,
			protocol_id = :protocol_id`

	_, err := s.db.NamedExecContext(ctx, query, map[string]interface{}{
		"ip":              result.IP,
		"port":            result.Port,
		"now":             result.DiscoveredAt,
		"software":        string(result.Software),
		"version_string":  result.VersionString,
		"protocol_id":     result.ProtocolID,
	})
	if err != nil {
		return sanitizeDBError("upsert_server", err)
	}
	return nil
}

func (s *PostgresSink) RecordStatus(ctx context.Context, result protocol.ScanResult) error {
	const query = `
		INSERT INTO status_snapshots
			(ip, port, observed_at, players_online, players_max, motd_plain, latency_ms, online_mode_guess, favicon_hash, country, city, raw_document)
		VALUES
			(:ip, :port, :observed_at, :players_online, :players_max, :motd_plain, :latency_ms, :online_mode_guess, :favicon_hash, :country, :city, :raw_document)`

	row := JSONB{Data: toRawDocument(result)}
	_, err := s.db.NamedExecContext(ctx, query, map[string]interface{}{
		"ip":                result.IP,
		"port":              result.Port,
		"observed_at":       result.DiscoveredAt,
		"players_online":    result.PlayersOnline,
		"players_max":       result.PlayersMax,
		"motd_plain":        result.MOTDPlain,
		"latency_ms":        result.LatencyMS,
		"online_mode_guess": string(result.OnlineModeGuess),
		"favicon_hash":      result.FaviconHash,
		"country":           result.Country,
		"city":              result.City,
		"raw_document":      row,
	})
	if err != nil {
		return sanitizeDBError("record_status", err)
	}
	return nil
}

func (s *PostgresSink) UpsertPlayer(ctx context.Context, player protocol.Player, seenAt time.Time, ip string, port uint16) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return sanitizeDBError("upsert_player", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const upsertPlayer = `
		INSERT INTO players (uuid, name, first_seen, last_seen)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (uuid) DO UPDATE SET name = $2, last_seen = $3`
	if _, err := tx.ExecContext(ctx, upsertPlayer, player.UUID, player.Name, seenAt); err != nil {
		return sanitizeDBError("upsert_player", err)
	}

	const upsertLink = `
		INSERT INTO player_servers (player_uuid, ip, port, last_seen)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (player_uuid, ip, port) DO UPDATE SET last_seen = $4`
	if _, err := tx.ExecContext(ctx, upsertLink, player.UUID, ip, port, seenAt); err != nil {
		return sanitizeDBError("upsert_player", err)
	}

	if err := tx.Commit(); err != nil {
		return sanitizeDBError("upsert_player", err)
	}
	return nil
}

func (s *PostgresSink) UpsertMod(ctx context.Context, mod protocol.Mod, ip string, port uint16, version string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return sanitizeDBError("upsert_mod", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const upsertMod = `
		INSERT INTO mods (mod_id, canonical_name, first_seen)
		VALUES ($1, $2, now())
		ON CONFLICT (mod_id) DO NOTHING`
	if _, err := tx.ExecContext(ctx, upsertMod, mod.ModID, mod.CanonicalName); err != nil {
		return sanitizeDBError("upsert_mod", err)
	}

	const upsertLink = `
		INSERT INTO server_mods (ip, port, mod_id, version)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (ip, port, mod_id) DO UPDATE SET version = $4`
	if _, err := tx.ExecContext(ctx, upsertLink, ip, port, mod.ModID, version); err != nil {
		return sanitizeDBError("upsert_mod", err)
	}

	if err := tx.Commit(); err != nil {
		return sanitizeDBError("upsert_mod", err)
	}
	return nil
}

func (s *PostgresSink) UpsertFavicon(ctx context.Context, hash string, bytes []byte) error {
	const query = `INSERT INTO favicons (hash, bytes) VALUES ($1, $2) ON CONFLICT (hash) DO NOTHING`
	if _, err := s.db.ExecContext(ctx, query, hash, bytes); err != nil {
		return sanitizeDBError("upsert_favicon", err)
	}
	return nil
}

// RecordDeadLetter persists the full ScanResult, not just its raw
// document, so dead-letter replay can reconstruct a value the pipeline
// hooks can process again rather than just a human-readable record.
func (s *PostgresSink) RecordDeadLetter(ctx context.Context, result protocol.ScanResult, failedHook, reason string) error {
	const query = `
		INSERT INTO dead_letters (id, scan_result, failed_hook, failure_reason, recorded_at)
		VALUES ($1, $2, $3, $4, now())`

	id := uuid.New().String()
	var parsed interface{}
	encoded, err := json.Marshal(result)
	if err != nil {
		return sanitizeDBError("record_dead_letter", err)
	}
	if err := json.Unmarshal(encoded, &parsed); err != nil {
		return sanitizeDBError("record_dead_letter", err)
	}
	payload := JSONB{Data: parsed}
	if _, err := s.db.ExecContext(ctx, query, id, payload, failedHook, reason); err != nil {
		return sanitizeDBError("record_dead_letter", err)
	}
	return nil
}

// ListDeadLetters returns unreplayed dead letters, oldest first, up to
// limit rows. Not part of Sink: replay is an operator action driven from
// cmd/cli, not something the scan pipeline itself needs.
func (s *PostgresSink) ListDeadLetters(ctx context.Context, limit int) ([]DeadLetterRow, error) {
	const query = `
		SELECT id, scan_result, failed_hook, failure_reason, recorded_at, replayed_at
		FROM dead_letters
		WHERE replayed_at IS NULL
		ORDER BY recorded_at ASC
		LIMIT $1`

	var rows []DeadLetterRow
	if err := s.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, sanitizeDBError("list_dead_letters", err)
	}
	return rows, nil
}

// MarkDeadLetterReplayed stamps a dead letter as reprocessed so it is not
// picked up by a later replay run.
func (s *PostgresSink) MarkDeadLetterReplayed(ctx context.Context, id string) error {
	const query = `UPDATE dead_letters SET replayed_at = now() WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return sanitizeDBError("mark_dead_letter_replayed", err)
	}
	return nil
}

// ScanResult decodes the dead letter's stored JSON payload back into a
// protocol.ScanResult for replay through the persist hook.
func (r DeadLetterRow) ScanResult() (protocol.ScanResult, error) {
	encoded, err := json.Marshal(r.ScanResultJSON.Data)
	if err != nil {
		return protocol.ScanResult{}, err
	}
	var result protocol.ScanResult
	if err := json.Unmarshal(encoded, &result); err != nil {
		return protocol.ScanResult{}, err
	}
	return result, nil
}

func (s *PostgresSink) Close() error {
	if err := s.db.Close(); err != nil {
		return errors.WrapDatabaseError(errors.CodeDatabaseConnection, "failed to close database connection", err)
	}
	return nil
}
