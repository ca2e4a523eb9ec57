package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/pingcrafty/mcscan/internal/protocol"
)

// IPAddr wraps net.IP to implement the PostgreSQL INET type, reused for
// both the servers table's primary key and player_servers' foreign key.
type IPAddr struct {
	net.IP
}

func (ip *IPAddr) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case string:
		parsed := net.ParseIP(v)
		if parsed == nil {
			return fmt.Errorf("failed to parse IP address: %s", v)
		}
		ip.IP = parsed
		return nil
	case []byte:
		parsed := net.ParseIP(string(v))
		if parsed == nil {
			return fmt.Errorf("failed to parse IP address: %s", string(v))
		}
		ip.IP = parsed
		return nil
	default:
		return fmt.Errorf("cannot scan %T into IPAddr", value)
	}
}

func (ip IPAddr) Value() (driver.Value, error) {
	if ip.IP == nil {
		return nil, nil
	}
	return ip.IP.String(), nil
}

func (ip IPAddr) String() string {
	if ip.IP == nil {
		return ""
	}
	return ip.IP.String()
}

// JSONB wraps an arbitrary value for storage in a Postgres jsonb column.
type JSONB struct {
	Data interface{}
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		j.Data = nil
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONB", value)
	}
	return json.Unmarshal(raw, &j.Data)
}

func (j JSONB) Value() (driver.Value, error) {
	if j.Data == nil {
		return nil, nil
	}
	return json.Marshal(j.Data)
}

// ServerRow is the servers-table persistence of a probed endpoint.
type ServerRow struct {
	IP             IPAddr    `db:"ip"`
	Port           int       `db:"port"`
	FirstSeen      time.Time `db:"first_seen"`
	LastSeen       time.Time `db:"last_seen"`
	Software       string    `db:"software"`
	VersionString  string    `db:"version_string"`
	ProtocolID     int32     `db:"protocol_id"`
}

// StatusSnapshotRow is one timestamped status observation of a server.
type StatusSnapshotRow struct {
	ID              int64     `db:"id"`
	IP              IPAddr    `db:"ip"`
	Port            int       `db:"port"`
	ObservedAt      time.Time `db:"observed_at"`
	PlayersOnline   int       `db:"players_online"`
	PlayersMax      int       `db:"players_max"`
	MOTDPlain       string    `db:"motd_plain"`
	LatencyMS       int64     `db:"latency_ms"`
	OnlineModeGuess string    `db:"online_mode_guess"`
	FaviconHash     string    `db:"favicon_hash"`
	Country         string    `db:"country"`
	City            string    `db:"city"`
	RawDocument     JSONB     `db:"raw_document"`
}

// PlayerRow mirrors protocol.Player for storage.
type PlayerRow struct {
	UUID      string    `db:"uuid"`
	Name      string    `db:"name"`
	FirstSeen time.Time `db:"first_seen"`
	LastSeen  time.Time `db:"last_seen"`
}

// ModRow mirrors protocol.Mod for storage.
type ModRow struct {
	ModID         string    `db:"mod_id"`
	CanonicalName string    `db:"canonical_name"`
	FirstSeen     time.Time `db:"first_seen"`
}

// DeadLetterRow is a pipeline hook failure retained for later replay.
type DeadLetterRow struct {
	ID             string     `db:"id"`
	ScanResultJSON JSONB      `db:"scan_result"`
	FailedHook     string     `db:"failed_hook"`
	FailureReason  string     `db:"failure_reason"`
	RecordedAt     time.Time  `db:"recorded_at"`
	ReplayedAt     *time.Time `db:"replayed_at"`
}

// toRawDocument is a narrow view of protocol.ScanResult used to populate
// raw_document without depending on the full struct layout changing shape.
func toRawDocument(result protocol.ScanResult) interface{} {
	var parsed interface{}
	if len(result.RawDocument) > 0 {
		if err := json.Unmarshal(result.RawDocument, &parsed); err == nil {
			return parsed
		}
	}
	return nil
}
