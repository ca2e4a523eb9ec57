// Package protocol drives the Minecraft server list ping handshake over the
// codec in internal/wire, parses the resulting status JSON into a
// ServerDocument, and classifies it into the canonical ScanResult record
// consumed by the module pipeline.
package protocol

import (
	"encoding/json"
	"time"
)

// Software is the classified server implementation family.
type Software string

const (
	SoftwareVanilla    Software = "vanilla"
	SoftwarePaper      Software = "paper"
	SoftwareSpigot     Software = "spigot"
	SoftwareBukkit     Software = "bukkit"
	SoftwareForge      Software = "forge"
	SoftwareFabric     Software = "fabric"
	SoftwareVelocity   Software = "velocity"
	SoftwareBungeeCord Software = "bungeecord"
	SoftwarePurpur     Software = "purpur"
	SoftwareFolia      Software = "folia"
	SoftwareOther      Software = "other"
	SoftwareUnknown    Software = "unknown"
)

// OnlineModeGuess is a tri-state inference of whether a server runs in
// online (Mojang-authenticated) mode, derived from the shape of sampled
// player UUIDs.
type OnlineModeGuess string

const (
	OnlineModeLikelyOnline  OnlineModeGuess = "likely-online"
	OnlineModeLikelyOffline OnlineModeGuess = "likely-offline"
	OnlineModeUnknown       OnlineModeGuess = "unknown"
)

// PlayerSample is one entry of a status response's player sample list.
type PlayerSample struct {
	Name string `json:"name"`
	UUID string `json:"id"`
}

// ModRef is a single mod entry (mod_id, version) as reported by a modded
// server's status response.
type ModRef struct {
	ModID   string
	Version string
}

// rawVersion mirrors the "version" object of a status response.
type rawVersion struct {
	Name     string `json:"name"`
	Protocol int32  `json:"protocol"`
}

// rawPlayers mirrors the "players" object of a status response.
type rawPlayers struct {
	Max    int            `json:"max"`
	Online int            `json:"online"`
	Sample []PlayerSample `json:"sample"`
}

// rawModInfo mirrors the legacy Forge "modinfo" object.
type rawModInfo struct {
	Type    string `json:"type"`
	ModList []struct {
		ModID   string `json:"modid"`
		Version string `json:"version"`
	} `json:"modList"`
}

// rawForgeData mirrors the modern Forge "forgeData" object.
type rawForgeData struct {
	Mods []struct {
		ModID     string `json:"modId"`
		ModMarker string `json:"modmarker"`
	} `json:"mods"`
}

// RawDocument is the wire shape of a status response, decoded directly from
// JSON before classification. Description is left as interface{} since it
// may be a plain string or a structured chat component.
type RawDocument struct {
	Version             rawVersion    `json:"version"`
	Players             rawPlayers    `json:"players"`
	Description         interface{}   `json:"description"`
	Favicon             string        `json:"favicon"`
	ModInfo             *rawModInfo   `json:"modinfo,omitempty"`
	ForgeData           *rawForgeData `json:"forgeData,omitempty"`
	PreventsChatReports bool          `json:"preventsChatReports"`
	EnforcesSecureChat  bool          `json:"enforcesSecureChat"`
}

// ParseRawDocument unmarshals a status response JSON payload.
func ParseRawDocument(payload []byte) (*RawDocument, error) {
	var doc RawDocument
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ServerDocument is the semi-structured result of parsing a status
// response: protocol metadata, flattened and raw MOTD, player counts and
// sample, favicon, mods, and the original JSON for debugging.
type ServerDocument struct {
	ProtocolID          int32
	Software            Software
	VersionName         string
	MOTDPlain           string
	MOTDRaw             interface{}
	PlayersOnline       int
	PlayersMax          int
	PlayerSample        []PlayerSample
	Mods                []ModRef
	IsModded            bool
	PreventsChatReports bool
	EnforcesSecureChat  bool
	FaviconDataURI      string
	RawJSON             []byte
}

// ScanResult is the canonical record surfaced to the module pipeline,
// combining classification output with probe metadata.
type ScanResult struct {
	IP              string
	Port            uint16
	DiscoveredAt    time.Time
	ProtocolID      int32
	Software        Software
	VersionString   string
	MOTDPlain       string
	MOTDRaw         interface{}
	PlayersOnline   int
	PlayersMax      int
	PlayerSample    []PlayerSample
	Mods            []ModRef
	FaviconHash     string
	FaviconBytes    []byte
	LatencyMS       int64
	OnlineModeGuess OnlineModeGuess
	RawDocument     []byte

	// Country and City are populated by the module pipeline's enrich hook;
	// they are empty until that hook runs.
	Country string
	City    string
}

// Player is the persistence-sink's view of a player observed in a sample:
// identity plus first/last seen bookkeeping. The scanner never mutates a
// Player directly; only the persistence sink does, in response to upserts.
type Player struct {
	UUID      string
	Name      string
	FirstSeen time.Time
	LastSeen  time.Time
}

// Mod is the persistence sink's canonical record for a distinct mod ID,
// independent of which server or version reported it.
type Mod struct {
	ModID         string
	CanonicalName string
	FirstSeen     time.Time
}
