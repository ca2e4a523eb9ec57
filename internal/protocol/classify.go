package protocol

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"regexp"
	"strings"
)

var vanillaSemverRe = regexp.MustCompile(`^\d+\.\d+(\.\d+)?$`)

// ClassifySoftware applies the ordered name/field tests that map a status
// response onto a software family. Order matters: forge's mod-manifest
// fields are checked before any substring test, so a Forge pack that also
// happens to mention "spigot" in its version string still classifies as
// forge.
func ClassifySoftware(doc *RawDocument) Software {
	name := strings.ToLower(doc.Version.Name)

	if doc.ForgeData != nil || strings.Contains(name, "forge") {
		return SoftwareForge
	}
	if doc.ModInfo != nil && doc.ModInfo.Type == "FML" {
		return SoftwareForge
	}
	switch {
	case strings.Contains(name, "fabric"):
		return SoftwareFabric
	case strings.Contains(name, "paper"):
		return SoftwarePaper
	case strings.Contains(name, "purpur"):
		return SoftwarePurpur
	case strings.Contains(name, "folia"):
		return SoftwareFolia
	case strings.Contains(name, "spigot"):
		return SoftwareSpigot
	case strings.Contains(name, "bukkit"):
		return SoftwareBukkit
	case strings.Contains(name, "velocity"):
		return SoftwareVelocity
	case strings.Contains(name, "bungee"):
		return SoftwareBungeeCord
	case vanillaSemverRe.MatchString(strings.TrimSpace(name)):
		return SoftwareVanilla
	default:
		return SoftwareUnknown
	}
}

// FlattenMOTD reduces a description field (a plain string, or a chat
// component object with "text" and "extra") to plain text, stripping
// section-sign color/formatting codes.
func FlattenMOTD(desc interface{}) string {
	var sb strings.Builder
	flattenMOTDInto(&sb, desc)
	return stripColorCodes(sb.String())
}

func flattenMOTDInto(sb *strings.Builder, node interface{}) {
	switch v := node.(type) {
	case string:
		sb.WriteString(v)
	case map[string]interface{}:
		if text, ok := v["text"].(string); ok {
			sb.WriteString(text)
		}
		if extra, ok := v["extra"].([]interface{}); ok {
			for _, e := range extra {
				flattenMOTDInto(sb, e)
			}
		}
	case []interface{}:
		for _, e := range v {
			flattenMOTDInto(sb, e)
		}
	}
}

var colorCodeRe = regexp.MustCompile(`§.`)

func stripColorCodes(s string) string {
	return colorCodeRe.ReplaceAllString(s, "")
}

// GuessOnlineMode inspects a player sample's UUIDs to infer whether the
// server runs in online (Mojang-authenticated) mode. Offline-mode servers
// derive a player's UUID as UUIDv3 (MD5 namespace) of "OfflinePlayer:"+name;
// online-mode UUIDs are assigned by Mojang as UUIDv4.
func GuessOnlineMode(sample []PlayerSample) OnlineModeGuess {
	if len(sample) == 0 {
		return OnlineModeUnknown
	}

	sawOffline, sawOnline := false, false
	for _, p := range sample {
		raw := strings.ReplaceAll(p.UUID, "-", "")
		if len(raw) != 32 {
			continue
		}
		version := raw[12]
		if version == '3' && raw == offlineUUIDHex(p.Name) {
			sawOffline = true
			continue
		}
		if version == '4' {
			sawOnline = true
		}
	}

	switch {
	case sawOffline && !sawOnline:
		return OnlineModeLikelyOffline
	case sawOnline && !sawOffline:
		return OnlineModeLikelyOnline
	default:
		return OnlineModeUnknown
	}
}

// offlineUUIDHex computes the hex (no dashes) UUIDv3 that vanilla servers
// assign offline-mode players: MD5("OfflinePlayer:"+name), with the version
// and variant bits overwritten per RFC 4122 §4.3.
func offlineUUIDHex(name string) string {
	sum := md5.Sum([]byte("OfflinePlayer:" + name))
	sum[6] = (sum[6] & 0x0F) | 0x30 // version 3
	sum[8] = (sum[8] & 0x3F) | 0x80 // variant RFC 4122
	return hex.EncodeToString(sum[:])
}

// DecodeFavicon decodes a "data:image/png;base64,<payload>" favicon field
// and returns its SHA-256 content hash plus the raw bytes.
func DecodeFavicon(dataURI string) (hash string, bytes []byte, ok bool) {
	const prefix = "data:image/png;base64,"
	if !strings.HasPrefix(dataURI, prefix) {
		return "", nil, false
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(dataURI, prefix))
	if err != nil {
		return "", nil, false
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), raw, true
}

// ExtractMods collects mod entries from either the legacy Forge "modinfo"
// block or the modern "forgeData" block, deduplicating by mod ID and
// keeping the first-seen version for each.
func ExtractMods(doc *RawDocument) []ModRef {
	seen := make(map[string]bool)
	var mods []ModRef

	add := func(id, version string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		mods = append(mods, ModRef{ModID: id, Version: version})
	}

	if doc.ForgeData != nil {
		for _, m := range doc.ForgeData.Mods {
			add(m.ModID, m.ModMarker)
		}
	}
	if doc.ModInfo != nil {
		for _, m := range doc.ModInfo.ModList {
			add(m.ModID, m.Version)
		}
	}
	return mods
}

// BuildServerDocument classifies a RawDocument into a ServerDocument,
// applying MOTD flattening, mod extraction, and retaining the raw JSON.
func BuildServerDocument(doc *RawDocument, rawJSON []byte) *ServerDocument {
	isModded := doc.ForgeData != nil || doc.ModInfo != nil

	return &ServerDocument{
		ProtocolID:          doc.Version.Protocol,
		Software:            ClassifySoftware(doc),
		VersionName:         doc.Version.Name,
		MOTDPlain:           FlattenMOTD(doc.Description),
		MOTDRaw:             doc.Description,
		PlayersOnline:       doc.Players.Online,
		PlayersMax:          doc.Players.Max,
		PlayerSample:        doc.Players.Sample,
		Mods:                ExtractMods(doc),
		IsModded:            isModded,
		PreventsChatReports: doc.PreventsChatReports,
		EnforcesSecureChat:  doc.EnforcesSecureChat,
		FaviconDataURI:      doc.Favicon,
		RawJSON:             rawJSON,
	}
}
