package wire

import (
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/pingcrafty/mcscan/internal/errors"
)

// LegacyStatus is the parsed payload of a pre-1.7 server list ping,
// synthesized from either the pre-1.4 plain-text reply or the 1.4-1.6
// "§1"-prefixed UCS-2 reply.
type LegacyStatus struct {
	ProtocolVersion int32
	Version         string
	MOTD            string
	PlayersOnline   int
	PlayersMax      int
}

// DecodeLegacyUCS2 parses the 1.4-1.6 legacy ping response body: a
// big-endian UCS-2 string beginning with "§1" and null-separated fields
// protocol_version, version, motd, current_players, max_players.
func DecodeLegacyUCS2(payload []byte) (*LegacyStatus, error) {
	if len(payload)%2 != 0 {
		return nil, errors.NewProtocolError(errors.CodeProtocolBadFrame, "legacy payload has odd byte length for UCS-2")
	}
	units := make([]uint16, len(payload)/2)
	for i := range units {
		units[i] = uint16(payload[2*i])<<8 | uint16(payload[2*i+1])
	}
	decoded := string(utf16.Decode(units))

	const prefix = "§1\x00"
	if !strings.HasPrefix(decoded, prefix) {
		return nil, errors.NewProtocolError(errors.CodeProtocolBadFrame, "legacy payload missing §1 marker")
	}
	fields := strings.Split(strings.TrimPrefix(decoded, prefix), "\x00")
	if len(fields) < 5 {
		return nil, errors.NewProtocolError(errors.CodeProtocolBadFrame, "legacy payload has too few fields")
	}

	protocolVersion, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, errors.WrapProtocolError(errors.CodeProtocolBadFrame, "legacy protocol version not numeric", err)
	}
	online, err := strconv.Atoi(fields[3])
	if err != nil {
		return nil, errors.WrapProtocolError(errors.CodeProtocolBadFrame, "legacy online count not numeric", err)
	}
	max, err := strconv.Atoi(fields[4])
	if err != nil {
		return nil, errors.WrapProtocolError(errors.CodeProtocolBadFrame, "legacy max count not numeric", err)
	}

	return &LegacyStatus{
		ProtocolVersion: int32(protocolVersion),
		Version:         fields[1],
		MOTD:            fields[2],
		PlayersOnline:   online,
		PlayersMax:      max,
	}, nil
}

// DecodeLegacyPlain parses the pre-1.4 legacy ping response body: a
// big-endian UCS-2 string with fields motd, current_players, max_players
// separated by section-sign-delta ("§") markers, no protocol/version.
func DecodeLegacyPlain(payload []byte) (*LegacyStatus, error) {
	if len(payload)%2 != 0 {
		return nil, errors.NewProtocolError(errors.CodeProtocolBadFrame, "legacy payload has odd byte length for UCS-2")
	}
	units := make([]uint16, len(payload)/2)
	for i := range units {
		units[i] = uint16(payload[2*i])<<8 | uint16(payload[2*i+1])
	}
	decoded := string(utf16.Decode(units))

	fields := strings.Split(decoded, "§")
	if len(fields) < 3 {
		return nil, errors.NewProtocolError(errors.CodeProtocolBadFrame, "legacy plain payload has too few fields")
	}
	online, err := strconv.Atoi(fields[len(fields)-2])
	if err != nil {
		return nil, errors.WrapProtocolError(errors.CodeProtocolBadFrame, "legacy online count not numeric", err)
	}
	max, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil {
		return nil, errors.WrapProtocolError(errors.CodeProtocolBadFrame, "legacy max count not numeric", err)
	}
	motd := strings.Join(fields[:len(fields)-2], "§")

	return &LegacyStatus{
		MOTD:          motd,
		PlayersOnline: online,
		PlayersMax:    max,
	}, nil
}
