package protocol

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	scanerrors "github.com/pingcrafty/mcscan/internal/errors"
	"github.com/pingcrafty/mcscan/internal/wire"
)

// OutcomeKind tags the variant of a completed probe.
type OutcomeKind string

const (
	OutcomeSuccess          OutcomeKind = "success"
	OutcomeLegacyDetected   OutcomeKind = "legacy_detected"
	OutcomeTimeout          OutcomeKind = "timeout"
	OutcomeRefused          OutcomeKind = "refused"
	OutcomeReset            OutcomeKind = "reset"
	OutcomeUnreachable      OutcomeKind = "unreachable"
	OutcomeProtocolError    OutcomeKind = "protocol_error"
	OutcomeTLSUnexpected    OutcomeKind = "tls_unexpected"
	OutcomeBlacklistSkipped OutcomeKind = "blacklist_skipped"
	OutcomeRateLimited      OutcomeKind = "rate_limited"
)

// Outcome is the tagged result of driving one probe: exactly one of Document
// (for Success/LegacyDetected) or Err (otherwise) is populated.
type Outcome struct {
	Kind     OutcomeKind
	Document *ServerDocument
	RTT      time.Duration
	Err      error
}

// EngineConfig configures one probe attempt.
type EngineConfig struct {
	Timeout       time.Duration
	Retries       int
	ProtocolIDs   []int32 // tried in order; first Success wins
	LegacySupport bool
	Hostname      string // advertised in the handshake; defaults to the dialed IP
}

// Probe drives a single target through the modern handshake, falling back
// to legacy parsing on a non-conforming first byte, retrying transient
// failures up to config.Retries times per protocol ID.
func Probe(ctx context.Context, ip string, port uint16, config EngineConfig) Outcome {
	protocolIDs := config.ProtocolIDs
	if len(protocolIDs) == 0 {
		protocolIDs = []int32{767}
	}

	var last Outcome
	for _, protocolID := range protocolIDs {
		for attempt := 0; attempt <= config.Retries; attempt++ {
			if ctx.Err() != nil {
				return Outcome{Kind: OutcomeTimeout, Err: ctx.Err()}
			}
			last = attemptOnce(ctx, ip, port, protocolID, config)
			if last.Kind == OutcomeSuccess || last.Kind == OutcomeLegacyDetected {
				return last
			}
			if !retryable(last.Kind) {
				return last
			}
		}
	}
	return last
}

func retryable(kind OutcomeKind) bool {
	return kind == OutcomeTimeout || kind == OutcomeReset
}

func attemptOnce(ctx context.Context, ip string, port uint16, protocolID int32, config EngineConfig) Outcome {
	addr := net.JoinHostPort(ip, fmt.Sprintf("%d", port))

	dialer := net.Dialer{Timeout: config.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return Outcome{Kind: classifyDialErr(err), Err: err}
	}
	defer conn.Close()

	deadline := time.Now().Add(config.Timeout)
	if err := conn.SetDeadline(deadline); err != nil {
		return Outcome{Kind: OutcomeUnreachable, Err: err}
	}

	hostname := config.Hostname
	if hostname == "" {
		hostname = ip
	}

	if err := writeHandshake(conn, protocolID, hostname, port); err != nil {
		return Outcome{Kind: classifyIOErr(err), Err: err}
	}

	reader := bufio.NewReader(conn)
	sendStart := time.Now()

	firstByte, err := reader.Peek(1)
	if err != nil {
		return Outcome{Kind: classifyIOErr(err), Err: err}
	}
	if isTLSRecordHeader(firstByte[0]) {
		err := scanerrors.NewProtocolError(scanerrors.CodeProtocolTLSUnexpected, "peer greeted with a TLS record, not a status response")
		return Outcome{Kind: OutcomeTLSUnexpected, Err: err}
	}
	if firstByte[0] == 0xFF {
		return readLegacy(reader, config)
	}

	length, err := wire.ReadVarInt(reader)
	if err != nil {
		return Outcome{Kind: OutcomeProtocolError, Err: err}
	}
	if length < 0 {
		err := scanerrors.NewProtocolError(scanerrors.CodeProtocolBadFrame, "negative frame length")
		return Outcome{Kind: OutcomeProtocolError, Err: err}
	}

	packetID, err := wire.ReadVarInt(reader)
	if err != nil {
		return Outcome{Kind: OutcomeProtocolError, Err: err}
	}
	if packetID != 0x00 {
		err := scanerrors.NewProtocolError(scanerrors.CodeProtocolUnexpectedPacket, fmt.Sprintf("unexpected packet id %d", packetID))
		return Outcome{Kind: OutcomeProtocolError, Err: err}
	}

	jsonStr, err := wire.ReadVarString(reader)
	if err != nil {
		return Outcome{Kind: OutcomeProtocolError, Err: err}
	}
	rtt := time.Since(sendStart)

	raw, err := ParseRawDocument([]byte(jsonStr))
	if err != nil {
		wrapped := scanerrors.WrapProtocolError(scanerrors.CodeProtocolBadJSON, "status response is not valid JSON", err)
		return Outcome{Kind: OutcomeProtocolError, Err: wrapped}
	}

	doc := BuildServerDocument(raw, []byte(jsonStr))
	return Outcome{Kind: OutcomeSuccess, Document: doc, RTT: rtt}
}

func writeHandshake(conn net.Conn, protocolID int32, hostname string, port uint16) error {
	handshake, err := framePacket(func(buf writeBuffer) error {
		if err := wire.WriteVarInt(buf, 0x00); err != nil {
			return err
		}
		if err := wire.WriteVarInt(buf, protocolID); err != nil {
			return err
		}
		if err := wire.WriteVarString(buf, hostname); err != nil {
			return err
		}
		if err := wire.WriteUnsignedShort(buf, port); err != nil {
			return err
		}
		return wire.WriteVarInt(buf, 1) // next_state = status
	})
	if err != nil {
		return err
	}
	if _, err := conn.Write(handshake); err != nil {
		return err
	}

	statusRequest, err := framePacket(func(buf writeBuffer) error {
		return wire.WriteVarInt(buf, 0x00)
	})
	if err != nil {
		return err
	}
	_, err = conn.Write(statusRequest)
	return err
}

// readLegacy handles the 0xFF-prefixed legacy reply path. The remaining
// bytes after the kick-packet marker are a UnsignedShort length followed by
// that many UCS-2 code units.
func readLegacy(reader *bufio.Reader, config EngineConfig) Outcome {
	if !config.LegacySupport {
		err := scanerrors.NewProtocolError(scanerrors.CodeProtocolLegacyDisabled, "legacy response received but legacy_support is disabled")
		return Outcome{Kind: OutcomeProtocolError, Err: err}
	}

	if _, err := reader.Discard(1); err != nil {
		return Outcome{Kind: classifyIOErr(err), Err: err}
	}

	length, err := wire.ReadUnsignedShort(reader)
	if err != nil {
		return Outcome{Kind: OutcomeProtocolError, Err: err}
	}

	payload := make([]byte, int(length)*2)
	if _, err := readFull(reader, payload); err != nil {
		return Outcome{Kind: classifyIOErr(err), Err: err}
	}

	status, err := wire.DecodeLegacyUCS2(payload)
	if err != nil {
		status, err = wire.DecodeLegacyPlain(payload)
		if err != nil {
			return Outcome{Kind: OutcomeProtocolError, Err: err}
		}
	}

	doc := &ServerDocument{
		ProtocolID:    status.ProtocolVersion,
		Software:      SoftwareUnknown,
		VersionName:   status.Version,
		MOTDPlain:     status.MOTD,
		MOTDRaw:       status.MOTD,
		PlayersOnline: status.PlayersOnline,
		PlayersMax:    status.PlayersMax,
	}
	return Outcome{Kind: OutcomeLegacyDetected, Document: doc}
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// isTLSRecordHeader reports whether b looks like the first byte of a TLS
// record (handshake content type 0x16); a handful of misconfigured
// reverse-proxied servers terminate TLS on the Minecraft port.
func isTLSRecordHeader(b byte) bool {
	return b == 0x16
}

func classifyDialErr(err error) OutcomeKind {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return OutcomeTimeout
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"):
		return OutcomeRefused
	case strings.Contains(msg, "no route to host"), strings.Contains(msg, "network is unreachable"):
		return OutcomeUnreachable
	case strings.Contains(msg, "connection reset"):
		return OutcomeReset
	default:
		return OutcomeUnreachable
	}
}

func classifyIOErr(err error) OutcomeKind {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return OutcomeTimeout
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection reset"):
		return OutcomeReset
	case strings.Contains(msg, "connection refused"):
		return OutcomeRefused
	default:
		return OutcomeProtocolError
	}
}
