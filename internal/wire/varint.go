// Package wire implements the Minecraft server list ping wire format: the
// modern length-prefixed VarInt/VarString framing used since protocol 4, and
// the two legacy text-framed variants used by pre-1.4 and 1.4-1.6 clients.
package wire

import (
	"encoding/binary"
	"io"
)

const (
	// maxVarIntBytes is the widest a VarInt-encoded int32 can be: 5 bytes of
	// 7 data bits each covers the full 32-bit range.
	maxVarIntBytes = 5

	// maxStringBytes bounds VarString payloads. The vanilla protocol caps
	// strings at 32767 UTF-16 code units; at up to 4 bytes per UTF-8-encoded
	// code point that is a 131068-byte (about 128 KiB) ceiling.
	maxStringBytes = 32767 * 4
)

// WriteVarInt encodes val as a Minecraft protocol VarInt (base-128 LEB,
// 7 data bits per byte, least-significant group first, the high bit of each
// byte marking that another byte follows).
func WriteVarInt(w io.ByteWriter, val int32) error {
	uv := uint32(val)
	for {
		b := byte(uv & 0x7F)
		uv >>= 7
		if uv != 0 {
			b |= 0x80
		}
		if err := w.WriteByte(b); err != nil {
			return err
		}
		if uv == 0 {
			return nil
		}
	}
}

// ReadVarInt decodes a Minecraft protocol VarInt from r.
//
// Returns Overflow if more than 5 bytes are read without terminating, and
// Truncated if the underlying reader is exhausted mid-value.
func ReadVarInt(r io.ByteReader) (int32, error) {
	var result uint32
	var numRead int
	for {
		b, err := r.ReadByte()
		if err != nil {
			if err == io.EOF {
				return 0, Truncated("varint", err)
			}
			return 0, err
		}
		result |= uint32(b&0x7F) << (7 * numRead)
		numRead++
		if numRead > maxVarIntBytes {
			return 0, Overflow("varint")
		}
		if b&0x80 == 0 {
			break
		}
	}
	return int32(result), nil
}

// WriteUnsignedShort writes val as a big-endian uint16, matching the
// handshake packet's server-port field.
func WriteUnsignedShort(w io.Writer, val uint16) error {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], val)
	_, err := w.Write(buf[:])
	return err
}

// ReadUnsignedShort reads a big-endian uint16.
func ReadUnsignedShort(r io.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, Truncated("unsigned_short", err)
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}
