package protocol

import (
	"bytes"

	"github.com/pingcrafty/mcscan/internal/wire"
)

// writeBuffer is the minimal surface the wire codec needs: ByteWriter for
// VarInt, Writer for VarString/UnsignedShort.
type writeBuffer interface {
	WriteByte(byte) error
	Write(p []byte) (int, error)
}

// framePacket builds one length-prefixed protocol packet: VarInt(length)
// followed by the bytes written by body into an inner buffer.
func framePacket(body func(buf writeBuffer) error) ([]byte, error) {
	var inner bytes.Buffer
	if err := body(&inner); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	if err := wire.WriteVarInt(&out, int32(inner.Len())); err != nil {
		return nil, err
	}
	out.Write(inner.Bytes())
	return out.Bytes(), nil
}
