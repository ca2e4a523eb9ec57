package wire

import "io"

// WriteVarString writes s as a VarInt-prefixed UTF-8 byte string.
func WriteVarString(w io.Writer, s string) error {
	bw, ok := w.(io.ByteWriter)
	if !ok {
		bw = &byteWriterAdapter{w}
	}
	if err := WriteVarInt(bw, int32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

// ReadVarString reads a VarInt-prefixed UTF-8 byte string, rejecting
// declared lengths beyond maxStringBytes before allocating a buffer.
func ReadVarString(r io.Reader) (string, error) {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = &byteReaderAdapter{r}
	}
	length, err := ReadVarInt(br)
	if err != nil {
		return "", err
	}
	if length < 0 || int(length) > maxStringBytes {
		return "", StringTooLong(int(length))
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", Truncated("string_body", err)
	}
	return string(buf), nil
}

type byteWriterAdapter struct{ io.Writer }

func (a *byteWriterAdapter) WriteByte(b byte) error {
	_, err := a.Write([]byte{b})
	return err
}

type byteReaderAdapter struct{ io.Reader }

func (a *byteReaderAdapter) ReadByte() (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(a, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}
