package wire

import (
	"fmt"

	"github.com/pingcrafty/mcscan/internal/errors"
)

// Overflow reports a VarInt that ran past its maximum encoded width without
// terminating - almost always a sign the peer isn't speaking the protocol.
func Overflow(field string) error {
	return errors.NewProtocolError(errors.CodeProtocolOverflow, field+" exceeds maximum VarInt width")
}

// Truncated reports a frame that ended before the declared or expected
// number of bytes were available.
func Truncated(field string, cause error) error {
	return errors.WrapProtocolError(errors.CodeProtocolTruncated, field+" truncated", cause)
}

// StringTooLong reports a VarString whose declared length exceeds the
// protocol's string size ceiling.
func StringTooLong(length int) error {
	return errors.NewProtocolError(errors.CodeProtocolStringTooLong,
		fmt.Sprintf("declared string length %d exceeds maximum of %d bytes", length, maxStringBytes))
}
