package lync

import (
	"bytes"
	"strconv"
	"strings"
)

// Bits maps a flag name to its bit position within a byte.
type Bits map[string]uint

// decodeBits returns the state of every named bit in b.
func decodeBits(b byte, bits Bits) map[string]bool {
	flags := make(map[string]bool, len(bits))
	for name, pos := range bits {
		flags[name] = b&(1<<pos) != 0
	}
	return flags
}

// bitmapBits names the bits of an 8-zones-per-byte bitmap by zone offset.
var bitmapBits = func() Bits {
	bits := make(Bits, 8)
	for i := 0; i < 8; i++ {
		bits[strconv.Itoa(i)] = uint(i)
	}
	return bits
}()

// decodeBitmap sets receiver(base+i) for every bit i of b.
func decodeBitmap(b byte, base int, receiver func(ZoneID, bool)) {
	for name, set := range decodeBits(b, bitmapBits) {
		offset, _ := strconv.Atoi(name)
		receiver(ZoneID(base+offset), set)
	}
}

func signedByte(b byte) int {
	return int(int8(b))
}

func checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}

// padString copies str into a zero filled field of exactly size bytes,
// truncating when it does not fit.
func padString(str []byte, size int) []byte {
	field := make([]byte, size)
	copy(field, str)
	return field
}

// trimString decodes a fixed width, NUL padded name field. Bytes are read as
// Latin-1.
func trimString(field []byte) string {
	if i := bytes.IndexByte(field, 0); i >= 0 {
		field = field[:i]
	}
	builder := &strings.Builder{}
	for _, b := range field {
		builder.WriteRune(rune(b))
	}
	return builder.String()
}

type unmarshaler func(byte)

func signedUnmarshaler(receiver *int) unmarshaler {
	return func(b byte) {
		*receiver = signedByte(b)
	}
}

func byteUnmarshaler(receiver *byte) unmarshaler {
	return func(b byte) {
		*receiver = b
	}
}
