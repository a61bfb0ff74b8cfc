package lync

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeBits(t *testing.T) {
	bits := Bits{"a": 0, "b": 3, "c": 7}
	assert.Equal(t, map[string]bool{"a": true, "b": false, "c": true}, decodeBits(0x81, bits))
	assert.Equal(t, map[string]bool{"a": false, "b": true, "c": false}, decodeBits(0x08, bits))
}

func TestDecodeBitmap(t *testing.T) {
	got := map[ZoneID]bool{}
	decodeBitmap(0b01000001, 8, func(id ZoneID, set bool) { got[id] = set })
	assert.Len(t, got, 8)
	assert.True(t, got[8])
	assert.True(t, got[14])
	assert.False(t, got[9])
}

func TestSignedByte(t *testing.T) {
	tests := []struct {
		input byte
		want  int
	}{
		{0x00, 0},
		{0x7f, 127},
		{0x80, -128},
		{0xc4, -60},
		{0xff, -1},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, signedByte(test.input), "0x%02x", test.input)
	}
}

func TestChecksum(t *testing.T) {
	assert.Equal(t, byte(0), checksum(nil))
	assert.Equal(t, byte(0x5e), checksum([]byte{0x02, 0x00, 0x01, 0x04, 0x57}))
	assert.Equal(t, byte(0x01), checksum([]byte{0xff, 0x02}))
}

func TestStrings(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		size  int
		want  []byte
	}{
		{"pad", []byte("ab"), 4, []byte{'a', 'b', 0, 0}},
		{"exact", []byte("abcd"), 4, []byte("abcd")},
		{"truncate", []byte("abcdef"), 4, []byte("abcd")},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.want, padString(test.input, test.size))
		})
	}

	assert.Equal(t, "Den", trimString([]byte{'D', 'e', 'n', 0, 'x', 0}))
	assert.Equal(t, "Café", trimString([]byte{'C', 'a', 'f', 0xe9}))
	assert.Equal(t, "", trimString([]byte{0, 0}))
}
