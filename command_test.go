package lync

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validArgs returns a set of acceptable arguments for entry.
func validArgs(entry CommandEntry) []interface{} {
	if entry.Length > 1 {
		return []interface{}{"", "Office", strings.Repeat("x", entry.Length+5), []byte("Kitchen")}
	}
	switch entry.Kind {
	case ScaledInteger:
		return []interface{}{-60, -18, -10, 0, 10, 18, 127}
	case EnumeratedByte:
		args := []interface{}{}
		for key := range entry.Values {
			args = append(args, key)
		}
		return args
	}
	return []interface{}{nil}
}

func TestEncodeFraming(t *testing.T) {
	for cmd, entry := range Commands {
		for _, arg := range validArgs(entry) {
			for _, zone := range []ZoneID{0, 1, 15} {
				frame, err := EncodeZone(cmd, zone, arg)
				require.NoError(t, err, "%s(%v)", cmd, arg)
				require.Len(t, frame, headerLen+entry.Length+1, "%s(%v)", cmd, arg)

				assert.Equal(t, Header, frame[:2])
				assert.Equal(t, byte(zone), frame[2])
				assert.Equal(t, entry.Opcode, frame[3])
				assert.Equal(t, checksum(frame[:len(frame)-1]), frame[len(frame)-1], "%s(%v) checksum", cmd, arg)
			}
		}
	}
}

func TestEncode(t *testing.T) {
	tests := []struct {
		name  string
		cmd   Command
		zone  string
		value interface{}
		want  []byte
	}{
		{"power on", ZoneCommand, "1", "power on", []byte{0x02, 0x00, 0x01, 0x04, 0x57, 0x5e}},
		{"all off", ZoneCommand, "all", "all off", []byte{0x02, 0x00, 0x00, 0x04, 0x56, 0x5c}},
		{"input 13", ZoneCommand, "3", "input13", []byte{0x02, 0x00, 0x03, 0x04, 0x63, 0x6c}},
		{"volume 0", SetVolume, "2", -60, []byte{0x02, 0x00, 0x02, 0x15, 0x44, 0x5d}},
		{"volume 100", SetVolume, "2", 0, []byte{0x02, 0x00, 0x02, 0x15, 0x80, 0x99}},
		{"balance centered", SetBalance, "1", 0, []byte{0x02, 0x00, 0x01, 0x16, 0x80, 0x99}},
		{"treble", SetTreble, "1", 2, []byte{0x02, 0x00, 0x01, 0x17, 0x82, 0x9c}},
		{"bass cut", SetBass, "1", -2, []byte{0x02, 0x00, 0x01, 0x18, 0x7e, 0x99}},
		{"query all zones", QueryAllZones, "all", nil, []byte{0x02, 0x00, 0x00, 0x0c, 0x00, 0x0e}},
		{"query all zones status", QueryAllZonesStatus, "all", nil, []byte{0x02, 0x00, 0x00, 0x05, 0x00, 0x07}},
		{"echo on", SetEcho, "4", "on", []byte{0x02, 0x00, 0x04, 0x19, 0x01, 0x20}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := Encode(NewStore(), test.cmd, test.zone, test.value)
			require.NoError(t, err)
			assert.Equal(t, test.want, got)
		})
	}
}

func TestEncodeNames(t *testing.T) {
	frame, err := EncodeZone(SetZoneName, 2, "Office")
	require.NoError(t, err)
	assert.Equal(t, []byte("Office\x00\x00\x00\x00\x00\x00"), frame[4:16])

	frame, err = EncodeZone(SetSourceName, 2, "A name that is too long")
	require.NoError(t, err)
	assert.Equal(t, []byte("A name that "), frame[4:16])
}

func TestEncodeErrors(t *testing.T) {
	tests := []struct {
		name  string
		cmd   Command
		zone  string
		value interface{}
		want  error
	}{
		{"unknown command", Command("self destruct"), "1", nil, ErrUnknownCommand},
		{"unknown command checked first", Command("self destruct"), "Office", nil, ErrUnknownCommand},
		{"unknown zone name", ZoneCommand, "Office", "power on", ErrUnknownZone},
		{"zone out of range", ZoneCommand, "16", "power on", ErrInvalidZone},
		{"negative zone", ZoneCommand, "-1", "power on", ErrInvalidZone},
		{"unknown enum value", ZoneCommand, "1", "power maybe", ErrInvalidArgument},
		{"enum wants string", ZoneCommand, "1", 1, ErrInvalidArgument},
		{"scaled wants int", SetVolume, "1", "loud", ErrInvalidArgument},
		{"name wants string", SetZoneName, "1", 12, ErrInvalidArgument},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Encode(NewStore(), test.cmd, test.zone, test.value)
			assert.ErrorIs(t, err, test.want)
		})
	}
}

func TestEncodeResolvesNames(t *testing.T) {
	store := NewStore()
	store.setZoneName(7, "Patio")

	got, err := Encode(store, ZoneCommand, "Patio", "mute on")
	require.NoError(t, err)
	want, _ := EncodeZone(ZoneCommand, 7, "mute on")
	assert.Equal(t, want, got)
}

func TestVolumeLevel(t *testing.T) {
	tests := []struct {
		volume  int
		want    int
		wantErr error
	}{
		{0, -60, nil},
		{1, -59, nil},
		{50, -30, nil},
		{75, -15, nil},
		{99, -1, nil},
		{100, 0, nil},
		{-1, 0, ErrInvalidVolume},
		{101, 0, ErrInvalidVolume},
		{150, 0, ErrInvalidVolume},
	}

	for _, test := range tests {
		got, err := volumeLevel(test.volume)
		if test.wantErr != nil {
			assert.ErrorIs(t, err, test.wantErr, "volume %d", test.volume)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, test.want, got, "volume %d", test.volume)
	}
}

func TestArgKindString(t *testing.T) {
	assert.Equal(t, "scaled", ScaledInteger.String())
	assert.Equal(t, "ArgKind(9)", ArgKind(9).String())
}
