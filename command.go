package lync

import (
	"fmt"
	"math"
)

// Header is the sync marker that starts every frame.
var Header = []byte{0x02, 0x00}

const (
	headerLen = 4 // sync marker, zone, opcode
)

type ArgKind int

const (
	NoArgument ArgKind = iota
	ScaledInteger
	EnumeratedByte
	RawString
)

func (k ArgKind) String() string {
	switch k {
	case NoArgument:
		return "none"
	case ScaledInteger:
		return "scaled"
	case EnumeratedByte:
		return "enum"
	case RawString:
		return "string"
	}
	return fmt.Sprintf("ArgKind(%d)", int(k))
}

// CommandEntry describes how one outgoing command is laid out on the wire.
type CommandEntry struct {
	Opcode byte
	Length int
	Kind   ArgKind

	// ScaledInteger arguments are sent as value - Offset + Scale.
	Offset int
	Scale  int

	// EnumeratedByte arguments are looked up here.
	Values map[string]byte
}

type Command string

var (
	RepeatLoop          Command = "repeat loop"
	ZoneCommand         Command = "zone"
	QueryAllZonesStatus Command = "query all zones status"
	QueryAllZones       Command = "query all zones"
	SetZoneName         Command = "zone name"
	SetSourceName       Command = "source name"
	QueryID             Command = "query id"
	QueryZoneName       Command = "query zone name"
	QueryZoneSourceName Command = "query zone source name"
	QueryFirmware       Command = "query host firmware version"
	QueryVolume         Command = "query volume value"
	SetVolume           Command = "volume setting control"
	SetBalance          Command = "balance setting control"
	SetTreble           Command = "treble setting control"
	SetBass             Command = "bass setting control"
	SetEcho             Command = "set echo"
	ResetAudio          Command = "set audio to default"
	ResetName           Command = "set name to default"

	onOffValues = map[string]byte{"on": 0xff, "off": 0x00}

	zoneValues = map[string]byte{
		"all on":    0x55,
		"all off":   0x56,
		"power on":  0x57,
		"power off": 0x58,
		"mute on":   0x1e,
		"mute off":  0x1f,
		"dnd on":    0x59,
		"dnd off":   0x5a,
		"input1":    0x10,
		"input2":    0x11,
		"input3":    0x12,
		"input4":    0x13,
		"input5":    0x14,
		"input6":    0x15,
		"input7":    0x16,
		"input8":    0x17,
		"input9":    0x18,
		"input10":   0x19,
		"input11":   0x1a,
		"input12":   0x1b,
		"input13":   0x63,
		"input14":   0x64,
		"input15":   0x65,
		"input16":   0x66,
		"input17":   0x67,
		"input18":   0x68,
		"intercom":  0x69,
	}

	// Commands is the outgoing command table. Both 0x05 and 0x0C ask the
	// controller to report every zone.
	Commands = map[Command]CommandEntry{
		RepeatLoop:          {Opcode: 0x01, Length: 1, Kind: EnumeratedByte, Values: onOffValues},
		ZoneCommand:         {Opcode: 0x04, Length: 1, Kind: EnumeratedByte, Values: zoneValues},
		QueryAllZonesStatus: {Opcode: 0x05, Length: 1, Kind: NoArgument},
		SetZoneName:         {Opcode: 0x06, Length: 12, Kind: RawString},
		SetSourceName:       {Opcode: 0x07, Length: 12, Kind: RawString},
		QueryID:             {Opcode: 0x08, Length: 1, Kind: NoArgument},
		QueryAllZones:       {Opcode: 0x0c, Length: 1, Kind: NoArgument},
		QueryZoneName:       {Opcode: 0x0d, Length: 1, Kind: NoArgument},
		QueryZoneSourceName: {Opcode: 0x0e, Length: 1, Kind: NoArgument},
		QueryFirmware:       {Opcode: 0x0f, Length: 1, Kind: NoArgument},
		QueryVolume:         {Opcode: 0x10, Length: 1, Kind: NoArgument},
		SetVolume:           {Opcode: 0x15, Length: 1, Kind: ScaledInteger, Offset: 0, Scale: 0x80},
		SetBalance:          {Opcode: 0x16, Length: 1, Kind: ScaledInteger, Offset: 18, Scale: 0x92},
		SetTreble:           {Opcode: 0x17, Length: 1, Kind: ScaledInteger, Offset: 10, Scale: 0x8a},
		SetBass:             {Opcode: 0x18, Length: 1, Kind: ScaledInteger, Offset: 10, Scale: 0x8a},
		SetEcho:             {Opcode: 0x19, Length: 1, Kind: EnumeratedByte, Values: map[string]byte{"off": 0, "on": 1}},
		ResetAudio:          {Opcode: 0x1c, Length: 1, Kind: NoArgument},
		ResetName:           {Opcode: 0x1d, Length: 1, Kind: NoArgument},
	}
)

// ZoneResolver turns a zone name or number into a zone ID.
type ZoneResolver interface {
	ResolveZone(zone string) (ZoneID, error)
}

// Encode builds the frame for cmd addressed to zone, which may be a zone name
// known to resolver or a decimal zone number.
func Encode(resolver ZoneResolver, cmd Command, zone string, value interface{}) ([]byte, error) {
	if _, found := Commands[cmd]; !found {
		return nil, fmt.Errorf("%w %q", ErrUnknownCommand, cmd)
	}
	id, err := resolver.ResolveZone(zone)
	if err != nil {
		return nil, err
	}
	return EncodeZone(cmd, id, value)
}

// EncodeZone builds the frame for cmd addressed to a numeric zone.
func EncodeZone(cmd Command, zone ZoneID, value interface{}) ([]byte, error) {
	entry, found := Commands[cmd]
	if !found {
		return nil, fmt.Errorf("%w %q", ErrUnknownCommand, cmd)
	}
	if !zone.Valid() {
		return nil, fmt.Errorf("%w %d", ErrInvalidZone, zone)
	}

	arg, err := entry.encodeArg(value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cmd, err)
	}

	frame := make([]byte, 0, headerLen+len(arg)+1)
	frame = append(frame, Header...)
	frame = append(frame, byte(zone), entry.Opcode)
	frame = append(frame, arg...)
	return append(frame, checksum(frame)), nil
}

func (entry CommandEntry) encodeArg(value interface{}) ([]byte, error) {
	if entry.Length > 1 {
		switch v := value.(type) {
		case string:
			return padString([]byte(v), entry.Length), nil
		case []byte:
			return padString(v, entry.Length), nil
		}
		return nil, fmt.Errorf("%w: want a string, got %T", ErrInvalidArgument, value)
	}

	switch entry.Kind {
	case NoArgument:
		return []byte{0}, nil
	case ScaledInteger:
		v, ok := value.(int)
		if !ok {
			return nil, fmt.Errorf("%w: want an integer, got %T", ErrInvalidArgument, value)
		}
		return []byte{byte((v - entry.Offset + entry.Scale) & 0xff)}, nil
	case EnumeratedByte:
		key, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: want a string, got %T", ErrInvalidArgument, value)
		}
		b, found := entry.Values[key]
		if !found {
			return nil, fmt.Errorf("%w %q", ErrInvalidArgument, key)
		}
		return []byte{b}, nil
	}
	return nil, fmt.Errorf("%w: unsupported argument kind %v", ErrInvalidArgument, entry.Kind)
}

// volumeLevel converts a 0..100 volume to the controller's -60..0 scale.
func volumeLevel(volume int) (int, error) {
	if volume < 0 || volume > 100 {
		return 0, fmt.Errorf("%w %d", ErrInvalidVolume, volume)
	}
	return int(math.Round(60.0/100.0*float64(volume) - 60)), nil
}
