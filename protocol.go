package lync

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"go.uber.org/zap"
)

const (
	EventUndefined      byte = 0x02
	EventZoneStatus     byte = 0x05
	EventKeypadExists   byte = 0x06
	EventMp3PlayEnd     byte = 0x09
	EventZoneSourceName byte = 0x0c
	EventZoneName       byte = 0x0d
	EventSourceName     byte = 0x0e
	EventMp3FileName    byte = 0x11
	EventMp3ArtistName  byte = 0x12
	EventMp3On          byte = 0x13
	EventMp3Off         byte = 0x14
	EventUndefined1B    byte = 0x1b
)

// Name fields carry at most this many characters; the rest of the field is
// padding or trailing data.
const nameLen = 11

// offset of the source byte in a zone status payload, followed by volume,
// treble, bass and balance
const zoneStatusSource = 4

// EventEntry describes one incoming frame type.
type EventEntry struct {
	Name   string
	Length int
	Bits   Bits
}

// Events is the incoming frame table.
var Events = map[byte]EventEntry{
	EventUndefined: {Name: "undefined", Length: 1},
	EventZoneStatus: {Name: "zone status", Length: 9, Bits: Bits{
		"power": 0,
		"mute":  1,
		"dnd":   2,
		"door":  5,
	}},
	EventKeypadExists:   {Name: "keypad exists", Length: 9},
	EventMp3PlayEnd:     {Name: "mp3 play end", Length: 1},
	EventZoneSourceName: {Name: "zone source name", Length: 12},
	EventZoneName:       {Name: "zone name", Length: 13},
	EventSourceName:     {Name: "source name", Length: 13},
	EventMp3FileName:    {Name: "mp3 file name", Length: 64},
	EventMp3ArtistName:  {Name: "mp3 artist name", Length: 64},
	EventMp3On:          {Name: "mp3 on", Length: 1},
	EventMp3Off:         {Name: "mp3 off", Length: 17},
	EventUndefined1B:    {Name: "undefined", Length: 9},
}

// Frame is one complete frame received from the controller.
type Frame struct {
	Zone     ZoneID
	Opcode   byte
	Payload  []byte
	Checksum byte
	Valid    bool
}

func (f Frame) String() string {
	return fmt.Sprintf("%s{zone=%d, opcode=0x%02x, payload=%s, valid=%v}",
		Events[f.Opcode].Name, f.Zone, f.Opcode, hex.EncodeToString(f.Payload), f.Valid)
}

// Decoder interprets frames and applies them to a Store.
type Decoder struct {
	store  *Store
	logger *zap.Logger

	// Strict drops frames whose checksum does not match instead of applying
	// them anyway.
	Strict bool

	// OnFrame, when set, is called after every frame has been applied.
	OnFrame func(Frame)
}

func NewDecoder(store *Store, logger *zap.Logger) *Decoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decoder{store: store, logger: logger}
}

// Decode applies at most one frame from the front of buf and returns the
// number of bytes the caller should discard. Zero means more data is needed.
func (d *Decoder) Decode(buf []byte) int {
	start := bytes.Index(buf, Header)
	if start < 0 {
		// the second marker byte may still be on its way
		if n := len(buf); n > 0 && buf[n-1] == Header[0] {
			return n - 1
		}
		return len(buf)
	}

	if len(buf)-start < len(Header)+4 {
		return 0
	}

	if start > 0 {
		d.logger.Debug("Bad sync, skipping bytes", zap.Int("skipped", start), zap.String("hex", hex.EncodeToString(buf[:start])))
	}

	zone := ZoneID(buf[start+len(Header)])
	opcode := buf[start+len(Header)+1]
	entry, found := Events[opcode]
	if !found {
		d.logger.Error("Invalid command value", zap.String("opcode", fmt.Sprintf("0x%02x", opcode)))
		return start + headerLen
	}

	end := start + headerLen + entry.Length
	if len(buf) < end+1 {
		return 0
	}

	frame := Frame{
		Zone:     zone,
		Opcode:   opcode,
		Payload:  append([]byte(nil), buf[start+headerLen:end]...),
		Checksum: buf[end],
	}
	sum := checksum(buf[start:end])
	frame.Valid = sum == frame.Checksum
	if !frame.Valid {
		d.logger.Warn("Bad checksum",
			zap.Error(ErrChecksum),
			zap.String("computed", fmt.Sprintf("0x%02x", sum)),
			zap.String("received", fmt.Sprintf("0x%02x", frame.Checksum)),
			zap.String("frame", hex.EncodeToString(buf[start:end+1])),
		)
		if d.Strict {
			return end + 1
		}
	}

	d.apply(frame, entry)
	if d.OnFrame != nil {
		d.OnFrame(frame)
	}
	return end + 1
}

func (d *Decoder) apply(f Frame, entry EventEntry) {
	if !f.Zone.Valid() {
		d.logger.Warn("Frame for unknown zone", zap.Int("zone", int(f.Zone)), zap.String("type", entry.Name))
		return
	}

	s := d.store
	zone := &s.zones[f.Zone]
	p := f.Payload
	switch f.Opcode {
	case EventKeypadExists:
		exists := func(id ZoneID, set bool) { s.zones[id].Exists = set }
		keypad := func(id ZoneID, set bool) { s.zones[id].Keypad = set }
		decodeBitmap(p[1], 0, exists)
		decodeBitmap(p[2], 0, keypad)
		decodeBitmap(p[3], 8, exists)
		decodeBitmap(p[4], 8, keypad)
	case EventZoneStatus:
		flags := decodeBits(p[0], entry.Bits)
		zone.Power = OnOff(flags["power"])
		zone.Mute = OnOff(flags["mute"])
		zone.DND = OnOff(flags["dnd"])
		unmarshalers := []unmarshaler{
			byteUnmarshaler(&zone.Source),
			signedUnmarshaler(&zone.Volume),
			signedUnmarshaler(&zone.Treble),
			signedUnmarshaler(&zone.Bass),
			signedUnmarshaler(&zone.Balance),
		}
		for i, unmarshal := range unmarshalers {
			unmarshal(p[zoneStatusSource+i])
		}
	case EventZoneSourceName:
		zone.SourceName = trimString(p[:nameLen])
	case EventZoneName:
		s.setZoneName(f.Zone, trimString(p[:nameLen]))
	case EventSourceName:
		s.setSourceName(f.Zone, p[nameLen], trimString(p[:nameLen]))
	case EventMp3On:
		s.mp3.State = On
	case EventMp3Off:
		s.mp3.State = Off
	case EventMp3FileName:
		s.mp3.File = trimString(p)
	case EventMp3ArtistName:
		s.mp3.Artist = trimString(p)
	default:
		d.logger.Info("Not processing packet type", zap.String("type", entry.Name), zap.Int("zone", int(f.Zone)))
	}
}
