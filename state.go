package lync

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxZones is the number of zones a Lync system addresses, including the
// broadcast zone 0.
const MaxZones = 16

const (
	AllZones    ZoneID = 0
	AllZoneName        = "all"
	UnknownName        = "unknown"
)

type OnOff bool

const (
	Off OnOff = false
	On  OnOff = true
)

func OnOffFromBool(b bool) OnOff {
	return OnOff(b)
}

// ParseOnOff accepts on/off as well as the boolean spellings remote bridges
// tend to send.
func ParseOnOff(str string) (OnOff, error) {
	switch strings.ToLower(strings.TrimSpace(str)) {
	case "on":
		return On, nil
	case "off":
		return Off, nil
	}
	b, err := strconv.ParseBool(str)
	if err != nil {
		return Off, fmt.Errorf("%w: %q is neither on nor off", ErrInvalidArgument, str)
	}
	return OnOff(b), nil
}

func (o OnOff) String() string {
	if o {
		return "on"
	}
	return "off"
}

func (o OnOff) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *OnOff) UnmarshalText(text []byte) (err error) {
	*o, err = ParseOnOff(string(text))
	return err
}

type ZoneState struct {
	Zone       ZoneID          `json:"zone" yaml:"zone"`
	Name       string          `json:"name" yaml:"name"`
	Exists     bool            `json:"exists" yaml:"exists"`
	Keypad     bool            `json:"keypad" yaml:"keypad"`
	Power      OnOff           `json:"power" yaml:"power"`
	Mute       OnOff           `json:"mute" yaml:"mute"`
	DND        OnOff           `json:"dnd" yaml:"dnd"`
	Source     byte            `json:"source" yaml:"source"`
	SourceName string          `json:"source_name" yaml:"source_name"`
	Volume     int             `json:"volume" yaml:"volume"`
	Treble     int             `json:"treble" yaml:"treble"`
	Bass       int             `json:"bass" yaml:"bass"`
	Balance    int             `json:"balance" yaml:"balance"`
	Sources    map[byte]string `json:"sources" yaml:"sources"`
}

func (zs ZoneState) clone() ZoneState {
	sources := make(map[byte]string, len(zs.Sources))
	for id, name := range zs.Sources {
		sources[id] = name
	}
	zs.Sources = sources
	return zs
}

// DisplayVolume maps the signed status volume onto the 0..100 scale used by
// callers.
func (zs ZoneState) DisplayVolume() float64 {
	return float64(zs.Volume) / -60 * 100
}

type Mp3Status struct {
	State  OnOff  `json:"state" yaml:"state"`
	File   string `json:"file" yaml:"file"`
	Artist string `json:"artist" yaml:"artist"`
}

// Store caches everything decoded from the controller. It does no locking of
// its own; the connection serializes access.
type Store struct {
	zones     [MaxZones]ZoneState
	lookup    map[string]ZoneID
	sourceIDs [MaxZones]map[string]byte
	mp3       Mp3Status
}

func NewStore() *Store {
	s := &Store{
		lookup: map[string]ZoneID{AllZoneName: AllZones},
		mp3: Mp3Status{
			State:  Off,
			File:   UnknownName,
			Artist: UnknownName,
		},
	}
	for i := range s.zones {
		s.zones[i] = ZoneState{
			Zone:       ZoneID(i),
			Name:       UnknownName,
			SourceName: UnknownName,
			Sources:    map[byte]string{},
		}
		s.sourceIDs[i] = map[string]byte{}
	}
	return s
}

// ResolveZone maps a zone name or a decimal zone number to its ID. Names are
// only known once the controller has reported them.
func (s *Store) ResolveZone(zone string) (ZoneID, error) {
	if id, found := s.lookup[zone]; found {
		return id, nil
	}
	n, err := strconv.Atoi(zone)
	if err != nil {
		return 0, fmt.Errorf("%w %q", ErrUnknownZone, zone)
	}
	id := ZoneID(n)
	if !id.Valid() {
		return 0, fmt.Errorf("%w %d", ErrInvalidZone, n)
	}
	return id, nil
}

// ResolveSource maps a source name from the zone's catalog, or a decimal
// source number, to the source number.
func (s *Store) ResolveSource(zone ZoneID, source string) (byte, error) {
	if !zone.Valid() {
		return 0, fmt.Errorf("%w %d", ErrInvalidZone, zone)
	}
	if id, found := s.sourceIDs[zone][source]; found {
		return id, nil
	}
	n, err := strconv.ParseUint(source, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("%w %q in zone %d", ErrUnknownSource, source, zone)
	}
	return byte(n), nil
}

func (s *Store) ZoneName(id ZoneID) string {
	if id == AllZones {
		return AllZoneName
	}
	return s.zones[id].Name
}

// Zone returns a copy of one zone's state.
func (s *Store) Zone(id ZoneID) (ZoneState, error) {
	if !id.Valid() {
		return ZoneState{}, fmt.Errorf("%w %d", ErrInvalidZone, id)
	}
	return s.zones[id].clone(), nil
}

// ZoneInfo returns a copy of the zone's state, or of zones 1..15 when id is
// AllZones.
func (s *Store) ZoneInfo(id ZoneID) ([]ZoneState, error) {
	if id == AllZones {
		zones := make([]ZoneState, 0, MaxZones-1)
		for i := 1; i < MaxZones; i++ {
			zones = append(zones, s.zones[i].clone())
		}
		return zones, nil
	}
	zone, err := s.Zone(id)
	if err != nil {
		return nil, err
	}
	return []ZoneState{zone}, nil
}

// SourceInfo returns the source catalogs keyed by zone, restricted to one zone
// unless id is AllZones.
func (s *Store) SourceInfo(id ZoneID) (map[ZoneID]map[byte]string, error) {
	zones, err := s.ZoneInfo(id)
	if err != nil {
		return nil, err
	}
	info := make(map[ZoneID]map[byte]string, len(zones))
	for _, zone := range zones {
		info[zone.Zone] = zone.Sources
	}
	return info, nil
}

func (s *Store) Mp3() Mp3Status {
	return s.mp3
}

func (s *Store) setZoneName(id ZoneID, name string) {
	s.zones[id].Name = name
	s.lookup[name] = id
}

func (s *Store) setSourceName(id ZoneID, source byte, name string) {
	s.zones[id].Sources[source] = name
	s.sourceIDs[id][name] = source
}
