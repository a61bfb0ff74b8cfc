// Package lync talks to HTD Lync 6/12 multi-zone audio controllers, over
// the controller's serial port or through a (W)GW-SL1 gateway.
//
// A Controller keeps a cache of every zone that is filled in by the status
// frames the controller sends, either on its own or in response to a query.
// Setters write a command frame and return; the cache catches up when the
// controller reports the change, so callers that need fresh state should call
// Refresh or Update first.
package lync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	ErrInvalidZone     = errors.New("invalid Zone ID")
	ErrUnknownZone     = errors.New("unknown zone")
	ErrUnknownSource   = errors.New("unknown source")
	ErrUnknownCommand  = errors.New("unknown command")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidVolume   = errors.New("volume must be between 0 and 100")
	ErrChecksum        = errors.New("checksum mismatch")
	ErrNotConnected    = errors.New("not connected")
	ErrConnectTimeout  = errors.New("timed out connecting")
	ErrRetryTimeout    = errors.New("retries exceeded")

	ConnectRetryLimit = 3
)

// Controller is a client for one Lync system.
type Controller struct {
	transport Transport
	logger    *zap.Logger

	// mu guards store and applied. The reader is the only writer.
	mu      sync.RWMutex
	store   *Store
	decoder *Decoder
	applied []Frame

	handlers []func(Frame)

	connMu  sync.Mutex
	session atomic.Pointer[session]
	state   atomic.Int32

	notifyMu sync.Mutex
	notify   chan struct{}

	verboseLog     bool
	connectTimeout time.Duration
	refreshTimeout time.Duration
	quietPeriod    time.Duration
	retryDelay     time.Duration
}

type Option func(*Controller)

// VerboseOption logs every frame sent and received at debug level.
func VerboseOption() Option {
	return func(ctl *Controller) {
		ctl.verboseLog = true
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(ctl *Controller) {
		ctl.logger = logger
	}
}

// StrictChecksumOption drops frames that fail the checksum. By default they
// are logged and applied anyway.
func StrictChecksumOption() Option {
	return func(ctl *Controller) {
		ctl.decoder.Strict = true
	}
}

// WithFrameHandler registers fn to be called from the reader goroutine after
// each frame has been applied to the cache. fn must not call Close.
func WithFrameHandler(fn func(Frame)) Option {
	return func(ctl *Controller) {
		ctl.handlers = append(ctl.handlers, fn)
	}
}

func ConnectTimeoutOption(timeout time.Duration) Option {
	return func(ctl *Controller) {
		ctl.connectTimeout = timeout
	}
}

// RefreshTimeoutOption sets how long a refresh waits overall and how long the
// stream must be idle before the refresh is considered complete.
func RefreshTimeoutOption(timeout, quiet time.Duration) Option {
	return func(ctl *Controller) {
		ctl.refreshTimeout = timeout
		ctl.quietPeriod = quiet
	}
}

func RetryDelayOption(delay time.Duration) Option {
	return func(ctl *Controller) {
		ctl.retryDelay = delay
	}
}

// New creates a controller on transport. The transport is not opened until
// Connect is called.
func New(transport Transport, options ...Option) *Controller {
	ctl := &Controller{
		transport:      transport,
		logger:         zap.NewNop(),
		store:          NewStore(),
		notify:         make(chan struct{}),
		connectTimeout: DefaultConnectTimeout,
		refreshTimeout: DefaultRefreshTimeout,
		quietPeriod:    DefaultQuietPeriod,
		retryDelay:     DefaultRetryDelay,
	}
	ctl.decoder = NewDecoder(ctl.store, nil)

	for _, option := range options {
		option(ctl)
	}

	ctl.decoder.logger = ctl.logger
	ctl.decoder.OnFrame = func(frame Frame) {
		ctl.applied = append(ctl.applied, frame)
	}
	return ctl
}

// Update refreshes every zone.
func (ctl *Controller) Update(ctx context.Context) error {
	return ctl.Refresh(ctx, AllZoneName)
}

// Refresh asks the controller to report zone state and waits for the reply
// burst to finish. The controller never says when it is done, so the wait
// ends once frames stop arriving or the refresh timeout passes.
func (ctl *Controller) Refresh(ctx context.Context, zone string) error {
	id, err := ctl.resolveZone(zone)
	if err != nil {
		return err
	}
	next := ctl.frameSignal()
	if err := ctl.sendZone(QueryAllZones, id, nil); err != nil {
		return err
	}
	return ctl.awaitQuiet(ctx, next)
}

// SendCommand encodes and writes any command from the command table.
func (ctl *Controller) SendCommand(cmd Command, zone string, value interface{}) error {
	ctl.mu.RLock()
	frame, err := Encode(ctl.store, cmd, zone, value)
	ctl.mu.RUnlock()
	if err != nil {
		ctl.logger.Info("Not sending command", zap.String("command", string(cmd)), zap.String("zone", zone), zap.Error(err))
		return err
	}
	return ctl.writeFrame(cmd, frame)
}

func (ctl *Controller) sendZone(cmd Command, zone ZoneID, value interface{}) error {
	frame, err := EncodeZone(cmd, zone, value)
	if err != nil {
		return err
	}
	return ctl.writeFrame(cmd, frame)
}

func (ctl *Controller) writeFrame(cmd Command, frame []byte) error {
	err := ctl.write(frame)
	if err != nil {
		ctl.logger.Error("Failed sending command", zap.String("command", string(cmd)), zap.Error(err))
	}
	return err
}

func (ctl *Controller) SetPower(zone string, state OnOff) error {
	ctl.logger.Debug("Change power", zap.String("zone", zone), zap.Stringer("state", state))
	return ctl.SendCommand(ZoneCommand, zone, "power "+state.String())
}

func (ctl *Controller) SetMute(zone string, state OnOff) error {
	ctl.logger.Debug("Change mute", zap.String("zone", zone), zap.Stringer("state", state))
	return ctl.SendCommand(ZoneCommand, zone, "mute "+state.String())
}

func (ctl *Controller) SetDND(zone string, state OnOff) error {
	ctl.logger.Debug("Change do not disturb", zap.String("zone", zone), zap.Stringer("state", state))
	return ctl.SendCommand(ZoneCommand, zone, "dnd "+state.String())
}

// AllOnOff switches every zone on or off.
func (ctl *Controller) AllOnOff(state OnOff) error {
	ctl.logger.Debug("All on/off", zap.Stringer("state", state))
	return ctl.SendCommand(ZoneCommand, AllZoneName, "all "+state.String())
}

// SetVolume sets the zone volume on a 0..100 scale.
func (ctl *Controller) SetVolume(zone string, volume int) error {
	level, err := volumeLevel(volume)
	if err != nil {
		ctl.logger.Info("Not sending volume", zap.String("zone", zone), zap.Error(err))
		return err
	}
	ctl.logger.Debug("Change volume", zap.String("zone", zone), zap.Int("volume", volume), zap.Int("level", level))
	return ctl.SendCommand(SetVolume, zone, level)
}

// SetTreble, SetBass and SetBalance take the controller's own signed level,
// the same value the zone status reports.
func (ctl *Controller) SetTreble(zone string, level int) error {
	return ctl.SendCommand(SetTreble, zone, level)
}

func (ctl *Controller) SetBass(zone string, level int) error {
	return ctl.SendCommand(SetBass, zone, level)
}

func (ctl *Controller) SetBalance(zone string, level int) error {
	return ctl.SendCommand(SetBalance, zone, level)
}

// SetSource selects a source by catalog name or by number.
func (ctl *Controller) SetSource(zone string, source string) error {
	ctl.mu.RLock()
	id, err := ctl.store.ResolveZone(zone)
	var input byte
	if err == nil {
		input, err = ctl.store.ResolveSource(id, source)
	}
	ctl.mu.RUnlock()
	if err != nil {
		ctl.logger.Info("Not changing source", zap.String("zone", zone), zap.String("source", source), zap.Error(err))
		return err
	}
	ctl.logger.Debug("Change source", zap.String("zone", zone), zap.Uint8("source", input))
	return ctl.SendCommand(ZoneCommand, zone, fmt.Sprintf("input%d", input))
}

func (ctl *Controller) resolveZone(zone string) (ZoneID, error) {
	ctl.mu.RLock()
	defer ctl.mu.RUnlock()
	return ctl.store.ResolveZone(zone)
}

func (ctl *Controller) zoneState(zone string) (ZoneState, error) {
	ctl.mu.RLock()
	defer ctl.mu.RUnlock()
	id, err := ctl.store.ResolveZone(zone)
	if err != nil {
		return ZoneState{}, err
	}
	return ctl.store.Zone(id)
}

func (ctl *Controller) Power(zone string) (OnOff, error) {
	state, err := ctl.zoneState(zone)
	return state.Power, err
}

func (ctl *Controller) Mute(zone string) (OnOff, error) {
	state, err := ctl.zoneState(zone)
	return state.Mute, err
}

// Volume returns the cached zone volume on the 0..100 display scale.
func (ctl *Controller) Volume(zone string) (float64, error) {
	state, err := ctl.zoneState(zone)
	if err != nil {
		return 0, err
	}
	return state.DisplayVolume(), nil
}

// Source returns the selected source number and its catalog name, which is
// empty until the controller has reported the zone's sources.
func (ctl *Controller) Source(zone string) (name string, source byte, err error) {
	state, err := ctl.zoneState(zone)
	if err != nil {
		return "", 0, err
	}
	return state.Sources[state.Source], state.Source, nil
}

// ZoneInfo returns the cached state of one zone, or of zones 1..15 for "all".
func (ctl *Controller) ZoneInfo(zone string) ([]ZoneState, error) {
	ctl.mu.RLock()
	defer ctl.mu.RUnlock()
	id, err := ctl.store.ResolveZone(zone)
	if err != nil {
		return nil, err
	}
	return ctl.store.ZoneInfo(id)
}

// SourceInfo returns the source catalog of one zone, or of zones 1..15 for
// "all".
func (ctl *Controller) SourceInfo(zone string) (map[ZoneID]map[byte]string, error) {
	ctl.mu.RLock()
	defer ctl.mu.RUnlock()
	id, err := ctl.store.ResolveZone(zone)
	if err != nil {
		return nil, err
	}
	return ctl.store.SourceInfo(id)
}

func (ctl *Controller) Mp3() Mp3Status {
	ctl.mu.RLock()
	defer ctl.mu.RUnlock()
	return ctl.store.Mp3()
}

// Zone returns a handle for one zone.
func (ctl *Controller) Zone(id ZoneID) (Zone, error) {
	if !id.Valid() {
		return nil, fmt.Errorf("%w %d", ErrInvalidZone, id)
	}
	return newZone(id, ctl), nil
}

// Restore brings a zone back to a state captured earlier with ZoneInfo.
func (ctl *Controller) Restore(zone string, state ZoneState) error {
	id, err := ctl.resolveZone(zone)
	if err != nil {
		return err
	}
	if id == AllZones {
		return fmt.Errorf("%w: restore needs a single zone", ErrInvalidZone)
	}
	return newZone(id, ctl).Restore(state)
}

// Zones returns handles for the zones the controller reports as installed.
func (ctl *Controller) Zones() (zones []Zone) {
	ctl.mu.RLock()
	defer ctl.mu.RUnlock()
	for i := 1; i < MaxZones; i++ {
		if ctl.store.zones[i].Exists {
			zones = append(zones, newZone(ZoneID(i), ctl))
		}
	}
	return zones
}
