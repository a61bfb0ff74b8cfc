package lync

import "strconv"

type ZoneID int

func (id ZoneID) Valid() bool {
	return id >= 0 && id < MaxZones
}

func (id ZoneID) String() string {
	return strconv.Itoa(int(id))
}

type Zone interface {
	ID() ZoneID
	State() (ZoneState, error)
	SetPower(state OnOff) error
	SetMute(state OnOff) error
	SetVolume(volume int) error
	SetSource(source string) error
	SendCommand(cmd Command, arg interface{}) error
	Restore(state ZoneState) error
}

type zone struct {
	id  ZoneID
	ctl *Controller
}

func newZone(id ZoneID, ctl *Controller) *zone {
	return &zone{
		id:  id,
		ctl: ctl,
	}
}

func (z *zone) ID() ZoneID {
	return z.id
}

func (z *zone) State() (ZoneState, error) {
	z.ctl.mu.RLock()
	defer z.ctl.mu.RUnlock()
	return z.ctl.store.Zone(z.id)
}

func (z *zone) SetPower(state OnOff) error {
	return z.ctl.SetPower(z.id.String(), state)
}

func (z *zone) SetMute(state OnOff) error {
	return z.ctl.SetMute(z.id.String(), state)
}

func (z *zone) SetVolume(volume int) error {
	return z.ctl.SetVolume(z.id.String(), volume)
}

func (z *zone) SetSource(source string) error {
	return z.ctl.SetSource(z.id.String(), source)
}

func (z *zone) SendCommand(cmd Command, arg interface{}) error {
	return z.ctl.SendCommand(cmd, z.id.String(), arg)
}

// Restore sends the commands needed to bring the zone back to a state
// captured earlier. Levels are sent as the raw values the status reported.
func (z *zone) Restore(state ZoneState) (err error) {
	type step struct {
		cmd Command
		arg interface{}
	}
	steps := []step{
		{ZoneCommand, "power " + state.Power.String()},
		{ZoneCommand, "mute " + state.Mute.String()},
		{ZoneCommand, "dnd " + state.DND.String()},
		{SetVolume, state.Volume},
		{SetTreble, state.Treble},
		{SetBass, state.Bass},
		{SetBalance, state.Balance},
	}
	// zero means the controller never reported a source
	if state.Source > 0 {
		steps = append(steps, step{ZoneCommand, "input" + strconv.Itoa(int(state.Source))})
	}
	for _, cmd := range steps {
		err = z.SendCommand(cmd.cmd, cmd.arg)
		if err != nil {
			break
		}
	}
	return err
}
