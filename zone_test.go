package lync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZones(t *testing.T) {
	ctl, ft := connected(t)
	assert.Empty(t, ctl.Zones())

	payload := make([]byte, 9)
	payload[1] = 0b00100010 // zones 1 and 5
	ft.feed(buildFrame(0, EventKeypadExists, payload...))
	require.Eventually(t, func() bool { return len(ctl.Zones()) == 2 }, time.Second, 5*time.Millisecond)

	zones := ctl.Zones()
	assert.Equal(t, ZoneID(1), zones[0].ID())
	assert.Equal(t, ZoneID(5), zones[1].ID())

	_, err := ctl.Zone(MaxZones)
	assert.ErrorIs(t, err, ErrInvalidZone)
}

func TestZoneCommands(t *testing.T) {
	ctl, ft := connected(t)
	z, err := ctl.Zone(3)
	require.NoError(t, err)

	require.NoError(t, z.SetPower(On))
	require.NoError(t, z.SetMute(Off))
	require.NoError(t, z.SetVolume(50))
	require.NoError(t, z.SetSource("6"))
	require.NoError(t, z.SendCommand(QueryZoneName, nil))

	var want []byte
	want = append(want, mustEncode(t, ZoneCommand, 3, "power on")...)
	want = append(want, mustEncode(t, ZoneCommand, 3, "mute off")...)
	want = append(want, mustEncode(t, SetVolume, 3, -30)...)
	want = append(want, mustEncode(t, ZoneCommand, 3, "input6")...)
	want = append(want, mustEncode(t, QueryZoneName, 3, nil)...)
	assert.Equal(t, want, ft.Written())

	state, err := z.State()
	require.NoError(t, err)
	assert.Equal(t, ZoneID(3), state.Zone)
}

func TestZoneRestore(t *testing.T) {
	tests := []struct {
		name  string
		state ZoneState
		want  [][]interface{}
	}{
		{
			name:  "with source",
			state: ZoneState{Power: On, Mute: Off, DND: On, Volume: -20, Treble: 2, Bass: -1, Balance: 3, Source: 4},
			want: [][]interface{}{
				{ZoneCommand, "power on"},
				{ZoneCommand, "mute off"},
				{ZoneCommand, "dnd on"},
				{SetVolume, -20},
				{SetTreble, 2},
				{SetBass, -1},
				{SetBalance, 3},
				{ZoneCommand, "input4"},
			},
		},
		{
			name:  "source never reported",
			state: ZoneState{Volume: -60},
			want: [][]interface{}{
				{ZoneCommand, "power off"},
				{ZoneCommand, "mute off"},
				{ZoneCommand, "dnd off"},
				{SetVolume, -60},
				{SetTreble, 0},
				{SetBass, 0},
				{SetBalance, 0},
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ctl, ft := connected(t)
			z, err := ctl.Zone(2)
			require.NoError(t, err)
			require.NoError(t, z.Restore(test.state))

			var want []byte
			for _, step := range test.want {
				want = append(want, mustEncode(t, step[0].(Command), 2, step[1])...)
			}
			assert.Equal(t, want, ft.Written())
		})
	}
}

func TestControllerRestore(t *testing.T) {
	ctl, ft := connected(t)

	assert.ErrorIs(t, ctl.Restore("all", ZoneState{}), ErrInvalidZone)
	assert.ErrorIs(t, ctl.Restore("Office", ZoneState{}), ErrUnknownZone)
	assert.Empty(t, ft.Written())

	require.NoError(t, ctl.Restore("6", ZoneState{Power: On, Volume: -10, Source: 1}))
	written := ft.Written()
	assert.Equal(t, mustEncode(t, ZoneCommand, 6, "power on"), written[:6])
	assert.Equal(t, mustEncode(t, ZoneCommand, 6, "input1"), written[len(written)-6:])
}
