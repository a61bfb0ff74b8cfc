package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abates/lync"
)

type testLync struct {
	connected bool
	updateErr error
	zones     map[string]lync.ZoneState
	calls     []string
}

func newTestLync() *testLync {
	return &testLync{
		connected: true,
		zones: map[string]lync.ZoneState{
			"1":       {Zone: 1, Name: "Kitchen", Power: lync.On, Volume: -30, Sources: map[byte]string{1: "CD"}},
			"Kitchen": {Zone: 1, Name: "Kitchen", Power: lync.On, Volume: -30, Sources: map[byte]string{1: "CD"}},
		},
	}
}

func (tl *testLync) resolve(zone string) (lync.ZoneState, error) {
	zs, found := tl.zones[zone]
	if !found {
		return zs, lync.ErrUnknownZone
	}
	return zs, nil
}

func (tl *testLync) record(format string, args ...interface{}) {
	tl.calls = append(tl.calls, fmt.Sprintf(format, args...))
}

func (tl *testLync) IsConnected() bool { return tl.connected }

func (tl *testLync) Update(ctx context.Context) error {
	tl.record("update")
	return tl.updateErr
}

func (tl *testLync) ZoneInfo(zone string) ([]lync.ZoneState, error) {
	if zone == lync.AllZoneName {
		return []lync.ZoneState{tl.zones["1"], {Zone: 2, Name: lync.UnknownName}}, nil
	}
	zs, err := tl.resolve(zone)
	if err != nil {
		return nil, err
	}
	return []lync.ZoneState{zs}, nil
}

func (tl *testLync) SourceInfo(zone string) (map[lync.ZoneID]map[byte]string, error) {
	zs, err := tl.resolve(zone)
	if err != nil {
		return nil, err
	}
	return map[lync.ZoneID]map[byte]string{zs.Zone: zs.Sources}, nil
}

func (tl *testLync) Mp3() lync.Mp3Status {
	return lync.Mp3Status{State: lync.On, File: "song.mp3", Artist: lync.UnknownName}
}

func (tl *testLync) SetPower(zone string, state lync.OnOff) error {
	return tl.set("power", zone, state)
}

func (tl *testLync) SetMute(zone string, state lync.OnOff) error {
	return tl.set("mute", zone, state)
}

func (tl *testLync) SetDND(zone string, state lync.OnOff) error {
	return tl.set("dnd", zone, state)
}

func (tl *testLync) SetVolume(zone string, volume int) error {
	if volume < 0 || volume > 100 {
		return lync.ErrInvalidVolume
	}
	return tl.set("volume", zone, volume)
}

func (tl *testLync) SetSource(zone string, source string) error {
	if source == "Phono" {
		return lync.ErrUnknownSource
	}
	return tl.set("source", zone, source)
}

func (tl *testLync) AllOnOff(state lync.OnOff) error {
	tl.record("all %v", state)
	return nil
}

func (tl *testLync) Restore(zone string, state lync.ZoneState) error {
	return tl.set("restore", zone, fmt.Sprintf("%v/%d", state.Power, state.Volume))
}

func (tl *testLync) set(what, zone string, value interface{}) error {
	if !tl.connected {
		return lync.ErrNotConnected
	}
	if _, err := tl.resolve(zone); err != nil {
		return err
	}
	tl.record("%s %s %v", what, zone, value)
	return nil
}

func serve(t *testing.T, tl *testLync, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	New(tl, nil).ServeHTTP(w, req)
	return w
}

func TestCommands(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantCalls  []string
	}{
		{"power on", "PUT", "/1/power/on", http.StatusOK, []string{"power 1 on"}},
		{"power by name", "PUT", "/Kitchen/power/false", http.StatusOK, []string{"power Kitchen off"}},
		{"mute", "PUT", "/1/mute/on", http.StatusOK, []string{"mute 1 on"}},
		{"dnd", "PUT", "/1/dnd/off", http.StatusOK, []string{"dnd 1 off"}},
		{"volume", "PUT", "/1/volume/40", http.StatusOK, []string{"volume 1 40"}},
		{"source", "PUT", "/1/source/CD", http.StatusOK, []string{"source 1 CD"}},
		{"all off", "PUT", "/all/off", http.StatusOK, []string{"all off"}},
		{"bad state", "PUT", "/1/power/sideways", http.StatusBadRequest, nil},
		{"bad volume", "PUT", "/1/volume/loud", http.StatusBadRequest, nil},
		{"volume out of range", "PUT", "/1/volume/150", http.StatusBadRequest, nil},
		{"unknown source", "PUT", "/1/source/Phono", http.StatusBadRequest, nil},
		{"unknown zone", "PUT", "/Office/power/on", http.StatusNotFound, nil},
		{"wrong method", "GET", "/1/power/on", http.StatusMethodNotAllowed, nil},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			tl := newTestLync()
			w := serve(t, tl, test.method, test.path)
			assert.Equal(t, test.wantStatus, w.Code, w.Body.String())
			assert.Equal(t, test.wantCalls, tl.calls)
		})
	}
}

func TestNotConnected(t *testing.T) {
	tl := newTestLync()
	tl.connected = false

	w := serve(t, tl, "PUT", "/1/power/on")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = serve(t, tl, "GET", "/status")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"connected": false}`, w.Body.String())
}

func TestZoneStatus(t *testing.T) {
	w := serve(t, newTestLync(), "GET", "/Kitchen/status")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var got lync.ZoneState
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, lync.ZoneID(1), got.Zone)
	assert.Equal(t, lync.On, got.Power)
	assert.Equal(t, map[byte]string{1: "CD"}, got.Sources)

	w = serve(t, newTestLync(), "GET", "/Office/status")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListZones(t *testing.T) {
	w := serve(t, newTestLync(), "GET", "/zones")
	require.Equal(t, http.StatusOK, w.Code)

	var got []lync.ZoneState
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	require.Len(t, got, 2)
	assert.Equal(t, "Kitchen", got[0].Name)
}

func TestZoneSources(t *testing.T) {
	w := serve(t, newTestLync(), "GET", "/1/sources")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"1": {"1": "CD"}}`, w.Body.String())
}

func TestMp3(t *testing.T) {
	w := serve(t, newTestLync(), "GET", "/mp3")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"state": "on", "file": "song.mp3", "artist": "unknown"}`, w.Body.String())
}

func TestRefresh(t *testing.T) {
	tl := newTestLync()
	w := serve(t, tl, "POST", "/refresh")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"update"}, tl.calls)

	tl = newTestLync()
	tl.updateErr = lync.ErrNotConnected
	w = serve(t, tl, "POST", "/refresh")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), lync.ErrNotConnected.Error()))
}

func TestRestore(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantCalls  []string
	}{
		{"restore", "/Kitchen/restore", `{"power": "on", "volume": -30}`, http.StatusOK, []string{"restore Kitchen on/-30"}},
		{"bad body", "/Kitchen/restore", `{"power": "sideways"}`, http.StatusBadRequest, nil},
		{"unknown zone", "/Office/restore", `{}`, http.StatusNotFound, nil},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			tl := newTestLync()
			req := httptest.NewRequest("PUT", test.path, strings.NewReader(test.body))
			w := httptest.NewRecorder()
			New(tl, nil).ServeHTTP(w, req)
			assert.Equal(t, test.wantStatus, w.Code, w.Body.String())
			assert.Equal(t, test.wantCalls, tl.calls)
		})
	}
}
