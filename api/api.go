package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/abates/lync"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// RefreshTimeout bounds a POST /refresh.
var RefreshTimeout = 5 * time.Second

// Lync is the part of *lync.Controller the API uses.
type Lync interface {
	IsConnected() bool
	Update(ctx context.Context) error
	ZoneInfo(zone string) ([]lync.ZoneState, error)
	SourceInfo(zone string) (map[lync.ZoneID]map[byte]string, error)
	Mp3() lync.Mp3Status
	SetPower(zone string, state lync.OnOff) error
	SetMute(zone string, state lync.OnOff) error
	SetDND(zone string, state lync.OnOff) error
	SetVolume(zone string, volume int) error
	SetSource(zone string, source string) error
	AllOnOff(state lync.OnOff) error
	Restore(zone string, state lync.ZoneState) error
}

func ParseOnOff(str string) (interface{}, error) {
	return lync.ParseOnOff(str)
}

func ParseInt(str string) (interface{}, error) {
	n, err := strconv.Atoi(str)
	if err != nil {
		return nil, lync.ErrInvalidArgument
	}
	return n, nil
}

func ParseString(str string) (interface{}, error) {
	return str, nil
}

type api struct {
	ctl    Lync
	logger *zap.Logger
}

func New(ctl Lync, logger *zap.Logger) *mux.Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &api{ctl: ctl, logger: logger}

	r := mux.NewRouter()
	r.HandleFunc("/status", a.status).Methods("GET")
	r.HandleFunc("/zones", a.listZones).Methods("GET")
	r.HandleFunc("/mp3", a.mp3).Methods("GET")
	r.HandleFunc("/refresh", a.refresh).Methods("POST")
	r.HandleFunc("/all/{state}", a.sendCommand("state", ParseOnOff, func(zone string, arg interface{}) error {
		return a.ctl.AllOnOff(arg.(lync.OnOff))
	})).Methods("PUT")
	r.HandleFunc("/{zone}/status", a.zoneStatus).Methods("GET")
	r.HandleFunc("/{zone}/sources", a.zoneSources).Methods("GET")
	r.HandleFunc("/{zone}/restore", a.restore).Methods("PUT")
	r.HandleFunc("/{zone}/power/{state}", a.sendCommand("state", ParseOnOff, func(zone string, arg interface{}) error {
		return a.ctl.SetPower(zone, arg.(lync.OnOff))
	})).Methods("PUT")
	r.HandleFunc("/{zone}/mute/{state}", a.sendCommand("state", ParseOnOff, func(zone string, arg interface{}) error {
		return a.ctl.SetMute(zone, arg.(lync.OnOff))
	})).Methods("PUT")
	r.HandleFunc("/{zone}/dnd/{state}", a.sendCommand("state", ParseOnOff, func(zone string, arg interface{}) error {
		return a.ctl.SetDND(zone, arg.(lync.OnOff))
	})).Methods("PUT")
	r.HandleFunc("/{zone}/volume/{level}", a.sendCommand("level", ParseInt, func(zone string, arg interface{}) error {
		return a.ctl.SetVolume(zone, arg.(int))
	})).Methods("PUT")
	r.HandleFunc("/{zone}/source/{source}", a.sendCommand("source", ParseString, func(zone string, arg interface{}) error {
		return a.ctl.SetSource(zone, arg.(string))
	})).Methods("PUT")

	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, lync.ErrUnknownZone), errors.Is(err, lync.ErrInvalidZone):
		return http.StatusNotFound
	case errors.Is(err, lync.ErrInvalidArgument), errors.Is(err, lync.ErrInvalidVolume),
		errors.Is(err, lync.ErrUnknownSource), errors.Is(err, lync.ErrUnknownCommand):
		return http.StatusBadRequest
	case errors.Is(err, lync.ErrNotConnected):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (a *api) fail(w http.ResponseWriter, msg string, err error) {
	a.logger.Info(msg, zap.Error(err))
	http.Error(w, err.Error(), statusFor(err))
}

func (a *api) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"connected": a.ctl.IsConnected()})
}

func (a *api) listZones(w http.ResponseWriter, r *http.Request) {
	zones, err := a.ctl.ZoneInfo(lync.AllZoneName)
	if err != nil {
		a.fail(w, "Failed to list zones", err)
		return
	}
	writeJSON(w, http.StatusOK, zones)
}

func (a *api) mp3(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.ctl.Mp3())
}

func (a *api) refresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), RefreshTimeout)
	defer cancel()
	if err := a.ctl.Update(ctx); err != nil {
		a.fail(w, "Refresh failed", err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (a *api) zoneStatus(w http.ResponseWriter, r *http.Request) {
	zone := mux.Vars(r)["zone"]
	zones, err := a.ctl.ZoneInfo(zone)
	if err != nil {
		a.fail(w, "Failed to determine zone status", err)
		return
	}
	if len(zones) == 1 {
		writeJSON(w, http.StatusOK, zones[0])
		return
	}
	writeJSON(w, http.StatusOK, zones)
}

func (a *api) zoneSources(w http.ResponseWriter, r *http.Request) {
	zone := mux.Vars(r)["zone"]
	sources, err := a.ctl.SourceInfo(zone)
	if err != nil {
		a.fail(w, "Failed to list sources", err)
		return
	}
	writeJSON(w, http.StatusOK, sources)
}

func (a *api) restore(w http.ResponseWriter, r *http.Request) {
	state := lync.ZoneState{}
	if err := json.NewDecoder(r.Body).Decode(&state); err != nil {
		a.fail(w, "Failed to decode zone state", fmt.Errorf("%w: %v", lync.ErrInvalidArgument, err))
		return
	}
	if err := a.ctl.Restore(mux.Vars(r)["zone"], state); err != nil {
		a.fail(w, "Failed to restore zone", err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (a *api) sendCommand(v string, decoder func(string) (interface{}, error), send func(zone string, arg interface{}) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		arg, err := decoder(vars[v])
		if err != nil {
			a.fail(w, "Failed decoding command variable", err)
			return
		}
		if err := send(vars["zone"], arg); err != nil {
			a.fail(w, "Failed sending command to controller", err)
			return
		}
		writeJSON(w, http.StatusOK, struct{}{})
	}
}
