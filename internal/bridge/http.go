package bridge

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"github.com/oblq/argonone/internal/argonone"
)

type stateResponse struct {
	argonone.DeviceState
	Mode string `json:"mode"`
}

// NewRouter serves the device state and the fan presets.
//
//	GET  /state
//	POST /fan/preset/:preset
//	PUT  /fan/speed/:speed
func NewRouter(device Device, logger *log.Logger) *httprouter.Router {
	if logger == nil {
		logger = log.Default()
	}

	router := httprouter.New()
	router.GET("/state", stateHandler(device, logger))
	router.POST("/fan/preset/:preset", presetHandler(device))
	router.PUT("/fan/speed/:speed", speedHandler(device))
	return router
}

func stateHandler(device Device, logger *log.Logger) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		s := device.State()
		resp := stateResponse{DeviceState: s, Mode: "held"}
		if s.FanControlEnabled {
			resp.Mode = "auto"
		}

		marshaled, err := json.Marshal(resp)
		if err != nil {
			logger.Printf("error marshaling: %v", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(marshaled)
	}
}

func presetHandler(device Device) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if err := device.ApplyPreset(argonone.Preset(ps.ByName("preset"))); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		// the daemon confirms through a notification, not through this reply
		w.WriteHeader(http.StatusAccepted)
	}
}

func speedHandler(device Device) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		speed, err := strconv.Atoi(ps.ByName("speed"))
		if err != nil || speed < 0 {
			http.Error(w, argonone.ErrSpeedOutOfRange.Error(), http.StatusBadRequest)
			return
		}
		if err = device.SetFanControl(false, speed); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}
