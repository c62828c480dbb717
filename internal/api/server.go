// Package api exposes the HTTP control surface: setpoint reads and writes,
// the latest temperatures and the persisted logs.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/ovanier/heatctl-go/internal/domain"
	"github.com/ovanier/heatctl-go/internal/state"
	"github.com/ovanier/heatctl-go/internal/storage"
)

// PriceSource supplies the cached price signal.
type PriceSource interface {
	Signal() domain.PriceSignal
}

// Server holds the HTTP handler dependencies.
type Server struct {
	log       *logrus.Entry
	setpoints *state.Setpoints
	store     storage.Store
	prices    PriceSource
	sources   map[string]bool

	// saveSetpoints persists new setpoints to the config file.
	saveSetpoints func(domain.Setpoints) error
	// triggerCycle requests an immediate decision cycle.
	triggerCycle func()
}

// NewServer creates the API server.
func NewServer(log *logrus.Entry, setpoints *state.Setpoints, store storage.Store, prices PriceSource,
	sources []string, saveSetpoints func(domain.Setpoints) error, triggerCycle func()) *Server {
	known := make(map[string]bool, len(sources))
	for _, s := range sources {
		known[s] = true
	}
	return &Server{
		log:           log,
		setpoints:     setpoints,
		store:         store,
		prices:        prices,
		sources:       known,
		saveSetpoints: saveSetpoints,
		triggerCycle:  triggerCycle,
	}
}

// Router builds the HTTP handler with request logging.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/setpoint", s.handleGetSetpoint).Methods("GET")
	r.HandleFunc("/setpoint", s.handlePostSetpoint).Methods("POST")
	r.HandleFunc("/temperature/{source}", s.handleTemperature).Methods("GET")
	r.HandleFunc("/temperature_log", s.handleTemperatureLog).Methods("GET")
	r.HandleFunc("/heat_log", s.handleHeatLog).Methods("GET")
	r.HandleFunc("/price", s.handlePrice).Methods("GET")

	return handlers.LoggingHandler(s.log.WriterLevel(logrus.DebugLevel), r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetSetpoint(w http.ResponseWriter, _ *http.Request) {
	sp := s.setpoints.Get()
	writeJSON(w, http.StatusOK, map[string]float64{
		"comfort_temp": sp.OffPeak,
		"eco_temp":     sp.FullCost,
	})
}

type setpointRequest struct {
	ComfortTemp *float64 `json:"comfort_temp"`
	EcoTemp     *float64 `json:"eco_temp"`
}

func (s *Server) handlePostSetpoint(w http.ResponseWriter, r *http.Request) {
	var req setpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid setpoint payload")
		return
	}
	if req.ComfortTemp == nil || req.EcoTemp == nil {
		writeError(w, http.StatusBadRequest, "comfort_temp and eco_temp are required")
		return
	}

	sp := domain.Setpoints{OffPeak: *req.ComfortTemp, FullCost: *req.EcoTemp}
	s.setpoints.Set(sp)

	if err := s.saveSetpoints(sp); err != nil {
		s.log.WithError(err).Error("failed to persist setpoints")
		writeError(w, http.StatusInternalServerError, "failed to persist setpoints")
		return
	}
	if err := s.store.AppendSetpoints(r.Context(), sp); err != nil {
		s.log.WithError(err).Error("failed to log setpoints")
		writeError(w, http.StatusInternalServerError, "failed to log setpoints")
		return
	}

	s.triggerCycle()
	writeJSON(w, http.StatusOK, map[string]string{"message": "setpoint temperature updated"})
}

func (s *Server) handleTemperature(w http.ResponseWriter, r *http.Request) {
	source := mux.Vars(r)["source"]
	if !s.sources[source] {
		writeError(w, http.StatusNotFound, "source not found")
		return
	}

	row, err := s.store.LatestTemperatures(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	value := row.Values[source]
	if value == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no reading for %s", source))
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{source: *value})
}

func (s *Server) handleTemperatureLog(w http.ResponseWriter, r *http.Request) {
	start, end, ok := parseRange(w, r)
	if !ok {
		return
	}

	rows, err := s.store.QueryTemperatureLog(r.Context(), start, end)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	type entry struct {
		Timestamp string              `json:"timestamp"`
		Values    map[string]*float64 `json:"values"`
	}
	result := make([]entry, len(rows))
	for i, row := range rows {
		result[i] = entry{
			Timestamp: row.Timestamp.Format(time.RFC3339),
			Values:    row.Values,
		}
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHeatLog(w http.ResponseWriter, r *http.Request) {
	start, end, ok := parseRange(w, r)
	if !ok {
		return
	}

	entries, err := s.store.QueryHeaterLog(r.Context(), start, end)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	type entry struct {
		Timestamp string `json:"timestamp"`
		State     bool   `json:"state"`
	}
	result := make([]entry, len(entries))
	for i, e := range entries {
		result[i] = entry{Timestamp: e.Timestamp.Format(time.RFC3339), State: e.On}
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handlePrice(w http.ResponseWriter, _ *http.Request) {
	signal := s.prices.Signal()
	writeJSON(w, http.StatusOK, map[string]string{
		"today":    signal.Today.String(),
		"tomorrow": signal.Tomorrow.String(),
	})
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	if storage.IsUnavailable(err) {
		writeError(w, http.StatusInternalServerError, "store unavailable")
		return
	}
	if storage.IsNotFound(err) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.log.WithError(err).Error("store read failed")
	writeError(w, http.StatusInternalServerError, "store read failed")
}
