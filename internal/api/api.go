// Package api exposes the coordinator state over a small REST surface for
// dashboards and automation hooks.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/netro-controller/internal/coordinator"
	"github.com/thatsimonsguy/netro-controller/internal/history"
	"github.com/thatsimonsguy/netro-controller/internal/model"
	"github.com/thatsimonsguy/netro-controller/internal/netro"
	"github.com/thatsimonsguy/netro-controller/internal/runner"
)

type Server struct {
	controllers map[string]*coordinator.ControllerCoordinator
	sensors     map[string]*coordinator.SensorCoordinator
	runner      *runner.Runner
	hist        *history.History
}

type ControllerResponse struct {
	Serial         string    `json:"serial"`
	Name           string    `json:"name"`
	Model          string    `json:"model"`
	Status         string    `json:"status"`
	Enabled        bool      `json:"enabled"`
	Watering       bool      `json:"watering"`
	ZoneNum        int       `json:"zone_num"`
	BatteryLevel   *float64  `json:"battery_level,omitempty"`
	TokenRemaining *int      `json:"token_remaining,omitempty"`
	SlowdownFactor int       `json:"slowdown_factor"`
	Healthy        bool      `json:"healthy"`
	Zones          []ZoneDTO `json:"zones"`
}

type ZoneDTO struct {
	Ith             int              `json:"ith"`
	Name            string           `json:"name"`
	Serial          string           `json:"serial"`
	Smart           string           `json:"smart"`
	Watering        bool             `json:"watering"`
	CurrentMoisture *float64         `json:"current_moisture,omitempty"`
	LastRun         *model.Schedule  `json:"last_run,omitempty"`
	NextRun         *model.Schedule  `json:"next_run,omitempty"`
	Moistures       []model.Moisture `json:"moistures"`
}

type SensorResponse struct {
	Serial         string     `json:"serial"`
	Name           string     `json:"name"`
	Moisture       *float64   `json:"moisture,omitempty"`
	Sunlight       *float64   `json:"sunlight,omitempty"`
	Celsius        *float64   `json:"celsius,omitempty"`
	Fahrenheit     *float64   `json:"fahrenheit,omitempty"`
	BatteryLevel   *float64   `json:"battery_level,omitempty"`
	MeasuredAt     *time.Time `json:"measured_at,omitempty"`
	TokenRemaining *int       `json:"token_remaining,omitempty"`
	Healthy        bool       `json:"healthy"`
}

type WaterRequest struct {
	DurationMinutes int    `json:"duration_minutes"`
	DelayMinutes    int    `json:"delay_minutes"`
	StartTime       string `json:"start_time"`
}

type NoWaterRequest struct {
	Days int `json:"days"`
}

type MoistureRequest struct {
	Moisture int `json:"moisture"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func NewServer(r *runner.Runner, hist *history.History) *Server {
	return &Server{
		controllers: map[string]*coordinator.ControllerCoordinator{},
		sensors:     map[string]*coordinator.SensorCoordinator{},
		runner:      r,
		hist:        hist,
	}
}

func (s *Server) AddController(c *coordinator.ControllerCoordinator) {
	s.controllers[c.SerialNumber()] = c
}

func (s *Server) AddSensor(c *coordinator.SensorCoordinator) {
	s.sensors[c.SerialNumber()] = c
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/controllers", s.listControllers)
		r.Route("/controllers/{serial}", func(r chi.Router) {
			r.Get("/", s.getController)
			r.Get("/calendar", s.getCalendar)
			r.Get("/calendar/current", s.getCurrentEvent)
			r.Post("/enable", s.setEnabled(true))
			r.Post("/disable", s.setEnabled(false))
			r.Post("/water", s.waterController)
			r.Post("/stop-water", s.stopWater)
			r.Post("/no-water", s.noWater)
			r.Route("/zones/{ith}", func(r chi.Router) {
				r.Post("/water", s.waterZone)
				r.Post("/moisture", s.setZoneMoisture)
			})
		})
		r.Get("/sensors", s.listSensors)
		r.Get("/sensors/{serial}", s.getSensor)
		r.Post("/devices/{serial}/refresh", s.refreshDevice)
		r.Get("/devices/{serial}/history", s.deviceHistory)
	})

	return r
}

func (s *Server) Start(port int) error {
	addr := fmt.Sprintf("0.0.0.0:%d", port)
	log.Info().Str("address", addr).Msg("Starting REST API server")
	return http.ListenAndServe(addr, s.Router())
}

func (s *Server) controller(w http.ResponseWriter, r *http.Request) (*coordinator.ControllerCoordinator, bool) {
	serial := chi.URLParam(r, "serial")
	c, ok := s.controllers[serial]
	if !ok {
		s.writeError(w, http.StatusNotFound, "Controller not found")
		return nil, false
	}
	return c, true
}

func (s *Server) listControllers(w http.ResponseWriter, r *http.Request) {
	serials := make([]string, 0, len(s.controllers))
	for serial := range s.controllers {
		serials = append(serials, serial)
	}
	sort.Strings(serials)

	response := make([]ControllerResponse, 0, len(serials))
	for _, serial := range serials {
		response = append(response, s.controllerResponse(s.controllers[serial]))
	}
	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) getController(w http.ResponseWriter, r *http.Request) {
	c, ok := s.controller(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, s.controllerResponse(c))
}

func (s *Server) controllerResponse(c *coordinator.ControllerCoordinator) ControllerResponse {
	healthy, _ := s.runner.Healthy(c.SerialNumber())

	zones := c.Zones()
	dtos := make([]ZoneDTO, 0, len(zones))
	for _, z := range zones {
		dtos = append(dtos, ZoneDTO{
			Ith:             z.Ith(),
			Name:            z.Name(),
			Serial:          z.SerialNumber(),
			Smart:           z.Smart(),
			Watering:        z.Watering(),
			CurrentMoisture: z.CurrentMoisture(),
			LastRun:         z.LastRun(),
			NextRun:         z.NextRun(),
			Moistures:       z.Moistures(),
		})
	}

	return ControllerResponse{
		Serial:         c.SerialNumber(),
		Name:           c.DeviceName(),
		Model:          c.DeviceInfo().Model,
		Status:         string(c.Status()),
		Enabled:        c.Enabled(),
		Watering:       c.Watering(),
		ZoneNum:        c.ZoneNum(),
		BatteryLevel:   c.BatteryLevel(),
		TokenRemaining: c.TokenRemaining(),
		SlowdownFactor: c.SlowdownFactor(),
		Healthy:        healthy,
		Zones:          dtos,
	}
}

func (s *Server) getCalendar(w http.ResponseWriter, r *http.Request) {
	c, ok := s.controller(w, r)
	if !ok {
		return
	}

	start, err := parseTimeParam(r.URL.Query().Get("start"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid start parameter")
		return
	}
	end, err := parseTimeParam(r.URL.Query().Get("end"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid end parameter")
		return
	}

	s.writeJSON(w, http.StatusOK, c.CalendarEvents(start, end))
}

func (s *Server) getCurrentEvent(w http.ResponseWriter, r *http.Request) {
	c, ok := s.controller(w, r)
	if !ok {
		return
	}
	event := c.CurrentCalendarEvent()
	if event == nil {
		s.writeError(w, http.StatusNotFound, "No current or upcoming schedule")
		return
	}
	s.writeJSON(w, http.StatusOK, event)
}

func (s *Server) setEnabled(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := s.controller(w, r)
		if !ok {
			return
		}

		var err error
		command := "disable"
		if enabled {
			command = "enable"
			err = c.Enable(r.Context())
		} else {
			err = c.Disable(r.Context())
		}
		s.recordCommand(c.SerialNumber(), command, "", err)
		if err != nil {
			s.writeNetroError(w, err)
			return
		}
		s.refreshAndOK(w, c.SerialNumber())
	}
}

func (s *Server) waterController(w http.ResponseWriter, r *http.Request) {
	c, ok := s.controller(w, r)
	if !ok {
		return
	}
	req, startTime, ok := s.decodeWaterRequest(w, r)
	if !ok {
		return
	}

	err := c.StartWatering(r.Context(), req.DurationMinutes, req.DelayMinutes, startTime)
	s.recordCommand(c.SerialNumber(), "water", fmt.Sprintf("duration=%d delay=%d", req.DurationMinutes, req.DelayMinutes), err)
	if err != nil {
		s.writeNetroError(w, err)
		return
	}
	s.refreshAndOK(w, c.SerialNumber())
}

func (s *Server) stopWater(w http.ResponseWriter, r *http.Request) {
	c, ok := s.controller(w, r)
	if !ok {
		return
	}
	err := c.StopWatering(r.Context())
	s.recordCommand(c.SerialNumber(), "stop_water", "", err)
	if err != nil {
		s.writeNetroError(w, err)
		return
	}
	s.refreshAndOK(w, c.SerialNumber())
}

func (s *Server) noWater(w http.ResponseWriter, r *http.Request) {
	c, ok := s.controller(w, r)
	if !ok {
		return
	}
	var req NoWaterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	err := c.NoWater(r.Context(), req.Days)
	s.recordCommand(c.SerialNumber(), "no_water", fmt.Sprintf("days=%d", req.Days), err)
	if err != nil {
		s.writeNetroError(w, err)
		return
	}
	s.refreshAndOK(w, c.SerialNumber())
}

func (s *Server) zone(w http.ResponseWriter, r *http.Request) (*coordinator.ControllerCoordinator, *coordinator.Zone, bool) {
	c, ok := s.controller(w, r)
	if !ok {
		return nil, nil, false
	}
	ith, err := strconv.Atoi(chi.URLParam(r, "ith"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid zone index")
		return nil, nil, false
	}
	zone, ok := c.Zone(ith)
	if !ok {
		s.writeError(w, http.StatusNotFound, "Zone not found or not enabled")
		return nil, nil, false
	}
	return c, zone, true
}

func (s *Server) waterZone(w http.ResponseWriter, r *http.Request) {
	c, zone, ok := s.zone(w, r)
	if !ok {
		return
	}
	req, startTime, ok := s.decodeWaterRequest(w, r)
	if !ok {
		return
	}

	err := zone.StartWatering(r.Context(), req.DurationMinutes, req.DelayMinutes, startTime)
	s.recordCommand(zone.SerialNumber(), "water", fmt.Sprintf("duration=%d delay=%d", req.DurationMinutes, req.DelayMinutes), err)
	if err != nil {
		s.writeNetroError(w, err)
		return
	}
	s.refreshAndOK(w, c.SerialNumber())
}

func (s *Server) setZoneMoisture(w http.ResponseWriter, r *http.Request) {
	c, zone, ok := s.zone(w, r)
	if !ok {
		return
	}
	var req MoistureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if req.Moisture < 0 || req.Moisture > 100 {
		s.writeError(w, http.StatusBadRequest, "Moisture must be between 0 and 100")
		return
	}

	err := zone.SetMoisture(r.Context(), req.Moisture)
	s.recordCommand(zone.SerialNumber(), "set_moisture", fmt.Sprintf("moisture=%d", req.Moisture), err)
	if err != nil {
		s.writeNetroError(w, err)
		return
	}
	s.refreshAndOK(w, c.SerialNumber())
}

func (s *Server) listSensors(w http.ResponseWriter, r *http.Request) {
	serials := make([]string, 0, len(s.sensors))
	for serial := range s.sensors {
		serials = append(serials, serial)
	}
	sort.Strings(serials)

	response := make([]SensorResponse, 0, len(serials))
	for _, serial := range serials {
		response = append(response, s.sensorResponse(s.sensors[serial]))
	}
	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) getSensor(w http.ResponseWriter, r *http.Request) {
	sensor, ok := s.sensors[chi.URLParam(r, "serial")]
	if !ok {
		s.writeError(w, http.StatusNotFound, "Sensor not found")
		return
	}
	s.writeJSON(w, http.StatusOK, s.sensorResponse(sensor))
}

func (s *Server) sensorResponse(c *coordinator.SensorCoordinator) SensorResponse {
	healthy, _ := s.runner.Healthy(c.SerialNumber())
	return SensorResponse{
		Serial:         c.SerialNumber(),
		Name:           c.DeviceName(),
		Moisture:       c.Moisture(),
		Sunlight:       c.Sunlight(),
		Celsius:        c.Celsius(),
		Fahrenheit:     c.Fahrenheit(),
		BatteryLevel:   c.BatteryLevel(),
		MeasuredAt:     c.MeasuredAt(),
		TokenRemaining: c.TokenRemaining(),
		Healthy:        healthy,
	}
}

func (s *Server) refreshDevice(w http.ResponseWriter, r *http.Request) {
	serial := chi.URLParam(r, "serial")
	if !s.runner.Refresh(serial) {
		s.writeError(w, http.StatusNotFound, "Device not found")
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "refresh requested"})
}

func (s *Server) deviceHistory(w http.ResponseWriter, r *http.Request) {
	serial := chi.URLParam(r, "serial")
	if _, isController := s.controllers[serial]; !isController {
		if _, isSensor := s.sensors[serial]; !isSensor {
			s.writeError(w, http.StatusNotFound, "Device not found")
			return
		}
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := s.hist.RecentPolls(serial, limit)
	if err != nil {
		log.Error().Err(err).Str("serial", serial).Msg("Failed to read poll history")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []history.PollRecord{}
	}
	s.writeJSON(w, http.StatusOK, records)
}

func (s *Server) decodeWaterRequest(w http.ResponseWriter, r *http.Request) (WaterRequest, *time.Time, bool) {
	var req WaterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return req, nil, false
	}
	if req.DurationMinutes <= 0 {
		req.DurationMinutes = 30
	}

	var startTime *time.Time
	if req.StartTime != "" {
		t, err := time.Parse(time.RFC3339, req.StartTime)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "Invalid start_time, expected RFC 3339")
			return req, nil, false
		}
		startTime = &t
	}
	return req, startTime, true
}

// refreshAndOK queues a poll so state catches up with the command just sent.
func (s *Server) refreshAndOK(w http.ResponseWriter, serial string) {
	s.runner.Refresh(serial)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) recordCommand(serial, command, detail string, err error) {
	if s.hist == nil {
		return
	}
	if recErr := s.hist.RecordCommand(serial, command, detail, err == nil); recErr != nil {
		log.Warn().Err(recErr).Str("serial", serial).Msg("Failed to record command history")
	}
}

// writeNetroError maps the NPA error taxonomy onto HTTP statuses: bad key
// 401, quota 429, unknown device 404, bad parameters 400, everything else a
// gateway failure.
func (s *Server) writeNetroError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	switch {
	case netro.IsInvalidKey(err):
		status = http.StatusUnauthorized
	case netro.IsExceedLimit(err):
		status = http.StatusTooManyRequests
	case netro.IsInvalidDevice(err):
		status = http.StatusNotFound
	case netro.IsParameterError(err):
		status = http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	s.writeError(w, status, err.Error())
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}

func parseTimeParam(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
