package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/35000ft/next-train-bot/internal/config"
	"github.com/35000ft/next-train-bot/internal/flights"
	"github.com/35000ft/next-train-bot/internal/radar"
	"github.com/35000ft/next-train-bot/internal/storage/sqlite"
	"github.com/35000ft/next-train-bot/internal/weather"
	"github.com/35000ft/next-train-bot/pkg/logger"
)

// Handler serves the API endpoints.
type Handler struct {
	registry    *flights.Registry
	weather     *weather.Client
	radar       *radar.Service
	preferences *sqlite.PreferenceStorage
	config      *config.Config
	logger      *logger.Logger
}

// NewHandler creates a new API handler.
func NewHandler(registry *flights.Registry, weatherClient *weather.Client, radarService *radar.Service, preferences *sqlite.PreferenceStorage, cfg *config.Config, log *logger.Logger) *Handler {
	return &Handler{
		registry:    registry,
		weather:     weatherClient,
		radar:       radarService,
		preferences: preferences,
		config:      cfg,
		logger:      log.Named("api-handler"),
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", logger.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, errorResponse{Error: msg})
}

// GetFlights answers GET /flights/{airport}: the flight board of one
// airport, filtered by the query parameters.
func (h *Handler) GetFlights(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "airport")
	fetcher, err := h.registry.Lookup(token)
	if err != nil {
		if errors.Is(err, flights.ErrUnsupportedAirport) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	form, opts, err := h.parseQuery(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := fetcher.FetchFlights(r.Context(), form, opts)
	if err != nil {
		if errors.Is(err, flights.ErrUnknownAlliance) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("flight fetch failed",
			logger.String("airport", fetcher.AirportCode()), logger.Error(err))
		h.writeError(w, http.StatusBadGateway, "flight query failed, try again later")
		return
	}

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(flights.RenderBoard(records, !opts.Arrivals)))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"airport": fetcher.AirportName(),
		"code":    fetcher.AirportCode(),
		"flights": records,
	})
}

// parseQuery builds the fetch inputs from the request. Unknown values fail
// the request here rather than deep in a fetcher.
func (h *Handler) parseQuery(r *http.Request) (flights.QueryFlightForm, flights.FetchOptions, error) {
	q := r.URL.Query()

	form := flights.QueryFlightForm{
		FlightNo: q.Get("flight_no"),
		Airlines: q.Get("airlines"),
		Airport:  q.Get("airport"),
		Alliance: q.Get("alliance"),
	}
	if models := q.Get("models"); models != "" {
		form.AircraftModels = splitList(models)
	}
	if carriers := q.Get("carriers"); carriers != "" {
		form.AirlinesCodes = splitList(carriers)
	}
	if at := q.Get("at"); at != "" {
		t, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return form, flights.FetchOptions{}, errors.New("invalid at time, want RFC3339")
		}
		form.AtTime = t
	}

	opts := flights.FetchOptions{
		Arrivals:     q.Get("arr") == "true",
		Cargo:        q.Get("cargo") == "true",
		Headless:     h.config.Fetch.Headless,
		Terminal:     q.Get("terminal"),
		MaxResult:    h.config.Fetch.MaxResult,
		MaxFetchPage: h.config.Fetch.MaxFetchPage,
	}
	if v := q.Get("from_page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return form, opts, errors.New("invalid from_page")
		}
		opts.FromPage = n
	}
	if v := q.Get("max_result"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return form, opts, errors.New("invalid max_result")
		}
		opts.MaxResult = n
	}
	return form, opts, nil
}

// GetAirports answers GET /airports: every registered airport token.
func (h *Handler) GetAirports(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"airports": h.registry.Tokens()})
}

// GetWeather answers GET /wx/{station}: the current METAR report.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	station := chi.URLParam(r, "station")
	report, err := h.weather.Report(r.Context(), station)
	if err != nil {
		if strings.Contains(err.Error(), "no such airport") {
			h.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error("weather fetch failed", logger.String("station", station), logger.Error(err))
		h.writeError(w, http.StatusBadGateway, "weather query failed, try again later")
		return
	}

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(report.String()))
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

// GetRadarImage answers GET /radar/{station}: the station's current radar
// image URL.
func (h *Handler) GetRadarImage(w http.ResponseWriter, r *http.Request) {
	station := chi.URLParam(r, "station")
	imageURL, err := h.radar.ImageURL(r.Context(), station)
	if err != nil {
		if strings.Contains(err.Error(), "no radar station") {
			h.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error("radar lookup failed", logger.String("station", station), logger.Error(err))
		h.writeError(w, http.StatusBadGateway, "radar query failed, try again later")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"station": station, "image_url": imageURL})
}

type preferenceRequest struct {
	UserID  string `json:"user_id"`
	GroupID string `json:"group_id"`
	Airport string `json:"airport"`
}

// SetPreference answers POST /preferences: save a default airport.
func (h *Handler) SetPreference(w http.ResponseWriter, r *http.Request) {
	var req preferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" && req.GroupID == "" {
		h.writeError(w, http.StatusBadRequest, "user_id or group_id required")
		return
	}
	if _, err := h.registry.Lookup(req.Airport); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.preferences.SetDefaultAirport(req.UserID, req.GroupID, req.Airport); err != nil {
		h.logger.Error("preference save failed", logger.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to save preference")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetPreference answers GET /preferences: the saved default airport for a
// user/group pair.
func (h *Handler) GetPreference(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	groupID := r.URL.Query().Get("group_id")
	airport, err := h.preferences.DefaultAirport(userID, groupID)
	if err != nil {
		h.logger.Error("preference lookup failed", logger.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to read preference")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"airport": airport})
}

// GetHealth answers GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
