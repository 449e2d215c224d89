package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lox/firecast/internal/hfi"
	"github.com/lox/firecast/internal/ingest"
	"github.com/lox/firecast/internal/models"
	"github.com/lox/firecast/internal/morecast"
	"github.com/lox/firecast/internal/store"
	"github.com/lox/firecast/internal/wxapi"
)

// Upstream is the subset of the fire weather API the server calls.
// *wxapi.Client implements it.
type Upstream interface {
	ingest.Source
	FuelTypes(ctx context.Context) ([]models.FuelType, error)
	Dailies(ctx context.Context, codes []int, start, end time.Time) ([]models.StationDaily, error)
	LoadHFIResult(ctx context.Context, centreID int) (*hfi.Result, error)
	HFIResult(ctx context.Context, centreID int, start, end string) (*hfi.Result, error)
	SetStationSelected(ctx context.Context, centreID int, start, end string, areaID, code int, selected bool) (*hfi.Result, error)
	SetFuelType(ctx context.Context, centreID int, start, end string, areaID, code, fuelTypeID int) (*hfi.Result, error)
	SetFireStarts(ctx context.Context, centreID int, start, end string, areaID int, prepDay string, rangeID int) (*hfi.Result, error)
	WeatherIndeterminates(ctx context.Context, from, to time.Time, codes []int) (models.WeatherIndeterminates, error)
	SimulateIndices(ctx context.Context, records []models.WeatherIndeterminate) ([]models.WeatherIndeterminate, error)
	PDF(ctx context.Context, centreID int, start, end string) (*wxapi.PDF, error)
}

type Options struct {
	Addr        string
	Location    *time.Location
	Clock       clockwork.Clock
	IncludeBias bool
	// ForecastDays is the default length of the grid when no end date is given.
	ForecastDays int
}

type Server struct {
	store    *store.Store
	upstream Upstream
	dir      *ingest.Directory
	addr     string
	loc      *time.Location
	clock    clockwork.Clock

	includeBias  bool
	forecastDays int

	morecast *morecast.State
	hfi      *hfi.State
}

func NewServer(st *store.Store, upstream Upstream, dir *ingest.Directory, opts Options) *Server {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.ForecastDays <= 0 {
		opts.ForecastDays = 5
	}
	return &Server{
		store:        st,
		upstream:     upstream,
		dir:          dir,
		addr:         opts.Addr,
		loc:          opts.Location,
		clock:        opts.Clock,
		includeBias:  opts.IncludeBias,
		forecastDays: opts.ForecastDays,
		morecast:     morecast.NewState(opts.Location),
		hfi:          hfi.NewState(),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/fire-centres", s.handleFireCentres)
	mux.HandleFunc("GET /api/stations", s.handleStations)
	mux.HandleFunc("GET /api/fuel-types", s.handleFuelTypes)

	mux.HandleFunc("GET /api/morecast", s.handleMorecastFetch)
	mux.HandleFunc("GET /api/morecast/rows", s.handleMorecastRows)
	mux.HandleFunc("POST /api/morecast/rows", s.handleMorecastEdit)
	mux.HandleFunc("GET /api/morecast/export.xlsx", s.handleMorecastExport)

	mux.HandleFunc("GET /api/hfi/{centre}", s.handleHFILoad)
	mux.HandleFunc("GET /api/hfi/{centre}/{start}/{end}", s.handleHFIRange)
	mux.HandleFunc("GET /api/hfi/{centre}/{start}/{end}/pdf", s.handleHFIPDF)
	mux.HandleFunc("GET /api/hfi/{centre}/{start}/{end}/dailies", s.handleHFIDailies)
	mux.HandleFunc("GET /api/hfi/{centre}/stations/{code}/dailies", s.handleHFIStationDailies)
	mux.HandleFunc("POST /api/hfi/{centre}/prep-date", s.handleHFIPrepDate)
	mux.HandleFunc("POST /api/hfi/{centre}/prep-days", s.handleHFIPrepDays)
	mux.HandleFunc("POST /api/hfi/{centre}/fire-starts", s.handleHFIFireStarts)
	mux.HandleFunc("POST /api/hfi/{centre}/stations/{code}/selected/{selected}", s.handleHFIStationSelected)
	mux.HandleFunc("POST /api/hfi/{centre}/stations/{code}/fuel-type/{fuel}", s.handleHFIFuelType)

	mux.HandleFunc("GET /api/preferences/fire-centre", s.handleGetFireCentrePref)
	mux.HandleFunc("PUT /api/preferences/fire-centre", s.handlePutFireCentrePref)
	mux.HandleFunc("GET /api/preferences/columns", s.handleGetColumnsPref)
	mux.HandleFunc("PUT /api/preferences/columns", s.handlePutColumnsPref)
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

type HealthStatus struct {
	Status    string                     `json:"status"`
	Fetches   []store.FetchHealthSummary `json:"fetches"`
	Errors    []FetchError               `json:"recent_errors,omitempty"`
	Grid      GridHealth                 `json:"grid"`
	Directory time.Time                  `json:"directory_refreshed_at"`
}

type FetchError struct {
	Endpoint   string    `json:"endpoint"`
	StartedAt  time.Time `json:"started_at"`
	HTTPStatus int64     `json:"http_status,omitempty"`
	Message    string    `json:"message"`
}

type GridHealth struct {
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
	Rows    int    `json:"rows"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.store.Ping(); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
		return
	}

	health := HealthStatus{Status: "ok"}

	fetches, err := s.store.FetchHealth(1)
	if err != nil {
		log.Printf("health: fetch health: %v", err)
	}
	health.Fetches = fetches
	for _, f := range fetches {
		if f.FailedRuns > 0 && f.SuccessRuns == 0 {
			health.Status = "degraded"
		}
	}

	recent, err := s.store.RecentFetchErrors(5)
	if err != nil {
		log.Printf("health: recent errors: %v", err)
	}
	for _, run := range recent {
		health.Errors = append(health.Errors, FetchError{
			Endpoint:   run.Endpoint,
			StartedAt:  run.StartedAt,
			HTTPStatus: run.HTTPStatus.Int64,
			Message:    run.ErrorMessage.String,
		})
	}

	snap := s.morecast.Snapshot()
	health.Grid = GridHealth{Loading: snap.Loading, Error: snap.Error, Rows: len(snap.Rows)}
	if s.dir != nil {
		health.Directory = s.dir.RefreshedAt()
	}

	if health.Status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(health); err != nil {
		log.Printf("health: write response: %v", err)
	}
}

func (s *Server) handleFireCentres(w http.ResponseWriter, r *http.Request) {
	centres, err := s.dir.FireCentres(r.Context())
	if err != nil {
		writeUpstreamError(w, "fire centres", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"fire_centres": centres})
}

func (s *Server) handleStations(w http.ResponseWriter, r *http.Request) {
	stations, err := s.dir.Stations(r.Context())
	if err != nil {
		writeUpstreamError(w, "stations", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stations": stations})
}

func (s *Server) handleFuelTypes(w http.ResponseWriter, r *http.Request) {
	fuels, err := s.upstream.FuelTypes(r.Context())
	if err != nil {
		writeUpstreamError(w, "fuel types", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"fuel_types": fuels})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeUpstreamError reports a failed fire weather API call. Missing
// resources upstream are passed through as 404s.
func writeUpstreamError(w http.ResponseWriter, what string, err error) {
	log.Printf("api: %s: %v", what, err)
	if wxapi.IsStatus(err, http.StatusNotFound) || errors.Is(err, ingest.ErrNotFound) {
		writeError(w, http.StatusNotFound, what+": not found")
		return
	}
	writeError(w, http.StatusBadGateway, what+": "+err.Error())
}
