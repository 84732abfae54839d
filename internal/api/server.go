// Package api serves the running simulation over HTTP.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"github.com/talgya/outbreak-sim/internal/agents"
	"github.com/talgya/outbreak-sim/internal/persistence"
	"github.com/talgya/outbreak-sim/internal/sim"
)

// Server serves simulation state over HTTP.
type Server struct {
	Sim        *sim.Simulation
	Eng        *sim.Engine
	DB         *persistence.DB // nil disables /api/v1/stats/history
	RunID      string
	Addr       string
	AdminToken string // Bearer token for POST endpoints. Empty = POST disabled.

	srv *http.Server
}

// routes builds the full handler stack: mux, CORS, gzip.
func (s *Server) routes() http.Handler {
	// The grid payload is the big one; cap per-client polling.
	gridLimiter := NewRateLimiter(60, time.Minute)

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/stats", s.handleStats)
	mux.HandleFunc("/api/v1/stats/history", s.handleStatsHistory)
	mux.HandleFunc("/api/v1/grid", RateLimitMiddleware(gridLimiter, s.handleGrid))
	mux.HandleFunc("/api/v1/units", s.handleUnits)
	mux.HandleFunc("/api/v1/events", s.handleEvents)

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("/api/v1/intervention", s.adminOnly(s.handleIntervention))

	return gzhttp.GzipHandler(corsMiddleware(mux))
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	s.srv = &http.Server{
		Addr:              s.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("HTTP API starting", "addr", s.Addr, "admin_auth", s.AdminToken != "")

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request carries the admin token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminToken
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through (for endpoints that support both).
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminToken == "" {
				http.Error(w, "admin endpoints disabled (no OUTBREAKSIM_ADMIN_TOKEN set)", http.StatusForbidden)
				return
			}

			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}

		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	type diseaseStatus struct {
		Name string `json:"name"`
		agents.Counts
	}

	tick := s.Eng.Tick()
	diseases := make([]diseaseStatus, 0, len(s.Sim.Diseases))
	for d := range s.Sim.Diseases {
		diseases = append(diseases, diseaseStatus{
			Name:   s.Sim.Diseases[d].Name,
			Counts: s.Sim.Totals(d),
		})
	}

	writeJSON(w, map[string]any{
		"run_id":         s.RunID,
		"tick":           tick,
		"sim_time":       sim.SimTime(tick),
		"speed":          s.Eng.Speed(),
		"paused":         s.Eng.Paused(),
		"running":        s.Eng.Running(),
		"population":     s.Sim.Pop.N,
		"schools_closed": s.Sim.SchoolsClosed(),
		"diseases":       diseases,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"diseases": s.Sim.Stats,
		"events":   len(s.Sim.Events),
	})
}

func (s *Server) handleStatsHistory(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	disease := 0
	if d := r.URL.Query().Get("disease"); d != "" {
		if v, err := strconv.Atoi(d); err == nil && v >= 0 && v < len(s.Sim.Diseases) {
			disease = v
		}
	}
	limit := 120
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 1000 {
			limit = v
		}
	}

	rows, err := s.DB.DayStatsHistory(s.RunID, disease, limit)
	if err != nil {
		slog.Error("stats history query failed", "error", err)
		// Return an empty array instead of an error; the table may not
		// have rows yet.
		writeJSON(w, []persistence.DayStats{})
		return
	}
	if rows == nil {
		rows = []persistence.DayStats{}
	}
	writeJSON(w, rows)
}

// handleGrid returns per-cell occupancy and infected counts for the map
// renderer. Empty cells are omitted to keep the payload small.
func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	disease := 0
	if d := r.URL.Query().Get("disease"); d != "" {
		if v, err := strconv.Atoi(d); err == nil && v >= 0 && v < len(s.Sim.Diseases) {
			disease = v
		}
	}

	type cellEntry struct {
		X         int32 `json:"x"`
		Y         int32 `json:"y"`
		Occupants int   `json:"occupants"`
		Infected  int   `json:"infected,omitempty"`
	}

	pop := s.Sim.Pop
	dom := s.Sim.Dom
	occupants := make([]int, dom.NumCells())
	infected := make([]int, dom.NumCells())
	for i := 0; i < pop.N; i++ {
		k := dom.Index(pop.Cell(i))
		occupants[k]++
		if pop.Status[disease][i] == agents.StatusInfected {
			infected[k]++
		}
	}

	var cells []cellEntry
	for k, n := range occupants {
		if n == 0 {
			continue
		}
		c := dom.AtOffset(k)
		cells = append(cells, cellEntry{X: c.X, Y: c.Y, Occupants: n, Infected: infected[k]})
	}

	writeJSON(w, map[string]any{
		"nx":      dom.NX,
		"ny":      dom.NY,
		"disease": disease,
		"cells":   cells,
	})
}

// handleUnits returns the administrative units the run is built on.
func (s *Server) handleUnits(w http.ResponseWriter, r *http.Request) {
	type unitEntry struct {
		ID             uint32 `json:"id"`
		Population     uint32 `json:"population"`
		FirstCommunity int32  `json:"first_community"`
		Communities    int    `json:"communities"`
		DaytimeWorkers uint32 `json:"daytime_workers"`
	}

	demo := s.Sim.Demo
	units := make([]unitEntry, 0, demo.NUnit)
	for u := 0; u < demo.NUnit; u++ {
		e := unitEntry{
			ID:             demo.UnitID[u],
			Population:     demo.Population[u],
			FirstCommunity: demo.Start[u],
			Communities:    demo.Communities(u),
		}
		if s.Sim.Flow != nil {
			e.DaytimeWorkers = s.Sim.Flow.Ndaywork[u]
		}
		units = append(units, e)
	}

	writeJSON(w, units)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	events := s.Sim.RecentEvents(0)

	// Optional category filter ("intervention", "epidemic").
	if category := r.URL.Query().Get("category"); category != "" {
		filtered := events[:0]
		for _, e := range events {
			if e.Category == category {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}

	if len(events) > limit {
		events = events[len(events)-limit:]
	}

	writeJSON(w, events)
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		s.Eng.SetSpeed(req.Speed)
		slog.Info("speed changed", "speed", req.Speed)
	}

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func (s *Server) handleIntervention(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Action   string  `json:"action"`
		Disease  int     `json:"disease,omitempty"`
		Fraction float64 `json:"fraction,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	var (
		desc string
		err  error
	)
	switch req.Action {
	case "close_schools":
		desc, err = s.Sim.CloseSchools()
	case "open_schools":
		desc, err = s.Sim.OpenSchools()
	case "isolate":
		desc, err = s.Sim.IsolateInfected(req.Disease, req.Fraction)
	case "release":
		desc, err = s.Sim.ReleaseIsolated()
	default:
		http.Error(w, "unknown intervention action (use: close_schools, open_schools, isolate, release)", http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, map[string]any{"success": true, "details": desc})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
