package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"slotnik/internal/config"
	"slotnik/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// AvailabilityProvider отдает свободные слоты на день.
type AvailabilityProvider interface {
	AvailableSlots(ctx context.Context, day time.Time) ([]int64, error)
}

// UserDirectory отдает список профилей для админских ключей.
type UserDirectory interface {
	ListUsers(ctx context.Context) ([]*models.UserProfile, error)
}

// HTTPServer exposes a small read-only HTTP API: slot availability and the
// user directory. Booking mutations are not served over the network.
type HTTPServer struct {
	cfg          config.APIConfig
	availability AvailabilityProvider
	users        UserDirectory
	location     *time.Location
	logger       *zerolog.Logger
	server       *http.Server
	auth         *httpAuth
}

func NewHTTPServer(cfg config.APIConfig, availability AvailabilityProvider, users UserDirectory, loc *time.Location, logger *zerolog.Logger) *HTTPServer {
	if loc == nil {
		loc = time.Local
	}

	srv := &HTTPServer{
		cfg:          cfg,
		availability: availability,
		users:        users,
		location:     loc,
		logger:       logger,
		auth:         newHTTPAuth(cfg),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/availability/bulk", srv.handleAvailabilityBulk)
	mux.HandleFunc("/api/v1/availability/", srv.handleAvailability)
	mux.HandleFunc("/api/v1/users", srv.handleUsers)

	handler := srv.loggingMiddleware(srv.auth.wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	const prefix = "/api/v1/availability/"
	dateStr := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, prefix))
	if dateStr == "" || strings.Contains(dateStr, "/") {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}

	day, err := time.ParseInLocation("2006-01-02", dateStr, s.location)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	slots, err := s.availability.AvailableSlots(r.Context(), day)
	if err != nil {
		s.logger.Error().Err(err).Str("date", dateStr).Msg("availability query failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, availabilityResponse(dateStr, slots, s.location))
}

func (s *HTTPServer) handleAvailabilityBulk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	type request struct {
		Dates []string `json:"dates"`
	}

	var body request
	if r.Method == http.MethodGet {
		body.Dates = splitCSV(r.URL.Query().Get("dates"))
	} else {
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	if len(body.Dates) == 0 {
		writeError(w, http.StatusBadRequest, "dates is required")
		return
	}

	results := make([]map[string]any, 0, len(body.Dates))
	for _, rawDate := range body.Dates {
		dateStr := strings.TrimSpace(rawDate)
		if dateStr == "" {
			continue
		}
		day, err := time.ParseInLocation("2006-01-02", dateStr, s.location)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid date format: %s", dateStr))
			return
		}

		slots, err := s.availability.AvailableSlots(r.Context(), day)
		if err != nil {
			s.logger.Error().Err(err).Str("date", dateStr).Msg("availability query failed")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		results = append(results, availabilityResponse(dateStr, slots, s.location))
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func availabilityResponse(dateStr string, slots []int64, loc *time.Location) map[string]any {
	times := make([]string, 0, len(slots))
	for _, slot := range slots {
		times = append(times, time.UnixMilli(slot).In(loc).Format("15:04"))
	}
	return map[string]any{
		"date":       dateStr,
		"time_slots": slots,
		"times":      times,
	}
}

func (s *HTTPServer) handleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	profiles, err := s.users.ListUsers(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("user listing failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	type userRow struct {
		UID           string     `json:"uid"`
		DisplayName   string     `json:"display_name"`
		Role          string     `json:"role"`
		IsBlocked     bool       `json:"is_blocked"`
		TotalBookings int64      `json:"total_bookings"`
		LastBookingAt *time.Time `json:"last_booking_at,omitempty"`
	}

	rows := make([]userRow, 0, len(profiles))
	for _, p := range profiles {
		rows = append(rows, userRow{
			UID:           p.UID,
			DisplayName:   p.DisplayName,
			Role:          p.Role,
			IsBlocked:     p.IsBlocked,
			TotalBookings: p.TotalBookings,
			LastBookingAt: p.LastBookingAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"users": rows})
}

// httpAuth provides API-key auth and per-key rate limiting.
type httpAuth struct {
	cfg      config.APIConfig
	clients  map[string]config.APIClientKey
	limiters sync.Map // map[string]*rate.Limiter
}

func newHTTPAuth(cfg config.APIConfig) *httpAuth {
	m := make(map[string]config.APIClientKey, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		m[k.Key] = k
	}
	return &httpAuth{cfg: cfg, clients: m}
}

var errPermissionDenied = fmt.Errorf("permission denied")

func (a *httpAuth) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.cfg.Auth.Enabled {
			if err := a.checkAuth(r); err != nil {
				statusCode := http.StatusUnauthorized
				if err == errPermissionDenied {
					statusCode = http.StatusForbidden
				}
				writeError(w, statusCode, err.Error())
				return
			}
		}

		if err := a.checkRateLimit(r); err != nil {
			writeError(w, http.StatusTooManyRequests, err.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (a *httpAuth) headerName() string {
	h := strings.TrimSpace(strings.ToLower(a.cfg.Auth.HeaderAPIKey))
	if h == "" {
		h = "x-api-key"
	}
	return h
}

func (a *httpAuth) checkAuth(r *http.Request) error {
	apiKey := strings.TrimSpace(r.Header.Get(a.headerName()))
	if apiKey == "" {
		return fmt.Errorf("missing api key header")
	}

	client, ok := a.clients[apiKey]
	if !ok || subtle.ConstantTimeCompare([]byte(client.Key), []byte(apiKey)) != 1 {
		return fmt.Errorf("invalid api key")
	}

	return a.checkPermissions(client, r)
}

func (a *httpAuth) checkPermissions(client config.APIClientKey, r *http.Request) error {
	required := requiredPermission(r)
	if required == "" {
		return nil
	}
	// Ключ без явного списка разрешений видит все
	if len(client.Permissions) == 0 {
		return nil
	}
	for _, p := range client.Permissions {
		if strings.TrimSpace(p) == required {
			return nil
		}
	}
	return errPermissionDenied
}

func requiredPermission(r *http.Request) string {
	path := r.URL.Path
	if strings.HasPrefix(path, "/api/v1/availability") {
		return "read:availability"
	}
	if path == "/api/v1/users" {
		return "read:users"
	}
	return ""
}

func (a *httpAuth) checkRateLimit(r *http.Request) error {
	if a.cfg.RateLimit.RPS <= 0 {
		return nil
	}

	lim := a.getLimiter(a.clientKey(r))
	if !lim.Allow() {
		return fmt.Errorf("rate limit exceeded")
	}
	return nil
}

func (a *httpAuth) clientKey(r *http.Request) string {
	if apiKey := strings.TrimSpace(r.Header.Get(a.headerName())); apiKey != "" {
		return apiKey
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return "unknown"
}

func (a *httpAuth) getLimiter(key string) *rate.Limiter {
	if v, ok := a.limiters.Load(key); ok {
		return v.(*rate.Limiter)
	}

	burst := a.cfg.RateLimit.Burst
	if burst <= 0 {
		burst = 5
	}

	lim := rate.NewLimiter(rate.Limit(a.cfg.RateLimit.RPS), burst)
	actual, loaded := a.limiters.LoadOrStore(key, lim)
	if loaded {
		return actual.(*rate.Limiter)
	}
	return lim
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
