package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/ericfisherdev/assetusers/internal/application"
	"github.com/ericfisherdev/assetusers/internal/domain/model"
	"github.com/ericfisherdev/assetusers/internal/domain/port/driven"
)

// maxBodyBytes caps request bodies; private keys are the largest field.
const maxBodyBytes = 1 << 20

// AssetUserService is the application surface behind the asset-user routes.
type AssetUserService interface {
	List(ctx context.Context, criteria model.BindingCriteria) ([]application.AssetUser, error)
	Create(ctx context.Context, in application.AuthBookInput) (model.Binding, error)
	AuthInfo(ctx context.Context, username, assetID string, pref model.Preference) (application.AssetUserAuth, error)
	Export(ctx context.Context, criteria model.BindingCriteria) ([]application.AssetUserAuth, error)
}

// ConnectivityTester submits and polls connectivity jobs.
type ConnectivityTester interface {
	TestAssetUsers(ctx context.Context, username, assetID string, pref model.Preference, runAsAdmin bool) (string, error)
	Poll(ctx context.Context, jobID string) (model.Job, error)
}

// Options carries the static access settings of the API.
type Options struct {
	APIToken  string
	MFASecret string
	NeedMFA   bool

	// TestRatePerMinute limits connectivity test submissions across all
	// callers. Zero or less disables the limit.
	TestRatePerMinute int
}

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	assetUsers   AssetUserService
	connectivity ConnectivityTester
	policy       Policy
	auth         authenticator
	testLimiter  *rate.Limiter
	logger       *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	assetUsers AssetUserService,
	connectivity ConnectivityTester,
	opts Options,
	logger *slog.Logger,
) *Handler {
	var limiter *rate.Limiter
	if opts.TestRatePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.TestRatePerMinute)), opts.TestRatePerMinute)
	}

	return &Handler{
		assetUsers:   assetUsers,
		connectivity: connectivity,
		policy:       NewPolicy(opts.NeedMFA),
		auth:         authenticator{apiToken: []byte(opts.APIToken), mfaSecret: opts.MFASecret},
		testLimiter:  limiter,
		logger:       logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	h.handle(mux, "GET /api/v1/asset-users", RouteListAssetUsers, http.HandlerFunc(h.ListAssetUsers))
	h.handle(mux, "POST /api/v1/asset-users", RouteCreateAssetUser, http.HandlerFunc(h.CreateAssetUser))
	h.handle(mux, "GET /api/v1/asset-users/auth-info", RouteAuthInfo, http.HandlerFunc(h.AuthInfo))
	h.handle(mux, "GET /api/v1/asset-users/export", RouteExport, http.HandlerFunc(h.ExportAssetUsers))
	h.handle(mux, "GET /api/v1/asset-users/test-connective", RouteTestConnectivity,
		rateLimitMiddleware(h.testLimiter, http.HandlerFunc(h.TestConnectivity)))
	h.handle(mux, "GET /api/v1/tasks/{id}", RoutePollTask, http.HandlerFunc(h.PollTask))
	h.handle(mux, "GET /api/v1/health", RouteHealth, http.HandlerFunc(h.Health))
	h.handle(mux, "GET /metrics", RouteMetrics, promhttp.Handler())

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// handle registers next under pattern behind the capabilities route names in
// the policy.
func (h *Handler) handle(mux *http.ServeMux, pattern, route string, next http.Handler) {
	mux.Handle(pattern, requireCapabilities(h.auth, h.policy.Required(route), h.logger, next))
}

// ListAssetUsers returns the effective bindings matching the query filters.
func (h *Handler) ListAssetUsers(w http.ResponseWriter, r *http.Request) {
	criteria, err := parseCriteria(r.URL.Query())
	if err != nil {
		h.writeServiceError(w, err, "failed to parse filters")
		return
	}

	users, err := h.assetUsers.List(r.Context(), criteria)
	if err != nil {
		h.writeServiceError(w, err, "failed to list asset users")
		return
	}

	resp := make([]AssetUserResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, toAssetUserResponse(u.Binding, u.Connectivity))
	}

	writeJSON(w, http.StatusOK, resp)
}

// CreateAssetUser stores a new authbook version.
func (h *Handler) CreateAssetUser(w http.ResponseWriter, r *http.Request) {
	var req CreateAssetUserRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	b, err := h.assetUsers.Create(r.Context(), application.AuthBookInput{
		AssetID:    strings.TrimSpace(req.AssetID),
		Username:   req.Username,
		Password:   req.Password,
		PrivateKey: req.PrivateKey,
		Comment:    req.Comment,
	})
	if err != nil {
		h.writeServiceError(w, err, "failed to create asset user")
		return
	}

	writeJSON(w, http.StatusCreated, toAssetUserResponse(b, nil))
}

// AuthInfo resolves one binding and returns it with its secret.
func (h *Handler) AuthInfo(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pref, err := parsePreference(q)
	if err != nil {
		h.writeServiceError(w, err, "failed to parse preference")
		return
	}

	auth, err := h.assetUsers.AuthInfo(r.Context(),
		strings.TrimSpace(q.Get("username")), strings.TrimSpace(q.Get("asset_id")), pref)
	if err != nil {
		h.writeServiceError(w, err, "failed to resolve asset user")
		return
	}

	writeJSON(w, http.StatusOK, toAssetUserAuthResponse(auth))
}

// ExportAssetUsers returns the matching bindings with their secrets.
func (h *Handler) ExportAssetUsers(w http.ResponseWriter, r *http.Request) {
	criteria, err := parseCriteria(r.URL.Query())
	if err != nil {
		h.writeServiceError(w, err, "failed to parse filters")
		return
	}

	auths, err := h.assetUsers.Export(r.Context(), criteria)
	if err != nil {
		h.writeServiceError(w, err, "failed to export asset users")
		return
	}

	resp := make([]AssetUserAuthResponse, 0, len(auths))
	for _, a := range auths {
		resp = append(resp, toAssetUserAuthResponse(a))
	}

	writeJSON(w, http.StatusOK, resp)
}

// TestConnectivity submits a probe job for the bindings of one asset.
func (h *Handler) TestConnectivity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pref, err := parsePreference(q)
	if err != nil {
		h.writeServiceError(w, err, "failed to parse preference")
		return
	}
	runAsAdmin, err := parseBool(q, "run_as_admin")
	if err != nil {
		h.writeServiceError(w, err, "failed to parse run_as_admin")
		return
	}

	jobID, err := h.connectivity.TestAssetUsers(r.Context(),
		strings.TrimSpace(q.Get("username")), strings.TrimSpace(q.Get("asset_id")), pref, runAsAdmin)
	if err != nil {
		h.writeServiceError(w, err, "failed to submit connectivity test")
		return
	}

	writeJSON(w, http.StatusOK, TaskResponse{Task: jobID})
}

// PollTask returns the current state of a probe job.
func (h *Handler) PollTask(w http.ResponseWriter, r *http.Request) {
	job, err := h.connectivity.Poll(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err, "failed to poll task")
		return
	}

	writeJSON(w, http.StatusOK, toJobResponse(job))
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// writeServiceError maps application and port errors to HTTP statuses.
// Anything unrecognised is logged and reported as a 500.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error, logMsg string) {
	switch {
	case errors.Is(err, application.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, application.ErrBindingNotFound):
		writeError(w, http.StatusNotFound, "asset user not found")
	case errors.Is(err, driven.ErrAssetNotFound):
		writeError(w, http.StatusNotFound, "asset not found")
	case errors.Is(err, driven.ErrNodeNotFound):
		writeError(w, http.StatusNotFound, "node not found")
	case errors.Is(err, driven.ErrCredentialNotFound):
		writeError(w, http.StatusNotFound, "credential not found")
	case errors.Is(err, driven.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "task not found")
	case errors.Is(err, application.ErrAmbiguous):
		writeError(w, http.StatusInternalServerError, "multiple credentials share the same precedence")
	case errors.Is(err, driven.ErrEncryptionKeyNotSet):
		writeError(w, http.StatusServiceUnavailable, driven.ErrEncryptionKeyNotSet.Error())
	case errors.Is(err, driven.ErrQueueFull):
		writeError(w, http.StatusServiceUnavailable, "probe queue full")
	default:
		h.logger.Error(logMsg, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
