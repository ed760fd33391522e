// Package httpapi serves read-only registry queries over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/nspcc-dev/audit-registry/ledger"
	"github.com/nspcc-dev/audit-registry/registry"
	"go.uber.org/zap"
)

// Registry is a read view of the registry. Implemented by [ledger.Ledger].
type Registry interface {
	Owner() (registry.AccountID, error)
	Submissions(account registry.AccountID) ([]registry.Hash, error)
	Events(from uint64, limit int) ([]ledger.Record, error)
}

// Limits of GET /events.
const (
	DefaultEventsLimit = 100
	MaxEventsLimit     = 1000
)

// OwnerResponse is returned by GET /owner.
type OwnerResponse struct {
	Owner string `json:"owner"`
}

// SubmissionsResponse is returned by GET /accounts/{account}/submissions.
type SubmissionsResponse struct {
	Account     string   `json:"account"`
	Submissions []string `json:"submissions"`
}

// Event is an element of GET /events response.
type Event struct {
	Seq          uint64 `json:"seq"`
	Submitter    string `json:"submitter"`
	ContractHash string `json:"contractHash"`
}

// ErrorResponse is returned with any non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Handler serves registry queries.
type Handler struct {
	log *zap.Logger
	reg Registry
}

// NewHandler constructs Handler. Nil logger disables logging.
func NewHandler(reg Registry, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{log: log, reg: reg}
}

// RegisterRoutes mounts registry endpoints:
//   - GET /owner
//   - GET /accounts/{account}/submissions
//   - GET /events?from=N&limit=M
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/owner", h.HandleOwner)
	r.Get("/accounts/{account}/submissions", h.HandleSubmissions)
	r.Get("/events", h.HandleEvents)
}

// Router returns ready-to-serve handler with the registry routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)
	h.RegisterRoutes(r)
	return r
}

// HandleOwner responds with the registry owner address, or 503 if the
// registry is not constructed yet.
func (h *Handler) HandleOwner(w http.ResponseWriter, r *http.Request) {
	owner, err := h.reg.Owner()
	if err != nil {
		if errors.Is(err, registry.ErrNotConstructed) {
			h.writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		h.log.Error("failed to read owner", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, errors.New("internal error"))
		return
	}

	h.writeJSON(w, http.StatusOK, OwnerResponse{Owner: registry.AccountString(owner)})
}

// HandleSubmissions responds with the submission list of the account from
// the path. Unknown accounts have empty lists.
func (h *Handler) HandleSubmissions(w http.ResponseWriter, r *http.Request) {
	acc, err := registry.ParseAccount(chi.URLParam(r, "account"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	list, err := h.reg.Submissions(acc)
	if err != nil {
		h.log.Error("failed to read submissions", zap.Stringer("account", acc), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, errors.New("internal error"))
		return
	}

	resp := SubmissionsResponse{
		Account:     registry.AccountString(acc),
		Submissions: make([]string, len(list)),
	}
	for i := range list {
		resp.Submissions[i] = list[i].StringBE()
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// HandleEvents responds with the ContractSubmitted journal page.
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	var (
		from  uint64
		limit = DefaultEventsLimit
		err   error
	)

	if s := r.URL.Query().Get("from"); s != "" {
		from, err = strconv.ParseUint(s, 10, 64)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, errors.New("invalid 'from' parameter"))
			return
		}
	}

	if s := r.URL.Query().Get("limit"); s != "" {
		limit, err = strconv.Atoi(s)
		if err != nil || limit <= 0 {
			h.writeError(w, http.StatusBadRequest, errors.New("invalid 'limit' parameter"))
			return
		}
		if limit > MaxEventsLimit {
			limit = MaxEventsLimit
		}
	}

	recs, err := h.reg.Events(from, limit)
	if err != nil {
		h.log.Error("failed to read events", zap.Uint64("from", from), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, errors.New("internal error"))
		return
	}

	resp := make([]Event, len(recs))
	for i := range recs {
		resp[i] = Event{
			Seq:          recs[i].Seq,
			Submitter:    registry.AccountString(recs[i].Event.Submitter),
			ContractHash: recs[i].Event.ContractHash.StringBE(),
		}
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Debug("failed to write response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		h.log.Debug("request served",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// ServerPrm groups parameters of Serve.
type ServerPrm struct {
	Logger            *zap.Logger
	Listen            string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Serve runs HTTP server with the handler until the context is done, then
// shuts it down gracefully.
func Serve(ctx context.Context, h *Handler, prm ServerPrm) error {
	log := prm.Logger
	if log == nil {
		log = zap.NewNop()
	}

	srv := &http.Server{
		Addr:              prm.Listen,
		Handler:           h.Router(),
		ReadHeaderTimeout: prm.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting HTTP server", zap.String("listen", prm.Listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), prm.ShutdownTimeout)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	if err != nil {
		return err
	}

	log.Info("HTTP server gracefully stopped")

	if err = <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
