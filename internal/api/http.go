package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	app "asset-scan/internal/application"
	"asset-scan/internal/domain/entity"
	"asset-scan/internal/scanner"
)

// maxFrameBytes предельный размер загружаемого кадра
const maxFrameBytes = 10 << 20

// HTTPServer HTTP API над теми же сервисами, что и бот
type HTTPServer struct {
	sessions *app.SessionService
	scanning *app.ScanningService
	log      logrus.FieldLogger
	router   *mux.Router
}

// NewHTTPServer создаёт сервер и регистрирует маршруты
func NewHTTPServer(sessions *app.SessionService, scanning *app.ScanningService, log logrus.FieldLogger) *HTTPServer {
	s := &HTTPServer{sessions: sessions, scanning: scanning, log: log}
	s.router = s.newRouter()
	return s
}

func (s *HTTPServer) newRouter() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	sr := r.PathPrefix("/sessions/{owner:[0-9]+}").Subrouter()
	sr.HandleFunc("", s.getSession).Methods("GET")
	sr.HandleFunc("", s.resetSession).Methods("DELETE")
	sr.HandleFunc("/location", s.selectLocation).Methods("POST")
	sr.HandleFunc("/status", s.selectStatus).Methods("POST")
	sr.HandleFunc("/scan", s.startScan).Methods("POST")
	sr.HandleFunc("/frames", s.pushFrame).Methods("POST")
	sr.HandleFunc("/items", s.clearItems).Methods("DELETE")
	sr.HandleFunc("/items/{code}", s.removeItem).Methods("DELETE")
	sr.HandleFunc("/pending/{code}", s.confirm).Methods("POST")
	sr.HandleFunc("/pending/{code}", s.reject).Methods("DELETE")
	sr.HandleFunc("/submit", s.submit).Methods("POST")
	sr.HandleFunc("/backend", s.backend).Methods("GET")
	return r
}

// Handler возвращает корневой обработчик
func (s *HTTPServer) Handler() http.Handler { return s.router }

// Run обслуживает запросы до отмены ctx
func (s *HTTPServer) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.WithField("addr", addr).Info("http api is listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *HTTPServer) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start),
		}).Debug("http request")
	})
}

func (s *HTTPServer) getSession(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	view, err := s.sessions.View(r.Context(), owner)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) resetSession(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(ctx context.Context, owner int64) error {
		_, err := s.sessions.Reset(ctx, owner)
		return err
	})
}

type locationRequest struct {
	LocationID string `json:"location_id"`
}

func (s *HTTPServer) selectLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	s.mutate(w, r, func(ctx context.Context, owner int64) error {
		_, err := s.sessions.SelectLocation(ctx, owner, req.LocationID)
		return err
	})
}

type statusRequest struct {
	Status string `json:"status"`
}

func (s *HTTPServer) selectStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	status, _ := entity.ParseStatusTarget(req.Status)
	s.mutate(w, r, func(ctx context.Context, owner int64) error {
		_, err := s.sessions.SelectStatus(ctx, owner, status)
		return err
	})
}

func (s *HTTPServer) startScan(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(ctx context.Context, owner int64) error {
		_, err := s.sessions.StartScan(ctx, owner)
		return err
	})
}

func (s *HTTPServer) pushFrame(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxFrameBytes))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	if err := s.scanning.PushFrame(r.Context(), owner, data); err != nil {
		if errors.Is(err, app.ErrNotScanning) || errors.Is(err, app.ErrFeedInactive) {
			s.fail(w, err)
			return
		}
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *HTTPServer) clearItems(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(ctx context.Context, owner int64) error {
		_, err := s.sessions.Clear(ctx, owner)
		return err
	})
}

func (s *HTTPServer) removeItem(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	s.mutate(w, r, func(ctx context.Context, owner int64) error {
		_, err := s.sessions.RemoveItem(ctx, owner, code)
		return err
	})
}

func (s *HTTPServer) confirm(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	s.mutate(w, r, func(ctx context.Context, owner int64) error {
		_, err := s.sessions.Confirm(ctx, owner, code)
		return err
	})
}

func (s *HTTPServer) reject(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	s.mutate(w, r, func(ctx context.Context, owner int64) error {
		_, err := s.sessions.Reject(ctx, owner, code)
		return err
	})
}

func (s *HTTPServer) submit(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	summary, err := s.sessions.Submit(r.Context(), owner)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type backendResponse struct {
	Active bool                 `json:"active"`
	Status entity.BackendStatus `json:"status,omitempty"`
	Kind   entity.BackendKind   `json:"kind,omitempty"`
	Reason string               `json:"reason,omitempty"`
	Stats  *scanner.Stats       `json:"stats,omitempty"`
}

func (s *HTTPServer) backend(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	resp := backendResponse{}
	if st, ok := s.scanning.State(owner); ok {
		resp.Active = true
		resp.Status, resp.Kind, resp.Reason = st.Status, st.Kind, st.Reason
		if stats, ok := s.scanning.Stats(owner); ok {
			resp.Stats = &stats
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// mutate выполняет изменение и отвечает актуальным снимком сессии
func (s *HTTPServer) mutate(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, owner int64) error) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	if err := fn(r.Context(), owner); err != nil {
		s.fail(w, err)
		return
	}
	view, err := s.sessions.View(r.Context(), owner)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) fail(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, app.ErrLocationRequired),
		errors.Is(err, app.ErrStatusRequired),
		errors.Is(err, app.ErrStepLocked),
		errors.Is(err, app.ErrNotScanning),
		errors.Is(err, app.ErrFeedInactive):
		code = http.StatusConflict
	case errors.Is(err, app.ErrItemNotFound),
		errors.Is(err, app.ErrNoPendingConfirmation):
		code = http.StatusNotFound
	default:
		s.log.WithError(err).Error("http request failed")
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func ownerID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["owner"], 10, 64)
	if err != nil {
		http.Error(w, "invalid owner id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
