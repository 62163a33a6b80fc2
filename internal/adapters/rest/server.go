// Package rest serves the wizards, branch eligibility and deadline extension
// as JSON over HTTP.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/inforequest/inforequest/internal/ports"
	"github.com/inforequest/inforequest/internal/service"
	"github.com/inforequest/inforequest/internal/wizard"
	"go.uber.org/zap"
)

const (
	OwnerHeader     = "X-Owner"
	RequestIDHeader = "X-Request-ID"
)

type ctxKey int

const (
	ownerKey ctxKey = iota
	requestIDKey
)

type Server struct {
	http.Server
	svc *service.WizardService
	log *zap.Logger
}

func NewServer(addr string, svc *service.WizardService, log *zap.Logger) *Server {
	s := &Server{
		Server: http.Server{Addr: addr},
		svc:    svc,
		log:    log,
	}

	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := router.PathPrefix("/inforequests/{inforequest:[0-9]+}").Subrouter()
	api.Use(s.requireOwner)
	api.HandleFunc("/obligee-action", s.handleObligeeAction).Methods(http.MethodGet)
	api.HandleFunc("/obligee-action", s.handleAbandonObligeeAction).Methods(http.MethodDelete)
	api.HandleFunc("/obligee-action/{step}", s.handleObligeeAction).Methods(http.MethodGet, http.MethodPost)
	api.HandleFunc("/branches/{branch:[0-9]+}/clarification-response", s.handleClarificationResponse).Methods(http.MethodGet)
	api.HandleFunc("/branches/{branch:[0-9]+}/clarification-response", s.handleAbandonClarificationResponse).Methods(http.MethodDelete)
	api.HandleFunc("/branches/{branch:[0-9]+}/clarification-response/{step}", s.handleClarificationResponse).Methods(http.MethodGet, http.MethodPost)
	api.HandleFunc("/branches/{branch:[0-9]+}/appeal", s.handleAppeal).Methods(http.MethodGet)
	api.HandleFunc("/branches/{branch:[0-9]+}/appeal", s.handleAbandonAppeal).Methods(http.MethodDelete)
	api.HandleFunc("/branches/{branch:[0-9]+}/appeal/{step}", s.handleAppeal).Methods(http.MethodGet, http.MethodPost)
	api.HandleFunc("/branches/{branch:[0-9]+}/eligibility", s.handleEligibility).Methods(http.MethodGet)
	api.HandleFunc("/branches/{branch:[0-9]+}/actions/{action:[0-9]+}/extend-deadline", s.handleExtendDeadline).Methods(http.MethodPost)

	router.Use(s.loggingMiddleware)
	s.Handler = router
	return s
}

func (s *Server) Start() error {
	s.log.Info("starting http server", zap.String("addr", s.Addr))
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop() error {
	s.log.Info("stopping http server")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", id),
			zap.String("owner", r.Header.Get(OwnerHeader)),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}

func (s *Server) requireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := r.Header.Get(OwnerHeader)
		if owner == "" {
			respondWithError(w, http.StatusUnauthorized, "missing "+OwnerHeader+" header")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerKey, owner)))
	})
}

func owner(r *http.Request) string {
	o, _ := r.Context().Value(ownerKey).(string)
	return o
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func pathID(r *http.Request, name string) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	return id
}

func (s *Server) handleObligeeAction(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "inforequest")
	req, ok := s.stepRequest(w, r)
	if !ok {
		return
	}
	res, err := s.svc.ObligeeAction(r.Context(), req)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	s.respondWithStep(w, r, res, service.ObligeeActionPath(id))
}

func (s *Server) handleAbandonObligeeAction(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.AbandonObligeeAction(r.Context(), owner(r), pathID(r, "inforequest")); err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClarificationResponse(w http.ResponseWriter, r *http.Request) {
	id, branch := pathID(r, "inforequest"), pathID(r, "branch")
	req, ok := s.stepRequest(w, r)
	if !ok {
		return
	}
	req.BranchID = branch
	res, err := s.svc.ClarificationResponse(r.Context(), req)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	s.respondWithStep(w, r, res, service.ClarificationResponsePath(id, branch))
}

func (s *Server) handleAbandonClarificationResponse(w http.ResponseWriter, r *http.Request) {
	err := s.svc.AbandonClarificationResponse(r.Context(), owner(r), pathID(r, "inforequest"), pathID(r, "branch"))
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAppeal(w http.ResponseWriter, r *http.Request) {
	id, branch := pathID(r, "inforequest"), pathID(r, "branch")
	req, ok := s.stepRequest(w, r)
	if !ok {
		return
	}
	req.BranchID = branch
	res, err := s.svc.Appeal(r.Context(), req)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	s.respondWithStep(w, r, res, service.AppealPath(id, branch))
}

func (s *Server) handleAbandonAppeal(w http.ResponseWriter, r *http.Request) {
	err := s.svc.AbandonAppeal(r.Context(), owner(r), pathID(r, "inforequest"), pathID(r, "branch"))
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type eligibilityView struct {
	Branch         int64    `json:"branch"`
	Last           string   `json:"last_action"`
	DeadlineMissed bool     `json:"deadline_missed"`
	Eligible       []string `json:"eligible"`
}

func (s *Server) handleEligibility(w http.ResponseWriter, r *http.Request) {
	e, err := s.svc.Eligibility(r.Context(), owner(r), pathID(r, "inforequest"), pathID(r, "branch"))
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	view := eligibilityView{Branch: e.BranchID, DeadlineMissed: e.DeadlineMissed, Eligible: []string{}}
	if e.Last != 0 {
		view.Last = e.Last.String()
	}
	for _, t := range e.Eligible.Types() {
		view.Eligible = append(view.Eligible, t.String())
	}
	respondWithJSON(w, http.StatusOK, view)
}

type extendRequest struct {
	ApplicantExtension int `json:"applicant_extension"`
}

func (s *Server) handleExtendDeadline(w http.ResponseWriter, r *http.Request) {
	var body extendRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	defer r.Body.Close()

	a, err := s.svc.ExtendDeadline(r.Context(), owner(r),
		pathID(r, "inforequest"), pathID(r, "branch"), pathID(r, "action"), body.ApplicantExtension)
	var rangeErr *service.RangeError
	if errors.As(err, &rangeErr) {
		respondWithJSON(w, http.StatusBadRequest, map[string]any{
			"errors": map[string][]string{rangeErr.Field: {rangeErr.Error()}},
		})
		return
	}
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{
		"action":              a.ID,
		"applicant_extension": a.ApplicantExtension,
	})
}

// stepRequest reads the step index and, for POST, the submitted values. A
// JSON object body and an urlencoded form are both accepted.
func (s *Server) stepRequest(w http.ResponseWriter, r *http.Request) (service.StepRequest, bool) {
	req := service.StepRequest{
		Owner:         owner(r),
		InforequestID: pathID(r, "inforequest"),
		Index:         mux.Vars(r)["step"],
	}
	if r.Method != http.MethodPost {
		return req, true
	}
	data, err := decodeData(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return req, false
	}
	req.Data = data
	return req, true
}

func decodeData(r *http.Request) (map[string]any, error) {
	defer r.Body.Close()
	if isForm(r.Header.Get("Content-Type")) {
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("malformed form: %w", err)
		}
		data := make(map[string]any, len(r.PostForm))
		for k, vs := range r.PostForm {
			if len(vs) == 1 {
				data[k] = vs[0]
				continue
			}
			list := make([]any, len(vs))
			for i, v := range vs {
				list[i] = v
			}
			data[k] = list
		}
		return data, nil
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	data := map[string]any{}
	if len(body) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, errors.New("malformed request body")
	}
	return data, nil
}

func isForm(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == "application/x-www-form-urlencoded"
}

// respondWithStep redirects after corrections and accepted submissions, and
// renders the current step otherwise.
func (s *Server) respondWithStep(w http.ResponseWriter, r *http.Request, res *wizard.Result, base string) {
	switch {
	case res.State == wizard.NavigationCorrected:
		http.Redirect(w, r, service.StepURL(base, res.Current.Index), http.StatusSeeOther)
	case res.State == wizard.Finished:
		http.Redirect(w, r, res.Redirect, http.StatusSeeOther)
	case res.Committed && res.Next() != nil:
		http.Redirect(w, r, service.StepURL(base, res.Next().Index), http.StatusSeeOther)
	default:
		respondWithJSON(w, http.StatusOK, service.Render(res, base))
	}
}

func (s *Server) respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ports.ErrNotFound), errors.Is(err, service.ErrNotEligible):
		respondWithError(w, http.StatusNotFound, "not found")
	default:
		id, _ := r.Context().Value(requestIDKey).(string)
		s.log.Error("request failed", zap.String("request_id", id), zap.String("path", r.URL.Path), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "internal error")
	}
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, _ := json.Marshal(payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
