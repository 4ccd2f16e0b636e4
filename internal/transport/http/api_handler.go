package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"contest-grading-service/internal/app"
	"contest-grading-service/internal/domain"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

type APIHandler struct {
	service  *app.GradingService
	validate *validator.Validate
}

func NewAPIHandler(service *app.GradingService) *APIHandler {
	return &APIHandler{service: service, validate: validator.New()}
}

// Register mounts the JSON API on mux.
func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /contests/{contestID}/submissions", h.submit)
	mux.HandleFunc("GET /contests/{contestID}/results/{userID}", h.resultDetail)
	mux.HandleFunc("GET /contests/{contestID}/leaderboard", h.leaderboard)
	mux.HandleFunc("PATCH /submissions/{submissionID}/grade", h.regrade)
	mux.HandleFunc("PATCH /results/{resultID}/review", h.review)
}

type regradeRequest struct {
	Score   *int   `json:"score" validate:"required,gte=0"`
	Comment string `json:"comment" validate:"max=2000"`
	FlagAI  *bool  `json:"flagAi"`
}

type reviewRequest struct {
	Status  *string `json:"status" validate:"omitempty,oneof=active blocked pending under-review checked"`
	Visible *bool   `json:"visible"`
}

type errorBody struct {
	Error             string     `json:"error"`
	Reason            string     `json:"reason,omitempty"`
	Fields            []string   `json:"fields,omitempty"`
	CanResubmit       *bool      `json:"canResubmit,omitempty"`
	ExistingScore     *int       `json:"existingScore,omitempty"`
	NextAvailableDate *time.Time `json:"nextAvailableDate,omitempty"`
}

func (h *APIHandler) submit(w http.ResponseWriter, r *http.Request) {
	who := domain.Submitter{
		UserID:      strings.TrimSpace(r.Header.Get("X-User-ID")),
		DisplayName: strings.TrimSpace(r.Header.Get("X-User-Name")),
	}
	if who.UserID == "" {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing X-User-ID"})
		return
	}
	var payload domain.SubmitPayload
	if !decodeBody(w, r, &payload) {
		return
	}

	outcome, err := h.service.Submit(r.Context(), who, r.PathValue("contestID"), payload)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, outcome)
}

func (h *APIHandler) resultDetail(w http.ResponseWriter, r *http.Request) {
	viewer, ok := viewerFrom(w, r)
	if !ok {
		return
	}
	detail, err := h.service.ResultDetail(r.Context(), viewer, r.PathValue("contestID"), r.PathValue("userID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *APIHandler) leaderboard(w http.ResponseWriter, r *http.Request) {
	lb, err := h.service.Leaderboard(r.Context(), r.PathValue("contestID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

func (h *APIHandler) regrade(w http.ResponseWriter, r *http.Request) {
	viewer, ok := viewerFrom(w, r)
	if !ok {
		return
	}
	var req regradeRequest
	if !decodeBody(w, r, &req) || !h.valid(w, req) {
		return
	}

	result, err := h.service.Regrade(r.Context(), viewer, r.PathValue("submissionID"), domain.RegradeInput{
		Score:   *req.Score,
		Comment: req.Comment,
		FlagAI:  req.FlagAI,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *APIHandler) review(w http.ResponseWriter, r *http.Request) {
	viewer, ok := viewerFrom(w, r)
	if !ok {
		return
	}
	var req reviewRequest
	if !decodeBody(w, r, &req) || !h.valid(w, req) {
		return
	}

	in := domain.ReviewInput{Visible: req.Visible}
	if req.Status != nil {
		status, err := domain.ParseResultStatus(*req.Status)
		if err != nil {
			writeError(w, r, err)
			return
		}
		in.Status = &status
	}
	result, err := h.service.ReviewResult(r.Context(), viewer, r.PathValue("resultID"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *APIHandler) valid(w http.ResponseWriter, req any) bool {
	err := h.validate.Struct(req)
	if err == nil {
		return true
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		fields := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields = append(fields, jsonName(fe.Field()))
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body", Fields: fields})
		return false
	}
	writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	return false
}

func viewerFrom(w http.ResponseWriter, r *http.Request) (domain.Viewer, bool) {
	viewer := domain.Viewer{
		UserID: strings.TrimSpace(r.Header.Get("X-User-ID")),
		Role:   domain.Role(strings.ToLower(strings.TrimSpace(r.Header.Get("X-User-Role")))),
	}
	if viewer.UserID == "" {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing X-User-ID"})
		return domain.Viewer{}, false
	}
	if viewer.Role == "" {
		viewer.Role = domain.RoleCompetitor
	}
	return viewer, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return false
	}
	return true
}

// writeError maps the domain error taxonomy onto status codes. Internal
// failures are logged in full and reported opaquely.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		policy     *domain.PolicyError
		validation *domain.ValidationError
		internal   *domain.InternalError
	)
	switch {
	case errors.As(err, &policy):
		canResubmit := policy.CanResubmit
		writeJSON(w, http.StatusConflict, errorBody{
			Error:             policy.Message,
			Reason:            string(policy.Reason),
			CanResubmit:       &canResubmit,
			ExistingScore:     policy.ExistingScore,
			NextAvailableDate: policy.NextAvailableDate,
		})
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: validation.Message, Fields: validation.Fields})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrConflict):
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrStorageUnavailable):
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		w.Header().Set("Retry-After", "5")
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "storage temporarily unavailable"})
	case errors.As(err, &internal):
		log.Printf("%s %s: %s", r.Method, r.URL.Path, internal.Detail())
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	default:
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("write response: %v", err)
	}
}

func jsonName(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}
