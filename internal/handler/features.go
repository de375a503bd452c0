package handler

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/talentgate/internal/auth"
	"github.com/DukeRupert/talentgate/internal/domain"
	"github.com/DukeRupert/talentgate/internal/service"
)

// FeatureHandler serves the metered features. Each one asks the entitlement
// gate before doing any work; a denial answers 402 with the usage that
// caused it.
//
// Routes handled:
//   - GET  /jobs                   -> ListJobs
//   - POST /jobs/{id}/apply        -> ApplyJob
//   - POST /trainings/{id}/enroll  -> Enroll
//   - POST /consultations          -> RequestConsultation
//   - POST /api/assistant          -> Ask
//   - POST /api/resume/review      -> ReviewResume
type FeatureHandler struct {
	jobs          service.JobService
	trainings     service.TrainingService
	consultations service.ConsultationService
	assistant     service.AssistantService
	resumes       service.ResumeService
	logger        *slog.Logger
}

// FeatureServices groups the services behind FeatureHandler.
type FeatureServices struct {
	Jobs          service.JobService
	Trainings     service.TrainingService
	Consultations service.ConsultationService
	Assistant     service.AssistantService
	Resumes       service.ResumeService
}

// NewFeatureHandler creates a new FeatureHandler.
func NewFeatureHandler(svc FeatureServices, logger *slog.Logger) *FeatureHandler {
	return &FeatureHandler{
		jobs:          svc.Jobs,
		trainings:     svc.Trainings,
		consultations: svc.Consultations,
		assistant:     svc.Assistant,
		resumes:       svc.Resumes,
		logger:        logger,
	}
}

// RegisterRoutes registers feature routes behind protect.
func (h *FeatureHandler) RegisterRoutes(mux *http.ServeMux, protect func(http.Handler) http.Handler) {
	mux.Handle("GET /jobs", protect(http.HandlerFunc(h.ListJobs)))
	mux.Handle("POST /jobs/{id}/apply", protect(http.HandlerFunc(h.ApplyJob)))
	mux.Handle("POST /trainings/{id}/enroll", protect(http.HandlerFunc(h.Enroll)))
	mux.Handle("POST /consultations", protect(http.HandlerFunc(h.RequestConsultation)))
	mux.Handle("POST /api/assistant", protect(http.HandlerFunc(h.Ask)))
	mux.Handle("POST /api/resume/review", protect(http.HandlerFunc(h.ReviewResume)))
}

// =============================================================================
// Jobs
// =============================================================================

// ListJobs returns the jobs visible at the caller's effective plan.
func (h *FeatureHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.jobs.List(r.Context(), auth.GetUser(r.Context()))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	views := make([]jobView, 0, len(jobs))
	for _, j := range jobs {
		views = append(views, jobView{
			ID:         j.ID,
			Title:      j.Title,
			Company:    j.Company,
			Visibility: string(j.Visibility),
			CreatedAt:  j.CreatedAt,
		})
	}
	WriteJSON(w, http.StatusOK, map[string]any{"jobs": views})
}

// ApplyJob applies to a job. Re-applying answers 200 with the existing
// application and spends nothing.
func (h *FeatureHandler) ApplyJob(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	result, err := h.jobs.Apply(r.Context(), auth.GetUser(r.Context()), id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if result.Application == nil {
		h.quotaDenied(w, r, "FeatureHandler.ApplyJob", result.Decision)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	body := map[string]any{
		"application": map[string]any{
			"id":         result.Application.ID,
			"job_id":     result.Application.JobID,
			"status":     result.Application.Status,
			"created_at": result.Application.CreatedAt,
		},
		"created": result.Created,
	}
	if result.Created {
		body["usage"] = spent(result.Decision)
	}
	WriteJSON(w, status, body)
}

// =============================================================================
// Trainings
// =============================================================================

// Enroll enrolls in a training. When payment is needed the response says so
// and the client starts an order with the training id.
func (h *FeatureHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	result, err := h.trainings.Enroll(r.Context(), auth.GetUser(r.Context()), id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	body := map[string]any{
		"training_id":      id,
		"requires_payment": result.RequiresPayment,
		"created":          result.Created,
		"free":             result.Free,
	}
	if result.Training != nil {
		body["title"] = result.Training.Title
		body["fee"] = result.Training.Fee
	}
	if result.Enrollment != nil {
		body["enrollment_id"] = result.Enrollment.ID
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	WriteJSON(w, status, body)
}

// =============================================================================
// Consultations, assistant and resume review
// =============================================================================

// RequestConsultation books a consultation. Field: topic.
func (h *FeatureHandler) RequestConsultation(w http.ResponseWriter, r *http.Request) {
	in, err := readInput(w, r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	c, err := h.consultations.Request(r.Context(), auth.GetUser(r.Context()), in.Get("topic"))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]any{
		"id":         c.ID,
		"topic":      c.Topic,
		"priority":   c.Priority,
		"status":     c.Status,
		"created_at": c.CreatedAt,
	})
}

// Ask sends a message to the AI assistant. Fields: message, page.
func (h *FeatureHandler) Ask(w http.ResponseWriter, r *http.Request) {
	in, err := readInput(w, r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	reply, err := h.assistant.Ask(r.Context(), auth.GetUser(r.Context()), trimmed(in, "page"), in.Get("message"))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"reply": reply.Reply,
		"usage": newDecisionView(reply.Decision),
	})
}

// ReviewResume reviews pasted resume text. Fields: level (basic|advanced),
// resume.
func (h *FeatureHandler) ReviewResume(w http.ResponseWriter, r *http.Request) {
	in, err := readInput(w, r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	level := domain.ResumeReviewLevel(trimmed(in, "level"))
	if level == "" {
		level = domain.ResumeReviewBasic
	}

	review, err := h.resumes.Review(r.Context(), auth.GetUser(r.Context()), level, in.Get("resume"))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]any{
		"id":         review.ID,
		"level":      review.Level,
		"experience": review.Experience,
		"feedback":   review.Feedback,
		"created_at": review.CreatedAt,
	})
}

// =============================================================================
// Helpers
// =============================================================================

// quotaDenied answers 402 with the decision that denied the action.
func (h *FeatureHandler) quotaDenied(w http.ResponseWriter, r *http.Request, op string, d domain.Decision) {
	err := domain.QuotaExceeded(op, d)
	logError(h.logger, r, err, domain.EPAYMENT, op, http.StatusPaymentRequired)

	var body struct {
		JSONError
		Usage decisionView `json:"usage"`
	}
	body.Error.Code = domain.EPAYMENT
	body.Error.Message = domain.ErrorMessage(err)
	body.Usage = newDecisionView(d)
	WriteJSON(w, http.StatusPaymentRequired, body)
}

// spent reports the decision after the action it allowed was recorded.
func spent(d domain.Decision) decisionView {
	if !d.Unlimited {
		d.Used++
	}
	return newDecisionView(d)
}
