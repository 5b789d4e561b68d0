package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/sirupsen/logrus"

	"github.com/gdmt-engine/internal/domain"
	"github.com/gdmt-engine/internal/feedback"
	"github.com/gdmt-engine/internal/middleware"
	"github.com/gdmt-engine/pkg/egfr"
	"github.com/gdmt-engine/pkg/kccq"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// handleHealth reports liveness and the state of each registered dependency.
func (s *Server) handleHealth(c *gin.Context) {
	status, code := "healthy", http.StatusOK
	checks := make(map[string]string, len(s.deps.Checks))

	for name, check := range s.deps.Checks {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		err := check(ctx)
		cancel()

		if err != nil {
			s.logger.WithError(err).WithField("check", name).Warn("Health check failed")
			checks[name] = "unhealthy"
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		checks[name] = "healthy"
	}

	c.JSON(code, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"version":   Version,
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
		"checks":    checks,
	})
}

func (s *Server) handleRecommendations(c *gin.Context) {
	var req recommendationRequest
	if !s.bind(c, &req) {
		return
	}

	outputs, err := s.deps.Engine.ComputeRecommendations(c.Request.Context(), domain.RecommendationInput(req))
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"recommendations": outputs})
}

func (s *Server) handleEGFR(c *gin.Context) {
	var req egfrRequest
	if !s.bind(c, &req) {
		return
	}

	sex, err := domain.ParseSex(req.Sex)
	if err != nil {
		s.respondError(c, err)
		return
	}

	result, err := egfr.Calculate(egfr.Input{Sex: sex, Age: req.Age, Creatinine: req.Creatinine})
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) handleSymptomScore(c *gin.Context) {
	var req symptomScoreRequest
	if !s.bind(c, &req) {
		return
	}

	response := kccq.Response{Answers: req.Answers}
	if req.Date != nil {
		response.Date = *req.Date
	}

	score, err := kccq.Calculate(response)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, score)
}

func (s *Server) handleMedicationContraindication(c *gin.Context) {
	var req medicationContraindicationRequest
	if !s.bind(c, &req) {
		return
	}

	if _, ok := s.deps.Catalog.Medication(req.Medication); !ok {
		s.respondError(c, domain.NewInvalidInputError("medication", "unknown medication", req.Medication))
		return
	}

	c.JSON(http.StatusOK, contraindicationResponse{
		Medication: req.Medication,
		Category:   s.deps.Checker.CheckMedication(req.Allergies, req.Medication),
	})
}

func (s *Server) handleClassContraindication(c *gin.Context) {
	var req classContraindicationRequest
	if !s.bind(c, &req) {
		return
	}

	c.JSON(http.StatusOK, contraindicationResponse{
		Class:    req.Class,
		Category: s.deps.Checker.CheckMedicationClass(req.Allergies, req.Class),
	})
}

func (s *Server) handleMedications(c *gin.Context) {
	class := domain.MedicationClass(c.Query("class"))
	if class == "" {
		c.JSON(http.StatusOK, gin.H{"medications": s.deps.Catalog.Medications()})
		return
	}
	if !class.IsValid() {
		s.respondError(c, domain.NewInvalidInputError("class", "unknown medication class", string(class)))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"medications": s.deps.Catalog.MedicationsInClass(class),
		"classCodes":  s.deps.Catalog.ClassCodes(class),
	})
}

func (s *Server) handleSubmitFeedback(c *gin.Context) {
	if !s.feedbackEnabled(c) {
		return
	}

	var entry feedback.Feedback
	if !s.bind(c, &entry) {
		return
	}
	entry.ID, entry.Reference = 0, ""

	if err := s.deps.Feedback.Save(c.Request.Context(), &entry); err != nil {
		s.respondError(c, err)
		return
	}

	s.logger.WithFields(logrus.Fields{
		"request_id": middleware.GetRequestID(c),
		"class":      entry.MedicationClass,
		"outcome":    entry.Outcome,
	}).Info("Feedback recorded")

	c.JSON(http.StatusCreated, entry)
}

func (s *Server) handleListFeedback(c *gin.Context) {
	if !s.feedbackEnabled(c) {
		return
	}

	var (
		entries []*feedback.Feedback
		err     error
	)
	if patientID := c.Query("patient_id"); patientID != "" {
		entries, err = s.deps.Feedback.ListByPatient(c.Request.Context(), patientID)
	} else {
		limit := queryInt(c, "limit", defaultPageSize, 1, maxPageSize)
		offset := queryInt(c, "offset", 0, 0, int(^uint(0)>>1))
		entries, err = s.deps.Feedback.List(c.Request.Context(), limit, offset)
	}
	if err != nil {
		s.respondError(c, err)
		return
	}
	if entries == nil {
		entries = []*feedback.Feedback{}
	}

	c.JSON(http.StatusOK, gin.H{"feedback": entries})
}

func (s *Server) feedbackEnabled(c *gin.Context) bool {
	if s.deps.Feedback != nil {
		return true
	}
	c.JSON(http.StatusNotFound, domain.NewAPIError(domain.CodeNotFound,
		"Feedback recording is disabled", "", middleware.GetRequestID(c)))
	return false
}

// bind decodes the JSON body and runs its validation rules, writing the error response
// itself when either fails.
func (s *Server) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, domain.NewAPIError(domain.CodeInvalidInput,
			"Malformed request body", err.Error(), middleware.GetRequestID(c)))
		return false
	}
	if v, ok := req.(validation.Validatable); ok {
		if err := v.Validate(); err != nil {
			s.respondError(c, err)
			return false
		}
	}
	return true
}

// respondError maps an error to its status code and envelope.
func (s *Server) respondError(c *gin.Context, err error) {
	requestID := middleware.GetRequestID(c)

	var invalid *domain.InvalidInputError
	var verrs validation.Errors
	switch {
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, domain.NewAPIError(domain.CodeInvalidInput, invalid.Error(), invalid.Field, requestID))
	case errors.As(err, &verrs):
		c.JSON(http.StatusBadRequest, domain.NewAPIError(domain.CodeValidation, "Request validation failed", verrs.Error(), requestID))
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		s.logger.WithError(err).WithField("request_id", requestID).Warn("Request abandoned")
		c.JSON(http.StatusServiceUnavailable, domain.NewAPIError(domain.CodeInternalServer, "Request timed out", "", requestID))
	default:
		s.logger.WithError(err).WithField("request_id", requestID).Error("Request failed")
		c.JSON(http.StatusInternalServerError, domain.NewAPIError(domain.CodeInternalServer, "Internal server error", "", requestID))
	}
}

func queryInt(c *gin.Context, key string, fallback, min, max int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return fallback
	}
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}
