package api

import (
	"context"
	"errors"
	"html/template"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cardioml-web/internal/domain"
	"github.com/cardioml-web/internal/middleware"
	"github.com/cardioml-web/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	modelInfoTimeout = 3 * time.Second
	healthTimeout    = 3 * time.Second
	version          = "1.0.0"
)

// formFields are the intake form inputs in display order.
var formFields = []string{
	"patient_name", "age", "gender", "height", "weight",
	"ap_hi", "ap_lo", "chol", "gluc", "smoke", "alcohol", "active",
}

var templateFuncs = template.FuncMap{
	"upper": strings.ToUpper,
	"fixed": func(decimals int, v float64) string {
		return strconv.FormatFloat(v, 'f', decimals, 64)
	},
	"num": func(v float64) string {
		return strconv.FormatFloat(v, 'f', -1, 64)
	},
}

// formOptions are the choices offered by the intake form's selects.
type formOptions struct {
	Genders    []domain.Gender
	Levels     []domain.Level
	YesNo      []domain.YesNo
	Activities []domain.Activity
}

var options = formOptions{
	Genders:    []domain.Gender{domain.GenderFemale, domain.GenderMale},
	Levels:     []domain.Level{domain.LevelNormal, domain.LevelAboveNormal, domain.LevelWellAboveNormal},
	YesNo:      []domain.YesNo{domain.No, domain.Yes},
	Activities: []domain.Activity{domain.ActivityInactive, domain.ActivityActive},
}

// healthInsight describes one model input on the educational page.
type healthInsight struct {
	Title            string
	Subtitle         string
	Description      string
	MLInterpretation string
}

var healthInsights = []healthInsight{
	{"Systolic BP", "Crucial Metric", "The pressure in your arteries when your heart beats. High values indicate increased strain on blood vessels.", "Continuous feature with weighted impact on arterial stiffness indices."},
	{"Total Cholesterol", "Biomarker", "A measure of the total amount of cholesterol in your blood, including LDL and HDL components.", "Analyzed alongside age to predict long-term atherosclerotic risk."},
	{"BMI", "Physical Metric", "Body Mass Index uses height and weight to estimate if a person is at a healthy weight.", "Significant covariate for metabolic syndrome and heart failure risk."},
	{"Blood Glucose", "Metabolic", "The main sugar found in your blood, which provides energy to your body's cells.", "Weighted heavily for detecting potential diabetic-related heart complications."},
	{"Biological Age", "Demographic", "Chronological age is one of the strongest predictors for cardiovascular outcomes.", "Acts as a non-linear multiplier for all other clinical risk factors."},
	{"Smoking Status", "Behavioral", "Tobacco use is a primary cause of cardiovascular disease and endothelial dysfunction.", "Binary categorical variable that significantly shifts the risk baseline."},
}

// modelSummary fetches model info for display, falling back to the published
// figures when the backend cannot be reached.
func (s *Server) modelSummary(ctx context.Context) service.ModelSummary {
	ctx, cancel := context.WithTimeout(ctx, modelInfoTimeout)
	defer cancel()

	info, err := s.predictor.ModelInfo(ctx)
	if err != nil {
		s.logger.WithError(err).Debug("Model info unavailable; using fallback values")
		return service.SummarizeModel(nil)
	}
	return service.SummarizeModel(info)
}

func (s *Server) handlePage(name, active string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.HTML(http.StatusOK, name, gin.H{
			"Active":     active,
			"Model":      s.modelSummary(c.Request.Context()),
			"Candidates": service.CandidateModels(),
			"Insights":   healthInsights,
		})
	}
}

func (s *Server) renderForm(c *gin.Context, status int, input domain.AssessmentInput, errMsg string, model service.ModelSummary) {
	c.HTML(status, "assessment.html", gin.H{
		"Active":  "assessment",
		"Input":   input,
		"BMI":     service.FormatBMI(input.Height, input.Weight),
		"Error":   errMsg,
		"Model":   model,
		"Options": options,
	})
}

func (s *Server) handleAssessmentForm(c *gin.Context) {
	s.renderForm(c, http.StatusOK, domain.DefaultAssessmentInput(), "", s.modelSummary(c.Request.Context()))
}

func (s *Server) handleAssessmentSubmit(c *gin.Context) {
	ctx := c.Request.Context()
	scope := middleware.Scope(c)
	log := s.logger.WithFields(logrus.Fields{
		"correlation_id": c.GetString(middleware.CorrelationIDKey),
	})

	ctrl := service.NewFormController(s.predictor, s.store, scope, s.logger)
	defer ctrl.Unmount()

	// A field left out of the body is submitted empty so it fails validation
	// instead of keeping its default.
	for _, name := range formFields {
		value := c.PostForm(name)
		if err := ctrl.SetField(name, value); err != nil {
			s.metrics.ObservePrediction("invalid", "")
			s.renderForm(c, http.StatusUnprocessableEntity, ctrl.Input(), fieldErrorMessage(err), s.modelSummary(ctx))
			return
		}
	}

	// Model info only feeds the page on re-render; its failure never affects the submission.
	var (
		model  service.ModelSummary
		record *domain.AssessmentRecord
		subErr error
	)
	var g errgroup.Group
	g.Go(func() error {
		model = s.modelSummary(ctx)
		return nil
	})
	g.Go(func() error {
		record, subErr = ctrl.Submit(ctx)
		return nil
	})
	_ = g.Wait()

	var verr *domain.ValidationError
	switch {
	case subErr == nil:
		s.metrics.ObservePrediction("success", string(record.Result.RiskCategory))
		c.Redirect(http.StatusSeeOther, "/results")

	case errors.As(subErr, &verr):
		s.metrics.ObservePrediction("invalid", "")
		s.renderForm(c, http.StatusUnprocessableEntity, ctrl.Input(), ctrl.ErrorMessage(), model)

	case errors.Is(subErr, service.ErrDiscarded):
		s.metrics.ObservePrediction("discarded", "")
		log.Warn("Assessment request ended before the backend answered")
		s.renderForm(c, http.StatusGatewayTimeout, ctrl.Input(), domain.MsgSubmissionFailed, model)

	default:
		s.metrics.ObservePrediction("failed", "")
		log.WithError(subErr).Warn("Assessment submission failed")
		s.renderForm(c, http.StatusBadGateway, ctrl.Input(), ctrl.ErrorMessage(), model)
	}
}

func fieldErrorMessage(err error) string {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return verr.Field + " " + verr.Message
	}
	return err.Error()
}

// loadRecord reads the session's stored assessment. It writes the response
// itself when nothing usable is stored.
func (s *Server) loadRecord(c *gin.Context) (*domain.AssessmentRecord, bool) {
	record, found, err := s.store.Load(c.Request.Context(), middleware.Scope(c))
	if err != nil {
		s.logger.WithError(err).Error("Failed to load assessment result")
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{
			"Active":  "",
			"Message": domain.MsgSubmissionFailed,
		})
		return nil, false
	}
	if !found {
		c.Redirect(http.StatusSeeOther, "/assessment")
		return nil, false
	}
	return record, true
}

func (s *Server) handleResults(c *gin.Context) {
	record, ok := s.loadRecord(c)
	if !ok {
		return
	}

	var alert string
	if c.Query("report_error") == "1" {
		alert = domain.MsgReportFailed
	}

	c.HTML(http.StatusOK, "results.html", gin.H{
		"Active": "results",
		"View":   service.BuildResultsView(record),
		"Alert":  alert,
	})
}

func (s *Server) handleReport(c *gin.Context) {
	record, ok := s.loadRecord(c)
	if !ok {
		return
	}

	rep, err := s.reportGenerator().Generate(record, s.clock())
	if err != nil {
		s.metrics.ObserveReport("failed")
		c.Redirect(http.StatusSeeOther, "/results?report_error=1")
		return
	}

	s.metrics.ObserveReport("success")
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": rep.Filename}))
	c.Data(http.StatusOK, rep.ContentType, rep.Data)
}

func (s *Server) handleClear(c *gin.Context) {
	if err := s.store.Clear(c.Request.Context(), middleware.Scope(c)); err != nil {
		s.logger.WithError(err).Error("Failed to clear assessment result")
	}
	c.Redirect(http.StatusSeeOther, "/assessment")
}

// handleHealth reports this server's health together with the backend's.
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	status := "healthy"
	backend := gin.H{}
	if h, err := s.predictor.Health(ctx); err != nil {
		status = "degraded"
		backend["status"] = "unreachable"
		backend["error"] = err.Error()
	} else {
		backend["status"] = h.Status
		backend["model_loaded"] = h.ModelLoaded
		if !h.ModelLoaded {
			status = "degraded"
		}
	}
	if b, ok := s.predictor.(interface{ BreakerState() string }); ok {
		backend["circuit_breaker"] = b.BreakerState()
	}

	store := gin.H{"driver": s.cfg.Store.Driver, "status": "ok"}
	if h, ok := s.store.(interface{ Health(context.Context) error }); ok {
		if err := h.Health(ctx); err != nil {
			status = "degraded"
			store["status"] = "unreachable"
			store["error"] = err.Error()
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    status,
		"timestamp": s.clock().UTC(),
		"version":   version,
		"backend":   backend,
		"store":     store,
	})
}

func (s *Server) apiError(c *gin.Context, status int, code, message, details string) {
	c.JSON(status, domain.NewAppError(code, message, details, c.GetString(middleware.CorrelationIDKey)))
}

func (s *Server) handleModelInfo(c *gin.Context) {
	info, err := s.predictor.ModelInfo(c.Request.Context())
	if err != nil {
		s.apiError(c, http.StatusBadGateway, domain.ErrExternalAPI, "Prediction backend unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, info)
}

type bmiRequest struct {
	Height *float64 `json:"height"`
	Weight *float64 `json:"weight"`
}

type bmiResponse struct {
	BMI     *float64 `json:"bmi"`
	Display string   `json:"display"`
}

func (s *Server) handleBMI(c *gin.Context) {
	var req bmiRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.apiError(c, http.StatusBadRequest, domain.ErrInvalidInput, "Invalid request body", err.Error())
		return
	}

	var h, w float64
	if req.Height != nil {
		h = *req.Height
	}
	if req.Weight != nil {
		w = service.NormalizeWeight(*req.Weight)
	}

	resp := bmiResponse{}
	if bmi, ok := service.ComputeBMI(h, w); ok {
		resp.BMI = &bmi
		resp.Display = service.FormatBMI(h, w)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleStoredResult(c *gin.Context) {
	record, found, err := s.store.Load(c.Request.Context(), middleware.Scope(c))
	if err != nil {
		s.logger.WithError(err).Error("Failed to load assessment result")
		s.apiError(c, http.StatusInternalServerError, domain.ErrStorage, "Failed to load assessment result", "")
		return
	}
	if !found {
		s.apiError(c, http.StatusNotFound, domain.ErrNotFound, domain.ErrResultNotFound.Error(), "")
		return
	}
	c.JSON(http.StatusOK, record)
}
