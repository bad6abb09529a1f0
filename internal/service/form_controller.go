package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cardioml-web/internal/domain"
	"github.com/sirupsen/logrus"
)

// FormState is the intake form's submission state.
type FormState string

const (
	StateEditing    FormState = "editing"
	StateSubmitting FormState = "submitting"
	StateSuccess    FormState = "success"
	StateFailed     FormState = "failed"
)

var (
	// ErrSubmissionInProgress is returned when Submit is called while a request is in flight.
	ErrSubmissionInProgress = errors.New("submission already in progress")
	// ErrAlreadySubmitted is returned when Submit is called after a successful submission.
	ErrAlreadySubmitted = errors.New("assessment already submitted")
	// ErrDiscarded is returned when the form was unmounted before the backend answered.
	ErrDiscarded = errors.New("form unmounted; response discarded")
	// ErrUnknownField is returned by SetField for names the form does not have.
	ErrUnknownField = errors.New("unknown form field")
)

// Predictor issues prediction requests.
type Predictor interface {
	Predict(ctx context.Context, req *domain.PredictionRequest) (*domain.PredictionResult, error)
}

// FormController owns the intake form state for one form instance.
type FormController struct {
	predictor Predictor
	store     domain.ResultStore
	scope     string
	validator *InputValidator
	logger    *logrus.Logger
	clock     func() time.Time

	mu      sync.Mutex
	input   domain.AssessmentInput
	state   FormState
	errMsg  string
	mounted bool
}

// FormControllerOption customizes a FormController.
type FormControllerOption func(*FormController)

// WithClock overrides the time source used to stamp saved records.
func WithClock(clock func() time.Time) FormControllerOption {
	return func(c *FormController) { c.clock = clock }
}

// WithInput replaces the default form values.
func WithInput(input domain.AssessmentInput) FormControllerOption {
	return func(c *FormController) { c.input = input }
}

// NewFormController creates a mounted controller in the Editing state with default values.
func NewFormController(predictor Predictor, store domain.ResultStore, scope string, logger *logrus.Logger, opts ...FormControllerOption) *FormController {
	c := &FormController{
		predictor: predictor,
		store:     store,
		scope:     scope,
		validator: NewInputValidator(),
		logger:    logger,
		clock:     time.Now,
		input:     domain.DefaultAssessmentInput(),
		state:     StateEditing,
		mounted:   true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetField assigns one form field from its raw string value. Any edit clears the
// current error and returns a failed form to editing.
func (c *FormController) SetField(name, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateSubmitting || c.state == StateSuccess {
		return fmt.Errorf("form is %s and cannot be edited", c.state)
	}

	if err := c.assign(name, value); err != nil {
		return err
	}
	c.errMsg = ""
	c.state = StateEditing
	return nil
}

func (c *FormController) assign(name, value string) error {
	number := func(dst *float64, normalize func(float64) float64) error {
		value = strings.TrimSpace(value)
		if value == "" {
			*dst = 0
			return nil
		}
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return domain.NewValidationError(name, "must be a number", value)
		}
		if normalize != nil {
			f = normalize(f)
		}
		*dst = f
		return nil
	}

	in := &c.input
	switch name {
	case "patient_name":
		in.PatientName = value
	case "age":
		return number(&in.Age, nil)
	case "gender":
		in.Gender = domain.Gender(value)
	case "height":
		return number(&in.Height, nil)
	case "weight":
		return number(&in.Weight, NormalizeWeight)
	case "ap_hi":
		return number(&in.SystolicBP, nil)
	case "ap_lo":
		return number(&in.DiastolicBP, nil)
	case "chol":
		in.Cholesterol = domain.Level(value)
	case "gluc":
		in.Glucose = domain.Level(value)
	case "smoke":
		in.Smoking = domain.YesNo(value)
	case "alcohol":
		in.Alcohol = domain.YesNo(value)
	case "active":
		in.PhysicalActivity = domain.Activity(value)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	return nil
}

// Input returns a copy of the current form values.
func (c *FormController) Input() domain.AssessmentInput {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

// State returns the current submission state.
func (c *FormController) State() FormState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ErrorMessage returns the message shown above the form, if any.
func (c *FormController) ErrorMessage() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errMsg
}

// BMI derives the body mass index from the current height and weight.
func (c *FormController) BMI() (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ComputeBMI(c.input.Height, c.input.Weight)
}

// DisplayBMI renders BMI with two decimals, or "" when it cannot be derived.
func (c *FormController) DisplayBMI() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return FormatBMI(c.input.Height, c.input.Weight)
}

// Unmount detaches the controller from its page; in-flight responses are then ignored.
func (c *FormController) Unmount() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mounted = false
}

// Submit validates the form, calls the backend once and stores the result.
// On success the record has been saved before Submit returns.
func (c *FormController) Submit(ctx context.Context) (*domain.AssessmentRecord, error) {
	c.mu.Lock()
	if !c.mounted {
		c.mu.Unlock()
		return nil, ErrDiscarded
	}
	switch c.state {
	case StateSubmitting:
		c.mu.Unlock()
		return nil, ErrSubmissionInProgress
	case StateSuccess:
		c.mu.Unlock()
		return nil, ErrAlreadySubmitted
	}

	input := c.input
	req, verr := c.prepare(input)
	if verr != nil {
		c.state = StateEditing
		c.errMsg = verr.Message
		c.mu.Unlock()
		return nil, verr
	}
	c.state = StateSubmitting
	c.errMsg = ""
	c.mu.Unlock()

	result, err := c.predictor.Predict(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.mounted || ctx.Err() != nil {
		c.mounted = false
		c.logger.WithField("scope", c.scope).Debug("Discarding prediction response for unmounted form")
		return nil, ErrDiscarded
	}

	if err != nil {
		c.state = StateFailed
		c.errMsg = userMessage(err)
		c.logger.WithError(err).WithField("scope", c.scope).Warn("Prediction request failed")
		return nil, err
	}

	record := &domain.AssessmentRecord{
		Result:  *result,
		Input:   input,
		SavedAt: c.clock().UTC(),
	}
	if err := c.store.Save(ctx, c.scope, record); err != nil {
		c.state = StateFailed
		c.errMsg = domain.MsgSubmissionFailed
		c.logger.WithError(err).WithField("scope", c.scope).Error("Failed to store assessment result")
		return nil, fmt.Errorf("storing assessment result: %w", err)
	}

	c.state = StateSuccess
	c.logger.WithFields(logrus.Fields{
		"scope":         c.scope,
		"risk_category": result.RiskCategory,
		"model_version": result.ModelVersion,
	}).Info("Assessment submitted")
	return record, nil
}

// prepare runs every local check; nothing reaches the network unless it passes.
func (c *FormController) prepare(input domain.AssessmentInput) (*domain.PredictionRequest, *domain.ValidationError) {
	if strings.TrimSpace(input.PatientName) == "" {
		return nil, domain.NewValidationError("patient_name", domain.MsgPatientNameRequired, input.PatientName)
	}

	var verr *domain.ValidationError
	if err := c.validator.Validate(input); err != nil {
		if errors.As(err, &verr) {
			return nil, verr
		}
		return nil, domain.NewValidationError("", err.Error(), nil)
	}

	req, err := ToPredictionRequest(input)
	if err != nil {
		if errors.As(err, &verr) {
			return nil, verr
		}
		return nil, domain.NewValidationError("", err.Error(), nil)
	}
	return req, nil
}

func userMessage(err error) string {
	var be *domain.BackendError
	if errors.As(err, &be) && be.UserMessage() != "" {
		return be.UserMessage()
	}
	return domain.MsgSubmissionFailed
}
