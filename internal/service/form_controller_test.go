package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/cardioml-web/internal/domain"
	"github.com/cardioml-web/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePredictor struct {
	mu       sync.Mutex
	calls    int
	requests []*domain.PredictionRequest
	result   *domain.PredictionResult
	err      error
	block    chan struct{}
}

func (f *fakePredictor) Predict(ctx context.Context, req *domain.PredictionRequest) (*domain.PredictionResult, error) {
	f.mu.Lock()
	f.calls++
	f.requests = append(f.requests, req)
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	r := *f.result
	return &r, nil
}

func (f *fakePredictor) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeStore struct {
	mu      sync.Mutex
	records map[string]*domain.AssessmentRecord
	saveErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]*domain.AssessmentRecord)}
}

func (s *fakeStore) Save(_ context.Context, scope string, record *domain.AssessmentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.records[scope] = record
	return nil
}

func (s *fakeStore) Load(_ context.Context, scope string) (*domain.AssessmentRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[scope]
	return r, ok, nil
}

func (s *fakeStore) Clear(_ context.Context, scope string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, scope)
	return nil
}

func (s *fakeStore) Close() error { return nil }

func moderateResult() *domain.PredictionResult {
	return &domain.PredictionResult{
		RiskScore:      0.42,
		RiskPercentage: 42,
		RiskCategory:   domain.RiskModerate,
		ModelName:      "XGBoost Classifier",
		ModelVersion:   "1.2.0",
		FeatureImpacts: map[string]float64{"systolic_bp": 12, "cholesterol": 8, "age": 5, "physical_activity": -4},
		Timestamp:      "2024-03-05T10:00:00Z",
	}
}

func newTestController(p Predictor, s domain.ResultStore, opts ...FormControllerOption) *FormController {
	opts = append([]FormControllerOption{WithInput(sampleInput())}, opts...)
	return NewFormController(p, s, "session-1", logging.Discard(), opts...)
}

func TestNewFormController_Defaults(t *testing.T) {
	c := NewFormController(&fakePredictor{}, newFakeStore(), "s", logging.Discard())

	assert.Equal(t, StateEditing, c.State())
	assert.Equal(t, domain.DefaultAssessmentInput(), c.Input())
	assert.Empty(t, c.ErrorMessage())
	assert.Equal(t, "23.88", c.DisplayBMI())
}

func TestFormController_SetField(t *testing.T) {
	c := newTestController(&fakePredictor{}, newFakeStore())

	require.NoError(t, c.SetField("patient_name", "John Smith"))
	require.NoError(t, c.SetField("age", "52"))
	require.NoError(t, c.SetField("weight", "72.46"))
	require.NoError(t, c.SetField("chol", "Well Above Normal"))
	require.NoError(t, c.SetField("active", "Active"))

	in := c.Input()
	assert.Equal(t, "John Smith", in.PatientName)
	assert.Equal(t, 52.0, in.Age)
	assert.Equal(t, 72.5, in.Weight)
	assert.Equal(t, domain.LevelWellAboveNormal, in.Cholesterol)
	assert.Equal(t, domain.ActivityActive, in.PhysicalActivity)
}

func TestFormController_SetFieldErrors(t *testing.T) {
	c := newTestController(&fakePredictor{}, newFakeStore())

	err := c.SetField("blood_type", "O+")
	assert.True(t, errors.Is(err, ErrUnknownField))

	err = c.SetField("age", "forty")
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "age", verr.Field)
	assert.Equal(t, 45.0, c.Input().Age)
}

func TestFormController_SubmittedBMIMatchesDisplay(t *testing.T) {
	predictor := &fakePredictor{result: moderateResult()}
	c := newTestController(predictor, newFakeStore())
	require.NoError(t, c.SetField("weight", "80.04"))

	shown := c.DisplayBMI()
	assert.Equal(t, FormatBMI(170, 80.04), shown)

	_, err := c.Submit(context.Background())
	require.NoError(t, err)

	require.Len(t, predictor.requests, 1)
	req := predictor.requests[0]
	require.NotNil(t, req.BMI)
	assert.Equal(t, shown, strconv.FormatFloat(*req.BMI, 'f', 2, 64))
}

func TestFormController_BMIRecomputesOnEdit(t *testing.T) {
	c := newTestController(&fakePredictor{}, newFakeStore())

	bmi, ok := c.BMI()
	require.True(t, ok)
	assert.Equal(t, 27.68, bmi)

	require.NoError(t, c.SetField("height", ""))
	_, ok = c.BMI()
	assert.False(t, ok)
	assert.Equal(t, "", c.DisplayBMI())

	require.NoError(t, c.SetField("height", "200"))
	require.NoError(t, c.SetField("weight", "100"))
	assert.Equal(t, "25.00", c.DisplayBMI())
}

func TestFormController_SubmitSuccess(t *testing.T) {
	predictor := &fakePredictor{result: moderateResult()}
	store := newFakeStore()
	now := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	c := newTestController(predictor, store, WithClock(func() time.Time { return now }))

	record, err := c.Submit(context.Background())

	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, StateSuccess, c.State())
	assert.Equal(t, 1, predictor.Calls())

	req := predictor.requests[0]
	require.NotNil(t, req.BMI)
	assert.Equal(t, 27.68, *req.BMI)
	assert.Equal(t, 2, req.Cholesterol)
	assert.Equal(t, 1, req.SmokingStatus)
	assert.Equal(t, 0, req.PhysicalActivity)

	stored, found, err := store.Load(context.Background(), "session-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, domain.RiskModerate, stored.Result.RiskCategory)
	assert.Equal(t, "Jane Doe", stored.Input.PatientName)
	assert.Equal(t, now, stored.SavedAt)
}

func TestFormController_SubmitRequiresPatientName(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"empty", ""},
		{"whitespace only", "   \t"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			predictor := &fakePredictor{result: moderateResult()}
			store := newFakeStore()
			c := newTestController(predictor, store)
			require.NoError(t, c.SetField("patient_name", tt.value))

			record, err := c.Submit(context.Background())

			assert.Nil(t, record)
			var verr *domain.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, "patient_name", verr.Field)
			assert.Equal(t, domain.MsgPatientNameRequired, c.ErrorMessage())
			assert.Equal(t, StateEditing, c.State())
			assert.Equal(t, 0, predictor.Calls())
			assert.Empty(t, store.records)
		})
	}
}

func TestFormController_SubmitRejectsOutOfRange(t *testing.T) {
	tests := []struct {
		field string
		value string
		want  string
	}{
		{"age", "19", "Age must be at least 20"},
		{"height", "250", "Height must be at most 210"},
		{"ap_hi", "60", "Systolic BP must be at least 70"},
		{"gender", "Other", "Gender must be one of Female, Male"},
		{"age", "", "Age is required"},
		{"weight", "", "Weight is required"},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			predictor := &fakePredictor{result: moderateResult()}
			c := newTestController(predictor, newFakeStore())
			require.NoError(t, c.SetField(tt.field, tt.value))

			_, err := c.Submit(context.Background())

			require.Error(t, err)
			assert.Equal(t, tt.want, c.ErrorMessage())
			assert.Equal(t, 0, predictor.Calls())
		})
	}
}

func TestFormController_SubmitRejectsUnknownEnum(t *testing.T) {
	predictor := &fakePredictor{result: moderateResult()}
	c := newTestController(predictor, newFakeStore())
	require.NoError(t, c.SetField("smoke", "Occasionally"))

	_, err := c.Submit(context.Background())

	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, domain.ErrInvalidInput, verr.Code)
	assert.Equal(t, 0, predictor.Calls())
}

func TestFormController_SubmitBackendFailure(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{
			name:    "backend message surfaces",
			err:     &domain.BackendError{StatusCode: 400, Message: "Missing required field: age"},
			wantMsg: "Missing required field: age",
		},
		{
			name:    "transport failure uses generic message",
			err:     &domain.BackendError{Err: errors.New("connection refused")},
			wantMsg: domain.MsgSubmissionFailed,
		},
		{
			name:    "unexpected error uses generic message",
			err:     errors.New("boom"),
			wantMsg: domain.MsgSubmissionFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			predictor := &fakePredictor{err: tt.err}
			store := newFakeStore()
			c := newTestController(predictor, store)

			record, err := c.Submit(context.Background())

			assert.Nil(t, record)
			assert.Error(t, err)
			assert.Equal(t, StateFailed, c.State())
			assert.Equal(t, tt.wantMsg, c.ErrorMessage())
			assert.Equal(t, 1, predictor.Calls())
			assert.Empty(t, store.records)
		})
	}
}

func TestFormController_EditAfterFailureReturnsToEditing(t *testing.T) {
	predictor := &fakePredictor{err: &domain.BackendError{StatusCode: 500, Message: "Model not loaded"}}
	c := newTestController(predictor, newFakeStore())

	_, err := c.Submit(context.Background())
	require.Error(t, err)
	require.Equal(t, StateFailed, c.State())

	require.NoError(t, c.SetField("age", "46"))
	assert.Equal(t, StateEditing, c.State())
	assert.Empty(t, c.ErrorMessage())

	predictor.err = nil
	predictor.result = moderateResult()
	_, err = c.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, predictor.Calls())
}

func TestFormController_StoreFailure(t *testing.T) {
	store := newFakeStore()
	store.saveErr = errors.New("disk full")
	c := newTestController(&fakePredictor{result: moderateResult()}, store)

	_, err := c.Submit(context.Background())

	require.Error(t, err)
	assert.Equal(t, StateFailed, c.State())
	assert.Equal(t, domain.MsgSubmissionFailed, c.ErrorMessage())
}

func TestFormController_SingleInFlightSubmission(t *testing.T) {
	predictor := &fakePredictor{result: moderateResult(), block: make(chan struct{})}
	c := newTestController(predictor, newFakeStore())

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background())
		done <- err
	}()

	require.Eventually(t, func() bool { return predictor.Calls() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, StateSubmitting, c.State())

	_, err := c.Submit(context.Background())
	assert.ErrorIs(t, err, ErrSubmissionInProgress)
	assert.Error(t, c.SetField("age", "50"))

	close(predictor.block)
	require.NoError(t, <-done)
	assert.Equal(t, 1, predictor.Calls())

	_, err = c.Submit(context.Background())
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
}

func TestFormController_UnmountDiscardsLateResponse(t *testing.T) {
	predictor := &fakePredictor{result: moderateResult(), block: make(chan struct{})}
	store := newFakeStore()
	c := newTestController(predictor, store)

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background())
		done <- err
	}()

	require.Eventually(t, func() bool { return predictor.Calls() == 1 }, time.Second, 5*time.Millisecond)
	c.Unmount()
	close(predictor.block)

	assert.ErrorIs(t, <-done, ErrDiscarded)
	assert.Empty(t, store.records)

	_, err := c.Submit(context.Background())
	assert.ErrorIs(t, err, ErrDiscarded)
}

func TestFormController_CancelledContextDiscardsResponse(t *testing.T) {
	predictor := &fakePredictor{result: moderateResult(), block: make(chan struct{})}
	store := newFakeStore()
	c := newTestController(predictor, store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(ctx)
		done <- err
	}()

	require.Eventually(t, func() bool { return predictor.Calls() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-done, ErrDiscarded)
	assert.Empty(t, store.records)
}
