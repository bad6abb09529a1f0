// Package domain contains the core entities of the cardiovascular risk assessment
// workflow: the intake form snapshot, the payload sent to the prediction backend,
// the prediction result it returns, and the stored pairing of the two.
package domain

import (
	"time"
)

// Gender is the patient gender as captured by the intake form.
type Gender string

const (
	GenderFemale Gender = "Female"
	GenderMale   Gender = "Male"
)

// Level is a three-step clinical level used for cholesterol and glucose.
type Level string

const (
	LevelNormal          Level = "Normal"
	LevelAboveNormal     Level = "Above Normal"
	LevelWellAboveNormal Level = "Well Above Normal"
)

// YesNo is a binary lifestyle answer used for smoking and alcohol intake.
type YesNo string

const (
	No  YesNo = "No"
	Yes YesNo = "Yes"
)

// Activity is the physical activity answer.
type Activity string

const (
	ActivityInactive Activity = "Inactive"
	ActivityActive   Activity = "Active"
)

// RiskCategory is the severity label attached to a prediction result.
type RiskCategory string

const (
	RiskLow      RiskCategory = "Low Risk"
	RiskModerate RiskCategory = "Moderate Risk"
	RiskHigh     RiskCategory = "High Risk"
)

// AssessmentInput is the intake form snapshot. JSON keys follow the persisted
// formData layout so stored snapshots stay readable across versions.
type AssessmentInput struct {
	PatientName      string   `json:"patient_name"`
	Age              float64  `json:"age" validate:"required,gte=20,lte=100"`
	Gender           Gender   `json:"gender" validate:"required,oneof=Female Male"`
	Height           float64  `json:"height" validate:"required,gte=140,lte=210"`
	Weight           float64  `json:"weight" validate:"required,gte=40,lte=200"`
	SystolicBP       float64  `json:"ap_hi" validate:"required,gte=70,lte=250"`
	DiastolicBP      float64  `json:"ap_lo" validate:"required,gte=40,lte=150"`
	Cholesterol      Level    `json:"chol"`
	Glucose          Level    `json:"gluc"`
	Smoking          YesNo    `json:"smoke"`
	Alcohol          YesNo    `json:"alcohol"`
	PhysicalActivity Activity `json:"active"`
}

// DefaultAssessmentInput returns the values the intake form starts with.
func DefaultAssessmentInput() AssessmentInput {
	return AssessmentInput{
		Age:              30,
		Gender:           GenderFemale,
		Height:           165,
		Weight:           65,
		SystolicBP:       120,
		DiastolicBP:      80,
		Cholesterol:      LevelNormal,
		Glucose:          LevelNormal,
		Smoking:          No,
		Alcohol:          No,
		PhysicalActivity: ActivityActive,
	}
}

// PredictionRequest is the flat numeric payload accepted by the backend predict endpoint.
// BMI is nil when it could not be derived from height and weight.
type PredictionRequest struct {
	Age              float64  `json:"age"`
	BMI              *float64 `json:"bmi"`
	Cholesterol      int      `json:"cholesterol"`
	Glucose          int      `json:"gluc"`
	SystolicBP       float64  `json:"systolic_bp"`
	DiastolicBP      float64  `json:"diastolic_bp"`
	SmokingStatus    int      `json:"smoking_status"`
	AlcoholIntake    int      `json:"alcohol_intake"`
	PhysicalActivity int      `json:"physical_activity"`
}

// PredictionResult is the backend's answer to a predict call.
// Timestamp is kept as sent; only the presenter interprets it.
type PredictionResult struct {
	RiskScore       float64            `json:"risk_score,omitempty"`
	RiskPercentage  float64            `json:"risk_percentage"`
	RiskCategory    RiskCategory       `json:"risk_category"`
	ModelName       string             `json:"model_name"`
	ModelVersion    string             `json:"model_version"`
	Accuracy        float64            `json:"accuracy,omitempty"`
	FeatureImpacts  map[string]float64 `json:"feature_impacts"`
	Recommendations []string           `json:"recommendations"`
	Timestamp       string             `json:"timestamp,omitempty"`
}

// AssessmentRecord pairs a prediction result with the form snapshot that produced it.
type AssessmentRecord struct {
	Result  PredictionResult `json:"assessmentResult"`
	Input   AssessmentInput  `json:"formData"`
	SavedAt time.Time        `json:"saved_at"`
}

// FeatureImportance is one entry of the model's global feature ranking.
type FeatureImportance struct {
	Name  string  `json:"name"`
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// ModelMetrics carries operational metadata reported by the backend.
type ModelMetrics struct {
	TrainedAt    string `json:"trained_at,omitempty"`
	Library      string `json:"library,omitempty"`
	FeatureCount int    `json:"feature_count,omitempty"`
	Uptime       struct {
		Formatted string `json:"formatted,omitempty"`
		Seconds   int64  `json:"seconds,omitempty"`
	} `json:"uptime"`
	InferenceSpeed struct {
		AverageMS        float64 `json:"average_ms"`
		TotalPredictions int     `json:"total_predictions"`
	} `json:"inference_speed"`
}

// ModelInfo is the backend model description served by the assessment info endpoint.
type ModelInfo struct {
	ModelName         string                 `json:"model_name"`
	ModelVersion      string                 `json:"model_version"`
	Accuracy          float64                `json:"accuracy"`
	AUCROC            float64                `json:"auc_roc"`
	F1Score           float64                `json:"f1_score"`
	TrainingDataset   string                 `json:"training_dataset"`
	Features          []string               `json:"features,omitempty"`
	FeatureImportance []FeatureImportance    `json:"feature_importance,omitempty"`
	Hyperparameters   map[string]interface{} `json:"hyperparameters,omitempty"`
	ModelMetrics      *ModelMetrics          `json:"model_metrics,omitempty"`
}

// HealthStatus is the backend health endpoint response.
type HealthStatus struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}
