package service

import (
	"math"
	"strconv"

	"github.com/cardioml-web/internal/domain"
)

var (
	levelCodes = map[domain.Level]int{
		domain.LevelNormal:          1,
		domain.LevelAboveNormal:     2,
		domain.LevelWellAboveNormal: 3,
	}
	yesNoCodes = map[domain.YesNo]int{
		domain.No:  0,
		domain.Yes: 1,
	}
	activityCodes = map[domain.Activity]int{
		domain.ActivityInactive: 0,
		domain.ActivityActive:   1,
	}
)

// NormalizeWeight rounds a weight to the form's 0.1 kg step.
func NormalizeWeight(weightKG float64) float64 {
	return math.Round(weightKG*10) / 10
}

// ComputeBMI returns weight / height(m)^2, or false when either value is not positive.
// The weight is normalized first so the preview, the form and the payload agree.
func ComputeBMI(heightCM, weightKG float64) (float64, bool) {
	if heightCM <= 0 || weightKG <= 0 || math.IsNaN(heightCM) || math.IsNaN(weightKG) {
		return 0, false
	}
	weightKG = NormalizeWeight(weightKG)
	m := heightCM / 100
	return RoundBMI(weightKG / (m * m)), true
}

// RoundBMI rounds to the two decimals shown on screen.
func RoundBMI(bmi float64) float64 {
	return math.Round(bmi*100) / 100
}

// FormatBMI renders a BMI for display, or "" when it is undefined.
func FormatBMI(heightCM, weightKG float64) string {
	bmi, ok := ComputeBMI(heightCM, weightKG)
	if !ok {
		return ""
	}
	return strconv.FormatFloat(bmi, 'f', 2, 64)
}

// ToPredictionRequest maps a form snapshot to the backend payload. Enum labels
// outside the fixed tables are rejected rather than defaulted.
func ToPredictionRequest(input domain.AssessmentInput) (*domain.PredictionRequest, error) {
	chol, ok := levelCodes[input.Cholesterol]
	if !ok {
		return nil, domain.NewInvalidInputError("chol", string(input.Cholesterol))
	}
	gluc, ok := levelCodes[input.Glucose]
	if !ok {
		return nil, domain.NewInvalidInputError("gluc", string(input.Glucose))
	}
	smoke, ok := yesNoCodes[input.Smoking]
	if !ok {
		return nil, domain.NewInvalidInputError("smoke", string(input.Smoking))
	}
	alcohol, ok := yesNoCodes[input.Alcohol]
	if !ok {
		return nil, domain.NewInvalidInputError("alcohol", string(input.Alcohol))
	}
	active, ok := activityCodes[input.PhysicalActivity]
	if !ok {
		return nil, domain.NewInvalidInputError("active", string(input.PhysicalActivity))
	}

	req := &domain.PredictionRequest{
		Age:              input.Age,
		Cholesterol:      chol,
		Glucose:          gluc,
		SystolicBP:       input.SystolicBP,
		DiastolicBP:      input.DiastolicBP,
		SmokingStatus:    smoke,
		AlcoholIntake:    alcohol,
		PhysicalActivity: active,
	}
	if bmi, ok := ComputeBMI(input.Height, input.Weight); ok {
		req.BMI = &bmi
	}
	return req, nil
}
