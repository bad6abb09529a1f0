package report

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/cardioml-web/internal/domain"
	"github.com/cardioml-web/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord() *domain.AssessmentRecord {
	return &domain.AssessmentRecord{
		Result: domain.PredictionResult{
			RiskPercentage: 67.5,
			RiskCategory:   domain.RiskHigh,
			ModelName:      "XGBoost Classifier",
			ModelVersion:   "1.2.0",
			Timestamp:      "2024-03-05T10:00:00Z",
		},
		Input: domain.AssessmentInput{
			PatientName:      "Jane  Doe",
			Age:              45,
			Gender:           domain.GenderFemale,
			Height:           170,
			Weight:           80,
			SystolicBP:       135,
			DiastolicBP:      85,
			Cholesterol:      domain.LevelAboveNormal,
			Glucose:          domain.LevelNormal,
			Smoking:          domain.Yes,
			Alcohol:          domain.No,
			PhysicalActivity: domain.ActivityInactive,
		},
	}
}

func TestFilename(t *testing.T) {
	day := time.Date(2024, 6, 1, 23, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "Jane Doe", "CardioML_Report_Jane_Doe_2024-06-01.pdf"},
		{"whitespace runs collapse", "Jane \t  Mary   Doe", "CardioML_Report_Jane_Mary_Doe_2024-06-01.pdf"},
		{"surrounding space trimmed", "  Jane ", "CardioML_Report_Jane_2024-06-01.pdf"},
		{"empty", "", "CardioML_Report_Patient_2024-06-01.pdf"},
		{"blank", "   ", "CardioML_Report_Patient_2024-06-01.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Filename(tt.in, day))
		})
	}
}

func TestGenerate(t *testing.T) {
	g := NewGenerator(logging.Discard(), WithCompression(false))
	now := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

	rep, err := g.Generate(testRecord(), now)

	require.NoError(t, err)
	assert.Equal(t, "CardioML_Report_Jane_Doe_2024-06-01.pdf", rep.Filename)
	assert.Equal(t, ContentType, rep.ContentType)
	assert.True(t, bytes.HasPrefix(rep.Data, []byte("%PDF-")))

	// Sections appear in a fixed order.
	order := []string{
		"(Cardiovascular Disease Risk Assessment Report)",
		"(Report Generated: 3/5/2024, 10:00:00 AM)",
		"(ML Model Used: XGBoost Classifier)",
		"(HIGH RISK)",
		"(Risk Probability: 67.5%)",
		"(Patient Information)",
		"(Jane  Doe)",
		"(27.68)",
		"(Clinical Measurements)",
		"(135 mm Hg)",
		"(Lifestyle Factors)",
		"(Disclaimer:",
	}
	last := -1
	for _, s := range order {
		idx := bytes.Index(rep.Data, []byte(s))
		require.GreaterOrEqual(t, idx, 0, "missing %q", s)
		assert.Greater(t, idx, last, "%q out of order", s)
		last = idx
	}
}

func TestGenerate_Defaults(t *testing.T) {
	g := NewGenerator(logging.Discard(), WithCompression(false))
	record := testRecord()
	record.Result.ModelName = ""
	record.Result.Timestamp = ""
	record.Input.PatientName = ""
	record.Input.Height = 0
	record.Input.PhysicalActivity = domain.ActivityActive

	rep, err := g.Generate(record, time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC))

	require.NoError(t, err)
	assert.Equal(t, "CardioML_Report_Patient_2024-06-01.pdf", rep.Filename)
	assert.Contains(t, string(rep.Data), "(ML Model Used: Random Forest Classifier)")
	assert.Contains(t, string(rep.Data), "(Report Generated: 6/1/2024, 9:30:00 AM)")
	assert.Contains(t, string(rep.Data), "(N/A)")
	assert.NotContains(t, string(rep.Data), "(Patient Name:)")
}

func TestGenerate_Compressed(t *testing.T) {
	g := NewGenerator(logging.Discard())

	rep, err := g.Generate(testRecord(), time.Now())

	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(rep.Data, []byte("%PDF-")))
	assert.NotContains(t, string(rep.Data), "(Patient Information)")
}

func TestGenerate_NilRecord(t *testing.T) {
	g := NewGenerator(logging.Discard())

	rep, err := g.Generate(nil, time.Now())

	assert.Nil(t, rep)
	var rerr *domain.ReportError
	require.True(t, errors.As(err, &rerr))
	assert.ErrorIs(t, err, domain.ErrResultNotFound)
}
