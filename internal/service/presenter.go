package service

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cardioml-web/internal/domain"
)

// GaugeRadius is the radius of the circular risk gauge on the results page.
const GaugeRadius = 90.0

const unknownReferenceID = "CML-XXXX"

// timestampLayouts lists the shapes the backend has been seen to emit. Zoneless
// layouts are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// RiskPalette holds the colours used to render one risk category.
type RiskPalette struct {
	Name   string
	Stroke string
	RGB    [3]int
}

var (
	paletteHigh     = RiskPalette{Name: "red", Stroke: "#f87171", RGB: [3]int{220, 53, 69}}
	paletteModerate = RiskPalette{Name: "amber", Stroke: "#fcd34d", RGB: [3]int{255, 193, 7}}
	paletteLow      = RiskPalette{Name: "green", Stroke: "#71f1a0", RGB: [3]int{40, 167, 69}}
)

// RiskColor picks the palette for a category. Anything that is not High or
// Moderate renders green.
func RiskColor(category domain.RiskCategory) RiskPalette {
	switch category {
	case domain.RiskHigh:
		return paletteHigh
	case domain.RiskModerate:
		return paletteModerate
	default:
		return paletteLow
	}
}

// ParseTimestamp reads a backend timestamp in any accepted layout.
func ParseTimestamp(ts string) (time.Time, bool) {
	ts = strings.TrimSpace(ts)
	if ts == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// ReferenceID derives "CML-YYYYMMDD" from the prediction timestamp, or
// "CML-XXXX" when it is absent or unreadable.
func ReferenceID(ts string) string {
	t, ok := ParseTimestamp(ts)
	if !ok {
		return unknownReferenceID
	}
	return "CML-" + t.Format("20060102")
}

// FormatDisplayDate renders the prediction time for the results header.
func FormatDisplayDate(ts string) string {
	if strings.TrimSpace(ts) == "" {
		return "N/A"
	}
	t, ok := ParseTimestamp(ts)
	if !ok {
		return ts
	}
	return t.Format("Jan 2, 2006, 03:04 PM")
}

// Gauge is the SVG geometry of the risk ring.
type Gauge struct {
	Radius        float64
	Circumference float64
	DashOffset    float64
}

// NewGauge fills the ring proportionally to a 0-100 percentage.
func NewGauge(percentage float64) Gauge {
	p := math.Max(0, math.Min(100, percentage))
	c := 2 * math.Pi * GaugeRadius
	return Gauge{
		Radius:        GaugeRadius,
		Circumference: c,
		DashOffset:    c - (p/100)*c,
	}
}

// FeatureCard is one contributing factor shown under the risk score.
type FeatureCard struct {
	Key          string
	Label        string
	Value        string
	Impact       float64
	Description  string
	Level        string
	BarWidth     float64
	Illustrative bool
}

// Positive reports whether the factor raises risk.
func (f FeatureCard) Positive() bool {
	return f.Impact >= 0
}

// ImpactLabel renders the impact as a signed percentage, e.g. "+12% Impact".
func (f FeatureCard) ImpactLabel() string {
	sign := ""
	if f.Impact >= 0 {
		sign = "+"
	}
	return sign + formatNumber(f.Impact) + "% Impact"
}

// illustrativeImpacts are shown when the backend sends no feature impacts at all.
var illustrativeImpacts = map[string]float64{
	"systolic_bp":       12,
	"cholesterol":       8,
	"age":               5,
	"physical_activity": -4,
}

type featureSpec struct {
	key      string
	label    string
	value    func(domain.AssessmentInput) string
	describe func(impact float64) string
}

var featureSpecs = []featureSpec{
	{
		key:   "systolic_bp",
		label: "Blood Pressure",
		value: func(in domain.AssessmentInput) string {
			return formatNumber(in.SystolicBP) + "/" + formatNumber(in.DiastolicBP) + " mmHg"
		},
		describe: func(impact float64) string {
			switch {
			case impact >= 10:
				return "Significantly above clinical guidelines."
			case impact >= 5:
				return "Elevated levels contributing to score."
			default:
				return "Within normal range."
			}
		},
	},
	{
		key:   "cholesterol",
		label: "Total Cholesterol",
		value: func(in domain.AssessmentInput) string { return labelOrNA(string(in.Cholesterol)) },
		describe: func(impact float64) string {
			if impact >= 8 {
				return "Elevated levels contributing to score."
			}
			return "Within acceptable range."
		},
	},
	{
		key:      "age",
		label:    "Patient Age",
		value:    func(in domain.AssessmentInput) string { return formatNumber(in.Age) + " Years" },
		describe: func(float64) string { return "Demographic baseline adjustment." },
	},
	{
		key:   "physical_activity",
		label: "Physical Activity",
		value: func(in domain.AssessmentInput) string { return labelOrNA(string(in.PhysicalActivity)) },
		describe: func(impact float64) string {
			if impact < 0 {
				return "Protective factor reducing overall risk."
			}
			return "Neutral impact on risk assessment."
		},
	},
}

// ImpactLevel buckets an impact by magnitude.
func ImpactLevel(impact float64) string {
	a := math.Abs(impact)
	switch {
	case a >= 10:
		return "high"
	case a >= 5:
		return "elevated"
	default:
		return "mild"
	}
}

// FeatureCards builds the factor cards in display order. Factors the backend
// did not report are left out; when it reported none at all, illustrative values
// are used and every card is flagged.
func FeatureCards(result domain.PredictionResult, input domain.AssessmentInput) []FeatureCard {
	impacts := result.FeatureImpacts
	illustrative := impacts == nil
	if illustrative {
		impacts = illustrativeImpacts
	}

	cards := make([]FeatureCard, 0, len(featureSpecs))
	for _, spec := range featureSpecs {
		impact, ok := impacts[spec.key]
		if !ok || math.IsNaN(impact) {
			continue
		}
		cards = append(cards, FeatureCard{
			Key:          spec.key,
			Label:        spec.label,
			Value:        spec.value(input),
			Impact:       impact,
			Description:  spec.describe(impact),
			Level:        ImpactLevel(impact),
			BarWidth:     math.Min(math.Abs(impact)*10, 100),
			Illustrative: illustrative,
		})
	}
	return cards
}

// ResultsView is everything the results page renders for one stored assessment.
type ResultsView struct {
	PatientName     string
	ReferenceID     string
	DisplayDate     string
	RiskCategory    domain.RiskCategory
	RiskPercentage  string
	Palette         RiskPalette
	Gauge           Gauge
	BMI             string
	ModelName       string
	ModelVersion    string
	Features        []FeatureCard
	Illustrative    bool
	Recommendations []string
	Input           domain.AssessmentInput
}

// BuildResultsView derives the results page from a stored record.
func BuildResultsView(record *domain.AssessmentRecord) ResultsView {
	result := record.Result
	input := record.Input

	bmi := FormatBMI(input.Height, input.Weight)
	if bmi == "" {
		bmi = "N/A"
	}

	features := FeatureCards(result, input)
	view := ResultsView{
		PatientName:     strings.TrimSpace(input.PatientName),
		ReferenceID:     ReferenceID(result.Timestamp),
		DisplayDate:     FormatDisplayDate(result.Timestamp),
		RiskCategory:    result.RiskCategory,
		RiskPercentage:  formatNumber(result.RiskPercentage),
		Palette:         RiskColor(result.RiskCategory),
		Gauge:           NewGauge(result.RiskPercentage),
		BMI:             bmi,
		ModelName:       result.ModelName,
		ModelVersion:    result.ModelVersion,
		Features:        features,
		Illustrative:    result.FeatureImpacts == nil && len(features) > 0,
		Recommendations: result.Recommendations,
		Input:           input,
	}
	return view
}

// ModelSummary is the display form of the backend model description.
type ModelSummary struct {
	Available       bool
	ModelName       string
	ModelVersion    string
	TrainingDataset string
	Accuracy        string
	AUCROC          string
	F1Score         string
	Library         string
	TrainedAt       string
	Uptime          string
	InferenceMS     string
	Predictions     int
	Features        []domain.FeatureImportance
}

// SummarizeModel formats model info for the pages, substituting the published
// figures when the backend could not be reached.
func SummarizeModel(info *domain.ModelInfo) ModelSummary {
	s := ModelSummary{
		ModelName:       "Random Forest Classifier",
		TrainingDataset: "Heart Disease Research Dataset (HRDD)",
		Accuracy:        "94.2",
		AUCROC:          "96.0",
		F1Score:         "91.0",
	}
	if info == nil {
		return s
	}

	s.Available = true
	if info.ModelName != "" {
		s.ModelName = info.ModelName
	}
	s.ModelVersion = info.ModelVersion
	if info.TrainingDataset != "" {
		s.TrainingDataset = info.TrainingDataset
	}
	if info.Accuracy > 0 {
		s.Accuracy = strconv.FormatFloat(info.Accuracy*100, 'f', 1, 64)
	}
	if info.AUCROC > 0 {
		s.AUCROC = strconv.FormatFloat(info.AUCROC*100, 'f', 1, 64)
	}
	if info.F1Score > 0 {
		s.F1Score = strconv.FormatFloat(info.F1Score*100, 'f', 1, 64)
	}
	s.Features = info.FeatureImportance

	if m := info.ModelMetrics; m != nil {
		s.Library = m.Library
		s.TrainedAt = m.TrainedAt
		s.Uptime = m.Uptime.Formatted
		s.InferenceMS = strconv.FormatFloat(m.InferenceSpeed.AverageMS, 'f', 2, 64)
		s.Predictions = m.InferenceSpeed.TotalPredictions
	}
	return s
}

// CandidateModel is one row of the model comparison table.
type CandidateModel struct {
	Name     string
	Accuracy float64
	Selected bool
}

// CandidateModels lists the architectures evaluated before selecting the deployed one.
func CandidateModels() []CandidateModel {
	return []CandidateModel{
		{Name: "Logistic Regression", Accuracy: 85.2},
		{Name: "Support Vector Machine (SVM)", Accuracy: 86.1},
		{Name: "Naive Bayes", Accuracy: 85.2},
		{Name: "Decision Tree", Accuracy: 79.0},
		{Name: "Random Forest", Accuracy: 90.1, Selected: true},
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func labelOrNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
