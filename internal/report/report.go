// Package report renders a stored assessment as a downloadable PDF.
package report

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cardioml-web/internal/domain"
	"github.com/cardioml-web/internal/service"
	"github.com/go-pdf/fpdf"
	"github.com/sirupsen/logrus"
)

// ContentType is the MIME type of generated reports.
const ContentType = "application/pdf"

// Disclaimer closes every report.
const Disclaimer = "Disclaimer: This AI-generated report is intended for educational and " +
	"decision-support purposes only. It does not replace professional medical advice, " +
	"diagnosis, or treatment."

const (
	title            = "Cardiovascular Disease Risk Assessment Report"
	defaultModelName = "Random Forest Classifier"

	margin       = 20.0
	headerHeight = 50.0
	bannerWidth  = 120.0
	bannerHeight = 40.0
	rowHeight    = 8.0
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// Report is a rendered PDF ready to be sent to the browser.
type Report struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Generator builds PDF reports.
type Generator struct {
	logger   *logrus.Logger
	compress bool
}

// Option customizes a Generator.
type Option func(*Generator)

// WithCompression toggles content stream compression. Uncompressed output is
// useful for inspecting the rendered text.
func WithCompression(enabled bool) Option {
	return func(g *Generator) { g.compress = enabled }
}

// NewGenerator creates a report generator.
func NewGenerator(logger *logrus.Logger, opts ...Option) *Generator {
	g := &Generator{logger: logger, compress: true}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Filename returns "CardioML_Report_<name>_<YYYY-MM-DD>.pdf" for the generation date.
func Filename(patientName string, generatedAt time.Time) string {
	name := strings.TrimSpace(patientName)
	if name == "" {
		name = "Patient"
	} else {
		name = whitespaceRun.ReplaceAllString(name, "_")
	}
	return fmt.Sprintf("CardioML_Report_%s_%s.pdf", name, generatedAt.UTC().Format("2006-01-02"))
}

// Generate renders the report. Any rendering failure, including a panic inside
// the PDF library, is returned as a *domain.ReportError.
func (g *Generator) Generate(record *domain.AssessmentRecord, now time.Time) (rep *Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			rep = nil
			err = &domain.ReportError{Err: fmt.Errorf("panic while rendering: %v", r)}
		}
		if err != nil {
			g.logger.WithError(err).Error("Failed to generate PDF report")
		}
	}()

	if record == nil {
		return nil, &domain.ReportError{Err: domain.ErrResultNotFound}
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(g.compress)
	pdf.SetCreationDate(now.UTC())
	pdf.SetModificationDate(now.UTC())
	pdf.SetTitle(title, true)
	pdf.SetCreator("CardioML", false)
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, margin)
	pdf.AddPage()

	w := &writer{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	w.pageW, w.pageH = pdf.GetPageSize()

	result := record.Result
	input := record.Input

	w.header(result, now)
	w.banner(result)
	w.patientInformation(input)
	w.clinicalMeasurements(input)
	w.lifestyleFactors(input)
	w.disclaimer()

	if pdf.Err() {
		return nil, &domain.ReportError{Err: pdf.Error()}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, &domain.ReportError{Err: err}
	}

	g.logger.WithFields(logrus.Fields{
		"risk_category": result.RiskCategory,
		"bytes":         buf.Len(),
	}).Info("Generated PDF report")

	return &Report{
		Filename:    Filename(input.PatientName, now),
		ContentType: ContentType,
		Data:        buf.Bytes(),
	}, nil
}

type writer struct {
	pdf   *fpdf.Fpdf
	tr    func(string) string
	pageW float64
	pageH float64
	y     float64
}

func (w *writer) header(result domain.PredictionResult, now time.Time) {
	p := w.pdf
	p.SetFillColor(41, 45, 62)
	p.Rect(0, 0, w.pageW, headerHeight, "F")

	p.SetTextColor(255, 255, 255)
	p.SetFont("Helvetica", "B", 18)
	p.SetXY(0, 24)
	p.CellFormat(w.pageW, 12, w.tr(title), "", 0, "C", false, 0, "")

	reportDate := now.UTC().Format("1/2/2006, 3:04:05 PM")
	if t, ok := service.ParseTimestamp(result.Timestamp); ok {
		reportDate = t.Format("1/2/2006, 3:04:05 PM")
	}
	modelName := result.ModelName
	if modelName == "" {
		modelName = defaultModelName
	}

	w.y = 60
	p.SetTextColor(100, 100, 100)
	p.SetFont("Helvetica", "", 10)
	p.Text(margin, w.y, w.tr("Report Generated: "+reportDate))
	model := w.tr("ML Model Used: " + modelName)
	p.Text(w.pageW-margin-p.GetStringWidth(model), w.y, model)
	w.y += 20
}

func (w *writer) banner(result domain.PredictionResult) {
	p := w.pdf
	rgb := service.RiskColor(result.RiskCategory).RGB
	x := w.pageW/2 - bannerWidth/2

	p.SetFillColor(rgb[0], rgb[1], rgb[2])
	p.SetDrawColor(rgb[0], rgb[1], rgb[2])
	p.RoundedRect(x, w.y, bannerWidth, bannerHeight, 5, "1234", "F")

	p.SetTextColor(255, 255, 255)
	p.SetFont("Helvetica", "B", 20)
	p.SetXY(x, w.y+8)
	p.CellFormat(bannerWidth, 10, w.tr(strings.ToUpper(string(result.RiskCategory))), "", 0, "C", false, 0, "")

	p.SetFont("Helvetica", "B", 12)
	p.SetXY(x, w.y+24)
	p.CellFormat(bannerWidth, 8, "Risk Probability: "+number(result.RiskPercentage)+"%", "", 0, "C", false, 0, "")

	w.y += bannerHeight + 25
}

func (w *writer) section(name string) {
	p := w.pdf
	p.SetTextColor(0, 0, 0)
	p.SetFont("Helvetica", "B", 14)
	p.Text(margin, w.y, name)
	w.y += 10
	p.SetDrawColor(200, 200, 200)
	p.Line(margin, w.y, w.pageW-margin, w.y)
	w.y += 10
	p.SetFontSize(11)
}

type field struct {
	label string
	value string
}

// columns lays out two label/value columns starting at the current y.
func (w *writer) columns(left, right []field, gap float64) {
	col1, col2 := margin, w.pageW/2+10
	y1, y2 := w.y, w.y
	for i, f := range left {
		w.field(col1, y1, f)
		if i < len(left)-1 {
			y1 += rowHeight
		}
	}
	for i, f := range right {
		w.field(col2, y2, f)
		if i < len(right)-1 {
			y2 += rowHeight
		}
	}
	if y2 > y1 {
		y1 = y2
	}
	w.y = y1 + gap
}

func (w *writer) field(x, y float64, f field) {
	p := w.pdf
	label := f.label + ":"
	p.SetFont("Helvetica", "B", 11)
	p.Text(x, y, label)
	offset := p.GetStringWidth(label) + 3
	p.SetFont("Helvetica", "", 11)
	p.Text(x+offset, y, w.tr(f.value))
}

func (w *writer) patientInformation(in domain.AssessmentInput) {
	w.section("Patient Information")

	bmi := service.FormatBMI(in.Height, in.Weight)
	if bmi == "" {
		bmi = "N/A"
	}

	var left []field
	if name := strings.TrimSpace(in.PatientName); name != "" {
		left = append(left, field{"Patient Name", name})
	}
	left = append(left,
		field{"Age", number(in.Age) + " years"},
		field{"Height", number(in.Height) + " cm"},
		field{"BMI", bmi},
	)
	right := []field{
		{"Gender", string(in.Gender)},
		{"Weight", number(in.Weight) + " kg"},
	}
	w.columns(left, right, 15)
}

func (w *writer) clinicalMeasurements(in domain.AssessmentInput) {
	w.section("Clinical Measurements")
	w.columns(
		[]field{
			{"Systolic BP", number(in.SystolicBP) + " mm Hg"},
			{"Cholesterol", orDefault(string(in.Cholesterol), "N/A")},
		},
		[]field{
			{"Diastolic BP", number(in.DiastolicBP) + " mm Hg"},
			{"Glucose", orDefault(string(in.Glucose), "N/A")},
		},
		15,
	)
}

func (w *writer) lifestyleFactors(in domain.AssessmentInput) {
	w.section("Lifestyle Factors")

	active := "No"
	if in.PhysicalActivity == domain.ActivityActive {
		active = "Yes"
	}
	w.columns(
		[]field{
			{"Smoker", orDefault(string(in.Smoking), "No")},
			{"Physical Activity", active},
		},
		[]field{
			{"Alcohol Intake", orDefault(string(in.Alcohol), "No")},
		},
		20,
	)
}

func (w *writer) disclaimer() {
	p := w.pdf
	if w.y > w.pageH-40 {
		p.AddPage()
		w.y = margin
	}
	p.SetTextColor(120, 120, 120)
	p.SetFont("Helvetica", "I", 9)
	p.SetXY(margin, w.y-4)
	p.MultiCell(w.pageW-2*margin, 5, Disclaimer, "", "J", false)
}

func number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
