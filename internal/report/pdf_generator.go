package report

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/user/wind_analyzer_go/internal/analysis"
	"github.com/user/wind_analyzer_go/internal/backend"
)

const (
	inchToMm               = 25.4
	pdfPageWidthLandscape  = 11 * inchToMm // Letter landscape
	pdfPageHeightLandscape = 8.5 * inchToMm
	pdfMargin              = 0.5 * inchToMm
	pdfContentWidth        = pdfPageWidthLandscape - (2 * pdfMargin)

	maxRankedRows = 10
)

// DefaultTitle is used when the dashboard has none.
const DefaultTitle = "Wind Plant Analysis Report"

// pdfStyler holds reusable styling and state for PDF generation
type pdfStyler struct {
	pdf         *gofpdf.Fpdf
	styles      map[string]func()
	lineHeight  float64
	currentY    float64 // manual Y tracking for flowing content
	pageHeight  float64
	contentTopY float64
	images      int
}

func newPDFStyler(pdf *gofpdf.Fpdf) *pdfStyler {
	s := &pdfStyler{
		pdf:         pdf,
		styles:      make(map[string]func()),
		lineHeight:  6,
		pageHeight:  pdfPageHeightLandscape - pdfMargin,
		contentTopY: pdfMargin,
	}
	s.currentY = s.contentTopY
	s.defineStyles()
	return s
}

func (s *pdfStyler) defineStyles() {
	s.styles["h1"] = func() {
		s.pdf.SetFont("Arial", "B", 16)
		s.pdf.SetTextColor(0, 0, 0)
	}
	s.styles["h2"] = func() {
		s.pdf.SetFont("Arial", "B", 14)
		s.pdf.SetTextColor(0, 0, 0)
	}
	s.styles["normal"] = func() {
		s.pdf.SetFont("Arial", "", 10)
		s.pdf.SetTextColor(0, 0, 0)
	}
	s.styles["muted"] = func() {
		s.pdf.SetFont("Arial", "I", 9)
		s.pdf.SetTextColor(100, 100, 100)
	}
	s.styles["tableHeader"] = func() {
		s.pdf.SetFont("Arial", "B", 9)
		s.pdf.SetFillColor(200, 200, 200)
		s.pdf.SetTextColor(0, 0, 0)
	}
	s.styles["tableCell"] = func() {
		s.pdf.SetFont("Arial", "", 9)
		s.pdf.SetTextColor(50, 50, 50)
	}
}

func (s *pdfStyler) applyStyle(styleName string) {
	if fn, ok := s.styles[styleName]; ok {
		fn()
	} else {
		s.styles["normal"]()
	}
}

func (s *pdfStyler) newPage() {
	s.pdf.AddPage()
	s.currentY = s.contentTopY
}

func (s *pdfStyler) checkAddPage(neededHeight float64) {
	if s.currentY+neededHeight > s.pageHeight {
		s.newPage()
	}
}

func (s *pdfStyler) writeParagraph(text string, styleName string, align string) {
	s.applyStyle(styleName)
	lines := s.pdf.SplitLines([]byte(text), pdfContentWidth)
	s.checkAddPage(float64(max(len(lines), 1)) * s.lineHeight)

	s.pdf.SetXY(pdfMargin, s.currentY)
	s.pdf.MultiCell(pdfContentWidth, s.lineHeight, text, "", align, false)
	s.currentY = s.pdf.GetY() + 1
}

func (s *pdfStyler) addSpacer(height float64) {
	s.currentY += height
	if s.currentY > s.pageHeight {
		s.newPage()
	}
}

// writeTable draws a bordered table. widthsRel are fractions of the content
// width.
func (s *pdfStyler) writeTable(headers []string, widthsRel []float64, rows [][]string) {
	widths := make([]float64, len(widthsRel))
	for i, rel := range widthsRel {
		widths[i] = rel * pdfContentWidth
	}
	header := func() {
		x := pdfMargin
		s.applyStyle("tableHeader")
		for i, h := range headers {
			s.pdf.SetXY(x, s.currentY)
			s.pdf.CellFormat(widths[i], s.lineHeight, h, "1", 0, "C", true, 0, "")
			x += widths[i]
		}
		s.currentY += s.lineHeight
	}

	s.checkAddPage(s.lineHeight * 2)
	header()
	for _, row := range rows {
		if s.currentY+s.lineHeight > s.pageHeight {
			s.newPage()
			header()
		}
		x := pdfMargin
		s.applyStyle("tableCell")
		for i, cell := range row {
			s.pdf.SetXY(x, s.currentY)
			s.pdf.CellFormat(widths[i], s.lineHeight, cell, "1", 0, "C", false, 0, "")
			x += widths[i]
		}
		s.currentY += s.lineHeight
	}
	s.addSpacer(3)
}

// keyValueTable is a two column table.
func (s *pdfStyler) keyValueTable(rows [][2]string) {
	cells := make([][]string, len(rows))
	for i, r := range rows {
		cells[i] = []string{r[0], r[1]}
	}
	s.writeTable([]string{"Quantity", "Value"}, []float64{0.4, 0.6}, cells)
}

func (s *pdfStyler) addImage(imageBytes []byte, imageName string, width float64, height float64, caption string) {
	s.images++
	name := fmt.Sprintf("%s_%d", imageName, s.images)
	s.pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(imageBytes))

	if width > pdfContentWidth {
		height *= pdfContentWidth / width
		width = pdfContentWidth
	}
	captionHeight := 0.0
	if caption != "" {
		captionHeight = s.lineHeight + 1
	}
	s.checkAddPage(height + captionHeight)

	x := pdfMargin + (pdfContentWidth-width)/2
	s.pdf.ImageOptions(name, x, s.currentY, width, height, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	s.currentY += height

	if caption != "" {
		s.addSpacer(1)
		s.writeParagraph(caption, "muted", "C")
	}
	s.addSpacer(2)
}

func fmtFloat(v float64, prec int, unit string) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	out := strconv.FormatFloat(v, 'f', prec, 64)
	if unit != "" {
		out += " " + unit
	}
	return out
}

func fmtDate(t time.Time) string {
	if t.IsZero() {
		return "n/a"
	}
	return t.Format("2006-01-02")
}

// BuildPDFReport writes the dashboard to filepath. plotImages are keyed by
// the Plot* constants; missing charts are noted in the text.
func BuildPDFReport(filepath string, d *Dashboard, plotImages map[string][]byte) error {
	if d == nil {
		return fmt.Errorf("no dashboard to report")
	}
	pdf := gofpdf.New("L", "mm", "Letter", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(false, pdfMargin)
	pdf.AddPage()

	s := newPDFStyler(pdf)
	title := d.Title
	if title == "" {
		title = DefaultTitle
	}
	generated := d.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}
	s.writeParagraph(title, "h1", "C")
	s.writeParagraph(fmt.Sprintf("Generated %s", generated.Format("2006-01-02 15:04")), "muted", "C")
	s.addSpacer(5)

	writePlantSection(s, d.Plant, d.Turbines)
	writeWindSection(s, d.Wind, d.SCADA)
	writeAEPSection(s, d)
	writeLossSection(s, d)

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("failed to lay out report tables: %w", err)
	}
	writeCharts(s, d, plotImages)

	return pdf.OutputFileAndClose(filepath)
}

func writePlantSection(s *pdfStyler, plant *backend.PlantSummary, turbines []backend.Turbine) {
	s.writeParagraph("Plant", "h2", "L")
	if plant == nil {
		s.writeParagraph("No plant summary available.", "normal", "L")
		s.addSpacer(3)
		return
	}
	s.keyValueTable([][2]string{
		{"Name", plant.Name},
		{"Capacity", fmtFloat(plant.CapacityMW, 2, "MW")},
		{"Turbines", strconv.Itoa(plant.TurbineCount)},
		{"Data range", fmt.Sprintf("%s to %s", fmtDate(plant.DateRangeStart), fmtDate(plant.DateRangeEnd))},
		{"Location", fmt.Sprintf("%.4f, %.4f", plant.Latitude, plant.Longitude)},
	})
	if len(turbines) == 0 {
		return
	}
	rows := make([][]string, len(turbines))
	for i, t := range turbines {
		rows[i] = []string{
			t.AssetID, t.Type,
			fmtFloat(t.RatedPowerKW, 0, "kW"),
			fmtFloat(t.HubHeight, 1, "m"),
			fmtFloat(t.RotorDiameter, 1, "m"),
		}
	}
	s.writeTable([]string{"Turbine", "Type", "Rated power", "Hub height", "Rotor diameter"},
		[]float64{0.2, 0.3, 0.15, 0.15, 0.2}, rows)
}

func writeWindSection(s *pdfStyler, wind *analysis.WindSummary, scada *analysis.AnalysisResults) {
	s.writeParagraph("Wind Resource", "h2", "L")
	if wind == nil {
		s.writeParagraph("No wind data available.", "normal", "L")
		s.addSpacer(3)
		return
	}
	s.keyValueTable([][2]string{
		{"Samples (valid / total)", fmt.Sprintf("%d / %d", wind.ValidSamples, wind.Samples)},
		{"Mean wind speed", fmtFloat(wind.MeanSpeed, 2, "m/s")},
		{"Standard deviation", fmtFloat(wind.StdDevSpeed, 2, "m/s")},
		{"Maximum wind speed", fmtFloat(wind.MaxSpeed, 2, "m/s")},
		{"Calm fraction", fmtFloat(wind.CalmFraction*100, 1, "%")},
		{"Weibull k / c", fmt.Sprintf("%s / %s", fmtFloat(wind.WeibullK, 2, ""), fmtFloat(wind.WeibullC, 2, "m/s"))},
		{"Prevailing direction", fmt.Sprintf("%s (%s)", fmtFloat(wind.PrevailingDirectionDeg, 1, "deg"), fmtFloat(wind.PrevailingFrequency*100, 1, "%"))},
	})

	if scada == nil || len(scada.RankedByMeanSpeed) == 0 {
		return
	}
	writeRanking(s, "Turbines by Mean Wind Speed", "Mean speed (m/s)", scada.RankedByMeanSpeed)
	if len(scada.AnalysisErrors) > 0 {
		s.writeParagraph(strings.Join(scada.AnalysisErrors, "\n"), "muted", "L")
	}
}

func writeRanking(s *pdfStyler, title, valueLabel string, ranked []analysis.RankedTurbine) {
	s.writeParagraph(title, "h2", "L")
	rows := make([][]string, 0, maxRankedRows)
	for i, item := range ranked {
		if i >= maxRankedRows {
			break
		}
		rows = append(rows, []string{strconv.Itoa(i + 1), item.TurbineID, fmt.Sprintf("%.3f", item.Value)})
	}
	s.writeTable([]string{"Rank", "Turbine", valueLabel}, []float64{0.15, 0.45, 0.4}, rows)
}

func writeAEPSection(s *pdfStyler, d *Dashboard) {
	if d.AEP == nil {
		return
	}
	r := d.AEP
	s.writeParagraph("Annual Energy Production", "h2", "L")
	s.keyValueTable([][2]string{
		{"AEP", fmtFloat(r.AEPGWh, 2, "GWh/yr")},
		{"Uncertainty range", fmt.Sprintf("%s to %s", fmtFloat(r.AEPLowerGWh, 2, ""), fmtFloat(r.AEPUpperGWh, 2, "GWh/yr"))},
		{"Availability loss", fmtFloat(r.AvailabilityPct, 2, "%")},
		{"Curtailment loss", fmtFloat(r.CurtailmentPct, 2, "%")},
		{"Long-term / POR ratio", fmtFloat(r.LTPORRatio, 3, "")},
		{"Regression R2", fmtFloat(r.R2, 3, "")},
		{"Data points", strconv.Itoa(r.NPoints)},
	})
}

func writeLossSection(s *pdfStyler, d *Dashboard) {
	if d.ElectricalLosses == nil && d.WakeLosses == nil && d.Yaw == nil {
		return
	}
	s.writeParagraph("Losses and Turbine Performance", "h2", "L")
	if el := d.ElectricalLosses; el != nil {
		rows := [][2]string{
			{"Electrical loss", fmtFloat(el.LossPercent, 2, "%")},
			{"Turbine energy", fmtFloat(el.TotalTurbineEnergy, 1, "MWh")},
			{"Meter energy", fmtFloat(el.TotalMeterEnergy, 1, "MWh")},
		}
		if el.UncertaintyLower != nil && el.UncertaintyUpper != nil {
			rows = append(rows, [2]string{"Uncertainty", fmt.Sprintf("%.2f to %.2f %%", *el.UncertaintyLower, *el.UncertaintyUpper)})
		}
		s.keyValueTable(rows)
	}
	if wl := d.WakeLosses; wl != nil {
		s.writeParagraph(fmt.Sprintf("Plant wake loss: %s", fmtFloat(wl.PlantWakeLossPercent, 2, "%")), "normal", "L")
		writeRanking(s, "Largest Wake Losses", "Wake loss (%)", analysis.RankTurbines(wl.Turbines))
	}
	if d.Yaw != nil {
		writeRanking(s, "Largest Yaw Misalignment", "Misalignment (deg)", analysis.RankTurbines(d.Yaw.Turbines))
	}
}

func writeCharts(s *pdfStyler, d *Dashboard, plotImages map[string][]byte) {
	plotDefs := []struct {
		Key     string
		Title   string
		Caption string
		Square  bool
		Want    bool
	}{
		{PlotWindRose, "Wind Rose", "Frequency by direction, stacked by speed band", true, d.WindRose != nil},
		{PlotFrequency, "Frequency Table", "Share of observations (%) per sector and speed band", false, d.WindRose != nil},
		{PlotPowerCurve, "Power Curve", "Measured power against wind speed with the fitted curve", false, d.PowerCurve != nil},
		{PlotMonthlyEnergy, "Monthly Energy", "Energy production per calendar month", false, len(d.MonthlyEnergy) > 0},
		{PlotWakeLosses, "Wake Losses", "Wake loss per turbine", false, d.WakeLosses != nil},
		{PlotYawMisalignment, "Yaw Misalignment", "Static yaw misalignment per turbine", false, d.Yaw != nil},
		{PlotAEPDistribution, "AEP Distribution", "Monte Carlo AEP iterations", false, d.AEP != nil && len(d.AEP.IterationsGWh) > 1},
	}

	wideWidth := pdfContentWidth * 0.8
	wideHeight := wideWidth / 2
	squareSide := pdfContentWidth * 0.5

	started := false
	for _, pDef := range plotDefs {
		if !pDef.Want {
			continue
		}
		if !started {
			s.newPage()
			s.writeParagraph("Graphical Analysis", "h1", "C")
			s.addSpacer(3)
			started = true
		}
		s.writeParagraph(pDef.Title, "h2", "L")
		imgBytes, ok := plotImages[pDef.Key]
		if !ok || len(imgBytes) == 0 {
			s.writeParagraph(fmt.Sprintf("Plot for %s not available.", pDef.Title), "normal", "L")
			continue
		}
		if pDef.Square {
			s.addImage(imgBytes, pDef.Key, squareSide, squareSide, pDef.Caption)
		} else {
			s.addImage(imgBytes, pDef.Key, wideWidth, wideHeight, pDef.Caption)
		}
	}
}
