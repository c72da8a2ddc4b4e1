package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/conselho-dev/eleicao-api/internal/models"
)

// RulingPDFExporter renders a challenge decision record as a certificate PDF.
type RulingPDFExporter struct{}

// NewRulingPDFExporter constructs the exporter.
func NewRulingPDFExporter() *RulingPDFExporter {
	return &RulingPDFExporter{}
}

// Render produces the decision certificate for the challenge's latest ruling.
func (e *RulingPDFExporter) Render(challenge *models.Challenge) ([]byte, error) {
	ruling := challenge.CurrentRuling()
	if ruling == nil {
		return nil, fmt.Errorf("challenge %s has no ruling to export", challenge.ID)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 20, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, "DECISION RECORD - ELECTORAL CHALLENGE", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 11)
	rows := [][2]string{
		{"Protocol", challenge.Protocol},
		{"Election", challenge.ElectionID},
		{"Challenge type", string(challenge.Type)},
		{"Target", fmt.Sprintf("%s %s", challenge.TargetKind, challenge.TargetID)},
		{"Instance", fmt.Sprintf("%d", ruling.Instance)},
		{"Outcome", string(ruling.Outcome)},
		{"Judge", ruling.JudgeRef},
		{"Judged at", ruling.JudgedAt.Format("2006-01-02 15:04 MST")},
	}
	if ruling.Penalty != nil {
		rows = append(rows, [2]string{"Penalty", *ruling.Penalty})
	}
	for _, row := range rows {
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(45, 8, row[0], "1", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 11)
		pdf.CellFormat(135, 8, row[1], "1", 1, "", false, 0, "")
	}

	pdf.Ln(6)
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 8, "Reasoning", "", 1, "", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.MultiCell(0, 6, ruling.Reasoning, "1", "", false)

	if ruling.Appealable && challenge.Instance < models.MaxInstance {
		pdf.Ln(4)
		pdf.SetFont("Arial", "I", 9)
		pdf.CellFormat(0, 6, "This decision is subject to appeal within the legal window.", "", 1, "", false, 0, "")
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render ruling pdf: %w", err)
	}
	return buf.Bytes(), nil
}
