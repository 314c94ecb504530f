package export

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"

	"github.com/liamcoop/startrescue/exam"
	"github.com/liamcoop/startrescue/rules"
)

const (
	pageMargin = 10.0 // mm
	cellPad    = 1.5
	lineHeight = 4.0
	fontFamily = "Helvetica"
	fontSize   = 7.5
)

type rgb struct{ r, g, b int }

var (
	headerBg = rgb{11, 18, 32}
	headerFg = rgb{255, 255, 255}
	rowEven  = rgb{255, 255, 255}
	rowOdd   = rgb{238, 242, 246}
	gridLine = rgb{154, 165, 177}
	bodyText = rgb{18, 18, 18}
)

var labelColors = map[rules.Color]rgb{
	rules.Green:  {46, 125, 50},
	rules.Yellow: {249, 168, 37},
	rules.Red:    {198, 40, 40},
	rules.Black:  {0, 0, 0},
}

// labelColor returns the print color for a triage label, or the body color
// for anything else (e.g. "NO ANSWER").
func labelColor(label string) rgb {
	c, err := rules.ParseColor(label)
	if err != nil {
		return bodyText
	}
	return labelColors[c]
}

type pdfTable struct {
	pdf    *gofpdf.Fpdf
	tr     func(string) string
	widths []float64
	pageH  float64
	y      float64
}

// WritePDF renders the records as a landscape A4 table headed by title and
// the examinee's identity. Rows that do not fit move to a new page, which
// repeats the column header.
func WritePDF(w io.Writer, title string, ex exam.Examinee, records []exam.AnswerRecord) error {
	pdf := renderPDF(title, ex, records)
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to write pdf: %w", err)
	}
	return nil
}

func renderPDF(title string, ex exam.Examinee, records []exam.AnswerRecord) *gofpdf.Fpdf {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(false, pageMargin)
	pdf.SetTitle(title, true)
	pdf.SetCreator("startrescue", true)

	t := &pdfTable{
		pdf: pdf,
		tr:  pdf.UnicodeTranslatorFromDescriptor(""),
	}
	pageW, pageH := pdf.GetPageSize()
	t.pageH = pageH
	t.widths = columnWidths(pageW - 2*pageMargin)

	pdf.AddPage()
	t.y = pageMargin
	t.writeTitle(title, ex, records)
	t.writeHeader()

	for i, r := range records {
		t.writeRow(i, recordRow(r))
	}
	return pdf
}

func columnWidths(tableW float64) []float64 {
	var total float64
	for _, c := range columns {
		total += c.weight
	}
	widths := make([]float64, len(columns))
	for i, c := range columns {
		widths[i] = c.weight / total * tableW
	}
	return widths
}

func (t *pdfTable) setText(c rgb) { t.pdf.SetTextColor(c.r, c.g, c.b) }
func (t *pdfTable) setFill(c rgb) { t.pdf.SetFillColor(c.r, c.g, c.b) }

func (t *pdfTable) writeTitle(title string, ex exam.Examinee, records []exam.AnswerRecord) {
	pdf := t.pdf
	t.setText(bodyText)

	pdf.SetFont(fontFamily, "B", 13)
	pdf.SetXY(pageMargin, t.y)
	pdf.CellFormat(0, 7, t.tr(title), "", 1, "L", false, 0, "")
	t.y += 8

	score := 0
	for _, r := range records {
		if r.Match {
			score++
		}
	}
	identity := fmt.Sprintf("Name: %s   Sector: %s   Registration: %s   Email: %s   Score: %d/%d",
		ex.Name, ex.Sector, ex.Registration, orBlank(ex.Email), score, len(records))

	pdf.SetFont(fontFamily, "", 9)
	pdf.SetXY(pageMargin, t.y)
	pdf.CellFormat(0, 5, t.tr(identity), "", 1, "L", false, 0, "")
	t.y += 7
}

func (t *pdfTable) writeHeader() {
	pdf := t.pdf
	pdf.SetFont(fontFamily, "B", fontSize)

	h := lineHeight + 2*cellPad
	t.setFill(headerBg)
	pdf.Rect(pageMargin, t.y, t.tableWidth(), h, "F")

	t.setText(headerFg)
	x := pageMargin
	for i, c := range columns {
		pdf.SetXY(x+cellPad, t.y+cellPad)
		pdf.CellFormat(t.widths[i]-2*cellPad, lineHeight, c.title, "", 0, "L", false, 0, "")
		x += t.widths[i]
	}
	t.y += h
}

func (t *pdfTable) writeRow(index int, cells []string) {
	pdf := t.pdf
	pdf.SetFont(fontFamily, "", fontSize)

	lines := make([][]string, len(cells))
	rowLines := 1
	for i, cell := range cells {
		lines[i] = t.cellLines(i, cell)
		rowLines = max(rowLines, len(lines[i]))
	}
	rowH := float64(rowLines)*lineHeight + 2*cellPad

	if t.y+rowH > t.pageH-pageMargin {
		pdf.AddPage()
		t.y = pageMargin
		t.writeHeader()
		pdf.SetFont(fontFamily, "", fontSize)
	}

	bg := rowEven
	if index%2 == 1 {
		bg = rowOdd
	}
	t.setFill(bg)
	pdf.Rect(pageMargin, t.y, t.tableWidth(), rowH, "F")

	pdf.SetDrawColor(gridLine.r, gridLine.g, gridLine.b)
	pdf.SetLineWidth(0.2)

	x := pageMargin
	for i, col := range columns {
		color := bodyText
		if col.title == "Chosen" || col.title == "Correct" {
			color = labelColor(cells[i])
		}
		t.setText(color)
		for n, line := range lines[i] {
			pdf.SetXY(x+cellPad, t.y+cellPad+float64(n)*lineHeight)
			pdf.CellFormat(t.widths[i]-2*cellPad, lineHeight, line, "", 0, "L", false, 0, "")
		}
		pdf.Line(x, t.y, x, t.y+rowH)
		x += t.widths[i]
	}
	pdf.Line(x, t.y, x, t.y+rowH)
	pdf.Line(pageMargin, t.y+rowH, x, t.y+rowH)

	t.y += rowH
}

// cellLines returns the translated text of a cell, wrapped to its column
// when the column allows it.
func (t *pdfTable) cellLines(col int, text string) []string {
	text = t.tr(text)
	if !columns[col].wrap {
		return []string{text}
	}

	split := t.pdf.SplitLines([]byte(text), t.widths[col]-2*cellPad)
	if len(split) == 0 {
		return []string{""}
	}
	out := make([]string, len(split))
	for i, l := range split {
		out[i] = string(l)
	}
	return out
}

func (t *pdfTable) tableWidth() float64 {
	var w float64
	for _, cw := range t.widths {
		w += cw
	}
	return w
}
