package export

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
)

// PDFExporter lays a transcript out as a chat log: a header line per
// message followed by its text.
type PDFExporter struct {
	pageSize string
}

func NewPDFExporter() *PDFExporter {
	return &PDFExporter{pageSize: "A4"}
}

func (p *PDFExporter) Export(t *Transcript, w io.Writer) error {
	pdf := gofpdf.New("P", "mm", p.pageSize, "")
	pdf.SetAutoPageBreak(true, 15)
	// core fonts are cp1252; the translator maps UTF-8 text onto it
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	font := t.Style.FontFamily
	if font == "" {
		font = "Arial"
	}
	pdf.AddPage()

	if t.Title != "" {
		pdf.SetFont(font, "B", 16)
		pdf.CellFormat(0, 10, tr(t.Title), "", 1, "L", false, 0, "")
	}
	if t.Subtitle != "" {
		pdf.SetFont(font, "", t.Style.FontSize)
		pdf.MultiCell(0, 5, tr(t.Subtitle), "", "L", false)
	}
	if !t.GeneratedAt.IsZero() {
		pdf.SetFont(font, "I", 8)
		pdf.CellFormat(0, 5, "Generated: "+t.GeneratedAt.Format(t.Style.TimeLayout), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	if len(t.Entries) == 0 {
		pdf.SetFont(font, "I", t.Style.FontSize)
		pdf.CellFormat(0, 6, "No messages", "", 1, "L", false, 0, "")
	}

	for _, entry := range t.Entries {
		header := fmt.Sprintf("%s  %s", entry.At.Format(t.Style.TimeLayout), entry.Sender)
		if entry.Status != "" {
			header += "  [" + entry.Status + "]"
		}
		r, g, b := hexToRGB(t.Style.InboundColor)
		if entry.Outbound {
			r, g, b = hexToRGB(t.Style.OutboundColor)
		}
		pdf.SetFillColor(r, g, b)

		pdf.SetFont(font, "B", t.Style.FontSize-1)
		pdf.CellFormat(0, 5, tr(header), "", 1, "L", true, 0, "")

		body := entry.Text
		if body == "" {
			body = "(" + entry.Kind + ")"
		}
		pdf.SetFont(font, "", t.Style.FontSize)
		pdf.MultiCell(0, 5, tr(body), "", "L", true)
		pdf.Ln(2)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func (p *PDFExporter) ContentType() string {
	return "application/pdf"
}

func (p *PDFExporter) Extension() string {
	return ".pdf"
}

func hexToRGB(hex string) (int, int, int) {
	hex = stripHash(hex)
	if len(hex) != 6 {
		return 255, 255, 255
	}
	var r, g, b int
	if _, err := fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b); err != nil {
		return 255, 255, 255
	}
	return r, g, b
}
