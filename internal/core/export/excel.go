package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const transcriptSheet = "Transcript"

var excelColumns = []struct {
	title string
	width float64
}{
	{"Time", 20},
	{"Direction", 11},
	{"Sender", 24},
	{"Type", 10},
	{"Text", 60},
	{"Status", 11},
	{"Message ID", 30},
}

// ExcelExporter writes a transcript as one worksheet, a row per message
type ExcelExporter struct{}

func NewExcelExporter() *ExcelExporter {
	return &ExcelExporter{}
}

func (e *ExcelExporter) Export(t *Transcript, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", transcriptSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	row := 1
	if t.Title != "" {
		titleStyle, err := f.NewStyle(&excelize.Style{
			Font: &excelize.Font{Bold: true, Size: 14, Family: t.Style.FontFamily},
		})
		if err != nil {
			return fmt.Errorf("title style: %w", err)
		}
		f.SetCellValue(transcriptSheet, cell(1, row), t.Title)
		f.SetCellStyle(transcriptSheet, cell(1, row), cell(1, row), titleStyle)
		row++
		if t.Subtitle != "" {
			f.SetCellValue(transcriptSheet, cell(1, row), t.Subtitle)
			row++
		}
		if !t.GeneratedAt.IsZero() {
			f.SetCellValue(transcriptSheet, cell(1, row), "Generated "+t.GeneratedAt.Format(t.Style.TimeLayout))
			row++
		}
		row++
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: t.Style.FontSize, Family: t.Style.FontFamily, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{stripHash(t.Style.HeaderBgColor)}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	inboundStyle, err := e.rowStyle(f, t.Style, t.Style.InboundColor)
	if err != nil {
		return err
	}
	outboundStyle, err := e.rowStyle(f, t.Style, t.Style.OutboundColor)
	if err != nil {
		return err
	}

	headerRow := row
	for i, col := range excelColumns {
		name, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(transcriptSheet, name, name, col.width)
		f.SetCellValue(transcriptSheet, cell(i+1, row), col.title)
	}
	f.SetCellStyle(transcriptSheet, cell(1, row), cell(len(excelColumns), row), headerStyle)
	row++

	for _, entry := range t.Entries {
		values := []interface{}{
			entry.At.Format(t.Style.TimeLayout),
			entry.direction(),
			entry.Sender,
			entry.Kind,
			entry.Text,
			entry.Status,
			entry.Reference,
		}
		for i, v := range values {
			f.SetCellValue(transcriptSheet, cell(i+1, row), v)
		}
		style := inboundStyle
		if entry.Outbound {
			style = outboundStyle
		}
		f.SetCellStyle(transcriptSheet, cell(1, row), cell(len(excelColumns), row), style)
		row++
	}

	f.SetPanes(transcriptSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      headerRow,
		TopLeftCell: cell(1, headerRow+1),
		ActivePane:  "bottomLeft",
	})
	if len(t.Entries) > 0 {
		ref := fmt.Sprintf("%s:%s", cell(1, headerRow), cell(len(excelColumns), row-1))
		if err := f.AutoFilter(transcriptSheet, ref, nil); err != nil {
			return fmt.Errorf("auto filter: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func (e *ExcelExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (e *ExcelExporter) Extension() string {
	return ".xlsx"
}

func (e *ExcelExporter) rowStyle(f *excelize.File, style Style, bg string) (int, error) {
	s := &excelize.Style{
		Font:      &excelize.Font{Size: style.FontSize, Family: style.FontFamily},
		Alignment: &excelize.Alignment{Vertical: "top", WrapText: true},
	}
	if bg != "" && bg != "#FFFFFF" {
		s.Fill = excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{stripHash(bg)}}
	}
	id, err := f.NewStyle(s)
	if err != nil {
		return 0, fmt.Errorf("row style: %w", err)
	}
	return id, nil
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
