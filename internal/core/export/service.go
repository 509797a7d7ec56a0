package export

import (
	"bytes"
	"fmt"
)

// File is a rendered export ready to be served
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Service picks the exporter for a format
type Service struct {
	exporters map[Format]Exporter
}

func NewService() *Service {
	return &Service{
		exporters: map[Format]Exporter{
			FormatPDF:   NewPDFExporter(),
			FormatExcel: NewExcelExporter(),
		},
	}
}

// Render writes t in format; baseName gets the format's extension
func (s *Service) Render(t *Transcript, format Format, baseName string) (*File, error) {
	exporter, ok := s.exporters[format]
	if !ok {
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
	if t.Style.TimeLayout == "" {
		t.Style = DefaultStyle()
	}

	var buf bytes.Buffer
	if err := exporter.Export(t, &buf); err != nil {
		return nil, fmt.Errorf("%s export failed: %w", format, err)
	}
	return &File{
		Name:        baseName + exporter.Extension(),
		ContentType: exporter.ContentType(),
		Data:        buf.Bytes(),
	}, nil
}
