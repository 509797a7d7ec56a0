package export

import (
	"io"
	"time"
)

// Format is the output file format of an export
type Format string

const (
	FormatPDF   Format = "pdf"
	FormatExcel Format = "xlsx"
)

// ParseFormat accepts "pdf", "xlsx" or "excel"; empty means xlsx
func ParseFormat(s string) (Format, bool) {
	switch s {
	case "", "xlsx", "excel":
		return FormatExcel, true
	case "pdf":
		return FormatPDF, true
	}
	return "", false
}

// Exporter renders a transcript into one file format
type Exporter interface {
	Export(t *Transcript, w io.Writer) error
	ContentType() string
	Extension() string
}

// Transcript is a conversation prepared for export
type Transcript struct {
	Title       string
	Subtitle    string
	GeneratedAt time.Time
	Entries     []Entry
	Style       Style
}

// Entry is one message line of a transcript
type Entry struct {
	At        time.Time
	Sender    string
	Outbound  bool
	Kind      string
	Text      string
	Status    string
	Reference string
}

// Style holds the styling both exporters share
type Style struct {
	HeaderBgColor string
	InboundColor  string
	OutboundColor string
	FontFamily    string
	FontSize      float64
	TimeLayout    string
}

func DefaultStyle() Style {
	return Style{
		HeaderBgColor: "#4472C4",
		InboundColor:  "#FFFFFF",
		OutboundColor: "#E2EFDA",
		FontFamily:    "Arial",
		FontSize:      10,
		TimeLayout:    "2006-01-02 15:04:05",
	}
}

func (e Entry) direction() string {
	if e.Outbound {
		return "outbound"
	}
	return "inbound"
}

// stripHash removes the leading # of a hex color
func stripHash(color string) string {
	if len(color) > 0 && color[0] == '#' {
		return color[1:]
	}
	return color
}
