package services

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/channel"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/export"
)

func TestTranscriptExport(t *testing.T) {
	h := newHarness(t)
	p := h.seedPlatform(t, uuid.New(), channel.WhatsApp, "PN1")
	last := h.now.Add(-time.Minute)
	conv := h.seedConversation(t, p, "628111", &last)
	if _, err := h.dispatcher.Send(context.Background(), conv, SendRequest{Content: channel.Content{Text: "thanks!"}}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	svc := NewTranscriptService(h.convs, h.platforms, export.NewService())
	file, err := svc.Export(context.Background(), p.TenantID, conv.ID, export.FormatExcel)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if file.Name != "conversation-"+conv.ID.String()+".xlsx" {
		t.Fatalf("name = %s", file.Name)
	}

	book, err := excelize.OpenReader(bytes.NewReader(file.Data))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer book.Close()
	rows, _ := book.GetRows("Transcript")
	if rows[0][0] != "628111 via whatsapp" {
		t.Fatalf("title = %v", rows[0])
	}
	last2 := rows[len(rows)-1]
	if last2[1] != "outbound" || last2[2] != "Shop" || last2[4] != "thanks!" || last2[6] != "out.1" {
		t.Fatalf("last row = %v", last2)
	}

	pdf, err := svc.Export(context.Background(), p.TenantID, conv.ID, export.FormatPDF)
	if err != nil || !bytes.HasPrefix(pdf.Data, []byte("%PDF-")) {
		t.Fatalf("pdf export err = %v", err)
	}

	if _, err := svc.Export(context.Background(), uuid.New(), conv.ID, export.FormatPDF); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("cross-tenant err = %v, want ErrConversationNotFound", err)
	}
}
