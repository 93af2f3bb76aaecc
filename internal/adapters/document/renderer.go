package document

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/shopspring/decimal"

	"quoteflow/internal/domain"
)

//go:embed templates/offer.html
var templateFS embed.FS

const contentType = "text/html; charset=utf-8"

var offerTemplate = template.Must(template.New("offer.html").Funcs(template.FuncMap{
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
	"inc":   func(i int) int { return i + 1 },
	"date": func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.UTC().Format("2006-01-02")
	},
}).ParseFS(templateFS, "templates/offer.html"))

type offerView struct {
	*domain.Offer
	SenderName string
}

type htmlRenderer struct{}

// NewHTMLRenderer returns a DocumentRenderer producing a standalone HTML offer sheet.
func NewHTMLRenderer() domain.DocumentRenderer {
	return htmlRenderer{}
}

func (htmlRenderer) Render(offer *domain.Offer, senderName string) (*domain.Document, error) {
	if offer == nil {
		return nil, fmt.Errorf("render offer document: offer is nil")
	}
	var buf bytes.Buffer
	if err := offerTemplate.Execute(&buf, offerView{Offer: offer, SenderName: senderName}); err != nil {
		return nil, fmt.Errorf("render offer document: %w", err)
	}
	return &domain.Document{
		Key:         "offer-" + offer.ID + ".html",
		ContentType: contentType,
		Body:        buf.Bytes(),
	}, nil
}
