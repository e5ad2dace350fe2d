package format

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gosimple/slug"
	"github.com/smallbiznis/roomwatt/internal/period"
)

const DefaultInvoiceNumberTemplate = "INV-{YYYY}{MM}-{ROOM}"

var ErrEmptyTemplate = errors.New("invoice number template is empty")

// FormatInvoiceNumber renders a human-readable invoice number from the
// billing period and room. The same inputs always give the same number.
//
// Tokens: {YYYY}, {YY}, {MM}, {ROOM} (slugged, upper case).
func FormatInvoiceNumber(template string, p period.Period, roomNumber string) (string, error) {
	template = strings.TrimSpace(template)
	if template == "" {
		return "", ErrEmptyTemplate
	}
	if !p.Valid() {
		return "", period.ErrInvalidPeriod
	}

	room := strings.ToUpper(slug.Make(roomNumber))
	if room == "" {
		return "", fmt.Errorf("invalid room number %q for invoice number", roomNumber)
	}

	out := template
	out = strings.ReplaceAll(out, "{YYYY}", fmt.Sprintf("%04d", p.Year))
	out = strings.ReplaceAll(out, "{YY}", fmt.Sprintf("%02d", p.Year%100))
	out = strings.ReplaceAll(out, "{MM}", fmt.Sprintf("%02d", int(p.Month)))
	out = strings.ReplaceAll(out, "{ROOM}", room)

	if strings.Contains(out, "{") || strings.Contains(out, "}") {
		return "", fmt.Errorf("unresolved token in invoice format: %s", out)
	}
	return out, nil
}
