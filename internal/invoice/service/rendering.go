package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/roomwatt/internal/identity"
	invoicedomain "github.com/smallbiznis/roomwatt/internal/invoice/domain"
	"github.com/smallbiznis/roomwatt/internal/providers/pdf"
	roomdomain "github.com/smallbiznis/roomwatt/internal/room/domain"
)

// RenderPDF renders the invoice, or a receipt once it is paid.
func (s *Service) RenderPDF(ctx context.Context, actor identity.Actor, id string) (*invoicedomain.Document, error) {
	invoice, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	data, err := s.buildInvoiceData(ctx, invoice)
	if err != nil {
		return nil, err
	}

	var content []byte
	name := invoice.Number
	if invoice.Status == invoicedomain.InvoiceStatusPaid {
		paid := ""
		if invoice.ReviewedAt != nil {
			paid = invoice.ReviewedAt.Format("2006-01-02")
		}
		content, err = s.pdf.GenerateReceipt(ctx, pdf.ReceiptData{InvoiceData: data, DatePaid: paid})
		name += "-receipt"
	} else {
		content, err = s.pdf.GenerateInvoice(ctx, data)
	}
	if err != nil {
		return nil, fmt.Errorf("render invoice pdf: %w", err)
	}

	return &invoicedomain.Document{
		Filename:    name + ".pdf",
		ContentType: "application/pdf",
		Content:     content,
	}, nil
}

func (s *Service) buildInvoiceData(ctx context.Context, invoice *invoicedomain.Invoice) (pdf.InvoiceData, error) {
	roomNumber := snapshotString(invoice.Snapshot, "room_number")
	quota := snapshotString(invoice.Snapshot, "quota_kwh")
	tariff := snapshotString(invoice.Snapshot, "tariff_rate")
	tenant := ""

	room, err := s.rooms.GetByID(ctx, invoice.RoomID)
	switch {
	case err == nil:
		if roomNumber == "" {
			roomNumber = room.Number
		}
		if room.OccupantID != nil {
			tenant = *room.OccupantID
		}
	case errors.Is(err, roomdomain.ErrNotFound):
		// the room was removed; the snapshot still describes it
	default:
		return pdf.InvoiceData{}, err
	}

	if tariff == "" && !invoice.OverageKWh.IsZero() {
		tariff = invoice.AmountDue.Div(invoice.OverageKWh).StringFixed(2)
	}

	return pdf.InvoiceData{
		InvoiceNumber: invoice.Number,
		IssueDate:     invoice.CreatedAt.Format("2006-01-02"),
		ServicePeriod: invoice.Period,
		Status:        string(invoice.Status),
		RoomNumber:    roomNumber,
		TenantID:      tenant,
		TotalKWh:      invoice.TotalKWh.StringFixed(3),
		QuotaKWh:      fixed(quota, 3),
		OverageKWh:    invoice.OverageKWh.StringFixed(3),
		TariffRate:    fixed(tariff, 2),
		Items: []pdf.InvoiceItem{{
			Description: "Electricity above quota (" + invoice.Period + ")",
			Quantity:    invoice.OverageKWh.StringFixed(3),
			UnitPrice:   fixed(tariff, 2),
			Amount:      invoice.AmountDue.StringFixed(2),
		}},
		AmountDue: invoice.AmountDue.StringFixed(2),
	}, nil
}

func snapshotString(snapshot map[string]any, key string) string {
	if snapshot == nil {
		return ""
	}
	value, ok := snapshot[key].(string)
	if !ok {
		return ""
	}
	return value
}

func fixed(value string, places int32) string {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return value
	}
	return d.StringFixed(places)
}
