// Package pdf renders invoice and receipt documents with maroto.
package pdf

import "context"

type Provider interface {
	GenerateInvoice(ctx context.Context, data InvoiceData) ([]byte, error)
	GenerateReceipt(ctx context.Context, data ReceiptData) ([]byte, error)
}

type InvoiceData struct {
	IssuerName    string
	InvoiceNumber string
	IssueDate     string
	ServicePeriod string
	Status        string

	RoomNumber string
	TenantID   string

	TotalKWh   string
	QuotaKWh   string
	OverageKWh string
	TariffRate string

	Items     []InvoiceItem
	AmountDue string
}

type InvoiceItem struct {
	Description string
	Quantity    string
	UnitPrice   string
	Amount      string
}

type ReceiptData struct {
	InvoiceData
	DatePaid string
}

type PDFProvider struct {
	issuer string
}

func New(issuer string) Provider {
	return &PDFProvider{issuer: issuer}
}
