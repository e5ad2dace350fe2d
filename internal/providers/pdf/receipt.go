package pdf

import (
	"context"

	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// GenerateReceipt renders the document handed out once the owner confirmed payment.
func (p *PDFProvider) GenerateReceipt(ctx context.Context, data ReceiptData) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m := newDocument()
	addTitle(m, "Receipt", issuerOr(data.IssuerName, p.issuer))

	m.AddRow(18,
		col.New(6).Add(
			text.New("Invoice number: "+data.InvoiceNumber, props.Text{Top: 0}),
			text.New("Date paid: "+data.DatePaid, props.Text{Top: 5}),
			text.New("Service period: "+data.ServicePeriod, props.Text{Top: 10}),
		),
		col.New(6),
	)

	addConsumption(m, data.InvoiceData)

	m.AddRow(12,
		text.NewCol(12, data.AmountDue+" paid on "+data.DatePaid, props.Text{
			Size:  12,
			Style: fontstyle.Bold,
			Top:   3,
		}),
	)

	addItems(m, data.Items)
	addTotal(m, "Total paid", data.AmountDue)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}
