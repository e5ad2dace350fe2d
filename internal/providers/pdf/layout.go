package pdf

import (
	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

func newDocument() core.Maroto {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()
	return maroto.New(cfg)
}

func addTitle(m core.Maroto, title, issuer string) {
	m.AddRow(14,
		text.NewCol(8, title, props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, issuer, props.Text{
			Size:  10,
			Style: fontstyle.Bold,
			Align: align.Right,
			Top:   4,
		}),
	)
}

func addConsumption(m core.Maroto, data InvoiceData) {
	m.AddRow(30,
		col.New(6).Add(
			text.New("Room", props.Text{Style: fontstyle.Bold}),
			text.New(data.RoomNumber, props.Text{Top: 5}),
			text.New(data.TenantID, props.Text{Top: 10, Size: 8}),
		),
		col.New(6).Add(
			text.New("Consumption", props.Text{Style: fontstyle.Bold}),
			text.New("Total: "+data.TotalKWh+" kWh", props.Text{Top: 5}),
			text.New("Quota: "+data.QuotaKWh+" kWh", props.Text{Top: 10}),
			text.New("Above quota: "+data.OverageKWh+" kWh", props.Text{Top: 15}),
			text.New("Tariff: "+data.TariffRate+" per kWh", props.Text{Top: 20}),
		),
	)
}

func addItems(m core.Maroto, items []InvoiceItem) {
	m.AddRow(10,
		text.NewCol(6, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "kWh", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Unit price", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	for _, item := range items {
		m.AddRow(12,
			text.NewCol(6, item.Description, props.Text{Size: 9}),
			text.NewCol(2, item.Quantity, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.UnitPrice, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.Amount, props.Text{Size: 9, Align: align.Right}),
		)
	}
}

func addTotal(m core.Maroto, label, value string) {
	m.AddRow(10,
		col.New(8),
		text.NewCol(2, label, props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, value, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
}

func issuerOr(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
