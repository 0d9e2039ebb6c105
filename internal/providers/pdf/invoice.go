package pdf

import (
	"context"
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type marotoProvider struct{}

func New() Provider {
	return &marotoProvider{}
}

func (p *marotoProvider) RenderInvoice(ctx context.Context, data InvoiceData) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(12, "Invoice", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	m.AddRow(20,
		col.New(6).Add(
			text.New("Invoice number: "+data.InvoiceNumber, props.Text{Top: 0}),
			text.New("Date of issue: "+data.IssueDate, props.Text{Top: 4}),
			text.New("Date due: "+data.DueDate, props.Text{Top: 8}),
		),
		col.New(6),
	)

	m.AddRow(30,
		col.New(6).Add(
			text.New(data.OrgName, props.Text{Style: fontstyle.Bold}),
		),
		col.New(6).Add(
			text.New("Bill to", props.Text{Style: fontstyle.Bold}),
			text.New(data.BillToName, props.Text{Top: 5}),
			text.New(data.BillToAddress, props.Text{Top: 9}),
			text.New(data.BillToEmail, props.Text{Top: 13}),
		),
	)

	m.AddRow(10,
		text.NewCol(6, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Qty", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Unit price", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	for _, item := range data.Items {
		m.AddRow(10,
			text.NewCol(6, item.Description, props.Text{Size: 9}),
			text.NewCol(2, fmt.Sprintf("%d", item.Qty), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.UnitPrice, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.Amount, props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Subtotal", props.Text{Size: 9}),
		text.NewCol(2, data.Subtotal, props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Tax", props.Text{Size: 9}),
		text.NewCol(2, data.Tax, props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Total "+data.Currency, props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, data.Total, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}
