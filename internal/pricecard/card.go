package pricecard

import (
	"bytes"
	"context"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// CardData is the printable price card for one machine.
type CardData struct {
	MachineCode string
	MachineName string
	Location    string
	GeneratedAt string

	Rows []CardRow
}

type CardRow struct {
	Unit         string
	ProductName  string
	VendingPrice string
}

type Renderer interface {
	Render(ctx context.Context, data CardData) (io.Reader, error)
}

type pdfRenderer struct{}

func NewRenderer() Renderer {
	return &pdfRenderer{}
}

func (r *pdfRenderer) Render(ctx context.Context, data CardData) (io.Reader, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(12, "Price Card", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	m.AddRow(22,
		col.New(6).Add(
			text.New("Machine: "+data.MachineName, props.Text{Top: 0}),
			text.New("Code: "+data.MachineCode, props.Text{Top: 5}),
			text.New("Location: "+data.Location, props.Text{Top: 10}),
			text.New("Generated: "+data.GeneratedAt, props.Text{Top: 15}),
		),
		col.New(6),
	)

	m.AddRow(10,
		text.NewCol(3, "Unit", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(6, "Product", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(3, "Price", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	for _, row := range data.Rows {
		m.AddRow(8,
			text.NewCol(3, row.Unit, props.Text{Size: 9}),
			text.NewCol(6, row.ProductName, props.Text{Size: 9}),
			text.NewCol(3, row.VendingPrice, props.Text{Size: 9, Align: align.Right}),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(doc.GetBytes()), nil
}
