package render

import (
	"errors"
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	appconfig "github.com/railzwaylabs/ispbilling/internal/config"
	invoicedomain "github.com/railzwaylabs/ispbilling/internal/invoice/domain"
)

const dateLayout = "02 Jan 2006"

type Renderer interface {
	// Invoice renders the explanation as a single PDF document.
	Invoice(doc *invoicedomain.Explanation) ([]byte, error)
}

type pdfRenderer struct {
	issuer string
}

func NewRenderer(cfg appconfig.Config) Renderer {
	issuer := cfg.AppName
	if issuer == "" {
		issuer = "ispbilling"
	}
	return &pdfRenderer{issuer: issuer}
}

var (
	title  = props.Text{Size: 16, Style: fontstyle.Bold}
	bold   = props.Text{Size: 10, Style: fontstyle.Bold}
	plain  = props.Text{Size: 10}
	right  = props.Text{Size: 10, Align: align.Right}
	rightB = props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right}
)

func (r *pdfRenderer) Invoice(doc *invoicedomain.Explanation) ([]byte, error) {
	if doc == nil {
		return nil, errors.New("render invoice: nil document")
	}
	cfg := config.NewBuilder().
		WithLeftMargin(15).
		WithTopMargin(15).
		WithRightMargin(15).
		Build()
	m := maroto.New(cfg)

	m.AddRows(
		row.New(12).Add(
			text.NewCol(8, r.issuer, title),
			text.NewCol(4, "INVOICE", props.Text{Size: 16, Style: fontstyle.Bold, Align: align.Right}),
		),
		row.New(6).Add(
			text.NewCol(8, "Invoice No: "+doc.InvoiceNumber, plain),
			text.NewCol(4, "Issued: "+doc.IssueDate.Format(dateLayout), right),
		),
		row.New(6).Add(
			text.NewCol(8, "Bill No: "+doc.BillNumber+" ("+doc.Period+")", plain),
			text.NewCol(4, "Due: "+doc.DueDate.Format(dateLayout), right),
		),
		row.New(6),
		row.New(6).Add(text.NewCol(12, "Bill to", bold)),
		row.New(6).Add(text.NewCol(12, doc.CustomerName+" ["+doc.CustomerCode+"]", plain)),
		row.New(6).Add(text.NewCol(12, doc.Address, plain)),
		row.New(6).Add(text.NewCol(12, "Package: "+doc.PackageName, plain)),
		row.New(8),
		row.New(7).Add(
			text.NewCol(9, "Description", bold),
			text.NewCol(3, "Amount", rightB),
		),
	)
	for _, line := range doc.Lines {
		m.AddRow(6,
			text.NewCol(9, line.Description, plain),
			text.NewCol(3, line.Amount.StringFixed(2), right),
		)
	}
	m.AddRows(
		row.New(4),
		row.New(6).Add(
			text.NewCol(9, "Total", bold),
			text.NewCol(3, doc.Total.StringFixed(2), rightB),
		),
		row.New(6).Add(
			text.NewCol(9, "Paid", plain),
			text.NewCol(3, doc.Paid.StringFixed(2), right),
		),
		row.New(6).Add(
			text.NewCol(9, "Amount due", bold),
			text.NewCol(3, doc.Due.StringFixed(2), rightB),
		),
		row.New(6).Add(
			text.NewCol(12, "Status: "+string(doc.Status), plain),
		),
	)

	out, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("render invoice %s: %w", doc.InvoiceNumber, err)
	}
	return out.GetBytes(), nil
}
