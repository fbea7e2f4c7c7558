package order

import (
	"bytes"
	"embed"
	"html/template"
	"time"

	"github.com/dukerupert/gyan/internal/domain"
)

//go:embed templates/receipt.html
var receiptFS embed.FS

var receiptTemplate = template.Must(template.New("receipt.html").Funcs(template.FuncMap{
	"rupees": domain.FormatRupees,
	"date": func(t time.Time) string {
		return t.Format("02/01/2006")
	},
	"lineTotal": func(li domain.LineItem) int64 {
		return li.LineTotal()
	},
}).ParseFS(receiptFS, "templates/receipt.html"))

// ReceiptFilename is the download name of the receipt for o.
func ReceiptFilename(o *domain.Order) string {
	return "receipt-" + o.OrderID + ".html"
}

// RenderReceipt renders the downloadable HTML receipt of o.
func RenderReceipt(o *domain.Order) ([]byte, error) {
	if o == nil {
		return nil, domain.Invalid("order.receipt", "order is required")
	}

	var buf bytes.Buffer
	if err := receiptTemplate.Execute(&buf, o); err != nil {
		return nil, domain.Internal(err, "order.receipt", "failed to render receipt")
	}
	return buf.Bytes(), nil
}
