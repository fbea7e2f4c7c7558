package email

import (
	"embed"
	"html/template"
	"time"

	"github.com/dukerupert/gyan/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

// EmailTemplate defines the interface for email templates
type EmailTemplate interface {
	Subject() string
	TemplateName() string
}

// OrderConfirmationEmail is the view model of the order confirmation mail.
type OrderConfirmationEmail struct {
	OrderID       string
	PaymentID     string
	CustomerName  string
	CustomerEmail string
	OrderDate     time.Time
	Items         []OrderItem
	Subtotal      int64
	Discount      int64
	Tax           int64
	Total         int64
	PromoCode     string
	PaymentMethod string
}

// OrderItem is one line of a confirmation mail.
type OrderItem struct {
	Name      string
	Quantity  int
	UnitPrice int64
	LineTotal int64
}

func (e OrderConfirmationEmail) Subject() string {
	return "Order Confirmation - " + e.OrderID
}

func (e OrderConfirmationEmail) TemplateName() string {
	return "order_confirmation.html"
}

// NewOrderConfirmationEmail builds the view model from a finalized order.
func NewOrderConfirmationEmail(order *domain.Order) OrderConfirmationEmail {
	data := OrderConfirmationEmail{
		OrderID:       order.OrderID,
		PaymentID:     order.PaymentID,
		CustomerName:  order.Customer.FullName(),
		CustomerEmail: order.Customer.Email,
		OrderDate:     order.CreatedAt,
		Subtotal:      order.Pricing.Subtotal,
		Discount:      order.Pricing.Discount,
		Tax:           order.Pricing.Tax,
		Total:         order.Pricing.Total,
		PaymentMethod: order.PaymentMethod,
	}
	if order.Promotion != nil {
		data.PromoCode = order.Promotion.Code
	}
	for _, item := range order.Items {
		data.Items = append(data.Items, OrderItem{
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.LineTotal(),
		})
	}
	return data
}

var templateFuncs = template.FuncMap{
	"rupees": domain.FormatRupees,
	"date": func(t time.Time) string {
		return t.Format("02 Jan 2006")
	},
}

func parseTemplates() (*template.Template, error) {
	return template.New("email").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")
}
