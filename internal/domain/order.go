package domain

import "time"

// OrderStatusConfirmed is the only status an order is ever created with.
const OrderStatusConfirmed = "confirmed"

// Order is the immutable record created once, on successful payment.
// Every field is a snapshot; later changes to the live cart or session
// never reach an order already written to the log.
type Order struct {
	OrderID       string          `json:"id"`
	PaymentID     string          `json:"paymentId"`
	CreatedAt     time.Time       `json:"date"`
	Status        string          `json:"status"`
	Customer      CustomerDetails `json:"customer"`
	Items         []LineItem      `json:"items"`
	Pricing       PricingSnapshot `json:"pricing"`
	PaymentMethod string          `json:"paymentMethod"`
	Promotion     *Promotion      `json:"discount,omitempty"`
}
