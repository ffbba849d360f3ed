package domain

import (
	"fmt"

	"github.com/psj098/capmbot/pkg/quant"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the other side. Book-side candidates are traded
// against by submitting the opposite side at the same price.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType distinguishes new resting orders from cancellations.
type OrderType string

const (
	TypeLimit  OrderType = "LIMIT"
	TypeCancel OrderType = "CANCEL"
)

// Order status values as reported by the marketplace.
const (
	StatusNew       = "NEW"
	StatusFilled    = "FILLED"
	StatusCancelled = "CANCELLED"
	StatusRejected  = "REJECTED"
)

// Order represents a marketplace order, either one of ours or a
// competing order observed in the book.
type Order struct {
	Ref          string          `json:"ref"` // client reference, empty for competing orders
	SecurityID   int             `json:"security_id"`
	Side         Side            `json:"side"`
	Type         OrderType       `json:"type"`
	Price        quant.Cents     `json:"price"`
	Units        quant.Units     `json:"units"`
	Status       string          `json:"status"`
	Mine         bool            `json:"mine"`
	CreatedUnixM quant.TimeStamp `json:"created_unix_micro"`
}

// IsOpen checks if the order is still resting in the book.
func (o *Order) IsOpen() bool {
	return o.Status == StatusNew
}

// Key identifies an order by its economic content. Orders are always
// unit sized, so security, side and price are sufficient.
func (o *Order) Key() string {
	return fmt.Sprintf("%d|%s|%d", o.SecurityID, o.Side, o.Price)
}
