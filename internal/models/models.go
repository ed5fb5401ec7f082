package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Address identifies an account or a deployed token/exchange instance.
// The zero value is the zero address and is never a valid recipient.
type Address string

const ZeroAddress Address = ""

func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// User represents a registered user. Every user is assigned a unique
// exchange address at registration; all ledger state is keyed by it.
type User struct {
	ID           int
	Username     string
	PasswordHash string
	Address      Address
	CreatedAt    time.Time
}

// Order is a bilateral swap offer: the maker wants AmountGet of TokenGet in
// exchange for AmountGive of TokenGive. The five defining fields and the
// timestamp never change after creation; only the derived status does.
type Order struct {
	ID         uint64          `json:"id"`
	User       Address         `json:"user"`
	TokenGet   Address         `json:"token_get"`
	AmountGet  decimal.Decimal `json:"amount_get"`
	TokenGive  Address         `json:"token_give"`
	AmountGive decimal.Decimal `json:"amount_give"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Order status values as stored by the indexer.
const (
	OrderStatusOpen      = "open"
	OrderStatusFilled    = "filled"
	OrderStatusCancelled = "cancelled"
)

// Trade is the immutable audit record of a fill. User is the taker; Maker is
// the account that created the order being closed.
type Trade struct {
	OrderID    uint64          `json:"order_id"`
	User       Address         `json:"user"`
	TokenGet   Address         `json:"token_get"`
	AmountGet  decimal.Decimal `json:"amount_get"`
	TokenGive  Address         `json:"token_give"`
	AmountGive decimal.Decimal `json:"amount_give"`
	Maker      Address         `json:"maker"`
	Timestamp  time.Time       `json:"timestamp"`
}
