package events

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeqswap/exchange/internal/models"
)

// Kind discriminates event payloads.
type Kind string

const (
	KindTransfer   Kind = "transfer"
	KindApproval   Kind = "approval"
	KindDeposit    Kind = "deposit"
	KindWithdrawal Kind = "withdrawal"
	KindOrder      Kind = "order"
	KindCancel     Kind = "cancel"
	KindTrade      Kind = "trade"
)

// Event is one structured record emitted on a successful state transition.
type Event interface {
	Kind() Kind
}

// Transfer is emitted by a token ledger on transfer and transferFrom.
type Transfer struct {
	Token models.Address  `json:"token"`
	From  models.Address  `json:"from"`
	To    models.Address  `json:"to"`
	Value decimal.Decimal `json:"value"`
}

func (Transfer) Kind() Kind { return KindTransfer }

// Approval is emitted by a token ledger on approve.
type Approval struct {
	Token   models.Address  `json:"token"`
	Owner   models.Address  `json:"owner"`
	Spender models.Address  `json:"spender"`
	Value   decimal.Decimal `json:"value"`
}

func (Approval) Kind() Kind { return KindApproval }

// Deposit records a custody deposit. Balance is the user's custodial balance
// for the token after the deposit.
type Deposit struct {
	User    models.Address  `json:"user"`
	Token   models.Address  `json:"token"`
	Amount  decimal.Decimal `json:"amount"`
	Balance decimal.Decimal `json:"balance"`
}

func (Deposit) Kind() Kind { return KindDeposit }

// Withdrawal records a custody withdrawal. Balance is the remaining custodial
// balance.
type Withdrawal struct {
	User    models.Address  `json:"user"`
	Token   models.Address  `json:"token"`
	Amount  decimal.Decimal `json:"amount"`
	Balance decimal.Decimal `json:"balance"`
}

func (Withdrawal) Kind() Kind { return KindWithdrawal }

// Order records order creation with all defining fields.
type Order struct {
	models.Order
}

func (Order) Kind() Kind { return KindOrder }

// Cancel records a maker cancelling an open order. Cancelled is the cancel
// time; the embedded order keeps its original creation timestamp.
type Cancel struct {
	models.Order
	Cancelled time.Time `json:"cancelled"`
}

func (Cancel) Kind() Kind { return KindCancel }

// Trade records a fill, with both parties and the settled amounts.
type Trade struct {
	models.Trade
}

func (Trade) Kind() Kind { return KindTrade }

// Entry is an event with its position in the log.
type Entry struct {
	Seq   uint64    `json:"seq"`
	Time  time.Time `json:"time"`
	Event Event     `json:"event"`
}

// Log is an append-only sequence of events with stable insertion order. It is
// the only persisted history of the core: consumers reconstruct order and
// trade state by replaying it, reconciling on order ids rather than delivery
// order.
type Log struct {
	mu      sync.Mutex
	entries []Entry
	seq     uint64
}

func NewLog() *Log {
	return &Log{entries: make([]Entry, 0, 1024)}
}

// Append records an event and returns its sequence number.
func (l *Log) Append(now time.Time, ev Event) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	l.entries = append(l.entries, Entry{Seq: l.seq, Time: now, Event: ev})
	return l.seq
}

// All returns a copy of every entry in insertion order.
func (l *Log) All() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of recorded events.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Orders returns every order-creation record in insertion order.
func (l *Log) Orders() []models.Order {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.Order
	for _, e := range l.entries {
		if ev, ok := e.Event.(Order); ok {
			out = append(out, ev.Order)
		}
	}
	return out
}

// Cancels returns every cancellation record in insertion order.
func (l *Log) Cancels() []Cancel {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Cancel
	for _, e := range l.entries {
		if ev, ok := e.Event.(Cancel); ok {
			out = append(out, ev)
		}
	}
	return out
}

// Trades returns every fill record in insertion order.
func (l *Log) Trades() []models.Trade {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.Trade
	for _, e := range l.entries {
		if ev, ok := e.Event.(Trade); ok {
			out = append(out, ev.Trade)
		}
	}
	return out
}
