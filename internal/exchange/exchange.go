package exchange

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeqswap/exchange/internal/events"
	"github.com/zeqswap/exchange/internal/models"
	"github.com/zeqswap/exchange/internal/token"
)

// Exchange failure modes. Callers branch with errors.Is.
var (
	ErrUnknownToken                 = errors.New("unknown token")
	ErrInvalidAmount                = errors.New("invalid amount")
	ErrTransferRejected             = errors.New("token transfer rejected")
	ErrInsufficientCustodialBalance = errors.New("insufficient custodial balance")
	ErrOrderNotFound                = errors.New("order not found")
	ErrNotOrderOwner                = errors.New("not order owner")
	ErrOrderClosed                  = errors.New("order already closed")
)

// TokenLedger is the surface the exchange needs from a deployed token: moving
// its own funds out on withdrawal and pulling approved funds in on deposit.
type TokenLedger interface {
	Transfer(from, to models.Address, amount decimal.Decimal) error
	TransferFrom(spender, from, to models.Address, amount decimal.Decimal) error
}

// Exchange custodies deposited token balances, registers swap orders, and
// settles fills. It is the sole owner of custodial balances and order state.
//
// One mutex serializes every mutating call: each operation runs to completion
// or fails with no observable effect before the next begins, so two takers
// racing on the same order resolve deterministically — the second observes
// ErrOrderClosed.
type Exchange struct {
	mu sync.Mutex

	address    models.Address
	feeAccount models.Address
	feePercent int64

	ledgers map[models.Address]TokenLedger
	tokens  map[models.Address]map[models.Address]decimal.Decimal // token -> user -> custodial balance

	orders     map[uint64]models.Order
	orderCount uint64
	cancelled  map[uint64]bool
	filled     map[uint64]bool

	log *events.Log
}

// New creates an exchange. The fee account and fee percent are fixed for its
// lifetime.
func New(address, feeAccount models.Address, feePercent int64, log *events.Log) *Exchange {
	return &Exchange{
		address:    address,
		feeAccount: feeAccount,
		feePercent: feePercent,
		ledgers:    make(map[models.Address]TokenLedger),
		tokens:     make(map[models.Address]map[models.Address]decimal.Decimal),
		orders:     make(map[uint64]models.Order),
		cancelled:  make(map[uint64]bool),
		filled:     make(map[uint64]bool),
		log:        log,
	}
}

// RegisterLedger makes a deployed token ledger depositable.
func (e *Exchange) RegisterLedger(addr models.Address, ledger TokenLedger) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ledgers[addr] = ledger
}

func (e *Exchange) Address() models.Address    { return e.address }
func (e *Exchange) FeeAccount() models.Address { return e.feeAccount }
func (e *Exchange) FeePercent() int64          { return e.feePercent }

// OrderCount returns the id of the most recently created order. Ids start at
// 1 and never repeat.
func (e *Exchange) OrderCount() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.orderCount
}

// BalanceOf returns the custodial balance a user has deposited for a token.
func (e *Exchange) BalanceOf(tok, account models.Address) decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tokens[tok][account]
}

// Tokens is the raw custodial mapping read; identical to BalanceOf.
func (e *Exchange) Tokens(tok, account models.Address) decimal.Decimal {
	return e.BalanceOf(tok, account)
}

// Order returns a stored order by id.
func (e *Exchange) Order(id uint64) (models.Order, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	order, ok := e.orders[id]
	return order, ok
}

// OrderStatus reports the lifecycle state of an order.
func (e *Exchange) OrderStatus(id uint64) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.orders[id]; !ok {
		return "", false
	}
	switch {
	case e.cancelled[id]:
		return models.OrderStatusCancelled, true
	case e.filled[id]:
		return models.OrderStatusFilled, true
	default:
		return models.OrderStatusOpen, true
	}
}

// DepositToken pulls previously-approved funds from the user's ledger balance
// into custody. The custodial credit happens only after the ledger transfer
// succeeds, so a rejected transfer leaves no trace.
func (e *Exchange) DepositToken(user, tok models.Address, amount decimal.Decimal) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ledger, ok := e.ledgers[tok]
	if !ok {
		return decimal.Zero, fmt.Errorf("deposit of %s: %w", tok, ErrUnknownToken)
	}
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("deposit amount %s: %w", amount, ErrInvalidAmount)
	}

	if err := ledger.TransferFrom(e.address, user, e.address, amount); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %w", ErrTransferRejected, err)
	}

	balance := e.credit(tok, user, amount)
	e.log.Append(time.Now(), events.Deposit{User: user, Token: tok, Amount: amount, Balance: balance})
	return balance, nil
}

// WithdrawToken returns custodied funds to the user's ledger balance. The
// custodial debit is applied before the external ledger call
// (checks-effects-interactions) so a re-entrant ledger cannot observe the
// pre-withdrawal balance; a failed transfer rolls the debit back.
func (e *Exchange) WithdrawToken(user, tok models.Address, amount decimal.Decimal) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ledger, ok := e.ledgers[tok]
	if !ok {
		return decimal.Zero, fmt.Errorf("withdrawal of %s: %w", tok, ErrUnknownToken)
	}
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("withdrawal amount %s: %w", amount, ErrInvalidAmount)
	}
	if e.tokens[tok][user].LessThan(amount) {
		return decimal.Zero, fmt.Errorf("withdrawal of %s exceeds custodial balance %s: %w",
			amount, e.tokens[tok][user], ErrInsufficientCustodialBalance)
	}

	balance := e.debit(tok, user, amount)
	if err := ledger.Transfer(e.address, user, amount); err != nil {
		e.credit(tok, user, amount)
		return decimal.Zero, fmt.Errorf("%w: %w", ErrTransferRejected, err)
	}

	e.log.Append(time.Now(), events.Withdrawal{User: user, Token: tok, Amount: amount, Balance: balance})
	return balance, nil
}

// MakeOrder registers a swap offer: the maker wants amountGet of tokenGet for
// amountGive of tokenGive. The maker must be able to cover the offer from
// custody at creation time. This is a sufficiency check, not an escrow: funds
// are not reserved, and the settlement engine re-validates at fill time.
func (e *Exchange) MakeOrder(user, tokenGet models.Address, amountGet decimal.Decimal, tokenGive models.Address, amountGive decimal.Decimal) (models.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.ledgers[tokenGet]; !ok {
		return models.Order{}, fmt.Errorf("order wants %s: %w", tokenGet, ErrUnknownToken)
	}
	if _, ok := e.ledgers[tokenGive]; !ok {
		return models.Order{}, fmt.Errorf("order offers %s: %w", tokenGive, ErrUnknownToken)
	}
	if !amountGet.IsPositive() || !amountGive.IsPositive() {
		return models.Order{}, fmt.Errorf("order amounts %s/%s: %w", amountGet, amountGive, ErrInvalidAmount)
	}
	if e.tokens[tokenGive][user].LessThan(amountGive) {
		return models.Order{}, fmt.Errorf("offer of %s exceeds custodial balance %s: %w",
			amountGive, e.tokens[tokenGive][user], ErrInsufficientCustodialBalance)
	}

	e.orderCount++
	order := models.Order{
		ID:         e.orderCount,
		User:       user,
		TokenGet:   tokenGet,
		AmountGet:  amountGet,
		TokenGive:  tokenGive,
		AmountGive: amountGive,
		Timestamp:  time.Now(),
	}
	e.orders[order.ID] = order

	e.log.Append(order.Timestamp, events.Order{Order: order})
	return order, nil
}

// CancelOrder closes an open order. Only the maker may cancel; cancelling an
// already cancelled or filled order is an error, not a no-op.
func (e *Exchange) CancelOrder(user models.Address, id uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	order, ok := e.orders[id]
	if !ok {
		return fmt.Errorf("cancel order %d: %w", id, ErrOrderNotFound)
	}
	if order.User != user {
		return fmt.Errorf("cancel order %d by %s: %w", id, user, ErrNotOrderOwner)
	}
	if e.cancelled[id] || e.filled[id] {
		return fmt.Errorf("cancel order %d: %w", id, ErrOrderClosed)
	}

	e.cancelled[id] = true
	e.log.Append(time.Now(), events.Cancel{Order: order, Cancelled: time.Now()})
	return nil
}

// FillOrder settles an open order against the taker's custodial balances.
// The taker pays amountGet plus the fee in tokenGet; the fee goes to the fee
// account, amountGet to the maker, and amountGive moves from maker to taker.
// All four balance mutations and the order closure apply together or not at
// all.
func (e *Exchange) FillOrder(taker models.Address, id uint64) (models.Trade, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	order, ok := e.orders[id]
	if !ok {
		return models.Trade{}, fmt.Errorf("fill order %d: %w", id, ErrOrderNotFound)
	}
	if e.cancelled[id] || e.filled[id] {
		return models.Trade{}, fmt.Errorf("fill order %d: %w", id, ErrOrderClosed)
	}

	fee := e.feeFor(order.AmountGet)
	cost := order.AmountGet.Add(fee)
	if e.tokens[order.TokenGet][taker].LessThan(cost) {
		return models.Trade{}, fmt.Errorf("fill of order %d costs %s, taker holds %s: %w",
			id, cost, e.tokens[order.TokenGet][taker], ErrInsufficientCustodialBalance)
	}
	// Funds are not escrowed at creation, so the maker may no longer cover
	// the offer.
	if e.tokens[order.TokenGive][order.User].LessThan(order.AmountGive) {
		return models.Trade{}, fmt.Errorf("maker offer of %s exceeds custodial balance %s: %w",
			order.AmountGive, e.tokens[order.TokenGive][order.User], ErrInsufficientCustodialBalance)
	}

	e.debit(order.TokenGet, taker, cost)
	e.credit(order.TokenGet, order.User, order.AmountGet)
	e.credit(order.TokenGet, e.feeAccount, fee)
	e.debit(order.TokenGive, order.User, order.AmountGive)
	e.credit(order.TokenGive, taker, order.AmountGive)

	e.filled[id] = true

	trade := models.Trade{
		OrderID:    id,
		User:       taker,
		TokenGet:   order.TokenGet,
		AmountGet:  order.AmountGet,
		TokenGive:  order.TokenGive,
		AmountGive: order.AmountGive,
		Maker:      order.User,
		Timestamp:  time.Now(),
	}
	e.log.Append(trade.Timestamp, events.Trade{Trade: trade})
	return trade, nil
}

// feeFor computes amount * feePercent / 100, truncated at 18 decimals to
// match base-unit integer division.
func (e *Exchange) feeFor(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(decimal.New(e.feePercent, 0)).Shift(-2).Truncate(token.Decimals)
}

func (e *Exchange) credit(tok, account models.Address, amount decimal.Decimal) decimal.Decimal {
	if e.tokens[tok] == nil {
		e.tokens[tok] = make(map[models.Address]decimal.Decimal)
	}
	e.tokens[tok][account] = e.tokens[tok][account].Add(amount)
	return e.tokens[tok][account]
}

func (e *Exchange) debit(tok, account models.Address, amount decimal.Decimal) decimal.Decimal {
	if e.tokens[tok] == nil {
		e.tokens[tok] = make(map[models.Address]decimal.Decimal)
	}
	e.tokens[tok][account] = e.tokens[tok][account].Sub(amount)
	return e.tokens[tok][account]
}
