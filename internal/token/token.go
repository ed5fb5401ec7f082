package token

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeqswap/exchange/internal/events"
	"github.com/zeqswap/exchange/internal/models"
)

// Ledger failure modes. Callers branch with errors.Is.
var (
	ErrInvalidRecipient      = errors.New("invalid recipient")
	ErrInvalidSpender        = errors.New("invalid spender")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
)

// Decimals is fixed for every ledger: amounts are 18-decimal fixed point.
const Decimals = 18

// Token is a fungible token ledger: per-account balances plus (owner, spender)
// allowances. The sum of all balances equals the total supply fixed at
// deployment; no operation mints or burns.
type Token struct {
	mu sync.Mutex

	address     models.Address
	name        string
	symbol      string
	totalSupply decimal.Decimal
	balances    map[models.Address]decimal.Decimal
	allowances  map[models.Address]map[models.Address]decimal.Decimal

	log *events.Log
}

// New deploys a token ledger, minting supply whole tokens to the deployer.
func New(address models.Address, name, symbol string, supply int64, deployer models.Address, log *events.Log) *Token {
	total := decimal.New(supply, 0)
	return &Token{
		address:     address,
		name:        name,
		symbol:      symbol,
		totalSupply: total,
		balances:    map[models.Address]decimal.Decimal{deployer: total},
		allowances:  make(map[models.Address]map[models.Address]decimal.Decimal),
		log:         log,
	}
}

func (t *Token) Address() models.Address      { return t.address }
func (t *Token) Name() string                 { return t.name }
func (t *Token) Symbol() string               { return t.symbol }
func (t *Token) Decimals() int                { return Decimals }
func (t *Token) TotalSupply() decimal.Decimal { return t.totalSupply }

// BalanceOf returns the ledger balance of an account.
func (t *Token) BalanceOf(account models.Address) decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balances[account]
}

// Allowance returns the remaining amount spender may move on behalf of owner.
func (t *Token) Allowance(owner, spender models.Address) decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.allowances[owner][spender]
}

// Transfer moves amount from the caller to another account.
func (t *Token) Transfer(from, to models.Address, amount decimal.Decimal) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transfer(from, to, amount)
}

// transfer performs the balance move. Callers must hold t.mu.
func (t *Token) transfer(from, to models.Address, amount decimal.Decimal) error {
	if to.IsZero() {
		return fmt.Errorf("transfer to zero address: %w", ErrInvalidRecipient)
	}
	if amount.IsNegative() {
		return fmt.Errorf("negative transfer amount: %w", ErrInvalidAmount)
	}
	if t.balances[from].LessThan(amount) {
		return fmt.Errorf("transfer of %s exceeds balance %s: %w", amount, t.balances[from], ErrInsufficientBalance)
	}

	t.balances[from] = t.balances[from].Sub(amount)
	t.balances[to] = t.balances[to].Add(amount)

	t.log.Append(time.Now(), events.Transfer{Token: t.address, From: from, To: to, Value: amount})
	return nil
}

// Approve sets (overwrites, not accumulates) the allowance for (owner,
// spender).
func (t *Token) Approve(owner, spender models.Address, amount decimal.Decimal) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if spender.IsZero() {
		return fmt.Errorf("approve zero-address spender: %w", ErrInvalidSpender)
	}
	if amount.IsNegative() {
		return fmt.Errorf("negative approval amount: %w", ErrInvalidAmount)
	}

	if t.allowances[owner] == nil {
		t.allowances[owner] = make(map[models.Address]decimal.Decimal)
	}
	t.allowances[owner][spender] = amount

	t.log.Append(time.Now(), events.Approval{Token: t.address, Owner: owner, Spender: spender, Value: amount})
	return nil
}

// TransferFrom moves amount from an account that previously approved the
// spender. The allowance is decremented by exactly the amount moved; there is
// no infinite-allowance special case.
func (t *Token) TransferFrom(spender, from, to models.Address, amount decimal.Decimal) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if amount.IsNegative() {
		return fmt.Errorf("negative transfer amount: %w", ErrInvalidAmount)
	}
	allowed := t.allowances[from][spender]
	if allowed.LessThan(amount) {
		return fmt.Errorf("transfer of %s exceeds allowance %s: %w", amount, allowed, ErrInsufficientAllowance)
	}

	if err := t.transfer(from, to, amount); err != nil {
		return err
	}
	if t.allowances[from] == nil {
		t.allowances[from] = make(map[models.Address]decimal.Decimal)
	}
	t.allowances[from][spender] = allowed.Sub(amount)
	return nil
}
