package token

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/zeqswap/exchange/internal/events"
	"github.com/zeqswap/exchange/internal/models"
)

var (
	deployer = models.Address("0xdeployer")
	alice    = models.Address("0xalice")
	bob      = models.Address("0xbob")
)

func newTestToken() (*Token, *events.Log) {
	log := events.NewLog()
	return New(models.ContractAddress("ZEQ"), "Zeq Token", "ZEQ", 1000000, deployer, log), log
}

func amt(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestToken_Deployment(t *testing.T) {
	tok, _ := newTestToken()

	if tok.Name() != "Zeq Token" {
		t.Errorf("expected name %q, got %q", "Zeq Token", tok.Name())
	}
	if tok.Symbol() != "ZEQ" {
		t.Errorf("expected symbol %q, got %q", "ZEQ", tok.Symbol())
	}
	if tok.Decimals() != 18 {
		t.Errorf("expected 18 decimals, got %d", tok.Decimals())
	}
	if !tok.TotalSupply().Equal(amt("1000000")) {
		t.Errorf("expected total supply 1000000, got %s", tok.TotalSupply())
	}
	// Supply is minted to the deployer
	if !tok.BalanceOf(deployer).Equal(amt("1000000")) {
		t.Errorf("expected deployer balance 1000000, got %s", tok.BalanceOf(deployer))
	}
}

func TestToken_Transfer(t *testing.T) {
	tests := []struct {
		name      string
		from, to  models.Address
		amount    string
		expectErr error
	}{
		{
			name:   "Success",
			from:   deployer,
			to:     alice,
			amount: "100",
		},
		{
			name:      "ZeroAddressRecipient",
			from:      deployer,
			to:        models.ZeroAddress,
			amount:    "100",
			expectErr: ErrInvalidRecipient,
		},
		{
			name:      "InsufficientBalance",
			from:      alice,
			to:        bob,
			amount:    "1000001",
			expectErr: ErrInsufficientBalance,
		},
		{
			name:      "NegativeAmount",
			from:      deployer,
			to:        alice,
			amount:    "-1",
			expectErr: ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, _ := newTestToken()
			err := tok.Transfer(tt.from, tt.to, amt(tt.amount))
			if tt.expectErr != nil {
				if !errors.Is(err, tt.expectErr) {
					t.Errorf("expected %v, got %v", tt.expectErr, err)
				}
				// No partial effects
				if !tok.BalanceOf(deployer).Equal(amt("1000000")) {
					t.Errorf("failed transfer mutated balances")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tok.BalanceOf(tt.to).Equal(amt(tt.amount)) {
				t.Errorf("expected recipient balance %s, got %s", tt.amount, tok.BalanceOf(tt.to))
			}
		})
	}
}

func TestToken_TransferConservesSupply(t *testing.T) {
	tok, _ := newTestToken()

	transfers := []struct {
		from, to models.Address
		amount   string
	}{
		{deployer, alice, "500"},
		{alice, bob, "120.5"},
		{bob, deployer, "0.000000000000000001"},
		{alice, alice, "10"},
	}
	for _, tr := range transfers {
		if err := tok.Transfer(tr.from, tr.to, amt(tr.amount)); err != nil {
			t.Fatalf("transfer failed: %v", err)
		}
	}

	sum := tok.BalanceOf(deployer).Add(tok.BalanceOf(alice)).Add(tok.BalanceOf(bob))
	if !sum.Equal(tok.TotalSupply()) {
		t.Errorf("supply not conserved: sum %s, total %s", sum, tok.TotalSupply())
	}
}

func TestToken_TransferEmitsEvent(t *testing.T) {
	tok, log := newTestToken()

	if err := tok.Transfer(deployer, alice, amt("42")); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}

	entries := log.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 event, got %d", len(entries))
	}
	ev, ok := entries[0].Event.(events.Transfer)
	if !ok {
		t.Fatalf("expected Transfer event, got %T", entries[0].Event)
	}
	if ev.From != deployer || ev.To != alice || !ev.Value.Equal(amt("42")) {
		t.Errorf("unexpected event payload: %+v", ev)
	}
	if ev.Token != tok.Address() {
		t.Errorf("expected event token %s, got %s", tok.Address(), ev.Token)
	}
}

func TestToken_Approve(t *testing.T) {
	tok, log := newTestToken()

	if err := tok.Approve(deployer, models.ZeroAddress, amt("10")); !errors.Is(err, ErrInvalidSpender) {
		t.Errorf("expected ErrInvalidSpender, got %v", err)
	}

	if err := tok.Approve(deployer, alice, amt("100")); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if !tok.Allowance(deployer, alice).Equal(amt("100")) {
		t.Errorf("expected allowance 100, got %s", tok.Allowance(deployer, alice))
	}

	// Approve overwrites, it does not accumulate
	if err := tok.Approve(deployer, alice, amt("30")); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if !tok.Allowance(deployer, alice).Equal(amt("30")) {
		t.Errorf("expected allowance 30 after overwrite, got %s", tok.Allowance(deployer, alice))
	}

	entries := log.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 approval events, got %d", len(entries))
	}
	if _, ok := entries[0].Event.(events.Approval); !ok {
		t.Errorf("expected Approval event, got %T", entries[0].Event)
	}
}

func TestToken_TransferFrom(t *testing.T) {
	t.Run("FailsWithoutAllowance", func(t *testing.T) {
		tok, _ := newTestToken()
		// Balance is sufficient but no allowance exists
		err := tok.TransferFrom(alice, deployer, bob, amt("10"))
		if !errors.Is(err, ErrInsufficientAllowance) {
			t.Errorf("expected ErrInsufficientAllowance, got %v", err)
		}
	})

	t.Run("FailsWhenAllowanceExceedsBalance", func(t *testing.T) {
		tok, _ := newTestToken()
		if err := tok.Transfer(deployer, alice, amt("5")); err != nil {
			t.Fatal(err)
		}
		if err := tok.Approve(alice, bob, amt("100")); err != nil {
			t.Fatal(err)
		}
		err := tok.TransferFrom(bob, alice, deployer, amt("10"))
		if !errors.Is(err, ErrInsufficientBalance) {
			t.Errorf("expected ErrInsufficientBalance, got %v", err)
		}
		// Allowance untouched on failure
		if !tok.Allowance(alice, bob).Equal(amt("100")) {
			t.Errorf("failed transferFrom consumed allowance")
		}
	})

	t.Run("DecrementsAllowanceExactly", func(t *testing.T) {
		tok, _ := newTestToken()
		if err := tok.Approve(deployer, alice, amt("100")); err != nil {
			t.Fatal(err)
		}
		if err := tok.TransferFrom(alice, deployer, bob, amt("60")); err != nil {
			t.Fatalf("transferFrom failed: %v", err)
		}
		if !tok.BalanceOf(bob).Equal(amt("60")) {
			t.Errorf("expected bob balance 60, got %s", tok.BalanceOf(bob))
		}
		if !tok.Allowance(deployer, alice).Equal(amt("40")) {
			t.Errorf("expected remaining allowance 40, got %s", tok.Allowance(deployer, alice))
		}

		// Spending beyond the remaining allowance fails even with balance left
		err := tok.TransferFrom(alice, deployer, bob, amt("41"))
		if !errors.Is(err, ErrInsufficientAllowance) {
			t.Errorf("expected ErrInsufficientAllowance, got %v", err)
		}
	})
}
