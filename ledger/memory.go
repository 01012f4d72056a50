// Package ledger provides an in-memory token ledger for development and tests.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cloudx-io/assetauction/core"
	"github.com/cloudx-io/assetauction/engine"
)

// ErrAccountNotFound is returned when a transfer credits an account that was never created.
var ErrAccountNotFound = errors.New("ledger account not found")

type account struct {
	owner core.Address
	token core.TokenType
}

// Memory is a token ledger holding one balance per (owner, token) account.
// A transfer batch is applied under a single lock, so readers never see part of a batch.
type Memory struct {
	mu       sync.RWMutex
	balances map[account]uint64
}

var _ engine.Ledger = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{balances: make(map[account]uint64)}
}

// BalanceOf returns zero for accounts that do not exist.
func (m *Memory) BalanceOf(ctx context.Context, owner core.Address, token core.TokenType) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balances[account{owner, token}], nil
}

func (m *Memory) CreateAccount(ctx context.Context, owner core.Address, token core.TokenType) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if owner == "" || token == "" {
		return errors.New("account owner and token are required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	acc := account{owner, token}
	if _, ok := m.balances[acc]; !ok {
		m.balances[acc] = 0
	}
	return nil
}

// Mint credits amount to a user account, creating it if needed. Derived accounts can only
// be funded by transfers.
func (m *Memory) Mint(ctx context.Context, owner core.Address, token core.TokenType, amount uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if owner.IsDerived() {
		return fmt.Errorf("%w: cannot mint into derived account %s", core.ErrUnauthorized, owner)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	acc := account{owner, token}
	balance, err := core.CheckedAdd(m.balances[acc], amount)
	if err != nil {
		return err
	}
	m.balances[acc] = balance
	return nil
}

// Transfer applies every leg in order or none of them.
func (m *Memory) Transfer(ctx context.Context, legs ...engine.Transfer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	staged := make(map[account]uint64)
	balanceOf := func(acc account) (uint64, bool) {
		if b, ok := staged[acc]; ok {
			return b, true
		}
		b, ok := m.balances[acc]
		return b, ok
	}

	for i, leg := range legs {
		if !leg.Authority.Authorizes(leg.From) {
			return fmt.Errorf("leg %d: %w: %s cannot spend from %s", i, core.ErrUnauthorized, leg.Authority, leg.From)
		}
		from := account{leg.From, leg.Token}
		to := account{leg.To, leg.Token}

		fromBalance, _ := balanceOf(from)
		debited, err := core.CheckedSub(fromBalance, leg.Amount)
		if err != nil {
			return fmt.Errorf("leg %d: %w", i, err)
		}
		staged[from] = debited

		toBalance, ok := balanceOf(to)
		if !ok {
			return fmt.Errorf("leg %d: %w: %s/%s", i, ErrAccountNotFound, leg.To, leg.Token)
		}
		credited, err := core.CheckedAdd(toBalance, leg.Amount)
		if err != nil {
			return fmt.Errorf("leg %d: %w", i, err)
		}
		staged[to] = credited
	}

	for acc, balance := range staged {
		m.balances[acc] = balance
	}
	return nil
}
