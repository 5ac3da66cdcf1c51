/**
 * @description
 * Demo provisioning data. A fresh store seeds two users, each with a
 * SAVINGS and a CHECKING account, so that local runs and tests start from
 * the same observable state.
 */

package store

import "github.com/tellerhq/ledger-service/internal/domain"

// SeedUser describes one provisioned demo user.
type SeedUser struct {
	ID       string
	PIN      string
	Balances map[domain.AccountType]int64
}

// DefaultSeed is the bootstrap state for a fresh store. Balances are in
// cents; both users share the default PIN.
func DefaultSeed() []SeedUser {
	return []SeedUser{
		{
			ID:  "USER001",
			PIN: "1234",
			Balances: map[domain.AccountType]int64{
				domain.AccountSavings:  100000,
				domain.AccountChecking: 50000,
			},
		},
		{
			ID:  "USER002",
			PIN: "1234",
			Balances: map[domain.AccountType]int64{
				domain.AccountSavings:  200000,
				domain.AccountChecking: 100000,
			},
		},
	}
}
