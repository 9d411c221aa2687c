package vesting

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// excludedPrefix marks placeholder allocations kept out of the address index.
const excludedPrefix = "SP00"

// Genesis is the immutable genesis snapshot.
type Genesis struct {
	accounts  []*Account
	byAddress map[string]*Schedule
}

// NewGenesis indexes accounts by address. Accounts whose address starts with
// SP00 are left out of the index but still count toward totals.
func NewGenesis(accounts []*Account) *Genesis {
	g := &Genesis{
		accounts:  accounts,
		byAddress: make(map[string]*Schedule, len(accounts)),
	}
	for _, a := range accounts {
		if strings.HasPrefix(a.Address, excludedPrefix) {
			continue
		}
		g.byAddress[a.Address] = NewSchedule(a)
	}
	return g
}

// ReadGenesis decodes a JSON array of accounts.
func ReadGenesis(r io.Reader) (*Genesis, error) {
	var accounts []*Account
	if err := json.NewDecoder(r).Decode(&accounts); err != nil {
		return nil, fmt.Errorf("decode genesis accounts: %w", err)
	}
	return NewGenesis(accounts), nil
}

// LoadGenesis reads the snapshot file at path.
func LoadGenesis(path string) (*Genesis, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open genesis file: %w", err)
	}
	defer f.Close()
	return ReadGenesis(f)
}

// Accounts returns every account in snapshot order.
func (g *Genesis) Accounts() []*Account {
	return g.accounts
}

// Account returns the schedule of an indexed address.
func (g *Genesis) Account(address string) (*Schedule, bool) {
	s, ok := g.byAddress[address]
	return s, ok
}
