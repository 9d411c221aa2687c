// Package vesting computes token vesting and transferability schedules from the
// genesis snapshot. Everything here is pure; dates are unix seconds.
package vesting

import (
	"sort"
)

// Genesis anchor used to map block heights to wall-clock dates.
const (
	GenesisBlock int64 = 538161
	GenesisEpoch int64 = 1535059015

	secondsPerBlock int64 = 10 * 60
)

// BlockToTime returns the nominal unix time of block, assuming ten-minute blocks.
func BlockToTime(block int64) int64 {
	return GenesisEpoch + (block-GenesisBlock)*secondsPerBlock
}

// Account is one genesis allocation. Amounts are microstacks.
type Account struct {
	Address      string          `json:"address"`
	Value        int64           `json:"value"`
	Vesting      map[int64]int64 `json:"vesting"` // block height -> amount
	VestingTotal int64           `json:"vesting_total"`
	LockSend     int64           `json:"lock_send"`
}

// Grant is one vesting increment.
type Grant struct {
	Block  int64
	Amount int64
}

// Grants returns the account's vesting increments ordered by block ascending.
func (a *Account) Grants() []Grant {
	grants := make([]Grant, 0, len(a.Vesting))
	for block, amount := range a.Vesting {
		grants = append(grants, Grant{Block: block, Amount: amount})
	}
	sort.Slice(grants, func(i, j int) bool { return grants[i].Block < grants[j].Block })
	return grants
}

// Total returns the declared vesting total, or the sum of grants when none is declared.
func (a *Account) Total() int64 {
	if a.VestingTotal != 0 {
		return a.VestingTotal
	}
	var sum int64
	for _, amount := range a.Vesting {
		sum += amount
	}
	return sum
}

// Schedule is an account annotated with its per-date vesting progress.
type Schedule struct {
	*Account
	TransferUnlockDate     int64           `json:"transferUnlockDate"`
	CumulativeVestedByDate map[int64]int64 `json:"cumulativeVestedByDate"`
}

// NewSchedule derives the cumulative vested amount at each grant date.
func NewSchedule(a *Account) *Schedule {
	s := &Schedule{
		Account:                a,
		TransferUnlockDate:     BlockToTime(a.LockSend),
		CumulativeVestedByDate: make(map[int64]int64, len(a.Vesting)),
	}
	var cumulative int64
	for _, g := range a.Grants() {
		cumulative += g.Amount
		s.CumulativeVestedByDate[BlockToTime(g.Block)] = cumulative
	}
	return s
}

// Totals aggregates every genesis account.
type Totals struct {
	InitialValue           int64           `json:"initialValue"`
	VestedValues           int64           `json:"vestedValues"`
	AddressCount           int             `json:"addressCount"`
	VestedAtDate           map[int64]int64 `json:"vestedAtDate"`
	TransferrableAtDate    map[int64]int64 `json:"transferrableAtDate"`
	CumulativeVestedAtDate map[int64]int64 `json:"cumulativeVestedAtDate"`
}

// ComputeTotals aggregates vesting and transferability over accounts.
//
// Tokens become transferrable only at or after an account's lock-send block. The
// first grant at or after it releases every grant up to and including itself;
// later grants release their own amount. An account whose last grant precedes its
// lock-send block releases its whole total at the lock-send date instead.
// Amounts from different accounts landing on the same date are summed.
func ComputeTotals(accounts []*Account) *Totals {
	t := &Totals{
		AddressCount:           len(accounts),
		VestedAtDate:           make(map[int64]int64),
		TransferrableAtDate:    make(map[int64]int64),
		CumulativeVestedAtDate: make(map[int64]int64),
	}

	for _, a := range accounts {
		t.InitialValue += a.Value
		t.VestedValues += a.Total()

		grants := a.Grants()
		var (
			vestedSoFar int64
			unlocked    bool
		)
		for _, g := range grants {
			date := BlockToTime(g.Block)
			vestedSoFar += g.Amount
			t.VestedAtDate[date] += g.Amount
			if _, ok := t.TransferrableAtDate[date]; !ok {
				t.TransferrableAtDate[date] = 0
			}
			if g.Block < a.LockSend {
				continue
			}
			if !unlocked {
				t.TransferrableAtDate[date] += vestedSoFar
				unlocked = true
			} else {
				t.TransferrableAtDate[date] += g.Amount
			}
		}

		if len(grants) > 0 && grants[len(grants)-1].Block < a.LockSend {
			t.TransferrableAtDate[BlockToTime(a.LockSend)] += a.Total()
		}
	}

	dates := make([]int64, 0, len(t.VestedAtDate))
	for date := range t.VestedAtDate {
		dates = append(dates, date)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i] < dates[j] })

	var cumulative int64
	for _, date := range dates {
		cumulative += t.VestedAtDate[date]
		t.CumulativeVestedAtDate[date] = cumulative
	}
	return t
}

// Unlock splits a vesting schedule at a chain tip.
type Unlock struct {
	TotalUnlocked int64 `json:"totalUnlocked"`
	TotalLocked   int64 `json:"totalLocked"`
	VestingTotal  int64 `json:"vestingTotal"`
}

// UnlockAt classifies grants at or below tip as unlocked and the rest as locked.
func UnlockAt(grants []Grant, tip int64) Unlock {
	var u Unlock
	for _, g := range grants {
		u.VestingTotal += g.Amount
		if g.Block <= tip {
			u.TotalUnlocked += g.Amount
		} else {
			u.TotalLocked += g.Amount
		}
	}
	return u
}
