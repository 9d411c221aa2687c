package memory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"stacks-explorer-api/internal/domain"
	"stacks-explorer-api/internal/storage"
)

func TestHistoryStore_OrderingAndFilters(t *testing.T) {
	s := NewHistoryStore()
	ctx := context.Background()

	records := []*domain.HistoryRecord{
		{BlockID: 10, VTxIndex: 1, TxID: "a", Opcode: domain.OpcodeTokenTransfer, HistoryData: json.RawMessage(`{"sender":"1alice"}`)},
		{BlockID: 12, VTxIndex: 0, TxID: "b", Opcode: domain.OpcodeNameUpdate, HistoryID: "muneeb.id", HistoryData: json.RawMessage(`{"address":"1alice"}`)},
		{BlockID: 10, VTxIndex: 2, TxID: "c", Opcode: domain.OpcodeTokenTransfer, HistoryData: json.RawMessage(`{"recipient":"1bob"}`)},
	}
	for _, r := range records {
		if err := s.Insert(ctx, r); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	if err := s.Insert(ctx, &domain.HistoryRecord{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}

	byAddress, err := s.ByAddress(ctx, "1alice", 0, 10)
	if err != nil {
		t.Fatalf("ByAddress failed: %v", err)
	}
	if len(byAddress) != 2 || byAddress[0].TxID != "b" || byAddress[1].TxID != "a" {
		t.Errorf("Unexpected ByAddress order: %v", txids(byAddress))
	}

	transfers, err := s.RecentTokenTransfers(ctx, 0, 10)
	if err != nil {
		t.Fatalf("RecentTokenTransfers failed: %v", err)
	}
	if got := txids(transfers); len(got) != 2 || got[0] != "c" || got[1] != "a" {
		t.Errorf("Unexpected transfer order: %v", got)
	}

	byName, err := s.ByName(ctx, "muneeb.id", 0, 10)
	if err != nil {
		t.Fatalf("ByName failed: %v", err)
	}
	if len(byName) != 1 {
		t.Errorf("Expected 1 name record, got %d", len(byName))
	}

	if _, err := s.ByTxID(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func txids(records []*domain.HistoryRecord) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.TxID)
	}
	return ids
}

func TestNameStore(t *testing.T) {
	s := NewNameStore()
	ctx := context.Background()

	for _, n := range []*domain.NameRecord{
		{Name: "old.id", BlockNumber: 1},
		{Name: "new.id", BlockNumber: 5},
	} {
		if err := s.InsertName(ctx, n); err != nil {
			t.Fatalf("InsertName failed: %v", err)
		}
	}
	for _, sub := range []*domain.Subdomain{
		{Name: "a.new.id", Sequence: 0, BlockHeight: 6},
		{Name: "a.new.id", Sequence: 1, BlockHeight: 7},
		{Name: "b.new.id", BlockHeight: 8},
	} {
		if err := s.InsertSubdomain(ctx, sub); err != nil {
			t.Fatalf("InsertSubdomain failed: %v", err)
		}
	}

	recent, err := s.RecentNames(ctx, 0, 1)
	if err != nil {
		t.Fatalf("RecentNames failed: %v", err)
	}
	if len(recent) != 1 || recent[0].Name != "new.id" {
		t.Errorf("Expected [new.id], got %v", recent)
	}

	subs, err := s.SubdomainCount(ctx)
	if err != nil {
		t.Fatalf("SubdomainCount failed: %v", err)
	}
	if subs != 2 {
		t.Errorf("SubdomainCount mismatch: got %d, want 2", subs)
	}

	names, err := s.NameCount(ctx)
	if err != nil {
		t.Fatalf("NameCount failed: %v", err)
	}
	if names != 2 {
		t.Errorf("NameCount mismatch: got %d, want 2", names)
	}

	if _, err := s.Name(ctx, "missing.id"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestAccountStore(t *testing.T) {
	s := NewAccountStore()
	ctx := context.Background()

	s.InsertVesting(&domain.VestingRow{Address: "1alice", BlockID: 300, VestingValue: 30})
	s.InsertVesting(&domain.VestingRow{Address: "1alice", BlockID: 100, VestingValue: 10})
	s.InsertVesting(&domain.VestingRow{Address: "1bob", BlockID: 200, VestingValue: 20})
	s.InsertCredit("1alice", 373601, 5)
	s.InsertCredit("1alice", 373601, 7)
	s.InsertBalance(&domain.BalanceInfo{Address: "1alice", Balance: 10})
	s.InsertBalance(&domain.BalanceInfo{Address: "1bob", Balance: 20})

	rows, err := s.Vesting(ctx, "1alice")
	if err != nil {
		t.Fatalf("Vesting failed: %v", err)
	}
	if len(rows) != 2 || rows[0].BlockID != 100 {
		t.Errorf("Expected ascending alice rows, got %v", rows)
	}

	credit, err := s.CreditAtBlock(ctx, "1alice", 373601)
	if err != nil {
		t.Fatalf("CreditAtBlock failed: %v", err)
	}
	if credit != 12 {
		t.Errorf("Credit mismatch: got %d, want 12", credit)
	}

	top, err := s.TopBalances(ctx, 1)
	if err != nil {
		t.Fatalf("TopBalances failed: %v", err)
	}
	if len(top) != 1 || top[0].Address != "1bob" {
		t.Errorf("Expected [1bob], got %v", top)
	}

	if _, err := s.UnlockedSupply(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound before SetUnlockedSupply, got %v", err)
	}
	s.SetUnlockedSupply(&domain.UnlockedSupply{BlockHeight: 600000, UnlockedSupply: 42})
	supply, err := s.UnlockedSupply(ctx)
	if err != nil {
		t.Fatalf("UnlockedSupply failed: %v", err)
	}
	if supply.UnlockedSupply != 42 {
		t.Errorf("UnlockedSupply mismatch: got %d, want 42", supply.UnlockedSupply)
	}
}
