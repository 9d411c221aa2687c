package domain

// VestingRow is one row of the core account_vesting table.
// Address is a bitcoin base58 address; VestingValue is in microstacks.
type VestingRow struct {
	Address      string
	VestingValue int64
	BlockID      int64
}

// UnlockedSupply is the total transferable supply at the latest accounts block.
type UnlockedSupply struct {
	BlockHeight    int64
	UnlockedSupply int64 // microstacks
}

// BalanceInfo is an account balance from the core accounts table.
type BalanceInfo struct {
	Address string // bitcoin base58 address
	Balance int64  // microstacks
}
