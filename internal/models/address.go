package models

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContractAddress derives a stable address for an in-process deployment from
// a label (a token symbol, "exchange", ...). Deterministic so config files
// and seed scripts can name instances across restarts.
func ContractAddress(label string) Address {
	sum := sha256.Sum256([]byte(label))
	return Address("0x" + hex.EncodeToString(sum[:20]))
}
