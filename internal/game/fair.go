package game

import (
	"encoding/hex"

	"trader-game/internal/rng"
)

// VerifySeed checks a revealed round seed against the hash commitment that
// was published when the round started. The multiplier trajectory derives
// deterministically from the seed, so a matching seed proves the round was
// not steered after the commitment.
func VerifySeed(seedHex, hash string) bool {
	b, err := hex.DecodeString(seedHex)
	if err != nil {
		return false
	}
	return rng.HashHex(b) == hash
}
