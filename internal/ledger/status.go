package ledger

import (
	"math"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// precedence ranks statuses. Automatic matching only overwrites a strictly
// lower rank; late shares present's rank so it survives re-detection.
var precedence = map[database.Status]int{
	database.StatusAbsent:  0,
	database.StatusPresent: 1,
	database.StatusLate:    1,
	database.StatusExcused: 2,
}

func rank(s database.Status) int {
	if r, ok := precedence[s]; ok {
		return r
	}
	// unknown statuses written by other tools are left alone
	return precedence[database.StatusPresent]
}

// canMarkPresent reports whether an automatic match may write present over
// the existing status. nil means no record exists.
func canMarkPresent(existing *database.Status) bool {
	return existing == nil || rank(*existing) < rank(database.StatusPresent)
}

// canExcuse reports whether a manual excuse changes the existing status
func canExcuse(existing *database.Status) bool {
	return existing == nil || *existing != database.StatusExcused
}

// clampConfidence maps any score into [0, 1]
func clampConfidence(c float64) float64 {
	if math.IsNaN(c) {
		return 0
	}
	return max(0, min(1, c))
}
