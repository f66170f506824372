// internal/domain/ledger/cycle.go
package ledger

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxCycleNameLength is the longest cycle name accepted, counted in characters after trimming.
const MaxCycleNameLength = 100

// Cycle is a named partition of transactions (one trading round or account).
// Corresponds to the 'trade_cycles' table.
type Cycle struct {
	ID        uuid.UUID
	Name      string // unique, trimmed
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NormalizeCycleName trims name and checks the 1..100 character rule.
func NormalizeCycleName(name string) (string, error) {
	normalized := strings.TrimSpace(name)
	if normalized == "" {
		return "", Validationf("cycle name is required")
	}
	if utf8.RuneCountInString(normalized) > MaxCycleNameLength {
		return "", Validationf("cycle name must be at most %d characters", MaxCycleNameLength)
	}
	return normalized, nil
}
