package subscription

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Limit is either a bounded allowance of n resources or unbounded.
// The zero value is Bounded(0).
type Limit struct {
	n         int
	unbounded bool
}

// Bounded returns a limit allowing fewer than n resources
func Bounded(n int) Limit {
	if n < 0 {
		n = 0
	}
	return Limit{n: n}
}

// Unbounded returns a limit that every count satisfies
func Unbounded() Limit {
	return Limit{unbounded: true}
}

// IsUnbounded reports whether the limit is unbounded
func (l Limit) IsUnbounded() bool {
	return l.unbounded
}

// Value returns the numeric bound. ok is false for an unbounded limit.
func (l Limit) Value() (n int, ok bool) {
	if l.unbounded {
		return 0, false
	}
	return l.n, true
}

// Allows reports whether one more resource may be created when count already exist
func (l Limit) Allows(count int) bool {
	if l.unbounded {
		return true
	}
	if count < 0 {
		count = 0
	}
	return count < l.n
}

// Remaining returns how many more resources fit. ok is false for an unbounded limit.
func (l Limit) Remaining(count int) (remaining int, ok bool) {
	if l.unbounded {
		return 0, false
	}
	if count >= l.n {
		return 0, true
	}
	if count < 0 {
		count = 0
	}
	return l.n - count, true
}

func (l Limit) String() string {
	if l.unbounded {
		return "unbounded"
	}
	return strconv.Itoa(l.n)
}

// MarshalJSON encodes an unbounded limit as -1
func (l Limit) MarshalJSON() ([]byte, error) {
	if l.unbounded {
		return []byte("-1"), nil
	}
	return []byte(strconv.Itoa(l.n)), nil
}

// UnmarshalJSON decodes -1 as unbounded
func (l *Limit) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode limit: %w", err)
	}
	if n == -1 {
		*l = Unbounded()
		return nil
	}
	if n < 0 {
		return fmt.Errorf("decode limit: negative bound %d", n)
	}
	*l = Bounded(n)
	return nil
}
