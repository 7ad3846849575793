// Package ledger checks the running-balance arithmetic of statement rows.
package ledger

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
)

// Tolerance is the largest difference between the expected and the printed
// balance that still counts as consistent.
const Tolerance = 0.05

var (
	nonNumeric    = regexp.MustCompile(`[^0-9.-]+`)
	leadingNumber = regexp.MustCompile(`^-?(\d+\.?\d*|\.\d+)`)
)

// Line is one row of an extracted statement. Amount and Balance keep whatever
// value the extractor produced: a number, a formatted string, or nil.
type Line struct {
	Date        string
	Description string
	Amount      any
	Balance     any
}

// ParseNumber reads a monetary value after dropping every character that is
// not a digit, a dot or a minus sign. Values with no leading number are
// reported as not ok.
func ParseNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		return n, !math.IsNaN(n)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	cleaned := nonNumeric.ReplaceAllString(fmt.Sprint(v), "")
	m := leadingNumber.FindString(cleaned)
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ParseLines converts the decoded JSON array found under "statement_lines".
// Entries that are not objects become empty lines so indexes are preserved.
func ParseLines(raw any) []Line {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	lines := make([]Line, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		lines[i] = Line{
			Date:        stringOf(m["date"]),
			Description: stringOf(m["description"]),
			Amount:      m["amount"],
			Balance:     m["balance"],
		}
	}
	return lines
}

// Verify returns the indexes i (i >= 1) where the previous balance plus the
// current amount differs from the current balance by more than Tolerance.
// Pairs with a missing or unreadable field are skipped. Index 0 is never
// reported.
func Verify(lines []Line) []int {
	if len(lines) < 2 {
		return []int{}
	}
	failed := []int{}
	for i := 1; i < len(lines); i++ {
		prev, curr := lines[i-1], lines[i]
		if prev.Balance == nil || curr.Balance == nil || curr.Amount == nil {
			continue
		}
		pBal, ok1 := ParseNumber(prev.Balance)
		cAmt, ok2 := ParseNumber(curr.Amount)
		cBal, ok3 := ParseNumber(curr.Balance)
		if !ok1 || !ok2 || !ok3 {
			continue
		}
		if math.Abs(pBal+cAmt-cBal) > Tolerance {
			failed = append(failed, i)
		}
	}
	return failed
}

// Verified reports, per line, whether its index is absent from failed.
func Verified(n int, failed []int) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = true
	}
	for _, idx := range failed {
		if idx >= 0 && idx < n {
			out[idx] = false
		}
	}
	return out
}

func stringOf(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
