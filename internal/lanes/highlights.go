package lanes

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Lllllllleong/forensicdocumentflow/internal/ledger"
	"github.com/Lllllllleong/forensicdocumentflow/internal/models"
)

var printer = message.NewPrinter(language.English)

// money formats v as a dollar amount with thousands separators.
func money(v float64) string {
	return printer.Sprintf("$%.2f", v)
}

// count formats an integer with thousands separators.
func count(n int) string {
	return printer.Sprintf("%d", n)
}

// str renders a scalar extracted value; empty for nil and containers.
func str(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%g", x)
	case map[string]any, []any:
		return ""
	}
	return fmt.Sprint(v)
}

func list(v any) []any {
	switch x := v.(type) {
	case []any:
		return x
	case []map[string]any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = x[i]
		}
		return out
	}
	return nil
}

func obj(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func amount(v any) (float64, bool) {
	if str(v) == "" {
		return 0, false
	}
	return ledger.ParseNumber(v)
}

// orderedSet keeps the first occurrence of each non-empty value.
type orderedSet struct {
	seen  map[string]bool
	items []string
}

func (s *orderedSet) add(v any) {
	val := str(v)
	if val == "" {
		return
	}
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	if s.seen[val] {
		return
	}
	s.seen[val] = true
	s.items = append(s.items, val)
}

func (s *orderedSet) join(sep string) string { return strings.Join(s.items, sep) }
func (s *orderedSet) empty() bool            { return len(s.items) == 0 }

func pageData(p models.Page) map[string]any {
	if p.ExtractedData == nil {
		return map[string]any{}
	}
	return p.ExtractedData
}

func bullet(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "- **%s:** %s\n", label, value)
}
