// Package naming derives the archive base name of a document from the data
// extracted from its first page.
package naming

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/Lllllllleong/forensicdocumentflow/internal/models"
)

const (
	// MaxComponentLen bounds each sanitized name component, in runes.
	MaxComponentLen = 50
	// MaxNameLen bounds the complete base name, in runes.
	MaxNameLen = 120

	UnknownDate = "0000-00-00"
	unknown     = "Unknown"
)

var (
	isoDate    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	hostile    = regexp.MustCompile(`[\\/:*?"<>|]`)
	whitespace = regexp.MustCompile(`\s+`)
)

// dateLayouts are tried in order for dates not already in ISO form.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"January 2, 2006",
	"Jan 2, 2006",
	"January 2 2006",
	"Jan 2 2006",
	"2 January 2006",
	"02 Jan 2006",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"2006/01/02",
	"January 2006",
	"Jan 2006",
	"2006-01",
	"2006",
}

// BaseName returns a filesystem-safe base name for a document.
//
// A normalized "_metadata" block wins when present and yields
// "{date}_{type}_{entity}". Otherwise lane-specific fields are looked up
// (case-insensitively, across known synonyms) and joined with " - ".
func BaseName(lane models.Lane, data map[string]any) string {
	if meta, ok := asMap(data[models.MetadataKey]); ok && len(meta) > 0 {
		return bound(fromMetadata(meta))
	}

	date, kind, source, person := UnknownDate, "Document", "Source", "Person"

	switch lane {
	case models.LaneCorrespondence:
		date = FormatDate(lookup(data, "Letter Date"))
		org := Sanitize(lookup(data, "Organization", "Addressor Name"))
		subject := Sanitize(lookup(data, "Subject"))
		recipient := Sanitize(lookup(data, "Recipients", "Addressee Name"))
		return bound(strings.Join([]string{date, org, subject, recipient}, " - "))

	case models.LaneTax:
		date = FormatDate(lookup(data, "Tax Year"))
		kind = Sanitize(orDefault(lookup(data, "Form Number", "Form"), "Tax Form"))
		source = Sanitize(lookup(data, "Jurisdiction"))
		person = Sanitize(lookup(data, "Entity Name", "Entity"))

	case models.LaneReceipt, models.LaneInvoice:
		date = FormatDate(lookup(data, "Transaction Date", "Invoice Date", "Date"))
		kind = "Receipt"
		if lane == models.LaneInvoice {
			kind = "Invoice"
		}
		source = Sanitize(lookup(data, "Vendor Name", "Vendor/Merchant Name", "Merchant Name"))
		person = Sanitize(orDefault(lookup(data, "Operator/Cashier", "Customer Name"), unknown))

	case models.LaneBankStatement, models.LaneCreditCard:
		d := lookup(data, "Statement Period", "Period")
		if s, ok := d.(string); ok {
			if _, end, found := strings.Cut(s, " to "); found {
				d = end
			}
		}
		date = FormatDate(d)
		kind = "Statement"
		source = Sanitize(lookup(data, "Financial Institution", "Bank Name", "Issuer"))
		person = Sanitize(lookup(data, "Account Number (Masked)", "Account Number"))

	case models.LaneCheckRegister:
		summary, _ := asMap(lookup(data, "register_summary"))
		d := lookup(summary, "period")
		if s, ok := d.(string); ok {
			if start, _, found := strings.Cut(s, " - "); found {
				d = start
			}
		}
		date = FormatDate(d)
		kind = "Check Register"
		source = Sanitize(lookup(summary, "entity_name"))
		person = Sanitize(orDefault(lookup(summary, "account_holder"), "Account Holder"))

	default:
		date = FormatDate(lookup(data, "Transaction Date", "Statement Period", "Letter Date", "Tax Year", "Date"))
		docType := lookup(data, models.DocTypeKey)
		if docType == nil && lane != "" {
			docType = string(lane)
		}
		kind = Sanitize(orDefault(docType, "Document"))
		source = Sanitize(lookup(data, "Vendor Name", "Vendor/Merchant Name", "Financial Institution", "Addressor Name", "Entity Name"))
		person = Sanitize(lookup(data, "Addressee Name", "Operator/Cashier"))
	}

	return bound(strings.Join([]string{date, kind, source, person}, " - "))
}

func fromMetadata(meta map[string]any) string {
	date := FormatDate(lookup(meta, "primary_date", "date"))
	entity := Sanitize(orDefault(lookup(meta, "entity_name", "entity"), "Entity"))
	kind := Sanitize(orDefault(lookup(meta, "doc_type", "type"), "Document"))

	switch {
	case strings.Contains(kind, "Statement"):
		kind = "Stmt"
	case strings.Contains(kind, "Financial"):
		kind = "Fin"
	case strings.Contains(kind, "Contract"):
		kind = "Legal"
	}
	return date + "_" + kind + "_" + entity
}

// FormatDate normalizes an extracted date to YYYY-MM-DD. ISO dates pass
// through verbatim. A missing value yields UnknownDate; an unparseable one is
// sanitized and used as a label.
func FormatDate(v any) string {
	if isEmpty(v) {
		return UnknownDate
	}
	s := strings.TrimSpace(fmt.Sprint(v))
	if isoDate.MatchString(s) {
		return s
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return Sanitize(s)
}

// Sanitize makes a single name component filesystem safe: path-hostile and
// control characters are removed, whitespace is collapsed and the result is
// truncated to MaxComponentLen runes. It never returns an empty string.
func Sanitize(v any) string {
	if isEmpty(v) {
		return unknown
	}
	s := hostile.ReplaceAllString(fmt.Sprint(v), "")
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
	s = truncate(s, MaxComponentLen)
	if s == "" {
		return unknown
	}
	return s
}

func bound(name string) string {
	name = strings.Trim(truncate(name, MaxNameLen), " -_.")
	if name == "" {
		return unknown
	}
	return name
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n]))
}

// lookup returns the first non-empty value whose key matches one of keys,
// ignoring case and surrounding whitespace.
func lookup(data map[string]any, keys ...string) any {
	if data == nil {
		return nil
	}
	for _, key := range keys {
		want := strings.ToLower(key)
		if v, ok := data[key]; ok && !isEmpty(v) {
			return v
		}
		for _, k := range slices.Sorted(maps.Keys(data)) {
			if strings.ToLower(strings.TrimSpace(k)) == want && !isEmpty(data[k]) {
				return data[k]
			}
		}
	}
	return nil
}

func orDefault(v any, def string) any {
	if isEmpty(v) {
		return def
	}
	return v
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case bool:
		return !x
	}
	return false
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}
