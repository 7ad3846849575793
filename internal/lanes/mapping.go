package lanes

import (
	"strings"
	"unicode"

	"github.com/Lllllllleong/forensicdocumentflow/internal/models"
)

// rule maps classifier vocabulary onto a lane. Aliases are compared after
// normalization and must be unique across the whole table. Keywords are
// whole-word phrases tried in table order once no alias matches.
type rule struct {
	lane     models.Lane
	aliases  []string
	keywords []string
}

// mappingTable is ordered: correspondence before the statement and table
// lanes, Generic last.
var mappingTable = []rule{
	{models.LaneCorrespondence, []string{
		"Financial Planner Letters",
		"Financial Planner Letter",
		"Financial Planner Correspondence",
		"Financial Correspondence",
		"Correspondence",
		"Letter",
	}, nil},
	{models.LaneLegal, []string{
		"Legal Contracts & Agreements",
		"Legal Contracts and Agreements",
		"Legal Contract",
		"Contracts (NDA, MSA, Employment)",
		"Prenuptial Agreement",
	}, nil},
	{models.LaneCourtJudgment, []string{
		"Court Judgments",
		"Court Judgment",
		"Court Decree",
	}, nil},
	{models.LaneRealEstate, []string{
		"Real Estate Documents",
		"Real Estate Document",
		"Deed",
		"Mortgage",
	}, nil},
	{models.LaneTax, []string{
		"Tax Returns & Forms",
		"Tax Returns & Forms (Federal/State)",
		"Tax Returns and Forms",
		"Tax Return",
		"Tax Form",
	}, []string{"tax"}},
	{models.LaneCreditCard, []string{
		"Credit Card Statements",
		"Credit Card Statement",
	}, nil},
	{models.LaneBankStatement, []string{
		"Bank Statements",
		"Bank Statement",
		"Bank Statements & Credit Card Statements",
	}, nil},
	{models.LaneCheckRegister, []string{
		"Check Registers & Ledgers",
		"Check Registers and Ledgers",
		"Check Register",
		"Handwritten Check Registers",
	}, []string{"check register"}},
	{models.LaneExpenseLog, []string{
		"Handwritten Expense Logs",
		"Handwritten Monthly Expense Logs",
		"Handwritten Expense Log",
		"Expense Log",
	}, []string{"expense log", "handwritten monthly"}},
	{models.LaneReceipt, []string{
		"Receipts",
		"Receipt",
		"Invoices, Bills, & Receipts",
	}, nil},
	{models.LaneInvoice, []string{
		"Invoices & Bills",
		"Invoices and Bills",
		"Invoice",
		"Bill",
	}, nil},
	{models.LaneMedia, []string{
		"Media",
		"Media Transcript",
		"Audio",
		"Video",
	}, nil},
	{models.LaneGeneric, []string{
		"Generic",
		"Unknown",
		"Other",
	}, nil},
}

var aliasIndex = buildAliasIndex(mappingTable)

func buildAliasIndex(table []rule) map[string]models.Lane {
	idx := make(map[string]models.Lane)
	for _, r := range table {
		for _, a := range r.aliases {
			key := normalize(a)
			if _, dup := idx[key]; dup {
				continue
			}
			idx[key] = r.lane
		}
	}
	return idx
}

// normalize lowercases, trims and collapses inner whitespace. Trailing
// periods are dropped.
func normalize(s string) string {
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))
	return strings.TrimRight(s, ".")
}

// Classify maps a free-text classifier label to a lane: an exact alias first,
// then the first rule with a keyword in the label. Anything else is
// LaneGeneric.
func Classify(docType string) models.Lane {
	key := normalize(docType)
	if lane, ok := aliasIndex[key]; ok {
		return lane
	}
	words := " " + strings.Join(strings.FieldsFunc(key, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}), " ") + " "
	for _, r := range mappingTable {
		for _, kw := range r.keywords {
			if strings.Contains(words, " "+kw+" ") {
				return r.lane
			}
		}
	}
	return models.LaneGeneric
}

// Lanes returns every lane in table order.
func Lanes() []models.Lane {
	out := make([]models.Lane, 0, len(mappingTable))
	for _, r := range mappingTable {
		out = append(out, r.lane)
	}
	return out
}
