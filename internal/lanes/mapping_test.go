package lanes

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Lllllllleong/forensicdocumentflow/internal/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		docType string
		want    models.Lane
	}{
		{"Financial Planner Letters", models.LaneCorrespondence},
		{"  financial   planner letter ", models.LaneCorrespondence},
		{"Legal Contracts & Agreements", models.LaneLegal},
		{"Prenuptial Agreement", models.LaneLegal},
		{"Bank Statements", models.LaneBankStatement},
		{"Bank Statements & Credit Card Statements", models.LaneBankStatement},
		{"CREDIT CARD STATEMENTS", models.LaneCreditCard},
		{"Tax Returns & Forms (Federal/State)", models.LaneTax},
		{"Check Registers & Ledgers", models.LaneCheckRegister},
		{"Handwritten Monthly Expense Logs", models.LaneExpenseLog},
		{"Receipts", models.LaneReceipt},
		{"Invoices & Bills", models.LaneInvoice},
		{"Court Judgments", models.LaneCourtJudgment},
		{"Real Estate Documents", models.LaneRealEstate},
		{"Bank Statements.", models.LaneBankStatement},
		{"", models.LaneGeneric},
		{"Unknown", models.LaneGeneric},
		{"Statement", models.LaneGeneric},
		{"Form 1040 Tax Return", models.LaneTax},
		{"Tax Letter from a Bank", models.LaneTax},
		{"Handwritten Check Register (2019)", models.LaneCheckRegister},
		{"Monthly Expense Log - Household", models.LaneExpenseLog},
		{"Syntax Reference Card", models.LaneGeneric},
		{"Taxi Receipt Scan", models.LaneGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.docType, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.docType))
		})
	}
}

func TestClassify_CanonicalNamesRouteToThemselves(t *testing.T) {
	for _, lane := range Lanes() {
		assert.Equal(t, lane, Classify(string(lane)), "lane %q", lane)
	}
}

func TestClassify_Deterministic(t *testing.T) {
	for _, r := range mappingTable {
		for _, alias := range r.aliases {
			first := Classify(alias)
			for i := 0; i < 5; i++ {
				assert.Equal(t, first, Classify(alias))
			}
		}
	}
}

func TestClassify_KeywordsFollowTableOrder(t *testing.T) {
	assert.Equal(t, models.LaneTax, Classify("Tax receipts stapled into an expense log"))
	assert.Equal(t, models.LaneCheckRegister, Classify("check register / expense log combo"))
}

func TestMappingTable_KeywordsAreNormalized(t *testing.T) {
	for _, r := range mappingTable {
		for _, kw := range r.keywords {
			assert.Equal(t, normalize(kw), kw, "keyword %q", kw)
		}
	}
}

func TestMappingTable_AliasesAreUnique(t *testing.T) {
	seen := map[string]models.Lane{}
	for _, r := range mappingTable {
		for _, alias := range r.aliases {
			key := normalize(alias)
			if prev, ok := seen[key]; ok {
				t.Errorf("alias %q maps to both %q and %q", alias, prev, r.lane)
			}
			seen[key] = r.lane
		}
	}
}

func TestMappingTable_CorrespondenceFirstGenericLast(t *testing.T) {
	lanes := Lanes()
	assert.Equal(t, models.LaneCorrespondence, lanes[0])
	assert.Equal(t, models.LaneGeneric, lanes[len(lanes)-1])
}

func TestClassificationPromptListsLanes(t *testing.T) {
	for _, lane := range Lanes() {
		if lane == models.LaneGeneric || lane == models.LaneMedia {
			continue
		}
		assert.True(t, strings.Contains(ClassificationPrompt, "- "+string(lane)+"\n"), "missing %q", lane)
	}
}

func TestRouter_EveryLaneHasStrategy(t *testing.T) {
	r := NewRouter(Deps{})
	for _, lane := range Lanes() {
		assert.Equal(t, lane, r.ForLane(lane).Lane())
	}
	assert.Equal(t, models.LaneGeneric, r.ForLane("nonsense").Lane())
	assert.Equal(t, models.LaneCreditCard, r.Route("credit card statement").Lane())
}
