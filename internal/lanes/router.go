package lanes

import (
	"github.com/Lllllllleong/forensicdocumentflow/internal/models"
)

// Router selects the strategy for a classified page.
type Router struct {
	strategies map[models.Lane]Strategy
}

// NewRouter builds one strategy per lane over shared dependencies.
func NewRouter(deps Deps) *Router {
	all := []Strategy{
		&correspondenceStrategy{base{deps, models.LaneCorrespondence}},
		&legalStrategy{base{deps, models.LaneLegal}},
		&courtStrategy{base{deps, models.LaneCourtJudgment}},
		&realEstateStrategy{base{deps, models.LaneRealEstate}},
		&taxStrategy{base{deps, models.LaneTax}},
		&statementStrategy{base: base{deps, models.LaneCreditCard}, source: "credit_card"},
		&statementStrategy{base: base{deps, models.LaneBankStatement}, source: "bank_statement", checkImages: true},
		&checkRegisterStrategy{base{deps, models.LaneCheckRegister}},
		&expenseLogStrategy{base{deps, models.LaneExpenseLog}},
		&receiptStrategy{base{deps, models.LaneReceipt}},
		&invoiceStrategy{base{deps, models.LaneInvoice}},
		&mediaStrategy{base{deps, models.LaneMedia}},
		&genericStrategy{base{deps, models.LaneGeneric}},
	}
	r := &Router{strategies: make(map[models.Lane]Strategy, len(all))}
	for _, s := range all {
		r.strategies[s.Lane()] = s
	}
	return r
}

// Route returns the strategy for a classifier label.
func (r *Router) Route(docType string) Strategy {
	return r.ForLane(Classify(docType))
}

// ForLane returns the strategy registered for lane, or the Generic strategy.
func (r *Router) ForLane(lane models.Lane) Strategy {
	if s, ok := r.strategies[lane]; ok {
		return s
	}
	return r.strategies[models.LaneGeneric]
}
