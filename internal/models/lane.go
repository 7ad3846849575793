package models

// Lane is a document category. It selects both the extraction strategy and the
// persistence target for a page.
type Lane string

const (
	LaneLegal          Lane = "Legal Contracts & Agreements"
	LaneCorrespondence Lane = "Financial Planner Letters"
	LaneBankStatement  Lane = "Bank Statements"
	LaneCreditCard     Lane = "Credit Card Statements"
	LaneTax            Lane = "Tax Returns & Forms"
	LaneCheckRegister  Lane = "Check Registers & Ledgers"
	LaneExpenseLog     Lane = "Handwritten Expense Logs"
	LaneReceipt        Lane = "Receipts"
	LaneInvoice        Lane = "Invoices & Bills"
	LaneCourtJudgment  Lane = "Court Judgments"
	LaneRealEstate     Lane = "Real Estate Documents"
	LaneMedia          Lane = "Media"
	LaneGeneric        Lane = "Generic"
)

func (l Lane) String() string { return string(l) }

// Datastore collections.
const (
	CollectionDocuments      = "documents"
	CollectionPages          = "pages"
	CollectionStatementLines = "statement_lines"
	CollectionLegalDocuments = "legal_documents"
	CollectionCorrespondence = "financial_correspondence"
	CollectionTaxDocuments   = "tax_documents"
	CollectionEvidenceLogs   = "evidence_logs"
	CollectionReceiptsLog    = "receipts_log"
	CollectionRealEstate     = "real_estate_assets"
	CollectionMetadataOnly   = "documents (metadata only)"
)

// RestrictionsDocumentType is the legal document type whose restrictions are
// cross-referenced by the correspondence lane.
const RestrictionsDocumentType = "Prenuptial Agreement"

// LaneCollections lists every collection a lane strategy may write to.
var LaneCollections = []string{
	CollectionStatementLines,
	CollectionLegalDocuments,
	CollectionCorrespondence,
	CollectionTaxDocuments,
	CollectionEvidenceLogs,
	CollectionReceiptsLog,
	CollectionRealEstate,
}

// Record is one row destined for a lane collection. Every record carries doc_id.
type Record map[string]any
