package lanes

import (
	"strings"

	"github.com/Lllllllleong/forensicdocumentflow/internal/models"
)

// RestrictionsPlaceholder is replaced with the active restrictions record in
// CorrespondencePrompt.
const RestrictionsPlaceholder = "{{PRENUP_CONTEXT}}"

// NoRestrictions is injected when no restrictions record exists.
const NoRestrictions = "NO ACTIVE RESTRICTIONS FOUND."

// OCRPlaceholder is replaced with the raw OCR text in the handwriting prompts.
const OCRPlaceholder = "{{OCR_TEXT}}"

// ClassificationPrompt asks for one label out of the lane vocabulary.
var ClassificationPrompt = `You are a forensic document classifier. Look at the attached page and decide which category it belongs to.

Choose exactly one of:
` + laneList() + `
If none of them fit, answer "Generic".

Return JSON only:
{ "docType": "<one category from the list>", "reasoning": "<one sentence>" }`

func laneList() string {
	var b strings.Builder
	for _, l := range Lanes() {
		if l == models.LaneGeneric || l == models.LaneMedia {
			continue
		}
		b.WriteString("- " + string(l) + "\n")
	}
	return b.String()
}

const LegalPrompt = `You are a forensic legal analyst. Analyze this contract or agreement page.

Return JSON:
{
  "Document Type": "string (e.g. Prenuptial Agreement, NDA, Lease)",
  "Effective Date": "YYYY-MM-DD",
  "Parties": ["string"],
  "Obligations": [{ "Party": "string", "Obligation": "string", "Amount": "currency string" }],
  "Restrictions": ["string"],
  "Risks": [{ "Risk": "string", "Severity": "High|Medium|Low", "Reasoning": "string" }],
  "Timeline": [{ "Date": "YYYY-MM-DD", "Event": "string" }]
}`

const CorrespondencePrompt = `You are a forensic analyst reviewing correspondence from a financial planner.
Do not assume accounts referred to jointly are joint assets; treat a collective "we" as conversational.

Cross-reference the letter against these active restrictions:
` + RestrictionsPlaceholder + `

Return JSON:
{
  "Letter Date": "YYYY-MM-DD",
  "Organization": "string",
  "Recipients": "string",
  "Subject": "string",
  "Forensic Analysis": {
    "Recommendations": "string",
    "Portfolio Impact": "string",
    "Commingling Observations": "string",
    "Trust Observations": "string",
    "Spousal Benefit Analysis": "string",
    "Violations": [{ "Violation": "string", "Restriction": "string" }]
  }
}`

const StatementPrompt = `You are a forensic accountant. Extract the ledger from this statement page in printed order.

Return JSON:
{
  "Financial Institution": "string",
  "Account Number (Masked)": "string",
  "Account Number": "string",
  "Statement Period": "YYYY-MM-DD to YYYY-MM-DD",
  "Opening Balance": "currency string",
  "Closing Balance": "currency string",
  "statement_lines": [
    { "date": "YYYY-MM-DD", "description": "string", "amount": "signed currency string", "balance": "currency string" }
  ]
}`

const CheckImagesPrompt = `### Forensic Analysis
**Sub-Category:** Bank Statement Check Images

Analyze the page. If there are scanned check images, extract each one.
If NO check images are found, return { "checks": [] }.

Return JSON:
{
  "checks": [
    {
      "Statement Verification Line": "string",
      "Payor Block": { "Name": "string", "Address": "string", "Phone": "string" },
      "Date Written": "YYYY-MM-DD",
      "Check # (Image)": 123,
      "Payee Name": "string",
      "Courtesy Amount": "currency string",
      "Legal Amount": "string",
      "MICR Line": "string"
    }
  ]
}`

const TaxPrompt = `You are a forensic tax analyst. Extract the key figures from this tax return or form page.

Return JSON:
{
  "Tax Year": "YYYY",
  "Form": "string",
  "Jurisdiction": "string",
  "Entity": "string",
  "Total Income": "currency string",
  "Tax Liability": "currency string",
  "Depreciation": [{ "Asset": "string", "Amount": "currency string" }]
}`

const CheckRegisterPrompt = `You are a forensic document examiner. Reconstruct the handwritten check register on this page.
Use the OCR text as a hint; the page image is authoritative.

OCR TEXT:
` + OCRPlaceholder + `

Return JSON:
{
  "register_summary": { "entity_name": "string", "account_holder": "string", "period": "MM/DD/YYYY - MM/DD/YYYY" },
  "transactions": [
    { "Check Number": "string", "Entry Date": "string", "Transaction Description": "string",
      "Payment Amount (-)": "currency string", "Deposit Amount (+)": "currency string",
      "Reconciled Flag": true, "Running Balance": "currency string", "Void Indicator": false }
  ]
}`

const ExpenseLogPrompt = `You are a forensic document examiner. Analyze the following OCR text from a handwritten monthly expense log.
Resolve ditto marks (") from the rows above and keep margin notes as payee modifiers.

OCR TEXT:
` + OCRPlaceholder + `

Return JSON with keys "Entity Name", "Reporting Period" and "Transactions", where each transaction has
"Payee (Main)", "Payee Modifier (Margin)", "Payment Method", "Amount" and "Ditto Resolution".`

const ReceiptPrompt = `You are a forensic analyst. Extract all details from this receipt.

Return JSON:
{
  "Vendor Name": "string",
  "Vendor Address": "string",
  "Transaction Date": "YYYY-MM-DD",
  "Operator/Cashier": "string",
  "Receipt ID": "string",
  "Net Receipt Total": "currency string",
  "Tax Receipt Total": "currency string",
  "Gross Receipt Total": "currency string",
  "Payment Information": { "Method": "string", "Card Last 4": "string", "Auth Code": "string" },
  "Line Items": [{ "Description": "string", "Qty": "string", "Unit Price": "string", "Line Total": "string" }]
}`

const InvoicePrompt = `You are a forensic analyst. Extract all details from this invoice or bill.

Return JSON:
{
  "Vendor Name": "string",
  "Vendor Address": "string",
  "Invoice Number": "string",
  "Account Number": "string",
  "PO Number": "string",
  "Invoice Date": "YYYY-MM-DD",
  "Due Date": "YYYY-MM-DD",
  "Total Amount Due": "currency string",
  "Tax Amount": "currency string",
  "Line Items": [{ "Description": "string", "Qty": "string", "Unit Price": "string", "Line Total": "string" }]
}`

const CourtPrompt = `You are a forensic analyst. Analyze this court judgment or decree.

Return JSON:
{
  "Court Name": "string",
  "Case Number": "string",
  "Judgment Date": "YYYY-MM-DD",
  "Plaintiff": "string",
  "Defendant": "string",
  "Ruling": "string",
  "Judgment Amount": "currency string",
  "Financial Obligations": "string",
  "Terms": "string"
}`

const RealEstatePrompt = `You are a forensic analyst specializing in real estate. Analyze this document.

Return JSON:
{
  "Document Type": "Deed|Mortgage|Lease|Title Policy|Appraisal|Closing Statement",
  "Property Address": "string",
  "Parcel ID": "string",
  "Execution Date": "YYYY-MM-DD",
  "Recording Date": "YYYY-MM-DD",
  "Parties": { "Grantor_Seller_Landlord": ["string"], "Grantee_Buyer_Tenant": ["string"], "Lender": "string" },
  "Financials": { "Purchase Price": "currency string", "Loan Amount": "currency string", "Monthly Rent": "currency string", "Appraised Value": "currency string" }
}`

const GenericPrompt = `You are a forensic analyst. Extract every labelled value from this page as key/value pairs.
Also add a normalized "_metadata" block describing the document.

Return JSON:
{
  "_metadata": { "primary_date": "YYYY-MM-DD", "doc_type": "string", "entity_name": "string" },
  "<field name>": "<value>"
}`

// NarrativePrompt is used by the aggregator when a lane produces too little
// structure to summarize on its own.
const NarrativePrompt = "Summarize this document (%s). Focus on dates, money, and entities.\n%s"
