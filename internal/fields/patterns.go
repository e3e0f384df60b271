package fields

import "regexp"

// Target field names, in cascade order.
const (
	fieldInvoiceNumber = "invoice_number"
	fieldAmount        = "amount"
	fieldDate          = "date"
	fieldDueDate       = "due_date"
	fieldSupplierName  = "supplier_name"
)

// dateToken matches the date shapes that show up on invoices: numeric with
// -, / or . separators, ISO, and written-out month forms.
const dateToken = `([0-9]{1,2}[-/.][0-9]{1,2}[-/.][0-9]{2,4}` +
	`|[0-9]{4}-[0-9]{2}-[0-9]{2}` +
	`|[A-Za-z]{3,9}\.?\s+[0-9]{1,2},?\s+[0-9]{4}` +
	`|[0-9]{1,2}\s+[A-Za-z]{3,9}\.?\s+[0-9]{4})`

// docNumberPattern is the structured document-number block: two tokens
// following the label. When present it takes precedence over the generic
// invoice-number patterns and short-circuits them.
var docNumberPattern = regexp.MustCompile(
	`(?i)document\s*number\s*[:#]?\s*(\S+)\s+(\S+)`)

// fieldPattern couples a target field with one matcher. The cascade below is
// an explicit ordered list; the first pattern that matches wins its field and
// later patterns for that field are skipped. Alternation order inside each
// pattern encodes priority the same way.
type fieldPattern struct {
	field string
	re    *regexp.Regexp

	// hashPrefix marks patterns introduced by a receipt/order label; their
	// captured value gets a '#' prefix unless it already carries one.
	hashPrefix bool
}

var fieldPatterns = []fieldPattern{
	{
		field: fieldInvoiceNumber,
		re: regexp.MustCompile(
			`(?i)(?:invoice|factuur|facture)\s*(?:number|nummer|num[ée]ro|no\.?|nr\.?|#)\s*[:#]?\s*([A-Za-z0-9][A-Za-z0-9./_-]*)`),
	},
	{
		field: fieldInvoiceNumber,
		re: regexp.MustCompile(
			`(?i)(?:invoice|factuur|facture)\s*[:#]\s*([A-Za-z0-9][A-Za-z0-9./_-]*)`),
	},
	{
		field: fieldInvoiceNumber,
		re: regexp.MustCompile(
			`(?i)(?:receipt|order)\s*(?:number|no\.?|nr\.?|#)?\s*[:#]?\s*([A-Za-z0-9][A-Za-z0-9./_-]*)`),
		hashPrefix: true,
	},
	{
		field: fieldAmount,
		re: regexp.MustCompile(
			`(?i)(?:total\s*amount\s*due|amount\s*due|grand\s*total|total(?:\s*amount)?|totaal\s*te\s*betalen|totaal|te\s*betalen|montant)\s*:?\s*(?:€|\$|£|EUR|USD)?\s*([0-9][0-9.,]*)`),
	},
	{
		field: fieldAmount,
		re: regexp.MustCompile(
			`(?i)(?:€|\$|£|EUR)\s*([0-9][0-9.,]*)`),
	},
	{
		field: fieldDueDate,
		re: regexp.MustCompile(
			`(?i)(?:due\s*date|payment\s*due|pay\s*before|vervaldatum|vervaldag|[ée]ch[ée]ance)\s*:?\s*` + dateToken),
	},
	{
		field: fieldDate,
		re: regexp.MustCompile(
			`(?i)(?:invoice\s*date|factuurdatum|date\s*of\s*issue|issue\s*date)\s*:?\s*` + dateToken),
	},
	{
		field: fieldDate,
		// Anchored at line start so "Due Date:" lines stay out of reach.
		re: regexp.MustCompile(`(?im)^\s*date\s*:?\s*` + dateToken),
	},
	{
		field: fieldSupplierName,
		re: regexp.MustCompile(
			`(?im)^\s*(?:from|supplier|vendor|seller|leverancier|billed\s+from|sold\s+by)\s*:\s*(\S[^\n]*)$`),
	},
}
