package invoker

import "fmt"

// --- Compliance Auditor Prompts ---
const SystemPrompt = "You are a meticulous procurement compliance auditor. You compare a supplier's bid against the mandatory requirements of a Request for Quotation (RFQ) and report, requirement by requirement, whether the bid complies. You must output a single JSON object that matches the provided schema."

const auditInstructions = `You will be provided with two documents: an RFQ and a Bid.

Follow these instructions precisely:

1.  **Extract Requirements**: Identify every mandatory requirement in the RFQ (clauses using "must", "shall", "required", numbered obligations, deadlines, certifications, reporting duties). Quote each one verbatim as "requirementText".
2.  **Score Each Requirement**: Set "complianceScore" to 1 if the bid fully meets it, 0.5 if it partially meets it, and 0 if it does not address it or contradicts it. No other values are allowed.
3.  **Flag**: Set "flag" to COMPLIANT for 1, PARTIAL for 0.5 and NON_COMPLIANT for 0.
4.  **Summarize**: In "responseSummary", state what the bid offers for this requirement.
5.  **Categorize**: Set "category" to one of LEGAL, FINANCIAL, TECHNICAL, TIMELINE, REPORTING, ADMINISTRATIVE or OTHER.
6.  **Negotiate**: When the score is below 1, give a concrete "negotiationStance" the buyer can take. Omit it when the score is 1.
7.  **Executive Summary**: Write a short "executiveSummary" of the bid's overall compliance.

Do not invent requirements that are not in the RFQ. Return ONLY the JSON object.`

// UserPrompt renders the instruction prompt with both documents attached.
func UserPrompt(req Request) string {
	return fmt.Sprintf("%s\n\n<rfq>\n%s\n</rfq>\n\n<bid>\n%s\n</bid>", auditInstructions, req.RFQText, req.BidText)
}
