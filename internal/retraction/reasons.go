package retraction

// ReasonNotSpecified is the fallback reason code.
const ReasonNotSpecified = 10

var reasonLabels = map[int]string{
	1:  "Factual/methodological/other critical errors",
	2:  "Incomplete exposition/work in progress",
	3:  "Typos",
	4:  "Self-identified not novel",
	5:  "Administrative or legal issues",
	6:  "ArXiv policy violation",
	7:  "Subsumed by another publication",
	8:  "Plagiarism",
	9:  "Personal reasons",
	10: "Reason not specified",
}

// ReasonLabel returns the display label for a reason code.
// Unknown codes map to the "Reason not specified" label.
func ReasonLabel(code int) string {
	if l, ok := reasonLabels[code]; ok {
		return l
	}
	return reasonLabels[ReasonNotSpecified]
}

// ValidReasonCode reports whether code is in 1..10.
func ValidReasonCode(code int) bool {
	_, ok := reasonLabels[code]
	return ok
}
