package models

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// LintIssue is one finding against a file. Line and Column are 1-based, 0 when unknown.
type LintIssue struct {
	Path     string   `json:"path"`
	Line     int      `json:"line,omitempty"`
	Column   int      `json:"column,omitempty"`
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

type LintReport struct {
	Files    int         `json:"files"`
	Errors   int         `json:"errors"`
	Warnings int         `json:"warnings"`
	Issues   []LintIssue `json:"issues"`
}

// Add appends an issue and updates the counters.
func (r *LintReport) Add(issue LintIssue) {
	r.Issues = append(r.Issues, issue)
	switch issue.Severity {
	case SeverityError:
		r.Errors++
	case SeverityWarning:
		r.Warnings++
	}
}

func (r *LintReport) OK() bool {
	return r.Errors == 0
}
