package workflow

import "strings"

// Kind names an entity the workflow knows how to submit or decide. The
// value doubles as the audit log entity name and metrics label.
type Kind string

const (
	KindProject      Kind = "project"
	KindTask         Kind = "task"
	KindWorkElement  Kind = "work_element"
	KindBudget       Kind = "budget"
	KindBudgetChange Kind = "budget_change"
	KindAFE          Kind = "afe"
	KindInvoice      Kind = "invoice"
	KindProduction   Kind = "production"
)

var kindLabels = map[Kind]string{
	KindProject:      "project",
	KindTask:         "task",
	KindWorkElement:  "work element",
	KindBudget:       "budget",
	KindBudgetChange: "budget change",
	KindAFE:          "AFE",
	KindInvoice:      "invoice",
	KindProduction:   "production record",
}

func (k Kind) Label() string {
	if l, ok := kindLabels[k]; ok {
		return l
	}
	return string(k)
}

// Decidable reports whether the kind goes through manager approval.
func (k Kind) Decidable() bool {
	switch k {
	case KindProject, KindBudget, KindBudgetChange, KindAFE, KindInvoice:
		return true
	}
	return false
}

// Kinds lists every kind in workflow order, parents first.
func Kinds() []Kind {
	return []Kind{
		KindProject, KindTask, KindWorkElement, KindBudget,
		KindBudgetChange, KindAFE, KindInvoice, KindProduction,
	}
}

// Slug is the dashed form used in URLs, e.g. "budget-change".
func (k Kind) Slug() string {
	return strings.ReplaceAll(string(k), "_", "-")
}
