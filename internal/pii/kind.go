// Package pii detects personal data in free text and swaps it for reversible,
// run-scoped placeholder tokens of the form [KIND_n].
package pii

import (
	"fmt"
	"strings"
)

// Kind is a category of personal data. Its string form is the token prefix.
type Kind string

// Supported kinds.
const (
	KindEmail      Kind = "EMAIL"
	KindCreditCard Kind = "CREDIT_CARD"
	KindSSN        Kind = "SSN"
	KindPhone      Kind = "PHONE"
)

// Pattern is one row of the detection table.
type Pattern struct {
	Kind Kind
	Expr string
}

// DefaultPatterns is the detection table. Row order is priority order: when matches
// of different kinds overlap, the earlier row wins.
var DefaultPatterns = []Pattern{
	{KindEmail, `\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`},
	{KindCreditCard, `\b(?:\d{4}[\-\s]?){3}\d{4}\b`},
	{KindSSN, `\b\d{3}-\d{2}-\d{4}\b`},
	{KindPhone, `(?:\+?1[\-.\s]?)?(?:\(\d{3}\)|\b\d{3})[\-.\s]?\d{3}[\-.\s]?\d{4}\b`},
}

// ParseKinds converts config names ("email", "PHONE", "credit_card") to kinds.
func ParseKinds(names []string) ([]Kind, error) {
	kinds := make([]Kind, 0, len(names))
	for _, name := range names {
		k := Kind(strings.ToUpper(strings.TrimSpace(name)))
		if !k.known() {
			return nil, fmt.Errorf("unknown PII kind: %q", name)
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

func (k Kind) known() bool {
	for _, p := range DefaultPatterns {
		if p.Kind == k {
			return true
		}
	}
	return false
}
