package pii

import "fmt"

// TokenEntry binds a placeholder token to the text it replaced.
type TokenEntry struct {
	Token    string
	Kind     Kind
	Original string
}

type valueKey struct {
	kind     Kind
	original string
}

// Vault holds the token mapping for a single run. It is owned by that run and is
// not safe for concurrent use.
type Vault struct {
	byToken  map[string]TokenEntry
	byValue  map[valueKey]string
	counters map[Kind]int
	order    []string
}

// NewVault returns an empty vault.
func NewVault() *Vault {
	return &Vault{
		byToken:  make(map[string]TokenEntry),
		byValue:  make(map[valueKey]string),
		counters: make(map[Kind]int),
	}
}

// FormatToken renders the token for the n-th value of kind.
func FormatToken(kind Kind, n int) string {
	return fmt.Sprintf("[%s_%d]", kind, n)
}

// Reserve returns the token for (kind, original), allocating the next number for
// kind if this pair has not been seen in the vault.
func (v *Vault) Reserve(kind Kind, original string) string {
	key := valueKey{kind: kind, original: original}
	if token, ok := v.byValue[key]; ok {
		return token
	}
	v.counters[kind]++
	token := FormatToken(kind, v.counters[kind])
	v.byValue[key] = token
	v.byToken[token] = TokenEntry{Token: token, Kind: kind, Original: original}
	v.order = append(v.order, token)
	return token
}

// Resolve returns the original text for token. Unknown tokens report false.
func (v *Vault) Resolve(token string) (string, bool) {
	entry, ok := v.byToken[token]
	if !ok {
		return "", false
	}
	return entry.Original, true
}

// Entries returns all entries in allocation order.
func (v *Vault) Entries() []TokenEntry {
	out := make([]TokenEntry, 0, len(v.order))
	for _, token := range v.order {
		out = append(out, v.byToken[token])
	}
	return out
}

// Len returns the number of allocated tokens.
func (v *Vault) Len() int {
	return len(v.order)
}
