package pii

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/hyperjump/concierge/pkg/utils"
)

// ErrMalformedInput is returned by Mask for text that cannot be scanned safely.
var ErrMalformedInput = errors.New("malformed input")

// tokenPattern matches anything shaped like a vault token.
var tokenPattern = regexp.MustCompile(`\[[A-Z_]+_\d+\]`)

// Masker replaces detected PII with vault tokens and reverses the substitution.
// It keeps no per-run state; the vault is passed in on every call.
type Masker struct {
	detector       *Detector
	maxInputLength int
	logger         *zap.Logger
}

// MaskerOption configures a Masker.
type MaskerOption func(*Masker)

// WithMaxInputLength bounds the byte length Mask accepts. Zero means unbounded.
func WithMaxInputLength(n int) MaskerOption {
	return func(m *Masker) {
		m.maxInputLength = n
	}
}

// WithLogger sets the masker logger.
func WithLogger(l *zap.Logger) MaskerOption {
	return func(m *Masker) {
		m.logger = l
	}
}

// NewMasker returns a Masker using detector.
func NewMasker(detector *Detector, opts ...MaskerOption) *Masker {
	m := &Masker{detector: detector}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = utils.OrNop(m.logger)
	return m
}

// Mask returns text with every detected span replaced by its token in v.
// Spans are substituted in a single left-to-right pass; the output is never rescanned.
func (m *Masker) Mask(v *Vault, text string) (string, error) {
	if v == nil {
		return "", fmt.Errorf("mask: nil vault")
	}
	if err := m.validate(text); err != nil {
		return "", err
	}

	matches := m.detector.Detect(text)
	if len(matches) == 0 {
		return text, nil
	}

	var b strings.Builder
	b.Grow(len(text))
	pos := 0
	for _, match := range matches {
		b.WriteString(text[pos:match.Start])
		b.WriteString(v.Reserve(match.Kind, match.Text))
		pos = match.End
	}
	b.WriteString(text[pos:])

	m.logger.Debug("masked text", zap.Int("spans", len(matches)), zap.Int("vault_size", v.Len()))
	return b.String(), nil
}

// Unmask replaces tokens known to v with their originals. Token-shaped text that v
// does not know is left unchanged and returned in unresolved.
func (m *Masker) Unmask(v *Vault, text string) (string, []string) {
	var unresolved []string
	out := tokenPattern.ReplaceAllStringFunc(text, func(token string) string {
		if v != nil {
			if original, ok := v.Resolve(token); ok {
				return original
			}
		}
		unresolved = append(unresolved, token)
		return token
	})
	return out, unresolved
}

// StripTokens removes token-shaped text, leaving the words around it.
func StripTokens(text string) string {
	return strings.Join(strings.Fields(tokenPattern.ReplaceAllString(text, " ")), " ")
}

func (m *Masker) validate(text string) error {
	if !utf8.ValidString(text) {
		return fmt.Errorf("%w: invalid UTF-8", ErrMalformedInput)
	}
	if strings.IndexByte(text, 0) >= 0 {
		return fmt.Errorf("%w: contains NUL byte", ErrMalformedInput)
	}
	if m.maxInputLength > 0 && len(text) > m.maxInputLength {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrMalformedInput, len(text), m.maxInputLength)
	}
	return nil
}
