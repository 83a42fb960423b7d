// Package phrases holds the keyword tables used to read free-text answers:
// payment wording, yes/no confirmations, the discount flag and purpose
// synonyms. The tables are data (YAML) so they can be tuned and tested
// without touching the dialogue code.
package phrases

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode"

	"github.com/boddenberg/shoeshop-bot-go/internal/domain"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

//go:embed phrases.yaml
var defaultTables []byte

// Confirmation is the reading of a yes/no answer.
type Confirmation int

const (
	Unknown Confirmation = iota
	Yes
	No
	Ambiguous
)

func (c Confirmation) String() string {
	switch c {
	case Yes:
		return "yes"
	case No:
		return "no"
	case Ambiguous:
		return "ambiguous"
	default:
		return "unknown"
	}
}

type document struct {
	PaymentMethods []struct {
		Code     string   `yaml:"code"`
		Keywords []string `yaml:"keywords"`
	} `yaml:"payment_methods"`
	Confirmation struct {
		Positive []string `yaml:"positive"`
		Negative []string `yaml:"negative"`
	} `yaml:"confirmation"`
	DiscountFlags []string            `yaml:"discount_flags"`
	Purposes      map[string][]string `yaml:"purposes"`
}

const (
	labelPositive = "positive"
	labelNegative = "negative"
	labelFlag     = "flag"
)

// Table is a compiled set of phrase tables. It is immutable and safe for
// concurrent use.
type Table struct {
	payments      *matcher
	paymentOrder  []domain.PaymentMethod
	confirmations *matcher
	discount      *matcher
	purposeNames  *matcher
	purposes      map[string][]string
}

// Default returns the embedded tables.
func Default() *Table {
	t, err := Parse(defaultTables)
	if err != nil {
		panic("phrases: embedded tables are invalid: " + err.Error())
	}
	return t
}

// Load reads tables from path, or returns the embedded ones when path is
// empty.
func Load(path string) (*Table, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read phrases file: %w", err)
	}
	return Parse(data)
}

// Parse compiles a YAML phrase document.
func Parse(data []byte) (*Table, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse phrases: %w", err)
	}
	if len(doc.PaymentMethods) == 0 {
		return nil, errors.New("parse phrases: payment_methods is empty")
	}
	if len(doc.Confirmation.Positive) == 0 || len(doc.Confirmation.Negative) == 0 {
		return nil, errors.New("parse phrases: confirmation needs positive and negative keywords")
	}

	t := &Table{
		payments:      &matcher{},
		confirmations: &matcher{},
		discount:      &matcher{},
		purposeNames:  &matcher{},
		purposes:      make(map[string][]string, len(doc.Purposes)),
	}

	for _, pm := range doc.PaymentMethods {
		code := domain.PaymentMethod(strings.ToUpper(strings.TrimSpace(pm.Code)))
		if code == "" {
			return nil, errors.New("parse phrases: payment method without code")
		}
		t.paymentOrder = append(t.paymentOrder, code)
		t.payments.add(string(code), pm.Keywords...)
	}
	t.confirmations.add(labelPositive, doc.Confirmation.Positive...)
	t.confirmations.add(labelNegative, doc.Confirmation.Negative...)
	t.discount.add(labelFlag, doc.DiscountFlags...)

	for name, keywords := range doc.Purposes {
		key := normalize(name)
		t.purposes[key] = keywords
		t.purposeNames.add(key, name)
	}

	t.payments.compile()
	t.confirmations.compile()
	t.discount.compile()
	t.purposeNames.compile()
	return t, nil
}

// PaymentMethod maps payment wording to its canonical code.
func (t *Table) PaymentMethod(text string) (domain.PaymentMethod, bool) {
	found := t.payments.scan(tokenize(text))
	for _, code := range t.paymentOrder {
		if found[string(code)] {
			return code, true
		}
	}
	return "", false
}

// Confirm reads a yes/no answer. Email addresses are ignored so that a
// local part like "no-reply" cannot flip the answer.
func (t *Table) Confirm(text string) Confirmation {
	if email := domain.ExtractEmail(text); email != "" {
		text = strings.ReplaceAll(text, email, " ")
	}
	found := t.confirmations.scan(tokenize(text))
	switch {
	case found[labelPositive] && found[labelNegative]:
		return Ambiguous
	case found[labelPositive]:
		return Yes
	case found[labelNegative]:
		return No
	default:
		return Unknown
	}
}

// DiscountRequested reports whether the discount slot asks for products on
// sale. A negated answer ("không có") does not count.
func (t *Table) DiscountRequested(text string) bool {
	tokens := tokenize(text)
	if !t.discount.scan(tokens)[labelFlag] {
		return false
	}
	return !t.confirmations.scan(tokens)[labelNegative]
}

// PurposeKeywords returns the synonyms for a purpose ("chạy bộ") and the
// canonical purpose name, matching either the whole slot or a purpose
// phrase inside it ("để đi làm").
func (t *Table) PurposeKeywords(purpose string) (string, []string, bool) {
	key := normalize(purpose)
	if kw, ok := t.purposes[key]; ok {
		return key, kw, true
	}
	found := t.purposeNames.scan(tokenize(purpose))
	if len(found) == 0 {
		return "", nil, false
	}
	names := make([]string, 0, len(found))
	for name := range found {
		names = append(names, name)
	}
	sort.Strings(names)
	return names[0], t.purposes[names[0]], true
}

// ============================================================
// Token matching
// ============================================================

type entry struct {
	label  string
	tokens []string
}

// matcher finds keyword phrases in a token stream. Longer phrases are
// tried first and consume their tokens.
type matcher struct {
	entries []entry
}

func (m *matcher) add(label string, keywords ...string) {
	for _, kw := range keywords {
		if tokens := tokenize(kw); len(tokens) > 0 {
			m.entries = append(m.entries, entry{label: label, tokens: tokens})
		}
	}
}

func (m *matcher) compile() {
	sort.SliceStable(m.entries, func(i, j int) bool {
		return len(m.entries[i].tokens) > len(m.entries[j].tokens)
	})
}

func (m *matcher) scan(tokens []string) map[string]bool {
	found := make(map[string]bool)
	consumed := make([]bool, len(tokens))

	for _, e := range m.entries {
		n := len(e.tokens)
		for i := 0; i+n <= len(tokens); i++ {
			if !matchAt(tokens, consumed, e.tokens, i) {
				continue
			}
			for j := i; j < i+n; j++ {
				consumed[j] = true
			}
			found[e.label] = true
		}
	}
	return found
}

func matchAt(tokens []string, consumed []bool, want []string, at int) bool {
	for j, w := range want {
		if consumed[at+j] || tokens[at+j] != w {
			return false
		}
	}
	return true
}

func normalize(s string) string {
	return strings.Join(tokenize(s), " ")
}

// tokenize lowercases NFC-normalized text and splits it into words.
func tokenize(s string) []string {
	s = strings.ToLower(norm.NFC.String(s))
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.Is(unicode.Mn, r)
	})
}
