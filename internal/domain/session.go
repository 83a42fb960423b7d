package domain

import (
	"regexp"
	"strings"
	"time"
)

// SessionState is the per-conversation record kept server side, keyed by
// the NLU session id. Contexts remain the primary channel; this record
// backs them up when the caller drops a context.
type SessionState struct {
	SessionID       string           `json:"sessionId"`
	Draft           OrderDraft       `json:"draft"`
	SelectedProduct *ProductSnapshot `json:"selectedProduct,omitempty"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// ============================================================
// Email
// ============================================================

// InvoiceSubject is the subject line of every invoice email.
const InvoiceSubject = "Hóa đơn mua hàng từ cửa hàng giày"

// EmailMessage is one outbound HTML email.
type EmailMessage struct {
	To      string
	Subject string
	HTML    string
}

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._-]+@[a-zA-Z0-9._-]+\.[a-zA-Z0-9_-]+`)

// ExtractEmail returns the first email-looking token in text, or "".
func ExtractEmail(text string) string {
	return emailPattern.FindString(text)
}

// LooksLikeEmail is the loose check applied to late emails: an "@" and a
// "." somewhere in the string.
func LooksLikeEmail(s string) bool {
	return strings.Contains(s, "@") && strings.Contains(s, ".")
}
