// Package sanitize redacts secrets and personal data from free text before
// it leaves the device. The rule list is ordered and maintained by hand;
// fields added to the application must be covered here by convention.
package sanitize

import "regexp"

type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Rules run in order. Replacements never reintroduce text a later (or the
// same) rule would match, which is what makes Sanitize idempotent.
var rules = []rule{
	// Bearer headers and raw JWTs.
	{regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9._~+/-]+=*`), "Bearer [REDACTED]"},
	{regexp.MustCompile(`\beyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]*`), "[JWT_REDACTED]"},

	// key=value style credential assignments, quoted or not.
	{regexp.MustCompile(`(?i)\b(api[_-]?key|access[_-]?key|secret|password|passwd|pwd|token)\b\s*[:=]\s*"?[^\s"',;&]+`), "${1}=[REDACTED]"},

	// IBAN-like account numbers.
	{regexp.MustCompile(`\b[A-Z]{2}[0-9]{2}[A-Z0-9]{10,30}\b`), "[IBAN_REDACTED]"},

	// French national id (NIR, 13 or 15 digits) before the generic card rule
	// so the more specific shape wins.
	{regexp.MustCompile(`\b[12][0-9]{12}(?:[0-9]{2})?\b`), "[NID_REDACTED]"},

	// SIRET-like 14-digit establishment numbers, optionally grouped.
	{regexp.MustCompile(`\b[0-9]{3} ?[0-9]{3} ?[0-9]{3} ?[0-9]{5}\b`), "[SIRET_REDACTED]"},

	// 13-16 digit card numbers with optional separators.
	{regexp.MustCompile(`\b(?:[0-9][ -]?){12,15}[0-9]\b`), "[CARD_REDACTED]"},

	// Emails keep their first character and domain so operators can still
	// roughly identify the account involved.
	{regexp.MustCompile(`\b([A-Za-z0-9._%+-])[A-Za-z0-9._%+-]*@([A-Za-z0-9.-]+\.[A-Za-z]{2,})`), "${1}***@${2}"},
}

// Sanitize applies the redaction rules in order. It is pure, deterministic
// and idempotent: re-sanitizing already-sanitized text is a no-op.
func Sanitize(text string) string {
	for _, r := range rules {
		text = r.pattern.ReplaceAllString(text, r.replacement)
	}
	return text
}

// SanitizePtr is the nullable form: nil in, nil out.
func SanitizePtr(text *string) *string {
	if text == nil {
		return nil
	}
	out := Sanitize(*text)
	return &out
}
