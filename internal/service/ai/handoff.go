package ai

import "strings"

// HandoffPolicy decides whether a generated reply means the model is out of
// its depth and a human operator should take over. The policy is pluggable so
// the substring heuristic can later be swapped for a classifier without
// touching routing.
type HandoffPolicy func(text string) bool

// uncertaintyPhrases are Persian markers the completion API tends to produce
// when it cannot answer. Matching is substring-based and approximate, not a
// reliable classifier.
var uncertaintyPhrases = []string{
	"اپراتور انسانی",   // human operator
	"اطلاعات کافی",     // (not) enough information
	"مطمئن نیستم",      // not sure
	"نمی‌دانم",          // don't know
	"نمیدانم",          // don't know, unspaced variant
	"نمی‌توانم پاسخ",    // cannot answer
	"کارشناس پشتیبانی", // support specialist
	"تماس با پشتیبانی", // contact support
}

// DefaultHandoffPolicy reports whether the reply contains any of the known
// uncertainty phrases, case-insensitively.
func DefaultHandoffPolicy(text string) bool {
	lowered := strings.ToLower(text)
	for _, phrase := range uncertaintyPhrases {
		if strings.Contains(lowered, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}
