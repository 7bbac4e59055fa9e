// Package registration decides whether a payment message asks for a
// membership registration.
//
// Members tend to misspell the keyword, so tokens are compared with an edit
// distance instead of exact equality. A doubtful match is still treated as a
// registration and reported as a warning for manual review.
package registration

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/fklub/mpledger/internal/money"
)

// DefaultKeywords are the Danish stems for "register" and "enroll".
var DefaultKeywords = []string{
	"tilmeld",
	"tilmelding",
	"tilmeldelse",
	"indmeld",
	"indmelding",
	"indmeldelse",
}

// DefaultMaxEditDistance is the default tolerance for misspelled keywords.
const DefaultMaxEditDistance = 1

// expectedTokens is the shape of a well-formed message: "<keyword> <username>".
const expectedTokens = 2

var nonWord = regexp.MustCompile(`[^\p{L}\p{N}_]+`)

// Classifier matches payment messages against registration keywords.
type Classifier struct {
	keywords    []string
	maxDistance int
	fee         money.Amount
}

// NewClassifier returns a classifier for the given keywords. Keywords are
// compared case-insensitively.
func NewClassifier(keywords []string, maxDistance int, fee money.Amount) *Classifier {
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			lowered = append(lowered, k)
		}
	}
	return &Classifier{
		keywords:    lowered,
		maxDistance: maxDistance,
		fee:         fee,
	}
}

// Fee returns the registration fee the classifier checks payments against.
func (c *Classifier) Fee() money.Amount {
	return c.fee
}

// Tokens splits a message into words.
func Tokens(message string) []string {
	var out []string
	for _, tok := range nonWord.Split(message, -1) {
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// Classify reports whether a payment with the given message and amount is a
// registration, together with any warnings a human should look at.
func (c *Classifier) Classify(message string, amount money.Amount) (bool, []string) {
	tokens := Tokens(message)
	if len(tokens) < expectedTokens {
		return false, nil
	}
	if !c.matches(tokens) {
		return false, nil
	}

	var warnings []string
	if len(tokens) != expectedTokens {
		warnings = append(warnings, fmt.Sprintf(
			"message %q has %d words, expected a keyword followed by a username", message, len(tokens)))
	}
	if amount < c.fee {
		warnings = append(warnings, fmt.Sprintf(
			"not enough money transferred for registration: DKK %s is below the fee of DKK %s; still treated as registration, edit the input file and run again if not",
			amount.Format(money.Grouped), c.fee.Format(money.Grouped)))
	}
	return true, warnings
}

func (c *Classifier) matches(tokens []string) bool {
	for _, keyword := range c.keywords {
		for _, tok := range tokens {
			if levenshtein.ComputeDistance(strings.ToLower(tok), keyword) <= c.maxDistance {
				return true
			}
		}
	}
	return false
}
