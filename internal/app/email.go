package app

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var emailValidator = validator.New()

// normalizeEmails lowercases, trims and drops empty entries. Any malformed address fails the
// whole list. Duplicates are dropped silently unless strict, in which case they fail the list.
func normalizeEmails(raw []string, strict bool) ([]string, error) {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	var malformed, duplicates []string
	for _, value := range raw {
		email := strings.ToLower(strings.TrimSpace(value))
		if email == "" {
			continue
		}
		if err := emailValidator.Var(email, "email"); err != nil {
			malformed = append(malformed, email)
			continue
		}
		if _, ok := seen[email]; ok {
			if strict {
				duplicates = append(duplicates, email)
			}
			continue
		}
		seen[email] = struct{}{}
		out = append(out, email)
	}
	if len(malformed) > 0 {
		return nil, invalidInput(ReasonInvalidEmails, "malformed email addresses", malformed...)
	}
	if len(duplicates) > 0 {
		return nil, invalidInput(ReasonDuplicateEmails, "duplicate email addresses", duplicates...)
	}
	if len(out) == 0 {
		return nil, invalidInput(ReasonEmptyBatch, "at least one email is required")
	}
	return out, nil
}
