package ingest

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"quiz-ledger-service/internal/domain"
)

// Profile is a stored user profile as the identity provider exposes it.
type Profile struct {
	FirstName   string
	LastName    string
	DisplayName string
	Email       string
}

// StudentName derives a display name, falling back from explicit names to
// the display name and then to the email local part ("jane.doe@" -> Jane Doe).
// ok is false when none of those carry anything usable.
func StudentName(p Profile) (domain.StudentName, bool) {
	first := strings.TrimSpace(p.FirstName)
	last := strings.TrimSpace(p.LastName)
	if first != "" && last != "" {
		return domain.StudentName{FirstName: first, LastName: last}, true
	}

	if parts := strings.Fields(p.DisplayName); len(parts) > 0 {
		name := domain.StudentName{FirstName: parts[0], LastName: "Student"}
		if len(parts) > 1 {
			name.LastName = strings.Join(parts[1:], " ")
		}
		return name, true
	}

	local, _, found := strings.Cut(strings.TrimSpace(p.Email), "@")
	if found && local != "" {
		parts := strings.FieldsFunc(local, func(r rune) bool { return r == '.' || r == '_' || r == '-' })
		name := domain.StudentName{FirstName: "Unknown", LastName: "Student"}
		if len(parts) > 0 {
			name.FirstName = capitalize(parts[0])
		}
		if len(parts) > 1 {
			name.LastName = capitalize(parts[1])
		}
		return name, true
	}

	if first != "" || last != "" {
		return domain.StudentName{FirstName: orDefault(first, "Unknown"), LastName: orDefault(last, "Student")}, true
	}
	return domain.StudentName{}, false
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
