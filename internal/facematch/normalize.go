package facematch

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizePersonName normalizes a name for comparison (lowercase, no diacritics, spaces for dashes).
func NormalizePersonName(name string) string {
	name = RemoveDiacritics(name)
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "-", " ")
	return strings.TrimSpace(name)
}

// MatchesStudent reports whether query selects s. A numeric query is compared
// with the student id, anything else with the username or the full name.
func MatchesStudent(query string, s *database.Student) bool {
	query = strings.TrimSpace(query)
	if query == "" {
		return false
	}
	if id, err := strconv.ParseInt(query, 10, 64); err == nil {
		return id == s.ID
	}
	q := NormalizePersonName(query)
	return q == NormalizePersonName(s.Username) || q == NormalizePersonName(s.FullName())
}
