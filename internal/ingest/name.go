package ingest

import (
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrInvalidName is returned when a source name normalizes to an empty table
// name. It is rejected before any store call.
var ErrInvalidName = eris.New("ingest: source name yields empty table name")

// foldDiacritics strips combining marks so accented file names still produce
// usable table names ("Çatalhöyük" -> "Catalhoyuk").
var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// TableName derives a deterministic table name from a source file's base name
// (without extension): lowercase, separators collapsed to single underscores,
// anything that is not alphanumeric or underscore stripped.
func TableName(stem string) (string, error) {
	folded, _, err := transform.String(foldDiacritics, stem)
	if err != nil {
		// Fall back to the raw stem; the strip loop below still applies.
		folded = stem
	}

	lower := strings.ToLower(folded)
	var sb strings.Builder
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == '_', r == '-', r == ' ', r == '.':
			sb.WriteRune('_')
		}
	}

	name := sb.String()
	for strings.Contains(name, "__") {
		name = strings.ReplaceAll(name, "__", "_")
	}
	name = strings.Trim(name, "_")

	if name == "" {
		return "", eris.Wrapf(ErrInvalidName, "source %q", stem)
	}
	return name, nil
}
