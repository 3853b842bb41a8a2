package keyword

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// maxValuesPerKeyword bounds the number of keyword:value tokens per keyword.
	maxValuesPerKeyword = 20
	// maxSeparators is how many separator runes may sit between a keyword and its value.
	maxSeparators = 4
	// maxValueLength bounds the length of a value in bytes.
	maxValueLength = 64
)

// Fold returns s in its comparison form: accents removed and case folded.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return cases.Fold().String(strings.TrimSpace(stripped))
}

// Matches reports whether token was produced for keyword: it is either the
// bare keyword or a "keyword:value" token.
func Matches(token, keyword string) bool {
	kw := Fold(keyword)
	if kw == "" {
		return false
	}
	return token == kw || strings.HasPrefix(token, kw+":")
}

// MatchesAny reports whether token matches one of keywords.
func MatchesAny(token string, keywords []string) bool {
	for _, kw := range keywords {
		if Matches(token, kw) {
			return true
		}
	}
	return false
}

// Extract returns the sorted set of tokens for the keywords found in text.
// Every keyword present yields its folded form. Sensitive keywords followed
// by a value containing a digit or an "@" additionally yield "keyword:value".
func Extract(text string, expected, sensitive []string) []string {
	folded := Fold(text)
	set := make(map[string]struct{})

	for _, kw := range expected {
		k := Fold(kw)
		if k == "" {
			continue
		}
		if len(occurrences(folded, k)) > 0 {
			set[k] = struct{}{}
		}
	}

	for _, kw := range sensitive {
		k := Fold(kw)
		if k == "" {
			continue
		}
		ends := occurrences(folded, k)
		if len(ends) == 0 {
			continue
		}
		set[k] = struct{}{}

		values := 0
		for _, end := range ends {
			v := valueAfter(folded[end:])
			if v == "" {
				continue
			}
			token := k + ":" + v
			if _, ok := set[token]; ok {
				continue
			}
			set[token] = struct{}{}
			values++
			if values >= maxValuesPerKeyword {
				break
			}
		}
	}

	out := make([]string, 0, len(set))
	for token := range set {
		out = append(out, token)
	}
	slices.Sort(out)
	return out
}

// occurrences returns the end offsets of every whole-word occurrence of kw in text.
func occurrences(text, kw string) []int {
	var ends []int
	offset := 0
	for {
		i := strings.Index(text[offset:], kw)
		if i < 0 {
			return ends
		}
		start := offset + i
		end := start + len(kw)
		if isBoundaryBefore(text, start) && isBoundaryAfter(text, end) {
			ends = append(ends, end)
		}
		offset = end
	}
}

func isBoundaryBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return !isWordRune(r)
}

func isBoundaryAfter(text string, i int) bool {
	if i >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isSeparator(r rune) bool {
	return unicode.IsSpace(r) || strings.ContainsRune(":=-–—", r)
}

// valueAfter returns the value that follows a keyword, or "" when the next
// word does not look like a value.
func valueAfter(s string) string {
	i := 0
	for skipped := 0; i < len(s) && skipped < maxSeparators; skipped++ {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !isSeparator(r) {
			break
		}
		i += size
	}

	value, rest := nextField(s[i:])
	if isCurrencySymbol(value) {
		amount, _ := nextField(rest)
		value += amount
	}
	value = strings.TrimLeft(value, "([{\"'«")
	value = strings.TrimRight(value, ".,;:!?)]}\"'»")

	if value == "" || len(value) > maxValueLength {
		return ""
	}
	if !strings.ContainsFunc(value, unicode.IsDigit) && !strings.Contains(value, "@") {
		return ""
	}
	return value
}

func nextField(s string) (string, string) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	end := strings.IndexFunc(s, unicode.IsSpace)
	if end < 0 {
		return s, ""
	}
	return s[:end], s[end:]
}

func isCurrencySymbol(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.Is(unicode.Sc, r) {
			return false
		}
	}
	return true
}
