package whitelist

import (
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// allowedSchemes lists the URL schemes CheckURL accepts. The empty scheme
// covers values such as "://host" that carry a separator but no scheme
// name.
var allowedSchemes = sliceToSet([]string{"", "http", "https", "ftp", "mailto", "tel"})

// CheckURL reports whether raw is safe to use as a link target. Relative
// URLs (no scheme) are allowed; absolute URLs must use one of
// http, https, ftp, mailto or tel. The check is purely syntactic.
func CheckURL(raw string) bool {
	scheme, ok := urlScheme(normalizeURL(raw))
	if !ok {
		return true
	}
	return allowedSchemes[scheme]
}

// FilterURL is the TransformFunc form of CheckURL: it keeps v unchanged
// when it passes CheckURL and drops it otherwise.
func FilterURL(v string) (string, bool) {
	if !CheckURL(v) {
		return "", false
	}
	return v, true
}

// normalizeURL undoes the tricks browsers tolerate when they resolve a
// scheme: character references and embedded whitespace or control
// characters, so that "jav&#x09;ascript:" and "jav\tascript:" are seen
// as "javascript:".
func normalizeURL(raw string) string {
	s := strings.ToLower(html.UnescapeString(raw))
	return strings.Map(func(r rune) rune {
		switch {
		case r <= 0x20, r >= 0x7f && r <= 0xa0, r == '`', r == '\ufffd':
			return -1
		case unicode.IsSpace(r), r == '\ufeff':
			return -1
		}
		return r
	}, s)
}

// urlScheme returns the scheme of s and whether s has one at all.
// A scheme is ALPHA *( ALPHA / DIGIT / "+" / "-" / "." ) followed by
// ":"; the empty string before "://" counts as an (empty) scheme.
func urlScheme(s string) (string, bool) {
	i := strings.IndexByte(s, ':')
	if i < 0 {
		return "", false
	}
	scheme := s[:i]
	if scheme == "" {
		return "", strings.HasPrefix(s, "://")
	}
	if !isSchemeStart(scheme[0]) {
		return "", false
	}
	for j := 1; j < len(scheme); j++ {
		if !isSchemeChar(scheme[j]) {
			return "", false
		}
	}
	return scheme, true
}

func isSchemeStart(c byte) bool {
	return 'a' <= c && c <= 'z'
}

func isSchemeChar(c byte) bool {
	return isSchemeStart(c) || '0' <= c && c <= '9' || c == '+' || c == '-' || c == '.'
}

func sliceToSet(s []string) map[string]bool {
	m := make(map[string]bool, len(s))
	for _, v := range s {
		m[strings.ToLower(v)] = true
	}
	return m
}
