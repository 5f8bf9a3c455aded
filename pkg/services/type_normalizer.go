package services

import (
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-sanity/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sanity/pkg/models"
	"github.com/ekaya-inc/ekaya-sanity/pkg/pysource"
)

// legacyOneToOne is what YAML 1.1 sexagesimal parsing turns an unquoted 1:1 into.
const legacyOneToOne = "61"

// NormalizeRelationshipType canonicalizes a relationship type token to 1:1, 1:N or M:N.
func NormalizeRelationshipType(raw string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == legacyOneToOne {
		s = models.Cardinality1To1
	}
	switch s {
	case models.Cardinality1To1, models.Cardinality1ToN, models.CardinalityMToN:
		return s, nil
	}
	return "", fmt.Errorf("%w: %q", apperrors.ErrUnsupportedRelationshipType, raw)
}

// NormalizeTypeToken collapses a declared type annotation to a lowercase base name
// for comparison: Optional/None unions are unwrapped, parametrized containers
// reduce to their container name and qualified names lose their module prefix.
// An absent annotation normalizes to "" and only matches another "".
func NormalizeTypeToken(raw string) string {
	s := pysource.Unquote(raw)
	if s == "" {
		return ""
	}
	s = pysource.StripNoneUnion(pysource.StripTypingPrefix(s))

	if i := strings.IndexByte(s, '['); i > 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.ToLower(s)
	if s == "nonetype" {
		s = "none"
	}
	return s
}
