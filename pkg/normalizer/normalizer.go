// Package normalizer canonicalizes surface names into comparable keys and
// generates lookup aliases. All functions are pure: no I/O, no state.
package normalizer

import (
	"regexp"
	"strings"

	"github.com/panoramicdata/chunkgraph/pkg/types"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	nonDigitRe   = regexp.MustCompile(`[^0-9]`)
	protocolRe   = regexp.MustCompile(`^[a-z][a-z0-9+.-]*://`)
	currencyRe   = regexp.MustCompile(`[$€£¥₹,\s]`)
)

// legal suffixes stripped from organization names, longest first so that
// "Corporation" wins over "Corp".
var legalSuffixes = []string{
	"corporation", "incorporated", "limited", "company",
	"corp.", "corp", "inc.", "inc", "ltd.", "ltd", "llc", "l.l.c.", "co.", "gmbh", "plc",
}

// NormalizeGeneric applies the type-independent canonicalization step:
// lowercase, trim, and collapse internal whitespace.
func NormalizeGeneric(name string) string {
	return whitespaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), " ")
}

// Normalize lowercases, trims, and collapses internal whitespace, then applies
// type-specific canonicalization. It is idempotent: normalizing an already
// normalized name returns it unchanged.
func Normalize(name string, entityType types.EntityType) string {
	normalized := NormalizeGeneric(name)
	if normalized == "" {
		return ""
	}

	switch entityType {
	case types.EntityTypeURL:
		normalized = protocolRe.ReplaceAllString(normalized, "")
		for strings.HasPrefix(normalized, "www.") {
			normalized = strings.TrimPrefix(normalized, "www.")
		}
		normalized = strings.TrimRight(normalized, "/")
	case types.EntityTypePhone:
		normalized = nonDigitRe.ReplaceAllString(normalized, "")
	case types.EntityTypeMoney:
		normalized = currencyRe.ReplaceAllString(normalized, "")
	case types.EntityTypePercent:
		normalized = strings.TrimSpace(strings.ReplaceAll(normalized, "%", ""))
	}
	return normalized
}

// AreEquivalent reports whether two surface names normalize to the same key.
func AreEquivalent(a, b string, entityType types.EntityType) bool {
	na, nb := Normalize(a, entityType), Normalize(b, entityType)
	if na == "" || nb == "" {
		return false
	}
	return strings.EqualFold(na, nb)
}

// GenerateAliases produces alternative surface forms for a name. Aliases are
// deduplicated case-insensitively and never include the original name.
// Empty or whitespace-only input yields no aliases.
func GenerateAliases(name string, entityType types.EntityType) []string {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	var candidates []string
	switch entityType {
	case types.EntityTypePerson:
		candidates = personAliases(name)
	case types.EntityTypeOrganization:
		candidates = organizationAliases(name)
	case types.EntityTypeKeyword:
		candidates = keywordAliases(name)
	}

	var aliases []string
	seen := map[string]bool{strings.ToLower(name): true}
	for _, alias := range candidates {
		alias = strings.TrimSpace(alias)
		key := strings.ToLower(alias)
		if alias == "" || seen[key] {
			continue
		}
		seen[key] = true
		aliases = append(aliases, alias)
	}
	return aliases
}

func personAliases(name string) []string {
	parts := strings.Fields(name)
	switch len(parts) {
	case 2:
		first, last := parts[0], parts[1]
		return []string{
			last + ", " + first,
			initial(first) + " " + last,
		}
	case 3:
		first, middle, last := parts[0], parts[1], parts[2]
		return []string{
			first + " " + last,
			initial(first) + " " + initial(middle) + " " + last,
			last + ", " + first + " " + middle,
		}
	default:
		return nil
	}
}

func initial(word string) string {
	runes := []rune(word)
	if len(runes) == 0 {
		return ""
	}
	return strings.ToUpper(string(runes[0])) + "."
}

func organizationAliases(name string) []string {
	var aliases []string

	stripped := StripLegalSuffix(name)
	if stripped != "" && !strings.EqualFold(stripped, name) {
		aliases = append(aliases, stripped)
	}

	words := strings.Fields(stripped)
	if len(words) >= 2 && len(words) <= 5 {
		var b strings.Builder
		for _, word := range words {
			runes := []rune(word)
			if len(runes) > 0 {
				b.WriteRune(runes[0])
			}
		}
		acronym := strings.ToUpper(b.String())
		if len(acronym) >= 2 {
			aliases = append(aliases, acronym)
		}
	}
	return aliases
}

// StripLegalSuffix removes a trailing legal-entity suffix (Inc., Corp., LLC,
// Ltd., Limited, ...) from an organization name. The comparison is
// case-insensitive; the returned name keeps the original casing.
func StripLegalSuffix(name string) string {
	trimmed := strings.TrimSpace(name)
	lower := strings.ToLower(trimmed)
	for _, suffix := range legalSuffixes {
		if strings.HasSuffix(lower, " "+suffix) {
			return strings.TrimRight(strings.TrimSpace(trimmed[:len(trimmed)-len(suffix)]), ",")
		}
	}
	return trimmed
}

func keywordAliases(name string) []string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, "ies") && len(name) > 3:
		return []string{name[:len(name)-3] + "y"}
	case strings.HasSuffix(lower, "es") && len(name) > 2:
		return []string{name[:len(name)-1]}
	case strings.HasSuffix(lower, "s") && len(name) > 1:
		return []string{name[:len(name)-1]}
	case strings.HasSuffix(lower, "y") && len(name) > 1:
		return []string{name[:len(name)-1] + "ies"}
	default:
		return []string{name + "s"}
	}
}
