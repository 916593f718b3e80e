package normalizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/panoramicdata/chunkgraph/pkg/types"
)

func TestNormalize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		input      string
		entityType types.EntityType
		want       string
	}{
		{"generic lowercase and trim", "  Microsoft  Corporation ", types.EntityTypeOrganization, "microsoft corporation"},
		{"collapses internal whitespace", "New\t York   City", types.EntityTypeLocation, "new york city"},
		{"empty input", "   ", types.EntityTypePerson, ""},
		{"url strips protocol", "https://www.Example.com/", types.EntityTypeURL, "example.com"},
		{"url without protocol", "example.com/path/", types.EntityTypeURL, "example.com/path"},
		{"url repeated www and slashes", "http://www.www.example.com//", types.EntityTypeURL, "example.com"},
		{"email lowercases", "John.Smith@Example.COM", types.EntityTypeEmail, "john.smith@example.com"},
		{"phone strips non-digits", "+1 (555) 123-4567", types.EntityTypePhone, "15551234567"},
		{"money strips symbols and separators", "$1,234,567.89", types.EntityTypeMoney, "1234567.89"},
		{"percent strips sign", "42.5%", types.EntityTypePercent, "42.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input, tt.entityType))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	t.Parallel()
	inputs := []struct {
		name       string
		entityType types.EntityType
	}{
		{"Microsoft Corporation", types.EntityTypeOrganization},
		{"https://www.example.com/", types.EntityTypeURL},
		{"http://www.example.com//", types.EntityTypeURL},
		{"www.www.example.com", types.EntityTypeURL},
		{"+1 (555) 123-4567", types.EntityTypePhone},
		{"$1,234.00", types.EntityTypeMoney},
		{"99%", types.EntityTypePercent},
	}

	for _, in := range inputs {
		once := Normalize(in.name, in.entityType)
		twice := Normalize(once, in.entityType)
		assert.Equal(t, once, twice, "Normalize must be idempotent for %q", in.name)
	}
}

func TestAreEquivalent(t *testing.T) {
	t.Parallel()
	assert.True(t, AreEquivalent("Microsoft", "  microsoft ", types.EntityTypeOrganization))
	assert.True(t, AreEquivalent("http://www.example.com", "example.com", types.EntityTypeURL))
	assert.False(t, AreEquivalent("Microsoft", "Google", types.EntityTypeOrganization))
	assert.False(t, AreEquivalent("", "Microsoft", types.EntityTypeOrganization))
	assert.False(t, AreEquivalent("  ", " ", types.EntityTypeOrganization))
}

func TestGenerateAliasesPerson(t *testing.T) {
	t.Parallel()
	t.Run("two-part name", func(t *testing.T) {
		aliases := GenerateAliases("John Smith", types.EntityTypePerson)
		assert.ElementsMatch(t, []string{"Smith, John", "J. Smith"}, aliases)
	})

	t.Run("three-part name", func(t *testing.T) {
		aliases := GenerateAliases("John Michael Smith", types.EntityTypePerson)
		assert.ElementsMatch(t, []string{"John Smith", "J. M. Smith", "Smith, John Michael"}, aliases)
	})

	t.Run("single word yields nothing", func(t *testing.T) {
		assert.Empty(t, GenerateAliases("Cher", types.EntityTypePerson))
	})
}

func TestGenerateAliasesOrganization(t *testing.T) {
	t.Parallel()
	t.Run("strips legal suffix", func(t *testing.T) {
		aliases := GenerateAliases("Microsoft Corp.", types.EntityTypeOrganization)
		assert.Contains(t, aliases, "Microsoft")
	})

	t.Run("acronym for multi-word names", func(t *testing.T) {
		aliases := GenerateAliases("International Business Machines Corporation", types.EntityTypeOrganization)
		assert.Contains(t, aliases, "International Business Machines")
		assert.Contains(t, aliases, "IBM")
	})

	t.Run("no acronym for single word", func(t *testing.T) {
		aliases := GenerateAliases("Microsoft", types.EntityTypeOrganization)
		assert.Empty(t, aliases)
	})
}

func TestGenerateAliasesKeyword(t *testing.T) {
	t.Parallel()
	assert.Contains(t, GenerateAliases("database", types.EntityTypeKeyword), "databases")
	assert.Contains(t, GenerateAliases("databases", types.EntityTypeKeyword), "database")
	assert.Contains(t, GenerateAliases("categories", types.EntityTypeKeyword), "category")
}

func TestGenerateAliasesNeverContainOriginal(t *testing.T) {
	t.Parallel()
	names := []struct {
		name       string
		entityType types.EntityType
	}{
		{"John Smith", types.EntityTypePerson},
		{"Microsoft Corp.", types.EntityTypeOrganization},
		{"databases", types.EntityTypeKeyword},
	}

	for _, n := range names {
		for _, alias := range GenerateAliases(n.name, n.entityType) {
			assert.False(t, strings.EqualFold(n.name, alias), "alias %q duplicates original %q", alias, n.name)
		}
	}
}

func TestGenerateAliasesEmptyInput(t *testing.T) {
	t.Parallel()
	assert.Empty(t, GenerateAliases("", types.EntityTypePerson))
	assert.Empty(t, GenerateAliases("   ", types.EntityTypeOrganization))
}
