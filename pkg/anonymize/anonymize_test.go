package anonymize

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/prismlabs/prism/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyKeyFixedDictionary(t *testing.T) {
	assert.Equal(t, TokenName, ClassifyKey("Customer_Name", ""))
	assert.Equal(t, TokenDate, ClassifyKey("dob", ""))
	assert.Equal(t, TokenOther, ClassifyKey("some_unknown_field", ""))
	assert.Equal(t, TokenIBAN, ClassifyKey("anything", TokenIBAN), "alias-resolved kind takes precedence")
}

func TestTokenAllocatorSequentialPerKind(t *testing.T) {
	a := NewTokenAllocator()
	assert.Equal(t, "[NAME_001]", a.Next(TokenName))
	assert.Equal(t, "[NAME_002]", a.Next(TokenName))
	assert.Equal(t, "[DOB_001]", a.Next(TokenKind("DOB")))
	assert.Equal(t, "[NAME_003]", a.Next(TokenName))
}

// TestFixture5SyntheticStrategy replicates spec.md §8 fixture 5: three
// fields (name, dob, amount) run through the synthetic strategy
// produce a mapping with exactly three entries and an audit trail
// with zero original values anywhere in it.
func TestFixture5SyntheticStrategy(t *testing.T) {
	fields := []struct {
		key   string
		value string
		kind  TokenKind
	}{
		{"name", "John Smith", TokenName},
		{"dob", "01.01.1970", TokenDate},
		{"amount", "$500.00", TokenMoney},
	}

	rng := rand.New(rand.NewSource(1))
	allocator := NewTokenAllocator()
	var mapping Mapping
	var audit []AuditRecord

	for _, f := range fields {
		kind := ClassifyKey(f.key, f.kind)
		replacement := Replace(types.AnonStrategySynthetic, f.key, f.value, kind, rng)
		require.NotEqual(t, f.value, replacement)

		token := allocator.Next(kind)
		mapping.Entries = append(mapping.Entries, MappingEntry{Token: token, Original: f.value, Key: f.key})
		audit = append(audit, AuditRecord{
			Key:            f.key,
			OriginalHash16: HashOriginal16(f.value),
			OriginalLength: len([]rune(f.value)),
			Strategy:       string(types.AnonStrategySynthetic),
		})
	}

	require.Len(t, mapping.Entries, 3)
	require.Len(t, audit, 3)

	assert.Equal(t, "[NAME_001]", mapping.Entries[0].Token)
	assert.Equal(t, "[DOB_001]", mapping.Entries[1].Token)
	assert.Equal(t, "[AMOUNT_001]", mapping.Entries[2].Token)

	// P6: audit records never contain any original value, only its hash.
	for i, rec := range audit {
		assert.Len(t, rec.OriginalHash16, 16)
		assert.NotContains(t, rec.OriginalHash16, fields[i].value)
		assert.Equal(t, HashOriginal16(fields[i].value), rec.OriginalHash16)
	}
}

func TestGeneralizeAgeBanding(t *testing.T) {
	assert.Equal(t, "30-39", generalize(TokenAge, "34"))
	assert.Equal(t, "90+", generalize(TokenAge, "95"))
	assert.Equal(t, "90+", generalize(TokenAge, "150"))
}

func TestGeneralizeDateToYear(t *testing.T) {
	assert.Equal(t, "1970", generalize(TokenDate, "1970-01-01"))
}

func TestGeneralizeZipFirstThreeDigits(t *testing.T) {
	assert.Equal(t, "902XX", generalize(TokenZIP, "90210"))
}

func TestMaskSSNKeepsLastFourDigits(t *testing.T) {
	assert.Equal(t, "***-**-6789", mask(TokenSSN, "123-45-6789"))
}

func TestMaskDefaultKeepsLastFourChars(t *testing.T) {
	masked := mask(TokenOther, "ACCOUNT12345")
	assert.True(t, strings.HasSuffix(masked, "2345"))
	assert.True(t, strings.HasPrefix(masked, "********"))
}

func TestReplaceEmptyValuePassesThrough(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	assert.Equal(t, "", Replace(types.AnonStrategyRedact, "name", "", TokenName, rng))
}

func TestHashOriginal16IsDeterministicAndSixteenChars(t *testing.T) {
	h1 := HashOriginal16("John Smith")
	h2 := HashOriginal16("John Smith")
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 16)
	assert.NotEqual(t, HashOriginal16("Jane Doe"), h1)
}
