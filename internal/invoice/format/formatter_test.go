package format

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatInvoiceNumber(t *testing.T) {
	issuedAt := time.Date(2026, 3, 7, 10, 30, 0, 0, time.UTC)

	got, err := FormatInvoiceNumber(DefaultInvoiceNumberTemplate, issuedAt, "A1B2C3D4")
	require.NoError(t, err)
	assert.Equal(t, "INV-20260307-A1B2C3", got)
	assert.True(t, ValidNumber(got))
}

func TestFormatInvoiceNumberEmptyTemplate(t *testing.T) {
	_, err := FormatInvoiceNumber("", time.Now(), "ABCDEF")
	assert.Error(t, err)
}

func TestFormatInvoiceNumberUnresolvedToken(t *testing.T) {
	_, err := FormatInvoiceNumber("INV-{NOPE}", time.Now(), "ABCDEF")
	assert.Error(t, err)
}

func TestFormatInvoiceNumberSuffixTooShort(t *testing.T) {
	// Width larger than the suffix leaves the token unresolved.
	_, err := FormatInvoiceNumber("INV-{RAND6}", time.Now(), "AB")
	assert.Error(t, err)
}

func TestRandomSuffix(t *testing.T) {
	a := RandomSuffix()
	b := RandomSuffix()
	require.GreaterOrEqual(t, len(a), 6)
	assert.NotEqual(t, a, b)

	got, err := FormatInvoiceNumber(DefaultInvoiceNumberTemplate, time.Now().UTC(), a)
	require.NoError(t, err)
	assert.True(t, ValidNumber(got))
}

func TestRandomSuffixSamplesFullAlphabet(t *testing.T) {
	seen := make(map[byte]bool)
	for i := 0; i < 50; i++ {
		s := RandomSuffix()
		require.Regexp(t, "^[A-Z0-9]+$", s)
		for j := 0; j < len(s); j++ {
			seen[s[j]] = true
		}
	}

	// Letters past F never appear in a hex-only suffix.
	beyondHex := false
	for c := range seen {
		if c > 'F' && c <= 'Z' {
			beyondHex = true
		}
	}
	assert.True(t, beyondHex)
}
