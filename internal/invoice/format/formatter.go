package format

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const DefaultInvoiceNumberTemplate = "INV-{YYYY}{MM}{DD}-{RAND6}"

var (
	randPadRe = regexp.MustCompile(`\{RAND(\d+)\}`)
	numberRe  = regexp.MustCompile(`^INV-\d{8}-[A-Z0-9]{6}$`)
)

// FormatInvoiceNumber formats a human-readable invoice number based on a
// template, invoice issue time, and random suffix.
//
// This function is PURE:
// - No side effects
// - No DB access
// - Deterministic given the same suffix
func FormatInvoiceNumber(template string, issuedAt time.Time, suffix string) (string, error) {
	if template == "" {
		return "", fmt.Errorf("invoice number template is empty")
	}

	out := template

	// Date tokens
	out = strings.ReplaceAll(out, "{YYYY}", issuedAt.Format("2006"))
	out = strings.ReplaceAll(out, "{YY}", issuedAt.Format("06"))
	out = strings.ReplaceAll(out, "{MM}", issuedAt.Format("01"))
	out = strings.ReplaceAll(out, "{DD}", issuedAt.Format("02"))

	// Padded random suffix
	out = randPadRe.ReplaceAllStringFunc(out, func(m string) string {
		match := randPadRe.FindStringSubmatch(m)
		if len(match) != 2 {
			return m // should never happen
		}

		width, err := strconv.Atoi(match[1])
		if err != nil || width <= 0 || width > len(suffix) {
			return m
		}

		return suffix[:width]
	})

	// Final safety check: unresolved tokens
	if strings.Contains(out, "{") || strings.Contains(out, "}") {
		return "", fmt.Errorf("unresolved token in invoice format: %s", out)
	}

	return out, nil
}

const suffixAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomSuffix returns 32 characters sampled from the full [A-Z0-9]
// alphabet.
func RandomSuffix() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// Hex-only fallback, still inside [A-Z0-9].
		return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	}
	out := make([]byte, len(buf))
	for i, b := range buf {
		out[i] = suffixAlphabet[int(b)%len(suffixAlphabet)]
	}
	return string(out)
}

// ValidNumber reports whether s matches the canonical invoice number shape.
func ValidNumber(s string) bool {
	return numberRe.MatchString(s)
}
