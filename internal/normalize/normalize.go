// Package normalize canonicalizes statement descriptions and derives the
// fingerprints and merchant patterns used for de-duplication and aliasing.
package normalize

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Text lowercases s, strips diacritics, replaces punctuation with spaces and
// collapses whitespace. Apostrophes are dropped so "McDonald's" stays one word.
func Text(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	space := false
	for _, r := range folded {
		switch {
		case r == '\'' || r == '’':
			continue
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		default:
			space = true
		}
	}
	return b.String()
}

// Fingerprint is the hex MD5 of "YYYY-MM-DD|amount|Text(description)" with
// the amount fixed to two decimals. Equal inputs after normalization always
// produce equal fingerprints.
func Fingerprint(date time.Time, amount decimal.Decimal, description string) string {
	input := date.Format("2006-01-02") + "|" + amount.StringFixed(2) + "|" + Text(description)
	sum := md5.Sum([]byte(input))
	return hex.EncodeToString(sum[:])
}

var (
	purchaseDate = regexp.MustCompile(`\b\d{2}[/.-]\d{2}([/.-]\d{2,4})?\b`)
	cardSuffix   = regexp.MustCompile(`(?i)\s*\b(CB|CARD|CARTE|VISA)?\s*[*X]+\d{4}\s*$`)
	bankPrefix   = regexp.MustCompile(`(?i)^\s*(DEBIT CARD PURCHASE|ATM WITHDRAWAL|PRELEVEMENT|ACH CREDIT|ACH DEBIT|RETRAIT DAB|PRLV SEPA|VIREMENT|VIR SEPA|CHEQUE|CARTE|CHECK|PRLV|VIR|CHQ|POS|CB)\b[\s:*-]*`)
)

// MerchantPattern strips bank boilerplate from a raw description and
// normalizes what is left. Date tokens and card suffixes go first so the
// prefix rule sees the start of the original text.
//
//	"CARTE 15/01/25 CAFE DU COIN CB*1234" -> "cafe du coin"
func MerchantPattern(raw string) string {
	s := purchaseDate.ReplaceAllString(raw, " ")
	s = cardSuffix.ReplaceAllString(s, "")
	s = bankPrefix.ReplaceAllString(s, "")
	return Text(s)
}
