// Package format converts raw on-chain values into display strings.
//
// Amounts are scaled with integer arithmetic only: the integer and fractional
// parts come from a single big.Int QuoRem, so no value is ever routed through a
// float and large token amounts keep every digit.
//
// Separators, group sizes and the minimum grouping are read back from the
// x/text number printer for the locale, so an amount groups exactly like an
// integer printed by message.Printer ("12,34,567" for en-IN).
package format

import (
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// MaxDecimals is the largest scale whose unit still fits a uint256 amount
const MaxDecimals = 77

// Formatter renders amounts with the grouping and decimal separators of a locale
type Formatter struct {
	group   string
	decimal string

	// primary is the size of the rightmost digit group, secondary the size of
	// every group left of it ("12,34,567" is 3 then 2)
	primary   int
	secondary int

	// minGrouping is how many digits the leftmost group needs before any
	// separator is written ("1000" but "10.000" at 2)
	minGrouping int
}

// Default formats for English
var Default = New(language.English)

// New derives separators and group sizes for tag from the x/text number printer
func New(tag language.Tag) *Formatter {
	f, ok := patternOf(tag)
	if !ok {
		f, _ = patternOf(language.English)
	}
	return f
}

// ForLocale parses a BCP 47 tag such as "en", "de-DE" or "fr"
func ForLocale(locale string) (*Formatter, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("invalid display locale %q: %w", locale, err)
	}
	return New(tag), nil
}

// patternOf asks the printer to render known numbers and reads the pattern back.
// Locales that print non-ASCII digits report false.
func patternOf(tag language.Tag) (*Formatter, bool) {
	p := message.NewPrinter(tag)
	long := p.Sprintf("%v", 1234567890)
	fractional := p.Sprintf("%v", 1.5)

	for _, s := range []string{long, fractional} {
		for _, r := range s {
			if unicode.IsDigit(r) && (r < '0' || r > '9') {
				return nil, false
			}
		}
	}

	decimal := between(fractional, "1", "5")
	if decimal == "" {
		return nil, false
	}
	f := &Formatter{decimal: decimal, primary: 3, secondary: 3, minGrouping: 1}

	groups := digitRuns(long)
	if len(groups) < 2 {
		// the locale does not group
		return f, true
	}
	f.group = between(long, groups[0], groups[1])
	f.primary = len(groups[len(groups)-1])
	f.secondary = len(groups[len(groups)-2])

	// the smallest grouped integer decides the minimum grouping
	for digits := 1; digits <= 4; digits++ {
		sample := int64(1)
		for i := 1; i < f.primary+digits; i++ {
			sample *= 10
		}
		if len(digitRuns(p.Sprintf("%v", sample))) > 1 {
			f.minGrouping = digits
			break
		}
	}
	return f, true
}

// digitRuns splits s into its maximal runs of ASCII digits
func digitRuns(s string) []string {
	var runs []string
	start := -1
	for i := 0; i <= len(s); i++ {
		isDigit := i < len(s) && s[i] >= '0' && s[i] <= '9'
		switch {
		case isDigit && start < 0:
			start = i
		case !isDigit && start >= 0:
			runs = append(runs, s[start:i])
			start = -1
		}
	}
	return runs
}

func between(s, left, right string) string {
	i := strings.Index(s, left)
	if i < 0 {
		return ""
	}
	rest := s[i+len(left):]
	j := strings.Index(rest, right)
	if j < 0 {
		return ""
	}
	return rest[:j]
}

// FormatAmount divides raw by 10^decimals and renders it with locale grouping.
// Trailing fractional zeros are dropped; a nil amount renders as "0".
func (f *Formatter) FormatAmount(raw *big.Int, decimals uint8) string {
	if raw == nil {
		return "0"
	}
	sign := ""
	abs := new(big.Int).Set(raw)
	if abs.Sign() < 0 {
		sign = "-"
		abs.Neg(abs)
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(abs, scale, new(big.Int))

	out := sign + f.groupDigits(whole.String())
	if decimals == 0 || frac.Sign() == 0 {
		return out
	}
	digits := frac.String()
	digits = strings.Repeat("0", int(decimals)-len(digits)) + digits
	return out + f.decimal + strings.TrimRight(digits, "0")
}

func (f *Formatter) groupDigits(digits string) string {
	if f.group == "" || len(digits) < f.primary+f.minGrouping {
		return digits
	}

	// groups are collected right to left
	var groups []string
	rest := digits
	size := f.primary
	for len(rest) > size {
		groups = append(groups, rest[len(rest)-size:])
		rest = rest[:len(rest)-size]
		size = f.secondary
	}
	groups = append(groups, rest)

	var b strings.Builder
	for i := len(groups) - 1; i >= 0; i-- {
		b.WriteString(groups[i])
		if i > 0 {
			b.WriteString(f.group)
		}
	}
	return b.String()
}

// ParseAmount is the inverse of FormatAmount: it reads a display string in this
// locale back into the raw integer at the given scale. More fractional digits
// than decimals is an error rather than a silent truncation.
func (f *Formatter) ParseAmount(display string, decimals uint8) (*big.Int, error) {
	s := strings.TrimSpace(display)
	if s == "" {
		return nil, errors.New("empty amount")
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	if f.group != "" {
		s = strings.ReplaceAll(s, f.group, "")
	}

	whole, frac := s, ""
	if i := strings.Index(s, f.decimal); i >= 0 {
		whole, frac = s[:i], s[i+len(f.decimal):]
	}
	if whole == "" {
		whole = "0"
	}
	if !allASCIIDigits(whole) || !allASCIIDigits(frac) {
		return nil, fmt.Errorf("malformed amount %q", display)
	}
	if utf8.RuneCountInString(frac) > int(decimals) {
		return nil, fmt.Errorf("amount %q has more than %d fractional digits", display, decimals)
	}

	frac += strings.Repeat("0", int(decimals)-len(frac))
	out, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, fmt.Errorf("malformed amount %q", display)
	}
	if neg {
		out.Neg(out)
	}
	return out, nil
}

func allASCIIDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// FormatAmount formats with the default (English) formatter
func FormatAmount(raw *big.Int, decimals uint8) string {
	return Default.FormatAmount(raw, decimals)
}

// ParseAmount parses with the default (English) formatter
func ParseAmount(display string, decimals uint8) (*big.Int, error) {
	return Default.ParseAmount(display, decimals)
}

// ResolveMediaURI joins the collection base URI and a token URI by plain
// concatenation and only checks that the result parses as a URI
func ResolveMediaURI(baseURI, tokenURI string) (string, error) {
	joined := baseURI + tokenURI
	if joined == "" {
		return "", errors.New("empty media URI")
	}
	if _, err := url.Parse(joined); err != nil {
		return "", fmt.Errorf("malformed media URI: %w", err)
	}
	return joined, nil
}
