package format

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func pow(base, exp int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(base), big.NewInt(exp), nil)
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		name     string
		raw      *big.Int
		decimals uint8
		want     string
	}{
		{name: "nil", raw: nil, decimals: 18, want: "0"},
		{name: "zero", raw: big.NewInt(0), decimals: 18, want: "0"},
		{name: "one ether", raw: pow(10, 18), decimals: 18, want: "1"},
		{name: "one and a half", raw: big.NewInt(1_500_000), decimals: 6, want: "1.5"},
		{name: "one wei", raw: big.NewInt(1), decimals: 18, want: "0.000000000000000001"},
		{name: "grouping", raw: new(big.Int).Mul(big.NewInt(1_234_567), pow(10, 18)), decimals: 18, want: "1,234,567"},
		{name: "no decimals", raw: big.NewInt(1000), decimals: 0, want: "1,000"},
		{name: "trailing zeros trimmed", raw: big.NewInt(1_230_000), decimals: 6, want: "1.23"},
		{name: "negative", raw: big.NewInt(-2_500), decimals: 3, want: "-2.5"},
		{name: "bid of 50 with no scale", raw: big.NewInt(50), decimals: 0, want: "50"},
		{
			name:     "beyond float precision",
			raw:      new(big.Int).Add(pow(2, 200), big.NewInt(1)),
			decimals: 0,
			want:     "1,606,938,044,258,990,275,541,962,092,341,162,602,522,202,993,782,792,835,301,377",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatAmount(tt.raw, tt.decimals); got != tt.want {
				t.Errorf("FormatAmount() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatAmount_RoundTrip(t *testing.T) {
	amounts := []*big.Int{
		big.NewInt(0),
		pow(10, 18),
		pow(2, 200),
		big.NewInt(123_456_789),
	}
	formatters := map[string]*Formatter{
		"en": Default,
		"de": New(language.German),
	}

	for name, f := range formatters {
		for _, decimals := range []uint8{0, 6, 18} {
			for _, raw := range amounts {
				display := f.FormatAmount(raw, decimals)
				back, err := f.ParseAmount(display, decimals)
				require.NoError(t, err, "%s: parse %q", name, display)
				assert.Equal(t, 0, raw.Cmp(back), "%s: %s at %d decimals came back as %s", name, raw, decimals, back)
			}
		}
	}
}

func TestFormatter_German(t *testing.T) {
	f := New(language.German)
	assert.Equal(t, "1.234.567,5", f.FormatAmount(big.NewInt(12_345_675), 1))
}

func TestFormatter_GroupsLikePrinter(t *testing.T) {
	locales := []string{"en", "de", "fr", "es", "en-IN", "de-CH", "pt-BR"}
	values := []int64{7, 1_000, 12_345, 123_456, 1_234_567, 1_234_567_890}

	for _, locale := range locales {
		t.Run(locale, func(t *testing.T) {
			tag := language.MustParse(locale)
			f := New(tag)
			p := message.NewPrinter(tag)
			for _, v := range values {
				want := p.Sprintf("%v", v)
				got := f.FormatAmount(big.NewInt(v), 0)
				assert.Equal(t, want, got, "value %d", v)

				back, err := f.ParseAmount(got, 0)
				require.NoError(t, err)
				assert.Equal(t, v, back.Int64())
			}
		})
	}
}

func TestFormatter_GroupDigits(t *testing.T) {
	tests := []struct {
		name   string
		f      Formatter
		digits string
		want   string
	}{
		{name: "uniform", f: Formatter{group: ",", primary: 3, secondary: 3, minGrouping: 1}, digits: "1234567", want: "1,234,567"},
		{name: "indian", f: Formatter{group: ",", primary: 3, secondary: 2, minGrouping: 1}, digits: "1234567", want: "12,34,567"},
		{name: "indian long", f: Formatter{group: ",", primary: 3, secondary: 2, minGrouping: 1}, digits: "1234567890", want: "1,23,45,67,890"},
		{name: "minimum grouping keeps four digits", f: Formatter{group: ".", primary: 3, secondary: 3, minGrouping: 2}, digits: "1000", want: "1000"},
		{name: "minimum grouping splits five digits", f: Formatter{group: ".", primary: 3, secondary: 3, minGrouping: 2}, digits: "10000", want: "10.000"},
		{name: "no grouping", f: Formatter{primary: 3, secondary: 3, minGrouping: 1}, digits: "1234567", want: "1234567"},
		{name: "exact group", f: Formatter{group: ",", primary: 3, secondary: 3, minGrouping: 1}, digits: "123456", want: "123,456"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.f.groupDigits(tt.digits))
		})
	}
}

func TestForLocale(t *testing.T) {
	f, err := ForLocale("en-US")
	require.NoError(t, err)
	assert.Equal(t, "1,000.25", f.FormatAmount(big.NewInt(100_025), 2))

	_, err = ForLocale("not a locale!")
	assert.Error(t, err)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name     string
		display  string
		decimals uint8
		want     *big.Int
		wantErr  bool
	}{
		{name: "integer", display: "12", decimals: 2, want: big.NewInt(1_200)},
		{name: "grouped", display: "1,000.5", decimals: 1, want: big.NewInt(10_005)},
		{name: "leading dot", display: ".5", decimals: 1, want: big.NewInt(5)},
		{name: "negative", display: "-0.25", decimals: 2, want: big.NewInt(-25)},
		{name: "too many fractional digits", display: "1.234", decimals: 2, wantErr: true},
		{name: "letters", display: "1e18", decimals: 0, wantErr: true},
		{name: "empty", display: " ", decimals: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.display, tt.decimals)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 0, tt.want.Cmp(got), "got %s", got)
		})
	}
}

func TestResolveMediaURI(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		token   string
		want    string
		wantErr bool
	}{
		{name: "plain concatenation", base: "ipfs://trove/", token: "1.png", want: "ipfs://trove/1.png"},
		{name: "no separator inserted", base: "ipfs://trove", token: "1.png", want: "ipfs://trove1.png"},
		{name: "empty base", base: "", token: "https://cdn.test/1.png", want: "https://cdn.test/1.png"},
		{name: "both empty", base: "", token: "", wantErr: true},
		{name: "unparseable", base: "http://[::1", token: "/x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveMediaURI(tt.base, tt.token)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
