package invite

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "six chars", in: "abcdef", want: "ABC-DEF"},
		{name: "eight chars", in: "abcd1234", want: "ABCD-1234"},
		{name: "seven chars", in: "abcdefg", want: "ABCDEFG"},
		{name: "already hyphenated", in: "ABC-DEF", want: "ABC-DEF"},
		{name: "empty", in: "", want: ""},
		{name: "long", in: "demobot0", want: "DEMO-BOT0"},
		{name: "mixed case", in: "aBc-dEf-gH", want: "ABC-DEF-GH"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizeProperties(t *testing.T) {
	inputs := []string{"", "a", "ab", "abc", "abcd", "abcde", "abcdef", "abcdefg",
		"abcdefgh", "abcdefghi", "xyz-xyz", "ÀÉÎÕÜé", "1234-5678", "q"}

	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "idempotent for %q", in)
		assert.Equal(t, strings.ToUpper(once), once, "uppercase for %q", in)

		upper := []rune(strings.ToUpper(in))
		switch len(upper) {
		case 6, 8:
			half := len(upper) / 2
			assert.Equal(t, '-', []rune(once)[half], "hyphen at midpoint for %q", in)
			assert.Len(t, []rune(once), len(upper)+1)
		default:
			assert.Equal(t, string(upper), once, "no hyphen for %q", in)
		}
	}
}

func TestNormalizeAll(t *testing.T) {
	codes := []string{"abcdef", "xy"}
	out := NormalizeAll(codes)

	assert.Equal(t, []string{"ABC-DEF", "XY"}, out)
	assert.Equal(t, out, codes, "normalized in place")
}

func TestSplitMulti(t *testing.T) {
	assert.Nil(t, SplitMulti(""))
	assert.Equal(t, []string{"a"}, SplitMulti("a"))
	assert.Equal(t, []string{"a", "b", ""}, SplitMulti("a;b;"))
}
