package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string { return &s }

func TestBool(t *testing.T) {
	tests := []struct {
		input string
		want  *bool
	}{
		{"true", boolPtr(true)},
		{"TRUE", boolPtr(true)},
		{"1", boolPtr(true)},
		{" on ", boolPtr(true)},
		{"yes", boolPtr(true)},
		{"false", boolPtr(false)},
		{"0", boolPtr(false)},
		{"off", boolPtr(false)},
		{"no", boolPtr(false)},
		{"", nil},
		{"   ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Bool(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBool_Invalid(t *testing.T) {
	for _, in := range []string{"maybe", "2", "vrai"} {
		_, err := Bool(in)
		assert.Error(t, err, in)
	}
}

func boolPtr(b bool) *bool { return &b }

func TestPhone(t *testing.T) {
	tests := []struct {
		name       string
		candidates []*string
		want       string
	}{
		{"contacts first", []*string{ptr("07 00 11 22"), ptr("05 99")}, "07001122"},
		{"blank contacts falls back", []*string{ptr("   "), ptr("+225 05 99")}, "+2250599"},
		{"nil contacts falls back", []*string{nil, ptr("0599")}, "0599"},
		{"nothing", []*string{nil, ptr("")}, ""},
		{"no candidates", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Phone(tt.candidates...))
		})
	}
}

func TestInternationalPhone(t *testing.T) {
	tests := []struct {
		raw  string
		code string
		want string
	}{
		{"+225 07 00 00 00", "+225", "+22507000000"},
		{"0022507000000", "+225", "+22507000000"},
		{"07 00 00 00 00", "+225", "+2250700000000"},
		{"07000000", "228", "+22807000000"},
		{"   ", "+225", ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, InternationalPhone(tt.raw, tt.code))
		})
	}
}

func TestZoneTokens(t *testing.T) {
	assert.Equal(t, []string{"abobo", "yopougon", "port-bouet"}, ZoneTokens(ptr("abobo, Yopougon ,PORT-BOUET")))
	assert.Equal(t, []string{"abobo"}, ZoneTokens(ptr(" , abobo,, ")))
	assert.Nil(t, ZoneTokens(ptr("")))
	assert.Nil(t, ZoneTokens(nil))
}

func TestText(t *testing.T) {
	assert.Nil(t, Text("  "))
	assert.Equal(t, "abc", *Text(" abc "))
}
