package money

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "plain integer", input: "125", want: "125"},
		{name: "plain decimal", input: "125.00", want: "125"},
		{name: "peso prefixed", input: "₱125.00", want: "125"},
		{name: "peso with grouping", input: "₱1,234.50", want: "1234.5"},
		{name: "surrounding whitespace", input: "  ₱90.00 ", want: "90"},
		{name: "empty", input: "", wantErr: true},
		{name: "sign only", input: "₱", wantErr: true},
		{name: "garbage", input: "₱abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "number", input: `125.5`, want: "125.5"},
		{name: "string plain", input: `"125.50"`, want: "125.5"},
		{name: "string peso", input: `"₱1,234.50"`, want: "1234.5"},
		{name: "null", input: `null`, want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseJSON(json.RawMessage(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}

	t.Run("empty raw", func(t *testing.T) {
		got, err := ParseJSON(nil)
		require.NoError(t, err)
		assert.True(t, got.IsZero())
	})
}

func TestRound2(t *testing.T) {
	assert.Equal(t, "21.6", Round2(decimal.RequireFromString("21.6")).String())
	assert.Equal(t, "21.61", Round2(decimal.RequireFromString("21.605")).String())
	assert.Equal(t, "0.12", Round2(decimal.RequireFromString("0.1249")).String())
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "₱125.00", Format(decimal.RequireFromString("125")))
	assert.Equal(t, "₱1,234.50", Format(decimal.RequireFromString("1234.5")))
	assert.Equal(t, "₱0.00", Format(decimal.Zero))
	assert.Equal(t, "₱251.60", Format(decimal.RequireFromString("251.6")))
	assert.Equal(t, "-₱1,234.50", Format(decimal.RequireFromString("-1234.5")))
}

func TestFormat_KeepsDigitsBeyondFloatPrecision(t *testing.T) {
	// 2^53+1 is the first integer float64 cannot hold.
	assert.Equal(t, "₱9,007,199,254,740,993.00",
		Format(decimal.RequireFromString("9007199254740993")))
	assert.Equal(t, "₱123,456,789,012,345,678,901,234,567,890.10",
		Format(decimal.RequireFromString("123456789012345678901234567890.1")))
	assert.Equal(t, "-₱12,345,678,901,234,567,890,123.45",
		Format(decimal.RequireFromString("-12345678901234567890123.45")))
}
