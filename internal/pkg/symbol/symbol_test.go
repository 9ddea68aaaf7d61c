package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in    string
		base  string
		quote string
	}{
		{"BTC/USDT", "BTC", "USDT"},
		{"btc/usdt", "BTC", "USDT"},
		{"BTCUSDT", "BTC", "USDT"},
		{"ethbtc", "ETH", "BTC"},
		{" SOL/USDC ", "SOL", "USDC"},
		{"USDT", "", ""},
		{"", "", ""},
	}
	for _, tc := range cases {
		got := Parse(tc.in)
		assert.Equal(t, tc.base, got.Base, tc.in)
		assert.Equal(t, tc.quote, got.Quote, tc.in)
	}
}

func TestNormalizeAndExchange(t *testing.T) {
	assert.Equal(t, "BTC/USDT", Normalize("btcusdt"))
	assert.Equal(t, "", Normalize("???"))
	assert.Equal(t, "BTCUSDT", ToExchange("btc/usdt"))
	assert.Equal(t, "BTCUSDT", Symbol{Base: "BTC", Quote: "USDT"}.Exchange())
}

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid("BTC/USDT"))
	assert.True(t, IsValid("ethusdt"))
	assert.False(t, IsValid("USDT"))
	assert.False(t, IsValid(""))
}
