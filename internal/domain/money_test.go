package domain

import (
	"testing"

	"github.com/govalues/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRoundMoney_HalfAwayFromZero(t *testing.T) {
	cases := map[string]string{
		"0.525":  "0.53",
		"0.535":  "0.54",
		"0.515":  "0.52",
		"0.5249": "0.52",
		"0.001":  "0.00",
		"0.005":  "0.01",
		"-0.525": "-0.53",
		"2.5":    "2.50",
		"13.2":   "13.20",
		"0":      "0.00",
	}

	for in, want := range cases {
		got := RoundMoney(decimal.MustParse(in))
		assert.Equal(t, want, got.String(), "RoundMoney(%s)", in)
	}
}
