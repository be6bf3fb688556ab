package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMethod(t *testing.T) {
	tests := []struct {
		in   string
		want Method
		ok   bool
	}{
		{in: "CARD", want: MethodCard, ok: true},
		{in: "card", want: MethodCard, ok: true},
		{in: " eft ", want: MethodEFT, ok: true},
		{in: "cash"},
		{in: ""},
	}
	for _, tt := range tests {
		got, ok := ParseMethod(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
