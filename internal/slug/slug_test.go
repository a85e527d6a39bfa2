package slug

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMake(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "Pro Plan", want: "pro-plan"},
		{in: "  Crème Brûlée & Co. ", want: "creme-brulee-co"},
		{in: "Jane_Doe--2026", want: "jane-doe-2026"},
		{in: "محمد", want: ""},
		{in: "Café محمد Card", want: "cafe-card"},
		{in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Make(tt.in))
		})
	}
}

func TestMakeLimitsLength(t *testing.T) {
	assert.LessOrEqual(t, len(Make(strings.Repeat("ab ", 100))), MaxLen)
}
