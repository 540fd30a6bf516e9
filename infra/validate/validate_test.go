package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type topUp struct {
	Amount   float64 `validate:"gt=0"`
	Currency string  `validate:"omitempty,currency"`
	Email    string  `validate:"omitempty,email"`
	Phone    string  `validate:"omitempty,phone"`
}

func TestValidationRules(t *testing.T) {
	v := New()

	tests := []struct {
		name  string
		input topUp
		valid bool
	}{
		{"minimal", topUp{Amount: 500}, true},
		{"full", topUp{Amount: 1, Currency: "KZT", Email: "a@b.kz", Phone: "+7 (701) 234-56-78"}, true},
		{"zero amount", topUp{Amount: 0}, false},
		{"negative amount", topUp{Amount: -5}, false},
		{"invalid email", topUp{Amount: 1, Email: "invalid-email"}, false},
		{"lowercase currency", topUp{Amount: 1, Currency: "kzt"}, false},
		{"short phone", topUp{Amount: 1, Phone: "12345"}, false},
		{"letters in phone", topUp{Amount: 1, Phone: "+7701abc5678"}, false},
		{"plus in middle", topUp{Amount: 1, Phone: "7701+2345678"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.input)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestMessage(t *testing.T) {
	err := New().Struct(topUp{Amount: 0, Email: "nope"})
	require.Error(t, err)

	msg := Message(err)
	assert.Contains(t, msg, "Amount failed gt=0")
	assert.Contains(t, msg, "Email failed email")

	assert.Equal(t, "plain", Message(errors.New("plain")))
}

func BenchmarkValidation(b *testing.B) {
	v := New()
	input := topUp{Amount: 500, Phone: "+77012345678"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = v.Struct(input)
	}
}
