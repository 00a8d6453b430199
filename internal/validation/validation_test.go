package validation

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pinChange struct {
	Name    string `json:"name" validate:"required" msg:"Enter your registered full name."`
	NewPIN  string `json:"new_pin" validate:"min=4" msg:"New PIN must be at least 4 characters."`
	Confirm string `json:"confirm" validate:"eqfield=NewPIN" msg:"New PIN and confirmation do not match."`
}

type plain struct {
	Date string `json:"date" validate:"datetime=2006-01-02"`
}

func TestStructUsesMessageTag(t *testing.T) {
	tests := []struct {
		name  string
		input pinChange
		want  string
	}{
		{"missing name", pinChange{NewPIN: "1234", Confirm: "1234"}, "Enter your registered full name."},
		{"short pin", pinChange{Name: "Ann", NewPIN: "12", Confirm: "12"}, "New PIN must be at least 4 characters."},
		{"mismatch", pinChange{Name: "Ann", NewPIN: "1234", Confirm: "4321"}, "New PIN and confirmation do not match."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.input)
			require.Error(t, err)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.want, ve.Message)
			assert.NotEmpty(t, ve.Fields)
		})
	}
}

func TestStructValid(t *testing.T) {
	assert.NoError(t, Struct(pinChange{Name: "Ann", NewPIN: "1234", Confirm: "1234"}))
}

func TestStructFallsBackToTranslation(t *testing.T) {
	err := Struct(plain{Date: "19-10-2026"})
	require.Error(t, err)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "date", ve.Fields[0].Field)
	assert.Contains(t, ve.Message, "date")
}

func TestIsValidation(t *testing.T) {
	assert.True(t, IsValidation(Errorf("bad %s", "input")))
	assert.True(t, IsValidation(fmt.Errorf("wrapped: %w", Errorf("bad"))))
	assert.False(t, IsValidation(errors.New("other")))
}
