package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

func newValidate() *validator.Validate {
	v := validator.New()
	RegisterOn(v)
	return v
}

func TestCustomTags(t *testing.T) {
	v := newValidate()

	tests := []struct {
		tag   string
		value string
		valid bool
	}{
		{"hex_color", "#FFF", true},
		{"hex_color", "#1976D2", true},
		{"hex_color", "red", false},
		{"record_kind", "add", true},
		{"record_kind", "edit_item", true},
		{"record_kind", "refund", false},
		{"period_name", "10days", true},
		{"period_name", "last3Months", true},
		{"period_name", "3months", true},
		{"period_name", "", true},
		{"period_name", "fortnight", false},
		{"adjust_type", "add", true},
		{"adjust_type", "reduce", true},
		{"adjust_type", "set", false},
		{"otp_code", "A1B2C3", true},
		{"otp_code", "a1b2c3", true},
		{"otp_code", "A1B2C", false},
		{"otp_code", "ZZZZZZ", false},
		{"group_by", "name", true},
		{"group_by", "product", true},
		{"group_by", "sku", false},
		{"optional_uuid", "0190a5a0-0000-7000-8000-0000000000c1", true},
		{"optional_uuid", "", true},
		{"optional_uuid", "drinks", false},
	}

	for _, tt := range tests {
		t.Run(tt.tag+"/"+tt.value, func(t *testing.T) {
			err := v.Var(tt.value, tt.tag)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestRegisterWithGin(t *testing.T) {
	assert.NotPanics(t, Register)
}
