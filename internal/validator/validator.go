// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"stocktrail/internal/analytics"
	"stocktrail/internal/models"
	"stocktrail/internal/period"
	"stocktrail/internal/uuid"
)

var (
	hexColorRegex = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
	otpCodeRegex  = regexp.MustCompile(`^[0-9a-fA-F]{6}$`)
)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		RegisterOn(v)
	}
}

// RegisterOn registers the custom tags on v.
func RegisterOn(v *validator.Validate) {
	_ = v.RegisterValidation("hex_color", validateHexColor)
	_ = v.RegisterValidation("record_kind", validateRecordKind)
	_ = v.RegisterValidation("period_name", validatePeriodName)
	_ = v.RegisterValidation("adjust_type", validateAdjustType)
	_ = v.RegisterValidation("otp_code", validateOTPCode)
	_ = v.RegisterValidation("group_by", validateGroupBy)
	_ = v.RegisterValidation("optional_uuid", validateOptionalUUID)
}

func validateHexColor(fl validator.FieldLevel) bool {
	return hexColorRegex.MatchString(fl.Field().String())
}

func validateRecordKind(fl validator.FieldLevel) bool {
	return models.RecordKind(fl.Field().String()).Valid()
}

func validatePeriodName(fl validator.FieldLevel) bool {
	return period.Name(fl.Field().String()).Valid()
}

func validateAdjustType(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "add", "reduce":
		return true
	}
	return false
}

func validateOTPCode(fl validator.FieldLevel) bool {
	return otpCodeRegex.MatchString(fl.Field().String())
}

func validateGroupBy(fl validator.FieldLevel) bool {
	switch analytics.GroupBy(fl.Field().String()) {
	case analytics.GroupByName, analytics.GroupByProduct:
		return true
	}
	return false
}

// validateOptionalUUID accepts a UUID or the empty string, which callers use
// to clear a reference.
func validateOptionalUUID(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return s == "" || uuid.IsValid(s)
}
