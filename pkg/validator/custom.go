package validator

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

// phoneRe accepts E.164 with or without the leading plus; the relay adds it.
var phoneRe = regexp.MustCompile(`^\+?[1-9]\d{7,14}$`)

func RegisterCustomValidations(validate *validator.Validate) {
	validate.RegisterValidation("lat", validateLat)
	validate.RegisterValidation("lng", validateLng)
	validate.RegisterValidation("phone", validatePhone)
}

func validateLat(fl validator.FieldLevel) bool {
	lat := fl.Field().Float()
	return lat >= -90.0 && lat <= 90.0
}

func validateLng(fl validator.FieldLevel) bool {
	lng := fl.Field().Float()
	return lng >= -180.0 && lng <= 180.0
}

func validatePhone(fl validator.FieldLevel) bool {
	return phoneRe.MatchString(fl.Field().String())
}
