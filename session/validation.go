package session

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kamnsolar/field_capture/utils"
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("mobile", func(fl validator.FieldLevel) bool {
		return utils.IsPossiblePhoneNumber(fl.Field().String(), utils.CountryCode)
	})
	return v
}

func (s *Session) validateStruct(input any) error {
	if err := s.validate.Struct(input); err != nil {
		return &ValidationError{Fields: utils.ProcessValidationErrors(err)}
	}
	return nil
}
