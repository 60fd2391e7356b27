package models

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct runs tag validation and reports the first failing field as an
// input validation error.
func validateStruct(component, recordID string, s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Param() != "" {
			return NewError(KindInputValidation, component, recordID,
				"field %s failed %s=%s", fe.Field(), fe.Tag(), fe.Param())
		}
		return NewError(KindInputValidation, component, recordID,
			"field %s failed %s", fe.Field(), fe.Tag())
	}
	return WrapError(KindInputValidation, component, recordID, err, "validation failed")
}
