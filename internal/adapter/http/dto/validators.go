package dto

import (
	"html"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const (
	tokenScale = 4
	eurScale   = 2
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("token_amount", validateTokenAmount)
		_ = v.RegisterValidation("eur_amount", validateEurAmount)
	}
}

// validateTokenAmount accepts a positive decimal string with at most four
// fractional digits.
func validateTokenAmount(fl validator.FieldLevel) bool {
	return validDecimal(fl.Field().String(), tokenScale)
}

// validateEurAmount accepts a positive decimal string with at most two
// fractional digits.
func validateEurAmount(fl validator.FieldLevel) bool {
	return validDecimal(fl.Field().String(), eurScale)
}

func validDecimal(raw string, scale int32) bool {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return false
	}
	return d.IsPositive() && d.Exponent() >= -scale
}

// SanitizeStruct trims whitespace and HTML-escapes every exported string
// field (including *string) of a struct pointer.
func SanitizeStruct(v interface{}) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	sanitizeFields(rv.Elem())
}

func sanitizeFields(rv reflect.Value) {
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanSet() {
			continue
		}
		switch f.Kind() {
		case reflect.String:
			f.SetString(sanitize(f.String()))
		case reflect.Ptr:
			if f.IsNil() {
				continue
			}
			elem := f.Elem()
			if elem.Kind() == reflect.String {
				s := sanitize(elem.String())
				elem.SetString(s)
			}
		}
	}
}

func sanitize(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}
