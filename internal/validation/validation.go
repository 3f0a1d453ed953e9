// Package validation checks request bodies before they reach any store.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/boddenberg/customer-registry-bff/internal/domain"

	"github.com/go-playground/validator/v10"
)

var (
	postalCodeRe = regexp.MustCompile(`^\d{5}-?\d{3}$`)
	phoneRe      = regexp.MustCompile(`^\(\d{2}\)\s\d{4,5}-\d{4}$`)
	stateCodeRe  = regexp.MustCompile(`^[A-Z]{2}$`)
	personNameRe = regexp.MustCompile(`^[a-zA-ZÀ-ÿ\s]+$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report fields by their JSON name so messages match the request body.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	mustRegister(v, "cep", func(fl validator.FieldLevel) bool {
		return postalCodeRe.MatchString(fl.Field().String())
	})
	mustRegister(v, "phone", func(fl validator.FieldLevel) bool {
		return phoneRe.MatchString(fl.Field().String())
	})
	mustRegister(v, "optphone", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "" || phoneRe.MatchString(s)
	})
	mustRegister(v, "uf", func(fl validator.FieldLevel) bool {
		return stateCodeRe.MatchString(fl.Field().String())
	})
	mustRegister(v, "personname", func(fl validator.FieldLevel) bool {
		return personNameRe.MatchString(fl.Field().String())
	})

	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic("validation: register " + tag + ": " + err.Error())
	}
}

// Struct validates data and returns *domain.ErrValidationSet listing every failing field.
func Struct(data any) error {
	err := validate.Struct(data)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &domain.ErrValidation{Field: "body", Message: err.Error()}
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fieldPath(fe)] = message(fe)
	}
	return &domain.ErrValidationSet{Fields: fields}
}

// fieldPath drops the root struct name: "CustomerInput.endereco.rua" -> "endereco.rua".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "campo obrigatório"
	case "email":
		return "email inválido"
	case "min":
		if fe.Field() == "password" {
			return fmt.Sprintf("a senha deve ter pelo menos %s caracteres", fe.Param())
		}
		return fmt.Sprintf("deve ter pelo menos %s caracteres", fe.Param())
	case "len":
		return fmt.Sprintf("deve ter exatamente %s caracteres", fe.Param())
	case "oneof":
		return "deve ser um de: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "uuid":
		return "deve ser um UUID válido"
	case "cep":
		return "CEP deve ter 8 dígitos (ex: 12345-678)"
	case "phone", "optphone":
		return "deve estar no formato (11) 99999-9999"
	case "uf":
		return "UF deve conter apenas letras maiúsculas"
	case "personname":
		return "deve conter apenas letras"
	default:
		return fmt.Sprintf("valor inválido (%s)", fe.Tag())
	}
}

// PostalCodeDigits strips everything but digits and requires exactly 8 of them.
func PostalCodeDigits(raw string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
	if len(digits) != 8 {
		return "", &domain.ErrValidation{Field: "cep", Message: "CEP deve ter 8 dígitos"}
	}
	return digits, nil
}
