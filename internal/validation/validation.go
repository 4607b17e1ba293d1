// Package validation wraps go-playground/validator and reports failures as
// *domain.ErrValidation using the JSON field names.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/atendimentobr/atendimento-api/internal/domain"

	"github.com/go-playground/validator/v10"
)

// Validator validates request structs.
type Validator struct {
	validate *validator.Validate
}

// New creates a Validator that names fields after their json tag.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v}
}

// Struct validates s. All violations are returned, sorted by field.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate: %w", err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, message(fe))
	}
	sort.Strings(msgs)

	if len(fieldErrs) == 1 {
		return &domain.ErrValidation{Field: fieldErrs[0].Field(), Message: msgs[0], Errors: msgs}
	}
	return &domain.ErrValidation{Message: "Dados inválidos", Errors: msgs}
}

func message(fe validator.FieldError) string {
	f := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s é obrigatório", f)
	case "email":
		return fmt.Sprintf("%s deve ser um e-mail válido", f)
	case "url":
		return fmt.Sprintf("%s deve ser uma URL válida", f)
	case "numeric":
		return fmt.Sprintf("%s deve conter apenas dígitos", f)
	case "len":
		return fmt.Sprintf("%s deve ter %s caracteres", f, fe.Param())
	case "min":
		return fmt.Sprintf("%s deve ter no mínimo %s caracteres", f, fe.Param())
	case "max":
		return fmt.Sprintf("%s deve ter no máximo %s caracteres", f, fe.Param())
	case "gte":
		return fmt.Sprintf("%s deve ser maior ou igual a %s", f, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s deve ser um de: %s", f, fe.Param())
	case "timezone":
		return fmt.Sprintf("%s deve ser um fuso horário válido", f)
	default:
		return fmt.Sprintf("%s é inválido (%s)", f, fe.Tag())
	}
}
