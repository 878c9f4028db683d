package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/fx"

	"github.com/itsmewidii/fitriacookry/pkg/errorbank"
)

// Module provides the request validator to Fx.
var Module = fx.Provide(New)

// Validator checks bound request payloads against their `validate` tags and
// reports failures keyed by the payload's `form` (or `json`) field names.
// It satisfies echo.Validator.
type Validator struct {
	v *validator.Validate
}

// New builds a Validator.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"form", "json"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})
	return &Validator{v: v}
}

// Validate returns nil or an errorbank unprocessable error carrying field messages.
func (v *Validator) Validate(i any) error {
	fields := v.Fields(i)
	if len(fields) == 0 {
		return nil
	}
	return errorbank.Invalid("The given data was invalid.", fields)
}

// Fields returns one message per invalid field, empty when the payload is valid.
func (v *Validator) Fields(i any) map[string]string {
	err := v.v.Struct(i)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"_": err.Error()}
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := fields[fe.Field()]; seen {
			continue
		}
		fields[fe.Field()] = message(fe)
	}
	return fields
}

// Label turns a field key such as "no_whatsapp" into "no whatsapp".
func Label(field string) string {
	return strings.ReplaceAll(field, "_", " ")
}

func message(fe validator.FieldError) string {
	label := Label(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", label)
	case "email":
		return fmt.Sprintf("The %s must be a valid email address.", label)
	case "numeric":
		return fmt.Sprintf("The %s must be a number.", label)
	case "number":
		return fmt.Sprintf("The %s must be an integer.", label)
	case "max":
		return fmt.Sprintf("The %s may not be greater than %s characters.", label, fe.Param())
	case "oneof":
		return fmt.Sprintf("The selected %s is invalid.", label)
	default:
		return fmt.Sprintf("The %s is invalid.", label)
	}
}
