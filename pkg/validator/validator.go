package validator

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/clinicore/booking-api/internal/model"
)

// Validator validates request structs against their validate tags plus the
// domain rules registered below.
type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Closed enums from the lookup tables.
	_ = v.RegisterValidation("roomtype", func(fl validator.FieldLevel) bool {
		return model.RoomType(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("specialty", func(fl validator.FieldLevel) bool {
		switch model.Specialty(fl.Field().String()) {
		case model.SpecialtyGeneralPractice, model.SpecialtyPediatrics,
			model.SpecialtyDermatology, model.SpecialtyCardiology, model.SpecialtyOrthopedics:
			return true
		}
		return false
	})

	return &Validator{v: v}
}

// Validate returns a single flattened error message suitable for a 400 body.
func (val *Validator) Validate(obj interface{}) error {
	err := val.v.Struct(obj)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email", fe.Field())
	case "max":
		return fmt.Sprintf("%s must not exceed %s characters", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "gtfield":
		return fmt.Sprintf("%s must be after %s", fe.Field(), fe.Param())
	case "roomtype":
		return fmt.Sprintf("%s must be one of consultation, minor_procedure, exam, recovery", fe.Field())
	case "specialty":
		return fmt.Sprintf("%s is not a known specialty", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
