package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"hostel/pkg/logger"
	"hostel/pkg/model"

	"github.com/go-playground/validator/v10"
)

// Registration numbers look like "BCS/0042/2023": a course code, a serial
// and an intake year separated by slashes.
var regNoRegex = regexp.MustCompile(`^[A-Z]{2,6}/\d{3,6}/\d{4}$`)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type StudentValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewStudentValidator(log *logger.Logger) *StudentValidator {
	v := validator.New()

	if err := v.RegisterValidation("reg_no", validateRegNo); err != nil {
		log.Fatal("Failed to register 'reg_no' validator", "error", err)
	}

	return &StudentValidator{
		validate: v,
		logger:   log,
	}
}

func validateRegNo(fl validator.FieldLevel) bool {
	return regNoRegex.MatchString(fl.Field().String())
}

func (v *StudentValidator) Validate(student *model.Student) error {
	if err := v.validate.Struct(student); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *StudentValidator) ValidateProfileUpdate(update *model.StudentProfileUpdate) error {
	if err := v.validate.Struct(update); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "email":
			message = fmt.Sprintf("%s must be a valid email address", err.Field())
		case "e164":
			message = fmt.Sprintf("%s must be in E.164 format (e.g., +254712345678)", err.Field())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		case "reg_no":
			message = fmt.Sprintf("%s must look like BCS/0042/2023", err.Field())
		case "mongodb":
			message = fmt.Sprintf("%s must be a valid MongoDB ObjectID", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
