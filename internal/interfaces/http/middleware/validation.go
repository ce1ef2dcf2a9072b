package middleware

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/flowstate/agency/internal/domain/subscription"
	"github.com/flowstate/agency/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var setupValidatorOnce sync.Once

// SetupValidator configures gin's validator with JSON field names and the
// "plan" and "resource_kind" tags. It is safe to call more than once.
func SetupValidator() {
	setupValidatorOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, tag := range []string{"json", "uri", "form"} {
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
		_ = v.RegisterValidation("plan", func(fl validator.FieldLevel) bool {
			_, err := subscription.ParsePlan(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("resource_kind", func(fl validator.FieldLevel) bool {
			_, err := subscription.ParseResourceKind(fl.Field().String())
			return err == nil
		})
	})
}

// FormatValidationErrors turns binding errors into field details. Malformed
// bodies that never reached the validator yield no details.
func FormatValidationErrors(err error) []dto.ValidationDetail {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	details := make([]dto.ValidationDetail, 0, len(verrs))
	for _, e := range verrs {
		details = append(details, dto.ValidationDetail{
			Field:   e.Field(),
			Message: getValidationMessage(e),
		})
	}
	return details
}

// HandleValidationError writes a 400 validation response. A rejected plan or
// resource kind keeps its domain error code.
func HandleValidationError(c *gin.Context, err error) {
	message := "Request validation failed"
	details := FormatValidationErrors(err)
	if details == nil {
		message = "Malformed request body"
	}
	c.AbortWithStatusJSON(http.StatusBadRequest,
		dto.NewValidationErrorResponseWithCode(validationCode(err), message, GetRequestID(c), details))
}

func validationCode(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, e := range verrs {
			switch e.Tag() {
			case "plan":
				return dto.ErrCodeInvalidPlan
			case "resource_kind":
				return dto.ErrCodeUnknownResourceKind
			}
		}
	}
	return dto.ErrCodeValidation
}

func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "plan":
		return "Must be one of: " + strings.Join(planNames(), ", ")
	case "resource_kind":
		return "Must be one of: " + strings.Join(resourceKindNames(), ", ")
	case "uuid":
		return "Invalid UUID format"
	case "max":
		if e.Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		return "Must be at most " + e.Param()
	default:
		return "Invalid value"
	}
}

func planNames() []string {
	plans := subscription.AllPlans()
	names := make([]string, len(plans))
	for i, p := range plans {
		names[i] = string(p)
	}
	return names
}

func resourceKindNames() []string {
	kinds := subscription.AllResourceKinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return names
}
