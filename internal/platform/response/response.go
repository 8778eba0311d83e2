// Package response writes the JSON envelopes returned by every endpoint.
package response

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/chillcar/service-booking/internal/platform/domain"
)

func init() {
	// Report JSON field names rather than Go struct field names in validation failures.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
	}
}

// Success writes a 200 response with the given payload.
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

// Created writes a 201 response with the given payload.
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": data})
}

// Paginated writes a 200 response carrying one page of items.
func Paginated[T any](c *gin.Context, items []T, total int64, page, limit int) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    domain.NewPaginatedResult(items, total, page, limit),
	})
}

// BadRequest writes a 400 validation failure with a plain message.
func BadRequest(c *gin.Context, msg string) {
	fail(c, http.StatusBadRequest, domain.CodeValidation, msg)
}

// Unauthorized writes a 401 failure.
func Unauthorized(c *gin.Context, msg string) {
	fail(c, http.StatusUnauthorized, domain.CodeUnauthorized, msg)
}

// Forbidden writes a 403 failure.
func Forbidden(c *gin.Context, msg string) {
	fail(c, http.StatusForbidden, domain.CodeForbidden, msg)
}

// BindError writes a 400 for a request body gin could not bind. Validator failures are reported
// as an object keyed by JSON field name so clients can map them onto form fields.
func BindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fieldMessage(fe)
		}
		fail(c, http.StatusBadRequest, domain.CodeValidation, fields)
		return
	}
	fail(c, http.StatusBadRequest, domain.CodeValidation, err.Error())
}

// Error maps a domain error onto its HTTP status. Anything unclassified is a 500.
func Error(c *gin.Context, err error) {
	var (
		validationErr *domain.ValidationError
		ruleErr       *domain.BusinessRuleError
		stateErr      *domain.InvalidStateError
		unauthErr     *domain.UnauthorizedError
		forbiddenErr  *domain.ForbiddenError
		notFoundErr   *domain.NotFoundError
		conflictErr   *domain.ConflictError
	)

	switch {
	case errors.As(err, &validationErr):
		if len(validationErr.Fields) > 0 {
			fail(c, http.StatusBadRequest, domain.CodeValidation, validationErr.Fields)
			return
		}
		fail(c, http.StatusBadRequest, domain.CodeValidation, validationErr.Message)
	case errors.As(err, &ruleErr):
		fail(c, http.StatusBadRequest, domain.CodeBusinessRule, ruleErr.Message)
	case errors.As(err, &stateErr):
		fail(c, http.StatusBadRequest, domain.CodeInvalidState, stateErr.Error())
	case errors.As(err, &unauthErr):
		fail(c, http.StatusUnauthorized, domain.CodeUnauthorized, unauthErr.Message)
	case errors.As(err, &forbiddenErr):
		fail(c, http.StatusForbidden, domain.CodeForbidden, forbiddenErr.Message)
	case errors.As(err, &notFoundErr):
		fail(c, http.StatusNotFound, domain.CodeNotFound, notFoundErr.Error())
	case errors.As(err, &conflictErr):
		fail(c, http.StatusConflict, domain.CodeConflict, conflictErr.Message)
	default:
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, domain.CodeInternal, "internal server error")
	}
}

func fail(c *gin.Context, status int, code string, message any) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   code,
		"message": message,
	})
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_without":
		return "is required unless an alternative is supplied"
	case "excluded_with":
		return "cannot be combined with the alternative field"
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "is invalid"
	}
}
