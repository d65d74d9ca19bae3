package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	catalogdomain "github.com/smallbiznis/vendora/internal/catalog/domain"
	changerequestdomain "github.com/smallbiznis/vendora/internal/changerequest/domain"
	machinedomain "github.com/smallbiznis/vendora/internal/machine/domain"
	"github.com/smallbiznis/vendora/internal/pricing"
	"github.com/smallbiznis/vendora/internal/slotstorage"
	templatedomain "github.com/smallbiznis/vendora/internal/template/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrInternal):
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, changerequestdomain.ErrInvalidRequest):
		return true
	case isCatalogValidationError(err),
		isTemplateValidationError(err),
		isMachineValidationError(err),
		isPricingValidationError(err):
		return true
	default:
		return false
	}
}

// Conflicts are lifecycle violations: acting on the wrong state, approving a
// stale request, or re-deciding a terminal one.
func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, templatedomain.ErrNotDraft),
		errors.Is(err, templatedomain.ErrNotPublished),
		errors.Is(err, templatedomain.ErrAlreadyRetired),
		errors.Is(err, machinedomain.ErrTemplateNotPublished),
		errors.Is(err, machinedomain.ErrNotDraft),
		errors.Is(err, machinedomain.ErrNotActive),
		errors.Is(err, machinedomain.ErrIncompleteFill),
		errors.Is(err, machinedomain.ErrDecommissioned),
		errors.Is(err, changerequestdomain.ErrMachineNotActive),
		errors.Is(err, changerequestdomain.ErrStaleRequest),
		errors.Is(err, changerequestdomain.ErrAlreadyTerminal):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, catalogdomain.ErrNotFound),
		errors.Is(err, templatedomain.ErrNotFound),
		errors.Is(err, machinedomain.ErrNotFound),
		errors.Is(err, changerequestdomain.ErrNotFound),
		errors.Is(err, changerequestdomain.ErrProductNotPresent),
		errors.Is(err, slotstorage.ErrUnrecognizedShape),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isCatalogValidationError(err error) bool {
	switch err {
	case catalogdomain.ErrInvalidCode,
		catalogdomain.ErrInvalidName,
		catalogdomain.ErrInvalidProductType,
		catalogdomain.ErrInvalidBasePrice,
		catalogdomain.ErrInvalidID:
		return true
	default:
		return false
	}
}

func isTemplateValidationError(err error) bool {
	switch err {
	case templatedomain.ErrInvalidCode,
		templatedomain.ErrInvalidName,
		templatedomain.ErrInvalidSlots,
		templatedomain.ErrInvalidID:
		return true
	default:
		return false
	}
}

func isMachineValidationError(err error) bool {
	switch err {
	case machinedomain.ErrInvalidID,
		machinedomain.ErrInvalidCode,
		machinedomain.ErrInvalidName,
		machinedomain.ErrInvalidAssignments,
		machinedomain.ErrUnknownProduct,
		machinedomain.ErrProductTypeMismatch,
		changerequestdomain.ErrInvalidID,
		changerequestdomain.ErrUnknownProduct,
		changerequestdomain.ErrProductTypeMismatch:
		return true
	default:
		return false
	}
}

func isPricingValidationError(err error) bool {
	switch err {
	case pricing.ErrInvalidBasePrice,
		pricing.ErrInvalidCommissionRate,
		pricing.ErrInvalidPolicy:
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	default:
		return err.Error()
	}
}

func validationErrorField(code string) string {
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	if code == "invalid_request" {
		return "request"
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	default:
		return "invalid value"
	}
}

// classifyErrorForLog buckets an error for the request log without leaking
// its message.
func classifyErrorForLog(err error) (string, string) {
	switch {
	case err == nil:
		return "", ""
	case asValidationErrors(err) != nil, isValidationError(err):
		return "validation", validationErrorCode(err)
	case isConflictError(err):
		return "conflict", err.Error()
	case isNotFoundError(err):
		return "not_found", "not_found"
	default:
		return "internal", "internal_error"
	}
}
