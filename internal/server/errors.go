package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opencrmhq/opencrm/internal/access"
	accountdomain "github.com/opencrmhq/opencrm/internal/account/domain"
	authdomain "github.com/opencrmhq/opencrm/internal/auth/domain"
	"github.com/opencrmhq/opencrm/internal/authorization"
	boarddomain "github.com/opencrmhq/opencrm/internal/board/domain"
	casedomain "github.com/opencrmhq/opencrm/internal/caserecord/domain"
	contactdomain "github.com/opencrmhq/opencrm/internal/contact/domain"
	invoicedomain "github.com/opencrmhq/opencrm/internal/invoice/domain"
	leaddomain "github.com/opencrmhq/opencrm/internal/lead/domain"
	opportunitydomain "github.com/opencrmhq/opencrm/internal/opportunity/domain"
	orderdomain "github.com/opencrmhq/opencrm/internal/order/domain"
	orgdomain "github.com/opencrmhq/opencrm/internal/organization/domain"
	taskdomain "github.com/opencrmhq/opencrm/internal/task/domain"
	teamdomain "github.com/opencrmhq/opencrm/internal/team/domain"
	"github.com/opencrmhq/opencrm/pkg/db"
	"gorm.io/gorm"
)

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrMissingOrg     = errors.New("missing_org_context")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrRateLimited    = errors.New("rate_limited")
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

// ErrorHandlingMiddleware converts errors recorded on the gin context
// into one JSON error body. Handlers never write error responses
// directly; they record the error and abort.
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

func mapError(err error) (int, errorPayload) {
	switch {
	case isUnauthorizedErr(err):
		return http.StatusUnauthorized, errorPayload{Type: "unauthorized", Message: err.Error()}
	case isForbiddenErr(err):
		return http.StatusForbidden, errorPayload{Type: "forbidden", Message: err.Error()}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{Type: "rate_limited", Message: err.Error()}
	case isNotFoundErr(err):
		return http.StatusNotFound, errorPayload{Type: "not_found", Message: err.Error()}
	case isConflictErr(err):
		return http.StatusConflict, errorPayload{Type: "conflict", Message: err.Error()}
	case isValidationErr(err):
		return http.StatusBadRequest, errorPayload{Type: "validation_error", Message: err.Error()}
	}
	return http.StatusInternalServerError, errorPayload{Type: "internal_error", Message: "internal server error"}
}

func isUnauthorizedErr(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, authdomain.ErrInvalidCredentials) ||
		errors.Is(err, authdomain.ErrSessionNotFound) ||
		errors.Is(err, authdomain.ErrSessionExpired) ||
		errors.Is(err, authdomain.ErrSessionRevoked) ||
		errors.Is(err, authdomain.ErrInvalidSession)
}

// isForbiddenErr covers every denial layer: policy engine, object
// predicates, membership resolution, board membership, and writes the
// database itself rejected through a row security policy.
func isForbiddenErr(err error) bool {
	return errors.Is(err, authorization.ErrForbidden) ||
		errors.Is(err, access.ErrDenied) ||
		errors.Is(err, orgdomain.ErrProfileNotFound) ||
		errors.Is(err, orgdomain.ErrProfileInactive) ||
		errors.Is(err, boarddomain.ErrNotMember) ||
		db.IsRLSDeniedErr(err)
}

func isNotFoundErr(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound) ||
		errors.Is(err, authdomain.ErrUserNotFound) ||
		errors.Is(err, orgdomain.ErrNotFound) ||
		errors.Is(err, leaddomain.ErrNotFound) ||
		errors.Is(err, contactdomain.ErrNotFound) ||
		errors.Is(err, accountdomain.ErrNotFound) ||
		errors.Is(err, opportunitydomain.ErrNotFound) ||
		errors.Is(err, casedomain.ErrNotFound) ||
		errors.Is(err, taskdomain.ErrNotFound) ||
		errors.Is(err, teamdomain.ErrNotFound) ||
		errors.Is(err, invoicedomain.ErrNotFound) ||
		errors.Is(err, orderdomain.ErrNotFound) ||
		errors.Is(err, boarddomain.ErrNotFound) ||
		errors.Is(err, boarddomain.ErrColumnNotFound) ||
		errors.Is(err, boarddomain.ErrTaskNotFound)
}

func isConflictErr(err error) bool {
	return errors.Is(err, authdomain.ErrUserExists) ||
		errors.Is(err, orgdomain.ErrDuplicateMembership) ||
		errors.Is(err, leaddomain.ErrAlreadyConverted) ||
		errors.Is(err, invoicedomain.ErrAlreadyFinalized) ||
		errors.Is(err, invoicedomain.ErrNotDraft) ||
		errors.Is(err, invoicedomain.ErrNotFinalized) ||
		errors.Is(err, boarddomain.ErrDuplicateMember) ||
		db.IsDuplicateKeyErr(err)
}

func isValidationErr(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrMissingOrg) ||
		errors.Is(err, orgdomain.ErrInvalidName) ||
		errors.Is(err, orgdomain.ErrInvalidRole) ||
		errors.Is(err, leaddomain.ErrInvalidName) ||
		errors.Is(err, leaddomain.ErrInvalidStatus) ||
		errors.Is(err, contactdomain.ErrInvalidEmail) ||
		errors.Is(err, accountdomain.ErrInvalidName) ||
		errors.Is(err, accountdomain.ErrInvalidStatus) ||
		errors.Is(err, opportunitydomain.ErrInvalidName) ||
		errors.Is(err, opportunitydomain.ErrInvalidStage) ||
		errors.Is(err, casedomain.ErrInvalidName) ||
		errors.Is(err, casedomain.ErrInvalidStatus) ||
		errors.Is(err, casedomain.ErrInvalidPriority) ||
		errors.Is(err, taskdomain.ErrInvalidTitle) ||
		errors.Is(err, taskdomain.ErrInvalidStatus) ||
		errors.Is(err, taskdomain.ErrInvalidPriority) ||
		errors.Is(err, teamdomain.ErrInvalidName) ||
		errors.Is(err, invoicedomain.ErrInvalidTitle) ||
		errors.Is(err, invoicedomain.ErrNoLineItems) ||
		errors.Is(err, orderdomain.ErrInvalidTitle) ||
		errors.Is(err, orderdomain.ErrInvalidStatus) ||
		errors.Is(err, orderdomain.ErrNoLineItems) ||
		errors.Is(err, boarddomain.ErrInvalidName)
}

// classifyErrorForLog feeds the request logger an error type and code
// without leaking internals into the log stream.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	switch {
	case status >= http.StatusInternalServerError:
		return "server_error", payload.Type
	case status >= http.StatusBadRequest:
		return "client_error", payload.Type
	}
	return "none", ""
}
