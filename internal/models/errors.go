package models

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error codes surfaced by the ledger and its collaborators.
const (
	CodeInsufficientReputation = "INSUFFICIENT_REPUTATION"
	CodeInvalidInput           = "INVALID_INPUT"
	CodePostNotFound           = "POST_NOT_FOUND"
	CodeAlreadyVoted           = "ALREADY_VOTED"
	CodeSelfFollow             = "SELF_FOLLOW"
	CodeOracleUnavailable      = "ORACLE_UNAVAILABLE"
	CodeContentUnavailable     = "CONTENT_UNAVAILABLE"
	CodeNotFound               = "NOT_FOUND"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeInternal               = "INTERNAL_ERROR"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Predefined error constructors
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewPostNotFoundError(postID uint64) *AppError {
	return &AppError{
		Code:    CodePostNotFound,
		Message: fmt.Sprintf("Post with ID %d not found", postID),
	}
}

func NewInvalidInputError(message string) *AppError {
	return &AppError{
		Code:    CodeInvalidInput,
		Message: message,
	}
}

func NewInsufficientReputationError(account string, have, need int64) *AppError {
	return &AppError{
		Code:    CodeInsufficientReputation,
		Message: fmt.Sprintf("Account %s has reputation %d, %d required to post", account, have, need),
	}
}

func NewAlreadyVotedError(postID uint64, voter string) *AppError {
	return &AppError{
		Code:    CodeAlreadyVoted,
		Message: fmt.Sprintf("Account %s already voted this way on post %d", voter, postID),
	}
}

func NewSelfFollowError(account string) *AppError {
	return &AppError{
		Code:    CodeSelfFollow,
		Message: fmt.Sprintf("Account %s cannot follow itself", account),
	}
}

func NewOracleUnavailableError(err error) *AppError {
	return &AppError{
		Code:    CodeOracleUnavailable,
		Message: "Reputation oracle unavailable",
		Err:     err,
	}
}

func NewContentUnavailableError(err error) *AppError {
	return &AppError{
		Code:    CodeContentUnavailable,
		Message: "Content store unavailable",
		Err:     err,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// ErrorCode returns the AppError code carried by err, or "" if there is none.
func ErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// HasCode reports whether err carries the given AppError code.
func HasCode(err error, code string) bool {
	return err != nil && ErrorCode(err) == code
}

// RespondWithError creates a standardized error response
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var response ErrorResponse

	var appErr *AppError
	if errors.As(err, &appErr) {
		response = ErrorResponse{
			Error: appErr.Message,
			Code:  appErr.Code,
		}
		if appErr.Err != nil && appErr.Code != CodeInternal {
			response.Details = appErr.Err.Error()
		}
	} else {
		response = ErrorResponse{
			Error: err.Error(),
		}
	}

	return c.Status(status).JSON(response)
}
