package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"ragdocs/internal/domain"
)

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
}

// Error implements the Error interface
func (e Error) Error() string {
	return e.Message
}

func NewError(code int, msg string) Error {
	return Error{Code: code, Message: msg}
}

func ErrBadRequest() Error {
	return NewError(fiber.StatusBadRequest, "invalid JSON request")
}

type ValidationError struct {
	Status int               `json:"status"`
	Errors map[string]string `json:"errors"`
}

func (e ValidationError) Error() string {
	return "validation failed"
}

func NewValidationError(errs map[string]string) ValidationError {
	return ValidationError{Status: fiber.StatusUnprocessableEntity, Errors: errs}
}

// statusFor maps pipeline error kinds to HTTP status codes.
func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, domain.ErrInvalidQuery):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrEmbeddingService), errors.Is(err, domain.ErrGenerationService):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var apiErr Error
	if errors.As(err, &apiErr) {
		return c.Status(apiErr.Code).JSON(apiErr)
	}
	var valErr ValidationError
	if errors.As(err, &valErr) {
		return c.Status(valErr.Status).JSON(valErr)
	}
	apiErr = NewError(statusFor(err), err.Error())
	if apiErr.Code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", zapRequest(c, apiErr.Code, err)...)
	}
	return c.Status(apiErr.Code).JSON(apiErr)
}
