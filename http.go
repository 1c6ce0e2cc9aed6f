package auth

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

const (
	notFoundMessage    = "Not found"
	serverErrorMessage = "Server error"
)

// RouteErrorHandler renders an error for a router request.
type RouteErrorHandler func(c router.Context, err error) error

// RouteAuthenticator guards routes with bearer session tokens.
type RouteAuthenticator struct {
	service      *AccountService
	cfg          Config
	Logger       Logger
	ErrorHandler RouteErrorHandler
}

func NewHTTPAuthenticator(service *AccountService, cfg Config) *RouteAuthenticator {
	a := &RouteAuthenticator{
		service: service,
		cfg:     cfg,
		Logger:  defLogger{},
	}
	a.ErrorHandler = a.defaultErrHandler
	return a
}

func (a *RouteAuthenticator) WithLogger(logger Logger) *RouteAuthenticator {
	a.Logger = normalizeLogger(logger)
	return a
}

// ContextKey is the request store key the user is stored under.
func (a *RouteAuthenticator) ContextKey() string {
	if key := strings.TrimSpace(a.cfg.GetContextKey()); key != "" {
		return key
	}
	return DefaultContextKey
}

// ProtectedRoute rejects requests without a live session and exposes the
// user to downstream handlers through the request store and context.
func (a *RouteAuthenticator) ProtectedRoute() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			user, err := a.service.Authenticate(c.Context(), c.Header(router.HeaderAuthorization))
			if err != nil {
				return a.ErrorHandler(c, err)
			}

			c.Set(a.ContextKey(), user)
			c.SetContext(WithContext(c.Context(), user))

			return next(c)
		}
	}
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	return writeError(c, err, a.Logger)
}

// ErrorMiddleware renders errors returned further down the chain as
// {"message": "..."}.
func ErrorMiddleware(logger Logger) router.MiddlewareFunc {
	logger = normalizeLogger(logger)
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			if err := next(c); err != nil {
				return writeError(c, err, logger)
			}
			return nil
		}
	}
}

// ErrorHandler is a fiber.ErrorHandler for failures raised outside the
// router chain, such as unmatched routes and oversized bodies. It renders
// the same body as ErrorMiddleware.
func ErrorHandler(logger Logger) fiber.ErrorHandler {
	logger = normalizeLogger(logger)
	return func(c *fiber.Ctx, err error) error {
		return writeError(router.NewFiberContext(c), err, logger)
	}
}

func writeError(c router.Context, err error, logger Logger) error {
	status, message := ErrorResponse(err)

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		attrs := []any{
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"category", richErr.Category,
			"text_code", richErr.TextCode,
			"error", richErr.Error(),
		}
		if status >= http.StatusInternalServerError {
			logger.Error("request failed", attrs...)
		} else {
			logger.Debug("request rejected", attrs...)
		}
	} else if status >= http.StatusInternalServerError {
		logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}

	return c.JSON(status, MessageResponse{Message: message})
}

// ErrorResponse maps err to the status code and public message sent to clients.
func ErrorResponse(err error) (int, string) {
	var fiberErr *fiber.Error
	if goerrors.As(err, &fiberErr) {
		switch {
		case fiberErr.Code == fiber.StatusNotFound:
			return fiber.StatusNotFound, notFoundMessage
		case fiberErr.Code >= fiber.StatusInternalServerError:
			return fiberErr.Code, serverErrorMessage
		default:
			return fiberErr.Code, fiberErr.Message
		}
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		status := HTTPStatus(richErr)
		if status >= http.StatusInternalServerError {
			return status, serverErrorMessage
		}
		return status, richErr.Message
	}

	return http.StatusInternalServerError, serverErrorMessage
}
