package auth

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// DefaultRoutePrefix is where the user routes are usually mounted.
const DefaultRoutePrefix = "/api/users"

// AvatarFormField is the multipart field carrying the avatar upload.
const AvatarFormField = "avatar"

// uploads above this size are spooled to disk while the form is parsed
const maxUploadMemory = 1 << 20

// ErrInvalidRequestBody is returned when a payload cannot be decoded.
var ErrInvalidRequestBody = goerrors.New("Invalid request body", goerrors.CategoryBadInput).
	WithTextCode(TextCodeRequestBodyInvalid).
	WithCode(goerrors.CodeBadRequest)

// RegisterAuthRoutes mounts the user routes on app. Errors from any of them
// are rendered as {"message": "..."}.
func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) *AuthController {
	controller := NewAuthController(opts...)

	routes := app.Group("")
	routes.Use(ErrorMiddleware(controller.Logger))

	protected := controller.Auther.ProtectedRoute()

	routes.Post(controller.Routes.Signup, controller.Signup, controller.limited()...).
		SetName("users.signup")
	routes.Get(controller.Routes.Verify+"/:verificationToken", controller.Verify).
		SetName("users.verify")
	routes.Post(controller.Routes.Verify, controller.ResendVerification, controller.limited()...).
		SetName("users.verify.resend")
	routes.Post(controller.Routes.Signin, controller.Signin, controller.limited()...).
		SetName("users.signin")

	routes.Get(controller.Routes.Current, controller.Current, protected).
		SetName("users.current")
	routes.Post(controller.Routes.Signout, controller.Signout, protected).
		SetName("users.signout")
	for i, route := range controller.Routes.Avatar {
		r := routes.Patch(route, controller.UpdateAvatar, protected)
		if i == 0 {
			r.SetName("users.avatar")
		}
	}

	return controller
}

type AuthControllerRoutes struct {
	Signup  string
	Verify  string
	Signin  string
	Current string
	Signout string
	Avatar  []string
}

type AuthController struct {
	Debug   bool
	Logger  Logger
	Service *AccountService
	Auther  *RouteAuthenticator
	Routes  *AuthControllerRoutes
	// TempDir receives avatar uploads before processing.
	TempDir string
	// Limiter, when set, runs in front of signup, resend and signin.
	Limiter router.MiddlewareFunc

	signup       command.Commander[SignupMessage]
	verify       command.Commander[VerifyMessage]
	resend       command.Commander[ResendVerificationMessage]
	signin       command.Commander[SigninMessage]
	signout      command.Commander[SignoutMessage]
	updateAvatar command.Commander[UpdateAvatarMessage]
}

type AuthControllerOption func(*AuthController) *AuthController

func WithAccountService(service *AccountService) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Service = service
		return c
	}
}

func WithRouteAuthenticator(auther *RouteAuthenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = auther
		return c
	}
}

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Logger = normalizeLogger(logger)
		return c
	}
}

func WithTempDir(dir string) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if dir != "" {
			c.TempDir = dir
		}
		return c
	}
}

func WithCredentialLimiter(limiter router.MiddlewareFunc) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Limiter = limiter
		return c
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:  defLogger{},
		TempDir: os.TempDir(),
		Routes: &AuthControllerRoutes{
			Signup:  "/signup",
			Verify:  "/verify",
			Signin:  "/signin",
			Current: "/current",
			Signout: "/signout",
			Avatar:  []string{"/avatars", "/avatar"},
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Service == nil {
		panic("Missing AccountService in auth controller...")
	}

	if c.Auther == nil {
		c.Auther = NewHTTPAuthenticator(c.Service, c.Service.config).WithLogger(c.Logger)
	}

	c.signup = NewSignupHandler(c.Service)
	c.verify = NewVerifyHandler(c.Service)
	c.resend = NewResendVerificationHandler(c.Service)
	c.signin = NewSigninHandler(c.Service)
	c.signout = NewSignoutHandler(c.Service)
	c.updateAvatar = NewUpdateAvatarHandler(c.Service)

	return c
}

func (a *AuthController) limited() []router.MiddlewareFunc {
	if a.Limiter == nil {
		return nil
	}
	return []router.MiddlewareFunc{a.Limiter}
}

// SignupRequest payload. Fields other than the known ones are kept as
// profile metadata.
type SignupRequest struct {
	Email        string `form:"email" json:"email"`
	Password     string `form:"password" json:"password"`
	Subscription string `form:"subscription" json:"subscription"`
}

var signupKnownFields = map[string]struct{}{
	"email":        {},
	"password":     {},
	"subscription": {},
}

func (a *AuthController) Signup(c router.Context) error {
	payload := new(SignupRequest)
	if err := c.Bind(payload); err != nil {
		return ErrInvalidRequestBody
	}

	extra, err := signupExtra(c)
	if err != nil {
		return ErrInvalidRequestBody
	}

	var res *SignupResponse
	err = a.signup.Execute(c.Context(), SignupMessage{
		Email:        payload.Email,
		Password:     payload.Password,
		Subscription: payload.Subscription,
		Extra:        extra,
		OnResponse:   func(r *SignupResponse) { res = r },
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, res)
}

func signupExtra(c router.Context) (map[string]any, error) {
	if !strings.Contains(strings.ToLower(c.Header(router.HeaderContentType)), "application/json") {
		return nil, nil
	}

	raw := map[string]any{}
	if err := json.Unmarshal(c.Body(), &raw); err != nil {
		return nil, err
	}

	extra := map[string]any{}
	for k, v := range raw {
		if _, known := signupKnownFields[k]; !known {
			extra[k] = v
		}
	}

	if len(extra) == 0 {
		return nil, nil
	}
	return extra, nil
}

func (a *AuthController) Verify(c router.Context) error {
	var res *MessageResponse
	err := a.verify.Execute(c.Context(), VerifyMessage{
		Token:      c.Param("verificationToken", ""),
		OnResponse: func(r *MessageResponse) { res = r },
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// ResendVerificationRequest payload
type ResendVerificationRequest struct {
	Email string `form:"email" json:"email"`
}

func (a *AuthController) ResendVerification(c router.Context) error {
	payload := new(ResendVerificationRequest)
	if err := c.Bind(payload); err != nil {
		return ErrInvalidRequestBody
	}

	var res *MessageResponse
	err := a.resend.Execute(c.Context(), ResendVerificationMessage{
		Email:      payload.Email,
		OnResponse: func(r *MessageResponse) { res = r },
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// SigninRequest payload
type SigninRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

func (a *AuthController) Signin(c router.Context) error {
	payload := new(SigninRequest)
	if err := c.Bind(payload); err != nil {
		return ErrInvalidRequestBody
	}

	var res *SigninResponse
	err := a.signin.Execute(c.Context(), SigninMessage{
		Email:      payload.Email,
		Password:   payload.Password,
		OnResponse: func(r *SigninResponse) { res = r },
	})
	if err != nil {
		return err
	}

	if a.Debug {
		a.Logger.Debug("signin", "email", res.User.Email)
	}

	return c.JSON(http.StatusOK, res)
}

func (a *AuthController) Current(c router.Context) error {
	user, _ := UserFromRouter(c, a.Auther.ContextKey())
	res, err := a.Service.Current(c.Context(), user)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (a *AuthController) Signout(c router.Context) error {
	user, _ := UserFromRouter(c, a.Auther.ContextKey())
	if err := a.signout.Execute(c.Context(), SignoutMessage{User: user}); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *AuthController) UpdateAvatar(c router.Context) error {
	user, _ := UserFromRouter(c, a.Auther.ContextKey())
	if user == nil {
		return ErrNotAuthorized
	}

	upload, err := a.saveUpload(c)
	if err != nil {
		return err
	}

	var res *AvatarResponse
	err = a.updateAvatar.Execute(c.Context(), UpdateAvatarMessage{
		User:       user,
		Upload:     upload,
		OnResponse: func(r *AvatarResponse) { res = r },
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, res)
}

// saveUpload copies the avatar part of a multipart body into TempDir.
func (a *AuthController) saveUpload(c router.Context) (AvatarUpload, error) {
	mediaType, params, err := mime.ParseMediaType(c.Header(router.HeaderContentType))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		return AvatarUpload{}, ErrAvatarRequired
	}

	form, err := multipart.NewReader(bytes.NewReader(c.Body()), params["boundary"]).ReadForm(maxUploadMemory)
	if err != nil {
		return AvatarUpload{}, ErrAvatarRequired
	}
	defer form.RemoveAll()

	files := form.File[AvatarFormField]
	if len(files) == 0 || files[0] == nil {
		return AvatarUpload{}, ErrAvatarRequired
	}
	file := files[0]

	src, err := file.Open()
	if err != nil {
		return AvatarUpload{}, NewProcessingError(err, "failed to read upload")
	}
	defer src.Close()

	tmpPath := filepath.Join(a.TempDir, uuid.NewString()+strings.ToLower(filepath.Ext(file.Filename)))
	dst, err := os.Create(tmpPath)
	if err != nil {
		return AvatarUpload{}, NewProcessingError(err, "failed to save upload")
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(tmpPath)
		return AvatarUpload{}, NewProcessingError(err, "failed to save upload")
	}
	if err := dst.Close(); err != nil {
		os.Remove(tmpPath)
		return AvatarUpload{}, NewProcessingError(err, "failed to save upload")
	}

	return AvatarUpload{Path: tmpPath, Filename: file.Filename}, nil
}
