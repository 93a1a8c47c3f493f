package catalog

import (
	"context"
	"errors"
	"net/http"
	"time"

	ayumerna "github.com/Lovelumine/AYumeRNA"
	"github.com/Lovelumine/AYumeRNA/envelope"
	"github.com/Lovelumine/AYumeRNA/router"
	"github.com/gin-gonic/gin"
)

var (
	ErrUserExists       = errors.New("username or email already registered")
	ErrUserNotFound     = errors.New("user not found")
	ErrBadCredentials   = errors.New("wrong password")
	ErrAccountsDisabled = errors.New("account service is not configured")
)

// Accounts registers users and issues their bearer tokens. Credential
// storage and token issuance live behind this interface.
type Accounts interface {
	Register(ctx context.Context, req RegisterRequest) (*User, error)
	Login(ctx context.Context, req LoginRequest) (token string, err error)
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required" description:"user name"`
	Password string `json:"password" validate:"required" description:"password"`
	Email    string `json:"email" validate:"required,email" description:"email address"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required" description:"user name"`
	Password string `json:"password" validate:"required" description:"password"`
}

type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

type LoginResponse struct {
	Token string `json:"token" description:"access token"`
}

type UserReply struct {
	Code      int       `json:"code"`
	Data      User      `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

type LoginReply struct {
	Code      int           `json:"code"`
	Data      LoginResponse `json:"data"`
	Timestamp time.Time     `json:"timestamp"`
}

func mountAccounts(e *ayumerna.Engine, accounts Accounts) {
	if accounts == nil {
		accounts = disabledAccounts{}
	}
	group := e.Group("/auth", ayumerna.Tags("auth"), ayumerna.Public())

	group.POST("/register", router.NewRouter(register(accounts),
		router.Summary("Register a user"),
		router.Desc("Creates an account that can then log in."),
		router.OperationID("register"),
		router.Resp(router.Response{
			"200": router.ResponseItem{Description: "registered", Model: &UserReply{}},
		}),
		router.Resp(errorResponses(http.StatusBadRequest, http.StatusInternalServerError)),
	))

	group.POST("/login", router.NewRouter(login(accounts),
		router.Summary("Log in"),
		router.Desc("Exchanges a username and password for a bearer token."),
		router.OperationID("login"),
		router.Resp(router.Response{
			"200": router.ResponseItem{Description: "logged in", Model: &LoginReply{}},
		}),
		router.Resp(errorResponses(http.StatusUnauthorized, http.StatusNotFound, http.StatusInternalServerError)),
	))
}

func register(accounts Accounts) func(*gin.Context, RegisterRequest) {
	return func(c *gin.Context, req RegisterRequest) {
		user, err := accounts.Register(c.Request.Context(), req)
		switch {
		case err == nil:
			envelope.Write(c, http.StatusOK, user)
		case errors.Is(err, ErrUserExists):
			envelope.Abort(c, http.StatusBadRequest, "registration failed", err)
		default:
			accountFailure(c, err)
		}
	}
}

func login(accounts Accounts) func(*gin.Context, LoginRequest) {
	return func(c *gin.Context, req LoginRequest) {
		token, err := accounts.Login(c.Request.Context(), req)
		switch {
		case err == nil:
			envelope.Write(c, http.StatusOK, LoginResponse{Token: token})
		case errors.Is(err, ErrUserNotFound):
			envelope.Abort(c, http.StatusNotFound, "user does not exist", nil)
		case errors.Is(err, ErrBadCredentials):
			envelope.Abort(c, http.StatusUnauthorized, "wrong password", nil)
		default:
			accountFailure(c, err)
		}
	}
}

func accountFailure(c *gin.Context, err error) {
	if errors.Is(err, ErrAccountsDisabled) {
		envelope.Abort(c, http.StatusNotImplemented, "account service unavailable", nil)
		return
	}
	_ = c.Error(err)
	envelope.Abort(c, http.StatusInternalServerError, "internal server error", nil)
}

type disabledAccounts struct{}

func (disabledAccounts) Register(context.Context, RegisterRequest) (*User, error) {
	return nil, ErrAccountsDisabled
}

func (disabledAccounts) Login(context.Context, LoginRequest) (string, error) {
	return "", ErrAccountsDisabled
}
