// Package catalog declares the AYumeRNA operations, their metadata and the
// bearerAuth scheme guarding them.
package catalog

import (
	"net/http"
	"strconv"
	"time"

	ayumerna "github.com/Lovelumine/AYumeRNA"
	"github.com/Lovelumine/AYumeRNA/envelope"
	"github.com/Lovelumine/AYumeRNA/router"
	"github.com/Lovelumine/AYumeRNA/security"
	"github.com/gin-gonic/gin"
)

const (
	// BearerAuth names the bearer-token scheme every operation requires
	// unless it is declared public.
	BearerAuth = "bearerAuth"

	Title       = "AYumeRNA API"
	Version     = "1.0"
	Description = "“AY”代表“Aim Your”，结合“Yume”表示“梦想”，象征瞄准目标，生成具有实际功能的RNA序列。"
)

func Info() ayumerna.Info {
	return ayumerna.Info{
		Title:       Title,
		Version:     Version,
		Description: Description,
	}
}

func BearerScheme() *security.Bearer {
	return &security.Bearer{
		AuthName:    BearerAuth,
		Format:      security.DefaultBearerFormat,
		Description: `JWT access token obtained from /auth/login, sent as "Authorization: Bearer <token>".`,
	}
}

// GlobalRequirement is the document-level requirement inherited by every
// operation.
func GlobalRequirement() security.Requirement {
	return security.Require(BearerAuth)
}

// NewRegistry returns a registry holding the bearerAuth scheme.
func NewRegistry() (*security.Registry, error) {
	registry := security.NewRegistry()
	if err := registry.Register(BearerScheme()); err != nil {
		return nil, err
	}
	return registry, nil
}

// NewSwagger wires the registry, metadata and global requirement together.
func NewSwagger(info ayumerna.Info) (*ayumerna.Swagger, error) {
	registry, err := NewRegistry()
	if err != nil {
		return nil, err
	}
	return ayumerna.NewSwagger(registry, info, GlobalRequirement()), nil
}

// Services are the collaborators the operations delegate to.
type Services struct {
	Accounts Accounts
	Tasks    Tasks
}

// Mount registers every AYumeRNA operation on e.
func Mount(e *ayumerna.Engine, services Services) {
	e.GET("/hello", router.NewRouterX(hello,
		router.Public(),
		router.Tags("system"),
		router.Summary("Greeting"),
		router.Desc("Unauthenticated liveness probe."),
		router.OperationID("hello"),
		router.Resp(router.Response{
			"200": router.ResponseItem{Description: "service is up", Model: &MessageReply{}},
		}),
	))

	mountAccounts(e, services.Accounts)
	mountTasks(e, services.Tasks)
}

// MessageReply documents the envelope around a plain message.
type MessageReply struct {
	Code      int         `json:"code"`
	Data      MessageData `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

type MessageData struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

func hello(c *gin.Context) {
	envelope.Write(c, http.StatusOK, envelope.Message{Message: "Hello, AYumeRNA"})
}

// errorResponses documents the failure replies shared by operations.
func errorResponses(codes ...int) router.Response {
	descriptions := map[int]string{
		http.StatusBadRequest:          "invalid request parameters",
		http.StatusUnauthorized:        "missing or invalid bearer token",
		http.StatusNotFound:            "user not found",
		http.StatusNotImplemented:      "service not configured",
		http.StatusTooManyRequests:     "a task of this kind is already running",
		http.StatusInternalServerError: "internal server error",
	}
	resp := make(router.Response, len(codes))
	for _, code := range codes {
		resp[strconv.Itoa(code)] = router.ResponseItem{
			Description: descriptions[code],
			Model:       &MessageReply{},
		}
	}
	return resp
}
