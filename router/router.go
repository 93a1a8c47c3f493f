package router

import (
	"github.com/Lovelumine/AYumeRNA/security"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gin-gonic/gin"
)

type Request struct {
	Description string
	Model       any
	Headers     openapi3.Headers
}

type Response map[string]ResponseItem

type ResponseItem struct {
	Description string
	Model       any
	Headers     openapi3.Headers
}

type Enum map[string]EnumItem

type EnumItem struct {
	Name        string
	Kind        string // `string` or `integer`
	Values      []any
	Description string
}

// Router describes one operation: its handler chain and the metadata the
// description document is built from.
type Router struct {
	// middlewares
	Handlers            []gin.HandlerFunc
	Path                string
	Method              string
	Summary             string
	Description         string
	OperationID         string
	Deprecated          bool
	Exclude             bool
	RequestContentType  string
	ResponseContentType string
	Tags                []string

	// handler
	API      gin.HandlerFunc
	Model    any
	Response Response
	Request  Request
	Enum     Enum

	// Security overrides the document-level requirement. nil inherits it,
	// an empty non-nil slice marks the operation public.
	Security []security.Requirement
}

type Option func(router *Router)

func Req(request Request) Option {
	return func(router *Router) {
		router.Request = request
	}
}

func Resp(response Response) Option {
	return func(router *Router) {
		for code, item := range response {
			router.Response[code] = item
		}
	}
}

// Security adds requirement alternatives to the operation, replacing the
// inherited global requirement.
func Security(reqs ...security.Requirement) Option {
	return func(router *Router) {
		router.Security = append(Overrides(router.Security), reqs...)
	}
}

// Public exempts the operation from the global requirement.
func Public() Option {
	return func(router *Router) {
		router.Security = []security.Requirement{}
	}
}

// Overrides turns a nil requirement list into an empty override so that
// appending to it keeps the override semantics.
func Overrides(reqs []security.Requirement) []security.Requirement {
	if reqs == nil {
		return []security.Requirement{}
	}
	return reqs
}

func Enums(enums Enum) Option {
	return func(router *Router) {
		router.Enum = enums
	}
}

func Tags(tags ...string) Option {
	return func(router *Router) {
		router.Tags = append(router.Tags, tags...)
	}
}

func Summary(summary string) Option {
	return func(router *Router) {
		router.Summary = summary
	}
}

func Desc(desc string) Option {
	return func(router *Router) {
		router.Description = desc
	}
}

func OperationID(ID string) Option {
	return func(router *Router) {
		router.OperationID = ID
	}
}

func ContentType(request, response string) Option {
	return func(router *Router) {
		router.RequestContentType = request
		router.ResponseContentType = response
	}
}

func Deprecated() Option {
	return func(router *Router) {
		router.Deprecated = true
	}
}

func Exclude() Option {
	return func(router *Router) {
		router.Exclude = true
	}
}

func NewRouterX(f gin.HandlerFunc, options ...Option) *Router {
	r := &Router{
		Handlers: make([]gin.HandlerFunc, 0),
		API:      f,
		Response: make(Response),
	}

	for _, option := range options {
		option(r)
	}

	return r
}

// NewRouter binds every request into a fresh T before calling f.
func NewRouter[T any, F func(c *gin.Context, req T)](f F, options ...Option) *Router {
	var model T
	router := &Router{
		Response: make(Response),
		API: func(c *gin.Context) {
			var req T
			if !bindRequest(c, &req) {
				return
			}
			f(c, req)
		},
		Model: model,
	}

	for _, option := range options {
		option(router)
	}

	return router
}

func (router *Router) GetHandlers() []gin.HandlerFunc {
	handlers := make([]gin.HandlerFunc, 0, len(router.Handlers)+1)
	handlers = append(handlers, router.Handlers...)
	handlers = append(handlers, router.API)
	return handlers
}

// Inherits reports whether the operation falls back to the global requirement.
func (router *Router) Inherits() bool {
	return router.Security == nil
}
