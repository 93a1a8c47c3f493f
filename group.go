package ayumerna

import (
	"net/http"

	"github.com/Lovelumine/AYumeRNA/router"
	"github.com/Lovelumine/AYumeRNA/security"
	"github.com/gin-gonic/gin"
)

type Group struct {
	Engine *Engine
	Path   string
	Tags   []string

	// middlewares
	Handlers []gin.HandlerFunc

	// Security is applied to every route of the group that does not set its
	// own; nil leaves them inheriting the global requirement.
	Security []security.Requirement
}

type GroupOption func(group *Group)

func Handlers(handlers ...gin.HandlerFunc) GroupOption {
	return func(g *Group) {
		g.Handlers = append(g.Handlers, handlers...)
	}
}

func Tags(tags ...string) GroupOption {
	return func(g *Group) {
		g.Tags = append(g.Tags, tags...)
	}
}

func Security(reqs ...security.Requirement) GroupOption {
	return func(g *Group) {
		g.Security = append(router.Overrides(g.Security), reqs...)
	}
}

// Public exempts every route of the group from the global requirement.
func Public() GroupOption {
	return func(g *Group) {
		g.Security = []security.Requirement{}
	}
}

// Use adds middleware to routes registered on the group afterwards.
func (g *Group) Use(middleware ...gin.HandlerFunc) {
	g.Handlers = append(g.Handlers, middleware...)
}

func (g *Group) handle(method, path string, r *router.Router) {
	r.Handlers = append(append([]gin.HandlerFunc(nil), g.Handlers...), r.Handlers...)
	r.Tags = append(r.Tags, g.Tags...)
	if r.Inherits() && g.Security != nil {
		r.Security = security.Clone(g.Security)
	}
	g.Engine.handle(g.Path+path, method, r)
}

func (g *Group) GET(path string, r *router.Router) {
	g.handle(http.MethodGet, path, r)
}

func (g *Group) POST(path string, r *router.Router) {
	g.handle(http.MethodPost, path, r)
}

func (g *Group) HEAD(path string, r *router.Router) {
	g.handle(http.MethodHead, path, r)
}

func (g *Group) PATCH(path string, r *router.Router) {
	g.handle(http.MethodPatch, path, r)
}

func (g *Group) DELETE(path string, r *router.Router) {
	g.handle(http.MethodDelete, path, r)
}

func (g *Group) OPTIONS(path string, r *router.Router) {
	g.handle(http.MethodOptions, path, r)
}

func (g *Group) PUT(path string, r *router.Router) {
	g.handle(http.MethodPut, path, r)
}

func (g *Group) Group(path string, options ...GroupOption) *Group {
	group := &Group{
		Engine:   g.Engine,
		Path:     g.Path + path,
		Tags:     append([]string(nil), g.Tags...),
		Handlers: append([]gin.HandlerFunc(nil), g.Handlers...),
		Security: security.Clone(g.Security),
	}

	for _, option := range options {
		option(group)
	}

	return group
}
