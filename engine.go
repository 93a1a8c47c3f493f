package ayumerna

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/Lovelumine/AYumeRNA/envelope"
	"github.com/Lovelumine/AYumeRNA/metrics"
	"github.com/Lovelumine/AYumeRNA/policy"
	"github.com/Lovelumine/AYumeRNA/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

//go:embed templates/*
var templates embed.FS

// ErrNotInitialized is returned by operations that need a published
// description before Init succeeded.
var ErrNotInitialized = errors.New("engine is not initialized")

// Engine serves the described operations behind the security gates derived
// from the published description.
type Engine struct {
	*gin.Engine

	// Swagger is used to construct the description document
	Swagger *Swagger

	DocsUrl        string
	OpenAPIUrl     string
	RedocUrl       string
	MetricsUrl     string
	SwaggerOptions map[string]any
	RedocOptions   map[string]any

	routers        []*router.Router
	authenticators map[string]policy.Authenticator
	logger         *zap.Logger
	metrics        *metrics.Metrics
	published      Published
	initialized    bool
}

type Option func(e *Engine)

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithAuthenticator verifies credentials of the named security scheme.
func WithAuthenticator(scheme string, a policy.Authenticator) Option {
	return func(e *Engine) {
		e.authenticators[scheme] = a
	}
}

// WithMetrics records request and rejection metrics and serves them at
// MetricsUrl.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithMetricsURL moves the metrics endpoint. An empty value keeps the
// default.
func WithMetricsURL(url string) Option {
	return func(e *Engine) {
		if url != "" {
			e.MetricsUrl = url
		}
	}
}

// WithDocsURLs overrides where the document and its viewers are served.
// Empty values keep the defaults.
func WithDocsURLs(openapi, docs, redoc string) Option {
	return func(e *Engine) {
		if openapi != "" {
			e.OpenAPIUrl = openapi
		}
		if docs != "" {
			e.DocsUrl = docs
		}
		if redoc != "" {
			e.RedocUrl = redoc
		}
	}
}

func New(swagger *Swagger, options ...Option) *Engine {
	e := &Engine{
		Engine:         gin.New(),
		Swagger:        swagger,
		DocsUrl:        "/docs",
		RedocUrl:       "/redoc",
		MetricsUrl:     "/metrics",
		OpenAPIUrl:     "/openapi.json",
		SwaggerOptions: make(map[string]any),
		RedocOptions:   make(map[string]any),
		authenticators: make(map[string]policy.Authenticator),
		logger:         zap.NewNop(),
	}
	for _, option := range options {
		option(e)
	}

	e.Engine.Use(requestLogger(e.logger), gin.Recovery())
	if e.metrics != nil {
		e.Engine.Use(e.metrics.Middleware())
	}
	e.SetHTMLTemplate(template.Must(template.ParseFS(templates, "templates/*.html")))
	return e
}

func (e *Engine) Use(middlewares ...gin.HandlerFunc) gin.IRoutes {
	return e.Engine.Use(middlewares...)
}

func (e *Engine) Group(path string, options ...GroupOption) *Group {
	group := &Group{
		Engine: e,
		Path:   path,
	}

	for _, option := range options {
		option(group)
	}

	return group
}

func (e *Engine) handle(path, method string, r *router.Router) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	r.Method = method
	r.Path = path
	e.routers = append(e.routers, r)
}

func (e *Engine) GET(path string, r *router.Router) {
	e.handle(path, http.MethodGet, r)
}

func (e *Engine) POST(path string, r *router.Router) {
	e.handle(path, http.MethodPost, r)
}

func (e *Engine) HEAD(path string, r *router.Router) {
	e.handle(path, http.MethodHead, r)
}

func (e *Engine) PUT(path string, r *router.Router) {
	e.handle(path, http.MethodPut, r)
}

func (e *Engine) DELETE(path string, r *router.Router) {
	e.handle(path, http.MethodDelete, r)
}

func (e *Engine) PATCH(path string, r *router.Router) {
	e.handle(path, http.MethodPatch, r)
}

func (e *Engine) OPTIONS(path string, r *router.Router) {
	e.handle(path, http.MethodOptions, r)
}

// Init builds and publishes the description, then mounts every route
// behind its security gate. Any configuration error is returned before a
// single route is mounted.
func (e *Engine) Init() error {
	if e.initialized {
		return nil
	}
	if e.Swagger == nil {
		return errors.New("engine has no swagger builder")
	}
	if err := e.checkReserved(); err != nil {
		return err
	}

	desc, err := e.Swagger.Build(e.routers)
	if err != nil {
		return fmt.Errorf("build api description: %w", err)
	}

	enforcer := policy.NewEnforcer(e.authenticators, e.logger)
	if e.metrics != nil {
		enforcer.OnReject(func(c *gin.Context, err error) {
			reason := metrics.ReasonInvalidToken
			if errors.Is(err, policy.ErrNoCredentials) {
				reason = metrics.ReasonMissingCredentials
			}
			e.metrics.AuthRejected(c.FullPath(), reason)
		})
	}
	routes := make([]policy.RouteKey, len(e.routers))
	for i, r := range e.routers {
		routes[i] = policy.RouteKey{Method: r.Method, Path: r.Path}
	}
	policies, err := policy.Derive(desc, routes)
	if err != nil {
		return err
	}
	gates := make([]gin.HandlerFunc, len(e.routers))
	for i, r := range e.routers {
		p := policies[routes[i]]
		if err := enforcer.Check(p); err != nil {
			return fmt.Errorf("%s %s: %w", r.Method, r.Path, err)
		}
		gates[i] = enforcer.Gate(p)
	}

	gin.DisableBindValidation()
	for i, r := range e.routers {
		handlers := append([]gin.HandlerFunc{gates[i]}, r.GetHandlers()...)
		e.Engine.Handle(r.Method, r.Path, handlers...)
	}
	e.mountDocs()

	e.published.Store(desc)
	e.initialized = true
	e.logger.Info("api description published",
		zap.String("title", desc.Info().Title),
		zap.String("version", desc.Info().Version),
		zap.Int("operations", len(desc.Operations())),
		zap.Int("schemes", len(desc.Schemes())))
	return nil
}

// Description returns the published description, or nil before Init.
func (e *Engine) Description() *Description {
	return e.published.Load()
}

// Describe builds the description of the registered routes without
// mounting them or freezing the registry.
func (e *Engine) Describe() (*Description, error) {
	if e.Swagger == nil {
		return nil, errors.New("engine has no swagger builder")
	}
	if err := e.checkReserved(); err != nil {
		return nil, err
	}
	return e.Swagger.BuildDescription(e.Swagger.Info, e.routers, e.Swagger.Requirements...)
}

// Reload rebuilds the description with new metadata and swaps it in as a
// whole. Routes and their security do not change.
func (e *Engine) Reload(info Info) error {
	if !e.initialized {
		return ErrNotInitialized
	}
	desc, err := e.Swagger.BuildDescription(info, e.routers, e.Swagger.Requirements...)
	if err != nil {
		return fmt.Errorf("reload api description: %w", err)
	}
	e.published.Store(desc)
	e.logger.Info("api description reloaded", zap.String("version", info.Version))
	return nil
}

func (e *Engine) Handler() http.Handler {
	return e.Engine
}

func (e *Engine) Run(addr ...string) error {
	if err := e.Init(); err != nil {
		return err
	}
	return e.Engine.Run(addr...)
}

// reservedURLs are the GET paths mountDocs serves.
func (e *Engine) reservedURLs() []string {
	urls := []string{e.OpenAPIUrl, e.DocsUrl, e.RedocUrl}
	if e.metrics != nil {
		urls = append(urls, e.MetricsUrl)
	}
	return urls
}

// checkReserved rejects routes that would collide with the documentation
// or metrics endpoints when they are mounted.
func (e *Engine) checkReserved() error {
	reserved := make(map[string]struct{}, 4)
	for _, url := range e.reservedURLs() {
		path := fixPath(url)
		if _, ok := reserved[path]; ok {
			return fmt.Errorf("%w: %s %s is configured for two endpoints", ErrDuplicateOperation, http.MethodGet, url)
		}
		reserved[path] = struct{}{}
	}
	for _, r := range e.routers {
		if r.Method != http.MethodGet {
			continue
		}
		if _, ok := reserved[fixPath(r.Path)]; ok {
			return fmt.Errorf("%w: %s %s is served by the engine", ErrDuplicateOperation, r.Method, r.Path)
		}
	}
	return nil
}

func (e *Engine) mountDocs() {
	e.Engine.GET(e.OpenAPIUrl, func(c *gin.Context) {
		desc := e.published.Load()
		if strings.HasSuffix(e.OpenAPIUrl, ".yml") || strings.HasSuffix(e.OpenAPIUrl, ".yaml") {
			yaml, err := desc.MarshalYaml()
			if err != nil {
				envelope.Abort(c, http.StatusInternalServerError, "render api description", err)
				return
			}
			c.Data(http.StatusOK, "application/yaml; charset=utf-8", yaml)
			return
		}
		bytes, err := desc.MarshalJSON()
		if err != nil {
			envelope.Abort(c, http.StatusInternalServerError, "render api description", err)
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", bytes)
	})

	e.Engine.GET(e.DocsUrl, func(c *gin.Context) {
		e.renderViewer(c, "swagger.html", "swagger_options", e.SwaggerOptions)
	})

	e.Engine.GET(e.RedocUrl, func(c *gin.Context) {
		e.renderViewer(c, "redoc.html", "redoc_options", e.RedocOptions)
	})

	if e.metrics != nil {
		e.Engine.GET(e.MetricsUrl, gin.WrapH(e.metrics.Handler()))
	}
}

func (e *Engine) renderViewer(c *gin.Context, page, key string, options map[string]any) {
	opts := "{}"
	if len(options) > 0 {
		bytes, err := json.Marshal(options)
		if err != nil {
			envelope.Abort(c, http.StatusInternalServerError, "render viewer options", err)
			return
		}
		opts = string(bytes)
	}
	c.HTML(http.StatusOK, page, gin.H{
		"openapi_url": e.OpenAPIUrl,
		"title":       e.published.Load().Info().Title,
		key:           template.JS(opts),
	})
}
