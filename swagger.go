package ayumerna

import (
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"github.com/Lovelumine/AYumeRNA/router"
	"github.com/Lovelumine/AYumeRNA/security"
	"github.com/getkin/kin-openapi/openapi3"
)

// OpenAPIVersion is the version of the description format emitted.
const OpenAPIVersion = "3.0.3"

var pathParam = regexp.MustCompile(`/:([0-9a-zA-Z_]+)`)

// Swagger composes the servable API description from the registered
// security schemes, the API metadata and the operations of the router.
type Swagger struct {
	Info Info

	// Requirements is the document-level security every operation inherits
	// unless it declares its own.
	Requirements []security.Requirement

	Servers openapi3.Servers

	registry *security.Registry
}

func NewSwagger(registry *security.Registry, info Info, requirements ...security.Requirement) *Swagger {
	return &Swagger{
		Info:         info,
		Requirements: requirements,
		registry:     registry,
	}
}

func (swagger *Swagger) Registry() *security.Registry {
	return swagger.registry
}

// Build assembles the description from the configured metadata and global
// requirements, then freezes the registry: the schemes of a published
// description can no longer change.
func (swagger *Swagger) Build(operations []*router.Router) (*Description, error) {
	desc, err := swagger.BuildDescription(swagger.Info, operations, swagger.Requirements...)
	if err != nil {
		return nil, err
	}
	swagger.registry.Freeze()
	return desc, nil
}

// BuildDescription validates its inputs against the registry and returns
// the assembled description. It has no side effects: identical inputs give
// structurally identical descriptions, and a failed validation returns no
// description at all.
func (swagger *Swagger) BuildDescription(info Info, operations []*router.Router, requirements ...security.Requirement) (*Description, error) {
	if swagger.registry == nil {
		return nil, fmt.Errorf("build description: %w: no registry", security.ErrInvalidScheme)
	}
	if err := info.Validate(); err != nil {
		return nil, err
	}
	if err := swagger.registry.Validate(requirements...); err != nil {
		return nil, fmt.Errorf("global security requirement: %w", err)
	}

	ops, err := swagger.checkOperations(operations)
	if err != nil {
		return nil, err
	}

	global := security.Clone(requirements)
	if global == nil {
		global = []security.Requirement{}
	}
	doc := &openapi3.T{
		OpenAPI: OpenAPIVersion,
		Info:    info.openAPI(),
		Servers: cloneServers(swagger.Servers),
		Components: &openapi3.Components{
			SecuritySchemes: swagger.registry.Components(),
		},
		Paths:    make(openapi3.Paths),
		Security: security.ToOpenAPI(global),
	}

	schemas := newSchemaBuilder()
	built := &builtSecurity{
		global:    global,
		overrides: make(map[routeKey][]security.Requirement),
		effective: make(map[routeKey][]security.Requirement, len(ops)),
	}
	for _, r := range ops {
		path := fixPath(r.Path)
		key := routeKey{Method: r.Method, Path: path}
		if r.Inherits() {
			built.effective[key] = global
		} else {
			built.overrides[key] = security.Clone(r.Security)
			built.effective[key] = built.overrides[key]
		}

		if r.Exclude {
			continue
		}

		operation, err := schemas.operation(r)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", r.Method, r.Path, err)
		}
		if !r.Inherits() {
			reqs := security.ToOpenAPI(r.Security)
			operation.Security = &reqs
		}
		schemas.enums(r.Enum)

		pathItem := doc.Paths[path]
		if pathItem == nil {
			pathItem = &openapi3.PathItem{}
			doc.Paths[path] = pathItem
		}
		pathItem.SetOperation(r.Method, operation)
	}
	if len(schemas.schemas) > 0 {
		doc.Components.Schemas = schemas.schemas
	}

	return newDescription(doc, built), nil
}

// checkOperations rejects unknown schemes, unsupported methods and
// duplicate routes, and returns the operations in a stable order.
func (swagger *Swagger) checkOperations(operations []*router.Router) ([]*router.Router, error) {
	ops := make([]*router.Router, 0, len(operations))
	seen := make(map[routeKey]struct{}, len(operations))
	for _, r := range operations {
		if r == nil {
			continue
		}
		if !supportedMethod(r.Method) {
			return nil, fmt.Errorf("%s %s: unsupported method", r.Method, r.Path)
		}
		key := routeKey{Method: r.Method, Path: fixPath(r.Path)}
		if _, ok := seen[key]; ok {
			return nil, fmt.Errorf("%w: %s %s", ErrDuplicateOperation, r.Method, r.Path)
		}
		seen[key] = struct{}{}

		if err := swagger.registry.Validate(r.Security...); err != nil {
			return nil, fmt.Errorf("%s %s security: %w", r.Method, r.Path, err)
		}
		ops = append(ops, r)
	}
	sort.SliceStable(ops, func(i, j int) bool {
		if ops[i].Path != ops[j].Path {
			return ops[i].Path < ops[j].Path
		}
		return ops[i].Method < ops[j].Method
	})
	return ops, nil
}

func supportedMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete,
		http.MethodHead, http.MethodOptions, http.MethodTrace, http.MethodConnect:
		return true
	}
	return false
}

func hasBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

// fixPath turns gin's /:id segments into OpenAPI /{id} templates.
func fixPath(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return pathParam.ReplaceAllString(path, "/{${1}}")
}

func cloneServers(servers openapi3.Servers) openapi3.Servers {
	if servers == nil {
		return nil
	}
	out := make(openapi3.Servers, 0, len(servers))
	for _, s := range servers {
		if s == nil {
			continue
		}
		c := *s
		out = append(out, &c)
	}
	return out
}
