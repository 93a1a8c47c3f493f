package security

import (
	"github.com/getkin/kin-openapi/openapi3"
)

// Kind is the transport convention of a security scheme.
type Kind string

const (
	KindHTTP          Kind = "http"
	KindAPIKey        Kind = "apiKey"
	KindOAuth2        Kind = "oauth2"
	KindOpenIDConnect Kind = "openIdConnect"
)

// Security is a named authentication scheme that can be registered and
// referenced from requirements.
type Security interface {
	Name() string
	Kind() Kind
	Schema() *openapi3.SecurityScheme
}
