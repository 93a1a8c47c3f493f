package security

import (
	"github.com/getkin/kin-openapi/openapi3"
)

// DefaultBearerFormat is the token encoding hint used when Format is empty.
const DefaultBearerFormat = "JWT"

type Bearer struct {
	AuthName    string
	Format      string
	Description string
}

func (b *Bearer) Name() string {
	return b.AuthName
}

func (b *Bearer) Kind() Kind {
	return KindHTTP
}

func (b *Bearer) BearerFormat() string {
	if b.Format == "" {
		return DefaultBearerFormat
	}
	return b.Format
}

func (b *Bearer) Schema() *openapi3.SecurityScheme {
	return &openapi3.SecurityScheme{
		Type:         string(KindHTTP),
		Scheme:       "bearer",
		BearerFormat: b.BearerFormat(),
		Description:  b.Description,
	}
}
