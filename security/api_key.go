package security

import (
	"github.com/getkin/kin-openapi/openapi3"
)

type ApiKey struct {
	AuthName    string
	KeyName     string
	In          string // header query cookie
	Description string
}

func (a *ApiKey) Name() string {
	return a.AuthName
}

func (a *ApiKey) Kind() Kind {
	return KindAPIKey
}

func (a *ApiKey) Schema() *openapi3.SecurityScheme {
	in := a.In
	if in == "" {
		in = openapi3.ParameterInHeader
	}
	return &openapi3.SecurityScheme{
		Type:        string(KindAPIKey),
		In:          in,
		Name:        a.KeyName,
		Description: a.Description,
	}
}
