package security

import (
	"github.com/getkin/kin-openapi/openapi3"
)

type OAuth2 struct {
	AuthName    string
	Flows       *openapi3.OAuthFlows
	Description string
}

func (o *OAuth2) Name() string {
	return o.AuthName
}

func (o *OAuth2) Kind() Kind {
	return KindOAuth2
}

func (o *OAuth2) Schema() *openapi3.SecurityScheme {
	return &openapi3.SecurityScheme{
		Type:        string(KindOAuth2),
		Flows:       o.Flows,
		Description: o.Description,
	}
}

type OpenIDConnect struct {
	AuthName    string
	URL         string
	Description string
}

func (o *OpenIDConnect) Name() string {
	return o.AuthName
}

func (o *OpenIDConnect) Kind() Kind {
	return KindOpenIDConnect
}

func (o *OpenIDConnect) Schema() *openapi3.SecurityScheme {
	return &openapi3.SecurityScheme{
		Type:             string(KindOpenIDConnect),
		OpenIdConnectUrl: o.URL,
		Description:      o.Description,
	}
}
