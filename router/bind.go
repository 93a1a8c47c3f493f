package router

import (
	"net/http"
	"reflect"

	"github.com/Lovelumine/AYumeRNA/envelope"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/mcuadros/go-defaults"
)

var validate = validator.New()

// bindRequest fills req from the uri, headers, query and body of the request,
// applies `default` tags and runs `validate` tags. It answers 400 and returns
// false when any step fails.
func bindRequest(c *gin.Context, req any) bool {
	if err := c.ShouldBindUri(req); err != nil {
		envelope.Abort(c, http.StatusBadRequest, "invalid path parameters", err)
		return false
	}
	if err := c.ShouldBindHeader(req); err != nil {
		envelope.Abort(c, http.StatusBadRequest, "invalid headers", err)
		return false
	}
	if err := bindQuery(c, req); err != nil {
		envelope.Abort(c, http.StatusBadRequest, "invalid query parameters", err)
		return false
	}
	if err := bindBody(c, req); err != nil {
		envelope.Abort(c, http.StatusBadRequest, "invalid request body", err)
		return false
	}

	if !isStructPtr(req) {
		return true
	}
	defaults.SetDefaults(req)
	if err := validate.Struct(req); err != nil {
		envelope.Abort(c, http.StatusBadRequest, "request validation failed", err)
		return false
	}
	return true
}

// bindQuery reads query parameters through the `form` tags, as gin does, and
// then through the `query` tags the description documents them with.
func bindQuery(c *gin.Context, req any) error {
	if err := c.ShouldBindQuery(req); err != nil {
		return err
	}
	if !isStructPtr(req) {
		return nil
	}
	return binding.MapFormWithTag(req, c.Request.URL.Query(), "query")
}

func bindBody(c *gin.Context, req any) error {
	switch c.Request.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return nil
	}
	if c.Request.ContentLength == 0 {
		return nil
	}
	switch c.ContentType() {
	case binding.MIMEMultipartPOSTForm:
		return c.ShouldBindWith(req, binding.FormMultipart)
	case binding.MIMEJSON:
		return c.ShouldBindJSON(req)
	case binding.MIMEXML, binding.MIMEXML2:
		return c.ShouldBindXML(req)
	case binding.MIMEPOSTForm:
		return c.ShouldBindWith(req, binding.Form)
	case binding.MIMEYAML:
		return c.ShouldBindYAML(req)
	case binding.MIMEPROTOBUF:
		return c.ShouldBindWith(req, binding.ProtoBuf)
	case binding.MIMEMSGPACK:
		return c.ShouldBindWith(req, binding.MsgPack)
	}
	return nil
}

func isStructPtr(v any) bool {
	t := reflect.TypeOf(v)
	return t != nil && t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Struct
}
