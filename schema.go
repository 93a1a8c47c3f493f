package ayumerna

import (
	"fmt"
	"mime/multipart"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/Lovelumine/AYumeRNA/router"
	"github.com/fatih/structtag"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gin-gonic/gin/binding"
)

const (
	DEFAULT     = "default"
	BINDING     = "binding"
	VALIDATE    = "validate"
	DESCRIPTION = "description"
	ENUM        = "enum"
	QUERY       = "query"
	FORM        = "form"
	URI         = "uri"
	HEADER      = "header"
	COOKIE      = "cookie"
	JSON        = "json"
)

var (
	timeType       = reflect.TypeOf(time.Time{})
	fileHeaderType = reflect.TypeOf(multipart.FileHeader{})
	bytesType      = reflect.TypeOf([]byte(nil))
)

// schemaBuilder collects component schemas for a single document build.
type schemaBuilder struct {
	schemas openapi3.Schemas
}

func newSchemaBuilder() *schemaBuilder {
	return &schemaBuilder{
		schemas: make(openapi3.Schemas),
	}
}

func (b *schemaBuilder) operation(r *router.Router) (*openapi3.Operation, error) {
	params, err := b.parameters(r.Model)
	if err != nil {
		return nil, err
	}

	responses, err := b.responses(r.Response, r.ResponseContentType)
	if err != nil {
		return nil, err
	}

	operation := &openapi3.Operation{
		Tags:        append([]string(nil), r.Tags...),
		Summary:     r.Summary,
		Description: r.Description,
		OperationID: r.OperationID,
		Parameters:  params,
		Responses:   responses,
		Deprecated:  r.Deprecated,
	}

	if hasBody(r.Method) {
		body, err := b.requestBody(r)
		if err != nil {
			return nil, err
		}
		operation.RequestBody = body
	}
	return operation, nil
}

func (b *schemaBuilder) requestBody(r *router.Router) (*openapi3.RequestBodyRef, error) {
	model := r.Request.Model
	if model == nil {
		model = r.Model
	}
	t := indirect(reflect.TypeOf(model))
	if t == nil || t.Kind() != reflect.Struct || !hasBodyFields(t) {
		return nil, nil
	}

	ref, err := b.component(t, true)
	if err != nil {
		return nil, err
	}

	contentType := r.RequestContentType
	if contentType == "" {
		contentType = binding.MIMEJSON
		if hasFileField(t) {
			contentType = binding.MIMEMultipartPOSTForm
		}
	}

	body := openapi3.NewRequestBody().
		WithRequired(true).
		WithDescription(r.Request.Description)
	body.Content = openapi3.NewContent()
	body.Content[contentType] = openapi3.NewMediaType().WithSchemaRef(ref)
	return &openapi3.RequestBodyRef{Value: body}, nil
}

func (b *schemaBuilder) responses(response router.Response, contentType string) (openapi3.Responses, error) {
	if contentType == "" {
		contentType = binding.MIMEJSON
	}
	ret := make(openapi3.Responses, len(response))
	for code, item := range response {
		description := item.Description
		resp := &openapi3.Response{
			Description: &description,
			Headers:     item.Headers,
		}
		if t := reflect.TypeOf(item.Model); t != nil {
			ref, err := b.schemaFor(t, false)
			if err != nil {
				return nil, fmt.Errorf("response %s: %w", code, err)
			}
			resp.Content = openapi3.NewContent()
			resp.Content[contentType] = openapi3.NewMediaType().WithSchemaRef(ref)
		}
		ret[code] = &openapi3.ResponseRef{Value: resp}
	}
	if len(ret) == 0 {
		description := ""
		ret["default"] = &openapi3.ResponseRef{
			Value: &openapi3.Response{Description: &description},
		}
	}
	return ret, nil
}

// parameters extracts path, query, header and cookie parameters from the
// model's struct tags.
func (b *schemaBuilder) parameters(model any) (openapi3.Parameters, error) {
	parameters := openapi3.NewParameters()
	t := indirect(reflect.TypeOf(model))
	if t == nil || t.Kind() != reflect.Struct {
		return parameters, nil
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		tags, err := structtag.Parse(string(field.Tag))
		if err != nil {
			return nil, fmt.Errorf("parse tags of %s.%s: %w", t.Name(), field.Name, err)
		}

		parameter := &openapi3.Parameter{}
		for _, loc := range []struct{ tag, in string }{
			{QUERY, openapi3.ParameterInQuery},
			{URI, openapi3.ParameterInPath},
			{HEADER, openapi3.ParameterInHeader},
			{COOKIE, openapi3.ParameterInCookie},
		} {
			if tag, err := tags.Get(loc.tag); err == nil && tag.Name != "" && tag.Name != "-" {
				parameter.In = loc.in
				parameter.Name = tag.Name
			}
		}
		if parameter.In == "" {
			continue
		}

		if tag, err := tags.Get(DESCRIPTION); err == nil {
			parameter.Description = tag.Value()
		}
		parameter.Required = parameter.In == openapi3.ParameterInPath || isRequired(tags)

		ref, err := b.schemaFor(field.Type, true)
		if err != nil {
			return nil, err
		}
		if ref.Value != nil {
			applyDefault(ref.Value, field.Type, tags)
		}
		parameter.Schema = ref
		parameters = append(parameters, &openapi3.ParameterRef{Value: parameter})
	}
	return parameters, nil
}

// schemaFor returns an inline schema for builtin types and a reference for
// named structs, registering the component on first use.
func (b *schemaBuilder) schemaFor(t reflect.Type, isRequest bool) (*openapi3.SchemaRef, error) {
	t = indirect(t)

	switch t {
	case timeType:
		return openapi3.NewSchemaRef("", openapi3.NewDateTimeSchema()), nil
	case fileHeaderType:
		schema := openapi3.NewStringSchema()
		schema.Format = "binary"
		return openapi3.NewSchemaRef("", schema), nil
	case bytesType:
		return openapi3.NewSchemaRef("", openapi3.NewBytesSchema()), nil
	}

	switch t.Kind() {
	case reflect.Struct:
		return b.component(t, isRequest)
	case reflect.Slice, reflect.Array:
		items, err := b.schemaFor(t.Elem(), isRequest)
		if err != nil {
			return nil, err
		}
		schema := openapi3.NewArraySchema()
		schema.Items = items
		return openapi3.NewSchemaRef("", schema), nil
	case reflect.Map:
		// dictionaries are objects keyed by string with typed additionalProperties
		schema := openapi3.NewObjectSchema()
		if t.Elem().Kind() == reflect.Interface {
			has := true
			schema.AdditionalProperties = openapi3.AdditionalProperties{Has: &has}
		} else {
			values, err := b.schemaFor(t.Elem(), isRequest)
			if err != nil {
				return nil, err
			}
			schema.AdditionalProperties = openapi3.AdditionalProperties{Schema: values}
		}
		return openapi3.NewSchemaRef("", schema), nil
	case reflect.Interface:
		return openapi3.NewSchemaRef("", openapi3.NewObjectSchema()), nil
	}

	schema := basicSchema(t.Kind())
	if schema == nil {
		return nil, fmt.Errorf("unsupported field type %s", t)
	}
	return openapi3.NewSchemaRef("", schema), nil
}

// component registers the struct as components/schemas/<Name>. Anonymous
// structs are inlined.
func (b *schemaBuilder) component(t reflect.Type, isRequest bool) (*openapi3.SchemaRef, error) {
	name := removePackageName(t.Name())
	if name != "" {
		if _, ok := b.schemas[name]; ok {
			return openapi3.NewSchemaRef(generateRefName(name), nil), nil
		}
		// placeholder guards against self-referencing models
		b.schemas[name] = openapi3.NewSchemaRef("", openapi3.NewObjectSchema())
	}

	schema := openapi3.NewObjectSchema()
	schema.Title = name
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		tags, err := structtag.Parse(string(field.Tag))
		if err != nil {
			return nil, fmt.Errorf("parse tags of %s.%s: %w", t.Name(), field.Name, err)
		}

		fieldName, ok := propertyName(field, tags, isRequest)
		if !ok {
			continue
		}

		ref, err := b.schemaFor(field.Type, isRequest)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", t.Name(), field.Name, err)
		}
		if ref.Value != nil {
			if tag, err := tags.Get(DESCRIPTION); err == nil {
				ref.Value.Description = tag.Value()
			}
			applyDefault(ref.Value, field.Type, tags)
			if tag, err := tags.Get(ENUM); err == nil {
				values, err := parseEnumTag(tag.Value())
				if err != nil {
					return nil, fmt.Errorf("%s.%s: %w", t.Name(), field.Name, err)
				}
				ref.Value.Enum = values
			}
		}
		if isRequired(tags) {
			schema.Required = append(schema.Required, fieldName)
		}
		schema.Properties[fieldName] = ref
	}

	if name == "" {
		return openapi3.NewSchemaRef("", schema), nil
	}
	b.schemas[name] = openapi3.NewSchemaRef("", schema)
	return openapi3.NewSchemaRef(generateRefName(name), nil), nil
}

func (b *schemaBuilder) enums(enum router.Enum) {
	for enumName, enumItem := range enum {
		b.schemas[enumName] = openapi3.NewSchemaRef("", &openapi3.Schema{
			Type:        enumItem.Kind,
			Title:       enumName,
			Description: enumItem.Description,
			Enum:        append([]any(nil), enumItem.Values...),
		})
	}
}

// propertyName picks the wire name of a body field: the form tag for
// requests, falling back to json.
func propertyName(field reflect.StructField, tags *structtag.Tags, isRequest bool) (string, bool) {
	if isRequest {
		if tag, err := tags.Get(FORM); err == nil && tag.Name != "" {
			return tag.Name, tag.Name != "-"
		}
		if tag, err := tags.Get(JSON); err == nil && tag.Name != "" {
			return tag.Name, tag.Name != "-"
		}
		return "", false
	}
	if tag, err := tags.Get(JSON); err == nil && tag.Name != "" {
		return tag.Name, tag.Name != "-"
	}
	return field.Name, true
}

func hasBodyFields(t reflect.Type) bool {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		tags, err := structtag.Parse(string(field.Tag))
		if err != nil {
			// surfaced later by component
			return true
		}
		if _, ok := propertyName(field, tags, true); ok {
			return true
		}
	}
	return false
}

func hasFileField(t reflect.Type) bool {
	for i := 0; i < t.NumField(); i++ {
		ft := indirect(t.Field(i).Type)
		if ft.Kind() == reflect.Slice {
			ft = indirect(ft.Elem())
		}
		if ft == fileHeaderType {
			return true
		}
	}
	return false
}

func isRequired(tags *structtag.Tags) bool {
	for _, key := range []string{VALIDATE, BINDING} {
		tag, err := tags.Get(key)
		if err != nil {
			continue
		}
		for _, rule := range strings.Split(tag.Value(), ",") {
			if rule == "required" {
				return true
			}
		}
	}
	return false
}

// applyDefault copies a `default` tag into the schema, typed by the field kind.
func applyDefault(schema *openapi3.Schema, t reflect.Type, tags *structtag.Tags) {
	tag, err := tags.Get(DEFAULT)
	if err != nil {
		return
	}
	raw := tag.Value()
	switch indirect(t).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			schema.Default = v
			return
		}
	case reflect.Float32, reflect.Float64:
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			schema.Default = v
			return
		}
	case reflect.Bool:
		if v, err := strconv.ParseBool(raw); err == nil {
			schema.Default = v
			return
		}
	}
	schema.Default = raw
}

// parseEnumTag reads `enum:"a,b,c"` style value lists.
func parseEnumTag(enumTag string) ([]any, error) {
	var values []any
	for _, v := range strings.Split(enumTag, ",") {
		v = strings.TrimSpace(v)
		if v == "" {
			return nil, fmt.Errorf("malformed enum tag %q", enumTag)
		}
		values = append(values, v)
	}
	return values, nil
}

func basicSchema(kind reflect.Kind) *openapi3.Schema {
	var schema *openapi3.Schema
	var m = float64(0)
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16:
		schema = openapi3.NewIntegerSchema()
	case reflect.Uint, reflect.Uint8, reflect.Uint16:
		schema = openapi3.NewIntegerSchema()
		schema.Min = &m
	case reflect.Int32:
		schema = openapi3.NewInt32Schema()
	case reflect.Uint32:
		schema = openapi3.NewInt32Schema()
		schema.Min = &m
	case reflect.Int64:
		schema = openapi3.NewInt64Schema()
	case reflect.Uint64:
		schema = openapi3.NewInt64Schema()
		schema.Min = &m
	case reflect.String:
		schema = openapi3.NewStringSchema()
	case reflect.Float32:
		schema = openapi3.NewFloat64Schema()
		schema.Format = "float"
	case reflect.Float64:
		schema = openapi3.NewFloat64Schema()
		schema.Format = "double"
	case reflect.Bool:
		schema = openapi3.NewBoolSchema()
	}
	return schema
}

func indirect(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

func generateRefName(structName string) string {
	return "#/components/schemas/" + structName
}

func removePackageName(name string) string {
	split := strings.Split(name, ".")
	return split[len(split)-1]
}
