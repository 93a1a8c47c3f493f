package ayumerna

import (
	"errors"
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// ErrDuplicateOperation is returned when two operations share a method and path.
var ErrDuplicateOperation = errors.New("duplicate operation")

// InvalidMetadataError reports a missing or malformed descriptive field.
type InvalidMetadataError struct {
	Field  string
	Reason string
}

func (e *InvalidMetadataError) Error() string {
	return fmt.Sprintf("invalid api metadata: %s %s", e.Field, e.Reason)
}

// Info is the descriptive metadata of the API.
type Info struct {
	Title          string
	Version        string
	Description    string
	TermsOfService string
	Contact        *openapi3.Contact
	License        *openapi3.License
}

func (i Info) Validate() error {
	if strings.TrimSpace(i.Title) == "" {
		return &InvalidMetadataError{Field: "title", Reason: "is required"}
	}
	if strings.TrimSpace(i.Version) == "" {
		return &InvalidMetadataError{Field: "version", Reason: "is required"}
	}
	if strings.ContainsAny(i.Version, " \t\r\n") {
		return &InvalidMetadataError{Field: "version", Reason: "must not contain whitespace"}
	}
	if strings.TrimSpace(i.Description) == "" {
		return &InvalidMetadataError{Field: "description", Reason: "is required"}
	}
	return nil
}

func (i Info) openAPI() *openapi3.Info {
	info := &openapi3.Info{
		Title:          i.Title,
		Description:    i.Description,
		TermsOfService: i.TermsOfService,
		Version:        i.Version,
	}
	if i.Contact != nil {
		c := *i.Contact
		info.Contact = &c
	}
	if i.License != nil {
		l := *i.License
		info.License = &l
	}
	return info
}

func infoFromOpenAPI(info *openapi3.Info) Info {
	if info == nil {
		return Info{}
	}
	out := Info{
		Title:          info.Title,
		Version:        info.Version,
		Description:    info.Description,
		TermsOfService: info.TermsOfService,
	}
	if info.Contact != nil {
		c := *info.Contact
		out.Contact = &c
	}
	if info.License != nil {
		l := *info.License
		out.License = &l
	}
	return out
}
