package ayumerna

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/Lovelumine/AYumeRNA/security"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/invopop/yaml"
)

type routeKey struct {
	Method string
	Path   string
}

// SchemeInfo is the published view of a registered security scheme.
type SchemeInfo struct {
	Name         string
	Kind         security.Kind
	Scheme       string
	BearerFormat string
	Description  string
}

// Operation is the published view of one documented operation.
type Operation struct {
	Method      string
	Path        string
	OperationID string
	Summary     string
	Tags        []string
	Deprecated  bool

	// Security is the operation's own requirement; nil means it inherits
	// the document-level requirement.
	Security []security.Requirement
}

// Description is an immutable, servable API description. It is safe for
// concurrent use by any number of readers.
type Description struct {
	doc        *openapi3.T
	global     []security.Requirement
	schemes    []SchemeInfo
	operations []Operation
	effective  map[routeKey][]security.Requirement
}

// builtSecurity carries the requirements exactly as the builder received
// them. The document form cannot keep the order of names inside a
// requirement, so a built description reads them from here instead.
type builtSecurity struct {
	global    []security.Requirement
	overrides map[routeKey][]security.Requirement

	// effective holds every served route, including routes hidden from
	// the document.
	effective map[routeKey][]security.Requirement
}

// newDescription takes ownership of doc. built is nil for parsed documents,
// whose requirements are then read from doc.
func newDescription(doc *openapi3.T, built *builtSecurity) *Description {
	d := &Description{
		doc:       doc,
		effective: make(map[routeKey][]security.Requirement),
	}
	if built != nil {
		d.global = security.Clone(built.global)
	} else {
		d.global = security.FromOpenAPI(doc.Security)
	}
	if d.global == nil {
		d.global = []security.Requirement{}
	}

	if doc.Components != nil {
		for name, ref := range doc.Components.SecuritySchemes {
			if ref == nil || ref.Value == nil {
				continue
			}
			d.schemes = append(d.schemes, SchemeInfo{
				Name:         name,
				Kind:         security.Kind(ref.Value.Type),
				Scheme:       ref.Value.Scheme,
				BearerFormat: ref.Value.BearerFormat,
				Description:  ref.Value.Description,
			})
		}
		sort.Slice(d.schemes, func(i, j int) bool {
			return d.schemes[i].Name < d.schemes[j].Name
		})
	}

	for path, item := range doc.Paths {
		if item == nil {
			continue
		}
		for method, op := range item.Operations() {
			o := Operation{
				Method:      method,
				Path:        path,
				OperationID: op.OperationID,
				Summary:     op.Summary,
				Tags:        append([]string(nil), op.Tags...),
				Deprecated:  op.Deprecated,
			}
			key := routeKey{Method: method, Path: path}
			if op.Security != nil {
				if reqs, ok := built.override(key); ok {
					o.Security = reqs
				} else {
					o.Security = security.FromOpenAPI(*op.Security)
				}
				d.effective[key] = o.Security
			} else {
				d.effective[key] = d.global
			}
			d.operations = append(d.operations, o)
		}
	}
	sort.Slice(d.operations, func(i, j int) bool {
		if d.operations[i].Path != d.operations[j].Path {
			return d.operations[i].Path < d.operations[j].Path
		}
		return d.operations[i].Method < d.operations[j].Method
	})

	if built != nil {
		for key, reqs := range built.effective {
			d.effective[key] = security.Clone(reqs)
		}
	}
	return d
}

func (b *builtSecurity) override(key routeKey) ([]security.Requirement, bool) {
	if b == nil {
		return nil, false
	}
	reqs, ok := b.overrides[key]
	if !ok {
		return nil, false
	}
	return security.Clone(reqs), true
}

// ParseDescription reads a JSON or YAML document produced by MarshalJSON or
// MarshalYaml.
func ParseDescription(data []byte) (*Description, error) {
	doc, err := openapi3.NewLoader().LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("parse description: %w", err)
	}
	if doc.Paths == nil {
		doc.Paths = make(openapi3.Paths)
	}
	return newDescription(doc, nil), nil
}

func (d *Description) Info() Info {
	return infoFromOpenAPI(d.doc.Info)
}

func (d *Description) Schemes() []SchemeInfo {
	return append([]SchemeInfo(nil), d.schemes...)
}

// Scheme looks up a published scheme by name.
func (d *Description) Scheme(name string) (SchemeInfo, bool) {
	for _, s := range d.schemes {
		if s.Name == name {
			return s, true
		}
	}
	return SchemeInfo{}, false
}

// GlobalSecurity returns the document-level requirement alternatives in
// declaration order.
func (d *Description) GlobalSecurity() []security.Requirement {
	return security.Clone(d.global)
}

// Operations returns the documented operations ordered by path and method.
func (d *Description) Operations() []Operation {
	out := make([]Operation, 0, len(d.operations))
	for _, op := range d.operations {
		out = append(out, op.clone())
	}
	return out
}

// Operation looks up a documented operation. path may use either the
// /:id or the /{id} form.
func (d *Description) Operation(method, path string) (Operation, bool) {
	path = fixPath(path)
	for _, op := range d.operations {
		if op.Method == method && op.Path == path {
			return op.clone(), true
		}
	}
	return Operation{}, false
}

// EffectiveSecurity returns the requirement a request to method and path
// must satisfy: the operation's own override when it has one, the global
// requirement otherwise. An empty result means the route is public; ok is
// false for routes the description does not know.
func (d *Description) EffectiveSecurity(method, path string) (reqs []security.Requirement, ok bool) {
	reqs, ok = d.effective[routeKey{Method: method, Path: fixPath(path)}]
	if !ok {
		return nil, false
	}
	return security.Clone(reqs), true
}

func (d *Description) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.doc)
}

func (d *Description) MarshalYaml() ([]byte, error) {
	bytes, err := d.MarshalJSON()
	if err != nil {
		return nil, err
	}

	var data any
	if err := json.Unmarshal(bytes, &data); err != nil {
		return nil, err
	}
	return yaml.Marshal(data)
}

func (o Operation) clone() Operation {
	o.Tags = append([]string(nil), o.Tags...)
	o.Security = security.Clone(o.Security)
	return o
}

// Published holds the description currently served. Reloads replace the
// whole snapshot, so readers see either the old or the new description.
type Published struct {
	current atomic.Pointer[Description]
}

func (p *Published) Load() *Description {
	return p.current.Load()
}

func (p *Published) Store(d *Description) {
	p.current.Store(d)
}
