package raml

import (
	"sort"
	"strings"
)

// API is the typed form of a parsed RAML 1.0 root document, with traits,
// resource types, and any extensions or overlays already applied. Templates
// consume this model directly.
type API struct {
	Title             string
	Description       string
	Version           string
	BaseURI           string
	BaseURIParameters []*NamedParameter
	Protocols         []string
	MediaType         []string
	Documentation     []DocumentationItem
	Types             map[string]*TypeDecl
	SecuritySchemes   map[string]*SecurityScheme
	SecuredBy         []string
	Resources         []*Resource

	traits        map[string]valueNode
	resourceTypes map[string]valueNode
	src           sourceRef
}

// DocumentationItem is one user-documentation chapter.
type DocumentationItem struct {
	Title   string
	Content string
}

// SecurityScheme describes one entry under securitySchemes.
type SecurityScheme struct {
	Name        string
	Type        string
	Description string
	DescribedBy map[string]any
	Settings    map[string]any
	src         sourceRef
}

// Resource is one node of the resource tree. FullURI is the concatenation of
// all ancestor relative URIs plus its own.
type Resource struct {
	RelativeURI   string
	FullURI       string
	DisplayName   string
	Description   string
	Type          string
	Is            []string
	SecuredBy     []string
	URIParameters []*NamedParameter
	Methods       []*Method
	Children      []*Resource
	Parent        *Resource

	typeRef *templateRef
	isRefs  []templateRef
	src     sourceRef
}

// Method is one HTTP method declared on a resource.
type Method struct {
	Name            string
	DisplayName     string
	Description     string
	Is              []string
	SecuredBy       []string
	QueryParameters []*NamedParameter
	Headers         []*NamedParameter
	Bodies          []*Body
	Responses       []*Response

	isRefs []templateRef
	// optional marks a "get?" style declaration inside a resource type,
	// applied only to resources that declare the method themselves.
	optional bool
	src      sourceRef
}

// Response is one status code's declaration on a method.
type Response struct {
	Code        string
	Description string
	Headers     []*NamedParameter
	Bodies      []*Body
	src         sourceRef
}

// Body is one media-typed request or response payload.
type Body struct {
	MediaType string
	Type      *TypeDecl
	// Schema holds an inline or included JSON schema when the document uses
	// the schema facet instead of a RAML type.
	Schema string
	src    sourceRef
}

// NamedParameter is a query parameter, header, or URI parameter declaration.
type NamedParameter struct {
	Name     string
	Required bool
	Type     *TypeDecl
	src      sourceRef
}

// TypeDecl is a RAML type expression with its facets. It covers inline type
// declarations, entries under the top-level types map, and parameter types.
type TypeDecl struct {
	Name        string
	DisplayName string
	Description string
	// Type is the base type expression: a built-in scalar name, a declared
	// type name, "object", "array", a union "a | b", or an array shorthand
	// "T[]".
	Type       string
	Properties []*TypeProperty
	// Items describes array element types when Type resolves to an array.
	Items     *TypeDecl
	Enum      []any
	Pattern   string
	MinLength *int
	MaxLength *int
	Minimum   *float64
	Maximum   *float64
	Default   any
	Example   *Example
	Examples  []*Example
	// Schema holds an inline or included JSON schema declared through the
	// schema facet rather than a RAML type expression.
	Schema string
	src    sourceRef
}

// TypeProperty is one property of an object type. A trailing "?" on the
// declared name marks the property optional and is stripped from Name.
type TypeProperty struct {
	Name     string
	Required bool
	Type     *TypeDecl
}

// Example is an example value attached to a type or body, kept with its
// source location so validation can point at it.
type Example struct {
	Name  string
	Value any
	src   sourceRef
}

// AllResources returns the resource tree flattened depth-first, the order
// the default theme lists them in.
func (a *API) AllResources() []*Resource {
	var out []*Resource
	var walk func(rs []*Resource)
	walk = func(rs []*Resource) {
		for _, r := range rs {
			out = append(out, r)
			walk(r.Children)
		}
	}
	walk(a.Resources)
	return out
}

// TypeNames returns declared type names in stable sorted order.
func (a *API) TypeNames() []string {
	names := make([]string, 0, len(a.Types))
	for name := range a.Types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SecuritySchemeNames returns declared scheme names in stable sorted order.
func (a *API) SecuritySchemeNames() []string {
	names := make([]string, 0, len(a.SecuritySchemes))
	for name := range a.SecuritySchemes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsScalar reports whether the declaration resolves to a built-in scalar
// type with no structure of its own.
func (t *TypeDecl) IsScalar() bool {
	switch baseTypeName(t.Type) {
	case "string", "number", "integer", "boolean", "date-only", "time-only",
		"datetime", "datetime-only", "file", "nil":
		return len(t.Properties) == 0
	}
	return false
}

// IsArray reports whether the declaration resolves to an array type.
func (t *TypeDecl) IsArray() bool {
	return t.Type == "array" || strings.HasSuffix(t.Type, "[]")
}

// ElementType returns the declared element type name for array declarations.
func (t *TypeDecl) ElementType() string {
	if strings.HasSuffix(t.Type, "[]") {
		return strings.TrimSuffix(t.Type, "[]")
	}
	if t.Items != nil {
		return t.Items.Type
	}
	return ""
}

// baseTypeName strips array and union decoration from a type expression.
func baseTypeName(expr string) string {
	expr = strings.TrimSpace(strings.TrimSuffix(expr, "[]"))
	if i := strings.IndexByte(expr, '|'); i >= 0 {
		expr = strings.TrimSpace(expr[:i])
	}
	return expr
}
