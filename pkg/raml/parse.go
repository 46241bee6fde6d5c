package raml

import (
	"strings"

	"github.com/RazmikMkrtchyan/raml2html/pkg/constants"
)

// Parse reads, resolves, and decodes the RAML document at path into the
// typed model. Trait and resource type references are expanded before the
// model is returned. The API is non-nil whenever the document decoded at
// all, so callers can render partial output alongside the diagnostics.
func Parse(path string) (*API, ErrorList) {
	return ParseWithExtensions(path, nil)
}

func (d *decoder) decodeAPI(root valueNode) *API {
	entries := d.mapping(root)
	if entries == nil {
		d.addError(d.ref(root).errorf(CodeInvalidStructure, "document root must be a map"))
		return nil
	}
	api := &API{
		Types:           map[string]*TypeDecl{},
		SecuritySchemes: map[string]*SecurityScheme{},
		traits:          map[string]valueNode{},
		resourceTypes:   map[string]valueNode{},
		src:             d.ref(root),
	}
	d.api = api

	// Declarations first, resources second, so defaults like mediaType are
	// in place before any body decodes, whatever the key order in source.
	for _, e := range entries {
		if !strings.HasPrefix(e.key, "/") {
			d.decodeAPIEntry(api, e)
		}
	}
	for _, e := range entries {
		if strings.HasPrefix(e.key, "/") {
			api.Resources = append(api.Resources, d.decodeResource(e, nil))
		}
	}
	return api
}

func (d *decoder) decodeAPIEntry(api *API, e mappingEntry) {
	switch e.key {
	case "title":
		api.Title = d.strOrEmpty(e.value)
	case "description":
		api.Description = d.strOrEmpty(e.value)
	case "version":
		api.Version = d.strOrEmpty(e.value)
	case "baseUri":
		api.BaseURI = d.strOrEmpty(e.value)
	case "baseUriParameters":
		api.BaseURIParameters = d.decodeNamedParameters(e.value)
	case "protocols":
		api.Protocols = upperAll(d.stringSlice(e.value))
	case "mediaType":
		api.MediaType = d.stringSlice(e.value)
	case "documentation":
		api.Documentation = d.decodeDocumentation(e.value)
	case "types", "schemas":
		for _, t := range d.declMap(e) {
			api.Types[t.key] = d.decodeType(t.key, t.value)
		}
	case "traits":
		for _, t := range d.declMap(e) {
			api.traits[t.key] = t.value
		}
	case "resourceTypes":
		for _, t := range d.declMap(e) {
			api.resourceTypes[t.key] = t.value
		}
	case "securitySchemes":
		for _, s := range d.declMap(e) {
			api.SecuritySchemes[s.key] = d.decodeSecurityScheme(s.key, s.value)
		}
	case "securedBy":
		api.SecuredBy = d.securedNames(e.value)
	case "uses":
		d.addError(e.keyRef.warningf(CodeUnsupportedFragment, "library imports under uses are not supported and were ignored"))
	default:
		if strings.HasPrefix(e.key, "(") {
			return
		}
		d.addError(e.keyRef.warningf(CodeInvalidStructure, "unknown property %q", e.key))
	}
}

// declMap reads a declaration section that must be a map of names, such as
// types or traits. A null section is empty; anything else is flagged.
func (d *decoder) declMap(e mappingEntry) []mappingEntry {
	if isNull(d.resolve(e.value)) {
		return nil
	}
	entries := d.mapping(e.value)
	if entries == nil {
		d.addError(e.keyRef.errorf(CodeInvalidStructure, "%s must be a map of declarations", e.key))
	}
	return entries
}

func (d *decoder) decodeResource(e mappingEntry, parent *Resource) *Resource {
	r := &Resource{
		RelativeURI: e.key,
		FullURI:     e.key,
		Parent:      parent,
		src:         e.keyRef,
	}
	if parent != nil {
		r.FullURI = parent.FullURI + e.key
	}
	for _, re := range d.mapping(e.value) {
		switch {
		case strings.HasPrefix(re.key, "/"):
			r.Children = append(r.Children, d.decodeResource(re, r))
		case re.key == "displayName":
			r.DisplayName = d.strOrEmpty(re.value)
		case re.key == "description":
			r.Description = d.strOrEmpty(re.value)
		case re.key == "uriParameters":
			r.URIParameters = d.decodeNamedParameters(re.value)
		case re.key == "type":
			if ref := d.oneTemplateRef(re.value); ref.name != "" {
				r.typeRef = &ref
				r.Type = ref.name
			}
		case re.key == "is":
			r.isRefs = d.templateRefs(re.value)
			r.Is = refNames(r.isRefs)
		case re.key == "securedBy":
			r.SecuredBy = d.securedNames(re.value)
		case isMethodKey(re.key):
			r.Methods = append(r.Methods, d.decodeMethod(re))
		case strings.HasPrefix(re.key, "("):
			// annotations are accepted and skipped
		default:
			d.addError(re.keyRef.warningf(CodeInvalidStructure, "unknown property %q on resource %s", re.key, r.FullURI))
		}
	}
	return r
}

func (d *decoder) decodeMethod(e mappingEntry) *Method {
	name := strings.TrimSuffix(e.key, "?")
	optional := name != e.key
	if optional && !d.inTemplate {
		d.addError(e.keyRef.errorf(CodeInvalidStructure, "optional method %s is only allowed inside a resource type", e.key))
	}
	m := &Method{Name: name, optional: optional && d.inTemplate, src: e.keyRef}
	d.decodeMethodEntries(m, d.mapping(e.value))
	return m
}

func (d *decoder) decodeMethodEntries(m *Method, entries []mappingEntry) {
	for _, me := range entries {
		switch me.key {
		case "displayName":
			m.DisplayName = d.strOrEmpty(me.value)
		case "description":
			m.Description = d.strOrEmpty(me.value)
		case "queryParameters":
			m.QueryParameters = append(m.QueryParameters, d.decodeNamedParameters(me.value)...)
		case "headers":
			m.Headers = append(m.Headers, d.decodeNamedParameters(me.value)...)
		case "body":
			m.Bodies = append(m.Bodies, d.decodeBodies(me.value)...)
		case "responses":
			m.Responses = append(m.Responses, d.decodeResponses(me.value)...)
		case "is":
			m.isRefs = append(m.isRefs, d.templateRefs(me.value)...)
			m.Is = refNames(m.isRefs)
		case "securedBy":
			m.SecuredBy = d.securedNames(me.value)
		case "protocols", "queryString", "usage":
			// accepted but not rendered by the themes
		default:
			if strings.HasPrefix(me.key, "(") {
				continue
			}
			d.addError(me.keyRef.warningf(CodeInvalidStructure, "unknown property %q on method %s", me.key, m.Name))
		}
	}
}

func (d *decoder) decodeResponses(v valueNode) []*Response {
	var out []*Response
	for _, re := range d.mapping(v) {
		resp := &Response{Code: re.key, src: re.keyRef}
		for _, fe := range d.mapping(re.value) {
			switch fe.key {
			case "description":
				resp.Description = d.strOrEmpty(fe.value)
			case "headers":
				resp.Headers = d.decodeNamedParameters(fe.value)
			case "body":
				resp.Bodies = d.decodeBodies(fe.value)
			default:
				if strings.HasPrefix(fe.key, "(") {
					continue
				}
				d.addError(fe.keyRef.warningf(CodeInvalidStructure, "unknown property %q on response %s", fe.key, re.key))
			}
		}
		out = append(out, resp)
	}
	return out
}

// decodeBodies handles both body spellings: a map of media types, or facets
// directly under body with the media type taken from the API default.
func (d *decoder) decodeBodies(v valueNode) []*Body {
	entries := d.mapping(v)
	if len(entries) > 0 && strings.Contains(entries[0].key, "/") {
		var bodies []*Body
		for _, be := range entries {
			if !strings.Contains(be.key, "/") {
				d.addError(be.keyRef.warningf(CodeInvalidStructure, "expected a media type, got %q", be.key))
				continue
			}
			bodies = append(bodies, d.decodeBody(be.key, be.value, be.keyRef))
		}
		return bodies
	}
	if isNull(d.resolve(v)) {
		return nil
	}
	return []*Body{d.decodeBody(d.defaultMediaType(), v, d.ref(v))}
}

func (d *decoder) decodeBody(mediaType string, v valueNode, at sourceRef) *Body {
	b := &Body{MediaType: mediaType, src: at}
	b.Type = d.decodeType("", v)
	if b.Type != nil {
		b.Schema = b.Type.Schema
	}
	return b
}

func (d *decoder) defaultMediaType() string {
	if d.api != nil && len(d.api.MediaType) > 0 {
		return d.api.MediaType[0]
	}
	return "application/json"
}

// decodeType decodes a type declaration in any of its forms: a bare type
// expression, an included fragment, or a map of facets.
func (d *decoder) decodeType(name string, v valueNode) *TypeDecl {
	v = d.resolve(v)
	if isNull(v) {
		if name == "" {
			return nil
		}
		return &TypeDecl{Name: name, Type: "string", src: d.ref(v)}
	}

	if s, ok := d.str(v); ok {
		t := &TypeDecl{Name: name, src: d.ref(v)}
		if looksLikeSchema(s) {
			t.Type = "object"
			t.Schema = s
		} else {
			t.Type = s
		}
		return t
	}

	if els := d.sequence(v); els != nil {
		names := make([]string, 0, len(els))
		for _, el := range els {
			if s, ok := d.str(el); ok && s != "" {
				names = append(names, s)
			}
		}
		return &TypeDecl{Name: name, Type: strings.Join(names, ", "), src: d.ref(v)}
	}

	t := &TypeDecl{Name: name, src: d.ref(v)}
	var base *TypeDecl
	for _, te := range d.mapping(v) {
		switch te.key {
		case "type":
			inner := d.resolve(te.value)
			if d.isMapping(inner) {
				// an included fragment used as the base declaration
				base = d.decodeType("", inner)
			} else {
				t.Type = d.typeExpression(te.value)
			}
		case "displayName":
			t.DisplayName = d.strOrEmpty(te.value)
		case "description":
			t.Description = d.strOrEmpty(te.value)
		case "properties":
			for _, pe := range d.mapping(te.value) {
				t.Properties = append(t.Properties, d.decodeProperty(pe))
			}
		case "items":
			t.Items = d.decodeType("", te.value)
		case "enum":
			for _, el := range d.sequence(te.value) {
				t.Enum = append(t.Enum, d.generic(el))
			}
		case "pattern":
			t.Pattern = d.strOrEmpty(te.value)
		case "minLength":
			if n, ok := d.intValue(te.value); ok {
				t.MinLength = &n
			}
		case "maxLength":
			if n, ok := d.intValue(te.value); ok {
				t.MaxLength = &n
			}
		case "minimum":
			if f, ok := d.floatValue(te.value); ok {
				t.Minimum = &f
			}
		case "maximum":
			if f, ok := d.floatValue(te.value); ok {
				t.Maximum = &f
			}
		case "default":
			t.Default = d.generic(te.value)
		case "example":
			t.Example = d.decodeExample("", te.value)
		case "examples":
			for _, xe := range d.mapping(te.value) {
				t.Examples = append(t.Examples, d.decodeExample(xe.key, xe.value))
			}
		case "schema":
			t.Schema = d.strOrEmpty(te.value)
		case "required", "facets", "xml", "additionalProperties", "discriminator",
			"discriminatorValue", "uniqueItems", "minItems", "maxItems", "format",
			"multipleOf", "fileTypes", "usage":
			// accepted facets the model does not carry
		default:
			// annotations and vendor keys pass through silently
		}
	}
	if base != nil {
		mergeTypeDefaults(t, base)
	}
	if t.Type == "" {
		switch {
		case len(t.Properties) > 0:
			t.Type = "object"
		case t.Items != nil:
			t.Type = "array"
		case t.Schema != "":
			t.Type = "object"
		default:
			t.Type = "string"
		}
	}
	return t
}

// typeExpression reads the type facet: a name, or a list of parents for
// multiple inheritance.
func (d *decoder) typeExpression(v valueNode) string {
	if els := d.sequence(v); els != nil {
		names := make([]string, 0, len(els))
		for _, el := range els {
			if s, ok := d.str(el); ok && s != "" {
				names = append(names, s)
			}
		}
		return strings.Join(names, ", ")
	}
	return d.strOrEmpty(v)
}

func (d *decoder) decodeProperty(pe mappingEntry) *TypeProperty {
	name, optional := strings.CutSuffix(pe.key, "?")
	p := &TypeProperty{Name: name, Required: !optional}
	for _, f := range d.mapping(pe.value) {
		if f.key == "required" {
			p.Required = d.boolValue(f.value, p.Required)
		}
	}
	p.Type = d.decodeType("", pe.value)
	if p.Type == nil {
		p.Type = &TypeDecl{Type: "string"}
	}
	return p
}

func (d *decoder) decodeNamedParameters(v valueNode) []*NamedParameter {
	var out []*NamedParameter
	for _, pe := range d.mapping(v) {
		name, optional := strings.CutSuffix(pe.key, "?")
		p := &NamedParameter{Name: name, Required: !optional, src: pe.keyRef}
		for _, f := range d.mapping(pe.value) {
			if f.key == "required" {
				p.Required = d.boolValue(f.value, p.Required)
			}
		}
		p.Type = d.decodeType("", pe.value)
		if p.Type == nil {
			p.Type = &TypeDecl{Type: "string"}
		}
		out = append(out, p)
	}
	return out
}

// decodeExample reads either a bare example value or the named form with a
// value facet.
func (d *decoder) decodeExample(name string, v valueNode) *Example {
	v = d.resolve(v)
	ex := &Example{Name: name, src: d.ref(v)}
	for _, e := range d.mapping(v) {
		if e.key == "value" {
			ex.Value = d.generic(e.value)
			return ex
		}
	}
	ex.Value = d.generic(v)
	return ex
}

func (d *decoder) decodeSecurityScheme(name string, v valueNode) *SecurityScheme {
	s := &SecurityScheme{Name: name, src: d.ref(v)}
	for _, e := range d.mapping(v) {
		switch e.key {
		case "type":
			s.Type = d.strOrEmpty(e.value)
		case "description":
			s.Description = d.strOrEmpty(e.value)
		case "describedBy":
			s.DescribedBy, _ = d.generic(e.value).(map[string]any)
		case "settings":
			s.Settings, _ = d.generic(e.value).(map[string]any)
		}
	}
	return s
}

func (d *decoder) decodeDocumentation(v valueNode) []DocumentationItem {
	var out []DocumentationItem
	for _, el := range d.sequence(v) {
		item := DocumentationItem{}
		for _, e := range d.mapping(el) {
			switch e.key {
			case "title":
				item.Title = d.strOrEmpty(e.value)
			case "content":
				item.Content = d.strOrEmpty(e.value)
			}
		}
		out = append(out, item)
	}
	return out
}

// securedNames reads a securedBy list. Null entries mean unsecured access
// and carry no name.
func (d *decoder) securedNames(v valueNode) []string {
	var out []string
	els := d.sequence(v)
	if els == nil {
		els = []valueNode{v}
	}
	for _, el := range els {
		el = d.resolve(el)
		if isNull(el) {
			continue
		}
		if entries := d.mapping(el); len(entries) > 0 {
			out = append(out, entries[0].key)
			continue
		}
		if s, ok := d.str(el); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// isMethodKey reports whether key declares a method, including the optional
// "?" spelling used in resource types and miscased names that validation
// flags afterwards.
func isMethodKey(key string) bool {
	name := strings.ToLower(strings.TrimSuffix(key, "?"))
	for _, m := range constants.KnownMethods {
		if name == m {
			return true
		}
	}
	return name == "trace" || name == "connect"
}

func looksLikeSchema(s string) bool {
	t := strings.TrimSpace(s)
	return strings.HasPrefix(t, "{") || strings.HasPrefix(t, "<")
}

func upperAll(ss []string) []string {
	for i, s := range ss {
		ss[i] = strings.ToUpper(s)
	}
	return ss
}

// finishAPI fills display defaults after templates have been applied, so a
// resource type's displayName still wins over the fallback.
func finishAPI(api *API) {
	for _, r := range api.AllResources() {
		if r.DisplayName == "" {
			r.DisplayName = r.RelativeURI
		}
	}
}

// mergeTypeDefaults fills facets dst leaves empty from an inherited base
// declaration.
func mergeTypeDefaults(dst, src *TypeDecl) {
	if dst.Type == "" {
		dst.Type = src.Type
	}
	if dst.Description == "" {
		dst.Description = src.Description
	}
	if dst.DisplayName == "" {
		dst.DisplayName = src.DisplayName
	}
	if len(dst.Properties) == 0 {
		dst.Properties = src.Properties
	} else {
		dst.Properties = mergeProperties(dst.Properties, src.Properties)
	}
	if dst.Items == nil {
		dst.Items = src.Items
	}
	if len(dst.Enum) == 0 {
		dst.Enum = src.Enum
	}
	if dst.Pattern == "" {
		dst.Pattern = src.Pattern
	}
	if dst.MinLength == nil {
		dst.MinLength = src.MinLength
	}
	if dst.MaxLength == nil {
		dst.MaxLength = src.MaxLength
	}
	if dst.Minimum == nil {
		dst.Minimum = src.Minimum
	}
	if dst.Maximum == nil {
		dst.Maximum = src.Maximum
	}
	if dst.Default == nil {
		dst.Default = src.Default
	}
	if dst.Example == nil {
		dst.Example = src.Example
	}
	if len(dst.Examples) == 0 {
		dst.Examples = src.Examples
	}
	if dst.Schema == "" {
		dst.Schema = src.Schema
	}
}

// mergeProperties keeps dst's declarations and appends base properties dst
// does not redeclare, preserving both declaration orders.
func mergeProperties(dst, base []*TypeProperty) []*TypeProperty {
	have := make(map[string]bool, len(dst))
	for _, p := range dst {
		have[p.Name] = true
	}
	for _, p := range base {
		if !have[p.Name] {
			dst = append(dst, p)
		}
	}
	return dst
}
