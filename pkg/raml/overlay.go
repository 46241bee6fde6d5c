package raml

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ParseWithExtensions parses the root document and applies each extension or
// overlay file on top, in command line order. Traits and resource types are
// expanded only after every file is merged, so an extension can still add or
// reference templates.
func ParseWithExtensions(path string, extras []string) (*API, ErrorList) {
	ld := newLoader(filepath.Dir(path))
	doc, errs := ld.loadRoot(path)
	if doc == nil {
		return nil, errs
	}
	d := &decoder{loader: ld, errs: errs}
	api := d.decodeAPI(valueNode{node: doc.body, doc: doc})
	if api == nil {
		return nil, d.errs.dedupe()
	}
	for _, extra := range extras {
		d.applyExtensionFile(api, doc.abs, extra)
	}
	d.applyResourceTemplates(api)
	finishAPI(api)
	return api, d.errs.dedupe()
}

func (d *decoder) applyExtensionFile(api *API, rootAbs, path string) {
	doc, perr := d.loader.loadAux(path)
	if perr != nil {
		d.addError(*perr)
		return
	}

	var overlay bool
	switch doc.fragment {
	case "Extension":
	case "Overlay":
		overlay = true
	default:
		d.addError(ParserError{
			Code:    CodeInvalidExtension,
			Message: fmt.Sprintf("%s is not an extension or overlay, expected a #%%RAML 1.0 Extension or Overlay header", path),
			Path:    doc.rel,
			Range:   &Range{Start: Position{Line: 1, Column: 1}},
		})
		return
	}
	if doc.body == nil {
		d.addError(ParserError{
			Code:    CodeEmptyDocument,
			Message: "document contains no content",
			Path:    doc.rel,
			Range:   &Range{Start: Position{Line: 1, Column: 1}},
		})
		return
	}

	ext, extends := d.decodeExtensionAPI(valueNode{node: doc.body, doc: doc})
	if ext == nil {
		return
	}
	code := CodeInvalidExtension
	if overlay {
		code = CodeInvalidOverlay
	}
	if extends == "" {
		d.addError(ParserError{
			Code:    code,
			Message: "missing extends property naming the extended document",
			Path:    doc.rel,
			Range:   &Range{Start: Position{Line: 1, Column: 1}},
		})
	} else if target, err := filepath.Abs(filepath.Join(filepath.Dir(doc.abs), extends)); err == nil && target != rootAbs {
		d.addError(ParserError{
			Code:      code,
			Message:   fmt.Sprintf("extends %s, not the document being processed", extends),
			Path:      doc.rel,
			IsWarning: true,
		})
	}

	if overlay {
		d.mergeOverlay(api, ext, doc.rel)
	} else {
		mergeExtension(api, ext)
	}
}

// decodeExtensionAPI decodes an extension or overlay body with the same
// section handling as the root document, peeling off the extends property.
func (d *decoder) decodeExtensionAPI(root valueNode) (*API, string) {
	entries := d.mapping(root)
	if entries == nil {
		d.addError(d.ref(root).errorf(CodeInvalidStructure, "document root must be a map"))
		return nil, ""
	}
	ext := &API{
		Types:           map[string]*TypeDecl{},
		SecuritySchemes: map[string]*SecurityScheme{},
		traits:          map[string]valueNode{},
		resourceTypes:   map[string]valueNode{},
		src:             d.ref(root),
	}
	saved := d.api
	d.api = ext
	defer func() { d.api = saved }()

	extends := ""
	for _, e := range entries {
		switch {
		case e.key == "extends":
			extends = d.strOrEmpty(e.value)
		case strings.HasPrefix(e.key, "/"):
		default:
			d.decodeAPIEntry(ext, e)
		}
	}
	for _, e := range entries {
		if strings.HasPrefix(e.key, "/") {
			ext.Resources = append(ext.Resources, d.decodeResource(e, nil))
		}
	}
	return ext, extends
}

// mergeExtension folds an extension into the base document. The extension
// wins wherever both declare a value.
func mergeExtension(base, ext *API) {
	if ext.Title != "" {
		base.Title = ext.Title
	}
	if ext.Description != "" {
		base.Description = ext.Description
	}
	if ext.Version != "" {
		base.Version = ext.Version
	}
	if ext.BaseURI != "" {
		base.BaseURI = ext.BaseURI
	}
	if len(ext.Protocols) > 0 {
		base.Protocols = ext.Protocols
	}
	if len(ext.MediaType) > 0 {
		base.MediaType = ext.MediaType
	}
	if len(ext.SecuredBy) > 0 {
		base.SecuredBy = ext.SecuredBy
	}
	base.Documentation = append(base.Documentation, ext.Documentation...)
	base.BaseURIParameters = replaceParams(base.BaseURIParameters, ext.BaseURIParameters)
	for name, t := range ext.Types {
		base.Types[name] = t
	}
	for name, s := range ext.SecuritySchemes {
		base.SecuritySchemes[name] = s
	}
	for name, v := range ext.traits {
		base.traits[name] = v
	}
	for name, v := range ext.resourceTypes {
		base.resourceTypes[name] = v
	}
	mergeResourceListExt(&base.Resources, ext.Resources, nil)
}

func mergeResourceListExt(dst *[]*Resource, src []*Resource, parent *Resource) {
	for _, sr := range src {
		dr := findResource(*dst, sr.RelativeURI)
		if dr == nil {
			sr.Parent = parent
			*dst = append(*dst, sr)
			continue
		}
		mergeResourceExt(dr, sr)
	}
}

func mergeResourceExt(dst, src *Resource) {
	if src.DisplayName != "" {
		dst.DisplayName = src.DisplayName
	}
	if src.Description != "" {
		dst.Description = src.Description
	}
	if src.typeRef != nil {
		dst.typeRef = src.typeRef
		dst.Type = src.Type
	}
	dst.isRefs = append(dst.isRefs, src.isRefs...)
	dst.Is = refNames(dst.isRefs)
	if len(src.SecuredBy) > 0 {
		dst.SecuredBy = src.SecuredBy
	}
	dst.URIParameters = replaceParams(dst.URIParameters, src.URIParameters)
	for _, sm := range src.Methods {
		dm := findMethod(dst.Methods, sm.Name)
		if dm == nil {
			dst.Methods = append(dst.Methods, sm)
			continue
		}
		mergeMethodExt(dm, sm)
	}
	mergeResourceListExt(&dst.Children, src.Children, dst)
}

func mergeMethodExt(dst, src *Method) {
	if src.DisplayName != "" {
		dst.DisplayName = src.DisplayName
	}
	if src.Description != "" {
		dst.Description = src.Description
	}
	dst.isRefs = append(dst.isRefs, src.isRefs...)
	dst.Is = refNames(dst.isRefs)
	if len(src.SecuredBy) > 0 {
		dst.SecuredBy = src.SecuredBy
	}
	dst.QueryParameters = replaceParams(dst.QueryParameters, src.QueryParameters)
	dst.Headers = replaceParams(dst.Headers, src.Headers)
	for _, sb := range src.Bodies {
		if db := findBody(dst.Bodies, sb.MediaType); db == nil {
			dst.Bodies = append(dst.Bodies, sb)
		} else {
			*db = *sb
		}
	}
	for _, sr := range src.Responses {
		dr := findResponse(dst.Responses, sr.Code)
		if dr == nil {
			dst.Responses = append(dst.Responses, sr)
			continue
		}
		if sr.Description != "" {
			dr.Description = sr.Description
		}
		dr.Headers = replaceParams(dr.Headers, sr.Headers)
		for _, sb := range sr.Bodies {
			if db := findBody(dr.Bodies, sb.MediaType); db == nil {
				dr.Bodies = append(dr.Bodies, sb)
			} else {
				*db = *sb
			}
		}
	}
}

// replaceParams keeps dst's order, replacing any parameter src redeclares
// and appending the rest.
func replaceParams(dst, src []*NamedParameter) []*NamedParameter {
	for _, sp := range src {
		replaced := false
		for i, dp := range dst {
			if dp.Name == sp.Name {
				dst[i] = sp
				replaced = true
				break
			}
		}
		if !replaced {
			dst = append(dst, sp)
		}
	}
	return dst
}

func findResource(rs []*Resource, relativeURI string) *Resource {
	for _, r := range rs {
		if r.RelativeURI == relativeURI {
			return r
		}
	}
	return nil
}

// mergeOverlay folds an overlay into the base document. Overlays may only
// touch descriptive surface: titles, display names, descriptions,
// documentation, and examples. Anything structural is rejected.
func (d *decoder) mergeOverlay(base, ext *API, docRel string) {
	invalid := func(format string, args ...any) {
		d.addError(ParserError{
			Code:    CodeInvalidOverlay,
			Message: fmt.Sprintf(format, args...),
			Path:    docRel,
		})
	}

	if ext.Title != "" {
		base.Title = ext.Title
	}
	if ext.Description != "" {
		base.Description = ext.Description
	}
	if len(ext.Documentation) > 0 {
		base.Documentation = ext.Documentation
	}
	if ext.Version != "" || ext.BaseURI != "" || len(ext.Protocols) > 0 || len(ext.MediaType) > 0 || len(ext.SecuredBy) > 0 {
		invalid("an overlay cannot change version, baseUri, protocols, mediaType, or securedBy")
	}

	for name, et := range ext.Types {
		bt, ok := base.Types[name]
		if !ok {
			// new types are allowed, they only feed documentation
			base.Types[name] = et
			continue
		}
		if overlayTypeChangesStructure(bt, et) {
			invalid("overlay changes more than descriptive facets of type %s", name)
			continue
		}
		overlayType(bt, et)
	}

	for _, er := range ext.Resources {
		br := findResource(base.Resources, er.RelativeURI)
		if br == nil {
			invalid("an overlay cannot add resource %s", er.FullURI)
			continue
		}
		d.overlayResource(br, er, invalid)
	}
}

func (d *decoder) overlayResource(base, ext *Resource, invalid func(string, ...any)) {
	if ext.DisplayName != "" {
		base.DisplayName = ext.DisplayName
	}
	if ext.Description != "" {
		base.Description = ext.Description
	}
	if ext.typeRef != nil || len(ext.isRefs) > 0 || len(ext.SecuredBy) > 0 || len(ext.URIParameters) > 0 {
		invalid("overlay changes more than descriptive facets of resource %s", base.FullURI)
	}
	for _, em := range ext.Methods {
		bm := findMethod(base.Methods, em.Name)
		if bm == nil {
			invalid("an overlay cannot add method %s to %s", em.Name, base.FullURI)
			continue
		}
		overlayMethod(bm, em, base.FullURI, invalid)
	}
	for _, ec := range ext.Children {
		bc := findResource(base.Children, ec.RelativeURI)
		if bc == nil {
			invalid("an overlay cannot add resource %s", ec.FullURI)
			continue
		}
		d.overlayResource(bc, ec, invalid)
	}
}

func overlayMethod(base, ext *Method, uri string, invalid func(string, ...any)) {
	if ext.DisplayName != "" {
		base.DisplayName = ext.DisplayName
	}
	if ext.Description != "" {
		base.Description = ext.Description
	}
	if len(ext.isRefs) > 0 || len(ext.SecuredBy) > 0 || len(ext.QueryParameters) > 0 || len(ext.Headers) > 0 {
		invalid("overlay changes more than descriptive facets of %s %s", strings.ToUpper(ext.Name), uri)
	}
	for _, eb := range ext.Bodies {
		bb := findBody(base.Bodies, eb.MediaType)
		if bb == nil {
			invalid("an overlay cannot add a %s body to %s %s", eb.MediaType, strings.ToUpper(ext.Name), uri)
			continue
		}
		overlayBody(bb, eb)
	}
	for _, er := range ext.Responses {
		br := findResponse(base.Responses, er.Code)
		if br == nil {
			invalid("an overlay cannot add response %s to %s %s", er.Code, strings.ToUpper(ext.Name), uri)
			continue
		}
		if er.Description != "" {
			br.Description = er.Description
		}
		for _, eb := range er.Bodies {
			if bb := findBody(br.Bodies, eb.MediaType); bb != nil {
				overlayBody(bb, eb)
			}
		}
	}
}

// overlayBody carries example updates over, the one body-level change an
// overlay may make.
func overlayBody(base, ext *Body) {
	if ext.Type == nil {
		return
	}
	if base.Type == nil {
		base.Type = &TypeDecl{Type: "any"}
	}
	if ext.Type.Example != nil {
		base.Type.Example = ext.Type.Example
	}
	if len(ext.Type.Examples) > 0 {
		base.Type.Examples = ext.Type.Examples
	}
	if ext.Type.Description != "" {
		base.Type.Description = ext.Type.Description
	}
}

// overlayTypeChangesStructure reports whether an overlay's type declaration
// reaches beyond descriptive facets. Restating the base type is fine.
func overlayTypeChangesStructure(base, t *TypeDecl) bool {
	return len(t.Properties) > 0 || t.Items != nil || len(t.Enum) > 0 ||
		t.Pattern != "" || t.MinLength != nil || t.MaxLength != nil ||
		t.Minimum != nil || t.Maximum != nil || t.Schema != "" ||
		(t.Type != "" && t.Type != "string" && t.Type != base.Type)
}

func overlayType(base, ext *TypeDecl) {
	if ext.DisplayName != "" {
		base.DisplayName = ext.DisplayName
	}
	if ext.Description != "" {
		base.Description = ext.Description
	}
	if ext.Example != nil {
		base.Example = ext.Example
	}
	if len(ext.Examples) > 0 {
		base.Examples = ext.Examples
	}
}
