package raml

import (
	"fmt"
	"strings"
)

// templateRef is one reference to a trait or resource type, possibly with
// arguments: `is: [paged: {size: 10}]`.
type templateRef struct {
	name string
	args map[string]any
	src  sourceRef
}

func refNames(refs []templateRef) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		if r.name != "" {
			out = append(out, r.name)
		}
	}
	return out
}

// templateRefs decodes an is: list. Each element is a name or a single-pair
// map of name to arguments.
func (d *decoder) templateRefs(v valueNode) []templateRef {
	var out []templateRef
	els := d.sequence(v)
	if els == nil {
		els = []valueNode{v}
	}
	for _, el := range els {
		if ref := d.oneTemplateRef(el); ref.name != "" {
			out = append(out, ref)
		}
	}
	return out
}

func (d *decoder) oneTemplateRef(v valueNode) templateRef {
	v = d.resolve(v)
	if entries := d.mapping(v); len(entries) > 0 {
		args, _ := d.generic(entries[0].value).(map[string]any)
		return templateRef{name: entries[0].key, args: args, src: entries[0].keyRef}
	}
	return templateRef{name: d.strOrEmpty(v), src: d.ref(v)}
}

// applyResourceTemplates expands resource type and trait references across
// the tree. Keys declared on the resource or method always win over keys a
// template provides.
func (d *decoder) applyResourceTemplates(api *API) {
	for _, r := range api.AllResources() {
		d.applyResourceType(api, r, r.typeRef, nil)
		for _, m := range r.Methods {
			refs := make([]templateRef, 0, len(m.isRefs)+len(r.isRefs))
			refs = append(refs, m.isRefs...)
			refs = append(refs, r.isRefs...)
			for _, ref := range refs {
				d.applyTrait(api, r, m, ref)
			}
		}
	}
}

func (d *decoder) applyResourceType(api *API, r *Resource, ref *templateRef, seen []string) {
	if ref == nil || ref.name == "" {
		return
	}
	for _, name := range seen {
		if name == ref.name {
			d.addError(ref.src.errorf(CodeUnresolvedResType, "resource type %s inherits from itself", ref.name))
			return
		}
	}
	body, ok := api.resourceTypes[ref.name]
	if !ok {
		d.addError(ref.src.errorf(CodeUnresolvedResType, "resource type %s is not declared", ref.name))
		return
	}
	overlay, parent := d.decodeTemplateResource(r, *ref, body)
	mergeResource(r, overlay)
	d.applyResourceType(api, r, parent, append(seen, ref.name))
}

// decodeTemplateResource decodes a resource type body against a concrete
// resource, expanding template parameters as it goes. The second return is
// the type's own parent reference, if it declares one.
func (d *decoder) decodeTemplateResource(r *Resource, ref templateRef, body valueNode) (*Resource, *templateRef) {
	savedSubst, savedTmpl := d.subst, d.inTemplate
	d.inTemplate = true
	d.subst = templateParams(r, "", ref.args)
	defer func() { d.subst, d.inTemplate = savedSubst, savedTmpl }()

	overlay := &Resource{}
	var parent *templateRef
	for _, e := range d.mapping(body) {
		switch {
		case e.key == "usage":
			// template documentation, not part of the rendered API
		case e.key == "type":
			if p := d.oneTemplateRef(e.value); p.name != "" {
				parent = &p
			}
		case e.key == "displayName":
			overlay.DisplayName = d.strOrEmpty(e.value)
		case e.key == "description":
			overlay.Description = d.strOrEmpty(e.value)
		case e.key == "uriParameters":
			overlay.URIParameters = d.decodeNamedParameters(e.value)
		case e.key == "is":
			overlay.isRefs = d.templateRefs(e.value)
		case e.key == "securedBy":
			overlay.SecuredBy = d.securedNames(e.value)
		case isMethodKey(e.key):
			d.subst = templateParams(r, strings.ToLower(strings.TrimSuffix(e.key, "?")), ref.args)
			overlay.Methods = append(overlay.Methods, d.decodeMethod(e))
			d.subst = templateParams(r, "", ref.args)
		case strings.HasPrefix(e.key, "("):
		default:
			// keys a parameter expansion did not produce pass silently;
			// templates are looser than live resources
		}
	}
	return overlay, parent
}

func (d *decoder) applyTrait(api *API, r *Resource, m *Method, ref templateRef) {
	if ref.name == "" {
		return
	}
	body, ok := api.traits[ref.name]
	if !ok {
		d.addError(ref.src.errorf(CodeUnresolvedTrait, "trait %s is not declared", ref.name))
		return
	}

	savedSubst, savedTmpl := d.subst, d.inTemplate
	d.inTemplate = true
	d.subst = templateParams(r, m.Name, ref.args)
	overlay := &Method{Name: m.Name}
	d.decodeMethodEntries(overlay, d.mapping(body))
	d.subst, d.inTemplate = savedSubst, savedTmpl

	mergeMethod(m, overlay)
}

// templateParams builds the substitution map for one template application,
// including the reserved parameters RAML defines.
func templateParams(r *Resource, methodName string, args map[string]any) map[string]string {
	params := map[string]string{
		"resourcePath":     r.FullURI,
		"resourcePathName": resourcePathName(r),
	}
	if methodName != "" {
		params["methodName"] = methodName
	}
	for k, v := range args {
		params[k] = fmt.Sprintf("%v", v)
	}
	return params
}

// resourcePathName is the rightmost URI segment that is not a parameter.
func resourcePathName(r *Resource) string {
	segs := strings.Split(strings.TrimPrefix(r.FullURI, "/"), "/")
	for i := len(segs) - 1; i >= 0; i-- {
		if segs[i] != "" && !strings.Contains(segs[i], "{") {
			return segs[i]
		}
	}
	return ""
}

// substituteParams expands <<name>> references, applying the transform
// functions RAML allows after a pipe.
func substituteParams(s string, params map[string]string) string {
	if !strings.Contains(s, "<<") {
		return s
	}
	var b strings.Builder
	for {
		start := strings.Index(s, "<<")
		if start < 0 {
			b.WriteString(s)
			break
		}
		end := strings.Index(s[start:], ">>")
		if end < 0 {
			b.WriteString(s)
			break
		}
		b.WriteString(s[:start])
		b.WriteString(evalParamExpr(s[start+2:start+end], params))
		s = s[start+end+2:]
	}
	return b.String()
}

func evalParamExpr(expr string, params map[string]string) string {
	parts := strings.Split(expr, "|")
	val, ok := params[strings.TrimSpace(parts[0])]
	if !ok {
		// unknown parameters stay as written so the failure is visible in
		// the rendered output
		return "<<" + expr + ">>"
	}
	for _, fn := range parts[1:] {
		val = applyParamTransform(val, strings.TrimSpace(fn))
	}
	return val
}

func applyParamTransform(val, fn string) string {
	switch fn {
	case "!singularize":
		return singularize(val)
	case "!pluralize":
		return pluralize(val)
	case "!uppercase":
		return strings.ToUpper(val)
	case "!lowercase":
		return strings.ToLower(val)
	case "!uppercamelcase":
		return camelCase(val, true)
	case "!lowercamelcase":
		return camelCase(val, false)
	}
	return val
}

func singularize(s string) string {
	switch {
	case strings.HasSuffix(s, "ies"):
		return s[:len(s)-3] + "y"
	case strings.HasSuffix(s, "ses"):
		return s[:len(s)-2]
	case strings.HasSuffix(s, "s") && !strings.HasSuffix(s, "ss"):
		return s[:len(s)-1]
	}
	return s
}

func pluralize(s string) string {
	switch {
	case strings.HasSuffix(s, "y"):
		return s[:len(s)-1] + "ies"
	case strings.HasSuffix(s, "s"):
		return s + "es"
	}
	return s + "s"
}

func camelCase(s string, upperFirst bool) string {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return r == '-' || r == '_' || r == ' ' || r == '/'
	})
	var b strings.Builder
	for i, w := range words {
		if i == 0 && !upperFirst {
			b.WriteString(strings.ToLower(w))
			continue
		}
		b.WriteString(strings.ToUpper(w[:1]))
		b.WriteString(w[1:])
	}
	return b.String()
}

// mergeResource folds a template overlay into a live resource. Everything
// the resource declares itself stays untouched.
func mergeResource(dst, src *Resource) {
	if dst.DisplayName == "" {
		dst.DisplayName = src.DisplayName
	}
	if dst.Description == "" {
		dst.Description = src.Description
	}
	dst.URIParameters = mergeParams(dst.URIParameters, src.URIParameters)
	if len(dst.SecuredBy) == 0 {
		dst.SecuredBy = src.SecuredBy
	}
	dst.isRefs = append(dst.isRefs, src.isRefs...)
	dst.Is = refNames(dst.isRefs)

	for _, sm := range src.Methods {
		dm := findMethod(dst.Methods, sm.Name)
		if dm == nil {
			if sm.optional {
				continue
			}
			sm.optional = false
			dst.Methods = append(dst.Methods, sm)
			continue
		}
		mergeMethod(dm, sm)
	}
}

// mergeMethod folds a trait or template method overlay into a declared
// method, filling only what the method itself leaves open.
func mergeMethod(dst, src *Method) {
	if dst.DisplayName == "" {
		dst.DisplayName = src.DisplayName
	}
	if dst.Description == "" {
		dst.Description = src.Description
	}
	dst.QueryParameters = mergeParams(dst.QueryParameters, src.QueryParameters)
	dst.Headers = mergeParams(dst.Headers, src.Headers)
	if len(dst.SecuredBy) == 0 {
		dst.SecuredBy = src.SecuredBy
	}

	for _, sb := range src.Bodies {
		if db := findBody(dst.Bodies, sb.MediaType); db == nil {
			dst.Bodies = append(dst.Bodies, sb)
		} else {
			if db.Type == nil {
				db.Type = sb.Type
			}
			if db.Schema == "" {
				db.Schema = sb.Schema
			}
		}
	}

	for _, sr := range src.Responses {
		dr := findResponse(dst.Responses, sr.Code)
		if dr == nil {
			dst.Responses = append(dst.Responses, sr)
			continue
		}
		if dr.Description == "" {
			dr.Description = sr.Description
		}
		dr.Headers = mergeParams(dr.Headers, sr.Headers)
		for _, sb := range sr.Bodies {
			if findBody(dr.Bodies, sb.MediaType) == nil {
				dr.Bodies = append(dr.Bodies, sb)
			}
		}
	}
}

func mergeParams(dst, src []*NamedParameter) []*NamedParameter {
	have := make(map[string]bool, len(dst))
	for _, p := range dst {
		have[p.Name] = true
	}
	for _, p := range src {
		if !have[p.Name] {
			dst = append(dst, p)
		}
	}
	return dst
}

func findMethod(ms []*Method, name string) *Method {
	for _, m := range ms {
		if m.Name == name {
			return m
		}
	}
	return nil
}

func findBody(bs []*Body, mediaType string) *Body {
	for _, b := range bs {
		if b.MediaType == mediaType {
			return b
		}
	}
	return nil
}

func findResponse(rs []*Response, code string) *Response {
	for _, r := range rs {
		if r.Code == code {
			return r
		}
	}
	return nil
}
