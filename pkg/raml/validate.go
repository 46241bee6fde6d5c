package raml

import (
	"strings"

	"github.com/RazmikMkrtchyan/raml2html/pkg/constants"
)

// builtinTypes are the RAML 1.0 built-in type names a type expression may
// reference without declaring.
var builtinTypes = map[string]bool{
	"any": true, "object": true, "array": true, "union": true,
	"string": true, "number": true, "integer": true, "boolean": true,
	"date-only": true, "time-only": true, "datetime-only": true,
	"datetime": true, "date": true, "file": true, "nil": true, "null": true,
}

// Validate runs the structural checks on a parsed document and returns the
// diagnostics it finds. Parse already reports resolution failures; these
// checks cover what a structurally decodable document can still get wrong.
func Validate(api *API) ErrorList {
	if api == nil {
		return nil
	}
	v := &validator{api: api, used: map[string]bool{}}
	v.run()
	return v.errs
}

type validator struct {
	api  *API
	errs ErrorList
	used map[string]bool
}

func (v *validator) add(e ParserError) {
	v.errs = append(v.errs, e)
}

func (v *validator) run() {
	if v.api.Title == "" {
		v.add(v.api.src.warningf(CodeMissingTitle, "document has no title"))
	}

	for name, t := range v.api.Types {
		v.checkType(t, "type "+name)
	}
	v.checkParams(v.api.BaseURIParameters, "baseUriParameters")

	for _, r := range v.api.AllResources() {
		v.checkResource(r)
	}

	v.checkUnusedTypes()
}

func (v *validator) checkResource(r *Resource) {
	v.checkParams(r.URIParameters, "resource "+r.FullURI)
	v.checkDuplicateURIParams(r)

	for _, name := range r.SecuredBy {
		v.checkSecurityRef(name, r.src, "resource "+r.FullURI)
	}

	for _, m := range r.Methods {
		v.checkMethod(r, m)
	}
}

func (v *validator) checkMethod(r *Resource, m *Method) {
	if !knownMethod(m.Name) {
		msg := "unknown method " + m.Name + " on " + r.FullURI
		if knownMethod(strings.ToLower(m.Name)) {
			msg += ", method names are lowercase"
		}
		v.add(m.src.errorf(CodeUnknownMethod, "%s", msg))
	}

	where := strings.ToUpper(m.Name) + " " + r.FullURI
	v.checkParams(m.QueryParameters, where)
	v.checkParams(m.Headers, where)
	for _, b := range m.Bodies {
		v.checkBody(b, where)
	}
	for _, name := range m.SecuredBy {
		v.checkSecurityRef(name, m.src, where)
	}

	for _, resp := range m.Responses {
		if !validStatusCode(resp.Code) {
			v.add(resp.src.errorf(CodeInvalidStatusCode, "invalid status code %q on %s", resp.Code, where))
		}
		v.checkParams(resp.Headers, where)
		for _, b := range resp.Bodies {
			v.checkBody(b, where+" response "+resp.Code)
		}
	}
}

func (v *validator) checkBody(b *Body, where string) {
	if b.Type != nil {
		v.checkType(b.Type, where)
	}
}

func (v *validator) checkParams(params []*NamedParameter, where string) {
	seen := map[string]bool{}
	for _, p := range params {
		if seen[p.Name] {
			v.add(p.src.warningf(CodeDuplicateURIParam, "parameter %s declared twice in %s", p.Name, where))
		}
		seen[p.Name] = true
		if p.Type != nil {
			v.checkType(p.Type, where)
		}
	}
}

// checkDuplicateURIParams flags URI parameters redeclared by an ancestor
// resource, where the inner declaration silently shadows the outer one.
func (v *validator) checkDuplicateURIParams(r *Resource) {
	for _, p := range r.URIParameters {
		for anc := r.Parent; anc != nil; anc = anc.Parent {
			for _, ap := range anc.URIParameters {
				if ap.Name == p.Name {
					v.add(p.src.warningf(CodeDuplicateURIParam,
						"uri parameter %s on %s is already declared on %s", p.Name, r.FullURI, anc.FullURI))
				}
			}
		}
	}
}

// checkType validates a type declaration tree and records every named type
// reference for the unused-type sweep.
func (v *validator) checkType(t *TypeDecl, where string) {
	for _, name := range referencedTypeNames(t.Type) {
		v.used[name] = true
		if !builtinTypes[name] {
			if _, ok := v.api.Types[name]; !ok {
				v.add(t.src.errorf(CodeUnresolvedType, "type %s referenced by %s is not declared", name, where))
			}
		}
	}
	for _, p := range t.Properties {
		if p.Type != nil {
			v.checkType(p.Type, where)
		}
	}
	if t.Items != nil {
		v.checkType(t.Items, where)
	}
}

func (v *validator) checkSecurityRef(name string, at sourceRef, where string) {
	if _, ok := v.api.SecuritySchemes[name]; !ok {
		v.add(at.errorf(CodeInvalidStructure, "security scheme %s referenced by %s is not declared", name, where))
	}
}

func (v *validator) checkUnusedTypes() {
	for _, name := range v.api.TypeNames() {
		if !v.used[name] {
			v.add(v.api.Types[name].src.warningf(CodeUnusedType, "type %s is declared but never used", name))
		}
	}
}

// referencedTypeNames splits a type expression into the names it references.
// Unions, multiple inheritance, and array suffixes all reduce to their
// component names; inline schemas reference nothing.
func referencedTypeNames(expr string) []string {
	if expr == "" || looksLikeSchema(expr) {
		return nil
	}
	var names []string
	for _, part := range strings.FieldsFunc(expr, func(r rune) bool { return r == '|' || r == ',' }) {
		name := strings.TrimSpace(part)
		for strings.HasSuffix(name, "[]") {
			name = strings.TrimSpace(strings.TrimSuffix(name, "[]"))
		}
		name = strings.Trim(name, "()")
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

func knownMethod(name string) bool {
	for _, m := range constants.KnownMethods {
		if name == m {
			return true
		}
	}
	return false
}

func validStatusCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}
	return code[0] >= '1' && code[0] <= '5'
}
