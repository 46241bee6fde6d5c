package raml

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/sourcegraph/conc/pool"
)

// exampleWorkers bounds the goroutines compiling and checking example
// schemas. Documents with hundreds of examples stay snappy without
// saturating small machines.
const exampleWorkers = 4

// ValidateExamples checks every example value in the document against the
// JSON schema derived from its declared type, or against the raw schema
// facet when one is given. Example problems are reported as warnings; a
// schema that itself does not compile is an error.
func ValidateExamples(api *API) ErrorList {
	if api == nil {
		return nil
	}
	cases := collectExampleCases(api)
	if len(cases) == 0 {
		return nil
	}

	p := pool.NewWithResults[ErrorList]().WithMaxGoroutines(exampleWorkers)
	for _, c := range cases {
		p.Go(func() ErrorList {
			return c.check(api)
		})
	}

	var out ErrorList
	for _, errs := range p.Wait() {
		out = append(out, errs...)
	}
	return out
}

// exampleCase is one example value paired with the declaration it must
// satisfy.
type exampleCase struct {
	typ    *TypeDecl
	schema string
	ex     *Example
	where  string
}

func collectExampleCases(api *API) []exampleCase {
	var cases []exampleCase

	addType := func(t *TypeDecl, schema, where string) {
		if t == nil {
			return
		}
		if t.Example != nil {
			cases = append(cases, exampleCase{typ: t, schema: schema, ex: t.Example, where: where})
		}
		for _, ex := range t.Examples {
			cases = append(cases, exampleCase{typ: t, schema: schema, ex: ex, where: where})
		}
	}
	addParams := func(params []*NamedParameter, where string) {
		for _, p := range params {
			if p.Type != nil {
				addType(p.Type, "", where+" parameter "+p.Name)
			}
		}
	}

	for _, name := range api.TypeNames() {
		addType(api.Types[name], "", "type "+name)
	}
	for _, r := range api.AllResources() {
		addParams(r.URIParameters, r.FullURI)
		for _, m := range r.Methods {
			where := strings.ToUpper(m.Name) + " " + r.FullURI
			addParams(m.QueryParameters, where)
			addParams(m.Headers, where)
			for _, b := range m.Bodies {
				addType(b.Type, b.Schema, where+" body "+b.MediaType)
			}
			for _, resp := range m.Responses {
				addParams(resp.Headers, where+" response "+resp.Code)
				for _, b := range resp.Bodies {
					addType(b.Type, b.Schema, where+" response "+resp.Code+" body "+b.MediaType)
				}
			}
		}
	}
	return cases
}

func (c exampleCase) check(api *API) ErrorList {
	value, perr := c.exampleValue()
	if perr != nil {
		return ErrorList{*perr}
	}
	if value == nil {
		return nil
	}

	var doc any
	if c.schema != "" {
		parsed, err := jsonschema.UnmarshalJSON(strings.NewReader(c.schema))
		if err != nil {
			return ErrorList{c.ex.src.errorf(CodeSchemaInvalid, "schema for %s is not valid JSON: %v", c.where, err)}
		}
		doc = parsed
	} else {
		doc = typeToSchema(c.typ, api.Types, nil)
	}

	sch, err := compileSchema(doc)
	if err != nil {
		return ErrorList{c.ex.src.errorf(CodeSchemaInvalid, "schema for %s does not compile: %v", c.where, err)}
	}
	if err := sch.Validate(value); err != nil {
		return ErrorList{c.ex.src.warningf(CodeExampleInvalid, "example%s for %s does not match its type: %v",
			exampleName(c.ex), c.where, compactValidationError(err))}
	}
	return nil
}

// exampleValue normalizes the example through a JSON round trip so numbers
// carry the representation the schema library expects. String examples that
// hold JSON text, typically from includes, are decoded first; XML and plain
// text examples are skipped.
func (c exampleCase) exampleValue() (any, *ParserError) {
	v := c.ex.Value
	if s, ok := v.(string); ok {
		t := strings.TrimSpace(s)
		if strings.HasPrefix(t, "<") {
			return nil, nil
		}
		if strings.HasPrefix(t, "{") || strings.HasPrefix(t, "[") {
			parsed, err := jsonschema.UnmarshalJSON(strings.NewReader(t))
			if err != nil {
				e := c.ex.src.warningf(CodeExampleInvalid, "example%s for %s is not valid JSON: %v", exampleName(c.ex), c.where, err)
				return nil, &e
			}
			return parsed, nil
		}
		if !typeExpectsJSON(c.typ, c.schema) {
			return s, nil
		}
	}
	if v == nil {
		return nil, nil
	}

	buf, err := json.Marshal(v)
	if err != nil {
		return nil, nil
	}
	parsed, err := jsonschema.UnmarshalJSON(bytes.NewReader(buf))
	if err != nil {
		return nil, nil
	}
	return parsed, nil
}

// typeExpectsJSON reports whether a plain string example should be decoded
// rather than validated as a string.
func typeExpectsJSON(t *TypeDecl, schema string) bool {
	if schema != "" {
		return true
	}
	if t == nil {
		return false
	}
	base := strings.TrimSpace(t.Type)
	return base == "object" || base == "array" || strings.HasSuffix(base, "[]")
}

func exampleName(ex *Example) string {
	if ex.Name == "" {
		return ""
	}
	return " " + ex.Name
}

func compileSchema(doc any) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("inline://example.json", doc); err != nil {
		return nil, err
	}
	return compiler.Compile("inline://example.json")
}

// compactValidationError flattens the library's multi-line cause tree into
// one line so it fits the diagnostic format.
func compactValidationError(err error) string {
	parts := strings.Split(err.Error(), "\n")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	s := strings.Join(parts, " ")
	if len(s) > 300 {
		s = s[:297] + "..."
	}
	return s
}

// typeToSchema translates a type declaration into a JSON schema document.
// Declared type references inline their target's schema; reference cycles
// fall back to an unconstrained schema.
func typeToSchema(t *TypeDecl, types map[string]*TypeDecl, seen map[string]bool) map[string]any {
	if t == nil {
		return map[string]any{}
	}
	if seen == nil {
		seen = map[string]bool{}
	}

	expr := strings.TrimSpace(t.Type)
	schema := exprToSchema(expr, types, seen)

	if len(t.Properties) > 0 {
		schema["type"] = "object"
		props := map[string]any{}
		var required []any
		for _, p := range t.Properties {
			props[p.Name] = typeToSchema(p.Type, types, seen)
			if p.Required {
				required = append(required, p.Name)
			}
		}
		schema["properties"] = props
		if len(required) > 0 {
			schema["required"] = required
		}
	}
	if t.Items != nil {
		schema["type"] = "array"
		schema["items"] = typeToSchema(t.Items, types, seen)
	}
	if len(t.Enum) > 0 {
		schema["enum"] = normalizeJSON(t.Enum)
	}
	if t.Pattern != "" {
		schema["pattern"] = t.Pattern
	}
	if t.MinLength != nil {
		schema["minLength"] = *t.MinLength
	}
	if t.MaxLength != nil {
		schema["maxLength"] = *t.MaxLength
	}
	if t.Minimum != nil {
		schema["minimum"] = *t.Minimum
	}
	if t.Maximum != nil {
		schema["maximum"] = *t.Maximum
	}
	return schema
}

func exprToSchema(expr string, types map[string]*TypeDecl, seen map[string]bool) map[string]any {
	switch {
	case expr == "" || expr == "any":
		return map[string]any{}
	case strings.Contains(expr, "|"):
		var anyOf []any
		for _, part := range strings.Split(expr, "|") {
			anyOf = append(anyOf, exprToSchema(strings.TrimSpace(part), types, seen))
		}
		return map[string]any{"anyOf": anyOf}
	case strings.Contains(expr, ","):
		var allOf []any
		for _, part := range strings.Split(expr, ",") {
			allOf = append(allOf, exprToSchema(strings.TrimSpace(part), types, seen))
		}
		return map[string]any{"allOf": allOf}
	case strings.HasSuffix(expr, "[]"):
		base := strings.TrimSpace(strings.TrimSuffix(expr, "[]"))
		return map[string]any{
			"type":  "array",
			"items": exprToSchema(base, types, seen),
		}
	}

	switch expr {
	case "string", "file":
		return map[string]any{"type": "string"}
	case "number":
		return map[string]any{"type": "number"}
	case "integer":
		return map[string]any{"type": "integer"}
	case "boolean":
		return map[string]any{"type": "boolean"}
	case "object":
		return map[string]any{"type": "object"}
	case "array":
		return map[string]any{"type": "array"}
	case "nil", "null":
		return map[string]any{"type": "null"}
	case "date-only", "time-only", "datetime-only", "datetime", "date":
		return map[string]any{"type": "string"}
	}

	if target, ok := types[strings.Trim(expr, "()")]; ok {
		name := strings.Trim(expr, "()")
		if seen[name] {
			return map[string]any{}
		}
		seen[name] = true
		sub := typeToSchema(target, types, seen)
		delete(seen, name)
		return sub
	}
	// undeclared names already produce a resolution diagnostic, stay
	// permissive here
	return map[string]any{}
}

// normalizeJSON rewrites decoded YAML values into shapes the schema library
// compares correctly, mainly integer widths.
func normalizeJSON(v any) any {
	switch x := v.(type) {
	case []any:
		out := make([]any, len(x))
		for i, el := range x {
			out[i] = normalizeJSON(el)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, el := range x {
			out[k] = normalizeJSON(el)
		}
		return out
	case int:
		return json.Number(fmt.Sprintf("%d", x))
	case int64:
		return json.Number(fmt.Sprintf("%d", x))
	case uint64:
		return json.Number(fmt.Sprintf("%d", x))
	case float64:
		return json.Number(fmt.Sprintf("%v", x))
	default:
		return v
	}
}
