package raml

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml/ast"
	"github.com/goccy/go-yaml/token"
)

// valueNode pairs an AST node with the document it came from, so values
// spliced in through !include keep their own source coordinates. A non-YAML
// include carries its text in raw and keeps the include site's node for
// positions.
type valueNode struct {
	node ast.Node
	doc  *document
	raw  *string
}

// decoder walks AST values into the typed model, resolving includes through
// the loader and collecting diagnostics as it goes. While a trait or
// resource type body is being decoded, subst holds the template parameters
// and every decoded string passes through parameter expansion.
type decoder struct {
	loader     *loader
	api        *API
	errs       ErrorList
	subst      map[string]string
	inTemplate bool
}

func (d *decoder) addError(e ParserError) {
	d.errs = append(d.errs, e)
}

// ref builds the source reference for a value.
func (d *decoder) ref(v valueNode) sourceRef {
	ref := sourceRef{}
	if v.doc != nil {
		ref.path = v.doc.rel
	}
	if v.node != nil {
		if tok := v.node.GetToken(); tok != nil && tok.Position != nil {
			ref.rng = tokenRange(tok)
		}
	}
	return ref
}

// tokenRange converts a token position into a Range, estimating the end
// column from the token text for single-line scalars.
func tokenRange(tok *token.Token) *Range {
	r := &Range{Start: Position{Line: tok.Position.Line, Column: tok.Position.Column}}
	if tok.Value != "" && !strings.Contains(tok.Value, "\n") {
		r.End = &Position{Line: tok.Position.Line, Column: tok.Position.Column + len(tok.Value) - 1}
	}
	return r
}

// resolve unwraps anchors and splices !include targets. The returned value
// is never itself a tag or anchor node.
func (d *decoder) resolve(v valueNode) valueNode {
	for {
		switch n := v.node.(type) {
		case *ast.AnchorNode:
			v.node = n.Value
		case *ast.TagNode:
			if n.Start != nil && n.Start.Value == "!include" {
				return d.resolveInclude(v, n)
			}
			v.node = n.Value
		default:
			return v
		}
	}
}

func (d *decoder) resolveInclude(v valueNode, tag *ast.TagNode) valueNode {
	at := d.ref(v)
	target := ""
	if s, ok := scalarString(tag.Value); ok {
		target = s
	}
	if target == "" {
		d.addError(at.errorf(CodeIncludeNotFound, "!include needs a file path"))
		return valueNode{doc: v.doc}
	}

	doc, raw, perr := d.loader.include(v.doc, target, at)
	if perr != nil {
		d.addError(*perr)
		return valueNode{doc: v.doc}
	}
	if doc != nil {
		return d.resolve(valueNode{node: doc.body, doc: doc})
	}
	return valueNode{node: v.node, doc: v.doc, raw: &raw}
}

// mappingEntry is one key/value pair of a mapping, with the key's own
// source reference for key-anchored diagnostics.
type mappingEntry struct {
	key    string
	keyRef sourceRef
	value  valueNode
}

// mapping returns the entries of a mapping value in source order, or nil if
// the value is not a mapping. goccy yields a bare MappingValueNode for
// single-pair mappings, so both shapes are handled.
func (d *decoder) mapping(v valueNode) []mappingEntry {
	v = d.resolve(v)
	switch n := v.node.(type) {
	case *ast.MappingNode:
		entries := make([]mappingEntry, 0, len(n.Values))
		for _, mv := range n.Values {
			entries = append(entries, d.entry(mv, v.doc))
		}
		return entries
	case *ast.MappingValueNode:
		return []mappingEntry{d.entry(n, v.doc)}
	}
	return nil
}

func (d *decoder) entry(mv *ast.MappingValueNode, doc *document) mappingEntry {
	keyVal := valueNode{node: mv.Key, doc: doc}
	key, _ := scalarString(mv.Key)
	return mappingEntry{
		key:    d.expand(key),
		keyRef: d.ref(keyVal),
		value:  valueNode{node: mv.Value, doc: doc},
	}
}

// expand applies template parameter substitution when a trait or resource
// type body is being decoded.
func (d *decoder) expand(s string) string {
	if d.subst == nil {
		return s
	}
	return substituteParams(s, d.subst)
}

// sequence returns the elements of a sequence value, or nil if the value is
// not a sequence.
func (d *decoder) sequence(v valueNode) []valueNode {
	v = d.resolve(v)
	if n, ok := v.node.(*ast.SequenceNode); ok {
		out := make([]valueNode, 0, len(n.Values))
		for _, el := range n.Values {
			out = append(out, valueNode{node: el, doc: v.doc})
		}
		return out
	}
	return nil
}

// str returns the scalar string form of a value. Includes of non-YAML files
// read as their file contents. Collections are not strings.
func (d *decoder) str(v valueNode) (string, bool) {
	v = d.resolve(v)
	if v.raw != nil {
		return d.expand(*v.raw), true
	}
	switch v.node.(type) {
	case *ast.MappingNode, *ast.MappingValueNode, *ast.SequenceNode:
		return "", false
	}
	s, ok := scalarString(v.node)
	if !ok {
		return "", false
	}
	return d.expand(s), true
}

func (d *decoder) strOrEmpty(v valueNode) string {
	s, _ := d.str(v)
	return s
}

// stringSlice accepts either a scalar or a sequence of scalars, the two
// spellings RAML allows for list-valued facets like protocols and securedBy.
func (d *decoder) stringSlice(v valueNode) []string {
	if els := d.sequence(v); els != nil {
		out := make([]string, 0, len(els))
		for _, el := range els {
			if s, ok := d.str(el); ok {
				out = append(out, s)
			}
		}
		return out
	}
	if s, ok := d.str(v); ok && s != "" {
		return []string{s}
	}
	return nil
}

func (d *decoder) boolValue(v valueNode, fallback bool) bool {
	v = d.resolve(v)
	if n, ok := v.node.(*ast.BoolNode); ok {
		return n.Value
	}
	if s, ok := d.str(v); ok {
		switch strings.ToLower(s) {
		case "true":
			return true
		case "false":
			return false
		}
	}
	return fallback
}

// generic converts a subtree into plain Go values (map[string]any, []any,
// scalars), resolving includes along the way. Trait bodies, annotations,
// settings, and example values travel in this form.
func (d *decoder) generic(v valueNode) any {
	v = d.resolve(v)
	if v.raw != nil {
		return *v.raw
	}
	switch n := v.node.(type) {
	case *ast.MappingNode, *ast.MappingValueNode:
		out := make(map[string]any)
		for _, e := range d.mapping(v) {
			out[e.key] = d.generic(e.value)
		}
		return out
	case *ast.SequenceNode:
		out := make([]any, 0, len(n.Values))
		for _, el := range d.sequence(v) {
			out = append(out, d.generic(el))
		}
		return out
	case *ast.IntegerNode:
		return normalizeInt(n.Value)
	case *ast.FloatNode:
		return n.Value
	case *ast.BoolNode:
		return n.Value
	case *ast.NullNode:
		return nil
	case nil:
		return nil
	default:
		if s, ok := d.str(v); ok {
			return s
		}
		return nil
	}
}

// scalarString extracts the string form of a scalar node.
func scalarString(n ast.Node) (string, bool) {
	switch node := n.(type) {
	case *ast.StringNode:
		return node.Value, true
	case *ast.LiteralNode:
		if node.Value != nil {
			return node.Value.Value, true
		}
		return "", true
	case *ast.IntegerNode:
		return fmt.Sprintf("%v", node.Value), true
	case *ast.FloatNode:
		return fmt.Sprintf("%v", node.Value), true
	case *ast.BoolNode:
		return fmt.Sprintf("%t", node.Value), true
	case *ast.NullNode:
		return "", true
	case *ast.MappingKeyNode:
		return scalarString(node.Value)
	case *ast.AnchorNode:
		return scalarString(node.Value)
	case nil:
		return "", false
	default:
		if tok := n.GetToken(); tok != nil {
			return tok.Value, true
		}
		return "", false
	}
}

// normalizeInt folds the uint64/int64 split goccy uses for integers into a
// plain int64 where it fits, keeping JSON round-trips predictable.
func normalizeInt(v any) any {
	if u, ok := v.(uint64); ok {
		if u <= 1<<62 {
			return int64(u)
		}
	}
	return v
}

// isMapping reports whether the resolved value is a mapping.
func (d *decoder) isMapping(v valueNode) bool {
	v = d.resolve(v)
	switch v.node.(type) {
	case *ast.MappingNode, *ast.MappingValueNode:
		return true
	}
	return false
}

// isNull reports whether the resolved value carries no content at all.
func isNull(v valueNode) bool {
	if v.raw != nil {
		return false
	}
	if v.node == nil {
		return true
	}
	_, ok := v.node.(*ast.NullNode)
	return ok
}

func (d *decoder) intValue(v valueNode) (int, bool) {
	v = d.resolve(v)
	if n, ok := v.node.(*ast.IntegerNode); ok {
		switch x := n.Value.(type) {
		case int64:
			return int(x), true
		case uint64:
			return int(x), true
		case int:
			return x, true
		}
	}
	if s, ok := d.str(v); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func (d *decoder) floatValue(v valueNode) (float64, bool) {
	v = d.resolve(v)
	switch n := v.node.(type) {
	case *ast.FloatNode:
		return n.Value, true
	case *ast.IntegerNode:
		switch x := n.Value.(type) {
		case int64:
			return float64(x), true
		case uint64:
			return float64(x), true
		case int:
			return float64(x), true
		}
	}
	if s, ok := d.str(v); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
