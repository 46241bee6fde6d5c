package raml

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// writeTree creates a temporary directory holding the given files and returns
// its path. Keys may contain subdirectories.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Failed to create directory for %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to create test file %s: %v", name, err)
		}
	}
	return dir
}

func countCode(errs ErrorList, code string) int {
	n := 0
	for _, e := range errs {
		if e.Code == code {
			n++
		}
	}
	return n
}

func firstWithCode(t *testing.T, errs ErrorList, code string) ParserError {
	t.Helper()
	for _, e := range errs {
		if e.Code == code {
			return e
		}
	}
	t.Fatalf("Expected a %s diagnostic, got: %v", code, errs)
	return ParserError{}
}

func mustParse(t *testing.T, files map[string]string, root string) *API {
	t.Helper()
	dir := writeTree(t, files)
	api, errs := Parse(filepath.Join(dir, root))
	if len(errs) != 0 {
		t.Fatalf("Unexpected diagnostics: %v", errs)
	}
	if api == nil {
		t.Fatal("Expected a parsed API, got nil")
	}
	return api
}

func TestParseMinimalDocument(t *testing.T) {
	api := mustParse(t, map[string]string{
		"api.raml": `#%RAML 1.0
title: World Music API
version: v1
baseUri: https://example.com/{version}
mediaType: application/json
protocols: [http, https]
`,
	}, "api.raml")

	if api.Title != "World Music API" {
		t.Errorf("Expected title %q, got %q", "World Music API", api.Title)
	}
	if api.Version != "v1" {
		t.Errorf("Expected version v1, got %q", api.Version)
	}
	if api.BaseURI != "https://example.com/{version}" {
		t.Errorf("Unexpected baseUri: %q", api.BaseURI)
	}
	if len(api.MediaType) != 1 || api.MediaType[0] != "application/json" {
		t.Errorf("Unexpected mediaType: %v", api.MediaType)
	}
	if len(api.Protocols) != 2 || api.Protocols[0] != "HTTP" || api.Protocols[1] != "HTTPS" {
		t.Errorf("Expected protocols uppercased, got %v", api.Protocols)
	}
}

func TestParseResourceTree(t *testing.T) {
	api := mustParse(t, map[string]string{
		"api.raml": `#%RAML 1.0
title: Songs
/songs:
  displayName: Songs
  get:
    description: List songs
  post:
    description: Add a song
  /{songId}:
    uriParameters:
      songId:
        type: string
    get:
      description: One song
`,
	}, "api.raml")

	if len(api.Resources) != 1 {
		t.Fatalf("Expected 1 top-level resource, got %d", len(api.Resources))
	}
	songs := api.Resources[0]
	if songs.RelativeURI != "/songs" || songs.FullURI != "/songs" {
		t.Errorf("Unexpected URIs: %q %q", songs.RelativeURI, songs.FullURI)
	}
	if songs.DisplayName != "Songs" {
		t.Errorf("Expected displayName Songs, got %q", songs.DisplayName)
	}
	if len(songs.Methods) != 2 {
		t.Fatalf("Expected 2 methods, got %d", len(songs.Methods))
	}
	if songs.Methods[0].Name != "get" || songs.Methods[1].Name != "post" {
		t.Errorf("Unexpected method order: %s, %s", songs.Methods[0].Name, songs.Methods[1].Name)
	}

	if len(songs.Children) != 1 {
		t.Fatalf("Expected 1 child resource, got %d", len(songs.Children))
	}
	song := songs.Children[0]
	if song.FullURI != "/songs/{songId}" {
		t.Errorf("Expected child full URI /songs/{songId}, got %q", song.FullURI)
	}
	if song.Parent != songs {
		t.Error("Expected child to point back at its parent")
	}
	// no displayName declared, the relative URI stands in
	if song.DisplayName != "/{songId}" {
		t.Errorf("Expected displayName fallback /{songId}, got %q", song.DisplayName)
	}
	if len(song.URIParameters) != 1 || song.URIParameters[0].Name != "songId" {
		t.Errorf("Unexpected uriParameters: %v", song.URIParameters)
	}

	all := api.AllResources()
	if len(all) != 2 {
		t.Errorf("Expected AllResources to list 2 resources, got %d", len(all))
	}
}

func TestParseMethodDetails(t *testing.T) {
	api := mustParse(t, map[string]string{
		"api.raml": `#%RAML 1.0
title: Songs
mediaType: application/json
/songs:
  get:
    queryParameters:
      page?:
        type: integer
      query:
        description: free text search
    headers:
      X-Request-Id:
        type: string
    responses:
      200:
        description: A list of songs
        body:
          type: array
      404:
        description: Not found
  post:
    body:
      application/json:
        type: object
      text/plain:
`,
	}, "api.raml")

	get := api.Resources[0].Methods[0]
	if len(get.QueryParameters) != 2 {
		t.Fatalf("Expected 2 query parameters, got %d", len(get.QueryParameters))
	}
	page := get.QueryParameters[0]
	if page.Name != "page" || page.Required {
		t.Errorf("Expected optional parameter page, got %q required=%v", page.Name, page.Required)
	}
	if page.Type == nil || page.Type.Type != "integer" {
		t.Errorf("Expected page to be an integer, got %+v", page.Type)
	}
	query := get.QueryParameters[1]
	if !query.Required {
		t.Error("Expected query to be required without the ? suffix")
	}
	if len(get.Headers) != 1 || get.Headers[0].Name != "X-Request-Id" {
		t.Errorf("Unexpected headers: %v", get.Headers)
	}

	if len(get.Responses) != 2 {
		t.Fatalf("Expected 2 responses, got %d", len(get.Responses))
	}
	ok := get.Responses[0]
	if ok.Code != "200" || ok.Description != "A list of songs" {
		t.Errorf("Unexpected response: %+v", ok)
	}
	if len(ok.Bodies) != 1 || ok.Bodies[0].MediaType != "application/json" {
		t.Errorf("Expected the default media type on the shorthand body, got %v", ok.Bodies)
	}

	post := api.Resources[0].Methods[1]
	if len(post.Bodies) != 2 {
		t.Fatalf("Expected 2 bodies, got %d", len(post.Bodies))
	}
	if post.Bodies[0].MediaType != "application/json" || post.Bodies[1].MediaType != "text/plain" {
		t.Errorf("Unexpected body media types: %s, %s", post.Bodies[0].MediaType, post.Bodies[1].MediaType)
	}
	if post.Bodies[1].Type != nil {
		t.Errorf("Expected the empty text/plain body to have no type, got %+v", post.Bodies[1].Type)
	}
}

func TestParseTypes(t *testing.T) {
	api := mustParse(t, map[string]string{
		"api.raml": `#%RAML 1.0
title: Songs
types:
  Song:
    type: object
    properties:
      title:
        type: string
        minLength: 1
      duration?: number
      tags:
        type: string[]
  Rating:
    type: integer
    minimum: 0
    maximum: 5
  Genre:
    type: string
    enum: [rock, pop, jazz]
  Playlist:
    type: array
    items: Song
  Untyped:
`,
	}, "api.raml")

	song := api.Types["Song"]
	if song == nil || song.Type != "object" {
		t.Fatalf("Expected Song object type, got %+v", song)
	}
	if len(song.Properties) != 3 {
		t.Fatalf("Expected 3 properties, got %d", len(song.Properties))
	}
	title := song.Properties[0]
	if title.Name != "title" || !title.Required || title.Type.Type != "string" {
		t.Errorf("Unexpected title property: %+v", title)
	}
	if title.Type.MinLength == nil || *title.Type.MinLength != 1 {
		t.Errorf("Expected minLength 1, got %v", title.Type.MinLength)
	}
	duration := song.Properties[1]
	if duration.Name != "duration" || duration.Required {
		t.Errorf("Expected optional duration, got %+v", duration)
	}
	if song.Properties[2].Type.Type != "string[]" {
		t.Errorf("Expected string[] type expression, got %q", song.Properties[2].Type.Type)
	}

	rating := api.Types["Rating"]
	if rating.Minimum == nil || *rating.Minimum != 0 || rating.Maximum == nil || *rating.Maximum != 5 {
		t.Errorf("Unexpected Rating bounds: %v %v", rating.Minimum, rating.Maximum)
	}

	genre := api.Types["Genre"]
	if len(genre.Enum) != 3 || genre.Enum[0] != "rock" {
		t.Errorf("Unexpected enum: %v", genre.Enum)
	}

	playlist := api.Types["Playlist"]
	if playlist.Type != "array" || playlist.Items == nil || playlist.Items.Type != "Song" {
		t.Errorf("Unexpected Playlist: %+v", playlist)
	}

	if untyped := api.Types["Untyped"]; untyped == nil || untyped.Type != "string" {
		t.Errorf("Expected an empty declaration to default to string, got %+v", untyped)
	}
}

func TestParseTypeDefaulting(t *testing.T) {
	api := mustParse(t, map[string]string{
		"api.raml": `#%RAML 1.0
title: Songs
types:
  Implicit:
    properties:
      name: string
`,
	}, "api.raml")

	if got := api.Types["Implicit"].Type; got != "object" {
		t.Errorf("Expected properties to imply object, got %q", got)
	}
}

func TestParseDocumentationAndSecurity(t *testing.T) {
	api := mustParse(t, map[string]string{
		"api.raml": `#%RAML 1.0
title: Songs
documentation:
  - title: Getting Started
    content: |
      Welcome to the songs API.
  - title: Legal
    content: All rights reserved.
securitySchemes:
  oauth_2_0:
    type: OAuth 2.0
    description: OAuth 2.0 for production use.
    settings:
      authorizationUri: https://example.com/oauth/authorize
      accessTokenUri: https://example.com/oauth/token
securedBy: [oauth_2_0, null]
/songs:
  get:
    securedBy: [oauth_2_0]
`,
	}, "api.raml")

	if len(api.Documentation) != 2 {
		t.Fatalf("Expected 2 documentation items, got %d", len(api.Documentation))
	}
	if api.Documentation[0].Title != "Getting Started" {
		t.Errorf("Unexpected documentation title: %q", api.Documentation[0].Title)
	}
	if !strings.Contains(api.Documentation[0].Content, "Welcome") {
		t.Errorf("Unexpected documentation content: %q", api.Documentation[0].Content)
	}

	scheme := api.SecuritySchemes["oauth_2_0"]
	if scheme == nil || scheme.Type != "OAuth 2.0" {
		t.Fatalf("Unexpected security scheme: %+v", scheme)
	}
	if scheme.Settings["authorizationUri"] != "https://example.com/oauth/authorize" {
		t.Errorf("Unexpected settings: %v", scheme.Settings)
	}

	// the null entry means unsecured access and carries no name
	if len(api.SecuredBy) != 1 || api.SecuredBy[0] != "oauth_2_0" {
		t.Errorf("Unexpected securedBy: %v", api.SecuredBy)
	}
	if got := api.Resources[0].Methods[0].SecuredBy; len(got) != 1 || got[0] != "oauth_2_0" {
		t.Errorf("Unexpected method securedBy: %v", got)
	}
}

func TestParseWarnings(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"api.raml": `#%RAML 1.0
title: Songs
uses:
  lib: library.raml
bogusProperty: nope
(custom): annotation values pass silently
/songs:
  get:
`,
	})

	api, errs := Parse(filepath.Join(dir, "api.raml"))
	if api == nil {
		t.Fatal("Expected an API despite warnings")
	}
	if errs.HasErrors() {
		t.Fatalf("Expected warnings only, got errors: %v", errs)
	}

	uses := firstWithCode(t, errs, CodeUnsupportedFragment)
	if !uses.IsWarning {
		t.Error("Expected the uses diagnostic to be a warning")
	}
	if !strings.Contains(uses.Message, "library imports") {
		t.Errorf("Unexpected uses message: %q", uses.Message)
	}

	unknown := firstWithCode(t, errs, CodeInvalidStructure)
	if !strings.Contains(unknown.Message, `"bogusProperty"`) {
		t.Errorf("Unexpected unknown-property message: %q", unknown.Message)
	}
	if unknown.Path != "api.raml" {
		t.Errorf("Expected path api.raml, got %q", unknown.Path)
	}
	if unknown.Range == nil || unknown.Range.Start.Line != 5 {
		t.Errorf("Expected the diagnostic to point at line 5, got %+v", unknown.Range)
	}

	// the annotation key must not produce a diagnostic
	for _, e := range errs {
		if strings.Contains(e.Message, "custom") {
			t.Errorf("Annotation key leaked a diagnostic: %v", e)
		}
	}
}

func TestParseRootErrors(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		code     string
		contains string
	}{
		{
			name:     "missing header",
			content:  "title: Songs\n",
			code:     CodeInvalidHeader,
			contains: "missing #%RAML 1.0 header",
		},
		{
			name:     "wrong version",
			content:  "#%RAML 0.8\ntitle: Songs\n",
			code:     CodeInvalidHeader,
			contains: `unsupported RAML version "0.8"`,
		},
		{
			name:     "fragment at root",
			content:  "#%RAML 1.0 DataType\ntype: object\n",
			code:     CodeUnsupportedFragment,
			contains: "cannot be rendered directly",
		},
		{
			name:     "empty document",
			content:  "#%RAML 1.0\n",
			code:     CodeEmptyDocument,
			contains: "no content",
		},
		{
			name:     "root is a sequence",
			content:  "#%RAML 1.0\n- not\n- a\n- map\n",
			code:     CodeInvalidStructure,
			contains: "root must be a map",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeTree(t, map[string]string{"api.raml": tt.content})
			api, errs := Parse(filepath.Join(dir, "api.raml"))
			if api != nil {
				t.Error("Expected no API for an unparseable document")
			}
			e := firstWithCode(t, errs, tt.code)
			if !strings.Contains(e.Message, tt.contains) {
				t.Errorf("Expected message containing %q, got %q", tt.contains, e.Message)
			}
			if e.Path != "api.raml" {
				t.Errorf("Expected path api.raml, got %q", e.Path)
			}
		})
	}
}

func TestParseMissingFile(t *testing.T) {
	dir := t.TempDir()
	api, errs := Parse(filepath.Join(dir, "absent.raml"))
	if api != nil {
		t.Error("Expected no API for a missing file")
	}
	e := firstWithCode(t, errs, CodeYAMLParse)
	if !strings.Contains(e.Message, "cannot read") {
		t.Errorf("Unexpected message: %q", e.Message)
	}
}

func TestParseYAMLSyntaxError(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"api.raml": "#%RAML 1.0\ntitle: Songs\n  bad:\n indent\n",
	})
	api, errs := Parse(filepath.Join(dir, "api.raml"))
	if api != nil {
		t.Error("Expected no API for invalid YAML")
	}
	e := firstWithCode(t, errs, CodeYAMLParse)
	if e.Path != "api.raml" {
		t.Errorf("Expected path api.raml, got %q", e.Path)
	}
}

func TestParseIncludes(t *testing.T) {
	api := mustParse(t, map[string]string{
		"api.raml": `#%RAML 1.0
title: Songs
types:
  Song: !include types/song.raml
/songs:
  post:
    body:
      application/json: !include schemas/song.json
  get:
    description: !include docs/listing.md
`,
		"types/song.raml": `#%RAML 1.0 DataType
type: object
properties:
  title: string
`,
		"schemas/song.json": `{"type": "object", "required": ["title"]}`,
		"docs/listing.md":   "Returns every known song.\n",
	}, "api.raml")

	song := api.Types["Song"]
	if song == nil || song.Type != "object" || len(song.Properties) != 1 {
		t.Fatalf("Included type fragment not decoded: %+v", song)
	}

	post := api.Resources[0].Methods[0]
	if len(post.Bodies) != 1 {
		t.Fatalf("Expected 1 body, got %d", len(post.Bodies))
	}
	body := post.Bodies[0]
	if !strings.Contains(body.Schema, `"required"`) {
		t.Errorf("Expected the JSON include to land in the schema facet, got %q", body.Schema)
	}
	if body.Type == nil || body.Type.Type != "object" {
		t.Errorf("Expected an inline schema body to read as object, got %+v", body.Type)
	}

	get := api.Resources[0].Methods[1]
	if !strings.Contains(get.Description, "every known song") {
		t.Errorf("Markdown include not spliced into description: %q", get.Description)
	}
}

func TestParseIncludeNotFound(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"api.raml": `#%RAML 1.0
title: Songs
types:
  Song: !include missing.raml
`,
	})
	api, errs := Parse(filepath.Join(dir, "api.raml"))
	if api == nil {
		t.Fatal("Expected a partial API")
	}
	e := firstWithCode(t, errs, CodeIncludeNotFound)
	if !strings.Contains(e.Message, "missing.raml") {
		t.Errorf("Unexpected message: %q", e.Message)
	}
	if e.Path != "api.raml" {
		t.Errorf("Expected the include site path, got %q", e.Path)
	}
	if e.Range == nil || e.Range.Start.Line != 4 {
		t.Errorf("Expected the include site line 4, got %+v", e.Range)
	}
}

func TestParseIncludeParseFailureCarriesTrace(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"api.raml": `#%RAML 1.0
title: Songs
types:
  Song: !include bad.raml
`,
		"bad.raml": "key: [unclosed\n",
	})
	_, errs := Parse(filepath.Join(dir, "api.raml"))
	e := firstWithCode(t, errs, CodeIncludeNotFound)
	if !strings.Contains(e.Message, "cannot parse include bad.raml") {
		t.Errorf("Unexpected message: %q", e.Message)
	}
	if len(e.Trace) != 1 {
		t.Fatalf("Expected the inner parse failure as a trace entry, got %v", e.Trace)
	}
	if e.Trace[0].Code != CodeYAMLParse {
		t.Errorf("Expected a YAML_PARSE trace entry, got %q", e.Trace[0].Code)
	}
	if e.Trace[0].Path != "bad.raml" {
		t.Errorf("Expected the trace to point into bad.raml, got %q", e.Trace[0].Path)
	}
}

func TestParseIncludeCycle(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"api.raml": `#%RAML 1.0
title: Songs
types:
  A: !include b.raml
`,
		"b.raml": "type: object\nproperties:\n  back: !include api.raml\n",
	})
	_, errs := Parse(filepath.Join(dir, "api.raml"))
	e := firstWithCode(t, errs, CodeIncludeCycle)
	if !strings.Contains(e.Message, "already being included") {
		t.Errorf("Unexpected message: %q", e.Message)
	}
}

func TestParseIncludeDepthLimit(t *testing.T) {
	files := map[string]string{
		"api.raml": `#%RAML 1.0
title: Songs
types:
  T: !include t1.raml
`,
	}
	for i := 1; i <= 10; i++ {
		files["t"+strconv.Itoa(i)+".raml"] = "type: !include t" + strconv.Itoa(i+1) + ".raml\n"
	}
	dir := writeTree(t, files)
	_, errs := Parse(filepath.Join(dir, "api.raml"))
	e := firstWithCode(t, errs, CodeIncludeDepth)
	if !strings.Contains(e.Message, "exceeds 10 levels") {
		t.Errorf("Unexpected message: %q", e.Message)
	}
}

func TestIsMethodKey(t *testing.T) {
	tests := []struct {
		key      string
		expected bool
	}{
		{"get", true},
		{"post", true},
		{"delete", true},
		{"get?", true},
		{"GET", true},
		{"trace", true},
		{"connect", true},
		{"description", false},
		{"getter", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isMethodKey(tt.key); got != tt.expected {
			t.Errorf("isMethodKey(%q) = %v, expected %v", tt.key, got, tt.expected)
		}
	}
}

func TestLooksLikeSchema(t *testing.T) {
	tests := []struct {
		value    string
		expected bool
	}{
		{`{"type": "object"}`, true},
		{"  {\n}", true},
		{"<xs:schema/>", true},
		{"Song", false},
		{"string | integer", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := looksLikeSchema(tt.value); got != tt.expected {
			t.Errorf("looksLikeSchema(%q) = %v, expected %v", tt.value, got, tt.expected)
		}
	}
}
