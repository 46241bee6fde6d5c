package constants

// CLIName is the binary name used in user-facing output and usage text
const CLIName = "raml2html"

// DefaultTheme is the theme selected when neither --theme nor --template is given
const DefaultTheme = "default"

// ConfigFileName is the optional per-project defaults file looked up in the
// working directory
const ConfigFileName = "raml2html.toml"

// RAMLHeader is the comment line every RAML 1.0 root document must start with
const RAMLHeader = "#%RAML 1.0"

// KnownMethods contains the HTTP methods a RAML resource may declare.
// Lowercase, as the RAML 1.0 spec spells them; an optional trailing "?" marks
// trait/resourceType optional methods and is stripped before lookup.
var KnownMethods = []string{
	"get",
	"post",
	"put",
	"delete",
	"patch",
	"head",
	"options",
}
