package raml

import (
	"fmt"
	"strings"
)

// extractYAMLPosition pulls line and column information out of a YAML parse
// error. goccy/go-yaml prefixes its syntax errors with "[line:column] "
// followed by the message and an annotated source snippet; older-style
// "yaml: line N:" messages are handled as a fallback.
func extractYAMLPosition(err error) (line int, column int, message string) {
	errStr := err.Error()
	first := errStr
	if i := strings.IndexByte(first, '\n'); i >= 0 {
		first = first[:i]
	}

	if strings.HasPrefix(first, "[") {
		if close := strings.IndexByte(first, ']'); close > 0 {
			if _, scanErr := fmt.Sscanf(first[:close+1], "[%d:%d]", &line, &column); scanErr == nil {
				message = strings.TrimSpace(first[close+1:])
				if message == "" {
					message = "invalid YAML"
				}
				return line, column, message
			}
		}
	}

	if strings.Contains(first, "yaml: line ") {
		parts := strings.SplitN(first, "yaml: line ", 2)
		lineInfo := parts[1]
		if colonIndex := strings.IndexByte(lineInfo, ':'); colonIndex > 0 {
			if _, scanErr := fmt.Sscanf(lineInfo[:colonIndex], "%d", &line); scanErr == nil {
				message = strings.TrimSpace(lineInfo[colonIndex+1:])
				return line, 1, message
			}
		}
	}

	return 0, 0, first
}
