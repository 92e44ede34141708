package agentcli

import (
	"encoding/json"
	"strings"
)

// ExtractJSON pulls a JSON document out of CLI output that may be preceded
// by banner text (the CLI prints doctor warnings before its JSON payload).
// It tries the whole output first, then re-parses from each line that opens
// a JSON structure.
func ExtractJSON(stdout string) (json.RawMessage, bool) {
	s := strings.TrimSpace(stdout)
	if json.Valid([]byte(s)) {
		return json.RawMessage(s), true
	}

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		stripped := strings.TrimLeft(line, " \t")
		if !strings.HasPrefix(stripped, "{") && !strings.HasPrefix(stripped, "[") {
			continue
		}
		candidate := strings.TrimSpace(strings.Join(lines[i:], "\n"))
		if json.Valid([]byte(candidate)) {
			return json.RawMessage(candidate), true
		}
	}
	return nil, false
}
