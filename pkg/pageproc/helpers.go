package pageproc

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"time"
)

func marshalOrEmpty(v any) ([]byte, error) {
	return json.Marshal(v)
}

// parseRawExtraction extracts the first {...} region from a kvp/anon
// model response and decodes it into a RawExtraction, matching
// jsonRegionPattern's use in ParseKeyValueDocument — kvp and anon
// units use the same parser, per spec.md §6's "same parser as kvp".
func parseRawExtraction(rawOutput string) (*RawExtraction, *DiagnosticDocument) {
	match := jsonRegionPattern.FindString(rawOutput)
	if match == "" {
		return nil, &DiagnosticDocument{Error: "no valid json", RawOutput: rawOutput}
	}
	var extraction RawExtraction
	if err := json.Unmarshal([]byte(match), &extraction); err != nil {
		return nil, &DiagnosticDocument{Error: "invalid json", RawOutput: rawOutput, Message: err.Error()}
	}
	return &extraction, nil
}

// renderKVPHTML builds the kvp format's primary artifact: a simple
// categorized key/value table, the html rendering spec.md §4.5.3 names
// as the kvp handler's primary artifact (the full normalized document
// is persisted alongside as the side JSON artifact).
func renderKVPHTML(n NormalizedExtraction) string {
	var body strings.Builder
	fmt.Fprintf(&body, "<h1>%s</h1>\n", html.EscapeString(n.DocumentType))

	for _, category := range fieldCategories {
		fields := n.Fields[category]
		if len(fields) == 0 {
			continue
		}
		fmt.Fprintf(&body, "<h2>%s</h2>\n<table>\n", html.EscapeString(category))
		for _, f := range fields {
			fmt.Fprintf(&body, "<tr><td>%s</td><td>%s</td></tr>\n",
				html.EscapeString(f.VisibleKey), html.EscapeString(f.Value))
		}
		body.WriteString("</table>\n")
	}

	if len(n.LineItems) > 0 {
		body.WriteString("<h2>line_items</h2>\n<table>\n")
		for _, item := range n.LineItems {
			fmt.Fprintf(&body, "<tr><td>%v</td></tr>\n", item)
		}
		body.WriteString("</table>\n")
	}

	return fmt.Sprintf("<!DOCTYPE html>\n<html><head><meta charset=\"UTF-8\"></head><body>\n%s</body></html>", body.String())
}

// processEntropySeed seeds the anon package's synthetic-value
// generator when a caller doesn't supply a deterministic source. It
// is the one place in this package allowed to read wall-clock time
// for non-deterministic purposes (seeding, not stamping an artifact).
func processEntropySeed() int64 {
	return time.Now().UnixNano()
}
