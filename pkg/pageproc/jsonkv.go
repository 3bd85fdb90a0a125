package pageproc

import (
	"encoding/json"
	"regexp"
)

// jsonRegionPattern finds the first/only top-level {...} region in a
// model response, matching page_processor.py's
// re.search(r"\{.*\}", output_text, re.DOTALL).
var jsonRegionPattern = regexp.MustCompile(`(?s)\{.*\}`)

// DiagnosticDocument is the soft-failure artifact substituted for the
// expected JSON shape when the model's output fails to parse
// (spec.md §4.4, error kind 3). The unit containing it still
// completes — format produced, content degraded.
type DiagnosticDocument struct {
	Error      string `json:"error"`
	RawOutput  string `json:"raw_output"`
	PageNumber int    `json:"page_number"`
	Message    string `json:"message,omitempty"`
}

// ExtractedPair is one key/value extraction from a kv-extraction
// prompt response.
type ExtractedPair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// KeyValueDocument is the expected shape of a json-format unit's
// result, per spec.md §4.4.
type KeyValueDocument struct {
	DocumentType   string           `json:"document_type"`
	ExtractedPairs []ExtractedPair  `json:"extracted_pairs"`
}

// ParseKeyValueDocument extracts the first {...} region from rawOutput
// and parses it as a KeyValueDocument. On any failure it returns a
// DiagnosticDocument instead — the caller always has a value to
// serialize; there is no error return because a parse failure here is
// never a unit failure (spec.md error kind 3).
func ParseKeyValueDocument(rawOutput string, pageNumber int) (*KeyValueDocument, *DiagnosticDocument) {
	match := jsonRegionPattern.FindString(rawOutput)
	if match == "" {
		return nil, &DiagnosticDocument{
			Error:      "no valid json",
			RawOutput:  rawOutput,
			PageNumber: pageNumber,
		}
	}

	var doc KeyValueDocument
	if err := json.Unmarshal([]byte(match), &doc); err != nil {
		return nil, &DiagnosticDocument{
			Error:      "invalid json",
			RawOutput:  rawOutput,
			PageNumber: pageNumber,
			Message:    err.Error(),
		}
	}
	return &doc, nil
}
