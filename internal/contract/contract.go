// Package contract implements strict parsing of the JSON "contract" objects
// the Provider is instructed to return for every cascade step: no markdown
// fences, no surrounding prose tolerated beyond a single best-effort
// brace-balanced extraction, and exact required-field validation per
// contract name.
//
// Grounded on the original source's core/contracts.py: extract_text_from_
// response, parse_json_strict (with its `(?s)(\{.*\})` regex fallback), and
// validate_paths.
package contract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Name identifies one of the fixed set of contract shapes a cascade step may
// emit.
type Name string

const (
	A0IngestAck  Name = "A0_INGEST_ACK"
	A1Plan       Name = "A1_PLAN"
	A2Structure  Name = "A2_STRUCTURE"
	A3File       Name = "A3_FILE"
	B1Plan       Name = "B1_PLAN"
	B2Structure  Name = "B2_STRUCTURE"
	B3File       Name = "B3_FILE"
	CFilesAll    Name = "C_FILES_ALL"
)

// Error reports why a contract failed to parse or validate — the Go
// analogue of the original ContractError.
type Error struct {
	Contract Name
	Reason   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("contract %s: %s", e.Contract, e.Reason)
}

// requiredFields lists the top-level keys parse_json_strict's callers
// checked for per contract, besides the universal "contract" field.
var requiredFields = map[Name][]string{
	A0IngestAck: {"piece_index", "piece_count"},
	A1Plan:      {"summary", "approach"},
	A2Structure: {"files"},
	A3File:      {"path", "content", "chunking"},
	B1Plan:      {"summary", "approach"},
	B2Structure: {"touched_files"},
	B3File:      {"path", "content", "chunking"},
	CFilesAll:   {"files"},
}

var objectRE = regexp.MustCompile(`(?s)(\{.*\})`)

// ExtractText pulls the assembled textual output out of a Responses API
// response payload — the Go analogue of extract_text_from_response. It
// tries, in order: a top-level "output_text" string, concatenating every
// output[].content[].text part whose type is "output_text" or "text", a
// "text"/"content"/"message" top-level string field, and finally
// re-serializing the whole envelope so a response is never silently empty.
func ExtractText(response map[string]any) (string, error) {
	if text, ok := response["output_text"].(string); ok && text != "" {
		return text, nil
	}

	if output, ok := response["output"].([]any); ok {
		var sb strings.Builder
		for _, item := range output {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			content, ok := obj["content"].([]any)
			if !ok {
				continue
			}
			for _, c := range content {
				part, ok := c.(map[string]any)
				if !ok {
					continue
				}
				switch part["type"] {
				case "output_text", "text":
					if text, ok := part["text"].(string); ok {
						sb.WriteString(text)
					}
				}
			}
		}
		if sb.Len() > 0 {
			return sb.String(), nil
		}
	}

	for _, key := range []string{"text", "content", "message"} {
		if s, ok := response[key].(string); ok && s != "" {
			return s, nil
		}
	}

	data, err := json.Marshal(response)
	if err != nil {
		return "", fmt.Errorf("contract: response has no extractable text and could not be re-serialized: %w", err)
	}
	return string(data), nil
}

// ParseStrict decodes raw text into a JSON object, requiring the top-level
// "contract" field to equal want, and every field in requiredFields[want] to
// be present. It first tries the text verbatim, then falls back to the
// first brace-balanced-looking substring via objectRE — mirroring the
// original's willingness to tolerate a model wrapping JSON in a single
// leading/trailing sentence, but nothing fancier (no markdown fences, no
// multiple candidate objects).
func ParseStrict(text string, want Name) (map[string]any, error) {
	obj, err := decodeObject(text)
	if err != nil {
		if m := objectRE.FindString(text); m != "" {
			obj, err = decodeObject(m)
		}
		if err != nil {
			return nil, &Error{Contract: want, Reason: "not valid JSON: " + err.Error()}
		}
	}

	got, ok := obj["contract"].(string)
	if !ok {
		return nil, &Error{Contract: want, Reason: "missing top-level \"contract\" field"}
	}
	if Name(got) != want {
		return nil, &Error{Contract: want, Reason: fmt.Sprintf("expected contract=%q, got %q", want, got)}
	}

	for _, field := range requiredFields[want] {
		if _, present := obj[field]; !present {
			return nil, &Error{Contract: want, Reason: fmt.Sprintf("missing required field %q", field)}
		}
	}

	return obj, nil
}

func decodeObject(text string) (map[string]any, error) {
	trimmed := strings.TrimSpace(text)
	var obj map[string]any
	dec := json.NewDecoder(strings.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	return obj, nil
}
