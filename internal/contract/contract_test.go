package contract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseStrictValid(t *testing.T) {
	obj, err := ParseStrict(`{"contract":"A1_PLAN","summary":"do things","approach":"step by step"}`, A1Plan)
	require.NoError(t, err)
	require.Equal(t, "A1_PLAN", obj["contract"])
}

func TestParseStrictToleratesSurroundingProse(t *testing.T) {
	text := "Here you go:\n" + `{"contract":"A3_FILE","path":"a.go","content":"package a","chunking":{"max_lines":500,"chunk_index":0,"chunk_count":1,"has_more":false}}` + "\nDone."
	obj, err := ParseStrict(text, A3File)
	require.NoError(t, err)
	require.Equal(t, "a.go", obj["path"])
}

func TestParseStrictRejectsWrongContract(t *testing.T) {
	_, err := ParseStrict(`{"contract":"A1_PLAN","plan":"x","file_count":1}`, A2Structure)
	require.Error(t, err)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
}

func TestParseStrictRejectsMissingField(t *testing.T) {
	_, err := ParseStrict(`{"contract":"A1_PLAN"}`, A1Plan)
	require.Error(t, err)
}

func TestParseStrictRejectsInvalidJSON(t *testing.T) {
	_, err := ParseStrict("not json at all", A1Plan)
	require.Error(t, err)
}

func TestExtractTextConcatenatesParts(t *testing.T) {
	resp := map[string]any{
		"output": []any{
			map[string]any{"content": []any{
				map[string]any{"type": "output_text", "text": "hello "},
				map[string]any{"type": "output_text", "text": "world"},
			}},
		},
	}
	text, err := ExtractText(resp)
	require.NoError(t, err)
	require.Equal(t, "hello world", text)
}
