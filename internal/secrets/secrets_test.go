package secrets

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRedactIsFixedPoint(t *testing.T) {
	payload := map[string]any{
		"api_key": "sk-abcdef1234567890",
		"nested": map[string]any{
			"Authorization": "Bearer xyz",
			"safe":          "value",
		},
		"list": []any{"Bearer abc", "plain"},
	}
	once := Redact(payload)
	twice := Redact(once)
	require.Equal(t, once, twice)

	m := once.(map[string]any)
	require.Equal(t, sentinel, m["api_key"])
}

func TestRedactPreservesSafeValues(t *testing.T) {
	out := Redact(map[string]any{"project": "demo"}).(map[string]any)
	require.Equal(t, "demo", out["project"])
}

func TestClassifyFileDetectsPatterns(t *testing.T) {
	c := ClassifyFile("notes.txt", strings.NewReader("OPENAI_API_KEY=sk-abcdefghijklmnopqrstuvwx"))
	require.True(t, c.Suspicious)
}

func TestClassifyFileSensitiveName(t *testing.T) {
	c := ClassifyFile(".env", strings.NewReader("FOO=bar"))
	require.True(t, c.Suspicious)
	require.Equal(t, "sensitive_filename", c.Reason)
}

func TestClassifyFileSafe(t *testing.T) {
	c := ClassifyFile("main.go", strings.NewReader("package main\nfunc main() {}\n"))
	require.False(t, c.Suspicious)
}
