// Package secrets implements redaction of sensitive keys in logged payloads
// and detection of secret-like files before they are offered for upload.
//
// Grounded on services/trace/safety/scanner's secret pattern bank and the
// original source's cascade_log.py redaction key set and filescan.py
// SECRET_PATTERNS, merged into one regex bank.
package secrets

import (
	"bufio"
	"io"
	"os"
	"regexp"
	"strings"
)

const sentinel = "***REDACTED***"

// redactKeys are key names (case-insensitive substring match) whose values
// are always replaced regardless of type.
var redactKeys = []string{
	"api_key", "apikey", "password", "token", "secret", "authorization",
	"cookie", "bearer", "ssh_password", "smtp_password",
}

// Redact walks a nested map/slice/string structure (the shape produced by
// decoding arbitrary JSON) and replaces any value whose key matches
// redactKeys, plus any string value that embeds a bearer token. The
// function is a fixed point: Redact(Redact(x)) == Redact(x).
func Redact(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if isSensitiveKey(k) {
				out[k] = sentinel
				continue
			}
			out[k] = Redact(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Redact(e)
		}
		return out
	case string:
		if strings.Contains(strings.ToLower(t), "bearer ") {
			return sentinel
		}
		return t
	default:
		return v
	}
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, k := range redactKeys {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// FileClass is the outcome of ClassifyFile.
type FileClass struct {
	Suspicious bool
	Reason     string
}

var sensitiveNames = map[string]bool{
	".env": true, ".env.local": true, ".env.prod": true,
	".pypirc": true, "id_rsa": true, "id_ed25519": true,
}

// secretPatterns is a bounded bank of regexes for common secret formats.
// Each entry's name is the SkipReason recorded on the Manifest; the
// matched bytes themselves are never retained.
var secretPatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"openai_api_key", regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`)},
	{"aws_access_key", regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
	{"gcp_api_key", regexp.MustCompile(`AIza[0-9A-Za-z\-_]{35}`)},
	{"azure_key", regexp.MustCompile(`(?i)azure[_-]?(storage|client)?[_-]?(key|secret)\s*[:=]\s*['"]?[A-Za-z0-9+/=]{20,}`)},
	{"stripe_key", regexp.MustCompile(`(sk|rk)_(live|test)_[0-9A-Za-z]{16,}`)},
	{"github_token", regexp.MustCompile(`gh[pousr]_[A-Za-z0-9]{30,}`)},
	{"gitlab_token", regexp.MustCompile(`glpat-[A-Za-z0-9\-_]{20,}`)},
	{"slack_token", regexp.MustCompile(`xox[baprs]-[A-Za-z0-9-]{10,}`)},
	{"sendgrid_key", regexp.MustCompile(`SG\.[A-Za-z0-9_\-\.]{16,}`)},
	{"twilio_sid", regexp.MustCompile(`AC[a-f0-9]{32}`)},
	{"npm_token", regexp.MustCompile(`npm_[A-Za-z0-9]{36}`)},
	{"pypi_token", regexp.MustCompile(`pypi-AgEIcHlwaS5vcmc[A-Za-z0-9\-_]{20,}`)},
	{"heroku_key", regexp.MustCompile(`(?i)heroku[_-]?api[_-]?key\s*[:=]\s*['"]?[0-9a-f-]{36}`)},
	{"discord_token", regexp.MustCompile(`[MN][A-Za-z0-9_-]{23}\.[A-Za-z0-9_-]{6}\.[A-Za-z0-9_-]{27}`)},
	{"private_key_block", regexp.MustCompile(`-----BEGIN (RSA|OPENSSH|EC|PGP) PRIVATE KEY-----`)},
	{"jwt", regexp.MustCompile(`eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`)},
	{"db_url_with_creds", regexp.MustCompile(`(?i)(postgres|mysql|mongodb)(\+srv)?://[^:\s]+:[^@\s]+@`)},
	{"generic_secret_assignment", regexp.MustCompile(`(?i)\b(secret|token|password|api[_-]?key)\b\s*[:=]`)},
}

// ClassifyFile inspects a file name and up to the first 20000 bytes of its
// content, returning FileClass{Suspicious: true} for anything matching a
// sensitive name or the pattern bank.
func ClassifyFile(path string, f io.Reader) FileClass {
	base := strings.ToLower(lastPathSegment(path))
	if sensitiveNames[base] || strings.HasSuffix(base, ".env") {
		return FileClass{Suspicious: true, Reason: "sensitive_filename"}
	}
	reader := bufio.NewReaderSize(f, 20000)
	head := make([]byte, 20000)
	n, _ := io.ReadFull(reader, head)
	head = head[:n]
	text := string(head)
	for _, p := range secretPatterns {
		if p.re.MatchString(text) {
			return FileClass{Suspicious: true, Reason: "secret_pattern:" + p.name}
		}
	}
	return FileClass{Suspicious: false}
}

// ClassifyFilePath is a convenience wrapper over ClassifyFile that opens the
// file itself.
func ClassifyFilePath(path string) FileClass {
	f, err := os.Open(path)
	if err != nil {
		return FileClass{Suspicious: true, Reason: "unreadable"}
	}
	defer f.Close()
	return ClassifyFile(path, f)
}

func lastPathSegment(path string) string {
	i := strings.LastIndexAny(path, "/\\")
	if i < 0 {
		return path
	}
	return path[i+1:]
}
