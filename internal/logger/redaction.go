package logger

import (
	"io"
	"regexp"
)

const redacted = "[REDACTED]"

// A rule masks the value of a secret-bearing field. Group 1, when present,
// is the field name and separator and is kept.
type rule struct {
	name string
	re   *regexp.Regexp
}

var defaultRules = []rule{
	{"secret header", regexp.MustCompile(`(?i)(x-chatlog-secret["']?\s*[:=]\s*["']?)[^\s",']+`)},
	{"bearer", regexp.MustCompile(`(?i)(bearer\s+)[a-z0-9._~+/-]+=*`)},
	{"password", regexp.MustCompile(`(?i)((?:password|pwd)["']?\s*[:=]\s*["']?)[^\s",']+`)},
	{"token", regexp.MustCompile(`(?i)(token["']?\s*[:=]\s*["']?)[a-z0-9._-]{20,}`)},
	{"secret", regexp.MustCompile(`(?i)(secret["']?\s*[:=]\s*["']?)[^\s",'&]+`)},
	{"secret query", regexp.MustCompile(`(?i)([?&]secret=)[^&\s"]+`)},
}

// Redactor masks gateway secrets and credentials in log output. Chat text
// written to session documents never passes through it.
type Redactor struct {
	patterns []*regexp.Regexp
}

// NewRedactor returns a redactor with the default rules.
func NewRedactor() *Redactor {
	r := &Redactor{}
	for _, rl := range defaultRules {
		r.patterns = append(r.patterns, rl.re)
	}
	return r
}

// AddPattern adds a rule; a pattern without a capture group masks the whole match.
func (r *Redactor) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.patterns = append(r.patterns, re)
	return nil
}

// Redact returns s with every secret value replaced.
func (r *Redactor) Redact(s string) string {
	for _, re := range r.patterns {
		if re.NumSubexp() > 0 {
			s = re.ReplaceAllString(s, "${1}"+redacted)
		} else {
			s = re.ReplaceAllString(s, redacted)
		}
	}
	return s
}

// Wrap returns a writer that redacts each write before passing it to w.
func (r *Redactor) Wrap(w io.Writer) io.Writer {
	return &redactingWriter{w: w, r: r}
}

type redactingWriter struct {
	w io.Writer
	r *Redactor
}

// Write reports len(p) on success since callers wrote p, not the redacted form.
func (rw *redactingWriter) Write(p []byte) (int, error) {
	if _, err := io.WriteString(rw.w, rw.r.Redact(string(p))); err != nil {
		return 0, err
	}
	return len(p), nil
}
