package session

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"server address", "play.example.com", "play.example.com"},
		{"upper case", "Play.Example.COM", "play.example.com"},
		{"port", "mc.example.net:25565", "mc.example.net_25565"},
		{"spaces", "My Survival World", "my_survival_world"},
		{"repeated unsafe", "a  //  b", "a_b"},
		{"existing underscores", "a__b___c", "a_b_c"},
		{"unicode", "Welt ümlaut", "welt_mlaut"},
		{"surrounding whitespace", "  hub.example.org\t", "_hub.example.org_"},
		{"whitespace only", "   ", "_"},
		{"dash kept", "my-server.io", "my-server.io"},
		{"dot only", ".", "_"},
		{"parent dir", "..", "_"},
		{"path traversal", "../../etc", ".._.._etc"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.raw))
		})
	}
}

func TestSanitize_OutputAlphabet(t *testing.T) {
	allowed := regexp.MustCompile(`^[a-z0-9._-]*$`)
	inputs := []string{
		"play.example.com",
		"Ω≈ç√∫",
		"__leading and trailing__",
		"tab\tnew\nline",
		"C:\\Games\\World",
		"emoji 🎮 server",
		"100% pure_vanilla!!",
		"a/b\\c:d*e?f\"g<h>i|j",
	}

	for _, in := range inputs {
		out := Sanitize(in)
		assert.Regexp(t, allowed, out, "input %q", in)
		assert.False(t, strings.Contains(out, "__"), "input %q produced %q", in, out)
		assert.NotContains(t, out, "/")
	}
}
