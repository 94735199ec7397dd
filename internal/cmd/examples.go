package cmd

import (
	"math/rand"
	"regexp"
	"strings"

	"github.com/dotcommander/unai/internal/present"
)

var examples = map[string]string{
	"Write new sections for a readme":  `cat README.md | unai "write a new section to this README documenting a pdf sharing feature"`,
	"Let the agent dig through an issue": `unai --max-iterations 20 "read the open issues with the github tools and summarize the top three"`,
	"Resume a run that hit its limit":    `unai --continue-last --max-iterations 5`,
	"Summarize logs with a local model":  `journalctl -n 200 | unai -a ollama -m llama3.2 -f "group these errors by cause"`,
}

func randomExample() string {
	keys := make([]string, 0, len(examples))
	for k := range examples {
		keys = append(keys, k)
	}
	desc := keys[rand.Intn(len(keys))] //nolint:gosec
	return desc
}

var (
	quotedRe = regexp.MustCompile(`"([^"\\]|\\.)*"`)
	flagRe   = regexp.MustCompile(`(^|\s)(--?[a-zA-Z][\w-]*)`)
)

// cheapHighlighting colors the quoted prompt, pipes and flags of an example
// command line. Flags inside the quoted prompt are left alone.
func cheapHighlighting(s present.Styles, code string) string {
	var b strings.Builder
	last := 0
	for _, loc := range quotedRe.FindAllStringIndex(code, -1) {
		b.WriteString(highlightShell(s, code[last:loc[0]]))
		b.WriteString(s.Quote.Render(code[loc[0]:loc[1]]))
		last = loc[1]
	}
	b.WriteString(highlightShell(s, code[last:]))
	return b.String()
}

func highlightShell(s present.Styles, code string) string {
	code = flagRe.ReplaceAllStringFunc(code, func(x string) string {
		m := flagRe.FindStringSubmatch(x)
		return m[1] + s.Flag.Render(m[2])
	})
	return strings.ReplaceAll(code, "|", s.Pipe.Render("|"))
}
