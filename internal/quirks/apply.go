package quirks

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	patternCacheSize = 256
	matchTimeout     = 250 * time.Millisecond
)

var patternCache *lru.Cache[string, *regexp2.Regexp]

func init() {
	var err error
	patternCache, err = lru.New[string, *regexp2.Regexp](patternCacheSize)
	if err != nil {
		panic(err)
	}
}

// compile builds a regexp accepting Python syntax: (?P<name>...) groups and
// (?P=name) backreferences are rewritten to their .NET spelling.
func compile(pattern string) (*regexp2.Regexp, error) {
	if re, ok := patternCache.Get(pattern); ok {
		return re, nil
	}
	translated := strings.ReplaceAll(pattern, "(?P<", "(?<")
	translated = pyBackrefs(translated)

	re, err := regexp2.Compile(translated, regexp2.None)
	if err != nil {
		return nil, fmt.Errorf("invalid quirk pattern %q: %w", pattern, err)
	}
	re.MatchTimeout = matchTimeout
	patternCache.Add(pattern, re)
	return re, nil
}

// pyBackrefs rewrites (?P=name) into \k<name>.
func pyBackrefs(s string) string {
	var b strings.Builder
	for {
		i := strings.Index(s, "(?P=")
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		j := strings.IndexByte(s[i:], ')')
		if j < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		b.WriteString(`\k<` + s[i+4:i+j] + `>`)
		s = s[i+j+1:]
	}
}

// replacementTemplate converts a Python re.sub template (\1, \g<name>,
// \g<1>, \n) into regexp2's $-syntax, escaping literal dollar signs.
func replacementTemplate(repl string) string {
	var b strings.Builder
	for i := 0; i < len(repl); i++ {
		c := repl[i]
		if c == '$' {
			b.WriteString("$$")
			continue
		}
		if c != '\\' || i+1 == len(repl) {
			b.WriteByte(c)
			continue
		}
		next := repl[i+1]
		switch {
		case next >= '0' && next <= '9':
			j := i + 1
			for j < len(repl) && j < i+3 && repl[j] >= '0' && repl[j] <= '9' {
				j++
			}
			b.WriteString("${" + repl[i+1:j] + "}")
			i = j - 1
		case next == 'g' && i+2 < len(repl) && repl[i+2] == '<':
			end := strings.IndexByte(repl[i+3:], '>')
			if end < 0 {
				b.WriteByte(c)
				continue
			}
			b.WriteString("${" + repl[i+3:i+3+end] + "}")
			i = i + 3 + end
		case next == 'n':
			b.WriteByte('\n')
			i++
		case next == 't':
			b.WriteByte('\t')
			i++
		case next == '\\':
			b.WriteByte('\\')
			i++
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func substitute(pattern, repl, msg string) (string, error) {
	re, err := compile(pattern)
	if err != nil {
		return "", err
	}
	out, err := re.Replace(msg, replacementTemplate(repl), -1, -1)
	if err != nil {
		return "", fmt.Errorf("applying quirk pattern %q: %w", pattern, err)
	}
	return out, nil
}

// Apply folds rules over msg in order, each rule seeing the previous rule's
// output. intn picks random choices and defaults to math/rand/v2. If a rule
// fails, msg is returned unchanged together with the error. Rules of unknown
// kind are skipped.
func Apply(rules []Rule, msg string, intn func(n int) int) (string, error) {
	if intn == nil {
		intn = rand.IntN
	}
	out := msg
	for i, r := range rules {
		var err error
		switch r.Kind {
		case KindPrefix:
			out = r.Operand + out
		case KindSuffix:
			out += r.Operand
		case KindReplace:
			// An empty operand inserts the replacement around every rune.
			out = strings.ReplaceAll(out, r.Operand, r.Replacement)
		case KindRegex:
			out, err = substitute(r.Operand, r.Replacement, out)
		case KindRandom:
			if len(r.Choices) == 0 {
				continue
			}
			out, err = substitute(r.Operand, r.Choices[intn(len(r.Choices))], out)
		}
		if err != nil {
			return msg, fmt.Errorf("quirk %d (%s): %w", i+1, r.Kind, err)
		}
	}
	return out, nil
}
