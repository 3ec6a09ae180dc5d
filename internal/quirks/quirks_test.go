package quirks

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func first(int) int { return 0 }

func TestApplyFoldsInOrder(t *testing.T) {
	rules := []Rule{
		{Kind: KindReplace, Operand: "o", Replacement: "0"},
		{Kind: KindPrefix, Operand: "::"},
		{Kind: KindSuffix, Operand: "!!"},
		{Kind: KindRegex, Operand: `^::`, Replacement: ">>"},
	}
	got, err := Apply(rules, "hello world", first)
	require.NoError(t, err)
	assert.Equal(t, ">>hell0 w0rld!!", got)

	// Reordering the same rules changes the result deterministically.
	reordered := []Rule{rules[3], rules[1], rules[0], rules[2]}
	got, err = Apply(reordered, "hello world", first)
	require.NoError(t, err)
	assert.Equal(t, "::hell0 w0rld!!", got)
}

func TestApplyReplaceEmptyOperand(t *testing.T) {
	got, err := Apply([]Rule{{Kind: KindReplace, Operand: "", Replacement: "-"}}, "héy", first)
	require.NoError(t, err)
	assert.Equal(t, "-h-é-y-", got)
}

func TestApplyRegexPythonSyntax(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
		in   string
		want string
	}{
		{"numbered group", Rule{Kind: KindRegex, Operand: `(\w+) (\w+)`, Replacement: `\2 \1`}, "hello world", "world hello"},
		{"named group", Rule{Kind: KindRegex, Operand: `(?P<w>\w+)!`, Replacement: `\g<w>?`}, "hey!", "hey?"},
		{"lookbehind", Rule{Kind: KindRegex, Operand: `(?<=h)e`, Replacement: `3`}, "hehe", "h3h3"},
		{"literal dollar", Rule{Kind: KindRegex, Operand: `cash`, Replacement: `$`}, "cash", "$"},
		{"backreference in pattern", Rule{Kind: KindRegex, Operand: `(?P<c>l)(?P=c)`, Replacement: `L`}, "hello", "heLo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply([]Rule{tt.rule}, tt.in, first)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyRandom(t *testing.T) {
	rule := Rule{Kind: KindRandom, Operand: `\bi\b`, Choices: []string{"I", "ME"}}
	got, err := Apply([]Rule{rule}, "i think i can", func(n int) int { return n - 1 })
	require.NoError(t, err)
	assert.Equal(t, "ME think ME can", got)

	got, err = Apply([]Rule{{Kind: KindRandom, Operand: "x"}}, "x", first)
	require.NoError(t, err)
	assert.Equal(t, "x", got)
}

func TestApplyBadPatternKeepsMessage(t *testing.T) {
	rules := []Rule{
		{Kind: KindPrefix, Operand: ">"},
		{Kind: KindRegex, Operand: `(`, Replacement: "x"},
	}
	got, err := Apply(rules, "msg", first)
	require.Error(t, err)
	assert.Equal(t, "msg", got)
}

func TestApplySkipsUnknownKinds(t *testing.T) {
	got, err := Apply([]Rule{{Kind: "sparkle"}, {Kind: KindSuffix, Operand: "~"}}, "a", first)
	require.NoError(t, err)
	assert.Equal(t, "a~", got)
}

func TestRuleJSON(t *testing.T) {
	in := `[["prefix","::"],["replace",["a","4"]],["regex",["(\\w)","\\1"]],["random",["i",["I","me"]]],["sparkle",{"x":1}]]`
	var rules []Rule
	require.NoError(t, json.Unmarshal([]byte(in), &rules))
	require.Len(t, rules, 5)

	assert.Equal(t, Rule{Kind: KindPrefix, Operand: "::"}, rules[0])
	assert.Equal(t, Rule{Kind: KindReplace, Operand: "a", Replacement: "4"}, rules[1])
	assert.Equal(t, `(\w)`, rules[2].Operand)
	assert.Equal(t, []string{"I", "me"}, rules[3].Choices)
	assert.Equal(t, Kind("sparkle"), rules[4].Kind)

	out, err := json.Marshal(rules)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
}

func TestRuleJSONRandomSingleChoice(t *testing.T) {
	var r Rule
	require.NoError(t, json.Unmarshal([]byte(`["random",["i","me"]]`), &r))
	assert.Equal(t, []string{"me"}, r.Choices)
}

func TestRuleJSONErrors(t *testing.T) {
	var r Rule
	assert.Error(t, json.Unmarshal([]byte(`"prefix"`), &r))
	assert.ErrorIs(t, json.Unmarshal([]byte(`["replace",["a"]]`), &r), ErrArity)
	assert.ErrorIs(t, json.Unmarshal([]byte(`["prefix"]`), &r), ErrArity)
}

func TestParseCommand(t *testing.T) {
	r, err := ParseCommand(`prefix "::: "`)
	require.NoError(t, err)
	assert.Equal(t, Rule{Kind: KindPrefix, Operand: "::: "}, r)

	r, err = ParseCommand(`regex '(\w)\1' 'x'`)
	require.NoError(t, err)
	assert.Equal(t, Rule{Kind: KindRegex, Operand: `(\w)\1`, Replacement: "x"}, r)

	r, err = ParseCommand(`random i I me`)
	require.NoError(t, err)
	assert.Equal(t, []string{"I", "me"}, r.Choices)

	_, err = ParseCommand("replace a")
	assert.ErrorIs(t, err, ErrArity)
	_, err = ParseCommand("sparkle x")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestStoreCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", FileName)

	s, err := Open(path, "42")
	require.NoError(t, err)
	assert.Empty(t, s.Rules())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"42": []}`, string(data))
}

func TestStoreAppendSaveReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(`{"7":[["suffix","~"]]}`), 0644))

	s, err := Open(path, "42")
	require.NoError(t, err)
	s.Append(Rule{Kind: KindPrefix, Operand: ">"})
	s.Append(Rule{Kind: KindReplace, Operand: "e", Replacement: "3"})
	require.NoError(t, s.Save())

	reloaded, err := Open(path, "42")
	require.NoError(t, err)
	assert.Equal(t, s.Rules(), reloaded.Rules())

	got, err := reloaded.Apply("hey")
	require.NoError(t, err)
	assert.Equal(t, ">h3y", got)

	other, err := Open(path, "7")
	require.NoError(t, err)
	assert.Equal(t, []Rule{{Kind: KindSuffix, Operand: "~"}}, other.Rules())
}

func TestStoreRemove(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), FileName), "1")
	require.NoError(t, err)
	s.Append(Rule{Kind: KindPrefix, Operand: "a"})
	s.Append(Rule{Kind: KindPrefix, Operand: "b"})

	removed, err := s.Remove(0)
	require.NoError(t, err)
	assert.Equal(t, "a", removed.Operand)
	assert.Len(t, s.Rules(), 1)

	_, err = s.Remove(5)
	assert.Error(t, err)
}

func TestOpenRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("{"), 0644))
	_, err := Open(path, "1")
	assert.Error(t, err)
}
