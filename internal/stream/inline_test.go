package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInlinePositionalInput(t *testing.T) {
	argv := []string{"prog", ">splitter=\\n#in.txt#", "out.txt"}
	cleaned, defs, err := ParseInline(argv)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, []string{"prog", "in.txt", "out.txt"}, cleaned)
	assert.Equal(t, RoleInput, defs[0].Role)
	assert.Equal(t, LocArgvPositional, defs[0].Location.Kind)
	assert.Equal(t, 0, defs[0].Location.Index)
	assert.Equal(t, SplitterRegex, defs[0].Splitter.Kind)
	assert.Equal(t, "\\n", defs[0].Splitter.Pattern)
}

func TestParseInlineNamedOutput(t *testing.T) {
	argv := []string{"prog", "<joiner=concat#-o#"}
	cleaned, defs, err := ParseInline(argv)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, []string{"prog", "-o"}, cleaned)
	assert.Equal(t, RoleOutput, defs[0].Role)
	assert.Equal(t, LocArgvNamed, defs[0].Location.Kind)
	assert.Equal(t, []string{"-o"}, defs[0].Location.Options)
	assert.Equal(t, JoinerTag, defs[0].Joiner.Kind)
	assert.Equal(t, "concat", defs[0].Joiner.Tag)
}

func TestParseInlineSpecialFlag(t *testing.T) {
	argv := []string{"prog", ">special=no_split#ref.fa#"}
	_, defs, err := ParseInline(argv)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.True(t, defs[0].HasSpecial(NoSplit))
}

func TestParseInlineMalformedTokenMissingSeparator(t *testing.T) {
	_, _, err := ParseInline([]string{"prog", ">noseparatorhere#"})
	require.Error(t, err)
}

func TestParseInlineUnknownDefinitionKey(t *testing.T) {
	_, _, err := ParseInline([]string{"prog", ">bogus=xyz#in.txt#"})
	require.Error(t, err)
}

func TestParseInlineUnknownSpecialValue(t *testing.T) {
	_, _, err := ParseInline([]string{"prog", ">special=not_a_flag#in.txt#"})
	require.Error(t, err)
}

func TestParseInlineLeavesPlainArgsAlone(t *testing.T) {
	argv := []string{"prog", "-v", "plain.txt"}
	cleaned, defs, err := ParseInline(argv)
	require.NoError(t, err)
	assert.Equal(t, argv, cleaned)
	assert.Empty(t, defs)
}
