package driver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comav-bio/prunner/internal/stream"
)

func TestBuildArgvSplitsOnWhitespace(t *testing.T) {
	j := JobSpec{Command: "  prog  -i in.txt   -o out.txt "}
	assert.Equal(t, []string{"prog", "-i", "in.txt", "-o", "out.txt"}, j.BuildArgv())
}

func TestLoadSchemaEmptyArgYieldsNilSchema(t *testing.T) {
	j := JobSpec{}
	schema, err := j.LoadSchema()
	require.NoError(t, err)
	assert.Nil(t, schema)
}

func TestLoadSchemaFromLiteralJSON(t *testing.T) {
	j := JobSpec{SchemaArg: `[
		{"location": {"kind": "positional", "index": 0}, "role": "in", "splitter": {"kind": "regex", "pattern": "\n"}},
		{"location": {"kind": "positional", "index": 1}, "role": "out"}
	]`}
	schema, err := j.LoadSchema()
	require.NoError(t, err)
	require.Len(t, schema, 2)
	assert.Equal(t, stream.RoleInput, schema[0].Role)
	assert.Equal(t, stream.LocArgvPositional, schema[0].Location.Kind)
	assert.Equal(t, stream.SplitterRegex, schema[0].Splitter.Kind)
	assert.Equal(t, stream.RoleOutput, schema[1].Role)
}

func TestLoadSchemaFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.json")
	content := `[{"location": {"kind": "stdin"}, "role": "in", "special": ["no_split"]}]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	j := JobSpec{SchemaArg: path}
	schema, err := j.LoadSchema()
	require.NoError(t, err)
	require.Len(t, schema, 1)
	assert.Equal(t, stream.LocStdin, schema[0].Location.Kind)
	assert.True(t, schema[0].HasSpecial(stream.NoSplit))
}

func TestLoadSchemaUnknownRoleIsSchemaError(t *testing.T) {
	j := JobSpec{SchemaArg: `[{"location": {"kind": "stdin"}, "role": "sideways"}]`}
	_, err := j.LoadSchema()
	require.Error(t, err)
}

func TestLoadSchemaUnknownLocationKindIsSchemaError(t *testing.T) {
	j := JobSpec{SchemaArg: `[{"location": {"kind": "nowhere"}, "role": "in"}]`}
	_, err := j.LoadSchema()
	require.Error(t, err)
}

func TestLoadSchemaMalformedJSONIsSchemaError(t *testing.T) {
	j := JobSpec{SchemaArg: `not json at all`}
	_, err := j.LoadSchema()
	require.Error(t, err)
}
