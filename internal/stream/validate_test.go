package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRejectsDuplicateStdioChannel(t *testing.T) {
	schema := Schema{
		{Location: Location{Kind: LocStdout}, Role: RoleOutput},
		{Location: Location{Kind: LocStdout}, Role: RoleOutput},
	}
	assert.Error(t, Validate(schema))
}

func TestValidateRejectsInputWithoutSplitterUnlessNoSplit(t *testing.T) {
	schema := Schema{
		{Location: Location{Kind: LocArgvPositional, Index: 1}, Role: RoleInput},
	}
	assert.Error(t, Validate(schema))
}

func TestValidateAllowsNoSplitInputWithoutSplitter(t *testing.T) {
	schema := Schema{
		{Location: Location{Kind: LocArgvPositional, Index: 1}, Role: RoleInput,
			Special: map[SpecialFlag]bool{NoSplit: true}},
	}
	assert.NoError(t, Validate(schema))
}

func TestValidateAllowsDistinctStdioChannels(t *testing.T) {
	schema := Schema{
		{Location: Location{Kind: LocStdin}, Role: RoleInput,
			Special: map[SpecialFlag]bool{NoSplit: true}},
		{Location: Location{Kind: LocStdout}, Role: RoleOutput},
		{Location: Location{Kind: LocStderr}, Role: RoleOutput},
	}
	assert.NoError(t, Validate(schema))
}

func TestValidateAllowsOutputWithoutSplitter(t *testing.T) {
	schema := Schema{
		{Location: Location{Kind: LocArgvPositional, Index: 1}, Role: RoleOutput},
	}
	assert.NoError(t, Validate(schema))
}
