package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSingleStep(t *testing.T) {
	text := "Plan: find author\n#E1 = Search[author of The Old Man and the Sea]"

	p, err := Parse(text)
	require.NoError(t, err)
	require.Len(t, p.Steps, 1)

	assert.Equal(t, "find author", p.Steps[0].Description)
	assert.Equal(t, "#E1", p.Steps[0].Binding)
	assert.Equal(t, ToolSearch, p.Steps[0].Tool)
	assert.Equal(t, "author of The Old Man and the Sea", p.Steps[0].ToolInput)
}

func TestParseMultiStepBindingOrder(t *testing.T) {
	text := "Plan: fetch base\n#E1 = Search[distance between bases in baseball]\n" +
		"Plan: double\n#E2 = Code[#E1 * 2]"

	p, err := Parse(text)
	require.NoError(t, err)
	require.Len(t, p.Steps, 2)

	assert.Equal(t, "#E1", p.Steps[0].Binding)
	assert.Equal(t, "#E2", p.Steps[1].Binding)
	assert.Equal(t, ToolCode, p.Steps[1].Tool)
	assert.Contains(t, p.Steps[1].ToolInput, "#E1")
}

func TestParseEmptyTextYieldsEmptyPlanNoError(t *testing.T) {
	p, err := Parse("not a plan at all")
	require.NoError(t, err)
	assert.Empty(t, p.Steps)
}

func TestParseDuplicateBindingFirstWins(t *testing.T) {
	text := "Plan: a\n#E1 = Search[first query]\n" +
		"Plan: b\n#E1 = Search[second query]"

	p, err := Parse(text)
	require.NoError(t, err)
	require.Len(t, p.Steps, 1)
	assert.Equal(t, "first query", p.Steps[0].ToolInput)
}

func TestParseUnknownToolRejected(t *testing.T) {
	text := "Plan: a\n#E1 = Fetch[something]"

	p, err := Parse(text)
	assert.Nil(t, p)
	require.Error(t, err)
	var unknown *ErrUnknownTool
	assert.ErrorAs(t, err, &unknown)
}
