package templates

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTemplatesEmbedTheirInputsVerbatim(t *testing.T) {
	assert.Contains(t, Plan("find the tallest mountain"), "find the tallest mountain")

	replan := Replan("q", "previous plan text", "it failed because X")
	assert.Contains(t, replan, "previous plan text")
	assert.Contains(t, replan, "it failed because X")
	assert.True(t, strings.Contains(replan, Plan("q")), "Replan embeds the base Plan template")

	assert.Contains(t, Reflection("q", "plan text"), "plan text")
	assert.Contains(t, Solver("q", "evidence block"), "evidence block")
	assert.Contains(t, Explanation("q", "evidence", "final answer text"), "final answer text")
	assert.Contains(t, Reword("raw input"), "raw input")
	assert.Contains(t, Summary("q", "context block"), "context block")
	assert.Contains(t, Code("compute pi"), "compute pi")
	assert.Contains(t, Commonsense("what is the capital of France"), "what is the capital of France")
}

func TestAnswerAndReplanTagsAreDocumented(t *testing.T) {
	assert.Contains(t, Solver("q", "e"), "<answer>")
	assert.Contains(t, Commonsense("x"), "<replan>")
	assert.Contains(t, Reword("x"), "<reworded_query>")
}
