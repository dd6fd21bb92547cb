package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveSubstitutesKnownBindings(t *testing.T) {
	results := map[string]string{"#E1": "90"}
	out := Resolve("#E1 * 2", results)
	assert.Equal(t, "90 * 2", out)
}

func TestResolveLeavesUnknownBindingsLiteral(t *testing.T) {
	out := Resolve("#E1 and #E2", map[string]string{"#E1": "x"})
	assert.Equal(t, "x and #E2", out)
}

func TestResolveNoBindingsReturnsInputUnchanged(t *testing.T) {
	out := Resolve("no tokens here", nil)
	assert.Equal(t, "no tokens here", out)
}

func TestResolvePrefersLongestBindingOverOverlappingPrefix(t *testing.T) {
	results := map[string]string{
		"#E1":  "one",
		"#E10": "ten",
	}
	out := Resolve("#E10 then #E1", results)
	assert.Equal(t, "ten then one", out)
}

func TestRenderWithEvidenceReplacesAllTokens(t *testing.T) {
	p := &Plan{Steps: []PlanStep{
		{Description: "fetch", Binding: "#E1", Tool: ToolSearch, ToolInput: "distance"},
		{Description: "double", Binding: "#E2", Tool: ToolCode, ToolInput: "#E1 * 2"},
	}}
	results := map[string]string{"#E1": "90", "#E2": "180"}

	rendered := RenderWithEvidence(p, results)

	assert.NotContains(t, rendered, "#E1 * 2")
	assert.Contains(t, rendered, "90 * 2")
	assert.Contains(t, rendered, "180")
}
