package plan

import (
	"sort"
	"strings"
)

// Resolve replaces every literal occurrence of a known binding token in
// input with its string result. Bindings are substituted longest-token-first
// so an overlapping prefix like #E1 can never shadow #E10 — strings.Replacer
// resolves ties by argument order, not by match length, and map iteration
// order is random, so without this ordering a 10+ step plan could corrupt a
// resolved input depending on the run. Bindings not present in results are
// left as literal text; the tool adapter or LLM will generally fail on the
// unresolved token and trigger a replan. Substitution is purely textual — no
// escaping or quoting is applied.
func Resolve(input string, results map[string]string) string {
	if len(results) == 0 {
		return input
	}

	bindings := make([]string, 0, len(results))
	for binding := range results {
		bindings = append(bindings, binding)
	}
	sort.Slice(bindings, func(i, j int) bool { return len(bindings[i]) > len(bindings[j]) })

	pairs := make([]string, 0, len(results)*2)
	for _, binding := range bindings {
		pairs = append(pairs, binding, results[binding])
	}

	return strings.NewReplacer(pairs...).Replace(input)
}

// RenderWithEvidence reapplies substitution to both the binding name and
// the tool_input of every step in the plan, so that every #E_k token in the
// rendered trace is replaced by its actual textual result. Used by the
// Orchestrator's Solving transition to build the evidence string handed to
// the SOLVER template.
func RenderWithEvidence(p *Plan, results map[string]string) string {
	var b strings.Builder
	for _, step := range p.Steps {
		resolvedInput := Resolve(step.ToolInput, results)
		b.WriteString(step.Description)
		b.WriteString("\n")
		b.WriteString(string(step.Tool))
		b.WriteString("[")
		b.WriteString(resolvedInput)
		b.WriteString("] = ")
		if v, ok := results[step.Binding]; ok {
			b.WriteString(v)
		} else {
			b.WriteString(step.Binding)
		}
		b.WriteString("\n")
	}
	return b.String()
}
