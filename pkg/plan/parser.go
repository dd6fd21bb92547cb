package plan

import (
	"fmt"
	"regexp"
)

// stepPattern matches one "Plan: <description>\n#E<k> = <Tool>[<tool_input>]"
// group anywhere in the planner's raw text, whitespace tolerant.
var stepPattern = regexp.MustCompile(`Plan:\s*(.+?)\s*(#E\d+)\s*=\s*(\w+)\s*\[([^\]]+)\]`)

// ErrUnknownTool is returned when a matched step names a tool other than
// Search, Code, or LLM. Per the grammar this rejects the entire parse.
type ErrUnknownTool struct {
	Binding string
	Tool    string
}

func (e *ErrUnknownTool) Error() string {
	return fmt.Sprintf("plan: unknown tool %q for binding %s", e.Tool, e.Binding)
}

func isKnownTool(t string) (Tool, bool) {
	switch Tool(t) {
	case ToolSearch, ToolCode, ToolLLM:
		return Tool(t), true
	default:
		return "", false
	}
}

// Parse scans raw planner text for every occurrence of the step grammar and
// returns them as an ordered Plan. A nil error with zero Steps is itself a
// valid, meaningful result: the caller (the Orchestrator) treats an empty
// Plan as a parse failure that triggers Reflecting. A non-nil error is
// returned only when a matched step names an unrecognized tool, which
// rejects the whole parse rather than silently dropping the bad step.
//
// Duplicate binding names: the first occurrence wins, later ones with the
// same binding are dropped. The parser does not validate that a step's
// tool_input references only prior bindings — that is the Substitution
// Engine's concern.
func Parse(text string) (*Plan, error) {
	matches := stepPattern.FindAllStringSubmatch(text, -1)

	p := &Plan{}
	seen := make(map[string]bool, len(matches))

	for _, m := range matches {
		description, binding, toolName, toolInput := m[1], m[2], m[3], m[4]

		tool, ok := isKnownTool(toolName)
		if !ok {
			return nil, &ErrUnknownTool{Binding: binding, Tool: toolName}
		}

		if seen[binding] {
			continue
		}
		seen[binding] = true

		p.Steps = append(p.Steps, PlanStep{
			Description: description,
			Binding:     binding,
			Tool:        tool,
			ToolInput:   toolInput,
		})
	}

	return p, nil
}
