// Package templates holds the fixed prompt templates the orchestrator and
// tool adapters use when calling the LLM provider. These are the only
// prompt-engineering surface this repository owns; everything else is the
// external provider's concern.
package templates

import "fmt"

// Plan builds the PLAN template for a fresh Planning transition.
func Plan(query string) string {
	return fmt.Sprintf(`You are a planner. Decompose the following task into a
sequence of steps. Each step must be written as:

Plan: <one-line description>
#E<k> = <Tool>[<tool_input>]

<Tool> is one of Search, Code, LLM. Bindings #E1, #E2, ... are
strictly increasing and tool_input may reference earlier bindings by
their #E<k> token.

Task: %s`, query)
}

// Replan builds the REPLAN template, which additionally carries the
// previous plan text and the reflection on why it failed.
func Replan(query, previousPlan, reflection string) string {
	return fmt.Sprintf(`%s

Your previous plan did not succeed:
%s

Reflection on the failure:
%s

Produce a new plan using the same grammar.`, Plan(query), previousPlan, reflection)
}

// Reflection builds the REFLECTION template used on a Reflecting transition.
func Reflection(query, previousPlan string) string {
	return fmt.Sprintf(`Task: %s

The following plan failed to produce a usable answer:
%s

Explain concisely why it failed and what should change in the next plan.`, query, previousPlan)
}

// Solver builds the SOLVER template given the rendered plan-with-evidence
// trace. The response is expected to carry <answer>...</answer>.
func Solver(query, evidence string) string {
	return fmt.Sprintf(`Task: %s

Evidence gathered so far:
%s

Using only this evidence, answer the task. Wrap your final answer in
<answer>...</answer>.`, query, evidence)
}

// Explanation builds the EXPLANATION template for an optional human-readable
// rationale alongside the final answer.
func Explanation(query, evidence, answer string) string {
	return fmt.Sprintf(`Task: %s

Evidence:
%s

Final answer: %s

Explain in plain language how the evidence supports this answer.`, query, evidence, answer)
}

// Reword builds the prompt the Search adapter uses to turn a resolved
// tool_input into a well-formed search query.
func Reword(resolvedInput string) string {
	return fmt.Sprintf(`Rewrite the following into a concise, well-formed web
search query. Wrap your answer in <reworded_query>...</reworded_query>.

Input: %s`, resolvedInput)
}

// Summary builds the SUMMARY template the Search adapter uses to answer a
// query from a fetched/reranked context block.
func Summary(query, context string) string {
	return fmt.Sprintf(`Answer the following query using only the context
below. Wrap your answer in <answer>...</answer>.

Query: %s

Context:
%s`, query, context)
}

// Code builds the CODE template the Code adapter uses to request a single
// executable script for resolvedInput.
func Code(resolvedInput string) string {
	return fmt.Sprintf(`Write a single, self-contained Python script that computes
the following and prints only the result to stdout. Return it in one
fenced code block.

Task: %s`, resolvedInput)
}

// Commonsense builds the COMMONSENSE template the LLM adapter uses for a
// pure-reasoning step.
func Commonsense(resolvedInput string) string {
	return fmt.Sprintf(`Answer the following from general knowledge. If you
cannot answer confidently and believe the plan should be reconsidered,
respond with <replan>reason</replan> instead. Otherwise wrap your answer
in <answer>...</answer>.

Input: %s`, resolvedInput)
}
