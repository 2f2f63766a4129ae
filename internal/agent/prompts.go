// File: internal/agent/prompts.go
package agent

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/waypoint-cli/api/schemas"
)

// systemPromptTemplate instructs the model on the response contract. The
// action vocabulary is injected so the prompt and the parser can never drift.
const systemPromptTemplate = `You are an autonomous browser agent. You interact with web pages through a numbered list of interactive elements and a fixed set of actions.

RESPONSE FORMAT: You must always respond with valid JSON of this exact shape:
{
  "current_state": {
    "evaluation_previous_goal": "Success|Failed|Unknown - brief analysis of whether the previous goal was achieved",
    "memory": "what has been done so far and what to remember",
    "next_goal": "what you are trying to achieve with the next actions"
  },
  "action": [
    {"action_name": {"param": "value"}}
  ]
}

AVAILABLE ACTIONS: %s

RULES:
1. Only reference element indices that appear in the current element list.
2. Chain at most %d actions per response. Actions execute in order and the sequence stops early if the page changes.
3. Use "done" as the only action when the task is complete, with "success" set honestly.
4. If the page lacks what you need, scroll, navigate, or go back.
5. Never guess URLs or element indices.`

// lastStepInstruction is appended when the step budget forces termination.
const lastStepInstruction = `This is your final step. Your next response must contain only the single "done" action. Set "success" to true only if the full task has genuinely been completed; otherwise set it to false and summarize what was and was not achieved.`

// plannerPrompt frames the periodic high-level planning call.
const plannerPrompt = `You are a planning assistant for a browser agent. Given the conversation so far, summarize progress on the task, list remaining obstacles, and propose the next 2-3 concrete sub-goals. Respond in short plain text, no JSON.`

// SystemPrompt renders the system message content.
func SystemPrompt(actionKinds []string, maxActionsPerStep int) string {
	return fmt.Sprintf(systemPromptTemplate, strings.Join(actionKinds, ", "), maxActionsPerStep)
}

// StatePrompt renders the per-turn page description: page identity, open
// tabs, the indexed element list, and the previous actions' results.
func StatePrompt(
	info schemas.PageInfo,
	tabs []schemas.TabInfo,
	elements string,
	lastResults []schemas.ActionResult,
	stepNumber, maxSteps int,
) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Current step: %d/%d\n", stepNumber, maxSteps)
	fmt.Fprintf(&sb, "Current url: %s\n", info.URL)
	fmt.Fprintf(&sb, "Page title: %s\n", info.Title)

	if len(tabs) > 1 {
		sb.WriteString("Open tabs:\n")
		for _, t := range tabs {
			fmt.Fprintf(&sb, "  [%d] %s (%s)\n", t.ID, t.Title, t.URL)
		}
	}

	if info.PixelsAbove > 0 {
		fmt.Fprintf(&sb, "... %d pixels above - scroll up to see more ...\n", info.PixelsAbove)
	}
	sb.WriteString("Interactive elements of the current page:\n")
	if elements == "" {
		sb.WriteString("empty page\n")
	} else {
		sb.WriteString(elements)
		sb.WriteString("\n")
	}
	if info.PixelsBelow > 0 {
		fmt.Fprintf(&sb, "... %d pixels below - scroll down to see more ...\n", info.PixelsBelow)
	}

	for i, res := range lastResults {
		if !res.IncludeInMemory {
			continue
		}
		if res.ExtractedContent != "" {
			fmt.Fprintf(&sb, "Result of action %d: %s\n", i+1, res.ExtractedContent)
		}
		if res.Error != "" {
			// Keep the tail; stack-like errors bury the cause at the end.
			msg := res.Error
			if len(msg) > 400 {
				msg = "..." + msg[len(msg)-400:]
			}
			fmt.Fprintf(&sb, "Error of action %d: %s\n", i+1, msg)
		}
	}

	return sb.String()
}
