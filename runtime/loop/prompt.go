package loop

import (
	"context"
	"html"
	"strings"
	"time"
)

// ActionDefinition documents one action the model may invoke, rendered
// into the <available_actions_reference> block.
type ActionDefinition struct {
	Name            string
	DescriptionText string
}

// PromptTemplate holds the caller-supplied, mostly-static content that
// surrounds the live context feeds and conversation history in every
// augmented prompt. Any field left empty omits its block.
type PromptTemplate struct {
	AgentName          string
	AgentDescription   string
	SystemPrompt       string
	ProtocolPreamble   string
	ResponseSchema     string
	ResponseExample    string
	EnvironmentVars    map[string]string
	SubAgentsOnline    []string
	Actions            []ActionDefinition
	AdditionalGuidance []string
}

// buildPrompt assembles the full augmented prompt for the next iteration,
// in a fixed block order.
func (l *Loop) buildPrompt(ctx context.Context) string {
	var b strings.Builder
	t := l.prompt

	if t.AgentName != "" || t.AgentDescription != "" {
		b.WriteString("<agent_identity>")
		writeElem(&b, "name", t.AgentName)
		writeElem(&b, "description", t.AgentDescription)
		b.WriteString("</agent_identity>")
	}
	writeBlock(&b, "system_prompt", t.SystemPrompt)
	writeBlock(&b, "cortex_streaming_protocol", t.ProtocolPreamble)
	writeBlock(&b, "response_schema_definition", t.ResponseSchema)
	writeBlock(&b, "response_example", t.ResponseExample)

	b.WriteString("<live_metadata>")
	writeElem(&b, "current_datetime", time.Now().UTC().Format(time.RFC3339))
	b.WriteString("</live_metadata>")

	if feedsBlock := l.feeds.BuildBlock(); feedsBlock != "" {
		b.WriteString(feedsBlock)
	}

	if len(t.EnvironmentVars) > 0 {
		b.WriteString("<environment_variables>")
		for _, k := range sortedKeys(t.EnvironmentVars) {
			b.WriteString(`<variable name="`)
			b.WriteString(html.EscapeString(k))
			b.WriteString(`">`)
			b.WriteString(html.EscapeString(t.EnvironmentVars[k]))
			b.WriteString(`</variable>`)
		}
		b.WriteString("</environment_variables>")
	}

	if len(t.SubAgentsOnline) > 0 {
		b.WriteString("<sub_agents_online>")
		for _, name := range t.SubAgentsOnline {
			b.WriteString(html.EscapeString(name))
			b.WriteString(",")
		}
		b.WriteString("</sub_agents_online>")
	}

	if len(t.Actions) > 0 {
		b.WriteString("<available_actions_reference>")
		for _, a := range t.Actions {
			b.WriteString(`<action_definition name="`)
			b.WriteString(html.EscapeString(a.Name))
			b.WriteString(`">`)
			writeElem(&b, "description_text", a.DescriptionText)
			b.WriteString("</action_definition>")
		}
		b.WriteString("</available_actions_reference>")
	}

	if len(t.AdditionalGuidance) > 0 {
		b.WriteString("<additional_guidance>")
		for _, instr := range t.AdditionalGuidance {
			writeElem(&b, "instruction", instr)
		}
		b.WriteString("</additional_guidance>")
	}

	b.WriteString("<conversation_history>")
	for _, rec := range l.history {
		b.WriteString("<past_conversation_item>")
		writeElem(&b, "role", rec.Role)
		writeElem(&b, "content", rec.Content)
		b.WriteString("</past_conversation_item>")
	}
	b.WriteString("</conversation_history>")

	return b.String()
}

func writeBlock(b *strings.Builder, tag, content string) {
	if content == "" {
		return
	}
	b.WriteString("<")
	b.WriteString(tag)
	b.WriteString(">")
	b.WriteString(html.EscapeString(content))
	b.WriteString("</")
	b.WriteString(tag)
	b.WriteString(">")
}

func writeElem(b *strings.Builder, tag, content string) {
	b.WriteString("<")
	b.WriteString(tag)
	b.WriteString(">")
	b.WriteString(html.EscapeString(content))
	b.WriteString("</")
	b.WriteString(tag)
	b.WriteString(">")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}
