// Package chat implements the conversation state and the turn engine
// that drives the model/tool loop.
package chat

import (
	"fmt"

	"github.com/locodev/loco/internal/llm"
)

// Conversation holds the message history for one chat session.
// Messages are append-only; the system prompt is kept out of the slice
// and synthesized at the front of every History call so that model or
// skill switches take effect on the next turn.
type Conversation struct {
	Model        string
	SystemPrompt string

	// SkillAugmentation is extra system-prompt text contributed by an
	// activated skill. Empty when no skill is active.
	SkillAugmentation string

	// ToolFilter restricts which registry tools the engine offers the
	// model. Empty means all tools.
	ToolFilter []string

	Messages []llm.Message
}

// NewConversation creates a conversation for the given model.
func NewConversation(model, systemPrompt string) *Conversation {
	return &Conversation{Model: model, SystemPrompt: systemPrompt}
}

// AddUserMessage appends a user message.
func (c *Conversation) AddUserMessage(content string) {
	c.Messages = append(c.Messages, llm.Message{Role: "user", Content: content})
}

// AddAssistantMessage appends an assistant message verbatim, tool calls
// included.
func (c *Conversation) AddAssistantMessage(msg llm.Message) {
	msg.Role = "assistant"
	c.Messages = append(c.Messages, msg)
}

// AddToolResult appends a tool result answering the given tool call.
func (c *Conversation) AddToolResult(toolCallID, name, result string) {
	c.Messages = append(c.Messages, llm.Message{
		Role:       "tool",
		Content:    result,
		ToolCallID: toolCallID,
		Name:       name,
	})
}

// History returns the full message list for an LLM call, with the
// system message (base prompt plus any skill augmentation) first.
func (c *Conversation) History() []llm.Message {
	system := c.SystemPrompt
	if c.SkillAugmentation != "" {
		if system != "" {
			system += "\n\n"
		}
		system += c.SkillAugmentation
	}

	out := make([]llm.Message, 0, len(c.Messages)+1)
	if system != "" {
		out = append(out, llm.Message{Role: "system", Content: system})
	}
	out = append(out, c.Messages...)
	return out
}

// Clear drops the message history. The system prompt and model are kept.
func (c *Conversation) Clear() {
	c.Messages = nil
}

// DefaultSystemPrompt is the coding-assistant prompt used when the
// config does not supply its own.
func DefaultSystemPrompt(cwd string) string {
	return fmt.Sprintf(`You are a helpful coding assistant running in a terminal. You help users with software engineering tasks.

Current working directory: %s

You have access to tools for reading, writing, and editing files, as well as running bash commands.

Guidelines:
- Be concise and direct in your responses
- When reading or modifying files, always use the appropriate tools
- Explain what you're doing when using tools
- If you're unsure about something, ask for clarification
- Format code blocks with appropriate language tags for syntax highlighting
- When showing file paths, use absolute paths when possible

Available tools:
- read: Read file contents
- write: Write content to a file (creates or overwrites)
- edit: Edit a file by replacing a specific string
- bash: Execute a bash command
- glob: Find files matching a pattern (e.g., '**/*.py')
- grep: Search file contents with regex`, cwd)
}
