package chat

// InboundEvent is one frame received from a live connection or posted over HTTP.
// Metadata is accepted as an alias of ToolMetadata.
type InboundEvent struct {
	Role         string `json:"role"`
	Content      string `json:"content"`
	ToolCalls    any    `json:"tool_calls,omitempty"`
	ToolMetadata any    `json:"tool_metadata,omitempty"`
	Metadata     any    `json:"metadata,omitempty"`
}

// IsEmpty is true for events with neither content nor tool calls; those are ignored.
func (e InboundEvent) IsEmpty() bool {
	return e.Content == "" && IsEmptyToolPayload(e.ToolCalls)
}

func (e InboundEvent) Meta() any {
	if e.ToolMetadata != nil {
		return e.ToolMetadata
	}
	return e.Metadata
}

// ErrorEvent is sent back to a single connection whose frame was rejected.
type ErrorEvent struct {
	Error string `json:"error"`
}
