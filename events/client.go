package events

const (
	TypeSessionUpdate            = "session.update"
	TypeConversationItemCreate   = "conversation.item.create"
	TypeConversationItemDelete   = "conversation.item.delete"
	TypeConversationItemTruncate = "conversation.item.truncate"
	TypeResponseCreate           = "response.create"
	TypeResponseCancel           = "response.cancel"
	TypeInputAudioBufferAppend   = "input_audio_buffer.append"
	TypeInputAudioBufferCommit   = "input_audio_buffer.commit"
	TypeInputAudioBufferClear    = "input_audio_buffer.clear"
)

type SessionUpdateEvent struct {
	BaseEvent
	Session Session `json:"session"`
}

type ConversationItemCreateEvent struct {
	BaseEvent
	PreviousItemID string `json:"previous_item_id,omitempty"`
	Item           Item   `json:"item"`
}

type ConversationItemDeleteEvent struct {
	BaseEvent
	ItemID string `json:"item_id"`
}

type ConversationItemTruncateEvent struct {
	BaseEvent
	ItemID       string `json:"item_id"`
	ContentIndex int    `json:"content_index"`
	AudioEndMs   int64  `json:"audio_end_ms"`
}

type ResponseCreateEvent struct {
	BaseEvent
	Response ResponseCreatePayload `json:"response"`
}

type ResponseCreatePayload struct {
	// Conversation is "none" for out-of-band responses.
	Conversation     string            `json:"conversation,omitempty"`
	Instructions     string            `json:"instructions,omitempty"`
	MaxOutputTokens  *IntOrInf         `json:"max_output_tokens,omitempty"`
	OutputModalities []string          `json:"output_modalities,omitempty"`
	Tools            []Tool            `json:"tools,omitempty"`
	ToolChoice       string            `json:"tool_choice,omitempty"`
	Audio            *ResponseAudio    `json:"audio,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	Input            []Item            `json:"input,omitempty"`
}

type ResponseAudio struct {
	Output *AudioOutput `json:"output,omitempty"`
}

type ResponseCancelEvent struct {
	BaseEvent
	ResponseID string `json:"response_id,omitempty"`
}

type InputAudioBufferAppendEvent struct {
	BaseEvent
	Audio string `json:"audio"`
}

type InputAudioBufferCommitEvent struct {
	BaseEvent
}

type InputAudioBufferClearEvent struct {
	BaseEvent
}
