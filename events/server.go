package events

import "fmt"

const (
	TypeError                              = "error"
	TypeSessionCreated                     = "session.created"
	TypeSessionUpdated                     = "session.updated"
	TypeResponseCreated                    = "response.created"
	TypeResponseDone                       = "response.done"
	TypeResponseOutputItemAdded            = "response.output_item.added"
	TypeResponseOutputItemDone             = "response.output_item.done"
	TypeConversationItemAdded              = "conversation.item.added"
	TypeConversationItemDone               = "conversation.item.done"
	TypeInputAudioTranscriptionDelta       = "conversation.item.input_audio_transcription.delta"
	TypeInputAudioTranscriptionCompleted   = "conversation.item.input_audio_transcription.completed"
	TypeInputAudioTranscriptionFailed      = "conversation.item.input_audio_transcription.failed"
	TypeResponseOutputTextDelta            = "response.output_text.delta"
	TypeResponseOutputTextDone             = "response.output_text.done"
	TypeResponseOutputAudioTranscriptDelta = "response.output_audio_transcript.delta"
	TypeResponseOutputAudioTranscriptDone  = "response.output_audio_transcript.done"
	TypeResponseOutputAudioDelta           = "response.output_audio.delta"
	TypeResponseOutputAudioDone            = "response.output_audio.done"
	TypeResponseFunctionCallArgumentsDelta = "response.function_call_arguments.delta"
	TypeResponseFunctionCallArgumentsDone  = "response.function_call_arguments.done"
	TypeInputAudioBufferSpeechStarted      = "input_audio_buffer.speech_started"
	TypeInputAudioBufferSpeechStopped      = "input_audio_buffer.speech_stopped"
	TypeInputAudioBufferCommitted          = "input_audio_buffer.committed"
	TypeInputAudioBufferCleared            = "input_audio_buffer.cleared"
	TypeMCPCallInProgress                  = "mcp_call.in_progress"
	TypeMCPCallCompleted                   = "mcp_call.completed"
	TypeMCPCallFailed                      = "mcp_call.failed"
	TypeResponseMCPCallInProgress          = "response.mcp_call.in_progress"
	TypeResponseMCPCallCompleted           = "response.mcp_call.completed"
	TypeResponseMCPCallFailed              = "response.mcp_call.failed"
	TypeMCPListToolsInProgress             = "mcp_list_tools.in_progress"
	TypeMCPListToolsCompleted              = "mcp_list_tools.completed"
	TypeMCPListToolsFailed                 = "mcp_list_tools.failed"
)

type ErrorEvent struct {
	BaseEvent
	ErrorDetail ErrorDetail `json:"error"`
}

func (e *ErrorEvent) Error() string {
	return e.ErrorDetail.Error()
}

// ErrorDetail holds the details of the error.
type ErrorDetail struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Param   string `json:"param"`
	EventID string `json:"event_id"`
}

func (e *ErrorDetail) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

type SessionEvent struct {
	BaseEvent
	Session Session `json:"session"`
}

type ResponseEvent struct {
	BaseEvent
	Response Response `json:"response"`
}

type Response struct {
	ID               string            `json:"id"`
	Object           string            `json:"object,omitempty"`
	Status           string            `json:"status,omitempty"`
	StatusDetails    *StatusDetails    `json:"status_details,omitempty"`
	ConversationID   string            `json:"conversation_id,omitempty"`
	Output           []Item            `json:"output,omitempty"`
	OutputModalities []string          `json:"output_modalities,omitempty"`
	MaxOutputTokens  *IntOrInf         `json:"max_output_tokens,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	Usage            *Usage            `json:"usage,omitempty"`
}

type StatusDetails struct {
	Type   string       `json:"type,omitempty"`
	Reason string       `json:"reason,omitempty"`
	Error  *ErrorDetail `json:"error,omitempty"`
}

// Usage covers both token usage (responses, token based transcription) and
// duration usage (duration based transcription).
type Usage struct {
	Type               string              `json:"type,omitempty"`
	TotalTokens        int64               `json:"total_tokens"`
	InputTokens        int64               `json:"input_tokens"`
	OutputTokens       int64               `json:"output_tokens"`
	Seconds            float64             `json:"seconds,omitempty"`
	InputTokenDetails  *InputTokenDetails  `json:"input_token_details,omitempty"`
	OutputTokenDetails *OutputTokenDetails `json:"output_token_details,omitempty"`
}

type InputTokenDetails struct {
	CachedTokens int64 `json:"cached_tokens"`
	TextTokens   int64 `json:"text_tokens"`
	AudioTokens  int64 `json:"audio_tokens"`
}

type OutputTokenDetails struct {
	TextTokens  int64 `json:"text_tokens"`
	AudioTokens int64 `json:"audio_tokens"`
}

// ItemEvent covers response.output_item.* and conversation.item.*.
type ItemEvent struct {
	BaseEvent
	ResponseID     string `json:"response_id,omitempty"`
	OutputIndex    int    `json:"output_index"`
	PreviousItemID string `json:"previous_item_id,omitempty"`
	Item           Item   `json:"item"`
}

// OutputEvent covers the streamed text, transcript, audio and function argument
// events of a response.
type OutputEvent struct {
	BaseEvent
	ResponseID   string `json:"response_id"`
	ItemID       string `json:"item_id"`
	OutputIndex  int    `json:"output_index"`
	ContentIndex int    `json:"content_index"`
	Delta        string `json:"delta,omitempty"`
	Text         string `json:"text,omitempty"`
	Transcript   string `json:"transcript,omitempty"`
	CallID       string `json:"call_id,omitempty"`
	Name         string `json:"name,omitempty"`
	Arguments    string `json:"arguments,omitempty"`
}

type TranscriptionEvent struct {
	BaseEvent
	ItemID       string       `json:"item_id"`
	ContentIndex int          `json:"content_index"`
	Delta        string       `json:"delta,omitempty"`
	Transcript   string       `json:"transcript,omitempty"`
	Usage        *Usage       `json:"usage,omitempty"`
	Error        *ErrorDetail `json:"error,omitempty"`
}

type MCPEvent struct {
	BaseEvent
	ItemID      string `json:"item_id"`
	OutputIndex int    `json:"output_index"`
}

type InputAudioBufferEvent struct {
	BaseEvent
	ItemID         string `json:"item_id,omitempty"`
	PreviousItemID string `json:"previous_item_id,omitempty"`
	AudioStartMs   int64  `json:"audio_start_ms,omitempty"`
	AudioEndMs     int64  `json:"audio_end_ms,omitempty"`
}
