package rtsession

import (
	"encoding/json"

	"github.com/codewandler/rtsession-go/content"
	"github.com/codewandler/rtsession-go/events"
	"github.com/codewandler/rtsession-go/tool"
)

type ServerMessageKind string

const (
	KindError                            ServerMessageKind = "error"
	KindSessionCreated                   ServerMessageKind = "session_created"
	KindSessionUpdated                   ServerMessageKind = "session_updated"
	KindResponseCreated                  ServerMessageKind = "response_created"
	KindResponseDone                     ServerMessageKind = "response_done"
	KindOutputItemAdded                  ServerMessageKind = "output_item_added"
	KindOutputItemDone                   ServerMessageKind = "output_item_done"
	KindConversationItemAdded            ServerMessageKind = "conversation_item_added"
	KindConversationItemDone             ServerMessageKind = "conversation_item_done"
	KindOutputTextDelta                  ServerMessageKind = "output_text_delta"
	KindOutputTextDone                   ServerMessageKind = "output_text_done"
	KindOutputAudioTranscriptDelta       ServerMessageKind = "output_audio_transcript_delta"
	KindOutputAudioTranscriptDone        ServerMessageKind = "output_audio_transcript_done"
	KindOutputAudioDelta                 ServerMessageKind = "output_audio_delta"
	KindOutputAudioDone                  ServerMessageKind = "output_audio_done"
	KindFunctionCallArgumentsDelta       ServerMessageKind = "function_call_arguments_delta"
	KindFunctionCallArgumentsDone        ServerMessageKind = "function_call_arguments_done"
	KindInputAudioTranscriptionDelta     ServerMessageKind = "input_audio_transcription_delta"
	KindInputAudioTranscriptionCompleted ServerMessageKind = "input_audio_transcription_completed"
	KindInputAudioTranscriptionFailed    ServerMessageKind = "input_audio_transcription_failed"
	KindSpeechStarted                    ServerMessageKind = "speech_started"
	KindSpeechStopped                    ServerMessageKind = "speech_stopped"
	KindInputAudioBufferCommitted        ServerMessageKind = "input_audio_buffer_committed"
	KindInputAudioBufferCleared          ServerMessageKind = "input_audio_buffer_cleared"
	KindMCPCallInProgress                ServerMessageKind = "mcp_call_in_progress"
	KindMCPCallCompleted                 ServerMessageKind = "mcp_call_completed"
	KindMCPCallFailed                    ServerMessageKind = "mcp_call_failed"
	KindMCPListToolsInProgress           ServerMessageKind = "mcp_list_tools_in_progress"
	KindMCPListToolsCompleted            ServerMessageKind = "mcp_list_tools_completed"
	KindMCPListToolsFailed               ServerMessageKind = "mcp_list_tools_failed"
	KindRaw                              ServerMessageKind = "raw"
)

// ServerMessage is one decoded inbound event. The concrete type is one of
// *ErrorMessage, *SessionMessage, *ResponseMessage, *ItemMessage, *OutputMessage,
// *TranscriptionMessage, *InputAudioBufferMessage, *MCPMessage or *RawMessage.
type ServerMessage interface {
	Kind() ServerMessageKind
	EventID() string
	RawRepresentation() json.RawMessage
}

// Envelope holds the fields every server message carries.
type Envelope struct {
	ID  string
	Raw json.RawMessage
}

func (e Envelope) EventID() string { return e.ID }

func (e Envelope) RawRepresentation() json.RawMessage { return e.Raw }

// ErrorMessage is a protocol level error reported by the service. It is data, not
// a failure of the stream.
type ErrorMessage struct {
	Envelope
	Message      string
	Code         string
	Param        string
	ErrorType    string
	CauseEventID string
}

func (m *ErrorMessage) Kind() ServerMessageKind { return KindError }

func (m *ErrorMessage) Error() string {
	if m.Code == "" {
		return m.Message
	}
	return m.Code + ": " + m.Message
}

// SessionMessage is yielded after the session state has been replaced.
type SessionMessage struct {
	Envelope
	Type    ServerMessageKind
	Session *SessionOptions
}

func (m *SessionMessage) Kind() ServerMessageKind { return m.Type }

type ResponseMessage struct {
	Envelope
	Type             ServerMessageKind
	ResponseID       string
	ConversationID   string
	Status           string
	StatusReason     string
	Error            *content.Error
	Items            []content.Item
	OutputModalities []Modality
	MaxOutputTokens  *int
	Metadata         map[string]string
	Usage            *content.Usage
}

func (m *ResponseMessage) Kind() ServerMessageKind { return m.Type }

// Parts flattens the parts of all output items, followed by a content.Usage part
// when the response reported usage.
func (m *ResponseMessage) Parts() []content.Part {
	var parts []content.Part
	for _, item := range m.Items {
		parts = append(parts, item.Parts...)
	}
	if m.Usage != nil {
		parts = append(parts, *m.Usage)
	}
	return parts
}

// ItemMessage carries a whole content item: output items, conversation items and
// completed function calls.
type ItemMessage struct {
	Envelope
	Type           ServerMessageKind
	ResponseID     string
	OutputIndex    int
	PreviousItemID string
	Item           content.Item
}

func (m *ItemMessage) Kind() ServerMessageKind { return m.Type }

// OutputMessage is a streamed piece of a response. Text holds text, transcript
// and argument fragments; Audio holds decoded audio bytes. FunctionCall is only
// set on KindFunctionCallArgumentsDone.
type OutputMessage struct {
	Envelope
	Type         ServerMessageKind
	ResponseID   string
	ItemID       string
	OutputIndex  int
	ContentIndex int
	Text         string
	Audio        []byte
	FunctionCall *content.FunctionCall
}

func (m *OutputMessage) Kind() ServerMessageKind { return m.Type }

type TranscriptionMessage struct {
	Envelope
	Type          ServerMessageKind
	ItemID        string
	ContentIndex  int
	Transcription string
	Usage         *content.Usage
	Error         *content.Error
}

func (m *TranscriptionMessage) Kind() ServerMessageKind { return m.Type }

type InputAudioBufferMessage struct {
	Envelope
	Type           ServerMessageKind
	ItemID         string
	PreviousItemID string
	AudioStart     int64
	AudioEnd       int64
}

func (m *InputAudioBufferMessage) Kind() ServerMessageKind { return m.Type }

// MCPMessage reports progress of an mcp_call or mcp_list_tools item.
type MCPMessage struct {
	Envelope
	Type        ServerMessageKind
	ItemID      string
	OutputIndex int
}

func (m *MCPMessage) Kind() ServerMessageKind { return m.Type }

// RawMessage is any event this package has no typed representation for,
// including frames that are not valid JSON.
type RawMessage struct {
	Envelope
	Type string
}

func (m *RawMessage) Kind() ServerMessageKind { return KindRaw }

// ClientMessage is one outbound command. The concrete type is one of
// *ResponseCreate, *ConversationItemCreate, *InputAudioBufferAppend,
// *InputAudioBufferCommit, *InputAudioBufferClear, *SessionUpdate,
// *ResponseCancel, *ConversationItemDelete, *ConversationItemTruncate or
// *RawClientMessage.
type ClientMessage interface {
	clientMessage()
}

type ResponseCreate struct {
	EventID          string
	Instructions     string
	MaxOutputTokens  *int
	OutputModalities []Modality
	Tools            []tool.Tool
	ToolChoice       tool.Choice
	// ExcludeFromConversation creates an out-of-band response.
	ExcludeFromConversation bool
	Voice                   string
	OutputAudioFormat       *AudioFormat
	Metadata                map[string]string
	Items                   []content.Item
}

type ConversationItemCreate struct {
	EventID        string
	PreviousItemID string
	Item           content.Item
}

type InputAudioBufferAppend struct {
	EventID string
	Audio   []byte
}

type InputAudioBufferCommit struct {
	EventID string
}

type InputAudioBufferClear struct {
	EventID string
}

type SessionUpdate struct {
	EventID string
	Options SessionOptions
}

type ResponseCancel struct {
	EventID    string
	ResponseID string
}

type ConversationItemDelete struct {
	EventID string
	ItemID  string
}

type ConversationItemTruncate struct {
	EventID      string
	ItemID       string
	ContentIndex int
	AudioEnd     int64
}

// RawClientMessage is sent as is. Content is a string, []byte, json.RawMessage or
// any JSON-marshalable value. EventID is only applied when the payload does not
// already carry an event_id.
type RawClientMessage struct {
	EventID string
	Content any
}

func (*ResponseCreate) clientMessage()           {}
func (*ConversationItemCreate) clientMessage()   {}
func (*InputAudioBufferAppend) clientMessage()   {}
func (*InputAudioBufferCommit) clientMessage()   {}
func (*InputAudioBufferClear) clientMessage()    {}
func (*SessionUpdate) clientMessage()            {}
func (*ResponseCancel) clientMessage()           {}
func (*ConversationItemDelete) clientMessage()   {}
func (*ConversationItemTruncate) clientMessage() {}
func (*RawClientMessage) clientMessage()         {}

func clientMessageType(msg ClientMessage) string {
	switch msg.(type) {
	case *ResponseCreate:
		return events.TypeResponseCreate
	case *ConversationItemCreate:
		return events.TypeConversationItemCreate
	case *InputAudioBufferAppend:
		return events.TypeInputAudioBufferAppend
	case *InputAudioBufferCommit:
		return events.TypeInputAudioBufferCommit
	case *InputAudioBufferClear:
		return events.TypeInputAudioBufferClear
	case *SessionUpdate:
		return events.TypeSessionUpdate
	case *ResponseCancel:
		return events.TypeResponseCancel
	case *ConversationItemDelete:
		return events.TypeConversationItemDelete
	case *ConversationItemTruncate:
		return events.TypeConversationItemTruncate
	}
	return "raw"
}
