package rtsession

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/codewandler/rtsession-go/content"
	"github.com/codewandler/rtsession-go/events"
)

var serverKinds = map[string]ServerMessageKind{
	events.TypeError:                              KindError,
	events.TypeSessionCreated:                     KindSessionCreated,
	events.TypeSessionUpdated:                     KindSessionUpdated,
	events.TypeResponseCreated:                    KindResponseCreated,
	events.TypeResponseDone:                       KindResponseDone,
	events.TypeResponseOutputItemAdded:            KindOutputItemAdded,
	events.TypeResponseOutputItemDone:             KindOutputItemDone,
	events.TypeConversationItemAdded:              KindConversationItemAdded,
	events.TypeConversationItemDone:               KindConversationItemDone,
	events.TypeResponseOutputTextDelta:            KindOutputTextDelta,
	events.TypeResponseOutputTextDone:             KindOutputTextDone,
	events.TypeResponseOutputAudioTranscriptDelta: KindOutputAudioTranscriptDelta,
	events.TypeResponseOutputAudioTranscriptDone:  KindOutputAudioTranscriptDone,
	events.TypeResponseOutputAudioDelta:           KindOutputAudioDelta,
	events.TypeResponseOutputAudioDone:            KindOutputAudioDone,
	events.TypeResponseFunctionCallArgumentsDelta: KindFunctionCallArgumentsDelta,
	events.TypeResponseFunctionCallArgumentsDone:  KindFunctionCallArgumentsDone,
	events.TypeInputAudioTranscriptionDelta:       KindInputAudioTranscriptionDelta,
	events.TypeInputAudioTranscriptionCompleted:   KindInputAudioTranscriptionCompleted,
	events.TypeInputAudioTranscriptionFailed:      KindInputAudioTranscriptionFailed,
	events.TypeInputAudioBufferSpeechStarted:      KindSpeechStarted,
	events.TypeInputAudioBufferSpeechStopped:      KindSpeechStopped,
	events.TypeInputAudioBufferCommitted:          KindInputAudioBufferCommitted,
	events.TypeInputAudioBufferCleared:            KindInputAudioBufferCleared,
	events.TypeMCPCallInProgress:                  KindMCPCallInProgress,
	events.TypeMCPCallCompleted:                   KindMCPCallCompleted,
	events.TypeMCPCallFailed:                      KindMCPCallFailed,
	events.TypeResponseMCPCallInProgress:          KindMCPCallInProgress,
	events.TypeResponseMCPCallCompleted:           KindMCPCallCompleted,
	events.TypeResponseMCPCallFailed:              KindMCPCallFailed,
	events.TypeMCPListToolsInProgress:             KindMCPListToolsInProgress,
	events.TypeMCPListToolsCompleted:              KindMCPListToolsCompleted,
	events.TypeMCPListToolsFailed:                 KindMCPListToolsFailed,
}

// DecodeServerEvent maps one inbound frame to a ServerMessage. It never fails:
// frames that are not JSON objects, carry an unknown type or do not match the
// shape of their type come back as *RawMessage holding the original bytes.
func DecodeServerEvent(data []byte) ServerMessage {
	msg, _ := decodeServerEvent(data)
	return msg
}

// decodeServerEvent is DecodeServerEvent but also reports why a known frame fell
// back to a raw message. Unknown types are not an error.
func decodeServerEvent(data []byte) (ServerMessage, error) {
	raw := json.RawMessage(bytes.Clone(data))

	var head struct {
		Type    string `json:"type"`
		EventID string `json:"event_id"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return &RawMessage{Envelope: Envelope{Raw: raw}}, fmt.Errorf("invalid frame: %w", err)
	}

	env := Envelope{ID: head.EventID, Raw: raw}
	kind, ok := serverKinds[head.Type]
	if !ok {
		return &RawMessage{Envelope: env, Type: head.Type}, nil
	}

	msg, err := decodeKnown(kind, env)
	if err != nil {
		return &RawMessage{Envelope: env, Type: head.Type}, fmt.Errorf("decode %s: %w", head.Type, err)
	}
	return msg, nil
}

func decodeKnown(kind ServerMessageKind, env Envelope) (ServerMessage, error) {
	switch kind {
	case KindError:
		evt, err := events.Parse[events.ErrorEvent](env.Raw)
		if err != nil {
			return nil, err
		}
		d := evt.ErrorDetail
		return &ErrorMessage{
			Envelope:     env,
			Message:      d.Message,
			Code:         d.Code,
			Param:        d.Param,
			ErrorType:    d.Type,
			CauseEventID: d.EventID,
		}, nil

	case KindSessionCreated, KindSessionUpdated:
		evt, err := events.Parse[events.SessionEvent](env.Raw)
		if err != nil {
			return nil, err
		}
		return &SessionMessage{Envelope: env, Type: kind, Session: sessionFromWire(&evt.Session)}, nil

	case KindResponseCreated, KindResponseDone:
		evt, err := events.Parse[events.ResponseEvent](env.Raw)
		if err != nil {
			return nil, err
		}
		return responseFromWire(env, kind, &evt.Response), nil

	case KindOutputItemAdded, KindOutputItemDone, KindConversationItemAdded, KindConversationItemDone:
		evt, err := events.Parse[events.ItemEvent](env.Raw)
		if err != nil {
			return nil, err
		}
		return &ItemMessage{
			Envelope:       env,
			Type:           kind,
			ResponseID:     evt.ResponseID,
			OutputIndex:    evt.OutputIndex,
			PreviousItemID: evt.PreviousItemID,
			Item:           itemFromWire(evt.Item),
		}, nil

	case KindOutputTextDelta, KindOutputTextDone,
		KindOutputAudioTranscriptDelta, KindOutputAudioTranscriptDone,
		KindOutputAudioDelta, KindOutputAudioDone,
		KindFunctionCallArgumentsDelta, KindFunctionCallArgumentsDone:
		evt, err := events.Parse[events.OutputEvent](env.Raw)
		if err != nil {
			return nil, err
		}
		return outputFromWire(env, kind, evt)

	case KindInputAudioTranscriptionDelta, KindInputAudioTranscriptionCompleted, KindInputAudioTranscriptionFailed:
		evt, err := events.Parse[events.TranscriptionEvent](env.Raw)
		if err != nil {
			return nil, err
		}
		m := &TranscriptionMessage{
			Envelope:     env,
			Type:         kind,
			ItemID:       evt.ItemID,
			ContentIndex: evt.ContentIndex,
			Usage:        usageFromWire(evt.Usage),
			Error:        errorFromWire(evt.Error),
		}
		if kind == KindInputAudioTranscriptionDelta {
			m.Transcription = evt.Delta
		} else {
			m.Transcription = evt.Transcript
		}
		return m, nil

	case KindSpeechStarted, KindSpeechStopped, KindInputAudioBufferCommitted, KindInputAudioBufferCleared:
		evt, err := events.Parse[events.InputAudioBufferEvent](env.Raw)
		if err != nil {
			return nil, err
		}
		return &InputAudioBufferMessage{
			Envelope:       env,
			Type:           kind,
			ItemID:         evt.ItemID,
			PreviousItemID: evt.PreviousItemID,
			AudioStart:     evt.AudioStartMs,
			AudioEnd:       evt.AudioEndMs,
		}, nil

	case KindMCPCallInProgress, KindMCPCallCompleted, KindMCPCallFailed,
		KindMCPListToolsInProgress, KindMCPListToolsCompleted, KindMCPListToolsFailed:
		evt, err := events.Parse[events.MCPEvent](env.Raw)
		if err != nil {
			return nil, err
		}
		return &MCPMessage{Envelope: env, Type: kind, ItemID: evt.ItemID, OutputIndex: evt.OutputIndex}, nil
	}

	return nil, fmt.Errorf("no decoder for %s", kind)
}

func outputFromWire(env Envelope, kind ServerMessageKind, evt *events.OutputEvent) (*OutputMessage, error) {
	m := &OutputMessage{
		Envelope:     env,
		Type:         kind,
		ResponseID:   evt.ResponseID,
		ItemID:       evt.ItemID,
		OutputIndex:  evt.OutputIndex,
		ContentIndex: evt.ContentIndex,
	}
	switch kind {
	case KindOutputTextDelta, KindOutputAudioTranscriptDelta, KindFunctionCallArgumentsDelta:
		m.Text = evt.Delta
	case KindOutputTextDone:
		m.Text = evt.Text
	case KindOutputAudioTranscriptDone:
		m.Text = evt.Transcript
	case KindOutputAudioDelta:
		audio, err := base64.StdEncoding.DecodeString(evt.Delta)
		if err != nil {
			return nil, fmt.Errorf("audio delta: %w", err)
		}
		m.Audio = audio
	case KindFunctionCallArgumentsDone:
		m.Text = evt.Arguments
		m.FunctionCall = functionCall(evt.CallID, evt.Name, evt.Arguments)
	}
	return m, nil
}

func responseFromWire(env Envelope, kind ServerMessageKind, r *events.Response) *ResponseMessage {
	m := &ResponseMessage{
		Envelope:        env,
		Type:            kind,
		ResponseID:      r.ID,
		ConversationID:  r.ConversationID,
		Status:          r.Status,
		MaxOutputTokens: tokensFromWire(r.MaxOutputTokens),
		Metadata:        r.Metadata,
		Usage:           usageFromWire(r.Usage),
	}
	if d := r.StatusDetails; d != nil {
		m.StatusReason = d.Reason
		m.Error = errorFromWire(d.Error)
	}
	for _, mod := range r.OutputModalities {
		m.OutputModalities = append(m.OutputModalities, Modality(mod))
	}
	for _, item := range r.Output {
		m.Items = append(m.Items, itemFromWire(item))
	}
	return m
}

func errorFromWire(d *events.ErrorDetail) *content.Error {
	if d == nil {
		return nil
	}
	return &content.Error{Message: d.Message, Code: d.Code, Details: d.Type}
}

func usageFromWire(u *events.Usage) *content.Usage {
	if u == nil {
		return nil
	}
	usage := &content.Usage{
		InputTokens:  u.InputTokens,
		OutputTokens: u.OutputTokens,
		TotalTokens:  u.TotalTokens,
		Seconds:      u.Seconds,
	}
	if d := u.InputTokenDetails; d != nil {
		usage.CachedInputTokens = d.CachedTokens
		usage.InputTextTokens = d.TextTokens
		usage.InputAudioTokens = d.AudioTokens
	}
	if d := u.OutputTokenDetails; d != nil {
		usage.OutputTextTokens = d.TextTokens
		usage.OutputAudioTokens = d.AudioTokens
	}
	return usage
}

// EncodeClientMessage serializes an outbound command. Typed commands without an
// EventID get a generated one. Raw messages are sent unchanged except that
// EventID is merged into a JSON object payload lacking its own event_id.
func EncodeClientMessage(msg ClientMessage) ([]byte, error) {
	evt, err := clientEvent(msg)
	if err != nil {
		return nil, err
	}
	if data, ok := evt.([]byte); ok {
		return data, nil
	}
	return json.Marshal(evt)
}

func clientEvent(msg ClientMessage) (any, error) {
	switch m := msg.(type) {
	case *ResponseCreate:
		if m == nil {
			return nil, ErrNilMessage
		}
		payload, err := responseCreateToWire(m)
		if err != nil {
			return nil, err
		}
		return events.ResponseCreateEvent{
			BaseEvent: events.WithEventID(events.TypeResponseCreate, m.EventID),
			Response:  payload,
		}, nil

	case *ConversationItemCreate:
		if m == nil {
			return nil, ErrNilMessage
		}
		item, err := itemToWire(m.Item)
		if err != nil {
			return nil, err
		}
		return events.ConversationItemCreateEvent{
			BaseEvent:      events.WithEventID(events.TypeConversationItemCreate, m.EventID),
			PreviousItemID: m.PreviousItemID,
			Item:           item,
		}, nil

	case *InputAudioBufferAppend:
		if m == nil {
			return nil, ErrNilMessage
		}
		return events.InputAudioBufferAppendEvent{
			BaseEvent: events.WithEventID(events.TypeInputAudioBufferAppend, m.EventID),
			Audio:     base64.StdEncoding.EncodeToString(m.Audio),
		}, nil

	case *InputAudioBufferCommit:
		if m == nil {
			return nil, ErrNilMessage
		}
		return events.InputAudioBufferCommitEvent{
			BaseEvent: events.WithEventID(events.TypeInputAudioBufferCommit, m.EventID),
		}, nil

	case *InputAudioBufferClear:
		if m == nil {
			return nil, ErrNilMessage
		}
		return events.InputAudioBufferClearEvent{
			BaseEvent: events.WithEventID(events.TypeInputAudioBufferClear, m.EventID),
		}, nil

	case *SessionUpdate:
		if m == nil {
			return nil, ErrNilMessage
		}
		return events.SessionUpdateEvent{
			BaseEvent: events.WithEventID(events.TypeSessionUpdate, m.EventID),
			Session:   sessionToWire(&m.Options),
		}, nil

	case *ResponseCancel:
		if m == nil {
			return nil, ErrNilMessage
		}
		return events.ResponseCancelEvent{
			BaseEvent:  events.WithEventID(events.TypeResponseCancel, m.EventID),
			ResponseID: m.ResponseID,
		}, nil

	case *ConversationItemDelete:
		if m == nil {
			return nil, ErrNilMessage
		}
		return events.ConversationItemDeleteEvent{
			BaseEvent: events.WithEventID(events.TypeConversationItemDelete, m.EventID),
			ItemID:    m.ItemID,
		}, nil

	case *ConversationItemTruncate:
		if m == nil {
			return nil, ErrNilMessage
		}
		return events.ConversationItemTruncateEvent{
			BaseEvent:    events.WithEventID(events.TypeConversationItemTruncate, m.EventID),
			ItemID:       m.ItemID,
			ContentIndex: m.ContentIndex,
			AudioEndMs:   m.AudioEnd,
		}, nil

	case *RawClientMessage:
		if m == nil {
			return nil, ErrNilMessage
		}
		return encodeRaw(m)

	case nil:
		return nil, ErrNilMessage
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedMessage, msg)
}

func responseCreateToWire(m *ResponseCreate) (events.ResponseCreatePayload, error) {
	p := events.ResponseCreatePayload{
		Instructions:    m.Instructions,
		MaxOutputTokens: tokensToWire(m.MaxOutputTokens),
		Tools:           toolsToWire(m.Tools),
		ToolChoice:      string(m.ToolChoice),
		Metadata:        m.Metadata,
	}
	if m.ExcludeFromConversation {
		p.Conversation = "none"
	}
	for _, mod := range m.OutputModalities {
		p.OutputModalities = append(p.OutputModalities, string(mod))
	}
	if m.Voice != "" || m.OutputAudioFormat != nil {
		p.Audio = &events.ResponseAudio{Output: &events.AudioOutput{
			Format: audioFormatToWire(m.OutputAudioFormat),
			Voice:  m.Voice,
		}}
	}
	for _, item := range m.Items {
		w, err := itemToWire(item)
		if err != nil {
			return p, err
		}
		p.Input = append(p.Input, w)
	}
	return p, nil
}

// encodeRaw returns the raw payload bytes. An event_id already embedded in the
// payload is kept; m.EventID only fills the gap.
func encodeRaw(m *RawClientMessage) ([]byte, error) {
	var data []byte
	switch c := m.Content.(type) {
	case nil:
		return nil, ErrNilMessage
	case string:
		data = []byte(c)
	case []byte:
		data = c
	case json.RawMessage:
		data = c
	default:
		b, err := json.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("marshal raw message: %w", err)
		}
		data = b
	}

	if m.EventID == "" {
		return data, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
		return data, nil
	}
	if hasEventID(obj) {
		return data, nil
	}
	id, err := json.Marshal(m.EventID)
	if err != nil {
		return nil, err
	}
	obj["event_id"] = id
	return json.Marshal(obj)
}

func hasEventID(obj map[string]json.RawMessage) bool {
	v, ok := obj["event_id"]
	if !ok {
		return false
	}
	var id string
	if err := json.Unmarshal(v, &id); err != nil {
		// non-string ids are left for the server to reject
		return true
	}
	return id != ""
}
