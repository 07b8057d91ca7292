package events

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	SessionTypeRealtime      = "realtime"
	SessionTypeTranscription = "transcription"

	AudioFormatPCM  = "audio/pcm"
	AudioFormatPCMU = "audio/pcmu"
	AudioFormatPCMA = "audio/pcma"

	TurnDetectionServerVAD   = "server_vad"
	TurnDetectionSemanticVAD = "semantic_vad"
)

// Session is the wire session object carried by session.created, session.updated
// and session.update. The server always sends a full snapshot.
type Session struct {
	Type             string        `json:"type,omitempty"`
	ID               string        `json:"id,omitempty"`
	Object           string        `json:"object,omitempty"`
	ExpiresAt        int64         `json:"expires_at,omitempty"`
	Model            string        `json:"model,omitempty"`
	Instructions     string        `json:"instructions,omitempty"`
	OutputModalities []string      `json:"output_modalities,omitempty"`
	MaxOutputTokens  *IntOrInf     `json:"max_output_tokens,omitempty"`
	Audio            *SessionAudio `json:"audio,omitempty"`
	Tools            []Tool        `json:"tools,omitempty"`
	ToolChoice       string        `json:"tool_choice,omitempty"`
	Include          []string      `json:"include,omitempty"`
}

type SessionAudio struct {
	Input  *AudioInput  `json:"input,omitempty"`
	Output *AudioOutput `json:"output,omitempty"`
}

type AudioInput struct {
	Format         *AudioFormat    `json:"format,omitempty"`
	Transcription  *Transcription  `json:"transcription,omitempty"`
	TurnDetection  *TurnDetection  `json:"turn_detection,omitempty"`
	NoiseReduction *NoiseReduction `json:"noise_reduction,omitempty"`
}

type AudioOutput struct {
	Format *AudioFormat `json:"format,omitempty"`
	Voice  string       `json:"voice,omitempty"`
	Speed  float64      `json:"speed,omitempty"`
}

type AudioFormat struct {
	Type string `json:"type"`
	Rate int    `json:"rate,omitempty"`
}

type Transcription struct {
	Language string `json:"language,omitempty"`
	Model    string `json:"model,omitempty"`
	Prompt   string `json:"prompt,omitempty"`
}

type NoiseReduction struct {
	Type string `json:"type,omitempty"`
}

// ServerVAD is volume based turn detection.
type ServerVAD struct {
	CreateResponse    bool    `json:"create_response"`
	InterruptResponse bool    `json:"interrupt_response"`
	IdleTimeoutMs     int64   `json:"idle_timeout_ms,omitempty"`
	PrefixPaddingMs   int64   `json:"prefix_padding_ms,omitempty"`
	SilenceDurationMs int64   `json:"silence_duration_ms,omitempty"`
	Threshold         float64 `json:"threshold,omitempty"`
}

// SemanticVAD uses a turn detection model to decide when the user is done.
type SemanticVAD struct {
	CreateResponse    bool   `json:"create_response"`
	InterruptResponse bool   `json:"interrupt_response"`
	Eagerness         string `json:"eagerness,omitempty"`
}

// TurnDetection holds exactly one VAD variant.
type TurnDetection struct {
	ServerVAD   *ServerVAD
	SemanticVAD *SemanticVAD
}

func (t TurnDetection) MarshalJSON() ([]byte, error) {
	switch {
	case t.ServerVAD != nil:
		type typeAlias ServerVAD
		return json.Marshal(struct {
			Type string `json:"type"`
			typeAlias
		}{TurnDetectionServerVAD, typeAlias(*t.ServerVAD)})
	case t.SemanticVAD != nil:
		type typeAlias SemanticVAD
		return json.Marshal(struct {
			Type string `json:"type"`
			typeAlias
		}{TurnDetectionSemanticVAD, typeAlias(*t.SemanticVAD)})
	}
	return nil, errors.New("no turn detection")
}

// UnmarshalJSON reads the variant's own "type" field before decoding the payload.
// Unknown variants leave both fields nil.
func (t *TurnDetection) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		return nil
	}
	var u typeStruct
	if err := json.Unmarshal(data, &u); err != nil {
		return fmt.Errorf("turn detection: %w", err)
	}
	switch u.Type {
	case TurnDetectionServerVAD:
		t.ServerVAD = &ServerVAD{}
		return json.Unmarshal(data, t.ServerVAD)
	case TurnDetectionSemanticVAD:
		t.SemanticVAD = &SemanticVAD{}
		return json.Unmarshal(data, t.SemanticVAD)
	}
	return nil
}
