package rtsession

import (
	"sync/atomic"
	"time"

	"github.com/codewandler/rtsession-go/events"
	"github.com/codewandler/rtsession-go/tool"
)

type SessionKind string

const (
	SessionKindRealtime      SessionKind = "realtime"
	SessionKindTranscription SessionKind = "transcription"
)

type Modality string

const (
	ModalityText  Modality = "text"
	ModalityAudio Modality = "audio"
)

// AudioFormat describes a codec by its wire type, e.g. "audio/pcm", and sample rate.
type AudioFormat struct {
	Type       string
	SampleRate int
}

// PCM16 is 16 bit little endian mono PCM at the given rate.
func PCM16(sampleRate int) *AudioFormat {
	return &AudioFormat{Type: events.AudioFormatPCM, SampleRate: sampleRate}
}

// VoiceActivityDetection is either *ServerVAD or *SemanticVAD.
type VoiceActivityDetection interface {
	vadType() string
}

type ServerVAD struct {
	CreateResponse    bool
	InterruptResponse bool
	IdleTimeout       time.Duration
	PrefixPadding     time.Duration
	SilenceDuration   time.Duration
	Threshold         float64
}

type SemanticVAD struct {
	CreateResponse    bool
	InterruptResponse bool
	Eagerness         string
}

func (*ServerVAD) vadType() string   { return events.TurnDetectionServerVAD }
func (*SemanticVAD) vadType() string { return events.TurnDetectionSemanticVAD }

type TranscriptionOptions struct {
	Language string
	Model    string
	Prompt   string
}

// SessionOptions is the negotiated configuration of one connection. MaxOutputTokens
// nil means unlimited.
type SessionOptions struct {
	Kind                   SessionKind
	ID                     string
	ExpiresAt              time.Time
	Model                  string
	Instructions           string
	MaxOutputTokens        *int
	InputAudioFormat       *AudioFormat
	OutputAudioFormat      *AudioFormat
	VoiceActivityDetection VoiceActivityDetection
	Transcription          *TranscriptionOptions
	NoiseReduction         string
	Voice                  string
	Speed                  float64
	OutputModalities       []Modality
	Tools                  []tool.Tool
	ToolChoice             tool.Choice
}

// sessionState holds the latest snapshot. The dispatcher is the only writer.
type sessionState struct {
	current atomic.Pointer[SessionOptions]
}

func (s *sessionState) Read() *SessionOptions {
	return s.current.Load()
}

func (s *sessionState) ApplyFullSnapshot(o *SessionOptions) {
	s.current.Store(o)
}

func (s *sessionState) reset() {
	s.current.Store(nil)
}

func sessionFromWire(w *events.Session) *SessionOptions {
	o := &SessionOptions{
		Kind:         SessionKind(w.Type),
		ID:           w.ID,
		Model:        w.Model,
		Instructions: w.Instructions,
		ToolChoice:   tool.Choice(w.ToolChoice),
	}
	if o.Kind == "" {
		o.Kind = SessionKindRealtime
	}
	if w.ExpiresAt > 0 {
		o.ExpiresAt = time.Unix(w.ExpiresAt, 0)
	}
	o.MaxOutputTokens = tokensFromWire(w.MaxOutputTokens)
	for _, m := range w.OutputModalities {
		o.OutputModalities = append(o.OutputModalities, Modality(m))
	}
	for _, t := range w.Tools {
		o.Tools = append(o.Tools, toolFromWire(t))
	}

	if w.Audio != nil && w.Audio.Input != nil {
		in := w.Audio.Input
		o.InputAudioFormat = audioFormatFromWire(in.Format)
		o.VoiceActivityDetection = vadFromWire(in.TurnDetection)
		if in.Transcription != nil {
			o.Transcription = &TranscriptionOptions{
				Language: in.Transcription.Language,
				Model:    in.Transcription.Model,
				Prompt:   in.Transcription.Prompt,
			}
		}
		if in.NoiseReduction != nil {
			o.NoiseReduction = in.NoiseReduction.Type
		}
	}
	if w.Audio != nil && w.Audio.Output != nil {
		out := w.Audio.Output
		o.OutputAudioFormat = audioFormatFromWire(out.Format)
		o.Voice = out.Voice
		o.Speed = out.Speed
	}
	return o
}

func sessionToWire(o *SessionOptions) events.Session {
	w := events.Session{
		Type:            string(o.Kind),
		Model:           o.Model,
		Instructions:    o.Instructions,
		MaxOutputTokens: tokensToWire(o.MaxOutputTokens),
		ToolChoice:      string(o.ToolChoice),
	}
	if w.Type == "" {
		w.Type = events.SessionTypeRealtime
	}
	for _, m := range o.OutputModalities {
		w.OutputModalities = append(w.OutputModalities, string(m))
	}
	w.Tools = toolsToWire(o.Tools)

	in := &events.AudioInput{
		Format:        audioFormatToWire(o.InputAudioFormat),
		TurnDetection: vadToWire(o.VoiceActivityDetection),
	}
	if o.Transcription != nil {
		in.Transcription = &events.Transcription{
			Language: o.Transcription.Language,
			Model:    o.Transcription.Model,
			Prompt:   o.Transcription.Prompt,
		}
	}
	if o.NoiseReduction != "" {
		in.NoiseReduction = &events.NoiseReduction{Type: o.NoiseReduction}
	}
	out := &events.AudioOutput{
		Format: audioFormatToWire(o.OutputAudioFormat),
		Voice:  o.Voice,
		Speed:  o.Speed,
	}

	audio := &events.SessionAudio{}
	if *in != (events.AudioInput{}) {
		audio.Input = in
	}
	if *out != (events.AudioOutput{}) && o.Kind != SessionKindTranscription {
		audio.Output = out
	}
	if audio.Input != nil || audio.Output != nil {
		w.Audio = audio
	}
	return w
}

func audioFormatFromWire(f *events.AudioFormat) *AudioFormat {
	if f == nil {
		return nil
	}
	return &AudioFormat{Type: f.Type, SampleRate: f.Rate}
}

func audioFormatToWire(f *AudioFormat) *events.AudioFormat {
	if f == nil {
		return nil
	}
	return &events.AudioFormat{Type: f.Type, Rate: f.SampleRate}
}

func vadFromWire(td *events.TurnDetection) VoiceActivityDetection {
	if td == nil {
		return nil
	}
	switch {
	case td.ServerVAD != nil:
		v := td.ServerVAD
		return &ServerVAD{
			CreateResponse:    v.CreateResponse,
			InterruptResponse: v.InterruptResponse,
			IdleTimeout:       time.Duration(v.IdleTimeoutMs) * time.Millisecond,
			PrefixPadding:     time.Duration(v.PrefixPaddingMs) * time.Millisecond,
			SilenceDuration:   time.Duration(v.SilenceDurationMs) * time.Millisecond,
			Threshold:         v.Threshold,
		}
	case td.SemanticVAD != nil:
		v := td.SemanticVAD
		return &SemanticVAD{
			CreateResponse:    v.CreateResponse,
			InterruptResponse: v.InterruptResponse,
			Eagerness:         v.Eagerness,
		}
	}
	return nil
}

func vadToWire(v VoiceActivityDetection) *events.TurnDetection {
	switch v := v.(type) {
	case *ServerVAD:
		if v == nil {
			return nil
		}
		return &events.TurnDetection{ServerVAD: &events.ServerVAD{
			CreateResponse:    v.CreateResponse,
			InterruptResponse: v.InterruptResponse,
			IdleTimeoutMs:     v.IdleTimeout.Milliseconds(),
			PrefixPaddingMs:   v.PrefixPadding.Milliseconds(),
			SilenceDurationMs: v.SilenceDuration.Milliseconds(),
			Threshold:         v.Threshold,
		}}
	case *SemanticVAD:
		if v == nil {
			return nil
		}
		return &events.TurnDetection{SemanticVAD: &events.SemanticVAD{
			CreateResponse:    v.CreateResponse,
			InterruptResponse: v.InterruptResponse,
			Eagerness:         v.Eagerness,
		}}
	}
	return nil
}

func tokensFromWire(t *events.IntOrInf) *int {
	if t == nil || t.IsInf() {
		return nil
	}
	n := int(*t)
	return &n
}

func tokensToWire(n *int) *events.IntOrInf {
	if n == nil {
		return nil
	}
	t := events.IntOrInf(*n)
	return &t
}
