package rtsession

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/faiface/beep"
	"github.com/smallnest/ringbuffer"
)

// DefaultSampleRate is the rate of audio/pcm on the wire.
const DefaultSampleRate = 24_000

const (
	bytesPerSample = 2
	playbackWindow = 60 * time.Second
)

func chunkSize(sampleRate int, d time.Duration) int {
	frames := int(float64(sampleRate) * d.Seconds())
	return frames * bytesPerSample
}

// FixedChunkReader reads from r in chunks of exactly chunkSize bytes, except for
// the last chunk before EOF.
type FixedChunkReader struct {
	r         io.Reader
	buf       []byte
	tmp       []byte
	chunkSize int
	eof       bool
}

func NewFixedChunkReader(r io.Reader, chunkSize int) *FixedChunkReader {
	return &FixedChunkReader{
		r:         r,
		chunkSize: chunkSize,
		buf:       make([]byte, 0, chunkSize*2),
		tmp:       make([]byte, chunkSize),
	}
}

func (f *FixedChunkReader) Read(p []byte) (int, error) {
	if len(p) < f.chunkSize {
		return 0, fmt.Errorf("buffer passed to Read must be at least %d bytes", f.chunkSize)
	}

	for len(f.buf) < f.chunkSize && !f.eof {
		n, err := f.r.Read(f.tmp)
		if n > 0 {
			f.buf = append(f.buf, f.tmp[:n]...)
		}
		if errors.Is(err, io.EOF) {
			f.eof = true
			break
		}
		if err != nil {
			return 0, err
		}
	}

	if len(f.buf) == 0 && f.eof {
		return 0, io.EOF
	}

	n := min(f.chunkSize, len(f.buf))
	copy(p, f.buf[:n])
	f.buf = f.buf[n:]
	return n, nil
}

// pcmStreamer feeds 16 bit mono PCM into beep as a stereo stream.
type pcmStreamer struct {
	data []int16
	pos  int
}

func newPCMStreamer(b []byte) *pcmStreamer {
	samples := make([]int16, len(b)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return &pcmStreamer{data: samples}
}

func (s *pcmStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		if s.pos >= len(s.data) {
			return i, i > 0
		}
		val := float64(s.data[s.pos]) / 32768.0
		samples[i][0] = val
		samples[i][1] = val
		s.pos++
	}
	return len(samples), true
}

func (s *pcmStreamer) Err() error { return nil }

// ResamplePCM converts 16 bit little endian mono PCM between sample rates.
func ResamplePCM(pcm []byte, fromRate, toRate int) ([]byte, error) {
	if fromRate == toRate || len(pcm) < bytesPerSample {
		return pcm, nil
	}

	resampler := beep.Resample(3, beep.SampleRate(fromRate), beep.SampleRate(toRate), newPCMStreamer(pcm))

	buf := bytes.NewBuffer(make([]byte, 0, len(pcm)*toRate/fromRate+bytesPerSample))
	samples := make([][2]float64, 1024)
	for {
		n, ok := resampler.Stream(samples)
		for i := 0; i < n; i++ {
			mono := (samples[i][0] + samples[i][1]) / 2.0
			if err := binary.Write(buf, binary.LittleEndian, int16(mono*32767)); err != nil {
				return nil, err
			}
		}
		if !ok {
			break
		}
	}
	return buf.Bytes(), nil
}

// AudioInput turns a PCM16 mono source into input_audio_buffer.append messages
// of a fixed duration, resampled to the session rate.
type AudioInput struct {
	reader      *FixedChunkReader
	chunk       []byte
	sourceRate  int
	sessionRate int
}

func NewAudioInput(r io.Reader, sourceRate, sessionRate int, latency time.Duration) *AudioInput {
	size := chunkSize(sourceRate, latency)
	return &AudioInput{
		reader:      NewFixedChunkReader(r, size),
		chunk:       make([]byte, size),
		sourceRate:  sourceRate,
		sessionRate: sessionRate,
	}
}

// Next reads the next chunk. It returns io.EOF once the source is drained.
func (a *AudioInput) Next() (*InputAudioBufferAppend, error) {
	n, err := a.reader.Read(a.chunk)
	if err != nil {
		return nil, err
	}
	pcm, err := ResamplePCM(bytes.Clone(a.chunk[:n]), a.sourceRate, a.sessionRate)
	if err != nil {
		return nil, fmt.Errorf("resample: %w", err)
	}
	return &InputAudioBufferAppend{Audio: pcm}, nil
}

// Run sends chunks to out until the source is drained or ctx ends.
func (a *AudioInput) Run(ctx context.Context, out chan<- ClientMessage) error {
	for {
		msg, err := a.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		select {
		case out <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// AudioPlayer buffers output audio for playback. Read blocks until audio is
// available.
type AudioPlayer struct {
	buf        *ringbuffer.RingBuffer
	sourceRate int
	sinkRate   int
}

func NewAudioPlayer(sourceRate, sinkRate int) *AudioPlayer {
	return &AudioPlayer{
		buf:        ringbuffer.New(chunkSize(sinkRate, playbackWindow)).SetBlocking(true),
		sourceRate: sourceRate,
		sinkRate:   sinkRate,
	}
}

// Handle plays output audio deltas and drops buffered audio when the user starts
// speaking.
func (p *AudioPlayer) Handle(msg ServerMessage) error {
	switch m := msg.(type) {
	case *OutputMessage:
		if m.Type == KindOutputAudioDelta && len(m.Audio) > 0 {
			_, err := p.Write(m.Audio)
			return err
		}
	case *InputAudioBufferMessage:
		if m.Type == KindSpeechStarted {
			p.Flush()
		}
	}
	return nil
}

func (p *AudioPlayer) Write(pcm []byte) (int, error) {
	data, err := ResamplePCM(pcm, p.sourceRate, p.sinkRate)
	if err != nil {
		return 0, fmt.Errorf("resample: %w", err)
	}
	if _, err := p.buf.Write(data); err != nil {
		return 0, fmt.Errorf("write playback buffer: %w", err)
	}
	return len(pcm), nil
}

func (p *AudioPlayer) Read(b []byte) (int, error) {
	return p.buf.Read(b)
}

// Flush drops everything not yet played.
func (p *AudioPlayer) Flush() {
	p.buf.Reset()
}

// Buffered returns the number of bytes waiting to be played.
func (p *AudioPlayer) Buffered() int {
	return p.buf.Length()
}
