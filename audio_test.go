package rtsession

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"math"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/require"
)

func sine(rate int, d time.Duration) []byte {
	n := int(float64(rate) * d.Seconds())
	buf := make([]byte, n*2)
	for i := range n {
		v := int16(math.Sin(2*math.Pi*440*float64(i)/float64(rate)) * 8000)
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	return buf
}

func TestFixedChunkReader(t *testing.T) {
	r := NewFixedChunkReader(iotest.OneByteReader(bytes.NewReader([]byte("0123456789"))), 4)
	buf := make([]byte, 4)

	var chunks []string
	for {
		n, err := r.Read(buf)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		chunks = append(chunks, string(buf[:n]))
	}
	require.Equal(t, []string{"0123", "4567", "89"}, chunks)

	_, err := NewFixedChunkReader(bytes.NewReader(nil), 8).Read(make([]byte, 4))
	require.Error(t, err)
}

func TestResamplePCM(t *testing.T) {
	pcm := sine(48_000, 100*time.Millisecond)

	same, err := ResamplePCM(pcm, 48_000, 48_000)
	require.NoError(t, err)
	require.Equal(t, pcm, same)

	down, err := ResamplePCM(pcm, 48_000, DefaultSampleRate)
	require.NoError(t, err)
	require.Zero(t, len(down)%2)
	require.InDelta(t, len(pcm)/2, len(down), float64(len(pcm))*0.05)
}

func TestAudioInput(t *testing.T) {
	src := bytes.NewReader(make([]byte, 1000))
	in := NewAudioInput(src, DefaultSampleRate, DefaultSampleRate, 10*time.Millisecond)

	var sizes []int
	for {
		msg, err := in.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		sizes = append(sizes, len(msg.Audio))
	}
	require.Equal(t, []int{480, 480, 40}, sizes)
}

func TestAudioInput_Run(t *testing.T) {
	in := NewAudioInput(bytes.NewReader(sine(DefaultSampleRate, 50*time.Millisecond)), DefaultSampleRate, DefaultSampleRate, 20*time.Millisecond)

	out := make(chan ClientMessage, 8)
	require.NoError(t, in.Run(context.Background(), out))
	close(out)

	var total int
	for msg := range out {
		total += len(msg.(*InputAudioBufferAppend).Audio)
	}
	require.Equal(t, chunkSize(DefaultSampleRate, 50*time.Millisecond), total)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	in = NewAudioInput(bytes.NewReader(make([]byte, 4096)), DefaultSampleRate, DefaultSampleRate, 20*time.Millisecond)
	require.ErrorIs(t, in.Run(ctx, make(chan ClientMessage)), context.Canceled)
}

func TestAudioPlayer(t *testing.T) {
	p := NewAudioPlayer(DefaultSampleRate, DefaultSampleRate)

	require.NoError(t, p.Handle(&OutputMessage{Type: KindOutputAudioDelta, Audio: []byte{1, 2, 3, 4}}))
	require.NoError(t, p.Handle(&OutputMessage{Type: KindOutputTextDelta, Text: "ignored"}))
	require.Equal(t, 4, p.Buffered())

	buf := make([]byte, 4)
	n, err := p.Read(buf)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4}, buf[:n])

	require.NoError(t, p.Handle(&OutputMessage{Type: KindOutputAudioDelta, Audio: []byte{5, 6}}))
	require.Equal(t, 2, p.Buffered())

	require.NoError(t, p.Handle(&InputAudioBufferMessage{Type: KindSpeechStarted}))
	require.Zero(t, p.Buffered())
}
