// Package audio holds the audio artifact types passed between speech backends
// and the synthesis pipeline, and the codecs used to join chunk audio into one
// file.
package audio

import (
	"fmt"
	"io"
	"strings"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Encoding tags the container/codec of an artifact.
type Encoding string

const (
	// EncodingWAV is an uncompressed PCM RIFF/WAVE container.
	EncodingWAV Encoding = "wav"

	// EncodingMP3 is an MPEG-1/2 layer III stream.
	EncodingMP3 Encoding = "mp3"
)

// MIMEType returns the content type announced to browsers.
func (e Encoding) MIMEType() string {
	switch e {
	case EncodingMP3:
		return "audio/mp3"
	default:
		return "audio/wav"
	}
}

// Ext returns the file extension including the leading dot.
func (e Encoding) Ext() string {
	return "." + string(e)
}

// ParseEncoding maps a content type or file extension to an Encoding.
func ParseEncoding(s string) (Encoding, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.Contains(s, "wav"):
		return EncodingWAV, nil
	case strings.Contains(s, "mp3"), strings.Contains(s, "mpeg"):
		return EncodingMP3, nil
	default:
		return "", fmt.Errorf("unsupported audio encoding %q", s)
	}
}

// Artifact is one piece of synthesized audio.
type Artifact struct {
	Data     []byte
	Encoding Encoding
}

// PCMToWAV wraps raw little-endian PCM data in a WAV container.
func PCMToWAV(pcm []byte, sampleRate, channels, bytesPerSample int) ([]byte, error) {
	if bytesPerSample < 1 || bytesPerSample > 4 {
		return nil, fmt.Errorf("unsupported sample width %d", bytesPerSample)
	}
	if channels < 1 {
		return nil, fmt.Errorf("invalid channel count %d", channels)
	}

	samples := make([]int, len(pcm)/bytesPerSample)
	for i := range samples {
		samples[i] = decodeSample(pcm[i*bytesPerSample : (i+1)*bytesPerSample])
	}

	out := &memFile{}
	enc := wav.NewEncoder(out, sampleRate, bytesPerSample*8, channels, 1)
	err := enc.Write(&goaudio.IntBuffer{
		Data:           samples,
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		SourceBitDepth: bytesPerSample * 8,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finalizing wav: %w", err)
	}
	return out.buf, nil
}

// decodeSample reads one little-endian sample. 8-bit WAV is unsigned and is
// kept as the raw byte value, matching the go-audio decoder.
func decodeSample(b []byte) int {
	switch len(b) {
	case 1:
		return int(b[0])
	case 2:
		return int(int16(uint16(b[0]) | uint16(b[1])<<8))
	case 3:
		v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
		return int(v<<8) >> 8
	default:
		return int(int32(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24))
	}
}

// memFile is an in-memory io.WriteSeeker for the wav encoder, which seeks
// back to patch chunk sizes on Close.
type memFile struct {
	buf []byte
	pos int
}

func (m *memFile) Write(p []byte) (int, error) {
	if end := m.pos + len(p); end > len(m.buf) {
		m.buf = append(m.buf, make([]byte, end-len(m.buf))...)
	}
	n := copy(m.buf[m.pos:], p)
	m.pos += n
	return n, nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = int64(m.pos)
	case io.SeekEnd:
		base = int64(len(m.buf))
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	next := base + offset
	if next < 0 {
		return 0, fmt.Errorf("negative position %d", next)
	}
	m.pos = int(next)
	return next, nil
}
