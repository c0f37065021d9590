package audio

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pcm16(samples ...int16) []byte {
	buf := &bytes.Buffer{}
	for _, s := range samples {
		_ = binary.Write(buf, binary.LittleEndian, s)
	}
	return buf.Bytes()
}

func mustWAV(t *testing.T, pcm []byte, sampleRate int) []byte {
	t.Helper()
	data, err := PCMToWAV(pcm, sampleRate, 1, 2)
	require.NoError(t, err)
	return data
}

func tempOut(t *testing.T) *os.File {
	t.Helper()
	f, err := os.Create(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestConcatWAVPreservesOrder(t *testing.T) {
	parts := []io.ReadSeeker{
		bytes.NewReader(mustWAV(t, pcm16(1, 1, 1), 22050)),
		bytes.NewReader(mustWAV(t, pcm16(2, 2), 22050)),
		bytes.NewReader(mustWAV(t, pcm16(3), 22050)),
	}
	out := tempOut(t)
	require.NoError(t, Concat(EncodingWAV, parts, out))

	_, err := out.Seek(0, io.SeekStart)
	require.NoError(t, err)
	dec := wav.NewDecoder(out)
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)

	assert.Equal(t, []int{1, 1, 1, 2, 2, 3}, buf.Data)
	assert.EqualValues(t, 22050, dec.SampleRate)
	assert.EqualValues(t, 1, dec.NumChans)
	assert.EqualValues(t, 16, dec.BitDepth)
}

func TestConcatWAVRejectsMismatchedRates(t *testing.T) {
	parts := []io.ReadSeeker{
		bytes.NewReader(mustWAV(t, pcm16(1), 22050)),
		bytes.NewReader(mustWAV(t, pcm16(2), 16000)),
	}
	err := Concat(EncodingWAV, parts, tempOut(t))
	assert.ErrorIs(t, err, ErrFormatMismatch)
}

func TestConcatWAVRejectsGarbage(t *testing.T) {
	parts := []io.ReadSeeker{bytes.NewReader([]byte("definitely not a wav file"))}
	assert.Error(t, Concat(EncodingWAV, parts, tempOut(t)))
}

func TestConcatMP3StripsTags(t *testing.T) {
	frameA := []byte{0xFF, 0xF3, 0x01, 0x02}
	frameB := []byte{0xFF, 0xFB, 0x03, 0x04}

	id3 := []byte{'I', 'D', '3', 4, 0, 0, 0, 0, 0, 3, 'x', 'y', 'z'}
	partA := append(append([]byte{}, id3...), frameA...)

	v1 := make([]byte, 128)
	copy(v1, "TAG")
	partB := append(append([]byte{}, frameB...), v1...)

	out := tempOut(t)
	require.NoError(t, Concat(EncodingMP3, []io.ReadSeeker{bytes.NewReader(partA), bytes.NewReader(partB)}, out))

	got, err := os.ReadFile(out.Name())
	require.NoError(t, err)
	assert.Equal(t, append(append([]byte{}, frameA...), frameB...), got)
}

func TestConcatMP3RejectsFramelessPart(t *testing.T) {
	err := Concat(EncodingMP3, []io.ReadSeeker{bytes.NewReader([]byte("<html>quota exceeded</html>"))}, tempOut(t))
	assert.ErrorIs(t, err, ErrNoFrames)
}

func TestConcatEmpty(t *testing.T) {
	assert.Error(t, Concat(EncodingWAV, nil, tempOut(t)))
}

func TestParseEncoding(t *testing.T) {
	tests := []struct {
		in   string
		want Encoding
	}{
		{"audio/wav", EncodingWAV},
		{"audio/x-wav", EncodingWAV},
		{".wav", EncodingWAV},
		{"audio/mpeg", EncodingMP3},
		{"mp3", EncodingMP3},
	}
	for _, tt := range tests {
		got, err := ParseEncoding(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseEncoding("audio/ogg")
	assert.Error(t, err)
}

func TestEncodingMIME(t *testing.T) {
	assert.Equal(t, "audio/wav", EncodingWAV.MIMEType())
	assert.Equal(t, "audio/mp3", EncodingMP3.MIMEType())
	assert.Equal(t, ".mp3", EncodingMP3.Ext())
}

func TestJoinMP3(t *testing.T) {
	got, err := JoinMP3([]byte{0x00, 0xFF, 0xFB, 0x01}, []byte{0xFF, 0xF3, 0x02})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xFB, 0x01, 0xFF, 0xF3, 0x02}, got)

	_, err = JoinMP3([]byte("nope"))
	assert.ErrorIs(t, err, ErrNoFrames)
}

// streamed marks a WAV as written by a streaming encoder: both the RIFF and
// the data chunk sizes carry the unknown-length placeholder.
func streamed(data []byte) []byte {
	binary.LittleEndian.PutUint32(data[4:8], 0xFFFFFFFF)
	binary.LittleEndian.PutUint32(data[40:44], 0xFFFFFFFF)
	return data
}

func TestConcatWAVStreamingHeaders(t *testing.T) {
	parts := []io.ReadSeeker{
		bytes.NewReader(streamed(mustWAV(t, pcm16(1, 2, 3), 24000))),
		bytes.NewReader(streamed(mustWAV(t, pcm16(4, 5), 24000))),
	}
	out := tempOut(t)
	require.NoError(t, Concat(EncodingWAV, parts, out))

	_, err := out.Seek(0, io.SeekStart)
	require.NoError(t, err)
	buf, err := wav.NewDecoder(out).FullPCMBuffer()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, buf.Data)
}

func TestConcatWAVRejectsEmptyPart(t *testing.T) {
	parts := []io.ReadSeeker{
		bytes.NewReader(mustWAV(t, pcm16(1), 22050)),
		bytes.NewReader(mustWAV(t, nil, 22050)),
	}
	err := Concat(EncodingWAV, parts, tempOut(t))
	assert.ErrorIs(t, err, ErrNoSamples)
}

func TestPCMToWAV(t *testing.T) {
	data, err := PCMToWAV(pcm16(-2, 7, 300), 16000, 1, 2)
	require.NoError(t, err)
	assert.Len(t, data, 44+6)

	dec := wav.NewDecoder(bytes.NewReader(data))
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	assert.Equal(t, []int{-2, 7, 300}, buf.Data)
	assert.EqualValues(t, 16000, dec.SampleRate)
	assert.EqualValues(t, 16, dec.BitDepth)

	_, err = PCMToWAV(pcm16(1), 16000, 1, 5)
	assert.Error(t, err)
}
