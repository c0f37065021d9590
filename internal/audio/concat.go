package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrFormatMismatch is returned when the parts being joined do not share
// sample rate, channel count or bit depth.
var ErrFormatMismatch = errors.New("audio parts have mismatched formats")

// ErrNoSamples is returned when a WAV part decodes to no audio.
var ErrNoSamples = errors.New("wav part has no samples")

// ErrNoFrames is returned when an MP3 part carries no decodable frame.
var ErrNoFrames = errors.New("no mp3 frames found")

// Concat joins parts in order and writes one artifact of the given encoding
// to out. WAV parts are decoded to samples, appended and re-encoded; MP3
// parts have their ID3 tags stripped and their frames appended.
func Concat(enc Encoding, parts []io.ReadSeeker, out io.WriteSeeker) error {
	if len(parts) == 0 {
		return errors.New("nothing to concatenate")
	}
	switch enc {
	case EncodingWAV:
		return concatWAV(parts, out)
	case EncodingMP3:
		return concatMP3(parts, out)
	default:
		return fmt.Errorf("unsupported audio encoding %q", enc)
	}
}

func concatWAV(parts []io.ReadSeeker, out io.WriteSeeker) error {
	var (
		merged   *goaudio.IntBuffer
		bitDepth int
	)

	for i, p := range parts {
		data, err := io.ReadAll(p)
		if err != nil {
			return fmt.Errorf("reading wav part %d: %w", i, err)
		}
		fixStreamingSizes(data)

		dec := wav.NewDecoder(bytes.NewReader(data))
		buf, err := dec.FullPCMBuffer()
		if err != nil {
			return fmt.Errorf("decoding wav part %d: %w", i, err)
		}
		if buf == nil || dec.NumChans == 0 || dec.SampleRate == 0 || dec.BitDepth == 0 {
			return fmt.Errorf("decoding wav part %d: invalid header", i)
		}
		if len(buf.Data) == 0 {
			return fmt.Errorf("wav part %d: %w", i, ErrNoSamples)
		}

		if merged == nil {
			bitDepth = int(dec.BitDepth)
			merged = &goaudio.IntBuffer{
				Format: &goaudio.Format{
					NumChannels: int(dec.NumChans),
					SampleRate:  int(dec.SampleRate),
				},
				SourceBitDepth: bitDepth,
			}
		} else if merged.Format.NumChannels != int(dec.NumChans) ||
			merged.Format.SampleRate != int(dec.SampleRate) ||
			bitDepth != int(dec.BitDepth) {
			return fmt.Errorf("wav part %d (%d Hz, %d ch, %d bit): %w",
				i, dec.SampleRate, dec.NumChans, dec.BitDepth, ErrFormatMismatch)
		}

		merged.Data = append(merged.Data, buf.Data...)
	}

	encoder := wav.NewEncoder(out, merged.Format.SampleRate, bitDepth, merged.Format.NumChannels, 1)
	if err := encoder.Write(merged); err != nil {
		return fmt.Errorf("encoding wav: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("finalizing wav: %w", err)
	}
	return nil
}

// streamingSize is the placeholder streamed WAV writers put in the RIFF and
// data sizes when the length is not known up front.
const streamingSize = 0xFFFFFFFF

// fixStreamingSizes rewrites placeholder or overrunning RIFF and data chunk
// sizes in place from the actual length of data.
func fixStreamingSizes(data []byte) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return
	}
	if riffSize := binary.LittleEndian.Uint32(data[4:8]); riffSize == streamingSize || int(riffSize) > len(data)-8 {
		binary.LittleEndian.PutUint32(data[4:8], uint32(len(data)-8))
	}

	for off := 12; off+8 <= len(data); {
		size := binary.LittleEndian.Uint32(data[off+4 : off+8])
		remaining := len(data) - off - 8
		if string(data[off:off+4]) == "data" {
			if size == streamingSize || int64(size) > int64(remaining) || (size == 0 && remaining > 0) {
				binary.LittleEndian.PutUint32(data[off+4:off+8], uint32(remaining))
			}
			return
		}
		if int64(size) > int64(remaining) {
			return
		}
		off += 8 + int(size) + int(size&1)
	}
}

func concatMP3(parts []io.ReadSeeker, out io.Writer) error {
	for i, p := range parts {
		data, err := io.ReadAll(p)
		if err != nil {
			return fmt.Errorf("reading mp3 part %d: %w", i, err)
		}
		frames, err := mp3Frames(data)
		if err != nil {
			return fmt.Errorf("mp3 part %d: %w", i, err)
		}
		if _, err := out.Write(frames); err != nil {
			return fmt.Errorf("writing mp3 part %d: %w", i, err)
		}
	}
	return nil
}

// JoinMP3 concatenates in-memory MP3 pieces the same way Concat does.
func JoinMP3(parts ...[]byte) ([]byte, error) {
	var out []byte
	for i, p := range parts {
		frames, err := mp3Frames(p)
		if err != nil {
			return nil, fmt.Errorf("mp3 part %d: %w", i, err)
		}
		out = append(out, frames...)
	}
	return out, nil
}

// mp3Frames strips a leading ID3v2 tag and a trailing ID3v1 tag and returns
// the bytes starting at the first frame sync.
func mp3Frames(b []byte) ([]byte, error) {
	if len(b) >= 10 && string(b[:3]) == "ID3" {
		size := int(b[6]&0x7f)<<21 | int(b[7]&0x7f)<<14 | int(b[8]&0x7f)<<7 | int(b[9]&0x7f)
		n := 10 + size
		if b[5]&0x10 != 0 {
			n += 10 // footer present
		}
		if n >= len(b) {
			return nil, ErrNoFrames
		}
		b = b[n:]
	}
	if len(b) >= 128 && string(b[len(b)-128:len(b)-125]) == "TAG" {
		b = b[:len(b)-128]
	}

	for i := 0; i+1 < len(b); i++ {
		if b[i] == 0xFF && b[i+1]&0xE0 == 0xE0 {
			return b[i:], nil
		}
	}
	return nil, ErrNoFrames
}
