package espeak

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/narrator/internal/audio"
	"github.com/nadzzz/narrator/internal/config"
	"github.com/nadzzz/narrator/internal/tts"
)

const voicesTable = `Pty Language       Age/Gender VoiceName          File                 Other Languages
 5  af              --/M      Afrikaans          gmw/af
 5  en-us           --/M      English_(America)  gmw/en-US            (en 2)(en-r 5)
 5  en-gb-x-rp      --/F      English_(Received_Pronunciation) gmw/en-GB-x-rp (en 4)
`

// fakeEspeak writes a shell script that mimics espeak: it prints the voice
// table for --voices and otherwise copies a fixture WAV to the -w path,
// logging its arguments and stdin next to it.
func fakeEspeak(t *testing.T) (command, dir string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake requires a POSIX shell")
	}
	dir = t.TempDir()
	fixture := filepath.Join(dir, "fixture.wav")
	require.NoError(t, os.WriteFile(fixture, wavFixture([]byte{1, 0, 2, 0}, 22050), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "voices.txt"), []byte(voicesTable), 0o600))

	script := fmt.Sprintf(`#!/bin/sh
dir=%q
for a in "$@"; do
  if [ "$a" = "--voices" ]; then cat "$dir/voices.txt"; exit 0; fi
done
echo "$@" > "$dir/args"
cat > "$dir/stdin"
out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "-w" ]; then out="$2"; fi
  shift
done
if [ -n "$FAKE_ESPEAK_FAIL" ]; then echo "unknown voice" >&2; exit 1; fi
cp "$dir/fixture.wav" "$out"
`, dir)
	command = filepath.Join(dir, "espeak-ng")
	require.NoError(t, os.WriteFile(command, []byte(script), 0o700))
	return command, dir
}

func TestSynthesize(t *testing.T) {
	command, dir := fakeEspeak(t)
	s, err := New(config.EspeakConfig{Command: command + " -a 150"})
	require.NoError(t, err)

	res, err := s.Synthesize(context.Background(), "-dash first words", tts.SynthesizeOpts{Voice: "en-us", Rate: tts.RateSlow})
	require.NoError(t, err)
	assert.Equal(t, audio.EncodingWAV, res.Encoding)
	assert.Equal(t, wavFixture([]byte{1, 0, 2, 0}, 22050), res.Audio)

	args, err := os.ReadFile(filepath.Join(dir, "args"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(args), "-a 150 -v en-us -s 120 -w "), string(args))
	assert.Contains(t, string(args), "--stdin")

	stdin, err := os.ReadFile(filepath.Join(dir, "stdin"))
	require.NoError(t, err)
	assert.Equal(t, "-dash first words", string(stdin))
}

func TestSynthesizeWritesIntoWorkDir(t *testing.T) {
	command, dir := fakeEspeak(t)
	s, err := New(config.EspeakConfig{Command: command})
	require.NoError(t, err)

	work := t.TempDir()
	_, err = s.Synthesize(context.Background(), "hello", tts.SynthesizeOpts{WorkDir: work})
	require.NoError(t, err)

	args, err := os.ReadFile(filepath.Join(dir, "args"))
	require.NoError(t, err)
	assert.Contains(t, string(args), "-w "+filepath.Join(work, "espeak-"))

	entries, err := os.ReadDir(work)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch file must be removed")
}

func TestSynthesizeFailureCarriesStderr(t *testing.T) {
	command, _ := fakeEspeak(t)
	t.Setenv("FAKE_ESPEAK_FAIL", "1")
	s, err := New(config.EspeakConfig{Command: command})
	require.NoError(t, err)

	_, err = s.Synthesize(context.Background(), "hello", tts.SynthesizeOpts{})
	assert.ErrorContains(t, err, "unknown voice")
}

func TestVoices(t *testing.T) {
	command, _ := fakeEspeak(t)
	s, err := New(config.EspeakConfig{Command: command})
	require.NoError(t, err)

	voices, err := s.Voices(context.Background())
	require.NoError(t, err)

	female := tts.FilterByGender(voices, tts.GenderFemale)
	ids := make([]string, 0, len(female))
	for _, v := range female {
		ids = append(ids, v.ID)
	}
	assert.Equal(t, []string{"af+f3", "en-us+f3", "en-gb-x-rp"}, ids)

	v, ok := tts.FindVoice(voices, "English (America)")
	require.True(t, ok)
	assert.Equal(t, "en-us", v.ID)
	assert.Equal(t, tts.GenderMale, v.Gender)
}

func TestNewRejectsEmptyCommand(t *testing.T) {
	_, err := New(config.EspeakConfig{Command: "   "})
	assert.Error(t, err)

	_, err = New(config.EspeakConfig{Command: `espeak "unterminated`})
	assert.Error(t, err)
}

func TestPing(t *testing.T) {
	command, _ := fakeEspeak(t)
	s, err := New(config.EspeakConfig{Command: command})
	require.NoError(t, err)
	require.NoError(t, s.Ping(context.Background()))

	s, err = New(config.EspeakConfig{Command: filepath.Join(t.TempDir(), "missing-espeak")})
	require.NoError(t, err)
	assert.Error(t, s.Ping(context.Background()))
}

func wavFixture(pcm []byte, sampleRate int) []byte {
	data, err := audio.PCMToWAV(pcm, sampleRate, 1, 2)
	if err != nil {
		panic(err)
	}
	return data
}
