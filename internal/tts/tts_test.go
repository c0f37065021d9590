package tts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRate(t *testing.T) {
	tests := []struct {
		in   string
		want Rate
	}{
		{"", RateNormal},
		{"Normal", RateNormal},
		{"SLOW", RateSlow},
		{" fast ", RateFast},
	}
	for _, tt := range tests {
		got, err := ParseRate(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseRate("ludicrous")
	assert.Error(t, err)
}

func TestRateMappings(t *testing.T) {
	assert.Equal(t, 120, RateSlow.WordsPerMinute())
	assert.Equal(t, 160, RateNormal.WordsPerMinute())
	assert.Equal(t, 190, RateFast.WordsPerMinute())

	assert.True(t, RateSlow.Slow())
	assert.False(t, RateFast.Slow())

	assert.InDelta(t, 0.75, RateSlow.Speed(), 0.001)
	assert.InDelta(t, 1.25, RateFast.Speed(), 0.001)
}

func TestInferGender(t *testing.T) {
	assert.Equal(t, GenderFemale, InferGender("Microsoft Zira Desktop"))
	assert.Equal(t, GenderFemale, InferGender("Microsoft Hazel Desktop - English (Great Britain)"))
	assert.Equal(t, GenderFemale, InferGender("english+female2"))
	assert.Equal(t, GenderMale, InferGender("Microsoft David Desktop"))
	assert.Equal(t, GenderMale, InferGender("en_US-lessac-medium"))
}

func TestFilterAndFind(t *testing.T) {
	voices := []Voice{
		{ID: "en-us", Name: "English (America)", Gender: GenderMale},
		{ID: "en+f3", Name: "English Female", Gender: GenderFemale},
		{ID: "fr", Name: "French", Gender: GenderMale},
	}

	assert.Len(t, FilterByGender(voices, ""), 3)
	female := FilterByGender(voices, GenderFemale)
	require.Len(t, female, 1)
	assert.Equal(t, "en+f3", female[0].ID)

	v, ok := FindVoice(voices, "fr")
	require.True(t, ok)
	assert.Equal(t, "French", v.Name)

	v, ok = FindVoice(voices, "english female")
	require.True(t, ok)
	assert.Equal(t, "en+f3", v.ID)

	_, ok = FindVoice(voices, "klingon")
	assert.False(t, ok)
	_, ok = FindVoice(voices, "")
	assert.False(t, ok)
}

func TestParseGender(t *testing.T) {
	g, ok := ParseGender("Female")
	assert.True(t, ok)
	assert.Equal(t, GenderFemale, g)

	g, ok = ParseGender("")
	assert.True(t, ok)
	assert.Equal(t, Gender(""), g)

	_, ok = ParseGender("robot")
	assert.False(t, ok)
}
