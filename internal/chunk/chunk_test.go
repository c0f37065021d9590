package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitLiteralExample(t *testing.T) {
	assert.Equal(t, []string{"a b", "c d", "e"}, Split("a b c d e", 2))
}

func TestSplitEmpty(t *testing.T) {
	assert.Nil(t, Split("", 10))
	assert.Nil(t, Split(" \n\t  ", 10))
}

func TestSplitSingleChunkNormalizesWhitespace(t *testing.T) {
	got := Split("  hello\tthere \n general   kenobi ", 250)
	require.Len(t, got, 1)
	assert.Equal(t, "hello there general kenobi", got[0])
}

func TestSplitDefaultLimit(t *testing.T) {
	text := strings.Repeat("word ", DefaultMaxWords+1)
	got := Split(text, 0)
	require.Len(t, got, 2)
	assert.Equal(t, DefaultMaxWords, CountWords(got[0]))
	assert.Equal(t, 1, CountWords(got[1]))
}

func TestSplitPreservesPunctuation(t *testing.T) {
	got := Split("Hello, world! How's it going? Fine.", 3)
	assert.Equal(t, []string{"Hello, world! How's", "it going? Fine."}, got)
}

func TestSplitRejoinAndBounds(t *testing.T) {
	texts := []string{
		"one",
		"one two three four five six seven",
		"  leading and trailing   spaces  ",
		"naïve café über straße 東京 タワー",
		strings.Repeat("lorem ipsum dolor sit amet ", 97),
	}
	for _, text := range texts {
		for _, n := range []int{1, 2, 3, 7, 250} {
			got := Split(text, n)
			require.NotEmpty(t, got)
			for _, c := range got {
				assert.LessOrEqual(t, CountWords(c), n)
				assert.Positive(t, CountWords(c))
			}
			assert.Equal(t, strings.Join(strings.Fields(text), " "), strings.Join(got, " "))
		}
	}
}

func TestSplitIdempotent(t *testing.T) {
	text := strings.Repeat("the quick brown fox jumps over the lazy dog ", 40)
	for _, n := range []int{1, 4, 9, 250} {
		first := Split(text, n)
		second := Split(strings.Join(first, " "), n)
		assert.Equal(t, first, second)
	}
}
