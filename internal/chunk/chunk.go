// Package chunk splits input text into word-bounded pieces that are small
// enough to hand to a speech backend in one call.
package chunk

import "strings"

// DefaultMaxWords is the chunk size used when the caller passes a
// non-positive limit.
const DefaultMaxWords = 250

// Split breaks text on whitespace and groups consecutive words into chunks of
// at most maxWords words, joined by single spaces. Word content and order are
// preserved exactly. Empty or whitespace-only text yields nil.
func Split(text string, maxWords int) []string {
	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	chunks := make([]string, 0, (len(words)+maxWords-1)/maxWords)
	for i := 0; i < len(words); i += maxWords {
		end := min(i+maxWords, len(words))
		chunks = append(chunks, strings.Join(words[i:end], " "))
	}
	return chunks
}

// CountWords returns the number of whitespace-delimited words in text.
func CountWords(text string) int {
	return len(strings.Fields(text))
}
