// Package chunker groups ordered sentences into bounded-size retrieval units.
package chunker

import "strings"

// DefaultMaxWords is the word budget used when the caller passes a non-positive limit.
const DefaultMaxWords = 250

// Chunk greedily packs sentences into chunks of at most maxWords words.
// A sentence is never split: one that alone exceeds the budget becomes its own chunk.
// Sentence order is preserved and every sentence lands in exactly one chunk.
func Chunk(sentences []string, maxWords int) []string {
	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}

	var chunks []string
	var current []string
	currentLen := 0

	for _, sent := range sentences {
		words := WordCount(sent)
		if len(current) > 0 && currentLen+words > maxWords {
			chunks = append(chunks, strings.Join(current, " "))
			current = current[:0]
			currentLen = 0
		}
		current = append(current, sent)
		currentLen += words
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}

// WordCount counts whitespace-delimited tokens.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
