package corpus

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

const sentenceTag = "sentence"

// XMLSentences returns the text of every <sentence> element in document order.
// It runs a lenient tokenizer rather than a strict XML decoder, so source files with
// malformed attributes (for example <catchphrase "id=c0">) still parse.
// Nested markup inside a sentence contributes its text.
func XMLSentences(r io.Reader) ([]string, error) {
	z := html.NewTokenizer(r)

	var sentences []string
	var buf strings.Builder
	depth := 0

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return nil, fmt.Errorf("tokenize: %w", err)
			}
			if depth > 0 {
				sentences = appendSentence(sentences, buf.String())
			}
			return sentences, nil
		case html.StartTagToken:
			name, _ := z.TagName()
			if string(name) == sentenceTag {
				if depth == 0 {
					buf.Reset()
				}
				depth++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == sentenceTag && depth > 0 {
				depth--
				if depth == 0 {
					sentences = appendSentence(sentences, buf.String())
					buf.Reset()
				}
			}
		case html.TextToken:
			if depth > 0 {
				buf.Write(z.Text())
			}
		}
	}
}

func appendSentence(sentences []string, text string) []string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return sentences
	}
	return append(sentences, text)
}
