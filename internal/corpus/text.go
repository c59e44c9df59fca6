package corpus

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	pdflib "github.com/ledongthuc/pdf"
	"golang.org/x/text/encoding/charmap"
)

var sentencePattern = regexp.MustCompile(`[^.!?]+(?:[.!?]+["')\]]*|$)`)

// SplitSentences breaks free text into sentences on terminal punctuation.
// Whitespace inside a sentence is collapsed to single spaces.
func SplitSentences(text string) []string {
	var out []string
	for _, raw := range sentencePattern.FindAllString(text, -1) {
		s := strings.Join(strings.Fields(raw), " ")
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

// decodeText returns UTF-8 text, reading invalid UTF-8 input as ISO-8859-1.
func decodeText(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

func readPDFText(path string) (string, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var buf strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		buf.WriteString(text)
		buf.WriteString("\n")
	}
	return buf.String(), nil
}
