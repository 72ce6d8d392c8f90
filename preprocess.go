package blocking

import (
	"strings"
	"unicode"

	"github.com/clipperhouse/uax29/v2/words"
	"golang.org/x/text/unicode/norm"
)

// Document is a preprocessed field value: the ordered terms an index stores.
type Document []string

// key returns the canonical identity of a document inside an index.
func (d Document) key() string {
	return strings.Join(d, "\x1f")
}

// normalize applies Unicode normalization (NFKC) and converts to lowercase.
func normalize(s string) string {
	return strings.ToLower(norm.NFKC.String(s))
}

// tokenize splits text into word tokens using UAX#29 word segmentation.
// Segments without a letter or digit (whitespace, punctuation) are dropped.
func tokenize(s string) []string {
	toks := words.FromString(s)
	var tokens []string
	for toks.Next() {
		tok := toks.Value()
		if strings.IndexFunc(tok, isWordRune) < 0 {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// PreprocessText turns a string field value into a document of normalized
// word tokens. Non-string values produce an empty document.
func PreprocessText(v any) Document {
	s, ok := asString(v)
	if !ok {
		return nil
	}
	return Document(tokenize(normalize(s)))
}

// PreprocessSet turns a set field value into a document with one term per
// non-empty element. Elements are normalized but not split.
func PreprocessSet(v any) Document {
	set, ok := asSet(v)
	if !ok {
		return nil
	}
	doc := make(Document, 0, len(set))
	for _, e := range set {
		if e == "" {
			continue
		}
		doc = append(doc, normalize(e))
	}
	return doc
}
