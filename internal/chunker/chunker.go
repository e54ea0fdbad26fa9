// Package chunker splits free text into retrievable segment drafts.
//
// Splits happen on sentence boundaries only: an entity mention and its
// predicate never land in different chunks, and a configurable word overlap
// preserves context continuity across the boundary for similarity search.
package chunker

import (
	"strings"

	"github.com/recallhq/recall/internal/extract"
)

// DefaultTargetWords is the default chunk size in words.
const DefaultTargetWords = 90

// DefaultOverlapWords is the default number of words repeated from the
// previous chunk at the start of the next one.
const DefaultOverlapWords = 15

// Draft is a chunk of text ready to become a Segment: the text, the
// negation flag and the ordinal position within the source.
type Draft struct {
	// Text is the chunk content.
	Text string

	// Negated is true when the text contains a negation lexicon marker.
	Negated bool

	// Position is the ordinal position within the source text.
	Position int
}

// Chunker splits text into overlapping, sentence-aligned drafts.
type Chunker struct {
	targetWords  int
	overlapWords int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithTargetWords sets the chunk size in words.
func WithTargetWords(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.targetWords = n
		}
	}
}

// WithOverlapWords sets the overlap between chunks in words.
func WithOverlapWords(n int) Option {
	return func(c *Chunker) {
		if n >= 0 {
			c.overlapWords = n
		}
	}
}

// New creates a chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		targetWords:  DefaultTargetWords,
		overlapWords: DefaultOverlapWords,
	}

	for _, opt := range opts {
		opt(c)
	}

	// Overlap must leave room for new content in every chunk.
	if c.overlapWords >= c.targetWords {
		c.overlapWords = c.targetWords / 4
	}

	return c
}

// Split chunks text into drafts. Sentences are accumulated until adding the
// next one would exceed the target word count; the chunk then closes and the
// next chunk is seeded with the last overlap words of the previous one. A
// single sentence longer than the target becomes its own chunk - there is no
// forced mid-sentence splitting. Empty or whitespace-only input produces no
// drafts.
func (c *Chunker) Split(text string) []Draft {
	sentences := extract.Sentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var drafts []Draft
	var current []string // seed overlap + accumulated sentence words
	fresh := 0           // words in current beyond the seed

	flush := func() {
		if fresh == 0 {
			return
		}
		chunkText := strings.Join(current, " ")
		drafts = append(drafts, Draft{
			Text:     chunkText,
			Negated:  extract.HasNegation(chunkText),
			Position: len(drafts),
		})
		seed := lastWords(current, c.overlapWords)
		current = append([]string(nil), seed...)
		fresh = 0
	}

	for _, sentence := range sentences {
		words := strings.Fields(sentence)
		if len(words) == 0 {
			continue
		}
		if fresh > 0 && len(current)+len(words) > c.targetWords {
			flush()
		}
		current = append(current, words...)
		fresh += len(words)
	}
	flush()

	return drafts
}

// lastWords returns the trailing n words of a slice, copied.
func lastWords(words []string, n int) []string {
	if n <= 0 || len(words) == 0 {
		return nil
	}
	if n > len(words) {
		n = len(words)
	}
	return words[len(words)-n:]
}
