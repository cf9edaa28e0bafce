// Package tokenizer counts tokens for prompt budgeting.
//
// A single encoding is used for the whole pipeline so budget arithmetic stays
// self-consistent even when it differs slightly from a provider's own tokenizer.
package tokenizer

import (
	"fmt"
	"log/slog"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the tiktoken encoding used when none is configured.
const DefaultEncoding = "cl100k_base"

// Tokenizer counts and truncates text in model tokens.
type Tokenizer interface {
	// Count returns the number of tokens in text. It never fails.
	Count(text string) int
	// Truncate returns the longest token prefix of text holding at most maxTokens tokens.
	Truncate(text string, maxTokens int) string
}

// Source hands out a ready tokenizer or the reason none is available.
type Source interface {
	Tokenizer() (Tokenizer, error)
}

// Lazy builds the tiktoken encoder on first use and shares it afterwards.
// The encoder is read-only after construction and safe for concurrent use.
type Lazy struct {
	encoding string

	once sync.Once
	tok  Tokenizer
	err  error
}

// NewLazy returns a Source for the named encoding. Nothing is loaded until first use.
func NewLazy(encoding string) *Lazy {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	return &Lazy{encoding: encoding}
}

// Tokenizer returns the shared encoder, initializing it once.
func (l *Lazy) Tokenizer() (Tokenizer, error) {
	l.once.Do(func() {
		enc, err := tiktoken.GetEncoding(l.encoding)
		if err != nil {
			slog.Error("failed to initialize tokenizer", "encoding", l.encoding, "err", err)
			l.err = fmt.Errorf("tokenizer: get encoding %q: %w", l.encoding, err)
			return
		}
		l.tok = &tiktokenTokenizer{enc: enc}
	})
	return l.tok, l.err
}

type tiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
}

func (t *tiktokenTokenizer) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.Encode(text, nil, nil))
}

func (t *tiktokenTokenizer) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	tokens := t.enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return t.enc.Decode(tokens[:maxTokens])
}

type static struct {
	tok Tokenizer
	err error
}

func (s static) Tokenizer() (Tokenizer, error) { return s.tok, s.err }

// Static returns a Source that always yields tok.
func Static(tok Tokenizer) Source {
	return static{tok: tok}
}

// Unavailable returns a Source that always reports err, as a failed encoder load would.
func Unavailable(err error) Source {
	return static{err: err}
}
