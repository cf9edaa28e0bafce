package tokenizer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/uiucchat/chatcore/plugin/tokenizer/tokenizertest"
)

func TestStaticSource(t *testing.T) {
	tok, err := Static(tokenizertest.Words{}).Tokenizer()
	require.NoError(t, err)
	require.Equal(t, 3, tok.Count("one two  three"))
	require.Equal(t, 0, tok.Count(""))
	require.Equal(t, 2, tok.Count("héllo wörld"))
	require.Equal(t, "one two", tok.Truncate("one two three", 2))
}

func TestUnavailableSource(t *testing.T) {
	boom := errors.New("no encoder")
	tok, err := Unavailable(boom).Tokenizer()
	require.Nil(t, tok)
	require.ErrorIs(t, err, boom)
}

func TestNewLazyDefaultsEncoding(t *testing.T) {
	l := NewLazy("")
	require.Equal(t, DefaultEncoding, l.encoding)
}
