package vectorstore

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uiucchat/chatcore/plugin/tokenizer"
	"github.com/uiucchat/chatcore/plugin/tokenizer/tokenizertest"
)

// letterEmbedding embeds text as its normalized letter histogram.
func letterEmbedding(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, 26)
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			v[r-'a']++
		}
	}
	var norm float64
	for _, x := range v {
		norm += float64(x * x)
	}
	if norm == 0 {
		v[0], norm = 1, 1
	}
	n := float32(math.Sqrt(norm))
	for i := range v {
		v[i] /= n
	}
	return v, nil
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), letterEmbedding, tokenizer.Static(tokenizertest.Words{}))
	require.NoError(t, err)
	return s
}

func seed(t *testing.T, s *Store) {
	t.Helper()
	require.NoError(t, s.UpsertDocuments(context.Background(), "BIO101", []Document{
		{ID: "bio#0", Text: "mitochondria make atp atp atp", ReadableFilename: "bio.pdf", S3Path: "x/bio.pdf", PageNumber: "3", DocGroups: []string{"lectures"}},
		{ID: "chem#0", Text: "zzz quartz buzz jazz", ReadableFilename: "chem.pdf", URL: "https://example.com/chem.pdf", DocGroups: []string{"labs"}},
		{ID: "misc#0", Text: "mitochondria overview", ReadableFilename: "misc.txt"},
	}))
}

func TestFetchContextsRanksBySimilarity(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)

	got, err := s.FetchContexts(context.Background(), "BIO101", "atp mitochondria", 0, nil)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "bio#0", got[0].ID)
	assert.Equal(t, "chem#0", got[2].ID)
	assert.Equal(t, "bio.pdf", got[0].ReadableFilename)
	assert.Equal(t, "x/bio.pdf", got[0].S3Path)
	assert.Equal(t, 3, got[0].PageNumber.Int())
	assert.Equal(t, "BIO101", got[0].CourseName)
}

func TestFetchContextsDocGroups(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	got, err := s.FetchContexts(ctx, "BIO101", "atp", 0, []string{"labs"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "chem#0", got[0].ID)

	got, err = s.FetchContexts(ctx, "BIO101", "atp mitochondria", 0, []string{"labs", "lectures"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "bio#0", got[0].ID)

	got, err = s.FetchContexts(ctx, "BIO101", "atp", 0, []string{"nobody"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFetchContextsTokenLimit(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)

	// The best hit alone is five words; the limit keeps it and stops there.
	got, err := s.FetchContexts(context.Background(), "BIO101", "atp mitochondria", 6, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "bio#0", got[0].ID)
}

func TestFetchContextsUnknownCourse(t *testing.T) {
	s := newTestStore(t)
	got, err := s.FetchContexts(context.Background(), "NOPE", "anything", 0, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
