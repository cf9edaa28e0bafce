// Package vectorstore retrieves course document snippets by semantic similarity.
package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"golang.org/x/sync/errgroup"

	"github.com/uiucchat/chatcore/internal/chat"
	"github.com/uiucchat/chatcore/plugin/tokenizer"
)

// DefaultTopK bounds how many snippets a single query asks the collection for.
const DefaultTopK = 80

const (
	metaFilename = "readable_filename"
	metaS3Path   = "s3_path"
	metaURL      = "url"
	metaBaseURL  = "base_url"
	metaPage     = "pagenumber"
	metaGroup    = "group:"
)

// Document is one indexable snippet of a course document.
type Document struct {
	ID               string
	Text             string
	ReadableFilename string
	S3Path           string
	URL              string
	BaseURL          string
	PageNumber       string
	// DocGroups are the document groups the snippet belongs to.
	DocGroups []string
}

// Store wraps chromem-go with per-course collections and disk persistence.
type Store struct {
	mu      sync.RWMutex
	db      *chromem.DB
	embedFn chromem.EmbeddingFunc
	tokens  tokenizer.Source
	topK    int
}

// New creates (or opens) the persistent vector store at dataDir/vectorstore/.
// tokens is used to stop collecting snippets once a fetch's token limit is reached.
func New(dataDir string, embedFunc chromem.EmbeddingFunc, tokens tokenizer.Source) (*Store, error) {
	dir := filepath.Join(dataDir, "vectorstore")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create vectorstore dir: %w", err)
	}
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("open vectorstore: %w", err)
	}
	return &Store{db: db, embedFn: embedFunc, tokens: tokens, topK: DefaultTopK}, nil
}

func collectionName(course string) string {
	return "course_" + strings.ToLower(strings.TrimSpace(course))
}

func (s *Store) collection(course string, create bool) (*chromem.Collection, error) {
	name := collectionName(course)
	col := s.db.GetCollection(name, s.embedFn)
	if col != nil || !create {
		return col, nil
	}
	col, err := s.db.CreateCollection(name, map[string]string{"course_name": course}, s.embedFn)
	if err != nil {
		return nil, fmt.Errorf("create collection for course %q: %w", course, err)
	}
	return col, nil
}

// UpsertDocuments indexes (or re-indexes) snippets of a course. The ingestion
// pipeline owns the index in production; this is the write path it shares.
func (s *Store) UpsertDocuments(ctx context.Context, course string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	col, err := s.collection(course, true)
	if err != nil {
		return err
	}
	out := make([]chromem.Document, 0, len(docs))
	for _, d := range docs {
		meta := map[string]string{
			metaFilename: d.ReadableFilename,
			metaS3Path:   d.S3Path,
			metaURL:      d.URL,
			metaBaseURL:  d.BaseURL,
			metaPage:     d.PageNumber,
		}
		for _, g := range d.DocGroups {
			meta[metaGroup+g] = "1"
		}
		out = append(out, chromem.Document{ID: d.ID, Content: d.Text, Metadata: meta})
	}
	if err := col.AddDocuments(ctx, out, 4); err != nil {
		return fmt.Errorf("index %d documents for course %q: %w", len(out), course, err)
	}
	return nil
}

// FetchContexts returns the course snippets most similar to query, best first, stopping
// once their combined text reaches tokenLimit (0 means no limit). When docGroups is
// non-empty only snippets in at least one of the groups are returned.
func (s *Store) FetchContexts(ctx context.Context, course, query string, tokenLimit int, docGroups []string) ([]chat.ContextWithMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, err := s.collection(course, false)
	if err != nil {
		return nil, err
	}
	if col == nil || col.Count() == 0 {
		return nil, nil
	}

	var results []chromem.Result
	if len(docGroups) == 0 {
		results, err = s.query(ctx, col, query, nil)
		if err != nil {
			return nil, err
		}
	} else {
		perGroup := make([][]chromem.Result, len(docGroups))
		g, gctx := errgroup.WithContext(ctx)
		for i, group := range docGroups {
			g.Go(func() error {
				r, err := s.query(gctx, col, query, map[string]string{metaGroup + group: "1"})
				if err != nil {
					return fmt.Errorf("query doc group %q: %w", group, err)
				}
				perGroup[i] = r
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		results = mergeResults(perGroup)
	}

	return s.toContexts(course, results, tokenLimit), nil
}

func (s *Store) query(ctx context.Context, col *chromem.Collection, query string, where map[string]string) ([]chromem.Result, error) {
	k := min(s.topK, col.Count())
	var (
		results []chromem.Result
		err     error
	)
	// chromem rejects nResults above the number of matching documents, so step down.
	for attemptK := k; attemptK > 0; attemptK-- {
		results, err = col.Query(ctx, query, attemptK, where, nil)
		if err == nil {
			return results, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	if where != nil {
		// No document in the group.
		slog.Debug("doc group query returned nothing", "where", where, "err", err)
		return nil, nil
	}
	return nil, err
}

// mergeResults deduplicates hits found through several groups and orders them by
// similarity, best first.
func mergeResults(groups [][]chromem.Result) []chromem.Result {
	seen := map[string]bool{}
	var merged []chromem.Result
	for _, rs := range groups {
		for _, r := range rs {
			if seen[r.ID] {
				continue
			}
			seen[r.ID] = true
			merged = append(merged, r)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Similarity > merged[j].Similarity
	})
	return merged
}

func (s *Store) toContexts(course string, results []chromem.Result, tokenLimit int) []chat.ContextWithMetadata {
	var tok tokenizer.Tokenizer
	if tokenLimit > 0 && s.tokens != nil {
		t, err := s.tokens.Tokenizer()
		if err != nil {
			slog.Warn("fetching contexts without a token limit", "course", course, "err", err)
		}
		tok = t
	}

	out := make([]chat.ContextWithMetadata, 0, len(results))
	used := 0
	for _, r := range results {
		if tok != nil {
			used += tok.Count(r.Content)
			if used > tokenLimit && len(out) > 0 {
				break
			}
		}
		out = append(out, chat.ContextWithMetadata{
			ID:               r.ID,
			Text:             r.Content,
			ReadableFilename: r.Metadata[metaFilename],
			CourseName:       course,
			S3Path:           r.Metadata[metaS3Path],
			PageNumber:       chat.PageNumber(r.Metadata[metaPage]),
			URL:              r.Metadata[metaURL],
			BaseURL:          r.Metadata[metaBaseURL],
		})
	}
	return out
}

// OpenAIEmbedding returns an embedding function for an OpenAI compatible endpoint.
// An empty baseURL selects the public OpenAI API.
func OpenAIEmbedding(baseURL, apiKey, model string) chromem.EmbeddingFunc {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return chromem.NewEmbeddingFuncOpenAICompat(baseURL, apiKey, model, nil)
}
