package s3

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeClient(presign func(ctx context.Context, key string) (string, error)) *Client {
	c := &Client{Bucket: "docs"}
	c.init(time.Hour, presign)
	return c
}

func TestResolveLinkCachesAndSharesCalls(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	c := newFakeClient(func(_ context.Context, key string) (string, error) {
		calls.Add(1)
		<-release
		return "https://docs.example.com/" + key + "?sig=1", nil
	})

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u, err := c.ResolveLink(context.Background(), "/BIO101/bio.pdf", "BIO101")
			assert.NoError(t, err)
			results[i] = u
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, u := range results {
		assert.Equal(t, "https://docs.example.com/BIO101/bio.pdf?sig=1", u)
	}
	u, err := c.ResolveLink(context.Background(), "BIO101/bio.pdf", "BIO101")
	require.NoError(t, err)
	assert.Equal(t, "https://docs.example.com/BIO101/bio.pdf?sig=1", u)
	assert.LessOrEqual(t, calls.Load(), int32(2))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestResolveLinkSurvivesFirstCallerCancel(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var presignErr atomic.Value
	var once sync.Once
	c := newFakeClient(func(ctx context.Context, key string) (string, error) {
		once.Do(func() { close(started) })
		<-release
		if err := ctx.Err(); err != nil {
			presignErr.Store(err)
			return "", err
		}
		return "https://docs.example.com/" + key, nil
	})

	first, cancel := context.WithCancel(context.Background())
	firstDone := make(chan error, 1)
	go func() {
		_, err := c.ResolveLink(first, "BIO101/bio.pdf", "BIO101")
		firstDone <- err
	}()
	<-started

	secondDone := make(chan string, 1)
	go func() {
		u, err := c.ResolveLink(context.Background(), "BIO101/bio.pdf", "BIO101")
		assert.NoError(t, err)
		secondDone <- u
	}()

	cancel()
	require.ErrorIs(t, <-firstDone, context.Canceled)
	close(release)

	assert.Equal(t, "https://docs.example.com/BIO101/bio.pdf", <-secondDone)
	assert.Nil(t, presignErr.Load())
}

func TestResolveLinkErrors(t *testing.T) {
	c := newFakeClient(func(context.Context, string) (string, error) {
		return "", errors.New("access denied")
	})
	_, err := c.ResolveLink(context.Background(), "BIO101/bio.pdf", "BIO101")
	assert.ErrorContains(t, err, "access denied")

	_, err = c.ResolveLink(context.Background(), "", "BIO101")
	assert.Error(t, err)
}

func TestResolveLinkExpiry(t *testing.T) {
	var calls atomic.Int32
	c := newFakeClient(func(context.Context, string) (string, error) {
		calls.Add(1)
		return "https://docs.example.com/a", nil
	})
	_, err := c.ResolveLink(context.Background(), "a", "X")
	require.NoError(t, err)
	c.mu.Lock()
	l := c.cache["a"]
	l.expires = time.Now().Add(-time.Second)
	c.cache["a"] = l
	c.mu.Unlock()
	_, err = c.ResolveLink(context.Background(), "a", "X")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestNewClientRequiresBucket(t *testing.T) {
	_, err := NewClient(context.Background(), Config{Region: "us-east-1"})
	assert.Error(t, err)
}
