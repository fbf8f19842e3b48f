package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func startWatcher(t *testing.T, repo string) (*Watcher, chan string) {
	t.Helper()
	changes := make(chan string, 16)
	w, err := NewWatcher(repo, []string{"_posts", "_drafts"}, 50*time.Millisecond, zaptest.NewLogger(t), func(rel string) {
		changes <- rel
	})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Stop() })
	return w, changes
}

func waitChange(t *testing.T, changes chan string) string {
	t.Helper()
	select {
	case rel := <-changes:
		return rel
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for change")
		return ""
	}
}

func TestWatcherReportsMarkdownChanges(t *testing.T) {
	repo := newTestRepo(t, map[string]string{"_posts/2024-03-01-a.md": validPost})
	_, changes := startWatcher(t, repo)

	writeFile(t, repo, "_posts/2024-03-01-a.md", validPost+"\nmore\n")
	assert.Equal(t, "_posts/2024-03-01-a.md", waitChange(t, changes))

	writeFile(t, repo, "_posts/notes.txt", "ignored")
	select {
	case rel := <-changes:
		t.Fatalf("unexpected change for %s", rel)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcherDebounces(t *testing.T) {
	repo := newTestRepo(t, map[string]string{"_posts/2024-03-01-a.md": validPost})
	_, changes := startWatcher(t, repo)

	for i := 0; i < 5; i++ {
		writeFile(t, repo, "_posts/2024-03-01-a.md", validPost)
	}
	assert.Equal(t, "_posts/2024-03-01-a.md", waitChange(t, changes))

	select {
	case rel := <-changes:
		t.Fatalf("expected one callback, got another for %s", rel)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	repo := newTestRepo(t, map[string]string{"_drafts/.keep": ""})
	_, changes := startWatcher(t, repo)

	require.NoError(t, os.MkdirAll(filepath.Join(repo, "_drafts", "series"), 0o755))
	time.Sleep(100 * time.Millisecond)
	writeFile(t, repo, "_drafts/series/part-1.md", "---\ntitle: One\n---\n")
	assert.Equal(t, "_drafts/series/part-1.md", waitChange(t, changes))
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	repo := newTestRepo(t, nil)
	w, err := NewWatcher(repo, []string{"_posts"}, 0, nil, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
	require.NoError(t, w.Start(context.Background()))
}
