package services

import (
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"jekyll-cms/pkg/config"

	"github.com/stretchr/testify/require"
)

// newTestRepo writes files (slash-relative path to content) into a temp repository and
// points the package configuration at it for the duration of the test.
func newTestRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	repo := t.TempDir()
	for rel, content := range files {
		writeFile(t, repo, rel, content)
	}

	prevRepo, prevSite := config.RepoPath, config.SitePath
	prevPosts, prevDrafts, prevLayouts := config.PostsDir, config.DraftsDir, config.LayoutsDir
	prevAssets := config.AssetDirs
	t.Cleanup(func() {
		config.RepoPath, config.SitePath = prevRepo, prevSite
		config.PostsDir, config.DraftsDir, config.LayoutsDir = prevPosts, prevDrafts, prevLayouts
		config.AssetDirs = prevAssets
		InvalidateCache()
	})

	config.RepoPath = repo
	config.SitePath = filepath.Join(repo, "_site")
	config.PostsDir = "_posts"
	config.DraftsDir = "_drafts"
	config.LayoutsDir = "_layouts"
	config.AssetDirs = []string{"images", "assets"}
	InvalidateCache()
	return repo
}

func writeFile(t *testing.T, repo, rel, content string) {
	t.Helper()
	full := filepath.Join(repo, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

// freezeTime pins the package clock.
func freezeTime(t *testing.T, at time.Time) {
	t.Helper()
	prev := now
	now = func() time.Time { return at }
	t.Cleanup(func() { now = prev })
}

const validPost = `---
layout: post
title: Hello World
modified: 2024-03-01
tags: [go, jekyll]
categories: [Dev Notes]
---
Hello there.
`
