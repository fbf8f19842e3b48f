package services

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitFrontMatter(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		format   string
		data     string
		body     string
		bodyLine int
	}{
		{"yaml", "---\ntitle: A\n---\nbody\n", "yaml", "title: A\n", "body\n", 4},
		{"yaml document end", "---\ntitle: A\n...\nbody\n", "yaml", "title: A\n", "body\n", 4},
		{"toml", "+++\ntitle = \"A\"\n+++\nbody\n", "toml", "title = \"A\"\n", "body\n", 4},
		{"byte order mark", "\xef\xbb\xbf---\ntitle: A\n---\n", "yaml", "title: A\n", "", 4},
		{"crlf fences", "---\r\ntitle: A\r\n---\r\nbody", "yaml", "title: A\r\n", "body", 4},
		{"json", "{\"title\": \"A {b}\"}\nbody", "json", "{\"title\": \"A {b}\"}", "\nbody", 1},
		{"empty yaml", "---\n---\nbody", "yaml", "", "body", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := splitFrontMatter([]byte(tt.content))
			require.NoError(t, err)
			assert.Equal(t, tt.format, b.Format)
			assert.Equal(t, tt.data, string(b.Data))
			assert.Equal(t, tt.body, string(b.Body))
			assert.Equal(t, tt.bodyLine, b.BodyLine)
		})
	}
}

func TestSplitFrontMatterErrors(t *testing.T) {
	_, err := splitFrontMatter([]byte("# Just a heading\n"))
	assert.ErrorIs(t, err, ErrNoFrontMatter)

	_, err = splitFrontMatter([]byte("---\ntitle: A\nbody\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unterminated yaml")

	_, err = splitFrontMatter([]byte(`{"title": "A"`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unterminated json")

	assert.False(t, HasFrontMatter([]byte("plain")))
	assert.True(t, HasFrontMatter([]byte("+++\n+++\n")))
}

func TestParseFrontMatterFormats(t *testing.T) {
	tests := []struct {
		name    string
		content string
		format  string
	}{
		{"yaml", "---\ntitle: Post\ntags:\n  - a\n  - b\n---\n\nBody text\n", "yaml"},
		{"toml", "+++\ntitle = \"Post\"\ntags = [\"a\", \"b\"]\n+++\n\nBody text\n", "toml"},
		{"json", "{\n  \"title\": \"Post\",\n  \"tags\": [\"a\", \"b\"]\n}\n\nBody text\n", "json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fm, body, format, err := ParseFrontMatter([]byte(tt.content))
			require.NoError(t, err)
			assert.Equal(t, tt.format, format)
			assert.Equal(t, "Post", fm["title"])
			assert.Equal(t, []interface{}{"a", "b"}, fm["tags"])
			assert.Equal(t, "Body text", body)
		})
	}
}

func TestParseFrontMatterDecodeError(t *testing.T) {
	_, _, format, err := ParseFrontMatter([]byte("+++\ntitle = \n+++\n"))
	require.Error(t, err)
	assert.Equal(t, "toml", format)
	assert.Contains(t, err.Error(), "decode toml front matter")
}

func TestDecodeFrontMatter(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	content := []byte(`---
layout: post
title: Typed
modified: 2024-03-01 10:30
published: false
tags: go jekyll
category: Notes
cover: /images/a.png
---
Body
`)
	meta, raw, body, err := DecodeFrontMatter(content, loc)
	require.NoError(t, err)

	assert.Equal(t, "post", meta.Layout)
	assert.Equal(t, "Typed", meta.Title)
	assert.True(t, time.Date(2024, 3, 1, 10, 30, 0, 0, loc).Equal(meta.Modified), "modified %v", meta.Modified)
	require.NotNil(t, meta.Published)
	assert.False(t, meta.IsPublished())
	assert.Equal(t, []string{"go", "jekyll"}, meta.Tags)
	assert.Equal(t, []string{"Notes"}, meta.Categories)
	assert.Equal(t, "/images/a.png", meta.Extra["cover"])
	assert.Equal(t, "/images/a.png", raw["cover"])
	assert.Equal(t, "Body", strings.TrimSpace(string(body)))
}

func TestDecodeFrontMatterYAMLTimestampsUseSiteZone(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-06-01", time.Date(2024, 6, 1, 0, 0, 0, 0, tokyo)},
		{"2024-06-01 20:00:00", time.Date(2024, 6, 1, 20, 0, 0, 0, tokyo)},
		{"2024-6-1 8:05:00", time.Date(2024, 6, 1, 8, 5, 0, 0, tokyo)},
		{"2024-06-01T20:00:00Z", time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC)},
		{"2024-06-01T20:00:00+02:00", time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		meta, _, _, err := DecodeFrontMatter([]byte("---\ntitle: T\nmodified: "+tt.in+"\n---\n"), tokyo)
		require.NoError(t, err, tt.in)
		assert.True(t, tt.want.Equal(meta.Modified), "%s: got %v", tt.in, meta.Modified)

		fm, _, _, err := ParseFrontMatter([]byte("---\nmodified: " + tt.in + "\n---\n"))
		require.NoError(t, err)
		got, ok := ParseDate(fm["modified"], tokyo)
		require.True(t, ok, tt.in)
		assert.True(t, tt.want.Equal(got), "%s: got %v", tt.in, got)
	}
}

func TestConstructFileContentKeepsDatesPlain(t *testing.T) {
	fm, body, _, err := ParseFrontMatter([]byte("---\nmodified: 2024-06-01 20:00:00\ndate: 2024-06-01\ntitle: \"2024\"\n---\nBody\n"))
	require.NoError(t, err)

	out, err := ConstructFileContent(fm, body, "yaml")
	require.NoError(t, err)
	assert.Contains(t, string(out), "\nmodified: 2024-06-01 20:00:00\n")
	assert.Contains(t, string(out), "\ndate: 2024-06-01\n")
	assert.Contains(t, string(out), "\ntitle: \"2024\"\n")
}

func TestDecodeFrontMatterDocumentEnd(t *testing.T) {
	meta, _, body, err := DecodeFrontMatter([]byte("---\ntitle: Dots\n...\nBody\n"), nil)
	require.NoError(t, err)
	assert.Equal(t, "Dots", meta.Title)
	assert.Equal(t, "Body", strings.TrimSpace(string(body)))
}

func TestDecodeFrontMatterTOMLDates(t *testing.T) {
	meta, _, _, err := DecodeFrontMatter([]byte("+++\ntitle = \"T\"\nmodified = 2024-02-03\n+++\n"), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 2024, meta.Modified.Year())
	assert.Equal(t, time.February, meta.Modified.Month())
	assert.Equal(t, 3, meta.Modified.Day())
}

func TestDecodeFrontMatterMissing(t *testing.T) {
	_, _, body, err := DecodeFrontMatter([]byte("no front matter"), nil)
	assert.True(t, errors.Is(err, ErrNoFrontMatter))
	assert.Equal(t, "no front matter", string(body))
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   interface{}
		want time.Time
		ok   bool
	}{
		{"2024-03-01", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), true},
		{"2024-03-01 08:15:00", time.Date(2024, 3, 1, 8, 15, 0, 0, time.UTC), true},
		{"2024-03-01T08:15:00Z", time.Date(2024, 3, 1, 8, 15, 0, 0, time.UTC), true},
		{"2024-03-01 08:15:00 +0000", time.Date(2024, 3, 1, 8, 15, 0, 0, time.UTC), true},
		{"2024-13-01", time.Time{}, false},
		{"yesterday", time.Time{}, false},
		{42, time.Time{}, false},
		{nil, time.Time{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseDate(tt.in, nil)
		assert.Equal(t, tt.ok, ok, "%v", tt.in)
		if tt.ok {
			assert.True(t, tt.want.Equal(got), "%v: got %v", tt.in, got)
		}
	}
}

func TestStringList(t *testing.T) {
	list, ok := StringList([]interface{}{"a", "b"})
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, list)

	list, ok = StringList("a  b")
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, list)

	_, ok = StringList([]interface{}{"a", 1})
	assert.False(t, ok)

	_, ok = StringList(map[string]interface{}{})
	assert.False(t, ok)
}

func TestConstructFileContentRoundTrip(t *testing.T) {
	fm := map[string]interface{}{"title": "Round", "tags": []interface{}{"x"}}
	for _, format := range []string{"yaml", "toml", "json"} {
		t.Run(format, func(t *testing.T) {
			out, err := ConstructFileContent(fm, "Body", format)
			require.NoError(t, err)

			parsed, body, gotFormat, err := ParseFrontMatter(out)
			require.NoError(t, err)
			assert.Equal(t, format, gotFormat)
			assert.Equal(t, "Round", parsed["title"])
			assert.Equal(t, "Body", body)
		})
	}

	_, err := ConstructFileContent(fm, "", "xml")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestCanonicalizeForDiffIgnoresFormatting(t *testing.T) {
	a := []byte("---\ntitle: Same\ntags: []\n---\nBody\r\n")
	b := []byte("---\ntitle:   Same\n---\n\nBody\n")

	fmA, bodyA, err := CanonicalizeForDiff(a, nil)
	require.NoError(t, err)
	fmB, bodyB, err := CanonicalizeForDiff(b, nil)
	require.NoError(t, err)

	assert.JSONEq(t, string(fmA), string(fmB))
	assert.Equal(t, bodyA, bodyB)
}

func TestNormalizeContentAppliesDefaults(t *testing.T) {
	out := NormalizeContent([]byte("---\ntitle: T\n---\nBody\n"), map[string]interface{}{"layout": "post"})
	fm, _, _, err := ParseFrontMatter(out)
	require.NoError(t, err)
	assert.Equal(t, "post", fm["layout"])
	assert.Equal(t, "T", fm["title"])
}
