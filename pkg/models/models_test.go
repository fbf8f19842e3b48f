package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsPublished(t *testing.T) {
	yes, no := true, false
	assert.True(t, FrontMatter{}.IsPublished())
	assert.True(t, FrontMatter{Published: &yes}.IsPublished())
	assert.False(t, FrontMatter{Published: &no}.IsPublished())
}

func TestPostSortTimeAndLive(t *testing.T) {
	fileDate := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	modified := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	p := Post{Date: fileDate}
	assert.Equal(t, fileDate, p.SortTime())
	p.Meta.Modified = modified
	assert.Equal(t, modified, p.SortTime())

	assert.True(t, p.Live())
	no := false
	p.Meta.Published = &no
	assert.False(t, p.Live())
	assert.False(t, Post{Draft: true}.Live())
}

func TestLintReportCounts(t *testing.T) {
	var r LintReport
	assert.True(t, r.OK())
	r.Add(LintIssue{Rule: "FM003", Severity: SeverityWarning})
	assert.True(t, r.OK())
	r.Add(LintIssue{Rule: "FM001", Severity: SeverityError})
	assert.False(t, r.OK())
	assert.Equal(t, 1, r.Errors)
	assert.Equal(t, 1, r.Warnings)
	assert.Len(t, r.Issues, 2)
}
