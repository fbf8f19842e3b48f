package services

import (
	"context"
	"testing"
	"time"

	"jekyll-cms/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var lintNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func lintFixture(t *testing.T, extra map[string]string) string {
	files := map[string]string{
		"_layouts/post.html":    "{{ content }}",
		"_layouts/default.html": "{{ content }}",
		"images/ok.png":         "png",
		"_posts/pic.png":        "png",
	}
	for k, v := range extra {
		files[k] = v
	}
	return newTestRepo(t, files)
}

func lintOne(t *testing.T, rel, content string) []models.LintIssue {
	t.Helper()
	issues, err := LintFile(rel, []byte(content), LintOptions{Now: lintNow})
	require.NoError(t, err)
	return issues
}

func issueRules(issues []models.LintIssue) []string {
	rules := []string{}
	for _, i := range issues {
		rules = append(rules, i.Rule)
	}
	return rules
}

func TestLintValidPost(t *testing.T) {
	lintFixture(t, nil)
	assert.Empty(t, lintOne(t, "_posts/2024-03-01-hello-world.md", validPost))
}

func TestLintFilename(t *testing.T) {
	lintFixture(t, nil)

	issues := lintOne(t, "_posts/hello.md", validPost)
	require.Len(t, issues, 1)
	assert.Equal(t, RuleFilenamePattern, issues[0].Rule)
	assert.Equal(t, 0, issues[0].Line)

	issues = lintOne(t, "_posts/2024-02-30-bad-day.md", validPost)
	assert.Equal(t, []string{RuleFilenameDate}, issueRules(issues))

	assert.Empty(t, lintOne(t, "_drafts/hello.md", validPost))
}

func TestLintMissingFrontMatter(t *testing.T) {
	lintFixture(t, nil)

	issues := lintOne(t, "_posts/2024-03-01-plain.md", "# Just text\n")
	require.Len(t, issues, 1)
	assert.Equal(t, RuleFrontMatter, issues[0].Rule)
	assert.Equal(t, 1, issues[0].Line)
	assert.Equal(t, "missing front matter", issues[0].Message)

	issues = lintOne(t, "_posts/2024-03-01-open.md", "---\ntitle: Open\n")
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0].Message, "unterminated")
}

func TestLintInvalidYAML(t *testing.T) {
	lintFixture(t, nil)

	issues := lintOne(t, "_posts/2024-03-01-broken.md", "---\nlayout: post\ntitle: [unclosed\nmodified: 2024-03-01\n---\n")
	require.Len(t, issues, 1)
	assert.Equal(t, RuleFrontMatter, issues[0].Rule)
	assert.Equal(t, models.SeverityError, issues[0].Severity)
	assert.Contains(t, issues[0].Message, "invalid YAML front matter")
}

func TestLintInvalidTOML(t *testing.T) {
	lintFixture(t, nil)

	issues := lintOne(t, "_posts/2024-03-01-broken.md", "+++\nlayout = \"post\"\ntitle = \n+++\n")
	require.Len(t, issues, 1)
	assert.Equal(t, RuleFrontMatter, issues[0].Rule)
	assert.Greater(t, issues[0].Line, 1)
}

func TestLintRequiredFields(t *testing.T) {
	lintFixture(t, nil)

	issues := lintOne(t, "_posts/2024-03-01-x.md", "---\nlayout: post\ntitle: \"\"\n---\n")
	assert.Equal(t, []string{RuleRequiredField, RuleRequiredField}, issueRules(issues))
	assert.Contains(t, issues[0].Message, `"modified"`)
	assert.Equal(t, 1, issues[0].Line)
	assert.Contains(t, issues[1].Message, `"title"`)
	assert.Equal(t, 3, issues[1].Line)
}

func TestLintFieldTypes(t *testing.T) {
	lintFixture(t, nil)

	content := "---\nlayout: post\ntitle: 42\nmodified: 2024-03-01\ntags: 5\npublished: yes please\n---\n"
	issues := lintOne(t, "_posts/2024-03-01-x.md", content)
	require.Len(t, issues, 3)
	for _, issue := range issues {
		assert.Equal(t, RuleFieldType, issue.Rule)
	}
	assert.Equal(t, []int{3, 5, 6}, []int{issues[0].Line, issues[1].Line, issues[2].Line})
}

func TestLintDates(t *testing.T) {
	lintFixture(t, nil)

	issues := lintOne(t, "_posts/2024-03-01-x.md", "---\nlayout: post\ntitle: T\nmodified: someday\n---\n")
	require.Len(t, issues, 1)
	assert.Equal(t, RuleInvalidDate, issues[0].Rule)
	assert.Equal(t, 4, issues[0].Line)

	future := "---\nlayout: post\ntitle: T\nmodified: 2099-01-01\n---\n"
	issues = lintOne(t, "_posts/2024-03-01-x.md", future)
	require.Len(t, issues, 1)
	assert.Equal(t, RuleFutureDate, issues[0].Rule)

	assert.Empty(t, lintOne(t, "_drafts/x.md", future))
	assert.Empty(t, lintOne(t, "_posts/2024-03-01-x.md",
		"---\nlayout: post\ntitle: T\nmodified: 2099-01-01\npublished: false\n---\n"))
}

func TestLintUnknownLayout(t *testing.T) {
	lintFixture(t, nil)

	issues := lintOne(t, "_posts/2024-03-01-x.md", "---\nlayout: gallery\ntitle: T\nmodified: 2024-03-01\n---\n")
	require.Len(t, issues, 1)
	assert.Equal(t, RuleUnknownLayout, issues[0].Rule)
	assert.Equal(t, models.SeverityWarning, issues[0].Severity)
	assert.Equal(t, 2, issues[0].Line)

	assert.Empty(t, lintOne(t, "_posts/2024-03-01-x.md", "---\nlayout: none\ntitle: T\nmodified: 2024-03-01\n---\n"))
}

func TestLintUnknownLayoutWithoutLayoutsDir(t *testing.T) {
	newTestRepo(t, nil)
	assert.Empty(t, lintOne(t, "_posts/2024-03-01-x.md", "---\nlayout: gallery\ntitle: T\nmodified: 2024-03-01\n---\n"))
}

func TestLintMissingAssets(t *testing.T) {
	lintFixture(t, nil)

	content := `---
layout: post
title: Links
modified: 2024-03-01
---
Intro

![ok](/images/ok.png)
![gone](/images/gone.png)
[doc](/files/doc.pdf)
[page](/about/)
[ext](https://example.com/a.png)
<img src="assets/missing.jpg">
![relative](pic.png)
[anchor](#intro)
`
	issues := lintOne(t, "_posts/2024-03-01-links.md", content)
	require.Len(t, issues, 3)
	for _, issue := range issues {
		assert.Equal(t, RuleMissingAsset, issue.Rule)
	}
	assert.Equal(t, 9, issues[0].Line)
	assert.Contains(t, issues[0].Message, "/images/gone.png")
	assert.Equal(t, 10, issues[1].Line)
	assert.Contains(t, issues[1].Message, "/files/doc.pdf")
	assert.Equal(t, 13, issues[2].Line)
	assert.Contains(t, issues[2].Message, "assets/missing.jpg")
}

func TestLintRepoDuplicatePermalinks(t *testing.T) {
	lintFixture(t, map[string]string{
		"_posts/2024-03-01-a.md": "---\nlayout: post\ntitle: A\nmodified: 2024-03-01\npermalink: /same/\n---\n",
		"_posts/2024-03-02-b.md": "---\nlayout: post\ntitle: B\nmodified: 2024-03-02\npermalink: /same/\n---\n",
		"_posts/2024-03-03-c.md": validPost,
		"_drafts/d.md":           "---\ntitle: D\n---\n",
	})

	report, err := Lint(context.Background(), LintOptions{Now: lintNow})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Files)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, RuleDuplicatePermalink, report.Issues[0].Rule)
	assert.Equal(t, "_posts/2024-03-02-b.md", report.Issues[0].Path)
	assert.Equal(t, "permalink /same/ is also produced by _posts/2024-03-01-a.md", report.Issues[0].Message)
	assert.False(t, report.OK())
	assert.Equal(t, 1, report.Errors)
}

func TestLintRepoDraftsAndOrdering(t *testing.T) {
	lintFixture(t, map[string]string{
		"_posts/2024-03-01-b.md": "# no front matter",
		"_posts/bad-name.md":     validPost,
		"_drafts/d.md":           "---\nlayout: gallery\ntitle: D\nmodified: 2024-03-01\n---\n",
	})

	report, err := Lint(context.Background(), LintOptions{Drafts: true, Now: lintNow})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Files)
	assert.Equal(t, 2, report.Errors)
	assert.Equal(t, 1, report.Warnings)

	var paths []string
	for _, i := range report.Issues {
		paths = append(paths, i.Path)
	}
	assert.Equal(t, []string{"_drafts/d.md", "_posts/2024-03-01-b.md", "_posts/bad-name.md"}, paths)
}

func TestLintRepoClean(t *testing.T) {
	lintFixture(t, map[string]string{"_posts/2024-03-01-hello-world.md": validPost})

	report, err := Lint(context.Background(), LintOptions{Now: lintNow})
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.NotNil(t, report.Issues)
	assert.Empty(t, report.Issues)
}

func TestLocalTarget(t *testing.T) {
	tests := []struct {
		dest string
		want string
		ok   bool
	}{
		{"/images/a.png", "/images/a.png", true},
		{"a.png?v=2#x", "a.png", true},
		{"<a b.png>", "a b.png", true},
		{"https://example.com/a.png", "", false},
		{"//cdn.example.com/a.png", "", false},
		{"mailto:me@example.com", "", false},
		{"#top", "", false},
		{"{{ site.baseurl }}/a.png", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := localTarget(tt.dest)
		assert.Equal(t, tt.ok, ok, tt.dest)
		assert.Equal(t, tt.want, got, tt.dest)
	}
}

func TestLintIgnoresHighlightedMarkup(t *testing.T) {
	lintFixture(t, nil)

	content := `---
layout: post
title: Layouts
modified: 2024-03-01
---
Set the launcher icon:

{% highlight xml %}
<ImageView
    android:layout_width="wrap_content"
    android:src="@drawable/ic_launcher" />
{% endhighlight %}

![missing](/images/missing.png)
`
	issues := lintOne(t, "_posts/2024-03-01-layouts.md", content)
	require.Len(t, issues, 1)
	assert.Equal(t, RuleMissingAsset, issues[0].Rule)
	assert.Contains(t, issues[0].Message, "/images/missing.png")
}

func TestLintRepoUnpublishedPermalinks(t *testing.T) {
	lintFixture(t, map[string]string{
		"_posts/2024-03-01-a.md": "---\nlayout: post\ntitle: A\nmodified: 2024-03-01\npermalink: /same/\n---\n",
		"_posts/2024-03-02-b.md": "---\nlayout: post\ntitle: B\nmodified: 2024-03-02\npermalink: /same/\npublished: false\n---\n",
	})

	report, err := Lint(context.Background(), LintOptions{Now: lintNow})
	require.NoError(t, err)
	assert.Empty(t, report.Issues)

	report, err = Lint(context.Background(), LintOptions{Drafts: true, Now: lintNow})
	require.NoError(t, err)
	assert.Equal(t, []string{RuleDuplicatePermalink}, issueRules(report.Issues))
}

func TestLintDatesUseSiteTimezone(t *testing.T) {
	lintFixture(t, map[string]string{"_config.yml": "timezone: Asia/Tokyo\n"})

	// 20:00 in Tokyo is 11:00 UTC, an hour before lintNow.
	past := "---\nlayout: post\ntitle: T\nmodified: 2024-06-01 20:00:00\n---\n"
	assert.Empty(t, lintOne(t, "_posts/2024-06-01-x.md", past))

	future := "---\nlayout: post\ntitle: T\nmodified: 2024-06-01 22:00:00\n---\n"
	assert.Equal(t, []string{RuleFutureDate}, issueRules(lintOne(t, "_posts/2024-06-01-x.md", future)))
}
