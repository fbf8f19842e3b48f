package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"time"

	"jekyll-cms/pkg/config"

	"github.com/goliatone/go-slug"
)

var now = time.Now

// BuildSite runs the generator over the repository into SitePath.
func BuildSite(ctx context.Context, drafts bool) (string, error) {
	bin := strings.Fields(config.JekyllBin)
	if len(bin) == 0 {
		return "", errors.New("JEKYLL_BIN is empty")
	}
	args := append(bin[1:],
		"build",
		"--source", config.RepoPath,
		"--destination", config.SitePath,
		"--baseurl", strings.TrimSuffix(config.PreviewURL, "/"),
	)
	if drafts {
		args = append(args, "--drafts")
	}

	cmd := exec.CommandContext(ctx, bin[0], args...)
	cmd.Dir = config.RepoPath
	output, err := cmd.CombinedOutput()
	return string(output), err
}

type NewPostRequest struct {
	Title       string    `json:"title" binding:"required"`
	Date        time.Time `json:"date"`
	Layout      string    `json:"layout"`
	Author      string    `json:"author"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags"`
	Categories  []string  `json:"categories"`
	Draft       bool      `json:"draft"`
	Body        string    `json:"body"`
}

// NewPostPath returns the repo-relative file name a post with this title and date gets.
func NewPostPath(title string, date time.Time) (string, error) {
	s, err := slug.Normalize(title)
	if err != nil {
		return "", fmt.Errorf("slug for %q: %w", title, err)
	}
	if s == "" {
		return "", fmt.Errorf("title %q has no usable characters", title)
	}
	return path.Join(strings.Trim(config.PostsDir, "/"), date.Format("2006-01-02")+"-"+s+".md"), nil
}

// CreatePost scaffolds a post file from the site defaults and the request. The post
// is written with published: false when req.Draft is set.
func CreatePost(req NewPostRequest) (string, error) {
	if strings.TrimSpace(req.Title) == "" {
		return "", errors.New("title is required")
	}
	site, err := LoadSiteConfig(config.RepoPath)
	if err != nil {
		return "", err
	}

	date := req.Date
	if date.IsZero() {
		date = now().In(SiteLocation(site))
	}
	rel, err := NewPostPath(req.Title, date)
	if err != nil {
		return "", err
	}

	fullPath := SafeJoin(config.RepoPath, "", rel)
	if fullPath == "" {
		return "", ErrInvalidPath
	}
	if _, err := os.Stat(fullPath); err == nil {
		return rel, fmt.Errorf("%s: %w", rel, ErrExists)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}

	fm := DefaultsFor(site, rel)
	if _, ok := fm["layout"]; !ok {
		fm["layout"] = "post"
	}
	set := func(key, value string) {
		if value != "" {
			fm[key] = value
		}
	}
	set("layout", req.Layout)
	set("author", req.Author)
	set("description", req.Description)
	fm["title"] = req.Title
	fm["modified"] = date.Format("2006-01-02")
	fm["published"] = !req.Draft
	if len(req.Tags) > 0 {
		fm["tags"] = toInterfaces(req.Tags)
	}
	if len(req.Categories) > 0 {
		fm["categories"] = toInterfaces(req.Categories)
	}

	content, err := ConstructFileContent(fm, req.Body, "yaml")
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		return "", err
	}

	InvalidateCache()
	return rel, nil
}

func toInterfaces(items []string) []interface{} {
	out := make([]interface{}, len(items))
	for i := range items {
		out[i] = items[i]
	}
	return out
}
