package services

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"jekyll-cms/pkg/config"
	"jekyll-cms/pkg/models"

	"gopkg.in/yaml.v3"
)

// SafeJoin joins target under root/sub, returning "" when target tries to escape.
func SafeJoin(root, sub, target string) string {
	cleanTarget := filepath.Clean(filepath.FromSlash(target))
	if target == "" || cleanTarget == ".." || strings.HasPrefix(cleanTarget, ".."+string(filepath.Separator)) {
		return ""
	}
	return filepath.Join(root, sub, cleanTarget)
}

// LoadSiteConfig reads _config.yml from the repository root. A missing file yields
// the zero config.
func LoadSiteConfig(repo string) (models.SiteConfig, error) {
	var cfg models.SiteConfig
	content, err := os.ReadFile(filepath.Join(repo, "_config.yml"))
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return cfg, fmt.Errorf("parse _config.yml: %w", err)
	}
	return cfg, nil
}

// GetConfig returns _config.yml as a generic map for clients.
func GetConfig() (map[string]interface{}, error) {
	content, err := os.ReadFile(filepath.Join(config.RepoPath, "_config.yml"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]interface{}{}, nil
		}
		return nil, err
	}

	var cfg map[string]interface{}
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, err
	}
	return sanitizeFrontMatter(cfg), nil
}

// SiteLocation resolves the site timezone, falling back to UTC.
func SiteLocation(site models.SiteConfig) *time.Location {
	if site.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(site.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DefaultsFor merges the values of every scope default that applies to the
// repo-relative path, later entries winning.
func DefaultsFor(site models.SiteConfig, relPath string) map[string]interface{} {
	relPath = filepath.ToSlash(relPath)
	out := map[string]interface{}{}
	for _, d := range site.Defaults {
		scopePath := strings.Trim(d.Scope.Path, "/")
		if scopePath != "" && !strings.HasPrefix(relPath, scopePath) {
			continue
		}
		if d.Scope.Type != "" && d.Scope.Type != "posts" {
			continue
		}
		for k, v := range d.Values {
			out[k] = v
		}
	}
	return out
}

// isContentDir reports whether rel (slash separated) lies in the posts or drafts dir.
func isContentDir(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, dir := range []string{config.PostsDir, config.DraftsDir} {
		if strings.HasPrefix(rel, strings.Trim(dir, "/")+"/") {
			return true
		}
	}
	return false
}

// ReadPost loads a single post by repo-relative path.
func ReadPost(rel string) (*models.Post, error) {
	fullPath := SafeJoin(config.RepoPath, "", rel)
	if fullPath == "" || !isContentDir(rel) {
		return nil, ErrInvalidPath
	}
	content, err := os.ReadFile(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", rel, ErrNotFound)
		}
		return nil, err
	}
	site, err := LoadSiteConfig(config.RepoPath)
	if err != nil {
		return nil, err
	}
	post := buildPost(filepath.ToSlash(rel), content, site)
	return &post, nil
}

// SavePost writes content to an existing or new post path and drops the cache.
func SavePost(rel string, content []byte) error {
	fullPath := SafeJoin(config.RepoPath, "", rel)
	if fullPath == "" || !isContentDir(rel) {
		return ErrInvalidPath
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	InvalidateCache()
	return nil
}
