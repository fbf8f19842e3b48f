package services

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"jekyll-cms/pkg/config"
	"jekyll-cms/pkg/models"

	"golang.org/x/sync/errgroup"
)

var (
	postCache   []models.Post
	cacheMutex  sync.Mutex
	cacheLoaded bool
)

type LoadOptions struct {
	IncludeDrafts bool
	// HeadOnly reads at most FileReadHeadLimit bytes per file and drops bodies.
	HeadOnly bool
}

type PostFilter struct {
	Tag       string
	Category  string
	Published *bool
	Drafts    bool
}

// GetPostsCache returns the memoized listing of posts and drafts, without bodies.
func GetPostsCache(ctx context.Context) ([]models.Post, error) {
	cacheMutex.Lock()
	defer cacheMutex.Unlock()

	if cacheLoaded {
		return append([]models.Post(nil), postCache...), nil
	}

	posts, err := LoadPosts(ctx, LoadOptions{IncludeDrafts: true, HeadOnly: true})
	if err != nil {
		return nil, err
	}

	postCache = posts
	cacheLoaded = true
	return append([]models.Post(nil), postCache...), nil
}

func InvalidateCache() {
	cacheMutex.Lock()
	defer cacheMutex.Unlock()
	cacheLoaded = false
	postCache = nil
}

// ContentFiles lists the repo-relative paths of markdown files under the posts dir,
// and the drafts dir when drafts is set.
func ContentFiles(repo string, drafts bool) ([]string, error) {
	dirs := []string{config.PostsDir}
	if drafts {
		dirs = append(dirs, config.DraftsDir)
	}

	var files []string
	for _, dir := range dirs {
		root := filepath.Join(repo, dir)
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) && path == root {
					return filepath.SkipDir
				}
				return err
			}
			if d.IsDir() || !isMarkdown(d.Name()) {
				return nil
			}
			rel, err := filepath.Rel(repo, path)
			if err != nil {
				return err
			}
			files = append(files, filepath.ToSlash(rel))
			return nil
		})
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return files, nil
}

func isMarkdown(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".md" || ext == ".markdown"
}

// LoadPosts reads every post concurrently, bounded by CacheConcurrency, and returns
// them sorted newest first.
func LoadPosts(ctx context.Context, opts LoadOptions) ([]models.Post, error) {
	site, err := LoadSiteConfig(config.RepoPath)
	if err != nil {
		return nil, err
	}
	files, err := ContentFiles(config.RepoPath, opts.IncludeDrafts)
	if err != nil {
		return nil, err
	}

	dirtyFiles, _ := DirtyFiles(ctx, config.RepoPath)

	posts := make([]models.Post, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(config.CacheConcurrency)
	for i, rel := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fullPath := filepath.Join(config.RepoPath, filepath.FromSlash(rel))
			var content []byte
			var err error
			if opts.HeadOnly {
				content, err = readHead(fullPath, config.FileReadHeadLimit)
			} else {
				content, err = os.ReadFile(fullPath)
			}
			if err != nil {
				return err
			}
			post := buildPost(rel, content, site)
			if opts.HeadOnly {
				post.Body = ""
				post.Content = ""
			}
			post.IsDirty = dirtyFiles[rel]
			posts[i] = post
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	SortPosts(posts)
	return posts, nil
}

// readHead reads the first limit bytes of a file, falling back to the whole file when
// the front matter block does not close within them.
func readHead(path string, limit int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	head, err := io.ReadAll(io.LimitReader(f, limit))
	if err != nil {
		return nil, err
	}
	if int64(len(head)) < limit || HasFrontMatter(head) {
		return head, nil
	}
	rest, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return append(head, rest...), nil
}

// FilterPosts keeps posts matching every set field of the filter. Drafts are dropped
// unless f.Drafts is set.
func FilterPosts(posts []models.Post, f PostFilter) []models.Post {
	out := make([]models.Post, 0, len(posts))
	for _, p := range posts {
		if p.Draft && !f.Drafts {
			continue
		}
		if f.Published != nil && p.Meta.IsPublished() != *f.Published {
			continue
		}
		if f.Tag != "" && !containsFold(p.Meta.Tags, f.Tag) {
			continue
		}
		if f.Category != "" && !containsFold(p.Meta.Categories, f.Category) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func containsFold(list []string, value string) bool {
	for _, item := range list {
		if strings.EqualFold(item, value) {
			return true
		}
	}
	return false
}
