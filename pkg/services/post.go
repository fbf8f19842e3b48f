package services

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"jekyll-cms/pkg/config"
	"jekyll-cms/pkg/models"

	"github.com/goliatone/go-slug"
)

var (
	postNameRe      = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})-(.+)\.(md|markdown)$`)
	placeholderRe   = regexp.MustCompile(`:([a-z_]+)`)
	repeatedSlashRe = regexp.MustCompile(`/{2,}`)
)

// ParsePostFilename splits a YYYY-MM-DD-slug.md name into its date and slug.
func ParsePostFilename(name string) (time.Time, string, error) {
	m := postNameRe.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, "", fmt.Errorf("%s: %w", name, ErrInvalidFilename)
	}
	date, err := time.Parse("2006-01-02", m[1]+"-"+m[2]+"-"+m[3])
	if err != nil {
		return time.Time{}, m[4], fmt.Errorf("%s: invalid date %s-%s-%s: %w", name, m[1], m[2], m[3], ErrInvalidFilename)
	}
	return date, m[4], nil
}

// MatchesPostPattern reports whether name has the YYYY-MM-DD-*.md shape, regardless of
// whether the date is a real calendar date.
func MatchesPostPattern(name string) bool {
	return postNameRe.MatchString(name)
}

var permalinkStyles = map[string]string{
	"date":    "/:categories/:year/:month/:day/:title:output_ext",
	"pretty":  "/:categories/:year/:month/:day/:title/",
	"ordinal": "/:categories/:year/:y_day/:title:output_ext",
	"none":    "/:categories/:title:output_ext",
}

// Permalink derives the site-relative URL of a post from the site permalink style,
// or from the post's own permalink when it sets one.
func Permalink(site models.SiteConfig, post models.Post) string {
	template := post.Meta.Permalink
	if template == "" {
		template = site.Permalink
	}
	if template == "" {
		template = "date"
	}
	if style, ok := permalinkStyles[template]; ok {
		template = style
	}

	date := post.Meta.Date
	if date.IsZero() {
		date = post.Date
	}
	if date.IsZero() {
		date = post.Meta.Modified
	}

	title := post.Slug
	slugValue := title
	if s, ok := post.FrontMatter["slug"].(string); ok && s != "" {
		slugValue = s
	}

	out := placeholderRe.ReplaceAllStringFunc(template, func(token string) string {
		switch token[1:] {
		case "year":
			return fmt.Sprintf("%04d", date.Year())
		case "short_year":
			return fmt.Sprintf("%02d", date.Year()%100)
		case "month":
			return fmt.Sprintf("%02d", int(date.Month()))
		case "i_month":
			return strconv.Itoa(int(date.Month()))
		case "day":
			return fmt.Sprintf("%02d", date.Day())
		case "i_day":
			return strconv.Itoa(date.Day())
		case "y_day":
			return fmt.Sprintf("%03d", date.YearDay())
		case "title":
			return title
		case "slug":
			return slugValue
		case "categories":
			return categoryPath(post.Meta.Categories)
		case "output_ext":
			return ".html"
		}
		return token
	})

	out = repeatedSlashRe.ReplaceAllString(out, "/")
	if !strings.HasPrefix(out, "/") {
		out = "/" + out
	}
	return out
}

func categoryPath(categories []string) string {
	parts := make([]string, 0, len(categories))
	for _, c := range categories {
		if s := categorySegment(c); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "/")
}

func categorySegment(category string) string {
	if s, err := slug.Normalize(category); err == nil && s != "" {
		return s
	}
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(category)), " ", "-")
}

// SortPosts orders posts newest first by modified date (filename date when absent),
// breaking ties by path.
func SortPosts(posts []models.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		ti, tj := posts[i].SortTime(), posts[j].SortTime()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return posts[i].Path < posts[j].Path
	})
}

func inDraftsDir(rel string) bool {
	return strings.HasPrefix(rel, strings.Trim(config.DraftsDir, "/")+"/")
}

// buildPost assembles a post from its repo-relative path and file content. Content whose
// front matter cannot be decoded still yields a post carrying ParseError.
func buildPost(rel string, content []byte, site models.SiteConfig) models.Post {
	name := path.Base(rel)
	post := models.Post{
		Path:  rel,
		Name:  name,
		Draft: inDraftsDir(rel),
	}

	date, postSlug, err := ParsePostFilename(name)
	if err != nil {
		postSlug = strings.TrimSuffix(name, path.Ext(name))
	}
	post.Date = date
	post.Slug = postSlug

	meta, raw, body, err := DecodeFrontMatter(content, SiteLocation(site))
	if err != nil {
		post.ParseError = err.Error()
		post.Content = string(content)
		post.Title = postSlug
		return post
	}
	if b, err := splitFrontMatter(content); err == nil {
		post.Format = b.Format
	}

	post.Meta = meta
	post.FrontMatter = raw
	post.Body = strings.TrimSpace(normalizeLineEndings(string(body)))
	post.Title = meta.Title
	if post.Title == "" {
		post.Title = postSlug
	}
	if !meta.IsPublished() {
		post.Draft = true
	}
	post.Permalink = Permalink(site, post)
	return post
}
