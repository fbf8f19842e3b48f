package models

import "time"

// FrontMatter is the typed view of a post's metadata block.
type FrontMatter struct {
	Layout      string         `json:"layout,omitempty"`
	Title       string         `json:"title,omitempty"`
	Author      string         `json:"author,omitempty"`
	Description string         `json:"description,omitempty"`
	Modified    time.Time      `json:"modified,omitempty"`
	Date        time.Time      `json:"date,omitempty"`
	Published   *bool          `json:"published,omitempty"` // nil means published
	Tags        []string       `json:"tags,omitempty"`
	Categories  []string       `json:"categories,omitempty"`
	Permalink   string         `json:"permalink,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// IsPublished reports whether the post is live. An absent flag counts as published.
func (fm FrontMatter) IsPublished() bool {
	return fm.Published == nil || *fm.Published
}

// Post represents a content file under the posts or drafts directory.
type Post struct {
	Path        string         `json:"path"` // repo-relative, slash separated
	Name        string         `json:"name"`
	Slug        string         `json:"slug"`
	Date        time.Time      `json:"date"` // from the filename
	Title       string         `json:"title"`
	Draft       bool           `json:"draft"` // under the drafts dir or published: false
	Permalink   string         `json:"permalink,omitempty"`
	Meta        FrontMatter    `json:"meta"`
	FrontMatter map[string]any `json:"frontmatter,omitempty"`
	Body        string         `json:"body,omitempty"`
	Content     string         `json:"content,omitempty"` // raw file, used when front matter cannot be parsed
	Format      string         `json:"format,omitempty"`  // yaml, toml, json
	ParseError  string         `json:"parse_error,omitempty"`
	IsDirty     bool           `json:"is_dirty"`
}

// SortTime is the timestamp posts are ordered by: modified, else the filename date.
func (p Post) SortTime() time.Time {
	if !p.Meta.Modified.IsZero() {
		return p.Meta.Modified
	}
	return p.Date
}

// Live reports whether the generator publishes the post by default.
func (p Post) Live() bool {
	return !p.Draft && p.Meta.IsPublished()
}
