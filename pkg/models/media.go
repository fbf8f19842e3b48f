package models

type MediaFile struct {
	Name string `json:"name"`
	Path string `json:"path"` // repo-relative
	Size int64  `json:"size"`
	URL  string `json:"url"` // site-absolute path used in markdown
}
