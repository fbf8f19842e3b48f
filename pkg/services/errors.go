package services

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrExists          = errors.New("already exists")
	ErrInvalidPath     = errors.New("invalid path")
	ErrNoFrontMatter   = errors.New("no front matter")
	ErrUnknownFormat   = errors.New("unknown front matter format")
	ErrInvalidFilename = errors.New("filename does not match YYYY-MM-DD-slug.md")
)
