package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"jekyll-cms/pkg/config"
	"jekyll-cms/pkg/models"

	"github.com/gabriel-vasile/mimetype"
)

var ErrUnsupportedMedia = errors.New("unsupported media type")

var allowedMediaPrefixes = []string{"image/", "video/", "application/pdf", "text/plain"}

// mediaDir resolves a requested asset directory, defaulting to the first configured one.
func mediaDir(dir string) (string, error) {
	if len(config.AssetDirs) == 0 {
		return "", fmt.Errorf("no asset directories configured")
	}
	if dir == "" {
		return config.AssetDirs[0], nil
	}
	dir = strings.Trim(filepath.ToSlash(filepath.Clean(dir)), "/")
	for _, allowed := range config.AssetDirs {
		if dir == allowed || strings.HasPrefix(dir, allowed+"/") {
			return dir, nil
		}
	}
	return "", fmt.Errorf("%s: %w", dir, ErrInvalidPath)
}

func mediaFile(rel string, size int64) models.MediaFile {
	rel = filepath.ToSlash(rel)
	return models.MediaFile{
		Name: path.Base(rel),
		Path: rel,
		Size: size,
		URL:  "/" + rel,
	}
}

func ListMediaFiles(dir string) ([]models.MediaFile, error) {
	dir, err := mediaDir(dir)
	if err != nil {
		return nil, err
	}

	fullMediaPath := filepath.Join(config.RepoPath, filepath.FromSlash(dir))
	entries, err := os.ReadDir(fullMediaPath)
	if errors.Is(err, fs.ErrNotExist) {
		return []models.MediaFile{}, nil
	}
	if err != nil {
		return nil, err
	}

	files := []models.MediaFile{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, mediaFile(path.Join(dir, entry.Name()), info.Size()))
	}
	return files, nil
}

// SaveMediaFile stores an upload under dir with a sanitized, timestamped name. The
// content type is sniffed rather than trusted from the request.
func SaveMediaFile(header *multipart.FileHeader, dir string) (*models.MediaFile, error) {
	dir, err := mediaDir(dir)
	if err != nil {
		return nil, err
	}

	src, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	mtype, err := mimetype.DetectReader(src)
	if err != nil {
		return nil, err
	}
	if !allowedMedia(mtype.String()) {
		return nil, fmt.Errorf("%s: %w", mtype.String(), ErrUnsupportedMedia)
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	filename := filepath.Base(header.Filename)
	filename = strings.ReplaceAll(filename, " ", "_")
	ext := filepath.Ext(filename)
	if ext == "" {
		ext = mtype.Extension()
	}
	name := strings.TrimSuffix(filename, filepath.Ext(filename))
	filename = fmt.Sprintf("%s_%d%s", name, now().Unix(), ext)

	rel := path.Join(dir, filename)
	fullMediaPath := SafeJoin(config.RepoPath, "", rel)
	if fullMediaPath == "" {
		return nil, ErrInvalidPath
	}
	if err := os.MkdirAll(filepath.Dir(fullMediaPath), 0755); err != nil {
		return nil, err
	}

	dst, err := os.Create(fullMediaPath)
	if err != nil {
		return nil, err
	}
	defer dst.Close()

	n, err := io.Copy(dst, src)
	if err != nil {
		return nil, err
	}

	file := mediaFile(rel, n)
	return &file, nil
}

func allowedMedia(mtype string) bool {
	for _, prefix := range allowedMediaPrefixes {
		if strings.HasPrefix(mtype, prefix) {
			return true
		}
	}
	return false
}

// MediaPath resolves rel to a file path inside one of the asset directories.
func MediaPath(rel string) (string, error) {
	rel = filepath.ToSlash(rel)
	if _, err := mediaDir(path.Dir(rel)); err != nil {
		return "", err
	}
	full := SafeJoin(config.RepoPath, "", rel)
	if full == "" {
		return "", ErrInvalidPath
	}
	return full, nil
}

func DeleteMediaFile(rel string) error {
	fullMediaPath, err := MediaPath(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(fullMediaPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", rel, ErrNotFound)
		}
		return err
	}
	return nil
}

// OrphanedAssets lists files under the asset directories that no post references,
// drafts included.
func OrphanedAssets(ctx context.Context) ([]models.MediaFile, error) {
	posts, err := LoadPosts(ctx, LoadOptions{IncludeDrafts: true})
	if err != nil {
		return nil, err
	}

	referenced := map[string]bool{}
	for _, p := range posts {
		body := []byte(p.Body)
		if p.ParseError != "" {
			body = []byte(p.Content)
		}
		for _, link := range ExtractLinks(body) {
			if ref, ok := localTarget(link.Dest); ok {
				for _, c := range assetCandidates(p.Path, ref) {
					referenced[c] = true
				}
			}
		}
		for _, v := range p.FrontMatter {
			if s, ok := v.(string); ok {
				if ref, ok := localTarget(s); ok {
					for _, c := range assetCandidates(p.Path, ref) {
						referenced[c] = true
					}
				}
			}
		}
	}

	orphans := []models.MediaFile{}
	for _, dir := range config.AssetDirs {
		root := filepath.Join(config.RepoPath, filepath.FromSlash(dir))
		err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil
				}
				return err
			}
			if d.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(config.RepoPath, p)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			if referenced[rel] {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			orphans = append(orphans, mediaFile(rel, info.Size()))
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Slice(orphans, func(i, j int) bool { return orphans[i].Path < orphans[j].Path })
	return orphans, nil
}
