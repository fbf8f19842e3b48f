package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"jekyll-cms/pkg/config"
	"jekyll-cms/pkg/models"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goyaml "github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/sync/errgroup"
)

const (
	RuleFrontMatter        = "FM001"
	RuleRequiredField      = "FM002"
	RuleUnknownLayout      = "FM003"
	RuleFieldType          = "FM004"
	RuleInvalidDate        = "DT001"
	RuleFutureDate         = "DT002"
	RuleFilenamePattern    = "FN001"
	RuleFilenameDate       = "FN002"
	RuleMissingAsset       = "AS001"
	RuleDuplicatePermalink = "PL001"
)

const (
	codeType = "frontmatter_type"
	codeDate = "frontmatter_date"
)

type LintOptions struct {
	Drafts bool
	// Files restricts the run to these repo-relative paths; empty lints every post.
	Files []string
	// Now is the reference time for future-date checks; zero means time.Now.
	Now time.Time
}

type linter struct {
	repo    string
	site    models.SiteConfig
	loc     *time.Location
	layouts map[string]bool // nil when the layouts dir does not exist
	now     time.Time
	drafts  bool
}

type fileResult struct {
	issues    []models.LintIssue
	permalink string
}

func newLinter(opts LintOptions) (*linter, error) {
	site, err := LoadSiteConfig(config.RepoPath)
	if err != nil {
		return nil, err
	}
	layouts, err := loadLayouts(filepath.Join(config.RepoPath, config.LayoutsDir))
	if err != nil {
		return nil, err
	}
	ref := opts.Now
	if ref.IsZero() {
		ref = now()
	}
	return &linter{
		repo:    config.RepoPath,
		site:    site,
		loc:     SiteLocation(site),
		layouts: layouts,
		now:     ref,
		drafts:  opts.Drafts,
	}, nil
}

func loadLayouts(dir string) (map[string]bool, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	layouts := map[string]bool{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		layouts[strings.TrimSuffix(name, filepath.Ext(name))] = true
	}
	return layouts, nil
}

// Lint checks every post (and drafts when requested) and returns the sorted report.
func Lint(ctx context.Context, opts LintOptions) (*models.LintReport, error) {
	l, err := newLinter(opts)
	if err != nil {
		return nil, err
	}

	files := opts.Files
	if len(files) == 0 {
		files, err = ContentFiles(l.repo, opts.Drafts)
		if err != nil {
			return nil, err
		}
	}

	results := make([]fileResult, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(config.CacheConcurrency)
	for i, rel := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			content, err := os.ReadFile(filepath.Join(l.repo, filepath.FromSlash(rel)))
			if err != nil {
				return fmt.Errorf("read %s: %w", rel, err)
			}
			results[i] = l.lintFile(rel, content)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &models.LintReport{Files: len(files), Issues: []models.LintIssue{}}
	owners := map[string][]string{}
	for i, res := range results {
		for _, issue := range res.issues {
			report.Add(issue)
		}
		if res.permalink != "" {
			owners[res.permalink] = append(owners[res.permalink], filepath.ToSlash(files[i]))
		}
	}
	for permalink, paths := range owners {
		if len(paths) < 2 {
			continue
		}
		sort.Strings(paths)
		for _, p := range paths[1:] {
			report.Add(models.LintIssue{
				Path:     p,
				Rule:     RuleDuplicatePermalink,
				Severity: models.SeverityError,
				Message:  fmt.Sprintf("permalink %s is also produced by %s", permalink, paths[0]),
			})
		}
	}

	sortIssues(report.Issues)
	return report, nil
}

// LintFile checks one file's content in isolation; duplicate permalinks are not detected.
func LintFile(rel string, content []byte, opts LintOptions) ([]models.LintIssue, error) {
	l, err := newLinter(opts)
	if err != nil {
		return nil, err
	}
	issues := l.lintFile(filepath.ToSlash(rel), content).issues
	sortIssues(issues)
	return issues, nil
}

func sortIssues(issues []models.LintIssue) {
	sort.SliceStable(issues, func(i, j int) bool {
		a, b := issues[i], issues[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Rule < b.Rule
	})
}

func (l *linter) lintFile(rel string, content []byte) fileResult {
	var res fileResult
	add := func(line, col int, rule string, sev models.Severity, format string, args ...any) {
		res.issues = append(res.issues, models.LintIssue{
			Path:     rel,
			Line:     line,
			Column:   col,
			Rule:     rule,
			Severity: sev,
			Message:  fmt.Sprintf(format, args...),
		})
	}

	draft := inDraftsDir(rel)
	name := path.Base(rel)
	if !draft {
		if !MatchesPostPattern(name) {
			add(0, 0, RuleFilenamePattern, models.SeverityError, "filename %q does not match YYYY-MM-DD-slug.md", name)
		} else if _, _, err := ParsePostFilename(name); err != nil {
			add(0, 0, RuleFilenameDate, models.SeverityError, "filename %q does not start with a valid date", name)
		}
	}

	b, err := splitFrontMatter(content)
	if err != nil {
		if errors.Is(err, ErrNoFrontMatter) {
			add(1, 0, RuleFrontMatter, models.SeverityError, "missing front matter")
		} else {
			add(1, 0, RuleFrontMatter, models.SeverityError, "%v", err)
		}
		return res
	}

	if b.Format == "yaml" {
		var check map[string]interface{}
		if err := goyaml.Unmarshal(b.Data, &check); err != nil {
			line, col, msg := yamlErrorPosition(err)
			if line > 0 {
				line += b.DataLine - 1
			}
			add(line, col, RuleFrontMatter, models.SeverityError, "invalid YAML front matter: %s", msg)
			return res
		}
	}

	fm, _, _, err := ParseFrontMatter(content)
	if err != nil {
		line, col := 0, 0
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			line, col = derr.Position()
			line += b.DataLine - 1
		}
		add(line, col, RuleFrontMatter, models.SeverityError, "%v", err)
		return res
	}

	keyLine := func(key string) int { return findKeyLine(b, key) }

	if err := validation.Validate(fm, l.rules()); err != nil {
		var fieldErrs validation.Errors
		if !errors.As(err, &fieldErrs) {
			add(b.DataLine, 0, RuleFrontMatter, models.SeverityError, "%v", err)
			return res
		}
		for _, key := range sortedErrorKeys(fieldErrs) {
			fieldErr := fieldErrs[key]
			code := ""
			var verr validation.Error
			if errors.As(fieldErr, &verr) {
				code = verr.Code()
			}
			switch code {
			case validation.ErrRequired.Code(), "validation_key_missing":
				add(keyLine(key), 0, RuleRequiredField, models.SeverityError, "required field %q is missing or empty", key)
			case codeDate:
				add(keyLine(key), 0, RuleInvalidDate, models.SeverityError, "%s: %v", key, fieldErr)
			default:
				add(keyLine(key), 0, RuleFieldType, models.SeverityError, "%s: %v", key, fieldErr)
			}
		}
	}

	if layout, ok := fm["layout"].(string); ok && layout != "" && l.layouts != nil {
		if layout != "none" && !l.layouts[layout] {
			add(keyLine("layout"), 0, RuleUnknownLayout, models.SeverityWarning, "layout %q has no file in %s", layout, config.LayoutsDir)
		}
	}

	published := true
	if p, ok := fm["published"].(bool); ok {
		published = p
	}
	if published && !draft {
		if modified, ok := ParseDate(fm["modified"], l.loc); ok && modified.After(l.now) {
			add(keyLine("modified"), 0, RuleFutureDate, models.SeverityError,
				"published post has modified date %s in the future", modified.Format("2006-01-02"))
		}
	}

	for _, link := range ExtractLinks(b.Body) {
		target, ok := localTarget(link.Dest)
		if !ok || !checkable(link.Kind, target) {
			continue
		}
		if !assetExists(l.repo, rel, target) {
			add(b.BodyLine+link.Line-1, 0, RuleMissingAsset, models.SeverityError, "%s %q does not exist", link.Kind, link.Dest)
		}
	}

	// unpublished posts are not rendered, so they only claim a permalink in drafts runs
	post := buildPost(rel, content, l.site)
	if post.ParseError == "" && (post.Live() || l.drafts) {
		res.permalink = post.Permalink
	}
	return res
}

func (l *linter) rules() validation.MapRule {
	return validation.Map(
		validation.Key("layout", validation.Required, validation.By(isString)),
		validation.Key("title", validation.Required, validation.By(isString)),
		validation.Key("modified", validation.Required, validation.By(l.isDate)),
		validation.Key("date", validation.By(l.isDate)).Optional(),
		validation.Key("author", validation.By(isString)).Optional(),
		validation.Key("description", validation.By(isString)).Optional(),
		validation.Key("permalink", validation.By(isString)).Optional(),
		validation.Key("published", validation.By(isBool)).Optional(),
		validation.Key("tags", validation.By(isStringList)).Optional(),
		validation.Key("categories", validation.By(isStringList)).Optional(),
	).AllowExtraKeys()
}

func isString(value interface{}) error {
	if value == nil {
		return nil
	}
	if _, ok := value.(string); !ok {
		return validation.NewError(codeType, fmt.Sprintf("must be a string, got %T", value))
	}
	return nil
}

func isBool(value interface{}) error {
	if value == nil {
		return nil
	}
	if _, ok := value.(bool); !ok {
		return validation.NewError(codeType, fmt.Sprintf("must be true or false, got %v", value))
	}
	return nil
}

func isStringList(value interface{}) error {
	if _, ok := StringList(value); !ok {
		return validation.NewError(codeType, "must be a string or a list of strings")
	}
	return nil
}

func (l *linter) isDate(value interface{}) error {
	if value == nil {
		return nil
	}
	if _, ok := ParseDate(value, l.loc); !ok {
		return validation.NewError(codeDate, fmt.Sprintf("%v is not a valid date", value))
	}
	return nil
}

func sortedErrorKeys(errs validation.Errors) []string {
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// yamlErrorPosition extracts the 1-based position and message from a go-yaml error.
func yamlErrorPosition(err error) (int, int, string) {
	var yerr goyaml.Error
	if errors.As(err, &yerr) {
		if tk := yerr.GetToken(); tk != nil && tk.Position != nil {
			return tk.Position.Line, tk.Position.Column, yerr.GetMessage()
		}
		return 0, 0, yerr.GetMessage()
	}
	return 0, 0, err.Error()
}

// findKeyLine returns the file line where a top-level key is declared, or the first
// line of the front matter block when it is absent.
func findKeyLine(b *block, key string) int {
	var re *regexp.Regexp
	quoted := regexp.QuoteMeta(key)
	switch b.Format {
	case "yaml":
		re = regexp.MustCompile(`^["']?` + quoted + `["']?\s*:`)
	case "toml":
		re = regexp.MustCompile(`^["']?` + quoted + `["']?\s*=`)
	default:
		re = regexp.MustCompile(`^\s*"` + quoted + `"\s*:`)
	}
	for i, line := range strings.Split(string(b.Data), "\n") {
		if re.MatchString(line) {
			return b.DataLine + i
		}
	}
	if b.Format == "json" {
		return b.DataLine
	}
	return b.DataLine - 1
}

// localTarget returns the path part of a link destination that points into the
// repository, or false for URLs, fragments, and Liquid expressions.
func localTarget(dest string) (string, bool) {
	dest = strings.Trim(strings.TrimSpace(dest), "<>")
	if dest == "" || strings.HasPrefix(dest, "#") || strings.HasPrefix(dest, "//") {
		return "", false
	}
	if strings.Contains(dest, "{{") || strings.Contains(dest, "{%") {
		return "", false
	}
	u, err := url.Parse(dest)
	if err != nil || u.Scheme != "" || u.Host != "" || u.Opaque != "" {
		return "", false
	}
	if u.Path == "" {
		return "", false
	}
	return u.Path, true
}

// checkable reports whether a local target names a file. Images always do; page links
// only when they carry a non-page extension, since page URLs only exist after a build.
func checkable(kind LinkKind, target string) bool {
	if kind == LinkImage {
		return true
	}
	if strings.HasSuffix(target, "/") {
		return false
	}
	switch strings.ToLower(path.Ext(target)) {
	case "", ".html", ".htm", ".php", ".xml":
		return false
	}
	return true
}

// assetCandidates lists the repo-relative files a link target in postRel may name.
// Site-absolute targets resolve from the repo root; relative targets from the repo
// root, then from the post's directory.
func assetCandidates(postRel, target string) []string {
	raw := []string{strings.TrimPrefix(target, "/")}
	if !strings.HasPrefix(target, "/") {
		raw = append(raw, path.Join(path.Dir(postRel), target))
	}
	out := raw[:0]
	for _, c := range raw {
		c = path.Clean(c)
		if c == "." || c == ".." || strings.HasPrefix(c, "../") {
			continue
		}
		out = append(out, c)
	}
	return out
}

func assetExists(repo, postRel, target string) bool {
	for _, c := range assetCandidates(postRel, target) {
		info, err := os.Stat(filepath.Join(repo, filepath.FromSlash(c)))
		if err == nil && !info.IsDir() {
			return true
		}
	}
	return false
}
