package handlers

import (
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"

	"jekyll-cms/pkg/config"
	"jekyll-cms/pkg/models"
	"jekyll-cms/pkg/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	// Logger is replaced by the server at startup.
	Logger = zap.NewNop()
	// Index is nil when INDEX_PATH is unset.
	Index *services.Index
)

// respondError maps service errors onto HTTP statuses.
func respondError(c *gin.Context, err error, msg string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrNotFound), errors.Is(err, os.ErrNotExist):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrExists):
		status = http.StatusConflict
	case errors.Is(err, services.ErrInvalidPath), errors.Is(err, services.ErrInvalidFilename),
		errors.Is(err, services.ErrUnknownFormat), errors.Is(err, services.ErrUnsupportedMedia):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		Logger.Error(msg, zap.Error(err))
	}
	c.JSON(status, gin.H{"error": msg + ": " + err.Error()})
}

func sessionToken(c *gin.Context) string {
	token, _ := sessions.Default(c).Get("access_token").(string)
	return token
}

func queryBool(c *gin.Context, key string) (*bool, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, false
	}
	return &v, true
}

func HandleBuild(c *gin.Context) {
	var req struct {
		Drafts bool `json:"drafts"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	log, err := services.BuildSite(c.Request.Context(), req.Drafts)
	if err != nil {
		Logger.Warn("build failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "log": log})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "log": log})
}

func HandleSync(c *gin.Context) {
	log, err := services.SyncRepo(c.Request.Context(), sessionToken(c))
	if err != nil {
		Logger.Warn("sync failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "log": log})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "log": log})
}

func HandlePublish(c *gin.Context) {
	log, err := services.PublishRepo(c.Request.Context(), sessionToken(c))
	if err != nil {
		Logger.Warn("publish failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "log": log})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "log": log})
}

func ListPosts(c *gin.Context) {
	published, ok := queryBool(c, "published")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "published must be a boolean"})
		return
	}
	drafts, ok := queryBool(c, "drafts")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "drafts must be a boolean"})
		return
	}

	posts, err := services.GetPostsCache(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to fetch posts")
		return
	}
	filter := services.PostFilter{
		Tag:       c.Query("tag"),
		Category:  c.Query("category"),
		Published: published,
		Drafts:    drafts != nil && *drafts,
	}
	c.JSON(http.StatusOK, services.FilterPosts(posts, filter))
}

func GetPost(c *gin.Context) {
	post, err := services.ReadPost(c.Query("path"))
	if err != nil {
		respondError(c, err, "Failed to read post")
		return
	}
	c.JSON(http.StatusOK, post)
}

type savePostRequest struct {
	Path        string                 `json:"path" binding:"required,postpath"`
	FrontMatter map[string]interface{} `json:"frontmatter"`
	Body        string                 `json:"body"`
	Format      string                 `json:"format"`
	Content     string                 `json:"content"`
}

func (r savePostRequest) render() ([]byte, error) {
	if r.FrontMatter != nil {
		return services.ConstructFileContent(r.FrontMatter, r.Body, r.Format)
	}
	return []byte(r.Content), nil
}

// SavePost writes the post and returns the lint findings for the new content.
func SavePost(c *gin.Context) {
	var req savePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	content, err := req.render()
	if err != nil {
		respondError(c, err, "Failed to construct file content")
		return
	}
	if err := services.SavePost(req.Path, content); err != nil {
		respondError(c, err, "Save failed")
		return
	}

	issues, err := services.LintFile(req.Path, content, services.LintOptions{})
	if err != nil {
		Logger.Warn("lint after save failed", zap.String("path", req.Path), zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"status": "saved", "issues": issues})
}

func CreatePost(c *gin.Context) {
	var req services.NewPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	rel, err := services.CreatePost(req)
	if err != nil {
		respondError(c, err, "Create failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "created", "path": rel})
}

func GetDiff(c *gin.Context) {
	var req savePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	currentContent, err := os.ReadFile(services.SafeJoin(config.RepoPath, "", req.Path))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		respondError(c, err, "Failed to read post")
		return
	}
	site, err := services.LoadSiteConfig(config.RepoPath)
	if err != nil {
		respondError(c, err, "Failed to parse config")
		return
	}
	defaults := services.DefaultsFor(site, req.Path)
	currentContent = services.NormalizeContent(currentContent, defaults)

	newContent, err := req.render()
	if err != nil {
		respondError(c, err, "Construction failed")
		return
	}

	diffStr, diffType := services.Diff(c.Request.Context(), currentContent, newContent, req.Path, defaults)
	c.JSON(http.StatusOK, gin.H{"diff": diffStr, "type": diffType})
}

// Preview renders a post body to HTML without running the generator.
func Preview(c *gin.Context) {
	post, err := services.ReadPost(c.Query("path"))
	if err != nil {
		respondError(c, err, "Failed to read post")
		return
	}
	body := post.Body
	if post.ParseError != "" {
		body = post.Content
	}
	html, err := services.RenderHTML([]byte(body))
	if err != nil {
		respondError(c, err, "Render failed")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", html)
}

func LintRepo(c *gin.Context) {
	drafts, ok := queryBool(c, "drafts")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "drafts must be a boolean"})
		return
	}
	report, err := services.Lint(c.Request.Context(), services.LintOptions{Drafts: drafts != nil && *drafts})
	if err != nil {
		respondError(c, err, "Lint failed")
		return
	}
	c.JSON(http.StatusOK, report)
}

// LintContent checks an unsaved editor copy.
func LintContent(c *gin.Context) {
	var req savePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	content, err := req.render()
	if err != nil {
		respondError(c, err, "Construction failed")
		return
	}
	issues, err := services.LintFile(req.Path, content, services.LintOptions{})
	if err != nil {
		respondError(c, err, "Lint failed")
		return
	}
	if issues == nil {
		issues = []models.LintIssue{}
	}
	c.JSON(http.StatusOK, gin.H{"issues": issues})
}

func GetConfig(c *gin.Context) {
	cfg, err := services.GetConfig()
	if err != nil {
		respondError(c, err, "Failed to parse config")
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// Taxonomy returns tag or category counts, from the index when one is configured.
func Taxonomy(c *gin.Context) {
	var kind string
	switch c.Param("kind") {
	case "tags":
		kind = services.TermTag
	case "categories":
		kind = services.TermCategory
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown taxonomy " + c.Param("kind")})
		return
	}

	if term := c.Query("term"); term != "" {
		termPaths(c, kind, term)
		return
	}

	if Index != nil {
		counts, err := Index.Terms(kind)
		if err != nil {
			respondError(c, err, "Index query failed")
			return
		}
		c.JSON(http.StatusOK, counts)
		return
	}

	posts, err := services.GetPostsCache(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to fetch posts")
		return
	}
	c.JSON(http.StatusOK, services.TaxonomyFromPosts(posts, kind))
}

func termPaths(c *gin.Context, kind, term string) {
	if Index != nil {
		paths, err := Index.PathsByTerm(kind, term)
		if err != nil {
			respondError(c, err, "Index query failed")
			return
		}
		c.JSON(http.StatusOK, gin.H{"term": term, "paths": paths})
		return
	}

	posts, err := services.GetPostsCache(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to fetch posts")
		return
	}
	filter := services.PostFilter{Tag: term}
	if kind == services.TermCategory {
		filter = services.PostFilter{Category: term}
	}
	paths := []string{}
	for _, p := range services.FilterPosts(posts, filter) {
		paths = append(paths, p.Path)
	}
	c.JSON(http.StatusOK, gin.H{"term": term, "paths": paths})
}
