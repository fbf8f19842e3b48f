package handlers

import (
	"net/http"
	"path"
	"strings"
	"sync"

	"jekyll-cms/pkg/config"
	"jekyll-cms/pkg/logging"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var registerOnce sync.Once

// RegisterValidators adds the "postpath" binding tag to gin's validator.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("postpath", func(fl validator.FieldLevel) bool {
			return ValidPostPath(fl.Field().String())
		})
	})
}

// ValidPostPath reports whether rel is a markdown file inside the posts or drafts directory.
func ValidPostPath(rel string) bool {
	if rel == "" || path.Clean(rel) != rel || strings.HasPrefix(rel, "/") || strings.Contains(rel, "\\") {
		return false
	}
	switch strings.ToLower(path.Ext(rel)) {
	case ".md", ".markdown":
	default:
		return false
	}
	for _, dir := range []string{config.PostsDir, config.DraftsDir} {
		if strings.HasPrefix(rel, dir+"/") {
			return true
		}
	}
	return false
}

func NewRouter(logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	Logger = logger
	RegisterValidators()

	r := gin.New()
	r.Use(gin.Recovery(), logging.GinLogger(logger))

	store := cookie.NewStore([]byte(config.SessionSecret))
	r.Use(sessions.Sessions("jekyllcms", store))

	// --- Auth Routes ---
	r.GET("/login", func(c *gin.Context) { c.Redirect(http.StatusFound, "/login/github") })
	r.GET("/login/github", GithubLogin)
	r.GET("/auth/callback", AuthCallback)
	r.GET("/logout", Logout)

	// --- Main App (Authorized) ---
	authorized := r.Group("/")
	authorized.Use(AuthRequired)
	{
		authorized.Static(config.PreviewURL, config.SitePath)

		api := authorized.Group("/api")
		{
			api.GET("/posts", ListPosts)
			api.GET("/post", GetPost)
			api.POST("/post", SavePost)
			api.POST("/create", CreatePost)
			api.POST("/diff", GetDiff)
			api.GET("/preview", Preview)
			api.GET("/lint", LintRepo)
			api.POST("/lint", LintContent)
			api.GET("/config", GetConfig)
			api.GET("/taxonomy/:kind", Taxonomy)

			api.POST("/build", HandleBuild)
			api.POST("/sync", HandleSync)
			api.POST("/publish", HandlePublish)

			api.GET("/media", ListMedia)
			api.POST("/media", UploadMedia)
			api.DELETE("/media", DeleteMedia)
			api.GET("/media/raw", ServeMediaRaw)
			api.GET("/media/orphans", OrphanedMedia)
		}
	}

	return r
}
