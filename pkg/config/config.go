package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

var (
	RepoPath   = "./repo"
	SitePath   = "./repo/_site"
	PreviewURL = "/preview/"
	ListenAddr = ":8080"
	LogLevel   = "info"

	// Repository layout
	PostsDir   = "_posts"
	DraftsDir  = "_drafts"
	LayoutsDir = "_layouts"
	AssetDirs  = []string{"images", "assets"}

	// Generator settings
	JekyllBin = "jekyll"

	// Cache settings
	CacheConcurrency  = 20
	FileReadHeadLimit = int64(4096)

	// Taxonomy index; empty disables it
	IndexPath = ""

	// Git settings
	GitUserEmail = "bot@jekyll-cms.local"
	GitUserName  = "Jekyll CMS Bot"
	GitBranch    = "main"
	GitRemote    = "origin"

	// Auth settings
	SessionSecret = ""
	AuthDisabled  = false
)

var OauthConf *oauth2.Config

// Init loads .env (if present) and the process environment into the package settings.
// It returns whether a .env file was read so the caller can log it.
func Init() bool {
	loaded := godotenv.Load() == nil

	appURL := GetAppURL()
	redirectURL := getEnv("GITHUB_REDIRECT_URL", appURL+"/auth/callback")

	RepoPath = getEnv("REPO_PATH", "./repo")
	SitePath = getEnv("SITE_PATH", RepoPath+"/_site")
	PreviewURL = getEnv("PREVIEW_URL", "/preview/")
	ListenAddr = getEnv("LISTEN_ADDR", ":8080")
	LogLevel = getEnv("LOG_LEVEL", "info")

	PostsDir = getEnv("POSTS_DIR", "_posts")
	DraftsDir = getEnv("DRAFTS_DIR", "_drafts")
	LayoutsDir = getEnv("LAYOUTS_DIR", "_layouts")
	if dirs := os.Getenv("ASSET_DIRS"); dirs != "" {
		AssetDirs = splitList(dirs)
	}

	JekyllBin = getEnv("JEKYLL_BIN", "jekyll")
	IndexPath = getEnv("INDEX_PATH", "")

	GitUserEmail = getEnv("GIT_USER_EMAIL", "bot@jekyll-cms.local")
	GitUserName = getEnv("GIT_USER_NAME", "Jekyll CMS Bot")
	GitBranch = getEnv("GIT_BRANCH", "main")
	GitRemote = getEnv("GIT_REMOTE", "origin")

	SessionSecret = os.Getenv("SESSION_SECRET")
	AuthDisabled = getBool("AUTH_DISABLED", false)

	if cc := os.Getenv("CACHE_CONCURRENCY"); cc != "" {
		if val, err := strconv.Atoi(cc); err == nil && val > 0 {
			CacheConcurrency = val
		}
	}
	if hl := os.Getenv("FILE_READ_HEAD_LIMIT"); hl != "" {
		if val, err := strconv.ParseInt(hl, 10, 64); err == nil && val > 0 {
			FileReadHeadLimit = val
		}
	}

	OauthConf = &oauth2.Config{
		ClientID:     os.Getenv("GITHUB_CLIENT_ID"),
		ClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
		Scopes:       []string{"repo"},
		Endpoint:     github.Endpoint,
		RedirectURL:  redirectURL,
	}
	return loaded
}

func GetAppURL() string {
	return getEnv("APP_URL", "http://localhost:8080")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, strings.Trim(p, "/"))
		}
	}
	return out
}
