package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"jekyll-cms/pkg/config"

	"github.com/stretchr/testify/assert"
	"golang.org/x/oauth2"
)

func TestValidPostPath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"_posts/2024-03-01-a.md", true},
		{"_posts/travel/2024-03-01-a.markdown", true},
		{"_drafts/idea.md", true},
		{"_posts/a.txt", false},
		{"_posts/../_config.yml", false},
		{"_posts/2024-01-01-wait..what.md", true},
		{"_posts/./2024-01-01-a.md", false},
		{"_posts//2024-01-01-a.md", false},
		{"/_posts/a.md", false},
		{"pages/about.md", false},
		{"_posts", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidPostPath(tt.path), tt.path)
	}
}

func TestAuthRequired(t *testing.T) {
	r, _ := newTestServer(t, map[string]string{"_site/about.html": "<p>site</p>"})

	w := doJSON(t, r, http.MethodGet, "/preview/about.html", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "site")

	config.AuthDisabled = false

	w = doJSON(t, r, http.MethodGet, "/api/posts", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, r, http.MethodGet, "/preview/about.html", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login/github", w.Header().Get("Location"))

	w = doJSON(t, r, http.MethodGet, "/login", nil)
	assert.Equal(t, http.StatusFound, w.Code)
}

func TestGithubLoginSetsState(t *testing.T) {
	r, _ := newTestServer(t, nil)
	prev := config.OauthConf
	config.OauthConf = &oauth2.Config{
		ClientID:    "id",
		Endpoint:    oauth2.Endpoint{AuthURL: "https://github.example/authorize", TokenURL: "https://github.example/token"},
		RedirectURL: "http://localhost:8080/auth/callback",
	}
	t.Cleanup(func() { config.OauthConf = prev })

	w := doJSON(t, r, http.MethodGet, "/login/github", nil)
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "https://github.example/authorize")
	assert.Contains(t, w.Header().Get("Location"), "state=")
	assert.NotEmpty(t, w.Header().Get("Set-Cookie"))
}

func TestAuthCallbackRejectsBadState(t *testing.T) {
	r, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?state=forged&code=x", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogoutRedirects(t *testing.T) {
	r, _ := newTestServer(t, nil)
	w := doJSON(t, r, http.MethodGet, "/logout", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login/github", w.Header().Get("Location"))
}
