package services

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"strings"
	"time"

	"jekyll-cms/pkg/config"

	"github.com/pmezard/go-difflib/difflib"
)

// ExecuteGitWithToken runs git in dir, substituting the configured remote name in args
// with its URL carrying token. The returned log has the token redacted.
func ExecuteGitWithToken(ctx context.Context, dir, token string, args ...string) (string, error) {
	if token == "" {
		return runGit(ctx, dir, args...)
	}

	cmdGetURL := exec.CommandContext(ctx, "git", "remote", "get-url", config.GitRemote)
	cmdGetURL.Dir = dir
	outURL, err := cmdGetURL.Output()
	if err != nil {
		return "Failed to get remote url", err
	}
	remoteURL := strings.TrimSpace(string(outURL))
	u, err := url.Parse(remoteURL)
	if err != nil || u.Scheme == "" {
		return "Invalid remote url", fmt.Errorf("remote %q is not an http(s) url", config.GitRemote)
	}
	u.User = url.UserPassword("oauth2", token)
	authenticatedURL := u.String()

	newArgs := make([]string, len(args))
	copy(newArgs, args)
	for i, v := range newArgs {
		if v == config.GitRemote {
			newArgs[i] = authenticatedURL
		}
	}

	cmd := exec.CommandContext(ctx, "git", newArgs...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	safeLog := strings.ReplaceAll(string(output), authenticatedURL, remoteURL)
	safeLog = strings.ReplaceAll(safeLog, token, "***")
	return safeLog, err
}

func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// DirtyFiles returns the repo-relative paths git reports as modified or untracked.
func DirtyFiles(ctx context.Context, dir string) (map[string]bool, error) {
	cmd := exec.CommandContext(ctx, "git", "status", "--porcelain", "--untracked-files=all")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return nil, err
	}

	dirty := make(map[string]bool)
	for _, line := range strings.Split(string(out), "\n") {
		if len(line) < 4 {
			continue
		}
		path := strings.TrimSpace(line[3:])
		if _, after, ok := strings.Cut(path, " -> "); ok {
			path = after
		}
		dirty[strings.Trim(path, "\"")] = true
	}
	return dirty, nil
}

func SyncRepo(ctx context.Context, token string) (string, error) {
	log, err := ExecuteGitWithToken(ctx, config.RepoPath, token, "pull", config.GitRemote, config.GitBranch)
	if err == nil {
		InvalidateCache()
	}
	return log, err
}

// PublishRepo commits every change with the configured identity and pushes it.
func PublishRepo(ctx context.Context, token string) (string, error) {
	var log strings.Builder
	out, err := runGit(ctx, config.RepoPath, "add", "--all")
	log.WriteString(out)
	if err != nil {
		return log.String(), err
	}

	msg := fmt.Sprintf("Update via Jekyll CMS: %s", time.Now().Format("2006-01-02 15:04:05"))
	// nothing to commit is not fatal; the push below still syncs earlier commits
	out, _ = runGit(ctx, config.RepoPath,
		"-c", "user.name="+config.GitUserName,
		"-c", "user.email="+config.GitUserEmail,
		"commit", "-m", msg)
	log.WriteString(out)

	out, err = ExecuteGitWithToken(ctx, config.RepoPath, token, "push", config.GitRemote, config.GitBranch)
	log.WriteString(out)
	return log.String(), err
}

// UnsavedDiff renders a unified diff between the saved file and the editor copy.
func UnsavedDiff(saved, edited []byte) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(saved)),
		B:        difflib.SplitLines(string(edited)),
		FromFile: "Saved (Normalized)",
		ToFile:   "Editor",
		Context:  3,
	})
}

// Diff reports the pending edit for rel: "unsaved" when the editor copy differs from the
// saved file, "git" when the file differs from HEAD, "none" otherwise. Copies that only
// differ in formatting or in values supplied by defaults count as equal.
func Diff(ctx context.Context, saved, edited []byte, rel string, defaults map[string]interface{}) (string, string) {
	if !sameCanonical(saved, edited, defaults) {
		if unsaved, err := UnsavedDiff(saved, edited); err == nil && unsaved != "" {
			return unsaved, "unsaved"
		}
	}

	outGit, err := runGit(ctx, config.RepoPath, "diff", "HEAD", "--", rel)
	if err == nil && len(outGit) > 0 {
		return outGit, "git"
	}
	return "", "none"
}

func sameCanonical(a, b []byte, defaults map[string]interface{}) bool {
	fmA, bodyA, err := CanonicalizeForDiff(a, defaults)
	if err != nil {
		return false
	}
	fmB, bodyB, err := CanonicalizeForDiff(b, defaults)
	if err != nil {
		return false
	}
	return bytes.Equal(fmA, fmB) && bodyA == bodyB
}
