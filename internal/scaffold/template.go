// Package scaffold fetches project templates for `qide new --from`.
package scaffold

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
)

var templateShortcuts = map[string]string{
	"gh:": "https://github.com/",
	"gl:": "https://gitlab.com/",
	"bb:": "https://bitbucket.org/",
	"sr:": "https://sr.ht/",
	"cb:": "https://codeberg.org/",
}

const gitPrefix = "git:"

var (
	errIllegalTemplate = errors.New("empty or illegal template source")
)

// Progress receives clone progress output.
var Progress io.Writer = os.Stdout

// ResolveSource expands a template source into a clone URL and revision.
// Local directories are returned as absolute paths.
func ResolveSource(src string) (GitURL, error) {
	if src == "" {
		return GitURL{}, errIllegalTemplate
	}

	// check for `git:` prefix, e.g. git:https://example.com/templates/c.git
	if strings.HasPrefix(src, gitPrefix) {
		return ParseGitURL(src[len(gitPrefix):]), nil
	}

	// check for shortcut prefix, e.g. gh:qobs-build/c-template
	for shortcut, base := range templateShortcuts {
		if strings.HasPrefix(src, shortcut) {
			return ParseGitURL(base + src[len(shortcut):]), nil
		}
	}

	if isURL(src) {
		return ParseGitURL(src), nil
	}

	// otherwise it's a local repository
	abs, err := filepath.Abs(src)
	if err != nil {
		return GitURL{}, err
	}
	if stat, err := os.Stat(abs); err != nil || !stat.IsDir() {
		return GitURL{}, fmt.Errorf("%w: %s", errIllegalTemplate, src)
	}
	return GitURL{CleanURL: abs}, nil
}

func isURL(maybeURL string) bool {
	u, err := url.Parse(maybeURL)
	return err == nil && u.Scheme != "" && u.Host != ""
}

type GitURL struct {
	CleanURL    string
	Branch      string
	CommitOrTag string
}

// someone/something@master#0.1.0
// someone/something@feature-branch#12345abc
// someone/something#12345abc
func ParseGitURL(rawURL string) (res GitURL) {
	parts := strings.SplitN(rawURL, "#", 2)
	baseURL := parts[0]
	if len(parts) == 2 {
		res.CommitOrTag = parts[1]
	}

	// an @ in the host part is a user name, as in ssh://git@host/repo
	path := 0
	if i := strings.Index(baseURL, "://"); i >= 0 {
		path = i + len("://")
	}
	if i := strings.IndexByte(baseURL[path:], '/'); i >= 0 {
		path += i
	}
	res.CleanURL = baseURL
	if at := strings.IndexByte(baseURL[path:], '@'); at >= 0 {
		at += path
		res.CleanURL, res.Branch = baseURL[:at], baseURL[at+1:]
	}

	if !strings.HasSuffix(res.CleanURL, ".git") {
		res.CleanURL += ".git"
	}

	return
}

// Fetch clones the template src into toWhere and drops its history, so the
// new project starts with a repository of its own.
func Fetch(src, toWhere string) error {
	parsed, err := ResolveSource(src)
	if err != nil {
		return err
	}
	if err := cloneGitRepo(parsed, toWhere); err != nil {
		return fmt.Errorf("fetch template %s: %w", src, err)
	}
	return os.RemoveAll(filepath.Join(toWhere, ".git"))
}

// cloneGitRepo clones a Git remote into the specified directory
func cloneGitRepo(parsedURL GitURL, toWhere string) error {
	cloneOptions := &git.CloneOptions{
		URL:               parsedURL.CleanURL,
		Progress:          Progress,
		RecurseSubmodules: git.DefaultSubmoduleRecursionDepth,
	}

	if parsedURL.CommitOrTag == "" && !filepath.IsAbs(parsedURL.CleanURL) {
		cloneOptions.Depth = 1 // we can do a shallow clone of the latest commit
	}

	if parsedURL.Branch != "" {
		cloneOptions.ReferenceName = plumbing.NewBranchReferenceName(parsedURL.Branch)
		cloneOptions.SingleBranch = true
	}

	repo, err := git.PlainClone(toWhere, cloneOptions)
	if err != nil {
		return err
	}

	if parsedURL.CommitOrTag != "" {
		w, err := repo.Worktree()
		if err != nil {
			return fmt.Errorf("could not get worktree: %w", err)
		}

		revision := parsedURL.CommitOrTag
		hash, err := repo.ResolveRevision(plumbing.Revision(revision))
		if err != nil {
			return fmt.Errorf("could not resolve revision `%s`: %w", revision, err)
		}

		err = w.Checkout(&git.CheckoutOptions{
			Hash:  *hash,
			Force: true,
		})
		if err != nil {
			return fmt.Errorf("failed to checkout `%s`: %w", revision, err)
		}
	}

	return nil
}
