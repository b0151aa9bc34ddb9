package extractors

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/MrSnakeDoc/mediabot/internal/domain"
)

const defaultGitHubAPI = "https://api.github.com"

var (
	githubCommit = regexp.MustCompile(`github\.com/([\w\-]+)/([\w\-.]+)/commit/([0-9a-fA-F]+)`)
	githubPull   = regexp.MustCompile(`github\.com/([\w\-]+)/([\w\-.]+)/pull/(\d+)`)
)

var githubHeaders = map[string]string{"Accept": "application/vnd.github.v3+json"}

type github struct {
	*deps
	apiBase string
}

func newGitHub(d *deps) *github { return &github{deps: d, apiBase: defaultGitHubAPI} }

func (github) Platform() domain.Platform { return domain.PlatformGitHub }

// Primary renders a commit or pull request summary as a text-only result.
func (g *github) Primary(ctx context.Context, rawURL string) (*domain.ScrapedResult, error) {
	if m := githubCommit.FindStringSubmatch(rawURL); m != nil {
		return g.commit(ctx, rawURL, m[1], m[2], m[3])
	}
	if m := githubPull.FindStringSubmatch(rawURL); m != nil {
		return g.pull(ctx, rawURL, m[1], m[2], m[3])
	}
	return nil, errors.New("not a commit or pull request url")
}

type ghCommit struct {
	Commit struct {
		Author struct {
			Name string `json:"name"`
		} `json:"author"`
		Message string `json:"message"`
	} `json:"commit"`
	Stats struct {
		Additions int `json:"additions"`
		Deletions int `json:"deletions"`
	} `json:"stats"`
	Files []struct {
		Status   string `json:"status"`
		Filename string `json:"filename"`
	} `json:"files"`
}

func (g *github) commit(ctx context.Context, rawURL, owner, repo, sha string) (*domain.ScrapedResult, error) {
	var c ghCommit
	api := fmt.Sprintf("%s/repos/%s/%s/commits/%s", g.apiBase, owner, repo, sha)
	if err := g.web.getJSON(ctx, api, githubHeaders, &c); err != nil {
		return nil, err
	}

	author := c.Commit.Author.Name
	if author == "" {
		author = "Unknown"
	}
	short := sha
	if len(short) > 8 {
		short = short[:8]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Commit: %s\nAuthor: %s\nMessage: %s\n\n", short, author, c.Commit.Message)
	fmt.Fprintf(&b, "+%d -%d in %d file(s)", c.Stats.Additions, c.Stats.Deletions, len(c.Files))
	for i, f := range c.Files {
		if i == 10 {
			break
		}
		status := f.Status
		if status == "" {
			status = "?"
		}
		fmt.Fprintf(&b, "\n  %s %s", status, f.Filename)
	}

	return &domain.ScrapedResult{
		Platform:    domain.PlatformGitHub,
		OriginalURL: rawURL,
		Author:      author,
		Caption:     b.String(),
	}, nil
}

type ghPull struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	State string `json:"state"`
	User  struct {
		Login string `json:"login"`
	} `json:"user"`
	Merged       bool `json:"merged"`
	Additions    int  `json:"additions"`
	Deletions    int  `json:"deletions"`
	ChangedFiles int  `json:"changed_files"`
}

func (g *github) pull(ctx context.Context, rawURL, owner, repo, number string) (*domain.ScrapedResult, error) {
	var p ghPull
	api := fmt.Sprintf("%s/repos/%s/%s/pulls/%s", g.apiBase, owner, repo, number)
	if err := g.web.getJSON(ctx, api, githubHeaders, &p); err != nil {
		return nil, err
	}

	author := p.User.Login
	if author == "" {
		author = "Unknown"
	}
	status := p.State
	if p.Merged {
		status = "merged"
	}
	if status == "" {
		status = "unknown"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "PR #%s: %s\nAuthor: %s | Status: %s\n", number, p.Title, author, status)
	fmt.Fprintf(&b, "+%d -%d in %d file(s)", p.Additions, p.Deletions, p.ChangedFiles)
	if body := []rune(p.Body); len(body) > 0 {
		preview := string(body)
		if len(body) > 300 {
			preview = string(body[:300]) + "..."
		}
		b.WriteString("\n\n" + preview)
	}

	return &domain.ScrapedResult{
		Platform:    domain.PlatformGitHub,
		OriginalURL: rawURL,
		Author:      author,
		Caption:     b.String(),
	}, nil
}
