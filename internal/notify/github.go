// Package notify files a GitHub issue when a guard run fails.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	gh "github.com/google/go-github/v60/github"
	"go.uber.org/zap"

	"github.com/cgast/affordkit/pkg/guard"
)

// IssueTitle is the title of the tracking issue. An open issue with this
// title receives a comment per failing run instead of a duplicate.
const IssueTitle = "Baseline Guard failing"

// Result describes what Notify did.
type Result struct {
	Number    int    `json:"number,omitempty"`
	URL       string `json:"url,omitempty"`
	Commented bool   `json:"commented,omitempty"`
	Skipped   bool   `json:"skipped,omitempty"`
}

// Notifier reports guard outcomes somewhere outside the process.
type Notifier interface {
	Notify(ctx context.Context, report guard.Report) (Result, error)
}

// GitHub files failing reports as issues in one repository.
type GitHub struct {
	client *gh.Client
	owner  string
	repo   string
	labels []string
	logger *zap.Logger
}

// Option configures GitHub.
type Option func(*githubOptions)

type githubOptions struct {
	baseURL string
	logger  *zap.Logger
}

// WithBaseURL targets a GitHub Enterprise (or test) API root.
func WithBaseURL(url string) Option {
	return func(o *githubOptions) { o.baseURL = url }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *githubOptions) { o.logger = l }
}

// NewGitHub creates a notifier for owner/repo authenticated with token.
func NewGitHub(token, owner, repo string, labels []string, opts ...Option) (*GitHub, error) {
	if token == "" {
		return nil, fmt.Errorf("github token is required")
	}
	if owner == "" || repo == "" {
		return nil, fmt.Errorf("github owner and repo are required")
	}
	o := githubOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	client := gh.NewClient(&http.Client{Transport: &tokenTransport{token: token}})
	if o.baseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(o.baseURL, o.baseURL)
		if err != nil {
			return nil, fmt.Errorf("github base url: %w", err)
		}
	}

	return &GitHub{
		client: client,
		owner:  owner,
		repo:   repo,
		labels: labels,
		logger: o.logger,
	}, nil
}

// tokenTransport adds Bearer token auth to HTTP requests.
type tokenTransport struct {
	token string
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.token)
	return http.DefaultTransport.RoundTrip(req)
}

// Notify files or updates the tracking issue for a failing report. Passing
// reports are skipped.
func (g *GitHub) Notify(ctx context.Context, report guard.Report) (Result, error) {
	if report.Pass {
		return Result{Skipped: true}, nil
	}

	body := issueBody(report)

	existing, err := g.openIssue(ctx)
	if err != nil {
		return Result{}, err
	}
	if existing != nil {
		comment, _, err := g.client.Issues.CreateComment(ctx, g.owner, g.repo, existing.GetNumber(), &gh.IssueComment{Body: &body})
		if err != nil {
			return Result{}, fmt.Errorf("notify: comment on #%d: %w", existing.GetNumber(), err)
		}
		g.logger.Info("guard failure commented",
			zap.Int("issue", existing.GetNumber()),
			zap.String("run_id", report.RunID))
		return Result{Number: existing.GetNumber(), URL: comment.GetHTMLURL(), Commented: true}, nil
	}

	title := IssueTitle
	req := &gh.IssueRequest{Title: &title, Body: &body}
	if len(g.labels) > 0 {
		labels := append([]string(nil), g.labels...)
		req.Labels = &labels
	}
	issue, _, err := g.client.Issues.Create(ctx, g.owner, g.repo, req)
	if err != nil {
		return Result{}, fmt.Errorf("notify: create issue: %w", err)
	}
	g.logger.Info("guard failure filed",
		zap.Int("issue", issue.GetNumber()),
		zap.String("run_id", report.RunID))
	return Result{Number: issue.GetNumber(), URL: issue.GetHTMLURL()}, nil
}

func (g *GitHub) openIssue(ctx context.Context) (*gh.Issue, error) {
	opts := &gh.IssueListByRepoOptions{
		State:       "open",
		Labels:      g.labels,
		ListOptions: gh.ListOptions{PerPage: 50},
	}
	issues, _, err := g.client.Issues.ListByRepo(ctx, g.owner, g.repo, opts)
	if err != nil {
		return nil, fmt.Errorf("notify: list issues: %w", err)
	}
	for _, is := range issues {
		if is.GetTitle() == IssueTitle && !is.IsPullRequest() {
			return is, nil
		}
	}
	return nil, nil
}

func issueBody(r guard.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run `%s` at %s failed", r.RunID, r.At.UTC().Format("2006-01-02 15:04:05 MST"))
	if r.Source != "" {
		fmt.Fprintf(&b, " against generator `%s`", r.Source)
	}
	b.WriteString(".\n\n```\n")
	for _, line := range r.Lines() {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("```\n")
	return b.String()
}
