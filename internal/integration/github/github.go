// Package github imports open issues from a GitHub repository as tickets.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gogithub "github.com/google/go-github/v68/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/zulandar/atila/internal/logging"
	"github.com/zulandar/atila/internal/normalize"
	"github.com/zulandar/atila/internal/worklist"
)

// Source is the integration source recorded on imported tickets.
const Source = "github"

const perPage = 100

// NewClient returns a GitHub API client. A non-empty token authenticates
// through an oauth2 static token source; without one the client is limited
// to the unauthenticated rate limit. baseURL points at a GitHub Enterprise
// server and may be empty.
func NewClient(ctx context.Context, token, baseURL string) (*gogithub.Client, error) {
	var httpClient *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(ctx, ts)
	}
	client := gogithub.NewClient(httpClient)
	if baseURL == "" {
		return client, nil
	}
	client, err := client.WithEnterpriseURLs(baseURL, baseURL)
	if err != nil {
		return nil, fmt.Errorf("github: base url %q: %w", baseURL, err)
	}
	return client, nil
}

// ParseRepo splits "owner/name" into its parts. A trailing ".git" and a
// leading github.com URL are tolerated.
func ParseRepo(s string) (owner, repo string, err error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "https://github.com/")
	s = strings.TrimPrefix(s, "git@github.com:")
	s = strings.TrimSuffix(strings.TrimSuffix(s, "/"), ".git")
	parts := strings.Split(s, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("github: invalid repository %q (want owner/name)", s)
	}
	return parts[0], parts[1], nil
}

// Importer pulls issues and upserts them through the worklist service.
type Importer struct {
	client    *gogithub.Client
	svc       *worklist.Service
	platforms normalize.PlatformMap
	log       *zap.Logger
	now       func() time.Time
}

// Opts configures an Importer.
type Opts struct {
	Client    *gogithub.Client // required
	Service   *worklist.Service
	Platforms normalize.PlatformMap // nil uses the built-in map
	Logger    *zap.Logger
	Now       func() time.Time
}

// NewImporter validates opts and returns an Importer.
func NewImporter(opts Opts) (*Importer, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("github: client is required")
	}
	if opts.Service == nil {
		return nil, fmt.Errorf("github: worklist service is required")
	}
	if opts.Platforms == nil {
		opts.Platforms = normalize.DefaultPlatformMap()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Importer{
		client:    opts.Client,
		svc:       opts.Service,
		platforms: opts.Platforms,
		log:       logging.WithComponent(logging.OrNop(opts.Logger), "github"),
		now:       opts.Now,
	}, nil
}

// Result counts what an import did.
type Result struct {
	Created int
	Updated int
	Skipped int // pull requests
}

// Import fetches every open issue of owner/repo and imports it into
// projectID. Issues already imported are updated in place.
func (im *Importer) Import(ctx context.Context, owner, repo string, projectID uint) (Result, error) {
	var res Result
	opts := &gogithub.IssueListByRepoOptions{
		State:       "open",
		ListOptions: gogithub.ListOptions{PerPage: perPage},
	}
	for {
		issues, resp, err := im.client.Issues.ListByRepo(ctx, owner, repo, opts)
		if err != nil {
			return res, fmt.Errorf("github: list issues %s/%s: %w", owner, repo, err)
		}
		for _, issue := range issues {
			if issue.IsPullRequest() {
				res.Skipped++
				continue
			}
			created, err := im.importIssue(ctx, issue, repo, projectID)
			if err != nil {
				return res, err
			}
			if created {
				res.Created++
			} else {
				res.Updated++
			}
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	im.log.Info("import finished",
		zap.String("repo", owner+"/"+repo),
		zap.Uint("project_id", projectID),
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

func (im *Importer) importIssue(ctx context.Context, issue *gogithub.Issue, repo string, projectID uint) (bool, error) {
	raw, err := IssuePayload(issue, repo)
	if err != nil {
		return false, err
	}
	rec, err := normalize.Normalize(Source, raw, im.platforms, im.now())
	if err != nil {
		return false, err
	}
	_, created, err := im.svc.ImportTicket(ctx, rec.TicketOpts(projectID))
	if err != nil {
		return false, fmt.Errorf("github: import issue #%d: %w", issue.GetNumber(), err)
	}
	return created, nil
}

// IssuePayload converts an issue into the generic JSON shape the normalizer
// walks, the same shape GitHub's REST API returns. The repository is filled
// in when the listing omitted it.
func IssuePayload(issue *gogithub.Issue, repo string) (map[string]any, error) {
	data, err := json.Marshal(issue)
	if err != nil {
		return nil, fmt.Errorf("github: encode issue: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("github: decode issue: %w", err)
	}
	if _, ok := raw["repository"]; !ok && repo != "" {
		raw["repository"] = map[string]any{"name": repo}
	}
	return raw, nil
}

// IsRateLimit reports whether err came from GitHub's primary or secondary
// rate limiter.
func IsRateLimit(err error) bool {
	var rl *gogithub.RateLimitError
	var abuse *gogithub.AbuseRateLimitError
	return errors.As(err, &rl) || errors.As(err, &abuse)
}
