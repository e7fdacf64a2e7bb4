package githubapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v68/github"

	"minerva/internal/errs"
	"minerva/internal/ports"
)

// Client implements ports.RepoHost against the GitHub REST API for a single
// owner/repo pair.
type Client struct {
	gh    *github.Client
	owner string
	repo  string
}

var _ ports.RepoHost = (*Client)(nil)

func New(httpClient *http.Client, owner string, repo string) *Client {
	return &Client{
		gh:    github.NewClient(httpClient),
		owner: owner,
		repo:  repo,
	}
}

// mapErr folds GitHub status codes into the ports error taxonomy. Anything
// unrecognized propagates unchanged.
func mapErr(err error) error {
	if err == nil {
		return nil
	}

	var ghErr *github.ErrorResponse
	if !errors.As(err, &ghErr) || ghErr.Response == nil {
		return err
	}

	switch ghErr.Response.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ports.ErrNotFound, ghErr.Message)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", ports.ErrStaleRevision, ghErr.Message)
	case http.StatusUnprocessableEntity:
		if strings.Contains(strings.ToLower(ghErr.Message), "already exists") {
			return fmt.Errorf("%w: %s", ports.ErrAlreadyExists, ghErr.Message)
		}
		return err
	default:
		return err
	}
}

func (c *Client) GetBranchHead(ctx context.Context, branch string) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}

	ref, _, err := c.gh.Git.GetRef(ctx, c.owner, c.repo, "heads/"+branch)
	if err != nil {
		return "", errs.Wrapf(mapErr(err), "get ref heads/%s", branch)
	}
	return ref.GetObject().GetSHA(), nil
}

func (c *Client) CreateBranch(ctx context.Context, branch string, fromSHA string) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	_, _, err := c.gh.Git.CreateRef(ctx, c.owner, c.repo, &github.Reference{
		Ref:    github.Ptr("refs/heads/" + branch),
		Object: &github.GitObject{SHA: github.Ptr(fromSHA)},
	})
	if err != nil {
		return errs.Wrapf(mapErr(err), "create ref refs/heads/%s", branch)
	}
	return nil
}

func (c *Client) GetFile(ctx context.Context, path string, ref string) (ports.RemoteFile, error) {
	if ctx == nil {
		return ports.RemoteFile{}, errors.New("context is required")
	}

	file, _, _, err := c.gh.Repositories.GetContents(
		ctx, c.owner, c.repo, path,
		&github.RepositoryContentGetOptions{Ref: ref},
	)
	if err != nil {
		return ports.RemoteFile{}, errs.Wrapf(mapErr(err), "get contents %s@%s", path, ref)
	}
	if file == nil {
		return ports.RemoteFile{}, fmt.Errorf("%s@%s is a directory, not a file", path, ref)
	}

	content, err := file.GetContent()
	if err != nil {
		return ports.RemoteFile{}, errs.Wrapf(err, "decode contents %s@%s", path, ref)
	}

	return ports.RemoteFile{
		Path:    file.GetPath(),
		SHA:     file.GetSHA(),
		Content: []byte(content),
	}, nil
}

func (c *Client) ListDirectory(ctx context.Context, path string, ref string) ([]ports.FileRef, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	_, entries, _, err := c.gh.Repositories.GetContents(
		ctx, c.owner, c.repo, path,
		&github.RepositoryContentGetOptions{Ref: ref},
	)
	if err != nil {
		return nil, errs.Wrapf(mapErr(err), "list contents %s@%s", path, ref)
	}

	refs := make([]ports.FileRef, 0, len(entries))
	for _, entry := range entries {
		if entry.GetType() != "file" {
			continue
		}
		refs = append(refs, ports.FileRef{
			Path: entry.GetPath(),
			Name: entry.GetName(),
			SHA:  entry.GetSHA(),
		})
	}
	return refs, nil
}

func (c *Client) PutFile(ctx context.Context, branch string, path string, content []byte, message string, sha string) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	opts := &github.RepositoryContentFileOptions{
		Message: github.Ptr(message),
		Content: content,
		Branch:  github.Ptr(branch),
	}

	var err error
	if sha == "" {
		_, _, err = c.gh.Repositories.CreateFile(ctx, c.owner, c.repo, path, opts)
	} else {
		opts.SHA = github.Ptr(sha)
		_, _, err = c.gh.Repositories.UpdateFile(ctx, c.owner, c.repo, path, opts)
	}
	if err != nil {
		return errs.Wrapf(mapErr(err), "put contents %s@%s", path, branch)
	}
	return nil
}

func (c *Client) ListOpenPulls(ctx context.Context) ([]ports.PullRequest, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	prs, _, err := c.gh.PullRequests.List(ctx, c.owner, c.repo, &github.PullRequestListOptions{
		State:       "open",
		ListOptions: github.ListOptions{PerPage: 100},
	})
	if err != nil {
		return nil, errs.Wrap(mapErr(err), "list open pulls")
	}

	out := make([]ports.PullRequest, 0, len(prs))
	for _, pr := range prs {
		out = append(out, mapPull(pr))
	}
	return out, nil
}

func (c *Client) ListPullFiles(ctx context.Context, number int) ([]ports.PullRequestFile, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	files, _, err := c.gh.PullRequests.ListFiles(ctx, c.owner, c.repo, number, &github.ListOptions{PerPage: 100})
	if err != nil {
		return nil, errs.Wrapf(mapErr(err), "list files of pull %d", number)
	}

	out := make([]ports.PullRequestFile, 0, len(files))
	for _, file := range files {
		out = append(out, ports.PullRequestFile{Path: file.GetFilename()})
	}
	return out, nil
}

func (c *Client) CreatePull(ctx context.Context, input ports.CreatePullInput) (ports.PullRequest, error) {
	if ctx == nil {
		return ports.PullRequest{}, errors.New("context is required")
	}

	pr, _, err := c.gh.PullRequests.Create(ctx, c.owner, c.repo, &github.NewPullRequest{
		Title: github.Ptr(input.Title),
		Head:  github.Ptr(input.Head),
		Base:  github.Ptr(input.Base),
		Body:  github.Ptr(input.Body),
		Draft: github.Ptr(input.Draft),
	})
	if err != nil {
		return ports.PullRequest{}, errs.Wrapf(mapErr(err), "create pull %s -> %s", input.Head, input.Base)
	}
	return mapPull(pr), nil
}

func (c *Client) CreateIssueComment(ctx context.Context, number int, body string) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	_, _, err := c.gh.Issues.CreateComment(ctx, c.owner, c.repo, number, &github.IssueComment{
		Body: github.Ptr(body),
	})
	if err != nil {
		return errs.Wrapf(mapErr(err), "comment on %d", number)
	}
	return nil
}

func (c *Client) AddLabels(ctx context.Context, number int, labels []string) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	_, _, err := c.gh.Issues.AddLabelsToIssue(ctx, c.owner, c.repo, number, labels)
	if err != nil {
		return errs.Wrapf(mapErr(err), "add labels to %d", number)
	}
	return nil
}

func (c *Client) RemoveLabel(ctx context.Context, number int, label string) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	_, err := c.gh.Issues.RemoveLabelForIssue(ctx, c.owner, c.repo, number, label)
	if err != nil {
		return errs.Wrapf(mapErr(err), "remove label %q from %d", label, number)
	}
	return nil
}

func mapPull(pr *github.PullRequest) ports.PullRequest {
	labels := make([]string, 0, len(pr.Labels))
	for _, label := range pr.Labels {
		labels = append(labels, label.GetName())
	}

	return ports.PullRequest{
		Number:  pr.GetNumber(),
		Title:   pr.GetTitle(),
		URL:     pr.GetHTMLURL(),
		State:   pr.GetState(),
		HeadRef: pr.GetHead().GetRef(),
		Labels:  labels,
	}
}
