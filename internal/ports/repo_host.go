package ports

import (
	"context"
	"errors"
)

// Error taxonomy produced by RepoHost adapters. Call sites pattern-match on
// these instead of platform status codes.
var (
	// ErrNotFound covers missing refs, paths, and labels. Most call sites
	// fold it into an empty result.
	ErrNotFound = errors.New("remote object not found")

	// ErrAlreadyExists covers idempotent creates (ref already exists).
	ErrAlreadyExists = errors.New("remote object already exists")

	// ErrStaleRevision means a conditional write observed a changed content
	// identifier. The optimistic-concurrency contract: the write failed
	// closed, nothing was overwritten.
	ErrStaleRevision = errors.New("remote content revision is stale")
)

// FileRef identifies one entry of a repository directory listing.
type FileRef struct {
	Path string
	Name string
	// SHA is the storage content identifier (blob hash) of the entry.
	SHA string
}

// RemoteFile is a file read from the hosting platform, with its revision
// marker for later conditional writes.
type RemoteFile struct {
	Path    string
	SHA     string
	Content []byte
}

type PullRequest struct {
	Number  int
	Title   string
	URL     string
	State   string
	HeadRef string
	Labels  []string
}

type PullRequestFile struct {
	Path string
}

type CreatePullInput struct {
	Title string
	Head  string
	Base  string
	Body  string
	Draft bool
}

// RepoHost abstracts the repository-hosting platform. Every method may fail
// with ErrNotFound, ErrAlreadyExists, or ErrStaleRevision where meaningful;
// anything else propagates as-is.
type RepoHost interface {
	// GetBranchHead resolves a branch name to its current commit SHA.
	GetBranchHead(ctx context.Context, branch string) (string, error)

	// CreateBranch creates refs/heads/<branch> at the given commit.
	CreateBranch(ctx context.Context, branch string, fromSHA string) error

	// GetFile reads path at ref.
	GetFile(ctx context.Context, path string, ref string) (RemoteFile, error)

	// ListDirectory lists the entries of a directory at ref.
	ListDirectory(ctx context.Context, path string, ref string) ([]FileRef, error)

	// PutFile writes path on branch. An empty sha creates; a non-empty sha
	// conditions the update on that revision.
	PutFile(ctx context.Context, branch string, path string, content []byte, message string, sha string) error

	ListOpenPulls(ctx context.Context) ([]PullRequest, error)
	ListPullFiles(ctx context.Context, number int) ([]PullRequestFile, error)
	CreatePull(ctx context.Context, input CreatePullInput) (PullRequest, error)
	CreateIssueComment(ctx context.Context, number int, body string) error
	AddLabels(ctx context.Context, number int, labels []string) error
	RemoveLabel(ctx context.Context, number int, label string) error
}
