package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"minerva/internal/bootstrap/logging"
	domainledger "minerva/internal/domain/ledger"
	"minerva/internal/errs"
	"minerva/internal/ports"
)

const toolTag = "minerva-operator@v1.0.0"

// ConflictPolicy decides what happens when a conditional write observes a
// stale revision marker.
type ConflictPolicy string

const (
	// ConflictFail surfaces the stale revision to the caller for manual
	// resolution.
	ConflictFail ConflictPolicy = "fail"
	// ConflictRetry re-reads the document and reapplies the mutation, up to
	// the retry limit.
	ConflictRetry ConflictPolicy = "retry"
)

type Config struct {
	Path       string
	BaseBranch string
	UpdatedBy  string
	OnConflict ConflictPolicy
	RetryLimit int
}

// Service updates the shared task ledger under optimistic concurrency: every
// write is conditioned on the revision marker observed at read time and
// fails closed when it went stale.
type Service struct {
	host ports.RepoHost
	cfg  Config

	// Overridable in tests.
	now      func() time.Time
	newRunID func() string
}

func NewService(host ports.RepoHost, cfg Config) *Service {
	if cfg.UpdatedBy == "" {
		cfg.UpdatedBy = "operator-agent"
	}
	if cfg.RetryLimit <= 0 {
		cfg.RetryLimit = 3
	}
	return &Service{
		host:     host,
		cfg:      cfg,
		now:      time.Now,
		newRunID: uuid.NewString,
	}
}

// Read fetches the ledger document together with its revision marker.
func (s *Service) Read(ctx context.Context) (domainledger.Document, string, []byte, error) {
	if ctx == nil {
		return domainledger.Document{}, "", nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return domainledger.Document{}, "", nil, errs.Wrap(err, "check context")
	}

	file, err := s.host.GetFile(ctx, s.cfg.Path, s.cfg.BaseBranch)
	if err != nil {
		return domainledger.Document{}, "", nil, errs.Wrapf(err, "read ledger %s", s.cfg.Path)
	}

	doc, err := domainledger.Decode(file.Content)
	if err != nil {
		return domainledger.Document{}, "", nil, err
	}
	return doc, file.SHA, file.Content, nil
}

type UpdateTaskInput struct {
	TaskID   string
	Status   domainledger.Status
	PRNumber int
}

type UpdateTaskResult struct {
	// Skipped means the re-serialized document matched the fresh read
	// byte-for-byte, so no write was issued.
	Skipped  bool
	Branch   string
	PRNumber int
	Attempts int
}

// UpdateTask applies one task mutation to the shared ledger. A stale
// revision marker is surfaced as ports.ErrStaleRevision under the fail
// policy; the retry policy re-reads and reapplies up to the configured limit
// before giving up with the same distinct error.
func (s *Service) UpdateTask(ctx context.Context, input UpdateTaskInput) (UpdateTaskResult, error) {
	if ctx == nil {
		return UpdateTaskResult{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return UpdateTaskResult{}, errs.Wrap(err, "check context")
	}
	if input.TaskID == "" {
		return UpdateTaskResult{}, errors.New("task id is required")
	}

	logCtx := logging.WithAttrs(
		ctx,
		slog.String("component", "ledger.updater"),
		slog.String("task", input.TaskID),
	)

	maxAttempts := 1
	if s.cfg.OnConflict == ConflictRetry {
		maxAttempts = s.cfg.RetryLimit
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := s.tryUpdate(logCtx, input)
		if err == nil {
			result.Attempts = attempt
			return result, nil
		}
		if !errors.Is(err, ports.ErrStaleRevision) {
			return UpdateTaskResult{}, err
		}

		lastErr = err
		logging.Warn(
			logCtx,
			"ledger revision went stale",
			slog.Int("attempt", attempt),
			slog.String("policy", string(s.cfg.OnConflict)),
		)
	}

	return UpdateTaskResult{}, errs.Wrapf(lastErr, "update task %s after %d attempts", input.TaskID, maxAttempts)
}

func (s *Service) tryUpdate(ctx context.Context, input UpdateTaskInput) (UpdateTaskResult, error) {
	doc, revision, _, err := s.Read(ctx)
	if err != nil {
		return UpdateTaskResult{}, err
	}

	if err := doc.ApplyStatus(input.TaskID, input.Status, input.PRNumber, s.cfg.UpdatedBy, s.now()); err != nil {
		return UpdateTaskResult{}, err
	}

	encoded, err := doc.Encode()
	if err != nil {
		return UpdateTaskResult{}, err
	}

	// Fresh read immediately before writing: identical bytes mean another
	// writer already landed this exact state, so the write is skipped.
	fresh, err := s.host.GetFile(ctx, s.cfg.Path, s.cfg.BaseBranch)
	if err != nil {
		return UpdateTaskResult{}, errs.Wrapf(err, "re-read ledger %s", s.cfg.Path)
	}
	if bytes.Equal(encoded, fresh.Content) {
		logging.Info(ctx, "ledger already up to date, skipping write")
		return UpdateTaskResult{Skipped: true}, nil
	}

	branch := fmt.Sprintf("patch/update-task-%s-%d", input.TaskID, s.now().UnixMilli())
	message := fmt.Sprintf("chore: update task %s status to %s", input.TaskID, input.Status)

	head, err := s.host.GetBranchHead(ctx, s.cfg.BaseBranch)
	if err != nil {
		return UpdateTaskResult{}, errs.Wrapf(err, "resolve base branch %s", s.cfg.BaseBranch)
	}
	if err := s.host.CreateBranch(ctx, branch, head); err != nil && !errors.Is(err, ports.ErrAlreadyExists) {
		return UpdateTaskResult{}, errs.Wrapf(err, "create branch %s", branch)
	}

	// Conditioned on the revision observed by the original read. A stale
	// marker must surface, never silently overwrite.
	if err := s.host.PutFile(ctx, branch, s.cfg.Path, encoded, message, revision); err != nil {
		return UpdateTaskResult{}, errs.Wrap(err, "write ledger")
	}

	body := fmt.Sprintf(
		"Automatic status update for task %s\n\n---\nRun: minerva://runs/%s\nTool: %s",
		input.TaskID, s.newRunID(), toolTag,
	)
	pull, err := s.host.CreatePull(ctx, ports.CreatePullInput{
		Title: message,
		Head:  branch,
		Base:  s.cfg.BaseBranch,
		Body:  body,
	})
	if err != nil {
		return UpdateTaskResult{}, errs.Wrap(err, "open ledger update pull")
	}

	logging.Info(ctx, "ledger update published", slog.Int("pr", pull.Number), slog.String("branch", branch))
	return UpdateTaskResult{Branch: branch, PRNumber: pull.Number}, nil
}
