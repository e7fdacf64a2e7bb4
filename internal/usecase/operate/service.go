package operate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"minerva/internal/bootstrap/logging"
	domainbridge "minerva/internal/domain/bridge"
	domainledger "minerva/internal/domain/ledger"
	"minerva/internal/errs"
	"minerva/internal/ports"
	ledgeruc "minerva/internal/usecase/ledger"
)

const toolTag = "minerva-operator@v1.0.0"

type Config struct {
	// Owner is the automation identity whose todo tasks this pass picks up.
	Owner      string
	BaseBranch string
}

// Service runs one operator pass: pick the first todo task owned by the
// automation identity, publish a work branch and pull request, then advance
// the task in the shared ledger.
type Service struct {
	host   ports.RepoHost
	ledger *ledgeruc.Service
	cfg    Config

	now      func() time.Time
	newRunID func() string
}

func NewService(host ports.RepoHost, ledger *ledgeruc.Service, cfg Config) *Service {
	if cfg.Owner == "" {
		cfg.Owner = "claude"
	}
	return &Service{
		host:     host,
		ledger:   ledger,
		cfg:      cfg,
		now:      time.Now,
		newRunID: uuid.NewString,
	}
}

type RunResult struct {
	Processed bool
	TaskID    string
	Branch    string
	PRNumber  int
}

// RunOnce processes at most one task per pass. With dryRun the intended
// branch and pull request are logged but nothing is written.
func (s *Service) RunOnce(ctx context.Context, dryRun bool) (RunResult, error) {
	if ctx == nil {
		return RunResult{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return RunResult{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "operate"))

	doc, _, _, err := s.ledger.Read(logCtx)
	if err != nil {
		return RunResult{}, err
	}

	task, ok := doc.NextTodoFor(s.cfg.Owner)
	if !ok {
		logging.Info(logCtx, "no pending tasks found", slog.String("owner", s.cfg.Owner))
		return RunResult{}, nil
	}

	taskCtx := logging.WithAttrs(logCtx, slog.String("task", task.ID))
	branch := "feat/" + domainbridge.Slugify(task.Title)

	if dryRun {
		logging.Info(taskCtx, "dry run: would create branch and pull request", slog.String("branch", branch))
		return RunResult{Processed: true, TaskID: task.ID, Branch: branch}, nil
	}

	head, err := s.host.GetBranchHead(taskCtx, s.cfg.BaseBranch)
	if err != nil {
		return RunResult{}, errs.Wrapf(err, "resolve base branch %s", s.cfg.BaseBranch)
	}
	if err := s.host.CreateBranch(taskCtx, branch, head); err != nil && !errors.Is(err, ports.ErrAlreadyExists) {
		return RunResult{}, errs.Wrapf(err, "create branch %s", branch)
	}

	for _, file := range taskFiles(task) {
		message := fmt.Sprintf("feat: %s - add %s", task.Title, file.path)
		if err := s.putTaskFile(taskCtx, branch, file.path, []byte(file.content), message); err != nil {
			return RunResult{}, err
		}
	}

	body, err := s.taskPullBody(task)
	if err != nil {
		return RunResult{}, err
	}
	pull, err := s.host.CreatePull(taskCtx, ports.CreatePullInput{
		Title: "feat: " + task.Title,
		Head:  branch,
		Base:  s.cfg.BaseBranch,
		Body:  body,
	})
	if err != nil {
		return RunResult{}, errs.Wrap(err, "open task pull")
	}
	logging.Info(taskCtx, "task pull created", slog.Int("pr", pull.Number), slog.String("url", pull.URL))

	if _, err := s.ledger.UpdateTask(taskCtx, ledgeruc.UpdateTaskInput{
		TaskID:   task.ID,
		Status:   domainledger.StatusInProgress,
		PRNumber: pull.Number,
	}); err != nil {
		return RunResult{}, errs.Wrap(err, "advance task status")
	}

	return RunResult{Processed: true, TaskID: task.ID, Branch: branch, PRNumber: pull.Number}, nil
}

func (s *Service) putTaskFile(ctx context.Context, branch string, path string, content []byte, message string) error {
	sha := ""
	existing, err := s.host.GetFile(ctx, path, branch)
	switch {
	case err == nil:
		sha = existing.SHA
	case errors.Is(err, ports.ErrNotFound):
	default:
		return errs.Wrapf(err, "look up %s@%s", path, branch)
	}

	if err := s.host.PutFile(ctx, branch, path, content, message, sha); err != nil {
		return errs.Wrapf(err, "write %s@%s", path, branch)
	}
	return nil
}

type generatedFile struct {
	path    string
	content string
}

func taskFiles(task domainledger.Task) []generatedFile {
	if strings.Contains(strings.ToLower(task.Title), "webhook") {
		return []generatedFile{{path: "docs/webhooks.md", content: webhookDoc}}
	}

	content := fmt.Sprintf(
		"# %s\n\n%s\n\nImplementation for task %s.\n",
		task.Title, task.Description, task.ID,
	)
	return []generatedFile{{
		path:    "implementations/" + strings.ToLower(task.ID) + ".md",
		content: content,
	}}
}

func (s *Service) taskPullBody(task domainledger.Task) (string, error) {
	serialized, err := json.Marshal(task)
	if err != nil {
		return "", errs.Wrap(err, "marshal task")
	}
	inputHash := domainbridge.Fingerprint(serialized)

	createdAt := task.CreatedAt
	if createdAt == "" {
		createdAt = s.now().UTC().Format(time.RFC3339)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Summary\nImplementation for task %s: %s\n\n", task.ID, task.Title)
	if task.Description != "" {
		b.WriteString(task.Description + "\n\n")
	}
	b.WriteString("## Task Details\n")
	fmt.Fprintf(&b, "- ID: %s\n- Owner: %s\n- Created: %s\n\n", task.ID, task.Owner, createdAt)
	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "Run: minerva://runs/%s\n", s.newRunID())
	fmt.Fprintf(&b, "Input: sha256:%s\n", inputHash)
	fmt.Fprintf(&b, "Tool: %s", toolTag)
	return b.String(), nil
}

const webhookDoc = `# Webhook Documentation

## Overview
GitHub webhooks for AI agent task processing.

## Endpoint
` + "`POST /webhook`" + `

## Security
- Validate GitHub signature using HMAC-SHA256
- Use webhook secret from environment

## Idempotency
Each webhook includes:
- Unique delivery ID (X-GitHub-Delivery)
- Event type (X-GitHub-Event)
- Store processed IDs to prevent duplicates

## Processing Flow
1. Receive webhook
2. Validate signature
3. Check idempotency
4. Acknowledge immediately
5. Process asynchronously
`
