package bridge

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"minerva/internal/bootstrap/logging"
	domainbridge "minerva/internal/domain/bridge"
	"minerva/internal/errs"
	"minerva/internal/ports"
)

// ToolTag identifies this pipeline in idempotency footers.
const ToolTag = "minerva-bridge@v0.3"

// Config carries the fixed repository paths and labels the bridge operates
// on. The peer reads these paths, so they are part of the contract.
type Config struct {
	BaseBranch     string
	Label          string
	AutoMergeLabel string
	InboxDir       string
	OutboxDir      string
	PagesDir       string
	AllowedPaths   []string
}

// Service runs the inbound-message pipeline: dedup gate, response
// generation, branch/commit/PR publishing, page regeneration.
type Service struct {
	host      ports.RepoHost
	dedup     ports.DedupStore
	responder *domainbridge.Responder
	cfg       Config

	// Overridable in tests.
	now      func() time.Time
	newRunID func() string
}

func NewService(host ports.RepoHost, dedup ports.DedupStore, responder *domainbridge.Responder, cfg Config) *Service {
	return &Service{
		host:      host,
		dedup:     dedup,
		responder: responder,
		cfg:       cfg,
		now:       time.Now,
		newRunID:  uuid.NewString,
	}
}

func (s *Service) timestampSlug() string {
	return s.now().UTC().Format("2006-01-02T15-04-05")
}

// commentBestEffort posts a status comment on a pull request. The pipeline
// result does not depend on it, so failures are logged and swallowed.
func (s *Service) commentBestEffort(ctx context.Context, number int, body string) {
	if err := s.host.CreateIssueComment(ctx, number, body); err != nil {
		logging.Warn(ctx, "post status comment", slog.Int("pr", number), slog.Any("err", errs.Loggable(err)))
	}
}
