package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"minerva/internal/bootstrap/logging"
	domainbridge "minerva/internal/domain/bridge"
	"minerva/internal/errs"
	"minerva/internal/ports"
)

// ProcessPullRequest handles messages delivered through a labelled pull
// request: message files are read from the PR head, each one passes its own
// dedup gate, and the routing label is removed once every file is handled.
func (s *Service) ProcessPullRequest(ctx context.Context, pull ports.PullRequest) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.Int("pr", pull.Number))

	files, err := s.host.ListPullFiles(logCtx, pull.Number)
	if err != nil {
		return errs.Wrapf(err, "list files of pull %d", pull.Number)
	}

	chatFiles := make([]ports.PullRequestFile, 0, len(files))
	for _, file := range files {
		if strings.HasPrefix(file.Path, s.cfg.InboxDir+"/") && strings.HasSuffix(file.Path, messageSuffix) {
			chatFiles = append(chatFiles, file)
		}
	}
	if len(chatFiles) == 0 {
		logging.Info(logCtx, "no chat messages in pull")
		return nil
	}

	for _, file := range chatFiles {
		remote, err := s.host.GetFile(logCtx, file.Path, pull.HeadRef)
		if err != nil {
			return errs.Wrapf(err, "read %s@%s", file.Path, pull.HeadRef)
		}

		key := domainbridge.DedupKey(remote.SHA)
		seen, err := s.dedup.Seen(logCtx, key)
		if err != nil {
			return errs.Wrap(err, "check dedup ledger")
		}
		if seen {
			logging.Info(logCtx, "message already handled", slog.String("file", file.Path))
			continue
		}

		msg, err := domainbridge.ParseMessage(remote.Content)
		if err != nil {
			return errs.Wrapf(err, "parse message %s", file.Path)
		}

		branch := "chats/response-" + s.timestampSlug()
		response, err := s.publishReply(logCtx, branch, msg, remote.SHA)
		if err != nil {
			return err
		}

		if err := s.dedup.Mark(logCtx, key); err != nil {
			return errs.Wrap(err, "mark message handled")
		}

		s.commentBestEffort(logCtx, pull.Number, fmt.Sprintf(
			"✅ Nachricht verarbeitet. Antwort in #%d.", response.Number,
		))

		logging.Info(
			logCtx,
			"pull message processed",
			slog.String("file", file.Path),
			slog.Int("response_pr", response.Number),
		)
	}

	if err := s.removeLabelTolerant(logCtx, pull.Number, s.cfg.Label); err != nil {
		return err
	}
	return nil
}

// HandleWebhookPull is the deferred-processing entry used by the webhook
// gateway after the fast ack: re-checks the path allow-list, then runs the
// pull pipeline.
func (s *Service) HandleWebhookPull(ctx context.Context, pull ports.PullRequest) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	touches, err := s.touchesAllowedPaths(ctx, pull.Number)
	if err != nil {
		return err
	}
	if !touches {
		logging.Info(
			ctx,
			"pull does not modify allowed paths, skipping",
			slog.Int("pr", pull.Number),
		)
		return nil
	}

	return s.ProcessPullRequest(ctx, pull)
}

func (s *Service) touchesAllowedPaths(ctx context.Context, number int) (bool, error) {
	files, err := s.host.ListPullFiles(ctx, number)
	if err != nil {
		return false, errs.Wrapf(err, "list files of pull %d", number)
	}

	for _, file := range files {
		for _, prefix := range s.cfg.AllowedPaths {
			if strings.HasPrefix(file.Path, prefix) {
				return true, nil
			}
		}
	}
	return false, nil
}
