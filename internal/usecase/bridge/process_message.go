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

// CheckInbox performs one full mailbox sweep: labelled pull requests first,
// then the base-branch inbox, then page/data regeneration. Per-item failures
// are logged and do not abort the sweep.
func (s *Service) CheckInbox(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bridge.inbox"))

	pulls, err := s.host.ListOpenPulls(logCtx)
	if err != nil {
		return errs.Wrap(err, "list open pulls")
	}
	for _, pull := range pulls {
		if !hasLabel(pull.Labels, s.cfg.Label) {
			continue
		}
		if err := s.ProcessPullRequest(logCtx, pull); err != nil {
			logging.Error(
				logCtx,
				"process labelled pull failed",
				slog.Int("pr", pull.Number),
				slog.Any("err", errs.Loggable(err)),
			)
		}
	}

	inbound, err := s.ListInbound(logCtx)
	if err != nil {
		return errs.Wrap(err, "list inbound mailbox")
	}
	for _, ref := range inbound {
		if _, err := s.ProcessInboundMessage(logCtx, ref); err != nil {
			logging.Error(
				logCtx,
				"process inbound message failed",
				slog.String("file", ref.Name),
				slog.Any("err", errs.Loggable(err)),
			)
		}
	}

	if err := s.RefreshThreadPages(logCtx); err != nil {
		logging.Error(logCtx, "refresh thread pages failed", slog.Any("err", errs.Loggable(err)))
	}
	if err := s.RefreshThreadData(logCtx); err != nil {
		logging.Error(logCtx, "refresh thread data failed", slog.Any("err", errs.Loggable(err)))
	}
	return nil
}

// ProcessInboundMessage runs one mailbox file through the pipeline. The dedup
// gate keys on the storage content identifier; the handled mark is written
// only after the publish pipeline completed, so a failed item stays eligible
// for retry on the next sweep.
func (s *Service) ProcessInboundMessage(ctx context.Context, ref ports.FileRef) (bool, error) {
	if ctx == nil {
		return false, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return false, errs.Wrap(err, "check context")
	}

	key := domainbridge.DedupKey(ref.SHA)
	seen, err := s.dedup.Seen(ctx, key)
	if err != nil {
		return false, errs.Wrap(err, "check dedup ledger")
	}
	if seen {
		logging.Info(ctx, "message already handled", slog.String("file", ref.Name))
		return false, nil
	}

	msg, err := s.ReadMessage(ctx, ref.Path, s.cfg.BaseBranch)
	if err != nil {
		return false, err
	}

	branch := "chats/" + domainbridge.Slugify(strings.TrimSuffix(ref.Name, messageSuffix))
	pull, err := s.publishReply(ctx, branch, msg, ref.SHA)
	if err != nil {
		return false, err
	}

	if err := s.dedup.Mark(ctx, key); err != nil {
		return false, errs.Wrap(err, "mark message handled")
	}

	logging.Info(
		ctx,
		"inbound message processed",
		slog.String("file", ref.Name),
		slog.Int("response_pr", pull.Number),
	)
	return true, nil
}

// publishReply generates the response and publishes it: branch from base
// tip, reply JSON in the outbox, optional demo page, pull request with the
// idempotency footer, optional auto-merge label.
func (s *Service) publishReply(ctx context.Context, branch string, msg domainbridge.Message, sourceSHA string) (ports.PullRequest, error) {
	reply := s.responder.Respond(msg, s.now())

	if err := s.ensureBranch(ctx, branch); err != nil {
		return ports.PullRequest{}, err
	}

	replyJSON, err := reply.CanonicalJSON()
	if err != nil {
		return ports.PullRequest{}, err
	}

	ts := s.timestampSlug()
	replyPath := s.cfg.OutboxDir + "/" + ts + "-reply.json"
	if err := s.putFile(ctx, branch, replyPath, replyJSON, "feat: Add "+replyPath); err != nil {
		return ports.PullRequest{}, err
	}

	if domainbridge.DemoWorthy(msg.Text) {
		pagePath := s.cfg.PagesDir + "/" + ts + ".html"
		page := domainbridge.RenderConversationPage(msg, reply, s.now())
		if err := s.putFile(ctx, branch, pagePath, []byte(page), "feat: Add "+pagePath); err != nil {
			return ports.PullRequest{}, err
		}
	}

	body, err := s.chatPullBody(msg, sourceSHA)
	if err != nil {
		return ports.PullRequest{}, err
	}

	pull, err := s.host.CreatePull(ctx, ports.CreatePullInput{
		Title: fmt.Sprintf("chat: Response to %s - %s", msg.From, excerptText(msg.Text, 50)),
		Head:  branch,
		Base:  s.cfg.BaseBranch,
		Body:  body,
	})
	if err != nil {
		return ports.PullRequest{}, errs.Wrap(err, "open response pull")
	}

	if domainbridge.WantsPublish(msg.Text) {
		s.addLabelBestEffort(ctx, pull.Number, s.cfg.AutoMergeLabel)
	}
	return pull, nil
}

func (s *Service) chatPullBody(msg domainbridge.Message, sourceSHA string) (string, error) {
	hash, err := msg.Fingerprint()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("## Chat Bridge Response\n\n")
	fmt.Fprintf(&b, "**Incoming Message**: %s → %s\n", msg.From, msg.To)
	fmt.Fprintf(&b, "**Thread**: %s\n", msg.ThreadName())
	fmt.Fprintf(&b, "**Timestamp**: %s\n\n", msg.Timestamp)
	b.WriteString("### Message Preview\n")
	fmt.Fprintf(&b, "> %s\n\n", excerptText(msg.Text, 200))
	b.WriteString("### Response Generated\n")
	fmt.Fprintf(&b, "Reply JSON created in `%s/`\n\n", s.cfg.OutboxDir)
	b.WriteString(s.idempotencyFooter(hash, sourceSHA))
	return b.String(), nil
}

func excerptText(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

func hasLabel(labels []string, name string) bool {
	for _, label := range labels {
		if label == name {
			return true
		}
	}
	return false
}
