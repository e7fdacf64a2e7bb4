package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"minerva/internal/bootstrap/logging"
	domainbridge "minerva/internal/domain/bridge"
	"minerva/internal/errs"
	"minerva/internal/ports"
)

// collectMessages reads every inbox and outbox message from the base branch.
// Malformed files are logged and skipped; rendering should not fail the sweep.
func (s *Service) collectMessages(ctx context.Context) ([]domainbridge.Message, error) {
	inbound, err := s.ListInbound(ctx)
	if err != nil {
		return nil, err
	}
	outbound, err := s.ListOutbound(ctx)
	if err != nil {
		return nil, err
	}

	refs := append(inbound, outbound...)
	msgs := make([]domainbridge.Message, 0, len(refs))
	for _, ref := range refs {
		msg, err := s.ReadMessage(ctx, ref.Path, s.cfg.BaseBranch)
		if err != nil {
			logging.Warn(
				ctx,
				"skipping unreadable mailbox file",
				slog.String("file", ref.Path),
				slog.Any("err", errs.Loggable(err)),
			)
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// RefreshThreadPages regenerates the per-thread overview pages and the thread
// index, published on a dedicated branch with the auto-merge label.
func (s *Service) RefreshThreadPages(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	msgs, err := s.collectMessages(ctx)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}

	threads := domainbridge.GroupByThread(msgs)
	branch := "feat/chat-thread-overviews-" + s.timestampSlug()
	if err := s.ensureBranch(ctx, branch); err != nil {
		return err
	}

	names := sortedThreadNames(threads)
	for _, name := range names {
		page := domainbridge.RenderThreadOverview(name, threads[name])
		path := s.cfg.PagesDir + "/threads/" + name + ".html"
		if err := s.putFile(ctx, branch, path, []byte(page), "feat: Add "+path); err != nil {
			return err
		}
	}

	indexPath := s.cfg.PagesDir + "/threads/index.html"
	index := domainbridge.RenderThreadIndex(threads)
	if err := s.putFile(ctx, branch, indexPath, []byte(index), "feat: Add "+indexPath); err != nil {
		return err
	}

	body := s.pagesPullBody("Chat thread overview pages", names)
	pull, err := s.host.CreatePull(ctx, ports.CreatePullInput{
		Title: "feat: Add chat thread overview pages",
		Head:  branch,
		Base:  s.cfg.BaseBranch,
		Body:  body,
	})
	if err != nil {
		return errs.Wrap(err, "open thread overview pull")
	}

	s.addLabelBestEffort(ctx, pull.Number, s.cfg.AutoMergeLabel)
	logging.Info(ctx, "thread overviews published", slog.Int("pr", pull.Number), slog.Int("threads", len(names)))
	return nil
}

// RefreshThreadData regenerates the viewer data JSONs. Files whose content
// hash is unchanged against the base branch are skipped; when nothing
// changed, no branch or pull request is created at all.
func (s *Service) RefreshThreadData(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	msgs, err := s.collectMessages(ctx)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}

	threads := domainbridge.GroupByThread(msgs)
	names := sortedThreadNames(threads)

	type pendingFile struct {
		path    string
		content []byte
	}
	var pending []pendingFile
	entries := make([]domainbridge.ThreadDataEntry, 0, len(names))

	for _, name := range names {
		data, err := domainbridge.RenderThreadData(threads[name])
		if err != nil {
			return err
		}
		entries = append(entries, domainbridge.ThreadDataEntry{Name: name, Count: len(threads[name])})

		path := s.cfg.PagesDir + "/data/" + name + ".json"
		changed, err := s.contentChanged(ctx, path, data)
		if err != nil {
			return err
		}
		if !changed {
			logging.Info(ctx, "thread data unchanged", slog.String("thread", name))
			continue
		}
		pending = append(pending, pendingFile{path: path, content: data})
	}

	indexData, err := domainbridge.RenderThreadIndexData(entries)
	if err != nil {
		return err
	}
	indexPath := s.cfg.PagesDir + "/data/thread-index.json"
	indexChanged, err := s.contentChanged(ctx, indexPath, indexData)
	if err != nil {
		return err
	}
	if indexChanged {
		pending = append(pending, pendingFile{path: indexPath, content: indexData})
	}

	if len(pending) == 0 {
		logging.Info(ctx, "no thread data changes needed")
		return nil
	}

	branch := "chore/chat-data-update-" + s.timestampSlug()
	if err := s.ensureBranch(ctx, branch); err != nil {
		return err
	}
	for _, file := range pending {
		if err := s.putFile(ctx, branch, file.path, file.content, "chore: Update "+file.path); err != nil {
			return err
		}
	}

	body := s.pagesPullBody("Chat UI data update", names)
	pull, err := s.host.CreatePull(ctx, ports.CreatePullInput{
		Title: "chore(chat-data): Update chat UI data",
		Head:  branch,
		Base:  s.cfg.BaseBranch,
		Body:  body,
	})
	if err != nil {
		return errs.Wrap(err, "open chat data pull")
	}

	s.addLabelBestEffort(ctx, pull.Number, s.cfg.AutoMergeLabel)
	logging.Info(ctx, "thread data published", slog.Int("pr", pull.Number), slog.Int("files", len(pending)))
	return nil
}

// contentChanged compares the rendered content hash against the file on the
// base branch. Absent files count as changed.
func (s *Service) contentChanged(ctx context.Context, path string, content []byte) (bool, error) {
	existing, err := s.host.GetFile(ctx, path, s.cfg.BaseBranch)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return true, nil
		}
		return false, errs.Wrapf(err, "look up %s", path)
	}

	return domainbridge.Fingerprint(existing.Content) != domainbridge.Fingerprint(content), nil
}

func (s *Service) pagesPullBody(title string, threads []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n### Threads\n", title)
	for _, name := range threads {
		fmt.Fprintf(&b, "- `%s`\n", name)
	}
	b.WriteString("\n")
	b.WriteString(s.idempotencyFooter(domainbridge.Fingerprint([]byte(strings.Join(threads, ","))), ""))
	return b.String()
}

func sortedThreadNames(threads map[string][]domainbridge.Message) []string {
	names := make([]string, 0, len(threads))
	for name := range threads {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
