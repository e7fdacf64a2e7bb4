package bridge

import (
	"context"
	"errors"
	"strings"

	domainbridge "minerva/internal/domain/bridge"
	"minerva/internal/errs"
	"minerva/internal/ports"
)

const messageSuffix = ".json"

// ListInbound lists inbound message files on the base branch. A directory
// that was never populated is the same as an empty one.
func (s *Service) ListInbound(ctx context.Context) ([]ports.FileRef, error) {
	return s.listMessages(ctx, s.cfg.InboxDir)
}

// ListOutbound lists outbound reply files on the base branch.
func (s *Service) ListOutbound(ctx context.Context) ([]ports.FileRef, error) {
	return s.listMessages(ctx, s.cfg.OutboxDir)
}

func (s *Service) listMessages(ctx context.Context, dir string) ([]ports.FileRef, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}

	entries, err := s.host.ListDirectory(ctx, dir, s.cfg.BaseBranch)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, nil
		}
		return nil, errs.Wrapf(err, "list mailbox %s", dir)
	}

	refs := make([]ports.FileRef, 0, len(entries))
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name, messageSuffix) {
			continue
		}
		refs = append(refs, entry)
	}
	return refs, nil
}

// ReadMessage reads and validates one mailbox file at the given ref.
func (s *Service) ReadMessage(ctx context.Context, path string, ref string) (domainbridge.Message, error) {
	if ctx == nil {
		return domainbridge.Message{}, errors.New("context is required")
	}

	file, err := s.host.GetFile(ctx, path, ref)
	if err != nil {
		return domainbridge.Message{}, errs.Wrapf(err, "read message %s@%s", path, ref)
	}

	msg, err := domainbridge.ParseMessage(file.Content)
	if err != nil {
		return domainbridge.Message{}, errs.Wrapf(err, "parse message %s", path)
	}
	return msg, nil
}
