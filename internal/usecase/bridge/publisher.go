package bridge

import (
	"context"
	"errors"
	"log/slog"

	"minerva/internal/bootstrap/logging"
	"minerva/internal/errs"
	"minerva/internal/ports"
)

// ensureBranch creates branch at the base tip. An existing branch is a
// successful no-op, so repeated runs target the same branch.
func (s *Service) ensureBranch(ctx context.Context, branch string) error {
	head, err := s.host.GetBranchHead(ctx, s.cfg.BaseBranch)
	if err != nil {
		return errs.Wrapf(err, "resolve base branch %s", s.cfg.BaseBranch)
	}

	if err := s.host.CreateBranch(ctx, branch, head); err != nil {
		if errors.Is(err, ports.ErrAlreadyExists) {
			logging.Info(ctx, "branch already exists", slog.String("branch", branch))
			return nil
		}
		return errs.Wrapf(err, "create branch %s", branch)
	}
	return nil
}

// putFile writes create-or-update: an existing file's revision is looked up
// first (absence signals a create). A concurrent revision change is logged
// and folded into a no-op rather than retried.
func (s *Service) putFile(ctx context.Context, branch string, path string, content []byte, message string) error {
	sha := ""
	existing, err := s.host.GetFile(ctx, path, branch)
	switch {
	case err == nil:
		sha = existing.SHA
	case errors.Is(err, ports.ErrNotFound):
		// New file.
	default:
		return errs.Wrapf(err, "look up %s@%s", path, branch)
	}

	if err := s.host.PutFile(ctx, branch, path, content, message, sha); err != nil {
		if errors.Is(err, ports.ErrStaleRevision) {
			logging.Warn(
				ctx,
				"concurrent revision change, skipping write",
				slog.String("path", path),
				slog.String("branch", branch),
			)
			return nil
		}
		return errs.Wrapf(err, "write %s@%s", path, branch)
	}
	return nil
}

// addLabelBestEffort is fire-and-forget label mutation.
func (s *Service) addLabelBestEffort(ctx context.Context, number int, label string) {
	if err := s.host.AddLabels(ctx, number, []string{label}); err != nil {
		logging.Warn(
			ctx,
			"add label failed",
			slog.Int("pr", number),
			slog.String("label", label),
			slog.Any("err", errs.Loggable(err)),
		)
	}
}

// removeLabelTolerant treats an already-absent label as success.
func (s *Service) removeLabelTolerant(ctx context.Context, number int, label string) error {
	if err := s.host.RemoveLabel(ctx, number, label); err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil
		}
		return errs.Wrapf(err, "remove label %q from %d", label, number)
	}
	return nil
}
