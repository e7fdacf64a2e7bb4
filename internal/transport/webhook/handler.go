package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"minerva/internal/bootstrap/logging"
	"minerva/internal/errs"
	"minerva/internal/ports"
)

var errMalformedPayload = errors.New("malformed webhook payload")

// allowedActions is the pull_request action allow-list; everything else is
// acknowledged with 204 and dropped.
var allowedActions = map[string]struct{}{
	"opened":      {},
	"labeled":     {},
	"synchronize": {},
	"reopened":    {},
}

// ProcessFunc runs the deferred pipeline for an accepted event.
type ProcessFunc func(ctx context.Context, ev PullRequestEvent) error

// Handler is the webhook gateway. Per request: verify signature over the raw
// body, classify, then either reject, drop with 204, or fast-ack 200 and
// schedule the real work. Nothing after the ack may surface on the HTTP
// layer: the platform retries aggressively on non-2xx and would duplicate
// work.
type Handler struct {
	secret  string
	label   string
	process ProcessFunc

	deliveries ports.DeliveryLog

	// baseCtx parents deferred work so it outlives the request context.
	baseCtx context.Context

	// schedule defaults to `go fn()`; tests inject a synchronous variant.
	schedule func(fn func())
	now      func() time.Time
}

func NewHandler(baseCtx context.Context, secret string, label string, deliveries ports.DeliveryLog, process ProcessFunc) *Handler {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Handler{
		secret:     secret,
		label:      label,
		process:    process,
		deliveries: deliveries,
		baseCtx:    baseCtx,
		schedule:   func(fn func()) { go fn() },
		now:        time.Now,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
		return
	}

	deliveryID := strings.TrimSpace(r.Header.Get("X-GitHub-Delivery"))
	event := strings.TrimSpace(r.Header.Get("X-GitHub-Event"))
	ctx := logging.WithDelivery(logging.WithAttrs(r.Context(), slog.String("component", "webhook.gateway")), deliveryID)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "failed to read payload"})
		return
	}

	if err := verifySignature(ctx, h.secret, r.Header.Get("X-Hub-Signature-256"), body); err != nil {
		logging.Warn(ctx, "signature verification failed", slog.Any("err", errs.Loggable(err)))
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: err.Error()})
		return
	}

	logging.Info(ctx, "webhook received", slog.String("event", event))

	// Connectivity probe: reply and terminate.
	if event == "ping" {
		var ping pingEvent
		_ = json.Unmarshal(body, &ping)
		logging.Info(ctx, "ping received", slog.String("zen", ping.Zen))
		writeJSON(w, http.StatusOK, map[string]string{"message": "pong"})
		return
	}

	if event != "pull_request" {
		logging.Info(ctx, "ignoring event", slog.String("event", event))
		w.WriteHeader(http.StatusNoContent)
		return
	}

	ev, err := parsePullRequestEvent(body)
	if err != nil {
		logging.Warn(ctx, "malformed payload", slog.Any("err", errs.Loggable(err)))
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid payload"})
		return
	}

	if _, ok := allowedActions[ev.Action]; !ok {
		logging.Info(ctx, "ignoring action", slog.String("action", ev.Action))
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if !ev.hasLabel(h.label) {
		logging.Info(ctx, "required label missing", slog.Int("pr", ev.PullRequest.Number), slog.String("label", h.label))
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.recordDelivery(ctx, deliveryID, event, ev)

	// Fast-ack before any downstream work.
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Processing",
		"pr":       ev.PullRequest.Number,
		"delivery": deliveryID,
	})

	h.schedule(func() {
		h.runDeferred(deliveryID, ev)
	})
}

// runDeferred executes the pipeline after the response has been sent. Every
// error is caught and logged with elapsed duration; none may propagate.
func (h *Handler) runDeferred(deliveryID string, ev PullRequestEvent) {
	ctx := logging.WithDelivery(
		logging.WithAttrs(h.baseCtx, slog.String("component", "webhook.worker"), slog.Int("pr", ev.PullRequest.Number)),
		deliveryID,
	)
	start := h.now()

	defer func() {
		if rec := recover(); rec != nil {
			logging.Error(
				ctx,
				"deferred processing panicked",
				slog.Any("panic", rec),
				slog.Duration("elapsed", h.now().Sub(start)),
			)
		}
	}()

	err := h.process(ctx, ev)
	elapsed := h.now().Sub(start)
	if err != nil {
		logging.Error(ctx, "deferred processing failed", slog.Any("err", errs.Loggable(err)), slog.Duration("elapsed", elapsed))
		return
	}
	logging.Info(ctx, "deferred processing completed", slog.Duration("elapsed", elapsed))
}

func (h *Handler) recordDelivery(ctx context.Context, deliveryID string, event string, ev PullRequestEvent) {
	if h.deliveries == nil {
		return
	}
	err := h.deliveries.Record(ctx, ports.DeliveryRecord{
		DeliveryID: deliveryID,
		Event:      event,
		Action:     ev.Action,
		PRNumber:   ev.PullRequest.Number,
		ReceivedAt: h.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		logging.Warn(ctx, "record delivery failed", slog.Any("err", errs.Loggable(err)))
	}
}

// verifySignature compares the expected HMAC-SHA256 over the raw body with
// the received header in constant time. An empty secret skips verification;
// that reduced-security mode is logged.
func verifySignature(ctx context.Context, secret string, signatureHeader string, payload []byte) error {
	normalizedSecret := strings.TrimSpace(secret)
	if normalizedSecret == "" {
		logging.Warn(ctx, "webhook secret not set, signature verification disabled")
		return nil
	}

	signature := strings.TrimSpace(signatureHeader)
	if signature == "" {
		return errors.New("missing X-Hub-Signature-256")
	}

	const prefix = "sha256="
	if len(signature) <= len(prefix) || !strings.EqualFold(signature[:len(prefix)], prefix) {
		return errors.New("invalid X-Hub-Signature-256 format")
	}

	decoded, err := hex.DecodeString(strings.TrimSpace(signature[len(prefix):]))
	if err != nil {
		return errors.New("invalid X-Hub-Signature-256 digest")
	}

	mac := hmac.New(sha256.New, []byte(normalizedSecret))
	if _, err := mac.Write(payload); err != nil {
		return errs.Wrap(err, "compute webhook signature")
	}

	if !hmac.Equal(decoded, mac.Sum(nil)) {
		return errors.New("invalid X-Hub-Signature-256")
	}
	return nil
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}
