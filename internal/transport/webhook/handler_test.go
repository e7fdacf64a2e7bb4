package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"minerva/internal/ports"
)

const testSecret = "pepper"

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

type recordingLog struct {
	records []ports.DeliveryRecord
}

func (r *recordingLog) Record(_ context.Context, rec ports.DeliveryRecord) error {
	r.records = append(r.records, rec)
	return nil
}

// newTestHandler wires a synchronous scheduler so deferred work finishes
// before the test inspects state.
func newTestHandler(t *testing.T, secret string, process ProcessFunc) (*Handler, *recordingLog) {
	t.Helper()
	log := &recordingLog{}
	h := NewHandler(context.Background(), secret, "to:claude", log, process)
	h.schedule = func(fn func()) { fn() }
	return h, log
}

func post(h *Handler, event string, signature string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("X-GitHub-Event", event)
	req.Header.Set("X-GitHub-Delivery", "delivery-1")
	if signature != "" {
		req.Header.Set("X-Hub-Signature-256", signature)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

const labelledPull = `{
	"action": "labeled",
	"pull_request": {
		"number": 7,
		"title": "Neue Nachricht",
		"labels": [{"name": "to:claude"}],
		"head": {"ref": "chats/hallo"}
	}
}`

func TestHandlerAcceptsValidSignature(t *testing.T) {
	var processed []PullRequestEvent
	h, log := newTestHandler(t, testSecret, func(_ context.Context, ev PullRequestEvent) error {
		processed = append(processed, ev)
		return nil
	})

	rec := post(h, "pull_request", sign(testSecret, []byte(labelledPull)), labelledPull)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if len(processed) != 1 {
		t.Fatalf("processed %d events, want 1", len(processed))
	}
	if processed[0].PullRequest.Number != 7 {
		t.Errorf("pr number = %d, want 7", processed[0].PullRequest.Number)
	}
	if !strings.Contains(rec.Body.String(), "Processing") {
		t.Errorf("body = %q, want Processing ack", rec.Body.String())
	}
	if len(log.records) != 1 || log.records[0].PRNumber != 7 {
		t.Errorf("delivery records = %+v, want one record for pr 7", log.records)
	}
}

func TestHandlerRejectsTamperedSignature(t *testing.T) {
	h, _ := newTestHandler(t, testSecret, func(context.Context, PullRequestEvent) error {
		t.Fatal("pipeline must not run for a rejected request")
		return nil
	})

	sig := sign(testSecret, []byte(labelledPull))
	flipped := []byte(sig)
	flipped[len(flipped)-1] ^= 0x01

	rec := post(h, "pull_request", string(flipped), labelledPull)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestHandlerRejectsMissingSignature(t *testing.T) {
	h, _ := newTestHandler(t, testSecret, func(context.Context, PullRequestEvent) error {
		t.Fatal("pipeline must not run for a rejected request")
		return nil
	})

	rec := post(h, "pull_request", "", labelledPull)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestHandlerSkipsVerificationWithoutSecret(t *testing.T) {
	var count int
	h, _ := newTestHandler(t, "", func(context.Context, PullRequestEvent) error {
		count++
		return nil
	})

	rec := post(h, "pull_request", "", labelledPull)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if count != 1 {
		t.Fatalf("processed %d events, want 1", count)
	}
}

func TestHandlerAnswersPing(t *testing.T) {
	h, _ := newTestHandler(t, testSecret, func(context.Context, PullRequestEvent) error {
		t.Fatal("ping must not enter the pipeline")
		return nil
	})

	body := `{"zen": "Keep it logically awesome."}`
	rec := post(h, "ping", sign(testSecret, []byte(body)), body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "pong") {
		t.Errorf("body = %q, want pong", rec.Body.String())
	}
}

func TestHandlerIgnoresOtherEvents(t *testing.T) {
	h, log := newTestHandler(t, testSecret, func(context.Context, PullRequestEvent) error {
		t.Fatal("issue_comment must not enter the pipeline")
		return nil
	})

	body := `{"action": "created"}`
	rec := post(h, "issue_comment", sign(testSecret, []byte(body)), body)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if len(log.records) != 0 {
		t.Errorf("delivery records = %+v, want none", log.records)
	}
}

func TestHandlerIgnoresUnlistedAction(t *testing.T) {
	h, _ := newTestHandler(t, testSecret, func(context.Context, PullRequestEvent) error {
		t.Fatal("closed action must not enter the pipeline")
		return nil
	})

	body := strings.Replace(labelledPull, `"labeled"`, `"closed"`, 1)
	rec := post(h, "pull_request", sign(testSecret, []byte(body)), body)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
}

func TestHandlerIgnoresMissingLabel(t *testing.T) {
	h, _ := newTestHandler(t, testSecret, func(context.Context, PullRequestEvent) error {
		t.Fatal("unlabelled pull must not enter the pipeline")
		return nil
	})

	body := strings.Replace(labelledPull, `"to:claude"`, `"enhancement"`, 1)
	rec := post(h, "pull_request", sign(testSecret, []byte(body)), body)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
}

func TestHandlerRejectsMalformedPayload(t *testing.T) {
	h, _ := newTestHandler(t, testSecret, func(context.Context, PullRequestEvent) error {
		t.Fatal("malformed payload must not enter the pipeline")
		return nil
	})

	body := `{"action": "labeled", "pull_request": {}}`
	rec := post(h, "pull_request", sign(testSecret, []byte(body)), body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandlerAcksDespitePipelineFailure(t *testing.T) {
	h, _ := newTestHandler(t, testSecret, func(context.Context, PullRequestEvent) error {
		return context.DeadlineExceeded
	})

	rec := post(h, "pull_request", sign(testSecret, []byte(labelledPull)), labelledPull)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestHandlerSurvivesPipelinePanic(t *testing.T) {
	h, _ := newTestHandler(t, testSecret, func(context.Context, PullRequestEvent) error {
		panic("boom")
	})

	rec := post(h, "pull_request", sign(testSecret, []byte(labelledPull)), labelledPull)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}
