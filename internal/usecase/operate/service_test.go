package operate

import (
	"context"
	"strings"
	"testing"
	"time"

	domainledger "minerva/internal/domain/ledger"
	"minerva/internal/ports"
	ledgeruc "minerva/internal/usecase/ledger"
)

const ledgerPath = "memory/context.json"

var fixedNow = time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

// fakeHost holds the ledger file plus any files written on work branches.
type fakeHost struct {
	ledger       []byte
	ledgerSHA    string
	ledgerWrites [][]byte

	files    map[string][]byte
	branches []string
	created  []ports.CreatePullInput
	nextPR   int
}

var _ ports.RepoHost = (*fakeHost)(nil)

func newFakeHost(ledger []byte) *fakeHost {
	return &fakeHost{
		ledger:    ledger,
		ledgerSHA: "rev-1",
		files:     map[string][]byte{},
		nextPR:    300,
	}
}

func (f *fakeHost) GetBranchHead(context.Context, string) (string, error) { return "base-sha", nil }

func (f *fakeHost) CreateBranch(_ context.Context, branch string, _ string) error {
	f.branches = append(f.branches, branch)
	return nil
}

func (f *fakeHost) GetFile(_ context.Context, path string, ref string) (ports.RemoteFile, error) {
	if path == ledgerPath {
		return ports.RemoteFile{Path: path, SHA: f.ledgerSHA, Content: f.ledger}, nil
	}
	content, ok := f.files[ref+":"+path]
	if !ok {
		return ports.RemoteFile{}, ports.ErrNotFound
	}
	return ports.RemoteFile{Path: path, SHA: "f-1", Content: content}, nil
}

func (f *fakeHost) ListDirectory(context.Context, string, string) ([]ports.FileRef, error) {
	return nil, ports.ErrNotFound
}

func (f *fakeHost) PutFile(_ context.Context, branch string, path string, content []byte, _ string, sha string) error {
	if path == ledgerPath {
		if sha != f.ledgerSHA {
			return ports.ErrStaleRevision
		}
		f.ledgerWrites = append(f.ledgerWrites, content)
		return nil
	}
	f.files[branch+":"+path] = content
	return nil
}

func (f *fakeHost) ListOpenPulls(context.Context) ([]ports.PullRequest, error) { return nil, nil }

func (f *fakeHost) ListPullFiles(context.Context, int) ([]ports.PullRequestFile, error) {
	return nil, nil
}

func (f *fakeHost) CreatePull(_ context.Context, input ports.CreatePullInput) (ports.PullRequest, error) {
	f.nextPR++
	f.created = append(f.created, input)
	return ports.PullRequest{Number: f.nextPR, Title: input.Title, HeadRef: input.Head}, nil
}

func (f *fakeHost) CreateIssueComment(context.Context, int, string) error { return nil }
func (f *fakeHost) AddLabels(context.Context, int, []string) error        { return nil }
func (f *fakeHost) RemoveLabel(context.Context, int, string) error        { return nil }

func ledgerBytes(t *testing.T, doc domainledger.Document) []byte {
	t.Helper()
	out, err := doc.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	return out
}

func setupService(host *fakeHost) *Service {
	ledgerSvc := ledgeruc.NewService(host, ledgeruc.Config{
		Path:       ledgerPath,
		BaseBranch: "main",
		OnConflict: ledgeruc.ConflictFail,
	})
	svc := NewService(host, ledgerSvc, Config{BaseBranch: "main"})
	svc.now = func() time.Time { return fixedNow }
	svc.newRunID = func() string { return "test-run-id" }
	return svc
}

func TestRunOncePicksUpTask(t *testing.T) {
	doc := domainledger.Document{
		Version: "1.0.0",
		Tasks: []domainledger.Task{
			{ID: "T-1", Title: "Implement webhook handler", Owner: "claude", Status: domainledger.StatusTodo},
		},
	}
	host := newFakeHost(ledgerBytes(t, doc))
	svc := setupService(host)

	result, err := svc.RunOnce(context.Background(), false)
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if !result.Processed || result.TaskID != "T-1" {
		t.Fatalf("result = %+v", result)
	}
	if result.Branch != "feat/implement-webhook-handler" {
		t.Errorf("branch = %s", result.Branch)
	}

	// A webhook-titled task generates the webhook doc.
	if _, ok := host.files["feat/implement-webhook-handler:docs/webhooks.md"]; !ok {
		t.Error("docs/webhooks.md was not written to the work branch")
	}

	if len(host.created) != 2 {
		t.Fatalf("created %d pulls, want task pull + ledger update", len(host.created))
	}
	taskPull := host.created[0]
	if taskPull.Title != "feat: Implement webhook handler" {
		t.Errorf("task pull title = %q", taskPull.Title)
	}
	for _, want := range []string{"## Summary", "## Task Details", "Run: minerva://runs/test-run-id", "Input: sha256:", "Tool: " + toolTag} {
		if !strings.Contains(taskPull.Body, want) {
			t.Errorf("task pull body missing %q", want)
		}
	}

	// The ledger advance records the task pull number.
	if len(host.ledgerWrites) != 1 {
		t.Fatalf("ledger writes = %d, want 1", len(host.ledgerWrites))
	}
	updated, err := domainledger.Decode(host.ledgerWrites[0])
	if err != nil {
		t.Fatalf("written ledger is invalid: %v", err)
	}
	if updated.Tasks[0].Status != domainledger.StatusInProgress {
		t.Errorf("task status = %s, want in_progress", updated.Tasks[0].Status)
	}
	if updated.Tasks[0].PRNumber != result.PRNumber {
		t.Errorf("task pr_number = %d, want %d", updated.Tasks[0].PRNumber, result.PRNumber)
	}
}

func TestRunOnceGeneratesImplementationFile(t *testing.T) {
	doc := domainledger.Document{
		Tasks: []domainledger.Task{
			{ID: "T-7", Title: "Improve docs", Owner: "claude", Status: domainledger.StatusTodo, Description: "More words"},
		},
	}
	host := newFakeHost(ledgerBytes(t, doc))
	svc := setupService(host)

	if _, err := svc.RunOnce(context.Background(), false); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	content, ok := host.files["feat/improve-docs:implementations/t-7.md"]
	if !ok {
		t.Fatal("implementation file was not written")
	}
	if !strings.Contains(string(content), "Improve docs") || !strings.Contains(string(content), "More words") {
		t.Errorf("implementation content = %s", content)
	}
}

func TestRunOnceDryRun(t *testing.T) {
	doc := domainledger.Document{
		Tasks: []domainledger.Task{
			{ID: "T-1", Title: "Implement webhook handler", Owner: "claude", Status: domainledger.StatusTodo},
		},
	}
	host := newFakeHost(ledgerBytes(t, doc))
	svc := setupService(host)

	result, err := svc.RunOnce(context.Background(), true)
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if !result.Processed || result.Branch != "feat/implement-webhook-handler" {
		t.Fatalf("result = %+v", result)
	}
	if len(host.created) != 0 || len(host.branches) != 0 || len(host.ledgerWrites) != 0 {
		t.Error("dry run wrote to the repository")
	}
}

func TestRunOnceNoPendingTasks(t *testing.T) {
	doc := domainledger.Document{
		Tasks: []domainledger.Task{
			{ID: "T-1", Title: "Done already", Owner: "claude", Status: domainledger.StatusCompleted},
			{ID: "T-2", Title: "Someone else's", Owner: "chatgpt", Status: domainledger.StatusTodo},
		},
	}
	host := newFakeHost(ledgerBytes(t, doc))
	svc := setupService(host)

	result, err := svc.RunOnce(context.Background(), false)
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if result.Processed {
		t.Error("RunOnce() processed a task it does not own")
	}
	if len(host.created) != 0 {
		t.Errorf("created %d pulls, want none", len(host.created))
	}
}

func TestRunOnceHonorsConfiguredOwner(t *testing.T) {
	doc := domainledger.Document{
		Tasks: []domainledger.Task{
			{ID: "T-1", Title: "Not ours", Owner: "claude", Status: domainledger.StatusTodo},
			{ID: "T-2", Title: "Improve docs", Owner: "operator-bot", Status: domainledger.StatusTodo},
		},
	}
	host := newFakeHost(ledgerBytes(t, doc))
	ledgerSvc := ledgeruc.NewService(host, ledgeruc.Config{
		Path:       ledgerPath,
		BaseBranch: "main",
		OnConflict: ledgeruc.ConflictFail,
	})
	svc := NewService(host, ledgerSvc, Config{BaseBranch: "main", Owner: "operator-bot"})
	svc.now = func() time.Time { return fixedNow }
	svc.newRunID = func() string { return "test-run-id" }

	result, err := svc.RunOnce(context.Background(), false)
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if !result.Processed || result.TaskID != "T-2" {
		t.Fatalf("RunOnce() = %+v, want task T-2 processed", result)
	}
}
