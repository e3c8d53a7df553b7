package bot

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"sketchbot/internal/adapter/repo"
	"sketchbot/internal/domain"
	"sketchbot/internal/generation"
	"sketchbot/internal/prompt"
)

type recordingReplier struct {
	replies []generation.Reply
}

func (r *recordingReplier) Send(ctx context.Context, reply generation.Reply) error {
	r.replies = append(r.replies, reply)
	return nil
}

func (r *recordingReplier) lastContent(t *testing.T) string {
	t.Helper()
	if len(r.replies) == 0 {
		t.Fatalf("no reply sent")
	}
	return r.replies[len(r.replies)-1].Content
}

type recordingNotifier struct {
	userID  string
	content string
}

func (n *recordingNotifier) DirectMessage(ctx context.Context, userID, content string) error {
	n.userID = userID
	n.content = content
	return nil
}

type runnerFunc func(spec domain.JobSpec) (domain.JobResult, error)

func (f runnerFunc) Run(ctx context.Context, spec domain.JobSpec) (domain.JobResult, error) {
	return f(spec)
}

func newTestHandler(ledger domain.Ledger, runner generation.Runner, httpClient *http.Client) (*Handler, *recordingNotifier) {
	notifier := &recordingNotifier{}
	h := &Handler{
		Ledger:       ledger,
		Orchestrator: generation.NewOrchestrator(ledger, runner, generation.CostModel{CreditsPerSecond: 1}, zerolog.Nop()),
		Dispatcher:   generation.NewDispatcher(httpClient, zerolog.Nop()),
		Parser: prompt.Parser{
			MaxGenerations: 4,
			Seed:           func() int64 { return 100 },
		},
		Expander: prompt.Expander{Library: emptyLibrary{}, Logger: zerolog.Nop()},
		Notifier: notifier,
		AdminID:  "admin",
		Logger:   zerolog.Nop(),
	}
	return h, notifier
}

type emptyLibrary struct{}

func (emptyLibrary) Lines(name string) ([]string, bool) { return nil, false }

func TestBalanceCommand(t *testing.T) {
	h, _ := newTestHandler(repo.NewLedgerMem(100), nil, nil)
	replier := &recordingReplier{}

	if err := h.Handle(context.Background(), Command{Name: "balance", UserID: "alice"}, replier); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if got := replier.lastContent(t); got != "You currently have 100 credits." {
		t.Fatalf("reply = %q", got)
	}
}

func TestCreditCommandRequiresAdmin(t *testing.T) {
	ledger := repo.NewLedgerMem(100)
	h, _ := newTestHandler(ledger, nil, nil)
	replier := &recordingReplier{}

	cmd := Command{Name: "credit", UserID: "mallory", Args: "50 bob"}
	if err := h.Handle(context.Background(), cmd, replier); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if got := replier.lastContent(t); !strings.Contains(got, "permission") {
		t.Fatalf("reply = %q, want permission denial", got)
	}
	if balance, _ := ledger.GetBalance(context.Background(), "bob"); balance != 100 {
		t.Fatalf("bob balance = %d, want untouched 100", balance)
	}
}

func TestCreditCommandRejectsNonPositiveAmount(t *testing.T) {
	h, _ := newTestHandler(repo.NewLedgerMem(100), nil, nil)
	replier := &recordingReplier{}

	cmd := Command{Name: "credit", UserID: "admin", Args: "-5 bob"}
	if err := h.Handle(context.Background(), cmd, replier); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if got := replier.lastContent(t); !strings.Contains(got, "positive number") {
		t.Fatalf("reply = %q", got)
	}
}

func TestCreditCommandGrantsCredits(t *testing.T) {
	ledger := repo.NewLedgerMem(100)
	h, _ := newTestHandler(ledger, nil, nil)
	replier := &recordingReplier{}

	cmd := Command{Name: "credit", UserID: "admin", Args: "50 <@bob>"}
	if err := h.Handle(context.Background(), cmd, replier); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if got := replier.lastContent(t); !strings.Contains(got, "total balance of 150 credits") {
		t.Fatalf("reply = %q", got)
	}
	if balance, _ := ledger.GetBalance(context.Background(), "bob"); balance != 150 {
		t.Fatalf("bob balance = %d, want 150", balance)
	}
}

func TestGiftCommandTransfersAndNotifies(t *testing.T) {
	ledger := repo.NewLedgerMem(100)
	h, notifier := newTestHandler(ledger, nil, nil)
	replier := &recordingReplier{}

	cmd := Command{Name: "gift", UserID: "alice", Mention: "@alice", Args: "30 bob"}
	if err := h.Handle(context.Background(), cmd, replier); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if got := replier.lastContent(t); !strings.Contains(got, "gifted 30 credits") || !strings.Contains(got, "70 credits") {
		t.Fatalf("reply = %q", got)
	}
	if notifier.userID != "bob" || !strings.Contains(notifier.content, "received 30 credits from @alice") {
		t.Fatalf("notification = %q to %q", notifier.content, notifier.userID)
	}
	if balance, _ := ledger.GetBalance(context.Background(), "bob"); balance != 130 {
		t.Fatalf("bob balance = %d, want 130", balance)
	}
}

func TestGiftCommandInsufficientBalance(t *testing.T) {
	ledger := repo.NewLedgerMem(10)
	h, notifier := newTestHandler(ledger, nil, nil)
	replier := &recordingReplier{}

	cmd := Command{Name: "gift", UserID: "alice", Args: "30 bob"}
	if err := h.Handle(context.Background(), cmd, replier); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if got := replier.lastContent(t); !strings.Contains(got, "not have enough credits to gift") {
		t.Fatalf("reply = %q", got)
	}
	if notifier.userID != "" {
		t.Fatalf("notification sent despite failed transfer")
	}
	if balance, _ := ledger.GetBalance(context.Background(), "alice"); balance != 10 {
		t.Fatalf("alice balance = %d, want untouched 10", balance)
	}
}

func TestSketchCommandRequiresAttachment(t *testing.T) {
	h, _ := newTestHandler(repo.NewLedgerMem(100), runnerFunc(func(spec domain.JobSpec) (domain.JobResult, error) {
		t.Error("runner called without attachments")
		return domain.JobResult{}, nil
	}), nil)
	replier := &recordingReplier{}

	cmd := Command{Name: "sketch", UserID: "alice", Args: "cat"}
	if err := h.Handle(context.Background(), cmd, replier); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if got := replier.lastContent(t); !strings.Contains(got, "attach at least one image") {
		t.Fatalf("reply = %q", got)
	}
}

func TestSketchCommandInsufficientBalance(t *testing.T) {
	h, _ := newTestHandler(repo.NewLedgerMem(0), runnerFunc(func(spec domain.JobSpec) (domain.JobResult, error) {
		t.Error("runner called without credits")
		return domain.JobResult{}, nil
	}), nil)
	replier := &recordingReplier{}

	cmd := Command{
		Name:           "sketch",
		UserID:         "alice",
		Args:           "cat",
		AttachmentURLs: []string{"https://example.com/face.png"},
	}
	if err := h.Handle(context.Background(), cmd, replier); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if got := replier.lastContent(t); !strings.Contains(got, "current balance is 0 credits") {
		t.Fatalf("reply = %q", got)
	}
}

func TestSketchCommandDeliversImages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "webp-bytes")
	}))
	defer server.Close()

	ledger := repo.NewLedgerMem(100)
	runner := runnerFunc(func(spec domain.JobSpec) (domain.JobResult, error) {
		return domain.JobResult{
			Index:       spec.Index,
			Seed:        spec.Seed,
			Status:      domain.JobStatusSucceeded,
			Outputs:     []string{server.URL + "/out.webp"},
			PredictTime: 5,
		}, nil
	})
	h, _ := newTestHandler(ledger, runner, server.Client())
	replier := &recordingReplier{}

	cmd := Command{
		Name:           "sketch",
		UserID:         "alice",
		Mention:        "@alice",
		Args:           "cat --n 2",
		AttachmentURLs: []string{"https://example.com/face.png"},
	}
	if err := h.Handle(context.Background(), cmd, replier); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if len(replier.replies) != 2 {
		t.Fatalf("replies = %d, want 2 images", len(replier.replies))
	}
	if string(replier.replies[0].FileData) != "webp-bytes" {
		t.Fatalf("file data = %q", replier.replies[0].FileData)
	}
	if !strings.Contains(replier.replies[1].Content, "5/90") {
		t.Fatalf("caption = %q, want cumulative balance 5/90", replier.replies[1].Content)
	}
	if balance, _ := ledger.GetBalance(context.Background(), "alice"); balance != 90 {
		t.Fatalf("balance = %d, want 90", balance)
	}
}

func TestMergeAttachmentsCurrentFirst(t *testing.T) {
	merged := MergeAttachments([]string{"a", "b"}, []string{"c"})
	if len(merged) != 3 || merged[0] != "a" || merged[1] != "b" || merged[2] != "c" {
		t.Fatalf("merged = %#v, want current attachments first", merged)
	}
}

func TestParseAmountAndUser(t *testing.T) {
	cases := []struct {
		args   string
		amount int64
		user   string
		ok     bool
	}{
		{"50 bob", 50, "bob", true},
		{"50 <@12345>", 50, "12345", true},
		{"-5 bob", -5, "bob", true},
		{"abc bob", 0, "", false},
		{"50", 0, "", false},
		{"", 0, "", false},
	}
	for _, tc := range cases {
		amount, user, ok := parseAmountAndUser(tc.args)
		if amount != tc.amount || user != tc.user || ok != tc.ok {
			t.Fatalf("parseAmountAndUser(%q) = %d,%q,%v want %d,%q,%v",
				tc.args, amount, user, ok, tc.amount, tc.user, tc.ok)
		}
	}
}
