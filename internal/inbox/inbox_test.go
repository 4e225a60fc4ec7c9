package inbox

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/dreamland/internal/testutil"
	"github.com/starford/dreamland/internal/worldservice"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testInbox(t *testing.T) (*Inbox, *worldservice.Service) {
	t.Helper()
	svc := worldservice.New(testutil.TestDB(t), worldservice.WithLogger(quietLogger()))
	in, err := New(testutil.InboxDir(t), svc, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	return in, svc
}

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func dreamCount(t *testing.T, svc *worldservice.Service) int {
	t.Helper()
	_, total, err := svc.ListDreams(context.Background(), 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	return total
}

func TestIsJournal(t *testing.T) {
	for name, want := range map[string]bool{
		"dream.md":       true,
		"night/2.TXT":    true,
		"photo.png":      false,
		".dream.md.swp":  false,
		".hidden.md":     false,
		"notes.markdown": false,
	} {
		if got := IsJournal(name); got != want {
			t.Errorf("IsJournal(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestSync_ImportsOnce(t *testing.T) {
	in, svc := testInbox(t)
	ctx := context.Background()
	write(t, in.Root(), "a.md", "---\ndate: 2024-01-15\n---\nI was at home.\n")
	write(t, in.Root(), "week/b.txt", "The ocean again.")
	write(t, in.Root(), "cover.png", "not a dream")
	write(t, in.Root(), "blank.md", "\n")

	files, err := in.List()
	if err != nil || len(files) != 3 || files[0].Path != "a.md" || files[2].Path != "week/b.txt" {
		t.Fatalf("List = %+v, %v", files, err)
	}

	n, err := in.Sync(ctx)
	if err != nil || n != 2 {
		t.Fatalf("Sync = %d, %v; want 2", n, err)
	}
	n, err = in.Sync(ctx)
	if err != nil || n != 0 {
		t.Fatalf("second Sync = %d, %v; want 0", n, err)
	}

	write(t, in.Root(), "copy-of-a.md", "---\r\ndate: 2024-01-15\r\n---\r\nI was at home.\r\n")
	if n, _ := in.Sync(ctx); n != 0 {
		t.Errorf("copy with CRLF endings imported %d dreams", n)
	}
	if got := dreamCount(t, svc); got != 2 {
		t.Errorf("dreams = %d, want 2", got)
	}
}

func TestWatch_ImportsNewFiles(t *testing.T) {
	in, svc := testInbox(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- in.Watch(ctx) }()
	time.Sleep(100 * time.Millisecond)

	write(t, in.Root(), "tonight.md", "A forest at night.")
	testutil.Eventually(t, 5*time.Second, func() bool { return dreamCount(t, svc) == 1 })

	write(t, in.Root(), "later/nested.txt", "A city of glass.")
	testutil.Eventually(t, 5*time.Second, func() bool { return dreamCount(t, svc) == 2 })

	write(t, in.Root(), "tonight.md", "A forest at night.\n")
	time.Sleep(2 * settle)
	if got := dreamCount(t, svc); got != 2 {
		t.Errorf("rewrite with same content created a dream: %d", got)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not stop")
	}
}
