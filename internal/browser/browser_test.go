package browser

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/high001/webpanel/internal/models"
	"github.com/high001/webpanel/internal/poller"
)

type fakeRemote struct {
	tree     map[string][]models.FileEntry
	redirect map[string]string
	listed   []string
	files    map[string]string
	uploads  map[string]string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		tree: map[string][]models.FileEntry{
			"/": {{Name: "home", Path: "/home", IsDirectory: true}, {Name: "tmp", Path: "/tmp", IsDirectory: true}},
			"/home": {
				{Name: "alice", Path: "/home/alice", IsDirectory: true},
				{Name: "notes.txt", Path: "/home/notes.txt", Size: 12},
			},
			"/home/alice": {{Name: "todo.md", Path: "/home/alice/todo.md", Size: 4}},
		},
		redirect: map[string]string{},
		files:    map[string]string{"/home/notes.txt": "hello, world"},
		uploads:  map[string]string{},
	}
}

func (f *fakeRemote) ListFiles(_ context.Context, dir string) (*models.FileListing, error) {
	f.listed = append(f.listed, dir)
	if to, ok := f.redirect[dir]; ok {
		dir = to
	}
	return &models.FileListing{CurrentPath: dir, Files: f.tree[dir]}, nil
}

func (f *fakeRemote) Download(_ context.Context, remotePath string, w io.Writer) (int64, error) {
	body, ok := f.files[remotePath]
	if !ok {
		return 0, errors.New("File not found")
	}
	n, err := io.Copy(w, bytes.NewBufferString(body))
	return n, err
}

func (f *fakeRemote) Upload(_ context.Context, remoteDir, filename string, content io.Reader) (string, error) {
	b, err := io.ReadAll(content)
	if err != nil {
		return "", err
	}
	f.uploads[remoteDir+"/"+filename] = string(b)
	return "File uploaded successfully", nil
}

func run(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, run(c)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

func newTestBrowser(start string) (*Browser, *fakeRemote, *poller.Poller) {
	remote := newFakeRemote()
	p := poller.New(poller.WithSchedule(func(time.Duration, tea.Msg) tea.Cmd { return nil }))
	return New(remote, p, start), remote, p
}

// settle feeds every message produced by cmd back into the poller and browser
func settle(b *Browser, p *poller.Poller, cmd tea.Cmd) {
	for _, msg := range run(cmd) {
		res, next := p.Update(msg)
		b.Apply(res)
		settle(b, p, next)
	}
}

func TestNavigateIntoAndBackUp(t *testing.T) {
	b, remote, p := newTestBrowser("")
	assert.Equal(t, "/home", b.Path())

	settle(b, p, b.Activate())
	require.True(t, b.Listed())
	require.Len(t, b.Entries(), 2)
	assert.Equal(t, "alice", b.Entries()[0].Name)

	settle(b, p, b.Enter(0))
	assert.Equal(t, "/home/alice", b.Path())
	require.Len(t, b.Entries(), 1)

	settle(b, p, b.Up())
	assert.Equal(t, "/home", b.Path())
	assert.Equal(t, []string{"/home", "/home/alice", "/home"}, remote.listed)
}

func TestEntriesKeepAgentOrder(t *testing.T) {
	b, remote, p := newTestBrowser("/home")
	remote.tree["/home"] = []models.FileEntry{
		{Name: "Docs", Path: "/home/Docs", IsDirectory: true},
		{Name: "alpha.txt", Path: "/home/alpha.txt"},
		{Name: "Zeta.txt", Path: "/home/Zeta.txt"},
	}

	settle(b, p, b.Activate())
	var names []string
	for _, e := range b.Entries() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"Docs", "alpha.txt", "Zeta.txt"}, names)
}

func TestUpAtRootIsNoop(t *testing.T) {
	b, remote, p := newTestBrowser("/")
	settle(b, p, b.Activate())

	assert.Nil(t, b.Up())
	assert.Equal(t, "/", b.Path())
	assert.Equal(t, []string{"/"}, remote.listed)
}

func TestEnterFileDoesNothing(t *testing.T) {
	b, _, p := newTestBrowser("/home")
	settle(b, p, b.Activate())

	assert.Nil(t, b.Enter(1)) // notes.txt
	assert.Nil(t, b.Enter(7))
	assert.Equal(t, "/home", b.Path())
}

func TestOpenRelativeAndDotDot(t *testing.T) {
	b, _, p := newTestBrowser("/home")
	settle(b, p, b.Open("alice"))
	assert.Equal(t, "/home/alice", b.Path())

	settle(b, p, b.Open("../.."))
	assert.Equal(t, "/", b.Path())
}

func TestListingForPreviousPathIsDiscarded(t *testing.T) {
	b, _, p := newTestBrowser("/home")

	slow := b.Activate()
	fast := b.Open("/home/alice")

	settle(b, p, fast)
	settle(b, p, slow)

	assert.Equal(t, "/home/alice", b.Path())
	require.Len(t, b.Entries(), 1)
	assert.Equal(t, "todo.md", b.Entries()[0].Name)
}

func TestAgentRedirectDoesNotMoveNavigation(t *testing.T) {
	b, remote, p := newTestBrowser("/etc")
	remote.redirect["/etc"] = "/home"

	settle(b, p, b.Activate())
	assert.Equal(t, "/etc", b.Path())
	assert.Equal(t, "/home", b.Resolved())
}

func TestRefreshKeepsPath(t *testing.T) {
	b, remote, p := newTestBrowser("/home")
	settle(b, p, b.Activate())

	remote.tree["/home"] = append(remote.tree["/home"], models.FileEntry{Name: "new.log", Path: "/home/new.log"})
	settle(b, p, b.Refresh())

	assert.Equal(t, "/home", b.Path())
	assert.Len(t, b.Entries(), 3)
}

func TestUploadRefreshesOnlyCurrentPath(t *testing.T) {
	b, remote, p := newTestBrowser("/home")
	settle(b, p, b.Activate())

	local := filepath.Join(t.TempDir(), "report.txt")
	require.NoError(t, os.WriteFile(local, []byte("data"), 0o600))

	msgs := run(b.Upload(local, "/tmp"))
	require.Len(t, msgs, 1)
	up := msgs[0].(UploadedMsg)
	require.NoError(t, up.Err)
	assert.Equal(t, "data", remote.uploads["/tmp/report.txt"])
	assert.Nil(t, b.Uploaded(up), "upload elsewhere does not refresh")

	msgs = run(b.Upload(local, ""))
	up = msgs[0].(UploadedMsg)
	assert.Equal(t, "/home", up.Dir)
	settle(b, p, b.Uploaded(up))
	assert.Equal(t, []string{"/home", "/home"}, remote.listed)
	assert.Equal(t, "/home", b.Path())
}

func TestFailedUploadDoesNotRefresh(t *testing.T) {
	b, _, p := newTestBrowser("/home")
	settle(b, p, b.Activate())
	assert.Nil(t, b.Uploaded(UploadedMsg{Dir: "/home", Err: errors.New("denied")}))
}

func TestDownloadWritesLocalFile(t *testing.T) {
	b, _, _ := newTestBrowser("/home")
	dir := t.TempDir()

	msgs := run(b.Download("/home/notes.txt", dir))
	require.Len(t, msgs, 1)
	got := msgs[0].(DownloadedMsg)
	require.NoError(t, got.Err)
	assert.Equal(t, int64(12), got.Bytes)

	body, err := os.ReadFile(filepath.Join(dir, "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello, world", string(body))
	assert.Equal(t, "/home", b.Path())
}

func TestFailedDownloadLeavesNoFile(t *testing.T) {
	b, _, _ := newTestBrowser("/home")
	dir := t.TempDir()

	got := run(b.Download("/home/missing.bin", dir))[0].(DownloadedMsg)
	assert.Error(t, got.Err)
	_, err := os.Stat(filepath.Join(dir, "missing.bin"))
	assert.True(t, os.IsNotExist(err))
}
