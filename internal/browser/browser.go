// Package browser holds the navigation state of the remote file browser.
//
// The current path changes only through Open, Up and Enter. Listings are
// fetched through a one-shot poller subscription that is rebound to the new
// path on every navigation, so a listing requested for a previous directory
// can never replace the entries of the current one.
package browser

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/renameio/v2"

	"github.com/high001/webpanel/internal/models"
	"github.com/high001/webpanel/internal/poller"
)

// Home is where browsing starts
const Home = "/home"

// Remote is the part of the agent client the browser needs. *client.Client
// implements it.
type Remote interface {
	ListFiles(ctx context.Context, dir string) (*models.FileListing, error)
	Download(ctx context.Context, remotePath string, w io.Writer) (int64, error)
	Upload(ctx context.Context, remoteDir, filename string, content io.Reader) (string, error)
}

// DownloadedMsg reports a finished download
type DownloadedMsg struct {
	Remote string
	Local  string
	Bytes  int64
	Err    error
}

// UploadedMsg reports a finished upload
type UploadedMsg struct {
	Dir      string
	Filename string
	Message  string
	Err      error
}

type Browser struct {
	remote   Remote
	poller   *poller.Poller
	path     string
	resolved string
	entries  []models.FileEntry
	listed   bool
}

func New(remote Remote, p *poller.Poller, start string) *Browser {
	b := &Browser{
		remote: remote,
		poller: p,
		path:   clean(start, Home),
	}
	p.Subscribe(models.ResourceFiles, 0, b.fetcher(b.path))
	return b
}

func clean(p, base string) string {
	if p == "" {
		return base
	}
	if !path.IsAbs(p) {
		p = path.Join(base, p)
	}
	return path.Clean(p)
}

func (b *Browser) fetcher(dir string) poller.FetchFunc {
	remote := b.remote
	return func(ctx context.Context) (any, error) {
		return remote.ListFiles(ctx, dir)
	}
}

// Path returns the directory being browsed
func (b *Browser) Path() string {
	return b.path
}

// Resolved returns the directory the agent reported for the last listing.
// It differs from Path when the agent redirected the request.
func (b *Browser) Resolved() string {
	if b.resolved == "" {
		return b.path
	}
	return b.resolved
}

// Entries returns the current listing. The slice must not be modified.
func (b *Browser) Entries() []models.FileEntry {
	return b.entries
}

// Listed reports whether a listing for the current path has arrived
func (b *Browser) Listed() bool {
	return b.listed
}

// Open navigates to p (absolute, or relative to the current path) and
// requests its listing.
func (b *Browser) Open(p string) tea.Cmd {
	b.path = clean(p, b.path)
	b.resolved = ""
	b.entries = nil
	b.listed = false

	b.poller.Rebind(models.ResourceFiles, b.fetcher(b.path))
	if !b.poller.Active(models.ResourceFiles) {
		return b.poller.Activate(models.ResourceFiles)
	}
	return b.poller.Refresh(models.ResourceFiles)
}

// Activate starts browsing at the current path
func (b *Browser) Activate() tea.Cmd {
	return b.Open(b.path)
}

// Deactivate abandons any outstanding listing
func (b *Browser) Deactivate() {
	b.poller.Deactivate(models.ResourceFiles)
}

// Up opens the parent directory. It does nothing at the root.
func (b *Browser) Up() tea.Cmd {
	if b.path == "/" {
		return nil
	}
	return b.Open(path.Dir(b.path))
}

// Enter opens the i-th entry when it is a directory
func (b *Browser) Enter(i int) tea.Cmd {
	if i < 0 || i >= len(b.entries) || !b.entries[i].IsDirectory {
		return nil
	}
	e := b.entries[i]
	if e.Path != "" {
		return b.Open(e.Path)
	}
	return b.Open(path.Join(b.path, e.Name))
}

// Refresh lists the current path again without changing it
func (b *Browser) Refresh() tea.Cmd {
	return b.poller.Refresh(models.ResourceFiles)
}

// Apply takes a poller result for the files resource. It reports whether the
// entries changed.
func (b *Browser) Apply(res poller.Result) bool {
	if res.Resource != models.ResourceFiles || !res.Published {
		return false
	}
	listing, ok := res.Snapshot.(*models.FileListing)
	if !ok || listing == nil {
		return false
	}
	// agent order is kept as sent
	entries := make([]models.FileEntry, len(listing.Files))
	copy(entries, listing.Files)
	b.entries = entries
	b.resolved = listing.CurrentPath
	b.listed = true
	return true
}

// Download copies remotePath into localDir. The local file appears
// atomically once the transfer is complete.
func (b *Browser) Download(remotePath, localDir string) tea.Cmd {
	remote := b.remote
	local := filepath.Join(localDir, path.Base(remotePath))
	return func() tea.Msg {
		msg := DownloadedMsg{Remote: remotePath, Local: local}
		f, err := renameio.NewPendingFile(local, renameio.WithPermissions(0o644))
		if err != nil {
			msg.Err = err
			return msg
		}
		defer f.Cleanup()

		msg.Bytes, msg.Err = remote.Download(context.Background(), remotePath, f)
		if msg.Err == nil {
			msg.Err = f.CloseAtomicallyReplace()
		}
		return msg
	}
}

// Upload sends the local file to remoteDir (the current path when empty).
// Navigation is left untouched.
func (b *Browser) Upload(localPath, remoteDir string) tea.Cmd {
	remote := b.remote
	dir := clean(remoteDir, b.path)
	name := filepath.Base(localPath)
	return func() tea.Msg {
		msg := UploadedMsg{Dir: dir, Filename: name}
		f, err := os.Open(localPath)
		if err != nil {
			msg.Err = err
			return msg
		}
		defer f.Close()
		msg.Message, msg.Err = remote.Upload(context.Background(), dir, name, f)
		return msg
	}
}

// Uploaded refreshes the listing when a successful upload landed in the
// directory being browsed.
func (b *Browser) Uploaded(msg UploadedMsg) tea.Cmd {
	if msg.Err != nil || path.Clean(msg.Dir) != b.path {
		return nil
	}
	return b.Refresh()
}
