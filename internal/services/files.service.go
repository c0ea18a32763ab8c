package services

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/renameio/v2"

	"github.com/high001/webpanel/internal/config"
	"github.com/high001/webpanel/internal/models"
)

var (
	ErrPathRequired = errors.New("path required")
	ErrInvalidPath  = errors.New("invalid path")
	ErrPathNotFound = errors.New("path does not exist")
	ErrNotDirectory = errors.New("path is not a directory")
	ErrFileNotFound = errors.New("file not found")
	ErrNoFile       = errors.New("no file selected")
	ErrFileTooLarge = errors.New("file too large")
)

const timestampLayout = "2006-01-02T15:04:05"

// FileService exposes the part of the host filesystem below the configured roots
type FileService struct {
	roots         []string
	defaultPath   string
	uploadDefault string
	maxUpload     int64
}

func NewFileService(cfg config.FilesConfig) *FileService {
	roots := make([]string, 0, len(cfg.Roots))
	for _, r := range cfg.Roots {
		roots = append(roots, filepath.Clean(r))
	}
	return &FileService{
		roots:         roots,
		defaultPath:   filepath.Clean(cfg.DefaultPath),
		uploadDefault: filepath.Clean(cfg.UploadDefault),
		maxUpload:     cfg.MaxUploadMB << 20,
	}
}

func (fsvc *FileService) withinRoots(p string) bool {
	for _, root := range fsvc.roots {
		if p == root {
			return true
		}
		rel, err := filepath.Rel(root, p)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, "../") {
			return true
		}
	}
	return false
}

// ResolveListPath maps a requested directory to the one actually listed:
// "/" and paths inside a root are kept, anything else (including any
// traversal) falls back to the default path.
func (fsvc *FileService) ResolveListPath(p string) string {
	if p == "" || p == "/" {
		return "/"
	}
	if strings.Contains(p, "..") || !filepath.IsAbs(p) {
		return fsvc.defaultPath
	}
	p = filepath.Clean(p)
	if !fsvc.withinRoots(p) {
		return fsvc.defaultPath
	}
	return p
}

// List returns the entries of the resolved directory, directories first
func (fsvc *FileService) List(p string) (*models.FileListing, error) {
	dir := fsvc.ResolveListPath(p)

	info, err := os.Stat(dir)
	if err != nil {
		return nil, classifyFSError(err, ErrPathNotFound)
	}
	if !info.IsDir() {
		return nil, ErrNotDirectory
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, classifyFSError(err, ErrPathNotFound)
	}

	files := make([]models.FileEntry, 0, len(entries))
	for _, entry := range entries {
		itemPath := filepath.Join(dir, entry.Name())
		stat, err := os.Stat(itemPath)
		if err != nil {
			// dangling symlinks and unreadable entries
			continue
		}
		files = append(files, models.FileEntry{
			Name:        entry.Name(),
			Path:        itemPath,
			IsDirectory: stat.IsDir(),
			Size:        stat.Size(),
			Permissions: fmt.Sprintf("%03o", stat.Mode().Perm()),
			Modified:    stat.ModTime().Format(timestampLayout),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].IsDirectory != files[j].IsDirectory {
			return files[i].IsDirectory
		}
		return strings.ToLower(files[i].Name) < strings.ToLower(files[j].Name)
	})
	return &models.FileListing{CurrentPath: dir, Files: files}, nil
}

// Open opens a regular file below the roots for download
func (fsvc *FileService) Open(p string) (*os.File, fs.FileInfo, error) {
	if p == "" {
		return nil, nil, ErrPathRequired
	}
	if strings.Contains(p, "..") || !filepath.IsAbs(p) {
		return nil, nil, ErrInvalidPath
	}
	p = filepath.Clean(p)
	if !fsvc.withinRoots(p) {
		return nil, nil, ErrAccessDenied
	}

	f, err := os.Open(p)
	if err != nil {
		return nil, nil, classifyFSError(err, ErrFileNotFound)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, classifyFSError(err, ErrFileNotFound)
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, nil, ErrFileNotFound
	}
	return f, info, nil
}

// UploadDir returns the directory an upload lands in
func (fsvc *FileService) UploadDir(dir string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return fsvc.uploadDefault, nil
	}
	if strings.Contains(dir, "..") || !filepath.IsAbs(dir) {
		return "", ErrInvalidPath
	}
	dir = filepath.Clean(dir)
	if !fsvc.withinRoots(dir) {
		return "", ErrAccessDenied
	}
	return dir, nil
}

// Save writes content atomically to dir/filename and returns the final path.
// A partially received upload never replaces an existing file.
func (fsvc *FileService) Save(dir, filename string, content io.Reader) (string, error) {
	dir, err := fsvc.UploadDir(dir)
	if err != nil {
		return "", err
	}
	name := filepath.Base(filepath.Clean("/" + filename))
	if filename == "" || name == "/" || name == "." || name == ".." {
		return "", ErrNoFile
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", classifyFSError(err, ErrPathNotFound)
	}

	target := filepath.Join(dir, name)
	pending, err := renameio.NewPendingFile(target, renameio.WithPermissions(0o644), renameio.WithExistingPermissions())
	if err != nil {
		return "", classifyFSError(err, ErrPathNotFound)
	}
	defer pending.Cleanup()

	var src io.Reader = content
	if fsvc.maxUpload > 0 {
		src = io.LimitReader(content, fsvc.maxUpload+1)
	}
	n, err := io.Copy(pending, src)
	if err != nil {
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	if fsvc.maxUpload > 0 && n > fsvc.maxUpload {
		return "", ErrFileTooLarge
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return "", classifyFSError(err, ErrPathNotFound)
	}
	return target, nil
}

// MaxUploadBytes is the largest accepted upload, 0 when unlimited
func (fsvc *FileService) MaxUploadBytes() int64 {
	return fsvc.maxUpload
}

func classifyFSError(err, notFound error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return notFound
	case errors.Is(err, fs.ErrPermission):
		return ErrAccessDenied
	}
	return err
}
