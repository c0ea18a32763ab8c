package services

import (
	"bufio"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/high001/webpanel/internal/config"
	"github.com/high001/webpanel/internal/models"
)

const DefaultLogLines = 100

var (
	ErrInvalidLogFile = errors.New("invalid log file")
	ErrLogNotFound    = errors.New("log file not found")
)

// LogService lists and tails the host's log files
type LogService struct {
	dir      string
	allowed  map[string]bool
	fallback string
	maxLines int
}

func NewLogService(cfg config.LogsConfig) *LogService {
	ls := &LogService{
		dir:      filepath.Clean(cfg.Dir),
		allowed:  make(map[string]bool, len(cfg.Allowed)),
		maxLines: cfg.MaxLines,
	}
	for _, f := range cfg.Allowed {
		ls.allowed[f] = true
	}
	if len(cfg.Allowed) > 0 {
		ls.fallback = cfg.Allowed[0]
	}
	if ls.maxLines < 1 {
		ls.maxLines = 1000
	}
	return ls
}

// List returns the regular, uncompressed files of the log directory, newest first
func (ls *LogService) List() ([]models.LogFile, error) {
	entries, err := os.ReadDir(ls.dir)
	if err != nil {
		return nil, classifyFSError(err, ErrPathNotFound)
	}

	type logWithTime struct {
		models.LogFile
		mod int64
	}
	found := make([]logWithTime, 0, len(entries))
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".gz") {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		found = append(found, logWithTime{
			LogFile: models.LogFile{
				Name:     entry.Name(),
				Path:     filepath.Join(ls.dir, entry.Name()),
				Size:     info.Size(),
				Modified: info.ModTime().Format(timestampLayout),
			},
			mod: info.ModTime().UnixNano(),
		})
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].mod > found[j].mod
	})
	files := make([]models.LogFile, len(found))
	for i, f := range found {
		files[i] = f.LogFile
	}
	return files, nil
}

// ClampLines bounds a requested tail length to [1, maxLines]
func (ls *LogService) ClampLines(n int) int {
	return max(1, min(n, ls.maxLines))
}

func (ls *LogService) permitted(file string) bool {
	if ls.allowed[file] {
		return true
	}
	if strings.Contains(file, "..") {
		return false
	}
	return strings.HasPrefix(file, ls.dir+"/")
}

// Tail returns the last lines of file, oldest first. An empty file yields an
// empty, non-nil slice.
func (ls *LogService) Tail(file string, lines int) (*models.LogTail, error) {
	if file == "" {
		file = ls.fallback
	}
	if !ls.permitted(file) {
		return nil, ErrInvalidLogFile
	}
	lines = ls.ClampLines(lines)

	f, err := os.Open(file)
	if err != nil {
		return nil, classifyFSError(err, ErrLogNotFound)
	}
	defer f.Close()

	tail, err := lastLines(f, lines)
	if err != nil {
		return nil, classifyFSError(err, ErrLogNotFound)
	}
	return &models.LogTail{Logs: tail, File: file, TotalLines: len(tail)}, nil
}

// lastLines keeps a ring of the final n lines of r
func lastLines(r io.Reader, n int) ([]string, error) {
	ring := make([]string, 0, n)
	start := 0
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			line = strings.TrimRight(line, "\r\n")
			if len(ring) < n {
				ring = append(ring, line)
			} else {
				ring[start] = line
				start = (start + 1) % n
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	out := make([]string, 0, len(ring))
	out = append(out, ring[start:]...)
	out = append(out, ring[:start]...)
	return out, nil
}
