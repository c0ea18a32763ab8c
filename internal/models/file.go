package models

// FileEntry represents one item of a directory listing
type FileEntry struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	IsDirectory bool   `json:"is_directory"`
	Size        int64  `json:"size"`
	Permissions string `json:"permissions"`
	Modified    string `json:"modified"`
}

// FileListing is returned by GET /api/files
type FileListing struct {
	CurrentPath string      `json:"current_path"`
	Files       []FileEntry `json:"files"`
}
