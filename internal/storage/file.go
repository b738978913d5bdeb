package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	logx "bridgekit/pkg/logx"
)

// fileStore keeps each blob as one file.
//
// Layout (rooted in the afero filesystem):
//   - <working>/<fileId>
//   - <archive>/<stampName>
type fileStore struct {
	log logx.Logger
	cfg Config

	mu sync.Mutex

	fs         afero.Fs
	workingDir string
	archiveDir string
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	fsys := cfg.Fs
	if fsys == nil {
		root := strings.TrimSpace(cfg.Root)
		if root == "" {
			root = "."
		}
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, ioErr("open", "", err)
		}
		if err := afero.NewOsFs().MkdirAll(abs, 0o755); err != nil {
			return nil, ioErr("open", "", err)
		}
		fsys = afero.NewBasePathFs(afero.NewOsFs(), abs)
	}

	working := dirOrDefault(cfg.WorkingDir, DefaultWorkingDir)
	archive := dirOrDefault(cfg.ArchiveDir, DefaultArchiveDir)
	if working == archive {
		return nil, fmt.Errorf("%w: working and archive directories are both %q", ErrSameDir, working)
	}
	for _, dir := range []string{working, archive} {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return nil, ioErr("mkdir", dir, err)
		}
	}

	log.Debug("file store opened", logx.String("working", working), logx.String("archive", archive))
	return &fileStore{
		log:        log,
		cfg:        cfg,
		fs:         fsys,
		workingDir: working,
		archiveDir: archive,
	}, nil
}

func dirOrDefault(dir, def string) string {
	dir = strings.Trim(strings.TrimSpace(filepath.ToSlash(dir)), "/")
	if dir == "" || dir == "." {
		dir = def
	}
	return "/" + dir
}

func (s *fileStore) workPath(fileID string) string    { return path.Join(s.workingDir, fileID) }
func (s *fileStore) archivePath(fileID string) string { return path.Join(s.archiveDir, fileID) }

func (s *fileStore) isFile(p string) (bool, error) {
	fi, err := s.fs.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return !fi.IsDir(), nil
}

func (s *fileStore) Exists(fileID string) bool {
	if validateFileID(fileID) != nil {
		return false
	}
	ok, err := s.isFile(s.workPath(fileID))
	if err != nil {
		s.log.Debug("exists check failed", logx.String("file_id", fileID), logx.Err(err))
	}
	return ok
}

func (s *fileStore) Load(fileID string) (string, error) {
	if err := validateFileID(fileID); err != nil {
		return "", err
	}
	b, err := afero.ReadFile(s.fs, s.workPath(fileID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", ioErr("load", fileID, err)
	}
	return string(b), nil
}

func (s *fileStore) Save(fileID, content string) error {
	if err := validateFileID(fileID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := afero.WriteFile(s.fs, s.workPath(fileID), []byte(content), 0o644); err != nil {
		return ioErr("save", fileID, err)
	}
	s.log.Debug("blob saved", logx.String("file_id", fileID), logx.Int("bytes", len(content)))
	return nil
}

func (s *fileStore) Delete(fileID string) (bool, error) {
	if err := validateFileID(fileID); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.workPath(fileID)
	ok, err := s.isFile(p)
	if err != nil {
		return false, ioErr("delete", fileID, err)
	}
	if !ok {
		return false, nil
	}
	if err := s.fs.Remove(p); err != nil {
		return false, ioErr("delete", fileID, err)
	}
	s.log.Debug("blob deleted", logx.String("file_id", fileID))
	return true, nil
}

func (s *fileStore) ListFiles() ([]string, error) {
	return s.list("list", s.workingDir)
}

func (s *fileStore) ListArchive() ([]string, error) {
	return s.list("list archive", s.archiveDir)
}

func (s *fileStore) list(op, dir string) ([]string, error) {
	infos, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		return nil, ioErr(op, "", err)
	}
	out := make([]string, 0, len(infos))
	for _, fi := range infos {
		if fi.IsDir() {
			continue
		}
		out = append(out, fi.Name())
	}
	sort.Strings(out)
	return out, nil
}

func (s *fileStore) Archive(fileID string) (bool, error) {
	if err := validateFileID(fileID); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	src := s.workPath(fileID)
	ok, err := s.isFile(src)
	if err != nil {
		return false, ioErr("archive", fileID, err)
	}
	if !ok {
		return false, nil
	}

	stamp := StampName(fileID, s.cfg.now())
	// A previous entry under the plain fileId or the exact stamp is replaced.
	for _, name := range []string{fileID, stamp} {
		p := s.archivePath(name)
		exists, err := s.isFile(p)
		if err != nil {
			return false, ioErr("archive", fileID, err)
		}
		if exists {
			if err := s.fs.Remove(p); err != nil {
				return false, ioErr("archive", fileID, err)
			}
		}
	}

	if err := s.fs.Rename(src, s.archivePath(stamp)); err != nil {
		return false, ioErr("archive", fileID, err)
	}
	s.log.Debug("blob archived", logx.String("file_id", fileID), logx.String("stamp", stamp))
	return true, nil
}

func (s *fileStore) ModTime(fileID string) (time.Time, error) {
	if err := validateFileID(fileID); err != nil {
		return time.Time{}, err
	}
	fi, err := s.fs.Stat(s.workPath(fileID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return time.Time{}, ErrNotFound
		}
		return time.Time{}, ioErr("stat", fileID, err)
	}
	return fi.ModTime(), nil
}

func (s *fileStore) HasDefaultSettings(class, id string) bool {
	return s.Exists(SettingsFileID(class, id))
}

func (s *fileStore) LoadDefaultSettings(class, id string) (string, error) {
	return s.Load(SettingsFileID(class, id))
}

func (s *fileStore) SaveDefaultSettings(class, id, content string) error {
	return s.Save(SettingsFileID(class, id), content)
}

func (s *fileStore) Close() error { return nil }
