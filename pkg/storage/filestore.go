package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"moveout/pkg/errors"
	"moveout/pkg/metrics"
	"moveout/pkg/models"
	"moveout/pkg/utils"
)

const (
	itemsDirName     = "items"
	draftsDirName    = "drafts"
	corruptedDirName = "corrupted"
	backupsDirName   = "backups"
	schemaFileName   = "schema.json"
	draftFileName    = "current.json"
)

type schemaMarker struct {
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FileStore keeps one JSON file per item under <dataDir>/items and the draft
// slot at <dataDir>/drafts/current.json. Nothing is cached in memory.
type FileStore struct {
	dataDir          string
	itemsDir         string
	draftsDir        string
	mutex            sync.RWMutex
	watcher          *fsnotify.Watcher
	fileModTimes     map[string]time.Time
	pendingDeletions map[string]bool // Track app-initiated deletions
}

// OpenFileStore opens (creating on first run) a file store rooted at dataDir.
// Opening the same directory again is safe.
func OpenFileStore(dataDir string) (*FileStore, error) {
	s := &FileStore{
		dataDir:          dataDir,
		itemsDir:         filepath.Join(dataDir, itemsDirName),
		draftsDir:        filepath.Join(dataDir, draftsDirName),
		fileModTimes:     make(map[string]time.Time),
		pendingDeletions: make(map[string]bool),
	}

	if err := s.ensureLayout(); err != nil {
		return nil, err
	}
	return s, nil
}

// DataDir returns the root directory
func (s *FileStore) DataDir() string {
	return s.dataDir
}

func (s *FileStore) ensureLayout() error {
	for _, dir := range []string{s.itemsDir, s.draftsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return s.ioError("open", err, "")
		}
	}

	path := filepath.Join(s.dataDir, schemaFileName)
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// first run
	case err != nil:
		return s.ioError("open", err, "")
	default:
		var marker schemaMarker
		if err := json.Unmarshal(data, &marker); err != nil {
			return errors.ErrCorruptRecord.WithCause(err).WithContext("file", schemaFileName)
		}
		if marker.Version > SchemaVersion {
			return errors.ErrSchemaTooNew.
				WithContext("found", marker.Version).
				WithContext("supported", SchemaVersion)
		}
		if marker.Version == SchemaVersion {
			return nil
		}
		log.Info().Int("from", marker.Version).Int("to", SchemaVersion).Msg("Upgrading store schema")
	}

	data, err = json.MarshalIndent(schemaMarker{Version: SchemaVersion, UpdatedAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		return s.ioError("open", err, "")
	}
	if err := writeFileAtomic(path, data); err != nil {
		return s.ioError("open", err, "")
	}
	return nil
}

func (s *FileStore) itemPath(id string) string {
	return filepath.Join(s.itemsDir, id+".json")
}

func (s *FileStore) draftPath() string {
	return filepath.Join(s.draftsDir, draftFileName)
}

func (s *FileStore) ioError(op string, err error, id string) *errors.AppError {
	metrics.ObserveStoreError(op)
	appErr := errors.ErrStoreIO.WithCause(err).WithContext("op", op)
	if id != "" {
		appErr = appErr.WithContext("id", id)
	}
	return appErr
}

func checkID(id string) error {
	if !utils.IsValidItemID(id) {
		return errors.ErrInvalidItem.WithContext("id", id)
	}
	return nil
}

// Put writes an item to disk, replacing any previous version
func (s *FileStore) Put(ctx context.Context, item *models.SaleItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkID(item.ID); err != nil {
		return err
	}

	data, err := json.MarshalIndent(item, "", "  ")
	if err != nil {
		return s.ioError("put", err, item.ID)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.writeItemLocked(item.ID, data)
}

func (s *FileStore) writeItemLocked(id string, data []byte) error {
	path := s.itemPath(id)
	if err := writeFileAtomic(path, data); err != nil {
		return s.ioError("put", err, id)
	}

	// Update our modification time tracking to prevent processing our own write
	if fileInfo, err := os.Stat(path); err == nil {
		s.fileModTimes[path] = fileInfo.ModTime()
	}
	return nil
}

// Get retrieves an item by ID
func (s *FileStore) Get(ctx context.Context, id string) (*models.SaleItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkID(id); err != nil {
		return nil, errors.ErrItemNotFound.WithContext("id", id)
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.readItem(s.itemPath(id), id)
}

func (s *FileStore) readItem(path, id string) (*models.SaleItem, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.ErrItemNotFound.WithContext("id", id)
	}
	if err != nil {
		return nil, s.ioError("get", err, id)
	}

	var item models.SaleItem
	if err := json.Unmarshal(data, &item); err != nil {
		metrics.ObserveStoreError("decode")
		return nil, errors.ErrCorruptRecord.WithCause(err).WithContext("id", id)
	}
	return &item, nil
}

// GetAll reads every item file. A single unreadable record fails the whole
// call; Quarantine moves it aside.
func (s *FileStore) GetAll(ctx context.Context) ([]*models.SaleItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	entries, err := os.ReadDir(s.itemsDir)
	if err != nil {
		return nil, s.ioError("get_all", err, "")
	}

	items := make([]*models.SaleItem, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !utils.IsValidItemFilename(entry.Name()) {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		item, err := s.readItem(filepath.Join(s.itemsDir, entry.Name()), id)
		if errors.Is(err, errors.ErrItemNotFound) {
			// removed between ReadDir and ReadFile
			continue
		}
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// Update applies fn to the stored item and writes the result back under one lock
func (s *FileStore) Update(ctx context.Context, id string, fn func(*models.SaleItem) error) (*models.SaleItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkID(id); err != nil {
		return nil, errors.ErrItemNotFound.WithContext("id", id)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	item, err := s.readItem(s.itemPath(id), id)
	if err != nil {
		return nil, err
	}
	if err := fn(item); err != nil {
		return nil, err
	}
	item.ID = id

	data, err := json.MarshalIndent(item, "", "  ")
	if err != nil {
		return nil, s.ioError("update", err, id)
	}
	if err := s.writeItemLocked(id, data); err != nil {
		return nil, err
	}
	return item, nil
}

// Delete removes an item file; a missing file is not an error
func (s *FileStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !utils.IsValidItemID(id) {
		return nil
	}

	path := s.itemPath(id)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	// Mark this deletion as app-initiated. A missing file produces no
	// event, so the mark must not outlive a failed remove.
	s.pendingDeletions[id] = true
	delete(s.fileModTimes, path)

	if err := os.Remove(path); err != nil {
		delete(s.pendingDeletions, id)
		if os.IsNotExist(err) {
			return nil
		}
		return s.ioError("delete", err, id)
	}
	if err := syncDir(s.itemsDir); err != nil {
		return s.ioError("delete", err, id)
	}
	return nil
}

// PutDraft overwrites the single draft slot
func (s *FileStore) PutDraft(ctx context.Context, item *models.SaleItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(item, "", "  ")
	if err != nil {
		return s.ioError("put_draft", err, item.ID)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := writeFileAtomic(s.draftPath(), data); err != nil {
		return s.ioError("put_draft", err, item.ID)
	}
	return nil
}

// GetLatestDraft returns the draft slot content or nil
func (s *FileStore) GetLatestDraft(ctx context.Context) (*models.SaleItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	data, err := os.ReadFile(s.draftPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, s.ioError("get_draft", err, "")
	}

	var item models.SaleItem
	if err := json.Unmarshal(data, &item); err != nil {
		metrics.ObserveStoreError("decode")
		return nil, errors.ErrCorruptRecord.WithCause(err).WithContext("file", draftFileName)
	}
	return &item, nil
}

// ClearDrafts removes every file in the drafts collection, including stale
// entries left by older versions
func (s *FileStore) ClearDrafts(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	entries, err := os.ReadDir(s.draftsDir)
	if err != nil {
		return s.ioError("clear_drafts", err, "")
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(s.draftsDir, entry.Name())); err != nil && !os.IsNotExist(err) {
			return s.ioError("clear_drafts", err, "")
		}
	}
	if err := syncDir(s.draftsDir); err != nil {
		return s.ioError("clear_drafts", err, "")
	}
	return nil
}

// Quarantine moves an item file to the corrupted folder
func (s *FileStore) Quarantine(id string) error {
	if err := checkID(id); err != nil {
		return err
	}

	corruptedDir := filepath.Join(s.dataDir, corruptedDirName)
	if err := os.MkdirAll(corruptedDir, 0755); err != nil {
		return s.ioError("quarantine", err, id)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	oldPath := s.itemPath(id)
	newPath := filepath.Join(corruptedDir, id+".json")
	s.pendingDeletions[id] = true
	if err := os.Rename(oldPath, newPath); err != nil {
		delete(s.pendingDeletions, id)
		if os.IsNotExist(err) {
			return errors.ErrItemNotFound.WithContext("id", id)
		}
		return s.ioError("quarantine", err, id)
	}
	delete(s.fileModTimes, oldPath)

	log.Warn().Str("id", id).Str("path", newPath).Msg("Moved unreadable item to corrupted folder")
	return nil
}

// Watch starts reporting external changes to the items collection.
// Calling it more than once is a no-op.
func (s *FileStore) Watch(onChange func(Change)) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.watcher != nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return s.ioError("watch", err, "")
	}
	if err := watcher.Add(s.itemsDir); err != nil {
		watcher.Close()
		return s.ioError("watch", err, "")
	}
	s.watcher = watcher

	go s.watchLoop(watcher, onChange)
	return nil
}

func (s *FileStore) watchLoop(watcher *fsnotify.Watcher, onChange func(Change)) {
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			filename := filepath.Base(event.Name)
			if !utils.IsValidItemFilename(filename) {
				continue
			}

			var change *Change
			switch {
			case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
				change = s.handleFileWrite(event.Name)
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				change = s.handleFileRemove(event.Name)
			}
			if change != nil && onChange != nil {
				log.Debug().Str("id", change.ID).Str("op", string(change.Op)).Msg("External item change")
				onChange(*change)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("Item watcher error")
		}
	}
}

// handleFileWrite reports a write unless it is our own
func (s *FileStore) handleFileWrite(path string) *Change {
	fileInfo, err := os.Stat(path)
	if err != nil {
		// gone again, or a temp file we renamed away
		return nil
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	lastModTime, exists := s.fileModTimes[path]
	currentModTime := fileInfo.ModTime()

	// If we already have this modification time, skip (probably our own write)
	if exists && !currentModTime.After(lastModTime) {
		return nil
	}
	s.fileModTimes[path] = currentModTime

	return &Change{ID: strings.TrimSuffix(filepath.Base(path), ".json"), Op: ChangeWrite}
}

// handleFileRemove reports a removal unless the app initiated it
func (s *FileStore) handleFileRemove(path string) *Change {
	id := strings.TrimSuffix(filepath.Base(path), ".json")

	s.mutex.Lock()
	defer s.mutex.Unlock()

	wasAppDeleted := s.pendingDeletions[id]
	delete(s.pendingDeletions, id)
	delete(s.fileModTimes, path)

	if wasAppDeleted {
		return nil
	}
	return &Change{ID: id, Op: ChangeRemove}
}

// Close stops the file watcher
func (s *FileStore) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.watcher != nil {
		err := s.watcher.Close()
		s.watcher = nil
		return err
	}
	return nil
}

// writeFileAtomic writes data to a temp file in the same directory, fsyncs it
// and renames it over path, so readers see either the old or the new content.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return syncDir(dir)
}

// syncDir flushes directory metadata so a rename survives a crash.
// Windows cannot fsync directories.
func syncDir(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
