package storage

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// Backup creates a zip archive of the items and drafts collections under
// <dataDir>/backups and returns its path.
func (s *FileStore) Backup(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	backupDir := filepath.Join(s.dataDir, backupsDirName)
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return "", s.ioError("backup", err, "")
	}
	timestamp := time.Now().Format("20060102-150405")
	zipPath := filepath.Join(backupDir, "backup-"+timestamp+".zip")

	// Hold the read lock so the archive is a consistent snapshot
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	zipFile, err := os.Create(zipPath)
	if err != nil {
		return "", s.ioError("backup", err, "")
	}

	zipWriter := zip.NewWriter(zipFile)
	for _, dir := range []string{itemsDirName, draftsDirName} {
		if err := addDirToZip(zipWriter, filepath.Join(s.dataDir, dir), dir+"/"); err != nil {
			zipWriter.Close()
			zipFile.Close()
			os.Remove(zipPath)
			return "", s.ioError("backup", err, "")
		}
	}
	if err := zipWriter.Close(); err != nil {
		zipFile.Close()
		os.Remove(zipPath)
		return "", s.ioError("backup", err, "")
	}
	if err := zipFile.Close(); err != nil {
		os.Remove(zipPath)
		return "", s.ioError("backup", err, "")
	}

	log.Info().Str("path", zipPath).Msg("Backup created")
	return zipPath, nil
}

func addDirToZip(zw *zip.Writer, dir, prefix string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return err
	}
	for _, file := range files {
		if err := addFileToZip(zw, file, prefix+filepath.Base(file)); err != nil {
			return err
		}
	}
	return nil
}

func addFileToZip(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}
