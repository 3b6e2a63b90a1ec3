// Package archive moves finished run directories out of the way and packs
// them into portable .tar.xz snapshots.
package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ulikunitz/xz"
)

// ArchiveRun moves runDir into an "archive" directory next to it, named
// run-<timestamp>, and returns the new path.
func ArchiveRun(runDir string) (string, error) {
	if _, err := os.Stat(runDir); os.IsNotExist(err) {
		return "", fmt.Errorf("run directory does not exist: %s", runDir)
	}

	archiveDir := filepath.Join(filepath.Dir(runDir), "archive")
	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	now := time.Now()
	archivePath := filepath.Join(archiveDir, "run-"+now.Format("20060102-150405"))
	if _, err := os.Stat(archivePath); err == nil {
		archivePath = filepath.Join(archiveDir, "run-"+now.Format("20060102-150405.000000"))
	}

	if err := os.Rename(runDir, archivePath); err != nil {
		return "", fmt.Errorf("failed to archive run directory: %w", err)
	}
	return archivePath, nil
}

// Snapshot writes every regular file under runDir into a tar.xz archive at
// dest. Paths inside the archive are relative to runDir.
func Snapshot(runDir, dest string) error {
	info, err := os.Stat(runDir)
	if err != nil {
		return fmt.Errorf("run directory does not exist: %s", runDir)
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", runDir)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	file, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}
	defer file.Close()

	xzWriter, err := xz.NewWriter(file)
	if err != nil {
		return fmt.Errorf("failed to create xz writer: %w", err)
	}
	tarWriter := tar.NewWriter(xzWriter)

	absDest, _ := filepath.Abs(dest)
	walkErr := filepath.Walk(runDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		if abs, _ := filepath.Abs(path); abs == absDest {
			return nil
		}

		rel, err := filepath.Rel(runDir, path)
		if err != nil {
			return err
		}
		return addFile(tarWriter, path, filepath.ToSlash(rel), info)
	})
	if walkErr != nil {
		return fmt.Errorf("failed to write snapshot: %w", walkErr)
	}

	if err := tarWriter.Close(); err != nil {
		return fmt.Errorf("failed to finish tar stream: %w", err)
	}
	if err := xzWriter.Close(); err != nil {
		return fmt.Errorf("failed to finish xz stream: %w", err)
	}
	return file.Close()
}

func addFile(tw *tar.Writer, path, name string, info os.FileInfo) error {
	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	header.Name = name

	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(tw, f)
	return err
}

// Restore unpacks a snapshot into destDir. Entries that would escape
// destDir are skipped.
func Restore(snapshot, destDir string) error {
	file, err := os.Open(snapshot)
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer file.Close()

	xzReader, err := xz.NewReader(file)
	if err != nil {
		return fmt.Errorf("failed to create xz reader: %w", err)
	}
	tarReader := tar.NewReader(xzReader)

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			return nil
		}
		if errors.Is(err, tar.ErrInsecurePath) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to read tar header: %w", err)
		}

		clean := filepath.Clean(filepath.FromSlash(header.Name))
		if escapesRoot(clean) {
			continue
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}

		target := filepath.Join(destDir, clean)
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		out, err := os.Create(target)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", clean, err)
		}
		if _, err := io.Copy(out, tarReader); err != nil {
			out.Close()
			return fmt.Errorf("failed to write %s: %w", clean, err)
		}
		if err := out.Close(); err != nil {
			return err
		}
	}
}

// escapesRoot reports whether a cleaned entry name points outside the
// directory it is extracted into.
func escapesRoot(clean string) bool {
	return filepath.IsAbs(clean) || clean == ".." ||
		strings.HasPrefix(clean, ".."+string(filepath.Separator))
}
