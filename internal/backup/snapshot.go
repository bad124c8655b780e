package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Manager owns the backup destination and the snapshot lifecycle.
type Manager struct {
	dest          string
	allowlist     []string
	retentionDays int
	log           zerolog.Logger
	now           func() time.Time
}

// NewManager returns a Manager writing to dest. The allowlist names the
// configuration files and directories a snapshot copies; missing entries
// are skipped with a log line, not treated as errors.
func NewManager(dest string, allowlist []string, retentionDays int, log zerolog.Logger) *Manager {
	return &Manager{
		dest:          dest,
		allowlist:     allowlist,
		retentionDays: retentionDays,
		log:           log,
		now:           time.Now,
	}
}

// ensureDest creates the destination directory if needed.
func (m *Manager) ensureDest() error {
	if err := os.MkdirAll(m.dest, 0o755); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDestinationMissing, m.dest, err)
	}
	return nil
}

// Snapshot copies the allowlist into a timestamped staging directory,
// compresses it to a single archive, and prunes old snapshots. The staging
// directory is removed only after compression succeeds: a failed
// compression leaves the copied files on disk for manual recovery.
func (m *Manager) Snapshot(ctx context.Context) (*Record, error) {
	if err := m.ensureDest(); err != nil {
		return nil, err
	}

	ts := m.now()
	id := ts.Format(timestampLayout)
	staging := filepath.Join(m.dest, configPrefix+id)
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create staging dir: %v", ErrBackupWrite, err)
	}

	copied := 0
	for _, src := range m.allowlist {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBackupWrite, err)
		}
		if err := copyTree(src, filepath.Join(staging, filepath.Base(src))); err != nil {
			if os.IsNotExist(err) {
				m.log.Info().Str("path", src).Msg("allowlist entry absent, skipping")
				continue
			}
			return nil, fmt.Errorf("%w: copy %s: %v", ErrBackupWrite, src, err)
		}
		copied++
	}
	if copied == 0 {
		_ = os.RemoveAll(staging)
		return nil, fmt.Errorf("%w: no allowlist entries present", ErrBackupWrite)
	}

	archive := filepath.Join(m.dest, configPrefix+id+configSuffix)
	if err := compressDir(ctx, staging, archive); err != nil {
		// Leave the staging directory intact; the copied files are the
		// operator's salvage path.
		m.log.Error().Err(err).Str("staging", staging).Msg("compression failed, staging directory kept")
		return nil, fmt.Errorf("%w: compress: %v", ErrBackupWrite, err)
	}
	if err := os.RemoveAll(staging); err != nil {
		m.log.Warn().Err(err).Str("staging", staging).Msg("could not remove staging directory")
	}

	info, err := os.Stat(archive)
	if err != nil {
		return nil, fmt.Errorf("%w: stat archive: %v", ErrBackupWrite, err)
	}
	rec := &Record{ID: id, Kind: KindConfig, Path: archive, SizeBytes: info.Size(), CreatedAt: ts}
	m.log.Info().Str("archive", archive).Int64("bytes", rec.SizeBytes).Msg("config snapshot written")

	m.Prune()
	return rec, nil
}

// Prune deletes config snapshots strictly older than the retention window,
// keyed by filename timestamp. Full images are never pruned; they are rare,
// operator-invoked artifacts.
func (m *Manager) Prune() {
	if m.retentionDays <= 0 {
		return
	}
	cutoff := m.now().AddDate(0, 0, -m.retentionDays)

	entries, err := os.ReadDir(m.dest)
	if err != nil {
		m.log.Warn().Err(err).Msg("retention scan failed")
		return
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, configPrefix) || !strings.HasSuffix(name, configSuffix) {
			continue
		}
		raw := strings.TrimSuffix(strings.TrimPrefix(name, configPrefix), configSuffix)
		created, err := time.ParseInLocation(timestampLayout, raw, time.Local)
		if err != nil {
			continue
		}
		if !created.Before(cutoff) {
			continue
		}
		path := filepath.Join(m.dest, name)
		if err := os.Remove(path); err != nil {
			m.log.Warn().Err(err).Str("archive", path).Msg("retention delete failed")
			continue
		}
		m.log.Info().Str("archive", path).Msg("pruned expired snapshot")
	}
}

// Records lists the artifacts currently present at the destination.
func (m *Manager) Records() ([]Record, error) {
	entries, err := os.ReadDir(m.dest)
	if err != nil {
		return nil, fmt.Errorf("backup: list destination: %w", err)
	}
	var records []Record
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		var kind Kind
		var raw string
		switch {
		case strings.HasPrefix(name, configPrefix) && strings.HasSuffix(name, configSuffix):
			kind = KindConfig
			raw = strings.TrimSuffix(strings.TrimPrefix(name, configPrefix), configSuffix)
		case strings.HasPrefix(name, imagePrefix) && strings.HasSuffix(name, imageSuffix):
			kind = KindFullImage
			raw = strings.TrimSuffix(strings.TrimPrefix(name, imagePrefix), imageSuffix)
		default:
			continue
		}
		created, err := time.ParseInLocation(timestampLayout, raw, time.Local)
		if err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		records = append(records, Record{
			ID:        raw,
			Kind:      kind,
			Path:      filepath.Join(m.dest, name),
			SizeBytes: info.Size(),
			CreatedAt: created,
		})
	}
	return records, nil
}

// copyTree copies a file or directory tree from src to dst, preserving
// regular files only; sockets, devices, and symlinks are skipped.
func copyTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return copyFile(src, dst, info.Mode())
	}
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		return copyFile(path, target, fi.Mode())
	})
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// compressDir tars and gzips dir into a temporary file, then renames it to
// archive. On any failure the temporary file is removed and the final name
// is never created.
func compressDir(ctx context.Context, dir, archive string) error {
	tmp := archive + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	cleanup := func() {
		_ = f.Close()
		_ = os.Remove(tmp)
	}

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(fi, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if !fi.Mode().IsRegular() {
			return nil
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		_, err = io.Copy(tw, in)
		_ = in.Close()
		return err
	})
	if err != nil {
		cleanup()
		return err
	}
	if err := tw.Close(); err != nil {
		cleanup()
		return err
	}
	if err := gz.Close(); err != nil {
		cleanup()
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, archive)
}
