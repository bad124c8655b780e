package backup

import (
	"compress/gzip"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// imageChunkSize is the read granularity for device imaging; cancellation is
// checked between chunks.
const imageChunkSize = 4 * 1024 * 1024

// Image writes a compressed block-level copy of device to the destination.
// This is the fallback path: long-running, single-shot, no progress
// checkpointing — a failure means starting over. There is deliberately no
// timeout; the operation is operator-invoked and cancelled via ctx (wired to
// SIGINT/SIGTERM), and on cancellation the partial output is removed, never
// left behind under the final name.
//
// A SHA-256 of the compressed image is written alongside as <image>.sha256.
// The image content itself is not verified against the device after the
// write.
func (m *Manager) Image(ctx context.Context, device string) (*Record, error) {
	if err := m.ensureDest(); err != nil {
		return nil, err
	}

	in, err := os.Open(device)
	if err != nil {
		return nil, fmt.Errorf("%w: open device %s: %v", ErrBackupWrite, device, err)
	}
	defer func() { _ = in.Close() }()

	ts := m.now()
	id := ts.Format(timestampLayout)
	final := m.imagePath(id)
	tmp := final + ".tmp"

	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", ErrBackupWrite, tmp, err)
	}
	abort := func() {
		_ = out.Close()
		_ = os.Remove(tmp)
	}

	hash := sha256.New()
	gz := gzip.NewWriter(io.MultiWriter(out, hash))

	m.log.Info().Str("device", device).Str("image", final).Msg("full image backup started")
	start := time.Now()

	buf := make([]byte, imageChunkSize)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			abort()
			return nil, fmt.Errorf("%w: cancelled after %d bytes: %v", ErrBackupWrite, written, err)
		}
		n, readErr := in.Read(buf)
		if n > 0 {
			if _, werr := gz.Write(buf[:n]); werr != nil {
				abort()
				return nil, fmt.Errorf("%w: write image: %v", ErrBackupWrite, werr)
			}
			written += int64(n)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			abort()
			return nil, fmt.Errorf("%w: read device: %v", ErrBackupWrite, readErr)
		}
	}

	if err := gz.Close(); err != nil {
		abort()
		return nil, fmt.Errorf("%w: finalize compression: %v", ErrBackupWrite, err)
	}
	if err := out.Sync(); err != nil {
		abort()
		return nil, fmt.Errorf("%w: sync image: %v", ErrBackupWrite, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("%w: close image: %v", ErrBackupWrite, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("%w: rename image: %v", ErrBackupWrite, err)
	}

	sum := fmt.Sprintf("%x  %s\n", hash.Sum(nil), filepath.Base(final))
	if err := os.WriteFile(final+".sha256", []byte(sum), 0o644); err != nil {
		m.log.Warn().Err(err).Msg("could not write image checksum")
	}

	info, err := os.Stat(final)
	if err != nil {
		return nil, fmt.Errorf("%w: stat image: %v", ErrBackupWrite, err)
	}
	m.log.Info().
		Int64("device_bytes", written).
		Int64("image_bytes", info.Size()).
		Dur("elapsed", time.Since(start)).
		Msg("full image backup complete")

	return &Record{ID: id, Kind: KindFullImage, Path: final, SizeBytes: info.Size(), CreatedAt: ts}, nil
}

func (m *Manager) imagePath(id string) string {
	return filepath.Join(m.dest, imagePrefix+id+imageSuffix)
}
