// Package backup builds configuration snapshots and full-device images of
// the host, with retention pruning for snapshots. Artifacts are immutable
// once created: they are written under a temporary name and renamed into
// place, so no consumer ever sees a partial archive.
package backup

import (
	"errors"
	"time"
)

var (
	// ErrDestinationMissing means the backup destination does not exist
	// and could not be created. The manager aborts; it never falls back
	// to a different destination silently.
	ErrDestinationMissing = errors.New("backup: destination missing")
	// ErrBackupWrite means writing or compressing an artifact failed.
	ErrBackupWrite = errors.New("backup: write failed")
)

// Kind distinguishes the two artifact types.
type Kind string

const (
	// KindConfig is a compressed archive of the configuration allowlist.
	KindConfig Kind = "config"
	// KindFullImage is a compressed block-level image of a device.
	KindFullImage Kind = "full_image"
)

// Record describes one backup artifact. Records are derived from the
// artifact's timestamped filename; nothing is mutated after creation.
type Record struct {
	ID        string
	Kind      Kind
	Path      string
	SizeBytes int64
	CreatedAt time.Time
}

// timestampLayout is the filename timestamp for all artifacts.
const timestampLayout = "20060102-150405"

const (
	configPrefix = "config-"
	configSuffix = ".tar.gz"
	imagePrefix  = "image-"
	imageSuffix  = ".img.gz"
)
