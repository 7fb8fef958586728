package reliability

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/arena/internal/events"
	"github.com/aristath/arena/internal/utils"
)

const (
	backupPrefix     = "arena-backup-"
	backupTimeLayout = "2006-01-02-150405"
	metadataName     = "backup-metadata.json"
)

// StateExporter is the slice of the arena the backup service needs.
type StateExporter interface {
	ExportStates() (map[string][]byte, error)
	ImportState(name string, data []byte) error
}

// BackupService archives every portfolio's exported state bundle and ships
// the archive to object storage.
type BackupService struct {
	arena StateExporter
	store *S3Client
	bus   *events.Bus
	log   zerolog.Logger
}

// BackupMetadata describes the contents of one backup archive.
type BackupMetadata struct {
	Timestamp  time.Time           `json:"timestamp"`
	Version    string              `json:"version"`
	Portfolios []PortfolioMetadata `json:"portfolios"`
}

// PortfolioMetadata describes a single portfolio bundle in the archive.
type PortfolioMetadata struct {
	Name      string `json:"name"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// BackupInfo describes a backup stored in object storage.
type BackupInfo struct {
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
	AgeHours  int64     `json:"age_hours"`
}

// NewBackupService creates a backup service. bus is optional.
func NewBackupService(arena StateExporter, store *S3Client, bus *events.Bus, log zerolog.Logger) *BackupService {
	return &BackupService{
		arena: arena,
		store: store,
		bus:   bus,
		log:   log.With().Str("service", "backup").Logger(),
	}
}

// CreateAndUploadBackup exports every portfolio's state, archives the bundles
// with checksum metadata, and uploads the archive.
func (s *BackupService) CreateAndUploadBackup(ctx context.Context) error {
	timer := utils.NewTimer("state_backup", s.log)

	states, err := s.arena.ExportStates()
	if err != nil {
		return fmt.Errorf("failed to export portfolio states: %w", err)
	}
	if len(states) == 0 {
		s.log.Warn().Msg("No portfolios to back up")
		return nil
	}

	now := time.Now().UTC()
	archive, err := buildArchive(states, now)
	if err != nil {
		return fmt.Errorf("failed to build backup archive: %w", err)
	}

	key := backupPrefix + now.Format(backupTimeLayout) + ".tar.gz"
	if err := s.store.Upload(ctx, key, bytes.NewReader(archive)); err != nil {
		return err
	}

	timer.Stop()
	s.log.Info().
		Str("key", key).
		Int("portfolios", len(states)).
		Int("bytes", len(archive)).
		Msg("State backup uploaded")

	if s.bus != nil {
		s.bus.Publish(events.NewEvent(&events.BackupCompletedData{Key: key, Bytes: len(archive)}))
	}
	return nil
}

// ListBackups returns the stored backups, newest first.
func (s *BackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	objects, err := s.store.List(ctx, backupPrefix)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	backups := make([]BackupInfo, 0, len(objects))
	for _, obj := range objects {
		if obj.Key == nil {
			continue
		}
		key := *obj.Key
		if !strings.HasSuffix(key, ".tar.gz") {
			continue
		}

		stamp := strings.TrimSuffix(strings.TrimPrefix(key, backupPrefix), ".tar.gz")
		timestamp, err := time.Parse(backupTimeLayout, stamp)
		if err != nil {
			s.log.Warn().Str("key", key).Msg("Failed to parse timestamp from backup key")
			continue
		}

		var size int64
		if obj.Size != nil {
			size = *obj.Size
		}
		backups = append(backups, BackupInfo{
			Key:       key,
			Timestamp: timestamp,
			SizeBytes: size,
			AgeHours:  int64(now.Sub(timestamp).Hours()),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})
	return backups, nil
}

// RestoreLatest downloads the newest backup and imports every portfolio bundle
// it contains. Bundles for portfolios not present in the arena are skipped.
func (s *BackupService) RestoreLatest(ctx context.Context) error {
	backups, err := s.ListBackups(ctx)
	if err != nil {
		return err
	}
	if len(backups) == 0 {
		return fmt.Errorf("no backups found")
	}

	key := backups[0].Key
	archive, err := s.store.Download(ctx, key)
	if err != nil {
		return err
	}

	states, metadata, err := readArchive(archive)
	if err != nil {
		return fmt.Errorf("failed to read backup archive %s: %w", key, err)
	}
	if err := verifyChecksums(states, metadata); err != nil {
		return fmt.Errorf("backup %s corrupt: %w", key, err)
	}

	restored := 0
	for name, data := range states {
		if err := s.arena.ImportState(name, data); err != nil {
			s.log.Warn().Err(err).Str("portfolio", name).Msg("Skipping portfolio bundle")
			continue
		}
		restored++
	}

	s.log.Info().
		Str("key", key).
		Int("restored", restored).
		Int("bundles", len(states)).
		Msg("State restore completed")
	return nil
}

// RotateOldBackups deletes backups older than the retention period, always
// keeping the three newest.
func (s *BackupService) RotateOldBackups(ctx context.Context, retentionDays int) error {
	backups, err := s.ListBackups(ctx)
	if err != nil {
		return err
	}

	const minBackupsToKeep = 3
	if len(backups) <= minBackupsToKeep || retentionDays <= 0 {
		return nil
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	deleted := 0
	for i, backup := range backups {
		if i < minBackupsToKeep || backup.Timestamp.After(cutoff) {
			continue
		}
		if err := s.store.Delete(ctx, backup.Key); err != nil {
			s.log.Error().Err(err).Str("key", backup.Key).Msg("Failed to delete old backup")
			continue
		}
		deleted++
	}

	s.log.Info().Int("deleted", deleted).Int("remaining", len(backups)-deleted).Msg("Backup rotation completed")
	return nil
}

// buildArchive packs the state bundles and a metadata file into a tar.gz blob.
func buildArchive(states map[string][]byte, now time.Time) ([]byte, error) {
	metadata := BackupMetadata{
		Timestamp:  now,
		Version:    "1.0.0",
		Portfolios: make([]PortfolioMetadata, 0, len(states)),
	}

	names := make([]string, 0, len(states))
	for name := range states {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	for _, name := range names {
		data := states[name]
		metadata.Portfolios = append(metadata.Portfolios, PortfolioMetadata{
			Name:      name,
			Filename:  name + ".msgpack",
			SizeBytes: int64(len(data)),
			Checksum:  checksum(data),
		})
		if err := writeEntry(tw, name+".msgpack", data); err != nil {
			return nil, err
		}
	}

	metadataJSON, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := writeEntry(tw, metadataName, metadataJSON); err != nil {
		return nil, err
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close tar writer: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("failed to close gzip writer: %w", err)
	}
	return buf.Bytes(), nil
}

// readArchive unpacks a backup archive into per-portfolio state bundles.
func readArchive(archive []byte) (map[string][]byte, *BackupMetadata, error) {
	gz, err := gzip.NewReader(bytes.NewReader(archive))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer gz.Close()

	states := make(map[string][]byte)
	var metadata *BackupMetadata

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read tar entry: %w", err)
		}

		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read %s: %w", header.Name, err)
		}

		if header.Name == metadataName {
			var m BackupMetadata
			if err := json.Unmarshal(data, &m); err != nil {
				return nil, nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
			metadata = &m
			continue
		}
		if strings.HasSuffix(header.Name, ".msgpack") {
			states[strings.TrimSuffix(header.Name, ".msgpack")] = data
		}
	}
	return states, metadata, nil
}

// verifyChecksums compares bundle checksums against the archive metadata.
// A missing metadata file is tolerated; a mismatch is not.
func verifyChecksums(states map[string][]byte, metadata *BackupMetadata) error {
	if metadata == nil {
		return nil
	}
	for _, pm := range metadata.Portfolios {
		data, ok := states[pm.Name]
		if !ok {
			return fmt.Errorf("bundle %s listed in metadata but missing from archive", pm.Name)
		}
		if got := checksum(data); got != pm.Checksum {
			return fmt.Errorf("checksum mismatch for %s", pm.Name)
		}
	}
	return nil
}

func checksum(data []byte) string {
	return fmt.Sprintf("sha256:%x", sha256.Sum256(data))
}

func writeEntry(tw *tar.Writer, name string, data []byte) error {
	header := &tar.Header{
		Name: name,
		Size: int64(len(data)),
		Mode: 0644,
	}
	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write header for %s: %w", name, err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}
