package infra

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/appquota/appquota/internal/domain"
)

// FileStore persists the AppData document as a single JSON file under
// the per-user application-data directory. Writes are atomic
// (temp file + rename) so a crash mid-save never leaves a partial
// document behind.
type FileStore struct {
	path   string
	logger *zap.Logger
}

// NewFileStore creates a store backed by the given file path.
func NewFileStore(path string, logger *zap.Logger) *FileStore {
	return &FileStore{path: path, logger: logger}
}

// DefaultDataPath returns the per-user document location.
func DefaultDataPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(dir, "appquota", "appdata.json"), nil
}

// Load reads the document. A missing or corrupt file yields an empty
// default document, never an error.
func (s *FileStore) Load() *domain.AppData {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("could not read data file, starting with defaults",
				zap.String("path", s.path),
				zap.Error(err))
		}
		return domain.NewAppData()
	}

	var data domain.AppData
	if err := json.Unmarshal(raw, &data); err != nil {
		s.logger.Warn("data file is corrupt, starting with defaults",
			zap.String("path", s.path),
			zap.Error(err))
		return domain.NewAppData()
	}

	normalize(&data)
	return &data
}

// Save writes the document atomically. Overlapping saves are
// last-write-wins; the rename is the commit point.
func (s *FileStore) Save(data *domain.AppData) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal app data: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// Temp file in the same directory so the rename stays atomic.
	tmp, err := os.CreateTemp(dir, ".appquota-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replace data file: %w", err)
	}

	success = true
	return nil
}

// PurgeOlderThan drops usage records whose day is more than the given
// number of days before today. Records with an unparsable date are
// dropped too.
func (s *FileStore) PurgeOlderThan(data *domain.AppData, today time.Time, days int) {
	cutoff := today.AddDate(0, 0, -days)

	kept := data.UsageRecords[:0]
	for _, rec := range data.UsageRecords {
		day, err := time.Parse(domain.DateLayout, rec.Date)
		if err != nil {
			s.logger.Warn("dropping usage record with invalid date",
				zap.String("rule_id", rec.RuleID),
				zap.String("date", rec.Date))
			continue
		}
		if day.Before(cutoff) {
			continue
		}
		kept = append(kept, rec)
	}
	data.UsageRecords = kept
}

// normalize repairs a loaded document so downstream code never sees
// nil slices or a zero polling interval.
func normalize(data *domain.AppData) {
	if data.Rules == nil {
		data.Rules = []*domain.Rule{}
	}
	if data.UsageRecords == nil {
		data.UsageRecords = []*domain.UsageRecord{}
	}
	if data.Settings.PollingIntervalSeconds <= 0 {
		data.Settings.PollingIntervalSeconds = domain.DefaultPollingIntervalSeconds
	}
}

// Ensure FileStore implements domain.Store.
var _ domain.Store = (*FileStore)(nil)
