package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// cacheRow is the GORM model for a cache entry.
type cacheRow struct {
	CacheKey           string `gorm:"primaryKey;column:cache_key"`
	Prefix             string `gorm:"index"`
	ValueJSON          []byte `gorm:"column:value_json"`
	CreatedAt          time.Time
	ExpiresAt          time.Time `gorm:"index"`
	Version            string
	SourceVersionsJSON string `gorm:"column:source_versions_json"`
	HitCount           int64
}

func (cacheRow) TableName() string { return "cache" }

// invalidationRow is the GORM model for the invalidation audit log.
type invalidationRow struct {
	ID               uint   `gorm:"primaryKey;autoIncrement"`
	InvalidationType string `gorm:"column:invalidation_type"`
	AffectedKeys     int
	Reason           string
	Timestamp        time.Time
}

func (invalidationRow) TableName() string { return "cache_invalidation_log" }

// SQLStore is a Store backed by a GORM database (SQLite in practice).
type SQLStore struct {
	db *gorm.DB
}

// NewSQLStore migrates the cache tables and returns a store over db.
func NewSQLStore(db *gorm.DB) (*SQLStore, error) {
	if err := db.AutoMigrate(&cacheRow{}, &invalidationRow{}); err != nil {
		return nil, fmt.Errorf("migrate cache tables: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// Get returns the entry for a key.
func (s *SQLStore) Get(key string) (*Entry, bool) {
	var row cacheRow
	err := s.db.First(&row, "cache_key = ?", key).Error
	if err != nil {
		return nil, false
	}
	return rowToEntry(row), true
}

// Put stores an entry, overwriting any existing row.
func (s *SQLStore) Put(e Entry) error {
	sv, err := json.Marshal(e.SourceVersions)
	if err != nil {
		return fmt.Errorf("marshal source versions: %w", err)
	}
	row := cacheRow{
		CacheKey:           e.Key,
		Prefix:             e.Prefix,
		ValueJSON:          e.Value,
		CreatedAt:          e.CreatedAt,
		ExpiresAt:          e.ExpiresAt,
		Version:            e.Version,
		SourceVersionsJSON: string(sv),
		HitCount:           e.HitCount,
	}
	return s.db.Save(&row).Error
}

// Delete removes a key.
func (s *SQLStore) Delete(key string) (bool, error) {
	res := s.db.Delete(&cacheRow{}, "cache_key = ?", key)
	return res.RowsAffected > 0, res.Error
}

// DeleteByPrefix removes entries tagged with the prefix.
func (s *SQLStore) DeleteByPrefix(prefix string) (int, error) {
	res := s.db.Delete(&cacheRow{}, "prefix = ?", prefix)
	return int(res.RowsAffected), res.Error
}

// IncrementHit bumps a key's hit counter. The update is a single SQL
// statement, so concurrent hits cannot lose counts.
func (s *SQLStore) IncrementHit(key string) error {
	return s.db.Model(&cacheRow{}).
		Where("cache_key = ?", key).
		UpdateColumn("hit_count", gorm.Expr("hit_count + 1")).Error
}

// Stats reports entry counts.
func (s *SQLStore) Stats(now time.Time) (StoreStats, error) {
	var st StoreStats

	var total int64
	if err := s.db.Model(&cacheRow{}).Count(&total).Error; err != nil {
		return st, err
	}
	var valid int64
	if err := s.db.Model(&cacheRow{}).Where("expires_at > ?", now).Count(&valid).Error; err != nil {
		return st, err
	}
	var hits int64
	row := s.db.Model(&cacheRow{}).Select("COALESCE(SUM(hit_count), 0)").Row()
	if err := row.Scan(&hits); err != nil {
		return st, err
	}

	st.TotalEntries = int(total)
	st.ValidEntries = int(valid)
	st.ExpiredEntries = int(total - valid)
	st.TotalHits = hits
	return st, nil
}

// LogInvalidation appends an audit record.
func (s *SQLStore) LogInvalidation(ev InvalidationEvent) error {
	return s.db.Create(&invalidationRow{
		InvalidationType: ev.Type,
		AffectedKeys:     ev.AffectedKeys,
		Reason:           ev.Reason,
		Timestamp:        ev.Timestamp,
	}).Error
}

// CleanupExpired removes expired entries.
func (s *SQLStore) CleanupExpired(now time.Time) (int, error) {
	res := s.db.Delete(&cacheRow{}, "expires_at < ?", now)
	return int(res.RowsAffected), res.Error
}

func rowToEntry(row cacheRow) *Entry {
	var sv map[string]string
	if row.SourceVersionsJSON != "" {
		// A row with an undecodable version stamp fails the version
		// check upstream and gets evicted, which is the safe outcome.
		_ = json.Unmarshal([]byte(row.SourceVersionsJSON), &sv)
	}
	return &Entry{
		Key:            row.CacheKey,
		Prefix:         row.Prefix,
		Value:          row.ValueJSON,
		CreatedAt:      row.CreatedAt,
		ExpiresAt:      row.ExpiresAt,
		Version:        row.Version,
		SourceVersions: sv,
		HitCount:       row.HitCount,
	}
}
