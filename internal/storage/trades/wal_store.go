// Package trades journals strategy trade events and profit reports in a write-ahead log.
package trades

import (
	"encoding/json"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/vadiminshakov/smabot/internal/domain"
)

const (
	DefaultDir   = "./wal/trades"
	segmentLimit = 1000
	maxSegments  = 100

	tradeKeyPrefix  = "trade_"
	reportKeyPrefix = "report_"
)

// Record is one journal entry, either a trade or a profit report.
type Record struct {
	Index  uint64               `json:"-"`
	ID     string               `json:"id"`
	Trade  *domain.TradeEvent   `json:"trade,omitempty"`
	Report *domain.ProfitReport `json:"report,omitempty"`
}

// WALStore persists journal records in a WAL.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes a WAL-backed trade journal.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create trade journal dir")
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "trades_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init trade journal WAL")
	}

	return &WALStore{wal: wal}, nil
}

// RecordTrade appends a trade event.
func (s *WALStore) RecordTrade(event domain.TradeEvent) error {
	if event.UnitID == "" {
		return errors.New("trade event unit id is required")
	}

	return s.write(tradeKeyPrefix+event.UnitID, Record{Trade: &event})
}

// RecordReport appends a profit report.
func (s *WALStore) RecordReport(report domain.ProfitReport) error {
	if report.UnitID == "" {
		return errors.New("profit report unit id is required")
	}

	return s.write(reportKeyPrefix+report.UnitID, Record{Report: &report})
}

func (s *WALStore) write(key string, rec Record) error {
	if s == nil || s.wal == nil {
		return errors.New("trade journal is not initialized")
	}

	rec.ID = uuid.NewString()
	payload, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "marshal journal record")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return errors.Wrapf(s.wal.Write(nextIndex, key, payload), "write journal record %d", nextIndex)
}

// RecordsAfter returns all journal records written after the provided WAL index.
func (s *WALStore) RecordsAfter(index uint64) ([]Record, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("trade journal is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]Record, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil {
			continue
		}
		if !strings.HasPrefix(key, tradeKeyPrefix) && !strings.HasPrefix(key, reportKeyPrefix) {
			continue
		}

		var rec Record
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, errors.Wrapf(err, "decode journal record %d", idx)
		}
		rec.Index = idx
		records = append(records, rec)
	}

	return records, nil
}

// Records returns the whole journal.
func (s *WALStore) Records() ([]Record, error) {
	return s.RecordsAfter(0)
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("trade journal is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
