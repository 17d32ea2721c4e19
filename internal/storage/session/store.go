// Package session persists the progress of an evaluation or live session between restarts.
package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/smabot/internal/domain"
)

// ErrNoSession no state file exists yet.
var ErrNoSession = errors.New("no saved session")

// Mode of a session.
type Mode string

const (
	ModeEval Mode = "eval"
	ModeRun  Mode = "run"
)

// State represents everything persisted for a session.
type State struct {
	Pair      string    `json:"pair"`
	Mode      Mode      `json:"mode"`
	TotalDays int       `json:"total_days"`
	NextDay   int       `json:"next_day"`
	StartedAt time.Time `json:"started_at"`
	// JournalStart last trade journal index written before this session began.
	JournalStart uint64 `json:"journal_start"`
	// Totals maps window to the last reported cumulative profit of a finished day.
	Totals map[string]decimal.Decimal `json:"totals"`
	// Pending reports of the open day, moved to Totals when the day finishes.
	Pending map[string]decimal.Decimal `json:"pending,omitempty"`
	// OpenDay the day being processed, nil between days.
	OpenDay *OpenDay `json:"open_day,omitempty"`
	// Discarded journal ranges written by days that were interrupted and replayed.
	Discarded []IndexRange `json:"discarded,omitempty"`
}

// OpenDay marks a day that has started but not finished.
type OpenDay struct {
	Day int `json:"day"`
	// JournalIndex last journal index written before the day started.
	JournalIndex uint64 `json:"journal_index"`
}

// IndexRange journal indexes in (After, Through].
type IndexRange struct {
	After   uint64 `json:"after"`
	Through uint64 `json:"through"`
}

// Discards reports whether the journal record at index belongs to an interrupted day.
func (s State) Discards(index uint64) bool {
	for _, r := range s.Discarded {
		if index > r.After && index <= r.Through {
			return true
		}
	}
	return false
}

// Done reports whether every configured day has been processed.
func (s State) Done() bool {
	return s.NextDay >= s.TotalDays
}

// Total returns the persisted profit of a window, zero when none was reported.
func (s State) Total(window int) decimal.Decimal {
	if v, ok := s.Totals[strconv.Itoa(window)]; ok {
		return v
	}
	return decimal.Zero
}

// Windows returns the windows with persisted totals, ascending.
func (s State) Windows() []int {
	windows := make([]int, 0, len(s.Totals))
	for k := range s.Totals {
		if w, err := strconv.Atoi(k); err == nil {
			windows = append(windows, w)
		}
	}
	sort.Ints(windows)
	return windows
}

// TotalsByWindow returns the persisted totals keyed by window.
func (s State) TotalsByWindow() map[int]decimal.Decimal {
	out := make(map[int]decimal.Decimal, len(s.Totals))
	for _, w := range s.Windows() {
		out[w] = s.Total(w)
	}
	return out
}

type journalIndexer interface {
	CurrentIndex() uint64
}

// Store keeps the state in memory and writes it to a JSON file on every change.
type Store struct {
	path    string
	journal journalIndexer
	mu      sync.Mutex
	state   State
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithJournal lets the store mark where each day starts in the trade journal.
func WithJournal(j journalIndexer) StoreOption {
	return func(s *Store) {
		s.journal = j
	}
}

// NewStore creates a store backed by path. It does not read the file, see Load.
func NewStore(path string, opts ...StoreOption) (*Store, error) {
	if path == "" {
		return nil, errors.New("state file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create session state dir")
	}

	s := &Store{path: path}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) journalIndex() uint64 {
	if s.journal == nil {
		return 0
	}
	return s.journal.CurrentIndex()
}

// Start replaces any saved session with a fresh one.
func (s *Store) Start(pair domain.Pair, mode Mode, totalDays int, now time.Time, journalStart uint64) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = State{
		Pair:         pair.String(),
		Mode:         mode,
		TotalDays:    totalDays,
		StartedAt:    now.UTC(),
		JournalStart: journalStart,
		Totals:       map[string]decimal.Decimal{},
	}

	return s.state, s.saveLocked()
}

// Load reads session state from disk.
func (s *Store) Load() (State, error) {
	payload, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return State{}, ErrNoSession
		}
		return State{}, errors.Wrap(err, "read session state")
	}
	if len(payload) == 0 {
		return State{}, ErrNoSession
	}

	var state State
	if err := json.Unmarshal(payload, &state); err != nil {
		return State{}, errors.Wrap(err, "decode session state")
	}
	if state.Totals == nil {
		state.Totals = map[string]decimal.Decimal{}
	}

	s.mu.Lock()
	s.state = state
	s.mu.Unlock()

	return state, nil
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := s.state
	cp.Totals = copyTotals(s.state.Totals)
	if s.state.Pending != nil {
		cp.Pending = copyTotals(s.state.Pending)
	}
	if s.state.OpenDay != nil {
		open := *s.state.OpenDay
		cp.OpenDay = &open
	}
	cp.Discarded = append([]IndexRange(nil), s.state.Discarded...)
	return cp
}

func copyTotals(m map[string]decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// NextDay index of the first unprocessed day.
func (s *Store) NextDay() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.NextDay
}

// BeginDay marks day as started at the current journal index. Reports recorded
// until SetNextDay stay pending.
func (s *Store) BeginDay(day int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.OpenDay = &OpenDay{Day: day, JournalIndex: s.journalIndex()}
	s.state.Pending = nil
	return s.saveLocked()
}

// SetNextDay records that every day before day has been processed and
// commits the pending reports.
func (s *Store) SetNextDay(day int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Totals == nil {
		s.state.Totals = map[string]decimal.Decimal{}
	}
	for k, v := range s.state.Pending {
		s.state.Totals[k] = v
	}
	s.state.Pending = nil
	s.state.OpenDay = nil
	s.state.NextDay = day
	return s.saveLocked()
}

// DiscardOpenDay drops the progress of a day that was interrupted: its pending
// reports are forgotten and its journal records are excluded from analysis.
// It reports whether there was an open day.
func (s *Store) DiscardOpenDay() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	open := s.state.OpenDay
	if open == nil {
		return false, nil
	}
	if current := s.journalIndex(); current > open.JournalIndex {
		s.state.Discarded = append(s.state.Discarded, IndexRange{After: open.JournalIndex, Through: current})
	}
	s.state.OpenDay = nil
	s.state.Pending = nil

	return true, s.saveLocked()
}

// RecordReport stores the reported cumulative profit of a window, pending
// while a day is open.
func (s *Store) RecordReport(report domain.ProfitReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := &s.state.Totals
	if s.state.OpenDay != nil {
		target = &s.state.Pending
	}
	if *target == nil {
		*target = map[string]decimal.Decimal{}
	}
	(*target)[strconv.Itoa(report.Window)] = report.Profit

	return s.saveLocked()
}

// RecordTrade is a no-op, only reports change the totals.
func (s *Store) RecordTrade(domain.TradeEvent) error {
	return nil
}

// Remove deletes the state file. A missing file is not an error.
func (s *Store) Remove() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = State{}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "remove session state")
	}
	return nil
}

// saveLocked writes state to disk atomically via temp file.
func (s *Store) saveLocked() error {
	payload, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode session state")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return errors.Wrap(err, "write session state temp file")
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "persist session state")
	}

	return nil
}
