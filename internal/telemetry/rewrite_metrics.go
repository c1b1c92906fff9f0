// Package telemetry records how queries are rewritten, for tuning the
// synonym dictionary. All telemetry data is stored locally - no external
// reporting.
package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// =============================================================================
// Outcomes
// =============================================================================

// OutcomeMerged is recorded for a rewrite that replaced the query. Every
// other outcome is the NoOp reason (e.g. "synonyms_unsupported").
const OutcomeMerged = "merged"

// =============================================================================
// Latency Buckets
// =============================================================================

// LatencyBucket represents a latency histogram bucket.
type LatencyBucket string

const (
	BucketP1   LatencyBucket = "p1"   // <1ms
	BucketP5   LatencyBucket = "p5"   // 1-5ms
	BucketP20  LatencyBucket = "p20"  // 5-20ms
	BucketP100 LatencyBucket = "p100" // 20-100ms
	BucketSlow LatencyBucket = "slow" // >=100ms
)

// Buckets lists the histogram buckets in ascending order.
var Buckets = []LatencyBucket{BucketP1, BucketP5, BucketP20, BucketP100, BucketSlow}

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	switch {
	case d < time.Millisecond:
		return BucketP1
	case d < 5*time.Millisecond:
		return BucketP5
	case d < 20*time.Millisecond:
		return BucketP20
	case d < 100*time.Millisecond:
		return BucketP100
	default:
		return BucketSlow
	}
}

// =============================================================================
// Rewrite Event
// =============================================================================

// RewriteEvent is one rewrite for telemetry recording.
type RewriteEvent struct {
	Query    string
	Outcome  string
	Expanded []string
	Latency  time.Duration
	Time     time.Time
}

// Unexpanded reports whether the query was rewritable but no phrase of it
// had synonyms. These are the queries worth adding dictionary entries for.
func (e RewriteEvent) Unexpanded() bool {
	return e.Outcome == OutcomeMerged && len(e.Expanded) == 0
}

// =============================================================================
// Circular Buffer
// =============================================================================

// CircularBuffer is a fixed-capacity FIFO buffer.
type CircularBuffer[T any] struct {
	items    []T
	head     int // Next write position
	size     int
	capacity int
	mu       sync.RWMutex
}

// NewCircularBuffer creates a new circular buffer with the given capacity.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &CircularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Add adds an item to the buffer. If full, the oldest item is evicted.
func (b *CircularBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Items returns all items in the buffer in FIFO order (oldest first).
func (b *CircularBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.size == 0 {
		return []T{}
	}

	result := make([]T, b.size)
	if b.size < b.capacity {
		copy(result, b.items[:b.size])
	} else {
		// Full: the oldest item is at head
		copy(result, b.items[b.head:])
		copy(result[b.capacity-b.head:], b.items[:b.head])
	}
	return result
}

// Size returns the current number of items in the buffer.
func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// =============================================================================
// Snapshot
// =============================================================================

// PhraseCount is an expanded phrase and how often it was expanded.
type PhraseCount struct {
	Phrase string `json:"phrase"`
	Count  int64  `json:"count"`
}

// Snapshot is an immutable view of the rewrite metrics.
type Snapshot struct {
	OutcomeCounts       map[string]int64        `json:"outcome_counts"`
	TopPhrases          []PhraseCount           `json:"top_phrases"`
	UnexpandedQueries   []string                `json:"unexpanded_queries"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	TotalRewrites       int64                   `json:"total_rewrites"`
	ExpandedRewrites    int64                   `json:"expanded_rewrites"`
	Since               time.Time               `json:"since"`

	ExactRepeatCount int64   `json:"exact_repeat_count"`
	ExactRepeatRate  float64 `json:"exact_repeat_rate"`
	UniqueQueryCount int64   `json:"unique_query_count"`
}

// ExpansionRate returns the percentage of rewrites that expanded at least
// one phrase.
func (s *Snapshot) ExpansionRate() float64 {
	if s.TotalRewrites == 0 {
		return 0
	}
	return float64(s.ExpandedRewrites) / float64(s.TotalRewrites) * 100
}

// =============================================================================
// Store (Interface)
// =============================================================================

// Store defines persistence operations for rewrite metrics. Counts passed
// to the Save/Upsert methods are increments.
type Store interface {
	SaveOutcomeCounts(date string, counts map[string]int64) error
	GetOutcomeCounts(from, to string) (map[string]int64, error)

	UpsertPhraseCounts(phrases map[string]int64) error
	GetTopPhrases(limit int) ([]PhraseCount, error)

	AddUnexpandedQuery(query string, timestamp time.Time) error
	GetUnexpandedQueries(limit int) ([]string, error)

	SaveLatencyCounts(date string, counts map[LatencyBucket]int64) error
	GetLatencyCounts(from, to string) (map[LatencyBucket]int64, error)

	Close() error
}

// =============================================================================
// Configuration
// =============================================================================

// Config configures the metrics collector.
type Config struct {
	TopPhrasesCapacity    int           // Max phrases to track (default: 100)
	UnexpandedCapacity    int           // Max unexpanded queries kept (default: 100)
	RecentQueriesCapacity int           // Max queries tracked for repetition (default: 500)
	FlushInterval         time.Duration // How often to flush to store (default: 60s, 0 = no auto-flush)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		TopPhrasesCapacity:    100,
		UnexpandedCapacity:    100,
		RecentQueriesCapacity: 500,
		FlushInterval:         60 * time.Second,
	}
}

// =============================================================================
// Metrics
// =============================================================================

// Metrics collects rewrite telemetry. Safe for concurrent use.
type Metrics struct {
	mu sync.Mutex

	// Totals since start
	outcomes         map[string]int64
	topPhrases       *lru.Cache[string, int64]
	unexpanded       *CircularBuffer[string]
	latencies        map[LatencyBucket]int64
	total            int64
	expanded         int64
	recentQueries    *lru.Cache[string, struct{}]
	exactRepeatCount int64
	startTime        time.Time

	// Increments not yet flushed
	pending pendingCounts

	store       Store
	config      Config
	flushTicker *time.Ticker
	stopCh      chan struct{}
	closed      bool
}

type pendingCounts struct {
	outcomes   map[string]int64
	phrases    map[string]int64
	latencies  map[LatencyBucket]int64
	unexpanded []RewriteEvent
}

func newPending() pendingCounts {
	return pendingCounts{
		outcomes:  make(map[string]int64),
		phrases:   make(map[string]int64),
		latencies: make(map[LatencyBucket]int64),
	}
}

// New creates a collector with the default configuration. If store is nil,
// metrics are only kept in memory.
func New(store Store) *Metrics {
	return NewWithConfig(store, DefaultConfig())
}

// NewWithConfig creates a collector with a custom configuration.
func NewWithConfig(store Store, cfg Config) *Metrics {
	def := DefaultConfig()
	if cfg.TopPhrasesCapacity <= 0 {
		cfg.TopPhrasesCapacity = def.TopPhrasesCapacity
	}
	if cfg.UnexpandedCapacity <= 0 {
		cfg.UnexpandedCapacity = def.UnexpandedCapacity
	}
	if cfg.RecentQueriesCapacity <= 0 {
		cfg.RecentQueriesCapacity = def.RecentQueriesCapacity
	}

	topPhrases, _ := lru.New[string, int64](cfg.TopPhrasesCapacity)
	recentQueries, _ := lru.New[string, struct{}](cfg.RecentQueriesCapacity)

	m := &Metrics{
		outcomes:      make(map[string]int64),
		topPhrases:    topPhrases,
		unexpanded:    NewCircularBuffer[string](cfg.UnexpandedCapacity),
		latencies:     make(map[LatencyBucket]int64),
		recentQueries: recentQueries,
		startTime:     time.Now(),
		pending:       newPending(),
		store:         store,
		config:        cfg,
		stopCh:        make(chan struct{}),
	}

	if cfg.FlushInterval > 0 && store != nil {
		m.flushTicker = time.NewTicker(cfg.FlushInterval)
		go m.flushLoop()
	}
	return m
}

func (m *Metrics) flushLoop() {
	for {
		select {
		case <-m.flushTicker.C:
			_ = m.Flush()
		case <-m.stopCh:
			return
		}
	}
}

// Record captures one rewrite.
func (m *Metrics) Record(event RewriteEvent) {
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	m.total++
	m.outcomes[event.Outcome]++
	m.pending.outcomes[event.Outcome]++

	if len(event.Expanded) > 0 {
		m.expanded++
	}
	for _, phrase := range event.Expanded {
		count, _ := m.topPhrases.Get(phrase)
		m.topPhrases.Add(phrase, count+1)
		m.pending.phrases[phrase]++
	}

	if event.Unexpanded() {
		m.unexpanded.Add(event.Query)
		m.pending.unexpanded = append(m.pending.unexpanded, event)
	}

	bucket := LatencyToBucket(event.Latency)
	m.latencies[bucket]++
	m.pending.latencies[bucket]++

	key := hashQuery(event.Query)
	if _, seen := m.recentQueries.Get(key); seen {
		m.exactRepeatCount++
	}
	m.recentQueries.Add(key, struct{}{})
}

// hashQuery creates a normalized hash of the query for repetition detection.
func hashQuery(query string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:16])
}

// Snapshot returns current metrics for reporting.
func (m *Metrics) Snapshot() *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	outcomes := make(map[string]int64, len(m.outcomes))
	for k, v := range m.outcomes {
		outcomes[k] = v
	}
	latencies := make(map[LatencyBucket]int64, len(m.latencies))
	for k, v := range m.latencies {
		latencies[k] = v
	}

	var phrases []PhraseCount
	for _, key := range m.topPhrases.Keys() {
		if count, ok := m.topPhrases.Peek(key); ok {
			phrases = append(phrases, PhraseCount{Phrase: key, Count: count})
		}
	}
	SortPhrases(phrases)

	var repeatRate float64
	if m.total > 0 {
		repeatRate = float64(m.exactRepeatCount) / float64(m.total)
	}

	return &Snapshot{
		OutcomeCounts:       outcomes,
		TopPhrases:          phrases,
		UnexpandedQueries:   m.unexpanded.Items(),
		LatencyDistribution: latencies,
		TotalRewrites:       m.total,
		ExpandedRewrites:    m.expanded,
		Since:               m.startTime,
		ExactRepeatCount:    m.exactRepeatCount,
		ExactRepeatRate:     repeatRate,
		UniqueQueryCount:    int64(m.recentQueries.Len()),
	}
}

// SortPhrases orders by count descending, then phrase.
func SortPhrases(phrases []PhraseCount) {
	sort.Slice(phrases, func(i, j int) bool {
		if phrases[i].Count != phrases[j].Count {
			return phrases[i].Count > phrases[j].Count
		}
		return phrases[i].Phrase < phrases[j].Phrase
	})
}

// Flush writes the increments recorded since the last flush to the store.
// Safe to call even if no store is configured. On failure the increments
// are dropped.
func (m *Metrics) Flush() error {
	if m.store == nil {
		return nil
	}

	m.mu.Lock()
	p := m.pending
	m.pending = newPending()
	m.mu.Unlock()

	today := time.Now().Format("2006-01-02")

	if len(p.outcomes) > 0 {
		if err := m.store.SaveOutcomeCounts(today, p.outcomes); err != nil {
			return err
		}
	}
	if err := m.store.UpsertPhraseCounts(p.phrases); err != nil {
		return err
	}
	for _, e := range p.unexpanded {
		if err := m.store.AddUnexpandedQuery(e.Query, e.Time); err != nil {
			return err
		}
	}
	if len(p.latencies) > 0 {
		if err := m.store.SaveLatencyCounts(today, p.latencies); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes and releases resources. The store is not closed.
func (m *Metrics) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	if m.flushTicker != nil {
		m.flushTicker.Stop()
		close(m.stopCh)
	}
	return m.Flush()
}
