package repository

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/consortium/pkg/metrics"
)

// Treap-based, in-memory Store implementation. Each tender has its own treap.
//
// Ordering: expected score DESC, then record id ASC (deterministic).
// "less" means ranks earlier, so in-order traversal yields the ranking
// from best to worst.

// scoreScale matches the four decimal places results are rounded to.
const scoreScale = 10_000

type scoreFP int64

func toFixedPoint(x float64) scoreFP {
	if math.IsNaN(x) {
		return 0
	}
	scaled := math.Round(x * scoreScale)
	if scaled >= math.MaxInt64 {
		return scoreFP(math.MaxInt64)
	}
	if scaled <= math.MinInt64 {
		return scoreFP(math.MinInt64)
	}
	return scoreFP(scaled)
}

func toFloat(x scoreFP) float64 { return float64(x) / scoreScale }

type node struct {
	id    string
	score scoreFP
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aScore, aID) should appear before (bScore, bID).
func less(aScore scoreFP, aID string, bScore scoreFP, bID string) bool {
	if aScore != bScore {
		return aScore > bScore
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, id string, score scoreFP) *node {
	if n == nil {
		return &node{id: id, score: score, prio: rand.Uint64(), size: 1} //nolint:gosec // treap priorities need no crypto
	}
	if less(score, id, n.score, n.id) {
		n.left = insert(n.left, id, score)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, score)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, score scoreFP) *node {
	if n == nil {
		return nil
	}
	switch {
	case score == n.score && id == n.id:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, score)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, score)
		}
	case less(score, id, n.score, n.id):
		n.left = deleteNode(n.left, id, score)
	default:
		n.right = deleteNode(n.right, id, score)
	}
	fix(n)
	return n
}

// collectTopN appends up to limit entries in rank order.
func collectTopN(n *node, limit int, records map[string]Record, out *[]Entry) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, records, out)
	if len(*out) < limit {
		if rec, ok := records[n.id]; ok {
			*out = append(*out, Entry{
				ID:            n.id,
				Candidate:     rec.Candidate,
				ExpectedScore: toFloat(n.score),
				Failures:      rec.Result.Failures(),
			})
		}
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, records, out)
	}
}

// TreapStore keeps saved results in memory.
type TreapStore struct {
	mu       sync.RWMutex
	tenders  map[string]*node
	byID     map[string]Record
	now      func() time.Time
	maxLimit int
}

// NewTreapStore constructs a treap store with configuration options.
func NewTreapStore(opts ...Option) *TreapStore {
	s := &TreapStore{
		tenders:  make(map[string]*node),
		byID:     make(map[string]Record),
		now:      time.Now,
		maxLimit: defaultMaxLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	metrics.UpdateSavedResults(0)
	return s
}

// Save implements Store.Save in O(log n) expected time.
func (s *TreapStore) Save(_ context.Context, rec Record) (string, error) {
	rec.TenderID = strings.TrimSpace(rec.TenderID)
	if rec.TenderID == "" {
		metrics.RecordError("repository", "invalid_record")
		return "", fmt.Errorf("%w: tender id is required", ErrInvalidRecord)
	}
	if rec.Result.Failed {
		metrics.RecordError("repository", "invalid_record")
		return "", fmt.Errorf("%w: result failed: %s", ErrInvalidRecord, rec.Result.Failure)
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.SavedAt.IsZero() {
		rec.SavedAt = s.now().UTC()
	}
	score := toFixedPoint(rec.Result.ExpectedScore)

	s.mu.Lock()
	if old, ok := s.byID[rec.ID]; ok {
		s.tenders[old.TenderID] = deleteNode(s.tenders[old.TenderID], old.ID, toFixedPoint(old.Result.ExpectedScore))
		if s.tenders[old.TenderID] == nil {
			delete(s.tenders, old.TenderID)
		}
	}
	s.byID[rec.ID] = rec
	s.tenders[rec.TenderID] = insert(s.tenders[rec.TenderID], rec.ID, score)
	count := len(s.byID)
	s.mu.Unlock()

	metrics.UpdateSavedResults(count)
	return rec.ID, nil
}

// Get returns a saved record.
func (s *TreapStore) Get(_ context.Context, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[id]
	if !ok {
		metrics.RecordError("repository", "not_found")
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// Ranking returns the top n candidates of a tender.
func (s *TreapStore) Ranking(_ context.Context, tenderID string, n int) ([]Entry, error) {
	if n < 1 || n > s.maxLimit {
		metrics.RecordError("repository", "invalid_limit")
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, n)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	root, ok := s.tenders[tenderID]
	if !ok {
		return []Entry{}, nil
	}
	out := make([]Entry, 0, min(n, nsize(root)))
	collectTopN(root, n, s.byID, &out)
	assignRanksWithTies(out)
	return out, nil
}

// Rank returns the ranking entry of one saved record.
func (s *TreapStore) Rank(_ context.Context, id string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[id]
	if !ok {
		metrics.RecordError("repository", "not_found")
		return Entry{}, ErrNotFound
	}
	root := s.tenders[rec.TenderID]
	all := make([]Entry, 0, nsize(root))
	collectTopN(root, nsize(root), s.byID, &all)
	assignRanksWithTies(all)
	for _, e := range all {
		if e.ID == id {
			return e, nil
		}
	}
	return Entry{}, ErrNotFound
}

// Count returns the number of saved records.
func (s *TreapStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// assignRanksWithTies gives equal scores the same rank; the next distinct
// score takes the next consecutive rank.
func assignRanksWithTies(entries []Entry) {
	rank := 0
	for i := range entries {
		if i == 0 || entries[i].ExpectedScore != entries[i-1].ExpectedScore {
			rank++
		}
		entries[i].Rank = rank
	}
}
