package sources

import (
	"context"
	"sync"
)

// factLog is a subject-keyed append-only log shared by the in-memory stores.
type factLog[T any] struct {
	mu    sync.RWMutex
	items map[string][]T
}

func newFactLog[T any]() *factLog[T] {
	return &factLog[T]{items: make(map[string][]T)}
}

func (l *factLog[T]) add(subjectID string, item T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items[subjectID] = append(l.items[subjectID], item)
}

func (l *factLog[T]) get(subjectID string) []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	stored := l.items[subjectID]
	out := make([]T, len(stored))
	copy(out, stored)
	return out
}

func (l *factLog[T]) size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, v := range l.items {
		n += len(v)
	}
	return n
}

// MemoryPaymentLedger is the in-memory reference PaymentLedger.
type MemoryPaymentLedger struct {
	log *factLog[Payment]
}

// NewMemoryPaymentLedger creates an empty in-memory payment ledger.
func NewMemoryPaymentLedger() *MemoryPaymentLedger {
	return &MemoryPaymentLedger{log: newFactLog[Payment]()}
}

// Record appends one payment observation.
func (m *MemoryPaymentLedger) Record(_ context.Context, p Payment) {
	m.log.add(p.SubjectID, p)
}

// PaymentsFor returns the subject's recorded payments.
func (m *MemoryPaymentLedger) PaymentsFor(_ context.Context, subjectID string) ([]Payment, error) {
	return m.log.get(subjectID), nil
}

// MemoryStakeBook is the in-memory reference StakeBook.
type MemoryStakeBook struct {
	log *factLog[Stake]
}

// NewMemoryStakeBook creates an empty in-memory stake book.
func NewMemoryStakeBook() *MemoryStakeBook {
	return &MemoryStakeBook{log: newFactLog[Stake]()}
}

// Record appends one stake observation.
func (m *MemoryStakeBook) Record(_ context.Context, s Stake) {
	m.log.add(s.SubjectID, s)
}

// StakesFor returns the subject's recorded stakes.
func (m *MemoryStakeBook) StakesFor(_ context.Context, subjectID string) ([]Stake, error) {
	return m.log.get(subjectID), nil
}

// MemoryCredentialDirectory is the in-memory reference CredentialDirectory.
type MemoryCredentialDirectory struct {
	log *factLog[Credential]
}

// NewMemoryCredentialDirectory creates an empty in-memory directory.
func NewMemoryCredentialDirectory() *MemoryCredentialDirectory {
	return &MemoryCredentialDirectory{log: newFactLog[Credential]()}
}

// Record appends one credential observation.
func (m *MemoryCredentialDirectory) Record(_ context.Context, c Credential) {
	m.log.add(c.SubjectID, c)
}

// CredentialsFor returns the subject's recorded credentials.
func (m *MemoryCredentialDirectory) CredentialsFor(_ context.Context, subjectID string) ([]Credential, error) {
	return m.log.get(subjectID), nil
}

// MemoryReviewFeed is the in-memory reference ReviewFeed.
type MemoryReviewFeed struct {
	log *factLog[Review]
}

// NewMemoryReviewFeed creates an empty in-memory review feed.
func NewMemoryReviewFeed() *MemoryReviewFeed {
	return &MemoryReviewFeed{log: newFactLog[Review]()}
}

// Record appends one review observation.
func (m *MemoryReviewFeed) Record(_ context.Context, r Review) {
	m.log.add(r.SubjectID, r)
}

// ReviewsFor returns the subject's recorded reviews.
func (m *MemoryReviewFeed) ReviewsFor(_ context.Context, subjectID string) ([]Review, error) {
	return m.log.get(subjectID), nil
}

// MemoryProbeLog is the in-memory reference ProbeLog.
type MemoryProbeLog struct {
	log *factLog[Probe]
}

// NewMemoryProbeLog creates an empty in-memory probe log.
func NewMemoryProbeLog() *MemoryProbeLog {
	return &MemoryProbeLog{log: newFactLog[Probe]()}
}

// Record appends one probe observation.
func (m *MemoryProbeLog) Record(_ context.Context, p Probe) {
	m.log.add(p.SubjectID, p)
}

// ProbesFor returns the subject's recorded probes.
func (m *MemoryProbeLog) ProbesFor(_ context.Context, subjectID string) ([]Probe, error) {
	return m.log.get(subjectID), nil
}
