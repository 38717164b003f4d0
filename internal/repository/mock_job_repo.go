package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/ricirt/feedhub/internal/domain"
)

// MockJobRepository is the in-memory JobRepository used in unit tests. Every
// method takes the lock for its whole body, which gives ClaimDue the same
// exclusivity as SKIP LOCKED.
type MockJobRepository struct {
	mu   sync.Mutex
	jobs map[string]*domain.Job

	InsertErr   error
	ClaimDueErr error
}

func NewMockJobRepository() *MockJobRepository {
	return &MockJobRepository{jobs: make(map[string]*domain.Job)}
}

func (m *MockJobRepository) Insert(_ context.Context, j *domain.Job) (string, bool, error) {
	if m.InsertErr != nil {
		return "", false, m.InsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if j.IdempotencyKey != nil {
		for _, existing := range m.jobs {
			if existing.IdempotencyKey != nil && *existing.IdempotencyKey == *j.IdempotencyKey {
				return existing.ID, false, nil
			}
		}
	}
	m.jobs[j.ID] = cloneJob(j)
	return j.ID, true, nil
}

func (m *MockJobRepository) GetByID(_ context.Context, id string) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneJob(j), nil
}

func (m *MockJobRepository) ClaimDue(_ context.Context, now time.Time, lease time.Duration, limit int) ([]*domain.Job, error) {
	if m.ClaimDueErr != nil {
		return nil, m.ClaimDueErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	due := []*domain.Job{}
	for _, j := range m.jobs {
		if j.State == domain.JobWaiting && !j.EligibleAt.After(now) {
			due = append(due, j)
		}
	}
	sortByEligibility(due)
	if len(due) > limit {
		due = due[:limit]
	}

	expires := now.Add(lease)
	claimed := make([]*domain.Job, 0, len(due))
	for _, j := range due {
		j.State = domain.JobActive
		j.LeaseExpiresAt = &expires
		j.UpdatedAt = now
		claimed = append(claimed, cloneJob(j))
	}
	return claimed, nil
}

func (m *MockJobRepository) Release(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok && j.State == domain.JobActive {
		j.State = domain.JobWaiting
		j.LeaseExpiresAt = nil
	}
	return nil
}

func (m *MockJobRepository) Complete(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok && j.State == domain.JobActive {
		j.State = domain.JobCompleted
		j.CompletedAt = &at
		j.LeaseExpiresAt = nil
		j.UpdatedAt = at
	}
	return nil
}

func (m *MockJobRepository) Fail(_ context.Context, id string, f domain.JobFailure) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.State != domain.JobActive {
		return nil
	}
	msg := f.Error
	j.Attempts++
	j.LastError = &msg
	j.LeaseExpiresAt = nil
	j.UpdatedAt = time.Now().UTC()
	if f.DeadLetter {
		j.State = domain.JobDeadLettered
	} else {
		j.State = domain.JobWaiting
		j.EligibleAt = f.RetryAt
	}
	return nil
}

func (m *MockJobRepository) RequeueExpired(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, j := range m.jobs {
		if j.State != domain.JobActive || j.LeaseExpiresAt == nil || !j.LeaseExpiresAt.Before(now) {
			continue
		}
		msg := "lease expired"
		if j.Exhausted() {
			j.State = domain.JobDeadLettered
		} else {
			j.State = domain.JobWaiting
		}
		j.Attempts++
		j.LastError = &msg
		j.EligibleAt = now
		j.LeaseExpiresAt = nil
		j.UpdatedAt = now
		n++
	}
	return n, nil
}

func (m *MockJobRepository) ListDeadLettered(_ context.Context, limit int) ([]*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := []*domain.Job{}
	for _, j := range m.jobs {
		if j.State == domain.JobDeadLettered {
			result = append(result, cloneJob(j))
		}
	}
	slices.SortFunc(result, func(a, b *domain.Job) int { return b.UpdatedAt.Compare(a.UpdatedAt) })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Expire forces an active job's lease into the past, simulating a worker
// that crashed mid-processing.
func (m *MockJobRepository) Expire(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok && j.LeaseExpiresAt != nil {
		past := time.Now().Add(-time.Second)
		j.LeaseExpiresAt = &past
	}
}

func cloneJob(j *domain.Job) *domain.Job {
	clone := *j
	clone.Payload = slices.Clone(j.Payload)
	return &clone
}
