package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/ricirt/feedhub/internal/domain"
)

// MockUserRepository is a hand-written, in-memory implementation of
// UserRepository used in unit tests. Follow edges are stored once, so the
// follower and following views are always consistent.
type MockUserRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User
	order []string
	// edges[follower] is the ordered list of followees.
	edges map[string][]string

	// Optional error overrides; set in tests to simulate failure paths.
	GetByIDErr error
	FollowErr  error
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users: make(map[string]*domain.User),
		edges: make(map[string][]string),
	}
}

func (m *MockUserRepository) Create(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *u
	clone.Followers, clone.Following = nil, nil
	if _, exists := m.users[u.ID]; !exists {
		m.order = append(m.order, u.ID)
	}
	m.users[u.ID] = &clone
	return nil
}

// Remove deletes a user row and its edges, leaving any posts dangling.
func (m *MockUserRepository) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
	delete(m.edges, id)
	for follower, followees := range m.edges {
		m.edges[follower] = slices.DeleteFunc(followees, func(f string) bool { return f == id })
	}
	m.order = slices.DeleteFunc(m.order, func(o string) bool { return o == id })
}

func (m *MockUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	if m.GetByIDErr != nil {
		return nil, m.GetByIDErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *u
	clone.Following = slices.Clone(m.edges[id])
	if clone.Following == nil {
		clone.Following = []string{}
	}
	clone.Followers = m.followersLocked(id)
	return &clone, nil
}

func (m *MockUserRepository) GetSummaries(_ context.Context, ids []string) (map[string]domain.UserSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make(map[string]domain.UserSummary, len(ids))
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			result[id] = domain.UserSummary{ID: u.ID, Username: u.Username}
		}
	}
	return result, nil
}

func (m *MockUserRepository) ListSummaries(_ context.Context, excludeID string) ([]domain.UserSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := []domain.UserSummary{}
	for _, id := range m.order {
		if id == excludeID {
			continue
		}
		u := m.users[id]
		result = append(result, domain.UserSummary{ID: u.ID, Username: u.Username})
	}
	return result, nil
}

func (m *MockUserRepository) FollowerIDs(_ context.Context, userID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.followersLocked(userID), nil
}

func (m *MockUserRepository) Follow(_ context.Context, followerID, followeeID string) (bool, error) {
	if m.FollowErr != nil {
		return false, m.FollowErr
	}
	if followerID == followeeID {
		return false, domain.ErrSelfFollow
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.users[followerID] == nil || m.users[followeeID] == nil {
		return false, domain.ErrNotFound
	}
	if slices.Contains(m.edges[followerID], followeeID) {
		return false, nil
	}
	m.edges[followerID] = append(m.edges[followerID], followeeID)
	return true, nil
}

func (m *MockUserRepository) Unfollow(_ context.Context, followerID, followeeID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	followees := m.edges[followerID]
	idx := slices.Index(followees, followeeID)
	if idx < 0 {
		return false, nil
	}
	m.edges[followerID] = slices.Delete(followees, idx, idx+1)
	return true, nil
}

func (m *MockUserRepository) followersLocked(userID string) []string {
	followers := []string{}
	for _, id := range m.order {
		if slices.Contains(m.edges[id], userID) {
			followers = append(followers, id)
		}
	}
	return followers
}

// MockPostRepository is the in-memory PostRepository used in unit tests.
type MockPostRepository struct {
	mu    sync.RWMutex
	posts map[string]*domain.Post
	seq   map[string]int
	next  int

	InsertErr error
	FindErr   error
}

func NewMockPostRepository() *MockPostRepository {
	return &MockPostRepository{
		posts: make(map[string]*domain.Post),
		seq:   make(map[string]int),
	}
}

func (m *MockPostRepository) Insert(_ context.Context, p *domain.Post) (bool, error) {
	if m.InsertErr != nil {
		return false, m.InsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.posts[p.ID]; exists {
		return false, nil
	}
	clone := clonePost(p)
	clone.Likes, clone.Comments = []string{}, []string{}
	m.posts[p.ID] = clone
	m.next++
	m.seq[p.ID] = m.next
	return true, nil
}

func (m *MockPostRepository) GetByID(_ context.Context, id string) (*domain.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clonePost(p), nil
}

func (m *MockPostRepository) Find(_ context.Context, f PostFilter) ([]*domain.Post, error) {
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := []*domain.Post{}
	for _, p := range m.posts {
		if f.AuthorIDs != nil && !slices.Contains(f.AuthorIDs, p.AuthorID) {
			continue
		}
		result = append(result, clonePost(p))
	}
	slices.SortFunc(result, func(a, b *domain.Post) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return m.seq[b.ID] - m.seq[a.ID]
	})
	if f.Limit > 0 && uint64(len(result)) > f.Limit {
		result = result[:f.Limit]
	}
	return result, nil
}

func (m *MockPostRepository) UpdateContent(_ context.Context, id, content string, image *string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Content = content
	if image != nil {
		img := *image
		p.Image = &img
	}
	p.UpdatedAt = at
	return nil
}

func (m *MockPostRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.posts, id)
	delete(m.seq, id)
	return nil
}

func (m *MockPostRepository) AddLike(_ context.Context, postID, userID string) (bool, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[postID]
	if !ok {
		return false, 0, domain.ErrNotFound
	}
	if slices.Contains(p.Likes, userID) {
		return false, len(p.Likes), nil
	}
	p.Likes = append(p.Likes, userID)
	return true, len(p.Likes), nil
}

func (m *MockPostRepository) RemoveLike(_ context.Context, postID, userID string) (bool, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[postID]
	if !ok {
		return false, 0, domain.ErrNotFound
	}
	idx := slices.Index(p.Likes, userID)
	if idx < 0 {
		return false, len(p.Likes), nil
	}
	p.Likes = slices.Delete(p.Likes, idx, idx+1)
	return true, len(p.Likes), nil
}

func (m *MockPostRepository) attachComment(postID, commentID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[postID]
	if !ok {
		return false
	}
	p.Comments = append(p.Comments, commentID)
	return true
}

func (m *MockPostRepository) detachComment(postID, commentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.posts[postID]; ok {
		p.Comments = slices.DeleteFunc(p.Comments, func(id string) bool { return id == commentID })
	}
}

func clonePost(p *domain.Post) *domain.Post {
	clone := *p
	clone.Likes = slices.Clone(p.Likes)
	clone.Comments = slices.Clone(p.Comments)
	if p.Image != nil {
		img := *p.Image
		clone.Image = &img
	}
	return &clone
}

// MockCommentRepository is the in-memory CommentRepository used in unit
// tests. When constructed with a post repository it rejects comments on
// missing posts and keeps each post's comment list in step.
type MockCommentRepository struct {
	mu       sync.RWMutex
	posts    *MockPostRepository
	comments map[string]*domain.Comment
	seq      map[string]int
	next     int

	CreateErr error
}

func NewMockCommentRepository(posts *MockPostRepository) *MockCommentRepository {
	return &MockCommentRepository{
		posts:    posts,
		comments: make(map[string]*domain.Comment),
		seq:      make(map[string]int),
	}
}

func (m *MockCommentRepository) Create(_ context.Context, c *domain.Comment) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	if m.posts != nil && !m.posts.attachComment(c.PostID, c.ID) {
		return domain.ErrNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *c
	m.comments[c.ID] = &clone
	m.next++
	m.seq[c.ID] = m.next
	return nil
}

func (m *MockCommentRepository) GetByID(_ context.Context, id string) (*domain.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.comments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *c
	return &clone, nil
}

func (m *MockCommentRepository) ListByPost(_ context.Context, postID string, order SortOrder) ([]*domain.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := []*domain.Comment{}
	for _, c := range m.comments {
		if c.PostID == postID {
			clone := *c
			result = append(result, &clone)
		}
	}
	slices.SortFunc(result, func(a, b *domain.Comment) int {
		c := a.CreatedAt.Compare(b.CreatedAt)
		if c == 0 {
			c = m.seq[a.ID] - m.seq[b.ID]
		}
		if order == NewestFirst {
			return -c
		}
		return c
	})
	return result, nil
}

func (m *MockCommentRepository) UpdateContent(_ context.Context, id, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.comments[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.Content = content
	return nil
}

func (m *MockCommentRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	c, ok := m.comments[id]
	if !ok {
		m.mu.Unlock()
		return domain.ErrNotFound
	}
	delete(m.comments, id)
	delete(m.seq, id)
	m.mu.Unlock()

	if m.posts != nil {
		m.posts.detachComment(c.PostID, id)
	}
	return nil
}
