package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	goaway "github.com/TwiN/go-away"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ricirt/feedhub/internal/domain"
	"github.com/ricirt/feedhub/internal/notify"
	"github.com/ricirt/feedhub/internal/repository"
)

// UserService owns the social graph: users and the follows relation.
type UserService struct {
	users    repository.UserRepository
	notifier *notify.Dispatcher
	logger   *zap.Logger
}

func NewUserService(users repository.UserRepository, notifier *notify.Dispatcher, logger *zap.Logger) *UserService {
	return &UserService{users: users, notifier: notifier, logger: logger}
}

func (s *UserService) Create(ctx context.Context, username string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if err := domain.ValidateUsername(username); err != nil {
		return nil, err
	}
	if goaway.IsProfane(username) {
		return nil, fmt.Errorf("%w: profanity detected", domain.ErrInvalidUsername)
	}
	u := &domain.User{
		ID:        uuid.NewString(),
		Username:  username,
		Followers: []string{},
		Following: []string{},
		CreatedAt: time.Now().UTC(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("persist user: %w", err)
	}
	return u, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

// Follow makes userID follow targetID and reports whether the graph changed.
// Following someone already followed is a no-op and sends no notification.
func (s *UserService) Follow(ctx context.Context, userID, targetID string) (bool, error) {
	actor, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	if _, err := s.users.GetByID(ctx, targetID); err != nil {
		return false, err
	}
	if userID == targetID {
		return false, domain.ErrSelfFollow
	}

	changed, err := s.users.Follow(ctx, userID, targetID)
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}

	s.notifier.Dispatch(ctx, domain.Notification{
		RecipientID: targetID,
		ActorID:     userID,
		Kind:        domain.NotificationFollow,
		Message:     domain.FollowMessage(actor.Username),
	})
	return true, nil
}

// Unfollow removes the edge if present. Not following is not an error.
func (s *UserService) Unfollow(ctx context.Context, userID, targetID string) (bool, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return false, err
	}
	if _, err := s.users.GetByID(ctx, targetID); err != nil {
		return false, err
	}
	return s.users.Unfollow(ctx, userID, targetID)
}

// ListOthers lists every user except callerID, marking those the caller
// follows.
func (s *UserService) ListOthers(ctx context.Context, callerID string) ([]domain.UserListing, error) {
	following := map[string]bool{}
	if callerID != "" {
		caller, err := s.users.GetByID(ctx, callerID)
		if err != nil {
			return nil, err
		}
		for _, id := range caller.Following {
			following[id] = true
		}
	}

	others, err := s.users.ListSummaries(ctx, callerID)
	if err != nil {
		return nil, err
	}
	result := make([]domain.UserListing, 0, len(others))
	for _, u := range others {
		result = append(result, domain.UserListing{ID: u.ID, Username: u.Username, IsFollowed: following[u.ID]})
	}
	return result, nil
}
