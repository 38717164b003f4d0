package domain_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ricirt/feedhub/internal/domain"
)

func TestValidateContent(t *testing.T) {
	t.Run("valid content passes", func(t *testing.T) {
		assert.NoError(t, domain.ValidateContent("hello"))
	})

	t.Run("empty content", func(t *testing.T) {
		assert.ErrorIs(t, domain.ValidateContent(""), domain.ErrInvalidContent)
	})

	t.Run("whitespace only", func(t *testing.T) {
		assert.ErrorIs(t, domain.ValidateContent("   \n"), domain.ErrInvalidContent)
	})

	t.Run("content at max length passes", func(t *testing.T) {
		assert.NoError(t, domain.ValidateContent(strings.Repeat("x", domain.MaxContentLength)))
	})

	t.Run("content too long", func(t *testing.T) {
		err := domain.ValidateContent(strings.Repeat("x", domain.MaxContentLength+1))
		assert.ErrorIs(t, err, domain.ErrInvalidContent)
	})
}

func TestValidateUsername(t *testing.T) {
	assert.NoError(t, domain.ValidateUsername("ada"))
	assert.ErrorIs(t, domain.ValidateUsername(" "), domain.ErrInvalidUsername)
	assert.ErrorIs(t, domain.ValidateUsername(strings.Repeat("a", 65)), domain.ErrInvalidUsername)
}

func TestSelfFollowIsInvalidOperation(t *testing.T) {
	assert.ErrorIs(t, domain.ErrSelfFollow, domain.ErrInvalidOperation)
}

func TestPermanent(t *testing.T) {
	base := errors.New("boom")

	assert.Nil(t, domain.Permanent(nil))
	assert.False(t, domain.IsPermanent(base))

	err := domain.Permanent(base)
	assert.True(t, domain.IsPermanent(err))
	assert.ErrorIs(t, err, base, "the original cause stays reachable")
	assert.Equal(t, "boom", err.Error())
}

func TestDecodePayload(t *testing.T) {
	image := "/uploads/cat.png"
	payloads := []domain.JobPayload{
		domain.CreatePostPayload{PostID: "p1", UserID: "u1", Content: "hi", Image: &image},
		domain.NewCommentPayload{CommentID: "c1", PostID: "p1", CommentAuthorID: "u2"},
		domain.NewPostPayload{PostID: "p1", AuthorID: "u1"},
	}

	for _, p := range payloads {
		t.Run(string(p.JobType()), func(t *testing.T) {
			b, err := domain.EncodePayload(p)
			require.NoError(t, err)

			got, err := domain.DecodePayload(p.JobType(), b)
			require.NoError(t, err)
			assert.Equal(t, p, got)
			assert.Equal(t, p.IdempotencyKey(), got.IdempotencyKey())
		})
	}
}

func TestDecodePayload_Errors(t *testing.T) {
	t.Run("unknown type is permanent", func(t *testing.T) {
		_, err := domain.DecodePayload("send-fax", []byte(`{}`))
		assert.ErrorIs(t, err, domain.ErrUnknownJobType)
		assert.True(t, domain.IsPermanent(err))
	})

	t.Run("malformed body is permanent", func(t *testing.T) {
		_, err := domain.DecodePayload(domain.JobNewPost, []byte(`{not json`))
		assert.True(t, domain.IsPermanent(err))
	})
}

func TestIdempotencyKeysNameTheTargetEntity(t *testing.T) {
	assert.Equal(t, "create-post:p1", domain.CreatePostPayload{PostID: "p1"}.IdempotencyKey())
	assert.Equal(t, "new-comment:c9", domain.NewCommentPayload{CommentID: "c9"}.IdempotencyKey())
	assert.Equal(t, "new-post:p1", domain.NewPostPayload{PostID: "p1"}.IdempotencyKey())
}

func TestJob_Exhausted(t *testing.T) {
	j := domain.Job{MaxAttempts: 3}
	for attempts := 0; attempts < 3; attempts++ {
		j.Attempts = attempts
		assert.False(t, j.Exhausted(), "attempts=%d", attempts)
	}
	j.Attempts = 3
	assert.True(t, j.Exhausted())
}

func TestNewPostView(t *testing.T) {
	p := &domain.Post{ID: "p1", AuthorID: "a", Content: "body", Likes: []string{"v"}}
	author := domain.UserSummary{ID: "a", Username: "alice"}

	v := domain.NewPostView(p, author, "v")
	assert.True(t, v.IsLiked)
	assert.Equal(t, "body", v.Body)
	assert.Equal(t, "", v.Image)

	assert.False(t, domain.NewPostView(p, author, "someone-else").IsLiked)
	assert.False(t, domain.NewPostView(p, author, "").IsLiked)

	empty := domain.NewPostView(&domain.Post{ID: "p2"}, author, "v")
	assert.NotNil(t, empty.Likes)
}

func TestJobType_IsValid(t *testing.T) {
	for _, jt := range []domain.JobType{domain.JobCreatePost, domain.JobNewComment, domain.JobNewPost} {
		assert.True(t, jt.IsValid(), jt)
	}
	assert.False(t, domain.JobType("send-fax").IsValid())
}
