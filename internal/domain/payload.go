package domain

import (
	"encoding/json"
	"fmt"
)

// JobPayload is the closed set of typed job bodies. Only the types in this
// file implement it.
type JobPayload interface {
	JobType() JobType
	// IdempotencyKey names the entity the job acts on so a replayed job can
	// be recognised by its handler.
	IdempotencyKey() string
	isJobPayload()
}

// CreatePostPayload defers creation of a post. The post id is assigned at
// enqueue time so that a redelivered job re-inserts the same row.
type CreatePostPayload struct {
	PostID  string  `json:"post_id"`
	UserID  string  `json:"user_id"`
	Content string  `json:"content"`
	Image   *string `json:"image,omitempty"`
}

// NewCommentPayload asks a worker to notify the post author about a comment.
type NewCommentPayload struct {
	CommentID       string `json:"comment_id"`
	PostID          string `json:"post_id"`
	CommentAuthorID string `json:"comment_author_id"`
}

// NewPostPayload asks a worker to fan a new post out to the author's followers.
type NewPostPayload struct {
	PostID   string `json:"post_id"`
	AuthorID string `json:"author_id"`
}

func (CreatePostPayload) JobType() JobType { return JobCreatePost }
func (NewCommentPayload) JobType() JobType { return JobNewComment }
func (NewPostPayload) JobType() JobType    { return JobNewPost }

func (p CreatePostPayload) IdempotencyKey() string { return string(JobCreatePost) + ":" + p.PostID }
func (p NewCommentPayload) IdempotencyKey() string { return string(JobNewComment) + ":" + p.CommentID }
func (p NewPostPayload) IdempotencyKey() string    { return string(JobNewPost) + ":" + p.PostID }

func (CreatePostPayload) isJobPayload() {}
func (NewCommentPayload) isJobPayload() {}
func (NewPostPayload) isJobPayload()    {}

// EncodePayload serialises p for storage on a job row.
func EncodePayload(p JobPayload) ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", p.JobType(), err)
	}
	return b, nil
}

// DecodePayload restores the typed payload for a job type. Decoding errors are
// permanent: replaying the same bytes can never succeed.
func DecodePayload(t JobType, data []byte) (JobPayload, error) {
	var (
		p   JobPayload
		err error
	)
	switch t {
	case JobCreatePost:
		var v CreatePostPayload
		err = json.Unmarshal(data, &v)
		p = v
	case JobNewComment:
		var v NewCommentPayload
		err = json.Unmarshal(data, &v)
		p = v
	case JobNewPost:
		var v NewPostPayload
		err = json.Unmarshal(data, &v)
		p = v
	default:
		return nil, Permanent(fmt.Errorf("%w: %q", ErrUnknownJobType, t))
	}
	if err != nil {
		return nil, Permanent(fmt.Errorf("decode %s payload: %w", t, err))
	}
	return p, nil
}
