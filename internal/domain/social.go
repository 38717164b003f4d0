package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxContentLength  = 4096
	MaxUsernameLength = 64
)

// User is a member of the social graph. Followers and Following are
// materialised from the follows relation; a single follow edge appears in
// both sets, so the two sides can never disagree.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Followers []string  `json:"followers"`
	Following []string  `json:"following"`
	CreatedAt time.Time `json:"created_at"`
}

// Post is authored content. Likes holds at most one entry per user.
type Post struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	Image     *string   `json:"image,omitempty"`
	Likes     []string  `json:"likes"`
	Comments  []string  `json:"comments"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LikedBy reports whether userID is in the post's like set.
func (p *Post) LikedBy(userID string) bool {
	for _, id := range p.Likes {
		if id == userID {
			return true
		}
	}
	return false
}

// Comment belongs to exactly one post.
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// UserSummary is the public projection of a user embedded in read models.
type UserSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// PostView is a post as seen by a particular viewer.
type PostView struct {
	ID        string        `json:"id"`
	Body      string        `json:"body"`
	Image     string        `json:"image"`
	CreatedAt time.Time     `json:"created_at"`
	Author    UserSummary   `json:"user"`
	IsLiked   bool          `json:"is_liked"`
	Likes     []string      `json:"likes"`
	Comments  []CommentView `json:"comments,omitempty"`
}

// CommentView is a comment annotated with its author.
type CommentView struct {
	ID        string      `json:"id"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
	Author    UserSummary `json:"comment_creator"`
}

// UserListing is one row of the "who to follow" list.
type UserListing struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	IsFollowed bool   `json:"is_followed"`
}

// LikeResult reports the outcome of a like call.
type LikeResult struct {
	Liked     bool `json:"liked"`
	LikeCount int  `json:"like_count"`
}

// NewPostView projects p for viewerID. An empty viewerID never likes anything.
func NewPostView(p *Post, author UserSummary, viewerID string) PostView {
	image := ""
	if p.Image != nil {
		image = *p.Image
	}
	likes := p.Likes
	if likes == nil {
		likes = []string{}
	}
	return PostView{
		ID:        p.ID,
		Body:      p.Content,
		Image:     image,
		CreatedAt: p.CreatedAt,
		Author:    author,
		IsLiked:   viewerID != "" && p.LikedBy(viewerID),
		Likes:     likes,
	}
}

// ValidateContent enforces the length bounds shared by posts and comments.
func ValidateContent(content string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(content))
	if n == 0 || utf8.RuneCountInString(content) > MaxContentLength {
		return ErrInvalidContent
	}
	return nil
}

// ValidateUsername enforces the username length bounds.
func ValidateUsername(username string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(username))
	if n == 0 || n > MaxUsernameLength {
		return ErrInvalidUsername
	}
	return nil
}
