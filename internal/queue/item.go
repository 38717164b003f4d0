package queue

import "github.com/ricirt/feedhub/internal/domain"

// Item is the minimal data placed on the ready buffer.
// Workers fetch the full Job from the DB using the ID,
// keeping the buffer lightweight and the stored job authoritative.
type Item struct {
	JobID string
	Type  domain.JobType
}
