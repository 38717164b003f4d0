package service

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/ricirt/feedhub/internal/domain"
)

var stripPolicy = bluemonday.StrictPolicy()

// cleanContent strips all markup from user text and validates what is left.
// Entities escaped by the policy are decoded again: content is stored as
// plain text and escaped by whoever renders it.
func cleanContent(s string) (string, error) {
	s = html.UnescapeString(stripPolicy.Sanitize(strings.TrimSpace(s)))
	if err := domain.ValidateContent(s); err != nil {
		return "", err
	}
	return s, nil
}
