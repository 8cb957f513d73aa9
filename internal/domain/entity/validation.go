package entity

import (
	"fmt"
	"regexp"
)

const (
	// maxMessageLength bounds the raw question text to prevent abuse.
	maxMessageLength = 4000

	// maxIDListLength bounds video/competitor ID lists per request.
	maxIDListLength = 50
)

// channelIDPattern matches YouTube channel identifiers (UC-prefixed, 24 chars)
// and the @handle form.
var channelIDPattern = regexp.MustCompile(`^(UC[0-9A-Za-z_-]{22}|@[0-9A-Za-z._-]{3,30})$`)

// videoIDPattern matches YouTube video identifiers.
var videoIDPattern = regexp.MustCompile(`^[0-9A-Za-z_-]{11}$`)

// ValidateRequest checks an inbound analysis request for structural validity.
// It returns a ValidationError describing the first failing field.
func ValidateRequest(r *Request) error {
	if r.RawText == "" {
		return &ValidationError{Field: "message", Message: "message is required"}
	}
	if len(r.RawText) > maxMessageLength {
		return &ValidationError{
			Field:   "message",
			Message: fmt.Sprintf("message must not exceed %d characters", maxMessageLength),
		}
	}
	if r.UserID == "" {
		return &ValidationError{Field: "user_id", Message: "user_id is required"}
	}
	if r.Context.ChannelID != "" {
		if err := ValidateChannelID(r.Context.ChannelID); err != nil {
			return err
		}
	}
	if len(r.Context.VideoIDs) > maxIDListLength {
		return &ValidationError{
			Field:   "video_ids",
			Message: fmt.Sprintf("must not exceed %d entries", maxIDListLength),
		}
	}
	for _, id := range r.Context.VideoIDs {
		if !videoIDPattern.MatchString(id) {
			return &ValidationError{Field: "video_ids", Message: "invalid video id: " + id}
		}
	}
	if len(r.Context.CompetitorIDs) > maxIDListLength {
		return &ValidationError{
			Field:   "competitor_ids",
			Message: fmt.Sprintf("must not exceed %d entries", maxIDListLength),
		}
	}
	for _, id := range r.Context.CompetitorIDs {
		if err := ValidateChannelID(id); err != nil {
			return &ValidationError{Field: "competitor_ids", Message: "invalid competitor id: " + id}
		}
	}
	if r.DeclaredIntent != "" && !r.DeclaredIntent.Valid() {
		return &ValidationError{Field: "declared_intent", Message: "unknown domain: " + string(r.DeclaredIntent)}
	}
	if r.TokenBudget.Input < 0 || r.TokenBudget.Output < 0 {
		return &ValidationError{Field: "token_budget", Message: "token budget cannot be negative"}
	}
	return nil
}

// ValidateChannelID checks a channel identifier against the accepted formats.
func ValidateChannelID(id string) error {
	if id == "" {
		return &ValidationError{Field: "channel_id", Message: "channel id is required"}
	}
	if !channelIDPattern.MatchString(id) {
		return &ValidationError{Field: "channel_id", Message: "channel id must be a UC id or @handle"}
	}
	return nil
}
