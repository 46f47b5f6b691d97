package model

import (
	"regexp"
	"strings"
)

// emailPattern is a basic address shape check: something@something.tld.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// SubmitRequest is the inbound submission payload.
type SubmitRequest struct {
	Channel string `json:"channel"`
	Email   string `json:"email"`
}

// Normalize trims surrounding whitespace from every field.
func (r *SubmitRequest) Normalize() {
	r.Channel = strings.TrimSpace(r.Channel)
	r.Email = strings.TrimSpace(r.Email)
}

// MissingFields returns the names of required fields that are empty.
func (r *SubmitRequest) MissingFields() []string {
	var missing []string
	if r.Channel == "" {
		missing = append(missing, "channel")
	}
	if r.Email == "" {
		missing = append(missing, "email")
	}
	return missing
}

// ValidEmail reports whether the email has a basic address shape.
func (r *SubmitRequest) ValidEmail() bool {
	return IsValidEmail(r.Email)
}

// IsValidEmail reports whether addr looks like an email address.
func IsValidEmail(addr string) bool {
	return emailPattern.MatchString(addr)
}

// SubmitResult is returned once a job is accepted.
type SubmitResult struct {
	JobID    string    `json:"jobId"`
	Accepted bool      `json:"accepted"`
	Success  bool      `json:"success"`
	Message  string    `json:"message"`
	Status   JobStatus `json:"status"`
}
