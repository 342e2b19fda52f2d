package models

import "time"

// DigestEntry is one generated digest for one user. Entries are append-only:
// a new digest inserts a new entry and prior entries are never rewritten.
type DigestEntry struct {
	ID           string    `json:"id" badgerhold:"key"`
	UserID       string    `json:"user_id" badgerhold:"index"`
	DigestText   string    `json:"digest_text"`
	SourcePrompt string    `json:"source_prompt,omitempty"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// DigestResult is what the coordinator returns to callers: the digest text
// plus whether it was served from cache.
type DigestResult struct {
	Digest      string    `json:"digest"`
	Cached      bool      `json:"cached"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Event is a calendar event as consumed by the digest generator.
type Event struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Start     string     `json:"start"`
	End       string     `json:"end"`
	Attendees []Attendee `json:"attendees,omitempty"`
	Location  string     `json:"location,omitempty"`
	Status    string     `json:"status,omitempty"`
}

// Attendee identifies one calendar event participant.
type Attendee struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Message is an email message as consumed by the digest generator.
type Message struct {
	ID        string `json:"id"`
	ThreadID  string `json:"thread_id"`
	Subject   string `json:"subject"`
	From      string `json:"from"`
	FromEmail string `json:"from_email"`
	Snippet   string `json:"snippet"`
	Date      string `json:"date"`
	Body      string `json:"body,omitempty"`
}
