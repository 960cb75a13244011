// Package web provides HTTP request and response types for the scrape and review API.
package web

// ReviewerHeader carries the ID of the administrator approving or rejecting a draft.
const ReviewerHeader = "X-Reviewer-ID"

// ScrapeRequest represents the request body for triggering one scrape run.
type ScrapeRequest struct {
	VisaType string `json:"visaType" validate:"required,max=16"`
	Country  string `json:"country"  validate:"required,len=2,alpha"`
}

// ApproveRequest represents the optional request body for approving a draft.
type ApproveRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

// RejectRequest represents the request body for rejecting a draft.
type RejectRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
	Notes  string `json:"notes"  validate:"max=2000"`
}
