package models

import (
	"fmt"
	"strings"
)

// ChatRequest is one user turn submitted to the concierge.
type ChatRequest struct {
	UserID  string   `json:"user_id"`
	Message string   `json:"message"`
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`
}

// Validate checks the request shape. Lat and Lng must be given together and be in range.
func (r *ChatRequest) Validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return fmt.Errorf("message cannot be empty")
	}
	if (r.Lat == nil) != (r.Lng == nil) {
		return fmt.Errorf("lat and lng must be provided together")
	}
	if r.Lat != nil {
		if *r.Lat < -90 || *r.Lat > 90 {
			return fmt.Errorf("lat out of range: %v", *r.Lat)
		}
		if *r.Lng < -180 || *r.Lng > 180 {
			return fmt.Errorf("lng out of range: %v", *r.Lng)
		}
	}
	return nil
}

// Location returns the request location, or nil when none was given.
func (r *ChatRequest) Location() *Location {
	if r.Lat == nil || r.Lng == nil {
		return nil
	}
	return &Location{Lat: *r.Lat, Lng: *r.Lng}
}

// ChatResponse is the reply for a completed run.
type ChatResponse struct {
	RunID    string `json:"run_id"`
	Response string `json:"response"`
}

// ErrorResponse describes a failed run. It never carries generated text.
type ErrorResponse struct {
	Error     string `json:"error"`
	RunID     string `json:"run_id,omitempty"`
	Stage     string `json:"stage,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}
