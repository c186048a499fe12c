// Package common holds the request and reply shapes shared between the HTTP
// surface and the queue worker, so both speak the same wire format.
package common

import (
	"github.com/askgraph/askgraph/pkg/pipeline"
)

// AskRequest is a question submitted for answering, over HTTP or the queue.
type AskRequest struct {
	Question         string `json:"question" validate:"required"`
	Format           string `json:"format,omitempty"`
	IncludeContext   bool   `json:"include_context,omitempty"`
	IncludeExecution bool   `json:"include_execution,omitempty"`
}

// GenerateRequest asks for a query without executing it.
type GenerateRequest struct {
	Question string `json:"question" validate:"required"`
}

// ExecuteRequest runs an explicit query under the safety constraints.
// Sanitize strips write clauses and normalizes the query before execution
// instead of rejecting it.
type ExecuteRequest struct {
	Query    string         `json:"query" validate:"required"`
	Params   map[string]any `json:"params,omitempty"`
	Format   string         `json:"format,omitempty"`
	Page     int            `json:"page,omitempty"`
	PerPage  int            `json:"per_page,omitempty"`
	Paginate bool           `json:"paginate,omitempty"`
	Sanitize bool           `json:"sanitize,omitempty"`
}

// AskJob is one queued question. ReplyTopic names the topic the worker
// publishes the reply to.
type AskJob struct {
	CorrelationID string     `json:"correlation_id"`
	ReplyTopic    string     `json:"reply_topic"`
	Request       AskRequest `json:"request"`
}

// AskReply is the worker's answer to a queued question.
type AskReply struct {
	CorrelationID string           `json:"correlation_id"`
	Answer        *pipeline.Answer `json:"answer"`
}

// ErrorResponse is the uniform HTTP error body.
type ErrorResponse struct {
	Error string `json:"error"`
}
