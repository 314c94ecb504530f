package main

import (
	"github.com/liamcoop/startrescue/exam"
	"github.com/liamcoop/startrescue/rules"
)

// API Request and Response Models with Swagger annotations

// CreateExamRequest represents the request body for starting an exam
type CreateExamRequest struct {
	Name         string `json:"name" example:"Ana Souza" binding:"required"`
	Sector       string `json:"sector" example:"Rescue North"`
	Registration string `json:"registration" example:"RA-1024"`
	Email        string `json:"email,omitempty" example:"ana@example.com"`
} // @name CreateExamRequest

// ExamResponse represents a newly created exam
type ExamResponse struct {
	ID   string        `json:"id" example:"123e4567-e89b-12d3-a456-426614174000"`
	Exam exam.Snapshot `json:"exam"`
} // @name ExamResponse

// AnswerRequest represents the examinee's triage color
type AnswerRequest struct {
	Color string `json:"color" example:"YELLOW" binding:"required"`
} // @name AnswerRequest

// ActionResponse reports whether an action changed the exam, and its state
// afterwards
type ActionResponse struct {
	Applied bool          `json:"applied" example:"true"`
	Exam    exam.Snapshot `json:"exam"`
} // @name ActionResponse

// ResultsResponse represents the graded history of an exam
type ResultsResponse struct {
	Examinee exam.Examinee       `json:"examinee"`
	Records  []exam.AnswerRecord `json:"records"`
	Summary  exam.Summary        `json:"summary"`
	Quotas   exam.QuotaStatus    `json:"quotas"`
} // @name ResultsResponse

// ProtocolResponse lists the START decision table in evaluation order
type ProtocolResponse struct {
	Rules []rules.Rule `json:"rules"`
} // @name ProtocolResponse

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error" example:"exam not found"`
	Details string `json:"details,omitempty"`
} // @name ErrorResponse

// HealthResponse represents the health check response
type HealthResponse struct {
	Status         string `json:"status" example:"healthy"`
	SessionsLoaded int    `json:"sessionsLoaded" example:"3"`
	Errors         int64  `json:"errors" example:"0"`
	Warnings       int64  `json:"warnings" example:"2"`
	HTTP4xx        int64  `json:"http4xx" example:"2"`
	HTTP5xx        int64  `json:"http5xx" example:"0"`
	SlowRequests   int64  `json:"slowRequests" example:"0"`
} // @name HealthResponse
