// Package server provides the HTTP transport for the GIF encode service.
// It includes handlers, middleware, routes, and DTOs separated from domain
// types.
package server

// CreateJobRequest is the HTTP request body for creating an encode job.
type CreateJobRequest struct {
	// VideoBase64 is the base64-encoded source video bytes.
	VideoBase64 string `json:"video_base64" validate:"required,base64"`
	// StartSec is the trim start in seconds.
	StartSec float64 `json:"start_sec" validate:"gte=0"`
	// EndSec is the trim end in seconds. An end before the start is
	// corrected by normalization, not rejected.
	EndSec float64 `json:"end_sec" validate:"gt=0"`
	// FPS is the output frame rate.
	FPS int `json:"fps" validate:"required,min=6,max=30"`
	// Width is the output width in pixels.
	Width int `json:"width" validate:"required,min=160,max=720"`
	// Loop selects infinite looping.
	Loop bool `json:"loop"`
	// Quality is the encoding tier: low, medium or high.
	Quality string `json:"quality" validate:"required,oneof=low medium high"`
	// SourceDurationSec is the source duration if the caller knows it.
	SourceDurationSec float64 `json:"source_duration_sec" validate:"gte=0"`
	// PushToS3 indicates whether to upload the finished GIF.
	PushToS3 bool `json:"push_to_s3"`
}

// CreateJobResponse is the HTTP response after creating a job.
type CreateJobResponse struct {
	// ID is the unique identifier for the created job.
	ID string `json:"id"`
	// Status is the initial job status.
	Status string `json:"status"`
}

// JobResponse is the HTTP response for getting job details.
type JobResponse struct {
	// ID is the unique identifier for the job.
	ID string `json:"id"`
	// Status is the current job status.
	Status string `json:"status"`
	// Progress is the percentage of completion (0-100).
	Progress int `json:"progress"`
	// Stage describes the current pipeline step, if running.
	Stage string `json:"stage,omitempty"`
	// ErrorKind classifies the failure, if any.
	ErrorKind string `json:"error_kind,omitempty"`
	// Error contains any error message if the job failed.
	Error string `json:"error,omitempty"`
	// GifBase64 is the base64-encoded GIF (if completed and not uploaded).
	GifBase64 string `json:"gif_base64,omitempty"`
	// GifURL is the S3 URL of the finished GIF (if uploaded).
	GifURL string `json:"gif_url,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
	// Engine is the engine session state.
	Engine string `json:"engine"`
}
