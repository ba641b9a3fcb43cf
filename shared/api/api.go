package api

import (
	"github.com/itchan-dev/crosspost/internal/validation"
	"github.com/itchan-dev/crosspost/shared/domain"
)

// Request DTOs

// SubmissionRequest is the body of /v1/submissions/validate and the "json"
// field of /v1/submissions/post.
type SubmissionRequest struct {
	Submission domain.Submission `json:"submission"`
	Form       domain.FormData   `json:"form" validate:"required"`
}

// Response DTOs

type WebsiteResponse struct {
	Name             string                  `json:"name"`
	DisplayName      string                  `json:"display_name"`
	AcceptedFiles    []string                `json:"accepted_files,omitempty"`
	MaxFileSize      validation.SizeLimits   `json:"max_file_size"`
	MinTags          int                     `json:"min_tags,omitempty"`
	TitleLimit       int                     `json:"title_limit,omitempty"`
	DescriptionLimit int                     `json:"description_limit,omitempty"`
	Ratings          []domain.Rating         `json:"ratings,omitempty"`
	SubmissionTypes  []domain.SubmissionType `json:"submission_types,omitempty"`
}

type WebsitesResponse struct {
	Websites []WebsiteResponse `json:"websites"`
}

type StatusResponse struct {
	Website   string `json:"website"`
	ProfileID string `json:"profile_id"`
	domain.WebsiteStatus
}

type FoldersResponse struct {
	Folders []domain.Folder `json:"folders"`
}

type ValidationResponse struct {
	Problems []domain.Problem `json:"problems"`
	Warnings []domain.Problem `json:"warnings"`
}
