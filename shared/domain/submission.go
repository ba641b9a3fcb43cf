package domain

import "encoding/json"

// Submission is the user's draft as the core sees it. Only the validator
// writes Problems and Warnings; adapters treat it as read-only.
type Submission struct {
	ID         string           `json:"id"`
	Rating     Rating           `json:"rating"`
	Type       SubmissionType   `json:"type"`
	Primary    *FileDescriptor  `json:"primary,omitempty"`
	Additional []FileDescriptor `json:"additional,omitempty"`
	Problems   []Problem        `json:"problems,omitempty"`
	Warnings   []Problem        `json:"warnings,omitempty"`
}

type TagData struct {
	// Extend defaults to true: site tags are appended to the default tags
	// unless a site explicitly opts out.
	Extend *bool    `json:"extend,omitempty"`
	Value  []string `json:"value"`
}

type DescriptionData struct {
	// Overwrite defaults to false: the default description wins unless a
	// site explicitly overrides it.
	Overwrite bool   `json:"overwrite"`
	Value     string `json:"value"`
}

type DefaultOptions struct {
	Title       string          `json:"title"`
	Tags        TagData         `json:"tags"`
	Description DescriptionData `json:"description"`
	Sources     []string        `json:"sources,omitempty"`
}

type WebsiteOptions struct {
	Title       string          `json:"title,omitempty"`
	Rating      Rating          `json:"rating,omitempty"`
	Tags        TagData         `json:"tags"`
	Description DescriptionData `json:"description"`
	// Options is decoded into the site's typed options value at the adapter boundary.
	Options json.RawMessage `json:"options,omitempty"`
}

// WebsitePart selects one site for one login profile.
type WebsitePart struct {
	Website   string         `json:"website"`
	ProfileID string         `json:"profile_id"`
	Data      WebsiteOptions `json:"data"`
}

type FormData struct {
	Defaults DefaultOptions `json:"defaults"`
	Parts    []WebsitePart  `json:"parts"`
}
