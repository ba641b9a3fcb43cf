package domain

import "time"

type PostFile struct {
	FileDescriptor
	Data []byte `json:"-"`
}

type LoginInformation struct {
	ProfileID string `json:"profile_id"`
	Website   string `json:"website"`
	Username  string `json:"username,omitempty"`
}

// PostData is the payload resolved for one site. It is built once per post
// attempt and not modified afterwards.
type PostData struct {
	Title       string
	Description string
	Tags        []string
	Options     any
	Primary     *PostFile
	Additional  []PostFile
	Thumbnail   *PostFile
	ProfileID   string
	SrcURLs     []string
	Login       LoginInformation
	Type        SubmissionType
	Rating      Rating
}

type PostResult struct {
	Website   string    `json:"website"`
	ProfileID string    `json:"profile_id"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	Message   string    `json:"message,omitempty"`
	Time      time.Time `json:"time"`
	SrcURL    string    `json:"src_url,omitempty"`
	Response  string    `json:"response,omitempty"` // raw remote body, kept for diagnostics
	Attempts  int       `json:"attempts"`
	Problems  []Problem `json:"problems,omitempty"`
}

type WebsiteStatus struct {
	Username string      `json:"username,omitempty"`
	Status   LoginStatus `json:"status"`
}

func (s WebsiteStatus) LoggedIn() bool {
	return s.Status == LoggedIn
}

type Folder struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Subfolders []Folder `json:"subfolders,omitempty"`
}
