// Package validation checks a submission before anything is sent to a
// website: generic checks once per submission, site rules once per selected
// website.
package validation

import (
	"errors"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"

	"github.com/itchan-dev/crosspost/internal/folders"
	"github.com/itchan-dev/crosspost/shared/domain"
)

// Websites answers whether a website name is registered.
type Websites interface {
	Has(name string) bool
}

// FolderSelection is implemented by site options that point at folders.
type FolderSelection interface {
	SelectedFolders() []string
}

type Validator struct {
	websites Websites
	structs  *validator.Validate
}

func New(websites Websites) *Validator {
	structs := validator.New(validator.WithRequiredStructEnabled())
	structs.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return &Validator{websites: websites, structs: structs}
}

// Validate resets the submission's findings and runs the generic checks.
func (v *Validator) Validate(sub *domain.Submission, form domain.FormData) Report {
	var report Report

	switch {
	case sub.Rating == "":
		report.Problem("", "rating is required")
	case !sub.Rating.Valid():
		report.Problem("", "unknown rating %q", sub.Rating)
	}

	if sub.Type == domain.TypeSubmission && sub.Primary == nil {
		report.Problem("", "a primary file is required")
	}

	if len(form.Parts) == 0 {
		report.Problem("", "no website selected")
	}
	for _, part := range form.Parts {
		if part.Website == "" || !v.websites.Has(part.Website) {
			report.Problem(part.Website, "unknown website %q", part.Website)
			continue
		}
		if part.ProfileID == "" {
			report.Problem(part.Website, "no login profile selected")
		}
	}

	sub.Problems = nil
	sub.Warnings = nil
	report.ApplyTo(sub)
	return report
}

// ValidateWebsite runs one site's rules against its resolved post data. It
// does not touch the submission; callers apply the report.
func (v *Validator) ValidateWebsite(sub *domain.Submission, data domain.PostData, rules Rules, cached []domain.Folder) Report {
	var report Report
	site := data.Login.Website

	if !rules.supportsType(data.Type) {
		report.Problem(site, "does not support %s posts", data.Type)
	}
	switch {
	case data.Rating == "":
		// reported by the generic checks
	case !data.Rating.Valid():
		report.Problem(site, "unknown rating %q", data.Rating)
	case !rules.supportsRating(data.Rating):
		report.Problem(site, "does not support rating %q", data.Rating)
	}

	if data.Type == domain.TypeSubmission {
		files := make([]domain.FileDescriptor, 0, 1+len(sub.Additional))
		if sub.Primary != nil {
			files = append(files, *sub.Primary)
		}
		files = append(files, sub.Additional...)
		for _, file := range files {
			v.checkFile(&report, site, rules, file)
		}
	}

	v.checkOptions(&report, site, data.Options)

	// An empty cache means the status was never checked; nothing to compare.
	if selection, ok := data.Options.(FolderSelection); ok && len(cached) > 0 {
		for _, id := range folders.Stale(selection.SelectedFolders(), cached) {
			report.Problem(site, "folder %q no longer exists", id)
		}
	}

	if len(data.Tags) < rules.MinTags {
		report.Problem(site, "requires at least %d tags (has %d)", rules.MinTags, len(data.Tags))
	} else if len(data.Tags) == 0 {
		report.Warn(site, "no tags")
	}

	if rules.DescriptionLimit > 0 {
		if n := utf8.RuneCountInString(data.Description); n > rules.DescriptionLimit {
			report.Warn(site, "description is %d characters; only the first %d may be shown", n, rules.DescriptionLimit)
		}
	}
	if rules.TitleLimit > 0 {
		if n := utf8.RuneCountInString(data.Title); n > rules.TitleLimit {
			report.Warn(site, "title will be truncated to %d characters", rules.TitleLimit)
		}
	}

	for _, extra := range rules.Extra {
		extra(sub, data, &report)
	}
	return report
}

func (v *Validator) checkFile(report *Report, site string, rules Rules, file domain.FileDescriptor) {
	if !SupportsFile(rules.AcceptedFiles, file) {
		report.Problem(site, "does not support file format %s (%s)", file.Name, file.MimeType)
	}
	if limit := rules.MaxFileSize.For(file); limit > 0 && file.Size > limit {
		report.Problem(site, "%s is %s, over the %s limit", file.Name,
			humanize.IBytes(uint64(file.Size)), humanize.IBytes(uint64(limit)))
	}
}

func (v *Validator) checkOptions(report *Report, site string, options any) {
	if options == nil {
		return
	}
	value := reflect.ValueOf(options)
	if value.Kind() == reflect.Pointer {
		if value.IsNil() {
			return
		}
		value = value.Elem()
	}
	if value.Kind() != reflect.Struct {
		return
	}

	err := v.structs.Struct(options)
	if err == nil {
		return
	}
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		report.Problem(site, "invalid options: %v", err)
		return
	}
	for _, fe := range fieldErrors {
		switch fe.Tag() {
		case "required":
			report.Problem(site, "option %s is required", fe.Field())
		case "oneof":
			report.Problem(site, "option %s must be one of: %s", fe.Field(), fe.Param())
		default:
			report.Problem(site, "option %s is invalid (%s)", fe.Field(), fe.Tag())
		}
	}
}
