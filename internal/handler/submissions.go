package handler

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/itchan-dev/crosspost/internal/poster"
	"github.com/itchan-dev/crosspost/shared/api"
	"github.com/itchan-dev/crosspost/shared/domain"
	sharederrors "github.com/itchan-dev/crosspost/shared/errors"
	"github.com/itchan-dev/crosspost/shared/utils"
)

// ValidateSubmission runs every check without posting. File descriptors
// come from the JSON body.
func (h *Handler) ValidateSubmission(w http.ResponseWriter, r *http.Request) {
	var body api.SubmissionRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	sub := body.Submission
	if !sub.Type.Valid() {
		utils.WriteErrorAndStatusCode(w, sharederrors.BadRequest("unknown submission type"))
		return
	}
	report := h.poster.Validate(&sub, body.Form)
	utils.WriteJSON(w, http.StatusOK, api.ValidationResponse{
		Problems: nonNil(report.Problems),
		Warnings: nonNil(report.Warnings),
	})
}

// PostSubmission takes the multipart upload and posts it to every selected
// website. The report is returned even when some websites failed.
func (h *Handler) PostSubmission(w http.ResponseWriter, r *http.Request) {
	body, files, err := parseUpload(w, r, h.cfg.Public.HTTP.MaxUploadSize)
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	sub := body.Submission
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	// Descriptors always describe what was actually uploaded.
	sub.Primary = nil
	if files.Primary != nil {
		sub.Primary = &files.Primary.FileDescriptor
	}
	sub.Additional = nil
	for _, f := range files.Additional {
		sub.Additional = append(sub.Additional, f.FileDescriptor)
	}

	report, err := h.poster.Post(r.Context(), poster.Job{Submission: &sub, Form: body.Form, Files: files})
	if err != nil {
		if errors.Is(err, poster.ErrUnknownSubmissionType) {
			err = sharederrors.BadRequest(err.Error())
		}
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, report)
}

func nonNil(problems []domain.Problem) []domain.Problem {
	if problems == nil {
		return []domain.Problem{}
	}
	return problems
}
