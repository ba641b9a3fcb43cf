package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/itchan-dev/crosspost/internal/session"
	"github.com/itchan-dev/crosspost/internal/status"
	"github.com/itchan-dev/crosspost/internal/website"
	"github.com/itchan-dev/crosspost/shared/api"
	"github.com/itchan-dev/crosspost/shared/domain"
	sharederrors "github.com/itchan-dev/crosspost/shared/errors"
	"github.com/itchan-dev/crosspost/shared/utils"
)

func (h *Handler) GetWebsites(w http.ResponseWriter, r *http.Request) {
	entries := h.websites.Entries()
	resp := api.WebsitesResponse{Websites: make([]api.WebsiteResponse, 0, len(entries))}
	for _, e := range entries {
		rules := e.Config.Rules
		resp.Websites = append(resp.Websites, api.WebsiteResponse{
			Name:             e.Config.Name,
			DisplayName:      e.Config.DisplayName,
			AcceptedFiles:    rules.AcceptedFiles,
			MaxFileSize:      rules.MaxFileSize,
			MinTags:          rules.MinTags,
			TitleLimit:       rules.TitleLimit,
			DescriptionLimit: rules.DescriptionLimit,
			Ratings:          rules.Ratings,
			SubmissionTypes:  rules.SubmissionTypes,
		})
	}
	utils.WriteJSON(w, http.StatusOK, resp)
}

// profileKey reads {website} and {profile} from the route.
func (h *Handler) profileKey(r *http.Request) (session.Key, website.Adapter, error) {
	key := session.Key{ProfileID: chi.URLParam(r, "profile"), Website: chi.URLParam(r, "website")}
	a, ok := h.websites.Adapter(key.Website)
	if !ok {
		return key, nil, sharederrors.NotFound(fmt.Sprintf("unknown website %q", key.Website))
	}
	if key.ProfileID == "" {
		return key, nil, sharederrors.BadRequest("profile is required")
	}
	return key, a, nil
}

// remoteError maps failures talking to a website onto HTTP statuses.
func remoteError(err error) error {
	var pe *website.PostingError
	switch {
	case errors.Is(err, status.ErrUnknownWebsite):
		return sharederrors.NotFound(err.Error())
	case errors.As(err, &pe):
		return &sharederrors.ErrorWithStatusCode{Message: err.Error(), StatusCode: http.StatusBadGateway}
	}
	return err
}

func writeStatus(w http.ResponseWriter, key session.Key, st domain.WebsiteStatus) {
	utils.WriteJSON(w, http.StatusOK, api.StatusResponse{
		Website:       key.Website,
		ProfileID:     key.ProfileID,
		WebsiteStatus: st,
	})
}

// GetStatus answers from the status cache, checking live on a miss.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	key, _, err := h.profileKey(r)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	st, err := h.status.Get(r.Context(), key)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, remoteError(err))
		return
	}
	writeStatus(w, key, st)
}

// readAuth decodes an optional JSON object of credentials.
func readAuth(r *http.Request) (website.AuthData, error) {
	if r.ContentLength == 0 {
		return nil, nil
	}
	var auth website.AuthData
	if err := utils.Decode(r.Body, &auth); err != nil {
		return nil, err
	}
	return auth, nil
}

// CheckStatus forces a live check, logging in first when credentials are
// posted.
func (h *Handler) CheckStatus(w http.ResponseWriter, r *http.Request) {
	key, _, err := h.profileKey(r)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	auth, err := readAuth(r)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	st, err := h.status.Check(r.Context(), key, auth)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, remoteError(err))
		return
	}
	writeStatus(w, key, st)
}

func (h *Handler) RefreshTokens(w http.ResponseWriter, r *http.Request) {
	key, _, err := h.profileKey(r)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	auth, err := readAuth(r)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	st, ok, err := h.status.Refresh(r.Context(), key, auth)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, remoteError(err))
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeStatus(w, key, st)
}

func (h *Handler) GetFolders(w http.ResponseWriter, r *http.Request) {
	key, a, err := h.profileKey(r)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	folders := a.Folders(key.ProfileID)
	if folders == nil {
		folders = []domain.Folder{}
	}
	utils.WriteJSON(w, http.StatusOK, api.FoldersResponse{Folders: folders})
}

// ResetCookies drops the profile's cookies, or only those for ?url=.
func (h *Handler) ResetCookies(w http.ResponseWriter, r *http.Request) {
	key, a, err := h.profileKey(r)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	if err := a.ResetCookies(key.ProfileID, r.URL.Query().Get("url")); err != nil {
		utils.WriteErrorAndStatusCode(w, sharederrors.BadRequest(err.Error()))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Unauthorize forgets everything stored for the profile on the website.
func (h *Handler) Unauthorize(w http.ResponseWriter, r *http.Request) {
	key, _, err := h.profileKey(r)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	if err := h.sessions.Unauthorize(r.Context(), key); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	h.status.Forget(key)
	w.WriteHeader(http.StatusNoContent)
}
