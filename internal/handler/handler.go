package handler

import (
	"context"
	"net/http"

	"github.com/itchan-dev/crosspost/internal/poster"
	"github.com/itchan-dev/crosspost/internal/session"
	"github.com/itchan-dev/crosspost/internal/validation"
	"github.com/itchan-dev/crosspost/internal/website"
	"github.com/itchan-dev/crosspost/shared/config"
	"github.com/itchan-dev/crosspost/shared/domain"
)

type Poster interface {
	Post(ctx context.Context, job poster.Job) (poster.Report, error)
	Validate(sub *domain.Submission, form domain.FormData) validation.Report
}

type StatusCache interface {
	Get(ctx context.Context, key session.Key) (domain.WebsiteStatus, error)
	Check(ctx context.Context, key session.Key, auth website.AuthData) (domain.WebsiteStatus, error)
	Refresh(ctx context.Context, key session.Key, auth website.AuthData) (domain.WebsiteStatus, bool, error)
	Forget(key session.Key)
}

type Sessions interface {
	Unauthorize(ctx context.Context, key session.Key) error
}

type Websites interface {
	Entries() []website.Entry
	Adapter(name string) (website.Adapter, bool)
}

type Handler struct {
	poster   Poster
	status   StatusCache
	sessions Sessions
	websites Websites
	cfg      *config.Config
}

func New(p Poster, status StatusCache, sessions Sessions, websites Websites, cfg *config.Config) *Handler {
	return &Handler{poster: p, status: status, sessions: sessions, websites: websites, cfg: cfg}
}

// Health is a liveness probe endpoint.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
