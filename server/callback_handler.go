package server

import (
	"encoding/json"
	"html/template"
	"net/http"

	"github.com/jrsteele09/social-connect/authflow"
	apperrors "github.com/jrsteele09/social-connect/internal/errors"
	"github.com/jrsteele09/social-connect/platforms"
	"github.com/rs/zerolog/log"
)

const (
	successCloseSeconds = 3
	failureCloseSeconds = 10
)

// CallbackPageData is the model for the callback result pages.
type CallbackPageData struct {
	Platform         string
	ErrorCode        string
	ErrorDescription string
	Message          string
	CloseAfter       int
}

// CallbackHandler serves the redirect target for every platform.
func (s *Server) CallbackHandler() http.HandlerFunc {
	success := mustParseTemplate("callback_success.html")
	failure := mustParseTemplate("callback_failure.html")

	return func(w http.ResponseWriter, r *http.Request) {
		p, err := platforms.Parse(r.PathValue("platform"))
		if err != nil {
			http.NotFound(w, r)
			return
		}

		q := r.URL.Query()
		result := authflow.NewCallbackResult(p, q.Get("code"), q.Get("state"), q.Get("error"), q.Get("error_description"))
		s.emit(result)

		if result.Succeeded() {
			log.Info().Str("platform", string(p)).Msg("authorization callback received")
			renderPage(w, http.StatusOK, success, CallbackPageData{
				Platform:   p.DisplayName(),
				CloseAfter: successCloseSeconds,
			})
			return
		}

		log.Warn().Str("platform", string(p)).Str("error", result.ErrorCode).Msg("authorization callback failed")
		renderPage(w, http.StatusBadRequest, failure, CallbackPageData{
			Platform:         p.DisplayName(),
			ErrorCode:        result.ErrorCode,
			ErrorDescription: result.ErrorDescription,
			Message:          apperrors.UserMessage(result.Err()),
			CloseAfter:       failureCloseSeconds,
		})
	}
}

// AuthStartHandler redirects the browser to a fresh authorization URL.
func (s *Server) AuthStartHandler() http.HandlerFunc {
	failure := mustParseTemplate("callback_failure.html")

	return func(w http.ResponseWriter, r *http.Request) {
		p, err := platforms.Parse(r.PathValue("platform"))
		if err != nil {
			http.NotFound(w, r)
			return
		}

		authURL, err := s.authorizer.BeginAuthorization(p)
		if err != nil {
			if apperrors.Is(err, apperrors.ErrUnknownPlatform) {
				http.NotFound(w, r)
				return
			}
			log.Error().Err(err).Str("platform", string(p)).Msg("could not start authorization")
			renderPage(w, http.StatusInternalServerError, failure, CallbackPageData{
				Platform:   p.DisplayName(),
				Message:    apperrors.UserMessage(err),
				CloseAfter: failureCloseSeconds,
			})
			return
		}
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":   "ok",
			"base_url": s.BaseURL(),
		})
	}
}

func renderPage(w http.ResponseWriter, status int, tmpl *template.Template, data CallbackPageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.Execute(w, data); err != nil {
		log.Error().Err(err).Str("template", tmpl.Name()).Msg("render failed")
	}
}
