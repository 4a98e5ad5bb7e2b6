package handlers

import (
	"errors"
	"net/http"

	"campaignsvc/internal/domain"
	"campaignsvc/internal/middleware"
)

const codePayloadTooLarge = "payload_too_large"

var messages = map[string]map[string]string{
	"en": {
		"unauthorized":           "authentication required",
		"malformed_request":      "the request could not be read",
		"invalid_campaign_input": "the campaign details are incomplete",
		"campaign_not_found":     "campaign not found",
		codePayloadTooLarge:      "the upload is too large",
		"internal":               "something went wrong, please try again",
	},
	"id": {
		"unauthorized":           "autentikasi diperlukan",
		"malformed_request":      "permintaan tidak dapat dibaca",
		"invalid_campaign_input": "detail kampanye belum lengkap",
		"campaign_not_found":     "kampanye tidak ditemukan",
		codePayloadTooLarge:      "unggahan terlalu besar",
		"internal":               "terjadi kesalahan, silakan coba lagi",
	},
}

func localize(locale, code string) string {
	if msg, ok := messages[locale][code]; ok {
		return msg
	}
	if msg, ok := messages["en"][code]; ok {
		return msg
	}
	return messages["en"]["internal"]
}

func (a *App) error(w http.ResponseWriter, r *http.Request, status int, code, detail string) {
	body := map[string]string{
		"error": localize(middleware.LocaleFromContext(r.Context()), code),
		"code":  code,
	}
	if detail != "" && status < http.StatusInternalServerError {
		body["detail"] = detail
	}
	a.json(w, status, body)
}

// fail maps err onto a status code and writes the error response.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		a.error(w, r, http.StatusRequestEntityTooLarge, codePayloadTooLarge, err.Error())
		return
	}
	code := domain.ErrorClass(err)
	status := http.StatusInternalServerError
	switch code {
	case "unauthorized":
		status = http.StatusUnauthorized
	case "malformed_request":
		status = http.StatusBadRequest
	case "invalid_campaign_input":
		status = http.StatusUnprocessableEntity
	case "campaign_not_found":
		status = http.StatusNotFound
	default:
		code = "internal"
		a.logger(r).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	a.error(w, r, status, code, err.Error())
}
