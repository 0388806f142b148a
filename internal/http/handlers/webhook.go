package handlers

import (
	"errors"
	"io"
	"net/http"

	"carecast/internal/domain"
	"carecast/internal/providers/avatar"
)

// Webhook deliveries are small JSON documents; anything bigger is not ours.
const maxWebhookBody = 1 << 20

// AvatarWebhook ingests provider callbacks. The signature is verified over
// the raw body bytes before anything is parsed. Apart from authentication
// failures, the handler always acknowledges with 200 — returning errors for
// orphaned or malformed events would only make the provider retry-storm a
// payload that will never succeed.
func (a *App) AvatarWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "failed to read body")
		return
	}

	if !avatar.VerifySignature(body, r.Header.Get(avatar.SignatureHeader), a.WebhookSecret) {
		a.Logger.Warn().Msg("handlers: webhook signature verification failed")
		a.error(w, http.StatusUnauthorized, "invalid_signature", "signature verification failed")
		return
	}

	event, err := avatar.ParseEvent(body)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("handlers: malformed webhook payload acknowledged")
		a.json(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}

	if err := a.Jobs.ApplyCallback(r.Context(), event); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.Logger.Warn().
				Str("correlation_id", event.CorrelationID).
				Str("event_type", string(event.EventType)).
				Msg("handlers: orphaned webhook event acknowledged")
		} else {
			a.Logger.Error().Err(err).
				Str("correlation_id", event.CorrelationID).
				Msg("handlers: webhook reconciliation failed")
		}
	}

	a.json(w, http.StatusOK, map[string]bool{"ok": true})
}
