// Package httpapi exposes the webhook, reconciliation, verification and
// read endpoints over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/pollincash/pollsync/internal/events"
	"github.com/pollincash/pollsync/internal/metrics"
	"github.com/pollincash/pollsync/internal/services/payouts"
	"github.com/pollincash/pollsync/internal/services/projector"
	"github.com/pollincash/pollsync/internal/services/reconciler"
	"github.com/pollincash/pollsync/internal/services/verifier"
	"github.com/pollincash/pollsync/internal/storage"
	"github.com/pollincash/pollsync/internal/worldid"
)

// Services bundles the collaborators the handler dispatches to. Verifier may
// be nil when no World ID API key is configured.
type Services struct {
	Projector  *projector.Service
	Payouts    *payouts.Service
	Reconciler *reconciler.Service
	Verifier   *verifier.Service
	Polls      storage.PollStore

	ContractAddress string
}

// handler bundles HTTP endpoints for the sync service.
type handler struct {
	svc Services
	log *logrus.Entry
}

// NewHandler returns a router exposing the service API.
func NewHandler(svc Services, log *logrus.Entry) http.Handler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	h := &handler{svc: svc, log: log}

	r := mux.NewRouter()
	r.HandleFunc("/webhook/insight", h.insightWebhook).Methods(http.MethodPost)
	r.HandleFunc("/sync/polls", h.syncPolls).Methods(http.MethodPost)
	r.HandleFunc("/verify/worldid", h.verifyWorldID).Methods(http.MethodPost)
	r.HandleFunc("/polls", h.listPolls).Methods(http.MethodGet)
	r.HandleFunc("/polls/{id}", h.getPoll).Methods(http.MethodGet)
	r.HandleFunc("/polls/{id}/payouts", h.listPayouts).Methods(http.MethodGet)
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	return r
}

// insightWebhook ingests one contract event delivery. Deliveries are
// unauthenticated and may arrive more than once or out of order; the
// projector's merge semantics absorb what they can (see package projector).
func (h *handler) insightWebhook(w http.ResponseWriter, r *http.Request) {
	var payload events.Payload
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "Webhook processing failed",
			"message": err.Error(),
		})
		return
	}

	ev, err := events.Normalize(payload)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid event data"})
		return
	}

	if err := h.dispatchEvent(r.Context(), ev); err != nil {
		metrics.RecordWebhookEvent(ev.Name(), false)
		h.log.WithField("event", ev.Name()).WithError(err).Error("webhook processing failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "Webhook processing failed",
			"message": err.Error(),
		})
		return
	}

	metrics.RecordWebhookEvent(ev.Name(), true)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"processed": payload.EventName,
	})
}

func (h *handler) dispatchEvent(ctx context.Context, ev events.Event) error {
	switch ev := ev.(type) {
	case events.CreatedEvent:
		return h.svc.Projector.ApplyCreated(ctx, ev)
	case events.CompletedEvent:
		if _, err := h.svc.Payouts.Record(ctx, ev); err != nil {
			return err
		}
		return h.svc.Projector.ApplyCompleted(ctx, ev.PollID)
	case events.ClosedEvent:
		return h.svc.Projector.ApplyClosed(ctx, ev.PollID)
	default:
		// Unrecognized events are acknowledged and dropped so future
		// contract events do not fail deliveries.
		h.log.WithField("event", ev.Name()).Debug("ignoring unrecognized event")
		return nil
	}
}

// syncPolls re-derives every poll record from contract state.
func (h *handler) syncPolls(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.Reconciler.Reconcile(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, reconciler.ErrCounterRead):
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"success": false,
				"error":   "Failed to read poll counter from contract",
				"message": err.Error(),
				"details": map[string]any{"contractAddress": h.svc.ContractAddress},
			})
		case errors.Is(err, storage.ErrStoreUnavailable):
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"success": false,
				"error":   "Firestore database not accessible",
				"message": "Could not establish connection to Firestore",
			})
		default:
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"success": false,
				"error":   "Failed to sync polls",
				"message": err.Error(),
			})
		}
		return
	}

	if summary.Total == 0 {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "No polls found on-chain (poll counter is 0)",
			"synced":  0,
			"total":   0,
		})
		return
	}

	resp := map[string]any{
		"success": true,
		"message": syncMessage(summary),
		"synced":  summary.Synced,
		"total":   summary.Total,
	}
	if len(summary.Errors) > 0 {
		resp["errors"] = summary.Errors
	}
	writeJSON(w, http.StatusOK, resp)
}

func syncMessage(s reconciler.Summary) string {
	return fmt.Sprintf("Synced %d of %d polls", s.Synced, s.Total)
}

// verifyWorldID proxies a proof to the Worldcoin API and records the
// verification when a poll id is supplied.
func (h *handler) verifyWorldID(w http.ResponseWriter, r *http.Request) {
	if h.svc.Verifier == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"message": "WLD_API_KEY not configured",
		})
		return
	}

	var payload struct {
		Proof         worldid.Proof `json:"proof"`
		PollID        string        `json:"pollId"`
		WalletAddress string        `json:"walletAddress"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"message": "Invalid request data",
		})
		return
	}

	err := h.svc.Verifier.Verify(r.Context(), payload.Proof, payload.PollID, payload.WalletAddress)
	switch {
	case errors.Is(err, verifier.ErrInvalidProof):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"message": "Invalid World ID proof",
		})
	case errors.Is(err, verifier.ErrAlreadyVerified):
		writeJSON(w, http.StatusConflict, map[string]any{
			"success": false,
			"message": err.Error(),
		})
	case err != nil:
		h.log.WithError(err).Error("World ID verification failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"message": err.Error(),
		})
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"success":       true,
			"nullifierHash": payload.Proof.NullifierHash,
			"message":       "World ID verified successfully",
		})
	}
}

// Read path -------------------------------------------------------------------

func (h *handler) listPolls(w http.ResponseWriter, r *http.Request) {
	polls, err := h.svc.Polls.ListPolls(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, polls)
}

func (h *handler) getPoll(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	p, err := h.svc.Polls.GetPoll(r.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, storage.ErrPollNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handler) listPayouts(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	logs, err := h.svc.Payouts.ListByPoll(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"service":         "pollsync",
		"contractAddress": h.svc.ContractAddress,
	})
}

// Helpers ---------------------------------------------------------------------

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
