package httpapp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cesargomez89/streampay/internal/constants"
	"github.com/cesargomez89/streampay/internal/http/dto"
)

// Aggregate runs one aggregation cycle over the default window.
func (h *Handler) Aggregate(w http.ResponseWriter, r *http.Request) {
	report, err := h.Aggregator.RunDefault(r.Context())
	if err != nil {
		h.writeError(w, constants.StatusInternalError, err)
		return
	}
	writeJSON(w, constants.StatusOK, report)
}

// Withdraw pays an artist's full pending balance to their wallet.
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req dto.WithdrawRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, constants.StatusInternalError, err)
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		h.writeValidation(w, constants.StatusInternalError, errs)
		return
	}

	res, err := h.Withdrawals.Withdraw(r.Context(), req.ArtistID, req.WalletAddress)
	if err != nil {
		h.writeError(w, constants.StatusInternalError, err)
		return
	}
	writeJSON(w, constants.StatusOK, dto.NewWithdrawResponse(res))
}

func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.Reconciler.Run(r.Context())
	if err != nil {
		h.writeError(w, constants.StatusInternalError, err)
		return
	}
	writeJSON(w, constants.StatusOK, report)
}

func (h *Handler) Aggregations(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Ledger.ListRuns(r.Context())
	if err != nil {
		h.writeError(w, constants.StatusInternalError, err)
		return
	}
	stats, err := h.Ledger.GetRunStats(r.Context())
	if err != nil {
		h.writeError(w, constants.StatusInternalError, err)
		return
	}
	backlog, err := h.Ledger.Backlog(r.Context())
	if err != nil {
		h.writeError(w, constants.StatusInternalError, err)
		return
	}
	writeJSON(w, constants.StatusOK, dto.NewAggregationsResponse(runs, stats, backlog))
}

func (h *Handler) CreateArtist(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateArtistRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, constants.StatusBadRequest, err)
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		h.writeValidation(w, constants.StatusBadRequest, errs)
		return
	}

	artist, err := h.Ledger.RegisterArtist(r.Context(), req.ToArtist())
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, artist)
}

func (h *Handler) CreateTrack(w http.ResponseWriter, r *http.Request) {
	artistID := chi.URLParam(r, "id")
	var req dto.CreateTrackRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, constants.StatusBadRequest, err)
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		h.writeValidation(w, constants.StatusBadRequest, errs)
		return
	}

	track, err := h.Ledger.AddTrack(r.Context(), req.ToTrack(artistID))
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, track)
}

func (h *Handler) RecordStream(w http.ResponseWriter, r *http.Request) {
	var req dto.RecordStreamRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, constants.StatusBadRequest, err)
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		h.writeValidation(w, constants.StatusBadRequest, errs)
		return
	}

	stream, err := h.Ledger.RecordStream(r.Context(), req.ToStream(time.Now()))
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, stream)
}

func (h *Handler) ListArtists(w http.ResponseWriter, r *http.Request) {
	artists, err := h.Ledger.ListArtists(r.Context())
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, constants.StatusOK, artists)
}

func (h *Handler) ListTracks(w http.ResponseWriter, r *http.Request) {
	tracks, err := h.Ledger.ListTracks(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, constants.StatusOK, tracks)
}

// UpdateWallet changes an artist's payout address. Refused with 409 while a
// withdrawal is open.
func (h *Handler) UpdateWallet(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateWalletRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, constants.StatusBadRequest, err)
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		h.writeValidation(w, constants.StatusBadRequest, errs)
		return
	}

	artist, err := h.Ledger.UpdateWallet(r.Context(), chi.URLParam(r, "id"), req.WalletAddress)
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, constants.StatusOK, artist)
}

func (h *Handler) GetStream(w http.ResponseWriter, r *http.Request) {
	stream, err := h.Ledger.GetStream(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, constants.StatusOK, stream)
}

func (h *Handler) GetTrack(w http.ResponseWriter, r *http.Request) {
	track, err := h.Ledger.GetTrack(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, constants.StatusOK, track)
}

// GetAggregation returns a single aggregation run, including one still running.
func (h *Handler) GetAggregation(w http.ResponseWriter, r *http.Request) {
	run, err := h.Ledger.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, constants.StatusOK, run)
}

func (h *Handler) Earnings(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Ledger.Earnings(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, constants.StatusOK, summary)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.DB != nil {
		if err := h.DB.PingContext(r.Context()); err != nil {
			h.Logger.Error("Health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, constants.StatusOK, map[string]string{"status": "ok"})
}
