package dto

import (
	"strings"
	"time"

	"github.com/cesargomez89/streampay/internal/domain"
)

type WithdrawRequest struct {
	ArtistID      string `json:"artist_id"`
	WalletAddress string `json:"wallet_address"`
}

func (r *WithdrawRequest) Validate() []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateRequired("artist_id", r.ArtistID)...)
	errs = append(errs, validateWallet("wallet_address", r.WalletAddress)...)
	return errs
}

type CreateArtistRequest struct {
	UserID        string  `json:"user_id"`
	ArtistName    string  `json:"artist_name"`
	WalletAddress string  `json:"wallet_address"`
	Bio           *string `json:"bio"`
	AvatarURL     *string `json:"avatar_url"`
}

func (r *CreateArtistRequest) Validate() []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateRequired("artist_name", r.ArtistName)...)
	errs = append(errs, validateWallet("wallet_address", r.WalletAddress)...)
	errs = append(errs, validateMaxLen("bio", r.Bio, 2000)...)
	return errs
}

func (r *CreateArtistRequest) ToArtist() *domain.Artist {
	return &domain.Artist{
		UserID:        strings.TrimSpace(r.UserID),
		ArtistName:    strings.TrimSpace(r.ArtistName),
		WalletAddress: strings.TrimSpace(r.WalletAddress),
		Bio:           r.Bio,
		AvatarURL:     r.AvatarURL,
	}
}

type UpdateWalletRequest struct {
	WalletAddress string `json:"wallet_address"`
}

func (r *UpdateWalletRequest) Validate() []ValidationError {
	return validateWallet("wallet_address", r.WalletAddress)
}

type CreateTrackRequest struct {
	Title    string  `json:"title"`
	IPFSCID  string  `json:"ipfs_cid"`
	Duration int     `json:"duration"`
	Genre    *string `json:"genre"`
}

func (r *CreateTrackRequest) Validate() []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateRequired("title", r.Title)...)
	errs = append(errs, validateDuration("duration", r.Duration)...)
	errs = append(errs, validateMaxLen("genre", r.Genre, 100)...)
	return errs
}

func (r *CreateTrackRequest) ToTrack(artistID string) *domain.Track {
	return &domain.Track{
		ArtistID: artistID,
		Title:    strings.TrimSpace(r.Title),
		IPFSCID:  strings.TrimSpace(r.IPFSCID),
		Duration: r.Duration,
		Genre:    r.Genre,
	}
}

// RecordStreamRequest is a listening event reported by a player. StreamedAt
// defaults to the time the request is received.
type RecordStreamRequest struct {
	TrackID          string  `json:"track_id"`
	ListenerID       *string `json:"listener_id"`
	Completed        bool    `json:"completed"`
	DurationListened int     `json:"duration_listened"`
	StreamedAt       *string `json:"streamed_at"`
}

func (r *RecordStreamRequest) Validate() []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateRequired("track_id", r.TrackID)...)
	errs = append(errs, validateDuration("duration_listened", r.DurationListened)...)
	_, tsErrs := parseTimestamp("streamed_at", r.StreamedAt)
	errs = append(errs, tsErrs...)
	return errs
}

func (r *RecordStreamRequest) ToStream(now time.Time) *domain.Stream {
	at, _ := parseTimestamp("streamed_at", r.StreamedAt)
	if at.IsZero() {
		at = now.UTC()
	}
	return &domain.Stream{
		TrackID:          strings.TrimSpace(r.TrackID),
		ListenerID:       r.ListenerID,
		Completed:        r.Completed,
		DurationListened: r.DurationListened,
		StreamedAt:       at,
	}
}
