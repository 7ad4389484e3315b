package handlers

import (
	"context"
	"log"
	"strconv"
	"time"

	"sectbot/internal/gateway"
	"sectbot/internal/ledger"
	"sectbot/internal/render"
)

// commandTimeout bounds the work done for one interaction.
const commandTimeout = 10 * time.Second

// Ledger is the store surface the command handlers share. *services.LedgerService
// satisfies it; tests substitute fakes.
type Ledger interface {
	UpsertMember(ctx context.Context, guildID, userID int64, username string) error
	RemoveMember(ctx context.Context, guildID, userID int64) (bool, error)
	ApplyPointsDelta(ctx context.Context, guildID, userID int64, delta int, username string) (bool, int, error)
	GetStats(ctx context.Context, guildID, userID int64) (*ledger.Stats, error)
	GetPage(ctx context.Context, guildID int64, page, perPage int) (*ledger.Page, error)
	SearchByUsername(ctx context.Context, guildID int64, query string) ([]ledger.Row, error)
	GetGuildTotalPoints(ctx context.Context, guildID int64) (int64, error)
	GetGuildStats(ctx context.Context, guildID int64) (*ledger.GuildStats, error)
	SetGuildConfig(ctx context.Context, guildID int64, key, value string) error
	GetGuildConfig(ctx context.Context, guildID int64, key string) (string, bool, error)
	GetGuildConfigInt(ctx context.Context, guildID int64, key string) (int64, bool, error)
	GetProfile(ctx context.Context, guildID, userID int64) (*ledger.Profile, error)
	UpdateProfile(ctx context.Context, guildID, userID int64, update ledger.ProfileUpdate) (bool, error)
}

// optionInt reads an integer command option.
func optionInt(cmd gateway.Command, name string) (int, bool) {
	raw, ok := cmd.Options[name]
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

// optionID reads a snowflake command option (user, role or channel).
func optionID(cmd gateway.Command, name string) (int64, bool) {
	raw, ok := cmd.Options[name]
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// respondError sends a standardized ephemeral error card.
func respondError(ctx context.Context, r gateway.Responder, title, description, suggestion string) {
	embed := render.ErrorEmbed(title, description, suggestion)
	if err := r.Respond(ctx, gateway.Message{Embed: &embed}, true); err != nil {
		log.Printf("Failed to send error response: %v", err)
	}
}

// respondEmbed sends an embed-only response.
func respondEmbed(ctx context.Context, r gateway.Responder, embed render.Embed, ephemeral bool) {
	if err := r.Respond(ctx, gateway.Message{Embed: &embed}, ephemeral); err != nil {
		log.Printf("Failed to send response: %v", err)
	}
}
