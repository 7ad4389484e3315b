package handlers

import (
	"context"
	"fmt"
	"log"
	"strings"

	"sectbot/internal/gateway"
	"sectbot/internal/rank"
	"sectbot/internal/render"
	"sectbot/middleware"
	"sectbot/services"
)

const (
	searchMinQueryLen = 2
	searchDisplayMax  = 10
)

// LeaderboardHandler serves the leaderboard, member stats and search
// commands plus the pagination buttons of live views.
type LeaderboardHandler struct {
	store    Ledger
	views    *services.ViewRegistry
	session  gateway.Session
	resolver *rank.Resolver
	cooldown *middleware.CommandCooldown
}

func NewLeaderboardHandler(store Ledger, views *services.ViewRegistry, session gateway.Session, resolver *rank.Resolver, cooldown *middleware.CommandCooldown) *LeaderboardHandler {
	return &LeaderboardHandler{
		store:    store,
		views:    views,
		session:  session,
		resolver: resolver,
		cooldown: cooldown,
	}
}

// Register wires the handler's commands and component routes.
func (h *LeaderboardHandler) Register(d gateway.Dispatcher) {
	d.RegisterCommand("leaderboard", gateway.CommandDef{
		Description: "Show the sect contribution leaderboard",
	}, h.Leaderboard)

	d.RegisterCommand("mystats", gateway.CommandDef{
		Description: "Show a member's cultivation profile",
		Options: []gateway.CommandOption{
			{Name: "member", Description: "Member to inspect (defaults to you)", Type: gateway.OptionUser},
		},
	}, h.MyStats)

	d.RegisterCommand("search", gateway.CommandDef{
		Description: "Search the leaderboard by username",
		Options: []gateway.CommandOption{
			{Name: "query", Description: "Part of the username to look for", Type: gateway.OptionString, Required: true},
		},
	}, h.Search)

	d.RegisterComponent("lb:", h.Component)
}

// Leaderboard creates a live view and posts its first page. The view stays
// registered so ledger changes keep the posted message current.
func (h *LeaderboardHandler) Leaderboard(ctx context.Context, cmd gateway.Command, r gateway.Responder) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	if !h.cooldown.Allow(cmd.GuildID, cmd.Invoker.UserID) {
		middleware.CountCommand("leaderboard", "cooldown")
		respondError(ctx, r, "Slow Down", "You are using commands too quickly.", "Try again in "+h.cooldown.RetryAfter()+".")
		return
	}

	// Page loads can exceed the interaction response window on big guilds.
	if err := r.Defer(ctx, false); err != nil {
		log.Printf("Failed to defer leaderboard response: %v", err)
		return
	}

	view, err := h.views.Register(ctx, cmd.GuildID, cmd.Invoker.UserID)
	if err != nil {
		middleware.CountCommand("leaderboard", "error")
		log.Printf("Failed to create leaderboard view: %v", err)
		embed := render.ErrorEmbed("Leaderboard Unavailable", "Could not load the leaderboard right now.", "Try again in a moment.")
		r.Followup(ctx, gateway.Message{Embed: &embed}, true)
		return
	}

	msg := h.views.Render(ctx, view)
	ref, err := r.Followup(ctx, msg, false)
	if err != nil {
		middleware.CountCommand("leaderboard", "error")
		log.Printf("Failed to post leaderboard view: %v", err)
		h.views.Unregister(view.ID)
		return
	}

	h.views.Bind(view.ID, ref)
	middleware.CountCommand("leaderboard", "ok")
}

// Component routes clicks on the view's navigation buttons. Custom IDs are
// lb:<action>:<view-id>.
func (h *LeaderboardHandler) Component(ctx context.Context, comp gateway.Component, r gateway.Responder) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	parts := strings.SplitN(comp.CustomID, ":", 3)
	if len(parts) != 3 {
		log.Printf("Malformed leaderboard component ID: %q", comp.CustomID)
		return
	}
	action, viewID := parts[1], parts[2]

	view, ok := h.views.Get(viewID)
	if !ok {
		respondError(ctx, r, "View Expired", "This leaderboard is no longer live.", "Run /leaderboard to open a fresh one.")
		return
	}

	switch action {
	case "prev", "next":
		delta := 1
		if action == "prev" {
			delta = -1
		}
		msg, err := h.views.Turn(ctx, view, delta)
		if err != nil {
			log.Printf("Failed to turn view %s: %v", viewID, err)
			respondError(ctx, r, "Page Unavailable", "Could not load that page.", "")
			return
		}
		if err := r.Edit(ctx, msg); err != nil {
			log.Printf("Failed to edit view %s: %v", viewID, err)
		}

	case "stats":
		h.sectStats(ctx, comp.GuildID, r)

	default:
		log.Printf("Unknown leaderboard action %q", action)
	}
}

func (h *LeaderboardHandler) sectStats(ctx context.Context, guildID int64, r gateway.Responder) {
	stats, err := h.store.GetGuildStats(ctx, guildID)
	if err != nil {
		log.Printf("Failed to load guild stats: %v", err)
		respondError(ctx, r, "Statistics Unavailable", "Could not load sect statistics.", "")
		return
	}

	embed := render.InfoEmbed("Sect Statistics", "",
		render.Field{Name: "Total Members", Value: fmt.Sprintf("%d", stats.TotalMembers), Inline: true},
		render.Field{Name: "Total Contribution", Value: render.FormatLargeNumber(stats.TotalPoints), Inline: true},
		render.Field{Name: "Average Points", Value: fmt.Sprintf("%.1f", stats.AvgPoints), Inline: true},
		render.Field{Name: "Highest Points", Value: render.FormatLargeNumber(int64(stats.MaxPoints)), Inline: true},
	)
	respondEmbed(ctx, r, embed, true)
}

// MyStats shows a member's profile card with rank, position and progression.
func (h *LeaderboardHandler) MyStats(ctx context.Context, cmd gateway.Command, r gateway.Responder) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	target := cmd.Invoker
	if targetID, ok := optionID(cmd, "member"); ok && targetID != target.UserID {
		member, err := h.session.Member(ctx, cmd.GuildID, targetID)
		if err != nil {
			middleware.CountCommand("mystats", "error")
			respondError(ctx, r, "Member Not Found", "That member is not in this guild.", "")
			return
		}
		target = member
	}

	stats, err := h.store.GetStats(ctx, cmd.GuildID, target.UserID)
	if err != nil {
		middleware.CountCommand("mystats", "error")
		log.Printf("Failed to load stats for user %d: %v", target.UserID, err)
		respondError(ctx, r, "Stats Unavailable", "Could not load the profile right now.", "")
		return
	}
	if stats == nil {
		middleware.CountCommand("mystats", "ok")
		respondError(ctx, r,
			"Not Yet a Disciple",
			target.Username+" has no contribution record in this sect.",
			"Points are earned through sect activities and role rewards.",
		)
		return
	}

	profile, err := h.store.GetProfile(ctx, cmd.GuildID, target.UserID)
	if err != nil {
		log.Printf("Failed to load profile for user %d: %v", target.UserID, err)
	}

	current, nextThreshold, nextTitle, hasNext := h.resolver.Next(stats.Points, target.RoleIDs)
	status := h.resolver.StatusMessage(stats.Points, target.RoleIDs)

	guildName := "the sect"
	if name, err := h.session.GuildName(ctx, cmd.GuildID); err == nil {
		guildName = name
	}

	embed := render.UserStatsEmbed(stats.Username, stats, profile, current, nextThreshold, nextTitle, hasNext, status, guildName, target.AvatarURL)
	respondEmbed(ctx, r, embed, false)
	middleware.CountCommand("mystats", "ok")
}

// Search finds members by username fragment, showing the top matches.
func (h *LeaderboardHandler) Search(ctx context.Context, cmd gateway.Command, r gateway.Responder) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	query := strings.TrimSpace(cmd.Options["query"])
	if len([]rune(query)) < searchMinQueryLen {
		middleware.CountCommand("search", "invalid")
		respondError(ctx, r, "Query Too Short", "Search needs at least 2 characters.", "")
		return
	}

	results, err := h.store.SearchByUsername(ctx, cmd.GuildID, query)
	if err != nil {
		middleware.CountCommand("search", "error")
		log.Printf("Search for %q failed: %v", query, err)
		respondError(ctx, r, "Search Failed", "Could not search the leaderboard right now.", "")
		return
	}

	if len(results) == 0 {
		middleware.CountCommand("search", "ok")
		embed := render.InfoEmbed("No Matches", "No members matching **"+query+"** were found.")
		respondEmbed(ctx, r, embed, true)
		return
	}

	shown := results
	if len(shown) > searchDisplayMax {
		shown = shown[:searchDisplayMax]
	}

	var b strings.Builder
	for _, row := range shown {
		title := h.resolver.Title(row.Points, nil)
		fmt.Fprintf(&b, "%s **%s** - %d pts • %s\n", render.Ordinal(row.Rank), row.Username, row.Points, title)
	}
	description := b.String()
	if len(results) > searchDisplayMax {
		description += fmt.Sprintf("\n...and %d more matches.", len(results)-searchDisplayMax)
	}

	embed := render.InfoEmbed("Search Results for \""+query+"\"", description)
	respondEmbed(ctx, r, embed, true)
	middleware.CountCommand("search", "ok")
}
