package handlers

import (
	"context"
	"log"
	"time"

	"sectbot/internal/gateway"
	"sectbot/middleware"
	"sectbot/services"
)

const eventTimeout = 15 * time.Second

// EventHandler keeps the ledger in sync with guild membership and turns
// role grants into promotion announcements.
type EventHandler struct {
	store    Ledger
	views    *services.ViewRegistry
	rewards  *services.RoleRewardManager
	notifier *services.PromotionNotifier
	session  gateway.Session
}

func NewEventHandler(store Ledger, views *services.ViewRegistry, rewards *services.RoleRewardManager, notifier *services.PromotionNotifier, session gateway.Session) *EventHandler {
	return &EventHandler{store: store, views: views, rewards: rewards, notifier: notifier, session: session}
}

func (h *EventHandler) Register(d gateway.Dispatcher) {
	d.OnMemberJoin(h.MemberJoined)
	d.OnMemberLeave(h.MemberLeft)
	d.OnMemberUpdate(h.MemberUpdated)
	d.OnGuildJoin(h.GuildJoined)
}

// MemberJoined seeds a zero-point ledger entry for new members so they
// appear on the board immediately.
func (h *EventHandler) MemberJoined(ctx context.Context, m gateway.Member) {
	if m.Bot {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, eventTimeout)
	defer cancel()

	if err := h.store.UpsertMember(ctx, m.GuildID, m.UserID, m.Username); err != nil {
		log.Printf("Failed to register joining member %d: %v", m.UserID, err)
		return
	}
	middleware.CountPointsUpdate("event")
	h.views.BroadcastGuildUpdate(ctx, m.GuildID)
}

// MemberLeft removes the member's ledger entry; the profile row cascades.
func (h *EventHandler) MemberLeft(ctx context.Context, m gateway.Member) {
	ctx, cancel := context.WithTimeout(ctx, eventTimeout)
	defer cancel()

	removed, err := h.store.RemoveMember(ctx, m.GuildID, m.UserID)
	if err != nil {
		log.Printf("Failed to remove leaving member %d: %v", m.UserID, err)
		return
	}
	if removed {
		h.views.BroadcastGuildUpdate(ctx, m.GuildID)
	}
}

// MemberUpdated refreshes the stored username and announces promotions when
// rank roles were granted.
func (h *EventHandler) MemberUpdated(ctx context.Context, before, after gateway.Member) {
	if after.Bot {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, eventTimeout)
	defer cancel()

	if before.Username != after.Username && after.Username != "" {
		if err := h.store.UpsertMember(ctx, after.GuildID, after.UserID, after.Username); err != nil {
			log.Printf("Failed to refresh username for member %d: %v", after.UserID, err)
		}
	}

	added := roleDiff(before.RoleIDs, after.RoleIDs)
	if len(added) > 0 {
		h.notifier.HandleRolesAdded(ctx, after, added, before.RoleIDs)
	}
}

// GuildJoined seeds ledger entries for the guild's current members and
// resumes any persisted reward schedule when the bot (re)enters a guild.
func (h *EventHandler) GuildJoined(ctx context.Context, guildID int64) {
	ctx, cancel := context.WithTimeout(ctx, eventTimeout)
	defer cancel()

	members, err := h.session.GuildMembers(ctx, guildID)
	if err != nil {
		log.Printf("Could not list members of joined guild %d: %v", guildID, err)
	} else {
		seeded := 0
		for _, m := range members {
			if m.Bot {
				continue
			}
			if err := h.store.UpsertMember(ctx, guildID, m.UserID, m.Username); err != nil {
				log.Printf("Failed to seed member %d in guild %d: %v", m.UserID, guildID, err)
				continue
			}
			seeded++
		}
		log.Printf("Seeded %d members for guild %d", seeded, guildID)
	}

	if err := h.rewards.Resume(ctx, guildID); err != nil {
		log.Printf("Failed to resume reward schedule for guild %d: %v", guildID, err)
	}
}

// roleDiff returns the IDs present in after but not before.
func roleDiff(before, after []int64) []int64 {
	seen := make(map[int64]bool, len(before))
	for _, id := range before {
		seen[id] = true
	}
	var added []int64
	for _, id := range after {
		if !seen[id] {
			added = append(added, id)
		}
	}
	return added
}
