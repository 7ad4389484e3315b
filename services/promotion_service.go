package services

import (
	"context"
	"log"
	"strings"

	"sectbot/internal/gateway"
	"sectbot/internal/ledger"
	"sectbot/internal/rank"
	"sectbot/internal/render"
)

// preferredAnnouncementChannels are tried in order when no notification
// channel is configured for the guild.
var preferredAnnouncementChannels = []string{"general", "announcements", "leaderboard", "bot-commands"}

// ProfileReader is the slice of the ledger the notifier needs: the member's
// position for the announcement card and the DM opt-out flag.
type ProfileReader interface {
	GetStats(ctx context.Context, guildID, userID int64) (*ledger.Stats, error)
	GetProfile(ctx context.Context, guildID, userID int64) (*ledger.Profile, error)
	GetGuildConfigInt(ctx context.Context, guildID int64, key string) (int64, bool, error)
}

// PromotionNotifier announces rank advancements to the guild and, where the
// member allows it, by direct message.
type PromotionNotifier struct {
	store    ProfileReader
	session  gateway.Session
	resolver *rank.Resolver
}

func NewPromotionNotifier(store ProfileReader, session gateway.Session, resolver *rank.Resolver) *PromotionNotifier {
	return &PromotionNotifier{store: store, session: session, resolver: resolver}
}

// HandleRolesAdded inspects roles newly granted to a member. Every added
// role that belongs to the rank mapping and whose point requirement the
// member meets produces one announcement; several qualifying roles in one
// grant produce several. Roles outside the mapping are ignored, as are
// grants the member has not yet earned the points for.
func (n *PromotionNotifier) HandleRolesAdded(ctx context.Context, member gateway.Member, addedRoleIDs []int64, previousRoleIDs []int64) {
	if len(addedRoleIDs) == 0 {
		return
	}

	stats, err := n.store.GetStats(ctx, member.GuildID, member.UserID)
	if err != nil {
		log.Printf("Promotion check for user %d failed to load stats: %v", member.UserID, err)
		return
	}
	points := 0
	if stats != nil {
		points = stats.Points
	}

	previousRank := n.resolver.Title(points, previousRoleIDs)

	for _, roleID := range addedRoleIDs {
		title, required, ok := n.resolver.Requirement(roleID)
		if !ok || points < required {
			continue
		}
		roleName := ""
		if role, err := n.session.Role(ctx, member.GuildID, roleID); err == nil {
			roleName = role.Name
		}
		n.Announce(ctx, member, previousRank, title, points, roleName)
	}
}

// Announce posts the promotion card to the guild's announcement channel and
// sends the member a congratulation DM. The two deliveries are independent:
// a failed channel post never suppresses the DM, and vice versa.
func (n *PromotionNotifier) Announce(ctx context.Context, member gateway.Member, oldRank, newRank string, points int, roleName string) {
	guildName := "the sect"
	if name, err := n.session.GuildName(ctx, member.GuildID); err == nil {
		guildName = name
	}

	embed := render.PromotionEmbed(member.Username, guildName, oldRank, newRank, points, roleName)
	msg := gateway.Message{Embed: &embed}

	if !n.deliverToGuild(ctx, member.GuildID, msg) {
		log.Printf("No channel in guild %d accepted the promotion announcement, skipping channel post", member.GuildID)
	}

	n.sendDM(ctx, member, newRank, guildName)
}

// deliverToGuild walks the announcement chain until one post lands: the
// configured notification channel first, then well-known channel names,
// then any remaining text channel. A channel that rejects the post because
// it is gone or unwritable is skipped and the next candidate is tried.
func (n *PromotionNotifier) deliverToGuild(ctx context.Context, guildID int64, msg gateway.Message) bool {
	tried := make(map[int64]bool)

	if channelID, ok, err := n.store.GetGuildConfigInt(ctx, guildID, ConfigNotificationChannel); err != nil {
		log.Printf("Failed to read notification channel config for guild %d: %v", guildID, err)
	} else if ok {
		sent, next := n.trySend(ctx, guildID, channelID, msg)
		if sent {
			return true
		}
		if !next {
			return false
		}
		tried[channelID] = true
	}

	channels, err := n.session.Channels(ctx, guildID)
	if err != nil {
		log.Printf("Failed to list channels for guild %d: %v", guildID, err)
		return false
	}

	for _, name := range preferredAnnouncementChannels {
		for _, ch := range channels {
			if tried[ch.ID] || !strings.EqualFold(ch.Name, name) {
				continue
			}
			sent, next := n.trySend(ctx, guildID, ch.ID, msg)
			if sent {
				return true
			}
			if !next {
				return false
			}
			tried[ch.ID] = true
		}
	}

	for _, ch := range channels {
		if tried[ch.ID] {
			continue
		}
		sent, next := n.trySend(ctx, guildID, ch.ID, msg)
		if sent {
			return true
		}
		if !next {
			return false
		}
		tried[ch.ID] = true
	}

	return false
}

// trySend posts to one channel. next reports whether the chain should keep
// going: missing permission and deleted channels are per-channel faults,
// while rate limits and unknown errors would hit every channel alike.
func (n *PromotionNotifier) trySend(ctx context.Context, guildID, channelID int64, msg gateway.Message) (sent, next bool) {
	_, err := n.session.SendMessage(ctx, channelID, msg)
	if err == nil {
		return true, false
	}
	switch gateway.KindOf(err) {
	case gateway.KindPermissionDenied:
		log.Printf("No permission to post in channel %d of guild %d, trying the next channel", channelID, guildID)
		return false, true
	case gateway.KindNotFound:
		log.Printf("Channel %d of guild %d is gone, trying the next channel", channelID, guildID)
		return false, true
	default:
		log.Printf("Failed to post announcement in channel %d of guild %d: %v", channelID, guildID, err)
		return false, false
	}
}

func (n *PromotionNotifier) sendDM(ctx context.Context, member gateway.Member, newRank, guildName string) {
	profile, err := n.store.GetProfile(ctx, member.GuildID, member.UserID)
	if err != nil {
		log.Printf("Failed to load profile for DM to user %d: %v", member.UserID, err)
	}
	if profile != nil && !profile.NotificationDM {
		return
	}

	embed := render.SuccessEmbed(
		"Congratulations on Your Advancement",
		"You have been promoted to **"+newRank+"** in "+guildName+".\nYour dedication to the sect has been recognized.",
	)
	if err := n.session.SendDM(ctx, member.UserID, gateway.Message{Embed: &embed}); err != nil {
		// Closed DMs surface as permission errors; not worth more than a log line.
		log.Printf("Could not DM promotion notice to user %d: %v", member.UserID, err)
	}
}
