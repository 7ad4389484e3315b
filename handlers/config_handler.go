package handlers

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"sectbot/internal/gateway"
	"sectbot/internal/ledger"
	"sectbot/internal/render"
	"sectbot/middleware"
	"sectbot/services"
)

const (
	maxCustomTitleLen   = 100
	maxStatusMessageLen = 200

	minRewardIntervalMinutes = 1
	maxRewardIntervalMinutes = 7 * 24 * 60
)

// ConfigHandler serves guild configuration: the notification channel, the
// reward schedule and member profile customization.
type ConfigHandler struct {
	store   Ledger
	rewards *services.RoleRewardManager
	session gateway.Session
}

func NewConfigHandler(store Ledger, rewards *services.RoleRewardManager, session gateway.Session) *ConfigHandler {
	return &ConfigHandler{store: store, rewards: rewards, session: session}
}

func (h *ConfigHandler) Register(d gateway.Dispatcher) {
	d.RegisterCommand("setchannel", gateway.CommandDef{
		Description: "Set the channel for promotion announcements",
		AdminOnly:   true,
		Options: []gateway.CommandOption{
			{Name: "channel", Description: "Channel for announcements", Type: gateway.OptionChannel, Required: true},
		},
	}, h.SetChannel)

	d.RegisterCommand("setuprewards", gateway.CommandDef{
		Description: "Schedule periodic points for a role",
		AdminOnly:   true,
		Options: []gateway.CommandOption{
			{Name: "role", Description: "Role that earns the reward", Type: gateway.OptionRole, Required: true},
			{Name: "points", Description: "Points per distribution", Type: gateway.OptionInteger, Required: true},
			{Name: "interval", Description: "Minutes between distributions", Type: gateway.OptionInteger, Required: true},
		},
	}, h.SetupRewards)

	d.RegisterCommand("stoprewards", gateway.CommandDef{
		Description: "Stop the periodic reward schedule",
		AdminOnly:   true,
	}, h.StopRewards)

	d.RegisterCommand("rewardstatus", gateway.CommandDef{
		Description: "Show the running reward schedule",
	}, h.RewardStatus)

	d.RegisterCommand("setprofile", gateway.CommandDef{
		Description: "Customize your cultivation profile",
		Options: []gateway.CommandOption{
			{Name: "title", Description: "Custom title shown on your card", Type: gateway.OptionString},
			{Name: "motto", Description: "Personal motto shown on your card", Type: gateway.OptionString},
			{Name: "color", Description: "Card color as #RRGGBB", Type: gateway.OptionString},
			{Name: "dm", Description: "Receive promotion DMs (true/false)", Type: gateway.OptionString},
		},
	}, h.SetProfile)
}

// SetChannel stores the guild's promotion announcement channel.
func (h *ConfigHandler) SetChannel(ctx context.Context, cmd gateway.Command, r gateway.Responder) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	channelID, ok := optionID(cmd, "channel")
	if !ok {
		middleware.CountCommand("setchannel", "invalid")
		respondError(ctx, r, "Invalid Channel", "Could not read the channel option.", "")
		return
	}

	if err := h.store.SetGuildConfig(ctx, cmd.GuildID, services.ConfigNotificationChannel, strconv.FormatInt(channelID, 10)); err != nil {
		middleware.CountCommand("setchannel", "error")
		log.Printf("Failed to store notification channel for guild %d: %v", cmd.GuildID, err)
		respondError(ctx, r, "Configuration Failed", "Could not save the channel setting.", "")
		return
	}

	middleware.CountCommand("setchannel", "ok")
	embed := render.SuccessEmbed("Channel Configured", fmt.Sprintf("Promotion announcements will be posted in <#%d>.", channelID))
	respondEmbed(ctx, r, embed, true)
}

// SetupRewards starts or replaces the guild's periodic reward schedule.
func (h *ConfigHandler) SetupRewards(ctx context.Context, cmd gateway.Command, r gateway.Responder) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	roleID, ok := optionID(cmd, "role")
	if !ok {
		middleware.CountCommand("setuprewards", "invalid")
		respondError(ctx, r, "Invalid Role", "Could not read the role option.", "")
		return
	}
	points, ok := optionInt(cmd, "points")
	if !ok || points < 1 || points > maxPointsPerCommand {
		middleware.CountCommand("setuprewards", "invalid")
		respondError(ctx, r, "Invalid Points", "Reward points must be between 1 and 10000.", "")
		return
	}
	minutes, ok := optionInt(cmd, "interval")
	if !ok || minutes < minRewardIntervalMinutes || minutes > maxRewardIntervalMinutes {
		middleware.CountCommand("setuprewards", "invalid")
		respondError(ctx, r, "Invalid Interval", "Interval must be between 1 minute and 7 days.", "")
		return
	}

	interval := time.Duration(minutes) * time.Minute
	if err := h.rewards.Setup(ctx, cmd.GuildID, roleID, points, interval); err != nil {
		middleware.CountCommand("setuprewards", "error")
		log.Printf("Failed to set up rewards for guild %d: %v", cmd.GuildID, err)
		respondError(ctx, r, "Setup Failed", "Could not start the reward schedule.", "")
		return
	}

	roleName := fmt.Sprintf("role %d", roleID)
	if role, err := h.session.Role(ctx, cmd.GuildID, roleID); err == nil {
		roleName = role.Name
	}

	middleware.CountCommand("setuprewards", "ok")
	embed := render.SuccessEmbed(
		"Reward Schedule Started",
		fmt.Sprintf("Holders of **%s** will receive **%d** points every **%s**.", roleName, points, interval),
	)
	respondEmbed(ctx, r, embed, false)
}

// StopRewards cancels the guild's reward schedule.
func (h *ConfigHandler) StopRewards(ctx context.Context, cmd gateway.Command, r gateway.Responder) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	stopped, err := h.rewards.Stop(ctx, cmd.GuildID)
	if err != nil {
		middleware.CountCommand("stoprewards", "error")
		log.Printf("Failed to stop rewards for guild %d: %v", cmd.GuildID, err)
		respondError(ctx, r, "Stop Failed", "The schedule state could not be fully saved.", "")
		return
	}
	if !stopped {
		middleware.CountCommand("stoprewards", "ok")
		embed := render.InfoEmbed("No Schedule Running", "This guild has no active reward schedule.")
		respondEmbed(ctx, r, embed, true)
		return
	}

	middleware.CountCommand("stoprewards", "ok")
	embed := render.SuccessEmbed("Reward Schedule Stopped", "Periodic rewards are no longer distributed.")
	respondEmbed(ctx, r, embed, false)
}

// RewardStatus shows the running schedule's configuration and counters.
func (h *ConfigHandler) RewardStatus(ctx context.Context, cmd gateway.Command, r gateway.Responder) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	status, ok := h.rewards.Status(cmd.GuildID)
	if !ok {
		middleware.CountCommand("rewardstatus", "ok")
		embed := render.InfoEmbed("No Schedule Running", "This guild has no active reward schedule.", render.Field{
			Name: "Tip", Value: "Admins can start one with /setuprewards.", Inline: false,
		})
		respondEmbed(ctx, r, embed, true)
		return
	}

	roleIDs := make([]int64, 0, len(status.Config.Roles))
	for roleID := range status.Config.Roles {
		roleIDs = append(roleIDs, roleID)
	}
	sort.Slice(roleIDs, func(i, j int) bool { return roleIDs[i] < roleIDs[j] })

	var roleLines []string
	for _, roleID := range roleIDs {
		roleName := fmt.Sprintf("role %d", roleID)
		if role, err := h.session.Role(ctx, cmd.GuildID, roleID); err == nil {
			roleName = role.Name
		}
		roleLines = append(roleLines, fmt.Sprintf("**%s**: %d pts", roleName, status.Config.Roles[roleID]))
	}

	lastRun := "never"
	if !status.LastRun.IsZero() {
		lastRun = status.LastRun.Format("2006-01-02 15:04 MST")
	}

	embed := render.InfoEmbed("Reward Schedule", "",
		render.Field{Name: "Roles", Value: strings.Join(roleLines, "\n"), Inline: false},
		render.Field{Name: "Interval", Value: status.Config.Interval.String(), Inline: true},
		render.Field{Name: "Last Run", Value: lastRun, Inline: true},
		render.Field{Name: "Next Run", Value: status.NextRun.Format("2006-01-02 15:04 MST"), Inline: true},
		render.Field{Name: "Total Awarded", Value: render.FormatLargeNumber(status.TotalAwarded), Inline: true},
	)
	respondEmbed(ctx, r, embed, true)
	middleware.CountCommand("rewardstatus", "ok")
}

// SetProfile updates the invoker's profile card customization. Only the
// provided options change.
func (h *ConfigHandler) SetProfile(ctx context.Context, cmd gateway.Command, r gateway.Responder) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	var update ledger.ProfileUpdate
	changed := false

	if title, ok := cmd.Options["title"]; ok {
		title = strings.TrimSpace(title)
		if len([]rune(title)) > maxCustomTitleLen {
			middleware.CountCommand("setprofile", "invalid")
			respondError(ctx, r, "Title Too Long", "Custom titles are capped at 100 characters.", "")
			return
		}
		update.CustomTitle = &title
		changed = true
	}
	if motto, ok := cmd.Options["motto"]; ok {
		motto = strings.TrimSpace(motto)
		if len([]rune(motto)) > maxStatusMessageLen {
			middleware.CountCommand("setprofile", "invalid")
			respondError(ctx, r, "Motto Too Long", "Mottos are capped at 200 characters.", "")
			return
		}
		update.StatusMessage = &motto
		changed = true
	}
	if color, ok := cmd.Options["color"]; ok {
		color = strings.TrimSpace(color)
		if !validHexColor(color) {
			middleware.CountCommand("setprofile", "invalid")
			respondError(ctx, r, "Invalid Color", "Colors must look like #1A2B3C.", "")
			return
		}
		update.PreferredColor = &color
		changed = true
	}
	if dm, ok := cmd.Options["dm"]; ok {
		enabled, err := strconv.ParseBool(strings.TrimSpace(dm))
		if err != nil {
			middleware.CountCommand("setprofile", "invalid")
			respondError(ctx, r, "Invalid DM Setting", "Use true or false for the dm option.", "")
			return
		}
		update.NotificationDM = &enabled
		changed = true
	}

	if !changed {
		middleware.CountCommand("setprofile", "invalid")
		respondError(ctx, r, "Nothing to Update", "Provide at least one of title, motto, color or dm.", "")
		return
	}

	ok, err := h.store.UpdateProfile(ctx, cmd.GuildID, cmd.Invoker.UserID, update)
	if err != nil {
		middleware.CountCommand("setprofile", "error")
		log.Printf("Failed to update profile for user %d: %v", cmd.Invoker.UserID, err)
		respondError(ctx, r, "Update Failed", "Could not save your profile right now.", "")
		return
	}
	if !ok {
		middleware.CountCommand("setprofile", "ok")
		respondError(ctx, r, "No Ledger Entry", "You need a contribution record before customizing a profile.", "")
		return
	}

	middleware.CountCommand("setprofile", "ok")
	embed := render.SuccessEmbed("Profile Updated", "Your cultivation profile has been saved.")
	respondEmbed(ctx, r, embed, true)
}

func validHexColor(s string) bool {
	if len(s) != 7 || s[0] != '#' {
		return false
	}
	for _, c := range s[1:] {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
