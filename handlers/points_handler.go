package handlers

import (
	"context"
	"fmt"
	"log"

	"sectbot/internal/gateway"
	"sectbot/internal/rank"
	"sectbot/internal/render"
	"sectbot/middleware"
	"sectbot/services"
)

// maxPointsPerCommand bounds a single manual adjustment.
const maxPointsPerCommand = 10000

// PointsHandler serves the admin point-adjustment commands.
type PointsHandler struct {
	store    Ledger
	views    *services.ViewRegistry
	session  gateway.Session
	resolver *rank.Resolver
	feed     *services.FeedHub
}

func NewPointsHandler(store Ledger, views *services.ViewRegistry, session gateway.Session, resolver *rank.Resolver, feed *services.FeedHub) *PointsHandler {
	return &PointsHandler{
		store:    store,
		views:    views,
		session:  session,
		resolver: resolver,
		feed:     feed,
	}
}

// Register wires the handler's commands. All of them are admin-gated at the
// platform level.
func (h *PointsHandler) Register(d gateway.Dispatcher) {
	memberOpt := gateway.CommandOption{Name: "member", Description: "Member to adjust", Type: gateway.OptionUser, Required: true}
	amountOpt := gateway.CommandOption{Name: "amount", Description: "Points (1 to 10000)", Type: gateway.OptionInteger, Required: true}

	d.RegisterCommand("addpoints", gateway.CommandDef{
		Description: "Add contribution points to a member",
		AdminOnly:   true,
		Options:     []gateway.CommandOption{memberOpt, amountOpt},
	}, h.AddPoints)

	d.RegisterCommand("removepoints", gateway.CommandDef{
		Description: "Remove contribution points from a member",
		AdminOnly:   true,
		Options:     []gateway.CommandOption{memberOpt, amountOpt},
	}, h.RemovePoints)

	d.RegisterCommand("assignrolepoints", gateway.CommandDef{
		Description: "Add points to every holder of a role",
		AdminOnly:   true,
		Options: []gateway.CommandOption{
			{Name: "role", Description: "Role whose holders get points", Type: gateway.OptionRole, Required: true},
			amountOpt,
		},
	}, h.AssignRolePoints)

	d.RegisterCommand("checkrole", gateway.CommandDef{
		Description: "Show the rank requirement attached to a role",
		Options: []gateway.CommandOption{
			{Name: "role", Description: "Role to inspect", Type: gateway.OptionRole, Required: true},
		},
	}, h.CheckRole)
}

func (h *PointsHandler) AddPoints(ctx context.Context, cmd gateway.Command, r gateway.Responder) {
	h.adjust(ctx, cmd, r, "addpoints", 1)
}

func (h *PointsHandler) RemovePoints(ctx context.Context, cmd gateway.Command, r gateway.Responder) {
	h.adjust(ctx, cmd, r, "removepoints", -1)
}

// adjust applies a signed point change to one member and pushes the change
// to live views and the feed.
func (h *PointsHandler) adjust(ctx context.Context, cmd gateway.Command, r gateway.Responder, command string, sign int) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	amount, ok := optionInt(cmd, "amount")
	if !ok || amount < 1 || amount > maxPointsPerCommand {
		middleware.CountCommand(command, "invalid")
		respondError(ctx, r, "Invalid Amount", "Points must be between 1 and 10000.", "")
		return
	}

	targetID, ok := optionID(cmd, "member")
	if !ok {
		middleware.CountCommand(command, "invalid")
		respondError(ctx, r, "Invalid Member", "Could not read the member option.", "")
		return
	}

	member, err := h.session.Member(ctx, cmd.GuildID, targetID)
	if err != nil {
		middleware.CountCommand(command, "error")
		respondError(ctx, r, "Member Not Found", "That member is not in this guild.", "")
		return
	}
	if member.Bot {
		middleware.CountCommand(command, "invalid")
		respondError(ctx, r, "Invalid Target", "Bots do not hold contribution points.", "")
		return
	}

	applied, newPoints, err := h.store.ApplyPointsDelta(ctx, cmd.GuildID, member.UserID, sign*amount, member.Username)
	if err != nil {
		middleware.CountCommand(command, "error")
		log.Printf("Point adjustment for user %d failed: %v", member.UserID, err)
		respondError(ctx, r, "Update Failed", "Could not update the points right now.", "")
		return
	}
	if !applied {
		middleware.CountCommand(command, "error")
		respondError(ctx, r, "Update Failed", member.Username+" has no ledger entry.", "")
		return
	}

	middleware.CountCommand(command, "ok")
	middleware.CountPointsUpdate("command")

	embed := render.SuccessEmbed(
		"Points Updated",
		fmt.Sprintf("**%s** %s points for **%s**.", render.FormatPointsChange(sign*amount), changeVerb(sign), member.Username),
		render.Field{Name: "New Total", Value: fmt.Sprintf("%d", newPoints), Inline: true},
		render.Field{Name: "Rank", Value: h.resolver.Title(newPoints, member.RoleIDs), Inline: true},
	)
	respondEmbed(ctx, r, embed, false)

	if h.feed != nil {
		h.feed.PublishPointsUpdate(cmd.GuildID, member.UserID, member.Username, sign*amount, newPoints)
	}
	h.views.BroadcastGuildUpdate(ctx, cmd.GuildID)
}

// AssignRolePoints adds points to every non-bot holder of a role in one
// command. Member failures are isolated; the summary reports the count.
func (h *PointsHandler) AssignRolePoints(ctx context.Context, cmd gateway.Command, r gateway.Responder) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	amount, ok := optionInt(cmd, "amount")
	if !ok || amount < 1 || amount > maxPointsPerCommand {
		middleware.CountCommand("assignrolepoints", "invalid")
		respondError(ctx, r, "Invalid Amount", "Points must be between 1 and 10000.", "")
		return
	}

	roleID, ok := optionID(cmd, "role")
	if !ok {
		middleware.CountCommand("assignrolepoints", "invalid")
		respondError(ctx, r, "Invalid Role", "Could not read the role option.", "")
		return
	}

	// Enumerating a large guild can exceed the response window.
	if err := r.Defer(ctx, false); err != nil {
		log.Printf("Failed to defer assignrolepoints: %v", err)
		return
	}

	members, err := h.session.GuildMembers(ctx, cmd.GuildID)
	if err != nil {
		middleware.CountCommand("assignrolepoints", "error")
		log.Printf("Failed to list members of guild %d: %v", cmd.GuildID, err)
		embed := render.ErrorEmbed("Assignment Failed", "Could not list the guild members.", "")
		r.Followup(ctx, gateway.Message{Embed: &embed}, true)
		return
	}

	updated := 0
	for _, member := range members {
		if member.Bot || !member.HasRole(roleID) {
			continue
		}
		applied, _, err := h.store.ApplyPointsDelta(ctx, cmd.GuildID, member.UserID, amount, member.Username)
		if err != nil {
			log.Printf("Role point assignment failed for user %d: %v", member.UserID, err)
			continue
		}
		if applied {
			updated++
			middleware.CountPointsUpdate("command")
		}
	}

	roleName := fmt.Sprintf("role %d", roleID)
	if role, err := h.session.Role(ctx, cmd.GuildID, roleID); err == nil {
		roleName = role.Name
	}

	middleware.CountCommand("assignrolepoints", "ok")
	embed := render.SuccessEmbed(
		"Role Points Assigned",
		fmt.Sprintf("Added **%d** points to **%d** holders of **%s**.", amount, updated, roleName),
	)
	r.Followup(ctx, gateway.Message{Embed: &embed}, false)

	if updated > 0 {
		h.views.BroadcastGuildUpdate(ctx, cmd.GuildID)
	}
}

// CheckRole shows the rank title and point requirement attached to a role.
func (h *PointsHandler) CheckRole(ctx context.Context, cmd gateway.Command, r gateway.Responder) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	roleID, ok := optionID(cmd, "role")
	if !ok {
		middleware.CountCommand("checkrole", "invalid")
		respondError(ctx, r, "Invalid Role", "Could not read the role option.", "")
		return
	}

	title, minPoints, ok := h.resolver.Requirement(roleID)
	if !ok {
		middleware.CountCommand("checkrole", "ok")
		embed := render.InfoEmbed("Unranked Role", "This role is not part of the sect rank ladder.")
		respondEmbed(ctx, r, embed, true)
		return
	}

	requirement := "None (special rank)"
	if minPoints > 0 {
		requirement = fmt.Sprintf("%d contribution points", minPoints)
	}
	embed := render.InfoEmbed("Role Rank Mapping", "",
		render.Field{Name: "Rank Title", Value: title, Inline: true},
		render.Field{Name: "Requirement", Value: requirement, Inline: true},
	)
	respondEmbed(ctx, r, embed, true)
	middleware.CountCommand("checkrole", "ok")
}

func changeVerb(sign int) string {
	if sign >= 0 {
		return "added"
	}
	return "removed"
}
