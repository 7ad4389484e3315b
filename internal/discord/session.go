package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"sectbot/internal/gateway"
)

const memberPageSize = 1000

// Session implements gateway.Session on a connected discordgo session. The
// state cache is consulted before the REST API where the cache can answer.
type Session struct {
	dg *discordgo.Session
}

func NewSession(dg *discordgo.Session) *Session {
	return &Session{dg: dg}
}

// wrapErr tags a discordgo failure with its gateway error kind.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}

	var rest *discordgo.RESTError
	if errors.As(err, &rest) {
		kind := gateway.KindUnknown
		if rest.Message != nil {
			switch rest.Message.Code {
			case discordgo.ErrCodeUnknownMessage,
				discordgo.ErrCodeUnknownChannel,
				discordgo.ErrCodeUnknownGuild,
				discordgo.ErrCodeUnknownMember,
				discordgo.ErrCodeUnknownUser,
				discordgo.ErrCodeUnknownRole:
				kind = gateway.KindNotFound
			case discordgo.ErrCodeMissingPermissions,
				discordgo.ErrCodeCannotSendMessagesToThisUser,
				discordgo.ErrCodeMissingAccess:
				kind = gateway.KindPermissionDenied
			}
		}
		if kind == gateway.KindUnknown && rest.Response != nil {
			switch rest.Response.StatusCode {
			case http.StatusNotFound:
				kind = gateway.KindNotFound
			case http.StatusForbidden:
				kind = gateway.KindPermissionDenied
			case http.StatusTooManyRequests:
				kind = gateway.KindRateLimited
			}
		}
		return gateway.NewError(kind, op, err)
	}

	var limited *discordgo.RateLimitError
	if errors.As(err, &limited) {
		return gateway.NewError(gateway.KindRateLimited, op, err)
	}

	return gateway.NewError(gateway.KindUnknown, op, err)
}

func (s *Session) GuildName(ctx context.Context, guildID int64) (string, error) {
	id := formatID(guildID)
	if g, err := s.dg.State.Guild(id); err == nil && g.Name != "" {
		return g.Name, nil
	}

	g, err := s.dg.Guild(id, discordgo.WithContext(ctx))
	if err != nil {
		return "", wrapErr("guild name", err)
	}
	return g.Name, nil
}

// GuildMembers pages through the full member list. The state cache is used
// when it already holds the whole guild.
func (s *Session) GuildMembers(ctx context.Context, guildID int64) ([]gateway.Member, error) {
	id := formatID(guildID)
	if g, err := s.dg.State.Guild(id); err == nil && g.MemberCount > 0 && len(g.Members) >= g.MemberCount {
		members := make([]gateway.Member, 0, len(g.Members))
		for _, m := range g.Members {
			members = append(members, toMember(id, m))
		}
		return members, nil
	}

	var members []gateway.Member
	after := ""
	for {
		page, err := s.dg.GuildMembers(id, after, memberPageSize, discordgo.WithContext(ctx))
		if err != nil {
			return nil, wrapErr("list guild members", err)
		}
		for _, m := range page {
			members = append(members, toMember(id, m))
		}
		if len(page) < memberPageSize {
			return members, nil
		}
		after = page[len(page)-1].User.ID
	}
}

func (s *Session) Member(ctx context.Context, guildID, userID int64) (gateway.Member, error) {
	gid, uid := formatID(guildID), formatID(userID)
	if m, err := s.dg.State.Member(gid, uid); err == nil {
		return toMember(gid, m), nil
	}

	m, err := s.dg.GuildMember(gid, uid, discordgo.WithContext(ctx))
	if err != nil {
		return gateway.Member{}, wrapErr("fetch member", err)
	}
	return toMember(gid, m), nil
}

func (s *Session) Role(ctx context.Context, guildID, roleID int64) (gateway.Role, error) {
	gid, rid := formatID(guildID), formatID(roleID)
	if r, err := s.dg.State.Role(gid, rid); err == nil {
		return gateway.Role{ID: roleID, Name: r.Name, Color: r.Color, Position: r.Position}, nil
	}

	roles, err := s.dg.GuildRoles(gid, discordgo.WithContext(ctx))
	if err != nil {
		return gateway.Role{}, wrapErr("fetch roles", err)
	}
	for _, r := range roles {
		if r.ID == rid {
			return gateway.Role{ID: roleID, Name: r.Name, Color: r.Color, Position: r.Position}, nil
		}
	}
	return gateway.Role{}, gateway.NewError(gateway.KindNotFound, "fetch roles", fmt.Errorf("role %d not in guild %d", roleID, guildID))
}

// Channels lists the guild's text channels the bot can post in, in display
// order. The permission check runs against the state cache; a channel the
// cache cannot answer for is kept, and the caller's send discovers the
// truth.
func (s *Session) Channels(ctx context.Context, guildID int64) ([]gateway.Channel, error) {
	id := formatID(guildID)
	channels, err := s.dg.GuildChannels(id, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrapErr("list channels", err)
	}

	var out []gateway.Channel
	for _, ch := range channels {
		if ch.Type != discordgo.ChannelTypeGuildText {
			continue
		}
		if !s.canSend(ch.ID) {
			continue
		}
		out = append(out, gateway.Channel{ID: parseID(ch.ID), GuildID: guildID, Name: ch.Name})
	}
	return out, nil
}

func (s *Session) canSend(channelID string) bool {
	if s.dg.State == nil || s.dg.State.User == nil {
		return true
	}
	perms, err := s.dg.State.UserChannelPermissions(s.dg.State.User.ID, channelID)
	if err != nil {
		return true
	}
	return perms&discordgo.PermissionSendMessages != 0
}

func (s *Session) SendMessage(ctx context.Context, channelID int64, msg gateway.Message) (gateway.MessageRef, error) {
	sent, err := s.dg.ChannelMessageSendComplex(formatID(channelID), &discordgo.MessageSend{
		Content:    msg.Content,
		Embeds:     toEmbeds(msg),
		Components: toComponents(msg.Buttons),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return gateway.MessageRef{}, wrapErr("send message", err)
	}
	return gateway.MessageRef{ChannelID: channelID, MessageID: parseID(sent.ID)}, nil
}

func (s *Session) EditMessage(ctx context.Context, ref gateway.MessageRef, msg gateway.Message) error {
	embeds := toEmbeds(msg)
	components := toComponents(msg.Buttons)
	edit := &discordgo.MessageEdit{
		Channel:    formatID(ref.ChannelID),
		ID:         formatID(ref.MessageID),
		Content:    &msg.Content,
		Embeds:     &embeds,
		Components: &components,
	}
	if _, err := s.dg.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx)); err != nil {
		return wrapErr("edit message", err)
	}
	return nil
}

func (s *Session) SendDM(ctx context.Context, userID int64, msg gateway.Message) error {
	channel, err := s.dg.UserChannelCreate(formatID(userID), discordgo.WithContext(ctx))
	if err != nil {
		return wrapErr("open dm", err)
	}
	_, err = s.dg.ChannelMessageSendComplex(channel.ID, &discordgo.MessageSend{
		Content: msg.Content,
		Embeds:  toEmbeds(msg),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return wrapErr("send dm", err)
	}
	return nil
}
