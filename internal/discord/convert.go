// Package discord adapts the bot core's gateway interfaces onto the
// discordgo library. All snowflake IDs cross this boundary as int64; the
// wire format's decimal strings never leave the package.
package discord

import (
	"strconv"

	"github.com/bwmarrin/discordgo"

	"sectbot/internal/gateway"
	"sectbot/internal/render"
)

func parseID(s string) int64 {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func parseRoleIDs(roles []string) []int64 {
	ids := make([]int64, 0, len(roles))
	for _, r := range roles {
		if id := parseID(r); id != 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

func toMember(guildID string, m *discordgo.Member) gateway.Member {
	if m == nil || m.User == nil {
		return gateway.Member{GuildID: parseID(guildID)}
	}
	username := m.User.Username
	if m.Nick != "" {
		username = m.Nick
	}
	return gateway.Member{
		GuildID:   parseID(guildID),
		UserID:    parseID(m.User.ID),
		Username:  username,
		AvatarURL: m.User.AvatarURL(""),
		Bot:       m.User.Bot,
		RoleIDs:   parseRoleIDs(m.Roles),
	}
}

func toEmbed(e *render.Embed) *discordgo.MessageEmbed {
	if e == nil {
		return nil
	}

	out := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: e.Description,
		Color:       e.Color,
	}
	if !e.Timestamp.IsZero() {
		out.Timestamp = e.Timestamp.Format("2006-01-02T15:04:05Z07:00")
	}
	if e.Thumbnail != "" {
		out.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: e.Thumbnail}
	}
	if e.Footer != "" {
		out.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer, IconURL: e.FooterIcon}
	}
	for _, f := range e.Fields {
		out.Fields = append(out.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Inline,
		})
	}
	return out
}

func toButtonStyle(s gateway.ButtonStyle) discordgo.ButtonStyle {
	if s == gateway.ButtonPrimary {
		return discordgo.PrimaryButton
	}
	return discordgo.SecondaryButton
}

func toComponents(buttons []gateway.Button) []discordgo.MessageComponent {
	if len(buttons) == 0 {
		return nil
	}
	row := discordgo.ActionsRow{}
	for _, b := range buttons {
		row.Components = append(row.Components, discordgo.Button{
			CustomID: b.CustomID,
			Label:    b.Label,
			Style:    toButtonStyle(b.Style),
			Disabled: b.Disabled,
		})
	}
	return []discordgo.MessageComponent{row}
}

func toEmbeds(msg gateway.Message) []*discordgo.MessageEmbed {
	if msg.Embed == nil {
		return nil
	}
	return []*discordgo.MessageEmbed{toEmbed(msg.Embed)}
}
