package discord

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanSendFiltersOnStatePermissions(t *testing.T) {
	state := discordgo.NewState()
	state.User = &discordgo.User{ID: "1"}
	require.NoError(t, state.GuildAdd(&discordgo.Guild{
		ID: "100",
		Roles: []*discordgo.Role{
			{ID: "100", Permissions: discordgo.PermissionSendMessages | discordgo.PermissionViewChannel},
		},
		Members: []*discordgo.Member{
			{User: &discordgo.User{ID: "1"}, GuildID: "100"},
		},
		Channels: []*discordgo.Channel{
			{ID: "10", GuildID: "100", Type: discordgo.ChannelTypeGuildText},
			{
				ID: "11", GuildID: "100", Type: discordgo.ChannelTypeGuildText,
				PermissionOverwrites: []*discordgo.PermissionOverwrite{
					{ID: "100", Type: discordgo.PermissionOverwriteTypeRole, Deny: discordgo.PermissionSendMessages},
				},
			},
		},
	}))

	s := NewSession(&discordgo.Session{State: state})

	assert.True(t, s.canSend("10"))
	assert.False(t, s.canSend("11"), "send-denied channel must be filtered out")
	// A channel the cache cannot answer for stays in; the actual send
	// settles it.
	assert.True(t, s.canSend("999"))
}

func TestCanSendWithoutState(t *testing.T) {
	s := NewSession(&discordgo.Session{State: discordgo.NewState()})
	assert.True(t, s.canSend("10"))
}
