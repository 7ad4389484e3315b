package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"sectbot/internal/gateway"
)

// responder implements gateway.Responder for one interaction. Edit on a
// component interaction updates the clicked message in a single response;
// on a command interaction it edits the original deferred response.
type responder struct {
	dg        *discordgo.Session
	i         *discordgo.Interaction
	component bool
}

func (r *responder) Defer(ctx context.Context, ephemeral bool) error {
	data := &discordgo.InteractionResponseData{}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := r.dg.InteractionRespond(r.i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: data,
	}, discordgo.WithContext(ctx))
	return wrapErr("defer interaction", err)
}

func (r *responder) Respond(ctx context.Context, msg gateway.Message, ephemeral bool) error {
	data := &discordgo.InteractionResponseData{
		Content:    msg.Content,
		Embeds:     toEmbeds(msg),
		Components: toComponents(msg.Buttons),
	}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := r.dg.InteractionRespond(r.i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	}, discordgo.WithContext(ctx))
	return wrapErr("respond to interaction", err)
}

func (r *responder) Followup(ctx context.Context, msg gateway.Message, ephemeral bool) (gateway.MessageRef, error) {
	params := &discordgo.WebhookParams{
		Content:    msg.Content,
		Embeds:     toEmbeds(msg),
		Components: toComponents(msg.Buttons),
	}
	if ephemeral {
		params.Flags = discordgo.MessageFlagsEphemeral
	}
	sent, err := r.dg.FollowupMessageCreate(r.i, true, params, discordgo.WithContext(ctx))
	if err != nil {
		return gateway.MessageRef{}, wrapErr("followup", err)
	}
	return gateway.MessageRef{ChannelID: parseID(sent.ChannelID), MessageID: parseID(sent.ID)}, nil
}

func (r *responder) Edit(ctx context.Context, msg gateway.Message) error {
	if r.component {
		err := r.dg.InteractionRespond(r.i, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseUpdateMessage,
			Data: &discordgo.InteractionResponseData{
				Content:    msg.Content,
				Embeds:     toEmbeds(msg),
				Components: toComponents(msg.Buttons),
			},
		}, discordgo.WithContext(ctx))
		return wrapErr("update component message", err)
	}

	embeds := toEmbeds(msg)
	components := toComponents(msg.Buttons)
	_, err := r.dg.InteractionResponseEdit(r.i, &discordgo.WebhookEdit{
		Content:    &msg.Content,
		Embeds:     &embeds,
		Components: &components,
	}, discordgo.WithContext(ctx))
	return wrapErr("edit interaction response", err)
}
