package discord

import (
	"context"
	"log"
	"strconv"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"

	"sectbot/internal/gateway"
)

// Dispatcher implements gateway.Dispatcher on discordgo's event stream.
// Command definitions registered before Open are synced with Discord on the
// ready event.
type Dispatcher struct {
	dg *discordgo.Session

	mu         sync.RWMutex
	commands   map[string]registeredCommand
	components []componentRoute

	memberJoin   []func(ctx context.Context, m gateway.Member)
	memberLeave  []func(ctx context.Context, m gateway.Member)
	memberUpdate []func(ctx context.Context, before, after gateway.Member)
	guildJoin    []func(ctx context.Context, guildID int64)
}

type registeredCommand struct {
	def gateway.CommandDef
	fn  gateway.CommandFunc
}

type componentRoute struct {
	prefix string
	fn     gateway.ComponentFunc
}

func NewDispatcher(dg *discordgo.Session) *Dispatcher {
	d := &Dispatcher{
		dg:       dg,
		commands: make(map[string]registeredCommand),
	}

	dg.AddHandler(d.onReady)
	dg.AddHandler(d.onInteraction)
	dg.AddHandler(d.onMemberAdd)
	dg.AddHandler(d.onMemberRemove)
	dg.AddHandler(d.onMemberUpdate)
	dg.AddHandler(d.onGuildCreate)

	return d
}

func (d *Dispatcher) RegisterCommand(name string, def gateway.CommandDef, fn gateway.CommandFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.commands[name] = registeredCommand{def: def, fn: fn}
}

func (d *Dispatcher) RegisterComponent(prefix string, fn gateway.ComponentFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.components = append(d.components, componentRoute{prefix: prefix, fn: fn})
}

func (d *Dispatcher) OnMemberJoin(fn func(ctx context.Context, m gateway.Member)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.memberJoin = append(d.memberJoin, fn)
}

func (d *Dispatcher) OnMemberLeave(fn func(ctx context.Context, m gateway.Member)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.memberLeave = append(d.memberLeave, fn)
}

func (d *Dispatcher) OnMemberUpdate(fn func(ctx context.Context, before, after gateway.Member)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.memberUpdate = append(d.memberUpdate, fn)
}

func (d *Dispatcher) OnGuildJoin(fn func(ctx context.Context, guildID int64)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.guildJoin = append(d.guildJoin, fn)
}

func toOptionType(t gateway.OptionType) discordgo.ApplicationCommandOptionType {
	switch t {
	case gateway.OptionInteger:
		return discordgo.ApplicationCommandOptionInteger
	case gateway.OptionUser:
		return discordgo.ApplicationCommandOptionUser
	case gateway.OptionRole:
		return discordgo.ApplicationCommandOptionRole
	case gateway.OptionChannel:
		return discordgo.ApplicationCommandOptionChannel
	default:
		return discordgo.ApplicationCommandOptionString
	}
}

// onReady pushes the registered command set to Discord as global commands.
func (d *Dispatcher) onReady(s *discordgo.Session, _ *discordgo.Ready) {
	d.mu.RLock()
	defs := make(map[string]gateway.CommandDef, len(d.commands))
	for name, cmd := range d.commands {
		defs[name] = cmd.def
	}
	d.mu.RUnlock()

	adminPerm := int64(discordgo.PermissionAdministrator)

	for name, def := range defs {
		appCmd := &discordgo.ApplicationCommand{
			Name:        name,
			Description: def.Description,
		}
		if def.AdminOnly {
			appCmd.DefaultMemberPermissions = &adminPerm
		}
		for _, opt := range def.Options {
			appCmd.Options = append(appCmd.Options, &discordgo.ApplicationCommandOption{
				Name:        opt.Name,
				Description: opt.Description,
				Type:        toOptionType(opt.Type),
				Required:    opt.Required,
			})
		}

		if _, err := s.ApplicationCommandCreate(s.State.User.ID, "", appCmd); err != nil {
			log.Printf("Failed to register command /%s: %v", name, err)
			continue
		}
	}
	log.Printf("Registered %d slash commands", len(defs))
}

func (d *Dispatcher) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		d.dispatchCommand(i)
	case discordgo.InteractionMessageComponent:
		d.dispatchComponent(i)
	}
}

func (d *Dispatcher) dispatchCommand(i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()

	d.mu.RLock()
	cmd, ok := d.commands[data.Name]
	d.mu.RUnlock()
	if !ok {
		log.Printf("Received unknown command /%s", data.Name)
		return
	}

	options := make(map[string]string, len(data.Options))
	for _, opt := range data.Options {
		options[opt.Name] = optionString(opt)
	}

	invocation := gateway.Command{
		Name:    data.Name,
		GuildID: parseID(i.GuildID),
		Invoker: toMember(i.GuildID, i.Member),
		Options: options,
	}

	go cmd.fn(context.Background(), invocation, &responder{dg: d.dg, i: i.Interaction, component: false})
}

func (d *Dispatcher) dispatchComponent(i *discordgo.InteractionCreate) {
	customID := i.MessageComponentData().CustomID

	d.mu.RLock()
	var fn gateway.ComponentFunc
	for _, route := range d.components {
		if strings.HasPrefix(customID, route.prefix) {
			fn = route.fn
			break
		}
	}
	d.mu.RUnlock()
	if fn == nil {
		log.Printf("No route for component %q", customID)
		return
	}

	comp := gateway.Component{
		CustomID: customID,
		GuildID:  parseID(i.GuildID),
		Invoker:  toMember(i.GuildID, i.Member),
	}
	if i.Message != nil {
		comp.Message = gateway.MessageRef{
			ChannelID: parseID(i.Message.ChannelID),
			MessageID: parseID(i.Message.ID),
		}
	}

	go fn(context.Background(), comp, &responder{dg: d.dg, i: i.Interaction, component: true})
}

// optionString flattens a command option value to its string form. User,
// role and channel options carry snowflake strings already.
func optionString(opt *discordgo.ApplicationCommandInteractionDataOption) string {
	switch opt.Type {
	case discordgo.ApplicationCommandOptionInteger:
		return strconv.FormatInt(opt.IntValue(), 10)
	case discordgo.ApplicationCommandOptionString:
		return opt.StringValue()
	default:
		if s, ok := opt.Value.(string); ok {
			return s
		}
		return ""
	}
}

func (d *Dispatcher) onMemberAdd(_ *discordgo.Session, e *discordgo.GuildMemberAdd) {
	member := toMember(e.GuildID, e.Member)
	d.mu.RLock()
	handlers := d.memberJoin
	d.mu.RUnlock()
	for _, fn := range handlers {
		go fn(context.Background(), member)
	}
}

func (d *Dispatcher) onMemberRemove(_ *discordgo.Session, e *discordgo.GuildMemberRemove) {
	member := toMember(e.GuildID, e.Member)
	d.mu.RLock()
	handlers := d.memberLeave
	d.mu.RUnlock()
	for _, fn := range handlers {
		go fn(context.Background(), member)
	}
}

func (d *Dispatcher) onMemberUpdate(_ *discordgo.Session, e *discordgo.GuildMemberUpdate) {
	after := toMember(e.GuildID, e.Member)

	// Without the cached previous state a role diff is impossible; assume
	// no role change rather than re-announcing every rank role the member
	// already holds. The empty username still forces a refresh downstream.
	before := gateway.Member{GuildID: after.GuildID, UserID: after.UserID, RoleIDs: after.RoleIDs}
	if e.BeforeUpdate != nil {
		before = toMember(e.GuildID, e.BeforeUpdate)
	}

	d.mu.RLock()
	handlers := d.memberUpdate
	d.mu.RUnlock()
	for _, fn := range handlers {
		go fn(context.Background(), before, after)
	}
}

func (d *Dispatcher) onGuildCreate(_ *discordgo.Session, e *discordgo.GuildCreate) {
	guildID := parseID(e.ID)
	d.mu.RLock()
	handlers := d.guildJoin
	d.mu.RUnlock()
	for _, fn := range handlers {
		go fn(context.Background(), guildID)
	}
}
