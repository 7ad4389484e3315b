package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"sectbot/internal/gateway"
	"sectbot/internal/ledger"
	"sectbot/internal/rank"
	"sectbot/internal/render"
	"sectbot/middleware"
)

// LeaderboardPerPage is the fixed page size of leaderboard views.
const LeaderboardPerPage = 50

// ViewPager is the slice of the ledger the view registry needs to render
// pages. *LedgerService satisfies it.
type ViewPager interface {
	GetPage(ctx context.Context, guildID int64, page, perPage int) (*ledger.Page, error)
	GetGuildTotalPoints(ctx context.Context, guildID int64) (int64, error)
}

// ViewEvent describes one refresh of a live leaderboard view, delivered to
// broadcast listeners such as the websocket feed.
type ViewEvent struct {
	ViewID    string    `json:"view_id"`
	GuildID   int64     `json:"guild_id"`
	Page      int       `json:"page"`
	Refreshed time.Time `json:"refreshed"`
}

// BroadcastListener receives view refresh events. Implementations must not
// block; the registry calls them synchronously during broadcasts.
type BroadcastListener interface {
	ViewRefreshed(event ViewEvent)
}

// LeaderboardView is one live, paginated leaderboard message. Views start
// active; once retired they never return to active.
type LeaderboardView struct {
	ID        string
	GuildID   int64
	OwnerID   int64
	Message   gateway.MessageRef
	CreatedAt time.Time

	page   *ledger.Page
	active bool
}

// Page returns the view's cached page snapshot.
func (v *LeaderboardView) Page() *ledger.Page {
	return v.page
}

// Active reports whether the view still receives broadcast refreshes.
func (v *LeaderboardView) Active() bool {
	return v.active
}

// Buttons returns the navigation row for the view's current page, with the
// edge buttons disabled at the first and last page.
func (v *LeaderboardView) Buttons() []gateway.Button {
	atFirst := v.page == nil || v.page.Page <= 1
	atLast := v.page == nil || v.page.Page >= v.page.TotalPages
	return []gateway.Button{
		{CustomID: "lb:prev:" + v.ID, Label: "Previous", Style: gateway.ButtonSecondary, Disabled: atFirst},
		{CustomID: "lb:next:" + v.ID, Label: "Next", Style: gateway.ButtonSecondary, Disabled: atLast},
		{CustomID: "lb:stats:" + v.ID, Label: "Sect Statistics", Style: gateway.ButtonPrimary},
	}
}

// ViewRegistry tracks every live leaderboard view and pushes fresh pages to
// them when guild points change. It is safe for concurrent use.
type ViewRegistry struct {
	store    ViewPager
	session  gateway.Session
	resolver *rank.Resolver

	mu        sync.RWMutex
	views     map[string]*LeaderboardView
	listeners []BroadcastListener
}

func NewViewRegistry(store ViewPager, session gateway.Session, resolver *rank.Resolver) *ViewRegistry {
	return &ViewRegistry{
		store:    store,
		session:  session,
		resolver: resolver,
		views:    make(map[string]*LeaderboardView),
	}
}

// AddListener subscribes a broadcast listener for view refresh events.
func (r *ViewRegistry) AddListener(l BroadcastListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

// Register creates an active view for a guild, pre-loaded with page 1.
func (r *ViewRegistry) Register(ctx context.Context, guildID, ownerID int64) (*LeaderboardView, error) {
	page, err := r.store.GetPage(ctx, guildID, 1, LeaderboardPerPage)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial leaderboard page: %w", err)
	}

	view := &LeaderboardView{
		ID:        uuid.New().String(),
		GuildID:   guildID,
		OwnerID:   ownerID,
		CreatedAt: time.Now(),
		page:      page,
		active:    true,
	}

	r.mu.Lock()
	r.views[view.ID] = view
	r.mu.Unlock()

	return view, nil
}

// Bind attaches the sent message to the view so broadcasts can edit it.
func (r *ViewRegistry) Bind(viewID string, ref gateway.MessageRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if view, ok := r.views[viewID]; ok {
		view.Message = ref
	}
}

// Unregister drops a view from the registry.
func (r *ViewRegistry) Unregister(viewID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.views, viewID)
}

// Get returns a view by ID.
func (r *ViewRegistry) Get(viewID string) (*LeaderboardView, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	view, ok := r.views[viewID]
	return view, ok
}

// ActiveCount returns how many views are currently live.
func (r *ViewRegistry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, view := range r.views {
		if view.active {
			n++
		}
	}
	return n
}

// Render builds the embed for the view's cached page. Rank titles on the
// board come from points alone; role-gated titles need per-member role
// lookups that would not scale across a 50-row page.
func (r *ViewRegistry) Render(ctx context.Context, view *LeaderboardView) gateway.Message {
	guildName := "the sect"
	if name, err := r.session.GuildName(ctx, view.GuildID); err == nil {
		guildName = name
	}

	total, err := r.store.GetGuildTotalPoints(ctx, view.GuildID)
	if err != nil {
		log.Printf("Failed to load guild %d total points: %v", view.GuildID, err)
		total = 0
	}

	embed := render.LeaderboardEmbed(view.page, guildName, total, func(row ledger.Row) string {
		return r.resolver.Title(row.Points, nil)
	})

	return gateway.Message{Embed: &embed, Buttons: view.Buttons()}
}

// Turn moves the view by delta pages, clamped to the valid range, and
// returns the refreshed message payload. A zero delta reloads in place.
func (r *ViewRegistry) Turn(ctx context.Context, view *LeaderboardView, delta int) (gateway.Message, error) {
	r.mu.RLock()
	target := 1
	if view.page != nil {
		target = view.page.Page + delta
	}
	r.mu.RUnlock()

	page, err := r.store.GetPage(ctx, view.GuildID, target, LeaderboardPerPage)
	if err != nil {
		return gateway.Message{}, fmt.Errorf("failed to turn leaderboard page: %w", err)
	}

	r.mu.Lock()
	view.page = page
	r.mu.Unlock()

	return r.Render(ctx, view), nil
}

// BroadcastGuildUpdate refreshes every active view of a guild after its
// ledger changed. Each view is refreshed independently; one failing edit
// never blocks the rest. A view whose message is gone is retired for good.
func (r *ViewRegistry) BroadcastGuildUpdate(ctx context.Context, guildID int64) {
	r.mu.RLock()
	targets := make([]*LeaderboardView, 0, len(r.views))
	for _, view := range r.views {
		if view.GuildID == guildID && view.active && !view.Message.Zero() {
			targets = append(targets, view)
		}
	}
	listeners := make([]BroadcastListener, len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.RUnlock()

	for _, view := range targets {
		if err := r.refresh(ctx, view); err != nil {
			if gateway.KindOf(err) == gateway.KindNotFound {
				log.Printf("Leaderboard view %s message deleted, retiring view", view.ID)
				r.retire(view.ID)
				middleware.CountViewRefresh("retired")
				continue
			}
			log.Printf("Failed to refresh leaderboard view %s: %v", view.ID, err)
			middleware.CountViewRefresh("error")
			continue
		}
		middleware.CountViewRefresh("ok")

		event := ViewEvent{
			ViewID:    view.ID,
			GuildID:   guildID,
			Page:      view.page.Page,
			Refreshed: time.Now(),
		}
		for _, l := range listeners {
			l.ViewRefreshed(event)
		}
	}
}

func (r *ViewRegistry) refresh(ctx context.Context, view *LeaderboardView) error {
	r.mu.RLock()
	current := 1
	if view.page != nil {
		current = view.page.Page
	}
	ref := view.Message
	r.mu.RUnlock()

	page, err := r.store.GetPage(ctx, view.GuildID, current, LeaderboardPerPage)
	if err != nil {
		return fmt.Errorf("failed to reload leaderboard page: %w", err)
	}

	r.mu.Lock()
	view.page = page
	r.mu.Unlock()

	return r.session.EditMessage(ctx, ref, r.Render(ctx, view))
}

// retire marks a view inactive and drops it from the registry. Retirement
// is one-way; the view never receives another refresh.
func (r *ViewRegistry) retire(viewID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if view, ok := r.views[viewID]; ok {
		view.active = false
		delete(r.views, viewID)
	}
}

// PruneOlderThan unregisters views created before the cutoff, returning how
// many were dropped. Used by the periodic janitor to keep the registry from
// accumulating abandoned boards.
func (r *ViewRegistry) PruneOlderThan(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	r.mu.Lock()
	defer r.mu.Unlock()
	pruned := 0
	for id, view := range r.views {
		if view.CreatedAt.Before(cutoff) || !view.active {
			delete(r.views, id)
			pruned++
		}
	}
	return pruned
}
