package handlers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"sectbot/internal/gateway"
	"sectbot/internal/ledger"
)

// fakeLedger is an in-memory Ledger for handler tests. It also satisfies
// services.ViewPager so a real ViewRegistry can sit on top of it.
type fakeLedger struct {
	mu      sync.Mutex
	entries map[int64]*ledger.Entry
	profile map[int64]*ledger.Profile
	config  map[string]string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		entries: make(map[int64]*ledger.Entry),
		profile: make(map[int64]*ledger.Profile),
		config:  make(map[string]string),
	}
}

func (f *fakeLedger) seed(userID int64, username string, points int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[userID] = &ledger.Entry{
		UserID:      userID,
		Username:    username,
		Points:      points,
		LastUpdated: time.Now(),
		CreatedAt:   time.Now(),
	}
}

func (f *fakeLedger) ranked() []*ledger.Entry {
	rows := make([]*ledger.Entry, 0, len(f.entries))
	for _, e := range f.entries {
		rows = append(rows, e)
	}
	for i := 0; i < len(rows); i++ {
		for j := i + 1; j < len(rows); j++ {
			if rows[j].Points > rows[i].Points {
				rows[i], rows[j] = rows[j], rows[i]
			}
		}
	}
	return rows
}

func (f *fakeLedger) UpsertMember(ctx context.Context, guildID, userID int64, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.entries[userID]; ok {
		e.Username = username
		return nil
	}
	f.entries[userID] = &ledger.Entry{UserID: userID, Username: username, CreatedAt: time.Now()}
	return nil
}

func (f *fakeLedger) RemoveMember(ctx context.Context, guildID, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.entries[userID]
	delete(f.entries, userID)
	return ok, nil
}

func (f *fakeLedger) ApplyPointsDelta(ctx context.Context, guildID, userID int64, delta int, username string) (bool, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[userID]
	if !ok {
		if username == "" {
			return false, 0, nil
		}
		e = &ledger.Entry{UserID: userID, Username: username, CreatedAt: time.Now()}
		f.entries[userID] = e
	}
	e.Points += delta
	if e.Points < 0 {
		e.Points = 0
	}
	e.LastUpdated = time.Now()
	return true, e.Points, nil
}

func (f *fakeLedger) GetStats(ctx context.Context, guildID, userID int64) (*ledger.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for rank, e := range f.ranked() {
		if e.UserID == userID {
			return &ledger.Stats{
				Username:    e.Username,
				Points:      e.Points,
				Rank:        rank + 1,
				LastUpdated: e.LastUpdated,
				CreatedAt:   e.CreatedAt,
			}, nil
		}
	}
	return nil, nil
}

func (f *fakeLedger) GetPage(ctx context.Context, guildID int64, page, perPage int) (*ledger.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ranked := f.ranked()

	total := len(ranked)
	totalPages := 1
	if total > 0 {
		totalPages = (total + perPage - 1) / perPage
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	result := &ledger.Page{Page: page, TotalPages: totalPages, TotalMembers: total}
	start := (page - 1) * perPage
	for i := start; i < total && i < start+perPage; i++ {
		e := ranked[i]
		result.Rows = append(result.Rows, ledger.Row{
			Rank:        i + 1,
			UserID:      e.UserID,
			Username:    e.Username,
			Points:      e.Points,
			LastUpdated: e.LastUpdated,
		})
	}
	return result, nil
}

func (f *fakeLedger) SearchByUsername(ctx context.Context, guildID int64, query string) ([]ledger.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var results []ledger.Row
	for i, e := range f.ranked() {
		if strings.Contains(strings.ToLower(e.Username), strings.ToLower(query)) {
			results = append(results, ledger.Row{Rank: i + 1, UserID: e.UserID, Username: e.Username, Points: e.Points})
		}
	}
	return results, nil
}

func (f *fakeLedger) GetGuildTotalPoints(ctx context.Context, guildID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total int64
	for _, e := range f.entries {
		total += int64(e.Points)
	}
	return total, nil
}

func (f *fakeLedger) GetGuildStats(ctx context.Context, guildID int64) (*ledger.GuildStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &ledger.GuildStats{TotalMembers: len(f.entries)}
	for _, e := range f.entries {
		stats.TotalPoints += int64(e.Points)
		if e.Points > stats.MaxPoints {
			stats.MaxPoints = e.Points
		}
	}
	if stats.TotalMembers > 0 {
		stats.AvgPoints = float64(stats.TotalPoints) / float64(stats.TotalMembers)
	}
	return stats, nil
}

func (f *fakeLedger) SetGuildConfig(ctx context.Context, guildID int64, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.config[key] = value
	return nil
}

func (f *fakeLedger) GetGuildConfig(ctx context.Context, guildID int64, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.config[key]
	return v, ok, nil
}

func (f *fakeLedger) GetGuildConfigInt(ctx context.Context, guildID int64, key string) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.config[key]
	if !ok {
		return 0, false, nil
	}
	var n int64
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return 0, false, nil
	}
	return n, true, nil
}

func (f *fakeLedger) GetProfile(ctx context.Context, guildID, userID int64) (*ledger.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profile[userID], nil
}

func (f *fakeLedger) UpdateProfile(ctx context.Context, guildID, userID int64, update ledger.ProfileUpdate) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.entries[userID]; !ok {
		return false, nil
	}
	p, ok := f.profile[userID]
	if !ok {
		p = &ledger.Profile{PreferredColor: "#2C3E50", NotificationDM: true}
		f.profile[userID] = p
	}
	if update.CustomTitle != nil {
		p.CustomTitle = *update.CustomTitle
	}
	if update.StatusMessage != nil {
		p.StatusMessage = *update.StatusMessage
	}
	if update.PreferredColor != nil {
		p.PreferredColor = *update.PreferredColor
	}
	if update.NotificationDM != nil {
		p.NotificationDM = *update.NotificationDM
	}
	return true, nil
}

func (f *fakeLedger) pointsOf(userID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.entries[userID]; ok {
		return e.Points
	}
	return 0
}

// fakeSession is a minimal gateway.Session for handler tests.
type fakeSession struct {
	mu       sync.Mutex
	members  map[int64]gateway.Member
	roles    map[int64]gateway.Role
	channels []gateway.Channel
	sent     int
	edits    int
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		members: make(map[int64]gateway.Member),
		roles:   make(map[int64]gateway.Role),
	}
}

func (s *fakeSession) GuildName(ctx context.Context, guildID int64) (string, error) {
	return "Test Sect", nil
}

func (s *fakeSession) GuildMembers(ctx context.Context, guildID int64) ([]gateway.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	members := make([]gateway.Member, 0, len(s.members))
	for _, m := range s.members {
		members = append(members, m)
	}
	return members, nil
}

func (s *fakeSession) Member(ctx context.Context, guildID, userID int64) (gateway.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.members[userID]; ok {
		return m, nil
	}
	return gateway.Member{}, gateway.NewError(gateway.KindNotFound, "fetch member", nil)
}

func (s *fakeSession) Role(ctx context.Context, guildID, roleID int64) (gateway.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.roles[roleID]; ok {
		return r, nil
	}
	return gateway.Role{}, gateway.NewError(gateway.KindNotFound, "fetch roles", nil)
}

func (s *fakeSession) Channels(ctx context.Context, guildID int64) ([]gateway.Channel, error) {
	return s.channels, nil
}

func (s *fakeSession) SendMessage(ctx context.Context, channelID int64, msg gateway.Message) (gateway.MessageRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent++
	return gateway.MessageRef{ChannelID: channelID, MessageID: int64(s.sent)}, nil
}

func (s *fakeSession) EditMessage(ctx context.Context, ref gateway.MessageRef, msg gateway.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edits++
	return nil
}

func (s *fakeSession) SendDM(ctx context.Context, userID int64, msg gateway.Message) error {
	return nil
}

// fakeResponder records interaction responses.
type fakeResponder struct {
	mu        sync.Mutex
	deferred  bool
	responses []gateway.Message
	ephemeral []bool
	followups []gateway.Message
	edited    []gateway.Message
}

func (r *fakeResponder) Defer(ctx context.Context, ephemeral bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deferred = true
	return nil
}

func (r *fakeResponder) Respond(ctx context.Context, msg gateway.Message, ephemeral bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses = append(r.responses, msg)
	r.ephemeral = append(r.ephemeral, ephemeral)
	return nil
}

func (r *fakeResponder) Followup(ctx context.Context, msg gateway.Message, ephemeral bool) (gateway.MessageRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.followups = append(r.followups, msg)
	return gateway.MessageRef{ChannelID: 1, MessageID: int64(len(r.followups))}, nil
}

func (r *fakeResponder) Edit(ctx context.Context, msg gateway.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edited = append(r.edited, msg)
	return nil
}

func (r *fakeResponder) lastResponse() (gateway.Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.responses) == 0 {
		return gateway.Message{}, false
	}
	return r.responses[len(r.responses)-1], true
}
