package services

import (
	"context"
	"fmt"
	"sync"

	"sectbot/internal/gateway"
	"sectbot/internal/ledger"
)

// fakePager serves leaderboard pages from an in-memory row set.
type fakePager struct {
	mu     sync.Mutex
	rows   []ledger.Row
	err    error
	loads  int
	totals int64
}

func newFakePager(memberCount int) *fakePager {
	p := &fakePager{}
	for i := 1; i <= memberCount; i++ {
		p.rows = append(p.rows, ledger.Row{
			Rank:     i,
			UserID:   int64(i),
			Username: fmt.Sprintf("member%03d", i),
			Points:   memberCount - i + 1,
		})
		p.totals += int64(memberCount - i + 1)
	}
	return p
}

func (p *fakePager) GetPage(ctx context.Context, guildID int64, page, perPage int) (*ledger.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	p.loads++

	total := len(p.rows)
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

	start := (page - 1) * perPage
	end := start + perPage
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return &ledger.Page{
		Rows:         p.rows[start:end],
		Page:         page,
		TotalPages:   totalPages,
		TotalMembers: total,
	}, nil
}

func (p *fakePager) GetGuildTotalPoints(ctx context.Context, guildID int64) (int64, error) {
	return p.totals, nil
}

type sentMessage struct {
	channelID int64
	msg       gateway.Message
}

// fakeSession is an in-memory gateway.Session for service tests.
type fakeSession struct {
	mu sync.Mutex

	guildName string
	members   []gateway.Member
	roles     map[int64]gateway.Role
	channels  []gateway.Channel

	sent  []sentMessage
	dms   map[int64][]gateway.Message
	edits []gateway.MessageRef

	sendErr  error
	sendErrs map[int64]error
	dmErr    error
	editErrs map[int64]error

	nextMessageID int64
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		guildName:     "Test Sect",
		roles:         make(map[int64]gateway.Role),
		dms:           make(map[int64][]gateway.Message),
		sendErrs:      make(map[int64]error),
		editErrs:      make(map[int64]error),
		nextMessageID: 1000,
	}
}

func (s *fakeSession) GuildName(ctx context.Context, guildID int64) (string, error) {
	return s.guildName, nil
}

func (s *fakeSession) GuildMembers(ctx context.Context, guildID int64) ([]gateway.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]gateway.Member(nil), s.members...), nil
}

func (s *fakeSession) Member(ctx context.Context, guildID, userID int64) (gateway.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.members {
		if m.UserID == userID {
			return m, nil
		}
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
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]gateway.Channel(nil), s.channels...), nil
}

func (s *fakeSession) SendMessage(ctx context.Context, channelID int64, msg gateway.Message) (gateway.MessageRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return gateway.MessageRef{}, s.sendErr
	}
	if err, ok := s.sendErrs[channelID]; ok {
		return gateway.MessageRef{}, err
	}
	s.sent = append(s.sent, sentMessage{channelID: channelID, msg: msg})
	s.nextMessageID++
	return gateway.MessageRef{ChannelID: channelID, MessageID: s.nextMessageID}, nil
}

func (s *fakeSession) EditMessage(ctx context.Context, ref gateway.MessageRef, msg gateway.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.editErrs[ref.MessageID]; ok {
		return err
	}
	s.edits = append(s.edits, ref)
	return nil
}

func (s *fakeSession) SendDM(ctx context.Context, userID int64, msg gateway.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dmErr != nil {
		return s.dmErr
	}
	s.dms[userID] = append(s.dms[userID], msg)
	return nil
}

func (s *fakeSession) editCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.edits)
}

func (s *fakeSession) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func (s *fakeSession) sentChannels() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.sent))
	for _, m := range s.sent {
		ids = append(ids, m.channelID)
	}
	return ids
}

func (s *fakeSession) dmCount(userID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dms[userID])
}

// fakeListener records broadcast events.
type fakeListener struct {
	mu     sync.Mutex
	events []ViewEvent
}

func (l *fakeListener) ViewRefreshed(event ViewEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *fakeListener) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// fakeRewardStore implements RewardStore and ProfileReader in memory.
type fakeRewardStore struct {
	mu       sync.Mutex
	points   map[int64]int
	config   map[string]string
	stats    map[int64]*ledger.Stats
	profile  map[int64]*ledger.Profile
	applyErr map[int64]error
}

func newFakeRewardStore() *fakeRewardStore {
	return &fakeRewardStore{
		points:   make(map[int64]int),
		config:   make(map[string]string),
		stats:    make(map[int64]*ledger.Stats),
		profile:  make(map[int64]*ledger.Profile),
		applyErr: make(map[int64]error),
	}
}

func (f *fakeRewardStore) ApplyPointsDelta(ctx context.Context, guildID, userID int64, delta int, username string) (bool, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.applyErr[userID]; ok {
		return false, 0, err
	}
	f.points[userID] += delta
	if f.points[userID] < 0 {
		f.points[userID] = 0
	}
	return true, f.points[userID], nil
}

func (f *fakeRewardStore) SetGuildConfig(ctx context.Context, guildID int64, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.config[key] = value
	return nil
}

func (f *fakeRewardStore) GetGuildConfig(ctx context.Context, guildID int64, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.config[key]
	return v, ok, nil
}

func (f *fakeRewardStore) GetGuildConfigInt(ctx context.Context, guildID int64, key string) (int64, bool, error) {
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

func (f *fakeRewardStore) GetStats(ctx context.Context, guildID, userID int64) (*ledger.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats[userID], nil
}

func (f *fakeRewardStore) GetProfile(ctx context.Context, guildID, userID int64) (*ledger.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profile[userID], nil
}

func (f *fakeRewardStore) pointsOf(userID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.points[userID]
}

// fakeBroadcaster counts guild update broadcasts.
type fakeBroadcaster struct {
	mu    sync.Mutex
	calls []int64
}

func (b *fakeBroadcaster) BroadcastGuildUpdate(ctx context.Context, guildID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, guildID)
}

func (b *fakeBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}
