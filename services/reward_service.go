package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"sectbot/internal/gateway"
)

// Guild config keys for persisted reward schedules.
const (
	configRewardRoles    = "reward_roles"
	configRewardInterval = "reward_interval_minutes"
	configRewardsEnabled = "rewards_enabled"
)

// RewardConfig is one guild's periodic reward schedule: every Interval,
// every non-bot member gains the sum of the points mapped to the configured
// roles they hold.
type RewardConfig struct {
	Roles    map[int64]int
	Interval time.Duration
}

// RewardStatus is a snapshot of a running schedule for the status command.
type RewardStatus struct {
	Config       RewardConfig
	LastRun      time.Time
	NextRun      time.Time
	Runs         int
	TotalAwarded int64
}

// RewardStore is the ledger surface the scheduler needs.
type RewardStore interface {
	ApplyPointsDelta(ctx context.Context, guildID, userID int64, delta int, username string) (bool, int, error)
	SetGuildConfig(ctx context.Context, guildID int64, key, value string) error
	GetGuildConfig(ctx context.Context, guildID int64, key string) (string, bool, error)
	GetGuildConfigInt(ctx context.Context, guildID int64, key string) (int64, bool, error)
}

// Broadcaster pushes fresh pages to live leaderboard views after a
// distribution changes the standings. *ViewRegistry satisfies it.
type Broadcaster interface {
	BroadcastGuildUpdate(ctx context.Context, guildID int64)
}

type rewardLoop struct {
	cfg    RewardConfig
	cancel context.CancelFunc
	done   chan struct{}

	// lastReward gates each member to one reward per interval. Touched only
	// by the loop's own goroutine (and direct distribute calls in tests);
	// reconfiguring discards it along with the rest of the loop.
	lastReward map[int64]time.Time

	mu           sync.Mutex
	lastRun      time.Time
	runs         int
	totalAwarded int64
}

// RoleRewardManager runs one distribution goroutine per configured guild.
// Each loop is independently cancellable; reconfiguring a guild replaces
// its loop.
type RoleRewardManager struct {
	store       RewardStore
	session     gateway.Session
	broadcaster Broadcaster

	mu     sync.Mutex
	guilds map[int64]*rewardLoop

	onDistribute func(guildID int64, members int, awarded int64)
}

func NewRoleRewardManager(store RewardStore, session gateway.Session, broadcaster Broadcaster) *RoleRewardManager {
	return &RoleRewardManager{
		store:       store,
		session:     session,
		broadcaster: broadcaster,
		guilds:      make(map[int64]*rewardLoop),
	}
}

// OnDistribute installs a hook invoked after every distribution run, used
// for metrics.
func (m *RoleRewardManager) OnDistribute(fn func(guildID int64, members int, awarded int64)) {
	m.onDistribute = fn
}

// Setup adds or replaces one role's reward in the guild's schedule, persists
// the full configuration and (re)starts the guild loop. Existing rewards for
// other roles are kept; the interval always takes the latest value.
func (m *RoleRewardManager) Setup(ctx context.Context, guildID, roleID int64, points int, interval time.Duration) error {
	if points <= 0 {
		return fmt.Errorf("reward points must be positive, got %d", points)
	}
	if interval < time.Minute {
		return fmt.Errorf("reward interval must be at least one minute, got %s", interval)
	}

	raw, _, err := m.store.GetGuildConfig(ctx, guildID, configRewardRoles)
	if err != nil {
		return fmt.Errorf("failed to read reward roles: %w", err)
	}
	roles := decodeRewardRoles(raw)
	roles[roleID] = points

	if err := m.store.SetGuildConfig(ctx, guildID, configRewardRoles, encodeRewardRoles(roles)); err != nil {
		return fmt.Errorf("failed to persist reward roles: %w", err)
	}
	if err := m.store.SetGuildConfig(ctx, guildID, configRewardInterval, strconv.Itoa(int(interval/time.Minute))); err != nil {
		return fmt.Errorf("failed to persist reward interval: %w", err)
	}
	if err := m.store.SetGuildConfig(ctx, guildID, configRewardsEnabled, "true"); err != nil {
		return fmt.Errorf("failed to persist reward flag: %w", err)
	}

	m.start(guildID, RewardConfig{Roles: roles, Interval: interval})
	log.Printf("Reward schedule for guild %d: %d roles configured, interval %s", guildID, len(roles), interval)
	return nil
}

// Resume restarts the persisted schedule for a guild, if one is enabled.
// Called at startup and on guild join so schedules survive restarts.
func (m *RoleRewardManager) Resume(ctx context.Context, guildID int64) error {
	enabled, ok, err := m.store.GetGuildConfig(ctx, guildID, configRewardsEnabled)
	if err != nil {
		return fmt.Errorf("failed to read reward flag: %w", err)
	}
	if !ok || enabled != "true" {
		return nil
	}

	raw, ok, err := m.store.GetGuildConfig(ctx, guildID, configRewardRoles)
	if err != nil || !ok {
		return err
	}
	roles := decodeRewardRoles(raw)
	if len(roles) == 0 {
		return nil
	}
	minutes, ok, err := m.store.GetGuildConfigInt(ctx, guildID, configRewardInterval)
	if err != nil || !ok {
		return err
	}

	m.start(guildID, RewardConfig{Roles: roles, Interval: time.Duration(minutes) * time.Minute})
	log.Printf("Resumed reward schedule for guild %d", guildID)
	return nil
}

// Stop cancels a guild's schedule, waits for its loop to exit and discards
// the persisted configuration. It reports whether a schedule was running.
func (m *RoleRewardManager) Stop(ctx context.Context, guildID int64) (bool, error) {
	m.mu.Lock()
	loop, ok := m.guilds[guildID]
	if ok {
		delete(m.guilds, guildID)
	}
	m.mu.Unlock()

	if !ok {
		return false, nil
	}

	loop.cancel()
	<-loop.done

	if err := m.store.SetGuildConfig(ctx, guildID, configRewardsEnabled, "false"); err != nil {
		return true, fmt.Errorf("schedule stopped but failed to persist flag: %w", err)
	}
	if err := m.store.SetGuildConfig(ctx, guildID, configRewardRoles, ""); err != nil {
		return true, fmt.Errorf("schedule stopped but failed to clear roles: %w", err)
	}
	log.Printf("Stopped reward schedule for guild %d", guildID)
	return true, nil
}

// StopAll tears down every running schedule. Used during shutdown; the
// persisted configuration is left untouched so schedules resume on restart.
func (m *RoleRewardManager) StopAll() {
	m.mu.Lock()
	loops := make([]*rewardLoop, 0, len(m.guilds))
	for id, loop := range m.guilds {
		loops = append(loops, loop)
		delete(m.guilds, id)
	}
	m.mu.Unlock()

	for _, loop := range loops {
		loop.cancel()
		<-loop.done
	}
}

// Status returns a snapshot of a guild's running schedule.
func (m *RoleRewardManager) Status(guildID int64) (RewardStatus, bool) {
	m.mu.Lock()
	loop, ok := m.guilds[guildID]
	m.mu.Unlock()
	if !ok {
		return RewardStatus{}, false
	}

	loop.mu.Lock()
	defer loop.mu.Unlock()
	status := RewardStatus{
		Config:       loop.cfg,
		LastRun:      loop.lastRun,
		Runs:         loop.runs,
		TotalAwarded: loop.totalAwarded,
	}
	base := loop.lastRun
	if base.IsZero() {
		base = time.Now()
	}
	status.NextRun = base.Add(loop.cfg.Interval)
	return status, true
}

func (m *RoleRewardManager) start(guildID int64, cfg RewardConfig) {
	ctx, cancel := context.WithCancel(context.Background())
	loop := &rewardLoop{
		cfg:        cfg,
		cancel:     cancel,
		done:       make(chan struct{}),
		lastReward: make(map[int64]time.Time),
	}

	m.mu.Lock()
	if old, ok := m.guilds[guildID]; ok {
		old.cancel()
		// Old loop drains on its own; its done channel is not ours to wait
		// on while holding the lock.
	}
	m.guilds[guildID] = loop
	m.mu.Unlock()

	go m.run(ctx, guildID, loop)
}

func (m *RoleRewardManager) run(ctx context.Context, guildID int64, loop *rewardLoop) {
	defer close(loop.done)

	ticker := time.NewTicker(loop.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.distribute(ctx, guildID, loop)
		}
	}
}

// distribute awards each non-bot member the summed points of the reward
// roles they hold, at most once per interval per member. Members are
// processed independently; one failed update never aborts the run.
func (m *RoleRewardManager) distribute(ctx context.Context, guildID int64, loop *rewardLoop) {
	members, err := m.session.GuildMembers(ctx, guildID)
	if err != nil {
		log.Printf("Reward run for guild %d could not list members: %v", guildID, err)
		return
	}

	now := time.Now()
	awarded := int64(0)
	recipients := 0
	for _, member := range members {
		if member.Bot {
			continue
		}
		points := 0
		for roleID, perRole := range loop.cfg.Roles {
			if member.HasRole(roleID) {
				points += perRole
			}
		}
		if points <= 0 {
			continue
		}
		if last, ok := loop.lastReward[member.UserID]; ok && now.Sub(last) < loop.cfg.Interval {
			continue
		}
		applied, _, err := m.store.ApplyPointsDelta(ctx, guildID, member.UserID, points, member.Username)
		if err != nil {
			log.Printf("Reward run failed for user %d in guild %d: %v", member.UserID, guildID, err)
			continue
		}
		if applied {
			loop.lastReward[member.UserID] = now
			recipients++
			awarded += int64(points)
		}
	}

	loop.mu.Lock()
	loop.lastRun = now
	loop.runs++
	loop.totalAwarded += awarded
	loop.mu.Unlock()

	log.Printf("Reward run for guild %d: %d points to %d members", guildID, awarded, recipients)

	if m.onDistribute != nil {
		m.onDistribute(guildID, recipients, awarded)
	}
	if recipients > 0 && m.broadcaster != nil {
		m.broadcaster.BroadcastGuildUpdate(ctx, guildID)
	}
}

// encodeRewardRoles serializes a role reward map as "roleID:points" pairs
// joined by commas, sorted by role ID for a stable round-trip.
func encodeRewardRoles(roles map[int64]int) string {
	ids := make([]int64, 0, len(roles))
	for id := range roles {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10)+":"+strconv.Itoa(roles[id]))
	}
	return strings.Join(parts, ",")
}

func decodeRewardRoles(raw string) map[int64]int {
	roles := make(map[int64]int)
	for _, part := range strings.Split(raw, ",") {
		idPart, pointsPart, found := strings.Cut(part, ":")
		if !found {
			continue
		}
		roleID, err := strconv.ParseInt(idPart, 10, 64)
		if err != nil {
			continue
		}
		points, err := strconv.Atoi(pointsPart)
		if err != nil || points <= 0 {
			continue
		}
		roles[roleID] = points
	}
	return roles
}
