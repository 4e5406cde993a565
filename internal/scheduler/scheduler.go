// Package scheduler delivers each guild's daily Quran portion at its
// configured clock slots.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wirdbot/wirdbot/internal/bus"
	"github.com/wirdbot/wirdbot/internal/config"
	"github.com/wirdbot/wirdbot/internal/quran"
	"github.com/wirdbot/wirdbot/internal/store"
)

// slotTypeClock marks a scheduled_times row holding a fixed HH:MM value.
// Other time types are reserved and never fire.
const slotTypeClock = "custom"

// defaultDeliveries bounds concurrent guild deliveries per tick.
const defaultDeliveries = 4

// Scheduler posts daily wird portions. Every tick it compares the current
// UTC clock against each guild's enabled slots and delivers at most once
// per guild per day.
type Scheduler struct {
	cfg   config.SchedulerConfig
	store *store.Store
	quran *quran.Client
	bus   *bus.MessageBus
	sem   *Semaphore
	lock  *FileLock

	nowFn func() time.Time
}

// New creates a Scheduler. Deliveries are published on the bus as outbound
// messages for the discord channel.
func New(cfg config.SchedulerConfig, st *store.Store, qc *quran.Client, b *bus.MessageBus) *Scheduler {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Minute
	}
	home, _ := os.UserHomeDir()
	lockPath := filepath.Join(home, ".wirdbot", "scheduler.lock")
	os.MkdirAll(filepath.Dir(lockPath), 0o700)
	return &Scheduler{
		cfg:   cfg,
		store: st,
		quran: qc,
		bus:   b,
		sem:   NewSemaphore(defaultDeliveries),
		lock:  NewFileLock(lockPath),
		nowFn: time.Now,
	}
}

// Run starts the tick loop. Blocks until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("scheduler: started", "tick", s.cfg.TickInterval)
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler: stopped")
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx, s.nowFn())
		}
	}
}

// tick delivers to every guild with a slot matching the current UTC minute
// and no session recorded today. The file lock keeps a second wirdbot
// process from double-posting.
func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	acquired, err := s.lock.TryLock()
	if err != nil {
		slog.Warn("scheduler: lock error", "error", err)
		return
	}
	if !acquired {
		slog.Debug("scheduler: tick skipped, lock held by another process")
		return
	}
	defer s.lock.Unlock()

	clock := now.UTC().Format("15:04")
	today := now.UTC().Format("2006-01-02")

	slots, err := s.store.EnabledScheduledTimes(ctx)
	if err != nil {
		slog.Error("scheduler: load slots", "error", err)
		return
	}
	due := map[string]bool{}
	for _, slot := range slots {
		if slot.TimeType == slotTypeClock && slot.TimeValue == clock {
			due[slot.GuildID] = true
		}
	}
	if len(due) == 0 {
		return
	}

	guilds, err := s.store.ConfiguredGuilds(ctx)
	if err != nil {
		slog.Error("scheduler: load guilds", "error", err)
		return
	}
	for _, g := range guilds {
		if !due[g.GuildID] || g.ChannelID == "" {
			continue
		}
		delivered, err := s.store.SessionExists(ctx, g.GuildID, today)
		if err != nil {
			slog.Error("scheduler: session lookup", "guild", g.GuildID, "error", err)
			continue
		}
		if delivered {
			continue
		}
		if !s.sem.TryAcquire() {
			slog.Warn("scheduler: delivery skipped, concurrency limit", "guild", g.GuildID)
			continue
		}
		guild := g
		go func() {
			defer s.sem.Release()
			if err := s.deliver(ctx, guild, today); err != nil {
				slog.Error("scheduler: delivery failed", "guild", guild.GuildID, "error", err)
			}
		}()
	}
}

// deliver posts the guild's portion, advances current_page, and records the
// session. The session row is the idempotency record; if posting fails the
// row is not written and the next matching slot retries.
func (s *Scheduler) deliver(ctx context.Context, g store.Guild, today string) error {
	// Re-check under the semaphore: an earlier slot in the same minute may
	// have already delivered.
	delivered, err := s.store.SessionExists(ctx, g.GuildID, today)
	if err != nil {
		return fmt.Errorf("session lookup: %w", err)
	}
	if delivered {
		return nil
	}

	pages := portionPages(g.CurrentPage, g.PagesPerDay)
	titles := make(map[int][]string, len(pages))
	for _, p := range pages {
		names, err := s.quran.PageSurahs(ctx, p)
		if err != nil {
			slog.Warn("scheduler: surah lookup failed", "guild", g.GuildID, "page", p, "error", err)
			continue
		}
		titles[p] = names
	}

	s.bus.PublishOutbound(&bus.OutboundMessage{
		Channel:   "discord",
		ChannelID: g.ChannelID,
		Content:   portionMessage(g, pages, titles, today),
	})

	if err := s.store.SetCurrentPage(ctx, g.GuildID, nextPage(g.CurrentPage, g.PagesPerDay)); err != nil {
		return fmt.Errorf("advance page: %w", err)
	}
	if err := s.store.RecordSession(ctx, &store.WirdSession{
		GuildID:   g.GuildID,
		Date:      today,
		StartPage: g.CurrentPage,
		EndPage:   g.CurrentPage + g.PagesPerDay - 1,
	}); err != nil {
		return fmt.Errorf("record session: %w", err)
	}
	slog.Info("scheduler: delivered", "guild", g.GuildID, "start", pages[0], "pages", len(pages))
	return nil
}

// portionPages returns the page numbers for one day, wrapping past the end
// of the mushaf.
func portionPages(current, perDay int) []int {
	if current < 1 {
		current = 1
	}
	if perDay < 1 {
		perDay = 1
	}
	pages := make([]int, perDay)
	for i := 0; i < perDay; i++ {
		pages[i] = (current-1+i)%quran.MaxPage + 1
	}
	return pages
}

// nextPage returns the first page of the following day's portion.
func nextPage(current, perDay int) int {
	if current < 1 {
		current = 1
	}
	if perDay < 1 {
		perDay = 1
	}
	return (current-1+perDay)%quran.MaxPage + 1
}

// portionMessage renders the daily post. Surah names are best-effort;
// pages missing from titles render without them.
func portionMessage(g store.Guild, pages []int, titles map[int][]string, today string) string {
	var b strings.Builder
	if g.WirdRoleID != "" {
		fmt.Fprintf(&b, "<@&%s> ", g.WirdRoleID)
	}
	if len(pages) == 1 {
		fmt.Fprintf(&b, "📖 **Daily Wird** • page %d\n", pages[0])
	} else {
		fmt.Fprintf(&b, "📖 **Daily Wird** • pages %d–%d\n", pages[0], pages[len(pages)-1])
	}
	for _, p := range pages {
		if names := titles[p]; len(names) > 0 {
			fmt.Fprintf(&b, "• Page %d — %s\n", p, strings.Join(names, ", "))
		} else {
			fmt.Fprintf(&b, "• Page %d\n", p)
		}
	}
	footer := today
	if g.MushafType != "" {
		footer = titleCase(g.MushafType) + " • " + today
	}
	fmt.Fprintf(&b, "-# %s • reply here when you finish and I'll log it", footer)
	return b.String()
}

// titleCase upper-cases the first letter only; mushaf types are single
// lowercase words ("madani", "indopak").
func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
