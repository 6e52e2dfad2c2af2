// Package discovery finds public Battlesnake game ids by crawling the
// leaderboard pages and each listed player's recent games.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
)

type Config struct {
	// BaseURL is prepended to the relative player links found on leaderboards.
	BaseURL string
	// Leaderboards are paths below BaseURL, e.g. /leaderboard/standard.
	Leaderboards []string
	RequestDelay time.Duration
	// MaxPlayers caps players checked per leaderboard (0 = unlimited).
	MaxPlayers int
	UserAgent  string
}

func DefaultConfig() Config {
	return Config{
		BaseURL: "https://play.battlesnake.com",
		Leaderboards: []string{
			"/leaderboard/standard",
			"/leaderboard/standard-duels",
		},
		RequestDelay: 500 * time.Millisecond,
		MaxPlayers:   100,
		UserAgent:    "snekbfs-replay/1.0",
	}
}

type Worker struct {
	config Config
	client *http.Client
	logger *slog.Logger

	knownMu  sync.RWMutex
	knownIDs map[string]bool

	gameIDRe *regexp.Regexp
	playerRe *regexp.Regexp
	arenaRe  *regexp.Regexp
}

// NewWorker returns a crawler that never reports ids in known.
func NewWorker(config Config, known map[string]bool, logger *slog.Logger) *Worker {
	if known == nil {
		known = make(map[string]bool)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		config:   config,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger.With("component", "discovery"),
		knownIDs: known,
		gameIDRe: regexp.MustCompile(`/game/([a-f0-9-]+)`),
		playerRe: regexp.MustCompile(`/leaderboard/[^/]+/([^/]+)/stats`),
		arenaRe:  regexp.MustCompile(`/leaderboard/([^/]+)/?$`),
	}
}

// Discover sends every new game id to out and returns when all leaderboards
// have been crawled or ctx is done. A leaderboard or player page that fails
// is logged and skipped.
func (w *Worker) Discover(ctx context.Context, out chan<- string) error {
	total := 0
	for _, board := range w.config.Leaderboards {
		arena := "unknown"
		if m := w.arenaRe.FindStringSubmatch(board); len(m) >= 2 {
			arena = m[1]
		}
		logger := w.logger.With("arena", arena)

		players, err := w.leaderboardPlayers(ctx, w.config.BaseURL+board)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("leaderboard failed", "error", err)
			continue
		}
		if w.config.MaxPlayers > 0 && len(players) > w.config.MaxPlayers {
			players = players[:w.config.MaxPlayers]
		}
		logger.Info("leaderboard loaded", "players", len(players))

		found := 0
		for _, player := range players {
			ids, err := w.playerGames(ctx, player.statsURL)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.Warn("player games failed", "player", player.username, "error", err)
				continue
			}
			for _, id := range ids {
				if !w.markKnown(id) {
					continue
				}
				select {
				case out <- id:
					found++
				case <-ctx.Done():
					return ctx.Err()
				}
			}

			if err := sleep(ctx, w.config.RequestDelay); err != nil {
				return err
			}
		}
		logger.Info("leaderboard done", "new_games", found)
		total += found
	}
	w.logger.Info("discovery complete", "new_games", total)
	return nil
}

// markKnown records id and reports whether it was new.
func (w *Worker) markKnown(id string) bool {
	w.knownMu.Lock()
	defer w.knownMu.Unlock()
	if w.knownIDs[id] {
		return false
	}
	w.knownIDs[id] = true
	return true
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type playerInfo struct {
	username string
	statsURL string
}

func (w *Worker) fetch(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if w.config.UserAgent != "" {
		req.Header.Set("User-Agent", w.config.UserAgent)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}

func (w *Worker) leaderboardPlayers(ctx context.Context, url string) ([]playerInfo, error) {
	doc, err := w.fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	var players []playerInfo
	seen := make(map[string]bool)
	doc.Find("a[href*='/leaderboard/']").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		m := w.playerRe.FindStringSubmatch(href)
		if len(m) < 2 || seen[m[1]] {
			return
		}
		seen[m[1]] = true
		statsURL := href
		if strings.HasPrefix(href, "/") {
			statsURL = w.config.BaseURL + href
		}
		players = append(players, playerInfo{username: m[1], statsURL: statsURL})
	})
	return players, nil
}

func (w *Worker) playerGames(ctx context.Context, url string) ([]string, error) {
	doc, err := w.fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	var ids []string
	seen := make(map[string]bool)
	doc.Find("a[href*='/game/']").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		m := w.gameIDRe.FindStringSubmatch(href)
		if len(m) < 2 || seen[m[1]] {
			return
		}
		seen[m[1]] = true
		ids = append(ids, m[1])
	})
	return ids, nil
}
