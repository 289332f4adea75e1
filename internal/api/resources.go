package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/52poke/tmio/internal/cache"
	"github.com/52poke/tmio/internal/tmio"
)

// TOTDReleaseHour is the UTC hour the track of the day is published.
const TOTDReleaseHour = 17

const (
	MatchmakingTypeTeams = 2
	MatchmakingTypeRoyal = 3
)

type route struct {
	prefix string
	ttl    time.Duration
}

// Lifetimes per endpoint, longest prefix first. A prefix also matches the
// path without its trailing slash.
var routes = []route{
	{"/leaderboard/map/", time.Hour},
	{"/officialcampaign/", 5 * 24 * time.Hour},
	{"/top/matchmaking/", time.Hour},
	{"/top/trophies/", time.Hour},
	{"/top/royal/", time.Hour},
	{"/players/find/", time.Hour},
	{"/campaign/", 5 * 24 * time.Hour},
	{"/campaigns/", 5 * 24 * time.Hour},
	{"/player/", time.Hour},
	{"/rooms/", time.Hour},
	{"/room/", time.Hour},
	{"/club/", 5 * 24 * time.Hour},
	{"/cotd/", 2 * time.Hour},
	{"/totd/", 2 * time.Hour},
	{"/map/", cache.NoExpiry},
	{"/ads/", 12 * time.Hour},
}

// TTLFor returns the cache lifetime for an API path. Unknown paths get zero,
// which means the cache default.
func TTLFor(p string) time.Duration {
	p = cache.NormalizePath(p)
	if strings.HasPrefix(p, "/player/") && strings.Contains(p, "/cotd/") {
		return 2 * time.Hour
	}
	for _, r := range routes {
		if strings.HasPrefix(p, r.prefix) || p == strings.TrimSuffix(r.prefix, "/") {
			return r.ttl
		}
	}
	return 0
}

func fetchJSON[T any](ctx context.Context, s *Service, p string, query url.Values) (*T, error) {
	res, err := s.Fetch(ctx, Request{Path: p, Query: query, TTL: TTLFor(p)})
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(res.Body, &out); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", p, err)
	}
	return &out, nil
}

func build(segments ...string) string {
	return "/" + strings.Join(segments, "/")
}

// requireID accepts v as a single path segment.
func requireID(name, v string) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("%w: %s must not be empty", ErrInvalidArgument, name)
	}
	if strings.ContainsAny(v, "/\\%?#") || v == "." || v == ".." {
		return fmt.Errorf("%w: %s %q is not a path segment", ErrInvalidArgument, name, v)
	}
	return nil
}

func requirePage(page int) error {
	if page < 0 {
		return fmt.Errorf("%w: page %d is negative", ErrInvalidArgument, page)
	}
	return nil
}

func (s *Service) Player(ctx context.Context, accountID string) (*Player, error) {
	if err := requireID("account id", accountID); err != nil {
		return nil, err
	}
	return fetchJSON[Player](ctx, s, build("player", accountID), nil)
}

func (s *Service) SearchPlayers(ctx context.Context, name string) ([]PlayerSearchResult, error) {
	if err := requireID("player name", name); err != nil {
		return nil, err
	}
	out, err := fetchJSON[[]PlayerSearchResult](ctx, s, build("players", "find"), url.Values{"search": {name}})
	if err != nil {
		return nil, err
	}
	return *out, nil
}

// AccountID resolves a display name to an account id. An exact
// case-insensitive match wins over the first search result.
func (s *Service) AccountID(ctx context.Context, name string) (string, error) {
	results, err := s.SearchPlayers(ctx, name)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", fmt.Errorf("player %q: %w", name, tmio.ErrNotFound)
	}
	for _, r := range results {
		if strings.EqualFold(r.Player.Name, name) {
			return r.Player.ID, nil
		}
	}
	return results[0].Player.ID, nil
}

// Username returns the current display name of an account.
func (s *Service) Username(ctx context.Context, accountID string) (string, error) {
	p, err := s.Player(ctx, accountID)
	if err != nil {
		return "", err
	}
	return p.DisplayName, nil
}

func (s *Service) PlayerTrophies(ctx context.Context, accountID string, page int) (*TrophyHistory, error) {
	if err := requireID("account id", accountID); err != nil {
		return nil, err
	}
	if err := requirePage(page); err != nil {
		return nil, err
	}
	return fetchJSON[TrophyHistory](ctx, s, build("player", accountID, "trophies", strconv.Itoa(page)), nil)
}

func (s *Service) PlayerMatches(ctx context.Context, accountID string, typeID, page int) (*MatchHistory, error) {
	if err := requireID("account id", accountID); err != nil {
		return nil, err
	}
	if typeID != MatchmakingTypeTeams && typeID != MatchmakingTypeRoyal {
		return nil, fmt.Errorf("%w: matchmaking type %d", ErrInvalidArgument, typeID)
	}
	if err := requirePage(page); err != nil {
		return nil, err
	}
	return fetchJSON[MatchHistory](ctx, s, build("player", accountID, "matches", strconv.Itoa(typeID), strconv.Itoa(page)), nil)
}

func (s *Service) PlayerCOTD(ctx context.Context, accountID string, page int) (*PlayerCOTD, error) {
	if err := requireID("account id", accountID); err != nil {
		return nil, err
	}
	if err := requirePage(page); err != nil {
		return nil, err
	}
	return fetchJSON[PlayerCOTD](ctx, s, build("player", accountID, "cotd", strconv.Itoa(page)), nil)
}

func (s *Service) Map(ctx context.Context, uid string) (*Map, error) {
	if err := requireID("map uid", uid); err != nil {
		return nil, err
	}
	return fetchJSON[Map](ctx, s, build("map", uid), nil)
}

func (s *Service) Leaderboard(ctx context.Context, uid string, offset, length int) (*Leaderboard, error) {
	if err := requireID("map uid", uid); err != nil {
		return nil, err
	}
	if offset < 0 || length <= 0 || length > 100 {
		return nil, fmt.Errorf("%w: offset %d length %d", ErrInvalidArgument, offset, length)
	}
	q := url.Values{"offset": {strconv.Itoa(offset)}, "length": {strconv.Itoa(length)}}
	return fetchJSON[Leaderboard](ctx, s, build("leaderboard", "map", uid), q)
}

// TOTD returns the tracks of the day for the month monthOffset months ago.
func (s *Service) TOTD(ctx context.Context, monthOffset int) (*TOTDMonth, error) {
	if monthOffset < 0 {
		return nil, fmt.Errorf("%w: month offset %d is negative", ErrInvalidArgument, monthOffset)
	}
	return fetchJSON[TOTDMonth](ctx, s, build("totd", strconv.Itoa(monthOffset)), nil)
}

// MonthOffset is the number of calendar months between date and now, the
// index TOTD expects.
func MonthOffset(now, date time.Time) int {
	return (now.Year()-date.Year())*12 + int(now.Month()) - int(date.Month())
}

// TOTDFor returns the track of the day published on date's calendar day.
func (s *Service) TOTDFor(ctx context.Context, date time.Time) (*TOTDDay, error) {
	date = date.UTC()
	month, err := s.TOTD(ctx, MonthOffset(s.now().UTC(), date))
	if err != nil {
		return nil, err
	}
	day := date.Day()
	if day > month.LastDay || day > len(month.Days) {
		return nil, fmt.Errorf("%w: no track of the day for %s, last day is %d",
			ErrInvalidArgument, date.Format(time.DateOnly), month.LastDay)
	}
	return &month.Days[day-1], nil
}

// LatestTOTD returns today's track of the day once it is out, yesterday's
// before that.
func (s *Service) LatestTOTD(ctx context.Context) (*TOTDDay, error) {
	now := s.now().UTC()
	if now.Hour() < TOTDReleaseHour {
		now = now.AddDate(0, 0, -1)
	}
	return s.TOTDFor(ctx, now)
}

func (s *Service) COTDs(ctx context.Context, page int) (*COTDPage, error) {
	if err := requirePage(page); err != nil {
		return nil, err
	}
	return fetchJSON[COTDPage](ctx, s, build("cotd", strconv.Itoa(page)), nil)
}

func (s *Service) TopTrophies(ctx context.Context, page int) (*TrophyRanks, error) {
	if err := requirePage(page); err != nil {
		return nil, err
	}
	return fetchJSON[TrophyRanks](ctx, s, build("top", "trophies", strconv.Itoa(page)), nil)
}

func (s *Service) TopMatchmaking(ctx context.Context, page int, royal bool) (*MatchmakingRanks, error) {
	if err := requirePage(page); err != nil {
		return nil, err
	}
	board := "matchmaking"
	if royal {
		board = "royal"
	}
	return fetchJSON[MatchmakingRanks](ctx, s, build("top", board, strconv.Itoa(page)), nil)
}

func (s *Service) Ads(ctx context.Context) (*Ads, error) {
	return fetchJSON[Ads](ctx, s, build("ads"), nil)
}

// Ad returns the ad with the given uid from the current ad list.
func (s *Service) Ad(ctx context.Context, uid string) (*Ad, error) {
	if err := requireID("ad uid", uid); err != nil {
		return nil, err
	}
	ads, err := s.Ads(ctx)
	if err != nil {
		return nil, err
	}
	for i := range ads.Ads {
		if ads.Ads[i].UID == uid {
			return &ads.Ads[i], nil
		}
	}
	return nil, fmt.Errorf("ad %s: %w", uid, tmio.ErrNotFound)
}

func (s *Service) Campaigns(ctx context.Context, page int) (*CampaignPage, error) {
	if err := requirePage(page); err != nil {
		return nil, err
	}
	return fetchJSON[CampaignPage](ctx, s, build("campaigns", strconv.Itoa(page)), nil)
}

// CurrentSeasonCampaign returns the newest official campaign.
func (s *Service) CurrentSeasonCampaign(ctx context.Context) (*Campaign, error) {
	page, err := s.Campaigns(ctx, 0)
	if err != nil {
		return nil, err
	}
	for _, c := range page.Campaigns {
		if c.ClubID == 0 {
			return s.OfficialCampaign(ctx, c.ID)
		}
	}
	return nil, fmt.Errorf("current season campaign: %w", tmio.ErrNotFound)
}

func (s *Service) Campaign(ctx context.Context, clubID, campaignID int) (*Campaign, error) {
	return fetchJSON[Campaign](ctx, s, build("campaign", strconv.Itoa(clubID), strconv.Itoa(campaignID)), nil)
}

func (s *Service) OfficialCampaign(ctx context.Context, campaignID int) (*Campaign, error) {
	return fetchJSON[Campaign](ctx, s, build("officialcampaign", strconv.Itoa(campaignID)), nil)
}

func (s *Service) Club(ctx context.Context, clubID int) (*Club, error) {
	return fetchJSON[Club](ctx, s, build("club", strconv.Itoa(clubID)), nil)
}

func (s *Service) Room(ctx context.Context, clubID, roomID int) (*Room, error) {
	return fetchJSON[Room](ctx, s, build("room", strconv.Itoa(clubID), strconv.Itoa(roomID)), nil)
}

func (s *Service) PopularRooms(ctx context.Context, page int) (*RoomPage, error) {
	if err := requirePage(page); err != nil {
		return nil, err
	}
	return fetchJSON[RoomPage](ctx, s, build("rooms", strconv.Itoa(page)), nil)
}
