package api

import (
	"encoding/json"
	"fmt"
)

// Structs mirror Trackmania.io JSON one-to-one; field tags carry the
// upstream names.

type PlayerRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Tag  string `json:"tag,omitempty"`
	Zone *Zone  `json:"zone,omitempty"`
}

type Zone struct {
	ID     string `json:"zoneid,omitempty"`
	Name   string `json:"name"`
	Flag   string `json:"flag,omitempty"`
	Parent *Zone  `json:"parent,omitempty"`
}

// Chain lists the zone and its parents, innermost first.
func (z *Zone) Chain() []string {
	var out []string
	for cur := z; cur != nil; cur = cur.Parent {
		out = append(out, cur.Name)
	}
	return out
}

type Player struct {
	AccountID        string           `json:"accountid"`
	DisplayName      string           `json:"displayname"`
	ClubTag          string           `json:"clubtag,omitempty"`
	ClubTagTimestamp string           `json:"clubtagtimestamp,omitempty"`
	Timestamp        string           `json:"timestamp"`
	Trophies         *PlayerTrophies  `json:"trophies,omitempty"`
	Meta             *PlayerMeta      `json:"meta,omitempty"`
	Matchmaking      []MatchmakingRow `json:"matchmaking,omitempty"`
}

type PlayerMeta struct {
	DisplayURL   string `json:"display_url,omitempty"`
	Nadeo        bool   `json:"nadeo"`
	TMGL         bool   `json:"tmgl"`
	Team         bool   `json:"team"`
	Sponsor      bool   `json:"sponsor"`
	SponsorLevel int    `json:"sponsor_level"`
	Twitch       string `json:"twitch,omitempty"`
	Twitter      string `json:"twitter,omitempty"`
	YouTube      string `json:"youtube,omitempty"`
	Vanity       string `json:"vanity,omitempty"`
}

type PlayerTrophies struct {
	Points    int64  `json:"points"`
	Counts    []int  `json:"counts"`
	Echelon   int    `json:"echelon"`
	Timestamp string `json:"timestamp"`
	Zone      *Zone  `json:"zone,omitempty"`
	// ZonePositions are the player's ranks in Zone and each of its parents.
	ZonePositions []int `json:"zonepositions,omitempty"`
}

// Tier returns the number of trophies of tier n, from 1 (T1) to 9 (T9).
func (t *PlayerTrophies) Tier(n int) (int, error) {
	if n < 1 || n > 9 {
		return 0, fmt.Errorf("%w: trophy tier %d not in 1..9", ErrInvalidArgument, n)
	}
	if n > len(t.Counts) {
		return 0, nil
	}
	return t.Counts[n-1], nil
}

type MatchmakingRow struct {
	TypeName    string   `json:"typename"`
	TypeID      int      `json:"typeid"`
	AccountID   string   `json:"accountid"`
	Rank        int      `json:"rank"`
	Score       int      `json:"score"`
	Progression int      `json:"progression"`
	Division    Division `json:"division"`
}

type Division struct {
	Position  int `json:"position"`
	MinPoints int `json:"minpoints"`
	MaxPoints int `json:"maxpoints"`
}

type PlayerSearchResult struct {
	Player      PlayerRef        `json:"player"`
	Matchmaking []MatchmakingRow `json:"matchmaking,omitempty"`
}

type Map struct {
	UID             string     `json:"mapUid"`
	ID              string     `json:"mapId"`
	Name            string     `json:"name"`
	Author          string     `json:"author"`
	AuthorPlayer    *PlayerRef `json:"authorplayer,omitempty"`
	Submitter       string     `json:"submitter"`
	SubmitterPlayer *PlayerRef `json:"submitterplayer,omitempty"`
	AuthorScore     int        `json:"authorScore"`
	GoldScore       int        `json:"goldScore"`
	SilverScore     int        `json:"silverScore"`
	BronzeScore     int        `json:"bronzeScore"`
	CollectionName  string     `json:"collectionName"`
	FileName        string     `json:"filename"`
	MapType         string     `json:"mapType,omitempty"`
	IsPlayable      bool       `json:"isPlayable"`
	Timestamp       string     `json:"timestamp"`
	FileURL         string     `json:"fileUrl"`
	ThumbnailURL    string     `json:"thumbnailUrl"`
	ExchangeID      int        `json:"exchangeid,omitempty"`
}

type Leaderboard struct {
	Tops        []LeaderboardEntry `json:"tops"`
	PlayerCount int                `json:"playercount"`
}

type LeaderboardEntry struct {
	Player    PlayerRef `json:"player"`
	Position  int       `json:"position"`
	Time      int       `json:"time"`
	FileName  string    `json:"filename"`
	Timestamp string    `json:"timestamp"`
	URL       string    `json:"url"`
}

type TOTDMonth struct {
	Year        int       `json:"year"`
	Month       int       `json:"month"`
	LastDay     int       `json:"lastday"`
	MonthOffset int       `json:"monthoffset"`
	Days        []TOTDDay `json:"days"`
}

type TOTDDay struct {
	CampaignID     int    `json:"campaignid"`
	Map            Map    `json:"map"`
	WeekDay        int    `json:"weekday"`
	MonthDay       int    `json:"monthday"`
	LeaderboardUID string `json:"leaderboarduid"`
}

type COTDPage struct {
	Competitions []COTD `json:"competitions"`
}

type COTD struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	StartTime   int64  `json:"starttime"`
	EndTime     int64  `json:"endtime"`
	Players     int    `json:"players"`
}

type PlayerCOTD struct {
	Total int                `json:"total"`
	COTDs []PlayerCOTDResult `json:"cotds"`
	Stats json.RawMessage    `json:"stats,omitempty"`
}

type PlayerCOTDResult struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Timestamp    string `json:"timestamp"`
	Div          int    `json:"div"`
	Rank         int    `json:"rank"`
	DivRank      int    `json:"divrank"`
	Score        int    `json:"score"`
	TotalPlayers int    `json:"totalplayers"`
}

type TrophyHistory struct {
	Count int               `json:"count"`
	Gains []json.RawMessage `json:"gains"`
}

type TrophyRanks struct {
	Ranks []TrophyRank `json:"ranks"`
}

type TrophyRank struct {
	Player PlayerRef `json:"player"`
	Rank   int       `json:"rank"`
	Score  int64     `json:"score"`
}

type MatchHistory struct {
	Matches []json.RawMessage `json:"matches"`
}

type MatchmakingRanks struct {
	Ranks []MatchmakingRank `json:"ranks"`
}

type MatchmakingRank struct {
	Player PlayerRef `json:"player"`
	Rank   int       `json:"rank"`
	Score  int       `json:"score"`
}

type Ads struct {
	Ads []Ad `json:"ads"`
}

type Ad struct {
	UID           string `json:"uid"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	URL           string `json:"url"`
	Image2x3      string `json:"img2x3"`
	Image16x9     string `json:"img16x9"`
	Image64x10    string `json:"img64x10"`
	Media         string `json:"media"`
	DisplayFormat string `json:"displayformat"`
}

type Campaign struct {
	ID             int             `json:"id"`
	Name           string          `json:"name"`
	Media          string          `json:"media,omitempty"`
	CreationTime   int64           `json:"creationtime"`
	PublishTime    int64           `json:"publishtime"`
	ClubID         int             `json:"clubid"`
	ClubName       string          `json:"clubname,omitempty"`
	LeaderboardUID string          `json:"leaderboarduid"`
	Playlist       []Map           `json:"playlist"`
	MediaE         json.RawMessage `json:"mediae,omitempty"`
}

type CampaignPage struct {
	Campaigns []CampaignSummary `json:"campaigns"`
	Page      int               `json:"page"`
	PageCount int               `json:"pageCount"`
}

// CampaignSummary is a row of the campaign list. ClubID is 0 for official
// campaigns.
type CampaignSummary struct {
	ID        int    `json:"id"`
	ClubID    int    `json:"clubid"`
	Name      string `json:"name"`
	Timestamp int64  `json:"timestamp"`
	MapCount  int    `json:"mapcount"`
}

type Club struct {
	ID                int        `json:"id"`
	Name              string     `json:"name"`
	Tag               string     `json:"tag"`
	Description       string     `json:"description"`
	CreatorPlayer     *PlayerRef `json:"creatorplayer,omitempty"`
	IconURL           string     `json:"iconUrl,omitempty"`
	LogoURL           string     `json:"logoUrl,omitempty"`
	DecalURL          string     `json:"decalUrl,omitempty"`
	BackgroundURL     string     `json:"backgroundUrl,omitempty"`
	MemberCount       int        `json:"membercount"`
	CreationTimestamp int64      `json:"creationTimestamp"`
	PopularityLevel   int        `json:"popularityLevel"`
	State             string     `json:"state"`
	Featured          bool       `json:"featured"`
}

type Room struct {
	ID              int    `json:"id"`
	ClubID          int    `json:"clubid"`
	ClubName        string `json:"clubname,omitempty"`
	Nadeo           bool   `json:"nadeo"`
	Login           string `json:"login"`
	Name            string `json:"name"`
	Region          string `json:"region,omitempty"`
	ServerConnected bool   `json:"serverconnected"`
	PlayerCount     int    `json:"playercount"`
	PlayerMax       int    `json:"playermax"`
	Script          string `json:"script"`
	MediaURL        string `json:"mediaurl,omitempty"`
	Maps            []Map  `json:"maps"`
}

type RoomPage struct {
	Rooms []RoomSummary `json:"rooms"`
}

type RoomSummary struct {
	ID             int    `json:"id"`
	ClubID         int    `json:"clubid"`
	Name           string `json:"name"`
	Nadeo          bool   `json:"nadeo"`
	PlayerCount    int    `json:"playercount"`
	MaxPlayerCount int    `json:"maxplayercount"`
}
