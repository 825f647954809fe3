package game

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const DefaultLeaderboardSize = 100

type LeaderboardRecord struct {
	Username string          `json:"username"`
	Asset    decimal.Decimal `json:"asset"`
	Days     int             `json:"days"`
}

type CasinoRecord struct {
	Username  string          `json:"username"`
	CasinoWin decimal.Decimal `json:"casino_win"`
}

// RankRecords orders by asset descending; equal assets rank the account that
// needed fewer days first.
func RankRecords(records []LeaderboardRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if c := a.Asset.Cmp(b.Asset); c != 0 {
			return c > 0
		}
		if a.Days != b.Days {
			return a.Days < b.Days
		}
		return a.Username < b.Username
	})
}

func rankCasino(records []CasinoRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if c := a.CasinoWin.Cmp(b.CasinoWin); c != 0 {
			return c > 0
		}
		return a.Username < b.Username
	})
}

// Leaderboard keeps the last computed ranking. Reads never trigger a
// recompute; Refresh runs on a timer.
type Leaderboard struct {
	size        int
	records     []LeaderboardRecord
	casino      []CasinoRecord
	refreshedAt time.Time
}

func NewLeaderboard(size int, seed []LeaderboardRecord) *Leaderboard {
	if size <= 0 {
		size = DefaultLeaderboardSize
	}
	lb := &Leaderboard{size: size, records: append([]LeaderboardRecord(nil), seed...)}
	RankRecords(lb.records)
	return lb
}

func recordFor(acct *Account, prices map[string]decimal.Decimal) LeaderboardRecord {
	return LeaderboardRecord{Username: acct.Username, Asset: acct.NetWorth(prices), Days: acct.Day}
}

func (l *Leaderboard) Refresh(accounts []*Account, prices map[string]decimal.Decimal, now time.Time) {
	records := make([]LeaderboardRecord, 0, len(accounts))
	casino := make([]CasinoRecord, 0)
	for _, acct := range accounts {
		records = append(records, recordFor(acct, prices))
		if acct.CasinoWinnings.IsPositive() {
			casino = append(casino, CasinoRecord{Username: acct.Username, CasinoWin: acct.CasinoWinnings})
		}
	}
	RankRecords(records)
	rankCasino(casino)
	l.records = records
	l.casino = casino
	l.refreshedAt = now
}

// Submit replaces one account's record ahead of the next refresh.
func (l *Leaderboard) Submit(rec LeaderboardRecord) {
	for i := range l.records {
		if l.records[i].Username == rec.Username {
			l.records[i] = rec
			RankRecords(l.records)
			return
		}
	}
	l.records = append(l.records, rec)
	RankRecords(l.records)
}

// Top returns up to size records; a non-empty username filters to that player.
func (l *Leaderboard) Top(username string) []LeaderboardRecord {
	out := make([]LeaderboardRecord, 0, l.size)
	for _, r := range l.records {
		if username != "" && !strings.EqualFold(r.Username, username) {
			continue
		}
		out = append(out, r)
		if len(out) == l.size {
			break
		}
	}
	return out
}

func (l *Leaderboard) CasinoTop(username string) []CasinoRecord {
	out := make([]CasinoRecord, 0, l.size)
	for _, r := range l.casino {
		if username != "" && !strings.EqualFold(r.Username, username) {
			continue
		}
		out = append(out, r)
		if len(out) == l.size {
			break
		}
	}
	return out
}

func (l *Leaderboard) RefreshedAt() time.Time { return l.refreshedAt }

// Records returns every ranked record, unbounded by size.
func (l *Leaderboard) Records() []LeaderboardRecord {
	return append([]LeaderboardRecord(nil), l.records...)
}
