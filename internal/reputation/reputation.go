// Package reputation scores agents from their ledger history and ranks them.
package reputation

import (
	"math"
	"sort"

	"github.com/punchamoorthee/clawledger/internal/amount"
	"github.com/punchamoorthee/clawledger/internal/domain"
)

const (
	TierNew     = "new"
	TierActive  = "active"
	TierTrusted = "trusted"
	TierVeteran = "veteran"
)

const (
	BadgeEarlyAdopter    = "early_adopter"
	BadgeHighVolume      = "high_volume"
	BadgeWhale           = "whale"
	BadgeReliablePayer   = "reliable_payer"
	BadgeSafetyConscious = "safety_conscious"
	BadgeSubscriber      = "subscriber"
	BadgeWellConnected   = "well_connected"
	BadgeTrusting        = "trusting"
	BadgeGenerous        = "generous"
)

const (
	tenureFullDays     = 90
	connectionsFull    = 20
	highVolumeDisplay  = 100
	whaleDisplay       = 1000
	earlyAdopterDays   = 7
	reliableMinDecided = 3
	reliablePercent    = 90
	subscriberMin      = 3
	wellConnectedMin   = 10
)

// Profile is everything the score is computed from. Invoices holds every invoice the
// agent is a party to, Subscriptions those it sends and Allowances those it grants.
type Profile struct {
	Agent         domain.Agent
	Invoices      []domain.Invoice
	Subscriptions []domain.Subscription
	Allowances    []domain.Allowance
}

type Breakdown struct {
	VolumeDisplay       float64 `json:"volume_display"`
	InvoiceReliability  int     `json:"invoice_reliability"`
	Connections         int     `json:"connections"`
	TenureDays          int64   `json:"tenure_days"`
	HasSpendingCap      bool    `json:"has_spending_cap"`
	ActiveSubscriptions int     `json:"active_subscriptions"`
	AllowancesGranted   int     `json:"allowances_granted"`
}

type Report struct {
	Agent     string    `json:"agent"`
	Score     int       `json:"score"`
	Tier      string    `json:"tier"`
	Breakdown Breakdown `json:"breakdown"`
	Badges    []string  `json:"badges"`
}

// round matches the half-up rounding the scores were tuned with.
func round(x float64) int {
	return int(math.Floor(x + 0.5))
}

func display(units uint64) float64 {
	return float64(units) / domain.UnitsPerDisplay
}

// Compute scores p as of now (unix seconds).
func Compute(p Profile, now int64) Report {
	a := p.Agent
	sent, received := display(a.TotalSent), display(a.TotalReceived)
	volume := sent + received
	tenure := (now - a.CreatedAt) / domain.SecondsPerDay
	hasCap := a.DailyLimit > 0

	var paid, failed int
	peers := make(map[string]struct{})
	for _, inv := range p.Invoices {
		if inv.PayerName == a.Name {
			peers[inv.RequesterName] = struct{}{}
			switch {
			case inv.Status == domain.InvoicePaid:
				paid++
			case inv.Status == domain.InvoiceRejected, inv.Status == domain.InvoiceExpired:
				failed++
			case inv.Status == domain.InvoicePending && inv.ExpiresAt > 0 && now > inv.ExpiresAt:
				failed++
			}
		}
		if inv.RequesterName == a.Name {
			peers[inv.PayerName] = struct{}{}
		}
	}
	decided := paid + failed
	reliability := 100
	if decided > 0 {
		reliability = round(float64(paid) / float64(decided) * 100)
	}

	var activeSubs, activeAllowances int
	for _, s := range p.Subscriptions {
		peers[s.ReceiverName] = struct{}{}
		if s.Active {
			activeSubs++
		}
	}
	for _, al := range p.Allowances {
		peers[al.SpenderName] = struct{}{}
		if al.Active {
			activeAllowances++
		}
	}
	delete(peers, a.Name)
	connections := len(peers)

	score := min(25, round(math.Log10(math.Max(1, volume))*6.25))
	score += min(15, round(float64(tenure)/tenureFullDays*15))
	score += round(float64(reliability) / 100 * 25)
	score += min(15, round(float64(connections)/connectionsFull*15))
	for _, on := range []bool{hasCap, activeSubs > 0, activeAllowances > 0, decided > 0} {
		if on {
			score += 5
		}
	}
	score = max(0, min(100, score))

	badges := []string{}
	if tenure >= 0 && tenure <= earlyAdopterDays {
		badges = append(badges, BadgeEarlyAdopter)
	}
	if volume >= highVolumeDisplay {
		badges = append(badges, BadgeHighVolume)
	}
	if volume >= whaleDisplay {
		badges = append(badges, BadgeWhale)
	}
	if reliability >= reliablePercent && decided >= reliableMinDecided {
		badges = append(badges, BadgeReliablePayer)
	}
	if hasCap {
		badges = append(badges, BadgeSafetyConscious)
	}
	if activeSubs >= subscriberMin {
		badges = append(badges, BadgeSubscriber)
	}
	if connections >= wellConnectedMin {
		badges = append(badges, BadgeWellConnected)
	}
	if activeAllowances >= 1 {
		badges = append(badges, BadgeTrusting)
	}
	if sent > 0 && sent > received*1.5 {
		badges = append(badges, BadgeGenerous)
	}

	return Report{
		Agent: a.Name,
		Score: score,
		Tier:  tierFor(score),
		Breakdown: Breakdown{
			VolumeDisplay:       math.Round(volume*100) / 100,
			InvoiceReliability:  reliability,
			Connections:         connections,
			TenureDays:          tenure,
			HasSpendingCap:      hasCap,
			ActiveSubscriptions: activeSubs,
			AllowancesGranted:   activeAllowances,
		},
		Badges: badges,
	}
}

func tierFor(score int) string {
	switch {
	case score >= 75:
		return TierVeteran
	case score >= 50:
		return TierTrusted
	case score >= 25:
		return TierActive
	default:
		return TierNew
	}
}

// Sort orders for a leaderboard.
const (
	SortVolume     = "volume"
	SortReputation = "reputation"
	SortSent       = "sent"
	SortReceived   = "received"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Entry is one leaderboard row. Totals are in base units.
type Entry struct {
	Name          string   `json:"name"`
	Score         int      `json:"score"`
	Tier          string   `json:"tier"`
	Badges        []string `json:"badges"`
	TotalSent     uint64   `json:"total_sent"`
	TotalReceived uint64   `json:"total_received"`
	TotalVolume   uint64   `json:"total_volume"`
}

// NewEntry builds the row for a scored agent.
func NewEntry(a domain.Agent, r Report) Entry {
	return Entry{
		Name:          a.Name,
		Score:         r.Score,
		Tier:          r.Tier,
		Badges:        r.Badges,
		TotalSent:     a.TotalSent,
		TotalReceived: a.TotalReceived,
		TotalVolume:   amount.SaturatingAdd(a.TotalSent, a.TotalReceived),
	}
}

// Rank sorts entries in place by the given order, highest first, and returns at most
// limit of them. Unknown orders fall back to volume; ties go by name.
func Rank(entries []Entry, order string, limit int) []Entry {
	key := func(e Entry) uint64 { return e.TotalVolume }
	switch order {
	case SortReputation:
		key = func(e Entry) uint64 { return uint64(e.Score) }
	case SortSent:
		key = func(e Entry) uint64 { return e.TotalSent }
	case SortReceived:
		key = func(e Entry) uint64 { return e.TotalReceived }
	}
	sort.Slice(entries, func(i, j int) bool {
		ki, kj := key(entries[i]), key(entries[j])
		if ki != kj {
			return ki > kj
		}
		return entries[i].Name < entries[j].Name
	})

	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// NormalizeSort maps an order name to one Rank understands.
func NormalizeSort(order string) string {
	switch order {
	case SortReputation, SortSent, SortReceived:
		return order
	default:
		return SortVolume
	}
}
