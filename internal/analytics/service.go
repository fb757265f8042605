package analytics

import (
	"context"
	"math"
	"math/big"
	"sort"
	"time"

	"clawnema/internal/models"
)

const (
	topCommenters = 10
	growthDays    = 30
)

type Service struct {
	db       *DB
	decimals int
	now      func() time.Time
}

// NewService needs the token decimals to turn stored amounts into USDC.
func NewService(db *DB, decimals int) *Service {
	return &Service{db: db, decimals: decimals, now: time.Now}
}

type PublicStats struct {
	Agents   int `json:"agents"`
	Tickets  int `json:"tickets"`
	Comments int `json:"comments"`
}

func (s *Service) Public(ctx context.Context) (*PublicStats, error) {
	agents, err := s.db.CountDistinctAgents(ctx)
	if err != nil {
		return nil, err
	}
	tickets, err := s.db.CountTickets(ctx)
	if err != nil {
		return nil, err
	}
	comments, err := s.db.CountComments(ctx)
	if err != nil {
		return nil, err
	}
	return &PublicStats{Agents: agents, Tickets: tickets, Comments: comments}, nil
}

type TheaterRevenue struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Tickets      int     `json:"tickets"`
	Revenue      float64 `json:"revenue"`
	RevenueUnits string  `json:"revenue_units"`
	UniqueAgents int     `json:"unique_agents"`
	Comments     int     `json:"comments"`
}

type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type AdminStats struct {
	Agents struct {
		Total int          `json:"total"`
		Top   []AgentCount `json:"top"`
	} `json:"agents"`
	Tickets struct {
		Total     int `json:"total"`
		Simulated int `json:"simulated"`
	} `json:"tickets"`
	Comments struct {
		Total         int     `json:"total"`
		AvgPerSession float64 `json:"avg_per_session"`
	} `json:"comments"`
	Revenue struct {
		TotalUSDC  float64          `json:"total_usdc"`
		TotalUnits string           `json:"total_units"`
		PerTheater []TheaterRevenue `json:"per_theater"`
	} `json:"revenue"`
	Engagement struct {
		MoodDistribution []MoodCount `json:"mood_distribution"`
	} `json:"engagement"`
	Growth struct {
		TicketsPerDay  []DayCount `json:"tickets_per_day"`
		CommentsPerDay []DayCount `json:"comments_per_day"`
		AgentsPerDay   []DayCount `json:"agents_per_day"`
	} `json:"growth"`
	Technical struct {
		ActiveSessions int `json:"active_sessions"`
	} `json:"technical"`
}

// Admin builds the dashboard numbers. Revenue counts verified on-chain
// amounts only; simulated tickets are reported separately.
func (s *Service) Admin(ctx context.Context) (*AdminStats, error) {
	now := s.now().UTC()
	out := &AdminStats{}

	var err error
	if out.Agents.Total, err = s.db.CountDistinctAgents(ctx); err != nil {
		return nil, err
	}
	if out.Agents.Top, err = s.db.TopCommenters(ctx, topCommenters); err != nil {
		return nil, err
	}
	if out.Comments.Total, err = s.db.CountComments(ctx); err != nil {
		return nil, err
	}
	sessions, err := s.db.CountCommentingSessions(ctx)
	if err != nil {
		return nil, err
	}
	if sessions > 0 {
		out.Comments.AvgPerSession = round(float64(out.Comments.Total)/float64(sessions), 2)
	}
	if out.Engagement.MoodDistribution, err = s.db.MoodDistribution(ctx); err != nil {
		return nil, err
	}
	if out.Technical.ActiveSessions, err = s.db.CountActiveSessions(ctx, now); err != nil {
		return nil, err
	}

	tickets, err := s.db.Tickets(ctx)
	if err != nil {
		return nil, err
	}
	theaters, err := s.db.Theaters(ctx)
	if err != nil {
		return nil, err
	}
	commentRows, err := s.db.CommentsByTheater(ctx)
	if err != nil {
		return nil, err
	}

	out.Tickets.Total = len(tickets)
	total, perTheater, simulated := s.revenue(tickets, theaters, commentRows)
	out.Tickets.Simulated = simulated
	out.Revenue.TotalUnits = total.String()
	out.Revenue.TotalUSDC = s.toUSDC(total)
	out.Revenue.PerTheater = perTheater

	since := startOfDay(now).AddDate(0, 0, -growthDays)
	commentTimes, err := s.db.CommentTimesSince(ctx, since)
	if err != nil {
		return nil, err
	}
	out.Growth.TicketsPerDay, out.Growth.AgentsPerDay = ticketGrowth(tickets, since)
	out.Growth.CommentsPerDay = bucketByDay(commentTimes, since)

	return out, nil
}

func (s *Service) revenue(tickets []models.Ticket, theaters []models.Theater, comments []TheaterComments) (*big.Int, []TheaterRevenue, int) {
	type acc struct {
		tickets int
		units   *big.Int
		agents  map[string]struct{}
	}
	byTheater := map[string]*acc{}
	total := new(big.Int)
	simulated := 0

	for _, t := range tickets {
		a := byTheater[t.TheaterID]
		if a == nil {
			a = &acc{units: new(big.Int), agents: map[string]struct{}{}}
			byTheater[t.TheaterID] = a
		}
		a.tickets++
		a.agents[t.AgentID] = struct{}{}

		if t.VerificationMethod == models.VerificationSimulated {
			simulated++
			continue
		}
		if units, ok := new(big.Int).SetString(t.AmountUnits, 10); ok {
			a.units.Add(a.units, units)
			total.Add(total, units)
		}
	}

	commentCounts := map[string]int{}
	for _, c := range comments {
		commentCounts[c.TheaterID] = c.CommentCount
	}

	out := make([]TheaterRevenue, 0, len(theaters))
	for _, th := range theaters {
		row := TheaterRevenue{ID: th.ID, Title: th.Title, RevenueUnits: "0", Comments: commentCounts[th.ID]}
		if a := byTheater[th.ID]; a != nil {
			row.Tickets = a.tickets
			row.UniqueAgents = len(a.agents)
			row.RevenueUnits = a.units.String()
			row.Revenue = s.toUSDC(a.units)
		}
		out = append(out, row)
	}
	return total, out, simulated
}

type TheaterActivity struct {
	models.Theater
	CommentCount int `json:"comment_count"`
	UniqueAgents int `json:"unique_agents"`
}

// Theaters lists every theater, active or not, with comment activity.
func (s *Service) Theaters(ctx context.Context) ([]TheaterActivity, error) {
	theaters, err := s.db.Theaters(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.CommentsByTheater(ctx)
	if err != nil {
		return nil, err
	}
	activity := map[string]TheaterComments{}
	for _, r := range rows {
		activity[r.TheaterID] = r
	}

	out := make([]TheaterActivity, 0, len(theaters))
	for _, th := range theaters {
		a := activity[th.ID]
		out = append(out, TheaterActivity{Theater: th, CommentCount: a.CommentCount, UniqueAgents: a.UniqueAgents})
	}
	return out, nil
}

func (s *Service) toUSDC(units *big.Int) float64 {
	if units == nil {
		return 0
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(s.decimals)), nil)
	f, _ := new(big.Rat).SetFrac(units, scale).Float64()
	return round(f, 6)
}

func ticketGrowth(tickets []models.Ticket, since time.Time) ([]DayCount, []DayCount) {
	var times []time.Time
	agents := map[string]map[string]struct{}{}
	for _, t := range tickets {
		if t.CreatedAt.Before(since) {
			continue
		}
		times = append(times, t.CreatedAt)
		day := t.CreatedAt.UTC().Format(time.DateOnly)
		if agents[day] == nil {
			agents[day] = map[string]struct{}{}
		}
		agents[day][t.AgentID] = struct{}{}
	}

	perDay := bucketByDay(times, since)
	agentDays := make([]DayCount, 0, len(agents))
	for day, set := range agents {
		agentDays = append(agentDays, DayCount{Date: day, Count: len(set)})
	}
	sort.Slice(agentDays, func(i, j int) bool { return agentDays[i].Date < agentDays[j].Date })
	return perDay, agentDays
}

// bucketByDay counts times per UTC calendar day, oldest first. Days with no
// activity are omitted.
func bucketByDay(times []time.Time, since time.Time) []DayCount {
	counts := map[string]int{}
	for _, t := range times {
		if t.Before(since) {
			continue
		}
		counts[t.UTC().Format(time.DateOnly)]++
	}
	out := make([]DayCount, 0, len(counts))
	for day, n := range counts {
		out = append(out, DayCount{Date: day, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func round(f float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(f*p) / p
}
