package academy

import (
	"sort"
	"strings"
	"time"

	"github.com/Proton-105/sawti-academy/internal/domain"
)

type Stats struct {
	TotalRevenue   int64 `json:"totalRevenue"`
	PendingCount   int   `json:"pendingPayments"`
	ActiveStudents int   `json:"activeStudents"`
	NewThisMonth   int   `json:"newThisMonth"`
	TotalStudents  int   `json:"totalStudents"`
}

// Stats summarizes payments and derived students at the academy clock.
func (a *Academy) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock()
	var s Stats
	for _, p := range a.payments {
		switch p.Status {
		case domain.PaymentConfirmed:
			s.TotalRevenue += p.Amount
		case domain.PaymentPending:
			s.PendingCount++
		}
	}

	students := deriveStudents(a.payments)
	s.TotalStudents = len(students)
	for _, st := range students {
		if st.SubscriptionEndDate != nil && st.SubscriptionEndDate.After(now) {
			s.ActiveStudents++
		}
		if sameMonth(st.JoinedAt, now) {
			s.NewThisMonth++
		}
	}

	return s
}

// Students lists everyone who ever submitted a payment, one entry per phone,
// filtered by a name or phone substring.
func (a *Academy) Students(query string) []domain.User {
	a.mu.Lock()
	defer a.mu.Unlock()

	query = strings.TrimSpace(query)
	students := deriveStudents(a.payments)

	out := make([]domain.User, 0, len(students))
	for _, st := range students {
		if query == "" || strings.Contains(st.Name, query) || strings.Contains(st.Phone, query) {
			out = append(out, st)
		}
	}
	return out
}

// deriveStudents builds student records from payment snapshots in first-seen
// order. A student's subscription end is replayed from their confirmed
// payments: each one extends from the later of its date and the running end.
func deriveStudents(payments []domain.PaymentRequest) []domain.User {
	byDate := make([]domain.PaymentRequest, len(payments))
	copy(byDate, payments)
	sort.SliceStable(byDate, func(i, j int) bool {
		return byDate[i].Date.Before(byDate[j].Date)
	})

	index := make(map[string]int)
	var students []domain.User

	for _, p := range payments {
		if _, ok := index[p.UserPhone]; ok {
			continue
		}
		index[p.UserPhone] = len(students)
		students = append(students, domain.User{
			ID:       p.UserID,
			Name:     p.UserName,
			Phone:    p.UserPhone,
			Role:     domain.RoleStudent,
			JoinedAt: p.Date,
		})
	}

	for _, p := range byDate {
		st := &students[index[p.UserPhone]]
		if p.Date.Before(st.JoinedAt) {
			st.JoinedAt = p.Date
		}
		if p.Status != domain.PaymentConfirmed {
			continue
		}

		start := p.Date
		if st.SubscriptionEndDate != nil && st.SubscriptionEndDate.After(start) {
			start = *st.SubscriptionEndDate
		}
		end := start.AddDate(0, planOf(p).DurationMonths, 0)
		st.SubscriptionEndDate = &end
	}

	return students
}

func sameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}
