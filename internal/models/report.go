package models

import "time"

// RoleStatusCount is one row of the role/status breakdown.
type RoleStatusCount struct {
	Role   Role       `db:"role" json:"role"`
	Status UserStatus `db:"status" json:"status"`
	Count  int        `db:"count" json:"count"`
}

// ReportSummary aggregates the user directory for the reports view.
type ReportSummary struct {
	TotalUsers        int          `json:"total_users"`
	ByRole            map[Role]int `json:"by_role"`
	Active            int          `json:"active"`
	Inactive          int          `json:"inactive"`
	ActivePercentage  float64      `json:"active_percentage"`
	StudentPercentage float64      `json:"student_percentage"`
	GeneratedAt       time.Time    `json:"generated_at"`
}

// NewReportSummary folds role/status counts into a summary.
func NewReportSummary(rows []RoleStatusCount, now time.Time) ReportSummary {
	summary := ReportSummary{ByRole: make(map[Role]int, len(Roles)), GeneratedAt: now}
	for _, r := range Roles {
		summary.ByRole[r] = 0
	}
	for _, row := range rows {
		summary.TotalUsers += row.Count
		summary.ByRole[row.Role] += row.Count
		if row.Status == StatusInactive {
			summary.Inactive += row.Count
		} else {
			summary.Active += row.Count
		}
	}
	if summary.TotalUsers > 0 {
		summary.ActivePercentage = percentage(summary.Active, summary.TotalUsers)
		summary.StudentPercentage = percentage(summary.ByRole[RoleStudent], summary.TotalUsers)
	}
	return summary
}

func percentage(part, total int) float64 {
	// one decimal place
	return float64(int(float64(part)*1000/float64(total)+0.5)) / 10
}
