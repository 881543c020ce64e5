package export

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/rbac-console/internal/models"
)

// Dataset defines tabular export content.
type Dataset struct {
	Title   string
	Headers []string
	Rows    []map[string]string
}

// Records returns the rows ordered by Headers.
func (d Dataset) Records() [][]string {
	records := make([][]string, 0, len(d.Rows))
	for _, row := range d.Rows {
		record := make([]string, len(d.Headers))
		for i, header := range d.Headers {
			record[i] = row[header]
		}
		records = append(records, record)
	}
	return records
}

var userHeaders = []string{"ID", "Name", "Email", "Role", "Status", "Last Login", "Created At"}

// UsersDataset flattens a page of users.
func UsersDataset(users []models.User) Dataset {
	data := Dataset{Title: "Users", Headers: userHeaders, Rows: make([]map[string]string, 0, len(users))}
	for _, u := range users {
		lastLogin := ""
		if u.LastLogin != nil {
			lastLogin = u.LastLogin.UTC().Format(time.RFC3339)
		}
		created := ""
		if !u.CreatedAt.IsZero() {
			created = u.CreatedAt.UTC().Format(time.RFC3339)
		}
		data.Rows = append(data.Rows, map[string]string{
			"ID":         u.ID,
			"Name":       u.Name,
			"Email":      u.Email,
			"Role":       string(u.Role),
			"Status":     string(u.Status),
			"Last Login": lastLogin,
			"Created At": created,
		})
	}
	return data
}

// SummaryDataset lays the report summary out as metric/value pairs.
func SummaryDataset(summary models.ReportSummary) Dataset {
	data := Dataset{Title: "User Report", Headers: []string{"Metric", "Value"}}
	add := func(metric, value string) {
		data.Rows = append(data.Rows, map[string]string{"Metric": metric, "Value": value})
	}
	add("Total users", strconv.Itoa(summary.TotalUsers))
	for _, role := range models.Roles {
		add(titleCase(string(role))+"s", strconv.Itoa(summary.ByRole[role]))
	}
	add("Active", strconv.Itoa(summary.Active))
	add("Inactive", strconv.Itoa(summary.Inactive))
	add("Active %", fmt.Sprintf("%.1f", summary.ActivePercentage))
	add("Student %", fmt.Sprintf("%.1f", summary.StudentPercentage))
	if !summary.GeneratedAt.IsZero() {
		add("Generated at", summary.GeneratedAt.UTC().Format(time.RFC3339))
	}
	return data
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
