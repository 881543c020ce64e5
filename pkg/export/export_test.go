package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/rbac-console/internal/models"
)

func sampleUsers() []models.User {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	return []models.User{
		{ID: "u-1", Name: "Principal User", Email: "principal@school.com", Role: models.RolePrincipal, Status: models.StatusActive, CreatedAt: created},
		{ID: "u-2", Name: "Student, Jr.", Email: "student@school.com", Role: models.RoleStudent, Status: models.StatusInactive, CreatedAt: created, LastLogin: &created},
	}
}

func TestUsersDataset(t *testing.T) {
	data := UsersDataset(sampleUsers())

	assert.Equal(t, "Users", data.Title)
	require.Len(t, data.Rows, 2)
	assert.Equal(t, "principal", data.Rows[0]["Role"])
	assert.Empty(t, data.Rows[0]["Last Login"])
	assert.Equal(t, "2024-01-02T03:04:05Z", data.Rows[1]["Last Login"])
	assert.Equal(t, "inactive", data.Rows[1]["Status"])
}

func TestSummaryDataset(t *testing.T) {
	summary := models.NewReportSummary([]models.RoleStatusCount{
		{Role: models.RolePrincipal, Status: models.StatusActive, Count: 1},
		{Role: models.RoleStudent, Status: models.StatusActive, Count: 2},
		{Role: models.RoleStudent, Status: models.StatusInactive, Count: 1},
	}, time.Time{})

	data := SummaryDataset(summary)
	values := map[string]string{}
	for _, row := range data.Rows {
		values[row["Metric"]] = row["Value"]
	}

	assert.Equal(t, "4", values["Total users"])
	assert.Equal(t, "3", values["Students"])
	assert.Equal(t, "0", values["Teachers"])
	assert.Equal(t, "75.0", values["Active %"])
	assert.NotContains(t, values, "Generated at")
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(UsersDataset(sampleUsers()))
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, userHeaders, records[0])
	assert.Equal(t, "Student, Jr.", records[2][1])
}

func TestExportersRequireHeaders(t *testing.T) {
	for _, format := range Formats {
		exporter, err := ForFormat(string(format))
		require.NoError(t, err)
		_, err = exporter.Render(Dataset{})
		assert.Error(t, err, string(format))
	}
}

func TestPDFExporterRender(t *testing.T) {
	users := sampleUsers()
	for i := 0; i < 60; i++ {
		users = append(users, users[0])
	}
	out, err := NewPDFExporter().Render(UsersDataset(users))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestXLSXExporterRender(t *testing.T) {
	out, err := NewXLSXExporter().Render(UsersDataset(sampleUsers()))
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Users"}, f.GetSheetList())
	rows, err := f.GetRows("Users")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Email", rows[0][2])
	assert.Equal(t, "student@school.com", rows[2][2])
}

func TestForFormat(t *testing.T) {
	exporter, err := ForFormat(" XLSX ")
	require.NoError(t, err)
	assert.Equal(t, ".xlsx", exporter.Extension())

	exporter, err = ForFormat("csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", exporter.ContentType())

	_, err = ForFormat("docx")
	assert.Error(t, err)
}
