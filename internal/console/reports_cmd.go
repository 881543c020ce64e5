package console

import (
	"context"
	"fmt"
	"strconv"

	"github.com/noah-isme/rbac-console/internal/models"
	"github.com/noah-isme/rbac-console/internal/permission"
	"github.com/noah-isme/rbac-console/internal/session"
	"github.com/noah-isme/rbac-console/pkg/export"
	"github.com/noah-isme/rbac-console/pkg/storage"
)

func (c *Console) reports(ctx context.Context, s *session.Store, args []string) error {
	fs := c.flagSet("reports")
	format := fs.String("export", "", "also export the report as csv, pdf or xlsx")
	out := fs.String("out", "", "output file (default report.<format>)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := c.requireCapabilities(s, permission.CanAccessReports, permission.CanViewAllReports); err != nil {
		return err
	}

	var exporter export.Exporter
	if *format != "" {
		var err error
		if exporter, err = export.ForFormat(*format); err != nil {
			return fmt.Errorf("%w: %v", ErrUsage, err)
		}
	}

	summary, err := c.gateway.ReportSummary(ctx, s.Token())
	if err != nil {
		return err
	}

	fmt.Fprintln(c.out, c.style.title.Render("User report"))
	c.field("Total users", strconv.Itoa(summary.TotalUsers))
	for _, role := range models.Roles {
		c.field(string(role), strconv.Itoa(summary.ByRole[role]))
	}
	c.field("Active", fmt.Sprintf("%d (%.1f%%)", summary.Active, summary.ActivePercentage))
	c.field("Inactive", strconv.Itoa(summary.Inactive))
	c.field("Students", fmt.Sprintf("%.1f%%", summary.StudentPercentage))

	if exporter == nil {
		return nil
	}
	path, err := c.writeExport(exporter, export.SummaryDataset(*summary), *out, "report")
	if err != nil {
		return err
	}
	c.success("Exported report to %s", path)
	return nil
}

// writeExport renders data and saves it as out, or as base plus the format's
// extension when out is empty. Relative names land in the export directory.
func (c *Console) writeExport(exporter export.Exporter, data export.Dataset, out, base string) (string, error) {
	body, err := exporter.Render(data)
	if err != nil {
		return "", err
	}
	if out == "" {
		out = base + exporter.Extension()
	}
	files, err := storage.NewLocalStorage(c.cfg.ExportDir)
	if err != nil {
		return "", err
	}
	return files.Save(out, body)
}
