package console

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/noah-isme/rbac-console/internal/directory"
	"github.com/noah-isme/rbac-console/internal/dto"
	"github.com/noah-isme/rbac-console/internal/models"
	"github.com/noah-isme/rbac-console/internal/permission"
	"github.com/noah-isme/rbac-console/internal/session"
	"github.com/noah-isme/rbac-console/pkg/export"
)

const exportPageSize = 50

func (c *Console) users(ctx context.Context, s *session.Store, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: users list|create|update|delete|export", ErrUsage)
	}
	dir := directory.NewStore(c.gateway, s, c.logger, directory.Config{
		PageSize:             c.cfg.PageSize,
		RefreshAfterMutation: c.cfg.RefreshAfterChange,
	})

	switch args[0] {
	case "list":
		return c.listUsers(ctx, s, dir, args[1:])
	case "create":
		return c.createUser(ctx, s, dir, args[1:])
	case "update":
		return c.updateUser(ctx, s, dir, args[1:])
	case "delete":
		return c.deleteUser(ctx, s, dir, args[1:])
	case "export":
		return c.exportUsers(ctx, s, dir, args[1:])
	default:
		return fmt.Errorf("%w: unknown users command %q", ErrUsage, args[0])
	}
}

func filterFlags(fs *pflag.FlagSet) (search, role *string) {
	search = fs.String("search", "", "match name or email")
	role = fs.String("role", "", "filter by role ("+joinRoles()+")")
	return search, role
}

func applyFilters(dir *directory.Store, search, role string) error {
	r, ok := models.ParseRole(role)
	if !ok {
		return fmt.Errorf("%w: unknown role %q", ErrUsage, role)
	}
	dir.SetSearchTerm(search)
	dir.SetRoleFilter(r)
	return nil
}

func (c *Console) listUsers(ctx context.Context, s *session.Store, dir *directory.Store, args []string) error {
	fs := c.flagSet("users list")
	search, role := filterFlags(fs)
	page := fs.Int("page", 1, "page number")
	limit := fs.Int("limit", 0, "page size (5, 10, 20 or 50)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := c.requireCapabilities(s, permission.CanAccessUsers); err != nil {
		return err
	}

	if err := applyFilters(dir, *search, *role); err != nil {
		return err
	}
	if fs.Changed("limit") {
		if _, err := dir.SetPageSize(*limit); err != nil {
			return fmt.Errorf("%w: %v", ErrUsage, err)
		}
	}
	dir.SetPage(*page)

	snap, err := dir.Fetch(ctx)
	if err != nil {
		return &failure{message: snap.Error, err: err}
	}
	if len(snap.List) == 0 {
		fmt.Fprintln(c.out, c.style.dim.Render("No users found"))
		return nil
	}

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tROLE\tSTATUS")
	for _, u := range snap.List {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, u.Role, u.Status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(c.out, c.style.dim.Render(fmt.Sprintf("Page %d of %d, %d users", snap.Query.Page, snap.TotalPages, snap.TotalItems)))
	return nil
}

func (c *Console) createUser(ctx context.Context, s *session.Store, dir *directory.Store, args []string) error {
	fs := c.flagSet("users create")
	name := fs.String("name", "", "full name")
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "initial password (prompted when omitted)")
	role := fs.String("role", string(models.RoleStudent), "role ("+joinRoles()+")")
	status := fs.String("status", string(models.StatusActive), "active or inactive")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := c.requireCapabilities(s, permission.CanAccessUsers, permission.CanCreateUsers); err != nil {
		return err
	}
	if *name == "" || *email == "" {
		return fmt.Errorf("%w: users create --name NAME --email EMAIL", ErrUsage)
	}
	if *password == "" {
		var err error
		if *password, err = c.prompt.password("Password: "); err != nil {
			return err
		}
	}

	user, err := dir.Create(ctx, dto.CreateUserRequest{
		Name:     *name,
		Email:    *email,
		Password: *password,
		Role:     models.Role(*role),
		Status:   models.UserStatus(*status),
	})
	if err != nil {
		return &failure{message: dir.Snapshot().Error, err: err}
	}
	c.success("Created user %s (%s, %s)", user.ID, user.Email, user.Role)
	return nil
}

func (c *Console) updateUser(ctx context.Context, s *session.Store, dir *directory.Store, args []string) error {
	fs := c.flagSet("users update")
	name := fs.String("name", "", "full name")
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "new password")
	role := fs.String("role", "", "role ("+joinRoles()+")")
	status := fs.String("status", "", "active or inactive")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: users update <id> [--name] [--email] [--password] [--role] [--status]", ErrUsage)
	}
	if err := c.requireCapabilities(s, permission.CanAccessUsers, permission.CanEditUsers); err != nil {
		return err
	}

	var req dto.UpdateUserRequest
	if fs.Changed("name") {
		req.Name = name
	}
	if fs.Changed("email") {
		req.Email = email
	}
	if fs.Changed("password") {
		req.Password = password
	}
	if fs.Changed("role") {
		r := models.Role(*role)
		req.Role = &r
	}
	if fs.Changed("status") {
		st := models.UserStatus(*status)
		req.Status = &st
	}
	if req.Empty() {
		return fmt.Errorf("%w: nothing to update", ErrUsage)
	}

	user, err := dir.Update(ctx, fs.Arg(0), req)
	if err != nil {
		return &failure{message: dir.Snapshot().Error, err: err}
	}
	c.success("Updated user %s (%s, %s, %s)", user.ID, user.Email, user.Role, user.Status)
	return nil
}

func (c *Console) deleteUser(ctx context.Context, s *session.Store, dir *directory.Store, args []string) error {
	fs := c.flagSet("users delete")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: users delete <id>", ErrUsage)
	}
	if err := c.requireCapabilities(s, permission.CanAccessUsers, permission.CanDeleteUsers); err != nil {
		return err
	}

	id, err := dir.Delete(ctx, fs.Arg(0))
	if err != nil {
		return &failure{message: dir.Snapshot().Error, err: err}
	}
	c.success("Deleted user %s", id)
	return nil
}

// exportUsers walks every page matching the filters and writes them to one file.
func (c *Console) exportUsers(ctx context.Context, s *session.Store, dir *directory.Store, args []string) error {
	fs := c.flagSet("users export")
	search, role := filterFlags(fs)
	format := fs.String("format", string(export.FormatCSV), "csv, pdf or xlsx")
	out := fs.String("out", "", "output file (default users.<format>)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := c.requireCapabilities(s, permission.CanAccessUsers); err != nil {
		return err
	}
	exporter, err := export.ForFormat(*format)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}

	if err := applyFilters(dir, *search, *role); err != nil {
		return err
	}
	if _, err := dir.SetPageSize(exportPageSize); err != nil {
		return err
	}

	var users []models.User
	for page := 1; ; page++ {
		dir.SetPage(page)
		snap, err := dir.Fetch(ctx)
		if err != nil {
			return &failure{message: snap.Error, err: err}
		}
		users = append(users, snap.List...)
		if page >= snap.TotalPages {
			break
		}
	}

	path, err := c.writeExport(exporter, export.UsersDataset(users), *out, "users")
	if err != nil {
		return err
	}
	c.success("Exported %d users to %s", len(users), path)
	return nil
}
