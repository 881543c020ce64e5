package console

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/noah-isme/rbac-console/internal/permission"
	"github.com/noah-isme/rbac-console/internal/session"
)

func (c *Console) login(ctx context.Context, s *session.Store, args []string) error {
	fs := c.flagSet("login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password (prompted when omitted)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	var err error
	if strings.TrimSpace(*email) == "" {
		if *email, err = c.prompt.line("Email: "); err != nil {
			return err
		}
	}
	if *password == "" {
		if *password, err = c.prompt.password("Password: "); err != nil {
			return err
		}
	}

	snap, err := s.Login(ctx, *email, *password)
	if err != nil {
		if errors.Is(err, session.ErrSuperseded) {
			return err
		}
		return &failure{message: snap.Error, err: err}
	}
	c.success("Signed in as %s (%s)", snap.User.Name, snap.User.Role)
	return nil
}

// failure prints as the message a store recorded and unwraps to the gateway error.
type failure struct {
	message string
	err     error
}

func (e *failure) Error() string {
	if e.message == "" {
		return e.err.Error()
	}
	return e.message
}

func (e *failure) Unwrap() error { return e.err }

func (c *Console) logout(ctx context.Context, s *session.Store, args []string) error {
	wasSignedIn := s.Snapshot().Authenticated()
	s.Logout(ctx)
	if wasSignedIn {
		c.success("Signed out")
	} else {
		fmt.Fprintln(c.out, c.style.dim.Render("No active session"))
	}
	return nil
}

func (c *Console) whoami(ctx context.Context, s *session.Store, args []string) error {
	snap, err := c.requireSession(s)
	if err != nil {
		return err
	}
	u := snap.User
	fmt.Fprintln(c.out, c.style.title.Render(u.Name))
	c.field("Email", u.Email)
	c.field("Role", string(u.Role))
	c.field("Status", string(u.Status))
	if u.LastLogin != nil {
		c.field("Last login", u.LastLogin.Local().Format("2006-01-02 15:04"))
	}
	fmt.Fprintln(c.out)
	for _, capability := range permission.All() {
		mark := c.style.denied.Render("no")
		if s.Can(capability) {
			mark = c.style.granted.Render("yes")
		}
		fmt.Fprintf(c.out, "  %-20s %s\n", capability, mark)
	}
	return nil
}

// can prints whether the signed-in user holds a capability and fails with
// ErrAccessDenied when it does not.
func (c *Console) can(ctx context.Context, s *session.Store, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: can <capability>, one of %s", ErrUsage, strings.Join(capabilityNames(), ", "))
	}
	capability, ok := permission.ParseCapability(args[0])
	if !ok {
		return fmt.Errorf("%w: unknown capability %q", ErrUsage, args[0])
	}
	if _, err := c.requireSession(s); err != nil {
		return err
	}
	if !s.Can(capability) {
		fmt.Fprintf(c.out, "%s %s\n", capability, c.style.denied.Render("denied"))
		return fmt.Errorf("%w: %s", ErrAccessDenied, capability)
	}
	fmt.Fprintf(c.out, "%s %s\n", capability, c.style.granted.Render("granted"))
	return nil
}
