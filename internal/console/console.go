// Package console is the command line front end of the RBAC admin console. Every
// invocation resumes the persisted session first, then runs one command against the
// API gateway.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/noah-isme/rbac-console/internal/directory"
	"github.com/noah-isme/rbac-console/internal/models"
	"github.com/noah-isme/rbac-console/internal/permission"
	"github.com/noah-isme/rbac-console/internal/session"
	"github.com/noah-isme/rbac-console/pkg/config"
)

var (
	// ErrNotSignedIn is returned by commands that need a session when there is none.
	ErrNotSignedIn = errors.New("not signed in, run login first")
	// ErrAccessDenied is returned when the signed-in role lacks a capability.
	ErrAccessDenied = errors.New("access denied")
	// ErrUsage is returned for unknown commands and bad arguments.
	ErrUsage = errors.New("usage error")
)

// Gateway is everything the console calls on the API gateway.
type Gateway interface {
	session.Gateway
	directory.Gateway
	ReportSummary(ctx context.Context, token string) (*models.ReportSummary, error)
}

// Options wires a Console.
type Options struct {
	Gateway Gateway
	Tokens  session.TokenStore
	Config  config.ConsoleConfig
	Logger  *zap.Logger
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
}

// Console runs one command per Run call.
type Console struct {
	gateway Gateway
	tokens  session.TokenStore
	cfg     config.ConsoleConfig
	logger  *zap.Logger
	out     io.Writer
	errOut  io.Writer
	prompt  *prompter
	style   styles
}

type command struct {
	name    string
	usage   string
	summary string
	run     func(c *Console, ctx context.Context, s *session.Store, args []string) error
}

var commands = []command{
	{"login", "login [--email E] [--password P]", "sign in and persist the session", (*Console).login},
	{"logout", "logout", "sign out and forget the session", (*Console).logout},
	{"whoami", "whoami", "show the signed-in user and capabilities", (*Console).whoami},
	{"can", "can <capability>", "check one capability of the signed-in user", (*Console).can},
	{"users", "users list|create|update|delete|export ...", "manage the user directory", (*Console).users},
	{"reports", "reports [--export csv|pdf|xlsx --out FILE]", "show the directory report", (*Console).reports},
}

// New constructs a Console. Nil writers default to the process streams.
func New(opts Options) *Console {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Tokens == nil {
		opts.Tokens = session.NewMemoryTokenStore("")
	}
	return &Console{
		gateway: opts.Gateway,
		tokens:  opts.Tokens,
		cfg:     opts.Config,
		logger:  opts.Logger,
		out:     opts.Stdout,
		errOut:  opts.Stderr,
		prompt:  newPrompter(opts.Stdin, opts.Stderr),
		style:   newStyles(opts.Stdout),
	}
}

// Run resumes the persisted session and dispatches args[0].
func (c *Console) Run(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		c.usage(c.out)
		if len(args) == 0 {
			return ErrUsage
		}
		return nil
	}

	var cmd *command
	for i := range commands {
		if commands[i].name == args[0] {
			cmd = &commands[i]
			break
		}
	}
	if cmd == nil {
		c.usage(c.errOut)
		return fmt.Errorf("%w: unknown command %q", ErrUsage, args[0])
	}

	store := session.NewStore(ctx, c.gateway, c.tokens, c.logger)
	store.Resume(ctx)
	return cmd.run(c, ctx, store, args[1:])
}

func (c *Console) usage(w io.Writer) {
	fmt.Fprintln(w, c.style.title.Render("rbac-console"))
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-48s %s\n", cmd.usage, c.style.dim.Render(cmd.summary))
	}
}

// requireSession fails unless the session is authenticated.
func (c *Console) requireSession(s *session.Store) (session.Snapshot, error) {
	snap := s.Snapshot()
	if !snap.Authenticated() {
		return snap, ErrNotSignedIn
	}
	return snap, nil
}

// requireCapabilities fails with ErrAccessDenied naming the first missing capability.
func (c *Console) requireCapabilities(s *session.Store, caps ...permission.Capability) error {
	if _, err := c.requireSession(s); err != nil {
		return err
	}
	for _, capability := range caps {
		if !s.Can(capability) {
			return fmt.Errorf("%w: %s required", ErrAccessDenied, capability)
		}
	}
	return nil
}

func (c *Console) flagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(c.errOut)
	fs.SortFlags = false
	return fs
}

func parseFlags(fs *pflag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	return nil
}

func (c *Console) success(format string, args ...interface{}) {
	fmt.Fprintln(c.out, c.style.success.Render(fmt.Sprintf(format, args...)))
}

func (c *Console) field(label, value string) {
	fmt.Fprintln(c.out, c.style.label.Render(label)+c.style.value.Render(value))
}

// ReportError prints err the way the console reports failures.
func (c *Console) ReportError(err error) {
	if err == nil || errors.Is(err, pflag.ErrHelp) {
		return
	}
	fmt.Fprintln(c.errOut, c.style.failure.Render("error: ")+err.Error())
}

func capabilityNames() []string {
	names := make([]string, 0, len(permission.All()))
	for _, capability := range permission.All() {
		names = append(names, string(capability))
	}
	sort.Strings(names)
	return names
}

func joinRoles() string {
	roles := make([]string, len(models.Roles))
	for i, r := range models.Roles {
		roles[i] = string(r)
	}
	return strings.Join(roles, "|")
}
