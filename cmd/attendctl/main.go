// Command attendctl is a terminal client for the attendance API.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"attendance-backend/internal/client"
)

const defaultServer = "http://localhost:5000"

var errPasswordMismatch = errors.New("passwords do not match")

type app struct {
	api   *client.Client
	store client.SessionStore
	in    *bufio.Reader
	out   io.Writer
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("attendctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	serverURL := fs.String("server", "", "API base URL (or ATTENDANCE_API env)")
	sessionPath := fs.String("session", "", "session file (default ~/.attendance/session.json)")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: attendctl [flags] <register|login|logout|me|checkin|checkout|history|profile|passwd> [args]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	if *serverURL == "" {
		*serverURL = os.Getenv("ATTENDANCE_API")
	}
	if *serverURL == "" {
		*serverURL = defaultServer
	}
	if *sessionPath == "" {
		p, err := client.DefaultSessionPath()
		if err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return 1
		}
		*sessionPath = p
	}

	a := &app{
		api:   client.New(*serverURL, nil),
		store: client.FileStore{Path: *sessionPath},
		in:    bufio.NewReader(stdin),
		out:   stdout,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := a.dispatch(ctx, fs.Arg(0), fs.Args()[1:]); err != nil {
		switch {
		case errors.Is(err, client.ErrNotAuthenticated):
			fmt.Fprintln(stderr, "error: not logged in, run `attendctl login` first")
		case errors.Is(err, errPasswordMismatch):
			fmt.Fprintln(stderr, "Passwords do not match!")
		default:
			fmt.Fprintln(stderr, "error:", err)
		}
		return 1
	}
	return 0
}

func (a *app) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "register":
		return a.register(ctx, args)
	case "login":
		return a.login(ctx, args)
	case "logout":
		if err := a.store.Clear(); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Logged out")
		return nil
	case "me":
		return a.me(ctx)
	case "checkin":
		return a.mark(ctx, a.api.CheckIn)
	case "checkout":
		return a.mark(ctx, a.api.CheckOut)
	case "history":
		return a.history(ctx)
	case "profile":
		return a.profile(ctx, args)
	case "passwd":
		return a.passwd(ctx, args)
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	name := fs.String("name", "", "full name")
	email := fs.String("email", "", "email")
	password := fs.String("password", "", "password (prompted when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *password == "" {
		*password = a.prompt("Password: ")
	}

	msg, err := a.api.Register(ctx, *name, *email, *password)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, msg)
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "email")
	password := fs.String("password", "", "password (prompted when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *password == "" {
		*password = a.prompt("Password: ")
	}

	s, err := a.api.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	if err := a.store.Save(s); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Logged in as %s (%s)\n", s.UserName, s.Role)
	return nil
}

func (a *app) me(ctx context.Context) error {
	s, err := a.session()
	if err != nil {
		return err
	}
	p, err := a.api.Me(ctx, s)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Employee ID\t%d\n", p.EmployeeID)
	fmt.Fprintf(tw, "Name\t%s\n", p.Name)
	fmt.Fprintf(tw, "Email\t%s\n", p.Email)
	fmt.Fprintf(tw, "Role\t%s\n", p.Role)
	fmt.Fprintf(tw, "Department\t%s\n", orDash(p.Department))
	fmt.Fprintf(tw, "Joined\t%s\n", p.CreatedAt.Format("2006-01-02"))
	fmt.Fprintf(tw, "Today\t%s\n", p.TodayStatus)
	fmt.Fprintf(tw, "Present this month\t%d\n", p.Present)
	fmt.Fprintf(tw, "Incomplete this month\t%d\n", p.Incomplete)
	return tw.Flush()
}

func (a *app) mark(ctx context.Context, fn func(context.Context, *client.Session) (string, *client.Attendance, error)) error {
	s, err := a.session()
	if err != nil {
		return err
	}
	msg, _, err := fn(ctx, s)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, msg)
	return nil
}

func (a *app) history(ctx context.Context) error {
	s, err := a.session()
	if err != nil {
		return err
	}
	rows, err := a.api.History(ctx, s)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintln(a.out, "No attendance records found")
		return nil
	}
	return writeHistory(a.out, rows)
}

func writeHistory(w io.Writer, rows []client.HistoryRow) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tCHECK-IN\tCHECK-OUT\tSTATUS\tHOURS")
	for _, r := range rows {
		hours := "-"
		if r.TotalHours != nil {
			hours = fmt.Sprintf("%.2f", *r.TotalHours)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.Date, noneToDash(r.CheckInTime), noneToDash(r.CheckOutTime), r.Status, hours)
	}
	return tw.Flush()
}

func (a *app) profile(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("profile", flag.ContinueOnError)
	var name, department optString
	fs.Var(&name, "name", "new name")
	fs.Var(&department, "department", "new department")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := a.session()
	if err != nil {
		return err
	}
	msg, err := a.api.UpdateProfile(ctx, s, name.ptr(), department.ptr())
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, msg)
	return nil
}

func (a *app) passwd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("passwd", flag.ContinueOnError)
	current := fs.String("current", "", "current password (prompted when empty)")
	next := fs.String("new", "", "new password (prompted when empty)")
	confirm := fs.String("confirm", "", "repeat the new password (prompted when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := a.session()
	if err != nil {
		return err
	}
	if *current == "" {
		*current = a.prompt("Current password: ")
	}
	if *next == "" {
		*next = a.prompt("New password: ")
	}
	if *confirm == "" {
		*confirm = a.prompt("Confirm new password: ")
	}
	if *next != *confirm {
		return errPasswordMismatch
	}

	msg, err := a.api.ChangePassword(ctx, s, *current, *next)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, msg)
	return nil
}

// session loads the saved session, failing fast when nobody is logged in.
func (a *app) session() (*client.Session, error) {
	s, err := a.store.Load()
	if err != nil {
		return nil, err
	}
	if !s.Authenticated() {
		return nil, client.ErrNotAuthenticated
	}
	return s, nil
}

func (a *app) prompt(label string) string {
	fmt.Fprint(a.out, label)
	line, _ := a.in.ReadString('\n')
	return strings.TrimRight(line, "\r\n")
}

// optString records whether the flag was given at all.
type optString struct {
	val string
	set bool
}

func (o *optString) String() string { return o.val }

func (o *optString) Set(v string) error {
	o.val, o.set = v, true
	return nil
}

func (o *optString) ptr() *string {
	if !o.set {
		return nil
	}
	return &o.val
}

func noneToDash(s string) string {
	if s == "" || s == "none" {
		return "-"
	}
	return s
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
