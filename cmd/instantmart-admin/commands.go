package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/instantmart/admin-console/internal/bootstrap"
	"github.com/instantmart/admin-console/internal/domain/api"
	domainauth "github.com/instantmart/admin-console/internal/domain/auth"
	"github.com/instantmart/admin-console/internal/domain/notification"
	"github.com/instantmart/admin-console/internal/service"
)

type loginOptions struct {
	Email         string
	Password      string
	PasswordStdin bool
}

type requestOptions struct {
	Method   string
	Data     string
	Endpoint string
}

type notificationsOptions struct {
	Page int
	JSON bool
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseLoginFlags(args []string) (loginOptions, error) {
	var opts loginOptions
	fs := newFlagSet("login")
	fs.StringVar(&opts.Email, "email", "", "operator email")
	fs.StringVar(&opts.Password, "password", "", "operator password (prefer -password-stdin)")
	fs.BoolVar(&opts.PasswordStdin, "password-stdin", false, "read the password from stdin")
	if err := fs.Parse(args); err != nil {
		return opts, fmt.Errorf("%w: %w", errUsage, err)
	}
	opts.Email = strings.TrimSpace(opts.Email)
	if opts.Email == "" {
		return opts, usagef("-email is required")
	}
	if opts.Password != "" && opts.PasswordStdin {
		return opts, usagef("-password and -password-stdin are mutually exclusive")
	}
	return opts, nil
}

func runLogin(cmdCtx *commandContext, args []string) error {
	opts, err := parseLoginFlags(args)
	if err != nil {
		return err
	}
	password := opts.Password
	if password == "" {
		line, readErr := bufio.NewReader(cmdCtx.In).ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return fmt.Errorf("read password: %w", readErr)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	return cmdCtx.withConsole(func(c *bootstrap.Console) error {
		sess, loginErr := c.Session.Login(cmdCtx.Ctx, opts.Email, password)
		if loginErr != nil {
			return loginErr
		}
		return writef(cmdCtx.Out, "Signed in as %s <%s> (%s)\n", sess.Name, sess.Email, sess.Role)
	})
}

func runLogout(cmdCtx *commandContext, _ []string) error {
	return cmdCtx.withConsole(func(c *bootstrap.Console) error {
		if err := c.Session.Logout(cmdCtx.Ctx); err != nil {
			return err
		}
		return writef(cmdCtx.Out, "Signed out.\n")
	})
}

func runWhoAmI(cmdCtx *commandContext, args []string) error {
	fs := newFlagSet("whoami")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	return cmdCtx.withConsole(func(c *bootstrap.Console) error {
		sess, ok := c.Session.Current()
		if !ok {
			return domainauth.ErrNoSession
		}
		perms := domainauth.PermissionsFor(sess.Role)
		if *asJSON {
			enc := json.NewEncoder(cmdCtx.Out)
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				User        domainauth.Identity    `json:"user"`
				Permissions domainauth.Permissions `json:"permissions"`
			}{sess.Identity, perms})
		}

		tw := tabwriter.NewWriter(cmdCtx.Out, 0, 2, 2, ' ', 0)
		rows := [][2]string{
			{"User", fmt.Sprintf("%s <%s>", sess.Name, sess.Email)},
			{"User ID", strconv.Itoa(sess.UserID)},
			{"Role", fmt.Sprintf("%s (%d)", sess.Role, perms.RoleID)},
			{"Manage users", yesNo(perms.CanManageUsers)},
			{"Manage roles", yesNo(perms.CanManageRoles)},
			{"Manage products", yesNo(perms.CanManageProducts)},
			{"Manage orders", yesNo(perms.CanManageOrders)},
			{"Manage payments", yesNo(perms.CanManagePayments)},
			{"View dashboard", yesNo(perms.CanViewDashboard)},
		}
		for _, r := range rows {
			if err := writef(tw, "%s:\t%s\n", r[0], r[1]); err != nil {
				return err
			}
		}
		return tw.Flush()
	})
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func parseRequestFlags(args []string) (requestOptions, error) {
	var opts requestOptions
	fs := newFlagSet("request")
	fs.StringVar(&opts.Method, "X", http.MethodGet, "HTTP method")
	fs.StringVar(&opts.Data, "d", "", "JSON request body")
	if err := fs.Parse(args); err != nil {
		return opts, fmt.Errorf("%w: %w", errUsage, err)
	}
	if fs.NArg() != 1 {
		return opts, usagef("expected exactly one endpoint, e.g. /products?page=1")
	}
	opts.Method = strings.ToUpper(opts.Method)
	opts.Endpoint = fs.Arg(0)
	if !strings.HasPrefix(opts.Endpoint, "/") {
		opts.Endpoint = "/" + opts.Endpoint
	}
	if opts.Data != "" && !json.Valid([]byte(opts.Data)) {
		return opts, usagef("-d must be valid JSON")
	}
	return opts, nil
}

func runRequest(cmdCtx *commandContext, args []string) error {
	opts, err := parseRequestFlags(args)
	if err != nil {
		return err
	}
	return cmdCtx.withConsole(func(c *bootstrap.Console) error {
		req := api.RequestOptions{Method: opts.Method}
		if opts.Data != "" {
			req.Body = json.RawMessage(opts.Data)
		}
		env := c.Gateway.Send(cmdCtx.Ctx, opts.Endpoint, req)

		enc := json.NewEncoder(cmdCtx.Out)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(env); encErr != nil {
			return encErr
		}
		return env.Error()
	})
}

func parseNotificationsFlags(args []string) (notificationsOptions, error) {
	opts := notificationsOptions{Page: 1}
	fs := newFlagSet("notifications")
	fs.IntVar(&opts.Page, "page", 1, "page number, starting at 1")
	fs.BoolVar(&opts.JSON, "json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return opts, fmt.Errorf("%w: %w", errUsage, err)
	}
	if opts.Page < 1 {
		return opts, usagef("-page must be at least 1")
	}
	return opts, nil
}

func runNotifications(cmdCtx *commandContext, args []string) error {
	opts, err := parseNotificationsFlags(args)
	if err != nil {
		return err
	}
	return cmdCtx.withConsole(func(c *bootstrap.Console) error {
		snap, fetchErr := c.Notifications.Fetch(cmdCtx.Ctx, opts.Page, false)
		if fetchErr != nil {
			return fetchErr
		}
		if opts.JSON {
			enc := json.NewEncoder(cmdCtx.Out)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		}
		return printNotifications(cmdCtx.Out, snap)
	})
}

func printNotifications(w io.Writer, snap service.NotificationSnapshot) error {
	if len(snap.Items) == 0 {
		return writef(w, "No notifications.\n")
	}
	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	if err := writef(tw, "ID\tREAD\tCREATED\tTITLE\n"); err != nil {
		return err
	}
	for _, n := range snap.Items {
		if err := writef(tw, "%d\t%s\t%s\t%s\n", n.ID, yesNo(n.IsRead), formatTime(n.CreatedAt), n.Title); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if snap.HasNextPage {
		return writef(w, "\nMore on page %d.\n", snap.Page+1)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func runUnread(cmdCtx *commandContext, _ []string) error {
	return cmdCtx.withConsole(func(c *bootstrap.Console) error {
		if err := c.Notifications.RefreshUnreadCount(cmdCtx.Ctx); err != nil {
			return err
		}
		return writef(cmdCtx.Out, "%d\n", c.Notifications.Snapshot().UnreadCount)
	})
}

func parseIDs(args []string) ([]int64, error) {
	if len(args) == 0 {
		return nil, usagef("expected at least one notification id")
	}
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil || id <= 0 {
			return nil, usagef("invalid notification id %q", a)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func runMarkRead(cmdCtx *commandContext, args []string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	return cmdCtx.withConsole(func(c *bootstrap.Console) error {
		if markErr := c.Notifications.MarkAsRead(cmdCtx.Ctx, ids); markErr != nil {
			return markErr
		}
		return writef(cmdCtx.Out, "Marked %d notification(s) as read.\n", len(ids))
	})
}

func runDeleteNotification(cmdCtx *commandContext, args []string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	if len(ids) != 1 {
		return usagef("expected exactly one notification id")
	}
	return cmdCtx.withConsole(func(c *bootstrap.Console) error {
		if delErr := c.Notifications.Delete(cmdCtx.Ctx, ids[0]); delErr != nil {
			return delErr
		}
		return writef(cmdCtx.Out, "Deleted notification %d.\n", ids[0])
	})
}

func runWatch(cmdCtx *commandContext, _ []string) error {
	if !cmdCtx.Config.Realtime.Enabled() {
		return errors.New("REALTIME_URL is not configured")
	}
	alerts := &alertPrinter{w: cmdCtx.Out}
	console, err := cmdCtx.openConsole(alerts.print)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := console.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("console close failed", "error", closeErr)
		}
	}()

	sess, ok := console.Session.Current()
	if !ok {
		return domainauth.ErrNoSession
	}
	if startErr := console.Notifications.Start(cmdCtx.Ctx, sess.UserID); startErr != nil {
		return startErr
	}
	if werr := writef(cmdCtx.Err, "Watching notifications for %s (%d unread). Press Ctrl+C to stop.\n",
		sess.Name, console.Notifications.Snapshot().UnreadCount); werr != nil {
		return werr
	}
	<-cmdCtx.Ctx.Done()
	return nil
}

type alertPrinter struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *alertPrinter) print(n notification.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = writef(p.w, "[%s] #%d %s: %s\n", formatTime(n.CreatedAt), n.ID, n.Title, n.Message)
}
