// Command circ is a CLI client for the library circulation API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/and161185/library-circulation/internal/convert"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

type globals struct {
	addr     string
	caPath   string
	insecure bool
	out      io.Writer
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		var ae *apiError
		if errors.As(err, &ae) {
			fmt.Fprintf(os.Stderr, "api error: code=%s msg=%s\n", ae.Code, ae.Message)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	g := &globals{out: out}
	root := &cobra.Command{
		Use:           "circ",
		Short:         "Library circulation client",
		Version:       fmt.Sprintf("%s (%s)", version, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.addr, "addr", "http://localhost:8080", "server base URL")
	root.PersistentFlags().StringVar(&g.caPath, "cacert", "", "CA cert (PEM)")
	root.PersistentFlags().BoolVar(&g.insecure, "insecure", false, "skip cert verify (dev)")

	root.AddCommand(
		registerCmd(g), loginCmd(g), refreshCmd(g), logoutCmd(g), meCmd(g),
		booksCmd(g), loansCmd(g), reservationsCmd(g),
	)
	return root
}

// run builds a client and a timeout context for one command.
func (g *globals) run(cmd *cobra.Command, fn func(ctx context.Context, c *client) (any, error)) error {
	c, err := newClient(g.addr, g.caPath, g.insecure)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	v, err := fn(ctx, c)
	if err != nil {
		return err
	}
	if v != nil {
		return printJSON(g.out, v)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		if t, err = time.Parse(time.DateOnly, s); err != nil {
			return nil, fmt.Errorf("invalid time %q (want RFC3339 or YYYY-MM-DD)", s)
		}
	}
	return &t, nil
}

// ---- auth ----

func registerCmd(g *globals) *cobra.Command {
	var req convert.RegisterRequest
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := ensurePassword(&req.Password); err != nil {
				return err
			}
			return g.run(cmd, func(ctx context.Context, c *client) (any, error) {
				var u convert.User
				err := c.call(ctx, http.MethodPost, "/auth/register", "", req, &u)
				return u, err
			})
		},
	}
	cmd.Flags().StringVarP(&req.Email, "email", "e", "", "email")
	cmd.Flags().StringVarP(&req.Password, "password", "p", "", "password (prompted when omitted)")
	cmd.Flags().StringVar(&req.Name, "name", "", "display name")
	cmd.Flags().StringVar(&req.Phone, "phone", "", "phone")
	cmd.Flags().StringVar(&req.Address, "address", "", "postal address")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func loginCmd(g *globals) *cobra.Command {
	var req convert.LoginRequest
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := ensurePassword(&req.Password); err != nil {
				return err
			}
			return g.run(cmd, func(ctx context.Context, c *client) (any, error) {
				var tok convert.Tokens
				if err := c.call(ctx, http.MethodPost, "/auth/login", "", req, &tok); err != nil {
					return nil, err
				}
				if err := saveTokens(tok); err != nil {
					return nil, err
				}
				return map[string]any{"ok": true, "expires_at": tok.ExpiresAt}, nil
			})
		},
	}
	cmd.Flags().StringVarP(&req.Email, "email", "e", "", "email")
	cmd.Flags().StringVarP(&req.Password, "password", "p", "", "password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func refreshCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Rotate the stored refresh token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.run(cmd, func(ctx context.Context, c *client) (any, error) {
				tf, err := loadTokens()
				if err != nil {
					return nil, err
				}
				tok, err := c.refresh(ctx, tf.RefreshToken)
				if err != nil {
					return nil, err
				}
				return map[string]any{"ok": true, "expires_at": tok.ExpiresAt}, nil
			})
		},
	}
}

func logoutCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the refresh token and forget the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.run(cmd, func(ctx context.Context, c *client) (any, error) {
				err := c.authed(ctx, http.MethodPost, "/auth/revoke", nil, nil)
				if err != nil && !errors.Is(err, errLoginRequired) {
					return nil, err
				}
				return nil, clearTokens()
			})
		},
	}
}

func meCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the current account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.run(cmd, func(ctx context.Context, c *client) (any, error) {
				var u convert.User
				err := c.authed(ctx, http.MethodGet, "/users/me", nil, &u)
				return u, err
			})
		},
	}
}

// ---- catalog ----

func booksCmd(g *globals) *cobra.Command {
	books := &cobra.Command{Use: "books", Short: "Browse the catalog"}

	var (
		available string
		title     string
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List books",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.run(cmd, func(ctx context.Context, c *client) (any, error) {
				q := url.Values{}
				if available != "" {
					q.Set("available", available)
				}
				if title != "" {
					q.Set("title", title)
				}
				path := "/books"
				if len(q) > 0 {
					path += "?" + q.Encode()
				}
				var out []convert.Book
				err := c.call(ctx, http.MethodGet, path, "", nil, &out)
				return out, err
			})
		},
	}
	list.Flags().StringVar(&available, "available", "", "filter by availability (true|false)")
	list.Flags().StringVar(&title, "title", "", "title substring")

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return g.run(cmd, func(ctx context.Context, c *client) (any, error) {
				var b convert.Book
				err := c.call(ctx, http.MethodGet, fmt.Sprintf("/books/%d", id), "", nil, &b)
				return b, err
			})
		},
	}

	books.AddCommand(list, get)
	return books
}

// ---- loans ----

func loansCmd(g *globals) *cobra.Command {
	loans := &cobra.Command{Use: "loans", Short: "Manage loans"}

	var (
		userEmail string
		bookID    int64
		start     string
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Check a book out to a user (staff)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := parseTime(start)
			if err != nil {
				return err
			}
			req := convert.CreateLoanRequest{UserEmail: userEmail, BookID: bookID, StartTime: st}
			return g.run(cmd, func(ctx context.Context, c *client) (any, error) {
				var l convert.Loan
				err := c.authed(ctx, http.MethodPost, "/loans", req, &l)
				return l, err
			})
		},
	}
	create.Flags().StringVar(&userEmail, "user", "", "borrower email")
	create.Flags().Int64Var(&bookID, "book", 0, "book id")
	create.Flags().StringVar(&start, "start", "", "start time (default now)")
	_ = create.MarkFlagRequired("user")
	_ = create.MarkFlagRequired("book")

	mine := &cobra.Command{
		Use:   "mine",
		Short: "List my loans",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.run(cmd, func(ctx context.Context, c *client) (any, error) {
				var me convert.User
				if err := c.authed(ctx, http.MethodGet, "/users/me", nil, &me); err != nil {
					return nil, err
				}
				var out []convert.Loan
				err := c.authed(ctx, http.MethodGet, "/users/"+me.ID+"/loans", nil, &out)
				return out, err
			})
		},
	}

	var returnAt string
	ret := &cobra.Command{
		Use:   "return <id>",
		Short: "Return a loaned book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			at, err := parseTime(returnAt)
			if err != nil {
				return err
			}
			return g.run(cmd, func(ctx context.Context, c *client) (any, error) {
				var l convert.Loan
				err := c.authed(ctx, http.MethodPost, fmt.Sprintf("/loans/%d/return", id), convert.ReturnRequest{At: at}, &l)
				return l, err
			})
		},
	}
	ret.Flags().StringVar(&returnAt, "at", "", "return time (default now)")

	loans.AddCommand(create, mine, ret,
		loanAction(g, "extend", "Extend a loan by one period", http.MethodPost, "/extend"),
		loanAction(g, "get", "Show one loan", http.MethodGet, ""),
		loanAction(g, "delete", "Delete a loan", http.MethodDelete, ""),
	)
	return loans
}

func loanAction(g *globals, name, short, method, suffix string) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return g.run(cmd, func(ctx context.Context, c *client) (any, error) {
				path := fmt.Sprintf("/loans/%d%s", id, suffix)
				if method == http.MethodDelete {
					return nil, c.authed(ctx, method, path, nil, nil)
				}
				var l convert.Loan
				err := c.authed(ctx, method, path, nil, &l)
				return l, err
			})
		},
	}
}

// ---- reservations ----

func reservationsCmd(g *globals) *cobra.Command {
	res := &cobra.Command{Use: "reservations", Short: "Manage reservations"}

	var (
		userEmail  string
		bookID     int64
		start, end string
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Reserve a book for a future window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := parseTime(start)
			if err != nil {
				return err
			}
			en, err := parseTime(end)
			if err != nil {
				return err
			}
			if st == nil || en == nil {
				return errors.New("--start and --end are required")
			}
			req := convert.CreateReservationRequest{UserEmail: userEmail, BookID: bookID, ExpectedStart: *st, ExpectedEnd: *en}
			return g.run(cmd, func(ctx context.Context, c *client) (any, error) {
				var r convert.Reservation
				err := c.authed(ctx, http.MethodPost, "/reservations", req, &r)
				return r, err
			})
		},
	}
	create.Flags().StringVar(&userEmail, "user", "", "reserve on behalf of (staff)")
	create.Flags().Int64Var(&bookID, "book", 0, "book id")
	create.Flags().StringVar(&start, "start", "", "expected start")
	create.Flags().StringVar(&end, "end", "", "expected end")
	_ = create.MarkFlagRequired("book")

	mine := &cobra.Command{
		Use:   "mine",
		Short: "List my reservations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.run(cmd, func(ctx context.Context, c *client) (any, error) {
				var me convert.User
				if err := c.authed(ctx, http.MethodGet, "/users/me", nil, &me); err != nil {
					return nil, err
				}
				var out []convert.Reservation
				err := c.authed(ctx, http.MethodGet, "/users/"+me.ID+"/reservations", nil, &out)
				return out, err
			})
		},
	}

	res.AddCommand(create, mine,
		reservationAction(g, "accept", "Accept a reservation (staff)", http.MethodPost, "/accept"),
		reservationAction(g, "deny", "Deny and remove a reservation (staff)", http.MethodPost, "/deny"),
		reservationAction(g, "get", "Show one reservation", http.MethodGet, ""),
		reservationAction(g, "delete", "Delete a reservation", http.MethodDelete, ""),
	)
	return res
}

func reservationAction(g *globals, name, short, method, suffix string) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return g.run(cmd, func(ctx context.Context, c *client) (any, error) {
				path := fmt.Sprintf("/reservations/%d%s", id, suffix)
				if method == http.MethodDelete || suffix == "/deny" {
					return nil, c.authed(ctx, method, path, nil, nil)
				}
				var r convert.Reservation
				err := c.authed(ctx, method, path, nil, &r)
				return r, err
			})
		},
	}
}
