package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"ledgerbook/internal/core"
	"ledgerbook/internal/export"
	"ledgerbook/internal/ledger"
	"ledgerbook/internal/pipeline"
)

func registerCommands(r *CommandRegistry) {
	r.Register(&Command{
		Name:        "login",
		Description: "Sign in and store the session locally",
		Usage:       "ledgerbook login [-email <email>]",
		Examples:    []string{"ledgerbook login -email demo@example.com"},
		Public:      true,
		Run:         runLogin,
	})
	r.Register(&Command{
		Name:        "register",
		Description: "Create an account",
		Usage:       "ledgerbook register -name <name> -email <email>",
		Public:      true,
		Run:         runRegister,
	})
	r.Register(&Command{
		Name:        "logout",
		Description: "End the session and forget the stored tokens",
		Usage:       "ledgerbook logout",
		Public:      true,
		Run:         runLogout,
	})
	r.Register(&Command{
		Name:        "whoami",
		Description: "Show the signed-in user",
		Usage:       "ledgerbook whoami",
		Run:         runWhoami,
	})
	r.Register(&Command{
		Name:        "list",
		Description: "List ledger entries one page at a time",
		Usage:       "ledgerbook list [-page n] [-limit n] [-type income|expense] [-search text] [-from date] [-to date] [-sort date|amount|category] [-asc] [-local]",
		Examples: []string{
			"ledgerbook list -type expense -page 2",
			"ledgerbook list -local -sort category -search อาหาร",
		},
		Run: runList,
	})
	r.Register(&Command{
		Name:        "show",
		Description: "Show one ledger entry",
		Usage:       "ledgerbook show <id>",
		Run:         runShow,
	})
	r.Register(&Command{
		Name:        "add",
		Description: "Record an income or expense",
		Usage:       "ledgerbook add -type income|expense -amount <amount> -category <id|name> [-date YYYY-MM-DD] [-remark text]",
		Examples:    []string{"ledgerbook add -type expense -amount 120.50 -category อาหาร -remark lunch"},
		Run:         runAdd,
	})
	r.Register(&Command{
		Name:        "edit",
		Description: "Change fields of a ledger entry",
		Usage:       "ledgerbook edit [-type t] [-amount a] [-category c] [-date d] [-remark r] <id>",
		Examples:    []string{"ledgerbook edit -amount 99 42"},
		Run:         runEdit,
	})
	r.Register(&Command{
		Name:        "delete",
		Description: "Delete a ledger entry",
		Usage:       "ledgerbook delete [-page n] <id>",
		Run:         runDelete,
	})
	r.Register(&Command{
		Name:        "categories",
		Description: "List ledger categories",
		Usage:       "ledgerbook categories [-type income|expense]",
		Run:         runCategories,
	})
	r.Register(&Command{
		Name:        "dashboard",
		Description: "Show income, expense and balance for a date range",
		Usage:       "ledgerbook dashboard [-from date] [-to date]",
		Run:         runDashboard,
	})
	r.Register(&Command{
		Name:        "export",
		Description: "Export entries to CSV or Google Sheets",
		Usage:       "ledgerbook export [-format csv|sheets] [-o file] [-type t] [-from date] [-to date]",
		Examples: []string{
			"ledgerbook export -o may.csv -from 2025-05-01 -to 2025-05-31",
			"ledgerbook export -format sheets",
		},
		Run: runExport,
	})
}

func runLogin(ctx context.Context, a *app, args []string) error {
	fs := cmdFlags(a, "login")
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *email == "" {
		var err error
		if *email, err = a.prompt("Email: "); err != nil {
			return err
		}
	}
	password, err := a.password("Password: ")
	if err != nil {
		return err
	}

	if err := a.session.Login(ctx, strings.TrimSpace(*email), password); err != nil {
		return err
	}
	if u := a.session.CurrentUser(); u != nil {
		fmt.Fprintf(a.stdout, "Signed in as %s <%s>\n", u.Name, u.Email)
	} else {
		fmt.Fprintln(a.stdout, "Signed in")
	}
	return nil
}

func runRegister(ctx context.Context, a *app, args []string) error {
	fs := cmdFlags(a, "register")
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return err
	}

	password, err := a.password("Password: ")
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stderr, "Password strength: %s\n", core.StrengthLabel(core.PasswordStrength(password)))
	confirm, err := a.password("Confirm password: ")
	if err != nil {
		return err
	}

	u, err := a.session.Register(ctx, core.Registration{
		Name:     strings.TrimSpace(*name),
		Email:    strings.TrimSpace(*email),
		Password: password,
		Confirm:  confirm,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Registered %s <%s>, run `ledgerbook login` to sign in\n", u.Name, u.Email)
	return nil
}

func runLogout(ctx context.Context, a *app, args []string) error {
	if err := cmdFlags(a, "logout").Parse(args); err != nil {
		return err
	}
	a.session.Logout(ctx)
	fmt.Fprintln(a.stdout, "Signed out")
	return nil
}

func runWhoami(ctx context.Context, a *app, _ []string) error {
	u := a.session.CurrentUser()
	fmt.Fprintf(a.stdout, "%s <%s> (id %s)\n", u.Name, u.Email, u.ID)

	info, err := a.session.Inspect(ctx)
	if err != nil {
		return err
	}
	if info.JWT && !info.ExpiresAt.IsZero() {
		fmt.Fprintf(a.stdout, "access token expires %s\n", info.ExpiresAt.Local().Format(time.RFC1123))
	}
	return nil
}

func runList(ctx context.Context, a *app, args []string) error {
	fs := cmdFlags(a, "list")
	page := fs.Int("page", 1, "page number")
	limit := fs.Int("limit", a.cfg.PageSize, "entries per page")
	typ := fs.String("type", "all", "income, expense or all")
	search := fs.String("search", "", "match category or remark")
	from := fs.String("from", "", "start date (YYYY-MM-DD)")
	to := fs.String("to", "", "end date (YYYY-MM-DD)")
	sortBy := fs.String("sort", string(pipeline.SortDate), "date, amount or category")
	asc := fs.Bool("asc", false, "ascending order")
	local := fs.Bool("local", false, "fetch everything and filter, sort and page locally")
	if err := fs.Parse(args); err != nil {
		return err
	}

	f, err := parseFilter(*typ, *from, *to)
	if err != nil {
		return err
	}
	field, err := pipeline.ParseSortField(*sortBy)
	if err != nil {
		return err
	}
	dir := pipeline.Desc
	if *asc {
		dir = pipeline.Asc
	}

	if !*local {
		if field != pipeline.SortDate {
			return errors.New("-sort other than date needs -local")
		}
		f.Search = *search
		f.SortDirection = string(dir)
		p, err := a.ledgers.FetchLedgers(ctx, ledger.Query{Page: *page, Limit: *limit, Filter: f})
		if err != nil {
			return err
		}
		printLedgers(a.stdout, p.Data)
		fmt.Fprintf(a.stdout, "page %d of %d (%d entries)\n", p.Meta.Page, max(p.Meta.TotalPages, 1), p.Meta.Total)
		return nil
	}

	entries, err := a.allLedgers(ctx, core.LedgerFilter{Range: f.Range})
	if err != nil {
		return err
	}
	v := pipeline.NewView(*limit)
	v.SetType(f.Type)
	v.SetSearch(*search)
	v.SortField, v.SortDir = field, dir
	v.SetPage(*page)

	res := pipeline.Derive(entries, v)
	printLedgers(a.stdout, res.Items)
	if res.Meta.Total == 0 {
		fmt.Fprintln(a.stdout, "no entries")
		return nil
	}
	fmt.Fprintf(a.stdout, "showing %d-%d of %d, pages %s\n", res.From, res.To, res.Meta.Total, pageWindow(res.Pages, res.Meta.Page))
	return nil
}

func runShow(ctx context.Context, a *app, args []string) error {
	fs := cmdFlags(a, "show")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := core.ParseID(fs.Arg(0))
	if err != nil {
		return err
	}
	l, err := a.ledgers.GetLedger(ctx, id)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "id\t%s\n", l.ID)
	fmt.Fprintf(tw, "type\t%s\n", l.Type)
	fmt.Fprintf(tw, "amount\t%s\n", core.FormatBaht(l.Amount))
	fmt.Fprintf(tw, "category\t%s\n", l.CategoryName())
	fmt.Fprintf(tw, "date\t%s\n", l.When().Format(core.DateLayout))
	fmt.Fprintf(tw, "remark\t%s\n", l.Remark)
	return tw.Flush()
}

func runAdd(ctx context.Context, a *app, args []string) error {
	fs := cmdFlags(a, "add")
	typ := fs.String("type", "", "income or expense")
	amount := fs.String("amount", "", "amount in baht")
	category := fs.String("category", "", "category id or name")
	date := fs.String("date", time.Now().Format(core.DateLayout), "date (YYYY-MM-DD)")
	remark := fs.String("remark", "", "note, at most 200 characters")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *typ == "" || *amount == "" || *category == "" {
		return core.ErrMissingFields
	}

	in := core.LedgerInput{Remark: *remark}
	var err error
	if in.Type, err = core.ParseEntryType(*typ); err != nil {
		return err
	}
	if in.Amount, err = core.ParseAmount(*amount); err != nil {
		return err
	}
	if in.Date, err = core.ParseDate(*date); err != nil {
		return err
	}
	if in.CategoryID, err = a.resolveCategory(ctx, *category); err != nil {
		return err
	}

	l, err := a.ledgers.CreateLedger(ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Created %s: %s %s %s\n", l.ID, l.Type, core.FormatBaht(l.Amount), l.CategoryName())
	return nil
}

func runEdit(ctx context.Context, a *app, args []string) error {
	fs := cmdFlags(a, "edit")
	fs.String("type", "", "income or expense")
	fs.String("amount", "", "amount in baht")
	fs.String("category", "", "category id or name")
	fs.String("date", "", "date (YYYY-MM-DD)")
	fs.String("remark", "", "note")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := core.ParseID(fs.Arg(0))
	if err != nil {
		return err
	}

	var p core.LedgerPatch
	var perr error
	fs.Visit(func(fl *flag.Flag) {
		if perr != nil {
			return
		}
		v := fl.Value.String()
		switch fl.Name {
		case "type":
			t, err := core.ParseEntryType(v)
			p.Type, perr = &t, err
		case "amount":
			d, err := core.ParseAmount(v)
			p.Amount, perr = &d, err
		case "category":
			c, err := a.resolveCategory(ctx, v)
			p.CategoryID, perr = &c, err
		case "date":
			d, err := core.ParseDate(v)
			p.Date, perr = &d, err
		case "remark":
			p.Remark = &v
		}
	})
	if perr != nil {
		return perr
	}

	l, err := a.ledgers.UpdateLedger(ctx, id, p)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Updated %s: %s %s %s\n", l.ID, l.Type, core.FormatBaht(l.Amount), l.CategoryName())
	return nil
}

func runDelete(ctx context.Context, a *app, args []string) error {
	fs := cmdFlags(a, "delete")
	page := fs.Int("page", 1, "page being viewed")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := core.ParseID(fs.Arg(0))
	if err != nil {
		return err
	}

	if _, err := a.ledgers.FetchLedgers(ctx, ledger.Query{Page: *page}); err != nil {
		return err
	}
	if err := a.ledgers.DeleteLedger(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Deleted %s\n", id)
	if st := a.ledgers.Snapshot(); st.Query.Page != *page {
		fmt.Fprintf(a.stdout, "page %d is now empty, showing page %d\n", *page, st.Query.Page)
		printLedgers(a.stdout, st.Ledgers)
	}
	return nil
}

func runCategories(ctx context.Context, a *app, args []string) error {
	fs := cmdFlags(a, "categories")
	typ := fs.String("type", "all", "income, expense or all")
	if err := fs.Parse(args); err != nil {
		return err
	}
	t, err := core.ParseTypeFilter(*typ)
	if err != nil {
		return err
	}
	cats, err := a.ledgers.Categories(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE")
	for _, c := range cats {
		if t != "" && c.Type != "" && c.Type != t {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.ID, c.Name, c.Type)
	}
	return tw.Flush()
}

func runDashboard(ctx context.Context, a *app, args []string) error {
	fs := cmdFlags(a, "dashboard")
	from := fs.String("from", "", "start date (YYYY-MM-DD)")
	to := fs.String("to", "", "end date (YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	f, err := parseFilter("", *from, *to)
	if err != nil {
		return err
	}

	d, err := a.ledgers.FetchDashboard(ctx, f.Range)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "income\t%s\t\n", core.FormatBaht(d.Income))
	fmt.Fprintf(tw, "expense\t%s\t\n", core.FormatBaht(d.Expense))
	fmt.Fprintf(tw, "balance\t%s\t\n", core.FormatBaht(d.Balance))
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(d.Categories) == 0 {
		return nil
	}

	fmt.Fprintln(a.stdout)
	tw = tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tINCOME\tEXPENSE\tBALANCE")
	for _, c := range d.Categories {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Name, core.FormatBaht(c.Income), core.FormatBaht(c.Expense), core.FormatBaht(c.Balance))
	}
	return tw.Flush()
}

func runExport(ctx context.Context, a *app, args []string) error {
	fs := cmdFlags(a, "export")
	format := fs.String("format", "csv", "csv or sheets")
	out := fs.String("o", "", "CSV output file, stdout when empty")
	typ := fs.String("type", "all", "income, expense or all")
	from := fs.String("from", "", "start date (YYYY-MM-DD)")
	to := fs.String("to", "", "end date (YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	f, err := parseFilter(*typ, *from, *to)
	if err != nil {
		return err
	}

	var exp export.Exporter
	switch *format {
	case "csv":
		w := a.stdout
		if *out != "" {
			file, err := os.Create(*out)
			if err != nil {
				return err
			}
			defer file.Close()
			w = file
		}
		exp = export.NewCSVExporter(w)
	case "sheets":
		if !a.cfg.SheetsEnabled() {
			return errors.New("sheets export needs GOOGLE_SPREADSHEET_ID and service account credentials")
		}
		exp, err = export.NewSheetsExporter(ctx, export.SheetsConfig{
			SpreadsheetID:   a.cfg.GoogleSpreadsheetID,
			SheetName:       a.cfg.GoogleSheetName,
			CredentialsFile: a.cfg.GoogleServiceAccountFile,
			CredentialsJSON: a.cfg.GoogleServiceAccountJSON,
		}, a.logger)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown export format %q", *format)
	}

	f.SortDirection = string(pipeline.Asc)
	entries, err := a.allLedgers(ctx, f)
	if err != nil {
		return err
	}
	n, err := exp.Export(ctx, entries)
	if err != nil {
		return err
	}
	if *out != "" || *format == "sheets" {
		fmt.Fprintf(a.stdout, "Exported %d entries\n", n)
	}
	return nil
}

func cmdFlags(a *app, name string) *flag.FlagSet {
	c, _ := registry.Get(name)
	return c.NewFlagSet(a.stderr)
}

func parseFilter(typ, from, to string) (core.LedgerFilter, error) {
	var f core.LedgerFilter
	var err error
	if f.Type, err = core.ParseTypeFilter(typ); err != nil {
		return f, err
	}
	if f.Range.Start, err = core.ParseDate(from); err != nil {
		return f, err
	}
	if f.Range.End, err = core.ParseDate(to); err != nil {
		return f, err
	}
	return f, nil
}

func printLedgers(w io.Writer, entries []core.Ledger) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tTYPE\tCATEGORY\tAMOUNT\tREMARK")
	for _, l := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			l.ID, l.When().Format(core.DateLayout), l.Type, l.CategoryName(), core.FormatBaht(l.Signed()), l.Remark)
	}
	_ = tw.Flush()
}

func pageWindow(pages []int, current int) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		if p == current {
			parts[i] = fmt.Sprintf("[%d]", p)
		} else {
			parts[i] = fmt.Sprint(p)
		}
	}
	return strings.Join(parts, " ")
}
