package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/lmskit/canvas-go/pkg/canvas"
)

func (a *app) courses(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: canvasctl courses <list|get> [flags]")
	}
	switch args[0] {
	case "list":
		fs := flag.NewFlagSet("courses list", flag.ContinueOnError)
		account := fs.Int64("account", 0, "list an account's courses instead of the calling user's")
		state := fs.String("state", "", "filter by enrollment state (active, invited_or_pending, completed)")
		search := fs.String("search", "", "filter by partial name or code (account listings only)")
		include := fs.String("include", "", "comma-separated embeds, e.g. term,total_students")
		page, perPage := pageFlags(fs)
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		params := &canvas.ListCoursesParams{
			EnrollmentState: *state,
			SearchTerm:      *search,
			Include:         splitList(*include),
			ListOptions:     canvas.ListOptions{Page: *page, PerPage: *perPage},
		}
		var (
			courses []canvas.Course
			err     error
		)
		if *account > 0 {
			courses, err = a.client.Courses.ListForAccount(ctx, *account, params)
		} else {
			courses, err = a.client.Courses.List(ctx, params)
		}
		if err != nil {
			return err
		}
		return printJSON(courses)

	case "get":
		fs := flag.NewFlagSet("courses get", flag.ContinueOnError)
		include := fs.String("include", "", "comma-separated embeds, e.g. term,syllabus_body")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		id, err := parseID(fs.Arg(0), "course")
		if err != nil {
			return err
		}
		course, err := a.client.Courses.Get(ctx, id, splitList(*include)...)
		if err != nil {
			return err
		}
		return printJSON(course)
	}
	return fmt.Errorf("unknown courses subcommand %q", args[0])
}

func (a *app) users(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New(`usage: canvasctl users <get|profile> <id|self>`)
	}
	who := "self"
	if len(args) > 1 {
		who = args[1]
	}
	switch args[0] {
	case "get":
		if who == "self" {
			user, err := a.client.Users.Self(ctx)
			if err != nil {
				return err
			}
			return printJSON(user)
		}
		id, err := parseID(who, "user")
		if err != nil {
			return err
		}
		user, err := a.client.Users.Get(ctx, id)
		if err != nil {
			return err
		}
		return printJSON(user)

	case "profile":
		if who == "self" {
			profile, err := a.client.Users.SelfProfile(ctx)
			if err != nil {
				return err
			}
			return printJSON(profile)
		}
		id, err := parseID(who, "user")
		if err != nil {
			return err
		}
		profile, err := a.client.Users.Profile(ctx, id)
		if err != nil {
			return err
		}
		return printJSON(profile)
	}
	return fmt.Errorf("unknown users subcommand %q", args[0])
}

func (a *app) assignments(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] != "list" {
		return errors.New("usage: canvasctl assignments list -course <id> [flags]")
	}
	fs := flag.NewFlagSet("assignments list", flag.ContinueOnError)
	course := fs.Int64("course", 0, "course id (required)")
	bucket := fs.String("bucket", "", "schedule bucket: past, overdue, undated, ungraded, unsubmitted, upcoming, future")
	include := fs.String("include", "", "comma-separated embeds, e.g. submission,all_dates")
	orderBy := fs.String("order-by", "", "sort by position, name, or due_at")
	page, perPage := pageFlags(fs)
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if *course <= 0 {
		return errors.New("assignments list: -course is required")
	}
	assignments, err := a.client.Assignments.List(ctx, *course, &canvas.ListAssignmentsParams{
		Bucket:      *bucket,
		Include:     splitList(*include),
		OrderBy:     *orderBy,
		ListOptions: canvas.ListOptions{Page: *page, PerPage: *perPage},
	})
	if err != nil {
		return err
	}
	return printJSON(assignments)
}

func (a *app) accounts(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] != "list" {
		return errors.New("usage: canvasctl accounts list [flags]")
	}
	fs := flag.NewFlagSet("accounts list", flag.ContinueOnError)
	include := fs.String("include", "", "comma-separated embeds, e.g. lti_guid")
	page, perPage := pageFlags(fs)
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	accounts, err := a.client.Accounts.List(ctx, &canvas.ListAccountsParams{
		Include:     splitList(*include),
		ListOptions: canvas.ListOptions{Page: *page, PerPage: *perPage},
	})
	if err != nil {
		return err
	}
	return printJSON(accounts)
}

func (a *app) cacheCmd(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: canvasctl cache <stats|clear> [flags]")
	}
	if a.cache == nil {
		return errors.New("cache backend is off")
	}
	switch args[0] {
	case "stats":
		stats, err := a.cache.Stats(ctx)
		if err != nil {
			return err
		}
		return printJSON(stats)

	case "clear":
		fs := flag.NewFlagSet("cache clear", flag.ContinueOnError)
		pattern := fs.String("pattern", "", "remove only keys matching this glob, e.g. 'canvas:*:GET:*courses*'")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if *pattern != "" {
			removed, err := a.cache.DeleteByPattern(ctx, *pattern)
			if err != nil {
				return err
			}
			return printJSON(map[string]int{"removed": removed})
		}
		if err := a.cache.Clear(ctx); err != nil {
			return err
		}
		return printJSON(map[string]bool{"cleared": true})
	}
	return fmt.Errorf("unknown cache subcommand %q", args[0])
}

func (a *app) bucket(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: canvasctl bucket <show|reset> [key]")
	}
	switch args[0] {
	case "show":
		// A cheap request first, so the snapshot reflects the quota the
		// server reported rather than an empty local ledger.
		if _, err := a.client.Users.Self(ctx); err != nil {
			return err
		}
		return printJSON(a.buckets.Snapshot())

	case "reset":
		if len(args) > 1 {
			a.buckets.Reset(args[1])
			return printJSON(map[string]string{"reset": args[1]})
		}
		a.buckets.ResetAll()
		return printJSON(map[string]string{"reset": "all"})
	}
	return fmt.Errorf("unknown bucket subcommand %q", args[0])
}

func pageFlags(fs *flag.FlagSet) (page, perPage *int) {
	page = fs.Int("page", 0, "page number")
	perPage = fs.Int("per-page", 0, "results per page")
	return page, perPage
}

func parseID(arg, what string) (int64, error) {
	if arg == "" {
		return 0, fmt.Errorf("%s id is required", what)
	}
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, arg)
	}
	return id, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
