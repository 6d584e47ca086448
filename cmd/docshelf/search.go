package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/docshelf/docshelf/internal/domain"
	domainerrors "github.com/docshelf/docshelf/internal/errors"
	"github.com/docshelf/docshelf/internal/search"
	"github.com/docshelf/docshelf/internal/service"
	"github.com/docshelf/docshelf/internal/validation"
)

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search documents visible to you",
		ArgsUsage: "[query words]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "tags", Usage: "comma separated; any tag matches"},
			&cli.StringFlag{Name: "from", Usage: "created on or after date (YYYY-MM-DD)"},
			&cli.StringFlag{Name: "to", Usage: "created on or before date (YYYY-MM-DD)"},
			&cli.StringFlag{Name: "group"},
			&cli.StringFlag{Name: "visibility", Usage: "all, public, group or private"},
			&cli.StringFlag{Name: "owner", Usage: "owner name or username"},
			&cli.StringFlag{Name: "sort-by", Value: string(domain.SortByCreatedAt), Usage: "created_at, updated_at, title or average_rating"},
			&cli.StringFlag{Name: "sort-order", Value: string(domain.SortDesc), Usage: "asc or desc"},
			&cli.IntFlag{Name: "page", Value: 1},
			&cli.BoolFlag{Name: "all-pages", Usage: "walk every page of results"},
		},
		Action: authed(func(ctx context.Context, c *cli.Command, a *app) error {
			patches, err := filterPatches(c)
			if err != nil {
				return err
			}

			v, err := invoke[*validation.Validator](a)
			if err != nil {
				return err
			}
			if err := v.Validate(search.DefaultFilter().Apply(patches...)); err != nil {
				return err
			}

			return runSearch(ctx, a, patches, c.Int("page"), c.Bool("all-pages"))
		}),
	}
}

func filterPatches(c *cli.Command) ([]search.Patch, error) {
	patches := []search.Patch{
		search.WithQuery(strings.TrimSpace(strings.Join(c.Args().Slice(), " "))),
		search.WithTags(c.String("tags")),
		search.WithGroup(c.String("group")),
		search.WithVisibility(domain.Visibility(c.String("visibility"))),
		search.WithOwner(c.String("owner")),
		search.WithSort(domain.SortField(c.String("sort-by")), domain.SortOrder(c.String("sort-order"))),
	}

	for _, d := range []struct {
		flag  string
		patch func(*time.Time) search.Patch
	}{
		{"from", search.WithDateFrom},
		{"to", search.WithDateTo},
	} {
		raw := c.String(d.flag)
		if raw == "" {
			continue
		}
		t, err := time.ParseInLocation(time.DateOnly, raw, time.Local)
		if err != nil {
			return nil, usageError(c, "--%s must be YYYY-MM-DD, got %q", d.flag, raw)
		}
		patches = append(patches, d.patch(&t))
	}
	return patches, nil
}

type searchPage struct {
	Page       int               `json:"page"`
	TotalPages int               `json:"total_pages"`
	Total      int               `json:"total"`
	Items      []domain.Document `json:"items"`
}

// runSearch drives a controller the way the search screen does: apply the
// filter, submit, then page forward while asked to.
func runSearch(ctx context.Context, a *app, patches []search.Patch, page int, allPages bool) error {
	ctrl := search.NewController(a.client, a.log, search.WithoutTagSuggestions())
	stop := startController(ctx, ctrl)
	defer stop()

	updates, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()

	ctrl.SetFilter(patches...)
	if page > 1 {
		ctrl.SetPage(page)
	} else {
		ctrl.TriggerSearch()
	}

	var pages []searchPage
	for {
		st, err := awaitSettled(ctx, ctrl, updates)
		if err != nil {
			return err
		}
		pages = append(pages, searchPage{
			Page:       st.Filter.Page,
			TotalPages: st.TotalPages(),
			Total:      st.TotalCount,
			Items:      st.Items,
		})
		if !a.json {
			printSearchPage(a, st)
		}
		if !allPages || !st.CanNext() {
			break
		}
		ctrl.NextPage()
	}

	if a.json {
		return printJSON(a.out, pages)
	}
	return nil
}

// startController runs ctrl until the returned stop func is called.
func startController(ctx context.Context, ctrl *search.Controller) (stop func()) {
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = ctrl.Run(runCtx)
	}()
	return func() {
		cancel()
		<-done
	}
}

// awaitSettled waits for the newest requested cycle to finish.
func awaitSettled(ctx context.Context, ctrl *search.Controller, updates <-chan search.State) (search.State, error) {
	if err := ctrl.Sync(ctx); err != nil {
		return search.State{}, err
	}

	st := ctrl.State()
	for st.Loading() {
		select {
		case s, ok := <-updates:
			if !ok {
				return search.State{}, domainerrors.Internal("search stopped")
			}
			st = s
		case <-ctx.Done():
			return search.State{}, ctx.Err()
		}
	}

	switch st.Phase {
	case search.PhaseIdle:
		return st, domainerrors.Validation("Enter a search query or set a filter.")
	case search.PhaseFailed:
		return st, errors.New(st.Error)
	}
	return st, nil
}

func printSearchPage(a *app, st search.State) {
	printSection(a.out, fmt.Sprintf("Page %d of %d · %s documents",
		st.Filter.Page, max(st.TotalPages(), 1), humanize.Comma(int64(st.TotalCount))))
	printTable(a.out, documentHeaders(), documentRows(st.Items, time.Now()))
}

func tagsCommand() *cli.Command {
	return &cli.Command{
		Name:  "tags",
		Usage: "List the most used tags",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Value: 20},
		},
		Action: authed(func(ctx context.Context, c *cli.Command, a *app) error {
			ctrl := search.NewController(a.client, a.log, search.WithoutTagSuggestions())
			stop := startController(ctx, ctrl)
			defer stop()

			ctrl.LoadTagSuggestions(ctx)
			if err := ctrl.Sync(ctx); err != nil {
				return err
			}
			tags := ctrl.State().TopTags(c.Int("limit"))

			if a.json {
				return printJSON(a.out, tags)
			}
			rows := make([][]string, 0, len(tags))
			for _, t := range tags {
				rows = append(rows, []string{t.Tag, humanize.Comma(int64(t.Count))})
			}
			printTable(a.out, []string{"TAG", "DOCUMENTS"}, rows)
			return nil
		}),
	}
}

func homeCommand() *cli.Command {
	return &cli.Command{
		Name:  "home",
		Usage: "Show latest, popular and your own documents",
		Action: authed(func(ctx context.Context, _ *cli.Command, a *app) error {
			svc, err := invoke[*service.DashboardService](a)
			if err != nil {
				return err
			}
			d, err := svc.Load(ctx)
			if err != nil {
				return err
			}
			if a.json {
				return printJSON(a.out, d)
			}

			now := time.Now()
			for _, section := range []struct {
				title string
				docs  []domain.Document
			}{
				{"Latest documents", d.Latest},
				{"Popular documents", d.Popular},
				{"My documents", d.Mine},
			} {
				printSection(a.out, section.title)
				printTable(a.out, documentHeaders(), documentRows(section.docs, now))
				_, _ = fmt.Fprintln(a.out)
			}
			return nil
		}),
	}
}
