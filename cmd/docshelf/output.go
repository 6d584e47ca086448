package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/docshelf/docshelf/internal/api"
	"github.com/docshelf/docshelf/internal/domain"
	domainerrors "github.com/docshelf/docshelf/internal/errors"
)

var (
	headerStyle  = color.New(color.Bold)
	sectionStyle = color.New(color.Bold, color.FgCyan)
	faintStyle   = color.New(color.Faint)
	okStyle      = color.New(color.FgGreen)
	errStyle     = color.New(color.FgRed, color.Bold)
)

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func printKV(w io.Writer, rows [][2]string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, row := range rows {
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", faintStyle.Sprint(row[0]), row[1])
	}
	_ = tw.Flush()
}

func printTable(w io.Writer, headers []string, rows [][]string) {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, faintStyle.Sprint("no results"))
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, headerStyle.Sprint(strings.Join(headers, "\t")))
	for _, row := range rows {
		_, _ = fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	_ = tw.Flush()
}

func printSection(w io.Writer, title string) {
	_, _ = fmt.Fprintln(w, sectionStyle.Sprint(title))
}

func printOK(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintln(w, okStyle.Sprintf(format, args...))
}

// printError writes err for a person: the message, then field errors for
// rejected input or a hint that depends on the error code.
func printError(w io.Writer, err error) {
	_, _ = fmt.Fprintf(w, "%s %s\n", errStyle.Sprint("error:"), err.Error())

	var domainErr *domainerrors.Error
	if !domainerrors.As(err, &domainErr) {
		if status := api.StatusOf(err); status != 0 {
			printHint(w, "server answered %d", status)
		}
		return
	}

	switch {
	case domainErr.Code.IsAuth():
		fields, ok := domainErr.Details.(map[string]string)
		if !ok {
			return
		}
		names := make([]string, 0, len(fields))
		for f := range fields {
			names = append(names, f)
		}
		sort.Strings(names)
		for _, f := range names {
			_, _ = fmt.Fprintf(w, "  %s %s\n", f, fields[f])
		}
	case domainerrors.Is(err, domainerrors.ErrNetwork):
		printHint(w, "check --api-url or DOCSHELF_API_URL")
	case domainerrors.Is(err, domainerrors.ErrNotFound):
		printHint(w, "'docshelf search' lists the documents you can see")
	case domainerrors.Is(err, domainerrors.ErrForbidden):
		printHint(w, "only the owner can change or delete a document")
	case domainerrors.Is(err, domainerrors.ErrInternal):
		if status := api.StatusOf(err); status != 0 {
			printHint(w, "server answered %d", status)
		}
	}
}

func printHint(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, "  %s\n", faintStyle.Sprintf(format, args...))
}

func documentHeaders() []string {
	return []string{"ID", "TITLE", "OWNER", "TAGS", "RATING", "CREATED"}
}

func documentRows(docs []domain.Document, now time.Time) [][]string {
	rows := make([][]string, 0, len(docs))
	for i := range docs {
		d := &docs[i]
		rows = append(rows, []string{
			d.ID,
			truncate(d.Title, 40),
			d.OwnerName,
			truncate(strings.Join(d.Tags, ", "), 30),
			ratingCell(d),
			domain.FormatRelative(d.CreatedAt, now),
		})
	}
	return rows
}

func ratingCell(d *domain.Document) string {
	if d.RatingCount == 0 {
		return "-"
	}
	return fmt.Sprintf("%s (%s)", d.RatingDisplay(), humanize.Comma(int64(d.RatingCount)))
}

func documentDetail(d *domain.Document, myRating *int, now time.Time) [][2]string {
	mine := "not rated"
	if myRating != nil {
		mine = strconv.Itoa(*myRating) + "/5"
	}
	rows := [][2]string{
		{"id", d.ID},
		{"title", d.Title},
		{"summary", orDash(d.Summary)},
		{"tags", orDash(strings.Join(d.Tags, ", "))},
		{"owner", d.OwnerName},
		{"visibility", string(d.Visibility)},
		{"file", fileCell(d)},
		{"rating", ratingCell(d)},
		{"your rating", mine},
		{"created", domain.FormatRelative(d.CreatedAt, now)},
		{"updated", domain.FormatRelative(d.UpdatedAt, now)},
	}
	return rows
}

func fileCell(d *domain.Document) string {
	if d.FileType == "" {
		return "-"
	}
	return fmt.Sprintf("%s, %s", d.FileType, humanize.Bytes(uint64(max(d.FileSize, 0))))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
