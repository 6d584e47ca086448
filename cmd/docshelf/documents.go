package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/docshelf/docshelf/internal/api"
	"github.com/docshelf/docshelf/internal/domain"
	"github.com/docshelf/docshelf/internal/service"
)

func docCommand() *cli.Command {
	return &cli.Command{
		Name:  "doc",
		Usage: "Show, upload and manage documents",
		Commands: []*cli.Command{
			{
				Name:      "show",
				Usage:     "Show a document and your rating",
				ArgsUsage: "<id>",
				Action:    authed(docShow),
			},
			{
				Name:      "upload",
				Usage:     "Upload a file (pdf, doc, docx, png, jpg, gif; at most 10 MB)",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Usage: "defaults to the file name"},
					&cli.StringFlag{Name: "summary"},
					&cli.StringFlag{Name: "tags", Usage: "comma separated"},
					&cli.StringFlag{Name: "visibility", Value: string(domain.VisibilityPrivate), Usage: "public, group or private"},
					&cli.BoolFlag{Name: "ai", Usage: "analyze the file first and apply the suggested summary and tags"},
				},
				Action: authed(docUpload),
			},
			{
				Name:      "update",
				Usage:     "Change title, summary, tags or visibility of your document",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title"},
					&cli.StringFlag{Name: "summary"},
					&cli.StringFlag{Name: "tags"},
					&cli.StringFlag{Name: "visibility"},
				},
				Action: authed(docUpdate),
			},
			{
				Name:      "delete",
				Usage:     "Delete your document",
				ArgsUsage: "<id>",
				Action:    authed(docDelete),
			},
			{
				Name:      "download",
				Usage:     "Save the document file",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "target path; defaults to the stored file name"},
				},
				Action: authed(docDownload),
			},
		},
	}
}

func docID(c *cli.Command) (string, error) {
	id := strings.TrimSpace(c.Args().First())
	if id == "" {
		return "", usageError(c, "document id required")
	}
	return id, nil
}

func docShow(ctx context.Context, c *cli.Command, a *app) error {
	id, err := docID(c)
	if err != nil {
		return err
	}
	svc, err := invoke[*service.DocumentService](a)
	if err != nil {
		return err
	}
	view, err := svc.View(ctx, id)
	if err != nil {
		return err
	}
	if a.json {
		return printJSON(a.out, view)
	}
	printKV(a.out, documentDetail(view.Document, view.MyRating, time.Now()))
	return nil
}

// readUpload loads a local file into an upload form.
func readUpload(c *cli.Command) (*service.UploadForm, error) {
	path := c.Args().First()
	if path == "" {
		return nil, usageError(c, "file required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > api.MaxFileSize {
		return nil, fmt.Errorf("%w: %s is %s", api.ErrFileTooLarge, path, humanize.Bytes(uint64(info.Size())))
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &service.UploadForm{
		Title:      c.String("title"),
		Summary:    c.String("summary"),
		Tags:       c.String("tags"),
		Visibility: domain.Visibility(c.String("visibility")),
		FileName:   path,
		Content:    content,
	}, nil
}

func docUpload(ctx context.Context, c *cli.Command, a *app) error {
	form, err := readUpload(c)
	if err != nil {
		return err
	}
	svc, err := invoke[*service.UploadService](a)
	if err != nil {
		return err
	}

	if c.Bool("ai") {
		analysis, err := svc.Suggest(ctx, form)
		if err != nil {
			return err
		}
		service.ApplySuggestions(form, analysis)
		if !a.json {
			printKV(a.out, [][2]string{
				{"suggested summary", orDash(analysis.Summary)},
				{"suggested tags", orDash(strings.Join(analysis.Tags, ", "))},
			})
		}
	}

	errOut := c.Root().ErrWriter
	doc, err := svc.Upload(ctx, form, func(sent, total int64) {
		if a.json || total == 0 {
			return
		}
		_, _ = fmt.Fprintf(errOut, "\ruploading %s / %s", humanize.Bytes(uint64(sent)), humanize.Bytes(uint64(total)))
		if sent == total {
			_, _ = fmt.Fprintln(errOut)
		}
	})
	if err != nil {
		return err
	}

	if a.json {
		return printJSON(a.out, doc)
	}
	printOK(a.out, "Uploaded %q as %s", doc.Title, doc.ID)
	return nil
}

func docUpdate(ctx context.Context, c *cli.Command, a *app) error {
	id, err := docID(c)
	if err != nil {
		return err
	}

	var req api.UpdateRequest
	if c.IsSet("title") {
		v := c.String("title")
		req.Title = &v
	}
	if c.IsSet("summary") {
		v := c.String("summary")
		req.Summary = &v
	}
	if c.IsSet("tags") {
		v := c.String("tags")
		req.Tags = &v
	}
	if c.IsSet("visibility") {
		v := domain.Visibility(c.String("visibility"))
		req.Visibility = &v
	}

	svc, err := invoke[*service.DocumentService](a)
	if err != nil {
		return err
	}
	doc, err := svc.Update(ctx, id, req)
	if err != nil {
		return err
	}
	if a.json {
		return printJSON(a.out, doc)
	}
	printOK(a.out, "Updated %s", doc.ID)
	return nil
}

func docDelete(ctx context.Context, c *cli.Command, a *app) error {
	id, err := docID(c)
	if err != nil {
		return err
	}
	svc, err := invoke[*service.DocumentService](a)
	if err != nil {
		return err
	}
	if err := svc.Delete(ctx, id); err != nil {
		return err
	}
	printOK(a.out, "Deleted %s", id)
	return nil
}

func docDownload(ctx context.Context, c *cli.Command, a *app) (err error) {
	id, err := docID(c)
	if err != nil {
		return err
	}
	svc, err := invoke[*service.DocumentService](a)
	if err != nil {
		return err
	}

	target := c.String("output")
	if target == "" {
		doc, err := a.client.GetDocument(ctx, id)
		if err != nil {
			return err
		}
		target = filepath.Base(doc.FilePath)
		if target == "." || target == "/" || target == "" {
			target = id
		}
	}

	f, err := os.Create(target)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	n, err := svc.Download(ctx, id, f)
	if err != nil {
		_ = os.Remove(target)
		return err
	}
	printOK(a.out, "Saved %s (%s)", target, humanize.Bytes(uint64(n)))
	return nil
}

func rateCommand() *cli.Command {
	return &cli.Command{
		Name:  "rate",
		Usage: "Rate documents from 1 to 5",
		Commands: []*cli.Command{
			{
				Name:      "set",
				Usage:     "Set your rating",
				ArgsUsage: "<id> <1-5>",
				Action: authed(func(ctx context.Context, c *cli.Command, a *app) error {
					id, err := docID(c)
					if err != nil {
						return err
					}
					rating, err := strconv.Atoi(c.Args().Get(1))
					if err != nil {
						return usageError(c, "rating must be a number from 1 to 5")
					}
					svc, err := invoke[*service.DocumentService](a)
					if err != nil {
						return err
					}
					doc, err := svc.Rate(ctx, id, rating)
					if err != nil {
						return err
					}
					if a.json {
						return printJSON(a.out, doc)
					}
					printOK(a.out, "Rated %d/5. Average is now %s", rating, ratingCell(doc))
					return nil
				}),
			},
			{
				Name:      "get",
				Usage:     "Show your rating",
				ArgsUsage: "<id>",
				Action: authed(func(ctx context.Context, c *cli.Command, a *app) error {
					id, err := docID(c)
					if err != nil {
						return err
					}
					svc, err := invoke[*service.DocumentService](a)
					if err != nil {
						return err
					}
					rating, err := svc.MyRating(ctx, id)
					if err != nil {
						return err
					}
					if a.json {
						return printJSON(a.out, map[string]*int{"rating": rating})
					}
					if rating == nil {
						_, _ = fmt.Fprintln(a.out, "not rated")
						return nil
					}
					_, _ = fmt.Fprintf(a.out, "%d/5\n", *rating)
					return nil
				}),
			},
			{
				Name:      "remove",
				Usage:     "Remove your rating",
				ArgsUsage: "<id>",
				Action: authed(func(ctx context.Context, c *cli.Command, a *app) error {
					id, err := docID(c)
					if err != nil {
						return err
					}
					svc, err := invoke[*service.DocumentService](a)
					if err != nil {
						return err
					}
					if _, err := svc.RemoveRating(ctx, id); err != nil {
						return err
					}
					printOK(a.out, "Rating removed")
					return nil
				}),
			},
		},
	}
}

func aiCommand() *cli.Command {
	return &cli.Command{
		Name:  "ai",
		Usage: "Ask the server for summaries and tags",
		Commands: []*cli.Command{
			{
				Name:      "analyze",
				Usage:     "Extract text from a file and suggest a summary and tags",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title"},
				},
				Action: authed(func(ctx context.Context, c *cli.Command, a *app) error {
					form, err := readUpload(c)
					if err != nil {
						return err
					}
					svc, err := invoke[*service.UploadService](a)
					if err != nil {
						return err
					}
					analysis, err := svc.Suggest(ctx, form)
					if err != nil {
						return err
					}
					if a.json {
						return printJSON(a.out, analysis)
					}
					printKV(a.out, [][2]string{
						{"summary", orDash(analysis.Summary)},
						{"tags", orDash(strings.Join(analysis.Tags, ", "))},
						{"has text", strconv.FormatBool(analysis.HasContent)},
					})
					if analysis.ExtractedTextPreview != "" {
						_, _ = fmt.Fprintln(a.out)
						_, _ = fmt.Fprintln(a.out, faintStyle.Sprint(analysis.ExtractedTextPreview))
					}
					return nil
				}),
			},
			{
				Name:      "summary",
				Usage:     "Summarize text",
				ArgsUsage: "<text>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "max-words", Value: 500},
				},
				Action: authed(func(ctx context.Context, c *cli.Command, a *app) error {
					svc, err := invoke[*service.UploadService](a)
					if err != nil {
						return err
					}
					summary, err := svc.SummarizeText(ctx, strings.Join(c.Args().Slice(), " "), c.Int("max-words"))
					if err != nil {
						return err
					}
					if a.json {
						return printJSON(a.out, map[string]string{"summary": summary})
					}
					_, _ = fmt.Fprintln(a.out, summary)
					return nil
				}),
			},
			{
				Name:      "tags",
				Usage:     "Suggest tags for text",
				ArgsUsage: "<text>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title"},
				},
				Action: authed(func(ctx context.Context, c *cli.Command, a *app) error {
					svc, err := invoke[*service.UploadService](a)
					if err != nil {
						return err
					}
					tags, err := svc.SuggestTags(ctx, strings.Join(c.Args().Slice(), " "), c.String("title"))
					if err != nil {
						return err
					}
					if a.json {
						return printJSON(a.out, tags)
					}
					_, _ = fmt.Fprintln(a.out, strings.Join(tags, ", "))
					return nil
				}),
			},
		},
	}
}
