package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/docshelf/docshelf/internal/domain"
)

// MaxFileSize is the largest file the server accepts.
const MaxFileSize = 10 << 20

// allowedTypes maps accepted extensions to the MIME types their content must
// sniff as. Office files sniff as generic containers on older detectors, so
// the container types are accepted too.
var allowedTypes = map[string][]string{
	"pdf":  {"application/pdf"},
	"doc":  {"application/msword", "application/x-ole-storage"},
	"docx": {"application/vnd.openxmlformats-officedocument.wordprocessingml.document", "application/zip"},
	"png":  {"image/png"},
	"jpg":  {"image/jpeg"},
	"jpeg": {"image/jpeg"},
	"gif":  {"image/gif"},
}

// DetectFileType checks that name has an accepted extension and that content
// matches it, returning the server's classification.
func DetectFileType(name string, content []byte) (domain.FileType, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	want, ok := allowedTypes[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q (supported: pdf, doc, docx, png, jpg, jpeg, gif)", ErrUnsupportedFile, filepath.Ext(name))
	}

	detected := mimetype.Detect(content)
	if !matchesAny(detected, want) {
		return "", fmt.Errorf("%w: %s content is %s", ErrUnsupportedFile, ext, detected.String())
	}

	switch ext {
	case "pdf":
		return domain.FileTypePDF, nil
	case "doc":
		return domain.FileTypeDoc, nil
	case "docx":
		return domain.FileTypeDocx, nil
	default:
		return domain.FileTypeImage, nil
	}
}

// matchesAny walks the detected type and its parents.
func matchesAny(m *mimetype.MIME, want []string) bool {
	for ; m != nil; m = m.Parent() {
		for _, w := range want {
			if m.Is(w) {
				return true
			}
		}
	}
	return false
}

// File is an upload payload.
type File struct {
	Name   string
	Reader io.Reader
}

// ProgressFunc reports bytes of the request body sent so far.
type ProgressFunc func(sent, total int64)

// UploadRequest is the form for POST /documents/upload.
type UploadRequest struct {
	Title      string            `form:"title" validate:"max=200"`
	Summary    string            `form:"summary" validate:"max=500"`
	Tags       string            `form:"tags" validate:"taglist"`
	Visibility domain.Visibility `form:"visibility" validate:"omitempty,oneof=public group private"`
	File       File              `validate:"-"`
	Progress   ProgressFunc      `validate:"-"`
}

// UploadDocument uploads a new document. An empty title defaults to the file
// name and an empty visibility to private.
func (c *Client) UploadDocument(ctx context.Context, req UploadRequest) (*domain.Document, error) {
	title := req.Title
	if title == "" {
		title = filepath.Base(req.File.Name)
	}
	visibility := req.Visibility
	if visibility == "" {
		visibility = domain.VisibilityPrivate
	}

	body, contentType, err := buildMultipart("upload", []formField{
		{"title", title},
		{"summary", req.Summary},
		{"tags", req.Tags},
		{"visibility", string(visibility)},
	}, &req.File)
	if err != nil {
		return nil, err
	}

	var doc domain.Document
	err = c.do(ctx, request{
		op:          "upload",
		group:       groupDocuments,
		method:      http.MethodPost,
		path:        "/documents/upload",
		body:        withProgress(body, req.Progress),
		contentType: contentType,
	}, &doc)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// UpdateRequest carries the fields to change; nil fields are left alone.
type UpdateRequest struct {
	Title      *string            `form:"title" validate:"omitempty,min=1,max=200"`
	Summary    *string            `form:"summary" validate:"omitempty,max=500"`
	Tags       *string            `form:"tags" validate:"omitempty,taglist"`
	Visibility *domain.Visibility `form:"visibility" validate:"omitempty,oneof=public group private"`
}

// Empty reports whether the update changes nothing.
func (u UpdateRequest) Empty() bool {
	return u.Title == nil && u.Summary == nil && u.Tags == nil && u.Visibility == nil
}

// UpdateDocument changes metadata of a document the caller owns.
func (c *Client) UpdateDocument(ctx context.Context, docID string, req UpdateRequest) (*domain.Document, error) {
	var fields []formField
	if req.Title != nil {
		fields = append(fields, formField{"title", *req.Title})
	}
	if req.Summary != nil {
		fields = append(fields, formField{"summary", *req.Summary})
	}
	if req.Tags != nil {
		fields = append(fields, formField{"tags", *req.Tags})
	}
	if req.Visibility != nil {
		fields = append(fields, formField{"visibility", string(*req.Visibility)})
	}

	body, contentType, err := buildMultipart("update", fields, nil)
	if err != nil {
		return nil, err
	}

	var doc domain.Document
	err = c.do(ctx, request{
		op:          "update document",
		group:       groupDocuments,
		method:      http.MethodPut,
		path:        "/documents/" + url.PathEscape(docID),
		body:        body,
		contentType: contentType,
	}, &doc)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

type formField struct {
	name, value string
}

// buildMultipart encodes fields and an optional file. The file is checked
// against the accepted types and size before anything is sent.
func buildMultipart(op string, fields []formField, file *File) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for _, f := range fields {
		if err := mw.WriteField(f.name, f.value); err != nil {
			return nil, "", wrapError(op, 0, "", fmt.Errorf("write field %s: %w", f.name, err))
		}
	}

	if file != nil {
		content, err := readFile(file)
		if err != nil {
			return nil, "", wrapError(op, 0, "", err)
		}
		if _, err := DetectFileType(file.Name, content); err != nil {
			return nil, "", wrapError(op, 0, "", err)
		}
		part, err := mw.CreateFormFile("file", filepath.Base(file.Name))
		if err != nil {
			return nil, "", wrapError(op, 0, "", fmt.Errorf("create file part: %w", err))
		}
		if _, err := part.Write(content); err != nil {
			return nil, "", wrapError(op, 0, "", fmt.Errorf("write file part: %w", err))
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", wrapError(op, 0, "", fmt.Errorf("close multipart: %w", err))
	}
	return &buf, mw.FormDataContentType(), nil
}

func readFile(f *File) ([]byte, error) {
	if f.Reader == nil {
		return nil, fmt.Errorf("%w: no file", ErrUnsupportedFile)
	}
	content, err := io.ReadAll(io.LimitReader(f.Reader, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	if len(content) > MaxFileSize {
		return nil, fmt.Errorf("%w: %s exceeds %d MB", ErrFileTooLarge, f.Name, MaxFileSize>>20)
	}
	return content, nil
}

type progressReader struct {
	r     io.Reader
	sent  int64
	total int64
	fn    ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		p.fn(p.sent, p.total)
	}
	return n, err
}

func withProgress(buf *bytes.Buffer, fn ProgressFunc) io.Reader {
	if fn == nil {
		return buf
	}
	return &progressReader{r: buf, total: int64(buf.Len()), fn: fn}
}
