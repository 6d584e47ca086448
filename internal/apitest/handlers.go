package apitest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/docshelf/docshelf/internal/domain"
)

type userKey struct{}

func withUser(ctx context.Context, u domain.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

func currentUser(r *http.Request) domain.User {
	u, _ := r.Context().Value(userKey{}).(domain.User)
	return u
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}

	s.mu.Lock()
	acc, ok := s.users[req.Username]
	s.mu.Unlock()
	if !ok || acc.password != req.Password {
		writeDetail(w, http.StatusUnauthorized, "Incorrect username or password")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"access_token": s.IssueToken(req.Username, s.TokenTTL),
		"token_type":   "bearer",
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acc := range s.users {
		if acc.user.Username == req.Username || acc.user.Email == req.Email {
			writeDetail(w, http.StatusBadRequest, "Username or email already registered")
			return
		}
	}
	writeJSON(w, http.StatusOK, s.addUserLocked(req))
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentUser(r))
}

// visibleLocked reports whether u may read d.
func visibleLocked(d *storedDoc, u domain.User) bool {
	switch {
	case d.doc.OwnerID == u.ID:
		return true
	case d.doc.Visibility == domain.VisibilityPublic:
		return true
	case d.doc.Visibility == domain.VisibilityGroup:
		return u.Group != ""
	default:
		return false
	}
}

// searchLocked applies the search filters of r and returns every match, sorted.
func (s *Server) searchLocked(r *http.Request, u domain.User) ([]domain.Document, error) {
	q := r.URL.Query()
	text := strings.ToLower(q.Get("query"))
	var tags []string
	for _, t := range strings.Split(q.Get("tags"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}

	var from, to time.Time
	var err error
	if v := q.Get("date_from"); v != "" {
		if from, err = time.Parse(time.RFC3339, v); err != nil {
			return nil, err
		}
	}
	if v := q.Get("date_to"); v != "" {
		if to, err = time.Parse(time.RFC3339, v); err != nil {
			return nil, err
		}
	}

	owner := strings.ToLower(q.Get("owner"))
	visibility := domain.Visibility(q.Get("visibility"))

	var out []domain.Document
	for _, docID := range s.order {
		d := s.docs[docID]
		if !visibleLocked(d, u) {
			continue
		}
		doc := d.doc
		if text != "" &&
			!strings.Contains(strings.ToLower(doc.Title), text) &&
			!strings.Contains(strings.ToLower(doc.Summary), text) {
			continue
		}
		if len(tags) > 0 && !anyTag(doc.Tags, tags) {
			continue
		}
		if !from.IsZero() && doc.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && doc.CreatedAt.After(to) {
			continue
		}
		if visibility.Valid() && doc.Visibility != visibility {
			continue
		}
		if owner != "" && !strings.Contains(strings.ToLower(doc.OwnerName), owner) {
			continue
		}
		out = append(out, doc)
	}

	sortDocs(out, q.Get("sort_by"), q.Get("sort_order") != "asc")
	return out, nil
}

func anyTag(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

func sortDocs(docs []domain.Document, by string, desc bool) {
	less := func(a, b domain.Document) bool {
		switch by {
		case "updated_at":
			return a.UpdatedAt.Before(b.UpdatedAt)
		case "title":
			return a.Title < b.Title
		case "average_rating":
			return a.AverageRating < b.AverageRating
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	sort.SliceStable(docs, func(i, j int) bool {
		if desc {
			return less(docs[j], docs[i])
		}
		return less(docs[i], docs[j])
	})
}

func intParam(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < 1 {
		return def
	}
	return v
}

func page(docs []domain.Document, pageNum, limit int) []domain.Document {
	start := (pageNum - 1) * limit
	if start >= len(docs) {
		return []domain.Document{}
	}
	return docs[start:min(start+limit, len(docs))]
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	docs, err := s.searchLocked(r, currentUser(r))
	s.mu.Unlock()
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid date format")
		return
	}
	writeJSON(w, http.StatusOK, page(docs, intParam(r, "page", 1), intParam(r, "limit", 10)))
}

func (s *Server) handleSearchCount(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	docs, err := s.searchLocked(r, currentUser(r))
	s.mu.Unlock()
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid date format")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"total": len(docs)})
}

func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)

	s.mu.Lock()
	counts := map[string]int{}
	for _, d := range s.docs {
		if visibleLocked(d, u) {
			for _, t := range d.doc.Tags {
				counts[t]++
			}
		}
	}
	s.mu.Unlock()

	tags := make([]domain.TagCount, 0, len(counts))
	for t, n := range counts {
		tags = append(tags, domain.TagCount{Tag: t, Count: n})
	}
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].Count != tags[j].Count {
			return tags[i].Count > tags[j].Count
		}
		return tags[i].Tag < tags[j].Tag
	})
	if len(tags) > 50 {
		tags = tags[:50]
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": tags})
}

func (s *Server) visibleSorted(u domain.User, by string, onlyOwn bool) []domain.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Document
	for _, docID := range s.order {
		d := s.docs[docID]
		if onlyOwn && d.doc.OwnerID != u.ID {
			continue
		}
		if visibleLocked(d, u) {
			out = append(out, d.doc)
		}
	}
	sortDocs(out, by, true)
	return out
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	docs := s.visibleSorted(currentUser(r), "created_at", false)
	writeJSON(w, http.StatusOK, page(docs, intParam(r, "page", 1), intParam(r, "limit", 10)))
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	docs := s.visibleSorted(currentUser(r), "created_at", false)
	writeJSON(w, http.StatusOK, page(docs, 1, intParam(r, "limit", 5)))
}

func (s *Server) handlePopular(w http.ResponseWriter, r *http.Request) {
	docs := s.visibleSorted(currentUser(r), "average_rating", false)
	writeJSON(w, http.StatusOK, page(docs, 1, intParam(r, "limit", 5)))
}

func (s *Server) handleMine(w http.ResponseWriter, r *http.Request) {
	docs := s.visibleSorted(currentUser(r), "created_at", true)
	writeJSON(w, http.StatusOK, page(docs, 1, intParam(r, "limit", 5)))
}

// lookup returns the document named in the URL if u may read it, writing the
// error response otherwise.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*storedDoc, bool) {
	d, ok := s.docs[chi.URLParam(r, "id")]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Document not found")
		return nil, false
	}
	if !visibleLocked(d, currentUser(r)) {
		writeDetail(w, http.StatusForbidden, "Access denied")
		return nil, false
	}
	return d, true
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.lookup(w, r); ok {
		writeJSON(w, http.StatusOK, d.doc)
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(16 << 20); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid form")
		return
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "file: field required")
		return
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Unreadable file")
		return
	}

	ext := strings.ToLower(hdr.Filename[strings.LastIndex(hdr.Filename, ".")+1:])
	fileType := domain.FileTypeImage
	switch ext {
	case "pdf":
		fileType = domain.FileTypePDF
	case "doc":
		fileType = domain.FileTypeDoc
	case "docx":
		fileType = domain.FileTypeDocx
	}

	if r.FormValue("title") == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "title: field required")
		return
	}
	visibility := domain.Visibility(r.FormValue("visibility"))
	if visibility == "" {
		visibility = domain.VisibilityPrivate
	}

	doc := s.AddDocument(currentUser(r), domain.Document{
		Title:      r.FormValue("title"),
		Summary:    r.FormValue("summary"),
		Tags:       splitTags(r.FormValue("tags")),
		Visibility: visibility,
		FilePath:   "uploads/" + hdr.Filename,
		FileType:   fileType,
	}, content)
	writeJSON(w, http.StatusOK, doc)
}

func splitTags(s string) []string {
	out := []string{}
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid form")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if d.doc.OwnerID != currentUser(r).ID {
		writeDetail(w, http.StatusForbidden, "Only document owner can update")
		return
	}

	form := r.MultipartForm.Value
	if v, ok := form["title"]; ok {
		d.doc.Title = v[0]
	}
	if v, ok := form["summary"]; ok {
		d.doc.Summary = v[0]
	}
	if v, ok := form["tags"]; ok {
		d.doc.Tags = splitTags(v[0])
	}
	if v, ok := form["visibility"]; ok {
		d.doc.Visibility = domain.Visibility(v[0])
	}
	d.doc.UpdatedAt = s.now().UTC()
	writeJSON(w, http.StatusOK, d.doc)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if d.doc.OwnerID != currentUser(r).ID {
		writeDetail(w, http.StatusForbidden, "Only document owner can delete")
		return
	}
	delete(s.docs, d.doc.ID)
	for i, docID := range s.order {
		if docID == d.doc.ID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Document deleted successfully"})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	d, ok := s.lookup(w, r)
	var content []byte
	if ok {
		content = d.content
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rating int `json:"rating"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Rating < 1 || req.Rating > 5 {
		writeDetail(w, http.StatusUnprocessableEntity, "rating: must be between 1 and 5")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.lookup(w, r)
	if !ok {
		return
	}
	d.ratings[currentUser(r).ID] = req.Rating
	d.recompute()
	writeJSON(w, http.StatusOK, map[string]any{"message": "Rating added successfully", "rating": req.Rating})
}

func (s *Server) handleMyRating(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if v, rated := d.ratings[currentUser(r).ID]; rated {
		writeJSON(w, http.StatusOK, map[string]any{"rating": v})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rating": nil})
}

func (s *Server) handleRemoveRating(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.lookup(w, r)
	if !ok {
		return
	}
	uid := currentUser(r).ID
	if _, rated := d.ratings[uid]; !rated {
		writeDetail(w, http.StatusNotFound, "Rating not found")
		return
	}
	delete(d.ratings, uid)
	d.recompute()
	writeJSON(w, http.StatusOK, map[string]string{"message": "Rating removed successfully"})
}

func (d *storedDoc) recompute() {
	sum := 0
	for _, v := range d.ratings {
		sum += v
	}
	d.doc.RatingCount = len(d.ratings)
	d.doc.AverageRating = 0
	if d.doc.RatingCount > 0 {
		d.doc.AverageRating = float64(sum) / float64(d.doc.RatingCount)
	}
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(16 << 20); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid form")
		return
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "file: field required")
		return
	}
	defer f.Close()
	content, _ := io.ReadAll(f)

	text := string(content)
	preview := text
	if len(preview) > 500 {
		preview = preview[:500] + "..."
	}
	title := r.URL.Query().Get("title")
	if title == "" {
		title = hdr.Filename
	}
	writeJSON(w, http.StatusOK, domain.AIAnalysis{
		Summary:              "Summary of " + title,
		Tags:                 keywords(text, 5),
		ExtractedTextPreview: preview,
		HasContent:           strings.TrimSpace(text) != "",
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("text")
	if len(strings.TrimSpace(text)) < 20 {
		writeDetail(w, http.StatusBadRequest, "Text is too short for summary generation")
		return
	}
	words := strings.Fields(text)
	limit := intParam(r, "max_words", 500)
	if len(words) > limit {
		words = words[:limit]
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": strings.Join(words, " ")})
}

func (s *Server) handleGenerateTags(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("text")
	if len(strings.TrimSpace(text)) < 10 {
		writeDetail(w, http.StatusBadRequest, "Text is too short for tag generation")
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"tags": keywords(r.URL.Query().Get("title")+" "+text, 5)})
}

// keywords returns up to n distinct lowercase words longer than three letters.
func keywords(text string, n int) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:!?\"'()")
		if len(w) <= 3 || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
		if len(out) == n {
			break
		}
	}
	return out
}
