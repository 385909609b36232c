package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitechat-crawler/internal/chat"
	"github.com/JakeFAU/sitechat-crawler/internal/crawler"
	"github.com/JakeFAU/sitechat-crawler/internal/generation"
	"github.com/JakeFAU/sitechat-crawler/internal/ingest"
	"github.com/JakeFAU/sitechat-crawler/internal/store"
	"github.com/JakeFAU/sitechat-crawler/internal/training"
)

type crawlRequest struct {
	URL                  string `json:"url"`
	MaxPages             int    `json:"maxPages"`
	MaxDepth             int    `json:"maxDepth"`
	IncludeExternalLinks bool   `json:"includeExternalLinks"`
	// TimeoutMs is the per-page fetch timeout in milliseconds.
	TimeoutMs int `json:"timeout"`
}

type crawlResponse struct {
	Success    bool               `json:"success"`
	Message    string             `json:"message"`
	WebsiteID  uuid.UUID          `json:"websiteId"`
	PagesCount int                `json:"pagesCount"`
	Stats      crawler.CrawlStats `json:"stats"`
	ArchiveURI string             `json:"archiveUri,omitempty"`
}

func writeCrawlError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "message": msg, "error": msg})
}

func (s *Server) crawl(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeCrawlError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeCrawlError(w, http.StatusBadRequest, "URL is required")
		return
	}
	res, ok := s.runCrawl(w, r, ingest.Request{
		URL:                  req.URL,
		MaxPages:             req.MaxPages,
		MaxDepth:             req.MaxDepth,
		IncludeExternalLinks: req.IncludeExternalLinks,
		Timeout:              time.Duration(req.TimeoutMs) * time.Millisecond,
	})
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, crawlResponse{
		Success:    true,
		Message:    fmt.Sprintf("Website crawled successfully! Found %d pages.", len(res.Pages)),
		WebsiteID:  res.Website.ID,
		PagesCount: len(res.Pages),
		Stats:      res.Stats,
		ArchiveURI: res.ArchiveURI,
	})
}

type setupRequest struct {
	WebsiteURL string `json:"websiteUrl"`
}

// adminSetup crawls a site with the configured defaults.
func (s *Server) adminSetup(w http.ResponseWriter, r *http.Request) {
	var req setupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeCrawlError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.WebsiteURL) == "" {
		writeCrawlError(w, http.StatusBadRequest, "Website URL is required")
		return
	}
	res, ok := s.runCrawl(w, r, ingest.Request{URL: req.WebsiteURL})
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, crawlResponse{
		Success:    true,
		Message:    "Website crawled successfully",
		WebsiteID:  res.Website.ID,
		PagesCount: len(res.Pages),
		Stats:      res.Stats,
		ArchiveURI: res.ArchiveURI,
	})
}

// runCrawl executes req and writes the error response on failure.
func (s *Server) runCrawl(w http.ResponseWriter, r *http.Request, req ingest.Request) (ingest.Result, bool) {
	res, err := s.crawler.Crawl(r.Context(), req)
	switch {
	case err == nil:
		return res, true
	case errors.Is(err, crawler.ErrInvalidURLFormat):
		writeCrawlError(w, http.StatusBadRequest, fmt.Sprintf("Invalid URL format: %s", req.URL))
	case errors.Is(err, crawler.ErrNoContentExtracted):
		writeCrawlError(w, http.StatusBadRequest, "No content could be extracted from the website.")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeCrawlError(w, http.StatusRequestTimeout, "crawl interrupted")
	default:
		s.logger.Error("crawl failed", zap.String("url", req.URL), zap.Error(err))
		writeCrawlError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to crawl website: %v", err))
	}
	return ingest.Result{}, false
}

func (s *Server) chatConfig(w http.ResponseWriter, r *http.Request) {
	avail, err := s.chat.Availability(r.Context())
	if err != nil {
		s.logger.Error("availability failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch configuration")
		return
	}
	writeJSON(w, http.StatusOK, avail)
}

func (s *Server) listWebsites(w http.ResponseWriter, r *http.Request) {
	websites, err := s.websites.ListWebsites(r.Context())
	if err != nil {
		s.logger.Error("list websites failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch websites")
		return
	}
	writeJSON(w, http.StatusOK, websites)
}

func (s *Server) websiteID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Website not found")
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) getWebsite(w http.ResponseWriter, r *http.Request) {
	id, ok := s.websiteID(w, r)
	if !ok {
		return
	}
	website, err := s.websites.GetWebsite(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Website not found")
		return
	}
	if err != nil {
		s.logger.Error("get website failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch website")
		return
	}
	writeJSON(w, http.StatusOK, website)
}

func (s *Server) deleteWebsite(w http.ResponseWriter, r *http.Request) {
	id, ok := s.websiteID(w, r)
	if !ok {
		return
	}
	err := s.websites.DeleteWebsite(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Website not found")
		return
	}
	if err != nil {
		s.logger.Error("delete website failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to delete website")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Website deleted successfully"})
}

type chatRequest struct {
	Query   string `json:"query"`
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

func (s *Server) ask(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	query := req.Query
	if strings.TrimSpace(query) == "" {
		query = req.Message
	}
	answer, err := s.chat.Ask(r.Context(), req.UserID, query)
	switch {
	case errors.Is(err, chat.ErrEmptyQuery):
		writeError(w, http.StatusBadRequest, "Query or message is required")
		return
	case err != nil:
		if !errors.Is(err, generation.ErrGenerationFailed) {
			s.logger.Error("chat failed", zap.Error(err))
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":    generation.ApologyMessage,
			"response": generation.ApologyMessage,
			"reply":    generation.ApologyMessage,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"response": answer.Text,
		"reply":    answer.Text,
		"provider": answer.Provider,
	})
}

func (s *Server) newChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	// An empty body resets the anonymous conversation.
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := s.chat.Reset(r.Context(), req.UserID); err != nil {
		s.logger.Error("reset chat failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to start new chat")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  "New chat started successfully!",
		"messages": []store.Message{},
	})
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	messages, err := s.chat.History(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		s.logger.Error("chat history failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch chat history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (s *Server) uploadTraining(w http.ResponseWriter, r *http.Request) {
	data, defaults, err := readUpload(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	report, err := s.training.Import(r.Context(), data, defaults)
	switch {
	case errors.Is(err, training.ErrInvalidJSON):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, training.ErrNothingImported):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"message": "No valid training items found in file",
			"errors":  report.Errors,
		})
		return
	case err != nil:
		s.logger.Error("training upload failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to process training file: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"message":    fmt.Sprintf("File processed successfully. Added %d training items for chatbot.", report.Added),
		"itemsAdded": report.Added,
		"totalItems": report.Total,
		"errors":     report.Errors,
	})
}

// readUpload accepts a multipart "file" field or a raw JSON body. Category
// and source come from form fields or query parameters.
func readUpload(w http.ResponseWriter, r *http.Request) ([]byte, training.Defaults, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	defaults := training.Defaults{
		Category: r.URL.Query().Get("category"),
		Source:   r.URL.Query().Get("source"),
		FileType: "json",
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, defaults, fmt.Errorf("read body: %w", err)
		}
		defaults.OriginalFileName = r.URL.Query().Get("filename")
		return data, defaults, nil
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, defaults, errors.New("no file uploaded")
	}
	defer func() { _ = file.Close() }()
	if ext := strings.ToLower(filepath.Ext(header.Filename)); ext != "" && ext != ".json" {
		return nil, defaults, fmt.Errorf("unsupported file type %q, only JSON is accepted", ext)
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, defaults, fmt.Errorf("read upload: %w", err)
	}
	if v := r.FormValue("category"); v != "" {
		defaults.Category = v
	}
	if v := r.FormValue("source"); v != "" {
		defaults.Source = v
	}
	defaults.OriginalFileName = header.Filename
	return data, defaults, nil
}

func (s *Server) listTraining(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	filter := store.TrainingFilter{
		Category: q.Get("category"),
		Source:   q.Get("source"),
		Search:   q.Get("search"),
		Limit:    limit,
	}
	items, stats, err := s.training.Summary(r.Context(), filter)
	if err != nil {
		s.logger.Error("list training failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to fetch training data: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   len(items),
		"stats":   stats,
		"data":    items,
	})
}

func (s *Server) deleteTraining(w http.ResponseWriter, r *http.Request) {
	err := s.training.Delete(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Training data not found")
		return
	}
	if err != nil {
		s.logger.Error("delete training failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to delete training data: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Training data deleted successfully"})
}
