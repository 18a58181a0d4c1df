package record

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
)

// Camera captures arrive inline as base64, so allow high-resolution phone photos
const maxBodySize = int64(50 << 20) // 50MB

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// writeJSON writes v as a JSON response with the given status
func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError writes a JSON error body
func writeError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, map[string]string{"error": message})
}

// createRecordRequest is the JSON body of POST /api/records
type createRecordRequest struct {
	ProviderName string          `json:"provider_name"`
	CashAmount   json.RawMessage `json:"cash_amount"`
	Image        string          `json:"image"`
}

// createRecordResponse is returned after a successful ingestion
type createRecordResponse struct {
	ID         uint64 `json:"id"`
	BreadCount int    `json:"bread_count"`
}

// handleCreateRecord counts the bread in an uploaded capture and stores the record
func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	var (
		sub Submission
		err error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		sub, err = parseMultipartSubmission(r)
	} else {
		sub, err = parseJSONSubmission(r)
	}
	if err != nil {
		slog.Error("Error parsing record submission", "error", err)
		errorMsg := "Invalid request body"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			errorMsg = "Image is too large. Maximum size is 50MB. Please retake the photo at a lower resolution."
		}
		writeError(w, errorMsg, http.StatusBadRequest)
		return
	}

	who := identityFrom(r.Context())
	record, err := s.service.Submit(r.Context(), who, sub)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidSubmission):
			writeError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, ErrNotConfigured):
			slog.Error("Vision service not configured", "error", err)
			writeError(w, err.Error(), http.StatusServiceUnavailable)
		case errors.Is(err, ErrProcessing):
			writeError(w, "Could not count the bread in this image. Please try again.", http.StatusBadGateway)
		default:
			slog.Error("Error creating record", "employee_id", who.EmployeeID, "error", err)
			writeError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	slog.Info("Record created",
		"id", record.ID,
		"employee_id", record.EmployeeID,
		"bread_count", record.BreadCount,
	)
	writeJSON(w, http.StatusCreated, createRecordResponse{
		ID:         record.ID,
		BreadCount: record.BreadCount,
	})
}

func parseJSONSubmission(r *http.Request) (Submission, error) {
	var req createRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return Submission{}, fmt.Errorf("decoding request body: %w", err)
	}
	return Submission{
		ProviderName: strings.TrimSpace(req.ProviderName),
		CashAmount:   ParseCashAmount(req.CashAmount),
		ImagePayload: req.Image,
	}, nil
}

// parseMultipartSubmission reads an "image" file upload and encodes it as a data URI.
// A plain "image" form value holding a data URI is accepted as well.
func parseMultipartSubmission(r *http.Request) (Submission, error) {
	if err := r.ParseMultipartForm(maxBodySize); err != nil {
		return Submission{}, fmt.Errorf("parsing multipart form: %w", err)
	}

	sub := Submission{
		ProviderName: strings.TrimSpace(r.FormValue("provider_name")),
		CashAmount:   ParseCashString(r.FormValue("cash_amount")),
		ImagePayload: r.FormValue("image"),
	}

	f, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return sub, nil
	}
	if err != nil {
		return Submission{}, fmt.Errorf("getting image from form: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return Submission{}, fmt.Errorf("reading image data: %w", err)
	}
	if len(data) == 0 {
		return sub, nil
	}

	contentType := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = contentTypeFromFilename(header.Filename)
	}
	sub.ImagePayload = fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(data))
	return sub, nil
}

// contentTypeFromFilename guesses the MIME type of a capture from its extension
func contentTypeFromFilename(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "image/jpeg"
	}
}

// handleListRecords returns the caller's records, or all records for admins
func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	records, err := s.service.ListRecords(identityFrom(r.Context()))
	if err != nil {
		slog.Error("Error listing records", "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Ensure we always return an array, not nil
	if records == nil {
		records = []*Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

// handleStatistics returns the daily and per-employee rollups
func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Statistics()
	if err != nil {
		slog.Error("Error computing statistics", "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleHealth reports liveness
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}
