package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	mW "github.com/kaskelas/backend/internal/middleware"
	"github.com/kaskelas/backend/internal/repository"
	"github.com/kaskelas/backend/internal/services"
)

const (
	maxJSONBody   = 1_048_576
	maxUploadSize = 10 << 20
	dateLayout    = "2006-01-02"
)

var (
	imageTypes    = []string{"image/jpeg", "image/png", "image/webp"}
	documentTypes = []string{"application/pdf", "image/jpeg", "image/png", "image/webp"}
)

// Uploader stores an uploaded file and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, folder, name, contentType string, r io.Reader) (string, error)
}

func badRequest(field, message string) error {
	e := &services.Error{Kind: services.ErrValidation, Message: message}
	if field != "" {
		e.Details = map[string]string{field: message}
	}
	return e
}

// decodeJSON reads exactly one JSON object. With optional set an empty body is accepted.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, optional bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return badRequest("", "Invalid request body")
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return badRequest("", "Request body must only contain a single JSON object")
	}
	return nil
}

func actorFrom(w http.ResponseWriter, r *http.Request) (services.Actor, bool) {
	actor, ok := mW.ActorFrom(r.Context())
	if !ok || actor.UserID == "" {
		services.SendStatusError(w, http.StatusUnauthorized, services.CodeUnauthorized, "Unauthorized")
		return services.Actor{}, false
	}
	return actor, true
}

func paginationFrom(r *http.Request) (repository.Pagination, error) {
	page, err := intQuery(r, "page")
	if err != nil {
		return repository.Pagination{}, err
	}
	limit, err := intQuery(r, "limit")
	if err != nil {
		return repository.Pagination{}, err
	}
	if limit > repository.MaxLimit {
		return repository.Pagination{}, badRequest("limit", fmt.Sprintf("limit must be at most %d", repository.MaxLimit))
	}
	return repository.Pagination{Page: page, Limit: limit}.Normalize(), nil
}

func intQuery(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, badRequest(name, name+" must be a non-negative integer")
	}
	return v, nil
}

func int64Query(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, badRequest(name, name+" must be a non-negative integer")
	}
	return v, nil
}

// dateRange parses startDate and endDate as calendar days. endDate includes the whole day.
func dateRange(r *http.Request) (*time.Time, *time.Time, error) {
	from, err := parseDate(r.URL.Query().Get("startDate"), "startDate")
	if err != nil {
		return nil, nil, err
	}
	to, err := parseDate(r.URL.Query().Get("endDate"), "endDate")
	if err != nil {
		return nil, nil, err
	}
	if to != nil {
		end := to.Add(24*time.Hour - time.Nanosecond)
		to = &end
	}
	return from, to, nil
}

func parseDate(raw, field string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		if t, err = time.Parse(time.RFC3339, raw); err != nil {
			return nil, badRequest(field, field+" must be YYYY-MM-DD")
		}
	}
	return &t, nil
}

func descending(r *http.Request, fallback bool) bool {
	switch strings.ToLower(r.URL.Query().Get("sortOrder")) {
	case "asc":
		return false
	case "desc":
		return true
	}
	return fallback
}

// uploadFile stores the multipart file field under folder. It returns "" when the field is
// absent and required is false, or when uploads are disabled and required is false.
func uploadFile(r *http.Request, uploader Uploader, field, folder string, allowed []string, required bool) (string, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		if required {
			return "", badRequest(field, "File is required")
		}
		return "", nil
	}
	if err != nil {
		return "", badRequest(field, "Invalid file upload")
	}
	defer file.Close()

	if uploader == nil {
		if required {
			return "", badRequest(field, "File uploads are currently disabled")
		}
		return "", nil
	}

	mtype, err := mimetype.DetectReader(file)
	if err != nil {
		return "", badRequest(field, "Could not read uploaded file")
	}
	if !mimetype.EqualsAny(mtype.String(), allowed...) {
		return "", badRequest(field, fmt.Sprintf("File type %s is not allowed", mtype.String()))
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", &services.Error{Kind: services.ErrInfrastructure, Message: "failed to read upload", Cause: err}
	}

	url, err := uploader.Upload(r.Context(), folder, header.Filename, mtype.String(), file)
	if err != nil {
		return "", &services.Error{Kind: services.ErrInfrastructure, Message: "File upload failed", Cause: err}
	}
	return url, nil
}

func parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize+maxJSONBody)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return badRequest("", "Invalid multipart form or file larger than 10MB")
	}
	return nil
}
