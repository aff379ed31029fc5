package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/harliandi/go-imgresize/internal/converter"
	"github.com/harliandi/go-imgresize/internal/middleware"
	"github.com/harliandi/go-imgresize/pkg/codec"
)

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type originalInfo struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	SizeKB float64 `json:"size_kb"`
	Format string  `json:"format"`
}

type resultResponse struct {
	JobID          string       `json:"job_id"`
	Filename       string       `json:"filename"`
	MIMEType       string       `json:"mime_type"`
	Format         string       `json:"format"`
	Mode           string       `json:"mode"`
	Width          int          `json:"width"`
	Height         int          `json:"height"`
	Quality        int          `json:"quality"`
	SizeKB         float64      `json:"size_kb"`
	ActualSizeKB   float64      `json:"actual_size_kb"`
	Size           string       `json:"size"`
	TargetKB       float64      `json:"target_kb,omitempty"`
	Iterations     int          `json:"iterations,omitempty"`
	Shrunk         bool         `json:"shrunk,omitempty"`
	Shortfall      bool         `json:"shortfall"`
	Warning        string       `json:"warning,omitempty"`
	MaintainAspect *bool        `json:"maintain_aspect,omitempty"`
	Original       originalInfo `json:"original"`
	Data           string       `json:"data"`
}

type infoResponse struct {
	Filename string  `json:"filename"`
	MIMEType string  `json:"mime_type"`
	Format   string  `json:"format"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	SizeKB   float64 `json:"size_kb"`
	Size     string  `json:"size"`
}

// sendBinaryResponse writes the image as a download with the result in X-Result-* headers
func (h *Handler) sendBinaryResponse(w http.ResponseWriter, res *converter.Result) {
	hdr := w.Header()
	hdr.Set("Content-Type", res.MIMEType)
	hdr.Set("Content-Length", strconv.Itoa(len(res.Data)))
	hdr.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": res.Filename}))
	hdr.Set("X-Job-ID", res.JobID)
	hdr.Set("X-Result-Width", strconv.Itoa(res.Width))
	hdr.Set("X-Result-Height", strconv.Itoa(res.Height))
	hdr.Set("X-Result-Quality", strconv.Itoa(res.Quality))
	hdr.Set("X-Result-Format", res.Format)
	hdr.Set("X-Result-Size-KB", formatKB(res.SizeKB))
	hdr.Set("X-Result-Actual-Size-KB", formatKB(res.ActualSizeKB))
	hdr.Set("X-Original-Width", strconv.Itoa(res.OriginalWidth))
	hdr.Set("X-Original-Height", strconv.Itoa(res.OriginalHeight))
	hdr.Set("X-Original-Size-KB", formatKB(res.OriginalSizeKB))
	if res.Warning != "" {
		hdr.Set("X-Resize-Warning", res.Warning)
	}
	w.WriteHeader(http.StatusOK)
	w.Write(res.Data)
}

// sendJSONResponse writes the result envelope with the image as a data URL
func (h *Handler) sendJSONResponse(w http.ResponseWriter, res *converter.Result) {
	writeJSON(w, http.StatusOK, resultResponse{
		JobID:          res.JobID,
		Filename:       res.Filename,
		MIMEType:       res.MIMEType,
		Format:         res.Format,
		Mode:           string(res.Mode),
		Width:          res.Width,
		Height:         res.Height,
		Quality:        res.Quality,
		SizeKB:         res.SizeKB,
		ActualSizeKB:   res.ActualSizeKB,
		Size:           codec.FormatFileSize(int64(len(res.Data))),
		TargetKB:       res.TargetKB,
		Iterations:     res.Iterations,
		Shrunk:         res.Shrunk,
		Shortfall:      res.Shortfall,
		Warning:        res.Warning,
		MaintainAspect: res.AspectLock,
		Original: originalInfo{
			Width:  res.OriginalWidth,
			Height: res.OriginalHeight,
			SizeKB: res.OriginalSizeKB,
			Format: res.OriginalFormat,
		},
		Data: "data:" + res.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(res.Data),
	})
}

// sendError maps err to a status code and writes a JSON error body
func (h *Handler) sendError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	rid := middleware.RequestIDFromContext(r.Context())

	evt := h.logger.Warn()
	if status >= http.StatusInternalServerError {
		evt = h.logger.Error()
	}
	evt.Err(err).Str("request_id", rid).Int("status", status).Msg("request failed")

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, errorResponse{Error: messageFor(err), RequestID: rid})
}

// statusFor is the single place errors become HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, converter.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, converter.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case converter.IsValidation(err),
		errors.Is(err, errNotMultipart),
		errors.Is(err, errNoFile),
		errors.Is(err, errInvalidQuality):
		return http.StatusBadRequest
	case errors.Is(err, codec.ErrDecodeFailed), errors.Is(err, codec.ErrImageTooLarge):
		return http.StatusUnprocessableEntity
	case errors.Is(err, converter.ErrPoolBusy), errors.Is(err, converter.ErrPoolStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func messageFor(err error) string {
	switch {
	case errors.Is(err, errNotMultipart):
		return "Content-Type must be multipart/form-data"
	case errors.Is(err, errNoFile):
		return "Please select an image first"
	case errors.Is(err, errInvalidQuality):
		return "Please enter a valid quality (10-100)"
	case errors.Is(err, converter.ErrPoolStopped):
		return "Service is shutting down, please try again"
	case errors.Is(err, context.DeadlineExceeded):
		return "Processing took too long, please try a smaller image"
	}
	return converter.Message(err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func formatKB(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
