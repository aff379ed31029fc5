package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/harliandi/go-imgresize/internal/converter"
	"github.com/harliandi/go-imgresize/internal/middleware"
	"github.com/harliandi/go-imgresize/internal/presets"
	"github.com/harliandi/go-imgresize/pkg/codec"
	"github.com/harliandi/go-imgresize/pkg/dimension"
)

const (
	maxMemory = 32 << 20 // 32MB max in-memory for multipart parsing

	// formOverhead leaves room for the non-file form fields and multipart framing
	formOverhead = 1 << 20

	submitRetries = 3

	defaultSizeQuality      = 80
	defaultDimensionQuality = 90
)

var (
	errNotMultipart   = errors.New("content type must be multipart/form-data")
	errNoFile         = errors.New("no file provided")
	errInvalidQuality = errors.New("invalid quality")
)

// JobRunner runs resize jobs; *converter.WorkerPool in production
type JobRunner interface {
	SubmitWithRetry(ctx context.Context, job *converter.Job, maxRetries int) (*converter.Result, error)
}

// PresetSource returns the current preset catalogue
type PresetSource interface {
	Get() *presets.Presets
}

// Handler handles HTTP requests for image resizing
type Handler struct {
	jobs       JobRunner
	presets    PresetSource
	maxUpload  int // bytes
	jobTimeout time.Duration
	logger     zerolog.Logger
}

// New creates a new Handler. maxUploadMB can lower the upload limit below
// converter.MaxFileSize but not raise it.
func New(jobs JobRunner, store PresetSource, maxUploadMB int, jobTimeout time.Duration, logger zerolog.Logger) *Handler {
	return &Handler{
		jobs:       jobs,
		presets:    store,
		maxUpload:  converter.UploadLimit(maxUploadMB << 20),
		jobTimeout: jobTimeout,
		logger:     logger,
	}
}

// upload is a file read from a multipart request
type upload struct {
	filename string
	mimeType string
	data     []byte
}

// ResizeBySize handles POST /resize/size
func (h *Handler) ResizeBySize(w http.ResponseWriter, r *http.Request) {
	up, err := h.readUpload(w, r)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	job, err := sizeJob(r, up)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.run(w, r, job)
}

// ResizeByDimensions handles POST /resize/dimensions
func (h *Handler) ResizeByDimensions(w http.ResponseWriter, r *http.Request) {
	up, err := h.readUpload(w, r)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	job, err := dimensionJob(r, up)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.run(w, r, job)
}

// Info handles POST /info: dimensions and size of an upload, without re-encoding
func (h *Handler) Info(w http.ResponseWriter, r *http.Request) {
	up, err := h.readUpload(w, r)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	if err := converter.ValidateUpload(up.mimeType, len(up.data), h.maxUpload); err != nil {
		h.sendError(w, r, err)
		return
	}

	width, height, err := codec.Probe(up.data)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, infoResponse{
		Filename: up.filename,
		MIMEType: converter.NormalizeMIME(up.mimeType),
		Format:   codec.DisplayName(converter.NormalizeMIME(up.mimeType)),
		Width:    width,
		Height:   height,
		SizeKB:   codec.SizeKB(len(up.data)),
		Size:     codec.FormatFileSize(int64(len(up.data))),
	})
}

// Presets handles GET /presets
func (h *Handler) Presets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.presets.Get())
}

// Health handles the /health endpoint for readiness/liveness probes
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request, job *converter.Job) {
	job.MaxBytes = h.maxUpload

	// Reject before taking a worker slot
	if err := converter.ValidateJob(job); err != nil {
		h.sendError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.jobTimeout)
	defer cancel()

	rid := middleware.RequestIDFromContext(r.Context())
	job.ID = rid
	job.OnProgress = func(p int) {
		h.logger.Debug().Str("request_id", rid).Int("progress", p).Msg("job progress")
	}

	res, err := h.jobs.SubmitWithRetry(ctx, job, submitRetries)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	if wantsJSON(r) {
		h.sendJSONResponse(w, res)
		return
	}
	h.sendBinaryResponse(w, res)
}

// readUpload parses the multipart form and reads the "file" part into memory.
// A missing or generic part Content-Type is replaced by a sniffed one.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (*upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, int64(h.maxUpload)+formOverhead)

	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, http.ErrNotMultipart):
			return nil, errNotMultipart
		case errors.As(err, &tooLarge), strings.Contains(err.Error(), "request body too large"):
			return nil, &converter.FileSizeError{Limit: h.maxUpload}
		}
		return nil, fmt.Errorf("%w: %v", errNotMultipart, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, errNoFile
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || converter.NormalizeMIME(mimeType) == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}

	return &upload{filename: header.Filename, mimeType: mimeType, data: data}, nil
}

func sizeJob(r *http.Request, up *upload) (*converter.Job, error) {
	size, err := strconv.ParseFloat(strings.TrimSpace(r.FormValue("target_size")), 64)
	if err != nil || !(size > 0) || math.IsInf(size, 0) {
		return nil, converter.ErrInvalidTarget
	}
	quality, err := formInt(r, "quality", defaultSizeQuality)
	if err != nil {
		return nil, errInvalidQuality
	}
	format, err := codec.ParseFormat(r.FormValue("format"))
	if err != nil {
		return nil, err
	}

	return &converter.Job{
		Filename: up.filename,
		MIMEType: up.mimeType,
		Data:     up.data,
		Mode:     converter.ModeTargetSize,
		TargetKB: converter.TargetKB(size, r.FormValue("unit")),
		Quality:  quality,
		Format:   format,
	}, nil
}

func dimensionJob(r *http.Request, up *upload) (*converter.Job, error) {
	width, err := formInt(r, "width", 0)
	if err != nil {
		return nil, converter.ErrInvalidDimensions
	}
	height, err := formInt(r, "height", 0)
	if err != nil {
		return nil, converter.ErrInvalidDimensions
	}
	quality, err := formInt(r, "quality", defaultDimensionQuality)
	if err != nil {
		return nil, errInvalidQuality
	}
	format, err := codec.ParseFormat(r.FormValue("format"))
	if err != nil {
		return nil, err
	}

	lock := true
	if v := strings.TrimSpace(r.FormValue("maintain_aspect")); v != "" {
		if lock, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("%w: maintain_aspect %q", converter.ErrInvalidDimensions, v)
		}
	}

	return &converter.Job{
		Filename:   up.filename,
		MIMEType:   up.mimeType,
		Data:       up.data,
		Mode:       converter.ModeDimensions,
		Dimensions: dimension.Request{Width: width, Height: height, AspectLock: lock},
		Quality:    quality,
		Format:     format,
	}, nil
}

// formInt reads an optional integer field; empty means def
func formInt(r *http.Request, key string, def int) (int, error) {
	v := strings.TrimSpace(r.FormValue(key))
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

// wantsJSON selects the JSON envelope over a binary download
func wantsJSON(r *http.Request) bool {
	if f := r.URL.Query().Get("response"); f != "" {
		return strings.EqualFold(f, "json")
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
