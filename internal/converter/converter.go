package converter

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/harliandi/go-imgresize/pkg/codec"
	"github.com/harliandi/go-imgresize/pkg/dimension"
	"github.com/harliandi/go-imgresize/pkg/metrics"
	"github.com/harliandi/go-imgresize/pkg/quality"
)

// Mode selects how a job picks its output
type Mode string

const (
	ModeTargetSize Mode = "target_size"
	ModeDimensions Mode = "dimensions"
)

// Progress checkpoints reported while a job runs
const (
	ProgressValidated = 30
	ProgressDecoded   = 60
	ProgressEncoded   = 90
	ProgressDone      = 100
)

// Job is one resize request. It is built per request and dropped once the
// result has been delivered.
type Job struct {
	ID       string
	Filename string
	MIMEType string
	Data     []byte
	// MaxBytes is the upload limit for this job; zero means MaxFileSize
	MaxBytes int

	Mode       Mode
	TargetKB   float64           // ModeTargetSize
	Dimensions dimension.Request // ModeDimensions
	Quality    int
	Format     codec.OutputFormat

	// OnProgress, when set, receives percentages from 0 to 100
	OnProgress func(percent int)
}

// Result is a finished job
type Result struct {
	JobID    string
	Data     []byte
	Filename string
	MIMEType string
	Format   string
	Mode     Mode

	Width   int
	Height  int
	Quality int
	// SizeKB is the display size. For target-size jobs it is capped at
	// TargetKB*quality.ReportTolerance; ActualSizeKB is the real size.
	SizeKB       float64
	ActualSizeKB float64

	TargetKB   float64
	Iterations int
	Shrunk     bool
	Shortfall  bool
	Warning    string
	AspectLock *bool

	OriginalWidth  int
	OriginalHeight int
	OriginalSizeKB float64
	OriginalFormat string
}

// Converter runs resize jobs
type Converter struct {
	logger zerolog.Logger
}

// New creates a Converter
func New(logger zerolog.Logger) *Converter {
	return &Converter{logger: logger}
}

// Process runs job to completion: validate, decode, encode, name.
// Validation errors are returned before anything is decoded. ctx is checked
// between stages only; an encode pass that has started always finishes.
func (c *Converter) Process(ctx context.Context, job *Job) (*Result, error) {
	start := time.Now()
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	log := c.logger.With().Str("job_id", job.ID).Str("mode", string(job.Mode)).Logger()

	res, err := c.process(ctx, job, log)

	duration := time.Since(start)
	status := jobStatus(res, err)
	outBytes := 0
	if res != nil {
		outBytes = len(res.Data)
	}
	metrics.RecordJob(string(job.Mode), status, duration.Seconds(), len(job.Data), outBytes)

	if err != nil {
		evt := log.Error()
		if IsValidation(err) {
			evt = log.Warn()
		}
		evt.Err(err).Dur("duration", duration).Msg("job failed")
		return nil, err
	}

	log.Info().
		Str("file", job.Filename).
		Str("input", codec.FormatFileSize(int64(len(job.Data)))).
		Str("output", codec.FormatFileSize(int64(len(res.Data)))).
		Int("width", res.Width).
		Int("height", res.Height).
		Int("quality", res.Quality).
		Bool("shortfall", res.Shortfall).
		Dur("duration", duration).
		Msg("job done")
	return res, nil
}

func (c *Converter) process(ctx context.Context, job *Job, log zerolog.Logger) (*Result, error) {
	if job.Format.Extension == "" {
		job.Format, _ = codec.ParseFormat("")
	}
	if err := ValidateJob(job); err != nil {
		return nil, err
	}
	job.progress(ProgressValidated)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := codec.Decode(job.Data, NormalizeMIME(job.MIMEType))
	if err != nil {
		return nil, err
	}
	job.progress(ProgressDecoded)
	log.Debug().Int("width", src.Width).Int("height", src.Height).Msg("decoded")

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	enc := codec.NewEncoder()
	var res *Result
	switch job.Mode {
	case ModeTargetSize:
		res, err = c.searchTargetSize(enc, src, job, log)
	case ModeDimensions:
		res, err = c.resizeToDimensions(enc, src, job)
	}
	if err != nil {
		return nil, err
	}
	job.progress(ProgressEncoded)

	res.JobID = job.ID
	res.Mode = job.Mode
	res.Format = job.Format.Name
	res.MIMEType = job.Format.Format.MIMEType()
	res.OriginalWidth = src.Width
	res.OriginalHeight = src.Height
	res.OriginalSizeKB = codec.SizeKB(src.OriginalBytes)
	res.OriginalFormat = codec.DisplayName(src.MIMEType)
	res.Filename = SuggestedFilename(job.Filename, res.Width, res.Height, res.SizeKB, job.Format.Extension)

	job.progress(ProgressDone)
	return res, nil
}

func (c *Converter) searchTargetSize(enc quality.Encoder, src *codec.SourceImage, job *Job, log zerolog.Logger) (*Result, error) {
	out, err := quality.SearchTargetSize(enc, src, job.TargetKB, job.Quality, job.Format.Format)
	if err != nil {
		return nil, fmt.Errorf("target size search: %w", err)
	}
	metrics.RecordSearch(out.Iterations, out.Shrunk, out.Shortfall)
	log.Debug().
		Float64("target_kb", out.TargetKB).
		Float64("actual_kb", out.ActualSizeKB).
		Int("iterations", out.Iterations).
		Bool("shrunk", out.Shrunk).
		Msg("search finished")

	res := &Result{
		Data:         out.Result.Data,
		Width:        out.Result.Width,
		Height:       out.Result.Height,
		Quality:      out.Result.Quality,
		SizeKB:       out.SizeKB,
		ActualSizeKB: out.ActualSizeKB,
		TargetKB:     out.TargetKB,
		Iterations:   out.Iterations,
		Shrunk:       out.Shrunk,
		Shortfall:    out.Shortfall,
	}
	if out.Shortfall {
		res.Warning = fmt.Sprintf("Unable to compress to exact size. Best achieved: %.2f KB", out.ActualSizeKB)
	}
	return res, nil
}

func (c *Converter) resizeToDimensions(enc quality.Encoder, src *codec.SourceImage, job *Job) (*Result, error) {
	size := dimension.Resolve(dimension.Size{Width: src.Width, Height: src.Height}, job.Dimensions)
	if err := codec.ValidateDimensions(size.Width, size.Height); err != nil {
		return nil, err
	}
	req := codec.EncodeRequest{
		Width:   size.Width,
		Height:  size.Height,
		Quality: quality.Clamp(job.Quality),
		Format:  job.Format.Format,
	}

	out, err := enc.Encode(src.Image, req)
	if err != nil {
		return nil, err
	}

	lock := job.Dimensions.AspectLock
	return &Result{
		Data:         out.Data,
		Width:        out.Width,
		Height:       out.Height,
		Quality:      out.Quality,
		SizeKB:       out.SizeKB,
		ActualSizeKB: out.SizeKB,
		AspectLock:   &lock,
	}, nil
}

func (j *Job) progress(percent int) {
	if j.OnProgress != nil {
		j.OnProgress(percent)
	}
}

func jobStatus(res *Result, err error) string {
	switch {
	case err != nil && IsValidation(err):
		return "invalid"
	case err != nil:
		return "error"
	case res.Shortfall:
		return "shortfall"
	}
	return "success"
}
