package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/workorders-tracker/constants"
	"github.com/joseph-ayodele/workorders-tracker/internal/common"
	"github.com/joseph-ayodele/workorders-tracker/internal/entity"
	"github.com/joseph-ayodele/workorders-tracker/internal/llm"
	"github.com/joseph-ayodele/workorders-tracker/internal/repository"
	"github.com/joseph-ayodele/workorders-tracker/internal/storage"
)

// Skipped records a file that was not handed to the model and why.
type Skipped struct {
	FileName string `json:"fileName"`
	Reason   string `json:"reason"`
}

const (
	SkipUnsupported    = "unsupported file type"
	SkipDownloadFailed = "download failed"
)

// Collector lists, classifies and downloads the files attached to a work order.
type Collector struct {
	Files       repository.WorkOrderFileRepository
	Store       storage.ObjectStore
	KeyPrefix   string
	Concurrency int
	Logger      *slog.Logger
}

func NewCollector(files repository.WorkOrderFileRepository, store storage.ObjectStore, keyPrefix string, concurrency int, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Collector{Files: files, Store: store, KeyPrefix: keyPrefix, Concurrency: concurrency, Logger: logger}
}

// Classify decides how a file is treated. The declared MIME type wins when it
// is recognised; otherwise the extension of the file name, then of the URL, decides.
func Classify(f *entity.WorkOrderFile) constants.FileKind {
	if k := constants.MapMIMEToKind(f.MIMEType); k != constants.UNSUPPORTED {
		return k
	}
	if k := constants.MapExtToKind(path.Ext(f.FileName)); k != constants.UNSUPPORTED {
		return k
	}
	if key, err := storage.KeyFromURL(f.FileURL, ""); err == nil {
		return constants.MapExtToKind(path.Ext(key))
	}
	return constants.UNSUPPORTED
}

// mimeFor returns the MIME type sent to the provider for a classified file.
func mimeFor(f *entity.WorkOrderFile, kind constants.FileKind) string {
	if kind == constants.PDF {
		return "application/pdf"
	}
	if constants.MapMIMEToKind(f.MIMEType) == constants.IMAGE {
		return f.MIMEType
	}
	ext := constants.NormalizeExt(path.Ext(f.FileName))
	if ext == "" {
		if key, err := storage.KeyFromURL(f.FileURL, ""); err == nil {
			ext = constants.NormalizeExt(path.Ext(key))
		}
	}
	switch ext {
	case "", "jpg", "jpeg":
		return "image/jpeg"
	default:
		return "image/" + ext
	}
}

// PartFromFile classifies a local file by name and wraps its bytes.
// ok is false for unsupported files.
func PartFromFile(name string, data []byte) (part llm.Part, ok bool) {
	f := &entity.WorkOrderFile{FileName: name}
	kind := Classify(f)
	if kind == constants.UNSUPPORTED {
		return llm.Part{}, false
	}
	return newPart(f, kind, data), true
}

func newPart(f *entity.WorkOrderFile, kind constants.FileKind, data []byte) llm.Part {
	return llm.Part{
		Name:     f.FileName,
		MIMEType: mimeFor(f, kind),
		Kind:     kind,
		Data:     data,
	}
}

// Collect returns the downloaded supported files in stored order, plus the files that were skipped.
func (c *Collector) Collect(ctx context.Context, workOrderID uuid.UUID) ([]llm.Part, []Skipped, error) {
	start := time.Now()
	logger := common.LoggerFromContext(ctx, c.Logger)

	files, err := c.Files.ListByWorkOrder(ctx, workOrderID)
	if err != nil {
		return nil, nil, common.DatabaseError("failed to list work order files", err)
	}
	if len(files) == 0 {
		return nil, nil, common.NotFoundError(common.CodeFilesNotFound, "no files found for work order")
	}

	var skipped []Skipped
	type candidate struct {
		file *entity.WorkOrderFile
		kind constants.FileKind
	}
	var supported []candidate
	for _, f := range files {
		kind := Classify(f)
		if kind == constants.UNSUPPORTED {
			logger.Info("pipeline.collect.unsupported", "work_order_id", workOrderID, "file", f.FileName, "mime", f.MIMEType)
			skipped = append(skipped, Skipped{FileName: f.FileName, Reason: SkipUnsupported})
			continue
		}
		supported = append(supported, candidate{file: f, kind: kind})
	}
	if len(supported) == 0 {
		return nil, skipped, common.NewAppError(common.CodeNoSupportedFiles, "no supported files found", common.ErrInvalidInput)
	}

	results := make([]*llm.Part, len(supported))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.Concurrency)
	for i, cand := range supported {
		i, cand := i, cand
		g.Go(func() error {
			data, err := c.download(gctx, cand.file)
			if err != nil {
				// the run only fails below when nothing could be fetched
				logger.Warn("pipeline.collect.download_failed",
					"work_order_id", workOrderID,
					"file", cand.file.FileName,
					"url", cand.file.FileURL,
					"error", err,
				)
				return nil
			}
			part := newPart(cand.file, cand.kind, data)
			results[i] = &part
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, skipped, common.WrapError(err, "collect files")
	}

	parts := make([]llm.Part, 0, len(results))
	for i, p := range results {
		if p == nil {
			skipped = append(skipped, Skipped{FileName: supported[i].file.FileName, Reason: SkipDownloadFailed})
			continue
		}
		parts = append(parts, *p)
	}
	if len(parts) == 0 {
		return nil, skipped, common.NewAppError(common.CodeDownloadFailed, "failed to download any files", common.ErrInvalidInput)
	}

	logger.Info("pipeline.collect.ok",
		"work_order_id", workOrderID,
		"files", len(files),
		"parts", len(parts),
		"skipped", len(skipped),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return parts, skipped, nil
}

func (c *Collector) download(ctx context.Context, f *entity.WorkOrderFile) ([]byte, error) {
	key, err := storage.KeyFromURL(f.FileURL, c.KeyPrefix)
	if err != nil {
		return nil, err
	}
	data, err := c.Store.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("empty object")
	}
	return data, nil
}
