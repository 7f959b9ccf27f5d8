// Package app wires segmentation, vectorization, region descriptors and the
// label store into the operations exposed by the HTTP API and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	goimage "image"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"ortholabel/internal/config"
	"ortholabel/internal/features"
	olimage "ortholabel/internal/image"
	"ortholabel/internal/labelstore"
	"ortholabel/internal/mapping"
	"ortholabel/internal/patch"
	"ortholabel/internal/project"
	"ortholabel/internal/segment"
	"ortholabel/internal/vectorize"
	"ortholabel/internal/worker"
	"ortholabel/pkg/fsutil"
)

var (
	// ErrInvalidInput is returned for malformed requests.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned when an image or its segmentation is missing.
	ErrNotFound = errors.New("not found")
)

// cacheSize bounds how many segmentations are kept in memory.
const cacheSize = 4

// Service implements the labeling workflow.
type Service struct {
	cfg       *config.Config
	ws        *project.Workspace
	segmenter segment.Segmenter
	store     *labelstore.Store
	pool      *worker.Pool

	mu        sync.RWMutex
	cache     map[string]*segmentation
	order     []string
	listeners map[EventType][]EventListener
}

// segmentation is the labeling context of one image.
type segmentation struct {
	labels        *segment.LabelArray
	scale         mapping.ScaleContext
	imageFilename string

	srcMu sync.Mutex
	src   goimage.Image
}

// New creates a Service from already constructed parts.
func New(cfg *config.Config, ws *project.Workspace, segmenter segment.Segmenter, store *labelstore.Store) *Service {
	return &Service{
		cfg:       cfg,
		ws:        ws,
		segmenter: segmenter,
		store:     store,
		pool:      worker.NewPool(cfg.Server.LabelWorkers),
		cache:     make(map[string]*segmentation),
		listeners: make(map[EventType][]EventListener),
	}
}

// Open builds a Service from configuration: the workspace under
// storage.data_dir, the built-in SLIC segmenter and a file or PostgreSQL
// label backend.
func Open(ctx context.Context, cfg *config.Config) (*Service, error) {
	ws, err := project.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, err
	}

	var backend labelstore.Backend
	if cfg.Store.PostgresURL != "" {
		backend, err = labelstore.NewPostgresBackend(ctx, cfg.Store.PostgresURL)
	} else {
		backend, err = labelstore.NewFileBackend(ws.LabelsDir)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open label store: %w", err)
	}

	format, err := olimage.ParseFormat(cfg.Labels.PatchFormat)
	if err != nil {
		backend.Close()
		return nil, err
	}
	store := labelstore.New(backend, ws.PatchesDir, labelstore.Options{
		PatchFormat: format,
		DefaultUser: cfg.Labels.DefaultUser,
	})
	return New(cfg, ws, segment.NewSLIC(), store), nil
}

// Close stops the labeling workers and releases the label store.
func (s *Service) Close() error {
	s.pool.Close()
	return s.store.Close()
}

// Workspace returns the service's workspace.
func (s *Service) Workspace() *project.Workspace {
	return s.ws
}

// Upload stores an uploaded image.
func (s *Service) Upload(name string, r io.Reader) (project.Upload, error) {
	up, err := s.ws.SaveUpload(name, r)
	if err != nil {
		if errors.Is(err, project.ErrBadUpload) {
			return project.Upload{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return project.Upload{}, err
	}
	s.Emit(EventUploaded, up)
	return up, nil
}

// SegmentRequest selects an uploaded image and optional parameters.
type SegmentRequest struct {
	ImageFilename string
	NSegments     int     // 0 uses the configured default
	Compactness   float64 // 0 uses the configured default

	// Progress is forwarded to the vectorizer.
	Progress func(done, total int)
}

// SegmentResult is the segmentation payload returned to clients and
// persisted as the image's segmentation document.
type SegmentResult struct {
	ImageID       string                         `json:"image_id"`
	ImageFilename string                         `json:"image_filename"`
	OrigShape     [3]int                         `json:"orig_shape"`
	SegShape      [3]int                         `json:"seg_shape"`
	Scale         float64                        `json:"scale"`
	ScaleContext  mapping.ScaleContext           `json:"scale_context"`
	RegionCount   int                            `json:"region_count"`
	NSegments     int                            `json:"n_segments"`
	Polygons      []vectorize.Polygon            `json:"polygons"`
	Features      map[int]features.RegionFeature `json:"features"`
}

// Segment runs segmentation, vectorization and descriptor extraction on an
// uploaded image and persists the label array, the payload and a preview.
func (s *Service) Segment(ctx context.Context, req SegmentRequest) (*SegmentResult, error) {
	if req.ImageFilename == "" {
		return nil, fmt.Errorf("%w: image_filename required", ErrInvalidInput)
	}
	path, err := s.ws.UploadPath(req.ImageFilename)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if !fsutil.FileExists(path) {
		return nil, fmt.Errorf("%w: image %s", ErrNotFound, req.ImageFilename)
	}

	src, err := olimage.Load(path)
	if err != nil {
		return nil, err
	}
	origW, origH := src.Bounds().Dx(), src.Bounds().Dy()
	analysis := segment.Downscale(src, s.cfg.Segment.MaxDim)
	segW, segH := analysis.Bounds().Dx(), analysis.Bounds().Dy()
	raster := olimage.FromImage(analysis)

	params := segment.Params{
		NSegments:   s.cfg.Segment.NSegments,
		Compactness: s.cfg.Segment.Compactness,
		Iterations:  s.cfg.Segment.Iterations,
	}
	if req.NSegments > 0 {
		params = params.WithNSegments(req.NSegments)
	}
	if req.Compactness > 0 {
		params = params.WithCompactness(req.Compactness)
	}

	labels, err := s.segmenter.Segment(ctx, raster, params)
	if err != nil {
		return nil, fmt.Errorf("segmentation failed: %w", err)
	}

	vopts := vectorize.Options{
		EpsilonFactor:    s.cfg.Vectorize.EpsilonFactor,
		EpsilonMin:       s.cfg.Vectorize.EpsilonMin,
		MinContourPoints: s.cfg.Vectorize.MinContourPoints,
		Workers:          s.cfg.Vectorize.Workers,
		Progress:         req.Progress,
	}
	polys, err := vectorize.Vectorize(labels, vopts)
	if err != nil {
		return nil, err
	}
	feats, err := features.Extract(raster, labels)
	if err != nil {
		return nil, err
	}

	imageID := project.ImageIDFromFilename(req.ImageFilename)
	sc := mapping.ScaleContext{
		AnalysisWidth:  segW,
		AnalysisHeight: segH,
		SourceWidth:    origW,
		SourceHeight:   origH,
	}
	result := &SegmentResult{
		ImageID:       imageID,
		ImageFilename: req.ImageFilename,
		OrigShape:     [3]int{origH, origW, 3},
		SegShape:      [3]int{segH, segW, 3},
		Scale:         float64(segW) / float64(origW),
		ScaleContext:  sc,
		RegionCount:   polys.RegionCount,
		NSegments:     labels.Max(),
		Polygons:      polys.Sorted(),
		Features:      feats,
	}

	if err := labels.Save(s.ws.LabelArrayPath(imageID)); err != nil {
		return nil, err
	}
	if err := project.SaveJSON(s.ws.SegmentationPath(imageID), result); err != nil {
		return nil, fmt.Errorf("failed to save segmentation: %w", err)
	}
	if err := olimage.Save(segment.Preview(analysis, labels), s.ws.PreviewPath(imageID), olimage.FormatPNG, 0); err != nil {
		log.Printf("app: failed to write preview for %s: %v", imageID, err)
	}

	seg := &segmentation{labels: labels, scale: sc, imageFilename: req.ImageFilename}
	if segW == origW && segH == origH {
		seg.src = src
	}
	s.remember(imageID, seg)
	s.Emit(EventSegmented, result)
	return result, nil
}

// LabelRequest assigns a label to one region.
type LabelRequest struct {
	ImageID  string
	RegionID int
	Label    string
	User     string
}

// LabelResult reports the outcome of a labeling request.
type LabelResult struct {
	Status    string `json:"status"`
	PatchPath string `json:"patch_path,omitempty"`
}

// SaveLabel maps the region to source resolution, crops its patch and
// records the label. The label "unlabeled" removes the region's record.
// Requests run on the bounded labeling pool.
func (s *Service) SaveLabel(ctx context.Context, req LabelRequest) (LabelResult, error) {
	if req.ImageID == "" || strings.TrimSpace(req.Label) == "" {
		return LabelResult{}, fmt.Errorf("%w: image_id and label required", ErrInvalidInput)
	}

	var result LabelResult
	err := s.pool.Submit(ctx, func(ctx context.Context) error {
		seg, err := s.segmentation(req.ImageID)
		if err != nil {
			return err
		}
		box, err := mapping.MapRegionToSourceBBox(seg.labels, req.RegionID, seg.scale, s.cfg.Labels.Pad)
		if err != nil {
			return err
		}

		if req.Label == labelstore.Unlabeled {
			if err := s.store.RemoveLabel(ctx, req.ImageID, req.RegionID); err != nil {
				return err
			}
			result = LabelResult{Status: "removed"}
			s.Emit(EventLabelRemoved, req)
			return nil
		}

		src, err := s.source(seg)
		if err != nil {
			return err
		}
		crop, err := patch.Crop(src, box)
		if err != nil {
			return err
		}
		rec, err := s.store.SetLabel(ctx, labelstore.SetRequest{
			ImageID:  req.ImageID,
			RegionID: req.RegionID,
			Label:    req.Label,
			BBox:     box,
			Patch:    crop,
			User:     req.User,
		})
		if err != nil {
			return err
		}
		result = LabelResult{Status: "ok", PatchPath: rec.PatchPath}
		s.Emit(EventLabelSaved, rec)
		return nil
	})
	if errors.Is(err, labelstore.ErrInvalidInput) {
		return LabelResult{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return result, err
}

// Labels returns the label document of an image.
func (s *Service) Labels(ctx context.Context, imageID string) (labelstore.Document, error) {
	if imageID == "" {
		return nil, fmt.Errorf("%w: image id required", ErrInvalidInput)
	}
	return s.store.Labels(ctx, imageID)
}

// segmentation returns the cached labeling context or loads it from disk.
func (s *Service) segmentation(imageID string) (*segmentation, error) {
	s.mu.RLock()
	seg, ok := s.cache[imageID]
	s.mu.RUnlock()
	if ok {
		return seg, nil
	}

	labels, err := segment.Load(s.ws.LabelArrayPath(imageID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: no segmentation for %s", ErrNotFound, imageID)
	}
	if err != nil {
		return nil, err
	}

	var meta struct {
		ImageFilename string               `json:"image_filename"`
		ScaleContext  mapping.ScaleContext `json:"scale_context"`
	}
	if err := project.LoadJSON(s.ws.SegmentationPath(imageID), &meta); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: no segmentation for %s", ErrNotFound, imageID)
		}
		return nil, fmt.Errorf("failed to read segmentation: %w", err)
	}
	if meta.ScaleContext.AnalysisWidth != labels.Width || meta.ScaleContext.AnalysisHeight != labels.Height {
		return nil, fmt.Errorf("segmentation for %s is inconsistent with its label array", imageID)
	}

	seg = &segmentation{labels: labels, scale: meta.ScaleContext, imageFilename: meta.ImageFilename}
	s.remember(imageID, seg)
	return seg, nil
}

// source returns the decoded source image of a segmentation. Only a
// successful decode is cached; failures are retried on the next call.
func (s *Service) source(seg *segmentation) (goimage.Image, error) {
	seg.srcMu.Lock()
	defer seg.srcMu.Unlock()
	if seg.src != nil {
		return seg.src, nil
	}

	path, err := s.ws.UploadPath(seg.imageFilename)
	if err != nil {
		return nil, err
	}
	if !fsutil.FileExists(path) {
		return nil, fmt.Errorf("%w: source image %s", ErrNotFound, seg.imageFilename)
	}
	img, err := olimage.Load(path)
	if err != nil {
		return nil, err
	}
	seg.src = img
	return img, nil
}

func (s *Service) remember(imageID string, seg *segmentation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cache[imageID]; !ok {
		s.order = append(s.order, imageID)
	}
	s.cache[imageID] = seg
	for len(s.order) > cacheSize {
		delete(s.cache, s.order[0])
		s.order = s.order[1:]
	}
}
