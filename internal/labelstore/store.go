// Package labelstore records which label a user assigned to each region of an
// image, along with the cropped source patch backing that label.
package labelstore

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	olimage "ortholabel/internal/image"
	"ortholabel/internal/mapping"
	"ortholabel/internal/patch"
	"ortholabel/pkg/fsutil"
)

// Unlabeled is the label value that clears a region's record.
const Unlabeled = "unlabeled"

// ErrInvalidInput is returned for empty ids or labels and negative regions.
var ErrInvalidInput = errors.New("invalid label request")

// Record is the stored label of one region.
type Record struct {
	Label     string       `json:"label"`
	PatchPath string       `json:"patch_path"`
	BBox      mapping.BBox `json:"bbox"`
	TS        int64        `json:"ts"`
	User      string       `json:"user"`
}

// Document holds every record of one image keyed by decimal region id.
type Document map[string]Record

// Backend persists label documents. Update must run fn with exclusive access
// to the image's document and persist the document only when fn succeeds.
type Backend interface {
	Load(ctx context.Context, imageID string) (Document, error)
	Update(ctx context.Context, imageID string, fn func(Document) error) error
	Close() error
}

// Options configures a Store.
type Options struct {
	PatchFormat olimage.Format // Encoding of saved patches
	DefaultUser string         // Recorded when a request has no user
}

// DefaultOptions returns PNG patches attributed to "web_user".
func DefaultOptions() Options {
	return Options{
		PatchFormat: olimage.FormatPNG,
		DefaultUser: "web_user",
	}
}

// SetRequest describes one labeling action.
type SetRequest struct {
	ImageID  string
	RegionID int
	Label    string
	BBox     mapping.BBox
	Patch    image.Image
	User     string
}

// Store applies labeling actions to a Backend and manages patch files under
// a patch root directory.
type Store struct {
	backend  Backend
	patchDir string
	opts     Options
	now      func() time.Time
}

// New creates a Store writing patches below patchDir.
func New(backend Backend, patchDir string, opts Options) *Store {
	if opts.PatchFormat == "" {
		opts.PatchFormat = olimage.FormatPNG
	}
	if opts.DefaultUser == "" {
		opts.DefaultUser = DefaultOptions().DefaultUser
	}
	return &Store{backend: backend, patchDir: patchDir, opts: opts, now: time.Now}
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// SetLabel records req.Label for the region, replacing any previous record.
// The patch is written before the document is persisted; a previous patch at
// a different path is removed afterwards. The label "unlabeled" removes the
// record instead and returns a zero Record.
func (s *Store) SetLabel(ctx context.Context, req SetRequest) (Record, error) {
	if err := validate(req.ImageID, req.RegionID); err != nil {
		return Record{}, err
	}
	if strings.TrimSpace(req.Label) == "" {
		return Record{}, fmt.Errorf("%w: empty label", ErrInvalidInput)
	}
	if req.Label == Unlabeled {
		return Record{}, s.RemoveLabel(ctx, req.ImageID, req.RegionID)
	}
	if req.Patch == nil {
		return Record{}, fmt.Errorf("%w: missing patch", ErrInvalidInput)
	}

	user := req.User
	if user == "" {
		user = s.opts.DefaultUser
	}
	rec := Record{
		Label:     req.Label,
		PatchPath: s.patchPath(req.ImageID, req.Label, req.RegionID),
		BBox:      req.BBox,
		TS:        s.now().Unix(),
		User:      user,
	}
	key := strconv.Itoa(req.RegionID)

	var stale string
	err := s.backend.Update(ctx, req.ImageID, func(doc Document) error {
		if err := patch.WriteFile(req.Patch, rec.PatchPath, s.opts.PatchFormat); err != nil {
			return fmt.Errorf("failed to write patch: %w", err)
		}
		if old, ok := doc[key]; ok && old.PatchPath != rec.PatchPath {
			stale = old.PatchPath
		}
		doc[key] = rec
		return nil
	})
	if err != nil {
		return Record{}, err
	}

	if stale != "" {
		removePatch(stale)
	}
	return rec, nil
}

// RemoveLabel deletes the region's record if present and removes its patch.
func (s *Store) RemoveLabel(ctx context.Context, imageID string, regionID int) error {
	if err := validate(imageID, regionID); err != nil {
		return err
	}
	key := strconv.Itoa(regionID)

	var stale string
	err := s.backend.Update(ctx, imageID, func(doc Document) error {
		if old, ok := doc[key]; ok {
			stale = old.PatchPath
			delete(doc, key)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if stale != "" {
		removePatch(stale)
	}
	return nil
}

// Labels returns the current document for an image, empty if none exists.
func (s *Store) Labels(ctx context.Context, imageID string) (Document, error) {
	if imageID == "" {
		return nil, fmt.Errorf("%w: empty image id", ErrInvalidInput)
	}
	return s.backend.Load(ctx, imageID)
}

func (s *Store) patchPath(imageID, label string, regionID int) string {
	return filepath.Join(s.patchDir, fsutil.SanitizeFilename(imageID), fsutil.SanitizeFilename(label),
		strconv.Itoa(regionID)+s.opts.PatchFormat.Ext())
}

func validate(imageID string, regionID int) error {
	if imageID == "" {
		return fmt.Errorf("%w: empty image id", ErrInvalidInput)
	}
	if regionID < 0 {
		return fmt.Errorf("%w: negative region id %d", ErrInvalidInput, regionID)
	}
	return nil
}

func removePatch(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("labelstore: failed to remove patch %s: %v", path, err)
	}
}
