// Package project manages the on-disk workspace: uploaded images, persisted
// segmentations, label documents and patches.
package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	olimage "ortholabel/internal/image"
	"ortholabel/pkg/fsutil"
)

// ErrBadUpload is returned for uploads with a missing name or unsupported
// extension.
var ErrBadUpload = errors.New("bad upload")

// Workspace is the directory layout below a data root.
type Workspace struct {
	Root        string
	UploadsDir  string
	SegmentsDir string
	LabelsDir   string
	PatchesDir  string
}

// Open creates (if needed) the workspace directories under root.
func Open(root string) (*Workspace, error) {
	w := &Workspace{
		Root:        root,
		UploadsDir:  filepath.Join(root, "uploads"),
		SegmentsDir: filepath.Join(root, "segments"),
		LabelsDir:   filepath.Join(root, "labels"),
		PatchesDir:  filepath.Join(root, "patches"),
	}
	for _, dir := range []string{w.UploadsDir, w.SegmentsDir, w.LabelsDir, w.PatchesDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return w, nil
}

// Upload identifies a stored image.
type Upload struct {
	ImageID  string `json:"image_id"`
	Filename string `json:"filename"`
}

// SaveUpload stores an uploaded image as "<uuid>_<name>". TIFF uploads are
// additionally converted to PNG and the PNG becomes the returned filename;
// when conversion fails the original is kept and the failure is logged.
func (w *Workspace) SaveUpload(name string, r io.Reader) (Upload, error) {
	if strings.TrimSpace(name) == "" {
		return Upload{}, fmt.Errorf("%w: empty filename", ErrBadUpload)
	}
	if !olimage.IsSupportedFormat(name) {
		return Upload{}, fmt.Errorf("%w: unsupported extension %q", ErrBadUpload, filepath.Ext(name))
	}

	clean := fsutil.SanitizeFilename(filepath.Base(name))
	id := uuid.New().String()
	stored := id + "_" + clean

	err := fsutil.WriteAtomic(filepath.Join(w.UploadsDir, stored), func(dst io.Writer) error {
		_, err := io.Copy(dst, r)
		return err
	})
	if err != nil {
		return Upload{}, fmt.Errorf("failed to store upload: %w", err)
	}

	if olimage.IsTIFF(clean) {
		pngName := id + "_" + strings.TrimSuffix(clean, filepath.Ext(clean)) + ".png"
		if err := convertToPNG(filepath.Join(w.UploadsDir, stored), filepath.Join(w.UploadsDir, pngName)); err != nil {
			log.Printf("project: TIFF conversion failed for %s: %v", stored, err)
		} else {
			stored = pngName
		}
	}
	return Upload{ImageID: id, Filename: stored}, nil
}

func convertToPNG(src, dst string) error {
	img, err := olimage.Load(src)
	if err != nil {
		return err
	}
	return olimage.Save(img, dst, olimage.FormatPNG, 0)
}

// UploadPath resolves an upload filename inside the uploads directory.
// Names that would escape the directory are rejected.
func (w *Workspace) UploadPath(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || filename == "." || filename == ".." {
		return "", fmt.Errorf("%w: invalid filename %q", ErrBadUpload, filename)
	}
	return filepath.Join(w.UploadsDir, filename), nil
}

// ImageIDFromFilename returns the image id prefix of a stored upload name.
func ImageIDFromFilename(filename string) string {
	id, _, _ := strings.Cut(filepath.Base(filename), "_")
	return id
}

// LabelArrayPath returns the persisted label array of an image.
func (w *Workspace) LabelArrayPath(imageID string) string {
	return filepath.Join(w.SegmentsDir, fsutil.SanitizeFilename(imageID)+"_segments.bin")
}

// SegmentationPath returns the segmentation metadata document of an image.
func (w *Workspace) SegmentationPath(imageID string) string {
	return filepath.Join(w.SegmentsDir, fsutil.SanitizeFilename(imageID)+"_segments.json")
}

// PreviewPath returns the boundary preview image of an image.
func (w *Workspace) PreviewPath(imageID string) string {
	return filepath.Join(w.SegmentsDir, fsutil.SanitizeFilename(imageID)+"_preview.png")
}

// SaveJSON writes v as indented JSON, atomically.
func SaveJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(path, data)
}

// LoadJSON reads a JSON document into v.
func LoadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
