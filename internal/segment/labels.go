// Package segment holds the label array produced by a superpixel segmenter,
// its on-disk form, and the built-in SLIC segmenter.
package segment

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"ortholabel/pkg/fsutil"
	"ortholabel/pkg/geometry"
)

// blobMagic prefixes every persisted label array.
var blobMagic = [8]byte{'O', 'L', 'S', 'E', 'G', '1', 0, 0}

// ErrBadBlob is returned when a persisted label array cannot be decoded.
var ErrBadBlob = errors.New("invalid label array blob")

// LabelArray assigns a region id to every pixel of the analysis image.
// Data is row-major; 0 means unassigned, ids start at 1.
// A LabelArray is not modified after it is produced.
type LabelArray struct {
	Width  int
	Height int
	Data   []int32
}

// NewLabelArray allocates a zeroed label array.
func NewLabelArray(width, height int) *LabelArray {
	return &LabelArray{Width: width, Height: height, Data: make([]int32, width*height)}
}

// At returns the id at (x, y).
func (l *LabelArray) At(x, y int) int {
	return int(l.Data[y*l.Width+x])
}

// Max returns the largest id present, or 0 for an empty array.
func (l *LabelArray) Max() int {
	var m int32
	for _, v := range l.Data {
		if v > m {
			m = v
		}
	}
	return int(m)
}

// Count returns the number of distinct nonzero ids.
func (l *LabelArray) Count() int {
	seen := make([]bool, l.Max()+1)
	n := 0
	for _, v := range l.Data {
		if v > 0 && !seen[v] {
			seen[v] = true
			n++
		}
	}
	return n
}

// RegionBounds returns the inclusive bounding rectangle of every nonzero id,
// indexed by id. Ids with no pixels have an empty rectangle.
func (l *LabelArray) RegionBounds() []geometry.RectInt {
	bounds := make([]geometry.RectInt, l.Max()+1)
	for i := range bounds {
		bounds[i] = geometry.EmptyRect()
	}
	for y := 0; y < l.Height; y++ {
		row := l.Data[y*l.Width : (y+1)*l.Width]
		for x, v := range row {
			if v > 0 {
				bounds[v].Extend(x, y)
			}
		}
	}
	return bounds
}

// Bounds returns the inclusive bounding rectangle of a single id.
func (l *LabelArray) Bounds(id int) geometry.RectInt {
	r := geometry.EmptyRect()
	if id <= 0 {
		return r
	}
	want := int32(id)
	for y := 0; y < l.Height; y++ {
		row := l.Data[y*l.Width : (y+1)*l.Width]
		for x, v := range row {
			if v == want {
				r.Extend(x, y)
			}
		}
	}
	return r
}

// WriteTo encodes the array: magic, little-endian uint32 width and height,
// then width*height little-endian int32 ids.
func (l *LabelArray) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	cw := &countingWriter{w: bw}
	if _, err := cw.Write(blobMagic[:]); err != nil {
		return cw.n, err
	}
	if err := binary.Write(cw, binary.LittleEndian, [2]uint32{uint32(l.Width), uint32(l.Height)}); err != nil {
		return cw.n, err
	}
	if err := binary.Write(cw, binary.LittleEndian, l.Data); err != nil {
		return cw.n, err
	}
	return cw.n, bw.Flush()
}

// ReadLabelArray decodes an array written by WriteTo.
func ReadLabelArray(r io.Reader) (*LabelArray, error) {
	br := bufio.NewReader(r)
	var magic [8]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadBlob, err)
	}
	if !bytes.Equal(magic[:], blobMagic[:]) {
		return nil, fmt.Errorf("%w: bad magic", ErrBadBlob)
	}
	var dims [2]uint32
	if err := binary.Read(br, binary.LittleEndian, &dims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadBlob, err)
	}
	w, h := int(dims[0]), int(dims[1])
	if w <= 0 || h <= 0 || uint64(w)*uint64(h) > 1<<30 {
		return nil, fmt.Errorf("%w: dimensions %dx%d", ErrBadBlob, w, h)
	}
	l := NewLabelArray(w, h)
	if err := binary.Read(br, binary.LittleEndian, l.Data); err != nil {
		return nil, fmt.Errorf("%w: truncated data: %v", ErrBadBlob, err)
	}
	if _, err := br.ReadByte(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data", ErrBadBlob)
	}
	return l, nil
}

// Save writes the array to path atomically.
func (l *LabelArray) Save(path string) error {
	err := fsutil.WriteAtomic(path, func(w io.Writer) error {
		_, err := l.WriteTo(w)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to write label array: %w", err)
	}
	return nil
}

// Load reads a label array from path.
func Load(path string) (*LabelArray, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadLabelArray(f)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
