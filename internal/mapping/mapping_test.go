package mapping

import (
	"encoding/json"
	"errors"
	"testing"

	"ortholabel/internal/segment"
)

func square(w, h int, id int32, minX, minY, maxX, maxY int) *segment.LabelArray {
	l := segment.NewLabelArray(w, h)
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			l.Data[y*w+x] = id
		}
	}
	return l
}

func TestMapRegionToSourceBBox(t *testing.T) {
	labels := square(100, 100, 1, 10, 10, 19, 19)
	sc := ScaleContext{AnalysisWidth: 100, AnalysisHeight: 100, SourceWidth: 200, SourceHeight: 200}

	got, err := MapRegionToSourceBBox(labels, 1, sc, DefaultPad)
	if err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	want := BBox{XMin: 12, YMin: 12, XMax: 46, YMax: 46}
	if got != want {
		t.Errorf("Expected %+v, got %+v", want, got)
	}
}

func TestMapClampsToSource(t *testing.T) {
	tests := []struct {
		name string
		box  [4]int
		sc   ScaleContext
		pad  int
	}{
		{"corner", [4]int{0, 0, 2, 2}, ScaleContext{50, 50, 100, 100}, 8},
		{"far edge", [4]int{45, 45, 49, 49}, ScaleContext{50, 50, 100, 100}, 8},
		{"anisotropic", [4]int{0, 40, 49, 49}, ScaleContext{50, 50, 75, 333}, 20},
		{"downscale", [4]int{10, 10, 20, 20}, ScaleContext{50, 50, 25, 25}, 1},
		{"huge pad", [4]int{20, 20, 21, 21}, ScaleContext{50, 50, 100, 100}, 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			labels := square(50, 50, 3, tt.box[0], tt.box[1], tt.box[2], tt.box[3])
			got, err := MapRegionToSourceBBox(labels, 3, tt.sc, tt.pad)
			if err != nil {
				t.Fatal(err)
			}
			if got.XMin < 0 || got.YMin < 0 || got.XMax > tt.sc.SourceWidth-1 || got.YMax > tt.sc.SourceHeight-1 {
				t.Errorf("Box %+v escapes source %dx%d", got, tt.sc.SourceWidth, tt.sc.SourceHeight)
			}
			if got.XMin > got.XMax || got.YMin > got.YMax {
				t.Errorf("Box %+v has min > max", got)
			}
		})
	}
}

func TestMapNegativePad(t *testing.T) {
	labels := square(10, 10, 1, 2, 2, 4, 4)
	sc := ScaleContext{10, 10, 10, 10}
	got, err := MapRegionToSourceBBox(labels, 1, sc, -5)
	if err != nil {
		t.Fatal(err)
	}
	if got != (BBox{2, 2, 4, 4}) {
		t.Errorf("Expected unpadded box, got %+v", got)
	}
}

func TestMapRegionNotFound(t *testing.T) {
	labels := square(10, 10, 1, 0, 0, 3, 3)
	sc := ScaleContext{10, 10, 20, 20}
	for _, id := range []int{0, 2, 99, -1} {
		_, err := MapRegionToSourceBBox(labels, id, sc, 8)
		if !errors.Is(err, ErrRegionNotFound) {
			t.Errorf("Region %d: expected ErrRegionNotFound, got %v", id, err)
		}
	}
}

func TestMapInvalidScaleContext(t *testing.T) {
	labels := square(10, 10, 1, 0, 0, 3, 3)
	if _, err := MapRegionToSourceBBox(labels, 1, ScaleContext{0, 10, 20, 20}, 8); err == nil {
		t.Error("Expected error for zero analysis width")
	}
}

func TestBBoxJSON(t *testing.T) {
	data, err := json.Marshal(BBox{1, 2, 3, 4})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[1,2,3,4]" {
		t.Errorf("Unexpected JSON %s", data)
	}
	var b BBox
	if err := json.Unmarshal([]byte("[5,6,7,8]"), &b); err != nil {
		t.Fatal(err)
	}
	if b != (BBox{5, 6, 7, 8}) {
		t.Errorf("Unexpected box %+v", b)
	}
	if b.Width() != 3 || b.Height() != 3 {
		t.Errorf("Unexpected size %dx%d", b.Width(), b.Height())
	}
}
