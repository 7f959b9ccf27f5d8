package vectorize

import (
	"encoding/json"
	"reflect"
	"testing"

	"ortholabel/internal/segment"
	"ortholabel/pkg/geometry"
)

// fillRect sets an inclusive rectangle of labels to id.
func fillRect(l *segment.LabelArray, id int32, minX, minY, maxX, maxY int) {
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			l.Data[y*l.Width+x] = id
		}
	}
}

func TestVectorizeSquare(t *testing.T) {
	labels := segment.NewLabelArray(40, 40)
	fillRect(labels, 1, 10, 10, 19, 19)

	res, err := Vectorize(labels, DefaultOptions())
	if err != nil {
		t.Fatalf("Vectorize failed: %v", err)
	}
	if res.RegionCount != 1 {
		t.Errorf("Expected 1 region, got %d", res.RegionCount)
	}
	poly, ok := res.Polygons[1]
	if !ok {
		t.Fatal("Expected polygon for region 1")
	}
	want := []geometry.PointInt{{X: 10, Y: 10}, {X: 19, Y: 10}, {X: 19, Y: 19}, {X: 10, Y: 19}}
	if !reflect.DeepEqual(poly.Points, want) {
		t.Errorf("Expected %v, got %v", want, poly.Points)
	}
}

func TestVectorizeKeepsLargestFragment(t *testing.T) {
	labels := segment.NewLabelArray(30, 30)
	fillRect(labels, 1, 2, 2, 11, 11)
	fillRect(labels, 1, 20, 20, 22, 22)

	res, err := Vectorize(labels, DefaultOptions())
	if err != nil {
		t.Fatalf("Vectorize failed: %v", err)
	}
	if res.RegionCount != 1 {
		t.Errorf("Expected 1 region, got %d", res.RegionCount)
	}
	poly, ok := res.Polygons[1]
	if !ok {
		t.Fatal("Expected polygon for region 1")
	}
	for _, p := range poly.Points {
		if p.X < 2 || p.X > 11 || p.Y < 2 || p.Y > 11 {
			t.Errorf("Vertex %v lies outside the larger fragment", p)
		}
	}
	want := []geometry.PointInt{{X: 2, Y: 2}, {X: 11, Y: 2}, {X: 11, Y: 11}, {X: 2, Y: 11}}
	if !reflect.DeepEqual(poly.Points, want) {
		t.Errorf("Expected %v, got %v", want, poly.Points)
	}
}

func TestVectorizeSkipsTinyRegions(t *testing.T) {
	labels := segment.NewLabelArray(20, 20)
	fillRect(labels, 1, 2, 2, 12, 12)
	labels.Data[18*20+18] = 2 // single pixel

	res, err := Vectorize(labels, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if res.RegionCount != 2 {
		t.Errorf("Expected RegionCount 2, got %d", res.RegionCount)
	}
	if _, ok := res.Polygons[2]; ok {
		t.Error("Expected single pixel region to be skipped")
	}
	if _, ok := res.Polygons[1]; !ok {
		t.Error("Expected region 1 to be vectorized")
	}
}

func TestVectorizeIgnoresMissingIDs(t *testing.T) {
	labels := segment.NewLabelArray(30, 10)
	fillRect(labels, 1, 0, 0, 9, 9)
	fillRect(labels, 5, 20, 0, 29, 9)

	res, err := Vectorize(labels, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if res.RegionCount != 2 {
		t.Errorf("Expected 2 regions, got %d", res.RegionCount)
	}
	sorted := res.Sorted()
	if len(sorted) != 2 || sorted[0].ID != 1 || sorted[1].ID != 5 {
		t.Errorf("Unexpected sorted ids: %+v", sorted)
	}
}

// stripes builds a label array of irregular interlocking regions.
func stripes(w, h int) *segment.LabelArray {
	l := segment.NewLabelArray(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			band := (x + (y/3)%4) / 7
			l.Data[y*w+x] = int32(band + 1 + 10*(y/15))
		}
	}
	return l
}

func TestVectorizePolygonInvariants(t *testing.T) {
	res, err := Vectorize(stripes(60, 45), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Polygons) == 0 {
		t.Fatal("Expected polygons")
	}
	for id, p := range res.Polygons {
		if p.ID != id {
			t.Errorf("Polygon keyed %d has id %d", id, p.ID)
		}
		if len(p.Points) < 3 {
			t.Errorf("Region %d has %d vertices", id, len(p.Points))
		}
		for i := range p.Points {
			if p.Points[i] == p.Points[(i+1)%len(p.Points)] {
				t.Errorf("Region %d has duplicate consecutive vertex %v", id, p.Points[i])
			}
		}
	}
}

func TestVectorizeDeterministicAcrossWorkers(t *testing.T) {
	labels := stripes(60, 45)

	serial := DefaultOptions()
	serial.Workers = 1
	a, err := Vectorize(labels, serial)
	if err != nil {
		t.Fatal(err)
	}

	parallel := DefaultOptions()
	parallel.Workers = 8
	for run := 0; run < 3; run++ {
		b, err := Vectorize(labels, parallel)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(a.Sorted(), b.Sorted()) {
			t.Fatalf("Run %d differs from serial output", run)
		}
	}
}

func TestVectorizeProgress(t *testing.T) {
	labels := stripes(40, 30)
	opts := DefaultOptions()
	var calls, lastDone, lastTotal int
	opts.Progress = func(done, total int) {
		calls++
		lastDone, lastTotal = done, total
	}
	res, err := Vectorize(labels, opts)
	if err != nil {
		t.Fatal(err)
	}
	if calls != res.RegionCount || lastDone != lastTotal || lastTotal != res.RegionCount {
		t.Errorf("Unexpected progress: calls=%d done=%d total=%d regions=%d", calls, lastDone, lastTotal, res.RegionCount)
	}
}

func TestVectorizeInvalidInput(t *testing.T) {
	if _, err := Vectorize(nil, DefaultOptions()); err == nil {
		t.Error("Expected error for nil labels")
	}
	bad := &segment.LabelArray{Width: 3, Height: 3, Data: make([]int32, 4)}
	if _, err := Vectorize(bad, DefaultOptions()); err == nil {
		t.Error("Expected error for short data")
	}
}

func TestPolygonJSON(t *testing.T) {
	p := Polygon{ID: 7, Points: []geometry.PointInt{{X: 1, Y: 2}, {X: 3, Y: 4}, {X: 5, Y: 6}}}
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"id":7,"polygon":[[1,2],[3,4],[5,6]]}`
	if string(data) != want {
		t.Errorf("Expected %s, got %s", want, data)
	}
}

func BenchmarkVectorize(b *testing.B) {
	labels := stripes(512, 512)
	opts := DefaultOptions()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Vectorize(labels, opts); err != nil {
			b.Fatal(err)
		}
	}
}
