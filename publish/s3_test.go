package publish

import (
	"context"
	"errors"
	"image"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"tiff2dzi/deepzoom"
	"tiff2dzi/files_manager"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
)

type fakePutter struct {
	objects  map[string]string
	types    map[string]string
	failOn   string
	failures int
}

func newFakePutter() *fakePutter {
	return &fakePutter{objects: map[string]string{}, types: map[string]string{}}
}

func (f *fakePutter) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	key := aws.ToString(params.Key)
	if key == f.failOn {
		f.failures++
		return nil, errors.New("access denied")
	}
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.objects[key] = string(body)
	f.types[key] = aws.ToString(params.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	return log
}

func writePyramid(t *testing.T, paths files_manager.OutputPaths, width, height int) {
	t.Helper()
	if err := os.MkdirAll(paths.OutputDir, 0755); err != nil {
		t.Fatal(err)
	}
	img := image.NewGray(image.Rect(0, 0, width, height))
	if _, err := deepzoom.NewPyramid(deepzoom.DefaultLayout(), quietLogger()).Write(context.Background(), img, paths.Base); err != nil {
		t.Fatalf("pyramid write failed: %v", err)
	}
}

// writeArtifacts produces a 2x1 pyramid (levels 0 and 1, one tile each) and a
// thumbnail.
func writeArtifacts(t *testing.T, dir string) files_manager.OutputPaths {
	t.Helper()
	paths := files_manager.OutputPathsFor(dir, "nasa")
	writePyramid(t, paths, 2, 1)
	if err := os.WriteFile(paths.Thumbnail, []byte("thumb"), 0644); err != nil {
		t.Fatal(err)
	}
	return paths
}

func TestPublish(t *testing.T) {
	dir := t.TempDir()
	paths := writeArtifacts(t, dir)
	// unrelated files in the output dir are not published
	if err := os.WriteFile(filepath.Join(dir, "other.dzi"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	putter := newFakePutter()
	p := newS3Publisher(putter, "gallery", "/images/", quietLogger())

	n, err := p.Publish(context.Background(), paths)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if n != 4 {
		t.Errorf("expected 4 uploads, got %d", n)
	}

	keys := make([]string, 0, len(putter.objects))
	for k := range putter.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	want := []string{
		"images/nasa-thumb.jpg",
		"images/nasa.dzi",
		"images/nasa_files/0/0_0.jpg",
		"images/nasa_files/1/0_0.jpg",
	}
	if len(keys) != len(want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("key %d = %s, want %s", i, keys[i], want[i])
		}
	}
	if putter.types["images/nasa.dzi"] != "application/xml" {
		t.Errorf("descriptor content type = %s", putter.types["images/nasa.dzi"])
	}
	if putter.types["images/nasa_files/0/0_0.jpg"] != "image/jpeg" {
		t.Errorf("tile content type = %s", putter.types["images/nasa_files/0/0_0.jpg"])
	}
	if !strings.Contains(putter.objects["images/nasa.dzi"], `<Size Width="2" Height="1"`) {
		t.Errorf("descriptor body not uploaded intact:\n%s", putter.objects["images/nasa.dzi"])
	}
}

func TestPublishStopsOnFailure(t *testing.T) {
	paths := writeArtifacts(t, t.TempDir())
	putter := newFakePutter()
	putter.failOn = "nasa_files/0/0_0.jpg"

	n, err := newS3Publisher(putter, "gallery", "", quietLogger()).Publish(context.Background(), paths)
	if err == nil {
		t.Fatal("expected upload error")
	}
	if n != 1 {
		t.Errorf("expected 1 object before the failure, got %d", n)
	}
	if putter.failures != 1 {
		t.Errorf("failed upload must not be retried, got %d attempts", putter.failures)
	}
}

func TestPublishSkipsUnreferencedTiles(t *testing.T) {
	dir := t.TempDir()
	paths := files_manager.OutputPathsFor(dir, "page")
	writePyramid(t, paths, 600, 300)
	writePyramid(t, paths, 40, 20)
	if err := os.WriteFile(paths.Thumbnail, []byte("thumb"), 0644); err != nil {
		t.Fatal(err)
	}

	putter := newFakePutter()
	n, err := newS3Publisher(putter, "gallery", "", quietLogger()).Publish(context.Background(), paths)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	// 40x20 has levels 0..6 with one tile each, plus descriptor and thumbnail
	if n != 9 || len(putter.objects) != 9 {
		t.Errorf("expected 9 uploads, got %d (%d objects)", n, len(putter.objects))
	}
	for key := range putter.objects {
		for _, level := range []string{"/7/", "/8/", "/9/", "/10/"} {
			if strings.Contains(key, level) {
				t.Errorf("tile from the earlier 600x300 pyramid uploaded: %s", key)
			}
		}
	}
	if _, ok := putter.objects["page_files/6/0_0.jpg"]; !ok {
		t.Error("full resolution tile of the current pyramid not uploaded")
	}
}

func TestPublishMissingTile(t *testing.T) {
	paths := writeArtifacts(t, t.TempDir())
	if err := os.Remove(filepath.Join(paths.TilesDir, "1", "0_0.jpg")); err != nil {
		t.Fatal(err)
	}

	putter := newFakePutter()
	n, err := newS3Publisher(putter, "gallery", "", quietLogger()).Publish(context.Background(), paths)
	if err == nil {
		t.Fatal("expected error for a tile missing from the pyramid")
	}
	if n != 0 || len(putter.objects) != 0 {
		t.Errorf("nothing may be uploaded from an incomplete pyramid, got %d objects", len(putter.objects))
	}
}

func TestPublishNothing(t *testing.T) {
	paths := files_manager.OutputPathsFor(t.TempDir(), "missing")
	if _, err := newS3Publisher(newFakePutter(), "gallery", "", quietLogger()).Publish(context.Background(), paths); err == nil {
		t.Error("expected error when there is nothing to publish")
	}
}

func TestDestination(t *testing.T) {
	p := newS3Publisher(newFakePutter(), "gallery", "deep/zoom", quietLogger())
	if got := p.Destination("nasa"); got != "s3://gallery/deep/zoom/nasa.dzi" {
		t.Errorf("Destination = %s", got)
	}
	p = newS3Publisher(newFakePutter(), "gallery", "", quietLogger())
	if got := p.Destination("nasa"); got != "s3://gallery/nasa.dzi" {
		t.Errorf("Destination without prefix = %s", got)
	}
}

func TestContentType(t *testing.T) {
	cases := map[string]string{
		"a.dzi": "application/xml",
		"b.JPG": "image/jpeg",
		"c.png": "image/png",
		"d.bin": "application/octet-stream",
		"noext": "application/octet-stream",
	}
	for file, want := range cases {
		if got := ContentType(file); got != want {
			t.Errorf("ContentType(%q) = %q, want %q", file, got, want)
		}
	}
}
