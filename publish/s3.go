package publish

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"tiff2dzi/contracts"
	"tiff2dzi/deepzoom"
	"tiff2dzi/files_manager"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
)

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Publisher uploads a finished conversion so that
// s3://<bucket>/<prefix>/<base_name>.dzi sits next to its _files tree.
type S3Publisher struct {
	client objectPutter
	bucket string
	prefix string
	log    logrus.FieldLogger
}

func NewS3Publisher(ctx context.Context, bucket, region, prefix string, log logrus.FieldLogger) (*S3Publisher, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return newS3Publisher(s3.NewFromConfig(cfg), bucket, prefix, log), nil
}

func newS3Publisher(client objectPutter, bucket, prefix string, log logrus.FieldLogger) *S3Publisher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &S3Publisher{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		log:    log.WithField("bucket", bucket),
	}
}

func (p *S3Publisher) Destination(baseName string) string {
	return fmt.Sprintf("s3://%s/%s", p.bucket, p.key(baseName+".dzi"))
}

// Publish uploads the descriptor, every tile it references and the thumbnail,
// and returns how many objects were written. It stops at the first failed
// upload.
func (p *S3Publisher) Publish(ctx context.Context, outputs contracts.OutputPaths) (int, error) {
	files, err := Artifacts(outputs)
	if err != nil {
		return 0, err
	}
	p.warnUnreferenced(outputs, files)

	uploaded := 0
	for _, file := range files {
		rel, err := filepath.Rel(outputs.OutputDir, file)
		if err != nil {
			return uploaded, fmt.Errorf("failed to resolve %s: %w", file, err)
		}
		key := p.key(filepath.ToSlash(rel))
		if err := p.upload(ctx, file, key); err != nil {
			return uploaded, err
		}
		uploaded++
	}

	p.log.WithField("objects", uploaded).Info("s3_publish_complete")
	return uploaded, nil
}

// Artifacts lists the files a published pyramid consists of: the descriptor,
// the tiles of every level it describes in level order, then the thumbnail if
// present. A referenced tile that is missing is an error.
func Artifacts(outputs contracts.OutputPaths) ([]string, error) {
	d, err := deepzoom.ReadDescriptor(outputs.Descriptor)
	if err != nil {
		return nil, fmt.Errorf("nothing to publish in %s: %w", outputs.OutputDir, err)
	}
	layout := d.Layout()

	files := []string{outputs.Descriptor}
	for _, level := range layout.Levels(d.Size.Width, d.Size.Height) {
		dir := filepath.Join(outputs.TilesDir, strconv.Itoa(level.Index))
		for row := 0; row < level.Rows; row++ {
			for col := 0; col < level.Columns; col++ {
				tile := filepath.Join(dir, layout.TileName(col, row))
				if !isFile(tile) {
					return nil, fmt.Errorf("tile %s referenced by %s is missing", tile, outputs.Descriptor)
				}
				files = append(files, tile)
			}
		}
	}
	if isFile(outputs.Thumbnail) {
		files = append(files, outputs.Thumbnail)
	}
	return files, nil
}

// warnUnreferenced reports files left in the tiles folder by an earlier,
// larger conversion of the same base name. They are never uploaded.
func (p *S3Publisher) warnUnreferenced(outputs contracts.OutputPaths, files []string) {
	onDisk, err := files_manager.ListArtifacts(outputs)
	if err != nil {
		p.log.WithField("error", err).Debug("artifact_scan_failed")
		return
	}
	if stale := len(onDisk) - len(files); stale > 0 {
		p.log.WithFields(logrus.Fields{
			"tiles_dir": outputs.TilesDir,
			"skipped":   stale,
		}).Warn("unreferenced_tiles_skipped")
	}
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func (p *S3Publisher) upload(ctx context.Context, file, key string) error {
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", file, err)
	}
	defer f.Close()

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(ContentType(file)),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	p.log.WithField("key", key).Debug("s3_object_uploaded")
	return nil
}

func (p *S3Publisher) key(rel string) string {
	if p.prefix == "" {
		return rel
	}
	return path.Join(p.prefix, rel)
}

func ContentType(file string) string {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".dzi", ".xml":
		return "application/xml"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}
