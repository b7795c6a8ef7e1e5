package backup

import (
	"bytes"
	"context"

	"amulet-controlplane/pkg/config"
	"amulet-controlplane/pkg/errutil"

	"github.com/minio/minio-go/v7"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Uploader ships rendered snapshots to object storage. Nil client means
// uploads are disabled and Upload is a logged no-op.
type Uploader struct {
	client *minio.Client
	bucket string
}

type UploaderParams struct {
	fx.In
	Config *config.Config
	Minio  *minio.Client `optional:"true"`
}

func NewUploader(p UploaderParams) *Uploader {
	return &Uploader{client: p.Minio, bucket: p.Config.Minio.BucketName}
}

func (u *Uploader) Enabled() bool {
	return u.client != nil && u.bucket != ""
}

func (u *Uploader) Upload(ctx context.Context, export *Export) error {
	if !u.Enabled() {
		zap.L().Debug("snapshot upload skipped, object storage not configured")
		return nil
	}

	_, err := u.client.PutObject(ctx, u.bucket, export.Filename,
		bytes.NewReader(export.Data), int64(len(export.Data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return errutil.Internal("failed to upload snapshot", errutil.WithErr(err))
	}

	zap.L().Info("snapshot uploaded",
		zap.String("bucket", u.bucket),
		zap.String("object", export.Filename),
		zap.Int("bytes", len(export.Data)))
	return nil
}
