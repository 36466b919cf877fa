package storage

import (
	"context"
	"fmt"

	"github.com/oceanvince/mangxia/config"
)

// NewImageStore picks the image backend named by IMAGE_STORE.
func NewImageStore(ctx context.Context, cfg *config.Config) (ImageStore, error) {
	switch cfg.ImageStore {
	case "", "local":
		return NewLocalStore(cfg.UploadDir)
	case "s3":
		awsCfg, err := config.LoadAWS(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return NewS3Store(NewS3Client(awsCfg), cfg.S3Bucket, cfg.S3Prefix)
	default:
		return nil, fmt.Errorf("unsupported IMAGE_STORE %q", cfg.ImageStore)
	}
}
