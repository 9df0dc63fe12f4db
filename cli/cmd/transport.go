package cmd

import (
	"context"
	"fmt"

	"github.com/pithecene-io/rpbridge/config"
	"github.com/pithecene-io/rpbridge/reporting"
	"github.com/pithecene-io/rpbridge/reporting/archive"
	"github.com/pithecene-io/rpbridge/reporting/portal"
	"github.com/pithecene-io/rpbridge/reporting/redis"
)

// newClient builds the reporting transport selected by cfg.
// cfg must have passed Validate.
func newClient(ctx context.Context, cfg *config.Config) (reporting.Client, error) {
	timeout := cfg.Transport.Timeout.Duration

	switch cfg.Transport.Type {
	case config.TransportPortal:
		return portal.New(portal.Config{
			Endpoint: cfg.Portal.Endpoint,
			Project:  cfg.Portal.Project,
			Token:    cfg.Portal.Token,
			Timeout:  timeout,
		})

	case config.TransportRedis:
		return redis.New(redis.Config{
			URL:     cfg.Redis.URL,
			Channel: cfg.Redis.Channel,
			Timeout: timeout,
		})

	case config.TransportArchive:
		acfg := archive.Config{Dataset: cfg.Archive.Dataset}
		switch cfg.Archive.Backend {
		case config.BackendFS:
			return archive.NewFS(acfg, cfg.Archive.Path)
		case config.BackendS3:
			return archive.NewS3(ctx, acfg, s3Config(cfg))
		default:
			return nil, fmt.Errorf("unknown archive backend: %s (must be s3 or fs)", cfg.Archive.Backend)
		}

	case config.TransportStub:
		return reporting.NewStubClient(), nil

	default:
		return nil, fmt.Errorf("unknown transport: %s", cfg.Transport.Type)
	}
}

func s3Config(cfg *config.Config) archive.S3Config {
	return archive.S3Config{
		Bucket:       cfg.Archive.Bucket,
		Prefix:       cfg.Archive.Prefix,
		Region:       cfg.Archive.Region,
		Endpoint:     cfg.Archive.Endpoint,
		UsePathStyle: cfg.Archive.S3PathStyle,
	}
}
