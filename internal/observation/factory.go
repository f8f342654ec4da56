package observation

import (
	"context"
	"fmt"

	"github.com/bbernstein/baroalt/backend-go/internal/archive"
	"github.com/bbernstein/baroalt/backend-go/internal/cache"
	"github.com/bbernstein/baroalt/backend-go/internal/catalog"
	"github.com/bbernstein/baroalt/backend-go/internal/config"
	"github.com/bbernstein/baroalt/backend-go/internal/station"
	"github.com/bbernstein/baroalt/backend-go/pkg/http/client"
	"github.com/rs/zerolog/log"
)

const breakerName = "dwd-opendata"

// ServiceFactory builds a fully wired Service.
type ServiceFactory interface {
	NewService(ctx context.Context, cfg *config.Config, cacheCfg *config.CacheConfig) (*Service, error)
}

// DefaultServiceFactory wires the DWD client, the response cache with its
// optional S3 tier and one resolver per period with the optional DynamoDB tier.
type DefaultServiceFactory struct{}

func (f *DefaultServiceFactory) NewService(ctx context.Context, cfg *config.Config, cacheCfg *config.CacheConfig) (*Service, error) {
	opts := client.Options{Timeout: cfg.HTTPTimeout}
	if cacheCfg.EnableBreaker {
		opts.BreakerName = breakerName
	}
	httpClient := client.New(opts)

	var cacheOpts []cache.Option
	if cacheCfg.EnableS3Cache {
		s3Client, err := cache.NewS3Client(ctx)
		if err != nil {
			return nil, fmt.Errorf("initializing S3 client: %w", err)
		}
		cacheOpts = append(cacheOpts, cache.WithArchiveStore(
			cache.NewS3ArchiveCache(s3Client, cacheCfg.ArchiveBucket, cacheCfg.GetResponseTTL()),
		))
	}

	cachingClient, err := cache.NewCachingClient(httpClient, cacheCfg, cacheOpts...)
	if err != nil {
		return nil, fmt.Errorf("initializing response cache: %w", err)
	}

	resolverOpts := []catalog.Option{catalog.WithTTL(cfg.CatalogTTL)}
	if cacheCfg.EnableDynamoCache {
		dynamoClient, err := cache.NewDynamoClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("initializing DynamoDB client: %w", err)
		}
		resolverOpts = append(resolverOpts, catalog.WithStore(
			cache.NewDynamoSnapshotStore(dynamoClient, cacheCfg.SnapshotTable, cfg.CatalogTTL),
		))
	}

	log.Debug().
		Str("base_url", cfg.DWDBaseURL).
		Dur("catalog_ttl", cfg.CatalogTTL).
		Bool("s3", cacheCfg.EnableS3Cache).
		Bool("dynamo", cacheCfg.EnableDynamoCache).
		Msg("Wiring observation service")

	return NewService(
		archive.NewFetcher(cachingClient),
		station.NewLocator(),
		catalog.NewResolver(catalog.Hourly, cfg.DWDBaseURL, cachingClient, resolverOpts...),
		catalog.NewResolver(catalog.TenMinutes, cfg.DWDBaseURL, cachingClient, resolverOpts...),
	), nil
}
