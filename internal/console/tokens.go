package console

import (
	"context"
	"fmt"

	"github.com/noah-isme/rbac-console/internal/session"
	"github.com/noah-isme/rbac-console/pkg/cache"
	"github.com/noah-isme/rbac-console/pkg/config"
)

// OpenTokenStore builds the token store named by CONSOLE_TOKEN_STORE. The returned
// close function is never nil.
func OpenTokenStore(ctx context.Context, cfg *config.Config) (session.TokenStore, func(), error) {
	noop := func() {}
	switch cfg.Console.TokenStore {
	case config.TokenStoreMemory:
		return session.NewMemoryTokenStore(""), noop, nil
	case config.TokenStoreRedis:
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, noop, err
		}
		return session.NewRedisTokenStore(client, cfg.Console.TokenKey), func() { _ = client.Close() }, nil
	case config.TokenStoreFile, "":
		path := cfg.Console.TokenFile
		if path == "" {
			var err error
			if path, err = session.DefaultTokenFile(); err != nil {
				return nil, noop, err
			}
		}
		return session.NewFileTokenStore(path), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown token store %q", cfg.Console.TokenStore)
	}
}
