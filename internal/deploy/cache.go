package deploy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/danmuck/deployctl/internal/engine"
	"github.com/rs/zerolog/log"
)

// CacheDockerfile carries previously built artifacts forward into an empty
// final layer. Building it once gives later validator builds a cache source.
const CacheDockerfile = `FROM alpine:3.9
RUN mkdir /build /cpp-build /rocksdb
FROM scratch
COPY --from=0 /cpp-build /cpp-build
COPY --from=0 /rocksdb /rocksdb
COPY --from=0 /build /build
`

// DefaultCacheImages are bootstrapped before every deploy, in order.
var DefaultCacheImages = []string{"arb-avm-cpp", "arb-validator"}

// CacheBootstrapper ensures named build-cache images exist.
type CacheBootstrapper struct {
	runtime    engine.ContainerRuntime
	contextDir string
	dockerfile string
}

func NewCacheBootstrapper(runtime engine.ContainerRuntime, contextDir, dockerfile string) *CacheBootstrapper {
	if strings.TrimSpace(dockerfile) == "" {
		dockerfile = CacheDockerfile
	}
	return &CacheBootstrapper{
		runtime:    runtime,
		contextDir: contextDir,
		dockerfile: dockerfile,
	}
}

// EnsureAll bootstraps every name in order and stops at the first failure.
func (c *CacheBootstrapper) EnsureAll(ctx context.Context, names []string) error {
	for _, name := range names {
		if _, err := c.EnsureCached(ctx, name); err != nil {
			return fmt.Errorf("cache=%q: %w", name, err)
		}
	}
	return nil
}

// EnsureCached builds name from the synthetic cache context unless an image
// with that name already exists. built reports whether a build ran.
func (c *CacheBootstrapper) EnsureCached(ctx context.Context, name string) (built bool, err error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, fmt.Errorf("%w: empty cache image name", ErrInvalidRequest)
	}

	exists, err := c.runtime.ImageExists(ctx, name)
	if err != nil {
		return false, err
	}
	if exists {
		log.Debug().Str("image", name).Msg("deploy.cache hit")
		return false, nil
	}

	log.Info().Str("image", name).Str("context", c.contextDir).Msg("deploy.cache bootstrap")
	if err := os.MkdirAll(c.contextDir, 0o755); err != nil {
		return false, err
	}
	defer func() {
		if rmErr := os.RemoveAll(c.contextDir); rmErr != nil {
			log.Warn().Err(rmErr).Str("context", c.contextDir).Msg("deploy.cache context cleanup failed")
		}
	}()

	if err := os.WriteFile(filepath.Join(c.contextDir, "Dockerfile"), []byte(c.dockerfile), 0o644); err != nil {
		return false, err
	}
	if err := c.runtime.BuildImage(ctx, name, c.contextDir); err != nil {
		return false, err
	}
	return true, nil
}
