package baseimages

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/doc2md/internal/agent/baseimages"
	"github.com/feichai0017/doc2md/internal/models"
	"github.com/feichai0017/doc2md/pkg/logger"
)

type Config struct {
	// OutDir receives generated/dockerfiles/...
	OutDir        string
	ChangelogPath string
	// Parallelism bounds concurrent build and check runs. Zero means unbounded.
	Parallelism int
}

// Result is the outcome of one platform and image pair.
type Result struct {
	Image      string
	Platform   string
	Dockerfile string
	Err        error
}

type Service struct {
	set       *models.BaseImageSet
	generator *baseimages.Generator
	checker   Checker
	logger    logger.Logger
	config    Config
}

func NewService(set *models.BaseImageSet, fs afero.Fs, checker Checker, log logger.Logger, cfg Config) *Service {
	return &Service{
		set:       set,
		generator: baseimages.NewGenerator(set, fs, log),
		checker:   checker,
		logger:    log,
		config:    cfg,
	}
}

// Build writes a Dockerfile and runs the sanity checks for every platform and
// image pair. The changelog is rewritten only when every pair passes.
func (s *Service) Build(ctx context.Context) (bool, error) {
	results, err := s.Check(ctx)
	if err != nil {
		return false, err
	}

	passed := true
	for _, r := range results {
		if r.Err == nil {
			continue
		}
		passed = false
		s.logger.Error("Base image check failed",
			logger.String("image", r.Image),
			logger.String("platform", r.Platform),
			logger.Error(r.Err),
		)
	}
	if !passed {
		s.logger.Error("Some sanity checks failed, changelog not updated")
		return false, nil
	}

	if err := s.generator.WriteChangelog(s.config.ChangelogPath); err != nil {
		return false, err
	}
	s.logger.Info("All sanity checks passed, changelog updated",
		logger.String("path", s.config.ChangelogPath),
	)
	return true, nil
}

// Check runs every pair and reports per-pair results. Only a context error
// aborts the run.
func (s *Service) Check(ctx context.Context) ([]Result, error) {
	g, gctx := errgroup.WithContext(ctx)
	if s.config.Parallelism > 0 {
		g.SetLimit(s.config.Parallelism)
	}

	var mu sync.Mutex
	results := make([]Result, 0, len(s.set.Platforms)*len(s.set.Images))
	for _, platform := range s.set.Platforms {
		for _, image := range s.set.Images {
			g.Go(func() error {
				r := s.checkOne(gctx, image, platform)
				if errors.Is(r.Err, context.Canceled) || errors.Is(r.Err, context.DeadlineExceeded) {
					return r.Err
				}
				mu.Lock()
				results = append(results, r)
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) checkOne(ctx context.Context, image models.BaseImage, platform string) Result {
	r := Result{Image: s.set.NameWithTag(image), Platform: platform}

	path, err := s.generator.WriteDockerfile(s.config.OutDir, image, platform)
	if err != nil {
		r.Err = err
		return r
	}
	r.Dockerfile = path

	if err := ctx.Err(); err != nil {
		r.Err = err
		return r
	}
	r.Err = s.checker.Check(ctx, path, BuildTag(s.set.NameWithTag(image), platform), platform, image.SanityChecks)
	return r
}

// BuildTag gives each platform its own local tag so concurrent builds of one
// version never replace each other: "name:1.0.0" on linux/arm64/v8 becomes
// "name:1.0.0-linux-arm64-v8".
func BuildTag(nameWithTag, platform string) string {
	return nameWithTag + "-" + platformSuffix.Replace(platform)
}

var platformSuffix = strings.NewReplacer("/", "-", ":", "-")
