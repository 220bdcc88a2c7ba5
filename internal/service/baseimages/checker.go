package baseimages

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/feichai0017/doc2md/internal/models"
	"github.com/feichai0017/doc2md/pkg/logger"
)

// SanityCheckError reports a check whose command failed or whose output did
// not contain the expected text.
type SanityCheckError struct {
	Image    string
	Platform string
	Check    string
	Output   string
	Err      error
}

func (e *SanityCheckError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sanity check %q failed for %s (%s): %v", e.Check, e.Image, e.Platform, e.Err)
	}
	return fmt.Sprintf("sanity check %q failed for %s (%s): unexpected output %q", e.Check, e.Image, e.Platform, e.Output)
}

func (e *SanityCheckError) Unwrap() error { return e.Err }

// Checker builds a Dockerfile and runs the image's sanity checks against it.
type Checker interface {
	Check(ctx context.Context, dockerfile, tag, platform string, checks []models.SanityCheck) error
}

// DockerChecker drives the docker CLI.
type DockerChecker struct {
	binary string
	logger logger.Logger
}

func NewDockerChecker(binary string, log logger.Logger) *DockerChecker {
	if binary == "" {
		binary = "docker"
	}
	return &DockerChecker{binary: binary, logger: log}
}

func (c *DockerChecker) Check(ctx context.Context, dockerfile, tag, platform string, checks []models.SanityCheck) error {
	if _, err := c.run(ctx, "build", "--platform", platform, "-f", dockerfile, "-t", tag, filepath.Dir(dockerfile)); err != nil {
		return fmt.Errorf("failed to build %s for %s: %w", tag, platform, err)
	}

	for _, check := range checks {
		args := append([]string{"run", "--rm", "--platform", platform, tag}, check.Command...)
		output, err := c.run(ctx, args...)
		if err != nil {
			return &SanityCheckError{Image: tag, Platform: platform, Check: check.Name, Output: output, Err: err}
		}
		if check.Expect != "" && !strings.Contains(output, check.Expect) {
			return &SanityCheckError{Image: tag, Platform: platform, Check: check.Name, Output: output}
		}
		c.logger.Debug("Sanity check passed",
			logger.String("image", tag),
			logger.String("platform", platform),
			logger.String("check", check.Name),
		)
	}
	return nil
}

func (c *DockerChecker) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, c.binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return string(output), fmt.Errorf("%s %s: %w\noutput: %s", c.binary, args[0], err, output)
	}
	return string(output), nil
}
