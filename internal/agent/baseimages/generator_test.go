package baseimages

import (
	"os"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/doc2md/internal/models"
	"github.com/feichai0017/doc2md/pkg/logger"
)

const definitions = `
image_name: python-connector-base
platforms: [linux/amd64, linux/arm64]
images:
  - version: 1.0.0
    from: docker.io/python:3.9.18-slim-bookworm
    changelog: Initial release
    github_url: https://github.com/example/base/pull/1
    env:
      - {name: PIP_CACHE_DIR, value: /custom_cache/pip}
    run:
      - pip install --upgrade pip==23.2.1
    sanity_checks:
      - name: python version
        command: [python, --version]
        expect: Python 3.9.18
  - version: 1.1.0
    from: docker.io/python:3.9.18-slim-bookworm
    changelog: Add | pipes
    github_url: https://github.com/example/base/pull/2
`

func loadSet(t *testing.T) *models.BaseImageSet {
	t.Helper()
	set, err := LoadDefinitions(strings.NewReader(definitions))
	require.NoError(t, err)
	return set
}

func TestLoadDefinitions(t *testing.T) {
	set := loadSet(t)
	assert.Equal(t, "python-connector-base", set.ImageName)
	assert.Equal(t, []string{"linux/amd64", "linux/arm64"}, set.Platforms)
	require.Len(t, set.Images, 2)
	assert.Equal(t, []string{"python", "--version"}, set.Images[0].SanityChecks[0].Command)
	assert.Equal(t, "python-connector-base:1.1.0", set.NameWithTag(set.Images[1]))
}

func TestLoadDefinitionsValidates(t *testing.T) {
	_, err := LoadDefinitions(strings.NewReader("image_name: x\nplatforms: [linux/amd64]\nimages:\n  - version: 1.0.0\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid base image definitions")

	_, err = LoadDefinitions(strings.NewReader("image_name: x\nunknown: 1\n"))
	assert.Error(t, err)
}

func TestRenderDockerfile(t *testing.T) {
	set := loadSet(t)
	g := NewGenerator(set, afero.NewMemMapFs(), logger.NewNop())

	got, err := g.RenderDockerfile(set.Images[0], "linux/arm64")
	require.NoError(t, err)
	assert.Equal(t, `FROM --platform=linux/arm64 docker.io/python:3.9.18-slim-bookworm
ENV PIP_CACHE_DIR=/custom_cache/pip
RUN pip install --upgrade pip==23.2.1
LABEL io.doc2md.base_image=python-connector-base:1.0.0`, got)
}

func TestWriteDockerfile(t *testing.T) {
	set := loadSet(t)
	fs := afero.NewMemMapFs()
	g := NewGenerator(set, fs, logger.NewNop())

	path, err := g.WriteDockerfile("/repo", set.Images[1], "linux/amd64")
	require.NoError(t, err)
	assert.Equal(t, "/repo/generated/dockerfiles/linux/amd64/python-connector-base:1.1.0.Dockerfile", path)

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	content := string(data)
	assert.True(t, strings.HasPrefix(content, DockerfileHeader+"\nFROM --platform=linux/amd64 "))
	assert.True(t, strings.HasSuffix(content, "python-connector-base:1.1.0\n"))
}

func TestRenderChangelog(t *testing.T) {
	g := NewGenerator(loadSet(t), afero.NewMemMapFs(), logger.NewNop())

	want := "# Changelog for python-connector-base\n\n" +
		"| Version                                         | Changelog       |\n" +
		"|-------------------------------------------------|-----------------|\n" +
		"| [1.0.0](https://github.com/example/base/pull/1) | Initial release |\n" +
		"| [1.1.0](https://github.com/example/base/pull/2) | Add \\| pipes    |\n"
	assert.Equal(t, want, g.RenderChangelog())
}

func TestShippedDefinitionsAreValid(t *testing.T) {
	f, err := os.Open("../../../config/baseimages/python-connector-base.yaml")
	require.NoError(t, err)
	defer f.Close()

	set, err := LoadDefinitions(f)
	require.NoError(t, err)
	assert.NotEmpty(t, set.Images)
}
