package baseimages

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/feichai0017/doc2md/internal/models"
	"github.com/feichai0017/doc2md/pkg/logger"
)

const DockerfileHeader = `
# This file is generated by the baseimages command. Please do not edit it manually.
# It is not used by the connector build process.
# It is meant for documentation and debugging purposes.
`

const dockerfileTemplate = `FROM --platform={{ .Platform }} {{ .Image.From }}
{{- range .Image.Env }}
ENV {{ .Name }}={{ .Value }}
{{- end }}
{{- range .Image.Run }}
RUN {{ . }}
{{- end }}
LABEL io.doc2md.base_image={{ .NameWithTag }}`

type Generator struct {
	set        *models.BaseImageSet
	fs         afero.Fs
	dockerfile *template.Template
	logger     logger.Logger
}

func NewGenerator(set *models.BaseImageSet, fs afero.Fs, log logger.Logger) *Generator {
	return &Generator{
		set:        set,
		fs:         fs,
		dockerfile: template.Must(template.New("dockerfile").Parse(dockerfileTemplate)),
		logger:     log,
	}
}

// LoadDefinitions decodes and validates a YAML base image set.
func LoadDefinitions(r io.Reader) (*models.BaseImageSet, error) {
	var set models.BaseImageSet
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&set); err != nil {
		return nil, fmt.Errorf("failed to decode base image definitions: %w", err)
	}
	if err := set.Validate(); err != nil {
		return nil, fmt.Errorf("invalid base image definitions: %w", err)
	}
	return &set, nil
}

// RenderDockerfile renders the Dockerfile body for image on platform.
func (g *Generator) RenderDockerfile(image models.BaseImage, platform string) (string, error) {
	var buf bytes.Buffer
	err := g.dockerfile.Execute(&buf, struct {
		Image       models.BaseImage
		Platform    string
		NameWithTag string
	}{image, platform, g.set.NameWithTag(image)})
	if err != nil {
		return "", fmt.Errorf("failed to render dockerfile: %w", err)
	}
	return buf.String(), nil
}

// DockerfilePath is <outDir>/generated/dockerfiles/<platform>/<name:tag>.Dockerfile.
func (g *Generator) DockerfilePath(outDir string, image models.BaseImage, platform string) string {
	return filepath.Join(outDir, "generated", "dockerfiles", filepath.FromSlash(platform), g.set.NameWithTag(image)+".Dockerfile")
}

// WriteDockerfile renders and writes the Dockerfile, returning its path.
func (g *Generator) WriteDockerfile(outDir string, image models.BaseImage, platform string) (string, error) {
	body, err := g.RenderDockerfile(image, platform)
	if err != nil {
		return "", err
	}

	path := g.DockerfilePath(outDir, image, platform)
	if err := g.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := afero.WriteFile(g.fs, path, []byte(DockerfileHeader+"\n"+body+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("failed to write dockerfile: %w", err)
	}

	g.logger.Info("Generated Dockerfile",
		logger.String("image", g.set.NameWithTag(image)),
		logger.String("platform", platform),
		logger.String("path", path),
	)
	return path, nil
}

// RenderChangelog renders one table row per version, in definition order.
func (g *Generator) RenderChangelog() string {
	rows := [][2]string{{"Version", "Changelog"}}
	for _, image := range g.set.Images {
		rows = append(rows, [2]string{
			fmt.Sprintf("[%s](%s)", image.Version, image.GithubURL),
			escapeCell(image.Changelog),
		})
	}

	width := [2]int{}
	for _, row := range rows {
		for i, cell := range row {
			width[i] = max(width[i], len(cell))
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Changelog for %s\n\n", g.set.ImageName)
	for n, row := range rows {
		fmt.Fprintf(&b, "| %-*s | %-*s |\n", width[0], row[0], width[1], row[1])
		if n == 0 {
			fmt.Fprintf(&b, "|%s|%s|\n", strings.Repeat("-", width[0]+2), strings.Repeat("-", width[1]+2))
		}
	}
	return b.String()
}

// WriteChangelog writes RenderChangelog to path.
func (g *Generator) WriteChangelog(path string) error {
	if err := g.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := afero.WriteFile(g.fs, path, []byte(g.RenderChangelog()), 0o644); err != nil {
		return fmt.Errorf("failed to write changelog: %w", err)
	}
	return nil
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}
