package models

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// BaseImageSet is every published version of one connector base image.
type BaseImageSet struct {
	ImageName string      `yaml:"image_name" json:"imageName"`
	Platforms []string    `yaml:"platforms" json:"platforms"`
	Images    []BaseImage `yaml:"images" json:"images"`
}

// BaseImage is one version of the base image.
type BaseImage struct {
	Version      string        `yaml:"version" json:"version"`
	From         string        `yaml:"from" json:"from"`
	Changelog    string        `yaml:"changelog" json:"changelog"`
	GithubURL    string        `yaml:"github_url" json:"githubUrl"`
	Env          []EnvVar      `yaml:"env,omitempty" json:"env,omitempty"`
	Run          []string      `yaml:"run,omitempty" json:"run,omitempty"`
	SanityChecks []SanityCheck `yaml:"sanity_checks,omitempty" json:"sanityChecks,omitempty"`
}

type EnvVar struct {
	Name  string `yaml:"name" json:"name"`
	Value string `yaml:"value" json:"value"`
}

// SanityCheck runs Command in a container of the image. When Expect is set
// the combined output must contain it.
type SanityCheck struct {
	Name    string   `yaml:"name" json:"name"`
	Command []string `yaml:"command" json:"command"`
	Expect  string   `yaml:"expect,omitempty" json:"expect,omitempty"`
}

// NameWithTag returns "<image>:<version>".
func (s *BaseImageSet) NameWithTag(image BaseImage) string {
	return s.ImageName + ":" + image.Version
}

func (s BaseImageSet) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.ImageName, validation.Required),
		validation.Field(&s.Platforms, validation.Required),
		validation.Field(&s.Images, validation.Required),
	)
}

func (i BaseImage) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.Version, validation.Required),
		validation.Field(&i.From, validation.Required),
		validation.Field(&i.Changelog, validation.Required),
		validation.Field(&i.GithubURL, validation.Required, is.URL),
		validation.Field(&i.SanityChecks),
	)
}

func (c SanityCheck) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.Command, validation.Required),
	)
}
