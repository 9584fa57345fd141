// Package catalog reads study space definitions from YAML seed files.
package catalog

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/example/studyspace/internal/application"
)

type file struct {
	Resources []entry `yaml:"resources"`
}

type entry struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Location    string `yaml:"location"`
	Capacity    int    `yaml:"capacity"`
	Type        string `yaml:"type"`
	PowerOutlet bool   `yaml:"power_outlet"`
	QuietZone   bool   `yaml:"quiet_zone"`
	Active      *bool  `yaml:"active"`
}

// Decode parses every YAML document in r. Each document holds a resources
// list; resources are active unless marked otherwise. Unknown keys are errors.
func Decode(r io.Reader) ([]application.Resource, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	var resources []application.Resource
	for doc := 1; ; doc++ {
		var f file
		err := decoder.Decode(&f)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("catalog document %d: %w", doc, err)
		}
		for _, e := range f.Resources {
			resources = append(resources, e.resource())
		}
	}
	return resources, nil
}

// LoadFile decodes the catalog stored at path.
func LoadFile(path string) ([]application.Resource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

func (e entry) resource() application.Resource {
	active := true
	if e.Active != nil {
		active = *e.Active
	}
	return application.Resource{
		ID:          e.ID,
		Name:        e.Name,
		Location:    e.Location,
		Capacity:    e.Capacity,
		Type:        e.Type,
		PowerOutlet: e.PowerOutlet,
		QuietZone:   e.QuietZone,
		Active:      active,
	}
}
