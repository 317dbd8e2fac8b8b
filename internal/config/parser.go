package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	monoerrors "github.com/alexisbeaulieu97/monorun/pkg/errors"
)

// FileName is the name of both the project and the service configuration files.
const FileName = "monorun.yaml"

// RecipeExt is appended to a recipe name to form its file name.
const RecipeExt = ".yaml"

var yamlLineRegex = regexp.MustCompile(`line (\d+)`)

// Load reads and decodes a YAML document into T. It reports NotFoundError,
// ReadError or ParseError and performs no semantic validation.
func Load[T any](path string) (*T, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, monoerrors.NewNotFoundError(path)
		}
		return nil, monoerrors.NewReadError(path, err)
	}
	if info.IsDir() {
		return nil, monoerrors.NewNotFoundError(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, monoerrors.NewReadError(path, err)
	}

	var out T
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, monoerrors.NewParseError(path, extractLine(err), err)
	}

	return &out, nil
}

// LoadProject loads and validates a project configuration file.
func LoadProject(path string) (*Project, error) {
	cfg, err := Load[Project](path)
	if err != nil {
		return nil, err
	}
	if err := ValidateProject(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadService loads and validates a service configuration file.
func LoadService(path string) (*Service, error) {
	cfg, err := Load[Service](path)
	if err != nil {
		return nil, err
	}
	if err := ValidateService(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadRecipe loads and validates a recipe configuration file.
func LoadRecipe(path string) (*Recipe, error) {
	cfg, err := Load[Recipe](path)
	if err != nil {
		return nil, err
	}
	if err := ValidateRecipe(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func extractLine(err error) int {
	if err == nil {
		return 0
	}

	matches := yamlLineRegex.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		return 0
	}

	var line int
	_, scanErr := fmt.Sscanf(matches[1], "%d", &line)
	if scanErr != nil {
		return 0
	}

	return line
}
