package mods

import (
	"os"
	"path/filepath"

	"ruse/common"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// InitProject creates a new project file in the given directory with default
// build settings
func InitProject(path string) error {
	abspath, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(err, "unable to compute project path")
	}

	pfPath := filepath.Join(abspath, common.ProjectFileName)
	if _, err := os.Stat(pfPath); err == nil {
		return errors.Errorf("project file already exists at %s", pfPath)
	}

	tpf := &tomlProjectFile{
		Project: &tomlProject{
			Name:    filepath.Base(abspath),
			Version: common.RuseVersion,
		},
		Build: &tomlBuild{
			Backend: BackendC,
		},
	}

	f, err := os.Create(pfPath)
	if err != nil {
		return errors.Wrap(err, "unable to create project file")
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(tpf); err != nil {
		return errors.Wrap(err, "unable to encode project file")
	}

	return nil
}
