package mods

import (
	"os"
	"path/filepath"

	"ruse/common"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// Enumeration of supported backends
const (
	BackendC    = "c"
	BackendLLVM = "llvm"
)

// tomlProjectFile represents the project file as it is encoded in TOML
type tomlProjectFile struct {
	Project *tomlProject `toml:"project"`
	Build   *tomlBuild   `toml:"build"`
}

// tomlProject represents a ruse project as it is encoded in TOML
type tomlProject struct {
	Name    string `toml:"name"`
	Version string `toml:"ruse-version"`
}

// tomlBuild represents the build settings as they are encoded in TOML
type tomlBuild struct {
	Backend    string `toml:"backend"`
	OutputPath string `toml:"output,omitempty"`
	Debug      bool   `toml:"debug"`
}

// Project is a validated, deserialized ruse project
type Project struct {
	// Name is the project name from the project file
	Name string

	// ProjectRoot is the directory enclosing the project file
	ProjectRoot string

	// Backend selects the code generator: `c` or `llvm`
	Backend string

	// OutputPath is where generated code is written
	OutputPath string

	Debug bool
}

// LoadProject loads and validates the project file in a directory
func LoadProject(path string) (*Project, error) {
	buff, err := os.ReadFile(filepath.Join(path, common.ProjectFileName))
	if err != nil {
		return nil, errors.Wrap(err, "unable to open project file")
	}

	tpf := &tomlProjectFile{}
	if err := toml.Unmarshal(buff, tpf); err != nil {
		return nil, errors.Wrap(err, "malformed project file")
	}

	proj := &Project{ProjectRoot: path}
	if err := validateProject(proj, tpf); err != nil {
		return nil, err
	}

	return proj, nil
}

// DefaultProject builds the project configuration used when compiling a bare
// source file with no project file around it
func DefaultProject(srcPath string) *Project {
	base := srcPath[:len(srcPath)-len(filepath.Ext(srcPath))]
	return &Project{
		Name:        filepath.Base(base),
		ProjectRoot: filepath.Dir(srcPath),
		Backend:     BackendC,
		OutputPath:  base + ".c",
	}
}

// validateProject checks the project file contents and moves them over to the
// final Project
func validateProject(proj *Project, tpf *tomlProjectFile) error {
	if tpf.Project == nil || tpf.Project.Name == "" {
		return errors.Errorf("missing project name for project at %s", proj.ProjectRoot)
	}
	proj.Name = tpf.Project.Name

	proj.Backend = BackendC
	if tpf.Build != nil {
		switch tpf.Build.Backend {
		case "", BackendC:
			proj.Backend = BackendC
		case BackendLLVM:
			proj.Backend = BackendLLVM
		default:
			return errors.Errorf("unknown backend '%s'", tpf.Build.Backend)
		}

		proj.OutputPath = tpf.Build.OutputPath
		proj.Debug = tpf.Build.Debug
	}

	if proj.OutputPath == "" {
		ext := ".c"
		if proj.Backend == BackendLLVM {
			ext = ".ll"
		}
		proj.OutputPath = filepath.Join(proj.ProjectRoot, proj.Name+ext)
	}

	return nil
}
