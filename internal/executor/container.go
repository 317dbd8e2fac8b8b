package executor

import (
	"context"
	"fmt"
	"os/exec"
	"path"
	"path/filepath"
	"strings"

	"github.com/alexisbeaulieu97/monorun/internal/logger"
	monoerrors "github.com/alexisbeaulieu97/monorun/pkg/errors"
)

// WorkspaceMount is where the project root is mounted inside containers.
const WorkspaceMount = "/workspace"

// Container runs scripts in a throwaway container with the project root
// mounted at WorkspaceMount.
type Container struct {
	// Root is the absolute project root.
	Root string
	// Binary is the container CLI. Defaults to "docker".
	Binary string
	Output *Output
	Log    *logger.Logger
}

var _ Executor = (*Container)(nil)

// Execute runs req.Script inside req.Image.
func (c *Container) Execute(ctx context.Context, req Request) (Outcome, error) {
	if err := validate(req); err != nil {
		return Outcome{}, monoerrors.NewExecutionError(req.NodeID, err)
	}
	if req.Image == "" {
		return Outcome{}, monoerrors.NewExecutionError(req.NodeID, fmt.Errorf("container image is required"))
	}

	args, err := c.args(req)
	if err != nil {
		return Outcome{}, monoerrors.NewExecutionError(req.NodeID, err)
	}

	cmd := exec.CommandContext(ctx, c.binary(), args...)
	cmd.Dir = c.Root

	log := c.Log
	if log == nil {
		log = logger.Nop()
	}
	log.Debug("starting container", "node", req.NodeID, "image", req.Image)

	return run(ctx, cmd, req.NodeID, c.Output, log)
}

func (c *Container) binary() string {
	if c.Binary == "" {
		return "docker"
	}
	return c.Binary
}

// args builds the "run" arguments for req. The working directory inside the
// container mirrors the service directory relative to the project root.
func (c *Container) args(req Request) ([]string, error) {
	if c.Root == "" || !filepath.IsAbs(c.Root) {
		return nil, fmt.Errorf("project root %q must be absolute", c.Root)
	}

	rel, err := filepath.Rel(c.Root, req.Dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("directory %q is outside the project root", req.Dir)
	}
	workdir := path.Join(WorkspaceMount, filepath.ToSlash(rel))

	args := []string{
		"run", "--rm",
		"-v", c.Root + ":" + WorkspaceMount,
		"-w", workdir,
	}
	for _, k := range sortedKeys(req.Env) {
		env := req.Env[k]
		if k == EnvProjectRoot {
			env = WorkspaceMount
		}
		args = append(args, "-e", k+"="+env)
	}
	args = append(args, req.Image, "sh", "-c", req.Script)
	return args, nil
}
