// Package project locates a project on disk and caches the service and
// recipe configuration loaded from it.
package project

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/alexisbeaulieu97/monorun/internal/config"
	"github.com/alexisbeaulieu97/monorun/internal/logger"
	"github.com/alexisbeaulieu97/monorun/internal/service"
	monoerrors "github.com/alexisbeaulieu97/monorun/pkg/errors"
)

const (
	// ServicesDir holds one directory per service.
	ServicesDir = "srv"
	// RecipesDir holds one file per recipe.
	RecipesDir = "rcp"
)

// RepositoryInspector reports files changed since a revision, relative to the project root.
type RepositoryInspector interface {
	ChangedPaths(ctx context.Context, since string) ([]string, error)
}

// Project is a loaded project configuration plus lazily populated caches of
// its services and recipes. It is safe for concurrent use.
type Project struct {
	Root   string
	Config *config.Project

	inspector RepositoryInspector
	log       *logger.Logger

	loads    singleflight.Group
	mu       sync.RWMutex
	services map[string]*service.Service
	recipes  map[string]*config.Recipe
}

// Open loads <root>/monorun.yaml. The inspector may be nil, in which case
// change detection is unavailable.
func Open(root string, inspector RepositoryInspector, log *logger.Logger) (*Project, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}

	cfg, err := config.LoadProject(filepath.Join(abs, config.FileName))
	if err != nil {
		return nil, err
	}

	log.Debug("project loaded", "project", cfg.Name, "root", abs, "steps", len(cfg.Steps))

	return &Project{
		Root:      abs,
		Config:    cfg,
		inspector: inspector,
		log:       log,
		services:  make(map[string]*service.Service),
		recipes:   make(map[string]*config.Recipe),
	}, nil
}

// ServicesRoot returns the directory scanned for services.
func (p *Project) ServicesRoot() string {
	return filepath.Join(p.Root, ServicesDir)
}

// ServiceDir returns the directory of a service.
func (p *Project) ServiceDir(name string) string {
	return filepath.Join(p.ServicesRoot(), filepath.FromSlash(name))
}

// RecipePath returns the file holding a recipe.
func (p *Project) RecipePath(name string) string {
	return filepath.Join(p.Root, RecipesDir, name+config.RecipeExt)
}

// ServiceName converts a service directory into its slash separated name.
func (p *Project) ServiceName(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(p.ServicesRoot(), abs)
	if err != nil {
		return "", err
	}
	name := filepath.ToSlash(rel)
	if name == "." || strings.HasPrefix(name, "../") || name == ".." {
		return "", fmt.Errorf("%s is not inside %s", dir, p.ServicesRoot())
	}
	if !config.IsServiceName(name) {
		return "", monoerrors.NewValidationError("service", fmt.Sprintf("invalid service name %q", name), nil)
	}
	return name, nil
}

// GetRecipe returns a recipe, loading it on first use.
func (p *Project) GetRecipe(name string) (*config.Recipe, error) {
	p.mu.RLock()
	cached, ok := p.recipes[name]
	p.mu.RUnlock()
	if ok {
		return cached, nil
	}

	v, err, _ := p.loads.Do("recipe:"+name, func() (any, error) {
		p.mu.RLock()
		cached, ok := p.recipes[name]
		p.mu.RUnlock()
		if ok {
			return cached, nil
		}

		recipe, err := config.LoadRecipe(p.RecipePath(name))
		if err != nil {
			return nil, err
		}

		p.mu.Lock()
		p.recipes[name] = recipe
		p.mu.Unlock()

		p.log.Debug("recipe loaded", "recipe", name)
		return recipe, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*config.Recipe), nil
}

// GetRecipes returns recipes in the given order. Every recipe without a file
// is reported together in a single MissingRecipeError.
func (p *Project) GetRecipes(names []string) ([]*config.Recipe, error) {
	recipes := make([]*config.Recipe, 0, len(names))
	var missing []string

	for _, name := range names {
		recipe, err := p.GetRecipe(name)
		if err != nil {
			var notFound *monoerrors.NotFoundError
			if errors.As(err, &notFound) {
				missing = append(missing, name)
				continue
			}
			return nil, err
		}
		recipes = append(recipes, recipe)
	}

	if len(missing) > 0 {
		return nil, monoerrors.NewMissingRecipeError(missing)
	}
	return recipes, nil
}

// GetService returns a resolved service, loading and resolving it on first use.
func (p *Project) GetService(name string) (*service.Service, error) {
	p.mu.RLock()
	cached, ok := p.services[name]
	p.mu.RUnlock()
	if ok {
		return cached, nil
	}

	v, err, _ := p.loads.Do("service:"+name, func() (any, error) {
		p.mu.RLock()
		cached, ok := p.services[name]
		p.mu.RUnlock()
		if ok {
			return cached, nil
		}

		svc, err := p.loadService(name)
		if err != nil {
			return nil, err
		}

		p.mu.Lock()
		p.services[name] = svc
		p.mu.Unlock()
		return svc, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*service.Service), nil
}

func (p *Project) loadService(name string) (*service.Service, error) {
	if !config.IsServiceName(name) {
		return nil, monoerrors.NewValidationError("service", fmt.Sprintf("invalid service name %q", name), nil)
	}

	cfg, err := config.LoadService(filepath.Join(p.ServiceDir(name), config.FileName))
	if err != nil {
		return nil, err
	}

	recipes, err := p.GetRecipes(cfg.Recipes)
	if err != nil {
		return nil, fmt.Errorf("service %s: %w", name, err)
	}

	svc, err := service.Resolve(p.Config.Steps, name, cfg, recipes)
	if err != nil {
		return nil, err
	}
	svc.Dir = p.ServiceDir(name)

	p.log.Debug("service resolved", "service", name, "steps", len(svc.Steps), "recipes", len(recipes))
	return svc, nil
}

// ScanServices walks the services directory and returns every service name,
// sorted. A directory holding a configuration file is a service and is not
// descended further. Hidden directories are ignored.
func (p *Project) ScanServices(ctx context.Context) ([]string, error) {
	root := p.ServicesRoot()
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, monoerrors.NewReadError(root, err)
	}

	var names []string
	err := filepath.WalkDir(root, func(current string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if current != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}

		if _, err := os.Stat(filepath.Join(current, config.FileName)); err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if current == root {
			return nil
		}

		name, err := p.ServiceName(current)
		if err != nil {
			return err
		}
		names = append(names, name)
		return filepath.SkipDir
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(names)
	return names, nil
}

// GetAllServices scans the project and resolves every service in parallel.
func (p *Project) GetAllServices(ctx context.Context) ([]*service.Service, error) {
	names, err := p.ScanServices(ctx)
	if err != nil {
		return nil, err
	}

	services := make([]*service.Service, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			svc, err := p.GetService(name)
			if err != nil {
				return err
			}
			services[i] = svc
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return services, nil
}

// ChangedServices returns the names of services owning at least one file
// changed since the given revision, sorted.
func (p *Project) ChangedServices(ctx context.Context, since string) ([]string, error) {
	if p.inspector == nil {
		return nil, errors.New("change detection requires a git repository")
	}

	paths, err := p.inspector.ChangedPaths(ctx, since)
	if err != nil {
		return nil, err
	}

	names, err := p.ScanServices(ctx)
	if err != nil {
		return nil, err
	}

	changed := ownersOf(paths, names)
	p.log.Debug("changed services detected", "since", since, "paths", len(paths), "services", changed)
	return changed, nil
}

// ownersOf maps slash separated project-relative paths to the service with
// the longest matching name.
func ownersOf(paths, services []string) []string {
	byLength := append([]string(nil), services...)
	sort.SliceStable(byLength, func(i, j int) bool { return len(byLength[i]) > len(byLength[j]) })

	seen := make(map[string]struct{})
	for _, p := range paths {
		rest, ok := strings.CutPrefix(path.Clean(p), ServicesDir+"/")
		if !ok {
			continue
		}
		for _, name := range byLength {
			if rest == name || strings.HasPrefix(rest, name+"/") {
				seen[name] = struct{}{}
				break
			}
		}
	}

	owners := make([]string, 0, len(seen))
	for name := range seen {
		owners = append(owners, name)
	}
	sort.Strings(owners)
	return owners
}
