package run

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/monorun/internal/events"
	"github.com/alexisbeaulieu97/monorun/internal/executor"
	"github.com/alexisbeaulieu97/monorun/internal/logger"
	"github.com/alexisbeaulieu97/monorun/internal/model"
	monoerrors "github.com/alexisbeaulieu97/monorun/pkg/errors"
)

var projectFiles = map[string]string{
	"monorun.yaml": `name: shop
options:
  container_image: golang:1.25
  workers: 3
steps:
  build: {}
  test:
    depends_on: [build]
  lint:
    on_changed: check_first
`,
	"rcp/go.yaml": "steps:\n  build:\n    run: go build ./...\n  test:\n    run: go test ./...\n",
	"srv/lib/monorun.yaml": "recipes: [go]\n",
	"srv/api/monorun.yaml": `recipes: [go]
steps:
  build:
    depends_on: [lib]
  lint:
    check: git diff --quiet
    run: golangci-lint run
`,
	"srv/web/monorun.yaml": "steps:\n  build:\n    run: npm run build\n",
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, contents := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(contents), 0o644))
	}
}

// newProject writes the fixture into a fresh git repository.
func newProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeTree(t, root, projectFiles)
	_, err := git.PlainInit(root, false)
	require.NoError(t, err)
	return root
}

func commitAll(t *testing.T, root string) {
	t.Helper()
	repo, err := git.PlainOpen(root)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, wt.AddWithOptions(&git.AddOptions{All: true}))
	_, err = wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "Monorun Test", Email: "monorun@test", When: time.Now()},
	})
	require.NoError(t, err)
}

// fakeExecutor records requests and fails the nodes listed in codes.
type fakeExecutor struct {
	mu       sync.Mutex
	requests []executor.Request
	codes    map[string]int
}

func (f *fakeExecutor) Execute(_ context.Context, req executor.Request) (executor.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return executor.Outcome{ExitCode: f.codes[req.NodeID]}, nil
}

func (f *fakeExecutor) nodes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.requests))
	for _, req := range f.requests {
		ids = append(ids, req.NodeID)
	}
	sort.Strings(ids)
	return ids
}

func TestServiceRunTargetsWithDependencies(t *testing.T) {
	t.Parallel()

	root := newProject(t)
	fake := &fakeExecutor{}
	svc := NewService(Options{Executor: fake})

	prepared, result, err := svc.Run(context.Background(), Request{
		Root:    root,
		Targets: []string{"test:api"},
		RunDeps: true,
	})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, 3, prepared.Workers)
	require.Equal(t, []string{"build:api", "build:lib", "test:api"}, prepared.Set.IDs())
	require.Equal(t, []string{"build:api", "build:lib", "test:api"}, fake.nodes())

	var build executor.Request
	for _, req := range fake.requests {
		if req.NodeID == "build:lib" {
			build = req
		}
	}
	require.Equal(t, "go build ./...", build.Script)
	require.Equal(t, "golang:1.25", build.Image)
	require.Equal(t, filepath.Join(prepared.Project.Root, "srv", "lib"), build.Dir)
	require.Equal(t, "build:lib", build.Env[executor.EnvNode])
	require.Equal(t, "lib", build.Env[executor.EnvService])
	require.Equal(t, "build", build.Env[executor.EnvStep])
	require.Equal(t, prepared.Project.Root, build.Env[executor.EnvProjectRoot])
}

func TestServiceRunPropagatesFailures(t *testing.T) {
	t.Parallel()

	root := newProject(t)
	fake := &fakeExecutor{codes: map[string]int{"build:lib": 1}}
	bus := events.NewBus(logger.Nop())

	var finished []string
	var mu sync.Mutex
	bus.Subscribe(events.NodeFinished, func(_ context.Context, e events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		finished = append(finished, e.NodeID)
		return nil
	})

	svc := NewService(Options{Executor: fake, Bus: bus})
	require.Same(t, bus, svc.Bus())

	_, result, err := svc.Run(context.Background(), Request{
		Root:     root,
		Targets:  []string{"build:lib"},
		RunRDeps: true,
		Workers:  2,
	})
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, []string{"build:lib"}, result.Failed())
	require.Equal(t, []string{"build:api", "test:api", "test:lib"}, result.Skipped())
	require.Equal(t, []string{"build:lib"}, fake.nodes())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, finished, 4)
}

func TestServicePrepareRejectsUnknownTarget(t *testing.T) {
	t.Parallel()

	_, err := NewService(Options{}).Prepare(context.Background(), Request{
		Root:    newProject(t),
		Targets: []string{"deploy:api"},
	})
	var validationErr *monoerrors.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestServiceRequiresRepository(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, projectFiles)
	fake := &fakeExecutor{}
	svc := NewService(Options{Executor: fake})

	_, _, err := svc.Run(context.Background(), Request{Root: root, Targets: []string{"web"}})
	var repoErr *monoerrors.RepositoryError
	require.ErrorAs(t, err, &repoErr)
	require.Empty(t, fake.nodes())

	_, _, err = svc.Load(context.Background(), root)
	require.ErrorAs(t, err, &repoErr)

	_, err = svc.Prepare(context.Background(), Request{Root: root, ChangedSince: "HEAD"})
	require.ErrorAs(t, err, &repoErr)
}

func TestServiceChangedSinceSelectsChangedServices(t *testing.T) {
	t.Parallel()

	root := newProject(t)
	commitAll(t, root)

	writeTree(t, root, map[string]string{"srv/api/main.go": "package main\n"})

	prepared, err := NewService(Options{}).Prepare(context.Background(), Request{
		Root:         root,
		ChangedSince: "HEAD",
	})
	require.NoError(t, err)
	require.Equal(t, []string{"api"}, prepared.Changed)
	require.Equal(t, []string{"build:api", "lint:api", "test:api"}, prepared.Set.IDs())
	require.Equal(t, model.ModeCheckThenRun, prepared.Set.Items["lint:api"].Mode)
	require.Equal(t, 3, prepared.Plan.Len())
}

func TestServiceLoadListsGraph(t *testing.T) {
	t.Parallel()

	proj, graph, err := NewService(Options{}).Load(context.Background(), newProject(t))
	require.NoError(t, err)
	require.Equal(t, "shop", proj.Config.Name)
	require.Equal(t, []string{
		"build:api", "build:lib", "build:web",
		"lint:api",
		"test:api", "test:lib",
	}, graph.IDs())

	deps, err := graph.DependenciesOf("build:api")
	require.NoError(t, err)
	require.Equal(t, []string{"build:lib"}, deps)
}

func TestServiceExecuteRejectsUnknownIsolation(t *testing.T) {
	t.Parallel()

	svc := NewService(Options{})
	prepared, err := svc.Prepare(context.Background(), Request{Root: newProject(t), Targets: []string{"web"}})
	require.NoError(t, err)

	_, err = svc.Execute(context.Background(), prepared, Isolation("vm"))
	require.Error(t, err)

	_, err = svc.Execute(context.Background(), nil, IsolationLocal)
	require.Error(t, err)
}

func TestWorkerCount(t *testing.T) {
	t.Parallel()

	require.Equal(t, 2, workerCount(2, 8))
	require.Equal(t, 8, workerCount(0, 8))
	require.Equal(t, runtime.NumCPU(), workerCount(0, 0))
	require.Equal(t, runtime.NumCPU(), workerCount(-1, 0))
}

func TestParseIsolation(t *testing.T) {
	t.Parallel()

	for raw, want := range map[string]Isolation{
		"":          IsolationLocal,
		"local":     IsolationLocal,
		"Container": IsolationContainer,
	} {
		got, err := ParseIsolation(raw)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	_, err := ParseIsolation("vm")
	require.Error(t, err)
}
