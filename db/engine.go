package db

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/nickyhof/PagerDB/core"
	"github.com/nickyhof/PagerDB/internal/logging"
	"github.com/nickyhof/PagerDB/op"
	"github.com/nickyhof/PagerDB/ps"
	"github.com/nickyhof/PagerDB/sql"
)

var (
	ErrNoDatabase      = errors.New("no database open")
	ErrNoSnapshotStore = errors.New("no snapshot store configured")
	ErrUnknownCommand  = errors.New("unknown command")
	ErrMissingArgument = errors.New("missing argument")
)

// Engine runs commands against one open database image. It is not safe for
// concurrent use; give each session its own Engine and share the Cache.
type Engine struct {
	Identity   core.Identity
	S3         *S3Config
	RemoteAuth *ps.RemoteAuth
	Cache      *CatalogCache

	// Local restricts local paths for .open and .export.
	Local LocalAccess

	snapshots *op.SnapshotOp
	database  *op.DatabaseOp
}

// NewEngine returns an engine with no database open. persistence may be nil,
// in which case snapshot commands fail with ErrNoSnapshotStore.
func NewEngine(persistence *ps.Persistence, identity core.Identity) *Engine {
	engine := &Engine{
		Identity: identity,
		Cache:    NewCatalogCache(DefaultCacheSize),
	}
	if persistence != nil {
		engine.snapshots = op.NewSnapshotOp(persistence)
	}
	return engine
}

// Database returns the open database, or nil.
func (engine *Engine) Database() *op.DatabaseOp {
	return engine.database
}

// Open loads a database image and makes it current. Sources are local paths,
// file://, http(s)://, s3://bucket/key or snapshot://name[@transaction].
// Sources ending in .xz are decompressed. On failure the previous database
// stays open.
func (engine *Engine) Open(ctx context.Context, source string) (*op.DatabaseOp, error) {
	var (
		database *op.DatabaseOp
		err      error
	)

	if detectScheme(source) == schemeSnapshot {
		database, err = engine.openSnapshot(source)
	} else {
		var data []byte
		data, err = readSource(ctx, source, engine.S3, engine.Local)
		if err == nil {
			database, err = engine.Cache.Open(source, data)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", source, err)
	}

	engine.database = database
	logging.DatabaseOpened(ctx, source, database.Info().Size, "digest", database.Digest())
	return database, nil
}

func (engine *Engine) openSnapshot(source string) (*op.DatabaseOp, error) {
	if engine.snapshots == nil {
		return nil, ErrNoSnapshotStore
	}

	name, txnId, _ := strings.Cut(source[len(op.SnapshotScheme):], "@")
	return engine.snapshots.LoadAt(name, ps.Transaction{Id: txnId})
}

func (engine *Engine) Execute(command string) (Result, error) {
	return engine.ExecuteContext(context.Background(), command)
}

// ExecuteContext runs one dot command or SELECT statement.
func (engine *Engine) ExecuteContext(ctx context.Context, command string) (Result, error) {
	startTime := time.Now()
	command = strings.TrimSpace(command)

	result, err := engine.execute(ctx, command)
	logging.Command(ctx, command, time.Since(startTime), err)
	return result, err
}

func (engine *Engine) execute(ctx context.Context, command string) (Result, error) {
	if !strings.HasPrefix(command, ".") {
		return engine.executeSelect(command)
	}

	fields := strings.Fields(strings.TrimSuffix(command, ";"))
	name, args := strings.ToLower(fields[0]), fields[1:]

	switch name {
	case ".dbinfo":
		return engine.executeDbInfo()
	case ".tables":
		return engine.executeTables()
	case ".open":
		return engine.executeOpen(ctx, args)
	case ".snapshot":
		return engine.executeSnapshot(args)
	case ".snapshots":
		return engine.executeSnapshots()
	case ".history":
		return engine.executeHistory(args)
	case ".forget":
		return engine.executeForget(args)
	case ".export":
		return engine.executeExport(ctx, args)
	case ".remote":
		return engine.executeRemote(args)
	case ".push":
		return engine.executePush(args)
	case ".pull":
		return engine.executePull(args)
	case ".cache":
		return engine.executeCacheStats()
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, fields[0])
	}
}

func (engine *Engine) requireDatabase() (*op.DatabaseOp, error) {
	if engine.database == nil {
		return nil, ErrNoDatabase
	}
	return engine.database, nil
}

func (engine *Engine) requireSnapshots() (*op.SnapshotOp, error) {
	if engine.snapshots == nil {
		return nil, ErrNoSnapshotStore
	}
	return engine.snapshots, nil
}

func requireArgument(command string, args []string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("%w: %s needs an argument", ErrMissingArgument, command)
	}
	return args[0], nil
}

func optionalArgument(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func (engine *Engine) executeDbInfo() (Result, error) {
	database, err := engine.requireDatabase()
	if err != nil {
		return nil, err
	}
	return InfoResult{Info: database.Info()}, nil
}

func (engine *Engine) executeTables() (Result, error) {
	database, err := engine.requireDatabase()
	if err != nil {
		return nil, err
	}
	return TablesResult{Tables: database.TableNames()}, nil
}

func (engine *Engine) executeOpen(ctx context.Context, args []string) (Result, error) {
	source, err := requireArgument(".open", args)
	if err != nil {
		return nil, err
	}

	database, err := engine.Open(ctx, source)
	if err != nil {
		return nil, err
	}
	return InfoResult{Info: database.Info()}, nil
}

func (engine *Engine) executeSnapshot(args []string) (Result, error) {
	name, err := requireArgument(".snapshot", args)
	if err != nil {
		return nil, err
	}
	snapshots, err := engine.requireSnapshots()
	if err != nil {
		return nil, err
	}
	database, err := engine.requireDatabase()
	if err != nil {
		return nil, err
	}

	txn, err := snapshots.Save(name, database, engine.Identity)
	if err != nil {
		return nil, err
	}
	return SnapshotResult{Name: name, Action: "saved", Transaction: txn}, nil
}

func (engine *Engine) executeForget(args []string) (Result, error) {
	name, err := requireArgument(".forget", args)
	if err != nil {
		return nil, err
	}
	snapshots, err := engine.requireSnapshots()
	if err != nil {
		return nil, err
	}

	txn, err := snapshots.Delete(name, engine.Identity)
	if err != nil {
		return nil, err
	}
	return SnapshotResult{Name: name, Action: "deleted", Transaction: txn}, nil
}

func (engine *Engine) executeSnapshots() (Result, error) {
	startTime := time.Now()

	snapshots, err := engine.requireSnapshots()
	if err != nil {
		return nil, err
	}

	names, err := snapshots.List()
	if err != nil {
		return nil, err
	}

	data := make([][]string, len(names))
	for i, name := range names {
		data[i] = []string{name}
	}

	return QueryResult{
		Columns:          []string{"name"},
		Data:             data,
		ExecutionTimeSec: time.Since(startTime).Seconds(),
	}, nil
}

func (engine *Engine) executeHistory(args []string) (Result, error) {
	startTime := time.Now()

	name, err := requireArgument(".history", args)
	if err != nil {
		return nil, err
	}
	snapshots, err := engine.requireSnapshots()
	if err != nil {
		return nil, err
	}

	history, err := snapshots.History(name)
	if err != nil {
		return nil, err
	}

	data := make([][]string, len(history))
	for i, txn := range history {
		data[i] = []string{txn.Id, txn.When.UTC().Format(time.RFC3339), txn.Author, strings.TrimSpace(txn.Message)}
	}

	return QueryResult{
		Columns:          []string{"transaction", "when", "author", "message"},
		Data:             data,
		ExecutionTimeSec: time.Since(startTime).Seconds(),
	}, nil
}

func (engine *Engine) executeExport(ctx context.Context, args []string) (Result, error) {
	destination, err := requireArgument(".export", args)
	if err != nil {
		return nil, err
	}
	database, err := engine.requireDatabase()
	if err != nil {
		return nil, err
	}

	if err := writeDestination(ctx, destination, database.Bytes(), engine.S3, engine.Local); err != nil {
		return nil, fmt.Errorf("failed to export to %s: %w", destination, err)
	}
	return MessageResult{Message: fmt.Sprintf("Exported %d bytes to %s", len(database.Bytes()), destination)}, nil
}

// executeRemote runs .remote add <name> <url>, .remote list and
// .remote remove <name>.
func (engine *Engine) executeRemote(args []string) (Result, error) {
	action, err := requireArgument(".remote", args)
	if err != nil {
		return nil, err
	}
	snapshots, err := engine.requireSnapshots()
	if err != nil {
		return nil, err
	}
	persistence := snapshots.Persistence

	switch strings.ToLower(action) {
	case "add":
		if len(args) < 3 {
			return nil, fmt.Errorf("%w: .remote add needs a name and a url", ErrMissingArgument)
		}
		name, url := args[1], args[2]
		if isLocalRemote(url) && (engine.Local.Disabled || engine.Local.Root != "") {
			return nil, fmt.Errorf("%w: remote %s is a local path", ErrLocalAccessDenied, url)
		}
		if err := persistence.AddRemote(name, url); err != nil {
			return nil, err
		}
		return MessageResult{Message: fmt.Sprintf("Remote '%s' added", name)}, nil

	case "list":
		startTime := time.Now()
		remotes, err := persistence.ListRemotes()
		if err != nil {
			return nil, err
		}
		data := make([][]string, len(remotes))
		for i, remote := range remotes {
			data[i] = []string{remote.Name, strings.Join(remote.URLs, ", ")}
		}
		return QueryResult{
			Columns:          []string{"name", "urls"},
			Data:             data,
			ExecutionTimeSec: time.Since(startTime).Seconds(),
		}, nil

	case "remove":
		name, err := requireArgument(".remote remove", args[1:])
		if err != nil {
			return nil, err
		}
		if err := persistence.RemoveRemote(name); err != nil {
			return nil, err
		}
		return MessageResult{Message: fmt.Sprintf("Remote '%s' removed", name)}, nil

	default:
		return nil, fmt.Errorf("%w: .remote %s", ErrUnknownCommand, action)
	}
}

// isLocalRemote reports whether a git remote URL names a path on this
// machine. URLs and scp-style addresses always contain a colon.
func isLocalRemote(url string) bool {
	return strings.HasPrefix(strings.ToLower(url), "file://") || !strings.Contains(url, ":")
}

func (engine *Engine) executePush(args []string) (Result, error) {
	snapshots, err := engine.requireSnapshots()
	if err != nil {
		return nil, err
	}

	remote := optionalArgument(args)
	if err := snapshots.Persistence.Push(remote, engine.RemoteAuth); err != nil {
		return nil, err
	}
	return MessageResult{Message: "Pushed snapshots"}, nil
}

func (engine *Engine) executePull(args []string) (Result, error) {
	snapshots, err := engine.requireSnapshots()
	if err != nil {
		return nil, err
	}

	remote := optionalArgument(args)
	if err := snapshots.Persistence.Pull(remote, engine.RemoteAuth); err != nil {
		return nil, err
	}
	return MessageResult{Message: "Pulled snapshots"}, nil
}

func (engine *Engine) executeCacheStats() (Result, error) {
	stats := engine.Cache.Stats()
	return QueryResult{
		Columns: []string{"hits", "misses", "entries"},
		Data:    [][]string{{fmt.Sprint(stats.Hits), fmt.Sprint(stats.Misses), fmt.Sprint(stats.Entries)}},
	}, nil
}

// executeSelect parses the statement and checks its source table against
// the open database, if any. Nothing is executed.
func (engine *Engine) executeSelect(query string) (Result, error) {
	statement, err := sql.ParseSelect(query)
	if err != nil {
		return nil, err
	}

	result := PlanResult{Statement: statement}
	if engine.database != nil {
		result.Checked = true
		result.Known = slices.Contains(engine.database.TableNames(), statement.Table)
	}
	return result, nil
}
