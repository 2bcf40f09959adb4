package syncengine

import (
	"context"
	"sync"
	"time"

	"github.com/lumos-db/lumosdb/internal/columnengine"
	"github.com/lumos-db/lumosdb/internal/errs"
	"github.com/lumos-db/lumosdb/internal/rowengine"
	"github.com/lumos-db/lumosdb/internal/synctrack"
)

// TableStatus tags a table's current sync status (§3 "Sync state per
// table").
type TableStatus int

const (
	StatusIdle TableStatus = iota
	StatusRunning
	StatusFailed
	StatusCompleted
)

func (s TableStatus) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusFailed:
		return "failed"
	case StatusCompleted:
		return "completed"
	default:
		return "idle"
	}
}

// TableSyncState is the per-table bookkeeping of §3 "Sync state per
// table".
type TableSyncState struct {
	LastSuccessfulSync   int64
	Status               TableStatus
	FailureMessage       string
	TrackedColumnPresent bool
	SchemaFingerprint    string
}

// ManagerConfig configures table discovery and scheduling (§3 "Sync
// config", §6 defaults).
type ManagerConfig struct {
	Include             []string // optional allow-list; empty means all discovered tables
	Exclude             []string
	DefaultStrategy     Strategy
	PerTableStrategy    map[string]Strategy
	IntervalSeconds     int
	BatchSize           int
	TimestampCandidates []string
	FullSyncOnStart     bool
}

// DefaultManagerConfig returns the spec-mandated defaults (§6: interval=60,
// batch_size=10000, full_sync_on_start=true,
// candidates=["updated_at","created_at"], strategy=Incremental).
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		DefaultStrategy:     StrategyIncremental,
		IntervalSeconds:     60,
		BatchSize:           10000,
		TimestampCandidates: []string{"updated_at", "created_at"},
		FullSyncOnStart:     true,
	}
}

// Manager is the Sync Manager (C9). It holds explicit handles to both
// engine facades and the Change Tracker (§9: "avoid global singletons ...
// keep the Change Tracker handle inside Sync Manager"), never a package
// global.
type Manager struct {
	row        *rowengine.Engine
	column     *columnengine.Engine
	tracker    *synctrack.Tracker
	reconciler *Reconciler
	cfg        ManagerConfig

	mu           sync.Mutex
	leases       map[string]*sync.Mutex
	states       map[string]*TableSyncState
	tableConfigs map[string]TableSyncConfig
	lastRunAt    map[string]time.Time
}

// NewManager constructs a Manager with explicit engine and tracker handles.
func NewManager(row *rowengine.Engine, column *columnengine.Engine, tracker *synctrack.Tracker, cfg ManagerConfig) *Manager {
	return &Manager{
		row:          row,
		column:       column,
		tracker:      tracker,
		reconciler:   NewReconciler(row, column),
		cfg:          cfg,
		leases:       make(map[string]*sync.Mutex),
		states:       make(map[string]*TableSyncState),
		tableConfigs: make(map[string]TableSyncConfig),
		lastRunAt:    make(map[string]time.Time),
	}
}

// Init discovers source tables (excluding system tables, which
// rowengine.ListTables already filters by the "_" prefix convention, and
// configured-exclude membership), optionally filters by include-list,
// initializes the Change Tracker for each, and runs an initial Full sync
// if FullSyncOnStart is set (§4.6).
func (m *Manager) Init(ctx context.Context) (map[string]SyncResult, error) {
	discovered, err := m.row.ListTables(ctx)
	if err != nil {
		return nil, err
	}

	exclude := toSet(m.cfg.Exclude)
	var include map[string]bool
	if len(m.cfg.Include) > 0 {
		include = toSet(m.cfg.Include)
	}

	m.mu.Lock()
	for _, table := range discovered {
		if exclude[table] {
			continue
		}
		if include != nil && !include[table] {
			continue
		}

		tbl, err := m.row.DescribeTable(ctx, table)
		if err != nil {
			m.mu.Unlock()
			return nil, err
		}
		m.tableConfigs[table] = TableSyncConfig{
			Table:               table,
			PKColumns:           tbl.PrimaryKey,
			TimestampCandidates: m.cfg.TimestampCandidates,
			BatchSize:           m.cfg.BatchSize,
		}
		m.states[table] = &TableSyncState{Status: StatusIdle}
		m.leases[table] = &sync.Mutex{}
	}
	m.mu.Unlock()

	for table, cfg := range m.tableConfigs {
		if err := m.tracker.Init(ctx, table, cfg.PKColumns); err != nil {
			return nil, err
		}
	}

	if m.cfg.FullSyncOnStart {
		return m.ForceSync(ctx)
	}
	return nil, nil
}

// ForceSync runs Full on every discovered table (§4.6). Different tables
// sync concurrently (§5 resource policy).
func (m *Manager) ForceSync(ctx context.Context) (map[string]SyncResult, error) {
	return m.runAll(ctx, func(string) Strategy { return StrategyFull })
}

// IncrementalSync is the host-driven cooperative scheduling tick of §4.6:
// it computes elapsed_since_last_sync per table and runs each table whose
// interval has elapsed, using that table's configured strategy (override
// or manager default). Tables still mid-run are skipped, not queued.
func (m *Manager) IncrementalSync(ctx context.Context) (map[string]SyncResult, error) {
	interval := time.Duration(m.cfg.IntervalSeconds) * time.Second

	m.mu.Lock()
	var due []string
	now := time.Now()
	for table := range m.tableConfigs {
		last, ok := m.lastRunAt[table]
		if !ok || now.Sub(last) >= interval {
			due = append(due, table)
		}
	}
	m.mu.Unlock()

	return m.runTables(ctx, due, m.strategyFor)
}

func (m *Manager) strategyFor(table string) Strategy {
	if s, ok := m.cfg.PerTableStrategy[table]; ok {
		return s
	}
	return m.cfg.DefaultStrategy
}

func (m *Manager) runAll(ctx context.Context, strategyFor func(string) Strategy) (map[string]SyncResult, error) {
	m.mu.Lock()
	tables := make([]string, 0, len(m.tableConfigs))
	for table := range m.tableConfigs {
		tables = append(tables, table)
	}
	m.mu.Unlock()
	return m.runTables(ctx, tables, strategyFor)
}

// runTables drives the named tables concurrently, one goroutine per table,
// and aggregates results (§4.5 "Aggregate across tables for the manager
// API").
func (m *Manager) runTables(ctx context.Context, tables []string, strategyFor func(string) Strategy) (map[string]SyncResult, error) {
	results := make(map[string]SyncResult, len(tables))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, table := range tables {
		table := table
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := m.SyncTable(ctx, table, strategyFor(table))
			mu.Lock()
			defer mu.Unlock()
			if err != nil && len(res.Errors) == 0 {
				res.Errors = []error{err}
			}
			results[table] = res
		}()
	}
	wg.Wait()
	return results, nil
}

// SyncTable runs strat for one table, enforcing the single-runner-per-table
// lease of §3/§5 ("once status=Running, no second runner may start for the
// same table"). A cancelled or timed-out run releases its lease, rolls
// back its in-flight transaction, and leaves the watermark unchanged (§5
// Cancellation/Timeouts) — both dispositions fall out naturally here since
// SyncTable stores the result's watermark only when ExecuteStrategy
// returns no error.
func (m *Manager) SyncTable(ctx context.Context, table string, strat Strategy) (SyncResult, error) {
	m.mu.Lock()
	lease, ok := m.leases[table]
	cfg := m.tableConfigs[table]
	state := m.states[table]
	m.mu.Unlock()
	if !ok {
		return SyncResult{}, &errs.TrackerError{Table: table}
	}

	if !lease.TryLock() {
		return SyncResult{}, &errs.AlreadyRunning{Table: table}
	}
	defer lease.Unlock()

	m.mu.Lock()
	state.Status = StatusRunning
	lastWatermark := state.LastSuccessfulSync
	m.mu.Unlock()

	result, err := ExecuteStrategy(ctx, strat, cfg, m.row, m.column, m.reconciler, m.tracker, lastWatermark)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastRunAt[table] = time.Now()
	if err != nil {
		state.Status = StatusFailed
		state.FailureMessage = err.Error()
		return result, err
	}
	state.Status = StatusCompleted
	if strat != StrategySnapshot {
		state.LastSuccessfulSync = result.NewWatermark
	}
	return result, nil
}

// Status returns a snapshot of every discovered table's sync state (§4.6
// "expose status").
func (m *Manager) Status() map[string]TableSyncState {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]TableSyncState, len(m.states))
	for table, s := range m.states {
		out[table] = *s
	}
	return out
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, i := range items {
		set[i] = true
	}
	return set
}
