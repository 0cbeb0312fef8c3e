package report

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/devicelab-dev/shift-runner/pkg/core"
	"github.com/devicelab-dev/shift-runner/pkg/logger"
	"github.com/devicelab-dev/shift-runner/pkg/scenario"
)

// IndexWriter keeps report.json current while the suite runs. It is a
// scenario.Listener; every event rewrites the file.
type IndexWriter struct {
	mu        sync.Mutex
	outputDir string
	path      string
	index     *Index
}

var _ scenario.Listener = (*IndexWriter)(nil)

// NewIndexWriter seeds report.json with the scenarios about to run, all
// pending.
func NewIndexWriter(outputDir, runName string, scenarios []scenario.Scenario, env Environment) *IndexWriter {
	now := time.Now()
	idx := &Index{
		Version:     Version,
		Name:        runName,
		Status:      StatusRunning,
		StartTime:   now,
		LastUpdated: now,
		Environment: env,
	}
	for i, sc := range scenarios {
		idx.Scenarios = append(idx.Scenarios, ScenarioEntry{
			Index:       i,
			Name:        sc.Name,
			Description: sc.Description,
			Tags:        sc.Tags,
			Status:      StatusPending,
		})
	}
	idx.Summary = summarize(idx.Scenarios)

	w := &IndexWriter{
		outputDir: outputDir,
		path:      filepath.Join(outputDir, "report.json"),
		index:     idx,
	}
	w.mu.Lock()
	w.flushLocked()
	w.mu.Unlock()
	return w
}

// OnStart marks the scenario running. Finished entries are left alone.
func (w *IndexWriter) OnStart(sc *scenario.Scenario) {
	w.mu.Lock()
	defer w.mu.Unlock()

	e := w.entryLocked(sc.Name)
	if e == nil || e.Status.IsTerminal() {
		return
	}
	now := time.Now()
	e.Status = StatusRunning
	e.StartTime = &now
	w.flushLocked()
}

// OnPass records a passed scenario.
func (w *IndexWriter) OnPass(res *core.ScenarioResult) { w.finish(res) }

// OnFail records a failed scenario.
func (w *IndexWriter) OnFail(res *core.ScenarioResult, _ error) { w.finish(res) }

// OnSkip records a skipped scenario.
func (w *IndexWriter) OnSkip(res *core.ScenarioResult) { w.finish(res) }

func (w *IndexWriter) finish(res *core.ScenarioResult) {
	w.mu.Lock()
	defer w.mu.Unlock()

	e := w.entryLocked(res.Name)
	if e == nil {
		return
	}
	*e = scenarioEntry(e.Index, res, w.outputDir)
	w.flushLocked()
}

// End replaces the live index with the final suite result.
func (w *IndexWriter) End(suite *core.SuiteResult) {
	w.mu.Lock()
	defer w.mu.Unlock()

	seq := w.index.UpdateSeq
	w.index = BuildIndex(suite, w.outputDir)
	w.index.UpdateSeq = seq
	w.flushLocked()
}

// Index returns a copy of the current index.
func (w *IndexWriter) Index() Index {
	w.mu.Lock()
	defer w.mu.Unlock()
	cp := *w.index
	cp.Scenarios = append([]ScenarioEntry(nil), w.index.Scenarios...)
	return cp
}

func (w *IndexWriter) entryLocked(name string) *ScenarioEntry {
	for i := range w.index.Scenarios {
		if w.index.Scenarios[i].Name == name {
			return &w.index.Scenarios[i]
		}
	}
	logger.Debug("report: scenario %q not in index", name)
	return nil
}

func (w *IndexWriter) flushLocked() {
	w.index.UpdateSeq++
	w.index.LastUpdated = time.Now()
	w.index.Summary = summarize(w.index.Scenarios)
	if w.index.EndTime == nil {
		w.index.Status = StatusRunning
	}
	if err := atomicWriteJSON(w.path, w.index); err != nil {
		logger.Warn("failed to write %s: %v", w.path, err)
	}
}
