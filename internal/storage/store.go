// Package storage persists runs as a directory per run: metadata.json,
// states.csv and riccati.csv.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/san-kum/lqrsim/internal/config"
	"github.com/san-kum/lqrsim/internal/dynamo"
	"github.com/san-kum/lqrsim/internal/experiment"
	"github.com/san-kum/lqrsim/internal/riccati"
)

const (
	metadataFile = "metadata.json"
	statesFile   = "states.csv"
	riccatiFile  = "riccati.csv"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// Pole is a complex closed-loop pole in JSON-friendly form.
type Pole struct {
	Re float64 `json:"re"`
	Im float64 `json:"im"`
}

type RunMetadata struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Timestamp    time.Time          `json:"timestamp"`
	Solver       string             `json:"solver"`
	GainPolicy   string             `json:"gain_policy"`
	RiccatiMode  string             `json:"riccati_mode"`
	Config       *config.Config     `json:"config"`
	K            config.Matrix      `json:"k"`
	SteadyP      config.Matrix      `json:"steady_p"`
	Poles        []Pole             `json:"poles"`
	Controllable bool               `json:"controllable"`
	Rank         int                `json:"rank"`
	Metrics      map[string]float64 `json:"metrics"`
	// SettlingTime is nil when some component did not settle.
	SettlingTime    *float64     `json:"settling_time,omitempty"`
	FinalError      []float64    `json:"final_error"`
	RiccatiStats    dynamo.Stats `json:"riccati_stats"`
	SimulationStats dynamo.Stats `json:"simulation_stats"`
	ElapsedMS       float64      `json:"elapsed_ms"`
}

// NewMetadata summarises an outcome. The ID is left empty.
func NewMetadata(out *experiment.Outcome) RunMetadata {
	cfg := out.Config
	meta := RunMetadata{
		Name:            cfg.Name,
		Timestamp:       time.Now(),
		Solver:          cfg.Solver.Method,
		GainPolicy:      cfg.GainPolicy,
		RiccatiMode:     out.Riccati.Mode.String(),
		Config:          cfg,
		K:               config.FromDense(out.K),
		SteadyP:         config.FromDense(out.Riccati.Steady().P),
		Controllable:    out.Controllable,
		Rank:            out.Rank,
		Metrics:         out.Result.Metrics,
		FinalError:      out.Response.FinalError,
		RiccatiStats:    out.Riccati.Stats,
		SimulationStats: out.Result.Stats,
		ElapsedMS:       float64(out.Elapsed) / float64(time.Millisecond),
	}
	for _, p := range out.Poles {
		meta.Poles = append(meta.Poles, Pole{Re: real(p), Im: imag(p)})
	}
	if ts := out.Response.MaxSettlingTime(); !math.IsNaN(ts) {
		meta.SettlingTime = &ts
	}
	return meta
}

func (s *Store) Save(out *experiment.Outcome) (string, error) {
	meta := NewMetadata(out)
	meta.ID = fmt.Sprintf("%s_%s", meta.Name, uuid.NewString()[:8])
	runDir := filepath.Join(s.baseDir, meta.ID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	if err := writeFile(filepath.Join(runDir, metadataFile), func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(meta)
	}); err != nil {
		return "", err
	}

	if err := writeFile(filepath.Join(runDir, statesFile), func(w io.Writer) error {
		return WriteStatesCSV(w, out.Result)
	}); err != nil {
		return "", err
	}

	if err := writeFile(filepath.Join(runDir, riccatiFile), func(w io.Writer) error {
		return WriteRiccatiCSV(w, out.Riccati)
	}); err != nil {
		return "", err
	}

	return meta.ID, nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteStatesCSV writes a time,x0..,u0.. table.
func WriteStatesCSV(w io.Writer, result *dynamo.Result) error {
	cw := csv.NewWriter(w)

	if len(result.States) == 0 {
		cw.Flush()
		return cw.Error()
	}

	header := []string{"time"}
	for i := range result.States[0] {
		header = append(header, fmt.Sprintf("x%d", i))
	}

	numControls := 0
	if len(result.Controls) > 0 {
		numControls = len(result.Controls[0])
		for i := 0; i < numControls; i++ {
			header = append(header, fmt.Sprintf("u%d", i))
		}
	}

	if err := cw.Write(header); err != nil {
		return err
	}

	for i := range result.States {
		row := []string{formatFloat(result.Times[i])}
		for _, val := range result.States[i] {
			row = append(row, formatFloat(val))
		}
		if i < len(result.Controls) && len(result.Controls[i]) == numControls {
			for _, val := range result.Controls[i] {
				row = append(row, formatFloat(val))
			}
		} else {
			for j := 0; j < numControls; j++ {
				row = append(row, "0")
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteRiccatiCSV writes one row per sample: time then P row-major.
func WriteRiccatiCSV(w io.Writer, sol *riccati.Solution) error {
	cw := csv.NewWriter(w)
	if sol.Len() > 0 {
		n, _ := sol.Samples[0].P.Dims()
		header := []string{"time"}
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				header = append(header, fmt.Sprintf("p%d%d", i, j))
			}
		}
		if err := cw.Write(header); err != nil {
			return err
		}
		for _, smp := range sol.Samples {
			row := []string{formatFloat(smp.T)}
			for _, v := range riccati.Flatten(smp.P) {
				row = append(row, formatFloat(v))
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// List returns every readable run, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadStates reads states.csv back into a trajectory and its controls.
func (s *Store) LoadStates(runID string) (dynamo.Trajectory, []dynamo.Control, error) {
	header, rows, err := s.readTable(runID, statesFile)
	if err != nil {
		return dynamo.Trajectory{}, nil, err
	}

	nx := 0
	for _, h := range header {
		if strings.HasPrefix(h, "x") {
			nx++
		}
	}

	tr := dynamo.Trajectory{
		Times:  make([]float64, 0, len(rows)),
		States: make([]dynamo.State, 0, len(rows)),
	}
	controls := make([]dynamo.Control, 0, len(rows))
	for _, row := range rows {
		tr.Times = append(tr.Times, row[0])
		tr.States = append(tr.States, dynamo.State(row[1:1+nx]))
		controls = append(controls, dynamo.Control(row[1+nx:]))
	}
	return tr, controls, nil
}

// LoadRiccati reads riccati.csv: sample times and flattened P rows.
func (s *Store) LoadRiccati(runID string) ([]float64, [][]float64, error) {
	_, rows, err := s.readTable(runID, riccatiFile)
	if err != nil {
		return nil, nil, err
	}
	times := make([]float64, len(rows))
	ps := make([][]float64, len(rows))
	for i, row := range rows {
		times[i] = row[0]
		ps[i] = row[1:]
	}
	return times, ps, nil
}

var errMalformed = errors.New("malformed run table")

func (s *Store) readTable(runID, name string) ([]string, [][]float64, error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, name))
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, [][]float64{}, nil
	}

	header := records[0]
	rows := make([][]float64, 0, len(records)-1)
	for i, record := range records[1:] {
		row := make([]float64, len(record))
		for j, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("%s line %d: %w", name, i+2, errMalformed)
			}
			row[j] = v
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}
