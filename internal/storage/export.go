package storage

import (
	"encoding/json"
	"io"

	"github.com/san-kum/lqrsim/internal/dynamo"
)

type ExportData struct {
	Run      RunMetadata `json:"run"`
	Samples  int         `json:"samples"`
	Times    []float64   `json:"times"`
	States   [][]float64 `json:"states"`
	Controls [][]float64 `json:"controls"`
}

func NewExport(meta RunMetadata, tr dynamo.Trajectory, controls []dynamo.Control) ExportData {
	data := ExportData{
		Run:      meta,
		Samples:  tr.Len(),
		Times:    tr.Times,
		States:   make([][]float64, len(tr.States)),
		Controls: make([][]float64, len(controls)),
	}
	for i, s := range tr.States {
		data.States[i] = s
	}
	for i, c := range controls {
		data.Controls[i] = c
	}
	return data
}

// ExportJSON writes an indented JSON document to w.
func ExportJSON(w io.Writer, data ExportData) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// ExportRun loads a stored run and writes it as JSON.
func (s *Store) ExportRun(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	tr, controls, err := s.LoadStates(runID)
	if err != nil {
		return err
	}
	return ExportJSON(w, NewExport(*meta, tr, controls))
}
