package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/san-kum/lqrsim/internal/config"
	"github.com/san-kum/lqrsim/internal/dynamo"
	"github.com/san-kum/lqrsim/internal/experiment"
)

func runScalar(t *testing.T) *experiment.Outcome {
	t.Helper()
	out, err := experiment.New(config.GetPreset("scalar"), nil).Run(context.Background())
	if err != nil {
		t.Fatalf("experiment failed: %v", err)
	}
	return out
}

func TestStoreSaveLoad(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	out := runScalar(t)
	runID, err := st.Save(out)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if !strings.HasPrefix(runID, "scalar_") {
		t.Errorf("unexpected run id %q", runID)
	}

	meta, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if meta.ID != runID || meta.Name != "scalar" {
		t.Errorf("unexpected metadata %+v", meta)
	}
	if meta.Solver != "dopri5" || meta.RiccatiMode != "forward" {
		t.Errorf("unexpected solver fields %s %s", meta.Solver, meta.RiccatiMode)
	}
	if meta.K[0][0] != out.K.At(0, 0) {
		t.Errorf("expected K %v, got %v", out.K.At(0, 0), meta.K[0][0])
	}
	if meta.Metrics["control_effort"] != out.Result.Metrics["control_effort"] {
		t.Error("metrics not preserved")
	}
	if len(meta.Poles) != 1 || meta.Poles[0].Re >= 0 {
		t.Errorf("unexpected poles %v", meta.Poles)
	}
	if meta.Config == nil || meta.Config.System.A[0][0] != 0 {
		t.Error("config not preserved")
	}
}

func TestStoreLoadStates(t *testing.T) {
	st := New(t.TempDir())
	out := runScalar(t)
	runID, err := st.Save(out)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	tr, controls, err := st.LoadStates(runID)
	if err != nil {
		t.Fatalf("load states failed: %v", err)
	}
	if tr.Len() != out.Result.Len() || len(controls) != tr.Len() {
		t.Fatalf("expected %d samples, got %d states and %d controls", out.Result.Len(), tr.Len(), len(controls))
	}
	for i := range tr.States {
		if tr.Times[i] != out.Result.Times[i] || tr.States[i][0] != out.Result.States[i][0] {
			t.Fatalf("sample %d differs after round trip", i)
		}
		if controls[i][0] != out.Result.Controls[i][0] {
			t.Fatalf("control %d differs after round trip", i)
		}
	}

	times, ps, err := st.LoadRiccati(runID)
	if err != nil {
		t.Fatalf("load riccati failed: %v", err)
	}
	if len(times) != out.Riccati.Len() {
		t.Fatalf("expected %d riccati samples, got %d", out.Riccati.Len(), len(times))
	}
	last := len(ps) - 1
	if ps[last][0] != out.Riccati.Steady().P.At(0, 0) {
		t.Error("steady P differs after round trip")
	}
}

func TestStoreList(t *testing.T) {
	st := New(filepath.Join(t.TempDir(), "runs"))

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected 0 runs, got %d", len(runs))
	}

	out := runScalar(t)
	for i := 0; i < 2; i++ {
		if _, err := st.Save(out); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	runs, err = st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID == runs[1].ID {
		t.Error("run ids must be unique")
	}
}

func TestStoreFileStructure(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	runID, err := st.Save(runScalar(t))
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	for _, name := range []string{metadataFile, statesFile, riccatiFile} {
		if _, err := os.Stat(filepath.Join(tmpDir, runID, name)); os.IsNotExist(err) {
			t.Errorf("%s not created", name)
		}
	}

	data, err := os.ReadFile(filepath.Join(tmpDir, runID, statesFile))
	if err != nil {
		t.Fatal(err)
	}
	if header := strings.SplitN(string(data), "\n", 2)[0]; header != "time,x0,u0" {
		t.Errorf("unexpected header %q", header)
	}
}

func TestExportRun(t *testing.T) {
	st := New(t.TempDir())
	out := runScalar(t)
	runID, err := st.Save(out)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	var buf bytes.Buffer
	if err := st.ExportRun(&buf, runID); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	var data ExportData
	if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if data.Run.ID != runID || data.Samples != out.Result.Len() {
		t.Errorf("unexpected export header %+v", data.Run)
	}
	if len(data.States) != data.Samples || len(data.Controls) != data.Samples {
		t.Error("export arrays do not match sample count")
	}

	if err := st.ExportRun(&buf, "missing"); err == nil {
		t.Error("expected error for missing run")
	}
}

func TestWriteStatesCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteStatesCSV(&buf, &dynamo.Result{}); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected empty output, got %q", buf.String())
	}
}
