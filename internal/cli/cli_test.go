package cli

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"eve-hullscout/internal/config"
	"eve-hullscout/internal/engine"
	"eve-hullscout/internal/graph"
	"eve-hullscout/internal/logger"
	"eve-hullscout/internal/sde"
)

func TestMain(m *testing.M) {
	logger.SetOutput(io.Discard)
	os.Exit(m.Run())
}

const jita = 30000142

const fixtureOrders = `order_id,is_buy_order,location_id,price,system_id,type_id,volume_remain,region_id
1,false,60003760,200000000,30000142,641,5,10000002
2,false,60003760,180000000,30000142,645,5,10000002
3,false,60000001,190000000,30000002,641,1,10000001
4,false,60000001,210000000,30000002,641,1,10000001
5,false,60000002,150000000,30000003,645,2,10000001
6,true,60000003,100000000,30000001,645,1,10000001
`

// setupEnv builds a data dir with an extracted SDE and a fake ESI server,
// then points the config environment at both.
func setupEnv(t *testing.T) (dir string) {
	t.Helper()
	dir = t.TempDir()
	t.Chdir(dir)

	sdeDir := filepath.Join(dir, "data", "sde")
	require.NoError(t, os.MkdirAll(sdeDir, 0o755))
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(sdeDir, name), []byte(content), 0o644))
	}
	write("mapRegions.jsonl", `{"_key":10000001,"name":{"en":"Outer Ring"}}
{"_key":10000002,"name":{"en":"The Forge"}}
`)
	write("mapSolarSystems.jsonl", `{"_key":30000001,"name":{"en":"Alpha"},"regionID":10000001,"security":0.5}
{"_key":30000002,"name":{"en":"Bravo"},"regionID":10000001,"security":0.4}
{"_key":30000003,"name":{"en":"Charlie"},"regionID":10000001,"security":0.3}
{"_key":30000142,"name":{"en":"Jita"},"regionID":10000002,"security":0.95}
`)
	write("mapStargates.jsonl", `{"_key":1,"solarSystemID":30000001,"destination":{"solarSystemID":30000002}}
{"_key":2,"solarSystemID":30000002,"destination":{"solarSystemID":30000003}}
{"_key":3,"solarSystemID":30000003,"destination":{"solarSystemID":30000142}}
`)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/universe/types/641/":
			io.WriteString(w, `{"type_id":641,"name":"Megathron","group_id":27,"published":true}`)
		case "/universe/types/645/":
			io.WriteString(w, `{"type_id":645,"name":"Dominix","group_id":27,"published":true}`)
		case "/universe/systems/30000003/":
			io.WriteString(w, `{"system_id":30000003,"name":"Charlie","security_status":0.3123}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	t.Setenv("HULLSCOUT_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("HULLSCOUT_SNAPSHOT_DB", filepath.Join(dir, "data", "snapshot.db"))
	t.Setenv("HULLSCOUT_SOURCE", "snapshot")
	t.Setenv("HULLSCOUT_ESI_BASE_URL", srv.URL)
	t.Setenv("HULLSCOUT_REQUEST_SPACING", "0s")
	t.Setenv("HULLSCOUT_RETRY_BASE_DELAY", "0s")
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	a := &app{}
	cmd := a.rootCmd("test")
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func importFixture(t *testing.T, dir string) {
	t.Helper()
	csvPath := filepath.Join(dir, "orders.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(fixtureOrders), 0o644))
	out, err := run(t, "snapshot", "import", csvPath)
	require.NoError(t, err)
	require.Contains(t, out, "orders:   6")
}

func TestScan_EndToEnd(t *testing.T) {
	dir := setupEnv(t)
	importFixture(t, dir)
	exportDir := filepath.Join(dir, "out")

	out, err := run(t, "scan", "--from", "Alpha", "--baseline", "Jita", "--jumps", "2",
		"--types", "641,645", "--export", exportDir)
	require.NoError(t, err)

	require.Contains(t, out, "Deals near Alpha (baseline Jita)")
	dominix := strings.Index(out, "Dominix")
	megathron := strings.Index(out, "Megathron")
	require.Positive(t, dominix)
	require.Greater(t, megathron, dominix, "higher savings percent is listed first")
	require.Contains(t, out, "16.67%")
	require.Contains(t, out, "5.00%")
	require.Contains(t, out, "30,000,000.00")
	require.Contains(t, out, "T1 Battleship")
	require.NotContains(t, out, "210,000,000.00", "listing above baseline is not a deal")
	require.Contains(t, out, "0/8 fetches failed")

	files, err := filepath.Glob(filepath.Join(exportDir, "deals_*.json"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	raw, err := os.ReadFile(files[0])
	require.NoError(t, err)
	var doc struct {
		Origin  string `json:"origin"`
		Summary struct {
			PairsTotal int `json:"pairs_total"`
		} `json:"summary"`
		Deals []struct {
			OrderID        int64  `json:"order_id"`
			SystemName     string `json:"system_name"`
			Savings        string `json:"savings"`
			SavingsPercent string `json:"savings_percent"`
		} `json:"deals"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	require.Equal(t, "Alpha", doc.Origin)
	require.Equal(t, 8, doc.Summary.PairsTotal)
	require.Len(t, doc.Deals, 2)
	require.EqualValues(t, 5, doc.Deals[0].OrderID)
	require.Equal(t, "Charlie", doc.Deals[0].SystemName)
	require.Equal(t, "30000000", doc.Deals[0].Savings)
	require.NotContains(t, string(raw), `"OrderID"`)
}

func TestScan_SnapshotMissing(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "scan", "--from", "Alpha", "--types", "641")
	require.ErrorIs(t, err, engine.ErrAggregationDegraded, "every baseline fetch failed")
}

func TestScan_UnknownReference(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "scan", "--from", "Nowhere")
	require.ErrorIs(t, err, graph.ErrUnknownNode)
}

func TestScan_RejectsBadFlags(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "scan", "--min-price=-5")
	require.Error(t, err)
	_, err = run(t, "scan", "--min-price", "lots")
	require.ErrorContains(t, err, "--min-price")
}

func TestSnapshotStatus_Empty(t *testing.T) {
	setupEnv(t)
	out, err := run(t, "snapshot", "status")
	require.NoError(t, err)
	require.Contains(t, out, "no snapshot imported")
}

func TestLookup(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "lookup", "type", "645")
	require.NoError(t, err)
	require.Equal(t, "645\tDominix\tT1 Battleship\n", out)

	out, err = run(t, "lookup", "system", "Charlie")
	require.NoError(t, err)
	require.Equal(t, "30000003\tCharlie\t0.31\n", out)

	_, err = run(t, "lookup", "type", "-3")
	require.ErrorContains(t, err, "invalid id")
}

func TestResolveSystem(t *testing.T) {
	u := graph.NewUniverse()
	u.AddSystem(jita, "Jita", 10000002, 0.95)

	id, err := resolveSystem(u, " jita ")
	require.NoError(t, err)
	require.EqualValues(t, jita, id)

	id, err = resolveSystem(u, "30000142")
	require.NoError(t, err)
	require.EqualValues(t, jita, id)

	_, err = resolveSystem(u, "30000001")
	require.ErrorIs(t, err, graph.ErrUnknownNode)
	_, err = resolveSystem(u, "Amarr")
	require.ErrorIs(t, err, graph.ErrUnknownNode)
}

func TestPrintDeals_Empty(t *testing.T) {
	var buf bytes.Buffer
	printDeals(&buf, &engine.Result{Summary: engine.RunSummary{
		RunID: "r1", ExcludedTypes: []int32{641}, Cancelled: true,
	}}, "Alpha", "Jita")
	out := buf.String()
	require.Contains(t, out, "No listings at or below the baseline price.")
	require.Contains(t, out, "no baseline listing for 1 type(s): [641]")
	require.Contains(t, out, "results are partial")
}

func TestExportJSON_FileName(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 10, 19, 8, 5, 3, 0, time.UTC)
	path, err := exportJSON(dir, &engine.Result{}, "Alpha", "Jita", now)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "deals_20261019_080503.json"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"deals": []`)
}

func TestFormatISK(t *testing.T) {
	require.Equal(t, "1,234,567.89", formatISK(decimal.RequireFromString("1234567.891")))
	require.Equal(t, "0.00", formatISK(decimal.Zero))
}

func TestRegionSummary(t *testing.T) {
	data := &sde.Data{
		Regions: map[int32]*sde.Region{
			10000001: {ID: 10000001, Name: "Outer Ring"},
			10000002: {ID: 10000002, Name: "The Forge"},
		},
		Universe: graph.NewUniverse(),
	}
	data.Universe.AddSystem(30000001, "Alpha", 10000001, 0.5)
	data.Universe.AddSystem(30000003, "Charlie", 10000003, 0.3)
	data.Universe.AddSystem(jita, "Jita", 10000002, 0.95)
	dist := graph.DistanceMap{jita: 0, 30000001: 1, 30000003: 2}

	require.Equal(t, "Outer Ring, The Forge, Region 10000003", regionSummary(data, dist))
}

func TestFlushMetrics_LogsWriteFailure(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(io.Discard) })

	a := &app{cfg: config.Default()}
	a.cfg.MetricsFile = filepath.Join(t.TempDir(), "missing", "hullscout.prom")
	a.flushMetrics()

	require.Contains(t, buf.String(), "write metrics textfile")
	require.Contains(t, buf.String(), "METRICS")
}
