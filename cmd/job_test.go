package main

import (
	"bytes"
	"context"
	"image"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"

	"github.com/sells-group/dataload/internal/config"
	"github.com/sells-group/dataload/internal/filter"
	"github.com/sells-group/dataload/internal/loader"
	"github.com/sells-group/dataload/internal/model"
)

const ionsCSV = `site,lat,long,TDS_mgL,charge_balance_eq
A,29.42,-98.49,1500,0.05
B,30.26,-97.74,800,0.02
C,31.10,-97.30,2200,0.3
D,29.90,-98.10,1200,0.01
E,29.70,-98.20,,0.01
F,30.00,-98.00,3000,0.09
G,30.10,-98.30,999,0.0
`

func testServer(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testLoader(t *testing.T) *loader.Loader {
	t.Helper()
	l, err := newLoader(config.LoaderConfig{TargetCRS: "EPSG:2278", ScratchDir: t.TempDir()})
	require.NoError(t, err)
	return l
}

func TestRunJob_FilterAndHead(t *testing.T) {
	srv := testServer(t, []byte(ionsCSV))
	headPath := filepath.Join(t.TempDir(), "data_head.csv")

	var out bytes.Buffer
	err := runJob(context.Background(), &out, testLoader(t), job{
		Resource: loader.Resource{URL: srv.URL + "/Major_Ions.csv"},
		Filters:  []string{"TDS_mgL>=1000", "charge_balance_eq<0.1"},
		HeadRows: 5,
		HeadPath: headPath,
	})
	require.NoError(t, err)

	output := out.String()
	assert.Contains(t, output, "TDS_mgL")
	assert.Contains(t, output, "Wrote first 5 rows to "+headPath)
	assert.Contains(t, output, "STAGE")
	assert.Regexp(t, `1\s+TDS_mgL >= 1000\s+7\s+4\s+3`, output)
	assert.Regexp(t, `2\s+charge_balance_eq < 0.1\s+4\s+3\s+1`, output)

	head, err := os.ReadFile(headPath)
	require.NoError(t, err)
	lines := bytes.Split(bytes.TrimSpace(head), []byte("\n"))
	assert.Len(t, lines, 6, "header plus five rows")
	assert.Equal(t, "site,lat,long,TDS_mgL,charge_balance_eq", string(lines[0]))
}

func TestRunJob_LatLongPoints(t *testing.T) {
	srv := testServer(t, []byte(ionsCSV))
	headPath := filepath.Join(t.TempDir(), "head.csv")

	var out bytes.Buffer
	err := runJob(context.Background(), &out, testLoader(t), job{
		Resource:  loader.Resource{URL: srv.URL + "/ions.csv"},
		LatField:  "lat",
		LongField: "long",
		HeadRows:  2,
		HeadPath:  headPath,
	})
	require.NoError(t, err)

	head, err := os.ReadFile(headPath)
	require.NoError(t, err)
	assert.Contains(t, string(head), ",geometry")
	assert.Contains(t, string(head), "POINT (")
}

func TestRunJob_NoHeadFile(t *testing.T) {
	srv := testServer(t, []byte(ionsCSV))
	dir := t.TempDir()
	wd, wdErr := os.Getwd()
	require.NoError(t, wdErr)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	var out bytes.Buffer
	err := runJob(context.Background(), &out, testLoader(t), job{
		Resource: loader.Resource{URL: srv.URL + "/ions.csv"},
		HeadRows: 3,
	})
	require.NoError(t, err)
	assert.NotContains(t, out.String(), "Wrote first")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunJob_Errors(t *testing.T) {
	srv := testServer(t, []byte(ionsCSV))
	l := testLoader(t)

	err := runJob(context.Background(), &bytes.Buffer{}, l, job{
		Resource: loader.Resource{URL: srv.URL + "/ions.csv"},
		Filters:  []string{"not an expression"},
	})
	assert.Error(t, err)

	err = runJob(context.Background(), &bytes.Buffer{}, l, job{
		Resource: loader.Resource{URL: srv.URL + "/ions.csv"},
		Filters:  []string{"sodium>1"},
	})
	var mc *filter.MissingColumnError
	assert.ErrorAs(t, err, &mc)

	err = runJob(context.Background(), &bytes.Buffer{}, l, job{
		Resource: loader.Resource{URL: srv.URL + "/ions.zip", Zipped: true},
	})
	assert.ErrorIs(t, err, loader.ErrMissingInnerPath)
}

func TestRunJob_Raster(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, tiff.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 2)), nil))
	srv := testServer(t, buf.Bytes())

	var out bytes.Buffer
	err := runJob(context.Background(), &out, testLoader(t), job{
		Resource: loader.Resource{URL: srv.URL + "/dem.tif"},
		HeadRows: 5,
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "4 x 2")
	assert.Contains(t, out.String(), "(undeclared)")

	err = runJob(context.Background(), &out, testLoader(t), job{
		Resource: loader.Resource{URL: srv.URL + "/dem.tif"},
		Filters:  []string{"band>1"},
	})
	assert.Error(t, err)
}

func TestFormatStages(t *testing.T) {
	res := filter.Result{
		Total: 10,
		Kept:  []int{1, 2},
		Stages: []filter.Stage{
			{Predicate: filter.Predicate{Column: "TDS_mgL", Op: filter.GE, Value: 1000}, Before: 10, After: 4, Excluded: 6},
			{Predicate: filter.Predicate{Column: "charge_balance_eq", Op: filter.LT, Value: 0.1}, Before: 4, After: 2, Excluded: 2},
		},
	}
	var buf bytes.Buffer
	formatStages(&buf, res)

	output := buf.String()
	assert.Contains(t, output, "EXCLUDED")
	assert.Regexp(t, `0\s+\(none\)\s+10\s+10\s+0`, output)
	assert.Regexp(t, `1\s+TDS_mgL >= 1000\s+10\s+4\s+6`, output)
	assert.Regexp(t, `2\s+charge_balance_eq < 0.1\s+4\s+2\s+2`, output)
}

func TestFormatPreview(t *testing.T) {
	var buf bytes.Buffer
	formatPreview(&buf, model.NewTable([]string{"site", "tds"}, [][]string{{"A", "1500"}}))
	assert.Regexp(t, `site\s+tds\nA\s+1500\n`, buf.String())
}

func TestJobFromDataset(t *testing.T) {
	j := jobFromDataset(config.DatasetConfig{
		URL:       "https://example.com/a.zip",
		Zipped:    true,
		InnerPath: "a.csv",
		Options:   map[string]any{"sep": ";"},
		Filters:   []string{"x>1"},
	}, config.OutputConfig{HeadRows: 5, HeadPath: "data_head.csv"})

	assert.True(t, j.Resource.Zipped)
	assert.Equal(t, "a.csv", j.Resource.InnerPath)
	assert.Equal(t, model.Options{"sep": ";"}, j.Resource.Options)
	assert.Equal(t, []string{"x>1"}, j.Filters)
	assert.Equal(t, 5, j.HeadRows)
	assert.Equal(t, "data_head.csv", j.HeadPath)
}

func TestNewLoader_InvalidTarget(t *testing.T) {
	_, err := newLoader(config.LoaderConfig{TargetCRS: "EPSG:1"})
	assert.Error(t, err)
}
