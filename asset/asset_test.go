package asset_test

import (
	"io/fs"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/rogpeppe/accellog/asset"
)

func TestData(t *testing.T) {
	c := qt.New(t)
	data, err := fs.ReadFile(asset.Data(), "chart.js")
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Contains, "google.visualization.LineChart")
}
