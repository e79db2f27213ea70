package receipts

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/orderdesk-backend/pkg/enums"
	"github.com/angelmondragon/orderdesk-backend/pkg/logger"
	"github.com/angelmondragon/orderdesk-backend/pkg/metrics"
)

type recordingSurface struct {
	jobs []Job
	err  error
}

func (s *recordingSurface) Print(_ context.Context, job Job) error {
	s.jobs = append(s.jobs, job)
	return s.err
}

func TestPrinterDispatchesRenderedReceipt(t *testing.T) {
	surface := &recordingSurface{}
	reg := prometheus.NewRegistry()
	printer, err := NewPrinter(enums.PrintModeBrowser, surface, metrics.NewDeskMetrics(reg))
	require.NoError(t, err)

	order := sampleOrder()
	job, err := printer.Print(context.Background(), order, sampleInfo(t))
	require.NoError(t, err)
	require.Len(t, surface.jobs, 1)
	assert.Equal(t, order.ID, job.OrderID)
	assert.Equal(t, "A1B2C3D4", job.ShortID)

	expected, err := Generate(order, sampleInfo(t))
	require.NoError(t, err)
	assert.Equal(t, expected, surface.jobs[0].Document)

	families, err := reg.Gather()
	require.NoError(t, err)
	found := false
	for _, mf := range families {
		if mf.GetName() == "receipt_prints_total" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestPrinterWrapsSurfaceFailure(t *testing.T) {
	printer, err := NewPrinter(enums.PrintModePDF, &recordingSurface{err: errors.New("no chrome")}, nil)
	require.NoError(t, err)

	_, err = printer.Print(context.Background(), sampleOrder(), sampleInfo(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "A1B2C3D4")
}

func TestNewPrinterValidates(t *testing.T) {
	_, err := NewPrinter(enums.PrintMode("fax"), &recordingSurface{}, nil)
	assert.Error(t, err)
	_, err = NewPrinter(enums.PrintModeBrowser, nil, nil)
	assert.Error(t, err)
}

func TestChromeSurfaceSpoolsPDF(t *testing.T) {
	dir := t.TempDir()
	logg := logger.New(logger.Options{ServiceName: "receipts-test", Output: io.Discard})
	surface, err := NewChromeSurface(dir, "/nonexistent/chrome", 0, logg)
	require.NoError(t, err)

	var rendered []byte
	surface.render = func(_ context.Context, doc []byte) ([]byte, error) {
		rendered = doc
		return []byte("%PDF-1.4 fake"), nil
	}

	order := sampleOrder()
	job := Job{TenantID: order.TenantID, OrderID: order.ID, Document: []byte("<html></html>")}
	require.NoError(t, surface.Print(context.Background(), job))
	assert.Equal(t, job.Document, rendered)

	raw, err := os.ReadFile(filepath.Join(dir, order.TenantID.String(), order.ID.String()+".pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 fake", string(raw))

	surface.render = func(context.Context, []byte) ([]byte, error) { return nil, errors.New("crashed") }
	assert.Error(t, surface.Print(context.Background(), job))

	_, err = NewChromeSurface("", "", 0, logg)
	assert.Error(t, err)
}
