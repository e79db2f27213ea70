package receipts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/angelmondragon/orderdesk-backend/pkg/logger"
)

// thermal roll: 80mm wide
const (
	paperWidthInches  = 3.15
	paperHeightInches = 11.0
)

var chromeCandidates = []string{
	"/usr/bin/chromium",
	"/usr/bin/chromium-browser",
	"/usr/bin/google-chrome",
	"/usr/bin/google-chrome-stable",
	"/snap/bin/chromium",
}

// ChromeSurface renders receipts to PDF files with headless Chrome. Scripts are
// disabled so the embedded print directive never runs.
type ChromeSurface struct {
	spoolDir   string
	chromePath string
	timeout    time.Duration
	logg       *logger.Logger
	render     func(ctx context.Context, doc []byte) ([]byte, error)
}

// NewChromeSurface writes PDFs under spoolDir/<tenant>/<order>.pdf. An empty chromePath
// probes the usual install locations and falls back to chromedp's own lookup.
func NewChromeSurface(spoolDir, chromePath string, timeout time.Duration, logg *logger.Logger) (*ChromeSurface, error) {
	if spoolDir == "" {
		return nil, fmt.Errorf("spool dir required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if chromePath == "" {
		chromePath = detectChromePath()
	}
	s := &ChromeSurface{
		spoolDir:   spoolDir,
		chromePath: chromePath,
		timeout:    timeout,
		logg:       logg,
	}
	s.render = s.renderPDF
	return s, nil
}

func detectChromePath() string {
	for _, path := range chromeCandidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Print renders the job and writes it atomically into the spool directory.
func (s *ChromeSurface) Print(ctx context.Context, job Job) error {
	pdf, err := s.render(ctx, job.Document)
	if err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}

	dir := filepath.Join(s.spoolDir, job.TenantID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create spool dir: %w", err)
	}
	target := filepath.Join(dir, job.OrderID.String()+".pdf")
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, pdf, 0o644); err != nil {
		return fmt.Errorf("write spool file: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("commit spool file: %w", err)
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"tenant_id": job.TenantID.String(),
		"order_id":  job.OrderID.String(),
		"path":      target,
	})
	s.logg.Info(logCtx, "receipt spooled")
	return nil
}

func (s *ChromeSurface) renderPDF(ctx context.Context, doc []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
	)
	if s.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(s.chromePath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	var pdf []byte
	err := chromedp.Run(browserCtx,
		emulation.SetScriptExecutionDisabled(true),
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, string(doc)).Do(ctx)
		}),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(paperWidthInches).
				WithPaperHeight(paperHeightInches).
				WithPreferCSSPageSize(true).
				WithMarginTop(0).
				WithMarginBottom(0).
				WithMarginLeft(0).
				WithMarginRight(0).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, err
	}
	return pdf, nil
}
