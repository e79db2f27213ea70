package receipts

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderdesk-backend/internal/tenants"
	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	"github.com/angelmondragon/orderdesk-backend/pkg/enums"
	"github.com/angelmondragon/orderdesk-backend/pkg/metrics"
)

// Job is a rendered receipt ready for a print surface.
type Job struct {
	TenantID uuid.UUID
	OrderID  uuid.UUID
	ShortID  string
	Document []byte
}

// Surface receives rendered receipts. The browser surface is an operator session
// that opens a self-printing window; the pdf surface spools through headless Chrome.
type Surface interface {
	Print(ctx context.Context, job Job) error
}

// Printer renders an order and dispatches it to one surface.
type Printer struct {
	mode    enums.PrintMode
	surface Surface
	metrics *metrics.DeskMetrics
}

func NewPrinter(mode enums.PrintMode, surface Surface, m *metrics.DeskMetrics) (*Printer, error) {
	if !mode.IsValid() {
		return nil, fmt.Errorf("invalid print mode %q", mode)
	}
	if surface == nil {
		return nil, fmt.Errorf("print surface required")
	}
	return &Printer{mode: mode, surface: surface, metrics: m}, nil
}

// Mode reports which surface kind the printer drives.
func (p *Printer) Mode() enums.PrintMode {
	return p.mode
}

// Print renders and dispatches the receipt, returning the rendered job.
func (p *Printer) Print(ctx context.Context, order models.Order, info tenants.DisplayInfo) (Job, error) {
	doc, err := Generate(order, info)
	if err != nil {
		p.metrics.IncPrint(string(p.mode), err)
		return Job{}, err
	}
	job := Job{
		TenantID: order.TenantID,
		OrderID:  order.ID,
		ShortID:  ShortID(order),
		Document: doc,
	}
	err = p.surface.Print(ctx, job)
	p.metrics.IncPrint(string(p.mode), err)
	if err != nil {
		return job, fmt.Errorf("print receipt %s: %w", job.ShortID, err)
	}
	return job, nil
}
