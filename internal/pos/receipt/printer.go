package receipt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Printer delivers a rendered receipt document to a print target.
type Printer interface {
	Print(ctx context.Context, saleID int64, document []byte) error
}

// WriterPrinter writes documents to W, for example a pipe into a print command.
type WriterPrinter struct {
	mu sync.Mutex
	W  io.Writer
}

// Print writes document to the underlying writer.
func (p *WriterPrinter) Print(_ context.Context, _ int64, document []byte) error {
	if p == nil || p.W == nil {
		return errors.New("receipt: printer has no writer")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.W.Write(document)
	return err
}

// SpoolPrinter drops each document into a directory watched by a native print pipeline.
type SpoolPrinter struct {
	Dir   string
	Clock func() time.Time
}

// Print writes the document to a temporary file and renames it into place so the
// spooler never sees a partial file.
func (p SpoolPrinter) Print(ctx context.Context, saleID int64, document []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.Dir == "" {
		return errors.New("receipt: spool directory is not configured")
	}
	clock := p.Clock
	if clock == nil {
		clock = time.Now
	}
	tmp, err := os.CreateTemp(p.Dir, ".receipt-*.tmp")
	if err != nil {
		return fmt.Errorf("receipt: create spool file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(document); err != nil {
		tmp.Close()
		return fmt.Errorf("receipt: write spool file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("receipt: close spool file: %w", err)
	}
	name := fmt.Sprintf("receipt-%d-%s.html", saleID, clock().UTC().Format("20060102T150405.000"))
	if err := os.Rename(tmp.Name(), filepath.Join(p.Dir, name)); err != nil {
		return fmt.Errorf("receipt: publish spool file: %w", err)
	}
	return nil
}
