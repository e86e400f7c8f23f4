package extract

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/JakeFAU/leasecar-etl/internal/leasecar"
)

// WritePreview renders the first n specifications as a console table.
func WritePreview(w io.Writer, specs []leasecar.VehicleSpec, n int) error {
	if n <= 0 {
		return nil
	}
	if len(specs) > n {
		specs = specs[:n]
	}
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetTitle(fmt.Sprintf("first %d of the extracted specifications", len(specs)))
	t.AppendHeader(table.Row{"id", "make", "model", "year", "fuelType", "retailPrice", "range"})
	for _, s := range specs {
		t.AppendRow(table.Row{
			s.ID, s.Make, s.Model, s.Year, s.FuelType,
			leasecar.FormatFloat(s.RetailPrice), leasecar.FormatFloat(s.Range),
		})
	}
	if _, err := io.WriteString(w, t.Render()+"\n"); err != nil {
		return fmt.Errorf("write preview: %w", err)
	}
	return nil
}
