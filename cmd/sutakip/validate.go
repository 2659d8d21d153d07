package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/sutakip/sutakip/internal/adapter/snapshot"
	"github.com/sutakip/sutakip/internal/domain"
)

var errValidationFailed = errors.New("validation failed")

var validateSnapshotPath string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a snapshot file against the record invariants",
	Long: `Validate reads a snapshot file and checks that it is a JSON array of
records, that every record belongs to a known city, carries a valid type (or
none) and names at least one neighborhood.

Usage:

  sutakip validate --snapshot kesintiler.json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ok, err := runValidate(cmd.OutOrStdout(), validateSnapshotPath)
		if err != nil {
			return err
		}
		if !ok {
			return errValidationFailed
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateSnapshotPath, "snapshot", "kesintiler.json", "path to the snapshot file")
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// runValidate reports every phase to w and returns whether all of them passed.
// An error means the snapshot could not be read at all.
func runValidate(w io.Writer, path string) (bool, error) {
	fmt.Fprintln(w, "=== Snapshot Validation ===")
	fmt.Fprintln(w)

	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read snapshot: %w", err)
	}

	format := &phase{name: "Snapshot is a JSON array of records"}
	records, err := snapshot.Decode(data)
	if err != nil {
		format.errorf("%v", err)
	}

	phases := []*phase{
		format,
		validateCities(records),
		validateTypes(records),
		validateNeighborhoods(records),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintf(w, "\nRecords: %d\n", len(records))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(w, "\nAll validations passed.")
		return true, nil
	}
	fmt.Fprintln(w, "\nValidation FAILED.")
	return false, nil
}

func validateCities(records []domain.Record) *phase {
	p := &phase{name: "Every record has a known city"}
	for i, r := range records {
		if !domain.IsKnownCity(r.City) {
			p.errorf("record %d: unknown city %q", i, r.City)
		}
	}
	return p
}

func validateTypes(records []domain.Record) *phase {
	p := &phase{name: "Types are PLANNED, FAULT or absent"}
	for i, r := range records {
		if r.Type != "" && !r.Type.Valid() {
			p.errorf("record %d (%s): invalid type %q", i, r.City, r.Type)
		}
	}
	return p
}

func validateNeighborhoods(records []domain.Record) *phase {
	p := &phase{name: "Every record names a neighborhood"}
	for i, r := range records {
		if strings.TrimSpace(r.Neighborhood) == "" {
			p.errorf("record %d (%s/%s): empty neighborhood", i, r.City, r.District)
		}
	}
	return p
}
