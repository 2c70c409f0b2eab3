package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rpattn/cmdbgraph/internal/domain"
)

// pageSize matches the store's search page cap, so each page is one
// full query.
const pageSize = 100

var columns = []string{
	"ci_code", "name", "ci_class", "ci_type", "status", "criticality",
	"environment", "location", "owner", "support_group", "tags",
	"attributes", "created_at", "updated_at",
}

// searcher is the slice of the CI service the exporter needs.
type searcher interface {
	Search(ctx context.Context, filter domain.CIFilter, page, pageSize int) ([]domain.ConfigurationItem, int64, error)
}

// Service streams the CI inventory as CSV, paging through search
// results so memory stays flat regardless of inventory size.
type Service struct {
	cis searcher
}

func NewService(cis searcher) *Service {
	return &Service{cis: cis}
}

// WriteInventory writes the filtered inventory to w as CSV and returns
// the number of data rows written.
func (s *Service) WriteInventory(ctx context.Context, w io.Writer, filter domain.CIFilter) (int, error) {
	csvWriter := csv.NewWriter(w)
	if err := csvWriter.Write(columns); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}

	rows := 0
	row := make([]string, len(columns))
	for page := 1; ; page++ {
		if ctx.Err() != nil {
			return rows, ctx.Err()
		}
		items, _, err := s.cis.Search(ctx, filter, page, pageSize)
		if err != nil {
			return rows, fmt.Errorf("list configuration items: %w", err)
		}
		if len(items) == 0 {
			break
		}
		for _, ci := range items {
			fillRow(row, ci)
			if err := csvWriter.Write(row); err != nil {
				return rows, fmt.Errorf("write row: %w", err)
			}
			rows++
		}
		csvWriter.Flush()
		if err := csvWriter.Error(); err != nil {
			return rows, fmt.Errorf("flush rows: %w", err)
		}
		if len(items) < pageSize {
			break
		}
	}

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return rows, fmt.Errorf("final flush: %w", err)
	}
	return rows, nil
}

func fillRow(row []string, ci domain.ConfigurationItem) {
	row[0] = ci.CICode
	row[1] = ci.Name
	row[2] = string(ci.Class)
	row[3] = ci.CIType
	row[4] = string(ci.Status)
	row[5] = string(ci.Criticality)
	row[6] = ci.Environment
	row[7] = ci.Location
	row[8] = ci.Owner
	row[9] = ci.SupportGroup
	row[10] = strings.Join(ci.Tags, ";")
	row[11] = formatAttributes(ci.Attributes)
	row[12] = ci.CreatedAt.UTC().Format(time.RFC3339)
	row[13] = ci.UpdatedAt.UTC().Format(time.RFC3339)
}

func formatAttributes(attributes map[string]any) string {
	if len(attributes) == 0 {
		return ""
	}
	encoded, err := json.Marshal(attributes)
	if err != nil {
		return fmt.Sprintf("%v", attributes)
	}
	return string(encoded)
}
