package ingestion

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rpattn/cmdbgraph/internal/domain"
	"github.com/rpattn/cmdbgraph/internal/service"
)

var (
	// ErrMissingHeader is returned when the upload has no usable header row.
	ErrMissingHeader = errors.New("no header row detected")

	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}
)

// knownColumns maps sanitized CSV headers onto CI fields. Unknown
// columns land in the open attribute map.
var knownColumns = map[string]bool{
	"ci_code": true, "name": true, "description": true, "ci_class": true,
	"ci_type": true, "status": true, "criticality": true,
	"environment": true, "location": true, "owner": true,
	"support_group": true, "tags": true,
}

// creator is the slice of the CI service the importer needs.
type creator interface {
	Create(ctx context.Context, req service.CreateCIRequest, actor string) (domain.ConfigurationItem, error)
}

// Service bulk-imports configuration items from uploaded CSV files.
// Each row goes through the same create path as a single API call, so
// code allocation, duplicate checks and history all apply.
type Service struct {
	cis creator
}

// NewService creates a new import service.
func NewService(cis creator) *Service {
	return &Service{cis: cis}
}

// Request describes the import input.
type Request struct {
	FileName string
	Actor    string
	Data     io.Reader
}

// RowError reports why one row was rejected.
type RowError struct {
	RowNumber int    `json:"rowNumber"`
	Message   string `json:"message"`
}

// Summary returns import level metrics.
type Summary struct {
	TotalRows int        `json:"totalRows"`
	Created   int        `json:"created"`
	Failed    int        `json:"failed"`
	Errors    []RowError `json:"errors,omitempty"`
}

// Ingest reads the uploaded CSV and creates one CI per valid row.
// Invalid rows are skipped and reported; they never abort the import.
func (s *Service) Ingest(ctx context.Context, req Request) (Summary, error) {
	summary := Summary{Errors: []RowError{}}

	if req.Data == nil {
		return summary, errors.New("data reader is required")
	}
	payload, err := io.ReadAll(req.Data)
	if err != nil {
		return summary, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(payload) == 0 {
		return summary, errors.New("file is empty")
	}

	headers, rows, err := parseCSV(payload)
	if err != nil {
		return summary, err
	}
	summary.TotalRows = len(rows)

	for idx, row := range rows {
		rowNumber := idx + 2 // 1-based, after the header row
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}

		createReq, err := buildCreateRequest(headers, row)
		if err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, RowError{RowNumber: rowNumber, Message: err.Error()})
			continue
		}

		if _, err := s.cis.Create(ctx, createReq, req.Actor); err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, RowError{RowNumber: rowNumber, Message: err.Error()})
			continue
		}
		summary.Created++
	}

	return summary, nil
}

func buildCreateRequest(headers []string, row []string) (service.CreateCIRequest, error) {
	req := service.CreateCIRequest{}
	attributes := make(map[string]any)

	for idx, header := range headers {
		if idx >= len(row) {
			continue
		}
		value := strings.TrimSpace(row[idx])
		if value == "" {
			continue
		}
		switch header {
		case "ci_code":
			req.CICode = value
		case "name":
			req.Name = value
		case "description":
			req.Description = value
		case "ci_class":
			req.Class = domain.CIClass(strings.ToUpper(value))
		case "ci_type":
			req.CIType = value
		case "status":
			req.Status = domain.CIStatus(strings.ToUpper(value))
		case "criticality":
			req.Criticality = domain.CICriticality(strings.ToUpper(value))
		case "environment":
			req.Environment = value
		case "location":
			req.Location = value
		case "owner":
			req.Owner = value
		case "support_group":
			req.SupportGroup = value
		case "tags":
			req.Tags = splitTags(value)
		default:
			attributes[header] = value
		}
	}

	if req.Name == "" {
		return service.CreateCIRequest{}, errors.New("name is required")
	}
	if !req.Class.Valid() {
		return service.CreateCIRequest{}, fmt.Errorf("invalid ci_class %q", req.Class)
	}
	if len(attributes) > 0 {
		req.Attributes = attributes
	}
	return req, nil
}

func splitTags(value string) []string {
	parts := strings.Split(value, ";")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			tags = append(tags, trimmed)
		}
	}
	return tags
}

func parseCSV(payload []byte) ([]string, [][]string, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read csv: %w", err)
	}

	var headers []string
	var rows [][]string
	for _, record := range records {
		if isEmptyRow(record) {
			continue
		}
		if headers == nil {
			headers = sanitizeHeaders(record)
			continue
		}
		rows = append(rows, record)
	}
	if headers == nil {
		return nil, nil, ErrMissingHeader
	}
	return headers, rows, nil
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func sanitizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	seen := make(map[string]int)

	for idx, value := range raw {
		name := strings.ToLower(strings.TrimSpace(value))
		name = strings.ReplaceAll(name, " ", "_")
		name = strings.ReplaceAll(name, ".", "_")
		name = strings.ReplaceAll(name, "-", "_")
		name = strings.Trim(name, "_")
		if name == "" {
			name = fmt.Sprintf("column_%d", idx+1)
		}

		base := name
		count := seen[base]
		if count > 0 {
			name = fmt.Sprintf("%s_%d", base, count+1)
		}
		seen[base] = count + 1

		headers[idx] = name
	}

	return headers
}
