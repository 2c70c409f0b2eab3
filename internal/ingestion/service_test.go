package ingestion

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/rpattn/cmdbgraph/internal/domain"
	"github.com/rpattn/cmdbgraph/internal/service"
)

type fakeCreator struct {
	requests []service.CreateCIRequest
	failOn   map[string]error
}

func (f *fakeCreator) Create(ctx context.Context, req service.CreateCIRequest, actor string) (domain.ConfigurationItem, error) {
	if err, ok := f.failOn[req.Name]; ok {
		return domain.ConfigurationItem{}, err
	}
	f.requests = append(f.requests, req)
	ci := domain.NewConfigurationItem(req.Class, req.Name, actor)
	ci.ID = uuid.New()
	return ci, nil
}

func TestIngestCreatesCIs(t *testing.T) {
	creator := &fakeCreator{}
	svc := NewService(creator)

	csvData := strings.Join([]string{
		"name,ci_class,ci_type,environment,criticality,tags,rack",
		"web-01,HARDWARE,server,production,HIGH,web;frontline,R12",
		"db-01,DATABASE,postgres,production,CRITICAL,,",
	}, "\n")

	summary, err := svc.Ingest(context.Background(), Request{
		FileName: "inventory.csv",
		Actor:    "alice",
		Data:     strings.NewReader(csvData),
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if summary.TotalRows != 2 || summary.Created != 2 || summary.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(creator.requests) != 2 {
		t.Fatalf("expected 2 create calls, got %d", len(creator.requests))
	}

	first := creator.requests[0]
	if first.Name != "web-01" || first.Class != domain.CIClassHardware {
		t.Errorf("first row mapped wrong: %+v", first)
	}
	if first.Criticality != domain.CICriticalityHigh {
		t.Errorf("criticality not mapped: %s", first.Criticality)
	}
	if len(first.Tags) != 2 || first.Tags[0] != "web" || first.Tags[1] != "frontline" {
		t.Errorf("tags not split: %v", first.Tags)
	}
	// Unknown columns become attributes.
	if first.Attributes["rack"] != "R12" {
		t.Errorf("unknown column should land in attributes: %v", first.Attributes)
	}

	second := creator.requests[1]
	if second.Tags != nil {
		t.Errorf("empty tags cell should stay nil, got %v", second.Tags)
	}
	if second.Attributes != nil {
		t.Errorf("no extra columns means nil attributes, got %v", second.Attributes)
	}
}

func TestIngestReportsInvalidRows(t *testing.T) {
	creator := &fakeCreator{failOn: map[string]error{"dup-01": domain.ErrDuplicateIdentifier}}
	svc := NewService(creator)

	csvData := strings.Join([]string{
		"name,ci_class",
		"ok-01,HARDWARE",
		",HARDWARE",
		"bad-class,MAINFRAME",
		"dup-01,HARDWARE",
	}, "\n")

	summary, err := svc.Ingest(context.Background(), Request{
		FileName: "mixed.csv",
		Actor:    "alice",
		Data:     strings.NewReader(csvData),
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if summary.TotalRows != 4 {
		t.Errorf("expected 4 rows, got %d", summary.TotalRows)
	}
	if summary.Created != 1 {
		t.Errorf("expected 1 created, got %d", summary.Created)
	}
	if summary.Failed != 3 {
		t.Errorf("expected 3 failed, got %d", summary.Failed)
	}
	if len(summary.Errors) != 3 {
		t.Fatalf("expected 3 row errors, got %d", len(summary.Errors))
	}
	// Row numbers are 1-based and account for the header.
	if summary.Errors[0].RowNumber != 3 {
		t.Errorf("expected first error on row 3, got %d", summary.Errors[0].RowNumber)
	}
}

func TestIngestHeaderSanitization(t *testing.T) {
	creator := &fakeCreator{}
	svc := NewService(creator)

	csvData := strings.Join([]string{
		"Name,CI Class,Support-Group",
		"app-01,SERVICE,platform",
	}, "\n")

	summary, err := svc.Ingest(context.Background(), Request{
		FileName: "odd-headers.csv",
		Actor:    "alice",
		Data:     strings.NewReader(csvData),
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if summary.Created != 1 {
		t.Fatalf("expected 1 created, got %+v", summary)
	}
	if creator.requests[0].SupportGroup != "platform" {
		t.Errorf("header sanitization failed: %+v", creator.requests[0])
	}
}

func TestIngestEmptyFile(t *testing.T) {
	svc := NewService(&fakeCreator{})

	if _, err := svc.Ingest(context.Background(), Request{FileName: "empty.csv", Data: strings.NewReader("")}); err == nil {
		t.Fatal("expected error for empty file")
	}
}
