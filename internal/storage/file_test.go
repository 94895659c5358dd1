package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "zapblast/pkg/logx"
)

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "zapblast_store")

	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	entries := []ReportEntry{
		{At: time.Now(), CampaignID: "c1", Kind: ReportAttempt, Number: "5511999999999", OK: true, Sent: 1, Total: 2},
		{At: time.Now(), CampaignID: "c1", Kind: ReportAttempt, Number: "5521988888888", Error: "boom", Failed: 1, Sent: 1, Total: 2},
		{At: time.Now(), CampaignID: "c1", Kind: ReportSummary, Sent: 1, Failed: 1, Total: 2, DurationMS: 1234},
		{At: time.Now(), CampaignID: "c2", Kind: ReportAttempt, Number: "5531977777777", OK: true, Sent: 1, Total: 1},
	}
	for _, e := range entries {
		if err := st.AppendReport(ctx, e); err != nil {
			t.Fatalf("AppendReport: %v", err)
		}
	}

	got, err := st.RecentReports(ctx, "c1", 10)
	if err != nil {
		t.Fatalf("RecentReports: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("reports for c1 = %d, want 3", len(got))
	}
	if got[2].Kind != ReportSummary || got[2].DurationMS != 1234 {
		t.Fatalf("summary row mangled: %+v", got[2])
	}
	if got[1].Error != "boom" {
		t.Fatalf("error not preserved: %+v", got[1])
	}

	all, err := st.RecentReports(ctx, "", 2)
	if err != nil {
		t.Fatalf("RecentReports all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("limit not applied: %d rows", len(all))
	}
}

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	st, err := Open(Config{Driver: "none"}, logx.Nop())
	if err != nil || st != nil {
		t.Fatalf("disabled store: %v, %v", st, err)
	}
	st, err = Open(Config{}, logx.Nop())
	if err != nil || st != nil {
		t.Fatalf("empty driver: %v, %v", st, err)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "postgres", Path: "x"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
