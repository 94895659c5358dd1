package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"zapblast/internal/campaign"
	"zapblast/internal/eventbus"
	"zapblast/internal/reports"
	"zapblast/internal/scheduler"
	"zapblast/internal/transport/sim"
	logx "zapblast/pkg/logx"
)

const contactsCSV = "name,number\nAna,+55 (11) 99999-9999\nBeto,5521988888888\nCaio,1131234567\nbad,123\n"

func testServer(t *testing.T) (*Server, *campaign.Service) {
	t.Helper()
	bus := eventbus.New()
	session := sim.New(sim.Config{Latency: time.Millisecond, RatePerSec: 1000}, logx.Nop())
	if err := session.Connect(context.Background()); err != nil {
		t.Fatalf("sim connect: %v", err)
	}
	engine := campaign.New(campaign.Config{
		MinDelay:    50 * time.Millisecond,
		MaxDelay:    100 * time.Millisecond,
		SendTimeout: time.Second,
	}, session, bus, logx.Nop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		engine.Shutdown(ctx)
	})
	sched := scheduler.New(scheduler.Config{Enabled: true}, engine, logx.Nop())
	rec := reports.New(nil, bus, logx.Nop())
	return New(Config{Addr: ":0"}, engine, sched, rec, bus, logx.Nop()), engine
}

func multipartBody(t *testing.T, fields map[string]string, csv string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if csv != "" {
		fw, err := mw.CreateFormFile("contacts", "contacts.csv")
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		if _, err := fw.Write([]byte(csv)); err != nil {
			t.Fatalf("write csv: %v", err)
		}
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestStartCampaign(t *testing.T) {
	t.Parallel()
	srv, engine := testServer(t)

	body, ctype := multipartBody(t, map[string]string{"message": "hello"}, contactsCSV)
	req := httptest.NewRequest(http.MethodPost, "/campaigns", body)
	req.Header.Set("Content-Type", ctype)
	rr := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	var resp startResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Valid != 3 || resp.Invalid != 1 {
		t.Fatalf("valid/invalid = %d/%d, want 3/1", resp.Valid, resp.Invalid)
	}
	if resp.Campaign == nil || resp.Campaign.Total != 3 {
		t.Fatalf("campaign: %+v", resp.Campaign)
	}

	// second start while running is a conflict
	body2, ctype2 := multipartBody(t, map[string]string{"message": "again"}, contactsCSV)
	req2 := httptest.NewRequest(http.MethodPost, "/campaigns", body2)
	req2.Header.Set("Content-Type", ctype2)
	rr2 := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rr2, req2)
	if rr2.Code != http.StatusConflict {
		t.Fatalf("second start status = %d, want 409", rr2.Code)
	}

	// stop it
	rr3 := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rr3, httptest.NewRequest(http.MethodPost, "/campaigns/stop", nil))
	if rr3.Code != http.StatusOK {
		t.Fatalf("stop status = %d", rr3.Code)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && engine.Status().State != campaign.StateIdle {
		time.Sleep(10 * time.Millisecond)
	}
	if engine.Status().State != campaign.StateIdle {
		t.Fatal("engine did not return to idle after stop")
	}
}

func TestStartRejectsEmptyPayload(t *testing.T) {
	t.Parallel()
	srv, _ := testServer(t)

	body, ctype := multipartBody(t, nil, contactsCSV)
	req := httptest.NewRequest(http.MethodPost, "/campaigns", body)
	req.Header.Set("Content-Type", ctype)
	rr := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestStartRequiresContacts(t *testing.T) {
	t.Parallel()
	srv, _ := testServer(t)

	body, ctype := multipartBody(t, map[string]string{"message": "hi"}, "")
	req := httptest.NewRequest(http.MethodPost, "/campaigns", body)
	req.Header.Set("Content-Type", ctype)
	rr := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestScheduleLifecycle(t *testing.T) {
	t.Parallel()
	srv, _ := testServer(t)

	body, ctype := multipartBody(t, map[string]string{"message": "hi", "schedule": "1h"}, contactsCSV)
	req := httptest.NewRequest(http.MethodPost, "/campaigns", body)
	req.Header.Set("Content-Type", ctype)
	rr := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	var resp startResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Scheduled == nil || resp.Scheduled.Total != 3 {
		t.Fatalf("scheduled: %+v", resp.Scheduled)
	}

	// status reflects the armed deferral
	rr2 := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rr2, httptest.NewRequest(http.MethodGet, "/campaigns/status", nil))
	if rr2.Code != http.StatusOK || !strings.Contains(rr2.Body.String(), resp.Scheduled.ID) {
		t.Fatalf("status body: %s", rr2.Body.String())
	}

	// only one deferral at a time
	body3, ctype3 := multipartBody(t, map[string]string{"message": "hi", "schedule": "2h"}, contactsCSV)
	req3 := httptest.NewRequest(http.MethodPost, "/campaigns", body3)
	req3.Header.Set("Content-Type", ctype3)
	rr3 := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rr3, req3)
	if rr3.Code != http.StatusConflict {
		t.Fatalf("second schedule status = %d, want 409", rr3.Code)
	}

	rr4 := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rr4, httptest.NewRequest(http.MethodDelete, "/campaigns/schedule", nil))
	if rr4.Code != http.StatusOK {
		t.Fatalf("unschedule status = %d", rr4.Code)
	}
	rr5 := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rr5, httptest.NewRequest(http.MethodDelete, "/campaigns/schedule", nil))
	if rr5.Code != http.StatusNotFound {
		t.Fatalf("second unschedule status = %d, want 404", rr5.Code)
	}
}

func TestReportsDisabled(t *testing.T) {
	t.Parallel()
	srv, _ := testServer(t)

	rr := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/campaigns/reports", nil))
	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d, want 501", rr.Code)
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	srv, _ := testServer(t)

	rr := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
}
