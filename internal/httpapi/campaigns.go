package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"zapblast/internal/campaign"
	"zapblast/internal/contact"
	"zapblast/internal/scheduler"
	"zapblast/internal/storage"
	"zapblast/internal/transport"
	logx "zapblast/pkg/logx"
)

// startResponse is returned by POST /campaigns for both immediate and
// deferred starts.
type startResponse struct {
	Campaign  *campaign.Status   `json:"campaign,omitempty"`
	Scheduled *scheduler.Pending `json:"scheduled,omitempty"`
	Valid     int                `json:"valid"`
	Invalid   int                `json:"invalid"`
}

// handleStart accepts a multipart form:
//
//	contacts  (file, required)  CSV with a "number" column
//	message   (field)           text body or attachment caption
//	image     (file)            optional image attachment
//	audio     (file)            optional voice-note attachment
//	schedule  (field)           optional deferral ("45m", "09:30", cron)
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.UploadMaxBytes)
	if err := r.ParseMultipartForm(s.cfg.UploadMaxBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	f, _, err := r.FormFile("contacts")
	if err != nil {
		writeError(w, http.StatusBadRequest, "contacts file is required")
		return
	}
	defer f.Close()

	rows, err := contact.ReadCSV(f)
	if err != nil {
		writeError(w, http.StatusBadRequest, "contacts csv: "+err.Error())
		return
	}
	valid, invalid := contact.Partition(rows)

	payload, err := s.buildPayload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if schedule := strings.TrimSpace(r.FormValue("schedule")); schedule != "" {
		pending, err := s.sched.Arm(schedule, valid, payload)
		if err != nil {
			code := http.StatusBadRequest
			if errors.Is(err, scheduler.ErrAlreadyArmed) {
				code = http.StatusConflict
			}
			writeError(w, code, err.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, startResponse{
			Scheduled: &pending, Valid: len(valid), Invalid: invalid,
		})
		return
	}

	st, err := s.engine.Start(valid, payload)
	if err != nil {
		code := http.StatusBadRequest
		if errors.Is(err, campaign.ErrAlreadyRunning) {
			code = http.StatusConflict
		}
		writeError(w, code, err.Error())
		return
	}
	s.log.Info("campaign accepted",
		logx.String("campaign_id", st.ID),
		logx.Int("valid", len(valid)),
		logx.Int("invalid", invalid))
	writeJSON(w, http.StatusCreated, startResponse{
		Campaign: &st, Valid: len(valid), Invalid: invalid,
	})
}

func (s *Server) buildPayload(r *http.Request) (transport.Payload, error) {
	p := transport.Payload{Text: r.FormValue("message")}

	read := func(field string) ([]byte, string, error) {
		f, hdr, err := r.FormFile(field)
		if err != nil {
			if errors.Is(err, http.ErrMissingFile) {
				return nil, "", nil
			}
			return nil, "", err
		}
		defer f.Close()
		b, err := io.ReadAll(f)
		if err != nil {
			return nil, "", err
		}
		return b, hdr.Header.Get("Content-Type"), nil
	}

	var err error
	if p.Image, p.ImageMIME, err = read("image"); err != nil {
		return p, errors.New("image attachment: " + err.Error())
	}
	if p.Audio, p.AudioMIME, err = read("audio"); err != nil {
		return p, errors.New("audio attachment: " + err.Error())
	}
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	stopped := s.engine.Stop()
	writeJSON(w, http.StatusOK, map[string]bool{"stopped": stopped})
}

// statusResponse pairs the engine snapshot with any armed deferral.
type statusResponse struct {
	Campaign  campaign.Status    `json:"campaign"`
	Scheduled *scheduler.Pending `json:"scheduled,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Campaign:  s.engine.Status(),
		Scheduled: s.sched.Status(),
	})
}

func (s *Server) handleUnschedule(w http.ResponseWriter, r *http.Request) {
	if err := s.sched.Cancel(); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	entries, err := s.rec.Recent(r.Context(), r.URL.Query().Get("campaign_id"), limit)
	if err != nil {
		if errors.Is(err, storage.ErrDisabled) {
			writeError(w, http.StatusNotImplemented, "report storage is disabled")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []storage.ReportEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": entries})
}
