package handlers

import (
	"io"
	"net/http"
	"path/filepath"

	"github.com/migasfree/migasfree-backend/internal/envelope"
	"github.com/migasfree/migasfree-backend/internal/httpserver/deps"
	"github.com/migasfree/migasfree-backend/internal/logger"
)

const maxEnvelopeBytes = 32 << 20

// SyncCommand accepts one legacy protocol exchange: a multipart upload
// whose file name carries "{name}[.{uuid}].{command}" and whose content is
// the wrapped request envelope. The reply body uses the same framing with
// a ".return" suffix on the download name.
func SyncCommand(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxEnvelopeBytes); err != nil {
			http.Error(w, "malformed multipart body", http.StatusBadRequest)
			return
		}
		file, hdr, err := r.FormFile("message")
		if err != nil {
			http.Error(w, "missing message file", http.StatusBadRequest)
			return
		}
		defer func() { _ = file.Close() }()

		// Request filenames come straight from untrusted agents.
		name := filepath.Base(hdr.Filename)
		if err := envelope.SafeName(name); err != nil {
			http.Error(w, "invalid request name", http.StatusBadRequest)
			return
		}

		body, err := io.ReadAll(io.LimitReader(file, maxEnvelopeBytes))
		if err != nil {
			http.Error(w, "unreadable request body", http.StatusBadRequest)
			return
		}

		if d.Admission != nil {
			release := d.Admission.Acquire()
			defer release()
		}

		reply, err := d.Sync.Handle(r.Context(), name, body)
		if err != nil {
			d.Logger.Error("sync exchange failed",
				logger.String("request", name),
				logger.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Disposition", `attachment; filename="`+name+`.return"`)
		if _, err := w.Write(reply); err != nil {
			d.Logger.Debug("failed to write reply", logger.Error(err))
		}
	}
}
