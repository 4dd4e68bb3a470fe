package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/MikeSquared-Agency/scribe/internal/ingest"
)

// multipartMemory is how much of an upload is buffered in memory before
// spilling to a temp file.
const multipartMemory = 32 << 20

// createImport handles POST /api/v1/imports. The archive comes in the
// "file" form field. With "Accept: text/event-stream" progress is streamed
// as events; otherwise the response is the import summary.
func (s *Server) createImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) || strings.Contains(err.Error(), "request body too large") {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	file := ingest.FromMultipart(headers[0])
	if err := ingest.CheckFile(file); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		s.streamImport(w, r, file)
		return
	}

	res, err := s.importer.Import(r.Context(), file, nil)
	if err != nil {
		writeError(w, importStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) streamImport(w http.ResponseWriter, r *http.Request, file ingest.File) {
	es, ok := newEventStream(w)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	res, err := s.importer.Import(r.Context(), file, func(p ingest.Progress) {
		es.send("progress", p)
	})
	if err != nil {
		es.send("error", map[string]string{"error": err.Error()})
		return
	}
	es.send("done", res)
}

// listImports handles GET /api/v1/imports: recent runs, newest first.
func (s *Server) listImports(w http.ResponseWriter, r *http.Request) {
	runs := []ingest.Run{}
	if s.history != nil {
		runs = append(runs, s.history.Runs()...)
	}
	writeJSON(w, http.StatusOK, map[string]any{"imports": runs})
}

func importStatus(err error) int {
	var perr *ingest.ParseError
	if errors.Is(err, ingest.ErrUnsupportedFile) || errors.As(err, &perr) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
