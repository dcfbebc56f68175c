package api

import (
	"fmt"
	"io"
	"log"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"dreamsun/generation"
	"dreamsun/imagehost"
	"dreamsun/middleware"
	"dreamsun/uploads"
)

type uploadBody struct {
	DataURL string `json:"dataUrl"`
}

type uploadResponse struct {
	URL string `json:"url"`
}

// upload stores one image synchronously. It accepts either a JSON data URL
// or a multipart "image" file.
func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	var (
		data     []byte
		mimeType string
	)
	if isMultipart(r) {
		if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
			writeError(w, &bodyError{msg: "could not parse multipart form", err: err})
			return
		}
		files := r.MultipartForm.File["image"]
		if len(files) == 0 {
			writeError(w, &bodyError{msg: "an image file is required"})
			return
		}
		var err error
		if data, mimeType, err = s.readPart(files[0]); err != nil {
			writeError(w, err)
			return
		}
	} else {
		var body uploadBody
		// Base64 inflates the payload by a third.
		if err := decodeBody(r, uploadSchema, &body, s.opts.MaxUploadBytes*4/3+1024); err != nil {
			writeError(w, err)
			return
		}
		var err error
		if data, mimeType, err = imagehost.ParseDataURL(body.DataURL); err != nil {
			writeError(w, err)
			return
		}
	}

	log.Printf("Uploading %d bytes (%s)", len(data), mimeType)
	url, err := s.uploader.Upload(r.Context(), data, mimeType)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{URL: url})
}

// startUploads starts one tracked upload per "image" file. With a modelId the
// file count is limited to what the model accepts. With wait=true the
// response is sent once every upload has finished.
func (s *Server) startUploads(w http.ResponseWriter, r *http.Request) {
	if !isMultipart(r) {
		writeError(w, &bodyError{msg: "multipart form expected"})
		return
	}
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		writeError(w, &bodyError{msg: "could not parse multipart form", err: err})
		return
	}
	files := r.MultipartForm.File["image"]
	if len(files) == 0 {
		writeError(w, &bodyError{msg: "at least one image file is required"})
		return
	}
	if err := s.checkUploadCount(r.FormValue("modelId"), len(files)); err != nil {
		writeError(w, err)
		return
	}
	for _, fh := range files {
		if err := s.checkPartSize(fh); err != nil {
			writeError(w, err)
			return
		}
	}

	owner := middleware.OwnerFrom(r.Context())
	wait := r.FormValue("wait") == "true"
	entries := make([]uploads.Entry, len(files))

	// Siblings are independent: a failed file never cancels the others.
	var g errgroup.Group
	for i, fh := range files {
		g.Go(func() error {
			data, mimeType, err := s.readPart(fh)
			if err != nil {
				return err
			}
			entry := s.tracker.Start(r.Context(), owner, data, mimeType)
			if wait {
				if entry, err = s.tracker.Wait(r.Context(), owner, entry.ID); err != nil {
					return err
				}
			}
			entries[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusAccepted
	if wait {
		status = http.StatusOK
	}
	writeJSON(w, status, entries)
}

func (s *Server) checkUploadCount(modelID string, n int) error {
	if modelID == "" {
		return nil
	}
	d, ok := s.service.Registry().Lookup(modelID)
	if !ok {
		return &generation.ValidationError{Field: "modelId", Message: fmt.Sprintf("model %q not found", modelID), Err: generation.ErrModelNotFound}
	}
	limit := d.MaxReferenceImages()
	if limit == 0 {
		return &generation.ValidationError{Field: "image", Message: fmt.Sprintf("model %q does not accept reference images", d.ID)}
	}
	if n > limit {
		return &generation.ValidationError{Field: "image", Message: fmt.Sprintf("model %q accepts at most %d reference images", d.ID, limit)}
	}
	return nil
}

func (s *Server) listUploads(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.List(middleware.OwnerFrom(r.Context())))
}

func (s *Server) getUpload(w http.ResponseWriter, r *http.Request) {
	entry, err := s.tracker.Get(middleware.OwnerFrom(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) removeUpload(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.Remove(middleware.OwnerFrom(r.Context()), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) checkPartSize(fh *multipart.FileHeader) error {
	if fh.Size > s.opts.MaxUploadBytes {
		return &imagehost.UploadError{
			Message:    fmt.Sprintf("%s is %d bytes, the limit is %d", fh.Filename, fh.Size, s.opts.MaxUploadBytes),
			StatusCode: http.StatusRequestEntityTooLarge,
		}
	}
	return nil
}

// readPart reads one uploaded file and resolves its MIME type.
func (s *Server) readPart(fh *multipart.FileHeader) ([]byte, string, error) {
	if err := s.checkPartSize(fh); err != nil {
		return nil, "", err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, "", &bodyError{msg: "could not open " + fh.Filename, err: err}
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", &bodyError{msg: "could not read " + fh.Filename, err: err}
	}
	mimeType, _, _ := mime.ParseMediaType(fh.Header.Get("Content-Type"))
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType, _, _ = mime.ParseMediaType(http.DetectContentType(data))
	}
	return data, mimeType, nil
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

