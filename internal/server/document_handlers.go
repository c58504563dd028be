package server

import (
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pixelforge/forge/internal/domain"
	"github.com/pixelforge/forge/internal/services/document"
)

// multipartOverhead leaves room for form fields and part headers on top of the file limit.
const multipartOverhead = 1 << 20

// handleUpload accepts a multipart form with a "file" part and a "projectId" field.
func (a *api) handleUpload(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsOrError(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.documents.MaxUploadBytes()+multipartOverhead)
	if err := r.ParseMultipartForm(multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.fail(w, r, domain.Validationf("file exceeds the %d byte upload limit", a.documents.MaxUploadBytes()))
			return
		}
		a.fail(w, r, domain.Validationf("expected a multipart form: %v", err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	projectID := strings.TrimSpace(r.FormValue("projectId"))
	if projectID == "" {
		a.fail(w, r, domain.Validationf("projectId is required"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		a.fail(w, r, domain.Validationf("file is required"))
		return
	}
	defer file.Close()

	doc, err := a.documents.Upload(r.Context(), claims, document.UploadInput{
		ProjectID:   projectID,
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDocumentResponse(doc))
}

func (a *api) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := a.documents.List(r.Context(), chi.URLParam(r, "projectId"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	resp := make([]documentResponse, 0, len(docs))
	for i := range docs {
		resp = append(resp, toDocumentResponse(&docs[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *api) handleDownloadDocument(w http.ResponseWriter, r *http.Request) {
	doc, file, err := a.documents.Open(r.Context(), chi.URLParam(r, "projectId"), chi.URLParam(r, "documentId"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	defer file.Close()

	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.OriginalName}))
	http.ServeContent(w, r, doc.OriginalName, doc.UploadedAt, file)
}
