package api

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/feoblog/feoblog/admission"
	"github.com/feoblog/feoblog/store"
)

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	user, ok := parseUser(w, r)
	if !ok {
		return
	}
	sig, ok := parseSignature(w, r)
	if !ok {
		return
	}
	name := mux.Vars(r)["name"]

	meta, err := s.Store.AttachmentMeta(r.Context(), user.Bytes(), sig.Bytes(), name)
	if err != nil {
		log.WithError(err).WithField("op", "AttachmentMeta").Error("attachment meta lookup failed")
		writeError(w, errInternal(err.Error()))
		return
	}
	if meta == nil {
		writeError(w, errNotFound("No such attachment"))
		return
	}

	data, err := s.Store.GetBlob(r.Context(), meta.Hash)
	if err != nil {
		log.WithError(err).WithField("op", "GetBlob").Error("blob read failed")
		writeError(w, errInternal(err.Error()))
		return
	}
	if data == nil {
		writeError(w, errNotFound("Attachment content not yet uploaded"))
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	setImmutableHeaders(w)
	_, _ = w.Write(data)
}

// handleHeadFile reports whether a blob is present without transferring
// its contents. When the meta row is known but the blob hasn't arrived
// yet, the X-FB-Quota-Exceeded header (spec §6, original_source/ feature
// carried into SPEC_FULL.md) tells the caller whether that's because the
// uploader is over quota or simply hasn't uploaded yet — quota is never
// actually enforced on attachment content today (spec §9), so this is
// always "0" until that policy exists.
func (s *Server) handleHeadFile(w http.ResponseWriter, r *http.Request) {
	user, ok := parseUser(w, r)
	if !ok {
		return
	}
	sig, ok := parseSignature(w, r)
	if !ok {
		return
	}
	name := mux.Vars(r)["name"]

	meta, err := s.Store.AttachmentMeta(r.Context(), user.Bytes(), sig.Bytes(), name)
	if err != nil {
		log.WithError(err).WithField("op", "AttachmentMeta").Error("attachment meta lookup failed")
		writeError(w, errInternal(err.Error()))
		return
	}
	if meta == nil {
		w.Header().Set("X-FB-Quota-Exceeded", "0")
		w.WriteHeader(http.StatusNotFound)
		return
	}

	exists, err := s.Store.BlobExists(r.Context(), meta.Hash)
	if err != nil {
		log.WithError(err).WithField("op", "BlobExists").Error("blob existence check failed")
		writeError(w, errInternal(err.Error()))
		return
	}
	if !exists {
		w.Header().Set("X-FB-Quota-Exceeded", "0")
		w.WriteHeader(http.StatusNotFound)
		return
	}

	setImmutableHeaders(w)
	w.WriteHeader(http.StatusOK)
}

// handlePutFile implements the second phase of the two-phase blob upload
// (spec §4.3.4): admission confirms the meta row exists and the declared
// size matches Content-Length, then a placeholder row is reserved and
// CommitBlobUpload reads the body, hashing it incrementally and buffering
// it in memory, and stores it under the real hash only if the hash matches.
func (s *Server) handlePutFile(w http.ResponseWriter, r *http.Request) {
	user, ok := parseUser(w, r)
	if !ok {
		return
	}
	sig, ok := parseSignature(w, r)
	if !ok {
		return
	}
	name := mux.Vars(r)["name"]

	if r.ContentLength < 0 {
		writeError(w, errLengthRequired("Content-Length header required"))
		return
	}

	decision := admission.CheckAttachmentPut(r.Context(), s.Store, user, sig, name, r.ContentLength)
	meta, metaErr := s.Store.AttachmentMeta(r.Context(), user.Bytes(), sig.Bytes(), name)
	if metaErr != nil {
		log.WithError(metaErr).Error("attachment meta lookup failed")
		writeError(w, errInternal(metaErr.Error()))
		return
	}

	switch decision.Code {
	case admission.AlreadyExists:
		putsTotal.WithLabelValues("attachment", "already_exists").Inc()
		drainBody(r)
		writeError(w, errStatus(http.StatusAccepted, decision.Message))
		return
	case admission.Forbidden:
		putsTotal.WithLabelValues("attachment", "rejected").Inc()
		drainBody(r)
		writeError(w, errForbidden(decision.Message))
		return
	case admission.BadRequest:
		putsTotal.WithLabelValues("attachment", "rejected").Inc()
		drainBody(r)
		writeError(w, errBadRequest(decision.Message))
		return
	}

	placeholder, err := s.Store.ReserveBlobPlaceholder(r.Context())
	if err != nil {
		log.WithError(err).Error("could not reserve blob placeholder")
		writeError(w, errInternal(err.Error()))
		return
	}

	limited := io.LimitReader(r.Body, r.ContentLength)
	if err := s.Store.CommitBlobUpload(r.Context(), placeholder, meta.Hash, limited); err != nil {
		drainBody(r)
		if err == store.ErrHashMismatch {
			putsTotal.WithLabelValues("attachment", "rejected").Inc()
			writeError(w, errBadRequest(err.Error()))
			return
		}
		log.WithError(err).WithField("op", "CommitBlobUpload").Error("attachment upload failed")
		writeError(w, errInternal(err.Error()))
		return
	}

	putsTotal.WithLabelValues("attachment", "accepted").Inc()
	w.WriteHeader(http.StatusCreated)
}
