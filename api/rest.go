package api

import (
	"context"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/feoblog/feoblog/admission"
	"github.com/feoblog/feoblog/identity"
	"github.com/feoblog/feoblog/item"
	"github.com/feoblog/feoblog/store"
)

// maxItemUploadBytes is the hard upper bound an item PUT body is read to,
// matching the 32 KiB item-size limit (spec §4.5 "explicit upper bound").
const maxItemUploadBytes = store.ItemSizeLimit

func (s *Server) handleHomepage(w http.ResponseWriter, r *http.Request) {
	pg := parsePagination(r)
	s.writeItemList(w, r, pg, func(ctx context.Context, cb store.RowFunc) error {
		return s.Store.HomepageItems(ctx, pg.Span, cb)
	})
}

func (s *Server) handleUserItems(w http.ResponseWriter, r *http.Request) {
	user, ok := parseUser(w, r)
	if !ok {
		return
	}
	pg := parsePagination(r)
	s.writeItemList(w, r, pg, func(ctx context.Context, cb store.RowFunc) error {
		return s.Store.UserItems(ctx, user.Bytes(), pg.Span, cb)
	})
}

func (s *Server) handleUserFeed(w http.ResponseWriter, r *http.Request) {
	user, ok := parseUser(w, r)
	if !ok {
		return
	}
	pg := parsePagination(r)
	s.writeItemList(w, r, pg, func(ctx context.Context, cb store.RowFunc) error {
		return s.Store.UserFeedItems(ctx, user.Bytes(), pg.Span, cb)
	})
}

func (s *Server) handleReplies(w http.ResponseWriter, r *http.Request) {
	user, ok := parseUser(w, r)
	if !ok {
		return
	}
	sig, ok := parseSignature(w, r)
	if !ok {
		return
	}
	pg := parsePagination(r)
	s.writeItemList(w, r, pg, func(ctx context.Context, cb store.RowFunc) error {
		return s.Store.ReplyItems(ctx, user.Bytes(), sig.Bytes(), pg.Span.Ts, cb)
	})
}

// writeItemList runs a paginated store query through the pagination
// callback protocol (spec §4.3.2), collecting at most pg.Count+1 rows and
// encoding at most pg.Count: the extra row (if present) only tells us whether more remain, and is
// never itself emitted, matching the `no_more_items` semantics of §6.
func (s *Server) writeItemList(w http.ResponseWriter, r *http.Request, pg Pagination, run func(context.Context, store.RowFunc) error) {
	var rows []store.ItemRow
	err := run(r.Context(), func(row store.ItemRow) bool {
		rows = append(rows, row)
		return len(rows) <= pg.Count
	})
	if err != nil {
		log.WithError(err).WithField("op", "writeItemList").Error("store query failed")
		writeError(w, errInternal(err.Error()))
		return
	}

	noMore := len(rows) <= pg.Count
	if !noMore {
		rows = rows[:pg.Count]
	}

	list := &item.List{NoMoreItems: noMore}
	for _, row := range rows {
		entry := item.ListEntry{TimestampMsUTC: row.TimestampMsUTC}
		copy(entry.UserID[:], row.User)
		copy(entry.Signature[:], row.Signature)
		if decoded, err := item.Decode(row.Bytes); err == nil {
			entry.Type = decoded.Type()
		}
		list.Entries = append(list.Entries, entry)
	}

	w.Header().Set("Content-Type", protobuf3ContentType)
	_, _ = w.Write(item.EncodeList(list))
}

func (s *Server) handleUserProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := parseUser(w, r)
	if !ok {
		return
	}
	row, err := s.Store.UserProfile(r.Context(), user.Bytes())
	if err != nil {
		log.WithError(err).WithField("user", user.String()).Error("UserProfile query failed")
		writeError(w, errInternal(err.Error()))
		return
	}
	if row == nil {
		writeError(w, errNotFound("No profile found"))
		return
	}
	sig, err := identity.SignatureFromBytes(row.Signature)
	if err != nil {
		log.WithError(err).Error("stored profile row has a malformed signature")
		writeError(w, errInternal(err.Error()))
		return
	}

	w.Header().Set("Signature", sig.String())
	w.Header().Set("Content-Type", protobuf3ContentType)
	_, _ = w.Write(row.Bytes)
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	user, ok := parseUser(w, r)
	if !ok {
		return
	}
	sig, ok := parseSignature(w, r)
	if !ok {
		return
	}
	row, err := s.Store.UserItem(r.Context(), user.Bytes(), sig.Bytes())
	if err != nil {
		log.WithError(err).WithField("user", user.String()).WithField("signature", sig.String()).Error("UserItem query failed")
		writeError(w, errInternal(err.Error()))
		return
	}
	if row == nil {
		writeError(w, errNotFound("Item not found"))
		return
	}
	w.Header().Set("Content-Type", protobuf3ContentType)
	setImmutableHeaders(w)
	_, _ = w.Write(row.Bytes)
}

// handlePutItem implements the write path of spec §4.3/§4.4/§6: read the
// body up to the hard size limit, run admission, and on Accept delegate
// to the store. Property P1 (round-trip) depends on writing exactly the
// bytes that were read, with no re-encoding.
func (s *Server) handlePutItem(w http.ResponseWriter, r *http.Request) {
	user, ok := parseUser(w, r)
	if !ok {
		return
	}
	sig, ok := parseSignature(w, r)
	if !ok {
		return
	}

	if r.ContentLength < 0 {
		writeError(w, errLengthRequired("Content-Length header required"))
		return
	}
	if r.ContentLength > maxItemUploadBytes {
		writeError(w, errPayloadTooLarge("Item exceeds the maximum size"))
		drainBody(r)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxItemUploadBytes+1))
	if err != nil {
		writeError(w, errBadRequest("could not read request body"))
		return
	}
	if len(body) > maxItemUploadBytes {
		writeError(w, errPayloadTooLarge("Item exceeds the maximum size"))
		drainBody(r)
		return
	}

	decision := admission.CheckPut(r.Context(), s.Store, user, sig, body)
	switch decision.Code {
	case admission.AlreadyExists:
		putsTotal.WithLabelValues("item", "already_exists").Inc()
		writeError(w, errStatus(http.StatusAccepted, decision.Message))
		return
	case admission.PayloadTooLarge:
		putsTotal.WithLabelValues("item", "rejected").Inc()
		writeError(w, errPayloadTooLarge(decision.Message))
		return
	case admission.Forbidden:
		putsTotal.WithLabelValues("item", "rejected").Inc()
		writeError(w, errForbidden(decision.Message))
		return
	case admission.BadRequest:
		putsTotal.WithLabelValues("item", "rejected").Inc()
		writeError(w, errBadRequest(decision.Message))
		return
	case admission.QuotaExceeded:
		putsTotal.WithLabelValues("item", "rejected").Inc()
		writeError(w, errInsufficientQuota(decision.Message))
		return
	}

	decoded, err := item.Decode(body)
	if err != nil {
		// CheckPut already validated this path; a decode failure here
		// would mean admission and codec disagree.
		log.WithError(err).Error("item decoded by admission failed to re-decode")
		writeError(w, errInternal(err.Error()))
		return
	}

	if err := s.Store.SaveUserItem(r.Context(), user.Bytes(), sig.Bytes(), decoded, body); err != nil {
		log.WithError(err).WithField("user", user.String()).WithField("signature", sig.String()).WithField("op", "SaveUserItem").Error("could not save item")
		writeError(w, errInternal(err.Error()))
		return
	}

	putsTotal.WithLabelValues("item", "accepted").Inc()
	w.WriteHeader(http.StatusCreated)
}

// parseUser reads the :user path segment, writing a 400 and returning ok=false
// on a bad base58 encoding or wrong byte length.
func parseUser(w http.ResponseWriter, r *http.Request) (identity.UserID, bool) {
	raw := mux.Vars(r)["user"]
	user, err := identity.ParseUserID(raw)
	if err != nil {
		writeError(w, errBadRequest("Invalid user ID: "+err.Error()))
		return identity.UserID{}, false
	}
	return user, true
}

func parseSignature(w http.ResponseWriter, r *http.Request) (identity.Signature, bool) {
	raw := mux.Vars(r)["sig"]
	sig, err := identity.ParseSignature(raw)
	if err != nil {
		writeError(w, errBadRequest("Invalid signature: "+err.Error()))
		return identity.Signature{}, false
	}
	return sig, true
}

// drainBody discards the remainder of the request body so that a client
// that keeps writing after a rejection doesn't corrupt the next request
// on the same connection (spec §4.5).
func drainBody(r *http.Request) {
	_, _ = io.Copy(io.Discard, io.LimitReader(r.Body, maxItemUploadBytes*2))
}
