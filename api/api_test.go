package api_test

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/sha512"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/feoblog/feoblog/api"
	"github.com/feoblog/feoblog/identity"
	"github.com/feoblog/feoblog/item"
	"github.com/feoblog/feoblog/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.Store) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feoblog.db")
	s, err := store.Create(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	srv := httptest.NewServer(api.NewRouter(s))
	t.Cleanup(srv.Close)
	return srv, s
}

func signedPost(t *testing.T, priv ed25519.PrivateKey, ts int64, title, body string) []byte {
	t.Helper()
	it := &item.Item{TimestampMsUTC: ts, Post: &item.Post{Title: title, Body: body}}
	raw := item.Encode(it)
	return raw
}

// TestAdmissionOnEmptyDB implements the literal first scenario of spec §8:
// init a store, grant U0 server-user status, PUT a signed Post, and expect
// it to show up on the homepage with no_more_items=true.
func TestAdmissionOnEmptyDB(t *testing.T) {
	srv, s := newTestServer(t)
	pub, priv, _ := ed25519.GenerateKey(nil)
	user, err := identity.UserIDFromBytes(pub)
	require.NoError(t, err)
	require.NoError(t, s.AddServerUser(context.Background(), user.Bytes(), true, ""))

	raw := signedPost(t, priv, 1700000000000, "Hi", "Hello")
	sigBytes := ed25519.Sign(priv, raw)
	sig, err := identity.SignatureFromBytes(sigBytes)
	require.NoError(t, err)

	putURL := srv.URL + "/u/" + user.String() + "/i/" + sig.String() + "/proto3"
	req, err := http.NewRequest(http.MethodPut, putURL, bytes.NewReader(raw))
	require.NoError(t, err)
	req.ContentLength = int64(len(raw))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	getResp, err := http.Get(srv.URL + "/homepage/proto3?count=10")
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)
	body, err := io.ReadAll(getResp.Body)
	require.NoError(t, err)

	list, err := item.DecodeList(body)
	require.NoError(t, err)
	require.True(t, list.NoMoreItems)
	require.Len(t, list.Entries, 1)
	require.Equal(t, int64(1700000000000), list.Entries[0].TimestampMsUTC)
	require.Equal(t, item.ItemTypePost, list.Entries[0].Type)
}

func TestPutItemRejectsUnknownUser(t *testing.T) {
	srv, _ := newTestServer(t)
	pub, priv, _ := ed25519.GenerateKey(nil)
	user, err := identity.UserIDFromBytes(pub)
	require.NoError(t, err)

	raw := signedPost(t, priv, 1700000000000, "Hi", "Hello")
	sigBytes := ed25519.Sign(priv, raw)
	sig, err := identity.SignatureFromBytes(sigBytes)
	require.NoError(t, err)

	putURL := srv.URL + "/u/" + user.String() + "/i/" + sig.String() + "/proto3"
	req, err := http.NewRequest(http.MethodPut, putURL, bytes.NewReader(raw))
	require.NoError(t, err)
	req.ContentLength = int64(len(raw))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestGetItemNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	pub, _, _ := ed25519.GenerateKey(nil)
	user, err := identity.UserIDFromBytes(pub)
	require.NoError(t, err)
	sig, err := identity.SignatureFromBytes(make([]byte, 64))
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/u/" + user.String() + "/i/" + sig.String() + "/proto3")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOptionsPreflightListsAllMethods(t *testing.T) {
	srv, _ := newTestServer(t)
	pub, _, _ := ed25519.GenerateKey(nil)
	user, err := identity.UserIDFromBytes(pub)
	require.NoError(t, err)
	sig, err := identity.SignatureFromBytes(make([]byte, 64))
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/u/"+user.String()+"/i/"+sig.String()+"/proto3", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	allow := resp.Header.Get("Access-Control-Allow-Methods")
	require.Contains(t, allow, http.MethodGet)
	require.Contains(t, allow, http.MethodPut)
}

func TestTwoPhaseAttachmentUploadOverHTTP(t *testing.T) {
	srv, s := newTestServer(t)
	pub, priv, _ := ed25519.GenerateKey(nil)
	user, err := identity.UserIDFromBytes(pub)
	require.NoError(t, err)
	require.NoError(t, s.AddServerUser(context.Background(), user.Bytes(), true, ""))

	content := []byte("hello attachment")
	sum := sha512.Sum512(content)
	it := &item.Item{
		TimestampMsUTC: 1700000000000,
		Post: &item.Post{
			Title:       "with file",
			Attachments: []item.File{{Name: "a.bin", Size: uint64(len(content)), Hash: sum[:]}},
		},
	}
	raw := item.Encode(it)
	sigBytes := ed25519.Sign(priv, raw)
	sig, err := identity.SignatureFromBytes(sigBytes)
	require.NoError(t, err)

	base := srv.URL + "/u/" + user.String() + "/i/" + sig.String()
	putReq, err := http.NewRequest(http.MethodPut, base+"/proto3", bytes.NewReader(raw))
	require.NoError(t, err)
	putReq.ContentLength = int64(len(raw))
	putResp, err := http.DefaultClient.Do(putReq)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, putResp.StatusCode)
	putResp.Body.Close()

	fileURL := base + "/files/a.bin"
	headResp, err := http.Head(fileURL)
	require.NoError(t, err)
	headResp.Body.Close()
	require.Equal(t, http.StatusNotFound, headResp.StatusCode)
	require.Equal(t, "0", headResp.Header.Get("X-FB-Quota-Exceeded"))

	fileReq, err := http.NewRequest(http.MethodPut, fileURL, bytes.NewReader(content))
	require.NoError(t, err)
	fileReq.ContentLength = int64(len(content))
	fileResp, err := http.DefaultClient.Do(fileReq)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, fileResp.StatusCode)
	fileResp.Body.Close()

	getResp, err := http.Get(fileURL)
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)
	gotBody, err := io.ReadAll(getResp.Body)
	require.NoError(t, err)
	require.Equal(t, content, gotBody)
}

func TestImmutableETagShortCircuits304(t *testing.T) {
	srv, s := newTestServer(t)
	pub, priv, _ := ed25519.GenerateKey(nil)
	user, err := identity.UserIDFromBytes(pub)
	require.NoError(t, err)
	require.NoError(t, s.AddServerUser(context.Background(), user.Bytes(), true, ""))

	raw := signedPost(t, priv, 1700000000000, "Hi", "Hello")
	sigBytes := ed25519.Sign(priv, raw)
	sig, err := identity.SignatureFromBytes(sigBytes)
	require.NoError(t, err)

	putURL := srv.URL + "/u/" + user.String() + "/i/" + sig.String() + "/proto3"
	req, err := http.NewRequest(http.MethodPut, putURL, bytes.NewReader(raw))
	require.NoError(t, err)
	req.ContentLength = int64(len(raw))
	putResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	putResp.Body.Close()

	getReq, err := http.NewRequest(http.MethodGet, putURL, nil)
	require.NoError(t, err)
	getReq.Header.Set("If-None-Match", `"immutable"`)
	getResp, err := http.DefaultClient.Do(getReq)
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusNotModified, getResp.StatusCode)
}
