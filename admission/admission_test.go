package admission_test

import (
	"context"
	"crypto/ed25519"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/feoblog/feoblog/admission"
	"github.com/feoblog/feoblog/identity"
	"github.com/feoblog/feoblog/item"
	"github.com/feoblog/feoblog/store"
)

func freshStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feoblog.db")
	s, err := store.Create(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newSignedItem(t *testing.T, pub ed25519.PublicKey, priv ed25519.PrivateKey, it *item.Item) (identity.UserID, identity.Signature, []byte) {
	t.Helper()
	user, err := identity.UserIDFromBytes(pub)
	require.NoError(t, err)
	raw := item.Encode(it)
	sigBytes := ed25519.Sign(priv, raw)
	sig, err := identity.SignatureFromBytes(sigBytes)
	require.NoError(t, err)
	return user, sig, raw
}

func TestCheckPutRejectsOversizedPayload(t *testing.T) {
	s := freshStore(t)
	pub, priv, _ := ed25519.GenerateKey(nil)
	user, err := identity.UserIDFromBytes(pub)
	require.NoError(t, err)
	oversized := make([]byte, admission.MaxItemSize+1)
	sig, err := identity.SignatureFromBytes(ed25519.Sign(priv, oversized))
	require.NoError(t, err)

	decision := admission.CheckPut(context.Background(), s, user, sig, oversized)
	require.Equal(t, admission.PayloadTooLarge, decision.Code)
}

func TestCheckPutRejectsUnknownUser(t *testing.T) {
	s := freshStore(t)
	pub, priv, _ := ed25519.GenerateKey(nil)
	it := &item.Item{TimestampMsUTC: 1000, Post: &item.Post{Title: "hi"}}
	user, sig, raw := newSignedItem(t, pub, priv, it)

	decision := admission.CheckPut(context.Background(), s, user, sig, raw)
	require.Equal(t, admission.Forbidden, decision.Code)
}

func TestCheckPutRejectsBadSignature(t *testing.T) {
	s := freshStore(t)
	pub, _, _ := ed25519.GenerateKey(nil)
	user, err := identity.UserIDFromBytes(pub)
	require.NoError(t, err)
	require.NoError(t, s.AddServerUser(context.Background(), user.Bytes(), true, ""))

	it := &item.Item{TimestampMsUTC: 1000, Post: &item.Post{Title: "hi"}}
	raw := item.Encode(it)
	_, otherPriv, _ := ed25519.GenerateKey(nil)
	badSigBytes := ed25519.Sign(otherPriv, raw)
	sig, err := identity.SignatureFromBytes(badSigBytes)
	require.NoError(t, err)

	decision := admission.CheckPut(context.Background(), s, user, sig, raw)
	require.Equal(t, admission.BadRequest, decision.Code)
}

func TestCheckPutRejectsInvalidItem(t *testing.T) {
	s := freshStore(t)
	pub, priv, _ := ed25519.GenerateKey(nil)
	user, err := identity.UserIDFromBytes(pub)
	require.NoError(t, err)
	require.NoError(t, s.AddServerUser(context.Background(), user.Bytes(), true, ""))

	// No timestamp: fails Validate, not Decode.
	it := &item.Item{Post: &item.Post{Title: "hi"}}
	_, sig, raw := newSignedItem(t, pub, priv, it)

	decision := admission.CheckPut(context.Background(), s, user, sig, raw)
	require.Equal(t, admission.BadRequest, decision.Code)
}

func TestCheckPutRejectsFutureTimestamp(t *testing.T) {
	s := freshStore(t)
	pub, priv, _ := ed25519.GenerateKey(nil)
	user, err := identity.UserIDFromBytes(pub)
	require.NoError(t, err)
	require.NoError(t, s.AddServerUser(context.Background(), user.Bytes(), true, ""))

	future := time.Now().Add(24 * time.Hour).UnixMilli()
	it := &item.Item{TimestampMsUTC: future, Post: &item.Post{Title: "hi"}}
	_, sig, raw := newSignedItem(t, pub, priv, it)

	decision := admission.CheckPut(context.Background(), s, user, sig, raw)
	require.Equal(t, admission.BadRequest, decision.Code)
}

func TestCheckPutAcceptsWellFormedItem(t *testing.T) {
	s := freshStore(t)
	pub, priv, _ := ed25519.GenerateKey(nil)
	user, err := identity.UserIDFromBytes(pub)
	require.NoError(t, err)
	require.NoError(t, s.AddServerUser(context.Background(), user.Bytes(), true, ""))

	it := &item.Item{TimestampMsUTC: 1000, Post: &item.Post{Title: "hi", Body: "body"}}
	_, sig, raw := newSignedItem(t, pub, priv, it)

	decision := admission.CheckPut(context.Background(), s, user, sig, raw)
	require.Equal(t, admission.Accept, decision.Code)
}

func TestCheckPutRejectsDuplicate(t *testing.T) {
	s := freshStore(t)
	pub, priv, _ := ed25519.GenerateKey(nil)
	user, err := identity.UserIDFromBytes(pub)
	require.NoError(t, err)
	require.NoError(t, s.AddServerUser(context.Background(), user.Bytes(), true, ""))

	it := &item.Item{TimestampMsUTC: 1000, Post: &item.Post{Title: "hi"}}
	_, sig, raw := newSignedItem(t, pub, priv, it)
	decoded, err := item.Decode(raw)
	require.NoError(t, err)
	require.NoError(t, s.SaveUserItem(context.Background(), user.Bytes(), sig.Bytes(), decoded, raw))

	decision := admission.CheckPut(context.Background(), s, user, sig, raw)
	require.Equal(t, admission.AlreadyExists, decision.Code)
}

func TestCheckAttachmentPutRejectsUndeclaredAttachment(t *testing.T) {
	s := freshStore(t)
	pub, _, _ := ed25519.GenerateKey(nil)
	user, err := identity.UserIDFromBytes(pub)
	require.NoError(t, err)
	sig, err := identity.SignatureFromBytes(make([]byte, 64))
	require.NoError(t, err)

	decision := admission.CheckAttachmentPut(context.Background(), s, user, sig, "nope.bin", 10)
	require.Equal(t, admission.Forbidden, decision.Code)
}

func TestCheckAttachmentPutRejectsSizeMismatch(t *testing.T) {
	s := freshStore(t)
	pub, priv, _ := ed25519.GenerateKey(nil)
	user, err := identity.UserIDFromBytes(pub)
	require.NoError(t, err)
	require.NoError(t, s.AddServerUser(context.Background(), user.Bytes(), true, ""))

	hash := make([]byte, 64)
	hash[0] = 9
	it := &item.Item{
		TimestampMsUTC: 1000,
		Post: &item.Post{
			Title:       "p",
			Attachments: []item.File{{Name: "a.bin", Size: 100, Hash: hash}},
		},
	}
	_, sig, raw := newSignedItem(t, pub, priv, it)
	decoded, err := item.Decode(raw)
	require.NoError(t, err)
	require.NoError(t, s.SaveUserItem(context.Background(), user.Bytes(), sig.Bytes(), decoded, raw))

	decision := admission.CheckAttachmentPut(context.Background(), s, user, sig, "a.bin", 50)
	require.Equal(t, admission.BadRequest, decision.Code)
}
