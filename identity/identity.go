// Package identity defines the UserID and Signature value types used
// throughout feoblog: an Ed25519 public key and a detached Ed25519
// signature, each with a base58 textual form.
package identity

import (
	"crypto/ed25519"
	"encoding/hex"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

// UserIDBytes is the length of a UserID: an Ed25519 public key.
const UserIDBytes = ed25519.PublicKeySize // 32

// SignatureBytes is the length of a detached Ed25519 signature.
const SignatureBytes = ed25519.SignatureSize // 64

// UserID is a 32-byte Ed25519 public key identifying a principal.
type UserID struct {
	bytes [UserIDBytes]byte
}

// ParseUserID decodes the unpadded base58 (Bitcoin alphabet) textual form
// of a UserID.
func ParseUserID(s string) (UserID, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return UserID{}, errors.Wrap(err, "decoding base58 user ID")
	}
	return UserIDFromBytes(raw)
}

// UserIDFromBytes requires exactly UserIDBytes bytes.
func UserIDFromBytes(raw []byte) (UserID, error) {
	if len(raw) != UserIDBytes {
		return UserID{}, errors.Errorf("expected %d bytes for a user ID but found %d", UserIDBytes, len(raw))
	}
	var id UserID
	copy(id.bytes[:], raw)
	return id, nil
}

// Bytes returns the raw 32-byte public key.
func (u UserID) Bytes() []byte {
	return u.bytes[:]
}

// String returns the unpadded base58 textual form.
func (u UserID) String() string {
	return base58.Encode(u.bytes[:])
}

// Hex is useful for log fields and file-system-safe names.
func (u UserID) Hex() string {
	return hex.EncodeToString(u.bytes[:])
}

// Equal reports whether two UserIDs name the same public key.
func (u UserID) Equal(other UserID) bool {
	return u.bytes == other.bytes
}

// Less gives a total order over UserIDs for use as map/index keys.
func (u UserID) Less(other UserID) bool {
	for i := range u.bytes {
		if u.bytes[i] != other.bytes[i] {
			return u.bytes[i] < other.bytes[i]
		}
	}
	return false
}

// Signature is a 64-byte detached Ed25519 signature over the canonical
// bytes of an Item.
type Signature struct {
	bytes [SignatureBytes]byte
}

// ParseSignature decodes the unpadded base58 textual form of a Signature.
func ParseSignature(s string) (Signature, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return Signature{}, errors.Wrap(err, "decoding base58 signature")
	}
	return SignatureFromBytes(raw)
}

// SignatureFromBytes requires exactly SignatureBytes bytes.
func SignatureFromBytes(raw []byte) (Signature, error) {
	if len(raw) != SignatureBytes {
		return Signature{}, errors.Errorf("expected %d bytes for a signature but found %d", SignatureBytes, len(raw))
	}
	var sig Signature
	copy(sig.bytes[:], raw)
	return sig, nil
}

// Bytes returns the raw 64-byte signature.
func (s Signature) Bytes() []byte {
	return s.bytes[:]
}

// String returns the unpadded base58 textual form.
func (s Signature) String() string {
	return base58.Encode(s.bytes[:])
}

// Equal reports whether two Signatures are byte-identical.
func (s Signature) Equal(other Signature) bool {
	return s.bytes == other.bytes
}

// Less gives a total order over Signatures, used to break (timestamp, signature)
// pagination cursor ties.
func (s Signature) Less(other Signature) bool {
	for i := range s.bytes {
		if s.bytes[i] != other.bytes[i] {
			return s.bytes[i] < other.bytes[i]
		}
	}
	return false
}

// Verify performs detached Ed25519 verification of sig over data under
// user's public key. It is total: any malformed input simply yields false,
// never an error or panic.
func Verify(sig Signature, user UserID, data []byte) bool {
	return ed25519.Verify(ed25519.PublicKey(user.Bytes()), data, sig.Bytes())
}
