// Package item implements the wire codec and semantic validation for the
// Item family of messages: the self-contained, signed protobuf payload
// that represents one piece of user content.
//
// The wire format mirrors a small hand-maintained .proto schema:
//
//	message Item {
//	  int64 timestamp_ms_utc = 1;
//	  sint32 utc_offset_minutes = 2;
//	  oneof item_type {
//	    Post post = 3;
//	    Profile profile = 4;
//	    Comment comment = 5;
//	  }
//	}
//
// There is no generated code here: the schema is small and stable enough
// that the codec is written directly against
// google.golang.org/protobuf/encoding/protowire, the same low-level
// package the generated stubs in a full protoc-gen-go pipeline build on.
package item

// ItemType classifies the oneof variant of an Item, used by ItemListEntry.
type ItemType int32

const (
	ItemTypeUnknown ItemType = 0
	ItemTypePost    ItemType = 1
	ItemTypeProfile ItemType = 2
	ItemTypeComment ItemType = 3
)

func (t ItemType) String() string {
	switch t {
	case ItemTypePost:
		return "POST"
	case ItemTypeProfile:
		return "PROFILE"
	case ItemTypeComment:
		return "COMMENT"
	default:
		return "UNKNOWN"
	}
}

// Item is a signed, immutable message representing one piece of content.
// Exactly one of Post, Profile, Comment is non-nil.
type Item struct {
	TimestampMsUTC   int64
	UTCOffsetMinutes int32

	Post    *Post
	Profile *Profile
	Comment *Comment
}

// Type reports which oneof variant is populated.
func (i *Item) Type() ItemType {
	switch {
	case i.Post != nil:
		return ItemTypePost
	case i.Profile != nil:
		return ItemTypeProfile
	case i.Comment != nil:
		return ItemTypeComment
	default:
		return ItemTypeUnknown
	}
}

// Post is a title + Markdown body + declared file attachments.
type Post struct {
	Title       string
	Body        string
	Attachments []File
}

// File describes one attachment declared on a Post.
type File struct {
	Name string
	Size uint64
	Hash []byte // 64-byte SHA-512
}

// Profile carries a display name, about-text, and a follow list.
type Profile struct {
	DisplayName string
	About       string
	Follows     []Follow
}

// Follow names a user this profile's owner follows, with a local display
// name. User is carried as raw bytes (not a fixed [32]byte) so that
// Validate can detect and reject a wrong-length value per spec §4.2(b)
// instead of having it silently truncated or zero-padded.
type Follow struct {
	User        []byte
	DisplayName string
}

// Comment carries the (user, signature) pair of the item it replies to.
type Comment struct {
	ReplyToUser      [32]byte
	ReplyToSignature [64]byte
}
