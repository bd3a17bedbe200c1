package item

import (
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers for the Item message family. Kept in one block since they
// double as documentation for the wire schema described in item.go.
const (
	fieldItemTimestamp = protowire.Number(1)
	fieldItemOffset    = protowire.Number(2)
	fieldItemPost      = protowire.Number(3)
	fieldItemProfile   = protowire.Number(4)
	fieldItemComment   = protowire.Number(5)

	fieldPostTitle       = protowire.Number(1)
	fieldPostBody        = protowire.Number(2)
	fieldPostAttachments = protowire.Number(3)

	fieldAttachmentsFile = protowire.Number(1)

	fieldFileName = protowire.Number(1)
	fieldFileSize = protowire.Number(2)
	fieldFileHash = protowire.Number(3)

	fieldProfileDisplayName = protowire.Number(1)
	fieldProfileAbout       = protowire.Number(2)
	fieldProfileFollow      = protowire.Number(3)

	fieldFollowUser        = protowire.Number(1)
	fieldFollowDisplayName = protowire.Number(2)

	fieldUserIDBytes = protowire.Number(1)

	fieldSignatureBytes = protowire.Number(1)

	fieldCommentReplyTo = protowire.Number(1)

	fieldReplyToUser      = protowire.Number(1)
	fieldReplyToSignature = protowire.Number(2)
)

// DecodeError reports a failure to parse the protobuf wire format itself,
// as distinct from a ValidationError on an otherwise well-formed message.
type DecodeError struct {
	Message string
}

func (e *DecodeError) Error() string { return e.Message }

func decodeErrf(format string, args ...interface{}) error {
	return &DecodeError{Message: errors.Errorf(format, args...).Error()}
}

// Encode serializes an Item to its canonical wire bytes. Encoding is
// deterministic: field order always matches the schema above, so the same
// Item value always produces the same bytes (required since the signature
// is computed over this encoding).
func Encode(it *Item) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldItemTimestamp, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(it.TimestampMsUTC))

	if it.UTCOffsetMinutes != 0 {
		b = protowire.AppendTag(b, fieldItemOffset, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(it.UTCOffsetMinutes)))
	}

	switch {
	case it.Post != nil:
		b = protowire.AppendTag(b, fieldItemPost, protowire.BytesType)
		b = protowire.AppendBytes(b, encodePost(it.Post))
	case it.Profile != nil:
		b = protowire.AppendTag(b, fieldItemProfile, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeProfile(it.Profile))
	case it.Comment != nil:
		b = protowire.AppendTag(b, fieldItemComment, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeComment(it.Comment))
	}
	return b
}

func encodePost(p *Post) []byte {
	var b []byte
	if p.Title != "" {
		b = protowire.AppendTag(b, fieldPostTitle, protowire.BytesType)
		b = protowire.AppendString(b, p.Title)
	}
	if p.Body != "" {
		b = protowire.AppendTag(b, fieldPostBody, protowire.BytesType)
		b = protowire.AppendString(b, p.Body)
	}
	if len(p.Attachments) > 0 {
		var att []byte
		for _, f := range p.Attachments {
			att = protowire.AppendTag(att, fieldAttachmentsFile, protowire.BytesType)
			att = protowire.AppendBytes(att, encodeFile(&f))
		}
		b = protowire.AppendTag(b, fieldPostAttachments, protowire.BytesType)
		b = protowire.AppendBytes(b, att)
	}
	return b
}

func encodeFile(f *File) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldFileName, protowire.BytesType)
	b = protowire.AppendString(b, f.Name)
	b = protowire.AppendTag(b, fieldFileSize, protowire.VarintType)
	b = protowire.AppendVarint(b, f.Size)
	if len(f.Hash) > 0 {
		b = protowire.AppendTag(b, fieldFileHash, protowire.BytesType)
		b = protowire.AppendBytes(b, f.Hash)
	}
	return b
}

func encodeProfile(p *Profile) []byte {
	var b []byte
	if p.DisplayName != "" {
		b = protowire.AppendTag(b, fieldProfileDisplayName, protowire.BytesType)
		b = protowire.AppendString(b, p.DisplayName)
	}
	if p.About != "" {
		b = protowire.AppendTag(b, fieldProfileAbout, protowire.BytesType)
		b = protowire.AppendString(b, p.About)
	}
	for _, f := range p.Follows {
		b = protowire.AppendTag(b, fieldProfileFollow, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeFollow(&f))
	}
	return b
}

func encodeFollow(f *Follow) []byte {
	var b []byte
	var userMsg []byte
	userMsg = protowire.AppendTag(userMsg, fieldUserIDBytes, protowire.BytesType)
	userMsg = protowire.AppendBytes(userMsg, f.User)
	b = protowire.AppendTag(b, fieldFollowUser, protowire.BytesType)
	b = protowire.AppendBytes(b, userMsg)
	if f.DisplayName != "" {
		b = protowire.AppendTag(b, fieldFollowDisplayName, protowire.BytesType)
		b = protowire.AppendString(b, f.DisplayName)
	}
	return b
}

func encodeComment(c *Comment) []byte {
	var replyTo []byte
	var userMsg []byte
	userMsg = protowire.AppendTag(userMsg, fieldUserIDBytes, protowire.BytesType)
	userMsg = protowire.AppendBytes(userMsg, c.ReplyToUser[:])
	replyTo = protowire.AppendTag(replyTo, fieldReplyToUser, protowire.BytesType)
	replyTo = protowire.AppendBytes(replyTo, userMsg)

	var sigMsg []byte
	sigMsg = protowire.AppendTag(sigMsg, fieldSignatureBytes, protowire.BytesType)
	sigMsg = protowire.AppendBytes(sigMsg, c.ReplyToSignature[:])
	replyTo = protowire.AppendTag(replyTo, fieldReplyToSignature, protowire.BytesType)
	replyTo = protowire.AppendBytes(replyTo, sigMsg)

	var b []byte
	b = protowire.AppendTag(b, fieldCommentReplyTo, protowire.BytesType)
	b = protowire.AppendBytes(b, replyTo)
	return b
}

// Decode parses the wire bytes of an Item. Unknown fields are skipped, so
// that future-hook fields (spec §4.2(c)) don't break older readers.
func Decode(data []byte) (*Item, error) {
	it := &Item{}
	b := data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, decodeErrf("reading Item tag: %v", protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case fieldItemTimestamp:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, decodeErrf("reading timestamp_ms_utc: %v", protowire.ParseError(n))
			}
			it.TimestampMsUTC = int64(v)
			b = b[n:]
		case fieldItemOffset:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, decodeErrf("reading utc_offset_minutes: %v", protowire.ParseError(n))
			}
			it.UTCOffsetMinutes = int32(protowire.DecodeZigZag(v))
			b = b[n:]
		case fieldItemPost:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, decodeErrf("reading post: %v", protowire.ParseError(n))
			}
			post, err := decodePost(raw)
			if err != nil {
				return nil, err
			}
			it.Post = post
			b = b[n:]
		case fieldItemProfile:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, decodeErrf("reading profile: %v", protowire.ParseError(n))
			}
			profile, err := decodeProfile(raw)
			if err != nil {
				return nil, err
			}
			it.Profile = profile
			b = b[n:]
		case fieldItemComment:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, decodeErrf("reading comment: %v", protowire.ParseError(n))
			}
			comment, err := decodeComment(raw)
			if err != nil {
				return nil, err
			}
			it.Comment = comment
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, decodeErrf("skipping unknown field %d: %v", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return it, nil
}

func decodePost(data []byte) (*Post, error) {
	p := &Post{}
	b := data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, decodeErrf("reading Post tag: %v", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case fieldPostTitle:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, decodeErrf("reading title: %v", protowire.ParseError(n))
			}
			p.Title = string(raw)
			b = b[n:]
		case fieldPostBody:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, decodeErrf("reading body: %v", protowire.ParseError(n))
			}
			p.Body = string(raw)
			b = b[n:]
		case fieldPostAttachments:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, decodeErrf("reading attachments: %v", protowire.ParseError(n))
			}
			files, err := decodeAttachments(raw)
			if err != nil {
				return nil, err
			}
			p.Attachments = files
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, decodeErrf("skipping unknown Post field %d: %v", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return p, nil
}

func decodeAttachments(data []byte) ([]File, error) {
	var files []File
	b := data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, decodeErrf("reading Attachments tag: %v", protowire.ParseError(n))
		}
		b = b[n:]
		if num != fieldAttachmentsFile {
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, decodeErrf("skipping unknown Attachments field %d: %v", num, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}
		raw, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, decodeErrf("reading file: %v", protowire.ParseError(n))
		}
		f, err := decodeFile(raw)
		if err != nil {
			return nil, err
		}
		files = append(files, *f)
		b = b[n:]
	}
	return files, nil
}

func decodeFile(data []byte) (*File, error) {
	f := &File{}
	b := data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, decodeErrf("reading File tag: %v", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case fieldFileName:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, decodeErrf("reading file name: %v", protowire.ParseError(n))
			}
			f.Name = string(raw)
			b = b[n:]
		case fieldFileSize:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, decodeErrf("reading file size: %v", protowire.ParseError(n))
			}
			f.Size = v
			b = b[n:]
		case fieldFileHash:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, decodeErrf("reading file hash: %v", protowire.ParseError(n))
			}
			f.Hash = append([]byte(nil), raw...)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, decodeErrf("skipping unknown File field %d: %v", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return f, nil
}

func decodeProfile(data []byte) (*Profile, error) {
	p := &Profile{}
	b := data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, decodeErrf("reading Profile tag: %v", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case fieldProfileDisplayName:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, decodeErrf("reading display_name: %v", protowire.ParseError(n))
			}
			p.DisplayName = string(raw)
			b = b[n:]
		case fieldProfileAbout:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, decodeErrf("reading about: %v", protowire.ParseError(n))
			}
			p.About = string(raw)
			b = b[n:]
		case fieldProfileFollow:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, decodeErrf("reading follow: %v", protowire.ParseError(n))
			}
			f, err := decodeFollow(raw)
			if err != nil {
				return nil, err
			}
			p.Follows = append(p.Follows, *f)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, decodeErrf("skipping unknown Profile field %d: %v", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return p, nil
}

func decodeFollow(data []byte) (*Follow, error) {
	f := &Follow{}
	b := data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, decodeErrf("reading Follow tag: %v", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case fieldFollowUser:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, decodeErrf("reading follow user: %v", protowire.ParseError(n))
			}
			userBytes, err := decodeUserIDBytes(raw)
			if err != nil {
				return nil, err
			}
			f.User = userBytes
			b = b[n:]
		case fieldFollowDisplayName:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, decodeErrf("reading follow display_name: %v", protowire.ParseError(n))
			}
			f.DisplayName = string(raw)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, decodeErrf("skipping unknown Follow field %d: %v", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return f, nil
}

func decodeUserIDBytes(data []byte) ([]byte, error) {
	b := data
	var out []byte
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, decodeErrf("reading UserID tag: %v", protowire.ParseError(n))
		}
		b = b[n:]
		if num != fieldUserIDBytes {
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, decodeErrf("skipping unknown UserID field %d: %v", num, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}
		raw, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, decodeErrf("reading UserID bytes: %v", protowire.ParseError(n))
		}
		out = append([]byte(nil), raw...)
		b = b[n:]
	}
	return out, nil
}

func decodeSignatureBytes(data []byte) ([]byte, error) {
	b := data
	var out []byte
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, decodeErrf("reading Signature tag: %v", protowire.ParseError(n))
		}
		b = b[n:]
		if num != fieldSignatureBytes {
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, decodeErrf("skipping unknown Signature field %d: %v", num, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}
		raw, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, decodeErrf("reading Signature bytes: %v", protowire.ParseError(n))
		}
		out = append([]byte(nil), raw...)
		b = b[n:]
	}
	return out, nil
}

func decodeComment(data []byte) (*Comment, error) {
	c := &Comment{}
	b := data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, decodeErrf("reading Comment tag: %v", protowire.ParseError(n))
		}
		b = b[n:]
		if num != fieldCommentReplyTo {
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, decodeErrf("skipping unknown Comment field %d: %v", num, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}
		raw, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, decodeErrf("reading reply_to: %v", protowire.ParseError(n))
		}
		if err := decodeReplyToInto(c, raw); err != nil {
			return nil, err
		}
		b = b[n:]
	}
	return c, nil
}

func decodeReplyToInto(c *Comment, data []byte) error {
	b := data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return decodeErrf("reading ReplyTo tag: %v", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case fieldReplyToUser:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return decodeErrf("reading reply_to.user_id: %v", protowire.ParseError(n))
			}
			userBytes, err := decodeUserIDBytes(raw)
			if err != nil {
				return err
			}
			copy(c.ReplyToUser[:], userBytes)
			b = b[n:]
		case fieldReplyToSignature:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return decodeErrf("reading reply_to.signature: %v", protowire.ParseError(n))
			}
			sigBytes, err := decodeSignatureBytes(raw)
			if err != nil {
				return err
			}
			copy(c.ReplyToSignature[:], sigBytes)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return decodeErrf("skipping unknown ReplyTo field %d: %v", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return nil
}
