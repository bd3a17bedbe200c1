package item

import "google.golang.org/protobuf/encoding/protowire"

// ListEntry is one row of a wire ItemList response: enough to let a
// client decide whether to fetch the full Item.
type ListEntry struct {
	UserID        [32]byte
	Signature     [64]byte
	TimestampMsUTC int64
	Type          ItemType
}

// List is the paginated response wire type for every `…/proto3` list
// endpoint (spec §6).
type List struct {
	Entries     []ListEntry
	NoMoreItems bool
}

const (
	fieldEntryUserID    = protowire.Number(1)
	fieldEntrySignature = protowire.Number(2)
	fieldEntryTimestamp = protowire.Number(3)
	fieldEntryItemType  = protowire.Number(4)

	fieldListItems       = protowire.Number(1)
	fieldListNoMoreItems = protowire.Number(2)
)

// EncodeList serializes an ItemList to wire bytes.
func EncodeList(list *List) []byte {
	var b []byte
	for _, e := range list.Entries {
		b = protowire.AppendTag(b, fieldListItems, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeListEntry(&e))
	}
	if list.NoMoreItems {
		b = protowire.AppendTag(b, fieldListNoMoreItems, protowire.VarintType)
		b = protowire.AppendVarint(b, 1)
	}
	return b
}

func encodeListEntry(e *ListEntry) []byte {
	var userMsg []byte
	userMsg = protowire.AppendTag(userMsg, fieldUserIDBytes, protowire.BytesType)
	userMsg = protowire.AppendBytes(userMsg, e.UserID[:])

	var sigMsg []byte
	sigMsg = protowire.AppendTag(sigMsg, fieldSignatureBytes, protowire.BytesType)
	sigMsg = protowire.AppendBytes(sigMsg, e.Signature[:])

	var b []byte
	b = protowire.AppendTag(b, fieldEntryUserID, protowire.BytesType)
	b = protowire.AppendBytes(b, userMsg)
	b = protowire.AppendTag(b, fieldEntrySignature, protowire.BytesType)
	b = protowire.AppendBytes(b, sigMsg)
	b = protowire.AppendTag(b, fieldEntryTimestamp, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.TimestampMsUTC))
	if e.Type != ItemTypeUnknown {
		b = protowire.AppendTag(b, fieldEntryItemType, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(e.Type))
	}
	return b
}

// DecodeList parses the wire bytes of an ItemList. Used by tests and by
// any future client-side mirroring; the server itself only ever encodes.
func DecodeList(data []byte) (*List, error) {
	list := &List{}
	b := data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, decodeErrf("reading ItemList tag: %v", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case fieldListItems:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, decodeErrf("reading ItemList item: %v", protowire.ParseError(n))
			}
			entry, err := decodeListEntry(raw)
			if err != nil {
				return nil, err
			}
			list.Entries = append(list.Entries, *entry)
			b = b[n:]
		case fieldListNoMoreItems:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, decodeErrf("reading no_more_items: %v", protowire.ParseError(n))
			}
			list.NoMoreItems = v != 0
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, decodeErrf("skipping unknown ItemList field %d: %v", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return list, nil
}

func decodeListEntry(data []byte) (*ListEntry, error) {
	e := &ListEntry{}
	b := data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, decodeErrf("reading ItemListEntry tag: %v", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case fieldEntryUserID:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, decodeErrf("reading entry user_id: %v", protowire.ParseError(n))
			}
			userBytes, err := decodeUserIDBytes(raw)
			if err != nil {
				return nil, err
			}
			copy(e.UserID[:], userBytes)
			b = b[n:]
		case fieldEntrySignature:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, decodeErrf("reading entry signature: %v", protowire.ParseError(n))
			}
			sigBytes, err := decodeSignatureBytes(raw)
			if err != nil {
				return nil, err
			}
			copy(e.Signature[:], sigBytes)
			b = b[n:]
		case fieldEntryTimestamp:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, decodeErrf("reading entry timestamp: %v", protowire.ParseError(n))
			}
			e.TimestampMsUTC = int64(v)
			b = b[n:]
		case fieldEntryItemType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, decodeErrf("reading entry item_type: %v", protowire.ParseError(n))
			}
			e.Type = ItemType(v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, decodeErrf("skipping unknown ItemListEntry field %d: %v", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return e, nil
}
