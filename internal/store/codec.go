package store

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/Toasterson/akh-medu-sub004/internal/domain"
)

// Record values use a field-tagged binary encoding: each field is a tag
// byte, a uvarint byte length, and the payload. Decoders skip tags they do
// not know, so new optional fields can be appended without breaking older
// readers. The record identifier is the table key and is not repeated in
// the value.

const (
	fieldDerived    byte = 1
	fieldSources    byte = 2
	fieldKind       byte = 3
	fieldConfidence byte = 4
	fieldDepth      byte = 5
	fieldTimestamp  byte = 6
)

// Kind payloads nest the same tag-length-value layout.
const (
	kindFieldFrom       byte = 1
	kindFieldPredicate  byte = 2
	kindFieldSubject    byte = 3
	kindFieldA          byte = 4
	kindFieldB          byte = 5
	kindFieldC          byte = 6
	kindFieldSimilarity byte = 7
)

func appendField(buf []byte, tag byte, payload []byte) []byte {
	buf = append(buf, tag)
	buf = binary.AppendUvarint(buf, uint64(len(payload)))
	return append(buf, payload...)
}

func appendUvarintField(buf []byte, tag byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return appendField(buf, tag, tmp[:n])
}

func appendFloatField(buf []byte, tag byte, v float64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], math.Float64bits(v))
	return appendField(buf, tag, tmp[:])
}

func encodeKind(k domain.DerivationKind) []byte {
	buf := []byte{byte(k.Tag)}
	if k.From.Valid() {
		buf = appendUvarintField(buf, kindFieldFrom, uint64(k.From))
	}
	if k.Predicate.Valid() {
		buf = appendUvarintField(buf, kindFieldPredicate, uint64(k.Predicate))
	}
	if k.Subject.Valid() {
		buf = appendUvarintField(buf, kindFieldSubject, uint64(k.Subject))
	}
	if k.A.Valid() {
		buf = appendUvarintField(buf, kindFieldA, uint64(k.A))
	}
	if k.B.Valid() {
		buf = appendUvarintField(buf, kindFieldB, uint64(k.B))
	}
	if k.C.Valid() {
		buf = appendUvarintField(buf, kindFieldC, uint64(k.C))
	}
	if k.Similarity != 0 {
		buf = appendFloatField(buf, kindFieldSimilarity, k.Similarity)
	}
	return buf
}

func encodeRecord(r *domain.ProvenanceRecord) []byte {
	buf := make([]byte, 0, 64)
	buf = appendUvarintField(buf, fieldDerived, uint64(r.DerivedID))
	if len(r.Sources) > 0 {
		var src []byte
		for _, s := range r.Sources {
			src = binary.AppendUvarint(src, uint64(s))
		}
		buf = appendField(buf, fieldSources, src)
	}
	buf = appendField(buf, fieldKind, encodeKind(r.Kind))
	buf = appendFloatField(buf, fieldConfidence, r.Confidence)
	if r.Depth > 0 {
		buf = appendUvarintField(buf, fieldDepth, uint64(r.Depth))
	}
	buf = appendUvarintField(buf, fieldTimestamp, uint64(r.Timestamp))
	return buf
}

// fields iterates the tag-length-value stream, calling fn per field.
func fields(data []byte, fn func(tag byte, payload []byte) error) error {
	for len(data) > 0 {
		tag := data[0]
		data = data[1:]
		length, n := binary.Uvarint(data)
		if n <= 0 {
			return fmt.Errorf("%w: truncated field length", ErrBadEncoding)
		}
		data = data[n:]
		if length > uint64(len(data)) {
			return fmt.Errorf("%w: field %d overruns value", ErrBadEncoding, tag)
		}
		if err := fn(tag, data[:length]); err != nil {
			return err
		}
		data = data[length:]
	}
	return nil
}

func decodeUvarint(payload []byte) (uint64, error) {
	v, n := binary.Uvarint(payload)
	if n <= 0 || n != len(payload) {
		return 0, fmt.Errorf("%w: malformed varint", ErrBadEncoding)
	}
	return v, nil
}

func decodeFloat(payload []byte) (float64, error) {
	if len(payload) != 8 {
		return 0, fmt.Errorf("%w: float payload must be 8 bytes", ErrBadEncoding)
	}
	return math.Float64frombits(binary.BigEndian.Uint64(payload)), nil
}

func decodeKind(data []byte) (domain.DerivationKind, error) {
	var k domain.DerivationKind
	if len(data) == 0 {
		return k, fmt.Errorf("%w: empty kind payload", ErrBadEncoding)
	}
	k.Tag = domain.KindTag(data[0])
	err := fields(data[1:], func(tag byte, payload []byte) error {
		switch tag {
		case kindFieldSimilarity:
			v, err := decodeFloat(payload)
			if err != nil {
				return err
			}
			k.Similarity = v
		case kindFieldFrom, kindFieldPredicate, kindFieldSubject, kindFieldA, kindFieldB, kindFieldC:
			v, err := decodeUvarint(payload)
			if err != nil {
				return err
			}
			id := domain.EntityID(v)
			switch tag {
			case kindFieldFrom:
				k.From = id
			case kindFieldPredicate:
				k.Predicate = id
			case kindFieldSubject:
				k.Subject = id
			case kindFieldA:
				k.A = id
			case kindFieldB:
				k.B = id
			case kindFieldC:
				k.C = id
			}
		default:
			// unknown kind field from a newer writer; ignore
		}
		return nil
	})
	return k, err
}

func decodeRecord(id domain.EntityID, data []byte) (*domain.ProvenanceRecord, error) {
	r := &domain.ProvenanceRecord{ID: id}
	sawDerived := false
	err := fields(data, func(tag byte, payload []byte) error {
		switch tag {
		case fieldDerived:
			v, err := decodeUvarint(payload)
			if err != nil {
				return err
			}
			r.DerivedID = domain.EntityID(v)
			sawDerived = true
		case fieldSources:
			for len(payload) > 0 {
				v, n := binary.Uvarint(payload)
				if n <= 0 {
					return fmt.Errorf("%w: malformed source list", ErrBadEncoding)
				}
				r.Sources = append(r.Sources, domain.EntityID(v))
				payload = payload[n:]
			}
		case fieldKind:
			k, err := decodeKind(payload)
			if err != nil {
				return err
			}
			r.Kind = k
		case fieldConfidence:
			v, err := decodeFloat(payload)
			if err != nil {
				return err
			}
			r.Confidence = v
		case fieldDepth:
			v, err := decodeUvarint(payload)
			if err != nil {
				return err
			}
			r.Depth = uint32(v)
		case fieldTimestamp:
			v, err := decodeUvarint(payload)
			if err != nil {
				return err
			}
			r.Timestamp = int64(v)
		default:
			// unknown field from a newer writer; ignore
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !sawDerived {
		return nil, fmt.Errorf("%w: record %d has no derived id", ErrBadEncoding, id)
	}
	return r, nil
}
