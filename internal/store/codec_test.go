package store

import (
	"encoding/binary"
	"errors"
	"reflect"
	"testing"

	"github.com/Toasterson/akh-medu-sub004/internal/domain"
)

func TestCodec_RoundTrip(t *testing.T) {
	cases := []struct {
		name string
		rec  domain.ProvenanceRecord
	}{
		{
			name: "seed without sources",
			rec: domain.ProvenanceRecord{
				DerivedID:  7,
				Kind:       domain.NewSeed(),
				Confidence: 1,
				Timestamp:  1700000000,
			},
		},
		{
			name: "graph edge",
			rec: domain.ProvenanceRecord{
				DerivedID:  12,
				Sources:    []domain.EntityID{3, 4},
				Kind:       domain.NewGraphEdge(3, 9),
				Confidence: 0.75,
				Depth:      2,
				Timestamp:  1700000001,
			},
		},
		{
			name: "vsa recovery with similarity",
			rec: domain.ProvenanceRecord{
				DerivedID:  13,
				Sources:    []domain.EntityID{3},
				Kind:       domain.NewVsaRecovery(3, 9, 0.875),
				Confidence: 0.5,
				Timestamp:  1700000002,
			},
		},
		{
			name: "analogy",
			rec: domain.ProvenanceRecord{
				DerivedID:  14,
				Sources:    []domain.EntityID{1, 2, 3},
				Kind:       domain.NewAnalogy(1, 2, 3),
				Confidence: 0.25,
				Timestamp:  1700000003,
			},
		},
		{
			name: "filler recovery",
			rec: domain.ProvenanceRecord{
				DerivedID:  15,
				Sources:    []domain.EntityID{6},
				Kind:       domain.NewFillerRecovery(6, 9),
				Confidence: 0.33,
				Timestamp:  1700000004,
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.rec.ID = 42
			got, err := decodeRecord(42, encodeRecord(&tc.rec))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !reflect.DeepEqual(*got, tc.rec) {
				t.Errorf("round trip mismatch:\n got %+v\nwant %+v", *got, tc.rec)
			}
		})
	}
}

func TestCodec_SkipsUnknownFields(t *testing.T) {
	rec := domain.ProvenanceRecord{
		ID:         9,
		DerivedID:  5,
		Kind:       domain.NewExtracted(),
		Confidence: 0.6,
		Timestamp:  1700000000,
	}
	data := encodeRecord(&rec)

	// Append a field a future writer might add: tag 200, 3 payload bytes.
	data = append(data, 200)
	data = binary.AppendUvarint(data, 3)
	data = append(data, 0xaa, 0xbb, 0xcc)

	got, err := decodeRecord(9, data)
	if err != nil {
		t.Fatalf("decode with unknown trailing field: %v", err)
	}
	if !reflect.DeepEqual(*got, rec) {
		t.Errorf("known fields changed:\n got %+v\nwant %+v", *got, rec)
	}
}

func TestCodec_UnknownKindTagRoundTrips(t *testing.T) {
	rec := domain.ProvenanceRecord{
		ID:        3,
		DerivedID: 5,
		Sources:   []domain.EntityID{1},
		Kind: domain.DerivationKind{
			Tag:  domain.KindTag(77),
			From: 1,
		},
		Confidence: 0.4,
		Timestamp:  1700000000,
	}

	got, err := decodeRecord(3, encodeRecord(&rec))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Kind.Tag != 77 || got.Kind.From != 1 {
		t.Errorf("unregistered kind payload lost: %+v", got.Kind)
	}
}

func TestCodec_MalformedInputFailsGracefully(t *testing.T) {
	cases := []struct {
		name string
		data []byte
	}{
		{"empty value", nil},
		{"truncated length", []byte{fieldDerived}},
		{"field overruns value", []byte{fieldDerived, 10, 1}},
		{"short float", []byte{fieldConfidence, 2, 1, 2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := decodeRecord(1, tc.data)
			if err == nil {
				t.Fatal("expected decode error")
			}
			if !errors.Is(err, ErrBadEncoding) {
				t.Errorf("error %v does not match ErrBadEncoding", err)
			}
		})
	}
}
