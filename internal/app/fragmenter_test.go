package app

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/mob852/framecast/internal/domain"
	"github.com/mob852/framecast/pkg/integrity"
	"github.com/mob852/framecast/pkg/wire"
)

func payload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + i/251)
	}
	return b
}

func TestNewFragmenter_Validation(t *testing.T) {
	tests := []struct {
		size    int
		wantErr bool
	}{
		{-1, true},
		{0, true},
		{1, false},
		{1000, false},
		{wire.MaxChunkPayload, false},
		{wire.MaxChunkPayload + 1, true},
	}
	for _, tt := range tests {
		_, err := NewFragmenter(tt.size)
		if (err != nil) != tt.wantErr {
			t.Errorf("NewFragmenter(%d) error = %v, wantErr %v", tt.size, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, domain.ErrInvalidConfig) {
			t.Errorf("NewFragmenter(%d) error = %v, want ErrInvalidConfig", tt.size, err)
		}
	}
}

func TestFragment_Sizes(t *testing.T) {
	tests := []struct {
		name      string
		max       int
		n         int
		wantSizes []int
	}{
		{"empty", 1000, 0, nil},
		{"one byte", 1000, 1, []int{1}},
		{"exact", 1000, 3000, []int{1000, 1000, 1000}},
		{"remainder", 1000, 2500, []int{1000, 1000, 500}},
		{"smaller than chunk", 1000, 999, []int{999}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewFragmenter(tt.max)
			if err != nil {
				t.Fatal(err)
			}
			env := payload(tt.n)
			sum := integrity.Checksum(env)

			meta, chunks, err := f.Fragment(5, env, sum)
			if err != nil {
				t.Fatalf("Fragment() error = %v", err)
			}
			if meta.TotalChunks != uint32(len(tt.wantSizes)) || meta.TotalSize != uint64(tt.n) {
				t.Errorf("meta = %+v", meta)
			}
			if meta.Checksum != sum || meta.Sequence != 5 {
				t.Errorf("meta checksum/sequence = %v/%d", meta.Checksum, meta.Sequence)
			}
			if len(chunks) != len(tt.wantSizes) {
				t.Fatalf("got %d chunks, want %d", len(chunks), len(tt.wantSizes))
			}

			var joined []byte
			for i, c := range chunks {
				if len(c.Data) != tt.wantSizes[i] {
					t.Errorf("chunk %d size = %d, want %d", i, len(c.Data), tt.wantSizes[i])
				}
				if c.Index != uint32(i) || c.TotalChunks != meta.TotalChunks || c.Sequence != 5 {
					t.Errorf("chunk %d header = %+v", i, c.Header())
				}
				joined = append(joined, c.Data...)
			}
			if !bytes.Equal(joined, env) {
				t.Error("chunks do not concatenate to the envelope")
			}
		})
	}
}

func TestFragment_TooManyChunks(t *testing.T) {
	f, _ := NewFragmenter(1)
	_, _, err := f.Fragment(0, make([]byte, wire.MaxTotalChunks+1), integrity.Digest{})
	if !errors.Is(err, wire.ErrTooManyChunks) {
		t.Errorf("error = %v, want ErrTooManyChunks", err)
	}
}

func TestFragmenter_SendOrder(t *testing.T) {
	f, _ := NewFragmenter(1000)
	env := payload(2500)

	var sent [][]byte
	tx := transmitFunc(func(ctx context.Context, b []byte) error {
		sent = append(sent, append([]byte(nil), b...))
		return nil
	})

	n, err := f.Send(context.Background(), 9, env, integrity.Checksum(env), tx)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if n != 3 || len(sent) != 4 {
		t.Fatalf("chunks = %d, datagrams = %d; want 3, 4", n, len(sent))
	}

	p, err := wire.Parse(sent[0])
	if err != nil || p.Kind != wire.KindMetadata {
		t.Fatalf("first datagram: kind %v err %v, want metadata", p.Kind, err)
	}
	if p.Metadata.TotalChunks != 3 || p.Metadata.TotalSize != 2500 || p.Metadata.Sequence != 9 {
		t.Errorf("metadata = %+v", p.Metadata)
	}

	for i, d := range sent[1:] {
		p, err := wire.Parse(d)
		if err != nil || p.Kind != wire.KindChunk {
			t.Fatalf("datagram %d: kind %v err %v", i+1, p.Kind, err)
		}
		if p.Chunk.Index != uint32(i) {
			t.Errorf("datagram %d index = %d, want %d", i+1, p.Chunk.Index, i)
		}
		if !bytes.Equal(p.Data, env[i*1000:min(len(env), (i+1)*1000)]) {
			t.Errorf("datagram %d data mismatch", i+1)
		}
	}
}

func TestFragmenter_SendStopsOnError(t *testing.T) {
	f, _ := NewFragmenter(10)
	env := payload(100)
	boom := errors.New("boom")

	calls := 0
	tx := transmitFunc(func(ctx context.Context, b []byte) error {
		calls++
		if calls == 4 {
			return boom
		}
		return nil
	})

	n, err := f.Send(context.Background(), 1, env, integrity.Checksum(env), tx)
	if !errors.Is(err, boom) {
		t.Fatalf("Send() error = %v, want boom", err)
	}
	// metadata + chunks 0,1 succeeded; chunk 2 failed
	if n != 2 || calls != 4 {
		t.Errorf("n = %d calls = %d, want 2 and 4", n, calls)
	}
}
