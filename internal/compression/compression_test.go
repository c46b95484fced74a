package compression

import (
	"bytes"
	"strings"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	inputs := map[string][]byte{
		"empty":      {},
		"short":      []byte("x"),
		"repetitive": bytes.Repeat([]byte("raft entry "), 500),
		"binary":     binaryData(8192),
	}
	for _, ct := range []Type{NoCompression, SnappyCompression, ZlibCompression, LZ4Compression, ZstdCompression} {
		for name, data := range inputs {
			t.Run(ct.String()+"/"+name, func(t *testing.T) {
				compressed, err := Compress(ct, data)
				if err != nil {
					t.Fatalf("Compress failed: %v", err)
				}
				decompressed, err := Decompress(ct, compressed)
				if err != nil {
					t.Fatalf("Decompress failed: %v", err)
				}
				if !bytes.Equal(decompressed, data) {
					t.Errorf("round trip mismatch: got %d bytes, want %d", len(decompressed), len(data))
				}
			})
		}
	}
}

func TestCompressShrinksRepetitiveData(t *testing.T) {
	data := bytes.Repeat([]byte("hello world "), 1000)
	for _, ct := range []Type{SnappyCompression, ZlibCompression, LZ4Compression, ZstdCompression} {
		compressed, err := Compress(ct, data)
		if err != nil {
			t.Fatalf("%s: Compress failed: %v", ct, err)
		}
		if len(compressed) >= len(data) {
			t.Errorf("%s: compressed size %d >= original %d", ct, len(compressed), len(data))
		}
	}
}

func TestNoCompressionIsIdentity(t *testing.T) {
	data := []byte("unchanged")
	compressed, err := Compress(NoCompression, data)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if &compressed[0] != &data[0] {
		t.Error("NoCompression should return the input slice")
	}
}

func TestDecompressCorrupt(t *testing.T) {
	garbage := []byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01, 0x02}
	for _, ct := range []Type{SnappyCompression, ZlibCompression, LZ4Compression, ZstdCompression} {
		if _, err := Decompress(ct, garbage); err == nil {
			t.Errorf("%s: expected error decompressing garbage", ct)
		}
	}
}

func TestUnsupportedType(t *testing.T) {
	if _, err := Compress(Type(99), []byte("x")); err == nil {
		t.Error("expected error for unknown type")
	}
	if _, err := Decompress(Type(99), []byte("x")); err == nil {
		t.Error("expected error for unknown type")
	}
	if got := Type(99).String(); got != "Unknown(99)" {
		t.Errorf("String() = %q", got)
	}
}

func TestParseType(t *testing.T) {
	tests := []struct {
		in   string
		want Type
	}{
		{"", NoCompression},
		{"none", NoCompression},
		{"Snappy", SnappyCompression},
		{" zlib ", ZlibCompression},
		{"LZ4", LZ4Compression},
		{"zstd", ZstdCompression},
	}
	for _, tt := range tests {
		got, err := ParseType(tt.in)
		if err != nil {
			t.Errorf("ParseType(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseType(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}

	_, err := ParseType("bzip2")
	if err == nil || !strings.Contains(err.Error(), "none, snappy, zlib, lz4, zstd") {
		t.Errorf("ParseType(bzip2) error = %v", err)
	}
}

func TestNamesRoundTrip(t *testing.T) {
	for _, name := range Names() {
		ct, err := ParseType(name)
		if err != nil {
			t.Fatalf("ParseType(%q) failed: %v", name, err)
		}
		if ct.String() != name {
			t.Errorf("%q parsed to %s", name, ct)
		}
	}
}

func binaryData(n int) []byte {
	out := make([]byte, n)
	x := uint32(2463534242)
	for i := range out {
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		out[i] = byte(x)
	}
	return out
}
