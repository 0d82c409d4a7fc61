package item

import (
	"bytes"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	cases := []Item{
		Ascii("AIMFAB"),
		Bin(0x01, 0x02, 0xff),
		Boolean(true, false, true),
		U1Item(1, 2, 3),
		U2Item(720, 721, 65535),
		U4Item(0, 1, 1<<20),
		U8Item(1 << 40),
		I1Item(-1, 2, -128),
		I2Item(-1000, 1000),
		I4Item(-100000),
		I8Item(-1 << 40),
		F4Item(1.5, -2.25),
		F8Item(3.14159),
		L(),
		L(Ascii("MDLN"), U1Item(1), L(U2Item(1, 2), Ascii("nested"))),
	}
	for _, c := range cases {
		enc, err := Encode(c)
		if err != nil {
			t.Fatalf("encode %v: %v", c.Fmt, err)
		}
		dec, rest, err := Decode(enc)
		if err != nil {
			t.Fatalf("decode %v: %v", c.Fmt, err)
		}
		if len(rest) != 0 {
			t.Fatalf("decode %v: leftover bytes %v", c.Fmt, rest)
		}
		if !Equal(c, dec) {
			t.Fatalf("round trip mismatch: %+v != %+v", c, dec)
		}
	}
}

func TestDecodeEmptyList(t *testing.T) {
	enc, err := Encode(L())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(enc, []byte{0x01, 0x00}) {
		t.Fatalf("empty list encoding = % x, want 01 00", enc)
	}
}

func TestDecodeLengthOverrun(t *testing.T) {
	// U1 item claiming 10 bytes but only 2 are present.
	buf := []byte{byte(FormatU1) | 1, 10, 0x01, 0x02}
	if _, _, err := Decode(buf); err == nil {
		t.Fatal("expected error for length overrun")
	}
}

func TestDecodeNestingTooDeep(t *testing.T) {
	var nested Item = U1Item(1)
	for i := 0; i < MaxNestingDepth+5; i++ {
		nested = L(nested)
	}
	enc, err := Encode(nested)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := Decode(enc); err == nil {
		t.Fatal("expected ErrNestingTooDeep")
	}
}

func TestDecodeShortHeader(t *testing.T) {
	if _, _, err := Decode([]byte{0x01}); err == nil {
		t.Fatal("expected error for short header")
	}
}
