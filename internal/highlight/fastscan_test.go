package highlight

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"
)

// The fast path must agree with the general-purpose decoder on every
// well-formed input.
func TestScanTokenData_MatchesSlowDecoder(t *testing.T) {
	inputs := []string{
		`{"data":[]}`,
		`{"data":[0,0,5,2,0]}`,
		`{"resultId":"abc","data":[0,0,5,2,0,1,3,4,0,0]}`,
		`{"data":[0,0,5,2,0],"resultId":"late-field"}`,
		`null`,
		``,
	}

	// Plus a large generated array, the case the fast path exists for.
	rng := rand.New(rand.NewSource(1))
	var sb strings.Builder
	sb.WriteString(`{"resultId":"big","data":[`)
	for i := 0; i < 50000; i++ {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%d", rng.Intn(100000))
	}
	sb.WriteString(`]}`)
	inputs = append(inputs, sb.String())

	for _, in := range inputs {
		fastData, fastID, fastErr := ScanTokenData([]byte(in))
		slowData, slowID, slowErr := decodeTokenDataSlow([]byte(in))

		if (fastErr == nil) != (slowErr == nil) {
			t.Fatalf("input %.40q: fast err %v, slow err %v", in, fastErr, slowErr)
		}
		if fastErr != nil {
			continue
		}
		if fastID != slowID {
			t.Errorf("input %.40q: resultId %q vs %q", in, fastID, slowID)
		}
		if len(fastData) != len(slowData) {
			t.Fatalf("input %.40q: %d vs %d values", in, len(fastData), len(slowData))
		}
		for i := range fastData {
			if fastData[i] != slowData[i] {
				t.Fatalf("input %.40q: value %d: %d vs %d", in, i, fastData[i], slowData[i])
			}
		}
	}
}

func TestScanTokenData_Malformed(t *testing.T) {
	bad := []string{
		`{"data":`,
		`{"data":"not an array"}`,
		`{"data":[1,"two",3]}`,
		`{"nodata":true}`,
	}
	for _, in := range bad {
		if _, _, err := ScanTokenData([]byte(in)); err == nil {
			t.Errorf("ScanTokenData(%q) accepted malformed input", in)
		}
	}
}

func TestScanTokenData_Empty(t *testing.T) {
	data, id, err := ScanTokenData(nil)
	if err != nil || data != nil || id != "" {
		t.Errorf("nil input: %v %q %v", data, id, err)
	}
}

func BenchmarkScanTokenData(b *testing.B) {
	var sb strings.Builder
	sb.WriteString(`{"data":[`)
	for i := 0; i < 100000; i++ {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%d", i%9973)
	}
	sb.WriteString(`]}`)
	raw := []byte(sb.String())

	b.Run("fast", func(b *testing.B) {
		b.SetBytes(int64(len(raw)))
		for i := 0; i < b.N; i++ {
			if _, _, err := ScanTokenData(raw); err != nil {
				b.Fatal(err)
			}
		}
	})
	b.Run("general", func(b *testing.B) {
		b.SetBytes(int64(len(raw)))
		for i := 0; i < b.N; i++ {
			if _, _, err := decodeTokenDataSlow(raw); err != nil {
				b.Fatal(err)
			}
		}
	})
}
