// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package fastq

import (
	"bytes"
	"io/ioutil"
	"reflect"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

const fq = `@NB500956:89:HW2FHBGX2:1:11101:25648:1069 1:N:0:ATCACG
ATACAGGCCTGANCCA
+
AAAAAEEEEEEE#EEA
@r1	tabbed
GGC
+r1
!+I
`

func scanErr(s string) error {
	scan := NewScanner(strings.NewReader(s))
	var r Read
	for scan.Scan(&r) {
	}
	return scan.Err()
}

func TestFASTQ(t *testing.T) {
	s := NewScanner(strings.NewReader(fq))
	var r Read
	if !s.Scan(&r) {
		t.Fatal(s.Err())
	}
	if got, want := r.Name, "NB500956:89:HW2FHBGX2:1:11101:25648:1069"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := string(r.Seq), "ATACAGGCCTGANCCA"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := r.Qual[:6], []byte{32, 32, 32, 32, 32, 36}; !bytes.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	first := r.Seq
	if !s.Scan(&r) {
		t.Fatal(s.Err())
	}
	if got, want := r, (Read{Name: "r1", Seq: []byte("GGC"), Qual: []byte{0, 10, 40}}); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := string(first), "ATACAGGCCTGANCCA"; got != want {
		t.Errorf("earlier read was overwritten: got %v, want %v", got, want)
	}
	if s.Scan(&r) {
		t.Error("scan past end")
	}
	if err := s.Err(); err != nil {
		t.Errorf("unexpected error %v", err)
	}
}

func TestBadFASTQ(t *testing.T) {
	for _, c := range []struct {
		data string
		want error
	}{
		{"12312#", ErrInvalid},
		{"@1234\n123", ErrShort},
		{"@r0\nACGT\n-\nIIII\n", ErrInvalid},
		{"@r0\nACGT\n+\nIII\n", ErrInvalid},
		{"@r0\nACGT\n+\nII I\n", ErrInvalid},
		{"@r0\nACGT\n+\n", ErrShort},
	} {
		if got := errors.Cause(scanErr(c.data)); got != c.want {
			t.Errorf("%q: got %v, want %v", c.data, got, c.want)
		}
	}
	if err := scanErr(""); err != nil {
		t.Errorf("empty input: %v", err)
	}
}

func TestWriter(t *testing.T) {
	var (
		s = NewScanner(strings.NewReader(fq))
		b = new(bytes.Buffer)
		w = NewWriter(b)
		r Read
	)
	for s.Scan(&r) {
		if err := w.Write(&r); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Err(); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	want := "@NB500956:89:HW2FHBGX2:1:11101:25648:1069\nATACAGGCCTGANCCA\n+\nAAAAAEEEEEEE#EEA\n@r1\nGGC\n+\n!+I\n"
	if got := b.String(); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestWriterClampsQual(t *testing.T) {
	b := new(bytes.Buffer)
	w := NewGzipWriter(b)
	if err := w.Write(&Read{Name: "t", Seq: []byte("AC"), Qual: []byte{93, 120}}); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	gz, err := gzip.NewReader(b)
	if err != nil {
		t.Fatal(err)
	}
	data, err := ioutil.ReadAll(gz)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(data), "@t\nAC\n+\n~~\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
