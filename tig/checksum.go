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
package tig

import (
	"io"

	"github.com/minio/highwayhash"
)

// checksumKey is the fixed highwayhash key for tig store checksums.
var checksumKey = []byte("grailbio/cns tig store checksum!")

// Checksum returns the 256-bit highwayhash of everything read from r.
func Checksum(r io.Reader) ([]byte, error) {
	h, err := highwayhash.New(checksumKey)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(h, r); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}
