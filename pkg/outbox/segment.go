// Copyright 2026 Molt Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package outbox

import (
	"encoding/binary"
	"os"

	mmap "github.com/edsrzf/mmap-go"
)

// segmentReader iterates the records of one segment file through a
// read-only mapping. The mapping is fixed at open time; records the
// writer appends afterwards are not visible, which is fine because
// callers never read past the flush boundary they captured first.
type segmentReader struct {
	f    *os.File
	data mmap.MMap
	off  int
}

func openSegment(path string) (*segmentReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	s := &segmentReader{f: f}
	// mmap rejects empty files; an empty segment simply has no records.
	if info.Size() == 0 {
		return s, nil
	}
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	s.data = data
	return s, nil
}

// next returns the following record, or nil at the end of valid data.
// A torn or corrupt tail stops iteration at the last intact record.
func (s *segmentReader) next() *Record {
	if s.off+4 > len(s.data) {
		return nil
	}
	totalLen := int(binary.BigEndian.Uint32(s.data[s.off : s.off+4]))
	if totalLen < recordHeaderSize+recordCRCSize || totalLen > maxRecordSize {
		return nil
	}
	rec := DecodeRecord(s.data[s.off:])
	if rec == nil {
		return nil
	}
	s.off += totalLen
	return rec
}

func (s *segmentReader) close() error {
	if s.data != nil {
		_ = s.data.Unmap()
	}
	return s.f.Close()
}
