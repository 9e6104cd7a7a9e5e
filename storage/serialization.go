// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"fmt"
	"sort"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/passage/core"
)

// Stored records use the MUS binary format. The serializers below are
// written against the mus-go primitives directly; metadata maps are
// encoded with sorted keys so identical passages marshal to identical
// bytes. Timestamps are stored as microseconds since the Unix epoch.

// Metadata value type tags. A tag byte precedes each stored value so
// heterogeneous metadata maps round-trip without reflection.
const (
	metaTagString byte = iota
	metaTagBool
	metaTagInt
	metaTagFloat
)

// MarshalPassage serializes a Passage to bytes. The Vector field is not
// included; embeddings are stored separately as VectorRecord values.
func MarshalPassage(passage *core.Passage) []byte {
	buf := make([]byte, passageMUS.Size(*passage))
	passageMUS.Marshal(*passage, buf)
	return buf
}

// UnmarshalPassage deserializes a Passage from bytes.
func UnmarshalPassage(data []byte) (*core.Passage, error) {
	passage, _, err := passageMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &passage, nil
}

// MarshalVectorRecord serializes a VectorRecord to bytes.
func MarshalVectorRecord(record *VectorRecord) []byte {
	buf := make([]byte, vectorRecordMUS.Size(*record))
	vectorRecordMUS.Marshal(*record, buf)
	return buf
}

// UnmarshalVectorRecord deserializes a VectorRecord from bytes.
func UnmarshalVectorRecord(data []byte) (*VectorRecord, error) {
	record, _, err := vectorRecordMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

var passageMUS = passageSer{}

// passageSer implements the MUS serializer for passage records.
type passageSer struct{}

func (passageSer) Marshal(p core.Passage, bs []byte) (n int) {
	n = ord.String.Marshal(p.Id, bs)
	n += ord.String.Marshal(p.Content, bs[n:])
	n += marshalMetadata(p.Metadata, bs[n:])
	n += varint.Int64.Marshal(p.InsertedAt.UnixMicro(), bs[n:])
	n += varint.Int64.Marshal(p.UpdatedAt.UnixMicro(), bs[n:])
	return
}

func (passageSer) Unmarshal(bs []byte) (p core.Passage, n int, err error) {
	p.Id, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	p.Content, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	p.Metadata, n1, err = unmarshalMetadata(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var micros int64
	micros, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	p.InsertedAt = time.UnixMicro(micros).UTC()
	micros, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	p.UpdatedAt = time.UnixMicro(micros).UTC()
	return
}

func (passageSer) Size(p core.Passage) (size int) {
	size = ord.String.Size(p.Id)
	size += ord.String.Size(p.Content)
	size += sizeMetadata(p.Metadata)
	size += varint.Int64.Size(p.InsertedAt.UnixMicro())
	return size + varint.Int64.Size(p.UpdatedAt.UnixMicro())
}

var vectorRecordMUS = vectorRecordSer{}

// vectorRecordSer implements the MUS serializer for vector records.
// Vector elements are stored raw; embedding components are dense random
// bits that gain nothing from varint packing.
type vectorRecordSer struct{}

func (vectorRecordSer) Marshal(r VectorRecord, bs []byte) (n int) {
	n = ord.String.Marshal(r.PassageId, bs)
	n += varint.Int.Marshal(len(r.Vector), bs[n:])
	for _, f := range r.Vector {
		n += raw.Float32.Marshal(f, bs[n:])
	}
	return
}

func (vectorRecordSer) Unmarshal(bs []byte) (r VectorRecord, n int, err error) {
	r.PassageId, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	var (
		length int
		n1     int
	)
	length, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	if length < 0 {
		err = fmt.Errorf("%w: negative vector length %d", ErrSerializationFailed, length)
		return
	}
	r.Vector = make([]float32, length)
	for i := 0; i < length; i++ {
		r.Vector[i], n1, err = raw.Float32.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	return
}

func (vectorRecordSer) Size(r VectorRecord) (size int) {
	size = ord.String.Size(r.PassageId)
	size += varint.Int.Size(len(r.Vector))
	for _, f := range r.Vector {
		size += raw.Float32.Size(f)
	}
	return
}

// marshalMetadata encodes a metadata map as a sorted key/value sequence.
// Only values in the validated primitive set are stored.
func marshalMetadata(m map[string]any, bs []byte) (n int) {
	keys := sortedMetadataKeys(m)
	n = varint.Int.Marshal(len(keys), bs)
	for _, k := range keys {
		tag, _ := metadataTag(m[k])
		n += ord.String.Marshal(k, bs[n:])
		bs[n] = tag
		n++
		switch tag {
		case metaTagString:
			n += ord.String.Marshal(m[k].(string), bs[n:])
		case metaTagBool:
			n += ord.Bool.Marshal(m[k].(bool), bs[n:])
		case metaTagInt:
			n += varint.Int64.Marshal(metadataInt64(m[k]), bs[n:])
		case metaTagFloat:
			n += raw.Float64.Marshal(m[k].(float64), bs[n:])
		}
	}
	return
}

// unmarshalMetadata decodes a metadata map. Integer values stored as int
// or int64 both decode as int64. An empty map decodes as nil.
func unmarshalMetadata(bs []byte) (m map[string]any, n int, err error) {
	count, n, err := varint.Int.Unmarshal(bs)
	if err != nil {
		return
	}
	if count < 0 {
		err = fmt.Errorf("%w: negative metadata count %d", ErrSerializationFailed, count)
		return
	}
	if count == 0 {
		return
	}
	m = make(map[string]any, count)
	var n1 int
	for i := 0; i < count; i++ {
		var key string
		key, n1, err = ord.String.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
		if n >= len(bs) {
			err = fmt.Errorf("%w: metadata value tag", ErrTruncatedData)
			return
		}
		tag := bs[n]
		n++
		switch tag {
		case metaTagString:
			var v string
			v, n1, err = ord.String.Unmarshal(bs[n:])
			n += n1
			if err != nil {
				return
			}
			m[key] = v
		case metaTagBool:
			var v bool
			v, n1, err = ord.Bool.Unmarshal(bs[n:])
			n += n1
			if err != nil {
				return
			}
			m[key] = v
		case metaTagInt:
			var v int64
			v, n1, err = varint.Int64.Unmarshal(bs[n:])
			n += n1
			if err != nil {
				return
			}
			m[key] = v
		case metaTagFloat:
			var v float64
			v, n1, err = raw.Float64.Unmarshal(bs[n:])
			n += n1
			if err != nil {
				return
			}
			m[key] = v
		default:
			err = fmt.Errorf("%w: unknown metadata value tag %d", ErrSerializationFailed, tag)
			return
		}
	}
	return
}

func sizeMetadata(m map[string]any) (size int) {
	keys := sortedMetadataKeys(m)
	size = varint.Int.Size(len(keys))
	for _, k := range keys {
		tag, _ := metadataTag(m[k])
		size += ord.String.Size(k)
		size++
		switch tag {
		case metaTagString:
			size += ord.String.Size(m[k].(string))
		case metaTagBool:
			size += ord.Bool.Size(m[k].(bool))
		case metaTagInt:
			size += varint.Int64.Size(metadataInt64(m[k]))
		case metaTagFloat:
			size += raw.Float64.Size(m[k].(float64))
		}
	}
	return
}

// sortedMetadataKeys returns the keys of storable metadata values in
// sorted order.
func sortedMetadataKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k, v := range m {
		if _, ok := metadataTag(v); !ok {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// metadataTag returns the wire tag for a metadata value. Values outside
// the validated primitive set report ok=false and are not stored.
func metadataTag(v any) (tag byte, ok bool) {
	switch v.(type) {
	case string:
		return metaTagString, true
	case bool:
		return metaTagBool, true
	case int, int64:
		return metaTagInt, true
	case float64:
		return metaTagFloat, true
	}
	return 0, false
}

func metadataInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	}
	return 0
}
