// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package coverage // import "go.opentelemetry.io/minitrace/coverage"

import (
	"strings"

	lru "github.com/elastic/go-freelru"
	"github.com/zeebo/xxh3"
)

// descriptorCacheSize is the number of pretty printed descriptors kept. It should reflect
// the number of classes with methods executed between two dumps.
const descriptorCacheSize = 4096

// primitiveTypes maps a primitive type descriptor character to the type keyword
var primitiveTypes = map[byte]string{
	'B': "byte",
	'C': "char",
	'D': "double",
	'F': "float",
	'I': "int",
	'J': "long",
	'S': "short",
	'V': "void",
	'Z': "boolean",
}

// PrettyDescriptor converts a type descriptor into its source level form:
// "Ljava/lang/String;" becomes "java.lang.String" and "[[I" becomes "int[][]".
// Strings that are not valid descriptors are returned unchanged.
func PrettyDescriptor(desc string) string {
	var sb strings.Builder

	dims := 0
	for dims < len(desc) && desc[dims] == '[' {
		dims++
	}
	if dims >= len(desc) {
		return desc
	}

	elem := desc[dims:]
	switch {
	case elem[0] == 'L':
		if len(elem) < 3 || elem[len(elem)-1] != ';' {
			return desc
		}
		sb.WriteString(strings.ReplaceAll(elem[1:len(elem)-1], "/", "."))
	case len(elem) == 1:
		keyword, ok := primitiveTypes[elem[0]]
		if !ok {
			return desc
		}
		sb.WriteString(keyword)
	default:
		return desc
	}

	for ; dims > 0; dims-- {
		sb.WriteString("[]")
	}
	return sb.String()
}

func hashString(s string) uint32 {
	return uint32(xxh3.HashString(s))
}

// Descriptors caches PrettyDescriptor results. It is safe for concurrent use.
type Descriptors struct {
	cache *lru.SyncedLRU[string, string]
}

// NewDescriptors creates an empty descriptor cache.
func NewDescriptors() (*Descriptors, error) {
	cache, err := lru.NewSynced[string, string](descriptorCacheSize, hashString)
	if err != nil {
		return nil, err
	}
	return &Descriptors{cache: cache}, nil
}

// Pretty returns PrettyDescriptor(desc), using the cache when possible.
// A nil Descriptors is valid and does not cache.
func (d *Descriptors) Pretty(desc string) string {
	if d == nil {
		return PrettyDescriptor(desc)
	}
	if pretty, ok := d.cache.Get(desc); ok {
		return pretty
	}
	pretty := PrettyDescriptor(desc)
	d.cache.Add(desc, pretty)
	return pretty
}
