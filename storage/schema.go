// Copyright 2024 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

// Field is one (name, logical-type) schema entry (spec §3 "Table").
type Field struct {
	Name string
	Type Kind
}

// Schema is an ordered list of fields shared by every chunk of a Table.
type Schema struct {
	Fields []Field
}

// NewSchema builds a schema from field definitions.
func NewSchema(fields ...Field) *Schema {
	return &Schema{Fields: fields}
}

// IndexOf returns the position of name in the schema, or -1 if absent.
func (s *Schema) IndexOf(name string) int {
	for i, f := range s.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}
