/*
Copyright 2026 The Shardine Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package sqltree

import "fmt"

// Type is the value type of an expression or column.
type Type int16

const (
	TypeUnknown Type = iota
	TypeBool
	TypeInt4
	TypeInt8
	TypeFloat8
	TypeNumeric
	TypeText
	TypeBytea
	TypeTimestamptz
	TypeDate
	TypeJSON
	TypeJSONB
	TypeUUID
	TypeMoney
)

// String returns the SQL type name, as used in column definition lists.
func (t Type) String() string {
	switch t {
	case TypeBool:
		return "boolean"
	case TypeInt4:
		return "integer"
	case TypeInt8:
		return "bigint"
	case TypeFloat8:
		return "double precision"
	case TypeNumeric:
		return "numeric"
	case TypeText:
		return "text"
	case TypeBytea:
		return "bytea"
	case TypeTimestamptz:
		return "timestamptz"
	case TypeDate:
		return "date"
	case TypeJSON:
		return "json"
	case TypeJSONB:
		return "jsonb"
	case TypeUUID:
		return "uuid"
	case TypeMoney:
		return "money"
	default:
		return fmt.Sprintf("type(%d)", t)
	}
}

// SupportsBinaryTransfer reports whether values of the type can be shipped
// in the binary copy format. Types without binary send/receive routines, and
// types whose binary encoding is not portable across nodes, transfer as text.
func (t Type) SupportsBinaryTransfer() bool {
	switch t {
	case TypeUnknown, TypeJSON, TypeMoney:
		return false
	default:
		return true
	}
}
