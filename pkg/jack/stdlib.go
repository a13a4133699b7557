package jack

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

// ----------------------------------------------------------------------------
// Jack Standard Library ABI

// StandardLibraryABI holds only the call signatures of the OS classes (Math, String,
// Array, Output, Screen, Keyboard, Memory, Sys) — no bodies, since the toolchain never
// compiles the OS itself, only code that calls into it. It exists so the TypeChecker
// can resolve 'do Output.printString(...)'-style calls without the caller's
// Program needing to carry the whole standard library.
var StandardLibraryABI Program

//go:embed stdlib.json
var stdlibJSON []byte

// stdlibClass/stdlibSubroutine/stdlibVariable/stdlibType mirror stdlib.json's shape —
// a minimal, JSON-friendly stand-in for Class/Subroutine/Variable/DataType, which carry
// unexported fields (utils.OrderedMap) encoding/json can't populate directly.
type stdlibClass struct {
	Name        string             `json:"name"`
	Subroutines []stdlibSubroutine `json:"subroutines"`
}

type stdlibSubroutine struct {
	Name      string           `json:"name"`
	Kind      SubroutineKind   `json:"kind"`
	Return    stdlibType       `json:"return"`
	Arguments []stdlibVariable `json:"arguments"`
}

type stdlibVariable struct {
	Name string     `json:"name"`
	Type stdlibType `json:"type"`
}

type stdlibType struct {
	Kind  DataKind `json:"kind"`
	Class string   `json:"class"`
}

func (t stdlibType) toDataType() DataType { return DataType{Kind: t.Kind, ClassName: t.Class} }

func init() {
	var raw []stdlibClass
	if err := json.Unmarshal(stdlibJSON, &raw); err != nil {
		panic(fmt.Sprintf("jack: malformed embedded stdlib.json: %s", err))
	}

	StandardLibraryABI = Program{}
	for _, rc := range raw {
		class := Class{Name: rc.Name}
		for _, rs := range rc.Subroutines {
			sub := Subroutine{Name: rs.Name, Kind: rs.Kind, Return: rs.Return.toDataType()}
			for _, ra := range rs.Arguments {
				sub.Arguments = append(sub.Arguments, Variable{Name: ra.Name, Kind: ArgumentVar, Type: ra.Type.toDataType()})
			}
			class.Subroutines.Set(sub.Name, sub)
		}
		StandardLibraryABI[class.Name] = class
	}
}
