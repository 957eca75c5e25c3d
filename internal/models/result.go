package models

import "fmt"

// ResultKind classifies the outcome of a product refresh.
type ResultKind int

const (
	ResultNoChanges ResultKind = iota + 1
	ResultCreated
	ResultUpdated
	ResultError
	ResultUnsupported
)

var resultNames = map[ResultKind]string{
	ResultNoChanges:   "NO_CHANGES",
	ResultCreated:     "CREATED",
	ResultUpdated:     "UPDATED",
	ResultError:       "ERROR",
	ResultUnsupported: "UNSUPPORTED",
}

func (k ResultKind) String() string {
	if s, ok := resultNames[k]; ok {
		return s
	}

	return fmt.Sprintf("ResultKind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k ResultKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}
