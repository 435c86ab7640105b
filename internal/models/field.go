package models

import "strings"

// FieldKind is the closed set of project field types this system can write.
// Anything else coming back from the tracker is rejected explicitly rather
// than silently skipped.
type FieldKind string

const (
	FieldText         FieldKind = "TEXT"
	FieldNumber       FieldKind = "NUMBER"
	FieldDate         FieldKind = "DATE"
	FieldSingleSelect FieldKind = "SINGLE_SELECT"
)

// KnownFieldKind reports whether the tracker data type is one we dispatch on.
func KnownFieldKind(raw string) bool {
	switch FieldKind(raw) {
	case FieldText, FieldNumber, FieldDate, FieldSingleSelect:
		return true
	default:
		return false
	}
}

// FieldOption is one choice of a single-select field.
type FieldOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FieldDescriptor is resolved metadata for one custom field on the project.
// Options is populated for single-select fields only.
type FieldDescriptor struct {
	ID      string        `json:"id"`
	Name    string        `json:"name"`
	Kind    FieldKind     `json:"kind"`
	Options []FieldOption `json:"options,omitempty"`
}

// FindOption returns the first option whose name contains the given label.
// The tracker's option names carry decorations (emoji, counts), so matching
// is by substring, mirroring how statuses are looked up.
func (f FieldDescriptor) FindOption(label string) (FieldOption, bool) {
	if label == "" {
		return FieldOption{}, false
	}
	for _, opt := range f.Options {
		if strings.Contains(opt.Name, label) {
			return opt, true
		}
	}
	return FieldOption{}, false
}

// FindOptionExact matches an option name exactly, used for classroom options
// whose names are bare "<grade>/<room>" values.
func (f FieldDescriptor) FindOptionExact(name string) (FieldOption, bool) {
	for _, opt := range f.Options {
		if opt.Name == name {
			return opt, true
		}
	}
	return FieldOption{}, false
}
