// Package events implements the workspace change-notification bus.
//
// Managers publish WatchEvents when something on disk changed; the dev server
// subscribes once per connected browser and relays each event as JSON. The bus
// keeps no history: a listener only sees events emitted while it is
// registered.
package events

import (
	"encoding/json"
	"fmt"
)

// EventType discriminates WatchEvent payloads.
type EventType string

const (
	ReloadNeeded    EventType = "reloadNeeded"
	TemplateChanged EventType = "templateChanged"
	CSSChanged      EventType = "cssChanged"
	ScriptChanged   EventType = "scriptChanged"
	PageChanged     EventType = "pageChanged"
)

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	switch t {
	case ReloadNeeded, TemplateChanged, CSSChanged, ScriptChanged, PageChanged:
		return true
	}
	return false
}

// WatchEvent describes one change. Only the payload field that belongs to
// Type is set, so the JSON encoding carries exactly the type and that field.
type WatchEvent struct {
	Type    EventType `json:"type"`
	File    string    `json:"file,omitempty"`
	CSSFile string    `json:"cssFile,omitempty"`
	Name    string    `json:"name,omitempty"`
	PageID  string    `json:"pageId,omitempty"`
}

// NewReloadNeeded asks clients to reload the whole document.
func NewReloadNeeded() WatchEvent {
	return WatchEvent{Type: ReloadNeeded}
}

// NewTemplateChanged reports a changed template file.
func NewTemplateChanged(file string) WatchEvent {
	return WatchEvent{Type: TemplateChanged, File: file}
}

// NewCSSChanged reports a rebuilt stylesheet, addressed by its output name (e.g. "index.css").
func NewCSSChanged(cssFile string) WatchEvent {
	return WatchEvent{Type: CSSChanged, CSSFile: cssFile}
}

// NewScriptChanged reports a rebuilt script bundle.
func NewScriptChanged(name string) WatchEvent {
	return WatchEvent{Type: ScriptChanged, Name: name}
}

// NewPageChanged reports a changed content page.
func NewPageChanged(pageID string) WatchEvent {
	return WatchEvent{Type: PageChanged, PageID: pageID}
}

// Marshal returns the wire message for the event.
func (e WatchEvent) Marshal() ([]byte, error) {
	if !e.Type.Valid() {
		return nil, fmt.Errorf("unknown watch event type %q", e.Type)
	}
	return json.Marshal(e)
}

// String returns a short human readable form used in logs.
func (e WatchEvent) String() string {
	switch e.Type {
	case TemplateChanged:
		return fmt.Sprintf("%s(%s)", e.Type, e.File)
	case CSSChanged:
		return fmt.Sprintf("%s(%s)", e.Type, e.CSSFile)
	case ScriptChanged:
		return fmt.Sprintf("%s(%s)", e.Type, e.Name)
	case PageChanged:
		return fmt.Sprintf("%s(%s)", e.Type, e.PageID)
	default:
		return string(e.Type)
	}
}
