// Package persistence provides runtime state persistence for anchors.
//
// This package handles the JSON serialization of persisted anchors (name,
// pose, save time) that must survive session and process restarts. The
// device owns the authoritative anchor data; this store only keeps the
// names needed to ask the device to restore them into a new session.
package persistence
