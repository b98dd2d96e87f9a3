// Package manifest decodes the declarative path -> file mapping that is
// materialized into a sandbox before every script run.
//
// Wire format (JSON, YAML or TOML):
//
//	{
//	  "app.js":       {"kind": "text",   "content": "ui.render('btn1', {})"},
//	  "img/logo.png": {"kind": "binary", "content": "iVBORw0KGgo..."}
//	}
//
// The legacy "type" tag is accepted in place of "kind". Payloads are a closed
// two-variant type (Text, Binary); Resolve normalizes every path under the
// project root, rejects collisions and decodes base64 before anything is
// written.
//
// Sources deliver a fresh manifest per fetch: FileSource, HTTPSource,
// DirSource (built from a live directory) and Static.
package manifest
