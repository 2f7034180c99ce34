// Package scripts embeds the Risor builder scripts, one per scripted
// language.
package scripts

import "embed"

//go:embed *.risor
var FS embed.FS
