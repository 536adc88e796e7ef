// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config carries the environment-derived defaults shared by
// the command line tools. Flags override these per invocation.
package config

import (
	"github.com/xyproto/env/v2"
)

// Tool holds the defaults a tool starts from.
type Tool struct {
	// LogLevel names a go-logging level (DEBUG .. CRITICAL).
	LogLevel string
	// TabStop is the markup indentation width.
	TabStop int
	// Compact disables newlines and indentation in markup output.
	Compact bool
}

// FromEnv reads the tool defaults from the environment.
func FromEnv() Tool {
	return Tool{
		LogLevel: env.Str("GVAR_LOG_LEVEL", "WARNING"),
		TabStop:  env.Int("GVAR_TABSTOP", 2),
		Compact:  env.Bool("GVAR_COMPACT"),
	}
}
