// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package log wires go-logging up for the command line tools.
package log

import (
	"os"

	"github.com/op/go-logging"
)

var format = logging.MustStringFormatter(
	`%{time:15:04:05.000} %{level:.4s} %{module} %{message}`,
)

// Setup configures a stderr backend at the named level and returns
// the module logger. Unknown level names fall back to WARNING.
func Setup(module, level string) *logging.Logger {
	backend := logging.NewLogBackend(os.Stderr, "", 0)
	leveled := logging.AddModuleLevel(logging.NewBackendFormatter(backend, format))

	lvl, err := logging.LogLevel(level)
	if err != nil {
		lvl = logging.WARNING
	}
	leveled.SetLevel(lvl, module)
	logging.SetBackend(leveled)

	return logging.MustGetLogger(module)
}
