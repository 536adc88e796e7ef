// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// gvserialise reads one value in markup form and writes its binary
// frame. By default the frame is hex dumped; -b writes the raw bytes.
// File arguments are concatenated into a single document; "-" or no
// arguments reads standard input.
package main

import (
	"context"
	"encoding/hex"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/solidcoredata/variant/internal/config"
	"github.com/solidcoredata/variant/internal/log"
	"github.com/solidcoredata/variant/internal/start"
	"github.com/solidcoredata/variant/markup"
)

var cfg = config.FromEnv()
var logger = log.Setup("gvserialise", cfg.LogLevel)

func main() {
	app := cli.NewApp()
	app.Name = "gvserialise"
	app.Usage = "serialise a markup-form value to its binary frame"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "binary, b",
			Usage: "write raw bytes instead of a hex dump",
		},
	}
	app.Action = serialiseAction

	if err := app.Run(os.Args); err != nil {
		logger.Fatal(err)
	}
}

func serialiseAction(c *cli.Context) error {
	return start.Run(context.Background(), 5*time.Second, func(ctx context.Context) error {
		files := c.Args()
		if len(files) == 0 {
			files = []string{"-"}
		}

		readers := make([]io.Reader, 0, len(files))
		for _, name := range files {
			if name == "-" {
				readers = append(readers, os.Stdin)
				continue
			}
			f, err := os.Open(name)
			if err != nil {
				return errors.Wrapf(err, "opening %s", name)
			}
			defer f.Close()
			readers = append(readers, f)
		}

		v, err := markup.Parse(io.MultiReader(readers...))
		if err != nil {
			return err
		}
		defer v.Unref()

		data := v.Data()
		logger.Debugf("%s, %d bytes", v.Signature(), len(data))

		if c.Bool("binary") {
			_, err = os.Stdout.Write(data)
			return err
		}
		dumper := hex.Dumper(os.Stdout)
		if _, err := dumper.Write(data); err != nil {
			return err
		}
		return dumper.Close()
	})
}
